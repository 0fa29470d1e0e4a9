package events

import (
	"context"

	"github.com/reportrx/reportrx-backend/pkg/logger"
	"github.com/reportrx/reportrx-backend/pkg/messaging"
)

// Publisher emits report lifecycle events on the report exchange
type Publisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPublisher creates a publisher for report events
func NewPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*Publisher, error) {
	pub, err := messaging.NewPublisher(rmq, messaging.ExchangeReportEvents, "report-service", log)
	if err != nil {
		return nil, err
	}
	return &Publisher{publisher: pub, logger: log}, nil
}

// ReportParsed publishes a report.parsed event
func (p *Publisher) ReportParsed(ctx context.Context, event *messaging.ReportParsedEvent) error {
	return p.publisher.Publish(ctx, messaging.EventReportParsed, event)
}

// ReportInterpreted publishes a report.interpreted event
func (p *Publisher) ReportInterpreted(ctx context.Context, event *messaging.ReportInterpretedEvent) error {
	return p.publisher.Publish(ctx, messaging.EventReportInterpreted, event)
}

// ReportTranslated publishes a report.translated event
func (p *Publisher) ReportTranslated(ctx context.Context, event *messaging.ReportTranslatedEvent) error {
	return p.publisher.Publish(ctx, messaging.EventReportTranslated, event)
}
