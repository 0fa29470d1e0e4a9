package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Report events
	EventReportParsed      = "report.parsed"
	EventReportInterpreted = "report.interpreted"
	EventReportTranslated  = "report.translated"
)

// Exchange names
const (
	ExchangeReportEvents = "report.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Report Events

// ReportParsedEvent is published after a report has been parsed.
// It carries only counts and timing, never report content.
type ReportParsedEvent struct {
	SourceType    string `json:"source_type"` // text, pdf, image
	FileCount     int    `json:"file_count"`
	RowCount      int    `json:"row_count"`
	UnparsedCount int    `json:"unparsed_count"`
	DurationMs    int64  `json:"duration_ms"`
}

// ReportInterpretedEvent is published after an interpretation was produced
type ReportInterpretedEvent struct {
	RowCount   int    `json:"row_count"`
	Backend    string `json:"backend"` // llm or fallback
	Model      string `json:"model,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// ReportTranslatedEvent is published after a summary was translated
type ReportTranslatedEvent struct {
	Language   string `json:"language"`
	DurationMs int64  `json:"duration_ms"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
