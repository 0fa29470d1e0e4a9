package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/reportrx/reportrx-backend/pkg/database"
)

// ParseAudit records that a parse happened. Only counts and timing are
// stored; report content never reaches the database.
type ParseAudit struct {
	ID            uuid.UUID `db:"id"`
	SourceType    string    `db:"source_type"`
	FileCount     int       `db:"file_count"`
	RowCount      int       `db:"row_count"`
	UnparsedCount int       `db:"unparsed_count"`
	DurationMs    int64     `db:"duration_ms"`
	CreatedAt     time.Time `db:"created_at"`
}

// AuditRepository persists parse audit entries
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record inserts an audit entry
func (r *AuditRepository) Record(ctx context.Context, audit *ParseAudit) error {
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO parse_audit (id, source_type, file_count, row_count, unparsed_count, duration_ms, created_at)
		VALUES (:id, :source_type, :file_count, :row_count, :unparsed_count, :duration_ms, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, audit)
	return err
}
