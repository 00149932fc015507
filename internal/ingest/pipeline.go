// Package ingest implements the bulk record ingestion pipeline: validate a
// batch against its format's schema, then insert it all-or-nothing inside
// one transaction.
package ingest

import (
	"context"
	"fmt"

	"github.com/recordkeeper/api/internal/db"
	apierrors "github.com/recordkeeper/api/internal/errors"
	"github.com/recordkeeper/api/internal/events"
	"github.com/recordkeeper/api/internal/logger"
	"github.com/recordkeeper/api/internal/models"
	"github.com/recordkeeper/api/internal/schema"
)

// Pipeline wires the schema validator to the transactional insert path.
type Pipeline struct {
	database        *db.Database
	formatDB        *db.FormatDB
	uploadSessionDB *db.UploadSessionDB
	recordDB        *db.RecordDB
	publisher       *events.Publisher
	chunkSize       int
}

// NewPipeline builds a Pipeline. chunkSize bounds how many rows go into a
// single INSERT statement; it is a statement-size concern only, never a
// durability boundary — the whole batch still commits or rolls back as one
// unit.
func NewPipeline(database *db.Database, formatDB *db.FormatDB, uploadSessionDB *db.UploadSessionDB, recordDB *db.RecordDB, publisher *events.Publisher, chunkSize int) *Pipeline {
	return &Pipeline{
		database:        database,
		formatDB:        formatDB,
		uploadSessionDB: uploadSessionDB,
		recordDB:        recordDB,
		publisher:       publisher,
		chunkSize:       chunkSize,
	}
}

// Ingest validates rows against format's schema and, if valid, inserts them
// as a new upload session in one transaction. Returns the created session
// ID and the number of rows inserted.
func (p *Pipeline) Ingest(ctx context.Context, format *models.Format, userID string, rows []map[string]any) (*models.IngestResponse, error) {
	if err := schema.Validate(format, rows); err != nil {
		return nil, apierrors.Unprocessable(err.Error())
	}

	tx, err := p.database.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, apierrors.StorageError(err)
	}
	defer tx.Rollback()

	session, err := p.uploadSessionDB.CreateUploadSessionTx(ctx, tx, format.ID, userID)
	if err != nil {
		return nil, apierrors.StorageError(err)
	}

	count, err := p.recordDB.InsertRecordsTx(ctx, tx, format.ID, session.ID, rows, p.chunkSize)
	if err != nil {
		return nil, apierrors.StorageError(fmt.Errorf("inserting records: %w", err))
	}

	if err := p.uploadSessionDB.SetRecordCountTx(ctx, tx, session.ID, count); err != nil {
		return nil, apierrors.StorageError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierrors.StorageError(err)
	}

	p.publisher.Publish(events.RecordIngested{
		UploadSessionID: session.ID,
		FormatID:        format.ID,
		RecordCount:     count,
	})
	logger.Ingest().Info().
		Str("upload_session_id", session.ID).
		Int64("format_id", format.ID).
		Int64("record_count", count).
		Msg("ingested records")

	return &models.IngestResponse{UploadSessionID: session.ID, RecordCount: count}, nil
}
