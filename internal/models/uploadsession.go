package models

import "time"

// UploadSession groups a single atomic ingestion: either every row in the
// batch is inserted, or none are. Deleting a session cascades to its
// Records.
type UploadSession struct {
	ID          string    `json:"id" db:"id"`
	FormatID    int64     `json:"formatId" db:"format_id"`
	UserID      string    `json:"userId" db:"user_id"`
	RecordCount int64     `json:"recordCount" db:"record_count"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// IngestRequest is the body of POST /record: one format and a batch of
// row-shaped objects keyed by column name.
type IngestRequest struct {
	FormatID int64            `json:"formatId" validate:"required"`
	Data     []map[string]any `json:"data" validate:"required,min=1"`
}

// IngestResponse reports the created session and how many rows landed.
type IngestResponse struct {
	UploadSessionID string `json:"uploadSessionId"`
	RecordCount     int64  `json:"recordCount"`
}
