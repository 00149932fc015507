package models

import "time"

// Record is one typed row belonging to a Format, ingested as part of an
// UploadSession. Data is keyed by column name and must conform to the
// owning Format's schema at insert time; conformance is not re-checked on
// read.
type Record struct {
	ID              int64          `json:"id" db:"id"`
	FormatID        int64          `json:"formatId" db:"format_id"`
	UploadSessionID string         `json:"uploadSessionId" db:"upload_session_id"`
	Data            map[string]any `json:"data" db:"data"`
	CreatedAt       time.Time      `json:"createdAt" db:"created_at"`
}
