package ingest

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordkeeper/api/internal/db"
	"github.com/recordkeeper/api/internal/events"
	"github.com/recordkeeper/api/internal/models"
)

func testFormat() *models.Format {
	return &models.Format{
		ID:   1,
		Name: "sensor-reading",
		Schema: []models.Column{
			{Name: "deviceId", Kind: models.KindString},
			{Name: "temperature", Kind: models.KindNumber},
		},
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	database := db.NewDatabaseForTesting(sqlDB)
	publisher, err := events.NewPublisher("")
	require.NoError(t, err)

	return NewPipeline(database, db.NewFormatDB(sqlDB), db.NewUploadSessionDB(sqlDB), db.NewRecordDB(sqlDB), publisher, 2), mock
}

func TestIngest_ValidBatchCommits(t *testing.T) {
	pipeline, mock := newTestPipeline(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO upload_session`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO record`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE upload_session SET record_count`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rows := []map[string]any{
		{"deviceId": "d1", "temperature": 1.0},
		{"deviceId": "d2", "temperature": 2.0},
	}
	resp, err := pipeline.Ingest(context.Background(), testFormat(), "u1", rows)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.UploadSessionID)
	assert.Equal(t, int64(2), resp.RecordCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngest_InvalidRowRollsBackBeforeAnyInsert(t *testing.T) {
	pipeline, mock := newTestPipeline(t)

	rows := []map[string]any{
		{"deviceId": "d1", "temperature": "not-a-number"},
	}
	_, err := pipeline.Ingest(context.Background(), testFormat(), "u1", rows)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngest_InsertFailureRollsBack(t *testing.T) {
	pipeline, mock := newTestPipeline(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO upload_session`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO record`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	rows := []map[string]any{
		{"deviceId": "d1", "temperature": 1.0},
	}
	_, err := pipeline.Ingest(context.Background(), testFormat(), "u1", rows)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
