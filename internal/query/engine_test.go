package query

import (
	"context"
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

func TestCompile_UnknownColumnIsBadRequest(t *testing.T) {
	format := testFormat()
	req := Request{
		FormatID: 1,
		Query: []Clause{
			{Args: []Predicate{{Column: "nope", Op: OpEq, CompareAgainst: "x"}}},
		},
	}
	_, _, err := Compile(format, req)
	require.Error(t, err)
}

func TestCompile_TypeMismatchIsBadRequest(t *testing.T) {
	format := testFormat()
	req := Request{
		FormatID: 1,
		Query: []Clause{
			{Args: []Predicate{{Column: "temperature", Op: OpEq, CompareAgainst: "not-a-number"}}},
		},
	}
	_, _, err := Compile(format, req)
	require.Error(t, err)
}

func TestCompile_StringOnlyOperatorRejectsNumberColumn(t *testing.T) {
	format := testFormat()
	req := Request{
		FormatID: 1,
		Query: []Clause{
			{Args: []Predicate{{Column: "temperature", Op: OpContains, CompareAgainst: "2"}}},
		},
	}
	_, _, err := Compile(format, req)
	require.Error(t, err)
}

func TestCompile_EmptyQueryMatchesAll(t *testing.T) {
	format := testFormat()
	whereSQL, args, err := Compile(format, Request{FormatID: 1})
	require.NoError(t, err)
	assert.Empty(t, whereSQL)
	assert.Empty(t, args)
}

func TestCompile_ValidPredicateBindsColumnAndValue(t *testing.T) {
	format := testFormat()
	req := Request{
		FormatID: 1,
		Query: []Clause{
			{Args: []Predicate{{Column: "temperature", Op: OpGte, CompareAgainst: 10.0}}},
		},
	}
	whereSQL, args, err := Compile(format, req)
	require.NoError(t, err)
	assert.Contains(t, whereSQL, "::numeric")
	require.Len(t, args, 2)
	assert.Equal(t, "temperature", args[0])
	assert.Equal(t, 10.0, args[1])
}

func TestCompile_InRequiresListValue(t *testing.T) {
	format := testFormat()
	req := Request{
		FormatID: 1,
		Query: []Clause{
			{Args: []Predicate{{Column: "deviceId", Op: OpIn, CompareAgainst: "not-a-list"}}},
		},
	}
	_, _, err := Compile(format, req)
	require.Error(t, err)
}

func TestCompileOrderBy_UnknownFieldRejected(t *testing.T) {
	_, err := compileOrderBy("notAllowed")
	require.Error(t, err)
}

func TestCompileOrderBy_DescendingPrefix(t *testing.T) {
	sql, err := compileOrderBy("-createdAt")
	require.NoError(t, err)
	assert.Contains(t, sql, "DESC")
}

func TestRun_UsesDefaultPaginationAndNoCount(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	recordDB := db.NewRecordDB(sqlDB)
	engine := NewEngine(recordDB, 200, 50)

	rows := sqlmock.NewRows([]string{"id", "format_id", "upload_session_id", "data", "created_at"}).
		AddRow(int64(1), int64(1), "s1", []byte(`{"deviceId":"d1","temperature":1}`), time.Now())
	mock.ExpectQuery(`SELECT id, format_id, upload_session_id, data, created_at`).
		WillReturnRows(rows)

	result, err := engine.Run(context.Background(), testFormat(), Request{FormatID: 1}, false)
	require.NoError(t, err)
	assert.Equal(t, 50, result.PerPage)
	assert.Nil(t, result.ItemCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_PerPageOverMaxIsBadRequest(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	engine := NewEngine(db.NewRecordDB(sqlDB), 200, 50)
	_, err = engine.Run(context.Background(), testFormat(), Request{FormatID: 1, PerPage: 500}, false)
	require.Error(t, err)
}

func TestRun_ReturnCountRunsCountQuery(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	recordDB := db.NewRecordDB(sqlDB)
	engine := NewEngine(recordDB, 200, 50)

	mock.ExpectQuery(`SELECT id, format_id, upload_session_id, data, created_at`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "format_id", "upload_session_id", "data", "created_at"}))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	result, err := engine.Run(context.Background(), testFormat(), Request{FormatID: 1}, true)
	require.NoError(t, err)
	require.NotNil(t, result.ItemCount)
	assert.Equal(t, int64(3), *result.ItemCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
