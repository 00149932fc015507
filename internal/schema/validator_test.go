package schema

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func TestValidate_AllRowsValid(t *testing.T) {
	format := testFormat()
	rows := []map[string]any{
		{"deviceId": "d1", "temperature": 21.5},
		{"deviceId": "d2", "temperature": 19.0},
	}
	assert.NoError(t, Validate(format, rows))
}

func TestValidate_EmptyStringAllowed(t *testing.T) {
	format := testFormat()
	rows := []map[string]any{
		{"deviceId": "", "temperature": 0.0},
	}
	assert.NoError(t, Validate(format, rows))
}

func TestValidate_MissingColumnFails(t *testing.T) {
	format := testFormat()
	rows := []map[string]any{
		{"deviceId": "d1"},
	}
	err := Validate(format, rows)
	require.Error(t, err)
	var schemaErr *Error
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, 0, schemaErr.RowIndex)
}

func TestValidate_ExtraColumnFails(t *testing.T) {
	format := testFormat()
	rows := []map[string]any{
		{"deviceId": "d1", "temperature": 21.5, "extra": "nope"},
	}
	err := Validate(format, rows)
	require.Error(t, err)
	var schemaErr *Error
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "extra", schemaErr.Column)
}

func TestValidate_WrongTypeFails(t *testing.T) {
	format := testFormat()
	rows := []map[string]any{
		{"deviceId": "d1", "temperature": "not-a-number"},
	}
	err := Validate(format, rows)
	require.Error(t, err)
	var schemaErr *Error
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "temperature", schemaErr.Column)
}

func TestValidate_NonFiniteNumberFails(t *testing.T) {
	format := testFormat()
	rows := []map[string]any{
		{"deviceId": "d1", "temperature": math.NaN()},
	}
	err := Validate(format, rows)
	require.Error(t, err)
}

func TestValidate_ReportsLowestFailingRowIndex(t *testing.T) {
	format := testFormat()
	rows := []map[string]any{
		{"deviceId": "d1", "temperature": 1.0},
		{"deviceId": "d2"},
		{"deviceId": "d3"},
	}
	err := Validate(format, rows)
	require.Error(t, err)
	var schemaErr *Error
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, 1, schemaErr.RowIndex)
}

func TestValidate_EmptyBatchIsNoop(t *testing.T) {
	format := testFormat()
	assert.NoError(t, Validate(format, nil))
}
