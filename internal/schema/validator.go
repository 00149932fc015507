// Package schema validates bulk-ingested rows against a Format's declared
// column schema before any of them reach storage.
package schema

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/recordkeeper/api/internal/models"
)

// Error names the first row/column that failed validation. Batch-atomic:
// a single Error means none of the batch's rows were inserted.
type Error struct {
	RowIndex int
	Column   string
	Reason   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("row %d, column %q: %s", e.RowIndex, e.Column, e.Reason)
}

// Validate checks every row in rows against format's declared columns.
// Each row must have exactly the declared columns, no more and no fewer.
// Rows are checked concurrently; on failure, the lowest-row-index error is
// returned regardless of which goroutine found it first.
func Validate(format *models.Format, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(rows) {
		workers = len(rows)
	}
	if workers < 1 {
		workers = 1
	}

	errs := make([]*Error, len(rows))
	var wg sync.WaitGroup
	rowCh := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rowCh {
				errs[i] = validateRow(format, i, rows[i])
			}
		}()
	}
	for i := range rows {
		rowCh <- i
	}
	close(rowCh)
	wg.Wait()

	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func validateRow(format *models.Format, rowIndex int, row map[string]any) *Error {
	for _, col := range format.Schema {
		value, present := row[col.Name]
		if !present {
			return &Error{RowIndex: rowIndex, Column: col.Name, Reason: "missing required column"}
		}
		if err := validateValue(col, value); err != nil {
			return &Error{RowIndex: rowIndex, Column: col.Name, Reason: err.Error()}
		}
	}

	for key := range row {
		if _, ok := format.Column(key); !ok {
			return &Error{RowIndex: rowIndex, Column: key, Reason: "column not declared in format schema"}
		}
	}

	return nil
}

func validateValue(col models.Column, value any) error {
	switch col.Kind {
	case models.KindNumber:
		n, ok := value.(float64)
		if !ok {
			return fmt.Errorf("expects Number, got %T", value)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return fmt.Errorf("expects a finite Number")
		}
	case models.KindString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expects String, got %T", value)
		}
	default:
		return fmt.Errorf("format declares unknown column kind %q", col.Kind)
	}
	return nil
}
