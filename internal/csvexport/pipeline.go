package csvexport

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/recordkeeper/api/internal/db"
	"github.com/recordkeeper/api/internal/logger"
	"github.com/recordkeeper/api/internal/models"
)

// streamItem is one raw record tagged with the partition it was read from,
// so a transform worker can encode records from any partition and still
// route the result to that partition's encoded channel.
type streamItem struct {
	partition int
	rec       *models.Record
}

// Pipeline streams one filter's results to an io.Writer as CSV, fanning the
// read out across partitionCount disjoint id-modulo partitions (the
// producers) and transformCount concurrent encoders (the transform
// workers) pulling from one shared queue, then multiplexing the encoded
// rows back onto w in strict partition order so output is deterministic
// regardless of which partition happens to read fastest. Producers and
// transform workers are independently sized: a worker is never pinned to a
// single partition, so partition 0 always keeps making progress even when
// transformCount < partitionCount.
type Pipeline struct {
	recordDB       *db.RecordDB
	partitionCount int
	transformCount int
	queueDepth     int
}

// NewPipeline builds a Pipeline bounded by the configured worker and queue
// sizes.
func NewPipeline(recordDB *db.RecordDB, partitionCount, transformCount, queueDepth int) *Pipeline {
	if partitionCount < 1 {
		partitionCount = 1
	}
	if transformCount < 1 {
		transformCount = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}
	return &Pipeline{recordDB: recordDB, partitionCount: partitionCount, transformCount: transformCount, queueDepth: queueDepth}
}

// Stream writes the RFC 4180 CSV encoding of every record matching
// (formatID, whereSQL, whereArgs) to w: a quoted header row in schema
// column order, then the data rows in deterministic partition order.
// Cancelling ctx (e.g. on client disconnect) stops every producer and
// transform worker. Stream returns the first error any stage hit (ctx.Err()
// when a stage observed the cancellation); a cancellation that no stage
// observed returns nil.
func (p *Pipeline) Stream(ctx context.Context, w io.Writer, format *models.Format, whereSQL string, whereArgs []interface{}) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := writeHeader(w, format); err != nil {
		return err
	}

	partitions := p.partitionCount
	encodedChs := make([]chan []string, partitions)
	var errOnce sync.Once
	var firstErr error
	setErr := func(err error) {
		if err == nil {
			return
		}
		errOnce.Do(func() { firstErr = err })
		cancel()
	}

	for part := range encodedChs {
		encodedChs[part] = make(chan []string, p.queueDepth)
	}

	// One shared raw queue across every partition: transform workers pull
	// whichever item is ready next, so a worker is never stuck waiting on
	// a partition the collector hasn't reached yet.
	rawCh := make(chan streamItem, p.queueDepth)
	var producerWg sync.WaitGroup
	for part := 0; part < partitions; part++ {
		producerWg.Add(1)
		go func(partition int) {
			defer producerWg.Done()
			if err := p.produce(ctx, format.ID, whereSQL, whereArgs, partition, partitions, rawCh); err != nil {
				setErr(err)
			}
		}(part)
	}
	go func() {
		producerWg.Wait()
		close(rawCh)
	}()

	var workerWg sync.WaitGroup
	for i := 0; i < p.transformCount; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for item := range rawCh {
				row, err := encodeRow(format, item.rec)
				if err != nil {
					setErr(err)
					continue
				}
				select {
				case encodedChs[item.partition] <- row:
				case <-ctx.Done():
				}
			}
		}()
	}
	go func() {
		workerWg.Wait()
		for _, ch := range encodedChs {
			close(ch)
		}
	}()

	// Collector: drain each partition's channel in full before moving to
	// the next, so the bytes on the wire are deterministic while producers
	// and transform workers still run concurrently ahead of the collector.
	csvWriter := csv.NewWriter(w)
	csvWriter.UseCRLF = true
	for part := 0; part < partitions; part++ {
		for row := range encodedChs[part] {
			if err := csvWriter.Write(row); err != nil {
				setErr(err)
			}
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		setErr(err)
	}

	producerWg.Wait()
	workerWg.Wait()

	if firstErr != nil {
		logger.Stream().Error().Err(firstErr).Int64("formatId", format.ID).Msg("csv stream aborted")
		return firstErr
	}
	if ctx.Err() == context.Canceled {
		return nil
	}
	return ctx.Err()
}

// produce opens a server-side cursor over one id-modulo partition and
// pushes every row onto rawCh tagged with its partition, in ascending id
// order.
func (p *Pipeline) produce(ctx context.Context, formatID int64, whereSQL string, whereArgs []interface{}, partition, partitionCount int, rawCh chan<- streamItem) error {
	// Placeholder indices for the partition predicate continue on from the
	// caller's whereArgs, which themselves continue on from the leading
	// $1 formatID placeholder StreamRecordsPartition binds internally.
	offset := len(whereArgs) + 2
	partitionSQL := fmt.Sprintf("AND id %% $%d = $%d", offset, offset+1)
	partitionArgs := []interface{}{int64(partitionCount), int64(partition)}

	rows, err := p.recordDB.StreamRecordsPartition(ctx, formatID, whereSQL, whereArgs, partitionSQL, partitionArgs)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := db.ScanRecord(rows)
		if err != nil {
			return err
		}
		select {
		case rawCh <- streamItem{partition: partition, rec: rec}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return rows.Err()
}

// writeHeader writes the mandatory quoted header row, in schema column
// order, followed by a CRLF.
func writeHeader(w io.Writer, format *models.Format) error {
	names := format.ColumnNames()
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = `"` + n + `"`
	}
	line := ""
	for i, q := range quoted {
		if i > 0 {
			line += ","
		}
		line += q
	}
	_, err := io.WriteString(w, line+"\r\n")
	return err
}

// encodeRow projects one record's data into a CSV row in schema column
// order. Numbers are serialized in shortest round-trip form; strings are
// passed through as-is, and encoding/csv quotes them only if they contain a
// comma, double quote, or line break.
func encodeRow(format *models.Format, rec *models.Record) ([]string, error) {
	cells := make([]string, len(format.Schema))
	for i, col := range format.Schema {
		value, ok := rec.Data[col.Name]
		if !ok {
			return nil, fmt.Errorf("record %d missing column %q", rec.ID, col.Name)
		}
		switch col.Kind {
		case models.KindNumber:
			n, ok := value.(float64)
			if !ok {
				return nil, fmt.Errorf("record %d column %q: expected number, got %T", rec.ID, col.Name, value)
			}
			cells[i] = strconv.FormatFloat(n, 'g', -1, 64)
		case models.KindString:
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("record %d column %q: expected string, got %T", rec.ID, col.Name, value)
			}
			cells[i] = s
		}
	}
	return cells, nil
}
