// Package loader implements the batched INSERT buffer that pass 2 of the
// table stager writes tuples into.
package loader

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"ldp/internal/metrics"
)

// Execer is the narrow database dependency InsertBatcher needs: run one SQL
// statement within the table's current transaction. internal/dbconn.Tx
// satisfies this.
type Execer interface {
	Exec(ctx context.Context, sql string) error
}

// flushThresholdBytes is the accumulated INSERT text size at which
// InsertBatcher flushes its buffer rather than growing it further.
const flushThresholdBytes = 16_500_000

// InsertBatcher accumulates the text of an "INSERT INTO <loading table>
// VALUES (...),(...),..." statement and flushes it to the database once the
// buffer crosses flushThresholdBytes, starting a fresh statement afterward.
// It is scoped to a single table's load within a single transaction.
type InsertBatcher struct {
	conn         Execer
	loadingTable string
	job          string

	buf         []byte
	tupleCount  int
	totalTuples int64
	totalBytes  int64
	flushes     int
}

// New creates an InsertBatcher that writes to loadingTable (the table's
// fully-qualified staging name) over conn. job is used only for progress
// logging.
func New(conn Execer, loadingTable, job string) *InsertBatcher {
	b := &InsertBatcher{conn: conn, loadingTable: loadingTable, job: job}
	b.startStatement()
	return b
}

func (b *InsertBatcher) startStatement() {
	b.buf = append(b.buf[:0], "INSERT INTO "+b.loadingTable+" VALUES "...)
	b.tupleCount = 0
}

// Append adds one parenthesized tuple (as rendered by
// internal/stage.RenderTuple) to the buffer, then flushes if the buffer
// has crossed the size threshold.
func (b *InsertBatcher) Append(ctx context.Context, tuple string) error {
	if b.tupleCount > 0 {
		b.buf = append(b.buf, ',')
	}
	b.buf = append(b.buf, tuple...)
	b.tupleCount++
	b.totalTuples++

	if len(b.buf) > flushThresholdBytes {
		return b.Flush(ctx)
	}
	return nil
}

// Flush terminates and executes the current statement if it holds at least
// one tuple, then starts a fresh statement. It is a no-op when the buffer is
// empty (no tuples appended since the last flush).
func (b *InsertBatcher) Flush(ctx context.Context) error {
	if b.tupleCount == 0 {
		return nil
	}

	start := time.Now()
	n := b.tupleCount
	nbytes := len(b.buf) + 2 // account for the trailing ";\n" appended below

	b.buf = append(b.buf, ';', '\n')
	if err := b.conn.Exec(ctx, string(b.buf)); err != nil {
		return fmt.Errorf("loader: inserting into %s: %w", b.loadingTable, err)
	}

	b.totalBytes += int64(nbytes)
	b.flushes++

	elapsed := time.Since(start)
	rate := float64(n) / elapsed.Seconds()
	if elapsed <= 0 {
		rate = 0
	}
	log.Printf("loader: job=%s table=%s flushed tuples=%d bytes=%s duration=%s rate=%.0f/s",
		b.job, b.loadingTable, n, humanize.Bytes(uint64(nbytes)), elapsed, rate)
	metrics.RecordBatches(b.job, 1)

	b.startStatement()
	return nil
}

// TotalTuples reports how many tuples have been appended across the
// batcher's lifetime, flushed or not.
func (b *InsertBatcher) TotalTuples() int64 { return b.totalTuples }

// TotalBytes reports how many bytes of INSERT text have been sent to the
// database across all flushes so far.
func (b *InsertBatcher) TotalBytes() int64 { return b.totalBytes }
