// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package streamcap provides the byte-budget accumulator every executor
// streams rows through, and the hard-deadline wrapper the dispatcher
// composes around a full execute call.
package streamcap

import (
	"context"
	"fmt"
	"time"

	"github.com/readonlysql/gateway/connectors/base"
	"github.com/readonlysql/gateway/tsv"
)

// TruncationNotice is appended verbatim as the final line whenever a
// stream is cut short by the byte budget.
func TruncationNotice(limit int64) string {
	return fmt.Sprintf("[RESULT TRUNCATED: exceeded max_result_bytes=%d bytes]", limit)
}

// Budget accumulates a TSV stream one line at a time, enforcing
// max_result_bytes: the header is always admitted regardless of its own
// size, and any row that would push the running total over the limit is
// rejected before being appended rather than after.
type Budget struct {
	limit     int64 // 0 disables the cap
	total     int64
	lines     []string
	truncated bool
	rowCount  int
}

// NewBudget constructs a Budget for the given max_result_bytes. A limit
// of 0 disables the cap entirely.
func NewBudget(limit int64) *Budget {
	return &Budget{limit: limit}
}

// AddHeader admits the header line unconditionally, per §4.5's rule that
// truncation only ever applies starting from the first row.
func (b *Budget) AddHeader(columns []string) {
	line := tsv.FormatLine(columns)
	b.lines = append(b.lines, line)
	b.total += int64(len(line))
}

// AddRow attempts to admit one row. It returns false once the budget is
// exhausted; the caller must stop reading further rows as soon as false
// is returned.
func (b *Budget) AddRow(values []string) bool {
	if b.truncated {
		return false
	}
	line := tsv.FormatLine(values)
	// +1 accounts for the newline separator before this line.
	newTotal := b.total + int64(len(line)) + 1
	if b.limit > 0 && newTotal > b.limit && len(b.lines) > 0 {
		b.truncated = true
		return false
	}
	b.lines = append(b.lines, line)
	b.total = newTotal
	b.rowCount++
	return true
}

// AddRawHeader admits an already-TSV-encoded header line verbatim,
// unconditionally, for callers (the CLI executors) whose subprocess
// already emits TSV text rather than structured values.
func (b *Budget) AddRawHeader(line string) {
	b.lines = append(b.lines, line)
	b.total += int64(len(line))
}

// AddRawLine admits an already-TSV-encoded line verbatim, subject to the
// same budget rule as AddRow: rejected before being appended if it would
// push the running total past the limit.
func (b *Budget) AddRawLine(line string) bool {
	if b.truncated {
		return false
	}
	newTotal := b.total + int64(len(line)) + 1
	if b.limit > 0 && newTotal > b.limit && len(b.lines) > 0 {
		b.truncated = true
		return false
	}
	b.lines = append(b.lines, line)
	b.total = newTotal
	b.rowCount++
	return true
}

// Result assembles the final Result: the accumulated lines joined with
// newlines, plus the truncation notice if the budget was exhausted.
func (b *Budget) Result() base.Result {
	if b.truncated {
		b.lines = append(b.lines, TruncationNotice(b.limit))
	}
	var header string
	var rows []string
	if len(b.lines) > 0 {
		header = b.lines[0]
		rows = b.lines[1:]
	}
	var truncatedAt int64
	if b.truncated {
		truncatedAt = b.limit
	}
	return base.Result{
		Header:      header,
		Rows:        rows,
		RowCount:    b.rowCount,
		Truncated:   b.truncated,
		TruncatedAt: truncatedAt,
	}
}

// WithHardDeadline runs op under a context that is canceled after d
// elapses. If op does not return before the deadline, op's context is
// canceled (so op can tear down its own resources) and HardTimeoutError
// is returned. A domain error returned by op — one whose message already
// carries a backend prefix such as PostgreSQL:/ClickHouse:/psql:/
// clickhouse-client:/SSH: — propagates unchanged even if it happens to
// race with the deadline; only a pure deadline win surfaces as
// HardTimeoutError.
func WithHardDeadline(ctx context.Context, connection string, d time.Duration, op func(ctx context.Context) error) error {
	deadlineCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(deadlineCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-deadlineCtx.Done():
		<-done // op observes cancellation and returns; its error is discarded
		if deadlineCtx.Err() == context.DeadlineExceeded {
			return &base.HardTimeoutError{Connection: connection, Timeout: d}
		}
		return deadlineCtx.Err()
	}
}
