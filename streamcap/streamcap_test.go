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

package streamcap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readonlysql/gateway/connectors/base"
)

func TestBudgetUnlimitedAdmitsEverything(t *testing.T) {
	b := NewBudget(0)
	b.AddHeader([]string{"id", "name"})
	for i := 0; i < 1000; i++ {
		assert.True(t, b.AddRow([]string{"1", "a very long value indeed"}))
	}
	res := b.Result()
	assert.False(t, res.Truncated)
	assert.Equal(t, 1000, res.RowCount)
}

func TestBudgetHeaderAlwaysAdmittedEvenOverLimit(t *testing.T) {
	b := NewBudget(1)
	b.AddHeader([]string{"a_very_long_header_column_name"})
	res := b.Result()
	assert.Equal(t, "a_very_long_header_column_name", res.Header)
	assert.False(t, res.Truncated)
}

func TestBudgetTruncatesBeforeOverflowingRow(t *testing.T) {
	b := NewBudget(10)
	b.AddHeader([]string{"id"})
	ok := b.AddRow([]string{"1234567890123"})
	assert.False(t, ok)
	res := b.Result()
	assert.True(t, res.Truncated)
	assert.Equal(t, 0, res.RowCount)
	require.NotEmpty(t, res.Rows)
	assert.Equal(t, TruncationNotice(10), res.Rows[len(res.Rows)-1])
}

func TestBudgetAdmitsRowsUntilExhausted(t *testing.T) {
	b := NewBudget(20)
	b.AddHeader([]string{"n"})
	admitted := 0
	for i := 0; i < 100; i++ {
		if !b.AddRow([]string{"1"}) {
			break
		}
		admitted++
	}
	res := b.Result()
	assert.True(t, res.Truncated)
	assert.Greater(t, admitted, 0)
	assert.Equal(t, admitted, res.RowCount)
}

func TestBudgetStopsAcceptingAfterTruncation(t *testing.T) {
	b := NewBudget(5)
	b.AddHeader([]string{"n"})
	b.AddRow([]string{"12345678901234567890"})
	assert.False(t, b.AddRow([]string{"1"}))
}

func TestAddRawHeaderAlwaysAdmittedEvenOverLimit(t *testing.T) {
	b := NewBudget(1)
	b.AddRawHeader("id\tname")
	res := b.Result()
	assert.Equal(t, "id\tname", res.Header)
	assert.False(t, res.Truncated)
}

func TestAddRawLineTruncatesBeforeOverflowing(t *testing.T) {
	b := NewBudget(10)
	b.AddRawHeader("id")
	ok := b.AddRawLine("1234567890123")
	assert.False(t, ok)
	res := b.Result()
	assert.True(t, res.Truncated)
	assert.Equal(t, TruncationNotice(10), res.Rows[len(res.Rows)-1])
}

func TestAddRawLineStopsAcceptingAfterTruncation(t *testing.T) {
	b := NewBudget(5)
	b.AddRawHeader("n")
	b.AddRawLine("12345678901234567890")
	assert.False(t, b.AddRawLine("1"))
}

func TestTruncationNoticeFormat(t *testing.T) {
	assert.Equal(t, "[RESULT TRUNCATED: exceeded max_result_bytes=1000 bytes]", TruncationNotice(1000))
}

func TestWithHardDeadlineReturnsResultWhenFast(t *testing.T) {
	err := WithHardDeadline(context.Background(), "conn", time.Second, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestWithHardDeadlinePropagatesDomainError(t *testing.T) {
	domainErr := &base.ExecutionError{Backend: "PostgreSQL", Message: "permission denied"}
	err := WithHardDeadline(context.Background(), "conn", time.Second, func(ctx context.Context) error {
		return domainErr
	})
	assert.ErrorIs(t, err, domainErr)
}

func TestWithHardDeadlineTimesOut(t *testing.T) {
	err := WithHardDeadline(context.Background(), "conn", 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	var hardTimeout *base.HardTimeoutError
	require.ErrorAs(t, err, &hardTimeout)
	assert.Equal(t, "conn", hardTimeout.Connection)
}

func TestWithHardDeadlineDoesNotLeakGoroutineOnTimeout(t *testing.T) {
	released := make(chan struct{})
	err := WithHardDeadline(context.Background(), "conn", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		close(released)
		return errors.New("torn down")
	})
	<-released
	var hardTimeout *base.HardTimeoutError
	require.ErrorAs(t, err, &hardTimeout)
}
