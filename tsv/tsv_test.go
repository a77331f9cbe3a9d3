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

package tsv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatLinePlain(t *testing.T) {
	assert.Equal(t, "1\tname\t", FormatLine([]string{"1", "name", ""}))
}

func TestFormatLineQuotesTab(t *testing.T) {
	assert.Equal(t, "\"has\ttab\"\tok", FormatLine([]string{"has\ttab", "ok"}))
}

func TestFormatLineQuotesNewline(t *testing.T) {
	assert.Equal(t, "\"line1\nline2\"", FormatLine([]string{"line1\nline2"}))
}

func TestFormatLineDoublesQuotes(t *testing.T) {
	assert.Equal(t, `"she said ""hi"""`, FormatLine([]string{`she said "hi"`}))
}

func TestFormatLineNoQuotingNeeded(t *testing.T) {
	assert.Equal(t, "plain value", FormatLine([]string{"plain value"}))
}

func TestFormatStreamWithHeader(t *testing.T) {
	out := FormatStream([]string{"id", "name"}, [][]string{{"1", "a"}, {"2", "b"}})
	assert.Equal(t, "id\tname\n1\ta\n2\tb", out)
}

func TestFormatStreamNoColumns(t *testing.T) {
	out := FormatStream(nil, [][]string{{"1", "a"}})
	assert.Equal(t, "1\ta", out)
}

func TestFormatStreamEmpty(t *testing.T) {
	out := FormatStream([]string{"id"}, nil)
	assert.Equal(t, "id", out)
}

func TestFormatStreamNoTrailingNewline(t *testing.T) {
	out := FormatStream([]string{"id"}, [][]string{{"1"}})
	assert.False(t, len(out) > 0 && out[len(out)-1] == '\n')
}
