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

// Package tsv encodes query result rows as tab-separated values. Every
// executor formats rows through this package so the wire format is
// identical regardless of which backend produced them.
package tsv

import "strings"

// FormatLine joins values into one tab-separated line with no trailing
// newline. An empty string renders as an empty field. Any value already
// stringified to its natural printable form by the caller (decimal
// numbers, engine-native booleans, engine-emitted timestamps) is quoted
// here only if it contains a tab, newline, carriage return, or double
// quote, using RFC 4180-style
// minimal double-quoting: the field is wrapped in double quotes and any
// embedded double quote is doubled.
func FormatLine(values []string) string {
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = quoteIfNeeded(v)
	}
	return strings.Join(fields, "\t")
}

func quoteIfNeeded(v string) string {
	if !strings.ContainsAny(v, "\t\n\r\"") {
		return v
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range v {
		if r == '"' {
			b.WriteByte('"')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// FormatStream renders a full result as TSV: a header line (if columns is
// non-empty) followed by one line per row, with no trailing newline.
func FormatStream(columns []string, rows [][]string) string {
	var lines []string
	if len(columns) > 0 {
		lines = append(lines, FormatLine(columns))
	}
	for _, row := range rows {
		lines = append(lines, FormatLine(row))
	}
	return strings.Join(lines, "\n")
}
