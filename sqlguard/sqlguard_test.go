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

package sqlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readonlysql/gateway/connectors/base"
)

func TestSanitizeAllowsPlainSelect(t *testing.T) {
	got, err := Sanitize("  select * from widgets  ")
	require.NoError(t, err)
	assert.Equal(t, "select * from widgets", got)
}

func TestSanitizeAllowsSingleTrailingSemicolon(t *testing.T) {
	got, err := Sanitize("select 1;")
	require.NoError(t, err)
	assert.Equal(t, "select 1;", got)
}

func TestSanitizeAllowsTrailingSemicolonThenComment(t *testing.T) {
	_, err := Sanitize("select 1; -- trailing note\n")
	require.NoError(t, err)
}

func TestSanitizeAllowsTrailingSemicolonThenBlockComment(t *testing.T) {
	_, err := Sanitize("select 1; /* done */")
	require.NoError(t, err)
}

func TestSanitizeRejectsEmpty(t *testing.T) {
	_, err := Sanitize("   ")
	require.Error(t, err)
	var violation *base.ReadOnlyViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, base.ViolationMultiStatement, violation.Kind)
}

func TestSanitizeRejectsMultipleStatements(t *testing.T) {
	_, err := Sanitize("select 1; drop table widgets;")
	require.Error(t, err)
	var violation *base.ReadOnlyViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, base.ViolationMultiStatement, violation.Kind)
}

func TestSanitizeRejectsContentAfterSemicolon(t *testing.T) {
	_, err := Sanitize("select 1; select 2")
	require.Error(t, err)
	var violation *base.ReadOnlyViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, base.ViolationMultiStatement, violation.Kind)
}

func TestSanitizeIgnoresSemicolonInStringLiteral(t *testing.T) {
	got, err := Sanitize(`select 'a;b' from widgets`)
	require.NoError(t, err)
	assert.Equal(t, `select 'a;b' from widgets`, got)
}

func TestSanitizeIgnoresEscapedQuoteInStringLiteral(t *testing.T) {
	_, err := Sanitize(`select 'it''s; fine' from widgets`)
	require.NoError(t, err)
}

func TestSanitizeIgnoresSemicolonInQuotedIdentifier(t *testing.T) {
	_, err := Sanitize(`select "weird;name" from widgets`)
	require.NoError(t, err)
}

func TestSanitizeIgnoresSemicolonInLineComment(t *testing.T) {
	_, err := Sanitize("select 1 -- comment with ; inside\nfrom widgets")
	require.NoError(t, err)
}

func TestSanitizeIgnoresSemicolonInBlockComment(t *testing.T) {
	_, err := Sanitize("select 1 /* block ; comment */ from widgets")
	require.NoError(t, err)
}

func TestSanitizeIgnoresSemicolonInDollarQuote(t *testing.T) {
	_, err := Sanitize(`select $tag$contains ; semicolon$tag$ as x`)
	require.NoError(t, err)
}

func TestSanitizeIgnoresSemicolonInBareDollarQuote(t *testing.T) {
	_, err := Sanitize(`select $$has ; a semicolon$$ as x`)
	require.NoError(t, err)
}

func TestSanitizeRejectsTransactionControlVerbs(t *testing.T) {
	cases := []string{
		"COMMIT",
		"commit",
		"ROLLBACK",
		"ABORT",
		"END",
		"BEGIN",
		"BEGIN;",
		"begin;",
		"COMMIT;",
		"START TRANSACTION",
		"start   transaction",
		"SET TRANSACTION ISOLATION LEVEL SERIALIZABLE",
		"SET SESSION CHARACTERISTICS AS TRANSACTION READ WRITE",
		"SAVEPOINT sp1",
		"RELEASE SAVEPOINT sp1",
		"ROLLBACK TO SAVEPOINT sp1",
		"PREPARE TRANSACTION 'foo'",
		"COMMIT PREPARED 'foo'",
		"ROLLBACK PREPARED 'foo'",
	}
	for _, sql := range cases {
		t.Run(sql, func(t *testing.T) {
			_, err := Sanitize(sql)
			require.Error(t, err)
			var violation *base.ReadOnlyViolationError
			require.ErrorAs(t, err, &violation)
			assert.Equal(t, base.ViolationTransactionControl, violation.Kind)
		})
	}
}

func TestSanitizeAllowsVerbAsSubstring(t *testing.T) {
	_, err := Sanitize("select * from commit_log")
	require.NoError(t, err)
}
