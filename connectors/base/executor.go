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

package base

import "context"

// Request is the normalized input to Execute, already resolved against a
// ConnectionDescriptor: Database and Server have passed ResolveDatabase and
// ResolveEndpoint, so executors never re-validate them.
type Request struct {
	SQL      string
	Database string
	Server   Endpoint

	// MaxResultBytesOverride, if non-nil, replaces the connection's
	// configured max_result_bytes for this call only. The dispatcher sets
	// this to disable the cap for file_path mode (§4.7); it is nil for
	// every ordinary call.
	MaxResultBytesOverride *int64
}

// ResultByteLimit returns the byte budget an executor should enforce for
// this request: the override if one was supplied, otherwise desc's
// configured limit.
func (r Request) ResultByteLimit(desc *ConnectionDescriptor) int64 {
	if r.MaxResultBytesOverride != nil {
		return *r.MaxResultBytesOverride
	}
	return desc.MaxResultBytes
}

// Result is the streamed output of a query: a TSV-encoded header line,
// zero or more TSV-encoded row lines, and bookkeeping about whether the
// byte budget cut the stream short.
type Result struct {
	Header      string
	Rows        []string
	RowCount    int
	Truncated   bool
	TruncatedAt int64 // max_result_bytes that triggered truncation, 0 if none
}

// Executor runs one query against one connection and returns its streamed,
// budget-capped result. It is implemented by exactly four concrete types:
// postgres.NativeExecutor, postgres.CLIExecutor, clickhouse.NativeExecutor,
// and clickhouse.CLIExecutor. The registry selects which one to use from a
// descriptor's Engine and Implementation; callers never type-switch on an
// Executor themselves.
type Executor interface {
	// Execute runs req.SQL and streams its result, enforcing the
	// connection's query timeout and byte budget. ctx additionally carries
	// the caller's hard-timeout deadline.
	Execute(ctx context.Context, req Request) (Result, error)

	// Descriptor returns the connection this executor was built from.
	Descriptor() *ConnectionDescriptor
}
