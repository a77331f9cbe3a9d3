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

import (
	"fmt"
	"strings"
	"time"
)

// ConfigError aggregates every per-connection validation failure collected
// while loading a registry. The whole load fails with one ConfigError
// rather than stopping at the first bad record.
type ConfigError struct {
	Messages []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", strings.Join(e.Messages, "; "))
}

// ConnectionNotFoundError is returned when a request names a connection the
// registry doesn't have.
type ConnectionNotFoundError struct {
	Name  string
	Valid []string
}

func (e *ConnectionNotFoundError) Error() string {
	return fmt.Sprintf("connection %q not found; valid connections: %s", e.Name, strings.Join(e.Valid, ", "))
}

// DatabaseNotAllowedError is returned when a request names a database
// outside a connection's allowlist.
type DatabaseNotAllowedError struct {
	Connection string
	Database   string
	Allowed    []string
}

func (e *DatabaseNotAllowedError) Error() string {
	return fmt.Sprintf("database %q is not allowed on connection %q; allowed databases: %s",
		e.Database, e.Connection, strings.Join(e.Allowed, ", "))
}

// ServerNotFoundError is returned when a request names a server hostname
// not present in a connection's servers list.
type ServerNotFoundError struct {
	Connection string
	Server     string
	Available  []string
}

func (e *ServerNotFoundError) Error() string {
	return fmt.Sprintf("server %q not found on connection %q; available servers: %s",
		e.Server, e.Connection, strings.Join(e.Available, ", "))
}

// ReadOnlyViolationKind classifies why the SQL guard (C1) refused a query.
type ReadOnlyViolationKind string

const (
	ViolationMultiStatement     ReadOnlyViolationKind = "multi_statement"
	ViolationTransactionControl ReadOnlyViolationKind = "transaction_control"
)

// ReadOnlyViolationError is returned by the PostgreSQL-CLI path's pre-flight
// guard (§4.1) when the submitted SQL could escape the scripted read-only
// transaction.
type ReadOnlyViolationError struct {
	Kind   ReadOnlyViolationKind
	Detail string
}

func (e *ReadOnlyViolationError) Error() string {
	switch e.Kind {
	case ViolationMultiStatement:
		return fmt.Sprintf("query contains multiple SQL statements: %s", e.Detail)
	case ViolationTransactionControl:
		return fmt.Sprintf("query begins with a transaction control statement: %s", e.Detail)
	default:
		return fmt.Sprintf("read-only violation: %s", e.Detail)
	}
}

// ConnectionTimeoutError is returned when opening the database connection
// exceeds connection_timeout.
type ConnectionTimeoutError struct {
	Connection string
	Timeout    time.Duration
	Cause      error
}

func (e *ConnectionTimeoutError) Error() string {
	return fmt.Sprintf("connection %q timed out opening connection after %s", e.Connection, e.Timeout)
}

func (e *ConnectionTimeoutError) Unwrap() error { return e.Cause }

// QueryTimeoutError is returned when query execution exceeds
// query_timeout, whether the server or the client noticed first.
type QueryTimeoutError struct {
	Connection string
	Timeout    time.Duration
	Cause      error
}

func (e *QueryTimeoutError) Error() string {
	return fmt.Sprintf("connection %q query timed out after %s", e.Connection, e.Timeout)
}

func (e *QueryTimeoutError) Unwrap() error { return e.Cause }

// SshTimeoutError is returned when the SSH handshake exceeds
// ssh_timeout_s.
type SshTimeoutError struct {
	Host    string
	Timeout time.Duration
	Cause   error
}

func (e *SshTimeoutError) Error() string {
	return fmt.Sprintf("SSH: tunnel to %q timed out after %s", e.Host, e.Timeout)
}

func (e *SshTimeoutError) Unwrap() error { return e.Cause }

// HardTimeoutError is returned only by the hard-deadline wrapper itself,
// never rewrapping a domain error that happened to race with it.
type HardTimeoutError struct {
	Connection string
	Timeout    time.Duration
}

func (e *HardTimeoutError) Error() string {
	return fmt.Sprintf("connection %q exceeded its hard timeout of %s", e.Connection, e.Timeout)
}

// ExecutionError wraps a backend error, preserving vendor diagnostics
// verbatim and prefixed with the backend identifier.
type ExecutionError struct {
	Backend string // "PostgreSQL", "ClickHouse", "psql", "clickhouse-client"
	Message string
	Cause   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Backend, e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// SshAuthError is returned when SSH authentication fails. It is the only
// error class that may trigger the ClickHouse-native executor's
// tunnel-implementation fallback.
type SshAuthError struct {
	Host  string
	Cause error
}

func (e *SshAuthError) Error() string {
	return fmt.Sprintf("SSH: authentication failed for %q: %v", e.Host, e.Cause)
}

func (e *SshAuthError) Unwrap() error { return e.Cause }

// SshError is any other tunnel-establishment failure.
type SshError struct {
	Host  string
	Cause error
}

func (e *SshError) Error() string {
	return fmt.Sprintf("SSH: tunnel to %q failed: %v", e.Host, e.Cause)
}

func (e *SshError) Unwrap() error { return e.Cause }

// ToolMissingError is returned when a required external binary (psql,
// clickhouse-client, ssh, sshpass) is not on PATH.
type ToolMissingError struct {
	Tool string
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("required external tool %q not found on PATH", e.Tool)
}

// DataSizeLimitExceededError is reserved for callers that want a whole
// result rejected rather than truncated. The executors in this
// implementation default to truncation-plus-notice (§7), so this type is
// not raised by them; it exists so a future strict mode has a home.
type DataSizeLimitExceededError struct {
	Connection string
	LimitBytes int64
}

func (e *DataSizeLimitExceededError) Error() string {
	return fmt.Sprintf("connection %q result exceeded max_result_bytes=%d bytes", e.Connection, e.LimitBytes)
}

// FileExistsError is returned by the dispatcher's file_path mode when the
// target path already exists.
type FileExistsError struct {
	Path string
}

func (e *FileExistsError) Error() string {
	return fmt.Sprintf("file already exists: %s", e.Path)
}

// FileWriteError is returned by the dispatcher's file_path mode when
// writing the result file fails.
type FileWriteError struct {
	Path  string
	Cause error
}

func (e *FileWriteError) Error() string {
	return fmt.Sprintf("failed to write result file %s: %v", e.Path, e.Cause)
}

func (e *FileWriteError) Unwrap() error { return e.Cause }
