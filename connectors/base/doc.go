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

/*
Package base provides the shared types that every query executor and the
connection registry build on: the immutable connection descriptor, the
Executor interface the four (engine x implementation) executors satisfy,
and the error taxonomy returned to callers.

# Connection descriptors

A ConnectionDescriptor is built once by the registry loader and never
mutated afterward:

	desc := &base.ConnectionDescriptor{
	    Name:              "reporting",
	    Engine:            base.EnginePostgreSQL,
	    Implementation:    base.ImplementationNative,
	    Servers:           []base.Endpoint{{Host: "db.internal", Port: 5432}},
	    DefaultDatabase:   "analytics",
	    AllowedDatabases:  map[string]struct{}{"analytics": {}},
	    Username:          "reporting_ro",
	    QueryTimeout:      120 * time.Second,
	    ConnectionTimeout: 10 * time.Second,
	}

# Executors

Every query executor implements Executor with two methods:

	type Executor interface {
	    Execute(ctx context.Context, req Request) (Result, error)
	    Descriptor() *ConnectionDescriptor
	}

This is a closed sum of four concrete types — postgres.NativeExecutor,
postgres.CLIExecutor, clickhouse.NativeExecutor, clickhouse.CLIExecutor —
dispatched on by the registry/dispatcher, not by further interface
assertions.

# Errors

Every error an executor or the registry can return is a distinct type in
this package (ConfigError, ConnectionNotFoundError, ...) so callers can
use errors.As to distinguish them. Each type's Error() string is the
human-readable message returned across the tool boundary, preserving the
backend-identifying prefix (PostgreSQL:, ClickHouse:, psql:,
clickhouse-client:, SSH:) where the taxonomy calls for one.
*/
package base
