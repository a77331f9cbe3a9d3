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
Package postgres implements base.Executor against PostgreSQL, in two
flavors sharing one descriptor:

NativeExecutor opens one pgx connection per Execute call, sets
default_transaction_read_only and statement_timeout, and streams rows
through streamcap.Budget. CLIExecutor instead drives the psql binary,
wrapping the sanitized query in a scripted read-only transaction and
parsing its tab-separated stdout.

Both tunnel through sshtunnel when the connection descriptor carries an
SSH bastion, and both tear the tunnel and connection down on every exit
path — success, truncation, timeout, or error.

	exec, err := postgres.NewNativeExecutor(descriptor)
	result, err := exec.Execute(ctx, base.Request{SQL: "select 1", Database: "analytics"})
*/
package postgres
