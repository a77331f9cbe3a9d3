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
Package clickhouse implements base.Executor against ClickHouse, in two
flavors sharing one descriptor and one port-remapping table:

NativeExecutor dials the HTTP/HTTPS interface via clickhouse-go/v2,
setting readonly and max_execution_time as server-side settings and
streaming rows through streamcap.Budget. CLIExecutor instead drives the
clickhouse-client binary against the native TCP interface, parsing its
TabSeparatedWithNames stdout.

Both remap the connection descriptor's configured port to the port
their interface actually needs — EffectivePort is the single place that
decision is made, so list_connections and the executors never disagree
about which port is in play. Both tunnel through sshtunnel when the
descriptor carries an SSH bastion; NativeExecutor additionally retries
the tunnel once with the spawned-ssh implementation if the in-process
tunnel's authentication specifically fails, per sshtunnel's documented
single fallback call site.

	exec, err := clickhouse.NewNativeExecutor(descriptor)
	result, err := exec.Execute(ctx, base.Request{SQL: "select 1", Database: "events"})
*/
package clickhouse
