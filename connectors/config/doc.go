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
Package config loads a YAML file holding a list of connection records and
turns them into validated base.ConnectionDescriptor values.

# File shape

	- connection_name: reporting
	  type: postgresql
	  implementation: native
	  servers:
	    - db.internal:5432
	  default_database: analytics
	  allowed_databases: [analytics, staging]
	  username: reporting_ro
	  password_env: REPORTING_DB_PASSWORD
	  query_timeout: 120
	  connection_timeout: 10

The root is a plain list; each record names itself via connection_name.
`db` is an alias for `default_database` (they must agree if both are
given); `databases` is an alias for `allowed_databases` (at most one of
the two may be given). A server entry may be a "host:port" string, a
bare "host" string (the port then defaults from the connection's type
and implementation), or a {host, port} mapping.

${VAR_NAME} and ${VAR_NAME:-default} references anywhere in the file are
expanded against the process environment before parsing. The decoder is
strict about unknown fields, so a stray ssh_tunnel.enabled: false (a
legacy flag this implementation does not support) fails the load instead
of being silently dropped.

# Credential resolution

Passwords resolve through Resolve, in precedence order: an explicit
literal field, an explicit named env var, then the convention var
DB_PASSWORD_<NAME> (SSH_PASSWORD_<NAME> for a tunnel's password). An
explicit password_env that doesn't resolve in the environment is a
config error, not a silently empty password. All env lookups go through
an injected EnvLookup rather than reading os.Environ directly, so
validation is pure and testable; OSEnvLookup is the default wired in by
cmd/gateway.

# Aggregate validation

Resolve validates every record independently and collects every failure
into one *base.ConfigError rather than stopping at the first bad record,
so an operator sees the full list of problems in one pass. A
connection_name reused by more than one record is itself a failure.
*/
package config
