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

// Package dispatcher exposes the two read-only tools a gateway process
// offers — list_connections and run_query_read_only — over a
// newline-delimited JSON-RPC stdio transport.
//
// Dispatcher holds the operation logic: registry lookup, database/server
// resolution, request-id assignment, the hard-deadline wrapper, and
// file_path mode. Server (stdio.go) holds the wire framing: the
// initialize handshake and the tools/list and tools/call loop. Splitting
// them keeps the operations testable without a reader/writer in the
// loop, and keeps the framing free of gateway-specific logic.
package dispatcher
