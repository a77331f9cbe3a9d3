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
Package sshtunnel forwards a local TCP port to a remote host:port through
an SSH bastion, so a query executor can dial 127.0.0.1:<local_port> as if
it were talking directly to the database.

Two implementations share the Tunnel interface: InProcess uses
golang.org/x/crypto/ssh directly; Spawned shells out to the system ssh
client (and optionally sshpass for password auth). Both are driven
identically:

	tun := sshtunnel.NewInProcess(desc.SSH)
	localPort, err := tun.Start(ctx, remoteHost, remotePort)
	...
	defer tun.Stop()

Start must complete within the descriptor's SSHTimeout or return
*base.SshTimeoutError. Stop is idempotent. Only the ClickHouse native
executor ever falls back from InProcess to Spawned, and only on a
*base.SshAuthError — no other call site generalizes this.
*/
package sshtunnel
