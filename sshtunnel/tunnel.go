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

package sshtunnel

import "context"

// Tunnel is the contract both the in-process and spawned-ssh
// implementations satisfy: Start binds an ephemeral local port that
// proxies every byte stream to (remoteHost, remotePort) via the bastion;
// Stop tears the tunnel down and is safe to call more than once.
type Tunnel interface {
	// Start blocks until the tunnel is ready to accept connections, or
	// the descriptor's ssh_timeout_s budget expires, or ctx is canceled.
	// It returns the ephemeral local port bound on 127.0.0.1.
	Start(ctx context.Context, remoteHost string, remotePort int) (localPort int, err error)

	// Stop closes the tunnel. Idempotent: calling Stop on an
	// already-stopped or never-started tunnel is a no-op.
	Stop() error
}
