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

import (
	"context"
	"errors"

	"github.com/readonlysql/gateway/connectors/base"
)

// Target is the (host, port) an executor should dial after EstablishIfConfigured
// runs: either the connection's own endpoint, or 127.0.0.1 and an ephemeral
// local port bound by a tunnel.
type Target struct {
	Host string
	Port int
}

// EstablishIfConfigured starts a tunnel to (remoteHost, remotePort) when
// desc is non-nil, returning the local target to dial and a Tunnel the
// caller must Stop when done. When desc is nil it returns the original
// endpoint unchanged and a nil Tunnel, so every executor can call this
// unconditionally instead of branching on whether SSH is configured.
func EstablishIfConfigured(ctx context.Context, desc *base.SSHDescriptor, remoteHost string, remotePort int) (Target, Tunnel, error) {
	if desc == nil {
		return Target{Host: remoteHost, Port: remotePort}, nil, nil
	}

	tun := NewInProcess(desc)
	localPort, err := tun.Start(ctx, remoteHost, remotePort)
	if err != nil {
		return Target{}, nil, err
	}
	return Target{Host: "127.0.0.1", Port: localPort}, tun, nil
}

// EstablishWithAuthFallback is the same as EstablishIfConfigured except
// that, when the in-process tunnel fails specifically with
// *base.SshAuthError, it retries once with the spawned-ssh
// implementation before giving up. Only the ClickHouse native executor
// calls this; every other executor uses EstablishIfConfigured.
func EstablishWithAuthFallback(ctx context.Context, desc *base.SSHDescriptor, remoteHost string, remotePort int) (Target, Tunnel, error) {
	if desc == nil {
		return Target{Host: remoteHost, Port: remotePort}, nil, nil
	}

	tun := NewInProcess(desc)
	localPort, err := tun.Start(ctx, remoteHost, remotePort)
	if err == nil {
		return Target{Host: "127.0.0.1", Port: localPort}, tun, nil
	}

	var authErr *base.SshAuthError
	if !errors.As(err, &authErr) {
		return Target{}, nil, err
	}

	spawned := NewSpawned(desc)
	localPort, spawnErr := spawned.Start(ctx, remoteHost, remotePort)
	if spawnErr != nil {
		return Target{}, nil, spawnErr
	}
	return Target{Host: "127.0.0.1", Port: localPort}, spawned, nil
}
