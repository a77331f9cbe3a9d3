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
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/readonlysql/gateway/connectors/base"
	"github.com/readonlysql/gateway/runcmd"
)

// sshpassPasswordEnvVar is the env var sshpass reads the password from
// (-e mode), so the password never appears in the process argv.
const sshpassPasswordEnvVar = "SSHPASS"

// Spawned shells out to the system ssh client (or sshpass+ssh when only
// a password is configured) instead of holding the transport in-process.
// It is the fallback path EstablishWithAuthFallback takes when the
// InProcess tunnel fails with an authentication error (including a
// private key that the in-process parser cannot read).
type Spawned struct {
	desc   *base.SSHDescriptor
	runner runcmd.Runner

	mu     sync.Mutex
	handle runcmd.Handle
}

// NewSpawned builds a Spawned tunnel bound to desc.
func NewSpawned(desc *base.SSHDescriptor) *Spawned {
	return &Spawned{desc: desc, runner: runcmd.Exec{}}
}

func (t *Spawned) Start(ctx context.Context, remoteHost string, remotePort int) (int, error) {
	localPort, err := pickEphemeralPort()
	if err != nil {
		return 0, &base.SshError{Host: t.desc.Host, Cause: fmt.Errorf("reserving local port: %w", err)}
	}

	name, args, env, err := t.buildCommand(localPort, remoteHost, remotePort)
	if err != nil {
		return 0, err
	}

	handle, err := runcmd.StartLongRunning(ctx, name, args, env)
	if err != nil {
		if strings.Contains(err.Error(), "executable file not found") {
			return 0, &base.ToolMissingError{Tool: name}
		}
		return 0, &base.SshError{Host: t.desc.Host, Cause: err}
	}

	t.mu.Lock()
	t.handle = handle
	t.mu.Unlock()

	deadline := t.desc.SSHTimeout
	if deadline <= 0 {
		deadline = 5 * time.Second
	}
	if err := t.awaitReady(ctx, localPort, deadline, handle); err != nil {
		handle.Stop(2 * time.Second)
		return 0, err
	}

	return localPort, nil
}

// awaitReady probes the local port until it accepts connections, the
// process exits, or the tunnel timeout elapses.
func (t *Spawned) awaitReady(ctx context.Context, localPort int, deadline time.Duration, handle runcmd.Handle) error {
	exited := make(chan error, 1)
	go func() { exited <- handle.Wait() }()

	probeCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-exited:
			if err != nil {
				return &base.SshError{Host: t.desc.Host, Cause: fmt.Errorf("ssh exited: %w: %s", err, strings.TrimSpace(handle.Stderr()))}
			}
			return &base.SshError{Host: t.desc.Host, Cause: fmt.Errorf("ssh exited before becoming ready: %s", strings.TrimSpace(handle.Stderr()))}
		case <-probeCtx.Done():
			return &base.SshTimeoutError{Host: t.desc.Host, Timeout: deadline, Cause: probeCtx.Err()}
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", localPort), 200*time.Millisecond)
			if err == nil {
				conn.Close()
				return nil
			}
		}
	}
}

func (t *Spawned) Stop() error {
	t.mu.Lock()
	handle := t.handle
	t.handle = nil
	t.mu.Unlock()

	if handle == nil {
		return nil
	}
	return handle.Stop(5 * time.Second)
}

// buildCommand assembles the ssh argv per the fixed flag set, inserting
// sshpass ahead of it when only a password is configured.
func (t *Spawned) buildCommand(localPort int, remoteHost string, remotePort int) (string, []string, []string, error) {
	sshArgs := []string{
		"-N",
		"-L", fmt.Sprintf("%d:%s:%d", localPort, remoteHost, remotePort),
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "LogLevel=ERROR",
		"-o", "ConnectTimeout=10",
		"-o", "ServerAliveInterval=60",
		"-o", "ExitOnForwardFailure=yes",
		"-p", strconv.Itoa(t.desc.Port),
	}

	if t.desc.PrivateKeyPath != "" {
		sshArgs = append(sshArgs, "-i", t.desc.PrivateKeyPath)
	}

	usingPasswordOnly := t.desc.PrivateKeyPath == "" && t.desc.Password != ""
	if usingPasswordOnly {
		sshArgs = append(sshArgs,
			"-o", "PreferredAuthentications=password",
			"-o", "PubkeyAuthentication=no",
		)
	}

	sshArgs = append(sshArgs, fmt.Sprintf("%s@%s", t.desc.User, t.desc.Host))

	if !usingPasswordOnly {
		return "ssh", sshArgs, nil, nil
	}

	if _, err := exec.LookPath("sshpass"); err != nil {
		return "", nil, nil, &base.ToolMissingError{Tool: "sshpass"}
	}

	args := append([]string{"-e", "ssh"}, sshArgs...)
	env := []string{sshpassPasswordEnvVar + "=" + t.desc.Password}
	return "sshpass", args, env, nil
}

func pickEphemeralPort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()
	return port, nil
}
