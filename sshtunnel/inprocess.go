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
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/readonlysql/gateway/connectors/base"
)

// keyAlgorithmOrder is the fixed probe order for key auto-detection: the
// first algorithm whose PEM block parses wins. golang.org/x/crypto/ssh's
// ParsePrivateKey already determines the concrete algorithm from the PEM
// header in one pass, so there is nothing to retry between algorithms in
// practice; this order only labels which algorithms were considered when
// building the aggregated failure message.
var keyAlgorithmOrder = []string{"ed25519", "ecdsa", "rsa", "dsa"}

// InProcess is the Paramiko-style tunnel: an SSH transport held open in
// this process, with an accept loop that opens one direct-tcpip channel
// per inbound local connection. Host-key checking is permissive — a
// documented trade-off for a developer-operator tool, not a production
// proxy.
type InProcess struct {
	desc *base.SSHDescriptor

	mu       sync.Mutex
	client   *ssh.Client
	listener net.Listener
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewInProcess builds an InProcess tunnel bound to desc. Start must be
// called before it carries any traffic.
func NewInProcess(desc *base.SSHDescriptor) *InProcess {
	return &InProcess{desc: desc, stopCh: make(chan struct{})}
}

func (t *InProcess) Start(ctx context.Context, remoteHost string, remotePort int) (int, error) {
	clientConfig, err := t.buildClientConfig()
	if err != nil {
		return 0, err
	}

	deadline := t.desc.SSHTimeout
	if deadline <= 0 {
		deadline = 5 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	bastionAddr := fmt.Sprintf("%s:%d", t.desc.Host, t.desc.Port)

	type dialResult struct {
		client *ssh.Client
		err    error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		var d net.Dialer
		conn, dialErr := d.DialContext(dialCtx, "tcp", bastionAddr)
		if dialErr != nil {
			resultCh <- dialResult{err: dialErr}
			return
		}
		sshConn, chans, reqs, handshakeErr := ssh.NewClientConn(conn, bastionAddr, clientConfig)
		if handshakeErr != nil {
			conn.Close()
			resultCh <- dialResult{err: handshakeErr}
			return
		}
		resultCh <- dialResult{client: ssh.NewClient(sshConn, chans, reqs)}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return 0, classifyDialError(t.desc.Host, res.err)
		}
		t.mu.Lock()
		t.client = res.client
		t.mu.Unlock()
	case <-dialCtx.Done():
		return 0, &base.SshTimeoutError{Host: t.desc.Host, Timeout: deadline, Cause: dialCtx.Err()}
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.closeClient()
		return 0, &base.SshError{Host: t.desc.Host, Cause: fmt.Errorf("failed to bind local port: %w", err)}
	}

	t.mu.Lock()
	t.listener = listener
	t.mu.Unlock()

	t.wg.Add(1)
	go t.acceptLoop(listener, remoteHost, remotePort)

	localPort := listener.Addr().(*net.TCPAddr).Port
	return localPort, nil
}

// acceptLoop accepts inbound local connections and opens one
// direct-tcpip channel per connection, with a 1-second accept poll so
// Stop's close of the listener is noticed promptly.
func (t *InProcess) acceptLoop(listener net.Listener, remoteHost string, remotePort int) {
	defer t.wg.Done()

	type tcpListener interface {
		SetDeadline(time.Time) error
	}

	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		if l, ok := listener.(tcpListener); ok {
			l.SetDeadline(time.Now().Add(1 * time.Second))
		}

		conn, err := listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}

		t.wg.Add(1)
		go t.forward(conn, remoteHost, remotePort)
	}
}

func (t *InProcess) forward(local net.Conn, remoteHost string, remotePort int) {
	defer t.wg.Done()
	defer local.Close()

	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil {
		return
	}

	remote, err := client.Dial("tcp", fmt.Sprintf("%s:%d", remoteHost, remotePort))
	if err != nil {
		return
	}
	defer remote.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		io.Copy(remote, local)
		remote.Close()
	}()
	go func() {
		defer wg.Done()
		io.Copy(local, remote)
		local.Close()
	}()
	wg.Wait()
}

func (t *InProcess) Stop() error {
	t.stopOnce.Do(func() {
		close(t.stopCh)

		t.mu.Lock()
		listener := t.listener
		t.mu.Unlock()
		if listener != nil {
			listener.Close()
		}

		done := make(chan struct{})
		go func() {
			t.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}

		t.closeClient()
	})
	return nil
}

func (t *InProcess) closeClient() {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.mu.Unlock()
	if client != nil {
		client.Close()
	}
}

func (t *InProcess) buildClientConfig() (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod
	var keyErrs []string

	if t.desc.PrivateKeyPath != "" {
		keyBytes, err := os.ReadFile(t.desc.PrivateKeyPath)
		if err != nil {
			return nil, &base.SshError{Host: t.desc.Host, Cause: fmt.Errorf("reading private key: %w", err)}
		}

		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			for _, alg := range keyAlgorithmOrder {
				keyErrs = append(keyErrs, fmt.Sprintf("%s: %v", alg, err))
			}
			return nil, &base.SshAuthError{
				Host:  t.desc.Host,
				Cause: fmt.Errorf("no key algorithm could parse %s: %s", t.desc.PrivateKeyPath, strings.Join(keyErrs, "; ")),
			}
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if t.desc.Password != "" {
		authMethods = append(authMethods, ssh.Password(t.desc.Password))
	}

	if len(authMethods) == 0 {
		return nil, &base.SshAuthError{Host: t.desc.Host, Cause: errors.New("no private key or password configured")}
	}

	return &ssh.ClientConfig{
		User:            t.desc.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // developer-operator tool, not a production proxy
		Timeout:         t.desc.SSHTimeout,
	}, nil
}

func classifyDialError(host string, err error) error {
	var authErr *ssh.ExitMissingError
	if errors.As(err, &authErr) {
		return &base.SshError{Host: host, Cause: err}
	}
	if strings.Contains(err.Error(), "unable to authenticate") || strings.Contains(err.Error(), "authentication") {
		return &base.SshAuthError{Host: host, Cause: err}
	}
	return &base.SshError{Host: host, Cause: err}
}
