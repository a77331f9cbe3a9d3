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

package clickhouse

import (
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"

	"github.com/readonlysql/gateway/connectors/base"
	"github.com/readonlysql/gateway/runcmd"
	"github.com/readonlysql/gateway/shared/logger"
	"github.com/readonlysql/gateway/sshtunnel"
	"github.com/readonlysql/gateway/streamcap"
)

var cliLog = logger.New("clickhouse-cli")

// CLIExecutor drives the clickhouse-client binary against the native
// TCP interface. No pre-flight guard runs here; --readonly 1 is the
// server-enforced read-only boundary.
type CLIExecutor struct {
	desc *base.ConnectionDescriptor
}

// NewCLIExecutor builds a CLIExecutor for desc.
func NewCLIExecutor(desc *base.ConnectionDescriptor) (base.Executor, error) {
	return &CLIExecutor{desc: desc}, nil
}

func (e *CLIExecutor) Descriptor() *base.ConnectionDescriptor { return e.desc }

func (e *CLIExecutor) Execute(ctx context.Context, req base.Request) (base.Result, error) {
	requestID := base.RequestIDFromContext(ctx)

	protocol, remotePort := EffectivePort(base.ImplementationCLI, req.Server.Port)

	target, tun, err := sshtunnel.EstablishIfConfigured(ctx, e.desc.SSH, req.Server.Host, remotePort)
	if err != nil {
		return base.Result{}, err
	}
	if tun != nil {
		cliLog.Info(e.desc.Name, requestID, "tunnel_up", nil)
		defer func() {
			tun.Stop()
			cliLog.Info(e.desc.Name, requestID, "cleaned_up", map[string]interface{}{"stage": "tunnel"})
		}()
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.desc.ConnectionTimeout+e.desc.QueryTimeout)
	defer cancel()

	args := e.buildArgs(target, protocol, req.Database, req.SQL)

	budget := streamcap.NewBudget(req.ResultByteLimit(e.desc))
	headerSeen := false
	onLine := func(line string) bool {
		if !headerSeen {
			budget.AddRawHeader(line)
			headerSeen = true
			return true
		}
		if !budget.AddRawLine(line) {
			cliLog.Info(e.desc.Name, requestID, "truncated", map[string]interface{}{"limit_bytes": req.ResultByteLimit(e.desc)})
			return false
		}
		return true
	}

	stderr, err := runcmd.RunStreaming(queryCtx, "clickhouse-client", args, nil, onLine)
	defer cliLog.Info(e.desc.Name, requestID, "cleaned_up", map[string]interface{}{"stage": "process"})

	if err != nil {
		if errors.Is(queryCtx.Err(), context.DeadlineExceeded) {
			return base.Result{}, &base.QueryTimeoutError{Connection: e.desc.Name, Timeout: e.desc.QueryTimeout, Cause: err}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return base.Result{}, &base.ExecutionError{
				Backend: "clickhouse-client",
				Message: strings.TrimSpace(stderr),
				Cause:   err,
			}
		}
		if errors.Is(err, exec.ErrNotFound) {
			return base.Result{}, &base.ToolMissingError{Tool: "clickhouse-client"}
		}
		return base.Result{}, &base.ExecutionError{Backend: "clickhouse-client", Message: err.Error(), Cause: err}
	}

	return budget.Result(), nil
}

func (e *CLIExecutor) buildArgs(target sshtunnel.Target, protocol Protocol, database, query string) []string {
	args := []string{
		"--host", target.Host,
		"--port", strconv.Itoa(target.Port),
		"--user", e.desc.Username,
		"--password", e.desc.Password,
		"--database", database,
		"--readonly", "1",
		"--max_execution_time", strconv.Itoa(int(e.desc.QueryTimeout.Seconds())),
		"--connect_timeout", strconv.Itoa(int(e.desc.ConnectionTimeout.Seconds())),
		"--format", "TabSeparatedWithNames",
		"--query", query,
	}
	if protocol == ProtocolNativeTLS {
		args = append(args, "--secure")
	}
	return args
}
