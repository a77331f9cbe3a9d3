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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/readonlysql/gateway/connectors/base"
	"github.com/readonlysql/gateway/runcmd"
	"github.com/readonlysql/gateway/shared/logger"
	"github.com/readonlysql/gateway/sqlguard"
	"github.com/readonlysql/gateway/sshtunnel"
	"github.com/readonlysql/gateway/streamcap"
)

var cliLog = logger.New("postgres-cli")

// statusLines are command-tag / footer lines psql prints around the
// actual result set when not run with -t; they carry no data.
var statusLines = map[string]bool{
	"BEGIN":    true,
	"SET":      true,
	"COMMIT":   true,
	"ROLLBACK": true,
}

func isRowCountFooter(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "(") &&
		(strings.HasSuffix(trimmed, "row)") || strings.HasSuffix(trimmed, "rows)"))
}

// CLIExecutor drives the psql binary, wrapping the pre-flight-sanitized
// query in a scripted read-only transaction.
type CLIExecutor struct {
	desc *base.ConnectionDescriptor
}

// NewCLIExecutor builds a CLIExecutor for desc.
func NewCLIExecutor(desc *base.ConnectionDescriptor) (base.Executor, error) {
	return &CLIExecutor{desc: desc}, nil
}

func (e *CLIExecutor) Descriptor() *base.ConnectionDescriptor {
	return e.desc
}

func (e *CLIExecutor) Execute(ctx context.Context, req base.Request) (base.Result, error) {
	requestID := base.RequestIDFromContext(ctx)

	sanitized, err := sqlguard.Sanitize(req.SQL)
	if err != nil {
		return base.Result{}, err
	}

	target, tun, err := sshtunnel.EstablishIfConfigured(ctx, e.desc.SSH, req.Server.Host, req.Server.Port)
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

	script := fmt.Sprintf("BEGIN; SET TRANSACTION READ ONLY; SET LOCAL statement_timeout = %d; %s; COMMIT;",
		e.desc.QueryTimeout.Milliseconds(), sanitized)
	args := e.buildArgs(target, req.Database, script)

	budget := streamcap.NewBudget(req.ResultByteLimit(e.desc))
	headerSeen := false
	onLine := func(line string) bool {
		if statusLines[line] || isRowCountFooter(line) {
			return true
		}
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

	stderr, err := e.runPsql(queryCtx, args, onLine)
	defer cliLog.Info(e.desc.Name, requestID, "cleaned_up", map[string]interface{}{"stage": "process"})

	if err != nil {
		if errors.Is(queryCtx.Err(), context.DeadlineExceeded) {
			return base.Result{}, &base.QueryTimeoutError{Connection: e.desc.Name, Timeout: e.desc.QueryTimeout, Cause: err}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return base.Result{}, &base.ExecutionError{
				Backend: "psql",
				Message: strings.TrimSpace(stderr),
				Cause:   err,
			}
		}
		if errors.Is(err, exec.ErrNotFound) {
			return base.Result{}, &base.ToolMissingError{Tool: "psql"}
		}
		return base.Result{}, &base.ExecutionError{Backend: "psql", Message: err.Error(), Cause: err}
	}

	return budget.Result(), nil
}

// runPsql invokes psql with the read-only-session environment; if the
// server rejects the PGOPTIONS read-only pragma at startup (older
// servers don't understand it), it retries once without that key.
func (e *CLIExecutor) runPsql(ctx context.Context, args []string, onLine func(string) bool) (string, error) {
	env := e.buildEnv(true)
	stderr, err := runcmd.RunStreaming(ctx, "psql", args, env, onLine)
	if err != nil && strings.Contains(stderr, "unrecognized configuration parameter") {
		return runcmd.RunStreaming(ctx, "psql", args, e.buildEnv(false), onLine)
	}
	return stderr, err
}

func (e *CLIExecutor) buildArgs(target sshtunnel.Target, database, script string) []string {
	return []string{
		"--single-transaction",
		"-v", "ON_ERROR_STOP=1",
		"-A",
		"-F", "\t",
		"-h", target.Host,
		"-p", strconv.Itoa(target.Port),
		"-U", e.desc.Username,
		"-d", database,
		"-c", script,
	}
}

func (e *CLIExecutor) buildEnv(readOnlySession bool) []string {
	env := []string{
		"PGPASSWORD=" + e.desc.Password,
		"PGCONNECT_TIMEOUT=" + strconv.Itoa(int(e.desc.ConnectionTimeout.Seconds())),
	}
	if readOnlySession {
		env = append(env, "PGOPTIONS=-c default_transaction_read_only=on")
	}
	return env
}
