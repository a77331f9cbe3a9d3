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

// Package dispatcher implements the tool-dispatch façade: the two
// operations a gateway process exposes, list_connections and
// run_query_read_only, on top of a frozen connections registry. This file
// holds no transport code; its callers are the stdio JSON-RPC loop in
// stdio.go and the gateway's -test-connection probe.
package dispatcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/readonlysql/gateway/connectors/base"
	"github.com/readonlysql/gateway/connectors/clickhouse"
	"github.com/readonlysql/gateway/connectors/registry"
	"github.com/readonlysql/gateway/shared/logger"
	"github.com/readonlysql/gateway/streamcap"
	"github.com/readonlysql/gateway/tsv"
)

var dispatchLog = logger.New("dispatcher")

// Dispatcher answers the two tool operations against a fixed registry.
// It is safe for concurrent use; the registry it wraps is read-only for
// the lifetime of the process.
type Dispatcher struct {
	registry *registry.Registry
}

// New builds a Dispatcher over reg.
func New(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{registry: reg}
}

// ListConnections implements §4.7's list_connections contract.
func (d *Dispatcher) ListConnections(ctx context.Context) (string, error) {
	columns := []string{"name", "type", "description", "servers", "database", "user"}

	descs := d.registry.Descriptors()
	rows := make([][]string, 0, len(descs))
	for _, desc := range descs {
		rows = append(rows, []string{
			desc.Name,
			string(desc.Engine),
			desc.Description,
			formatServers(desc),
			desc.DefaultDatabase,
			desc.Username,
		})
	}
	return tsv.FormatStream(columns, rows), nil
}

// formatServers renders a descriptor's servers column: comma-separated
// host:port pairs, host resolved through DisplayHost and port resolved
// through the engine's effective-port mapping so the displayed endpoint
// always matches what the executor would actually dial.
func formatServers(desc *base.ConnectionDescriptor) string {
	parts := make([]string, 0, len(desc.Servers))
	for _, ep := range desc.Servers {
		host := desc.DisplayHost(ep)
		port := ep.Port
		if desc.Engine == base.EngineClickHouse {
			_, port = clickhouse.EffectivePort(desc.Implementation, ep.Port)
		}
		parts = append(parts, base.Endpoint{Host: host, Port: port}.String())
	}
	return strings.Join(parts, ",")
}

// RunQueryReadOnly implements §4.7's run_query_read_only contract. server
// and filePath are both optional; pass "" for either to take the
// default. On success it returns either the TSV body (ordinary mode) or
// the resolved absolute path the result was written to (file_path mode).
func (d *Dispatcher) RunQueryReadOnly(ctx context.Context, connectionName, query, server, filePath string) (string, error) {
	requestID := uuid.NewString()
	ctx = base.WithRequestID(ctx, requestID)

	exec, err := d.registry.Get(connectionName)
	if err != nil {
		return "", err
	}
	desc := exec.Descriptor()

	database, err := desc.ResolveDatabase("")
	if err != nil {
		return "", err
	}
	endpoint, err := desc.ResolveEndpoint(server)
	if err != nil {
		return "", err
	}

	req := base.Request{SQL: query, Database: database, Server: endpoint}

	if filePath != "" {
		if _, statErr := os.Stat(filePath); statErr == nil {
			return "", &base.FileExistsError{Path: filePath}
		}
		unbounded := int64(0)
		req.MaxResultBytesOverride = &unbounded
	}

	dispatchLog.Info(connectionName, requestID, "dispatch", map[string]interface{}{"file_path": filePath != ""})

	var result base.Result
	err = streamcap.WithHardDeadline(ctx, connectionName, desc.HardTimeout(), func(ctx context.Context) error {
		var execErr error
		result, execErr = exec.Execute(ctx, req)
		return execErr
	})
	if err != nil {
		return "", err
	}

	body := renderResult(result)

	if filePath == "" {
		return body, nil
	}
	return writeResultFile(filePath, body)
}

func renderResult(result base.Result) string {
	if result.Header == "" && len(result.Rows) == 0 {
		return ""
	}
	lines := make([]string, 0, len(result.Rows)+1)
	lines = append(lines, result.Header)
	lines = append(lines, result.Rows...)
	return strings.Join(lines, "\n")
}

// writeResultFile implements §4.7's file_path mode: parent directories
// are created, the write is atomic (temp file + rename into place), and
// the resolved absolute path is returned.
func writeResultFile(path, body string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", &base.FileWriteError{Path: path, Cause: err}
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &base.FileWriteError{Path: absPath, Cause: err}
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", &base.FileWriteError{Path: absPath, Cause: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", &base.FileWriteError{Path: absPath, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", &base.FileWriteError{Path: absPath, Cause: err}
	}
	if err := os.Rename(tmpName, absPath); err != nil {
		os.Remove(tmpName)
		return "", &base.FileWriteError{Path: absPath, Cause: err}
	}
	return absPath, nil
}
