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
	"crypto/tls"
	"errors"
	"fmt"
	"reflect"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/readonlysql/gateway/connectors/base"
	"github.com/readonlysql/gateway/shared/logger"
	"github.com/readonlysql/gateway/sshtunnel"
	"github.com/readonlysql/gateway/streamcap"
)

var nativeLog = logger.New("clickhouse-native")

// NativeExecutor talks to ClickHouse's HTTP/HTTPS interface via
// clickhouse-go/v2.
type NativeExecutor struct {
	desc *base.ConnectionDescriptor
}

// NewNativeExecutor builds a NativeExecutor for desc.
func NewNativeExecutor(desc *base.ConnectionDescriptor) (base.Executor, error) {
	return &NativeExecutor{desc: desc}, nil
}

func (e *NativeExecutor) Descriptor() *base.ConnectionDescriptor { return e.desc }

func (e *NativeExecutor) Execute(ctx context.Context, req base.Request) (base.Result, error) {
	requestID := base.RequestIDFromContext(ctx)

	protocol, remotePort := EffectivePort(base.ImplementationNative, req.Server.Port)

	target, tun, err := sshtunnel.EstablishWithAuthFallback(ctx, e.desc.SSH, req.Server.Host, remotePort)
	if err != nil {
		return base.Result{}, err
	}
	if tun != nil {
		nativeLog.Info(e.desc.Name, requestID, "tunnel_up", nil)
		defer func() {
			tun.Stop()
			nativeLog.Info(e.desc.Name, requestID, "cleaned_up", map[string]interface{}{"stage": "tunnel"})
		}()
	}

	opts := e.buildOptions(target, protocol, req.Database)

	connCtx, cancel := context.WithTimeout(ctx, e.desc.ConnectionTimeout)
	defer cancel()

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return base.Result{}, &base.ExecutionError{Backend: "ClickHouse", Message: err.Error(), Cause: err}
	}
	defer func() {
		conn.Close()
		nativeLog.Info(e.desc.Name, requestID, "cleaned_up", map[string]interface{}{"stage": "connection"})
	}()

	if err := conn.Ping(connCtx); err != nil {
		if errors.Is(connCtx.Err(), context.DeadlineExceeded) {
			return base.Result{}, &base.ConnectionTimeoutError{Connection: e.desc.Name, Timeout: e.desc.ConnectionTimeout, Cause: err}
		}
		return base.Result{}, &base.ExecutionError{Backend: "ClickHouse", Message: err.Error(), Cause: err}
	}
	nativeLog.Info(e.desc.Name, requestID, "connected", nil)

	queryCtx, qcancel := context.WithTimeout(ctx, e.desc.QueryTimeout)
	defer qcancel()

	rows, err := conn.Query(queryCtx, req.SQL)
	if err != nil {
		return base.Result{}, e.classifyError(queryCtx, err)
	}
	defer rows.Close()

	budget := streamcap.NewBudget(req.ResultByteLimit(e.desc))

	columnTypes := rows.ColumnTypes()
	columns := make([]string, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = ct.Name()
	}
	budget.AddHeader(columns)

	scanArgs := make([]any, len(columnTypes))
	for i, ct := range columnTypes {
		scanArgs[i] = newScanDest(ct)
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return base.Result{}, e.classifyError(queryCtx, err)
		}
		rendered := make([]string, len(scanArgs))
		for i, dest := range scanArgs {
			rendered[i] = formatValue(dest)
		}
		if !budget.AddRow(rendered) {
			nativeLog.Info(e.desc.Name, requestID, "truncated", map[string]interface{}{"limit_bytes": req.ResultByteLimit(e.desc)})
			break
		}
	}
	if err := rows.Err(); err != nil {
		return base.Result{}, e.classifyError(queryCtx, err)
	}

	return budget.Result(), nil
}

func (e *NativeExecutor) buildOptions(target sshtunnel.Target, protocol Protocol, database string) *clickhouse.Options {
	opts := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", target.Host, target.Port)},
		Auth: clickhouse.Auth{
			Database: database,
			Username: e.desc.Username,
			Password: e.desc.Password,
		},
		Protocol:    clickhouse.HTTP,
		DialTimeout: e.desc.ConnectionTimeout,
		Settings: clickhouse.Settings{
			"readonly":           1,
			"max_execution_time": int(e.desc.QueryTimeout.Seconds()),
		},
	}
	if protocol == ProtocolHTTPS {
		opts.TLS = &tls.Config{}
	}
	return opts
}

func (e *NativeExecutor) classifyError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &base.QueryTimeoutError{Connection: e.desc.Name, Timeout: e.desc.QueryTimeout, Cause: err}
	}
	return &base.ExecutionError{Backend: "ClickHouse", Message: err.Error(), Cause: err}
}

// newScanDest allocates a scan target of ct's reported Go type, falling
// back to *string when the driver doesn't expose one (defensive; every
// released clickhouse-go/v2 column type reports a ScanType).
func newScanDest(ct driver.ColumnType) any {
	scanType := ct.ScanType()
	if scanType == nil {
		var s string
		return &s
	}
	return reflect.New(scanType).Interface()
}
