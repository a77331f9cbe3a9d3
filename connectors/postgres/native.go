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
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/readonlysql/gateway/connectors/base"
	"github.com/readonlysql/gateway/shared/logger"
	"github.com/readonlysql/gateway/sshtunnel"
	"github.com/readonlysql/gateway/streamcap"
)

var nativeLog = logger.New("postgres-native")

// NativeExecutor runs queries over a single-use pgx connection per call,
// with the session pinned read-only and statement_timeout bounding the
// query.
type NativeExecutor struct {
	desc *base.ConnectionDescriptor
}

// NewNativeExecutor builds a NativeExecutor for desc. desc.Engine must be
// base.EnginePostgreSQL and desc.Implementation base.ImplementationNative;
// the registry only ever constructs it through that combination.
func NewNativeExecutor(desc *base.ConnectionDescriptor) (base.Executor, error) {
	return &NativeExecutor{desc: desc}, nil
}

func (e *NativeExecutor) Descriptor() *base.ConnectionDescriptor {
	return e.desc
}

func (e *NativeExecutor) Execute(ctx context.Context, req base.Request) (base.Result, error) {
	requestID := base.RequestIDFromContext(ctx)

	target, tun, err := sshtunnel.EstablishIfConfigured(ctx, e.desc.SSH, req.Server.Host, req.Server.Port)
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

	cfg, err := e.buildConfig(target, req.Database)
	if err != nil {
		return base.Result{}, err
	}

	connCtx, cancel := context.WithTimeout(ctx, e.desc.ConnectionTimeout)
	defer cancel()

	conn, err := pgx.ConnectConfig(connCtx, cfg)
	if err != nil {
		if errors.Is(connCtx.Err(), context.DeadlineExceeded) {
			return base.Result{}, &base.ConnectionTimeoutError{
				Connection: e.desc.Name,
				Timeout:    e.desc.ConnectionTimeout,
				Cause:      err,
			}
		}
		return base.Result{}, &base.ExecutionError{Backend: "PostgreSQL", Message: err.Error(), Cause: err}
	}
	defer func() {
		conn.Close(context.Background())
		nativeLog.Info(e.desc.Name, requestID, "cleaned_up", map[string]interface{}{"stage": "connection"})
	}()
	nativeLog.Info(e.desc.Name, requestID, "connected", nil)

	if _, err := conn.Exec(ctx, "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY"); err != nil {
		return base.Result{}, &base.ExecutionError{Backend: "PostgreSQL", Message: err.Error(), Cause: err}
	}

	statementTimeoutMs := e.desc.QueryTimeout.Milliseconds()
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET statement_timeout = %d", statementTimeoutMs)); err != nil {
		return base.Result{}, &base.ExecutionError{Backend: "PostgreSQL", Message: err.Error(), Cause: err}
	}

	queryCtx, qcancel := context.WithTimeout(ctx, e.desc.QueryTimeout)
	defer qcancel()

	rows, err := conn.Query(queryCtx, req.SQL)
	if err != nil {
		return base.Result{}, classifyPgError(e.desc.Name, e.desc.QueryTimeout, err)
	}
	defer rows.Close()

	budget := streamcap.NewBudget(req.ResultByteLimit(e.desc))
	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}
	budget.AddHeader(columns)

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return base.Result{}, classifyPgError(e.desc.Name, e.desc.QueryTimeout, err)
		}
		rendered := make([]string, len(values))
		for i, v := range values {
			rendered[i] = formatValue(v)
		}
		if !budget.AddRow(rendered) {
			nativeLog.Info(e.desc.Name, requestID, "truncated", map[string]interface{}{"limit_bytes": req.ResultByteLimit(e.desc)})
			break
		}
	}
	if err := rows.Err(); err != nil {
		return base.Result{}, classifyPgError(e.desc.Name, e.desc.QueryTimeout, err)
	}

	return budget.Result(), nil
}

func (e *NativeExecutor) buildConfig(target sshtunnel.Target, database string) (*pgx.ConnConfig, error) {
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(e.desc.Username),
		url.QueryEscape(e.desc.Password),
		target.Host, target.Port,
		url.PathEscape(database),
	)

	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, &base.ExecutionError{Backend: "PostgreSQL", Message: "invalid connection parameters", Cause: err}
	}
	cfg.ConnectTimeout = e.desc.ConnectionTimeout
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = map[string]string{}
	}
	cfg.RuntimeParams["default_transaction_read_only"] = "on"
	return cfg, nil
}

// classifyPgError maps a pgx/pgconn failure to the taxonomy entry §4.3.1
// names: query-canceled (pgcode 57014) becomes QueryTimeout, everything
// else (including the read-only-violation permission error a write
// attempt surfaces as) becomes an ExecutionError prefixed PostgreSQL:.
func classifyPgError(connection string, queryTimeout time.Duration, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "57014" {
		return &base.QueryTimeoutError{Connection: connection, Timeout: queryTimeout, Cause: err}
	}
	return &base.ExecutionError{Backend: "PostgreSQL", Message: err.Error(), Cause: err}
}
