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

// Package main is the entry point for the read-only SQL gateway.
//
// Usage:
//
//	gateway [-validate] [-test-connection=<name>] <config-file>
//
// The gateway loads a YAML connections file, builds one executor per
// connection, and then speaks the list_connections/run_query_read_only
// tool contract as newline-delimited JSON-RPC over stdin/stdout until
// stdin closes or the process receives SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/readonlysql/gateway/connectors/base"
	"github.com/readonlysql/gateway/connectors/clickhouse"
	"github.com/readonlysql/gateway/connectors/config"
	"github.com/readonlysql/gateway/connectors/postgres"
	"github.com/readonlysql/gateway/connectors/registry"
	"github.com/readonlysql/gateway/dispatcher"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	validateOnly, testConnectionName, configPath, err := parseArgs(args)
	if err != nil {
		return err
	}

	reg, err := loadRegistry(configPath)
	if err != nil {
		return err
	}

	if validateOnly {
		fmt.Fprintf(os.Stderr, "config valid: %d connection(s)\n", reg.Count())
		return nil
	}

	if testConnectionName != "" {
		return testConnection(reg, testConnectionName)
	}

	return serve(reg)
}

const testConnectionFlagPrefix = "-test-connection="

func parseArgs(args []string) (validateOnly bool, testConnectionName, configPath string, err error) {
	var positional []string
	sawTestConnectionFlag := false
	for _, a := range args {
		switch {
		case a == "-validate":
			validateOnly = true
		case strings.HasPrefix(a, testConnectionFlagPrefix):
			sawTestConnectionFlag = true
			testConnectionName = strings.TrimPrefix(a, testConnectionFlagPrefix)
		default:
			positional = append(positional, a)
		}
	}
	if len(positional) != 1 {
		return false, "", "", fmt.Errorf("usage: gateway [-validate] [-test-connection=<name>] <config-file>")
	}
	if sawTestConnectionFlag && testConnectionName == "" {
		return false, "", "", fmt.Errorf("-test-connection requires a connection name")
	}
	return validateOnly, testConnectionName, positional[0], nil
}

func loadRegistry(configPath string) (*registry.Registry, error) {
	loader, err := config.NewYAMLConfigFileLoader(configPath)
	if err != nil {
		return nil, err
	}

	descriptors, err := config.Resolve(loader.Connections(), config.OSEnvLookup)
	if err != nil {
		return nil, err
	}

	return registry.New(descriptors, executorFactory)
}

// executorFactory selects one of the four concrete executors by a
// descriptor's (engine, implementation) pair.
func executorFactory(desc *base.ConnectionDescriptor) (base.Executor, error) {
	switch desc.Engine {
	case base.EnginePostgreSQL:
		if desc.Implementation == base.ImplementationCLI {
			return postgres.NewCLIExecutor(desc)
		}
		return postgres.NewNativeExecutor(desc)
	case base.EngineClickHouse:
		if desc.Implementation == base.ImplementationCLI {
			return clickhouse.NewCLIExecutor(desc)
		}
		return clickhouse.NewNativeExecutor(desc)
	default:
		return nil, fmt.Errorf("unsupported engine %q", desc.Engine)
	}
}

// testConnection runs a trivial connectivity probe against name through
// the ordinary query-execution path (opening its SSH tunnel first if one
// is configured) and reports success/latency/failure to stderr. It is
// the existing run_query_read_only path invoked with a fixed diagnostic
// query, not a separate connector capability.
func testConnection(reg *registry.Registry, name string) error {
	desc, err := reg.Descriptor(name)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "testing connection: %s\n", name)
	fmt.Fprintf(os.Stderr, "  type: %s (%s)\n", desc.Engine, desc.Implementation)
	if desc.SSH != nil {
		fmt.Fprintf(os.Stderr, "  ssh tunnel: %s@%s\n", desc.SSH.User, desc.SSH.Host)
	}

	d := dispatcher.New(reg)
	start := time.Now()
	_, err = d.RunQueryReadOnly(context.Background(), name, "SELECT 1", "", "")
	latency := time.Since(start)

	if err != nil {
		fmt.Fprintf(os.Stderr, "  FAILED (%s): %v\n", latency.Round(time.Millisecond), err)
		return err
	}
	fmt.Fprintf(os.Stderr, "  OK (%s)\n", latency.Round(time.Millisecond))
	return nil
}

// serve runs the stdio dispatch loop under a context that SIGINT/SIGTERM
// cancels. serve returns once the dispatch loop has wound down, whether
// that was triggered by stdin closing or by a signal.
func serve(reg *registry.Registry) error {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(rootCtx)

	d := dispatcher.New(reg)
	server := dispatcher.NewServer(d, os.Stdin, os.Stdout)

	done := make(chan struct{})
	g.Go(func() error {
		defer close(done)
		return server.Serve(ctx)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		cancel()
	case <-done:
	}

	return g.Wait()
}
