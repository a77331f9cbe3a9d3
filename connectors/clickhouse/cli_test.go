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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/readonlysql/gateway/connectors/base"
	"github.com/readonlysql/gateway/sshtunnel"
)

func testCLIDescriptor() *base.ConnectionDescriptor {
	return &base.ConnectionDescriptor{
		Name:              "events-ro",
		Engine:            base.EngineClickHouse,
		Implementation:    base.ImplementationCLI,
		Servers:           []base.Endpoint{{Host: "ch.internal", Port: 8123}},
		DefaultDatabase:   "events",
		Username:          "ro_user",
		Password:          "s3cret",
		QueryTimeout:      30 * time.Second,
		ConnectionTimeout: 5 * time.Second,
		MaxResultBytes:    1 << 20,
	}
}

func TestClickHouseCLIBuildArgsNativePort(t *testing.T) {
	e := &CLIExecutor{desc: testCLIDescriptor()}
	args := e.buildArgs(sshtunnel.Target{Host: "127.0.0.1", Port: 9000}, ProtocolNative, "events", "select 1")

	assert.Contains(t, args, "--readonly")
	assert.Contains(t, args, "--max_execution_time")
	assert.Contains(t, args, "30")
	assert.Contains(t, args, "--connect_timeout")
	assert.Contains(t, args, "TabSeparatedWithNames")
	assert.Contains(t, args, "select 1")
	assert.NotContains(t, args, "--secure")
}

func TestClickHouseCLIBuildArgsAddsSecureForTLSPort(t *testing.T) {
	e := &CLIExecutor{desc: testCLIDescriptor()}
	args := e.buildArgs(sshtunnel.Target{Host: "127.0.0.1", Port: 9440}, ProtocolNativeTLS, "events", "select 1")

	assert.Contains(t, args, "--secure")
}

func TestClickHouseCLIDescriptorReturnsBackingDescriptor(t *testing.T) {
	desc := testCLIDescriptor()
	e := &CLIExecutor{desc: desc}
	assert.Same(t, desc, e.Descriptor())
}
