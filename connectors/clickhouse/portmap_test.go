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

	"github.com/stretchr/testify/assert"

	"github.com/readonlysql/gateway/connectors/base"
)

func TestEffectivePortNativeRemapsFromNativePorts(t *testing.T) {
	proto, port := EffectivePort(base.ImplementationNative, 9000)
	assert.Equal(t, ProtocolHTTP, proto)
	assert.Equal(t, 8123, port)

	proto, port = EffectivePort(base.ImplementationNative, 9440)
	assert.Equal(t, ProtocolHTTPS, proto)
	assert.Equal(t, 8443, port)
}

func TestEffectivePortNativePassesThroughHTTPPorts(t *testing.T) {
	proto, port := EffectivePort(base.ImplementationNative, 8123)
	assert.Equal(t, ProtocolHTTP, proto)
	assert.Equal(t, 8123, port)

	proto, port = EffectivePort(base.ImplementationNative, 8443)
	assert.Equal(t, ProtocolHTTPS, proto)
	assert.Equal(t, 8443, port)
}

func TestEffectivePortNativeAssumesHTTPForUnknownPort(t *testing.T) {
	proto, port := EffectivePort(base.ImplementationNative, 5555)
	assert.Equal(t, ProtocolHTTP, proto)
	assert.Equal(t, 5555, port)
}

func TestEffectivePortCLIRemapsFromHTTPPorts(t *testing.T) {
	proto, port := EffectivePort(base.ImplementationCLI, 8123)
	assert.Equal(t, ProtocolNative, proto)
	assert.Equal(t, 9000, port)

	proto, port = EffectivePort(base.ImplementationCLI, 8443)
	assert.Equal(t, ProtocolNativeTLS, proto)
	assert.Equal(t, 9440, port)
}

func TestEffectivePortCLIPassesThroughNativePorts(t *testing.T) {
	proto, port := EffectivePort(base.ImplementationCLI, 9000)
	assert.Equal(t, ProtocolNative, proto)
	assert.Equal(t, 9000, port)

	proto, port = EffectivePort(base.ImplementationCLI, 9440)
	assert.Equal(t, ProtocolNativeTLS, proto)
	assert.Equal(t, 9440, port)
}
