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

import "github.com/readonlysql/gateway/connectors/base"

// Protocol identifies which wire protocol EffectivePort selected.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
	ProtocolNative Protocol = "native"
	ProtocolNativeTLS Protocol = "native_tls"
)

// EffectivePort maps a descriptor's configured port to the port and
// protocol an implementation actually dials, per §4.3.3/§4.3.4's
// remapping tables. It is the single lookup both executors and the
// list_connections display path consult, so the port shown to a caller
// always matches the port actually used.
func EffectivePort(implementation base.Implementation, configuredPort int) (protocol Protocol, effectivePort int) {
	if implementation == base.ImplementationNative {
		switch configuredPort {
		case 9000:
			return ProtocolHTTP, 8123
		case 9440:
			return ProtocolHTTPS, 8443
		case 8123:
			return ProtocolHTTP, 8123
		case 8443:
			return ProtocolHTTPS, 8443
		default:
			return ProtocolHTTP, configuredPort
		}
	}

	switch configuredPort {
	case 8123:
		return ProtocolNative, 9000
	case 8443:
		return ProtocolNativeTLS, 9440
	case 9440:
		return ProtocolNativeTLS, 9440
	default:
		return ProtocolNative, configuredPort
	}
}
