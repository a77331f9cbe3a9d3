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

package config

import "os"

// EnvLookup is the injected-environment seam every credential resolution
// goes through: the live process environment is only the default
// implementation, so validation stays pure and testable (see
// resolvePassword / resolveSSH in resolve.go).
type EnvLookup func(key string) (string, bool)

// OSEnvLookup reads from the real process environment via os.LookupEnv.
func OSEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapEnvLookup builds an EnvLookup backed by a plain map, for tests and
// for callers that assemble an environment snapshot themselves.
func MapEnvLookup(env map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}
