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

/*
Package registry holds the validated, read-only set of connections a
gateway process was started with.

A Registry is built once, from a slice of validated
base.ConnectionDescriptor values and an ExecutorFactory that turns each
descriptor into its one concrete executor:

	reg, err := registry.New(descriptors, func(d *base.ConnectionDescriptor) (base.Executor, error) {
	    switch d.Engine {
	    case base.EnginePostgreSQL:
	        if d.Implementation == base.ImplementationCLI {
	            return postgres.NewCLIExecutor(d)
	        }
	        return postgres.NewNativeExecutor(d)
	    case base.EngineClickHouse:
	        if d.Implementation == base.ImplementationCLI {
	            return clickhouse.NewCLIExecutor(d)
	        }
	        return clickhouse.NewNativeExecutor(d)
	    }
	    return nil, fmt.Errorf("unsupported engine %q", d.Engine)
	})

It is never mutated afterward: Get and Descriptors only read. A lookup
miss returns a *base.ConnectionNotFoundError carrying the full list of
valid names, so the dispatcher can surface that list to the caller
directly.
*/
package registry
