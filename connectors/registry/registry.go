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

package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/readonlysql/gateway/connectors/base"
)

// ExecutorFactory builds the one executor a descriptor's
// (Engine, Implementation) pair selects. The registry calls this exactly
// once per descriptor at load time; executors are otherwise stateless
// apart from the descriptor they were built from.
type ExecutorFactory func(desc *base.ConnectionDescriptor) (base.Executor, error)

// Registry is the read-only, in-memory set of connections a gateway
// process was started with. It is built once at startup and never
// mutated for the service's lifetime.
type Registry struct {
	mu         sync.RWMutex
	executors  map[string]base.Executor
	order      []string // insertion order, sorted by name, for stable listing
}

// New validates descriptors and builds one executor per descriptor via
// factory. Names must be globally unique; any duplicate, or any factory
// failure, fails the whole load with an aggregate *base.ConfigError.
func New(descriptors []*base.ConnectionDescriptor, factory ExecutorFactory) (*Registry, error) {
	r := &Registry{executors: make(map[string]base.Executor, len(descriptors))}

	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	sort.Strings(names)

	byName := make(map[string]*base.ConnectionDescriptor, len(descriptors))
	counts := make(map[string]int, len(descriptors))
	for _, d := range descriptors {
		byName[d.Name] = d
		counts[d.Name]++
	}

	var messages []string
	seen := make(map[string]bool, len(descriptors))

	for _, name := range names {
		if seen[name] {
			continue // duplicate name already reported below
		}
		seen[name] = true

		if counts[name] > 1 {
			messages = append(messages, fmt.Sprintf("%s: duplicate connection name", name))
			continue
		}

		d := byName[name]
		if _, ok := d.AllowedDatabases[d.DefaultDatabase]; !ok {
			messages = append(messages, fmt.Sprintf("%s: default_database %q not in allowed_databases", name, d.DefaultDatabase))
			continue
		}

		exec, err := factory(d)
		if err != nil {
			messages = append(messages, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		r.executors[name] = exec
		r.order = append(r.order, name)
	}

	if len(messages) > 0 {
		return nil, &base.ConfigError{Messages: messages}
	}
	return r, nil
}

// Get returns the executor for name, or a *base.ConnectionNotFoundError
// listing every valid name if it doesn't exist.
func (r *Registry) Get(name string) (base.Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, ok := r.executors[name]
	if !ok {
		return nil, &base.ConnectionNotFoundError{Name: name, Valid: r.namesLocked()}
	}
	return exec, nil
}

// Descriptor returns the connection descriptor for name, or a
// *base.ConnectionNotFoundError if it doesn't exist.
func (r *Registry) Descriptor(name string) (*base.ConnectionDescriptor, error) {
	exec, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return exec.Descriptor(), nil
}

// Names returns every registered connection name in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Descriptors returns every registered descriptor, sorted by name — the
// shape list_connections streams through tsv.FormatStream.
func (r *Registry) Descriptors() []*base.ConnectionDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]*base.ConnectionDescriptor, 0, len(r.order))
	for _, name := range r.order {
		descs = append(descs, r.executors[name].Descriptor())
	}
	return descs
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.executors)
}
