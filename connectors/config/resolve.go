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

import (
	"fmt"
	"strings"

	"github.com/readonlysql/gateway/connectors/base"
)

// Resolve turns raw file records into validated connection descriptors.
// Every record is validated independently; all failures are collected
// into a single aggregate *base.ConfigError rather than stopping at the
// first bad record. env is consulted for both the DB_PASSWORD_<NAME> and
// SSH_PASSWORD_<NAME> conventions and for any explicit password_env.
//
// records is the root list exactly as it appears on disk: each record
// names itself via connection_name. A name reused by more than one
// record is itself a validation failure, reported alongside any other
// per-record errors rather than silently keeping the first or last.
func Resolve(records []ConnectionFileConfig, env EnvLookup) ([]*base.ConnectionDescriptor, error) {
	var descriptors []*base.ConnectionDescriptor
	var messages []string
	seen := make(map[string]bool, len(records))

	for idx, rec := range records {
		label := rec.ConnectionName
		if label == "" {
			label = fmt.Sprintf("#%d", idx+1)
		}

		if rec.ConnectionName == "" {
			messages = append(messages, fmt.Sprintf("%s: connection_name is required", label))
			continue
		}
		if seen[rec.ConnectionName] {
			messages = append(messages, fmt.Sprintf("duplicate connection name: %q", rec.ConnectionName))
			continue
		}
		seen[rec.ConnectionName] = true

		desc, err := resolveOne(rec.ConnectionName, rec, env)
		if err != nil {
			messages = append(messages, fmt.Sprintf("%s: %v", label, err))
			continue
		}
		descriptors = append(descriptors, desc)
	}

	if len(messages) > 0 {
		return nil, &base.ConfigError{Messages: messages}
	}
	return descriptors, nil
}

func resolveOne(name string, rec ConnectionFileConfig, env EnvLookup) (*base.ConnectionDescriptor, error) {
	engine, err := parseEngine(rec.Engine)
	if err != nil {
		return nil, err
	}
	impl, err := parseImplementation(rec.Implementation)
	if err != nil {
		return nil, err
	}

	if len(rec.Servers) == 0 {
		return nil, fmt.Errorf("servers must be non-empty")
	}
	servers := make([]base.Endpoint, len(rec.Servers))
	for i, s := range rec.Servers {
		if s.Host == "" {
			return nil, fmt.Errorf("servers[%d]: host is required", i)
		}
		port := s.Port
		if port <= 0 {
			port, err = defaultServerPort(engine, impl)
			if err != nil {
				return nil, fmt.Errorf("servers[%d]: %w", i, err)
			}
		}
		servers[i] = base.Endpoint{Host: s.Host, Port: port}
	}

	defaultDatabase, err := mergeDatabaseField(rec.DB, rec.DefaultDatabase)
	if err != nil {
		return nil, err
	}
	allowedList, err := mergeAllowedDatabasesField(rec.AllowedDatabases, rec.Databases)
	if err != nil {
		return nil, err
	}
	defaultDatabase, allowed, err := resolveDatabases(defaultDatabase, allowedList)
	if err != nil {
		return nil, err
	}

	if rec.Username == "" {
		return nil, fmt.Errorf("username is required")
	}

	password, err := resolvePassword(rec.Password, rec.PasswordEnvVar, name, env)
	if err != nil {
		return nil, err
	}

	var sshDesc *base.SSHDescriptor
	if rec.SSH != nil {
		sshDesc, err = resolveSSH(name, *rec.SSH, env)
		if err != nil {
			return nil, fmt.Errorf("ssh_tunnel: %w", err)
		}
	}

	return &base.ConnectionDescriptor{
		Name:              name,
		Engine:            engine,
		Implementation:    impl,
		Servers:           servers,
		DefaultDatabase:   defaultDatabase,
		AllowedDatabases:  allowed,
		Username:          rec.Username,
		Password:          password,
		SSH:               sshDesc,
		QueryTimeout:      rec.QueryTimeout(),
		ConnectionTimeout: rec.ConnectionTimeout(),
		MaxResultBytes:    rec.MaxResultBytes,
		Description:       rec.Description,
	}, nil
}

// mergeDatabaseField implements the `db`/`default_database` alias: either
// may be given alone, but if both are given they must agree.
func mergeDatabaseField(db, defaultDatabase string) (string, error) {
	if db == "" {
		return defaultDatabase, nil
	}
	if defaultDatabase == "" {
		return db, nil
	}
	if strings.TrimSpace(db) != strings.TrimSpace(defaultDatabase) {
		return "", fmt.Errorf("'db' and 'default_database' must match when both are provided")
	}
	return defaultDatabase, nil
}

// mergeAllowedDatabasesField implements the `allowed_databases`/`databases`
// alias: at most one of the two may be given.
func mergeAllowedDatabasesField(allowedDatabases, databases []string) ([]string, error) {
	if len(allowedDatabases) > 0 && len(databases) > 0 {
		return nil, fmt.Errorf("use only one of 'allowed_databases' or 'databases'")
	}
	if len(allowedDatabases) > 0 {
		return allowedDatabases, nil
	}
	return databases, nil
}

// defaultServerPort fills in the port for a server given only as a bare
// host, matching each engine's conventional port (and, for ClickHouse,
// the implementation-dependent protocol default).
func defaultServerPort(engine base.Engine, impl base.Implementation) (int, error) {
	switch engine {
	case base.EnginePostgreSQL:
		return 5432, nil
	case base.EngineClickHouse:
		if impl == base.ImplementationCLI {
			return 9000, nil
		}
		return 8123, nil
	default:
		return 0, fmt.Errorf("cannot determine default port without a database type")
	}
}

func parseEngine(s string) (base.Engine, error) {
	switch s {
	case string(base.EnginePostgreSQL):
		return base.EnginePostgreSQL, nil
	case string(base.EngineClickHouse):
		return base.EngineClickHouse, nil
	default:
		return "", fmt.Errorf("type must be %q or %q, got %q", base.EnginePostgreSQL, base.EngineClickHouse, s)
	}
}

// parseImplementation defaults an omitted implementation to cli, per
// spec.md §6.
func parseImplementation(s string) (base.Implementation, error) {
	switch s {
	case "":
		return base.ImplementationCLI, nil
	case string(base.ImplementationNative):
		return base.ImplementationNative, nil
	case string(base.ImplementationCLI):
		return base.ImplementationCLI, nil
	default:
		return "", fmt.Errorf("implementation must be %q or %q, got %q", base.ImplementationNative, base.ImplementationCLI, s)
	}
}

// resolveDatabases implements §3's allowlist/default-database invariant:
// both omitted is an error; only default_database given makes the
// allowlist a singleton of it; only allowlist given makes its first
// entry the default.
func resolveDatabases(defaultDatabase string, allowedList []string) (string, map[string]struct{}, error) {
	if defaultDatabase == "" && len(allowedList) == 0 {
		return "", nil, fmt.Errorf("at least one of default_database or allowed_databases is required")
	}

	allowed := make(map[string]struct{}, len(allowedList))
	for _, db := range allowedList {
		allowed[db] = struct{}{}
	}

	if defaultDatabase == "" {
		defaultDatabase = allowedList[0]
	}
	if len(allowed) == 0 {
		allowed[defaultDatabase] = struct{}{}
	}
	if _, ok := allowed[defaultDatabase]; !ok {
		return "", nil, fmt.Errorf("default_database %q must be in allowed_databases", defaultDatabase)
	}

	return defaultDatabase, allowed, nil
}

// resolvePassword implements §3's precedence: explicit literal, explicit
// named env var, convention env var DB_PASSWORD_<NAME>. An explicit
// password_env that doesn't resolve is a config error, not a silent empty
// password; a missing convention var, by contrast, just leaves the
// password empty.
func resolvePassword(literal, explicitEnvVar, connectionName string, env EnvLookup) (string, error) {
	if literal != "" {
		return literal, nil
	}
	if explicitEnvVar != "" {
		v, ok := env(explicitEnvVar)
		if !ok {
			return "", fmt.Errorf("password environment variable %q not found", explicitEnvVar)
		}
		return v, nil
	}
	if v, ok := env(base.EnvVarName("DB_PASSWORD_", connectionName)); ok {
		return v, nil
	}
	return "", nil
}

// resolveSSH validates an ssh_tunnel block: host and user are required;
// exactly one of private_key or a resolved password must be
// non-empty, with the password resolving via the explicit env var or the
// SSH_PASSWORD_<NAME> convention — but only when no private_key is
// given and no literal password is set.
func resolveSSH(connectionName string, rec SSHFileConfig, env EnvLookup) (*base.SSHDescriptor, error) {
	if rec.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if rec.User == "" {
		return nil, fmt.Errorf("user is required")
	}

	password := rec.Password
	if rec.PrivateKeyPath == "" && password == "" {
		if rec.PasswordEnvVar != "" {
			v, ok := env(rec.PasswordEnvVar)
			if !ok {
				return nil, fmt.Errorf("password environment variable %q not found", rec.PasswordEnvVar)
			}
			password = v
		} else {
			if v, ok := env(base.EnvVarName("SSH_PASSWORD_", connectionName)); ok {
				password = v
			}
		}
	}

	if rec.PrivateKeyPath == "" && password == "" {
		return nil, fmt.Errorf("exactly one of private_key or password must resolve to non-empty")
	}
	if rec.PrivateKeyPath != "" && password != "" {
		return nil, fmt.Errorf("exactly one of private_key or password must resolve to non-empty")
	}

	return &base.SSHDescriptor{
		Host:           rec.Host,
		Port:           rec.SSHPort(),
		User:           rec.User,
		PrivateKeyPath: rec.PrivateKeyPath,
		Password:       password,
		SSHTimeout:     rec.SSHTimeout(),
	}, nil
}
