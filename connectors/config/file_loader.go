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
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the root structure of a connection config file: a plain
// list of connection records, each self-naming via connection_name.
type ConfigFile []ConnectionFileConfig

// ConnectionFileConfig is one connection record as it appears on disk,
// before resolution and validation turn it into a
// base.ConnectionDescriptor.
type ConnectionFileConfig struct {
	ConnectionName     string             `yaml:"connection_name"`
	Engine             string             `yaml:"type"`
	Implementation     string             `yaml:"implementation,omitempty"`
	Servers            []ServerFileConfig `yaml:"servers"`
	DB                 string             `yaml:"db,omitempty"`
	DefaultDatabase    string             `yaml:"default_database,omitempty"`
	AllowedDatabases   []string           `yaml:"allowed_databases,omitempty"`
	Databases          []string           `yaml:"databases,omitempty"`
	Username           string             `yaml:"username"`
	Password           string             `yaml:"password,omitempty"`
	PasswordEnvVar     string             `yaml:"password_env,omitempty"`
	SSH                *SSHFileConfig     `yaml:"ssh_tunnel,omitempty"`
	QueryTimeoutS      int                `yaml:"query_timeout,omitempty"`
	ConnectionTimeoutS int                `yaml:"connection_timeout,omitempty"`
	MaxResultBytes     int64              `yaml:"max_result_bytes,omitempty"`
	Description        string             `yaml:"description,omitempty"`
}

// ServerFileConfig is one database server endpoint on disk. It accepts
// either a "host:port" string, a bare "host" string (the port is then
// left at 0, for the caller to fill in from the connection's engine and
// implementation), or a {host, port} mapping.
type ServerFileConfig struct {
	Host string
	Port int
}

// UnmarshalYAML implements the string-or-mapping server shorthand.
func (s *ServerFileConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var raw string
		if err := node.Decode(&raw); err != nil {
			return err
		}
		if idx := strings.LastIndex(raw, ":"); idx != -1 {
			port, err := strconv.Atoi(raw[idx+1:])
			if err != nil {
				return fmt.Errorf("invalid port in server %q: %w", raw, err)
			}
			s.Host = raw[:idx]
			s.Port = port
			return nil
		}
		s.Host = raw
		s.Port = 0
		return nil
	case yaml.MappingNode:
		var m struct {
			Host string `yaml:"host"`
			Port int    `yaml:"port"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		if m.Host == "" {
			return fmt.Errorf("server mapping missing required field 'host'")
		}
		s.Host = m.Host
		s.Port = m.Port
		return nil
	default:
		return fmt.Errorf("server must be a \"host:port\" string or a {host, port} mapping")
	}
}

// SSHFileConfig is the ssh_tunnel block on disk.
type SSHFileConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port,omitempty"`
	User           string `yaml:"user"`
	PrivateKeyPath string `yaml:"private_key,omitempty"`
	Password       string `yaml:"password,omitempty"`
	PasswordEnvVar string `yaml:"password_env,omitempty"`
	SSHTimeoutS    int    `yaml:"ssh_timeout,omitempty"`
}

// YAMLConfigFileLoader reads a connection config file and expands
// ${VAR_NAME}-style environment references before parsing.
type YAMLConfigFileLoader struct {
	filePath string
	config   ConfigFile
}

// NewYAMLConfigFileLoader reads and parses filePath immediately.
func NewYAMLConfigFileLoader(filePath string) (*YAMLConfigFileLoader, error) {
	loader := &YAMLConfigFileLoader{filePath: filePath}
	if err := loader.reload(); err != nil {
		return nil, err
	}
	return loader, nil
}

func (l *YAMLConfigFileLoader) reload() error {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", l.filePath, err)
	}

	expanded := expandEnvVars(string(data))

	// Strict decoding: an ssh_tunnel block with a stray enabled: false
	// (the legacy silently-dropped flag) fails to parse instead of being
	// silently ignored, per this implementation's resolution of that
	// ambiguity — loaders reject the flag rather than accept and drop it.
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	decoder.KnownFields(true)

	var cfg ConfigFile
	if err := decoder.Decode(&cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	l.config = cfg
	return nil
}

// Connections returns the raw, not-yet-validated connection records.
func (l *YAMLConfigFileLoader) Connections() []ConnectionFileConfig {
	return l.config
}

// Reload re-reads the configuration file from disk.
func (l *YAMLConfigFileLoader) Reload() error {
	return l.reload()
}

// envVarRegex matches ${VAR_NAME} or ${VAR_NAME:-default} references.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR_NAME} and ${VAR_NAME:-default} references
// against the process environment. An undefined variable with no default
// expands to the empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		inner := match[2 : len(match)-1]

		varName := inner
		defaultVal := ""
		if idx := strings.Index(inner, ":-"); idx != -1 {
			varName = inner[:idx]
			defaultVal = inner[idx+2:]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}

// QueryTimeout returns the configured query timeout, defaulting to 120s.
func (c ConnectionFileConfig) QueryTimeout() time.Duration {
	if c.QueryTimeoutS <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.QueryTimeoutS) * time.Second
}

// ConnectionTimeout returns the configured connection timeout, defaulting
// to 10s.
func (c ConnectionFileConfig) ConnectionTimeout() time.Duration {
	if c.ConnectionTimeoutS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ConnectionTimeoutS) * time.Second
}

// SSHTimeout returns the ssh_tunnel block's configured handshake timeout,
// defaulting to 5s.
func (s SSHFileConfig) SSHTimeout() time.Duration {
	if s.SSHTimeoutS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.SSHTimeoutS) * time.Second
}

// SSHPort returns the ssh_tunnel block's configured bastion port,
// defaulting to 22.
func (s SSHFileConfig) SSHPort() int {
	if s.Port <= 0 {
		return 22
	}
	return s.Port
}
