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

package base

import (
	"fmt"
	"regexp"
	"strings"
)

var ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// SanitizeLogString removes or escapes characters that could be used for
// log injection, so a query's error text can be logged verbatim without
// letting it forge fake log lines or terminal control sequences.
func SanitizeLogString(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = ansiEscapeRegex.ReplaceAllString(s, "")
	const maxLogLength = 500
	if len(s) > maxLogLength {
		s = s[:maxLogLength] + "...[truncated]"
	}
	return s
}

// ValidateFilePath checks that a file_path argument to run_query_read_only
// is safe to write to: no path traversal, no null bytes, and not pointed
// at a well-known system directory.
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("path traversal not allowed: %q", path)
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("null bytes not allowed in path")
	}
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, "\\") {
		dangerousPaths := []string{"/etc/", "/proc/", "/sys/", "/dev/", "\\windows\\", "\\system32\\"}
		lowerPath := strings.ToLower(path)
		for _, dangerous := range dangerousPaths {
			if strings.HasPrefix(lowerPath, dangerous) {
				return fmt.Errorf("access to system path not allowed: %q", path)
			}
		}
	}
	return nil
}
