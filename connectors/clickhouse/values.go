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
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// formatValue renders one scanned column value as its TSV cell text.
// dest is the pointer clickhouse-go/v2 scanned into (per ColumnType's
// ScanType), so it must be dereferenced before formatting.
func formatValue(dest any) string {
	v := reflect.ValueOf(dest)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}

	switch val := v.Interface().(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		if val {
			return "t"
		}
		return "f"
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format("2006-01-02 15:04:05.999999")
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}

	if v.Kind() == reflect.Ptr && v.IsNil() {
		return ""
	}
	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() != reflect.Uint8 {
		return formatSlice(v)
	}
	return fmt.Sprint(v.Interface())
}

// formatSlice renders a ClickHouse Array(T) column as a bracketed,
// comma-separated list, mirroring clickhouse-client's own TSV rendering.
func formatSlice(v reflect.Value) string {
	out := "["
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			out += ","
		}
		out += formatValue(v.Index(i).Interface())
	}
	return out + "]"
}
