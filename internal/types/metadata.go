package types

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// METADATA VALUE EXTRACTION UTILITIES
// =============================================================================
//
// Percept and goal metadata are map[string]interface{} populated by external
// collaborators. These helpers provide safe, type-aware extraction and
// replace bare type assertions that panic on mismatch.

// ExtractString extracts a string representation from a metadata value.
func ExtractString(arg interface{}) string {
	switch v := arg.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case int64:
		return fmt.Sprintf("%d", v)
	case int:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%g", v)
	case float32:
		return fmt.Sprintf("%g", v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ExtractFloat64 extracts a float64 value from a metadata value.
// Returns (value, true) on success, (0, false) if the type is incompatible.
func ExtractFloat64(arg interface{}) (float64, bool) {
	switch v := arg.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	default:
		return 0, false
	}
}

// ExtractInt64 extracts an int64 value from a metadata value.
func ExtractInt64(arg interface{}) (int64, bool) {
	switch v := arg.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	default:
		return 0, false
	}
}

// ExtractBool extracts a boolean from a metadata value. Strings "true",
// "yes" and "1" are accepted.
func ExtractBool(arg interface{}) (bool, bool) {
	switch v := arg.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(v) {
		case "true", "yes", "1":
			return true, true
		case "false", "no", "0":
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}
