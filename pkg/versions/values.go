package versions

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// binaryUUIDLen is the length of a UUID in its binary form.
const binaryUUIDLen = 16

// toString renders a scalar the way it would appear in a text column.
func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		if t {
			return "1"
		}
		return ""
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// toInt64 converts integral values and numeric strings. The second result is
// false for anything else.
func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case float64:
		return int64(t), t == math.Trunc(t)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	case []byte:
		return toInt64(string(t))
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int, int32, int64:
		n, _ := toInt64(t)
		return float64(n), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// isEmpty reports whether a value counts as not set: nil, "", "0", zero
// numbers, false and empty collections.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == "" || t == "0"
	case []byte:
		return len(t) == 0
	case bool:
		return !t
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	if f, ok := toFloat(v); ok {
		return f == 0
	}
	return false
}

// looseEqual compares two payload values. nil equals the empty string and
// zero, numeric strings compare by value, collections compare deeply.
func looseEqual(a, b any) bool {
	if b, ok := b.([]byte); ok {
		return looseEqual(a, string(b))
	}
	switch at := a.(type) {
	case []byte:
		return looseEqual(string(at), b)
	case nil:
		return isEmpty(b) && !isNumericString(b, "0")
	case bool:
		return at == !isEmpty(b)
	case []any, map[string]any:
		return reflect.DeepEqual(a, b)
	}
	switch b.(type) {
	case nil, bool, []any, map[string]any:
		return looseEqual(b, a)
	}

	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}
	return toString(a) == toString(b)
}

func isNumericString(v any, s string) bool {
	str, ok := v.(string)
	return ok && str == s
}

// decodeStructured turns a JSON encoded array or object string into its
// value. Other values are returned with ok false.
func decodeStructured(v any) (any, bool) {
	switch t := v.(type) {
	case []any, map[string]any:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" || (s[0] != '[' && s[0] != '{') {
			return nil, false
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, false
		}
		switch out.(type) {
		case []any, map[string]any:
			return out, true
		}
	}
	return nil, false
}

// binToUUID renders a 16-byte binary value as canonical UUID text. Other
// values are rendered as strings.
func binToUUID(v any) string {
	var b []byte
	switch t := v.(type) {
	case []byte:
		b = t
	case string:
		b = []byte(t)
	default:
		return toString(v)
	}
	if len(b) == binaryUUIDLen {
		if u, err := uuid.FromBytes(b); err == nil {
			return u.String()
		}
	}
	return string(b)
}

func isBinaryUUID(v any) bool {
	switch t := v.(type) {
	case []byte:
		return len(t) == binaryUUIDLen
	case string:
		return len(t) == binaryUUIDLen
	}
	return false
}

// implodeRecursive flattens a list into "a, b, c" and a nested structure into
// "key: value" lines. Binary elements of a flat list are rendered as UUIDs.
func implodeRecursive(v any, binary bool) string {
	switch t := v.(type) {
	case []any:
		if len(t) > 0 && !isCollection(t[0]) {
			parts := make([]string, len(t))
			for i, e := range t {
				parts[i] = flatElement(e, binary)
			}
			return strings.Join(parts, ", ")
		}
		if len(t) == 0 {
			return ""
		}
		var b strings.Builder
		for i, e := range t {
			fmt.Fprintf(&b, "%d: %s\n", i, implodeRecursive(e, false))
		}
		return strings.TrimSpace(b.String())
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 0 && !isCollection(t[keys[0]]) {
			parts := make([]string, len(keys))
			for i, k := range keys {
				parts[i] = flatElement(t[k], binary)
			}
			return strings.Join(parts, ", ")
		}
		var b strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\n", k, implodeRecursive(t[k], false))
		}
		return strings.TrimSpace(b.String())
	default:
		if binary {
			return binToUUID(v)
		}
		return toString(v)
	}
}

func flatElement(v any, binary bool) string {
	if !binary {
		return toString(v)
	}
	if isEmpty(v) {
		return ""
	}
	return binToUUID(v)
}

func isCollection(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return true
	}
	return false
}
