package matching

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// prop reads a property from a record map, falling back to a case-insensitive match
// because smart-process items use camelCase keys for the same fields.
func prop(record any, key string) (any, bool) {
	m, ok := record.(map[string]any)
	if !ok || key == "" {
		return nil, false
	}
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// narrowRecord picks one record out of a list response: the one whose TYPE_ID or
// VALUE_TYPE equals valueType, otherwise the first.
func narrowRecord(value any, valueType string) any {
	arr, ok := value.([]any)
	if !ok {
		return value
	}
	if len(arr) == 0 {
		return nil
	}
	if valueType != "" {
		for _, el := range arr {
			if matchesType(el, valueType) {
				return el
			}
		}
	}
	return arr[0]
}

func matchesType(el any, valueType string) bool {
	for _, key := range []string{"TYPE_ID", "VALUE_TYPE"} {
		if v, ok := prop(el, key); ok && asString(v) == valueType {
			return true
		}
	}
	return false
}

// unwrapSingle strips a single-key object, e.g. list property values {"1234": "x"}.
func unwrapSingle(value any) any {
	m, ok := value.(map[string]any)
	if !ok || len(m) != 1 {
		return value
	}
	for _, v := range m {
		return v
	}
	return value
}

func unwrapValue(value any) any {
	if arr, ok := value.([]any); ok {
		out := make([]any, len(arr))
		for i, el := range arr {
			out[i] = unwrapSingle(el)
		}
		return out
	}
	return unwrapSingle(value)
}

// selectTyped narrows a typed multi-value array ({VALUE, VALUE_TYPE} entries) to the
// entry of the given type. ok is false when value is not such an array.
func selectTyped(value any, valueType string) (selected any, found bool, ok bool) {
	arr, isArr := value.([]any)
	if !isArr || len(arr) == 0 {
		return nil, false, false
	}
	typed := false
	for _, el := range arr {
		if _, has := prop(el, "VALUE_TYPE"); !has {
			continue
		}
		typed = true
		if matchesType(el, valueType) {
			v, _ := prop(el, "VALUE")
			return v, true, true
		}
	}
	return nil, false, typed
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func asString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func isPrimitive(value any) bool {
	switch value.(type) {
	case string, bool, float64, float32, int, int32, int64, uint, uint32, uint64:
		return true
	default:
		return false
	}
}

// coerceBool maps the CRM's flag encodings to booleans. Anything else is returned as-is.
func coerceBool(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	switch s {
	case "Y", "1":
		return true
	case "N", "0":
		return false
	}
	return value
}

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = time.RFC3339
)

var dateInputLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	dateLayout,
	"02.01.2006 15:04:05",
	"02.01.2006",
}

// parseDate accepts the layouts Bitrix24 and Europace emit. Layouts without an offset
// are read in loc.
func parseDate(value any, loc *time.Location) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateInputLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
