package bitrix

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// EncodeQuery renders params the way the portal's PHP backend parses them:
// nested maps and slices become bracketed keys, e.g. filter[ID]=1&select[0]=*.
func EncodeQuery(params map[string]any) string {
	pairs := []string{}
	appendValue(&pairs, "", params)
	return strings.Join(pairs, "&")
}

func appendValue(pairs *[]string, key string, value any) {
	switch v := value.(type) {
	case nil:
		if key != "" {
			*pairs = append(*pairs, url.QueryEscape(key)+"=")
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			appendValue(pairs, nestKey(key, k), v[k])
		}
	case map[string]string:
		generic := make(map[string]any, len(v))
		for k, s := range v {
			generic[k] = s
		}
		appendValue(pairs, key, generic)
	case []any:
		for i, item := range v {
			appendValue(pairs, nestKey(key, strconv.Itoa(i)), item)
		}
	case []string:
		for i, item := range v {
			appendValue(pairs, nestKey(key, strconv.Itoa(i)), item)
		}
	case []map[string]any:
		for i, item := range v {
			appendValue(pairs, nestKey(key, strconv.Itoa(i)), item)
		}
	default:
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Slice {
			for i := 0; i < rv.Len(); i++ {
				appendValue(pairs, nestKey(key, strconv.Itoa(i)), rv.Index(i).Interface())
			}
			return
		}
		*pairs = append(*pairs, url.QueryEscape(key)+"="+url.QueryEscape(scalar(value)))
	}
}

func nestKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "[" + key + "]"
}

func scalar(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}
