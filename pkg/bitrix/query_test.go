package bitrix

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeQuery(t *testing.T) {
	query := EncodeQuery(map[string]any{
		"id": 42,
		"fields": map[string]any{
			"NAME":  "Erika",
			"PHONE": []any{map[string]any{"VALUE": "+49176555", "VALUE_TYPE": "WORK"}},
			"OPENED": true,
		},
		"select": []string{"*", "UF_*"},
		"ref":    "$result[CONTACT][COMPANY_ID]",
	})

	values, err := url.ParseQuery(query)
	require.NoError(t, err)
	assert.Equal(t, "42", values.Get("id"))
	assert.Equal(t, "Erika", values.Get("fields[NAME]"))
	assert.Equal(t, "+49176555", values.Get("fields[PHONE][0][VALUE]"))
	assert.Equal(t, "WORK", values.Get("fields[PHONE][0][VALUE_TYPE]"))
	assert.Equal(t, "1", values.Get("fields[OPENED]"))
	assert.Equal(t, "UF_*", values.Get("select[1]"))
	assert.Equal(t, "$result[CONTACT][COMPANY_ID]", values.Get("ref"))
}

func TestEncodeQuery_Ordered(t *testing.T) {
	assert.Equal(t, "a=1&b%5Bx%5D=2&c=", EncodeQuery(map[string]any{"c": nil, "b": map[string]string{"x": "2"}, "a": 1.0}))
	assert.Empty(t, EncodeQuery(nil))
}

func TestResolveRefs(t *testing.T) {
	done := map[string]any{
		"CONTACT": map[string]any{"ID": "7", "PHONE": []any{map[string]any{"VALUE": "+49"}}},
	}
	params := map[string]any{
		"id":     "$result[CONTACT][ID]",
		"phone":  "$result[CONTACT][PHONE][0][VALUE]",
		"later":  "$result[COMPANY][ID]",
		"nested": []any{"$result[CONTACT]"},
		"plain":  "x",
	}

	resolved := resolveRefs(params, done).(map[string]any)
	assert.Equal(t, "7", resolved["id"])
	assert.Equal(t, "+49", resolved["phone"])
	assert.Equal(t, "$result[COMPANY][ID]", resolved["later"])
	assert.Equal(t, done["CONTACT"], resolved["nested"].([]any)[0])
	assert.Equal(t, "x", resolved["plain"])
}
