package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnmatchedData(t *testing.T) {
	claimed := map[string]bool{"person": true, "firstName": true}

	t.Run("explicit bag wins", func(t *testing.T) {
		record := map[string]any{
			UnmatchedDataKey: map[string]any{"COMMENTS": "hi", "SOURCE_ID": "WEB"},
			HasUnmatchedKey:  true,
			"OTHER":          "ignored",
		}
		assert.Equal(t, map[string]any{"COMMENTS": "hi", "SOURCE_ID": "WEB"}, UnmatchedData(record, claimed, UnmatchedPolicy{}))
	})

	t.Run("flag copies unclaimed primitives", func(t *testing.T) {
		record := map[string]any{
			HasUnmatchedKey: true,
			"person":        map[string]any{"firstName": "Anna"},
			"firstName":     "Anna",
			"COMMENTS":      "hi",
			"OPENED":        true,
			"NESTED":        map[string]any{"a": 1},
			"LIST":          []any{"a"},
		}
		assert.Equal(t, map[string]any{"COMMENTS": "hi", "OPENED": true}, UnmatchedData(record, claimed, UnmatchedPolicy{}))
	})

	t.Run("without flag nothing passes", func(t *testing.T) {
		assert.Nil(t, UnmatchedData(map[string]any{"COMMENTS": "hi"}, claimed, UnmatchedPolicy{}))
	})

	t.Run("allow and deny", func(t *testing.T) {
		record := map[string]any{
			HasUnmatchedKey: true,
			"COMMENTS":      "hi",
			"SOURCE_ID":     "WEB",
			"TITLE":         "Dr.",
		}
		policy := UnmatchedPolicy{Allow: []string{"COMMENTS", "SOURCE_ID"}, Deny: []string{"SOURCE_ID"}}
		assert.Equal(t, map[string]any{"COMMENTS": "hi"}, UnmatchedData(record, claimed, policy))
	})
}
