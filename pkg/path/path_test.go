package path

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	p := Parse("applicant.phones[].number")
	assert.Equal(t, Path{
		{Key: "applicant"},
		{Key: "phones", IsArray: true},
		{Key: "number"},
	}, p)
	assert.True(t, p.HasArray())
	assert.Equal(t, "applicant.phones[].number", p.String())

	assert.Empty(t, Parse(""))
	assert.Equal(t, Path{{Key: "a"}, {Key: "b"}}, Parse("a..b"))
}

func TestSet_CreatesSingleElementArrayWrapper(t *testing.T) {
	data := map[string]any{}
	Parse("applicant.phones[].number").Set(data, "+49176")
	Parse("applicant.phones[].type").Set(data, "mobile")

	assert.Equal(t, map[string]any{
		"applicant": map[string]any{
			"phones": []any{map[string]any{"number": "+49176", "type": "mobile"}},
		},
	}, data)
}

func TestSet_TrailingArraySegment(t *testing.T) {
	data := map[string]any{}
	Parse("tags[]").Set(data, "vip")
	assert.Equal(t, map[string]any{"tags": []any{"vip"}}, data)
}

func TestGet(t *testing.T) {
	data := map[string]any{
		"applicant": map[string]any{
			"name":   "Ada",
			"phones": []any{map[string]any{"number": "+49176"}},
		},
	}

	v, ok := Parse("applicant.name").Get(data)
	assert.True(t, ok)
	assert.Equal(t, "Ada", v)

	v, ok = Parse("applicant.phones[].number").Get(data)
	assert.True(t, ok)
	assert.Equal(t, "+49176", v)

	_, ok = Parse("applicant.email").Get(data)
	assert.False(t, ok)

	_, ok = Parse("applicant.name.first").Get(data)
	assert.False(t, ok)
}

func TestSetGet_RoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	segment := gen.Identifier()
	properties.Property("get returns what set wrote", prop.ForAll(
		func(keys []string, array bool, value string) bool {
			if len(keys) == 0 {
				return true
			}
			p := make(Path, len(keys))
			for i, k := range keys {
				p[i] = Segment{Key: k, IsArray: array && i == 0}
			}
			data := map[string]any{}
			p.Set(data, value)
			got, ok := p.Get(data)
			return ok && got == value
		},
		gen.SliceOfN(3, segment),
		gen.Bool(),
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
