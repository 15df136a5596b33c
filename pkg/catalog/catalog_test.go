package catalog

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
)

func TestLoad_EmbeddedCatalog(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"CUSTOMER", "LOAN"}, c.Entities())

	base, ok := c.Field("CUSTOMER", "id")
	require.True(t, ok)
	assert.True(t, base.Base)
	assert.Equal(t, "CONTACT", base.Default)

	for _, d := range c.DefaultMatchings {
		assert.NotZero(t, d.FieldID, d.FieldCode)
	}
}

func TestParse_RejectsSecondBaseField(t *testing.T) {
	_, err := Parse([]byte(`
fields:
  - {id: 1, entity: CUSTOMER, code: id, base: true}
  - {id: 2, entity: CUSTOMER, code: other, base: true}
`))
	assert.ErrorContains(t, err, "exactly one base field")
}

func TestParse_RejectsUnknownDefaultMatchingField(t *testing.T) {
	_, err := Parse([]byte(`
fields:
  - {id: 1, entity: CUSTOMER, code: id, base: true}
default_matchings:
  - {field_entity: CUSTOMER, field_code: missing, entity: CONTACT, code: NAME}
`))
	assert.ErrorContains(t, err, "unknown field")
}

type memoryStore struct {
	fields    []models.Field
	matchings []models.DefaultMatching
}

func (s *memoryStore) UpsertFields(_ context.Context, fields []models.Field) error {
	s.fields = fields
	return nil
}

func (s *memoryStore) ReplaceDefaultMatchings(_ context.Context, matchings []models.DefaultMatching) error {
	s.matchings = matchings
	return nil
}

func TestSeed(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	store := &memoryStore{}
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	require.NoError(t, Seed(context.Background(), store, c, logger))

	assert.Len(t, store.fields, len(c.Fields))
	assert.Len(t, store.matchings, len(c.DefaultMatchings))
}
