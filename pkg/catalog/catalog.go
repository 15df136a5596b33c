// Package catalog holds the static description of every Europace field the engine can map.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"sort"

	"github.com/Gobusters/ectologger"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var seed []byte

type Catalog struct {
	Fields           []models.Field           `yaml:"fields"`
	DefaultMatchings []models.DefaultMatching `yaml:"default_matchings"`
}

// Load parses the embedded catalog and validates it.
func Load() (*Catalog, error) {
	return Parse(seed)
}

func Parse(data []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse field catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate() error {
	ids := map[int64]bool{}
	codes := map[string]bool{}
	bases := map[string]int{}

	for _, f := range c.Fields {
		if f.ID == 0 || f.Code == "" || f.Entity == "" {
			return fmt.Errorf("field %q in %q needs id, code and entity", f.Code, f.Entity)
		}
		if ids[f.ID] {
			return fmt.Errorf("duplicate field id %d", f.ID)
		}
		ids[f.ID] = true

		key := f.Entity + "." + f.Code
		if codes[key] {
			return fmt.Errorf("duplicate field code %s", key)
		}
		codes[key] = true

		if f.Base {
			bases[f.Entity]++
		}
	}

	for _, entity := range c.Entities() {
		if bases[entity] != 1 {
			return fmt.Errorf("entity %s must have exactly one base field, found %d", entity, bases[entity])
		}
	}

	for i, d := range c.DefaultMatchings {
		f, ok := c.Field(d.FieldEntity, d.FieldCode)
		if !ok {
			return fmt.Errorf("default matching %d references unknown field %s.%s", i, d.FieldEntity, d.FieldCode)
		}
		if f.Base {
			return fmt.Errorf("default matching %d targets base field %s.%s", i, d.FieldEntity, d.FieldCode)
		}
		c.DefaultMatchings[i].FieldID = f.ID
	}
	return nil
}

// Entities returns the distinct entity groups in sorted order.
func (c *Catalog) Entities() []string {
	seen := map[string]bool{}
	entities := []string{}
	for _, f := range c.Fields {
		if !seen[f.Entity] {
			seen[f.Entity] = true
			entities = append(entities, f.Entity)
		}
	}
	sort.Strings(entities)
	return entities
}

func (c *Catalog) Field(entity, code string) (models.Field, bool) {
	for _, f := range c.Fields {
		if f.Entity == entity && f.Code == code {
			return f, true
		}
	}
	return models.Field{}, false
}

type Store interface {
	UpsertFields(ctx context.Context, fields []models.Field) error
	ReplaceDefaultMatchings(ctx context.Context, matchings []models.DefaultMatching) error
}

// Seed writes the catalog and its default matchings. It is safe to run on every start.
func Seed(ctx context.Context, store Store, c *Catalog, logger ectologger.Logger) error {
	if err := store.UpsertFields(ctx, c.Fields); err != nil {
		return fmt.Errorf("failed to seed fields: %w", err)
	}
	if err := store.ReplaceDefaultMatchings(ctx, c.DefaultMatchings); err != nil {
		return fmt.Errorf("failed to seed default matchings: %w", err)
	}
	logger.WithContext(ctx).WithFields(map[string]any{
		"fields":            len(c.Fields),
		"default_matchings": len(c.DefaultMatchings),
	}).Info("field catalog seeded")
	return nil
}
