// Package matching turns the tenant's field matches into Bitrix24 batches and back.
//
// Reads compile one batch (base record, linked records, default lookups), execute it
// and parse the keyed results into the nested Europace shape. Writes compile one batch
// per save request, prepending lookups for linked identifiers and appending address
// sub-entity calls.
package matching

import (
	"errors"
	"strings"

	"github.com/Gobusters/ectolinq"
	"github.com/vukmarkovic/Europace-sub000/pkg/crm"
	matchErrors "github.com/vukmarkovic/Europace-sub000/pkg/errors"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
	"github.com/vukmarkovic/Europace-sub000/pkg/path"
)

// DefaultSuffix keys the default lookup of a field in a batch: "<field code>_default".
const DefaultSuffix = "_default"

type Compiler struct {
	registry *crm.Registry
}

func NewCompiler(registry *crm.Registry) *Compiler {
	return &Compiler{registry: registry}
}

// baseField returns the single matched base field of an entity group.
func baseField(fields []models.FieldView) (models.FieldView, error) {
	found := ectolinq.Filter(fields, func(fv models.FieldView) bool {
		return fv.Base
	})

	switch {
	case len(found) > 1:
		return models.FieldView{}, matchErrors.NewConfigurationError(matchErrors.CodeMultipleBaseField,
			"entity group has %d base fields", len(found)).WithEntity(found[0].Entity)
	case len(found) == 0 || !found[0].Matched():
		err := matchErrors.NewConfigurationError(matchErrors.CodeMissingBaseMatch, "base field is not matched")
		if len(found) == 1 {
			err = err.WithEntity(found[0].Entity).WithField(found[0].Code)
		}
		return models.FieldView{}, err
	}
	return found[0], nil
}

// adapter resolves a tag and turns unknown tags into configuration errors.
func (c *Compiler) adapter(tag string, fv models.FieldView) (crm.Adapter, error) {
	a, err := c.registry.Get(tag)
	if err != nil {
		return nil, configError(err, fv)
	}
	return a, nil
}

// configError maps adapter failures to the error a caller can act on.
func configError(err error, fv models.FieldView) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, crm.ErrMissingID) {
		return matchErrors.NewBadRequestError(matchErrors.CodeMissingFilter, "%v", err).WithEntity(fv.Entity)
	}
	var unsupported *crm.UnsupportedCapabilityError
	if errors.As(err, &unsupported) {
		return matchErrors.NewConfigurationError(matchErrors.CodeUnsupportedEntity, "%v", err).
			WithEntity(fv.Entity).WithField(fv.Code).WithCause(err)
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func isEnumeration(fv models.FieldView) bool {
	return fv.PrimaryType() == models.FieldTypeEnumeration
}

// defaultTag picks the entity a default value refers to.
func defaultTag(fv models.FieldView) string {
	return firstNonEmpty(fv.LinkType, fv.Match.ChildType, fv.Match.Entity)
}

func pathOf(fv models.FieldView) path.Path {
	return path.Parse(fv.Path())
}
