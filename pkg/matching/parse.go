package matching

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/vukmarkovic/Europace-sub000/pkg/crm"
	"github.com/vukmarkovic/Europace-sub000/pkg/metrics"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
	"github.com/vukmarkovic/Europace-sub000/pkg/path"
)

// Record is one parsed Europace object.
type Record struct {
	Data map[string]any `json:"data"`
	// Defaults holds resolved default lookups by field code, used or not.
	Defaults map[string]any `json:"defaults,omitempty"`
	// Raws holds the unprocessed linked record of child-code fields by field code.
	Raws map[string]any `json:"raws,omitempty"`
}

// UnmatchedFields copies raw properties from batch slices: entity tag -> "CODE" or "CODE|dotted.path".
type UnmatchedFields map[string][]string

type Parser struct {
	registry *crm.Registry
	logger   ectologger.Logger
}

func NewParser(registry *crm.Registry, logger ectologger.Logger) *Parser {
	return &Parser{registry: registry, logger: logger}
}

// Parse rebuilds the Europace object from a batch result keyed by call id.
// Malformed field data never fails the parse; it degrades to the field default or nil.
func (p *Parser) Parse(ctx context.Context, fields []models.FieldView, batch map[string]any, unmatched UnmatchedFields) (*Record, error) {
	base, err := baseField(fields)
	if err != nil {
		return nil, err
	}
	baseTag := base.Match.Entity

	record := &Record{
		Data:     map[string]any{},
		Defaults: map[string]any{},
		Raws:     map[string]any{},
	}

	for _, fv := range fields {
		target := pathOf(fv)

		switch {
		case fv.Base:
			baseRecord := narrowRecord(crm.Unwrap(batch[baseTag]), "")
			id, _ := prop(baseRecord, firstNonEmpty(fv.Match.Code, "ID"))
			target.Set(record.Data, id)
		case !fv.Matched():
			target.Set(record.Data, fv.Default)
		default:
			target.Set(record.Data, p.fieldValue(ctx, fv, batch, baseTag, record))
		}
	}

	for tag, specs := range unmatched {
		source := narrowRecord(crm.Unwrap(batch[tag]), "")
		for _, spec := range specs {
			code, dotted, _ := strings.Cut(spec, "|")
			value, ok := prop(source, code)
			if !ok {
				continue
			}
			path.Parse(firstNonEmpty(dotted, code)).Set(record.Data, value)
		}
	}

	return record, nil
}

func (p *Parser) fieldValue(ctx context.Context, fv models.FieldView, batch map[string]any, baseTag string, record *Record) any {
	m := fv.Match
	slice := narrowRecord(crm.Unwrap(batch[sliceKey(fv, baseTag)]), m.ValueType)

	var value any
	switch {
	case isEnumeration(fv):
		value = p.resolveEnumeration(ctx, fv, batch, baseTag)
	case fv.PrimaryType() == models.FieldTypeMoney:
		// TODO(product): confirm which slot of the money value holds the amount; until then
		// money reads degrade to empty instead of the NaN encoding/json cannot carry.
		p.degrade(ctx, fv, "money_unresolved")
	case m.ChildCode != "":
		if slice != nil {
			record.Raws[fv.Code] = slice
		}
		value, _ = prop(slice, m.ChildCode)
	default:
		value, _ = prop(slice, m.Code)
	}

	value = unwrapValue(value)

	if m.ValueType != "" {
		if selected, found, typed := selectTyped(value, m.ValueType); typed {
			value = selected
			if !found {
				value = fv.Default
			}
		}
	}

	if arr, ok := value.([]any); ok && !fv.Multiple {
		value = nil
		if len(arr) > 0 {
			value = arr[0]
		}
	}

	if fallback, ok := p.defaultValue(fv, batch); ok {
		record.Defaults[fv.Code] = fallback
		if isEmpty(value) {
			value = fallback
		}
	}

	if fv.IsDate() {
		t, ok := parseDate(value, time.UTC)
		if !ok {
			if !isEmpty(value) {
				p.degrade(ctx, fv, "date_unparseable")
			}
			return fv.Default
		}
		if fv.PrimaryType() == models.FieldTypeDate {
			return t.Format(dateLayout)
		}
		return t.Format(datetimeLayout)
	}

	if fv.HasType(models.FieldTypeBoolean) {
		value = coerceBool(value)
	}

	return value
}

// sliceKey is the batch key holding the record a matched field reads from.
func sliceKey(fv models.FieldView, baseTag string) string {
	if needsLinked(fv, baseTag) && !isEnumeration(fv) {
		return linkKey(fv)
	}
	return baseTag
}

// resolveEnumeration maps option ids to display values using the fields metadata
// stored under the match code. Unknown ids resolve to nil.
func (p *Parser) resolveEnumeration(ctx context.Context, fv models.FieldView, batch map[string]any, baseTag string) any {
	m := fv.Match
	owner := baseTag
	if m.Entity != "" && m.Entity != baseTag {
		owner = m.Entity
	}
	raw, _ := prop(narrowRecord(crm.Unwrap(batch[owner]), ""), m.Code)
	meta, _ := prop(crm.Unwrap(batch[m.Code]), m.Code)
	options := enumOptions(meta)

	resolve := func(id any) any {
		display, ok := options[asString(unwrapSingle(id))]
		if !ok {
			if !isEmpty(id) {
				p.degrade(ctx, fv, "enum_unresolved")
			}
			return nil
		}
		return display
	}

	if arr, ok := raw.([]any); ok {
		out := make([]any, 0, len(arr))
		for _, id := range arr {
			out = append(out, resolve(id))
		}
		return out
	}
	return resolve(raw)
}

// enumOptions reads option id -> display value from crm.*.fields ("items") or
// lists.field.get ("DISPLAY_VALUES_FORM") metadata.
func enumOptions(meta any) map[string]any {
	options := map[string]any{}
	if items, ok := prop(meta, "items"); ok {
		if arr, ok := items.([]any); ok {
			for _, item := range arr {
				id, _ := prop(item, "ID")
				value, _ := prop(item, "VALUE")
				options[asString(id)] = value
			}
		}
	}
	if form, ok := prop(meta, "DISPLAY_VALUES_FORM"); ok {
		if values, ok := form.(map[string]any); ok {
			for id, value := range values {
				options[id] = value
			}
		}
	}
	return options
}

// defaultValue reads the "<code>_default" companion slice. Identity entities answer
// with their ID, others with the match's child or own code.
func (p *Parser) defaultValue(fv models.FieldView, batch map[string]any) (any, bool) {
	slice, ok := batch[fv.Code+DefaultSuffix]
	if !ok || isEmpty(slice) {
		return nil, false
	}
	source := narrowRecord(crm.Unwrap(slice), "")

	key := firstNonEmpty(fv.Match.ChildCode, fv.Match.Code)
	if a, err := p.registry.Get(defaultTag(fv)); err == nil && a.IsIdentity() {
		key = "ID"
	}

	value, ok := prop(source, key)
	if !ok || isEmpty(value) {
		return nil, false
	}
	return unwrapSingle(value), true
}

func (p *Parser) degrade(ctx context.Context, fv models.FieldView, kind string) {
	metrics.MatchingDegradationsTotal.WithLabelValues(kind).Inc()
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"entity": fv.Entity,
		"field":  fv.Code,
		"kind":   kind,
	}).Debug("field value degraded")
}
