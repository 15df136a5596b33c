package matching

import (
	"github.com/vukmarkovic/Europace-sub000/pkg/crm"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
)

// CompileReadBatch builds the calls that read one base record with its linked data.
//
// The base call is keyed by the base match's entity tag. Linked calls are keyed by the
// match code for enumeration and child-code fields, otherwise by the linked entity tag,
// so fields reading the same linked record share a call. Default lookups are keyed
// "<field code>_default".
func (c *Compiler) CompileReadBatch(fields []models.FieldView, filter crm.Filter) ([]crm.Call, error) {
	base, err := baseField(fields)
	if err != nil {
		return nil, err
	}

	baseTag := base.Match.Entity
	baseAdapter, err := c.adapter(baseTag, base)
	if err != nil {
		return nil, err
	}

	baseCall, err := baseAdapter.GetCall(baseTag, base.Match.ChildID, filter)
	if err != nil {
		return nil, configError(err, base)
	}

	calls := []crm.Call{baseCall}
	seen := map[string]bool{baseTag: true}
	source := crm.Source{CallID: baseTag, Adapter: baseAdapter}

	for _, fv := range fields {
		if fv.Base || !fv.Matched() {
			continue
		}

		if fv.Match.DefaultValue != "" {
			call, err := c.defaultCall(fv)
			if err != nil {
				return nil, err
			}
			calls = append(calls, call)
		}

		if !needsLinked(fv, baseTag) {
			continue
		}
		key := linkKey(fv)
		if seen[key] {
			continue
		}
		seen[key] = true

		call, err := c.linkedCall(key, fv, base, source)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}

	return calls, nil
}

func (c *Compiler) defaultCall(fv models.FieldView) (crm.Call, error) {
	a, err := c.adapter(defaultTag(fv), fv)
	if err != nil {
		return crm.Call{}, err
	}
	call, err := a.DefaultCall(fv.Code+DefaultSuffix, *fv.Match)
	return call, configError(err, fv)
}

func (c *Compiler) linkedCall(key string, fv, base models.FieldView, source crm.Source) (crm.Call, error) {
	m := *fv.Match
	if m.ChildID == "" && m.Entity == base.Match.Entity {
		m.ChildID = base.Match.ChildID
	}

	switch {
	case isEnumeration(fv):
		a, err := c.adapter(crm.EntityField, fv)
		if err != nil {
			return crm.Call{}, err
		}
		call, err := a.LinkedCall(key, m, "")
		return call, configError(err, fv)

	case m.ChildType != "":
		a, err := c.adapter(m.ChildType, fv)
		if err != nil {
			return crm.Call{}, err
		}
		call, err := a.LinkedCall(key, m, source.Ref(m.Code))
		return call, configError(err, fv)

	default:
		a, err := c.adapter(m.Entity, fv)
		if err != nil {
			return crm.Call{}, err
		}
		ref, err := source.ForeignRef(m.Entity, m.ChildID)
		if err != nil {
			return crm.Call{}, configError(err, fv)
		}
		call, err := a.LinkedCall(key, m, ref)
		return call, configError(err, fv)
	}
}

// needsLinked is true when a field's value lives outside the base record.
func needsLinked(fv models.FieldView, baseTag string) bool {
	return fv.Match.ChildCode != "" || isEnumeration(fv) || fv.Match.Entity != baseTag
}

// linkKey is the batch key a linked field reads from.
func linkKey(fv models.FieldView) string {
	if fv.Match.ChildCode != "" || isEnumeration(fv) {
		return fv.Match.Code
	}
	return fv.Match.Entity
}
