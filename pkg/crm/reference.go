package crm

import (
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
)

// iblockSection resolves list section defaults.
type iblockSection struct {
	base
}

func (a iblockSection) DefaultCall(callID string, m models.Match) (Call, error) {
	return Call{ID: callID, Method: "lists.section.get", Params: map[string]any{
		"IBLOCK_TYPE_ID": listsIblockType,
		"IBLOCK_ID":      m.ChildID,
		"FILTER":         map[string]any{"ID": m.DefaultValue},
	}}, nil
}

// crmCategory resolves pipelines. childID is the owning entity type id.
type crmCategory struct {
	base
}

func (a crmCategory) Ref(callID, property string) string {
	return Ref(callID, "category", property)
}

func (a crmCategory) LinkedCall(callID string, m models.Match, ref string) (Call, error) {
	return Call{ID: callID, Method: "crm.category.get", Params: map[string]any{
		"entityTypeId": m.ChildID,
		"id":           ref,
	}}, nil
}

func (a crmCategory) DefaultCall(callID string, m models.Match) (Call, error) {
	return Call{ID: callID, Method: "crm.category.get", Params: map[string]any{
		"entityTypeId": m.ChildID,
		"id":           m.DefaultValue,
	}}, nil
}

func (a crmCategory) IsIdentity() bool { return true }

// field reads enumeration metadata through the adapter of the match's own entity.
type field struct {
	base
	registry *Registry
}

func (a field) LinkedCall(callID string, m models.Match, _ string) (Call, error) {
	owner, err := a.registry.Get(m.Entity)
	if err != nil {
		return Call{}, err
	}
	return owner.FieldsCall(callID, m.ChildID)
}
