package crm

import (
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
)

const listsIblockType = "lists"

// list serves universal list elements (lists.element.*). childID is the list's iblock id.
type list struct {
	base
}

func (a list) params(childID string) map[string]any {
	return map[string]any{
		"IBLOCK_TYPE_ID": listsIblockType,
		"IBLOCK_ID":      childID,
	}
}

func (a list) GetCall(callID, childID string, filter Filter) (Call, error) {
	params := a.params(childID)
	switch {
	case filter.HasID():
		params["ELEMENT_ID"] = filter.ID
	case len(filter.Filter) > 0:
		params["FILTER"] = filter.Filter
	default:
		return Call{}, missingID(a.tag)
	}
	return Call{ID: callID, Method: "lists.element.get", Params: params}, nil
}

func (a list) ListCall(callID, childID string, filter Filter) (Call, error) {
	params := a.params(childID)
	if len(filter.Filter) > 0 {
		params["FILTER"] = filter.Filter
	}
	if filter.Start > 0 {
		params["start"] = filter.Start
	}
	return Call{ID: callID, Method: "lists.element.get", Params: params}, nil
}

func (a list) Ref(callID, property string) string {
	return Ref(callID, "0", property)
}

func (a list) LinkedCall(callID string, m models.Match, ref string) (Call, error) {
	params := a.params(m.ChildID)
	params["ELEMENT_ID"] = ref
	return Call{ID: callID, Method: "lists.element.get", Params: params}, nil
}

func (a list) DefaultCall(callID string, m models.Match) (Call, error) {
	params := a.params(m.ChildID)
	params["ELEMENT_ID"] = m.DefaultValue
	return Call{ID: callID, Method: "lists.element.get", Params: params}, nil
}

func (a list) FieldsCall(callID, childID string) (Call, error) {
	return Call{ID: callID, Method: "lists.field.get", Params: a.params(childID)}, nil
}

func (a list) LookupCall(callID, childID, property string, value any) (Call, error) {
	params := a.params(childID)
	params["FILTER"] = map[string]any{property: value}
	return Call{ID: callID, Method: "lists.element.get", Params: params}, nil
}

func (a list) AddOrUpdateCall(target Target, fields map[string]any) (Call, error) {
	method := "lists.element.add"
	if target.IsUpdate() {
		method = "lists.element.update"
	}
	return Call{ID: target.CallID, Method: method, Params: a.WrapPayload(target, fields)}, nil
}

func (a list) WrapPayload(target Target, fields map[string]any) map[string]any {
	payload := a.params(target.ChildID)
	payload["FIELDS"] = fields
	if target.IsUpdate() {
		payload["ELEMENT_ID"] = target.RecordID
	} else {
		payload["ELEMENT_CODE"] = target.CallID
	}
	return payload
}

func (a list) SupportsUnmatched() bool { return true }
