package crm

import (
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
)

// smartProcess serves crm.item.*. Single items come back as {"item": {...}}, lists as {"items": [...]}.
type smartProcess struct {
	base
}

func (a smartProcess) GetCall(callID, childID string, filter Filter) (Call, error) {
	if !filter.HasID() {
		return Call{}, missingID(a.tag)
	}
	return Call{ID: callID, Method: "crm.item.get", Params: map[string]any{
		"entityTypeId": childID,
		"id":           filter.ID,
	}}, nil
}

func (a smartProcess) ListCall(callID, childID string, filter Filter) (Call, error) {
	params := map[string]any{
		"entityTypeId": childID,
		"select":       []string{"*"},
	}
	if len(filter.Filter) > 0 {
		params["filter"] = filter.Filter
	}
	if len(filter.Order) > 0 {
		params["order"] = filter.Order
	}
	if filter.Start > 0 {
		params["start"] = filter.Start
	}
	return Call{ID: callID, Method: "crm.item.list", Params: params}, nil
}

func (a smartProcess) Ref(callID, property string) string {
	return Ref(callID, "item", property)
}

func (a smartProcess) ForeignKey(linked, linkedChildID string) (string, error) {
	switch linked {
	case EntityContact:
		return "contactId", nil
	case EntityCompany:
		return "companyId", nil
	case EntityUser:
		return "assignedById", nil
	case EntitySmartProcess:
		if linkedChildID == "" {
			break
		}
		return "parentId" + linkedChildID, nil
	}
	return "", unsupported(a.tag, CapabilityForeignKey)
}

func (a smartProcess) LinkedCall(callID string, m models.Match, ref string) (Call, error) {
	return Call{ID: callID, Method: "crm.item.get", Params: map[string]any{
		"entityTypeId": m.ChildID,
		"id":           ref,
	}}, nil
}

func (a smartProcess) FieldsCall(callID, childID string) (Call, error) {
	return Call{ID: callID, Method: "crm.item.fields", Params: map[string]any{"entityTypeId": childID}}, nil
}

func (a smartProcess) LookupCall(callID, childID, property string, value any) (Call, error) {
	return Call{ID: callID, Method: "crm.item.list", Params: map[string]any{
		"entityTypeId": childID,
		"filter":       map[string]any{property: value},
		"select":       []string{"id"},
	}}, nil
}

func (a smartProcess) LookupRef(callID string) string {
	return Ref(callID, "items", "0", "id")
}

func (a smartProcess) AddOrUpdateCall(target Target, fields map[string]any) (Call, error) {
	method := "crm.item.add"
	if target.IsUpdate() {
		method = "crm.item.update"
	}
	return Call{ID: target.CallID, Method: method, Params: a.WrapPayload(target, fields)}, nil
}

func (a smartProcess) WrapPayload(target Target, fields map[string]any) map[string]any {
	payload := map[string]any{
		"entityTypeId": target.ChildID,
		"fields":       fields,
	}
	if target.IsUpdate() {
		payload["id"] = target.RecordID
	}
	return payload
}

func (a smartProcess) SupportsUnmatched() bool { return true }

func (a smartProcess) IsIdentity() bool { return true }
