package crm

import (
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
)

// address serves crm.address.* for the addresses of contacts (owner type 3) and companies (4).
type address struct {
	base
	ownerTypeID int
}

func (a address) LinkedCall(callID string, _ models.Match, ref string) (Call, error) {
	return Call{ID: callID, Method: "crm.address.list", Params: map[string]any{
		"filter": map[string]any{
			"ENTITY_TYPE_ID": a.ownerTypeID,
			"ENTITY_ID":      ref,
		},
	}}, nil
}

func (a address) AddOrUpdateCall(target Target, fields map[string]any) (Call, error) {
	method := "crm.address.add"
	if target.IsUpdate() {
		method = "crm.address.update"
	}
	return Call{ID: target.CallID, Method: method, Params: a.WrapPayload(target, fields)}, nil
}

func (a address) WrapPayload(target Target, fields map[string]any) map[string]any {
	wrapped := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		wrapped[k] = v
	}
	wrapped["TYPE_ID"] = target.TypeID
	wrapped["ENTITY_TYPE_ID"] = a.ownerTypeID
	wrapped["ENTITY_ID"] = target.Owner
	return map[string]any{"fields": wrapped}
}
