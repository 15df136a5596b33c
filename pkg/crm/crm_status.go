package crm

import (
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
)

// crmStatus serves crm.status.list. childID is the status ENTITY_ID, e.g. "SOURCE".
type crmStatus struct {
	base
}

func (a crmStatus) ListCall(callID, childID string, filter Filter) (Call, error) {
	f := map[string]any{"ENTITY_ID": childID}
	for k, v := range filter.Filter {
		f[k] = v
	}
	return Call{ID: callID, Method: "crm.status.list", Params: map[string]any{"filter": f}}, nil
}

func (a crmStatus) Ref(callID, property string) string {
	return Ref(callID, "0", property)
}

func (a crmStatus) LinkedCall(callID string, m models.Match, ref string) (Call, error) {
	return a.ListCall(callID, m.ChildID, Filter{Filter: map[string]any{"STATUS_ID": ref}})
}

func (a crmStatus) DefaultCall(callID string, m models.Match) (Call, error) {
	return a.ListCall(callID, m.ChildID, Filter{Filter: map[string]any{"STATUS_ID": m.DefaultValue}})
}

func (a crmStatus) LookupCall(callID, childID, property string, value any) (Call, error) {
	return a.ListCall(callID, childID, Filter{Filter: map[string]any{property: value}})
}

func (a crmStatus) LookupRef(callID string) string {
	return Ref(callID, "0", "STATUS_ID")
}
