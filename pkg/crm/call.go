// Package crm describes Bitrix24 REST calls and the per-entity adapters that build them.
package crm

import (
	"context"
	"fmt"
	"strings"
)

// Call is one Bitrix24 REST call inside a batch.
type Call struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// BatchResult holds per-call results and errors keyed by call id.
type BatchResult struct {
	Result map[string]any `json:"result"`
	Errors map[string]any `json:"errors"`
}

type Result struct {
	Result any `json:"result"`
	Error  any `json:"error,omitempty"`
}

// Transport executes calls against a tenant's portal.
type Transport interface {
	ExecuteBatch(ctx context.Context, tenant string, calls []Call) (BatchResult, error)
	ExecuteSingle(ctx context.Context, tenant string, call Call) (Result, error)
	ListCall(ctx context.Context, tenant string, call Call) ([]any, error)
}

// Ref builds a batch placeholder pointing into the result of an earlier call,
// e.g. Ref("CONTACT", "COMPANY_ID") == "$result[CONTACT][COMPANY_ID]".
func Ref(callID string, path ...string) string {
	var b strings.Builder
	b.WriteString("$result[")
	b.WriteString(callID)
	b.WriteString("]")
	for _, p := range path {
		b.WriteString("[")
		b.WriteString(p)
		b.WriteString("]")
	}
	return b.String()
}

// Filter selects the base record of a read.
type Filter struct {
	ID     any               `json:"id,omitempty"`
	Filter map[string]any    `json:"filter,omitempty"`
	Order  map[string]string `json:"order,omitempty"`
	Start  int               `json:"start,omitempty"`
}

func (f Filter) HasID() bool {
	switch v := f.ID.(type) {
	case nil:
		return false
	case string:
		return v != ""
	default:
		return fmt.Sprint(v) != "0"
	}
}

// Target addresses the record a write call applies to.
type Target struct {
	CallID   string
	RecordID int64
	// ChildID is the sub-type selector: smart-process type id or list iblock id.
	ChildID string
	// Owner is the id, or a result placeholder, of the record an address belongs to.
	Owner any
	// TypeID is the address type for address sub-entities.
	TypeID string
}

func (t Target) IsUpdate() bool {
	return t.RecordID > 0
}
