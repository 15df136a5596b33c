package matching

// Record keys controlling unmatched passthrough on writes.
const (
	UnmatchedDataKey = "unmatchedData"
	HasUnmatchedKey  = "hasUnmatched"
)

// UnmatchedPolicy filters the properties written to the CRM without a match.
// An empty Allow admits every property; Deny always wins.
type UnmatchedPolicy struct {
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

func (p UnmatchedPolicy) permits(key string) bool {
	for _, d := range p.Deny {
		if d == key {
			return false
		}
	}
	if len(p.Allow) == 0 {
		return true
	}
	for _, a := range p.Allow {
		if a == key {
			return true
		}
	}
	return false
}

// UnmatchedData returns the properties of record to pass through to the CRM unmatched.
//
// An explicit unmatchedData bag wins. Otherwise, when hasUnmatched is set, every
// primitive top-level property not claimed by a matched field is taken. Returns nil
// when there is nothing to pass through.
func UnmatchedData(record map[string]any, claimed map[string]bool, policy UnmatchedPolicy) map[string]any {
	out := map[string]any{}

	if bag, ok := record[UnmatchedDataKey].(map[string]any); ok {
		for k, v := range bag {
			if policy.permits(k) {
				out[k] = v
			}
		}
	} else if flag, _ := record[HasUnmatchedKey].(bool); flag {
		for k, v := range record {
			if k == HasUnmatchedKey || k == UnmatchedDataKey || claimed[k] {
				continue
			}
			if isPrimitive(v) && policy.permits(k) {
				out[k] = v
			}
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
