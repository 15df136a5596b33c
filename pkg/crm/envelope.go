package crm

// envelopes are the single keys some methods wrap their payload in, e.g. crm.item.get -> {"item": {...}}.
var envelopes = map[string]bool{
	"item":     true,
	"items":    true,
	"category": true,
	"fields":   true,
}

// Unwrap strips one response envelope if value is a single-key map keyed by a known envelope.
func Unwrap(value any) any {
	m, ok := value.(map[string]any)
	if !ok || len(m) != 1 {
		return value
	}
	for k, v := range m {
		if envelopes[k] {
			return v
		}
	}
	return value
}
