package matching

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vukmarkovic/Europace-sub000/pkg/crm"
	matchErrors "github.com/vukmarkovic/Europace-sub000/pkg/errors"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
	"github.com/vukmarkovic/Europace-sub000/pkg/path"
)

const (
	defaultAddressType = "1"
	defaultCurrency    = "EUR"
	defaultLookupCode  = "NAME"
	defaultMultiType   = "WORK"
)

// typedMultiCodes hold arrays of {VALUE, VALUE_TYPE} entries on contacts and companies.
var typedMultiCodes = map[string]bool{
	"PHONE": true,
	"EMAIL": true,
	"WEB":   true,
	"IM":    true,
}

// ValueOptions carries the per-save settings WrapValue needs.
type ValueOptions struct {
	Location         *time.Location
	DefaultPhoneCode string
}

func (o ValueOptions) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// WriteTarget addresses one record of a save.
type WriteTarget struct {
	ValueOptions
	// RecordID is the CRM id to update, 0 to add.
	RecordID int64
	// CallID keys the main call. Lookups and address calls derive their ids from it.
	CallID    string
	Unmatched UnmatchedPolicy
}

func claim(claimed map[string]bool, code string, p path.Path) {
	claimed[code] = true
	if len(p) > 0 {
		claimed[p[0].Key] = true
	}
}

// CompileWriteBatch builds the calls saving one Europace record: lookups resolving
// linked identifiers first, then the add/update of the base entity, then its address
// sub-entity calls.
func (c *Compiler) CompileWriteBatch(fields []models.FieldView, record map[string]any, target WriteTarget) ([]crm.Call, error) {
	base, err := baseField(fields)
	if err != nil {
		return nil, err
	}
	baseTag := base.Match.Entity
	baseAdapter, err := c.adapter(baseTag, base)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{}
	addresses := map[string]map[string]any{}
	claimed := map[string]bool{}
	var lookups []crm.Call

	for _, fv := range fields {
		p := pathOf(fv)
		if fv.Base {
			claim(claimed, fv.Code, p)
			continue
		}
		// an unmatched field leaves its property to the unmatched policy
		if !fv.Matched() {
			continue
		}
		claim(claimed, fv.Code, p)
		m := fv.Match

		value, ok := p.Get(record)
		if !ok {
			continue
		}

		switch {
		case crm.IsAddress(m.Entity):
			if m.Entity != crm.AddressOf(baseTag) {
				return nil, matchErrors.NewConfigurationError(matchErrors.CodeUnsupportedEntity,
					"%s cannot own %s", baseTag, m.Entity).WithEntity(fv.Entity).WithField(fv.Code)
			}
			typeID := firstNonEmpty(m.ValueType, defaultAddressType)
			bucket, ok := addresses[typeID]
			if !ok {
				bucket = map[string]any{}
				addresses[typeID] = bucket
			}
			bucket[m.Code] = WrapValue(fv, bucket[m.Code], value, target.ValueOptions)

		case m.ChildType != "":
			if isEmpty(value) {
				continue
			}
			a, err := c.adapter(m.ChildType, fv)
			if err != nil {
				return nil, err
			}
			id := target.CallID + "_" + fv.Code
			call, err := a.LookupCall(id, m.ChildID, firstNonEmpty(m.ChildCode, defaultLookupCode), value)
			if err != nil {
				return nil, configError(err, fv)
			}
			lookups = append(lookups, call)
			payload[m.Code] = a.LookupRef(id)

		case m.Entity != baseTag:
			// linked records are read-only from this entity group

		default:
			payload[m.Code] = WrapValue(fv, payload[m.Code], value, target.ValueOptions)
		}
	}

	if baseAdapter.SupportsUnmatched() {
		for k, v := range UnmatchedData(record, claimed, target.Unmatched) {
			if _, taken := payload[k]; !taken {
				payload[k] = v
			}
		}
	}

	mainCall, err := baseAdapter.AddOrUpdateCall(crm.Target{
		CallID:   target.CallID,
		RecordID: target.RecordID,
		ChildID:  base.Match.ChildID,
	}, payload)
	if err != nil {
		return nil, configError(err, base)
	}

	calls := append(lookups, mainCall)

	if len(addresses) == 0 {
		return calls, nil
	}

	addressAdapter, err := c.adapter(crm.AddressOf(baseTag), base)
	if err != nil {
		return nil, err
	}
	var owner any = crm.Ref(target.CallID)
	if target.RecordID > 0 {
		owner = target.RecordID
	}

	types := make([]string, 0, len(addresses))
	for t := range addresses {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		call, err := addressAdapter.AddOrUpdateCall(crm.Target{
			CallID:   target.CallID + "_address_" + t,
			RecordID: target.RecordID,
			Owner:    owner,
			TypeID:   t,
		}, addresses[t])
		if err != nil {
			return nil, configError(err, base)
		}
		calls = append(calls, call)
	}

	return calls, nil
}

// WrapValue converts one Europace value into the CRM representation of its match.
// existing is the value already collected for the same CRM code in this payload;
// typed multi-values append to it and free-text strings are joined onto it.
func WrapValue(fv models.FieldView, existing, value any, opts ValueOptions) any {
	m := fv.Match
	if m == nil {
		return value
	}

	if b, ok := value.(bool); ok {
		return flag(b)
	}
	if s, ok := value.(string); ok && fv.HasType(models.FieldTypeBoolean) {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return flag(true)
		case "false":
			return flag(false)
		}
	}

	if fv.IsDate() {
		return formatDate(fv, value, opts.location())
	}

	if fv.PrimaryType() == models.FieldTypeMoney {
		return formatMoney(value, m.ValueType)
	}

	if typedMultiCodes[strings.ToUpper(m.Code)] {
		if isEmpty(value) {
			return existing
		}
		s := asString(value)
		if strings.EqualFold(m.Code, "PHONE") {
			s = NormalizePhone(s, m.PhoneCodes, firstNonEmpty(m.DefaultPhoneCode, opts.DefaultPhoneCode))
		}
		entries, _ := existing.([]any)
		return append(entries, map[string]any{
			"VALUE":      s,
			"VALUE_TYPE": firstNonEmpty(m.ValueType, defaultMultiType),
		})
	}

	if s, ok := value.(string); ok && joinable(fv) {
		if prev, ok := existing.(string); ok && prev != "" {
			if s == "" {
				return prev
			}
			return prev + ", " + s
		}
	}

	return value
}

func flag(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

// joinable fields accumulate into one text column when several map to the same code.
func joinable(fv models.FieldView) bool {
	return fv.PrimaryType() == models.FieldTypeString &&
		!fv.Multiple &&
		!pathOf(fv).HasArray()
}

// formatDate renders a date in the tenant's offset. Unparseable dates become nil.
func formatDate(fv models.FieldView, value any, loc *time.Location) any {
	t, ok := parseDate(value, loc)
	if !ok {
		return nil
	}
	t = t.In(loc)
	if fv.PrimaryType() == models.FieldTypeDate {
		return t.Format(dateLayout)
	}
	return t.Format(datetimeLayout)
}

// formatMoney renders the CRM money encoding "<amount>|<currency>".
func formatMoney(value any, currency string) any {
	var amount decimal.Decimal
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		amount = decimal.NewFromFloat(v)
	case int:
		amount = decimal.NewFromInt(int64(v))
	case int64:
		amount = decimal.NewFromInt(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		if strings.Contains(s, "|") {
			return s
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
		if err != nil {
			return nil
		}
		amount = d
	default:
		f, err := strconv.ParseFloat(asString(v), 64)
		if err != nil {
			return nil
		}
		amount = decimal.NewFromFloat(f)
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		currency = defaultCurrency
	}
	return amount.StringFixed(2) + "|" + currency
}
