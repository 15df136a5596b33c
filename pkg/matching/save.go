package matching

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vukmarkovic/Europace-sub000/pkg/crm"
	matchErrors "github.com/vukmarkovic/Europace-sub000/pkg/errors"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
)

// Records is one record or a list of records. It decodes from either a JSON object or an array.
type Records []map[string]any

func (r *Records) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []map[string]any
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*r = list
		return nil
	}
	var single map[string]any
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*r = Records{single}
	return nil
}

// SaveRequest maps entity group -> CRM record id (0 to add) -> records.
type SaveRequest map[string]map[int64]Records

type SaveOptions struct {
	// CallIDField names a record property whose value keys the record's calls.
	CallIDField string `json:"call_id_field,omitempty"`
	// Fields restricts the save to these field codes. The base field is always kept.
	Fields    []string        `json:"fields,omitempty"`
	Unmatched UnmatchedPolicy `json:"unmatched,omitempty"`
}

// SavedCall identifies the record a main call id of a save belongs to.
type SavedCall struct {
	Entity   string `json:"entity"`
	RecordID int64  `json:"record_id"`
}

type SaveResult struct {
	Result map[string]any       `json:"result"`
	Errors map[string]any       `json:"errors,omitempty"`
	Calls  map[string]SavedCall `json:"calls"`
}

// SaveData writes every record of the request in one CRM batch.
//
// The portal offset is resolved once, enumeration display values are translated to
// option ids in one metadata batch, and each record's calls are keyed
// "<entity>_<call id>" where the call id comes from CallIDField or a fresh uuid.
func (m *Matcher) SaveData(ctx context.Context, tenant string, req SaveRequest, opts SaveOptions) (*SaveResult, error) {
	ctx, span := tracing.StartSpan(ctx, "Matcher.SaveData", attribute.String("tenant", tenant))
	defer span.End()

	result := &SaveResult{Result: map[string]any{}, Calls: map[string]SavedCall{}}

	entities := make([]string, 0, len(req))
	for entity := range req {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	if err := checkCallIDs(req, opts.CallIDField); err != nil {
		return nil, tracing.RecordError(span, err)
	}

	groups := make(map[string][]models.FieldView, len(entities))
	for _, entity := range entities {
		fields, _, err := m.load(ctx, tenant, entity)
		if err != nil {
			return nil, tracing.RecordError(span, err)
		}
		groups[entity] = subset(fields, opts.Fields)
	}

	options, err := m.enumOptions(ctx, tenant, entities, groups, req)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	values := ValueOptions{
		Location:         m.resolveLocation(ctx, tenant),
		DefaultPhoneCode: m.config.DefaultPhoneCode,
	}

	unmatched := opts.Unmatched
	if opts.CallIDField != "" {
		unmatched.Deny = append(slices.Clone(unmatched.Deny), opts.CallIDField)
	}

	var calls []crm.Call
	for _, entity := range entities {
		byID := req[entity]
		ids := make([]int64, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			for _, record := range byID[id] {
				callID := entity + "_" + callToken(record, opts.CallIDField)
				prepared := resolveEnumerations(entity, groups[entity], record, options)

				recordCalls, err := m.compiler.CompileWriteBatch(groups[entity], prepared, WriteTarget{
					ValueOptions: values,
					RecordID:     id,
					CallID:       callID,
					Unmatched:    unmatched,
				})
				if err != nil {
					return nil, tracing.RecordError(span, err)
				}
				calls = append(calls, recordCalls...)
				result.Calls[callID] = SavedCall{Entity: entity, RecordID: id}
			}
		}
	}

	if len(calls) == 0 {
		return result, nil
	}

	res, err := m.execute(ctx, "save_data", tenant, calls)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	result.Result = res.Result
	result.Errors = res.Errors
	return result, nil
}

// checkCallIDs rejects a request in which two records of one entity carry the same
// CallIDField value, since their calls would share a key in the batch.
func checkCallIDs(req SaveRequest, field string) error {
	if field == "" {
		return nil
	}
	for entity, byID := range req {
		seen := map[string]bool{}
		for _, records := range byID {
			for _, record := range records {
				v, ok := record[field]
				if !ok || isEmpty(v) {
					continue
				}
				token := asString(v)
				if seen[token] {
					return matchErrors.NewBadRequestError(matchErrors.CodeDuplicateCallID,
						"%s value %q is used by more than one %s record", field, token, entity).WithEntity(entity)
				}
				seen[token] = true
			}
		}
	}
	return nil
}

func callToken(record map[string]any, field string) string {
	if field != "" {
		if v, ok := record[field]; ok && !isEmpty(v) {
			return asString(v)
		}
	}
	return uuid.NewString()
}

// subset keeps the base field and the fields named in codes. No codes keeps everything.
func subset(fields []models.FieldView, codes []string) []models.FieldView {
	if len(codes) == 0 {
		return fields
	}
	keep := make(map[string]bool, len(codes))
	for _, c := range codes {
		keep[c] = true
	}
	out := make([]models.FieldView, 0, len(codes)+1)
	for _, fv := range fields {
		if fv.Base || keep[fv.Code] {
			out = append(out, fv)
		}
	}
	return out
}

// enumOptions loads display value -> option id for every enumeration field the request
// carries a value for, keyed by "<entity>_<field code>".
func (m *Matcher) enumOptions(ctx context.Context, tenant string, entities []string, groups map[string][]models.FieldView, req SaveRequest) (map[string]map[string]string, error) {
	var calls []crm.Call
	keys := map[string]models.FieldView{}

	for _, entity := range entities {
		for _, fv := range groups[entity] {
			if fv.Base || !fv.Matched() || !isEnumeration(fv) || !carries(req[entity], fv) {
				continue
			}
			key := entity + "_" + fv.Code
			a, err := m.compiler.adapter(crm.EntityField, fv)
			if err != nil {
				return nil, err
			}
			call, err := a.LinkedCall(key, *fv.Match, "")
			if err != nil {
				return nil, configError(err, fv)
			}
			calls = append(calls, call)
			keys[key] = fv
		}
	}

	if len(calls) == 0 {
		return nil, nil
	}

	res, err := m.execute(ctx, "resolve_enumerations", tenant, calls)
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[string]string, len(keys))
	for key, fv := range keys {
		meta, _ := prop(crm.Unwrap(res.Result[key]), fv.Match.Code)
		byDisplay := map[string]string{}
		for id, display := range enumOptions(meta) {
			byDisplay[strings.ToLower(asString(display))] = id
		}
		out[key] = byDisplay
	}
	return out, nil
}

func carries(byID map[int64]Records, fv models.FieldView) bool {
	p := pathOf(fv)
	for _, records := range byID {
		for _, record := range records {
			if v, ok := p.Get(record); ok && !isEmpty(v) {
				return true
			}
		}
	}
	return false
}

// resolveEnumerations returns a copy of record with enumeration display values replaced
// by option ids. Values that are already ids or unknown are left as they are.
func resolveEnumerations(entity string, fields []models.FieldView, record map[string]any, options map[string]map[string]string) map[string]any {
	if len(options) == 0 {
		return record
	}
	out := cloneMap(record)
	for _, fv := range fields {
		if !fv.Matched() || !isEnumeration(fv) {
			continue
		}
		byDisplay, ok := options[entity+"_"+fv.Code]
		if !ok {
			continue
		}
		p := pathOf(fv)
		value, ok := p.Get(out)
		if !ok {
			continue
		}
		lookup := func(v any) any {
			if id, ok := byDisplay[strings.ToLower(asString(v))]; ok {
				return id
			}
			return v
		}
		if arr, ok := value.([]any); ok {
			ids := make([]any, len(arr))
			for i, v := range arr {
				ids[i] = lookup(v)
			}
			p.Set(out, ids)
			continue
		}
		p.Set(out, lookup(value))
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case map[string]any:
			out[k] = cloneMap(t)
		case []any:
			cp := make([]any, len(t))
			for i, el := range t {
				if nested, ok := el.(map[string]any); ok {
					cp[i] = cloneMap(nested)
					continue
				}
				cp[i] = el
			}
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}
