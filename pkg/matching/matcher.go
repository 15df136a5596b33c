package matching

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vukmarkovic/Europace-sub000/pkg/crm"
	matchErrors "github.com/vukmarkovic/Europace-sub000/pkg/errors"
	"github.com/vukmarkovic/Europace-sub000/pkg/metrics"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
)

// FieldSource loads a tenant's field views of one entity group, base first then by sort.
type FieldSource interface {
	LoadFields(ctx context.Context, tenant, entity string) ([]models.FieldView, error)
}

// AuthSource reads a tenant's installation. The timezone stored at install is the
// fallback when the portal offset cannot be read.
type AuthSource interface {
	Get(ctx context.Context, id string) (models.Auth, error)
}

type Config struct {
	// DefaultUTCOffset is used when the tenant's portal offset cannot be read, e.g. "+01:00".
	DefaultUTCOffset string
	DefaultPhoneCode string
}

// Matcher runs the read and write pipelines for one request at a time. It holds no
// per-call state and is safe for concurrent use.
type Matcher struct {
	fields     FieldSource
	auths      AuthSource
	transport  crm.Transport
	registry   *crm.Registry
	compiler   *Compiler
	parser     *Parser
	logger     ectologger.Logger
	config     Config
	defaultLoc *time.Location
}

func NewMatcher(fields FieldSource, transport crm.Transport, registry *crm.Registry, logger ectologger.Logger, config Config) (*Matcher, error) {
	loc, err := ParseUTCOffset(config.DefaultUTCOffset)
	if err != nil {
		return nil, err
	}
	return &Matcher{
		fields:     fields,
		transport:  transport,
		registry:   registry,
		compiler:   NewCompiler(registry),
		parser:     NewParser(registry, logger),
		logger:     logger,
		config:     config,
		defaultLoc: loc,
	}, nil
}

// WithAuths makes saves fall back to the tenant's stored timezone before the default offset.
func (m *Matcher) WithAuths(auths AuthSource) *Matcher {
	m.auths = auths
	return m
}

// ParseUTCOffset turns "+01:00", "-0530" or "" (UTC) into a fixed zone.
func ParseUTCOffset(offset string) (*time.Location, error) {
	offset = strings.TrimSpace(offset)
	if offset == "" || offset == "Z" {
		return time.UTC, nil
	}
	for _, layout := range []string{"-07:00", "-0700", "-07"} {
		if t, err := time.Parse(layout, offset); err == nil {
			_, seconds := t.Zone()
			return time.FixedZone("UTC"+offset, seconds), nil
		}
	}
	return nil, fmt.Errorf("invalid UTC offset %q", offset)
}

// PrepareData reads one record with its linked data and returns it in Europace shape.
func (m *Matcher) PrepareData(ctx context.Context, tenant, entity string, filter crm.Filter, unmatched UnmatchedFields) (*Record, error) {
	ctx, span := tracing.StartSpan(ctx, "Matcher.PrepareData",
		attribute.String("tenant", tenant), attribute.String("entity", entity))
	defer span.End()

	fields, base, err := m.load(ctx, tenant, entity)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	calls, err := m.compiler.CompileReadBatch(fields, filter)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	res, err := m.execute(ctx, "prepare_data", tenant, calls)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	baseTag := base.Match.Entity
	if isEmpty(narrowRecord(crm.Unwrap(res.Result[baseTag]), "")) {
		return nil, tracing.RecordError(span, matchErrors.NewNotFoundError("%s record %v not found", baseTag, filter.ID).WithEntity(entity))
	}

	return m.parser.Parse(ctx, fields, res.Result, unmatched)
}

// PrepareList reads a page of base records without linked data. Linked fields fall back
// to their defaults.
func (m *Matcher) PrepareList(ctx context.Context, tenant, entity string, filter crm.Filter, unmatched UnmatchedFields) ([]*Record, error) {
	ctx, span := tracing.StartSpan(ctx, "Matcher.PrepareList",
		attribute.String("tenant", tenant), attribute.String("entity", entity))
	defer span.End()

	fields, base, items, err := m.list(ctx, tenant, entity, filter)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	baseTag := base.Match.Entity
	records := make([]*Record, 0, len(items))
	for _, item := range items {
		record, err := m.parser.Parse(ctx, fields, map[string]any{baseTag: item}, unmatched)
		if err != nil {
			return nil, tracing.RecordError(span, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// PrepareListWithLinkedData lists base records and reads each one again with its linked
// data. Records removed between the list and the read are skipped.
func (m *Matcher) PrepareListWithLinkedData(ctx context.Context, tenant, entity string, filter crm.Filter, unmatched UnmatchedFields) ([]*Record, error) {
	ctx, span := tracing.StartSpan(ctx, "Matcher.PrepareListWithLinkedData",
		attribute.String("tenant", tenant), attribute.String("entity", entity))
	defer span.End()

	_, _, items, err := m.list(ctx, tenant, entity, filter)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	records := make([]*Record, 0, len(items))
	for _, item := range items {
		id, ok := prop(item, "ID")
		if !ok || isEmpty(id) {
			continue
		}
		record, err := m.PrepareData(ctx, tenant, entity, crm.Filter{ID: id}, unmatched)
		if matchErrors.IsKind(err, matchErrors.KindNotFound) {
			m.logger.WithContext(ctx).WithField("id", id).Warn("listed record disappeared before it was read")
			continue
		}
		if err != nil {
			return nil, tracing.RecordError(span, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Transform parses an already fetched base record without reading linked data.
func (m *Matcher) Transform(ctx context.Context, tenant, entity string, crmRecord map[string]any, unmatched UnmatchedFields) (*Record, error) {
	ctx, span := tracing.StartSpan(ctx, "Matcher.Transform",
		attribute.String("tenant", tenant), attribute.String("entity", entity))
	defer span.End()

	fields, base, err := m.load(ctx, tenant, entity)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	return m.parser.Parse(ctx, fields, map[string]any{base.Match.Entity: crmRecord}, unmatched)
}

// MatchData converts a Europace record into CRM field codes and values without lookups.
// Fields resolved through linked records carry their raw value.
func (m *Matcher) MatchData(ctx context.Context, tenant, entity string, record map[string]any) (map[string]any, error) {
	ctx, span := tracing.StartSpan(ctx, "Matcher.MatchData",
		attribute.String("tenant", tenant), attribute.String("entity", entity))
	defer span.End()

	fields, base, err := m.load(ctx, tenant, entity)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}

	opts := ValueOptions{Location: m.defaultLoc, DefaultPhoneCode: m.config.DefaultPhoneCode}
	baseTag := base.Match.Entity
	out := map[string]any{}
	for _, fv := range fields {
		if fv.Base || !fv.Matched() {
			continue
		}
		mt := fv.Match
		if mt.Entity != baseTag && mt.Entity != crm.AddressOf(baseTag) {
			continue
		}
		value, ok := pathOf(fv).Get(record)
		if !ok {
			continue
		}
		if mt.ChildType != "" {
			out[mt.Code] = value
			continue
		}
		out[mt.Code] = WrapValue(fv, out[mt.Code], value, opts)
	}
	return out, nil
}

// CheckParent reports whether the child's CRM entity carries the foreign key its parent
// would be linked through, e.g. contactId or parentId<N> on a smart process.
func (m *Matcher) CheckParent(ctx context.Context, tenant string, parent, child models.FieldView) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "Matcher.CheckParent", attribute.String("tenant", tenant))
	defer span.End()

	if !parent.Matched() || !child.Matched() {
		return false, tracing.RecordError(span, matchErrors.NewBadRequestError(matchErrors.CodeMissingMatch,
			"parent and child must both be matched").WithEntity(child.Entity).WithField(child.Code))
	}

	childTag := firstNonEmpty(child.Match.ChildType, child.Match.Entity)
	childAdapter, err := m.compiler.adapter(childTag, child)
	if err != nil {
		return false, tracing.RecordError(span, err)
	}

	key, err := childAdapter.ForeignKey(parent.Match.Entity, parent.Match.ChildID)
	if err != nil {
		return false, tracing.RecordError(span, configError(err, child))
	}

	call, err := childAdapter.FieldsCall("fields", child.Match.ChildID)
	if err != nil {
		return false, tracing.RecordError(span, configError(err, child))
	}

	res, err := m.transport.ExecuteSingle(ctx, tenant, call)
	if err != nil {
		return false, tracing.RecordError(span, matchErrors.WrapIntegrationError(err, "reading field metadata failed"))
	}

	_, ok := prop(crm.Unwrap(res.Result), key)
	return ok, nil
}

// resolveLocation reads the portal's offset once per save. When the portal cannot tell,
// the timezone stored at install is used, then the default offset.
func (m *Matcher) resolveLocation(ctx context.Context, tenant string) *time.Location {
	res, err := m.transport.ExecuteSingle(ctx, tenant, crm.Call{ID: "user_current", Method: "user.current", Params: map[string]any{}})
	if err != nil {
		m.logger.WithContext(ctx).WithError(err).Warn("portal timezone unavailable, using stored timezone")
		return m.storedLocation(ctx, tenant)
	}

	if raw, ok := prop(res.Result, "TIME_ZONE_OFFSET"); ok && !isEmpty(raw) {
		if seconds, err := strconv.Atoi(asString(raw)); err == nil {
			return time.FixedZone("portal", seconds)
		}
	}
	if name, ok := prop(res.Result, "TIME_ZONE"); ok && !isEmpty(name) {
		if loc, err := time.LoadLocation(asString(name)); err == nil {
			return loc
		}
	}
	return m.storedLocation(ctx, tenant)
}

func (m *Matcher) storedLocation(ctx context.Context, tenant string) *time.Location {
	if m.auths == nil {
		return m.defaultLoc
	}
	auth, err := m.auths.Get(ctx, tenant)
	if err != nil || auth.Timezone == "" {
		return m.defaultLoc
	}
	if loc, err := time.LoadLocation(auth.Timezone); err == nil {
		return loc
	}
	if loc, err := ParseUTCOffset(auth.Timezone); err == nil {
		return loc
	}
	m.logger.WithContext(ctx).WithField("timezone", auth.Timezone).Warn("stored timezone is invalid, using default offset")
	return m.defaultLoc
}

func (m *Matcher) load(ctx context.Context, tenant, entity string) ([]models.FieldView, models.FieldView, error) {
	fields, err := m.fields.LoadFields(ctx, tenant, entity)
	if err != nil {
		return nil, models.FieldView{}, err
	}
	base, err := baseField(fields)
	if err != nil {
		return nil, models.FieldView{}, err
	}
	return fields, base, nil
}

func (m *Matcher) list(ctx context.Context, tenant, entity string, filter crm.Filter) ([]models.FieldView, models.FieldView, []any, error) {
	fields, base, err := m.load(ctx, tenant, entity)
	if err != nil {
		return nil, base, nil, err
	}

	baseTag := base.Match.Entity
	a, err := m.compiler.adapter(baseTag, base)
	if err != nil {
		return nil, base, nil, err
	}
	call, err := a.ListCall(baseTag, base.Match.ChildID, filter)
	if err != nil {
		return nil, base, nil, configError(err, base)
	}

	metrics.MatchingCallsTotal.WithLabelValues("prepare_list").Inc()
	items, err := m.transport.ListCall(ctx, tenant, call)
	if err != nil {
		metrics.MatchingBatchesTotal.WithLabelValues("prepare_list", "error").Inc()
		return nil, base, nil, matchErrors.WrapIntegrationError(err, "listing records failed")
	}
	metrics.MatchingBatchesTotal.WithLabelValues("prepare_list", "success").Inc()

	return fields, base, items, nil
}

// execute runs one batch and records its metrics. Errors of single calls stay in the
// result for the caller to inspect.
func (m *Matcher) execute(ctx context.Context, operation, tenant string, calls []crm.Call) (crm.BatchResult, error) {
	metrics.MatchingCallsTotal.WithLabelValues(operation).Add(float64(len(calls)))
	start := time.Now()
	res, err := m.transport.ExecuteBatch(ctx, tenant, calls)
	metrics.MatchingBatchDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MatchingBatchesTotal.WithLabelValues(operation, "error").Inc()
		m.logger.WithContext(ctx).WithError(err).WithField("operation", operation).Error("CRM batch failed")
		return crm.BatchResult{}, matchErrors.WrapIntegrationError(err, "CRM batch failed")
	}
	metrics.MatchingBatchesTotal.WithLabelValues(operation, "success").Inc()

	if len(res.Errors) > 0 {
		m.logger.WithContext(ctx).WithFields(map[string]any{
			"operation": operation,
			"errors":    res.Errors,
		}).Debug("CRM batch returned call errors")
	}
	if res.Result == nil {
		res.Result = map[string]any{}
	}
	return res, nil
}
