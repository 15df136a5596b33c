package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// SyncTask asks for one CRM record to be pushed to Europace.
type SyncTask struct {
	TenantID string `json:"tenant_id"`
	Entity   string `json:"entity"`
	RecordID int64  `json:"record_id"`
	// CaseID is the known Europace case number; empty creates a new case.
	CaseID    string `json:"case_id,omitempty"`
	PartnerID string `json:"partner_id,omitempty"`

	TraceID string `json:"trace_id,omitempty"`
}

// ParseSyncTask decodes and validates a task payload.
func ParseSyncTask(data []byte) (*SyncTask, error) {
	var task SyncTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, err
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}
	return &task, nil
}

func (t *SyncTask) Validate() error {
	var errs []error
	if t.TenantID == "" {
		errs = append(errs, errors.New("tenant_id is required"))
	}
	if t.Entity == "" {
		errs = append(errs, errors.New("entity is required"))
	}
	if t.RecordID <= 0 {
		errs = append(errs, fmt.Errorf("record_id must be positive, got %d", t.RecordID))
	}
	return errors.Join(errs...)
}

// Key keeps the tasks of one record on one partition.
func (t *SyncTask) Key() string {
	return recordKey(t.TenantID, t.Entity, t.RecordID)
}

// SyncStatus values
const (
	StatusCreated = "created"
	StatusUpdated = "updated"
	StatusFailed  = "failed"
)

// SyncResult reports the outcome of a SyncTask.
type SyncResult struct {
	TenantID  string    `json:"tenant_id"`
	Entity    string    `json:"entity"`
	RecordID  int64     `json:"record_id"`
	CaseID    string    `json:"case_id,omitempty"`
	Status    string    `json:"status"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	TraceID string `json:"trace_id,omitempty"`
}

// Key matches the key of the task the result answers.
func (r *SyncResult) Key() string {
	return recordKey(r.TenantID, r.Entity, r.RecordID)
}

func recordKey(tenantID, entity string, recordID int64) string {
	return fmt.Sprintf("%s:%s:%d", tenantID, entity, recordID)
}

// MessageHeaders lets consumers route and trace a message without decoding it.
type MessageHeaders struct {
	TenantID    string
	Entity      string
	TraceParent string
	TraceState  string
}

const (
	headerTenantID    = "tenant_id"
	headerEntity      = "entity"
	headerTraceParent = "traceparent"
	headerTraceState  = "tracestate"
)

// HeadersFor returns the headers of a message about one record, carrying the
// trace of ctx.
func HeadersFor(ctx context.Context, tenantID, entity string) MessageHeaders {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return MessageHeaders{
		TenantID:    tenantID,
		Entity:      entity,
		TraceParent: carrier.Get(headerTraceParent),
		TraceState:  carrier.Get(headerTraceState),
	}
}

// ContextWithTrace continues the producer's trace on ctx.
func (h MessageHeaders) ContextWithTrace(ctx context.Context) context.Context {
	if h.TraceParent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{headerTraceParent: h.TraceParent}
	if h.TraceState != "" {
		carrier[headerTraceState] = h.TraceState
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

func (h MessageHeaders) ToKafkaHeaders() []kafka.Header {
	var headers []kafka.Header
	for _, kv := range [][2]string{
		{headerTenantID, h.TenantID},
		{headerEntity, h.Entity},
		{headerTraceParent, h.TraceParent},
		{headerTraceState, h.TraceState},
	} {
		if kv[1] != "" {
			headers = append(headers, kafka.Header{Key: kv[0], Value: []byte(kv[1])})
		}
	}
	return headers
}

func ExtractHeaders(headers []kafka.Header) MessageHeaders {
	var mh MessageHeaders
	for _, h := range headers {
		switch h.Key {
		case headerTenantID:
			mh.TenantID = string(h.Value)
		case headerEntity:
			mh.Entity = string(h.Value)
		case headerTraceParent:
			mh.TraceParent = string(h.Value)
		case headerTraceState:
			mh.TraceState = string(h.Value)
		}
	}
	return mh
}
