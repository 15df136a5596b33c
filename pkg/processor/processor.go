// Package processor pushes CRM records to Europace for sync tasks read from kafka.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	appctx "github.com/vukmarkovic/Europace-sub000/pkg/context"
	"github.com/vukmarkovic/Europace-sub000/pkg/crm"
	matchErrors "github.com/vukmarkovic/Europace-sub000/pkg/errors"
	"github.com/vukmarkovic/Europace-sub000/pkg/kafka"
	"github.com/vukmarkovic/Europace-sub000/pkg/matching"
	"github.com/vukmarkovic/Europace-sub000/pkg/metrics"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
)

// Catalog field codes written back to the CRM record after a sync.
const (
	caseIDField          = "caseId"
	responseCodeField    = "responseCode"
	responseMessageField = "responseMessage"
	lastSyncField        = "lastSync"

	// caseIDKey and syncKey are the Europace-shape properties of those fields.
	caseIDKey = "vorgangsnummer"
	syncKey   = "sync"

	codeOK = "OK"
)

// Matcher is the subset of the matching facade the processor drives.
type Matcher interface {
	PrepareData(ctx context.Context, tenant, entity string, filter crm.Filter, unmatched matching.UnmatchedFields) (*matching.Record, error)
	SaveData(ctx context.Context, tenant string, req matching.SaveRequest, opts matching.SaveOptions) (*matching.SaveResult, error)
}

type Cases interface {
	CreateCase(ctx context.Context, partnerID string, payload map[string]any) (string, error)
	UpdateCase(ctx context.Context, partnerID, caseID string, payload map[string]any) error
}

type Publisher interface {
	PublishResult(ctx context.Context, result *kafka.SyncResult) error
}

// ProcessorConfig configures the sync processor
type ProcessorConfig struct {
	// DefaultPartnerID is the Europace partner acting when a task names none
	DefaultPartnerID string

	// ProcessTimeout bounds one task including the write-back
	ProcessTimeout time.Duration
}

// DefaultProcessorConfig returns a ProcessorConfig with sensible defaults
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		ProcessTimeout: 60 * time.Second,
	}
}

type Processor struct {
	config    ProcessorConfig
	matcher   Matcher
	cases     Cases
	publisher Publisher
	logger    ectologger.Logger
	now       func() time.Time
}

func NewProcessor(config ProcessorConfig, matcher Matcher, cases Cases, publisher Publisher, logger ectologger.Logger) *Processor {
	return &Processor{
		config:    config,
		matcher:   matcher,
		cases:     cases,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Process syncs one record and writes the outcome back to it. It never returns an
// error: failures are reported in the result.
func (p *Processor) Process(ctx context.Context, task *kafka.SyncTask) *kafka.SyncResult {
	ctx = appctx.SetTenantID(ctx, task.TenantID)
	ctx, span := tracing.StartSpan(ctx, "processor.Process",
		attribute.String("tenant", task.TenantID), attribute.String("entity", task.Entity), attribute.Int64("record_id", task.RecordID))
	defer span.End()

	if p.config.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ProcessTimeout)
		defer cancel()
	}

	result := &kafka.SyncResult{
		TenantID: task.TenantID,
		Entity:   task.Entity,
		RecordID: task.RecordID,
		CaseID:   task.CaseID,
		TraceID:  task.TraceID,
	}

	logger := p.logger.WithContext(ctx).WithFields(map[string]any{
		"entity":    task.Entity,
		"record_id": task.RecordID,
	})

	err := p.sync(ctx, task, result)
	if err != nil {
		tracing.RecordError(span, err)
		result.Status = kafka.StatusFailed
		result.Code = matchErrors.CodeOf(err)
		result.Message = err.Error()
		logger.WithError(err).Error("Sync task failed")
	} else {
		result.Code = codeOK
		logger.WithField("case_id", result.CaseID).Infof("Sync task %s", result.Status)
	}

	if err := p.writeBack(ctx, task, result); err != nil {
		logger.WithError(err).Warn("Failed to write sync outcome back to the CRM")
	}

	result.Timestamp = p.now().UTC()
	metrics.SyncTasksTotal.WithLabelValues(result.Status).Inc()
	return result
}

func (p *Processor) sync(ctx context.Context, task *kafka.SyncTask, result *kafka.SyncResult) error {
	record, err := p.matcher.PrepareData(ctx, task.TenantID, task.Entity, crm.Filter{ID: task.RecordID}, nil)
	if err != nil {
		return err
	}

	payload := make(map[string]any, len(record.Data))
	for k, v := range record.Data {
		payload[k] = v
	}
	delete(payload, syncKey)

	caseID := task.CaseID
	if caseID == "" {
		caseID, _ = payload[caseIDKey].(string)
	}
	partnerID := task.PartnerID
	if partnerID == "" {
		partnerID = p.config.DefaultPartnerID
	}

	if caseID == "" {
		delete(payload, caseIDKey)
		created, err := p.cases.CreateCase(ctx, partnerID, payload)
		if err != nil {
			return matchErrors.WrapIntegrationError(err, "failed to create Europace case")
		}
		result.CaseID = created
		result.Status = kafka.StatusCreated
		return nil
	}

	payload[caseIDKey] = caseID
	if err := p.cases.UpdateCase(ctx, partnerID, caseID, payload); err != nil {
		result.CaseID = caseID
		return matchErrors.WrapIntegrationError(err, fmt.Sprintf("failed to update Europace case %s", caseID))
	}
	result.CaseID = caseID
	result.Status = kafka.StatusUpdated
	return nil
}

// writeBack stores the case number and the response pair on the record. Fields the
// tenant has not matched are skipped by the save.
func (p *Processor) writeBack(ctx context.Context, task *kafka.SyncTask, result *kafka.SyncResult) error {
	record := map[string]any{
		syncKey: map[string]any{
			"responseCode":    result.Code,
			"responseMessage": result.Message,
			"at":              p.now().UTC().Format(time.RFC3339),
		},
	}
	fields := []string{responseCodeField, responseMessageField, lastSyncField}
	if result.CaseID != "" {
		record[caseIDKey] = result.CaseID
		fields = append(fields, caseIDField)
	}

	saved, err := p.matcher.SaveData(ctx, task.TenantID, matching.SaveRequest{
		task.Entity: {task.RecordID: matching.Records{record}},
	}, matching.SaveOptions{Fields: fields})
	if err != nil {
		return err
	}
	if len(saved.Errors) > 0 {
		return fmt.Errorf("crm rejected write-back: %v", saved.Errors)
	}
	return nil
}

// MessageHandler returns a kafka.MessageHandler for use with the consumer
func (p *Processor) MessageHandler() kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.ReceivedMessage) error {
		if msg == nil || msg.Task == nil {
			return errors.New("message carries no sync task")
		}
		result := p.Process(ctx, msg.Task)
		if p.publisher == nil {
			return nil
		}
		if err := p.publisher.PublishResult(ctx, result); err != nil {
			return fmt.Errorf("failed to publish sync result: %w", err)
		}
		return nil
	}
}
