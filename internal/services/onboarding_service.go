package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tenant-onboarding-service/internal/clients"
	"tenant-onboarding-service/internal/config"
	"tenant-onboarding-service/internal/debounce"
	"tenant-onboarding-service/internal/finance"
	"tenant-onboarding-service/internal/metrics"
	"tenant-onboarding-service/internal/models"
	natsClient "tenant-onboarding-service/internal/nats"
	"tenant-onboarding-service/internal/session"
	"tenant-onboarding-service/internal/validation"
	"tenant-onboarding-service/internal/wizard"
)

// maxAttachments caps the files held by one session
const maxAttachments = 25

// draftPersistTimeout bounds a debounced draft write
const draftPersistTimeout = 5 * time.Second

// SubmissionRecorder stores the audit trail of create-tenant attempts
type SubmissionRecorder interface {
	Record(ctx context.Context, submission *models.OnboardingSubmission) error
}

// EventPublisher publishes onboarding lifecycle events
type EventPublisher interface {
	PublishOnboardingEvent(ctx context.Context, event *natsClient.OnboardingEvent) error
}

// OnboardingService owns the wizard sessions. Transitions on one session are
// serialized; different sessions proceed in parallel.
type OnboardingService struct {
	store        session.Store
	orchestrator *wizard.Orchestrator
	recorder     SubmissionRecorder
	events       EventPublisher
	drafts       *debounce.Debouncer
	locks        *sessionLocks
	cfg          config.WizardConfig
	metrics      *metrics.Metrics
	logger       *logrus.Logger
}

// NewOnboardingService creates a new onboarding service. recorder, events and
// m may be nil.
func NewOnboardingService(
	store session.Store,
	orchestrator *wizard.Orchestrator,
	recorder SubmissionRecorder,
	events EventPublisher,
	cfg config.WizardConfig,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *OnboardingService {
	return &OnboardingService{
		store:        store,
		orchestrator: orchestrator,
		recorder:     recorder,
		events:       events,
		drafts:       debounce.New(cfg.DraftDebounce),
		locks:        newSessionLocks(),
		cfg:          cfg,
		metrics:      m,
		logger:       logger,
	}
}

// StepResult is the outcome of a wizard transition
type StepResult struct {
	Session   *models.SessionView `json:"session"`
	Submitted bool                `json:"submitted"`
	Tenant    *models.Tenant      `json:"tenant,omitempty"`
}

// DraftAck confirms a draft was accepted for debounced persistence
type DraftAck struct {
	SessionID uuid.UUID         `json:"sessionId"`
	Step      models.WizardStep `json:"step"`
	Debounce  string            `json:"debounce"`
}

// SessionSummary is the review page of the wizard
type SessionSummary struct {
	Session      *models.SessionView         `json:"session"`
	Breakdown    models.Breakdown            `json:"breakdown"`
	Formatted    map[string]string           `json:"formatted"`
	MissingSteps []models.WizardStep         `json:"missingSteps"`
	Payload      *models.CreateTenantPayload `json:"payload,omitempty"`
}

// AttachmentUpload is a file posted into a session
type AttachmentUpload struct {
	Purpose      models.AttachmentPurpose
	DocumentType string
	FileName     string
	ContentType  string
	Data         []byte
}

// StartSession creates a session at the first step
func (s *OnboardingService) StartSession(ctx context.Context) (*models.SessionView, error) {
	state := models.NewWizardState(s.cfg.SessionTTL)
	if err := s.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to create onboarding session: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SessionsStarted.Inc()
	}
	s.logger.WithField("session_id", state.SessionID).Info("Onboarding session started")
	return state.View(), nil
}

// GetSession returns the session after persisting any pending drafts
func (s *OnboardingService) GetSession(ctx context.Context, sessionID string) (*models.SessionView, error) {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	s.flushDrafts(id)

	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return state.View(), nil
}

// DiscardSession drops the session and its pending drafts
func (s *OnboardingService) DiscardSession(ctx context.Context, sessionID string) error {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return err
	}
	s.cancelDrafts(id)

	release, err := s.locks.acquire(ctx, id.String())
	if err != nil {
		return err
	}
	defer release()

	state, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to discard onboarding session: %w", err)
	}
	s.dropAttachments(ctx, state)

	s.publish(ctx, &natsClient.OnboardingEvent{
		EventType: natsClient.EventSessionDiscarded,
		SessionID: id.String(),
		Attempt:   state.SubmitAttempts,
		RequestID: requestID(ctx),
	})
	s.logger.WithField("session_id", id).Info("Onboarding session discarded")
	return nil
}

// CompleteStep validates and stores the active step. Completing the final
// step submits the onboarding.
func (s *OnboardingService) CompleteStep(ctx context.Context, sessionID, step string, data []byte) (*StepResult, error) {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	s.drafts.Cancel(draftKey(id, models.WizardStep(step)))

	var result *StepResult
	err = s.mutate(ctx, id, func(state *models.WizardState) (bool, error) {
		res, err := s.orchestrator.Complete(ctx, state, models.WizardStep(step), data)
		if err != nil {
			return false, s.stepError(state, step, err)
		}
		if s.metrics != nil {
			s.metrics.StepsCompleted.WithLabelValues(step).Inc()
		}
		var keep bool
		result, keep, err = s.finish(ctx, res)
		return keep, err
	})
	return result, err
}

// SkipStep stores the default of a skippable active step and advances
func (s *OnboardingService) SkipStep(ctx context.Context, sessionID, step string) (*StepResult, error) {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	s.drafts.Cancel(draftKey(id, models.WizardStep(step)))

	var result *StepResult
	err = s.mutate(ctx, id, func(state *models.WizardState) (bool, error) {
		res, err := s.orchestrator.Skip(ctx, state, models.WizardStep(step))
		if err != nil {
			return false, s.stepError(state, step, err)
		}
		if s.metrics != nil {
			s.metrics.StepsSkipped.WithLabelValues(step).Inc()
		}
		var keep bool
		result, keep, err = s.finish(ctx, res)
		return keep, err
	})
	return result, err
}

// GoBack moves to the previous step keeping all entered data
func (s *OnboardingService) GoBack(ctx context.Context, sessionID string) (*StepResult, error) {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return nil, err
	}

	var result *StepResult
	err = s.mutate(ctx, id, func(state *models.WizardState) (bool, error) {
		res, err := s.orchestrator.Back(state)
		if err != nil {
			return false, s.stepError(state, string(state.Step()), err)
		}
		result = &StepResult{Session: res.State.View()}
		return true, nil
	})
	return result, err
}

// Submit retries the final submission of a session that completed every step
func (s *OnboardingService) Submit(ctx context.Context, sessionID string) (*StepResult, error) {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return nil, err
	}

	var result *StepResult
	err = s.mutate(ctx, id, func(state *models.WizardState) (bool, error) {
		res, err := s.orchestrator.Submit(ctx, state)
		if err != nil {
			return false, s.stepError(state, string(state.Step()), err)
		}
		var keep bool
		result, keep, err = s.finish(ctx, res)
		return keep, err
	})
	return result, err
}

// SaveDraft accepts unvalidated step data and persists it once the step has
// been quiet for the debounce window. A newer draft replaces a pending one.
func (s *OnboardingService) SaveDraft(ctx context.Context, sessionID, step string, data []byte) (*DraftAck, error) {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	wizardStep := models.WizardStep(step)
	if !wizardStep.Valid() {
		return nil, &StepError{Step: step, Err: wizard.ErrUnknownStep}
	}
	if !json.Valid(data) {
		return nil, NewValidationError("draft", "Draft must be a JSON document")
	}

	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if state.Status == models.SessionSubmitted {
		return nil, &StepError{Step: step, Current: string(state.Step()), Err: wizard.ErrAlreadySubmitted}
	}

	draft := append(models.JSONB(nil), data...)
	logger := s.logger.WithFields(logrus.Fields{"session_id": id, "step": step})
	s.drafts.Schedule(draftKey(id, wizardStep), func() {
		persistCtx, cancel := context.WithTimeout(context.Background(), draftPersistTimeout)
		defer cancel()
		if err := s.persistDraft(persistCtx, id, wizardStep, draft); err != nil {
			logger.WithError(err).Warn("Failed to persist draft")
		}
	})

	return &DraftAck{SessionID: id, Step: wizardStep, Debounce: s.drafts.Wait().String()}, nil
}

// AddAttachment stores an uploaded file next to the session. The state only
// keeps its metadata.
func (s *OnboardingService) AddAttachment(ctx context.Context, sessionID string, upload *AttachmentUpload) (*models.AttachmentSummary, error) {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if upload.Purpose != models.AttachmentDocument && upload.Purpose != models.AttachmentMulkiya {
		return nil, NewValidationError("purpose", "Purpose must be DOCUMENT or MULKIYA")
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(upload.Data)) > s.cfg.MaxUploadBytes {
		return nil, NewValidationError("file", fmt.Sprintf("File must be at most %d bytes", s.cfg.MaxUploadBytes))
	}
	if violations := validation.CheckFileContent(upload.FileName, upload.ContentType, upload.Data); len(violations) > 0 {
		return nil, NewViolationsError("Invalid file", violations)
	}

	attachment := models.Attachment{
		ID:           uuid.New(),
		Purpose:      upload.Purpose,
		DocumentType: upload.DocumentType,
		FileName:     upload.FileName,
		ContentType:  validation.DetectContentType(upload.Data),
		Size:         int64(len(upload.Data)),
		UploadedAt:   time.Now().UTC(),
	}

	err = s.mutate(ctx, id, func(state *models.WizardState) (bool, error) {
		if state.Status == models.SessionSubmitted || state.Status == models.SessionSubmitting {
			return false, &StepError{Step: string(state.Step()), Current: string(state.Step()), Err: wizard.ErrAlreadySubmitted}
		}
		if len(state.Attachments) >= maxAttachments {
			return false, NewValidationError("file", fmt.Sprintf("A session holds at most %d files", maxAttachments))
		}
		if err := s.store.PutAttachment(ctx, attachment.ID, upload.Data, state.ExpiresAt); err != nil {
			return false, fmt.Errorf("failed to store attachment: %w", err)
		}
		state.Attachments = append(state.Attachments, attachment)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	summary := attachment.Summary()
	return &summary, nil
}

// Summary returns the derived figures and, once every step is done, the
// payload that would be submitted
func (s *OnboardingService) Summary(ctx context.Context, sessionID string) (*SessionSummary, error) {
	view, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state, err := s.load(ctx, view.SessionID)
	if err != nil {
		return nil, err
	}

	breakdown := finance.Breakdown(state.RentBreakdown, state.Parking)
	summary := &SessionSummary{
		Session:   view,
		Breakdown: breakdown,
		Formatted: map[string]string{
			"totalMonthlyRent":  finance.FormatCurrency(s.cfg.Currency, breakdown.TotalMonthlyRent),
			"totalParkingFee":   finance.FormatCurrency(s.cfg.Currency, breakdown.TotalParkingFee),
			"totalFirstPayment": finance.FormatCurrency(s.cfg.Currency, breakdown.TotalFirstPayment),
		},
		MissingSteps: wizard.MissingSteps(state),
	}
	if summary.MissingSteps == nil {
		summary.MissingSteps = []models.WizardStep{}
	}
	if len(summary.MissingSteps) == 0 {
		if payload, err := s.orchestrator.Preview(state); err == nil {
			summary.Payload = payload
		}
	}
	return summary, nil
}

// PurgeExpired removes expired sessions from the store
func (s *OnboardingService) PurgeExpired(ctx context.Context) (int, error) {
	return s.store.PurgeExpired(ctx, time.Now().UTC())
}

// Close persists pending drafts and stops accepting new ones
func (s *OnboardingService) Close() {
	s.drafts.Drain()
}

// mutate runs fn under the session lock and saves the state when fn asks
// for it
func (s *OnboardingService) mutate(ctx context.Context, id uuid.UUID, fn func(state *models.WizardState) (bool, error)) error {
	release, err := s.locks.acquire(ctx, id.String())
	if err != nil {
		return err
	}
	defer release()

	state, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	keep, fnErr := fn(state)
	if keep {
		if err := s.store.Save(ctx, state); err != nil {
			return fmt.Errorf("failed to save onboarding session: %w", err)
		}
	}
	return fnErr
}

// finish handles the submission side effects of a transition. It reports
// whether the session must be kept.
func (s *OnboardingService) finish(ctx context.Context, res *wizard.Result) (*StepResult, bool, error) {
	state := res.State
	if !res.Attempted {
		return &StepResult{Session: state.View()}, true, nil
	}

	s.audit(ctx, state, res)

	if !res.Submitted {
		return nil, true, &SubmissionError{
			SessionID: state.SessionID.String(),
			Attempt:   state.SubmitAttempts,
			Err:       classifySubmission(res.SubmitErr),
		}
	}

	s.cancelDrafts(state.SessionID)
	if err := s.store.Delete(ctx, state.SessionID); err != nil {
		s.logger.WithField("session_id", state.SessionID).WithError(err).Warn("Failed to discard submitted session")
	}
	s.dropAttachments(ctx, state)
	s.logger.WithFields(logrus.Fields{
		"session_id": state.SessionID,
		"tenant_id":  state.TenantID,
		"attempt":    state.SubmitAttempts,
	}).Info("Tenant onboarded")

	return &StepResult{Session: state.View(), Submitted: true, Tenant: res.Tenant}, false, nil
}

// audit records the attempt and publishes the matching event. Failures here
// never fail the transition.
func (s *OnboardingService) audit(ctx context.Context, state *models.WizardState, res *wizard.Result) {
	status := models.SubmissionSucceeded
	eventType := natsClient.EventTenantOnboarded
	errMsg := ""
	if !res.Submitted {
		status = models.SubmissionFailed
		eventType = natsClient.EventTenantOnboardingFailed
		errMsg = state.LastError
	}
	if s.metrics != nil {
		s.metrics.Submissions.WithLabelValues(string(status)).Inc()
	}

	submission := &models.OnboardingSubmission{
		SessionID:    state.SessionID,
		Attempt:      state.SubmitAttempts,
		Status:       status,
		TenantID:     state.TenantID,
		ErrorMessage: errMsg,
		RequestID:    requestID(ctx),
	}
	event := &natsClient.OnboardingEvent{
		EventType: eventType,
		SessionID: state.SessionID.String(),
		TenantID:  state.TenantID,
		Attempt:   state.SubmitAttempts,
		Error:     errMsg,
		RequestID: requestID(ctx),
	}
	if p := res.Payload; p != nil {
		submission.TenantEmail = p.Email
		submission.PropertyID = p.PropertyID
		submission.TotalFirstPayment = p.TotalFirstPayment
		event.TenantEmail = p.Email
		event.PropertyID = p.PropertyID
		event.UnitID = p.UnitID
		event.TotalFirstPayment = p.TotalFirstPayment
		if payload, err := models.NewJSONB(p); err == nil {
			submission.Payload = payload
		}
	}

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, submission); err != nil {
			s.logger.WithField("session_id", state.SessionID).WithError(err).Warn("Failed to record submission")
		}
	}
	s.publish(ctx, event)
}

// dropAttachments removes the file bytes of a session that is gone
func (s *OnboardingService) dropAttachments(ctx context.Context, state *models.WizardState) {
	if len(state.Attachments) == 0 {
		return
	}
	if err := s.store.DeleteAttachments(ctx, state.AttachmentIDs()...); err != nil {
		s.logger.WithField("session_id", state.SessionID).WithError(err).Warn("Failed to delete attachments")
	}
}

func (s *OnboardingService) publish(ctx context.Context, event *natsClient.OnboardingEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOnboardingEvent(ctx, event); err != nil {
		s.logger.WithFields(logrus.Fields{
			"session_id": event.SessionID,
			"event_type": event.EventType,
		}).WithError(err).Warn("Failed to publish onboarding event")
	}
}

func (s *OnboardingService) persistDraft(ctx context.Context, id uuid.UUID, step models.WizardStep, draft models.JSONB) error {
	return s.mutate(ctx, id, func(state *models.WizardState) (bool, error) {
		if state.Status == models.SessionSubmitted {
			return false, nil
		}
		if state.Drafts == nil {
			state.Drafts = map[models.WizardStep]models.JSONB{}
		}
		state.Drafts[step] = draft
		state.UpdatedAt = time.Now().UTC()
		return true, nil
	})
}

func (s *OnboardingService) load(ctx context.Context, id uuid.UUID) (*models.WizardState, error) {
	state, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, NewNotFoundError("onboarding session", id.String())
		}
		return nil, fmt.Errorf("failed to load onboarding session: %w", err)
	}
	return state, nil
}

// stepError maps orchestrator errors to service errors
func (s *OnboardingService) stepError(state *models.WizardState, step string, err error) error {
	var failure *wizard.ValidationFailure
	if errors.As(err, &failure) {
		if s.metrics != nil {
			s.metrics.StepValidationFail.WithLabelValues(step).Inc()
		}
		return NewViolationsError("Step validation failed", failure.Violations)
	}
	if errors.Is(err, wizard.ErrInvalidStepData) {
		return NewValidationError("body", err.Error())
	}
	return &StepError{Step: step, Current: string(state.Step()), Err: err}
}

func (s *OnboardingService) flushDrafts(id uuid.UUID) {
	for _, step := range models.WizardSteps {
		s.drafts.Flush(draftKey(id, step))
	}
}

func (s *OnboardingService) cancelDrafts(id uuid.UUID) {
	for _, step := range models.WizardSteps {
		s.drafts.Cancel(draftKey(id, step))
	}
}

func draftKey(id uuid.UUID, step models.WizardStep) string {
	return id.String() + ":" + string(step)
}

func parseSessionID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, NewNotFoundError("onboarding session", raw)
	}
	return id, nil
}

func requestID(ctx context.Context) string {
	if v, ok := ctx.Value(clients.RequestIDKey).(string); ok {
		return v
	}
	return ""
}
