// Package wizard drives the tenant onboarding state machine: steps advance
// only after the active step validates, go back unconditionally, and the last
// step submits the merged payload to the backend.
package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tenant-onboarding-service/internal/clients"
	"tenant-onboarding-service/internal/finance"
	"tenant-onboarding-service/internal/models"
	"tenant-onboarding-service/internal/validation"
)

var (
	ErrUnknownStep      = errors.New("unknown wizard step")
	ErrNotActiveStep    = errors.New("step is not the active step")
	ErrNotSkippable     = errors.New("step cannot be skipped")
	ErrAlreadySubmitted = errors.New("onboarding already submitted")
	ErrIncomplete       = errors.New("onboarding has incomplete steps")
	ErrInvalidStepData  = errors.New("step data is not valid JSON for this step")
	ErrNotAtFinalStep   = errors.New("submission is only possible from the final step")
	ErrSubmitInProgress = errors.New("submission already in progress")
)

// ValidationFailure carries the violations of a rejected step
type ValidationFailure struct {
	Step       models.WizardStep
	Violations validation.Violations
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Step, e.Violations.Error())
}

// Submitter creates the tenant in the backend
type Submitter interface {
	CreateTenant(ctx context.Context, payload *models.CreateTenantPayload, files []clients.FilePart) (*models.Tenant, error)
}

// SpotLookup returns the currently available spots of a property
type SpotLookup interface {
	AvailableSpots(ctx context.Context, propertyID string) ([]models.ParkingSpot, error)
}

// AttachmentSource loads the bytes of an uploaded file
type AttachmentSource interface {
	GetAttachment(ctx context.Context, id uuid.UUID) ([]byte, error)
}

// Result describes what a transition did
type Result struct {
	State     *models.WizardState
	Attempted bool
	Submitted bool
	Tenant    *models.Tenant
	Payload   *models.CreateTenantPayload
	SubmitErr error
}

// Orchestrator applies transitions to a WizardState. It holds no session
// state itself; callers serialize access per session.
type Orchestrator struct {
	validator *validation.Validator
	submitter Submitter
	spots     SpotLookup
	files     AttachmentSource
	logger    *logrus.Logger
}

// NewOrchestrator creates an orchestrator; spots may be nil to skip spot verification
func NewOrchestrator(v *validation.Validator, submitter Submitter, spots SpotLookup, files AttachmentSource, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		validator: v,
		submitter: submitter,
		spots:     spots,
		files:     files,
		logger:    logger,
	}
}

// Complete validates data for the active step, stores it and advances.
// Completing the final step submits the onboarding.
func (o *Orchestrator) Complete(ctx context.Context, state *models.WizardState, step models.WizardStep, data []byte) (*Result, error) {
	if err := o.checkActive(state, step); err != nil {
		return nil, err
	}

	if err := o.apply(ctx, state, step, data); err != nil {
		return nil, err
	}
	delete(state.Drafts, step)
	o.touch(state)

	if state.IsFinalStep() {
		return o.Submit(ctx, state)
	}

	state.CurrentStep++
	state.Status = models.SessionInProgress
	return &Result{State: state}, nil
}

// Skip stores the empty default for a skippable active step and advances
func (o *Orchestrator) Skip(ctx context.Context, state *models.WizardState, step models.WizardStep) (*Result, error) {
	if err := o.checkActive(state, step); err != nil {
		return nil, err
	}
	if !step.Skippable() {
		return nil, fmt.Errorf("%w: %s", ErrNotSkippable, step)
	}

	switch step {
	case models.StepParkingAllocation:
		state.Parking = models.SkippedParking()
	}
	delete(state.Drafts, step)
	o.touch(state)

	if state.IsFinalStep() {
		return o.Submit(ctx, state)
	}
	state.CurrentStep++
	return &Result{State: state}, nil
}

// Back moves to the previous step without validating or discarding anything
func (o *Orchestrator) Back(state *models.WizardState) (*Result, error) {
	if state.Status == models.SessionSubmitted {
		return nil, ErrAlreadySubmitted
	}
	if state.Status == models.SessionSubmitting {
		return nil, ErrSubmitInProgress
	}
	if state.CurrentStep > 0 {
		state.CurrentStep--
	}
	state.Status = models.SessionInProgress
	o.touch(state)
	return &Result{State: state}, nil
}

// Submit sends the merged payload. A failed call leaves the session on the
// final step with every step's data intact; nothing is retried here.
func (o *Orchestrator) Submit(ctx context.Context, state *models.WizardState) (*Result, error) {
	switch state.Status {
	case models.SessionSubmitted:
		return nil, ErrAlreadySubmitted
	case models.SessionSubmitting:
		return nil, ErrSubmitInProgress
	}
	if !state.IsFinalStep() {
		return nil, ErrNotAtFinalStep
	}

	payload, files, err := o.Payload(ctx, state)
	if err != nil {
		return nil, err
	}

	state.Status = models.SessionSubmitting
	state.SubmitAttempts++
	result := &Result{State: state, Attempted: true, Payload: payload}

	tenant, err := o.submitter.CreateTenant(ctx, payload, files)
	o.touch(state)
	if err != nil {
		state.Status = models.SessionFailed
		state.LastError = err.Error()
		result.SubmitErr = err
		o.logger.WithFields(logrus.Fields{
			"session_id": state.SessionID,
			"attempt":    state.SubmitAttempts,
		}).WithError(err).Warn("Tenant creation failed")
		return result, nil
	}

	state.Status = models.SessionSubmitted
	state.LastError = ""
	if tenant != nil {
		state.TenantID = tenant.ID
	}
	result.Submitted = true
	result.Tenant = tenant
	return result, nil
}

// Preview merges every step into the backend submission without loading
// any file content
func (o *Orchestrator) Preview(state *models.WizardState) (*models.CreateTenantPayload, error) {
	if missing := MissingSteps(state); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrIncomplete, missing)
	}

	payload := &models.CreateTenantPayload{
		PersonalInfo:      *state.PersonalInfo,
		LeaseInfo:         *state.LeaseInfo,
		RentBreakdown:     *state.RentBreakdown,
		ParkingAllocation: *state.Parking,
		PaymentSchedule:   *state.PaymentSchedule,
		Documents:         make([]models.AttachmentSummary, 0, len(state.Documents.AttachmentIDs)),
		Breakdown:         finance.Breakdown(state.RentBreakdown, state.Parking),
	}
	for _, id := range state.Documents.AttachmentIDs {
		a, ok := state.Attachment(id)
		if !ok {
			return nil, fmt.Errorf("%w: document %s is no longer attached", ErrIncomplete, id)
		}
		payload.Documents = append(payload.Documents, a.Summary())
	}
	return payload, nil
}

// Payload merges every step into the backend submission and loads the
// referenced files
func (o *Orchestrator) Payload(ctx context.Context, state *models.WizardState) (*models.CreateTenantPayload, []clients.FilePart, error) {
	payload, err := o.Preview(state)
	if err != nil {
		return nil, nil, err
	}

	var files []clients.FilePart
	for _, id := range state.Documents.AttachmentIDs {
		a, _ := state.Attachment(id)
		part, err := o.filePart(ctx, "documents", a)
		if err != nil {
			return nil, nil, err
		}
		files = append(files, part)
	}
	if state.Parking.MulkiyaFile != nil {
		if a, ok := state.Attachment(*state.Parking.MulkiyaFile); ok {
			part, err := o.filePart(ctx, "mulkiyaFile", a)
			if err != nil {
				return nil, nil, err
			}
			files = append(files, part)
		}
	}
	return payload, files, nil
}

func (o *Orchestrator) filePart(ctx context.Context, field string, a *models.Attachment) (clients.FilePart, error) {
	if o.files == nil {
		return clients.FilePart{}, fmt.Errorf("%w: no file storage for %s", ErrIncomplete, a.FileName)
	}
	data, err := o.files.GetAttachment(ctx, a.ID)
	if err != nil {
		return clients.FilePart{}, fmt.Errorf("%w: %s could not be loaded: %v", ErrIncomplete, a.FileName, err)
	}
	return clients.FilePart{Field: field, FileName: a.FileName, ContentType: a.ContentType, Data: data}, nil
}

// MissingSteps lists the steps without validated data
func MissingSteps(state *models.WizardState) []models.WizardStep {
	var missing []models.WizardStep
	for _, s := range models.WizardSteps {
		if !state.Completed(s) {
			missing = append(missing, s)
		}
	}
	return missing
}

func (o *Orchestrator) checkActive(state *models.WizardState, step models.WizardStep) error {
	if !step.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownStep, step)
	}
	switch state.Status {
	case models.SessionSubmitted:
		return ErrAlreadySubmitted
	case models.SessionSubmitting:
		return ErrSubmitInProgress
	}
	if step.Index() != state.CurrentStep {
		return fmt.Errorf("%w: %s is active, got %s", ErrNotActiveStep, state.Step(), step)
	}
	return nil
}

// apply decodes, validates and stores one step. Only the field belonging to
// step is written.
func (o *Orchestrator) apply(ctx context.Context, state *models.WizardState, step models.WizardStep, data []byte) error {
	switch step {
	case models.StepPersonalInfo:
		var v models.PersonalInfo
		if err := o.decodeAndValidate(step, data, &v, nil); err != nil {
			return err
		}
		state.PersonalInfo = &v
	case models.StepLeaseInfo:
		var v models.LeaseInfo
		if err := o.decodeAndValidate(step, data, &v, nil); err != nil {
			return err
		}
		state.LeaseInfo = &v
	case models.StepRentBreakdown:
		var v models.RentBreakdown
		if err := o.decodeAndValidate(step, data, &v, nil); err != nil {
			return err
		}
		state.RentBreakdown = &v
	case models.StepParkingAllocation:
		var v models.ParkingAllocation
		check := func() validation.Violations { return o.checkParking(ctx, state, &v) }
		if err := o.decodeAndValidate(step, data, &v, check); err != nil {
			return err
		}
		state.Parking = &v
	case models.StepPaymentSchedule:
		var v models.PaymentSchedule
		if err := o.decodeAndValidate(step, data, &v, nil); err != nil {
			return err
		}
		state.PaymentSchedule = &v
	case models.StepDocuments:
		var v models.DocumentsStep
		check := func() validation.Violations { return checkDocuments(state, &v) }
		if err := o.decodeAndValidate(step, data, &v, check); err != nil {
			return err
		}
		state.Documents = &v
	}
	return nil
}

func (o *Orchestrator) decodeAndValidate(step models.WizardStep, data []byte, target any, sessionCheck func() validation.Violations) error {
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStepData, err)
	}
	violations := o.validator.Validate(target)
	if len(violations) == 0 && sessionCheck != nil {
		violations = sessionCheck()
	}
	if len(violations) > 0 {
		return &ValidationFailure{Step: step, Violations: violations}
	}
	return nil
}

// checkParking verifies the Mulkiya reference and, when the lookup succeeds,
// that every selected spot is still available. Available spot fees replace the
// submitted ones.
func (o *Orchestrator) checkParking(ctx context.Context, state *models.WizardState, p *models.ParkingAllocation) validation.Violations {
	var out validation.Violations
	if p.MulkiyaFile != nil {
		if a, ok := state.Attachment(*p.MulkiyaFile); !ok || a.Purpose != models.AttachmentMulkiya {
			out = append(out, validation.Violation{
				Path:    []string{"mulkiyaFile"},
				Message: "Mulkiya file must reference an uploaded Mulkiya attachment",
				Rule:    "attachment",
			})
		}
	}

	if len(p.SelectedSpots) == 0 || o.spots == nil || state.LeaseInfo == nil {
		return out
	}

	available, err := o.spots.AvailableSpots(ctx, state.LeaseInfo.PropertyID)
	if err != nil {
		o.logger.WithField("session_id", state.SessionID).WithError(err).
			Warn("Parking availability check skipped")
		return out
	}

	byID := make(map[string]models.ParkingSpot, len(available))
	for _, s := range available {
		byID[s.ID] = s
	}
	for i := range p.SelectedSpots {
		spot, ok := byID[p.SelectedSpots[i].SpotID]
		if !ok {
			out = append(out, validation.Violation{
				Path:    []string{"selectedSpots", strconv.Itoa(i), "spotId"},
				Message: fmt.Sprintf("Parking spot %s is not available", p.SelectedSpots[i].SpotNumber),
				Rule:    "available",
			})
			continue
		}
		p.SelectedSpots[i].MonthlyFee = spot.MonthlyFee
		p.SelectedSpots[i].SpotNumber = spot.SpotNumber
	}
	if len(out) == 0 {
		p.Normalize()
	}
	return out
}

func checkDocuments(state *models.WizardState, d *models.DocumentsStep) validation.Violations {
	var out validation.Violations
	for i, id := range d.AttachmentIDs {
		if a, ok := state.Attachment(id); !ok || a.Purpose != models.AttachmentDocument {
			out = append(out, validation.Violation{
				Path:    []string{"attachmentIds", strconv.Itoa(i)},
				Message: "Document must reference an uploaded document",
				Rule:    "attachment",
			})
		}
	}
	return out
}

func (o *Orchestrator) touch(state *models.WizardState) {
	state.UpdatedAt = time.Now().UTC()
}
