package services

import (
	"errors"
	"fmt"
	"net/http"

	"tenant-onboarding-service/internal/clients"
	"tenant-onboarding-service/internal/validation"
)

// ValidationError represents a rejected form with every failed rule
type ValidationError struct {
	Field      string                `json:"field,omitempty"`
	Message    string                `json:"message"`
	Violations validation.Violations `json:"errors,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Violations) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, e.Violations.Error())
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// NewValidationError creates a single-field validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Violations: validation.Violations{{
			Path:    []string{field},
			Message: message,
			Rule:    "invalid",
		}},
	}
}

// NewViolationsError wraps the result of a validation run
func NewViolationsError(message string, violations validation.Violations) *ValidationError {
	return &ValidationError{
		Message:    message,
		Violations: violations,
	}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) (*ValidationError, bool) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr, true
	}
	return nil, false
}

// ConflictError represents a resource conflict (e.g., already exists)
type ConflictError struct {
	Resource string `json:"resource"`
	Message  string `json:"message"`
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Message)
}

// NewConflictError creates a new conflict error
func NewConflictError(resource, message string) *ConflictError {
	return &ConflictError{
		Resource: resource,
		Message:  message,
	}
}

// IsConflictError checks if an error is a ConflictError
func IsConflictError(err error) (*ConflictError, bool) {
	var conflictErr *ConflictError
	if errors.As(err, &conflictErr) {
		return conflictErr, true
	}
	return nil, false
}

// NotFoundError represents a missing session or remote resource
type NotFoundError struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsNotFoundError checks if an error is a NotFoundError
func IsNotFoundError(err error) (*NotFoundError, bool) {
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return notFound, true
	}
	return nil, false
}

// StepError is a wizard transition that is not allowed in the current state
type StepError struct {
	Step    string `json:"step"`
	Current string `json:"current_step"`
	Err     error  `json:"-"`
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s rejected (current %s): %v", e.Step, e.Current, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IsStepError checks if an error is a StepError
func IsStepError(err error) (*StepError, bool) {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr, true
	}
	return nil, false
}

// BusinessRuleError is a backend refusal that must be shown to the user as is
type BusinessRuleError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *BusinessRuleError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// IsBusinessRuleError checks if an error is a BusinessRuleError
func IsBusinessRuleError(err error) (*BusinessRuleError, bool) {
	var ruleErr *BusinessRuleError
	if errors.As(err, &ruleErr) {
		return ruleErr, true
	}
	return nil, false
}

// SubmissionError is a failed create-tenant call; the session stays retryable
type SubmissionError struct {
	SessionID string `json:"session_id"`
	Attempt   int    `json:"attempt"`
	Err       error  `json:"-"`
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission %d for session %s failed: %v", e.Attempt, e.SessionID, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// IsSubmissionError checks if an error is a SubmissionError
func IsSubmissionError(err error) (*SubmissionError, bool) {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr, true
	}
	return nil, false
}

// businessRuleMessages maps backend rule codes to user-facing messages
var businessRuleMessages = map[string]string{
	"PROPERTY_HAS_OCCUPIED_UNITS": "This property still has occupied units. End or transfer the active leases before deleting it.",
	"PROPERTY_HAS_ACTIVE_LEASES":  "This property has active leases. Terminate them before deleting the property.",
	"UNIT_NOT_AVAILABLE":          "The selected unit is no longer available.",
	"PARKING_SPOT_NOT_AVAILABLE":  "One of the selected parking spots is no longer available.",
	"TENANT_EMAIL_EXISTS":         "A tenant with this email address already exists.",
	"PDC_NOT_WITHDRAWABLE":        "This cheque can no longer be withdrawn.",
}

// classifyRemote converts client conflict and rule rejections into
// BusinessRuleError and leaves everything else untouched
func classifyRemote(err error) error {
	remoteErr, ok := clients.IsRemoteError(err)
	if !ok {
		return err
	}
	switch remoteErr.StatusCode {
	case http.StatusConflict, http.StatusUnprocessableEntity:
		msg := remoteErr.Message
		if known, ok := businessRuleMessages[remoteErr.Code]; ok {
			msg = known
		}
		return &BusinessRuleError{Code: remoteErr.Code, Message: msg}
	case http.StatusNotFound:
		return &NotFoundError{Resource: remoteErr.Operation, ID: remoteErr.Message}
	}
	return err
}

// classifySubmission is classifyRemote for create tenant. A backend 404 there
// names a referenced record, never the onboarding session, so it stays a
// RemoteError.
func classifySubmission(err error) error {
	if remoteErr, ok := clients.IsRemoteError(err); ok && remoteErr.StatusCode == http.StatusNotFound {
		return err
	}
	return classifyRemote(err)
}
