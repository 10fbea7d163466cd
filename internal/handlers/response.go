package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tenant-onboarding-service/internal/clients"
	"tenant-onboarding-service/internal/services"
	"tenant-onboarding-service/internal/validation"
	"tenant-onboarding-service/internal/wizard"
)

var logger = logrus.StandardLogger()

// SetLogger sets the logger used for error responses
func SetLogger(l *logrus.Logger) {
	logger = l
}

// ErrorResponse sends a standardized error response
// Internal errors are logged but not exposed to clients
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	requestID := getRequestID(c)

	if err != nil {
		entry := logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"status":     statusCode,
		}).WithError(err)
		if statusCode >= http.StatusInternalServerError {
			entry.Error(message)
		} else {
			entry.Debug(message)
		}
	}

	response := gin.H{
		"success":    false,
		"message":    message,
		"request_id": requestID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}

	// Only include error details in development mode
	if gin.Mode() == gin.DebugMode && err != nil {
		response["error_details"] = err.Error()
	}

	c.JSON(statusCode, response)
}

// SuccessResponse sends a standardized success response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	requestID := getRequestID(c)

	response := gin.H{
		"success":    true,
		"message":    message,
		"request_id": requestID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}

	if data != nil {
		response["data"] = data
	}

	c.JSON(statusCode, response)
}

// ValidationErrorResponse sends every violation with its field path
func ValidationErrorResponse(c *gin.Context, message string, violations validation.Violations) {
	if message == "" {
		message = "Validation failed"
	}
	if violations == nil {
		violations = validation.Violations{}
	}

	c.JSON(http.StatusBadRequest, gin.H{
		"success":    false,
		"message":    message,
		"errors":     violations,
		"request_id": getRequestID(c),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// ServiceErrorResponse maps service errors to their HTTP status. fallback is
// the message of unexpected errors.
func ServiceErrorResponse(c *gin.Context, fallback string, err error) {
	if validationErr, ok := services.IsValidationError(err); ok {
		ValidationErrorResponse(c, validationErr.Message, validationErr.Violations)
		return
	}
	if notFound, ok := services.IsNotFoundError(err); ok && !isSubmission(err) {
		ErrorResponse(c, http.StatusNotFound, notFound.Error(), err)
		return
	}
	if ruleErr, ok := services.IsBusinessRuleError(err); ok {
		ErrorResponse(c, http.StatusUnprocessableEntity, ruleErr.Message, err)
		return
	}
	if stepErr, ok := services.IsStepError(err); ok {
		status := http.StatusConflict
		if errors.Is(err, wizard.ErrUnknownStep) {
			status = http.StatusBadRequest
		}
		ErrorResponse(c, status, stepMessage(stepErr), err)
		return
	}
	if conflict, ok := services.IsConflictError(err); ok {
		ErrorResponse(c, http.StatusConflict, conflict.Message, err)
		return
	}
	if errors.Is(err, clients.ErrBackendUnavailable) {
		ErrorResponse(c, http.StatusServiceUnavailable, "The property service is temporarily unavailable, please try again shortly", err)
		return
	}
	if _, ok := services.IsSubmissionError(err); ok {
		ErrorResponse(c, http.StatusBadGateway, "Tenant could not be created. Your data is kept, please retry the submission", err)
		return
	}
	if remoteErr, ok := clients.IsRemoteError(err); ok {
		status := http.StatusBadGateway
		if remoteErr.StatusCode < http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		ErrorResponse(c, status, remoteErr.Message, err)
		return
	}
	ErrorResponse(c, http.StatusInternalServerError, fallback, err)
}

func isSubmission(err error) bool {
	_, ok := services.IsSubmissionError(err)
	return ok
}

func stepMessage(err *services.StepError) string {
	switch {
	case errors.Is(err, wizard.ErrNotActiveStep):
		return "Only the current step can be changed, complete the steps in order"
	case errors.Is(err, wizard.ErrNotSkippable):
		return "This step cannot be skipped"
	case errors.Is(err, wizard.ErrAlreadySubmitted):
		return "This onboarding has already been submitted"
	case errors.Is(err, wizard.ErrSubmitInProgress):
		return "A submission is already in progress"
	case errors.Is(err, wizard.ErrNotAtFinalStep), errors.Is(err, wizard.ErrIncomplete):
		return "All steps must be completed before submitting"
	case errors.Is(err, wizard.ErrUnknownStep):
		return "Unknown wizard step"
	}
	return "Step transition not allowed"
}

// getRequestID retrieves or generates a request ID
func getRequestID(c *gin.Context) string {
	if requestID := c.GetString("request_id"); requestID != "" {
		return requestID
	}
	if requestID := c.GetHeader("X-Request-ID"); requestID != "" {
		return requestID
	}
	return time.Now().Format("20060102150405")
}
