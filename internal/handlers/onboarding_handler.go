package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tenant-onboarding-service/internal/models"
	"tenant-onboarding-service/internal/services"
	"tenant-onboarding-service/internal/validation"
)

// OnboardingHandler handles the tenant onboarding wizard
type OnboardingHandler struct {
	onboardingService *services.OnboardingService
	maxUploadBytes    int64
}

// NewOnboardingHandler creates a new onboarding handler
func NewOnboardingHandler(onboardingService *services.OnboardingService, maxUploadBytes int64) *OnboardingHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = validation.MaxFileSize
	}
	return &OnboardingHandler{
		onboardingService: onboardingService,
		maxUploadBytes:    maxUploadBytes,
	}
}

// RegisterRoutes mounts the wizard routes; submit routes get the limiter
func (h *OnboardingHandler) RegisterRoutes(rg *gin.RouterGroup, limit gin.HandlerFunc) {
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}
	sessions := rg.Group("/onboarding/sessions")
	sessions.POST("", limit, h.StartSession)
	sessions.GET("/:sessionId", h.GetSession)
	sessions.DELETE("/:sessionId", h.DiscardSession)
	sessions.POST("/:sessionId/steps/:step/complete", limit, h.CompleteStep)
	sessions.POST("/:sessionId/steps/:step/skip", h.SkipStep)
	sessions.PUT("/:sessionId/steps/:step/draft", h.SaveDraft)
	sessions.POST("/:sessionId/back", h.GoBack)
	sessions.POST("/:sessionId/attachments", limit, h.UploadAttachment)
	sessions.GET("/:sessionId/summary", h.Summary)
	sessions.POST("/:sessionId/submit", limit, h.Submit)
}

// StartSession starts a new onboarding session
func (h *OnboardingHandler) StartSession(c *gin.Context) {
	session, err := h.onboardingService.StartSession(c.Request.Context())
	if err != nil {
		ServiceErrorResponse(c, "Failed to start onboarding", err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "Onboarding session created successfully", session)
}

// GetSession returns the current wizard state
func (h *OnboardingHandler) GetSession(c *gin.Context) {
	session, err := h.onboardingService.GetSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		ServiceErrorResponse(c, "Failed to load onboarding session", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Onboarding session retrieved successfully", session)
}

// DiscardSession drops the session when the user leaves the wizard
func (h *OnboardingHandler) DiscardSession(c *gin.Context) {
	if err := h.onboardingService.DiscardSession(c.Request.Context(), c.Param("sessionId")); err != nil {
		ServiceErrorResponse(c, "Failed to discard onboarding session", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Onboarding session discarded", nil)
}

// CompleteStep validates the posted step data and advances the wizard
func (h *OnboardingHandler) CompleteStep(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	result, err := h.onboardingService.CompleteStep(c.Request.Context(), c.Param("sessionId"), stepParam(c), body)
	if err != nil {
		ServiceErrorResponse(c, "Failed to complete step", err)
		return
	}
	h.stepResponse(c, result, "Step completed successfully")
}

// SkipStep skips an optional step
func (h *OnboardingHandler) SkipStep(c *gin.Context) {
	result, err := h.onboardingService.SkipStep(c.Request.Context(), c.Param("sessionId"), stepParam(c))
	if err != nil {
		ServiceErrorResponse(c, "Failed to skip step", err)
		return
	}
	h.stepResponse(c, result, "Step skipped")
}

// GoBack moves to the previous step
func (h *OnboardingHandler) GoBack(c *gin.Context) {
	result, err := h.onboardingService.GoBack(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		ServiceErrorResponse(c, "Failed to go back", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Moved to previous step", result)
}

// SaveDraft accepts unvalidated step data for autosave
func (h *OnboardingHandler) SaveDraft(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	ack, err := h.onboardingService.SaveDraft(c.Request.Context(), c.Param("sessionId"), stepParam(c), body)
	if err != nil {
		ServiceErrorResponse(c, "Failed to save draft", err)
		return
	}
	SuccessResponse(c, http.StatusAccepted, "Draft accepted", ack)
}

// UploadAttachment stores a document or Mulkiya scan in the session
func (h *OnboardingHandler) UploadAttachment(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		ValidationErrorResponse(c, "File is required", validation.Violations{{
			Path: []string{"file"}, Message: "File is required", Rule: "required",
		}})
		return
	}
	if header.Size > h.maxUploadBytes {
		ValidationErrorResponse(c, "Invalid file", validation.CheckFile(header.Filename, header.Header.Get("Content-Type"), header.Size))
		return
	}

	file, err := header.Open()
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Failed to read uploaded file", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Failed to read uploaded file", err)
		return
	}

	purpose := models.AttachmentPurpose(strings.ToUpper(c.DefaultPostForm("purpose", string(models.AttachmentDocument))))
	attachment, err := h.onboardingService.AddAttachment(c.Request.Context(), c.Param("sessionId"), &services.AttachmentUpload{
		Purpose:      purpose,
		DocumentType: c.PostForm("documentType"),
		FileName:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Data:         data,
	})
	if err != nil {
		ServiceErrorResponse(c, "Failed to upload attachment", err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "File uploaded successfully", attachment)
}

// Summary returns the derived figures and the submission preview
func (h *OnboardingHandler) Summary(c *gin.Context) {
	summary, err := h.onboardingService.Summary(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		ServiceErrorResponse(c, "Failed to build summary", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Summary retrieved successfully", summary)
}

// Submit retries the final submission
func (h *OnboardingHandler) Submit(c *gin.Context) {
	result, err := h.onboardingService.Submit(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		ServiceErrorResponse(c, "Failed to submit onboarding", err)
		return
	}
	h.stepResponse(c, result, "Tenant created successfully")
}

func (h *OnboardingHandler) stepResponse(c *gin.Context, result *services.StepResult, message string) {
	if result.Submitted {
		SuccessResponse(c, http.StatusCreated, "Tenant created successfully", result)
		return
	}
	SuccessResponse(c, http.StatusOK, message, result)
}

// stepParam accepts "parking-allocation" as well as "PARKING_ALLOCATION"
func stepParam(c *gin.Context) string {
	return strings.ToUpper(strings.ReplaceAll(c.Param("step"), "-", "_"))
}
