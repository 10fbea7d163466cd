package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tenant-onboarding-service/internal/clients"
	"tenant-onboarding-service/internal/models"
	"tenant-onboarding-service/internal/services"
	"tenant-onboarding-service/internal/validation"
)

// ParkingHandler serves the available parking spots lookup
type ParkingHandler struct {
	parkingService *services.ParkingService
}

// NewParkingHandler creates a new parking handler
func NewParkingHandler(parkingService *services.ParkingService) *ParkingHandler {
	return &ParkingHandler{parkingService: parkingService}
}

// AvailableSpots lists the spots that can be allocated. Lookup failures are
// reported inline with an alert so the wizard keeps working.
func (h *ParkingHandler) AvailableSpots(c *gin.Context) {
	result := h.parkingService.Lookup(c.Request.Context(), c.Query("propertyId"))
	message := "Parking spots retrieved successfully"
	if result.Alert != "" {
		message = result.Alert
	}
	SuccessResponse(c, http.StatusOK, message, result)
}

// FinanceHandler serves calculations and the finance forms
type FinanceHandler struct {
	financeService *services.FinanceService
	maxUploadBytes int64
}

// NewFinanceHandler creates a new finance handler
func NewFinanceHandler(financeService *services.FinanceService, maxUploadBytes int64) *FinanceHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = validation.MaxFileSize
	}
	return &FinanceHandler{
		financeService: financeService,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes mounts the calculation, finance and document routes
func (h *FinanceHandler) RegisterRoutes(rg *gin.RouterGroup, limit gin.HandlerFunc) {
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}
	rg.POST("/calculations/rent", h.CalculateRent)
	rg.POST("/calculations/quotation", h.CalculateQuotation)
	rg.POST("/quotations", limit, h.CreateQuotation)
	rg.POST("/expenses", limit, h.CreateExpense)
	rg.POST("/pdcs/bulk", limit, h.CreatePDCBulk)
	rg.POST("/pdcs/:pdcId/withdraw", limit, h.WithdrawPDC)
	rg.PATCH("/pdcs/:pdcId/status", limit, h.UpdatePDCStatus)
	rg.POST("/documents", limit, h.UploadDocument)
	rg.GET("/invoices/:invoiceId/pdf", h.DownloadInvoice)
	rg.DELETE("/properties/:propertyId", limit, h.DeleteProperty)
}

// CalculateRent returns the derived figures of a rent breakdown
func (h *FinanceHandler) CalculateRent(c *gin.Context) {
	var req services.RentCalculation
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}
	result, err := h.financeService.CalculateRent(&req)
	if err != nil {
		ServiceErrorResponse(c, "Failed to calculate rent", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Rent calculated", result)
}

// CalculateQuotation returns the totals of a quotation without creating it
func (h *FinanceHandler) CalculateQuotation(c *gin.Context) {
	var q models.Quotation
	if err := c.ShouldBindJSON(&q); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}
	summary, err := h.financeService.CalculateQuotation(&q)
	if err != nil {
		ServiceErrorResponse(c, "Failed to calculate quotation", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Quotation calculated", summary)
}

// CreateQuotation creates a quotation
func (h *FinanceHandler) CreateQuotation(c *gin.Context) {
	var q models.Quotation
	if err := c.ShouldBindJSON(&q); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}
	result, err := h.financeService.CreateQuotation(c.Request.Context(), &q)
	if err != nil {
		ServiceErrorResponse(c, "Failed to create quotation", err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "Quotation created successfully", result)
}

// CreateExpense records an expense
func (h *FinanceHandler) CreateExpense(c *gin.Context) {
	var e models.ExpenseCreate
	if err := c.ShouldBindJSON(&e); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}
	record, err := h.financeService.CreateExpense(c.Request.Context(), &e)
	if err != nil {
		ServiceErrorResponse(c, "Failed to create expense", err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "Expense created successfully", record)
}

// CreatePDCBulk registers a batch of post-dated cheques
func (h *FinanceHandler) CreatePDCBulk(c *gin.Context) {
	var b models.PDCBulkCreate
	if err := c.ShouldBindJSON(&b); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}
	result, err := h.financeService.CreatePDCBulk(c.Request.Context(), &b)
	if err != nil {
		ServiceErrorResponse(c, "Failed to create cheques", err)
		return
	}
	SuccessResponse(c, http.StatusCreated, fmt.Sprintf("%d cheques created successfully", result.Summary.ChequeCount), result)
}

// WithdrawPDC withdraws a cheque
func (h *FinanceHandler) WithdrawPDC(c *gin.Context) {
	var w models.PDCWithdrawal
	if err := c.ShouldBindJSON(&w); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}
	record, err := h.financeService.WithdrawPDC(c.Request.Context(), c.Param("pdcId"), &w)
	if err != nil {
		ServiceErrorResponse(c, "Failed to withdraw cheque", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Cheque withdrawn successfully", record)
}

// UpdatePDCStatus changes the status of a cheque
func (h *FinanceHandler) UpdatePDCStatus(c *gin.Context) {
	var u models.PDCStatusUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}
	record, err := h.financeService.UpdatePDCStatus(c.Request.Context(), c.Param("pdcId"), &u)
	if err != nil {
		ServiceErrorResponse(c, "Failed to update cheque status", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Cheque status updated successfully", record)
}

// UploadDocument uploads a standalone document
func (h *FinanceHandler) UploadDocument(c *gin.Context) {
	var meta models.DocumentUpload
	if err := c.ShouldBind(&meta); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

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

	doc, err := h.financeService.UploadDocument(c.Request.Context(), &meta, clients.FilePart{
		Field:       "file",
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		ServiceErrorResponse(c, "Failed to upload document", err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "Document uploaded successfully", doc)
}

// DownloadInvoice streams the invoice PDF from the backend
func (h *FinanceHandler) DownloadInvoice(c *gin.Context) {
	blob, err := h.financeService.DownloadInvoice(c.Request.Context(), c.Param("invoiceId"))
	if err != nil {
		ServiceErrorResponse(c, "Failed to download invoice", err)
		return
	}
	contentType := blob.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, blob.FileName))
	c.Data(http.StatusOK, contentType, blob.Data)
}

// DeleteProperty deletes a property
func (h *FinanceHandler) DeleteProperty(c *gin.Context) {
	if err := h.financeService.DeleteProperty(c.Request.Context(), c.Param("propertyId")); err != nil {
		ServiceErrorResponse(c, "Failed to delete property", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Property deleted successfully", nil)
}
