package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tenant-onboarding-service/internal/clients"
	"tenant-onboarding-service/internal/finance"
	"tenant-onboarding-service/internal/models"
	"tenant-onboarding-service/internal/validation"
)

// FinanceBackend is the part of the backend API behind the finance forms
type FinanceBackend interface {
	CreateQuotation(ctx context.Context, q *models.Quotation) (models.JSONB, error)
	CreateExpense(ctx context.Context, e *models.ExpenseCreate) (models.JSONB, error)
	CreatePDCBulk(ctx context.Context, b *models.PDCBulkCreate) (models.JSONB, error)
	WithdrawPDC(ctx context.Context, pdcID string, w *models.PDCWithdrawal) (models.JSONB, error)
	UpdatePDCStatus(ctx context.Context, pdcID string, s *models.PDCStatusUpdate) (models.JSONB, error)
	UploadDocument(ctx context.Context, meta *models.DocumentUpload, file clients.FilePart) (*models.Document, error)
	DownloadInvoicePDF(ctx context.Context, invoiceID string) (*clients.Blob, error)
	DeleteProperty(ctx context.Context, propertyID string) error
}

// RentCalculation is the input of the rent preview
type RentCalculation struct {
	Rent    models.RentBreakdown      `json:"rent"`
	Parking *models.ParkingAllocation `json:"parking,omitempty"`
}

// CalculationResult holds derived figures and their display strings
type CalculationResult struct {
	Breakdown models.Breakdown  `json:"breakdown"`
	Formatted map[string]string `json:"formatted"`
}

// QuotationResult is a created quotation with its derived totals
type QuotationResult struct {
	Summary models.QuotationSummary `json:"summary"`
	Record  models.JSONB            `json:"record"`
}

// PDCBatchResult is a created cheque batch with its totals
type PDCBatchResult struct {
	Summary models.PDCBatchSummary `json:"summary"`
	Record  models.JSONB           `json:"record"`
}

// FinanceService validates the finance forms before forwarding them
type FinanceService struct {
	backend   FinanceBackend
	validator *validation.Validator
	currency  string
	logger    *logrus.Logger
}

// NewFinanceService creates a new finance service
func NewFinanceService(backend FinanceBackend, v *validation.Validator, currency string, logger *logrus.Logger) *FinanceService {
	return &FinanceService{
		backend:   backend,
		validator: v,
		currency:  currency,
		logger:    logger,
	}
}

// CalculateRent previews the figures of a rent breakdown
func (s *FinanceService) CalculateRent(req *RentCalculation) (*CalculationResult, error) {
	violations := prefix(s.validator.Validate(&req.Rent), "rent")
	if req.Parking != nil {
		violations = append(violations, prefix(s.validator.Validate(req.Parking), "parking")...)
	}
	if len(violations) > 0 {
		return nil, NewViolationsError("Invalid rent calculation", violations)
	}
	return s.result(finance.Breakdown(&req.Rent, req.Parking)), nil
}

// CalculateQuotation previews the totals of a quotation
func (s *FinanceService) CalculateQuotation(q *models.Quotation) (*models.QuotationSummary, error) {
	if violations := s.validator.Validate(q); len(violations) > 0 {
		return nil, NewViolationsError("Invalid quotation", violations)
	}
	summary := finance.SummarizeQuotation(*q)
	return &summary, nil
}

// CreateQuotation validates and creates a quotation
func (s *FinanceService) CreateQuotation(ctx context.Context, q *models.Quotation) (*QuotationResult, error) {
	summary, err := s.CalculateQuotation(q)
	if err != nil {
		return nil, err
	}
	record, err := s.backend.CreateQuotation(ctx, q)
	if err != nil {
		return nil, s.remote("create quotation", err)
	}
	return &QuotationResult{Summary: *summary, Record: record}, nil
}

// CreateExpense validates and records an expense
func (s *FinanceService) CreateExpense(ctx context.Context, e *models.ExpenseCreate) (models.JSONB, error) {
	if violations := s.validator.Validate(e); len(violations) > 0 {
		return nil, NewViolationsError("Invalid expense", violations)
	}
	record, err := s.backend.CreateExpense(ctx, e)
	if err != nil {
		return nil, s.remote("create expense", err)
	}
	return record, nil
}

// CreatePDCBulk validates and registers a batch of post-dated cheques
func (s *FinanceService) CreatePDCBulk(ctx context.Context, b *models.PDCBulkCreate) (*PDCBatchResult, error) {
	if violations := s.validator.Validate(b); len(violations) > 0 {
		return nil, NewViolationsError("Invalid cheque batch", violations)
	}
	record, err := s.backend.CreatePDCBulk(ctx, b)
	if err != nil {
		return nil, s.remote("create PDC batch", err)
	}
	return &PDCBatchResult{Summary: finance.SummarizePDCBatch(b.Cheques), Record: record}, nil
}

// WithdrawPDC validates and withdraws a cheque
func (s *FinanceService) WithdrawPDC(ctx context.Context, pdcID string, w *models.PDCWithdrawal) (models.JSONB, error) {
	if err := requireID("pdcId", pdcID); err != nil {
		return nil, err
	}
	if violations := s.validator.Validate(w); len(violations) > 0 {
		return nil, NewViolationsError("Invalid withdrawal", violations)
	}
	record, err := s.backend.WithdrawPDC(ctx, pdcID, w)
	if err != nil {
		return nil, s.remote("withdraw PDC", err)
	}
	return record, nil
}

// UpdatePDCStatus validates and applies a cheque status change
func (s *FinanceService) UpdatePDCStatus(ctx context.Context, pdcID string, u *models.PDCStatusUpdate) (models.JSONB, error) {
	if err := requireID("pdcId", pdcID); err != nil {
		return nil, err
	}
	if violations := s.validator.Validate(u); len(violations) > 0 {
		return nil, NewViolationsError("Invalid status update", violations)
	}
	record, err := s.backend.UpdatePDCStatus(ctx, pdcID, u)
	if err != nil {
		return nil, s.remote("update PDC status", err)
	}
	return record, nil
}

// UploadDocument validates the metadata and content of a standalone document
func (s *FinanceService) UploadDocument(ctx context.Context, meta *models.DocumentUpload, file clients.FilePart) (*models.Document, error) {
	meta.FileName = file.FileName
	meta.ContentType = file.ContentType
	meta.Size = int64(len(file.Data))

	violations := s.validator.Validate(meta)
	if len(violations) == 0 {
		violations = validation.CheckFileContent(file.FileName, file.ContentType, file.Data)
	}
	if len(violations) > 0 {
		return nil, NewViolationsError("Invalid document", violations)
	}

	if file.Field == "" {
		file.Field = "file"
	}
	doc, err := s.backend.UploadDocument(ctx, meta, file)
	if err != nil {
		return nil, s.remote("upload document", err)
	}
	return doc, nil
}

// DownloadInvoice fetches the invoice PDF
func (s *FinanceService) DownloadInvoice(ctx context.Context, invoiceID string) (*clients.Blob, error) {
	if err := requireID("invoiceId", invoiceID); err != nil {
		return nil, err
	}
	blob, err := s.backend.DownloadInvoicePDF(ctx, invoiceID)
	if err != nil {
		return nil, s.remote("download invoice", err)
	}
	if blob.FileName == "" {
		blob.FileName = fmt.Sprintf("invoice-%s.pdf", invoiceID)
	}
	return blob, nil
}

// DeleteProperty deletes a property; backend rule refusals keep their
// specific message
func (s *FinanceService) DeleteProperty(ctx context.Context, propertyID string) error {
	if err := requireID("propertyId", propertyID); err != nil {
		return err
	}
	if err := s.backend.DeleteProperty(ctx, propertyID); err != nil {
		return s.remote("delete property", err)
	}
	s.logger.WithField("property_id", propertyID).Info("Property deleted")
	return nil
}

func (s *FinanceService) result(b models.Breakdown) *CalculationResult {
	return &CalculationResult{
		Breakdown: b,
		Formatted: map[string]string{
			"totalMonthlyRent":  finance.FormatCurrency(s.currency, b.TotalMonthlyRent),
			"totalParkingFee":   finance.FormatCurrency(s.currency, b.TotalParkingFee),
			"totalFirstPayment": finance.FormatCurrency(s.currency, b.TotalFirstPayment),
		},
	}
}

func (s *FinanceService) remote(op string, err error) error {
	classified := classifyRemote(err)
	if classified == err {
		s.logger.WithField("operation", op).WithError(err).Error("Backend call failed")
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return classified
}

func requireID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return NewValidationError(field, fmt.Sprintf("%s must be a valid UUID", field))
	}
	return nil
}

func prefix(violations validation.Violations, head string) validation.Violations {
	for i := range violations {
		violations[i].Path = append([]string{head}, violations[i].Path...)
	}
	return violations
}
