package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tenant-onboarding-service/internal/clients"
	"tenant-onboarding-service/internal/models"
	"tenant-onboarding-service/internal/validation"
)

const testPropertyID = "8a6e0804-2bd0-4672-b79d-d97027f9071a"

type MockFinanceBackend struct {
	mock.Mock
}

func (m *MockFinanceBackend) CreateQuotation(ctx context.Context, q *models.Quotation) (models.JSONB, error) {
	args := m.Called(ctx, q)
	return jsonbArg(args, 0), args.Error(1)
}

func (m *MockFinanceBackend) CreateExpense(ctx context.Context, e *models.ExpenseCreate) (models.JSONB, error) {
	args := m.Called(ctx, e)
	return jsonbArg(args, 0), args.Error(1)
}

func (m *MockFinanceBackend) CreatePDCBulk(ctx context.Context, b *models.PDCBulkCreate) (models.JSONB, error) {
	args := m.Called(ctx, b)
	return jsonbArg(args, 0), args.Error(1)
}

func (m *MockFinanceBackend) WithdrawPDC(ctx context.Context, pdcID string, w *models.PDCWithdrawal) (models.JSONB, error) {
	args := m.Called(ctx, pdcID, w)
	return jsonbArg(args, 0), args.Error(1)
}

func (m *MockFinanceBackend) UpdatePDCStatus(ctx context.Context, pdcID string, s *models.PDCStatusUpdate) (models.JSONB, error) {
	args := m.Called(ctx, pdcID, s)
	return jsonbArg(args, 0), args.Error(1)
}

func (m *MockFinanceBackend) UploadDocument(ctx context.Context, meta *models.DocumentUpload, file clients.FilePart) (*models.Document, error) {
	args := m.Called(ctx, meta, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Document), args.Error(1)
}

func (m *MockFinanceBackend) DownloadInvoicePDF(ctx context.Context, invoiceID string) (*clients.Blob, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.Blob), args.Error(1)
}

func (m *MockFinanceBackend) DeleteProperty(ctx context.Context, propertyID string) error {
	args := m.Called(ctx, propertyID)
	return args.Error(0)
}

func jsonbArg(args mock.Arguments, i int) models.JSONB {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).(models.JSONB)
}

func newFinanceService(backend FinanceBackend) *FinanceService {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	clock := func() time.Time { return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) }
	return NewFinanceService(backend, validation.New(validation.WithNow(clock)), "AED", logger)
}

func validQuotation() *models.Quotation {
	return &models.Quotation{
		LeadID:          "5d7c1c52-3f0e-4c47-9a43-3f4e5b6c7d8e",
		PropertyID:      testPropertyID,
		UnitID:          "0b0f4c44-7a64-4c3f-9c59-7e7cf1c6e1a2",
		BaseRent:        10000,
		ServiceCharges:  500,
		ParkingSpots:    2,
		ParkingFee:      300,
		SecurityDeposit: 800,
		AdminFee:        200,
		IssueDate:       "2026-06-01",
		ValidityDate:    "2026-07-01",
	}
}

func TestCalculateRent(t *testing.T) {
	svc := newFinanceService(&MockFinanceBackend{})

	result, err := svc.CalculateRent(&RentCalculation{
		Rent:    models.RentBreakdown{BaseRent: 10000, ServiceCharge: 500, AdminFee: 250, SecurityDeposit: 750},
		Parking: &models.ParkingAllocation{ParkingSpots: 2, ParkingFeePerSpot: 200},
	})
	require.NoError(t, err)
	assert.Equal(t, 10500.0, result.Breakdown.TotalMonthlyRent)
	assert.Equal(t, 400.0, result.Breakdown.TotalParkingFee)
	assert.Equal(t, 11900.0, result.Breakdown.TotalFirstPayment)
	assert.Equal(t, "AED 11,900.00", result.Formatted["totalFirstPayment"])

	_, err = svc.CalculateRent(&RentCalculation{Rent: models.RentBreakdown{BaseRent: 0}})
	validationErr, ok := IsValidationError(err)
	require.True(t, ok)
	assert.True(t, validationErr.Violations.Has("rent", "baseRent"))
}

func TestCreateQuotation_ReturnsTotals(t *testing.T) {
	backend := &MockFinanceBackend{}
	backend.On("CreateQuotation", mock.Anything, mock.Anything).Return(models.JSONB(`{"id":"q-1"}`), nil)
	svc := newFinanceService(backend)

	result, err := svc.CreateQuotation(context.Background(), validQuotation())
	require.NoError(t, err)
	assert.Equal(t, 12100.0, result.Summary.TotalFirstPayment)
	assert.JSONEq(t, `{"id":"q-1"}`, string(result.Record))
}

func TestCreateQuotation_InvalidNeverCallsBackend(t *testing.T) {
	backend := &MockFinanceBackend{}
	svc := newFinanceService(backend)

	q := validQuotation()
	q.ValidityDate = "2026-05-01"
	_, err := svc.CreateQuotation(context.Background(), q)
	validationErr, ok := IsValidationError(err)
	require.True(t, ok)
	assert.True(t, validationErr.Violations.Has("validityDate"))
	backend.AssertNotCalled(t, "CreateQuotation", mock.Anything, mock.Anything)
}

func TestCreateExpense_AmountBounds(t *testing.T) {
	backend := &MockFinanceBackend{}
	backend.On("CreateExpense", mock.Anything, mock.Anything).Return(models.JSONB(`{"id":"e-1"}`), nil)
	svc := newFinanceService(backend)

	expense := &models.ExpenseCreate{
		Category:    "MAINTENANCE",
		Amount:      0,
		ExpenseDate: "2026-05-20",
		Description: "AC repair",
	}
	_, err := svc.CreateExpense(context.Background(), expense)
	_, ok := IsValidationError(err)
	assert.True(t, ok)

	expense.Amount = 1250.50
	record, err := svc.CreateExpense(context.Background(), expense)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"e-1"}`, string(record))
	backend.AssertNumberOfCalls(t, "CreateExpense", 1)
}

func TestCreatePDCBulk_Summary(t *testing.T) {
	backend := &MockFinanceBackend{}
	backend.On("CreatePDCBulk", mock.Anything, mock.Anything).Return(models.JSONB(`{"created":2}`), nil)
	svc := newFinanceService(backend)

	result, err := svc.CreatePDCBulk(context.Background(), &models.PDCBulkCreate{
		TenantID: "5d7c1c52-3f0e-4c47-9a43-3f4e5b6c7d8e",
		LeaseID:  testPropertyID,
		Cheques: []models.PDCCheque{
			{ChequeNumber: "000101", BankName: "Emirates NBD", Amount: 5000, ChequeDate: "2026-07-01"},
			{ChequeNumber: "000102", BankName: "Emirates NBD", Amount: 5000, ChequeDate: "2026-08-01"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Summary.ChequeCount)
	assert.Equal(t, 10000.0, result.Summary.TotalAmount)
}

func TestWithdrawAndStatus_RequireIDs(t *testing.T) {
	svc := newFinanceService(&MockFinanceBackend{})

	_, err := svc.WithdrawPDC(context.Background(), "bad", &models.PDCWithdrawal{})
	validationErr, ok := IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "pdcId", validationErr.Field)

	_, err = svc.UpdatePDCStatus(context.Background(), testPropertyID, &models.PDCStatusUpdate{Status: models.PDCBounced})
	validationErr, ok = IsValidationError(err)
	require.True(t, ok)
	assert.True(t, validationErr.Violations.Has("bounceReason"))
}

func TestUploadDocument_ChecksContent(t *testing.T) {
	backend := &MockFinanceBackend{}
	backend.On("UploadDocument", mock.Anything, mock.Anything, mock.MatchedBy(func(f clients.FilePart) bool {
		return f.Field == "file" && f.FileName == "policy.pdf"
	})).Return(&models.Document{ID: "doc-1"}, nil)
	svc := newFinanceService(backend)

	doc, err := svc.UploadDocument(context.Background(),
		&models.DocumentUpload{EntityType: models.EntityGeneral, DocumentType: "OTHER"},
		clients.FilePart{FileName: "policy.pdf", ContentType: "application/pdf", Data: pdfBytes})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)

	_, err = svc.UploadDocument(context.Background(),
		&models.DocumentUpload{EntityType: models.EntityTenant, DocumentType: "PASSPORT"},
		clients.FilePart{FileName: "passport.pdf", ContentType: "application/pdf", Data: pdfBytes})
	validationErr, ok := IsValidationError(err)
	require.True(t, ok)
	assert.True(t, validationErr.Violations.Has("entityId"))
	backend.AssertNumberOfCalls(t, "UploadDocument", 1)
}

func TestDeleteProperty_OccupiedUnitsMessage(t *testing.T) {
	backend := &MockFinanceBackend{}
	backend.On("DeleteProperty", mock.Anything, testPropertyID).Return(&clients.RemoteError{
		Operation:  "delete property",
		StatusCode: http.StatusConflict,
		Code:       "PROPERTY_HAS_OCCUPIED_UNITS",
		Message:    "Cannot delete",
	})
	svc := newFinanceService(backend)

	err := svc.DeleteProperty(context.Background(), testPropertyID)
	ruleErr, ok := IsBusinessRuleError(err)
	require.True(t, ok)
	assert.Contains(t, ruleErr.Message, "occupied units")
}

func TestDeleteProperty_UnknownRuleKeepsBackendMessage(t *testing.T) {
	backend := &MockFinanceBackend{}
	backend.On("DeleteProperty", mock.Anything, testPropertyID).Return(&clients.RemoteError{
		StatusCode: http.StatusUnprocessableEntity,
		Message:    "Property is under audit",
	})
	svc := newFinanceService(backend)

	err := svc.DeleteProperty(context.Background(), testPropertyID)
	ruleErr, ok := IsBusinessRuleError(err)
	require.True(t, ok)
	assert.Equal(t, "Property is under audit", ruleErr.Message)
}

func TestDownloadInvoice_PassesThroughServerErrors(t *testing.T) {
	backend := &MockFinanceBackend{}
	backend.On("DownloadInvoicePDF", mock.Anything, testPropertyID).Return(nil, clients.ErrBackendUnavailable)
	svc := newFinanceService(backend)

	_, err := svc.DownloadInvoice(context.Background(), testPropertyID)
	assert.True(t, errors.Is(err, clients.ErrBackendUnavailable))
}
