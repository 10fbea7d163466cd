package validation

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-onboarding-service/internal/models"
)

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func newTestValidator() *Validator {
	return New(WithNow(func() time.Time { return fixedNow }))
}

func validPersonalInfo() *models.PersonalInfo {
	return &models.PersonalInfo{
		FullName:              "Aisha Rahman",
		Email:                 "aisha@example.com",
		Phone:                 "+971 50 123 4567",
		DateOfBirth:           "1990-04-12",
		NationalID:            "784-1990-1234567-1",
		Nationality:           "AE",
		EmergencyContactName:  "Omar Rahman",
		EmergencyContactPhone: "+971501112222",
	}
}

func validExpense(amount float64) *models.ExpenseCreate {
	return &models.ExpenseCreate{
		Category:    "MAINTENANCE",
		Amount:      amount,
		ExpenseDate: "2026-10-01",
		PropertyID:  "5b2f8d4e-8a51-4f4c-9e63-0f2b1c7d3a10",
		Description: "Lobby AC repair",
	}
}

func validQuotation() *models.Quotation {
	return &models.Quotation{
		LeadID:          "0d7b4f0a-3f0e-4a43-8a5b-8d2f7f1c2e01",
		PropertyID:      "5b2f8d4e-8a51-4f4c-9e63-0f2b1c7d3a10",
		UnitID:          "9a1e6c3b-2d4f-4b8a-a7c9-1e2f3a4b5c6d",
		BaseRent:        5000,
		ServiceCharges:  500,
		ParkingSpots:    2,
		ParkingFee:      300,
		SecurityDeposit: 5000,
		AdminFee:        1000,
		IssueDate:       "2026-10-10",
		ValidityDate:    "2026-11-10",
	}
}

func cheques(n int) []models.PDCCheque {
	out := make([]models.PDCCheque, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.PDCCheque{
			ChequeNumber: fmt.Sprintf("CHQ-%03d", i+1),
			BankName:     "Emirates NBD",
			Amount:       5500,
			ChequeDate:   fmt.Sprintf("2027-%02d-01", i%12+1),
		})
	}
	return out
}

func TestExpense_AmountBounds(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		amount float64
		valid  bool
	}{
		{0, false},
		{-100, false},
		{0.01, true},
		{9999999.99, true},
		{10000000, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.amount), func(t *testing.T) {
			violations := v.Validate(validExpense(tt.amount))
			if tt.valid {
				assert.Empty(t, violations)
			} else {
				assert.True(t, violations.Has("amount"), "expected amount violation, got %v", violations)
			}
		})
	}
}

func TestExpense_DateNotInFuture(t *testing.T) {
	v := newTestValidator()

	e := validExpense(100)
	e.ExpenseDate = "2026-10-17"
	assert.True(t, v.Validate(e).Has("expenseDate"))

	e.ExpenseDate = "2026-10-16"
	assert.Empty(t, v.Validate(e))

	e.ExpenseDate = "16/10/2026"
	violations := v.Validate(e)
	require.Len(t, violations.At("expenseDate"), 1)
	assert.Equal(t, "isodate", violations.At("expenseDate")[0].Rule)
}

func TestPDCBulk_BatchSizeAndUniqueness(t *testing.T) {
	v := newTestValidator()
	base := func(c []models.PDCCheque) *models.PDCBulkCreate {
		return &models.PDCBulkCreate{
			TenantID: "3c1d2e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f",
			LeaseID:  "7f6e5d4c-3b2a-4190-8f7e-6d5c4b3a2910",
			Cheques:  c,
		}
	}

	t.Run("empty batch", func(t *testing.T) {
		violations := v.Validate(base([]models.PDCCheque{}))
		assert.True(t, violations.Has("cheques"))
	})

	t.Run("too many cheques", func(t *testing.T) {
		violations := v.Validate(base(cheques(25)))
		assert.True(t, violations.Has("cheques"))
	})

	t.Run("full batch", func(t *testing.T) {
		assert.Empty(t, v.Validate(base(cheques(24))))
	})

	t.Run("duplicate cheque numbers ignore case", func(t *testing.T) {
		c := cheques(3)
		c[2].ChequeNumber = "chq-001"
		violations := v.Validate(base(c))
		require.Len(t, violations, 1)
		assert.Equal(t, []string{"cheques", "2", "chequeNumber"}, violations[0].Path)
		assert.Equal(t, "unique", violations[0].Rule)
		assert.Contains(t, violations[0].Message, "cheque 1")
	})

	t.Run("nested field errors carry index", func(t *testing.T) {
		c := cheques(2)
		c[1].Amount = 0
		violations := v.Validate(base(c))
		assert.True(t, violations.Has("cheques", "1", "amount"))
	})
}

func TestQuotation_DateRules(t *testing.T) {
	v := newTestValidator()

	assert.Empty(t, v.Validate(validQuotation()))

	q := validQuotation()
	q.IssueDate = "2026-11-10"
	q.ValidityDate = q.IssueDate
	violations := v.Validate(q)
	require.Len(t, violations, 1)
	assert.Equal(t, "date_order", violations.At("validityDate")[0].Rule)

	q = validQuotation()
	q.ValidityDate = "2026-10-01"
	assert.True(t, v.Validate(q).Has("validityDate"))

	q = validQuotation()
	q.IssueDate = "2026-09-01"
	q.ValidityDate = "2026-10-16"
	violations = v.Validate(q)
	require.Len(t, violations, 1)
	assert.Equal(t, "futuredate", violations[0].Rule)
	assert.Equal(t, "Validity date must be in the future", violations[0].Message)
}

func TestDocumentUpload_EntityIDRequiredUnlessGeneral(t *testing.T) {
	v := newTestValidator()
	doc := func(entityType, entityID string) *models.DocumentUpload {
		return &models.DocumentUpload{
			EntityType:   entityType,
			EntityID:     entityID,
			DocumentType: "PASSPORT",
			FileName:     "passport.pdf",
			ContentType:  "application/pdf",
			Size:         2048,
		}
	}

	assert.Empty(t, v.Validate(doc(models.EntityGeneral, "")))

	for _, et := range []string{"TENANT", "PROPERTY", "UNIT", "LEASE", "VENDOR"} {
		violations := v.Validate(doc(et, ""))
		require.Len(t, violations, 1, et)
		assert.Equal(t, []string{"entityId"}, violations[0].Path)
	}

	assert.Empty(t, v.Validate(doc("TENANT", "3c1d2e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f")))
	assert.True(t, v.Validate(doc("TENANT", "not-a-uuid")).Has("entityId"))
}

func TestCheckFile_AcceptedTypes(t *testing.T) {
	accepted := map[string]string{
		"lease.pdf":      "application/pdf",
		"id.jpg":         "image/jpeg",
		"id.JPEG":        "image/jpeg",
		"scan.jpg":       "image/jpg",
		"photo.jpeg":     "image/pjpeg",
		"scan.png":       "image/png",
		"contract.doc":   "application/msword",
		"contract.docx":  "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"ledger.xls":     "application/vnd.ms-excel",
		"ledger.xlsx":    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"unknown.pdf":    "application/octet-stream",
		"withparams.pdf": "application/pdf; charset=binary",
	}
	for name, ct := range accepted {
		assert.Empty(t, CheckFile(name, ct, 1024), name)
	}

	for _, name := range []string{"setup.exe", "archive.zip", "notes.txt", "noext"} {
		violations := CheckFile(name, "", 1024)
		require.Len(t, violations, 1, name)
		assert.Equal(t, []string{"file"}, violations[0].Path)
		assert.Contains(t, violations[0].Message, "not allowed")
	}

	mismatch := CheckFile("lease.pdf", "image/png", 1024)
	require.Len(t, mismatch, 1)
	assert.Contains(t, mismatch[0].Message, "does not match")
}

func TestCheckFile_SizeLimit(t *testing.T) {
	assert.Empty(t, CheckFile("lease.pdf", "application/pdf", MaxFileSize))

	violations := CheckFile("lease.pdf", "application/pdf", MaxFileSize+1)
	require.Len(t, violations, 1)
	assert.Equal(t, "file_size", violations[0].Rule)
	assert.Contains(t, violations[0].Message, "10 MB")

	assert.Len(t, CheckFile("lease.pdf", "application/pdf", 0), 1)
}

func TestCheckFileContent(t *testing.T) {
	pdf := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

	assert.Empty(t, CheckFileContent("lease.pdf", "application/pdf", pdf))
	assert.Empty(t, CheckFileContent("car.png", "", png))
	jpeg := []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	assert.Empty(t, CheckFileContent("scan.jpg", "image/jpg", jpeg))

	violations := CheckFileContent("lease.pdf", "", []byte("just some text pretending to be a pdf"))
	require.Len(t, violations, 1)
	assert.Equal(t, "file_content", violations[0].Rule)

	assert.Equal(t, "application/pdf", DetectContentType(pdf))
}

func TestPersonalInfo_MinimumAge(t *testing.T) {
	v := newTestValidator()

	assert.Empty(t, v.Validate(validPersonalInfo()))

	p := validPersonalInfo()
	p.DateOfBirth = "2008-10-16"
	assert.Empty(t, v.Validate(p), "turns 18 today")

	p.DateOfBirth = "2008-10-17"
	violations := v.Validate(p)
	require.Len(t, violations, 1)
	assert.Equal(t, "min_age", violations[0].Rule)
	assert.Equal(t, []string{"dateOfBirth"}, violations[0].Path)

	p.DateOfBirth = "2030-01-01"
	assert.Equal(t, "pastdate", v.Validate(p).At("dateOfBirth")[0].Rule)
}

func TestPersonalInfo_FieldMessages(t *testing.T) {
	v := newTestValidator()

	p := validPersonalInfo()
	p.FullName = ""
	p.Email = "not-an-email"
	p.NationalID = "123"

	violations := v.Validate(p)
	require.Len(t, violations, 3)
	assert.Equal(t, "Full name is required", violations.At("fullName")[0].Message)
	assert.Equal(t, "Email must be a valid email address", violations.At("email")[0].Message)
	assert.Equal(t, "National ID must be at least 5 characters", violations.At("nationalId")[0].Message)
}

func TestLeaseInfo_EndAfterStart(t *testing.T) {
	v := newTestValidator()
	lease := &models.LeaseInfo{
		PropertyID:     "5b2f8d4e-8a51-4f4c-9e63-0f2b1c7d3a10",
		UnitID:         "9a1e6c3b-2d4f-4b8a-a7c9-1e2f3a4b5c6d",
		LeaseStartDate: "2026-11-01",
		LeaseEndDate:   "2027-10-31",
		StayType:       "LONG_TERM",
		Occupants:      2,
	}
	assert.Empty(t, v.Validate(lease))

	lease.LeaseEndDate = "2026-11-01"
	assert.True(t, v.Validate(lease).Has("leaseEndDate"))

	lease.LeaseEndDate = "2027-10-31"
	lease.StayType = "WEEKEND"
	violations := v.Validate(lease)
	require.Len(t, violations, 1)
	assert.True(t, strings.HasPrefix(violations[0].Message, "Stay type must be one of"))
}

func TestPaymentSchedule_ChequeCountOnlyForPDC(t *testing.T) {
	v := newTestValidator()
	count := func(n int) *int { return &n }

	pdc := &models.PaymentSchedule{Frequency: "MONTHLY", DueDay: 1, PaymentMethod: "PDC"}
	assert.True(t, v.Validate(pdc).Has("pdcChequeCount"))

	pdc.PDCChequeCount = count(13)
	assert.True(t, v.Validate(pdc).Has("pdcChequeCount"))

	pdc.PDCChequeCount = count(12)
	assert.Empty(t, v.Validate(pdc))
	assert.Equal(t, 12, *pdc.PDCChequeCount)

	transfer := &models.PaymentSchedule{Frequency: "QUARTERLY", DueDay: 31, PaymentMethod: "BANK_TRANSFER", PDCChequeCount: count(4)}
	assert.Empty(t, v.Validate(transfer))
	assert.Nil(t, transfer.PDCChequeCount)

	transfer.DueDay = 32
	assert.True(t, v.Validate(transfer).Has("dueDay"))
}

func TestPDCWithdrawal_TransactionDetails(t *testing.T) {
	v := newTestValidator()
	w := &models.PDCWithdrawal{
		Reason:         "Tenant paid the balance early",
		WithdrawalDate: "2026-10-15",
		PaymentMethod:  "BANK_TRANSFER",
	}
	violations := v.Validate(w)
	require.Len(t, violations, 1)
	assert.Equal(t, []string{"transactionDetails"}, violations[0].Path)

	w.TransactionDetails = "TRX-99812 from ENBD"
	assert.Empty(t, v.Validate(w))

	w.PaymentMethod = "CASH"
	w.TransactionDetails = ""
	assert.Empty(t, v.Validate(w))
}

func TestPDCStatusUpdate_BounceReason(t *testing.T) {
	v := newTestValidator()
	assert.True(t, v.Validate(&models.PDCStatusUpdate{Status: "BOUNCED"}).Has("bounceReason"))
	assert.Empty(t, v.Validate(&models.PDCStatusUpdate{Status: "CLEARED"}))
	assert.True(t, v.Validate(&models.PDCStatusUpdate{Status: "LOST"}).Has("status"))
}

func TestParkingAllocation(t *testing.T) {
	v := newTestValidator()

	t.Run("skipped payload is valid", func(t *testing.T) {
		assert.Empty(t, v.Validate(models.SkippedParking()))
	})

	t.Run("normalizes selected spots", func(t *testing.T) {
		p := &models.ParkingAllocation{SelectedSpots: []models.ParkingSpotSelection{
			{SpotID: "11111111-1111-4111-8111-111111111111", SpotNumber: "B1-12", MonthlyFee: 200},
			{SpotID: "22222222-2222-4222-8222-222222222222", SpotNumber: "B1-13", MonthlyFee: 400},
		}}
		require.Empty(t, v.Validate(p))
		assert.Equal(t, 2, p.ParkingSpots)
		assert.Equal(t, 300.0, p.ParkingFeePerSpot)
		assert.Equal(t, "B1-12, B1-13", p.SpotNumbers)
	})

	t.Run("duplicate spot", func(t *testing.T) {
		p := &models.ParkingAllocation{SelectedSpots: []models.ParkingSpotSelection{
			{SpotID: "11111111-1111-4111-8111-111111111111", SpotNumber: "B1-12", MonthlyFee: 200},
			{SpotID: "11111111-1111-4111-8111-111111111111", SpotNumber: "B1-12", MonthlyFee: 200},
		}}
		assert.True(t, v.Validate(p).Has("selectedSpots", "1", "spotId"))
	})

	t.Run("mulkiya without spots", func(t *testing.T) {
		id := "33333333-3333-4333-8333-333333333333"
		p := &models.ParkingAllocation{MulkiyaFile: &id}
		assert.True(t, v.Validate(p).Has("mulkiyaFile"))
	})
}

func TestDocumentsStep(t *testing.T) {
	v := newTestValidator()
	assert.True(t, v.Validate(&models.DocumentsStep{}).Has("attachmentIds"))

	id := "44444444-4444-4444-8444-444444444444"
	assert.Empty(t, v.Validate(&models.DocumentsStep{AttachmentIDs: []string{id}}))
	assert.True(t, v.Validate(&models.DocumentsStep{AttachmentIDs: []string{id, id}}).Has("attachmentIds", "1"))
	assert.True(t, v.Validate(&models.DocumentsStep{AttachmentIDs: []string{"x"}}).Has("attachmentIds", "0"))
}

func TestSplitNamespace(t *testing.T) {
	assert.Equal(t, []string{"cheques", "1", "chequeNumber"}, splitNamespace("PDCBulkCreate.cheques[1].chequeNumber"))
	assert.Equal(t, []string{"attachmentIds", "0"}, splitNamespace("DocumentsStep.attachmentIds[0]"))
	assert.Equal(t, []string{"amount"}, splitNamespace("ExpenseCreate.amount"))
}

func TestViolations_Error(t *testing.T) {
	vs := Violations{
		{Path: []string{"amount"}, Message: "Amount is required"},
		{Path: []string{"cheques", "0", "bankName"}, Message: "Bank name is required"},
	}
	assert.Equal(t, "amount: Amount is required; cheques.0.bankName: Bank name is required", vs.Error())
}
