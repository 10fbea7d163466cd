package models

import "time"

// ParkingSpotStatus is the backend status of a parking spot
type ParkingSpotStatus string

const (
	ParkingSpotAvailable        ParkingSpotStatus = "AVAILABLE"
	ParkingSpotAssigned         ParkingSpotStatus = "ASSIGNED"
	ParkingSpotUnderMaintenance ParkingSpotStatus = "UNDER_MAINTENANCE"
)

// ParkingSpot is a spot as returned by the backend
type ParkingSpot struct {
	ID         string            `json:"id"`
	PropertyID string            `json:"propertyId"`
	SpotNumber string            `json:"spotNumber"`
	SpotType   string            `json:"spotType,omitempty"`
	Level      string            `json:"level,omitempty"`
	Status     ParkingSpotStatus `json:"status"`
	MonthlyFee float64           `json:"monthlyFee"`
}

// Quotation is a rent quotation offered to a lead
type Quotation struct {
	LeadID             string  `json:"leadId" validate:"required,uuid"`
	PropertyID         string  `json:"propertyId" validate:"required,uuid"`
	UnitID             string  `json:"unitId" validate:"required,uuid"`
	BaseRent           float64 `json:"baseRent" validate:"money"`
	ServiceCharges     float64 `json:"serviceCharges" validate:"money0"`
	ParkingSpots       int     `json:"parkingSpots" validate:"min=0,max=10"`
	ParkingFee         float64 `json:"parkingFee" validate:"money0"`
	SecurityDeposit    float64 `json:"securityDeposit" validate:"money0"`
	AdminFee           float64 `json:"adminFee" validate:"money0"`
	IssueDate          string  `json:"issueDate" validate:"required,isodate"`
	ValidityDate       string  `json:"validityDate" validate:"required,isodate,futuredate"`
	TermsAndConditions string  `json:"termsAndConditions,omitempty" validate:"max=2000"`
	Notes              string  `json:"notes,omitempty" validate:"max=500"`
}

// ExpenseCreate is a property expense entry
type ExpenseCreate struct {
	Category      string  `json:"category" validate:"required,oneof=MAINTENANCE UTILITIES INSURANCE TAXES MANAGEMENT_FEES REPAIRS CLEANING SECURITY LANDSCAPING MARKETING LEGAL OTHER"`
	Amount        float64 `json:"amount" validate:"money"`
	ExpenseDate   string  `json:"expenseDate" validate:"required,isodate"`
	PropertyID    string  `json:"propertyId,omitempty" validate:"omitempty,uuid"`
	VendorID      string  `json:"vendorId,omitempty" validate:"omitempty,uuid"`
	PaymentMethod string  `json:"paymentMethod,omitempty" validate:"omitempty,oneof=CASH BANK_TRANSFER CHEQUE CREDIT_CARD"`
	Description   string  `json:"description" validate:"required,min=3,max=500"`
	ReferenceNo   string  `json:"referenceNumber,omitempty" validate:"max=100"`
}

// PDCCheque is one entry of a bulk post-dated cheque submission
type PDCCheque struct {
	ChequeNumber string  `json:"chequeNumber" validate:"required,min=1,max=50"`
	BankName     string  `json:"bankName" validate:"required,min=2,max=100"`
	Amount       float64 `json:"amount" validate:"money"`
	ChequeDate   string  `json:"chequeDate" validate:"required,isodate"`
}

// PDCBulkCreate registers a batch of cheques for a lease
type PDCBulkCreate struct {
	TenantID string      `json:"tenantId" validate:"required,uuid"`
	LeaseID  string      `json:"leaseId" validate:"required,uuid"`
	Cheques  []PDCCheque `json:"cheques" validate:"required,min=1,max=24,dive"`
}

// PDCWithdrawal withdraws a cheque before deposit
type PDCWithdrawal struct {
	Reason             string `json:"reason" validate:"required,min=10,max=500"`
	WithdrawalDate     string `json:"withdrawalDate" validate:"required,isodate"`
	PaymentMethod      string `json:"paymentMethod" validate:"required,oneof=CASH BANK_TRANSFER CHEQUE NEW_CHEQUE"`
	TransactionDetails string `json:"transactionDetails,omitempty" validate:"max=500"`
	NewChequeNumber    string `json:"newChequeNumber,omitempty" validate:"max=50"`
}

// PDC statuses
const (
	PDCReceived  = "RECEIVED"
	PDCDue       = "DUE"
	PDCDeposited = "DEPOSITED"
	PDCCleared   = "CLEARED"
	PDCBounced   = "BOUNCED"
	PDCCancelled = "CANCELLED"
	PDCReplaced  = "REPLACED"
	PDCWithdrawn = "WITHDRAWN"
)

// PDCStatusUpdate moves a cheque to a new status
type PDCStatusUpdate struct {
	Status       string `json:"status" validate:"required,oneof=RECEIVED DUE DEPOSITED CLEARED BOUNCED CANCELLED REPLACED WITHDRAWN"`
	BounceReason string `json:"bounceReason,omitempty" validate:"max=500"`
	Notes        string `json:"notes,omitempty" validate:"max=500"`
}

// Document entity types
const (
	EntityTenant   = "TENANT"
	EntityProperty = "PROPERTY"
	EntityUnit     = "UNIT"
	EntityLease    = "LEASE"
	EntityVendor   = "VENDOR"
	EntityGeneral  = "GENERAL"
)

// DocumentUpload is the metadata of a standalone document upload
type DocumentUpload struct {
	EntityType   string `json:"entityType" form:"entityType" validate:"required,oneof=TENANT PROPERTY UNIT LEASE VENDOR GENERAL"`
	EntityID     string `json:"entityId,omitempty" form:"entityId" validate:"omitempty,uuid"`
	DocumentType string `json:"documentType" form:"documentType" validate:"required,oneof=PASSPORT EMIRATES_ID VISA TRADE_LICENSE LEASE_AGREEMENT MULKIYA INVOICE RECEIPT OTHER"`
	Title        string `json:"title,omitempty" form:"title" validate:"max=200"`
	Description  string `json:"description,omitempty" form:"description" validate:"max=500"`
	ExpiryDate   string `json:"expiryDate,omitempty" form:"expiryDate" validate:"omitempty,isodate"`
	FileName     string `json:"fileName" validate:"required,max=255"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size" validate:"gt=0"`
}

// Tenant is the backend record created by a successful onboarding
type Tenant struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Document is the backend record of an uploaded file
type Document struct {
	ID           string `json:"id"`
	EntityType   string `json:"entityType"`
	EntityID     string `json:"entityId,omitempty"`
	DocumentType string `json:"documentType"`
	FileName     string `json:"fileName"`
	FileURL      string `json:"fileUrl,omitempty"`
}

// QuotationSummary adds the derived totals to a quotation
type QuotationSummary struct {
	Quotation
	TotalMonthlyRent  float64 `json:"totalMonthlyRent"`
	TotalParkingFee   float64 `json:"totalParkingFee"`
	TotalFirstPayment float64 `json:"totalFirstPayment"`
}

// PDCBatchSummary adds the batch total to a bulk submission
type PDCBatchSummary struct {
	ChequeCount int     `json:"chequeCount"`
	TotalAmount float64 `json:"totalAmount"`
}
