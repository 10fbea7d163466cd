package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONB is a custom type for PostgreSQL JSONB fields
// It can hold any valid JSON value (objects, arrays, primitives)
type JSONB json.RawMessage

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append(JSONB(nil), v...)
		return nil
	case string:
		*j = JSONB([]byte(v))
		return nil
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler
func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (j *JSONB) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		*j = nil
		return nil
	}
	*j = append(JSONB(nil), data...)
	return nil
}

// NewJSONB creates a JSONB from any value
func NewJSONB(v interface{}) (JSONB, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSONB(data), nil
}

// WizardStep identifies one page of the tenant onboarding wizard
type WizardStep string

const (
	StepPersonalInfo      WizardStep = "PERSONAL_INFO"
	StepLeaseInfo         WizardStep = "LEASE_INFO"
	StepRentBreakdown     WizardStep = "RENT_BREAKDOWN"
	StepParkingAllocation WizardStep = "PARKING_ALLOCATION"
	StepPaymentSchedule   WizardStep = "PAYMENT_SCHEDULE"
	StepDocuments         WizardStep = "DOCUMENTS"
)

// WizardSteps is the fixed step order
var WizardSteps = []WizardStep{
	StepPersonalInfo,
	StepLeaseInfo,
	StepRentBreakdown,
	StepParkingAllocation,
	StepPaymentSchedule,
	StepDocuments,
}

// Index returns the ordinal of the step, or -1 for an unknown step
func (s WizardStep) Index() int {
	for i, step := range WizardSteps {
		if step == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s names a wizard step
func (s WizardStep) Valid() bool {
	return s.Index() >= 0
}

// Skippable reports whether the step accepts an empty default payload
func (s WizardStep) Skippable() bool {
	return s == StepParkingAllocation
}

// SessionStatus is the lifecycle status of an onboarding session
type SessionStatus string

const (
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionSubmitting SessionStatus = "SUBMITTING"
	SessionSubmitted  SessionStatus = "SUBMITTED"
	SessionFailed     SessionStatus = "FAILED"
)

// PersonalInfo is the first wizard step
type PersonalInfo struct {
	FullName              string `json:"fullName" validate:"required,min=2,max=100"`
	Email                 string `json:"email" validate:"required,email"`
	Phone                 string `json:"phone" validate:"required,phone"`
	DateOfBirth           string `json:"dateOfBirth" validate:"required,isodate,pastdate"`
	NationalID            string `json:"nationalId" validate:"required,min=5,max=30"`
	Nationality           string `json:"nationality" validate:"required,min=2,max=60"`
	EmergencyContactName  string `json:"emergencyContactName" validate:"required,min=2,max=100"`
	EmergencyContactPhone string `json:"emergencyContactPhone" validate:"required,phone"`
}

// LeaseInfo is the second wizard step
type LeaseInfo struct {
	PropertyID     string `json:"propertyId" validate:"required,uuid"`
	UnitID         string `json:"unitId" validate:"required,uuid"`
	LeaseStartDate string `json:"leaseStartDate" validate:"required,isodate"`
	LeaseEndDate   string `json:"leaseEndDate" validate:"required,isodate"`
	StayType       string `json:"stayType" validate:"required,oneof=SHORT_TERM LONG_TERM CORPORATE"`
	Occupants      int    `json:"occupants" validate:"required,min=1,max=20"`
	Notes          string `json:"notes,omitempty" validate:"max=500"`
}

// RentBreakdown is the third wizard step
type RentBreakdown struct {
	BaseRent        float64 `json:"baseRent" validate:"money"`
	ServiceCharge   float64 `json:"serviceCharge" validate:"money0"`
	AdminFee        float64 `json:"adminFee" validate:"money0"`
	SecurityDeposit float64 `json:"securityDeposit" validate:"money"`
}

// ParkingSpotSelection is one selected spot with its fixed monthly fee
type ParkingSpotSelection struct {
	SpotID     string  `json:"spotId" validate:"required,uuid"`
	SpotNumber string  `json:"spotNumber" validate:"required,max=20"`
	MonthlyFee float64 `json:"monthlyFee" validate:"money0"`
}

// ParkingAllocation is the optional fourth wizard step.
// SelectedSpots is canonical; ParkingSpots, ParkingFeePerSpot and SpotNumbers
// are the flat summary the backend receives and are derived by Normalize when
// spots are selected.
type ParkingAllocation struct {
	SelectedSpots     []ParkingSpotSelection `json:"selectedSpots,omitempty" validate:"max=10,dive"`
	ParkingSpots      int                    `json:"parkingSpots" validate:"min=0,max=10"`
	ParkingFeePerSpot float64                `json:"parkingFeePerSpot" validate:"money0"`
	SpotNumbers       string                 `json:"spotNumbers" validate:"max=200"`
	MulkiyaFile       *string                `json:"mulkiyaFile" validate:"omitempty,uuid"`
}

// SkippedParking is the payload stored when the parking step is skipped
func SkippedParking() *ParkingAllocation {
	return &ParkingAllocation{}
}

// Normalize derives the flat summary fields from the selected spots
func (p *ParkingAllocation) Normalize() {
	if len(p.SelectedSpots) == 0 {
		return
	}
	numbers := make([]string, 0, len(p.SelectedSpots))
	var total float64
	for _, s := range p.SelectedSpots {
		numbers = append(numbers, s.SpotNumber)
		total += s.MonthlyFee
	}
	p.ParkingSpots = len(p.SelectedSpots)
	p.ParkingFeePerSpot = total / float64(len(p.SelectedSpots))
	p.SpotNumbers = strings.Join(numbers, ", ")
}

// PaymentSchedule is the fifth wizard step
type PaymentSchedule struct {
	Frequency      string `json:"frequency" validate:"required,oneof=MONTHLY QUARTERLY YEARLY"`
	DueDay         int    `json:"dueDay" validate:"required,min=1,max=31"`
	PaymentMethod  string `json:"paymentMethod" validate:"required,oneof=BANK_TRANSFER CHEQUE PDC CASH CREDIT_CARD ONLINE"`
	PDCChequeCount *int   `json:"pdcChequeCount,omitempty" validate:"omitempty,min=1,max=12"`
}

// Normalize drops the cheque count unless the method is PDC
func (p *PaymentSchedule) Normalize() {
	if p.PaymentMethod != PaymentMethodPDC {
		p.PDCChequeCount = nil
	}
}

// PaymentMethodPDC is the post-dated cheque payment method
const PaymentMethodPDC = "PDC"

// DocumentsStep is the final wizard step; it references uploaded attachments
type DocumentsStep struct {
	AttachmentIDs []string `json:"attachmentIds" validate:"required,min=1,max=20,dive,uuid"`
}

// AttachmentPurpose tells which step an uploaded file belongs to
type AttachmentPurpose string

const (
	AttachmentDocument AttachmentPurpose = "DOCUMENT"
	AttachmentMulkiya  AttachmentPurpose = "MULKIYA"
)

// Attachment is the metadata of a file uploaded into an onboarding session.
// The bytes live in the session store under their own key.
type Attachment struct {
	ID           uuid.UUID         `json:"id"`
	Purpose      AttachmentPurpose `json:"purpose"`
	DocumentType string            `json:"documentType"`
	FileName     string            `json:"fileName"`
	ContentType  string            `json:"contentType"`
	Size         int64             `json:"size"`
	UploadedAt   time.Time         `json:"uploadedAt"`
}

// AttachmentSummary is an attachment without its content
type AttachmentSummary struct {
	ID           uuid.UUID         `json:"id"`
	Purpose      AttachmentPurpose `json:"purpose"`
	DocumentType string            `json:"documentType"`
	FileName     string            `json:"fileName"`
	ContentType  string            `json:"contentType"`
	Size         int64             `json:"size"`
}

// Summary drops the upload time
func (a Attachment) Summary() AttachmentSummary {
	return AttachmentSummary{
		ID:           a.ID,
		Purpose:      a.Purpose,
		DocumentType: a.DocumentType,
		FileName:     a.FileName,
		ContentType:  a.ContentType,
		Size:         a.Size,
	}
}

// WizardState is the aggregate state of one onboarding session
type WizardState struct {
	SessionID       uuid.UUID            `json:"sessionId"`
	CurrentStep     int                  `json:"currentStep"`
	Status          SessionStatus        `json:"status"`
	PersonalInfo    *PersonalInfo        `json:"personalInfo,omitempty"`
	LeaseInfo       *LeaseInfo           `json:"leaseInfo,omitempty"`
	RentBreakdown   *RentBreakdown       `json:"rentBreakdown,omitempty"`
	Parking         *ParkingAllocation   `json:"parkingAllocation,omitempty"`
	PaymentSchedule *PaymentSchedule     `json:"paymentSchedule,omitempty"`
	Documents       *DocumentsStep       `json:"documents,omitempty"`
	Drafts          map[WizardStep]JSONB `json:"drafts,omitempty"`
	Attachments     []Attachment         `json:"attachments,omitempty"`
	LastError       string               `json:"lastError,omitempty"`
	SubmitAttempts  int                  `json:"submitAttempts"`
	TenantID        string               `json:"tenantId,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
	ExpiresAt       time.Time            `json:"expiresAt"`
}

// NewWizardState creates a fresh session at the first step
func NewWizardState(ttl time.Duration) *WizardState {
	now := time.Now().UTC()
	return &WizardState{
		SessionID: uuid.New(),
		Status:    SessionInProgress,
		Drafts:    map[WizardStep]JSONB{},
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Step returns the active step
func (w *WizardState) Step() WizardStep {
	if w.CurrentStep < 0 || w.CurrentStep >= len(WizardSteps) {
		return WizardSteps[len(WizardSteps)-1]
	}
	return WizardSteps[w.CurrentStep]
}

// IsFinalStep reports whether the active step is the last one
func (w *WizardState) IsFinalStep() bool {
	return w.CurrentStep == len(WizardSteps)-1
}

// Completed reports whether validated data is stored for the step
func (w *WizardState) Completed(step WizardStep) bool {
	switch step {
	case StepPersonalInfo:
		return w.PersonalInfo != nil
	case StepLeaseInfo:
		return w.LeaseInfo != nil
	case StepRentBreakdown:
		return w.RentBreakdown != nil
	case StepParkingAllocation:
		return w.Parking != nil
	case StepPaymentSchedule:
		return w.PaymentSchedule != nil
	case StepDocuments:
		return w.Documents != nil
	}
	return false
}

// Attachment looks up an uploaded file by ID
func (w *WizardState) Attachment(id string) (*Attachment, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, false
	}
	for i := range w.Attachments {
		if w.Attachments[i].ID == parsed {
			return &w.Attachments[i], true
		}
	}
	return nil, false
}

// AttachmentIDs lists the IDs of every uploaded file
func (w *WizardState) AttachmentIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(w.Attachments))
	for _, a := range w.Attachments {
		ids = append(ids, a.ID)
	}
	return ids
}

// Expired reports whether the session outlived its TTL
func (w *WizardState) Expired(now time.Time) bool {
	return !w.ExpiresAt.IsZero() && now.After(w.ExpiresAt)
}

// SessionView is the client-facing projection of a session
type SessionView struct {
	SessionID       uuid.UUID            `json:"sessionId"`
	CurrentStep     WizardStep           `json:"currentStep"`
	CurrentIndex    int                  `json:"currentIndex"`
	Steps           []StepView           `json:"steps"`
	Status          SessionStatus        `json:"status"`
	PersonalInfo    *PersonalInfo        `json:"personalInfo,omitempty"`
	LeaseInfo       *LeaseInfo           `json:"leaseInfo,omitempty"`
	RentBreakdown   *RentBreakdown       `json:"rentBreakdown,omitempty"`
	Parking         *ParkingAllocation   `json:"parkingAllocation,omitempty"`
	PaymentSchedule *PaymentSchedule     `json:"paymentSchedule,omitempty"`
	Documents       *DocumentsStep       `json:"documents,omitempty"`
	Drafts          map[WizardStep]JSONB `json:"drafts,omitempty"`
	Attachments     []AttachmentSummary  `json:"attachments"`
	LastError       string               `json:"lastError,omitempty"`
	SubmitAttempts  int                  `json:"submitAttempts"`
	TenantID        string               `json:"tenantId,omitempty"`
	ExpiresAt       time.Time            `json:"expiresAt"`
}

// StepView describes one step in a SessionView
type StepView struct {
	Step      WizardStep `json:"step"`
	Index     int        `json:"index"`
	Completed bool       `json:"completed"`
	Skippable bool       `json:"skippable"`
}

// View builds the client projection of the state
func (w *WizardState) View() *SessionView {
	steps := make([]StepView, 0, len(WizardSteps))
	for i, s := range WizardSteps {
		steps = append(steps, StepView{Step: s, Index: i, Completed: w.Completed(s), Skippable: s.Skippable()})
	}
	attachments := make([]AttachmentSummary, 0, len(w.Attachments))
	for _, a := range w.Attachments {
		attachments = append(attachments, a.Summary())
	}
	return &SessionView{
		SessionID:       w.SessionID,
		CurrentStep:     w.Step(),
		CurrentIndex:    w.CurrentStep,
		Steps:           steps,
		Status:          w.Status,
		PersonalInfo:    w.PersonalInfo,
		LeaseInfo:       w.LeaseInfo,
		RentBreakdown:   w.RentBreakdown,
		Parking:         w.Parking,
		PaymentSchedule: w.PaymentSchedule,
		Documents:       w.Documents,
		Drafts:          w.Drafts,
		Attachments:     attachments,
		LastError:       w.LastError,
		SubmitAttempts:  w.SubmitAttempts,
		TenantID:        w.TenantID,
		ExpiresAt:       w.ExpiresAt,
	}
}

// Breakdown holds the derived financial figures of a session
type Breakdown struct {
	TotalMonthlyRent  float64 `json:"totalMonthlyRent"`
	TotalParkingFee   float64 `json:"totalParkingFee"`
	TotalFirstPayment float64 `json:"totalFirstPayment"`
}

// CreateTenantPayload is the merged submission sent to the backend
type CreateTenantPayload struct {
	PersonalInfo
	LeaseInfo
	RentBreakdown
	ParkingAllocation
	PaymentSchedule
	Documents []AttachmentSummary `json:"documents"`
	Breakdown
}

// SubmissionStatus is the outcome of one create-tenant attempt
type SubmissionStatus string

const (
	SubmissionSucceeded SubmissionStatus = "SUCCEEDED"
	SubmissionFailed    SubmissionStatus = "FAILED"
)

// OnboardingSubmission records every create-tenant attempt
type OnboardingSubmission struct {
	ID                uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	SessionID         uuid.UUID        `json:"session_id" gorm:"type:uuid;not null;index"`
	Attempt           int              `json:"attempt" gorm:"not null"`
	Status            SubmissionStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	TenantID          string           `json:"tenant_id,omitempty" gorm:"type:varchar(100)"`
	TenantEmail       string           `json:"tenant_email" gorm:"type:varchar(255);index"`
	PropertyID        string           `json:"property_id" gorm:"type:varchar(36);index"`
	TotalFirstPayment float64          `json:"total_first_payment"`
	Payload           JSONB            `json:"payload" gorm:"type:jsonb"`
	ErrorMessage      string           `json:"error_message,omitempty" gorm:"type:text"`
	RequestID         string           `json:"request_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt         time.Time        `json:"created_at"`
}

// TableName sets the audit table name
func (OnboardingSubmission) TableName() string {
	return "onboarding_submissions"
}

// BeforeCreate hooks
func (s *OnboardingSubmission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
