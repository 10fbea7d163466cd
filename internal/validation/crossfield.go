package validation

import (
	"fmt"
	"strconv"
	"strings"

	"tenant-onboarding-service/internal/models"
)

// MinTenantAge is the minimum age of the person signing a lease
const MinTenantAge = 18

func (v *Validator) crossFieldPass(obj any) Violations {
	switch o := obj.(type) {
	case *models.PersonalInfo:
		return v.personalInfoRules(o)
	case *models.LeaseInfo:
		return leaseInfoRules(o)
	case *models.ParkingAllocation:
		return parkingRules(o)
	case *models.PaymentSchedule:
		return paymentScheduleRules(o)
	case *models.DocumentsStep:
		return documentsStepRules(o)
	case *models.Quotation:
		return quotationRules(o)
	case *models.ExpenseCreate:
		return v.expenseRules(o)
	case *models.PDCBulkCreate:
		return pdcBulkRules(o)
	case *models.PDCWithdrawal:
		return withdrawalRules(o)
	case *models.PDCStatusUpdate:
		return pdcStatusRules(o)
	case *models.DocumentUpload:
		return documentUploadRules(o)
	}
	return nil
}

func (v *Validator) personalInfoRules(p *models.PersonalInfo) Violations {
	dob, err := ParseDate(p.DateOfBirth)
	if err != nil {
		return nil
	}
	now := v.now().UTC()
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < MinTenantAge {
		return Violations{{
			Path:    []string{"dateOfBirth"},
			Message: fmt.Sprintf("Tenant must be at least %d years old", MinTenantAge),
			Rule:    "min_age",
		}}
	}
	return nil
}

func leaseInfoRules(l *models.LeaseInfo) Violations {
	start, err1 := ParseDate(l.LeaseStartDate)
	end, err2 := ParseDate(l.LeaseEndDate)
	if err1 != nil || err2 != nil {
		return nil
	}
	if !end.After(start) {
		return Violations{{
			Path:    []string{"leaseEndDate"},
			Message: "Lease end date must be after the start date",
			Rule:    "date_order",
		}}
	}
	return nil
}

func parkingRules(p *models.ParkingAllocation) Violations {
	var out Violations
	seen := make(map[string]bool, len(p.SelectedSpots))
	for i, spot := range p.SelectedSpots {
		key := strings.ToLower(strings.TrimSpace(spot.SpotID))
		if key == "" {
			continue
		}
		if seen[key] {
			out = append(out, Violation{
				Path:    []string{"selectedSpots", strconv.Itoa(i), "spotId"},
				Message: fmt.Sprintf("Parking spot %s is selected more than once", spot.SpotNumber),
				Rule:    "unique",
			})
		}
		seen[key] = true
	}

	if n := len(p.SelectedSpots); n > 0 && p.ParkingSpots != 0 && p.ParkingSpots != n {
		out = append(out, Violation{
			Path:    []string{"parkingSpots"},
			Message: "Parking spots must match the number of selected spots",
			Rule:    "consistency",
		})
	}

	if len(p.SelectedSpots) == 0 && p.ParkingSpots == 0 && p.MulkiyaFile != nil {
		out = append(out, Violation{
			Path:    []string{"mulkiyaFile"},
			Message: "Mulkiya can only be attached when a parking spot is allocated",
			Rule:    "required_with",
		})
	}
	return out
}

func paymentScheduleRules(p *models.PaymentSchedule) Violations {
	if p.PaymentMethod == models.PaymentMethodPDC && p.PDCChequeCount == nil {
		return Violations{{
			Path:    []string{"pdcChequeCount"},
			Message: "Number of cheques is required for PDC payments",
			Rule:    "required_if",
		}}
	}
	return nil
}

func documentsStepRules(d *models.DocumentsStep) Violations {
	var out Violations
	seen := make(map[string]bool, len(d.AttachmentIDs))
	for i, id := range d.AttachmentIDs {
		key := strings.ToLower(id)
		if seen[key] {
			out = append(out, Violation{
				Path:    []string{"attachmentIds", strconv.Itoa(i)},
				Message: "Document is listed more than once",
				Rule:    "unique",
			})
		}
		seen[key] = true
	}
	return out
}

func quotationRules(q *models.Quotation) Violations {
	issue, err1 := ParseDate(q.IssueDate)
	validity, err2 := ParseDate(q.ValidityDate)
	if err1 != nil || err2 != nil {
		return nil
	}
	var out Violations
	if !validity.After(issue) {
		out = append(out, Violation{
			Path:    []string{"validityDate"},
			Message: "Validity date must be after the issue date",
			Rule:    "date_order",
		})
	}
	return out
}

func (v *Validator) expenseRules(e *models.ExpenseCreate) Violations {
	d, err := ParseDate(e.ExpenseDate)
	if err != nil {
		return nil
	}
	if d.After(v.today()) {
		return Violations{{
			Path:    []string{"expenseDate"},
			Message: "Expense date cannot be in the future",
			Rule:    "not_future",
		}}
	}
	return nil
}

func pdcBulkRules(b *models.PDCBulkCreate) Violations {
	var out Violations
	seen := make(map[string]int, len(b.Cheques))
	for i, c := range b.Cheques {
		key := strings.ToLower(strings.TrimSpace(c.ChequeNumber))
		if key == "" {
			continue
		}
		if first, ok := seen[key]; ok {
			out = append(out, Violation{
				Path:    []string{"cheques", strconv.Itoa(i), "chequeNumber"},
				Message: fmt.Sprintf("Cheque number %s is already used by cheque %d", c.ChequeNumber, first+1),
				Rule:    "unique",
			})
			continue
		}
		seen[key] = i
	}
	return out
}

func withdrawalRules(w *models.PDCWithdrawal) Violations {
	var out Violations
	if w.PaymentMethod == "BANK_TRANSFER" && strings.TrimSpace(w.TransactionDetails) == "" {
		out = append(out, Violation{
			Path:    []string{"transactionDetails"},
			Message: "Transaction details are required for bank transfers",
			Rule:    "required_if",
		})
	}
	if w.PaymentMethod == "NEW_CHEQUE" && strings.TrimSpace(w.NewChequeNumber) == "" {
		out = append(out, Violation{
			Path:    []string{"newChequeNumber"},
			Message: "New cheque number is required when replacing with a new cheque",
			Rule:    "required_if",
		})
	}
	return out
}

func pdcStatusRules(s *models.PDCStatusUpdate) Violations {
	if s.Status == models.PDCBounced && strings.TrimSpace(s.BounceReason) == "" {
		return Violations{{
			Path:    []string{"bounceReason"},
			Message: "Bounce reason is required when a cheque bounces",
			Rule:    "required_if",
		}}
	}
	return nil
}

func documentUploadRules(d *models.DocumentUpload) Violations {
	var out Violations
	if d.EntityType != models.EntityGeneral && strings.TrimSpace(d.EntityID) == "" {
		out = append(out, Violation{
			Path:    []string{"entityId"},
			Message: "Entity ID is required unless the entity type is GENERAL",
			Rule:    "required_unless",
		})
	}
	out = append(out, CheckFile(d.FileName, d.ContentType, d.Size)...)
	return out
}
