// Package finance derives the money figures shown and submitted by the
// onboarding wizard and the finance forms. All functions are pure; values keep
// full float precision and are only rounded by FormatCurrency.
package finance

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"tenant-onboarding-service/internal/models"
)

// TotalMonthlyRent is base rent plus service charge
func TotalMonthlyRent(r models.RentBreakdown) float64 {
	return r.BaseRent + r.ServiceCharge
}

// TotalFirstPayment is the monthly rent plus the one-off admin fee and deposit
func TotalFirstPayment(r models.RentBreakdown) float64 {
	return TotalMonthlyRent(r) + r.AdminFee + r.SecurityDeposit
}

// TotalFirstPaymentWithParking adds the monthly parking total to the first payment
func TotalFirstPaymentWithParking(r models.RentBreakdown, p *models.ParkingAllocation) float64 {
	return TotalFirstPayment(r) + ParkingTotal(p)
}

// ParkingTotal sums the fees of the selected spots. Allocations without a spot
// list fall back to spot count times the per-spot fee.
func ParkingTotal(p *models.ParkingAllocation) float64 {
	if p == nil {
		return 0
	}
	if len(p.SelectedSpots) > 0 {
		var total float64
		for _, s := range p.SelectedSpots {
			total += s.MonthlyFee
		}
		return total
	}
	return float64(p.ParkingSpots) * p.ParkingFeePerSpot
}

// UniformParking expresses count x fee as a spot allocation so quotations
// share the same parking model as the wizard.
func UniformParking(count int, fee float64) *models.ParkingAllocation {
	return &models.ParkingAllocation{ParkingSpots: count, ParkingFeePerSpot: fee}
}

// QuotationMonthlyRent is base rent plus service charges of a quotation
func QuotationMonthlyRent(q models.Quotation) float64 {
	return q.BaseRent + q.ServiceCharges
}

// QuotationFirstPayment is rent, parking, deposit and admin fee of a quotation
func QuotationFirstPayment(q models.Quotation) float64 {
	return QuotationMonthlyRent(q) + ParkingTotal(UniformParking(q.ParkingSpots, q.ParkingFee)) +
		q.SecurityDeposit + q.AdminFee
}

// SummarizeQuotation attaches the derived totals
func SummarizeQuotation(q models.Quotation) models.QuotationSummary {
	return models.QuotationSummary{
		Quotation:         q,
		TotalMonthlyRent:  QuotationMonthlyRent(q),
		TotalParkingFee:   ParkingTotal(UniformParking(q.ParkingSpots, q.ParkingFee)),
		TotalFirstPayment: QuotationFirstPayment(q),
	}
}

// PDCBatchTotal sums every cheque of a bulk submission
func PDCBatchTotal(cheques []models.PDCCheque) float64 {
	var total float64
	for _, c := range cheques {
		total += c.Amount
	}
	return total
}

// SummarizePDCBatch counts and totals a batch
func SummarizePDCBatch(cheques []models.PDCCheque) models.PDCBatchSummary {
	return models.PDCBatchSummary{ChequeCount: len(cheques), TotalAmount: PDCBatchTotal(cheques)}
}

// Breakdown derives all figures of a wizard session. Missing steps count as zero.
func Breakdown(r *models.RentBreakdown, p *models.ParkingAllocation) models.Breakdown {
	var rent models.RentBreakdown
	if r != nil {
		rent = *r
	}
	return models.Breakdown{
		TotalMonthlyRent:  TotalMonthlyRent(rent),
		TotalParkingFee:   ParkingTotal(p),
		TotalFirstPayment: TotalFirstPaymentWithParking(rent, p),
	}
}

// FormatCurrency renders an amount with two decimals and thousands separators,
// e.g. "AED 12,100.00".
func FormatCurrency(currency string, amount float64) string {
	neg := amount < 0
	s := strconv.FormatFloat(math.Abs(amount), 'f', 2, 64)
	intPart, frac := s[:len(s)-3], s[len(s)-2:]

	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	sign := ""
	if neg {
		sign = "-"
	}
	if currency == "" {
		return fmt.Sprintf("%s%s.%s", sign, b.String(), frac)
	}
	return fmt.Sprintf("%s %s%s.%s", currency, sign, b.String(), frac)
}
