package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

// schedulePlaces is the precision of stored schedule figures. Installment
// amount always equals principal + interest exactly.
const schedulePlaces = 10

// ratePlaces is the working precision of the monthly rate and (1+r)^n, well
// beyond schedulePlaces so M carries no visible error at low rates.
const ratePlaces = 32

// Schedule is the output of Amortize.
type Schedule struct {
	Installments   []Installment
	MonthlyPayment decimal.Decimal
	TotalAmountDue decimal.Decimal
}

// Amortize builds an equal-payment reducing-balance schedule of termMonths
// monthly installments, the first one due a month after now.
//
// M = P*r*(1+r)^n / ((1+r)^n - 1) with r = annualRatePct/100/12, and M = P/n
// when r is zero. The last installment takes the remaining balance as its
// principal so the principal parts sum to P exactly. The function is pure: same
// inputs and now give the same schedule.
func Amortize(principal, annualRatePct decimal.Decimal, termMonths int, now time.Time) (Schedule, error) {
	switch {
	case !principal.IsPositive():
		return Schedule{}, NewValidation("invalid_amount", "principal must be positive")
	case annualRatePct.IsNegative():
		return Schedule{}, NewValidation("invalid_interest_rate", "interest rate cannot be negative")
	case termMonths < 1:
		return Schedule{}, NewValidation("invalid_term", "term must be at least one month")
	}

	n := decimal.NewFromInt(int64(termMonths))
	r := annualRatePct.DivRound(decimal.NewFromInt(percent*monthsPerYear), ratePlaces)

	var payment decimal.Decimal
	if r.IsZero() {
		// rounded up so the closing installment never carries negative interest
		payment = principal.Div(n).RoundCeil(schedulePlaces)
	} else {
		growth := compound(decimal.NewFromInt(1).Add(r), termMonths)
		payment = principal.Mul(r).Mul(growth).DivRound(growth.Sub(decimal.NewFromInt(1)), schedulePlaces)
	}

	remaining := principal
	installments := make([]Installment, 0, termMonths)
	for i := 1; i <= termMonths; i++ {
		interest := remaining.Mul(r).Round(schedulePlaces)
		principalPart := payment.Sub(interest)
		if i == termMonths {
			principalPart = remaining
			interest = payment.Sub(remaining)
		}
		remaining = remaining.Sub(principalPart)

		installments = append(installments, Installment{
			Number:    i,
			DueDate:   now.AddDate(0, i, 0),
			Amount:    payment,
			Principal: principalPart,
			Interest:  interest,
			Status:    InstallmentUpcoming,
		})
	}

	return Schedule{
		Installments:   installments,
		MonthlyPayment: payment,
		TotalAmountDue: payment.Mul(n),
	}, nil
}

// compound returns base^n at ratePlaces precision.
func compound(base decimal.Decimal, n int) decimal.Decimal {
	out := decimal.NewFromInt(1)
	for i := 0; i < n; i++ {
		out = out.Mul(base).Round(ratePlaces)
	}
	return out
}
