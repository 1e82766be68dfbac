package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentInput struct {
	Amount        decimal.Decimal
	Method        PaymentMethod
	TransactionID string
}

// Allocation is how one payment was split.
type Allocation struct {
	InterestDue decimal.Decimal
	Interest    decimal.Decimal
	Principal   decimal.Decimal
	Completed   bool
}

// InterestDue is one month of simple interest on the outstanding principal,
// rounded to cents. It is recomputed on every payment and never read from the
// stored schedule. Overpaid principal yields zero, not a negative amount.
func (l *Loan) InterestDue() decimal.Decimal {
	outstanding := l.OutstandingPrincipal()
	if !outstanding.IsPositive() {
		return decimal.Zero
	}
	return outstanding.Mul(l.InterestRate).DivRound(decimal.NewFromInt(percent*monthsPerYear), moneyPlaces)
}

// ApplyPayment records a repayment on a funded or active loan. Interest due is
// paid first, the rest reduces principal. The first payment activates a funded
// loan; reaching CompletionThreshold completes it.
func (l *Loan) ApplyPayment(in PaymentInput, paymentID string, now time.Time) (Allocation, error) {
	if err := l.CheckPrecondition(ActionRecordPayment); err != nil {
		return Allocation{}, err
	}
	if !in.Amount.IsPositive() || !isMoney(in.Amount) {
		return Allocation{}, NewValidation("invalid_payment_amount", "please provide a valid payment amount")
	}
	method := in.Method
	if method == "" {
		method = MethodCash
	}
	if !validMethod(method) {
		return Allocation{}, NewValidation("invalid_payment_method", "unknown payment method %q", in.Method)
	}

	alloc := Allocation{InterestDue: l.InterestDue()}
	if in.Amount.LessThanOrEqual(alloc.InterestDue) {
		alloc.Interest = in.Amount
		alloc.Principal = decimal.Zero
	} else {
		alloc.Interest = alloc.InterestDue
		alloc.Principal = in.Amount.Sub(alloc.InterestDue)
	}

	l.InterestAmountPaid = l.InterestAmountPaid.Add(alloc.Interest)
	l.PrincipalAmountPaid = l.PrincipalAmountPaid.Add(alloc.Principal)
	l.TotalAmountPaid = l.TotalAmountPaid.Add(in.Amount)
	l.Payments = append(l.Payments, Payment{
		PaymentID:     paymentID,
		Amount:        in.Amount,
		Date:          now,
		Method:        method,
		TransactionID: in.TransactionID,
		Status:        PaymentCompleted,
	})

	if l.Status == StatusFunded {
		l.moveTo(StatusActive)
	}
	if l.TotalAmountPaid.GreaterThanOrEqual(l.CompletionThreshold()) {
		l.moveTo(StatusCompleted)
		l.DateCompleted = timePtr(now)
		alloc.Completed = true
	}
	return alloc, nil
}
