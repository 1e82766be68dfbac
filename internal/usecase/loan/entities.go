package loan

import (
	"time"

	domain "peerlend/internal/domain/loan"
	"peerlend/internal/domain/transition"

	"github.com/shopspring/decimal"
)

// Defaults applied when a create request omits rate or term.
var DefaultInterestRate = decimal.NewFromInt(10)

const DefaultTerm = 12

type CreateLoanInput struct {
	CommunityID      string
	Amount           decimal.Decimal
	InterestRate     *decimal.Decimal
	Term             *int
	Purpose          string
	PurposeDetails   string
	PaymentFrequency string
}

func (in CreateLoanInput) terms() domain.Terms {
	t := domain.Terms{
		Amount:           in.Amount,
		InterestRate:     DefaultInterestRate,
		Term:             DefaultTerm,
		Purpose:          domain.Purpose(in.Purpose),
		PurposeDetails:   in.PurposeDetails,
		PaymentFrequency: domain.PaymentFrequency(in.PaymentFrequency),
	}
	if in.InterestRate != nil {
		t.InterestRate = *in.InterestRate
	}
	if in.Term != nil {
		t.Term = *in.Term
	}
	return t
}

// UpdateLoanInput carries partial term changes; nil fields keep their value.
type UpdateLoanInput struct {
	Amount           *decimal.Decimal
	InterestRate     *decimal.Decimal
	Term             *int
	Purpose          *string
	PurposeDetails   *string
	PaymentFrequency *string
}

func (in UpdateLoanInput) apply(t domain.Terms) domain.Terms {
	if in.Amount != nil {
		t.Amount = *in.Amount
	}
	if in.InterestRate != nil {
		t.InterestRate = *in.InterestRate
	}
	if in.Term != nil {
		t.Term = *in.Term
	}
	if in.Purpose != nil {
		t.Purpose = domain.Purpose(*in.Purpose)
	}
	if in.PurposeDetails != nil {
		t.PurposeDetails = *in.PurposeDetails
	}
	if in.PaymentFrequency != nil {
		t.PaymentFrequency = domain.PaymentFrequency(*in.PaymentFrequency)
	}
	return t
}

type RecordPaymentInput struct {
	Amount        decimal.Decimal
	PaymentMethod string
	TransactionID string
}

type LoanDTO struct {
	LoanID           string     `json:"loan_id"`
	BorrowerID       string     `json:"borrower_id"`
	CommunityID      string     `json:"community_id"`
	LenderID         string     `json:"lender_id,omitempty"`
	Amount           string     `json:"amount"`
	InterestRate     string     `json:"interest_rate"`
	Term             int        `json:"term"`
	Purpose          string     `json:"purpose"`
	PurposeDetails   string     `json:"purpose_details"`
	PaymentFrequency string     `json:"payment_frequency"`
	Status           string     `json:"status"`
	DateRequested    time.Time  `json:"date_requested"`
	DateApproved     *time.Time `json:"date_approved,omitempty"`
	DateFunded       *time.Time `json:"date_funded,omitempty"`
	DateStarted      *time.Time `json:"date_started,omitempty"`
	DateCompleted    *time.Time `json:"date_completed,omitempty"`
	ApprovedBy       string     `json:"approved_by,omitempty"`

	PaymentSchedule     []domain.Installment `json:"payment_schedule"`
	Payments            []domain.Payment     `json:"payments"`
	TotalAmountDue      string               `json:"total_amount_due"`
	TotalAmountPaid     string               `json:"total_amount_paid"`
	PrincipalAmountPaid string               `json:"principal_amount_paid"`
	InterestAmountPaid  string               `json:"interest_amount_paid"`
	DaysLate            int                  `json:"days_late"`

	// Both payoff figures are exposed; they are computed differently.
	ScheduleTotalDue    string `json:"schedule_total_due"`
	CompletionThreshold string `json:"completion_threshold"`
	RemainingBalance    string `json:"remaining_balance"`
	InDefault           bool   `json:"in_default"`
	Version             uint64 `json:"version"`
}

type PaymentResultDTO struct {
	Loan        *LoanDTO `json:"loan"`
	PaymentID   string   `json:"payment_id"`
	InterestDue string   `json:"interest_due"`
	Interest    string   `json:"interest"`
	Principal   string   `json:"principal"`
	Completed   bool     `json:"completed"`
}

type LoanListDTO struct {
	Loans []*LoanDTO `json:"loans"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}

type TransitionDTO struct {
	EventID    string    `json:"event_id"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ActorID    string    `json:"actor_id"`
	Amount     string    `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// money renders ledger values with two decimals.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

func toDTO(l *domain.Loan) *LoanDTO {
	return &LoanDTO{
		LoanID:              l.LoanID,
		BorrowerID:          l.BorrowerID,
		CommunityID:         l.CommunityID,
		LenderID:            l.LenderID,
		Amount:              money(l.Amount),
		InterestRate:        l.InterestRate.String(),
		Term:                l.Term,
		Purpose:             string(l.Purpose),
		PurposeDetails:      l.PurposeDetails,
		PaymentFrequency:    string(l.PaymentFrequency),
		Status:              string(l.Status),
		DateRequested:       l.DateRequested,
		DateApproved:        l.DateApproved,
		DateFunded:          l.DateFunded,
		DateStarted:         l.DateStarted,
		DateCompleted:       l.DateCompleted,
		ApprovedBy:          l.ApprovedBy,
		PaymentSchedule:     l.PaymentSchedule,
		Payments:            l.Payments,
		TotalAmountDue:      money(l.TotalAmountDue),
		TotalAmountPaid:     money(l.TotalAmountPaid),
		PrincipalAmountPaid: money(l.PrincipalAmountPaid),
		InterestAmountPaid:  money(l.InterestAmountPaid),
		DaysLate:            l.DaysLate,
		ScheduleTotalDue:    money(l.ScheduleTotalDue()),
		CompletionThreshold: money(l.CompletionThreshold()),
		RemainingBalance:    money(l.RemainingBalance()),
		InDefault:           l.IsInDefault(),
		Version:             l.Version,
	}
}

func toTransitionDTO(e transition.Event) TransitionDTO {
	dto := TransitionDTO{
		EventID:    e.EventID,
		Action:     e.Action,
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		ActorID:    e.ActorID,
		OccurredAt: e.OccurredAt,
	}
	if !e.Amount.IsZero() {
		dto.Amount = money(e.Amount)
	}
	return dto
}
