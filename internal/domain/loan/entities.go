package loan

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusFunded    Status = "funded"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusDefaulted Status = "defaulted"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

type Purpose string

const (
	PurposeMedical   Purpose = "medical"
	PurposeEducation Purpose = "education"
	PurposeBusiness  Purpose = "business"
	PurposeHousing   Purpose = "housing"
	PurposePersonal  Purpose = "personal"
	PurposeEmergency Purpose = "emergency"
	PurposeOther     Purpose = "other"
)

type PaymentFrequency string

const (
	FrequencyMonthly    PaymentFrequency = "monthly"
	FrequencyQuarterly  PaymentFrequency = "quarterly"
	FrequencyBiannually PaymentFrequency = "biannually"
	FrequencyAnnually   PaymentFrequency = "annually"
	FrequencyBullet     PaymentFrequency = "bullet"
)

type PaymentMethod string

const (
	MethodUPI          PaymentMethod = "upi"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCash         PaymentMethod = "cash"
	MethodOther        PaymentMethod = "other"
)

type InstallmentStatus string

const (
	InstallmentUpcoming InstallmentStatus = "upcoming"
	InstallmentDue      InstallmentStatus = "due"
	InstallmentPaid     InstallmentStatus = "paid"
	InstallmentOverdue  InstallmentStatus = "overdue"
	InstallmentMissed   InstallmentStatus = "missed"
)

const PaymentCompleted = "completed"

// Term limits and thresholds.
var (
	MinAmount       = decimal.NewFromInt(1000)
	MaxInterestRate = decimal.NewFromInt(30)
)

const (
	MinTermMonths        = 1
	MaxTermMonths        = 60
	MinPurposeDetailsLen = 10
	DefaultAfterDaysLate = 30
	moneyPlaces          = 2
	monthsPerYear        = 12
	percent              = 100
)

type Installment struct {
	Number    int               `json:"number"`
	DueDate   time.Time         `json:"due_date"`
	Amount    decimal.Decimal   `json:"amount"`
	Principal decimal.Decimal   `json:"principal"`
	Interest  decimal.Decimal   `json:"interest"`
	Status    InstallmentStatus `json:"status"`
}

type Payment struct {
	PaymentID     string          `json:"payment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	Method        PaymentMethod   `json:"method"`
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
}

// Loan is owned by the lifecycle engine. Borrower, lender and community are
// referenced by id only.
type Loan struct {
	ID          uint64 `gorm:"primaryKey;column:id" json:"-"`
	LoanID      string `gorm:"size:32;uniqueIndex:ux_loans_loan_id" json:"loan_id"`
	BorrowerID  string `gorm:"size:32;index:idx_loans_borrower" json:"borrower_id"`
	CommunityID string `gorm:"size:32;index:idx_loans_community" json:"community_id"`
	LenderID    string `gorm:"size:32;index:idx_loans_lender" json:"lender_id,omitempty"`

	Amount           decimal.Decimal  `gorm:"type:decimal(18,2)" json:"amount"`
	InterestRate     decimal.Decimal  `gorm:"type:decimal(6,2)" json:"interest_rate"`
	Term             int              `json:"term"`
	Purpose          Purpose          `gorm:"size:16" json:"purpose"`
	PurposeDetails   string           `gorm:"type:text" json:"purpose_details"`
	PaymentFrequency PaymentFrequency `gorm:"size:16" json:"payment_frequency"`

	Status        Status     `gorm:"size:16;index" json:"status"`
	DateRequested time.Time  `json:"date_requested"`
	DateApproved  *time.Time `json:"date_approved,omitempty"`
	DateFunded    *time.Time `json:"date_funded,omitempty"`
	DateStarted   *time.Time `json:"date_started,omitempty"`
	DateCompleted *time.Time `json:"date_completed,omitempty"`
	ApprovedBy    string     `gorm:"size:32" json:"approved_by,omitempty"`

	PaymentSchedule     []Installment   `gorm:"serializer:json;type:text" json:"payment_schedule"`
	Payments            []Payment       `gorm:"serializer:json;type:text" json:"payments"`
	TotalAmountDue      decimal.Decimal `gorm:"type:decimal(30,10)" json:"total_amount_due"`
	TotalAmountPaid     decimal.Decimal `gorm:"type:decimal(18,2)" json:"total_amount_paid"`
	PrincipalAmountPaid decimal.Decimal `gorm:"type:decimal(18,2)" json:"principal_amount_paid"`
	InterestAmountPaid  decimal.Decimal `gorm:"type:decimal(18,2)" json:"interest_amount_paid"`
	DaysLate            int             `json:"days_late"`

	Version   uint64    `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Loan) TableName() string { return "loans" }

// Terms are the borrower-chosen conditions of a loan. They can change only while
// the loan is pending.
type Terms struct {
	Amount           decimal.Decimal
	InterestRate     decimal.Decimal
	Term             int
	Purpose          Purpose
	PurposeDetails   string
	PaymentFrequency PaymentFrequency
}

func (t Terms) Validate() error {
	switch {
	case !isMoney(t.Amount):
		return NewValidation("invalid_amount", "amount must have at most %d decimal places", moneyPlaces)
	case t.Amount.LessThan(MinAmount):
		return NewValidation("invalid_amount", "amount must be at least %s", MinAmount)
	case t.InterestRate.IsNegative() || t.InterestRate.GreaterThan(MaxInterestRate):
		return NewValidation("invalid_interest_rate", "interest rate must be between 0 and %s", MaxInterestRate)
	case !isMoney(t.InterestRate):
		return NewValidation("invalid_interest_rate", "interest rate must have at most %d decimal places", moneyPlaces)
	case t.Term < MinTermMonths || t.Term > MaxTermMonths:
		return NewValidation("invalid_term", "term must be between %d and %d months", MinTermMonths, MaxTermMonths)
	case !validPurpose(t.Purpose):
		return NewValidation("invalid_purpose", "unknown purpose %q", t.Purpose)
	case len(strings.TrimSpace(t.PurposeDetails)) < MinPurposeDetailsLen:
		return NewValidation("invalid_purpose_details", "purpose details must be at least %d characters", MinPurposeDetailsLen)
	case t.PaymentFrequency != "" && !validFrequency(t.PaymentFrequency):
		return NewValidation("invalid_payment_frequency", "unknown payment frequency %q", t.PaymentFrequency)
	}
	return nil
}

func (t Terms) withDefaults() Terms {
	if t.PaymentFrequency == "" {
		t.PaymentFrequency = FrequencyMonthly
	}
	t.PurposeDetails = strings.TrimSpace(t.PurposeDetails)
	return t
}

func (l *Loan) Terms() Terms {
	return Terms{
		Amount:           l.Amount,
		InterestRate:     l.InterestRate,
		Term:             l.Term,
		Purpose:          l.Purpose,
		PurposeDetails:   l.PurposeDetails,
		PaymentFrequency: l.PaymentFrequency,
	}
}

// MonthlyRate is interestRate/100/12.
func (l *Loan) MonthlyRate() decimal.Decimal { return monthlyRate(l.InterestRate) }

// ScheduleTotalDue is the payoff amount from the amortization schedule
// (compounded monthly over the whole term). Zero until the loan is funded.
func (l *Loan) ScheduleTotalDue() decimal.Decimal { return l.TotalAmountDue }

// CompletionThreshold is the simple-interest payoff amount used to close a loan
// on payment: amount + amount*interestRate/100. It does not reconcile with
// ScheduleTotalDue; both are kept under their own names.
func (l *Loan) CompletionThreshold() decimal.Decimal {
	return l.Amount.Add(l.Amount.Mul(l.InterestRate).Div(decimal.NewFromInt(percent)))
}

// RemainingBalance is ScheduleTotalDue minus everything paid so far.
func (l *Loan) RemainingBalance() decimal.Decimal {
	return l.TotalAmountDue.Sub(l.TotalAmountPaid)
}

func (l *Loan) OutstandingPrincipal() decimal.Decimal {
	return l.Amount.Sub(l.PrincipalAmountPaid)
}

// IsInDefault reports whether the lateness counter maintained by the external
// scheduler has crossed the default threshold.
func (l *Loan) IsInDefault() bool { return l.DaysLate > DefaultAfterDaysLate }

func (l *Loan) IsTerminal() bool {
	switch l.Status {
	case StatusRejected, StatusCancelled, StatusCompleted, StatusDefaulted:
		return true
	}
	return false
}

// IsParticipant reports whether userID is the borrower or the lender.
func (l *Loan) IsParticipant(userID string) bool {
	return userID != "" && (l.BorrowerID == userID || l.LenderID == userID)
}

func monthlyRate(annualPct decimal.Decimal) decimal.Decimal {
	return annualPct.Div(decimal.NewFromInt(percent * monthsPerYear))
}

func isMoney(d decimal.Decimal) bool { return d.Equal(d.Round(moneyPlaces)) }

func validPurpose(p Purpose) bool {
	switch p {
	case PurposeMedical, PurposeEducation, PurposeBusiness, PurposeHousing,
		PurposePersonal, PurposeEmergency, PurposeOther:
		return true
	}
	return false
}

func validFrequency(f PaymentFrequency) bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyBiannually, FrequencyAnnually, FrequencyBullet:
		return true
	}
	return false
}

func validMethod(m PaymentMethod) bool {
	switch m {
	case MethodUPI, MethodBankTransfer, MethodCash, MethodOther:
		return true
	}
	return false
}
