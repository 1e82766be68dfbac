package loan

import (
	"fmt"
	"strings"
	"time"
)

type Action string

const (
	ActionCreate        Action = "create"
	ActionUpdate        Action = "update"
	ActionApprove       Action = "approve"
	ActionReject        Action = "reject"
	ActionFund          Action = "fund"
	ActionCancel        Action = "cancel"
	ActionComplete      Action = "complete"
	ActionRecordPayment Action = "record_payment"
	ActionMarkDefault   Action = "mark_default"
)

// processActions are the actions accepted by the generic "process" entry point.
var processActions = map[Action]bool{
	ActionApprove:  true,
	ActionReject:   true,
	ActionFund:     true,
	ActionCancel:   true,
	ActionComplete: true,
}

// ParseProcessAction validates an action name coming from a caller.
func ParseProcessAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !processActions[a] {
		return "", NewValidation("invalid_action", "please provide a valid action (approve, reject, fund, cancel, complete)")
	}
	return a, nil
}

// graph holds every legal single-step status move. Terminal statuses have no entry.
var graph = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusFunded, StatusCancelled},
	StatusFunded:   {StatusActive, StatusDefaulted},
	StatusActive:   {StatusCompleted, StatusDefaulted},
}

// transitions is the single precondition table: the statuses each action may
// start from. Effects live in the methods below.
var transitions = map[Action][]Status{
	ActionUpdate:        {StatusPending},
	ActionApprove:       {StatusPending},
	ActionReject:        {StatusPending},
	ActionFund:          {StatusApproved},
	ActionCancel:        {StatusPending, StatusApproved},
	ActionComplete:      {StatusActive},
	ActionRecordPayment: {StatusFunded, StatusActive},
	ActionMarkDefault:   {StatusFunded, StatusActive},
}

// CanMove reports whether to is reachable from from in one step.
func CanMove(from, to Status) bool {
	for _, s := range graph[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from s in one step.
func NextStatuses(s Status) []Status {
	out := make([]Status, len(graph[s]))
	copy(out, graph[s])
	return out
}

// AllowedFrom lists the statuses action a may be applied from.
func AllowedFrom(a Action) []Status {
	out := make([]Status, len(transitions[a]))
	copy(out, transitions[a])
	return out
}

// CheckPrecondition returns a state conflict error when a cannot be applied to
// the loan in its current status.
func (l *Loan) CheckPrecondition(a Action) error {
	from, ok := transitions[a]
	if !ok {
		return NewValidation("invalid_action", "unknown action %q", a)
	}
	for _, s := range from {
		if l.Status == s {
			return nil
		}
	}
	return NewStateConflict("status_"+string(l.Status),
		"cannot %s a loan in %s status (allowed: %s)", humanAction(a), l.Status, joinStatuses(from))
}

// NewLoan creates a pending loan request.
func NewLoan(loanID, borrowerID, communityID string, t Terms, now time.Time) (*Loan, error) {
	if borrowerID == "" || communityID == "" {
		return nil, NewValidation("invalid_input", "borrower and community are required")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t = t.withDefaults()
	return &Loan{
		LoanID:           loanID,
		BorrowerID:       borrowerID,
		CommunityID:      communityID,
		Amount:           t.Amount,
		InterestRate:     t.InterestRate,
		Term:             t.Term,
		Purpose:          t.Purpose,
		PurposeDetails:   t.PurposeDetails,
		PaymentFrequency: t.PaymentFrequency,
		Status:           StatusPending,
		DateRequested:    now,
		PaymentSchedule:  []Installment{},
		Payments:         []Payment{},
	}, nil
}

// UpdateTerms replaces the terms of a pending loan.
func (l *Loan) UpdateTerms(t Terms) error {
	if err := l.CheckPrecondition(ActionUpdate); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	t = t.withDefaults()
	l.Amount = t.Amount
	l.InterestRate = t.InterestRate
	l.Term = t.Term
	l.Purpose = t.Purpose
	l.PurposeDetails = t.PurposeDetails
	l.PaymentFrequency = t.PaymentFrequency
	return nil
}

func (l *Loan) Approve(actorID string, now time.Time) error {
	if err := l.CheckPrecondition(ActionApprove); err != nil {
		return err
	}
	l.moveTo(StatusApproved)
	l.DateApproved = timePtr(now)
	l.ApprovedBy = actorID
	return nil
}

func (l *Loan) Reject() error {
	if err := l.CheckPrecondition(ActionReject); err != nil {
		return err
	}
	l.moveTo(StatusRejected)
	return nil
}

// Fund assigns the lender and generates the payment schedule. The schedule is
// produced exactly once because funding is only legal from approved.
func (l *Loan) Fund(lenderID string, now time.Time) error {
	if err := l.CheckPrecondition(ActionFund); err != nil {
		return err
	}
	if lenderID == "" {
		return NewValidation("invalid_input", "lender is required")
	}
	if lenderID == l.BorrowerID {
		return NewAuthorization("own_loan", "cannot fund your own loan")
	}
	schedule, err := Amortize(l.Amount, l.InterestRate, l.Term, now)
	if err != nil {
		return err
	}

	l.moveTo(StatusFunded)
	l.LenderID = lenderID
	l.DateFunded = timePtr(now)
	l.DateStarted = timePtr(now)
	l.PaymentSchedule = schedule.Installments
	l.TotalAmountDue = schedule.TotalAmountDue
	return nil
}

func (l *Loan) Cancel() error {
	if err := l.CheckPrecondition(ActionCancel); err != nil {
		return err
	}
	l.moveTo(StatusCancelled)
	return nil
}

// Complete closes an active loan manually.
func (l *Loan) Complete(now time.Time) error {
	if err := l.CheckPrecondition(ActionComplete); err != nil {
		return err
	}
	l.moveTo(StatusCompleted)
	l.DateCompleted = timePtr(now)
	return nil
}

// MarkDefaulted is the entry point for the lateness scheduler. It only succeeds
// once IsInDefault holds.
func (l *Loan) MarkDefaulted() error {
	if err := l.CheckPrecondition(ActionMarkDefault); err != nil {
		return err
	}
	if !l.IsInDefault() {
		return NewStateConflict("not_in_default", "loan is %d days late, default starts after %d", l.DaysLate, DefaultAfterDaysLate)
	}
	l.moveTo(StatusDefaulted)
	return nil
}

// moveTo applies a status change that the caller has already validated.
// Reaching it with an illegal move is a programming error.
func (l *Loan) moveTo(to Status) {
	if !CanMove(l.Status, to) {
		panic(fmt.Sprintf("loan: illegal move %s -> %s", l.Status, to))
	}
	l.Status = to
}

func humanAction(a Action) string { return strings.ReplaceAll(string(a), "_", " ") }

func joinStatuses(ss []Status) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

func timePtr(t time.Time) *time.Time { return &t }
