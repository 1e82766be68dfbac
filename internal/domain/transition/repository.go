package transition

import "context"

type Repository interface {
	// Append stores a new event. Events are never updated.
	Append(ctx context.Context, e *Event) error

	// ListByLoanID returns the events of a loan, oldest first.
	ListByLoanID(ctx context.Context, loanID uint64) ([]Event, error)
}
