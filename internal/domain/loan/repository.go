package loan

import "context"

// Page selects a window of a listing. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Normalize clamps a page request to sane bounds.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// Repository persists loans. Implementations return ErrNotFound for unknown ids
// and ErrVersionConflict when Save loses a compare-and-set on Version.
type Repository interface {
	Create(ctx context.Context, l *Loan) error
	GetByLoanID(ctx context.Context, loanID string) (*Loan, error)
	// GetByLoanIDForUpdate locks the row for the rest of the enclosing transaction.
	GetByLoanIDForUpdate(ctx context.Context, loanID string) (*Loan, error)
	Save(ctx context.Context, l *Loan) error
	ListByCommunity(ctx context.Context, communityID string, p Page) ([]Loan, int64, error)
	// ListByParticipant returns loans where userID is the borrower or the lender.
	ListByParticipant(ctx context.Context, userID string, p Page) ([]Loan, int64, error)
	// List returns the loans matching f, ordered by f.Sort. f must be valid.
	List(ctx context.Context, f Filter, p Page) ([]Loan, int64, error)
}
