package loan

import (
	"strings"
)

// DefaultSort lists the newest requests first.
const DefaultSort = "-date_requested"

// sortColumns are the fields a listing may be ordered by, keyed by their
// wire and column name.
var sortColumns = map[string]bool{
	"date_requested": true,
	"amount":         true,
	"interest_rate":  true,
	"term":           true,
	"status":         true,
}

// Filter narrows a loan listing. Zero values match everything.
type Filter struct {
	// ParticipantID keeps loans where the user is borrower or lender.
	ParticipantID string
	Statuses      []Status
	// Search is a case-insensitive substring of purpose, purpose details or status.
	Search string
	// Sort is a column name, prefixed with "-" for descending order.
	Sort string
}

func (f Filter) Validate() error {
	for _, s := range f.Statuses {
		if !validStatus(s) {
			return NewValidation("invalid_status", "unknown loan status %q", s)
		}
	}
	if col, _ := f.SortField(); !sortColumns[col] {
		return NewValidation("invalid_sort", "cannot sort loans by %q", col)
	}
	return nil
}

// SortField splits Sort into its column and direction, applying DefaultSort.
func (f Filter) SortField() (col string, desc bool) {
	s := strings.TrimSpace(f.Sort)
	if s == "" {
		s = DefaultSort
	}
	if strings.HasPrefix(s, "-") {
		return s[1:], true
	}
	return strings.TrimPrefix(s, "+"), false
}

// Matches reports whether l passes every condition of f.
func (f Filter) Matches(l *Loan) bool {
	if f.ParticipantID != "" && !l.IsParticipant(f.ParticipantID) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if l.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q := strings.ToLower(f.Search); q != "" {
		return strings.Contains(strings.ToLower(string(l.Purpose)), q) ||
			strings.Contains(strings.ToLower(l.PurposeDetails), q) ||
			strings.Contains(string(l.Status), q)
	}
	return true
}

// Less orders a before b by the sort field of f, breaking ties newest id first.
func (f Filter) Less(a, b *Loan) bool {
	col, desc := f.SortField()
	c := compareBy(col, a, b)
	if c == 0 {
		return a.ID > b.ID
	}
	if desc {
		return c > 0
	}
	return c < 0
}

func compareBy(col string, a, b *Loan) int {
	switch col {
	case "amount":
		return a.Amount.Cmp(b.Amount)
	case "interest_rate":
		return a.InterestRate.Cmp(b.InterestRate)
	case "term":
		return a.Term - b.Term
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	default:
		return a.DateRequested.Compare(b.DateRequested)
	}
}

func validStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusFunded, StatusActive,
		StatusCompleted, StatusDefaulted, StatusCancelled, StatusRejected:
		return true
	}
	return false
}
