// Package memstore is an in-memory loan store with real transaction
// semantics: transactions are serialized, run against a private copy and
// committed only when the body returns nil.
package memstore

import (
	"context"
	"sort"
	"sync"

	"peerlend/internal/domain/loan"
	"peerlend/internal/domain/transition"
	"peerlend/internal/domain/uow"
)

var (
	_ loan.Repository       = (*Store)(nil)
	_ transition.Repository = (*Store)(nil)
	_ uow.UnitOfWork        = (*Store)(nil)
)

type state struct {
	loans  map[string]*loan.Loan
	events []transition.Event
	nextID uint64
}

func (s *state) clone() *state {
	out := &state{loans: make(map[string]*loan.Loan, len(s.loans)), nextID: s.nextID}
	for k, l := range s.loans {
		out.loans[k] = cloneLoan(l)
	}
	out.events = append([]transition.Event(nil), s.events...)
	return out
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store { return &Store{st: &state{loans: map[string]*loan.Loan{}}} }

// Put seeds a loan directly, bypassing transactions.
func (s *Store) Put(l *loan.Loan) *loan.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = (&txRepo{st: s.st}).Create(context.Background(), l)
	return cloneLoan(l)
}

// Snapshot returns a copy of the committed loan.
func (s *Store) Snapshot(loanID string) (*loan.Loan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.st.loans[loanID]
	if !ok {
		return nil, false
	}
	return cloneLoan(l), true
}

func (s *Store) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged := s.st.clone()
	r := &txRepo{st: staged}
	if err := fn(uow.Repos{Loans: r, Transitions: r}); err != nil {
		return err
	}
	s.st = staged
	return nil
}

func (s *Store) WithinLoanTx(ctx context.Context, loanID string, fn func(r uow.Repos, l *loan.Loan) error) error {
	return s.WithinTx(ctx, func(r uow.Repos) error {
		l, err := r.Loans.GetByLoanIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		return fn(r, l)
	})
}

func (s *Store) Create(ctx context.Context, l *loan.Loan) error {
	return s.WithinTx(ctx, func(r uow.Repos) error { return r.Loans.Create(ctx, l) })
}

func (s *Store) GetByLoanID(ctx context.Context, loanID string) (*loan.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txRepo{st: s.st}).GetByLoanID(ctx, loanID)
}

func (s *Store) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*loan.Loan, error) {
	return s.GetByLoanID(ctx, loanID)
}

func (s *Store) Save(ctx context.Context, l *loan.Loan) error {
	return s.WithinTx(ctx, func(r uow.Repos) error { return r.Loans.Save(ctx, l) })
}

func (s *Store) ListByCommunity(ctx context.Context, communityID string, p loan.Page) ([]loan.Loan, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txRepo{st: s.st}).ListByCommunity(ctx, communityID, p)
}

func (s *Store) ListByParticipant(ctx context.Context, userID string, p loan.Page) ([]loan.Loan, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txRepo{st: s.st}).ListByParticipant(ctx, userID, p)
}

func (s *Store) List(ctx context.Context, f loan.Filter, p loan.Page) ([]loan.Loan, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txRepo{st: s.st}).List(ctx, f, p)
}

func (s *Store) Append(ctx context.Context, e *transition.Event) error {
	return s.WithinTx(ctx, func(r uow.Repos) error { return r.Transitions.Append(ctx, e) })
}

func (s *Store) ListByLoanID(ctx context.Context, loanID uint64) ([]transition.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txRepo{st: s.st}).ListByLoanID(ctx, loanID)
}

// txRepo works on a staged state; the enclosing Store holds the lock.
type txRepo struct{ st *state }

func (r *txRepo) Create(_ context.Context, l *loan.Loan) error {
	r.st.nextID++
	l.ID = r.st.nextID
	r.st.loans[l.LoanID] = cloneLoan(l)
	return nil
}

func (r *txRepo) GetByLoanID(_ context.Context, loanID string) (*loan.Loan, error) {
	l, ok := r.st.loans[loanID]
	if !ok {
		return nil, loan.ErrNotFound
	}
	return cloneLoan(l), nil
}

func (r *txRepo) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*loan.Loan, error) {
	return r.GetByLoanID(ctx, loanID)
}

func (r *txRepo) Save(_ context.Context, l *loan.Loan) error {
	cur, ok := r.st.loans[l.LoanID]
	if !ok {
		return loan.ErrNotFound
	}
	if cur.Version != l.Version {
		return loan.ErrVersionConflict
	}
	l.Version++
	r.st.loans[l.LoanID] = cloneLoan(l)
	return nil
}

func (r *txRepo) ListByCommunity(_ context.Context, communityID string, p loan.Page) ([]loan.Loan, int64, error) {
	return r.list(p, loan.Filter{}, func(l *loan.Loan) bool { return l.CommunityID == communityID })
}

func (r *txRepo) ListByParticipant(_ context.Context, userID string, p loan.Page) ([]loan.Loan, int64, error) {
	return r.list(p, loan.Filter{}, func(l *loan.Loan) bool { return l.IsParticipant(userID) })
}

func (r *txRepo) List(_ context.Context, f loan.Filter, p loan.Page) ([]loan.Loan, int64, error) {
	if err := f.Validate(); err != nil {
		return nil, 0, err
	}
	return r.list(p, f, f.Matches)
}

// list pages the loans kept by keep, ordered by the sort field of order.
func (r *txRepo) list(p loan.Page, order loan.Filter, keep func(*loan.Loan) bool) ([]loan.Loan, int64, error) {
	p = p.Normalize()
	var all []loan.Loan
	for _, l := range r.st.loans {
		if keep(l) {
			all = append(all, *cloneLoan(l))
		}
	}
	sort.Slice(all, func(i, j int) bool { return order.Less(&all[i], &all[j]) })
	total := int64(len(all))
	lo := p.Offset()
	if lo > len(all) {
		lo = len(all)
	}
	hi := lo + p.Limit
	if hi > len(all) {
		hi = len(all)
	}
	return all[lo:hi], total, nil
}

func (r *txRepo) Append(_ context.Context, e *transition.Event) error {
	e.ID = uint64(len(r.st.events) + 1)
	r.st.events = append(r.st.events, *e)
	return nil
}

func (r *txRepo) ListByLoanID(_ context.Context, loanID uint64) ([]transition.Event, error) {
	var out []transition.Event
	for _, e := range r.st.events {
		if e.LoanID == loanID {
			out = append(out, e)
		}
	}
	return out, nil
}

func cloneLoan(l *loan.Loan) *loan.Loan {
	c := *l
	c.PaymentSchedule = append([]loan.Installment(nil), l.PaymentSchedule...)
	c.Payments = append([]loan.Payment(nil), l.Payments...)
	return &c
}
