package loanmock

import (
	"context"

	domain "peerlend/internal/domain/loan"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset lookups return context.Canceled; unset writes are no-ops.
type Repo struct {
	CreateFn               func(ctx context.Context, l *domain.Loan) error
	GetByLoanIDFn          func(ctx context.Context, loanID string) (*domain.Loan, error)
	GetByLoanIDForUpdateFn func(ctx context.Context, loanID string) (*domain.Loan, error)
	SaveFn                 func(ctx context.Context, l *domain.Loan) error
	ListByCommunityFn      func(ctx context.Context, communityID string, p domain.Page) ([]domain.Loan, int64, error)
	ListByParticipantFn    func(ctx context.Context, userID string, p domain.Page) ([]domain.Loan, int64, error)
	ListFn                 func(ctx context.Context, f domain.Filter, p domain.Page) ([]domain.Loan, int64, error)
}

func (m *Repo) Create(ctx context.Context, l *domain.Loan) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}

func (m *Repo) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDFn != nil {
		return m.GetByLoanIDFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDForUpdateFn != nil {
		return m.GetByLoanIDForUpdateFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) Save(ctx context.Context, l *domain.Loan) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, l)
	}
	return nil
}

func (m *Repo) ListByCommunity(ctx context.Context, communityID string, p domain.Page) ([]domain.Loan, int64, error) {
	if m.ListByCommunityFn != nil {
		return m.ListByCommunityFn(ctx, communityID, p)
	}
	return nil, 0, context.Canceled
}

func (m *Repo) ListByParticipant(ctx context.Context, userID string, p domain.Page) ([]domain.Loan, int64, error) {
	if m.ListByParticipantFn != nil {
		return m.ListByParticipantFn(ctx, userID, p)
	}
	return nil, 0, context.Canceled
}

func (m *Repo) List(ctx context.Context, f domain.Filter, p domain.Page) ([]domain.Loan, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, f, p)
	}
	return nil, 0, context.Canceled
}
