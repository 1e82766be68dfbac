package uow

import (
	"context"

	"peerlend/internal/domain/loan"
	"peerlend/internal/domain/transition"
)

type Repos struct {
	Loans       loan.Repository
	Transitions transition.Repository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// lock the loan row first, then pass it in; returning an error rolls back
	WithinLoanTx(ctx context.Context, loanID string, fn func(r Repos, l *loan.Loan) error) error
}
