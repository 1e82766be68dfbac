package mysql

import (
	"context"

	transitionDomain "peerlend/internal/domain/transition"

	"gorm.io/gorm"
)

var _ transitionDomain.Repository = (*TransitionRepository)(nil)

type TransitionRepository struct{ db *gorm.DB }

func NewTransitionRepository(db *gorm.DB) *TransitionRepository {
	return &TransitionRepository{db: db}
}

func (r *TransitionRepository) Append(ctx context.Context, e *transitionDomain.Event) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// ListByLoanID returns the audit trail of one loan, oldest first.
func (r *TransitionRepository) ListByLoanID(ctx context.Context, loanNumericID uint64) ([]transitionDomain.Event, error) {
	var out []transitionDomain.Event
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanNumericID).
		Order("occurred_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
