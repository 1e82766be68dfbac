package mysql

import (
	"context"
	"errors"
	"strings"

	loanDomain "peerlend/internal/domain/loan"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ loanDomain.Repository = (*LoanRepository)(nil)

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

func (r *LoanRepository) Create(ctx context.Context, l *loanDomain.Loan) error {
	return r.db.WithContext(ctx).Create(l).Error
}

// Save writes every column of l if the stored version still equals l.Version,
// then bumps l.Version. A lost race returns ErrVersionConflict.
func (r *LoanRepository) Save(ctx context.Context, l *loanDomain.Loan) error {
	prev := l.Version
	l.Version = prev + 1
	res := r.db.WithContext(ctx).
		Model(l).
		Where("version = ?", prev).
		Select("*").
		Omit("id", "created_at").
		Updates(l)
	if res.Error != nil {
		l.Version = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		l.Version = prev
		return loanDomain.ErrVersionConflict
	}
	return nil
}

func (r *LoanRepository) GetByLoanID(ctx context.Context, loanID string) (*loanDomain.Loan, error) {
	return r.first(r.db.WithContext(ctx), loanID)
}

// GetByLoanIDForUpdate takes a row lock (SELECT ... FOR UPDATE). Only
// meaningful inside a transaction.
func (r *LoanRepository) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*loanDomain.Loan, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), loanID)
}

func (r *LoanRepository) first(db *gorm.DB, loanID string) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	if err := db.Where("loan_id = ?", loanID).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, loanDomain.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *LoanRepository) ListByCommunity(ctx context.Context, communityID string, p loanDomain.Page) ([]loanDomain.Loan, int64, error) {
	return r.list(ctx, p, newestFirst, func(db *gorm.DB) *gorm.DB {
		return db.Where("community_id = ?", communityID)
	})
}

func (r *LoanRepository) ListByParticipant(ctx context.Context, userID string, p loanDomain.Page) ([]loanDomain.Loan, int64, error) {
	return r.list(ctx, p, newestFirst, func(db *gorm.DB) *gorm.DB {
		return db.Where("borrower_id = ? OR lender_id = ?", userID, userID)
	})
}

// List rejects an invalid f, so the sort column always comes from the fixed
// allow-list in the domain package.
func (r *LoanRepository) List(ctx context.Context, f loanDomain.Filter, p loanDomain.Page) ([]loanDomain.Loan, int64, error) {
	if err := f.Validate(); err != nil {
		return nil, 0, err
	}
	col, desc := f.SortField()
	order := []clause.OrderByColumn{
		{Column: clause.Column{Name: col}, Desc: desc},
		{Column: clause.Column{Name: "id"}, Desc: true},
	}
	return r.list(ctx, p, order, filterScope(f))
}

var newestFirst = []clause.OrderByColumn{
	{Column: clause.Column{Name: "date_requested"}, Desc: true},
	{Column: clause.Column{Name: "id"}, Desc: true},
}

func filterScope(f loanDomain.Filter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.ParticipantID != "" {
			db = db.Where("(borrower_id = ? OR lender_id = ?)", f.ParticipantID, f.ParticipantID)
		}
		if len(f.Statuses) > 0 {
			statuses := make([]string, len(f.Statuses))
			for i, st := range f.Statuses {
				statuses[i] = string(st)
			}
			db = db.Where("status IN ?", statuses)
		}
		if f.Search != "" {
			like := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
			db = db.Where("(LOWER(purpose) LIKE ? ESCAPE '!' OR LOWER(purpose_details) LIKE ? ESCAPE '!' OR LOWER(status) LIKE ? ESCAPE '!')",
				like, like, like)
		}
		return db
	}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// list returns one page in the given order plus the total match count.
func (r *LoanRepository) list(ctx context.Context, p loanDomain.Page, order []clause.OrderByColumn, filter func(*gorm.DB) *gorm.DB) ([]loanDomain.Loan, int64, error) {
	p = p.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&loanDomain.Loan{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []loanDomain.Loan
	err := r.db.WithContext(ctx).
		Scopes(filter).
		Clauses(clause.OrderBy{Columns: order}).
		Limit(p.Limit).
		Offset(p.Offset()).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
