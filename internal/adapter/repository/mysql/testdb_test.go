package mysql

import (
	"testing"
	"time"

	domain "peerlend/internal/domain/loan"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB creates an in-memory sqlite DB with the engine schema. A single
// connection keeps every statement on the same in-memory database and makes
// transactions queue behind each other.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func makeLoan(t *testing.T, loanID, borrowerID, communityID string, requested time.Time) *domain.Loan {
	t.Helper()
	l, err := domain.NewLoan(loanID, borrowerID, communityID, domain.Terms{
		Amount:         decimal.NewFromInt(12000),
		InterestRate:   decimal.NewFromInt(12),
		Term:           12,
		Purpose:        domain.PurposeBusiness,
		PurposeDetails: "sewing machine for the shop",
	}, requested)
	if err != nil {
		t.Fatalf("NewLoan: %v", err)
	}
	return l
}
