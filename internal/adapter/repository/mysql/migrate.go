package mysql

import (
	"peerlend/internal/domain/loan"
	"peerlend/internal/domain/membership"
	"peerlend/internal/domain/transition"

	"gorm.io/gorm"
)

// Models lists every table owned or read by the engine.
func Models() []any {
	return []any{&loan.Loan{}, &transition.Event{}, &membership.Member{}}
}

// AutoMigrate creates or updates the engine tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
