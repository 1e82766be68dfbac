package transition

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is one applied loan transition. Rows are append-only and survive the
// loan reaching a terminal status.
type Event struct {
	// Internal numeric PK
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	// Public identifier (uuid)
	EventID string `gorm:"column:event_id;size:36;not null;uniqueIndex:ux_loan_transitions_event_id" json:"event_id"`
	// FK to loans.id (numeric)
	LoanID     uint64          `gorm:"column:loan_id;not null;index" json:"-"`
	Action     string          `gorm:"column:action;size:32;not null" json:"action"`
	FromStatus string          `gorm:"column:from_status;size:16" json:"from_status"`
	ToStatus   string          `gorm:"column:to_status;size:16;not null" json:"to_status"`
	ActorID    string          `gorm:"column:actor_id;size:32;not null" json:"actor_id"`
	Amount     decimal.Decimal `gorm:"column:amount;type:decimal(18,2)" json:"amount"`
	OccurredAt time.Time       `gorm:"column:occurred_at;not null" json:"occurred_at"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"-"`
}

func (Event) TableName() string { return "loan_transitions" }
