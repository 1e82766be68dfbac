package mysql

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "peerlend/internal/domain/loan"
	"peerlend/pkg/id"

	"github.com/shopspring/decimal"
)

const community = "cccccccccccccccccccccccccccccccc"

func TestCreateAndGetByLoanID(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	loanID := id.NewID32()   // 32-char
	borrower := id.NewID32() // 32-char

	l := makeLoan(t, loanID, borrower, community, time.Now().UTC())
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if l.ID == 0 {
		t.Fatalf("Create did not set auto-increment ID")
	}

	got, err := repo.GetByLoanID(ctx, loanID)
	if err != nil {
		t.Fatalf("GetByLoanID: %v", err)
	}
	if got.LoanID != loanID || got.BorrowerID != borrower || got.Status != domain.StatusPending {
		t.Errorf("unexpected loan: %+v", got)
	}
	if !got.Amount.Equal(decimal.NewFromInt(12000)) || got.Term != 12 {
		t.Errorf("terms not preserved: amount=%s term=%d", got.Amount, got.Term)
	}
	if got.PaymentSchedule == nil || len(got.PaymentSchedule) != 0 {
		t.Errorf("empty schedule should round-trip as empty, got %v", got.PaymentSchedule)
	}
}

func TestSave_PersistsScheduleAndPayments(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	l := makeLoan(t, id.NewID32(), "borrower", community, now)
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := l.Approve("moderator", now); err != nil {
		t.Fatal(err)
	}
	if err := l.Fund("lender", now); err != nil {
		t.Fatal(err)
	}
	if _, err := l.ApplyPayment(domain.PaymentInput{Amount: decimal.RequireFromString("1066.19")}, "pay-1", now); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, l); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if l.Version != 1 {
		t.Fatalf("version not bumped: %d", l.Version)
	}

	got, err := repo.GetByLoanID(ctx, l.LoanID)
	if err != nil {
		t.Fatalf("GetByLoanID: %v", err)
	}
	if got.Status != domain.StatusActive || got.LenderID != "lender" || got.Version != 1 {
		t.Fatalf("status=%s lender=%s version=%d", got.Status, got.LenderID, got.Version)
	}
	if len(got.PaymentSchedule) != 12 || len(got.Payments) != 1 {
		t.Fatalf("schedule=%d payments=%d", len(got.PaymentSchedule), len(got.Payments))
	}
	if got.Payments[0].PaymentID != "pay-1" || got.Payments[0].Method != domain.MethodCash {
		t.Fatalf("payment not preserved: %+v", got.Payments[0])
	}
	if got.PrincipalAmountPaid.StringFixed(2) != "946.19" || got.InterestAmountPaid.StringFixed(2) != "120.00" {
		t.Fatalf("ledger not preserved: principal=%s interest=%s", got.PrincipalAmountPaid, got.InterestAmountPaid)
	}
	if got.TotalAmountDue.Sub(l.TotalAmountDue).Abs().GreaterThan(decimal.RequireFromString("0.000001")) {
		t.Fatalf("total due drifted: %s vs %s", got.TotalAmountDue, l.TotalAmountDue)
	}
	if got.DateFunded == nil || !got.DateFunded.Equal(now) {
		t.Fatalf("date funded: %v", got.DateFunded)
	}
}

func TestSave_StaleVersionConflicts(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	l := makeLoan(t, id.NewID32(), "borrower", community, time.Now().UTC())
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}
	stale, _ := repo.GetByLoanID(ctx, l.LoanID)
	fresh, _ := repo.GetByLoanID(ctx, l.LoanID)

	fresh.Status = domain.StatusApproved
	if err := repo.Save(ctx, fresh); err != nil {
		t.Fatalf("Save fresh: %v", err)
	}

	stale.Status = domain.StatusCancelled
	if err := repo.Save(ctx, stale); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if stale.Version != 0 {
		t.Fatalf("version must be restored after a conflict, got %d", stale.Version)
	}

	got, _ := repo.GetByLoanID(ctx, l.LoanID)
	if got.Status != domain.StatusApproved {
		t.Fatalf("stale write leaked: %s", got.Status)
	}
}

func TestGetByLoanID_NotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	_, err := repo.GetByLoanID(ctx, "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = repo.GetByLoanIDForUpdate(ctx, "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for update lookup, got %v", err)
	}
}

func TestListByCommunityAndParticipant(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	ids := []string{"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa2", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa3"}
	for i, loanID := range ids {
		if err := repo.Create(ctx, makeLoan(t, loanID, "b1", community, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}
	other := makeLoan(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb1", "b2", "dddddddddddddddddddddddddddddddd", base)
	other.LenderID = "b1"
	if err := repo.Create(ctx, other); err != nil {
		t.Fatal(err)
	}

	got, total, err := repo.ListByCommunity(ctx, community, domain.Page{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("ListByCommunity: %v", err)
	}
	if total != 3 || len(got) != 2 {
		t.Fatalf("total=%d len=%d", total, len(got))
	}
	if got[0].LoanID != ids[2] || got[1].LoanID != ids[1] {
		t.Fatalf("expected newest first, got %s, %s", got[0].LoanID, got[1].LoanID)
	}

	got, _, err = repo.ListByCommunity(ctx, community, domain.Page{Page: 2, Limit: 2})
	if err != nil || len(got) != 1 || got[0].LoanID != ids[0] {
		t.Fatalf("page 2: %v %v", got, err)
	}

	got, total, err = repo.ListByParticipant(ctx, "b1", domain.Page{})
	if err != nil {
		t.Fatalf("ListByParticipant: %v", err)
	}
	if total != 4 || len(got) != 4 {
		t.Fatalf("participant total=%d len=%d", total, len(got))
	}
}

func TestList_FiltersSearchesAndSorts(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()
	base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	small := makeLoan(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1", "b1", community, base)
	small.Amount = decimal.NewFromInt(500)
	discount := makeLoan(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa2", "b2", community, base.Add(time.Hour))
	discount.Amount = decimal.NewFromInt(2000)
	discount.PurposeDetails = "Stock bought at 100% markup"
	funded := makeLoan(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa3", "b2", community, base.Add(2*time.Hour))
	funded.Amount = decimal.NewFromInt(900)
	funded.Status = domain.StatusApproved
	funded.LenderID = "b1"
	for _, l := range []*domain.Loan{small, discount, funded} {
		if err := repo.Create(ctx, l); err != nil {
			t.Fatal(err)
		}
	}

	ids := func(ls []domain.Loan) []string {
		out := make([]string, len(ls))
		for i, l := range ls {
			out[i] = l.LoanID
		}
		return out
	}

	tests := []struct {
		name  string
		f     domain.Filter
		total int64
		want  []string
	}{
		{"default newest first", domain.Filter{}, 3, []string{funded.LoanID, discount.LoanID, small.LoanID}},
		{"amount ascending", domain.Filter{Sort: "amount"}, 3, []string{small.LoanID, funded.LoanID, discount.LoanID}},
		{"amount descending", domain.Filter{Sort: "-amount"}, 3, []string{discount.LoanID, funded.LoanID, small.LoanID}},
		{"status", domain.Filter{Statuses: []domain.Status{domain.StatusApproved}}, 1, []string{funded.LoanID}},
		{"participant as borrower or lender", domain.Filter{ParticipantID: "b1"}, 2, []string{funded.LoanID, small.LoanID}},
		{"search is case-insensitive", domain.Filter{Search: "STOCK"}, 1, []string{discount.LoanID}},
		{"search treats percent literally", domain.Filter{Search: "100%"}, 1, []string{discount.LoanID}},
		{"search wildcard does not match", domain.Filter{Search: "s_wing"}, 0, []string{}},
		{"search matches status", domain.Filter{Search: "approv"}, 1, []string{funded.LoanID}},
		{"participant and status", domain.Filter{ParticipantID: "b2", Statuses: []domain.Status{domain.StatusPending}}, 1, []string{discount.LoanID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := repo.List(ctx, tt.f, domain.Page{})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if total != tt.total {
				t.Errorf("total = %d, want %d", total, tt.total)
			}
			if g := ids(got); len(g) != len(tt.want) || (len(g) > 0 && strings.Join(g, ",") != strings.Join(tt.want, ",")) {
				t.Errorf("got %v, want %v", g, tt.want)
			}
		})
	}

	got, total, err := repo.List(ctx, domain.Filter{Sort: "amount"}, domain.Page{Page: 2, Limit: 2})
	if err != nil || total != 3 || len(got) != 1 || got[0].LoanID != discount.LoanID {
		t.Fatalf("page 2: total=%d got=%v err=%v", total, ids(got), err)
	}

	if _, _, err := repo.List(ctx, domain.Filter{Sort: "borrower_id"}, domain.Page{}); domain.ReasonOf(err) != "invalid_sort" {
		t.Fatalf("expected invalid_sort, got %v", err)
	}
}
