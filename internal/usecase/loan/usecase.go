package loan

import (
	"context"
	"errors"
	"time"

	"peerlend/internal/domain/access"
	domain "peerlend/internal/domain/loan"
	"peerlend/internal/domain/membership"
	"peerlend/internal/domain/transition"
	"peerlend/internal/domain/uow"
	"peerlend/internal/metrics"
	"peerlend/pkg/clock"
	"peerlend/pkg/id"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Usecase is the loan lifecycle engine. Every mutating operation runs as one
// unit of work against a locked loan row: authorize, check the status
// precondition, apply, save, append the audit event. Any error rolls the whole
// unit back.
type Usecase struct {
	repo    domain.Repository
	uow     uow.UnitOfWork
	authz   membership.Authorizer
	clock   clock.Clock
	metrics *metrics.Metrics
	log     *zap.Logger
}

type Option func(*Usecase)

func WithClock(c clock.Clock) Option { return func(u *Usecase) { u.clock = c } }

func WithMetrics(m *metrics.Metrics) Option { return func(u *Usecase) { u.metrics = m } }

func WithLogger(l *zap.Logger) Option { return func(u *Usecase) { u.log = l } }

func NewUsecase(r domain.Repository, tx uow.UnitOfWork, authz membership.Authorizer, opts ...Option) *Usecase {
	u := &Usecase{repo: r, uow: tx, authz: authz, clock: clock.System{}, log: zap.NewNop()}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Create registers a pending loan request in a community the actor belongs to.
func (u *Usecase) Create(ctx context.Context, actor membership.Actor, in CreateLoanInput) (*LoanDTO, error) {
	start := time.Now()
	dto, err := u.create(ctx, actor, in)
	loanID := ""
	if dto != nil {
		loanID = dto.LoanID
	}
	u.observe(domain.ActionCreate, loanID, actor, "", string(domain.StatusPending), err, start)
	return dto, err
}

func (u *Usecase) create(ctx context.Context, actor membership.Actor, in CreateLoanInput) (*LoanDTO, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if in.CommunityID == "" {
		return nil, domain.NewValidation("invalid_input", "community is required")
	}
	if err := in.terms().Validate(); err != nil {
		return nil, err
	}
	role, err := u.roleOf(ctx, in.CommunityID, actor.ID)
	if err != nil {
		return nil, err
	}
	if err := access.Check(access.Request{Action: domain.ActionCreate, Actor: actor, CommunityRole: role}).Err(); err != nil {
		return nil, err
	}

	now := u.clock.Now()
	l, err := domain.NewLoan(id.NewID32(), actor.ID, in.CommunityID, in.terms(), now)
	if err != nil {
		return nil, err
	}

	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Loans.Create(ctx, l); err != nil {
			return err
		}
		return r.Transitions.Append(ctx, newEvent(l.ID, domain.ActionCreate, "", l.Status, actor.ID, decimal.Zero, now))
	})
	if err != nil {
		return nil, domain.Wrap(err, "create loan")
	}
	return toDTO(l), nil
}

// Get returns a loan to its borrower, lender, a global admin or a community moderator.
func (u *Usecase) Get(ctx context.Context, actor membership.Actor, loanID string) (*LoanDTO, error) {
	l, err := u.load(ctx, actor, loanID)
	if err != nil {
		return nil, err
	}
	return toDTO(l), nil
}

// Transitions returns the audit trail of a loan, oldest first.
func (u *Usecase) Transitions(ctx context.Context, actor membership.Actor, loanID string) ([]TransitionDTO, error) {
	l, err := u.load(ctx, actor, loanID)
	if err != nil {
		return nil, err
	}
	var events []transition.Event
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		events, err = r.Transitions.ListByLoanID(ctx, l.ID)
		return err
	})
	if err != nil {
		return nil, domain.Wrap(err, "list transitions")
	}
	out := make([]TransitionDTO, 0, len(events))
	for _, e := range events {
		out = append(out, toTransitionDTO(e))
	}
	return out, nil
}

// Update changes the terms of a pending loan.
func (u *Usecase) Update(ctx context.Context, actor membership.Actor, loanID string, in UpdateLoanInput) (*LoanDTO, error) {
	return u.transition(ctx, actor, loanID, domain.ActionUpdate, func(l *domain.Loan, _ time.Time) (decimal.Decimal, error) {
		return decimal.Zero, l.UpdateTerms(in.apply(l.Terms()))
	})
}

func (u *Usecase) Approve(ctx context.Context, actor membership.Actor, loanID string) (*LoanDTO, error) {
	return u.transition(ctx, actor, loanID, domain.ActionApprove, func(l *domain.Loan, now time.Time) (decimal.Decimal, error) {
		return decimal.Zero, l.Approve(actor.ID, now)
	})
}

func (u *Usecase) Reject(ctx context.Context, actor membership.Actor, loanID string) (*LoanDTO, error) {
	return u.transition(ctx, actor, loanID, domain.ActionReject, func(l *domain.Loan, _ time.Time) (decimal.Decimal, error) {
		return decimal.Zero, l.Reject()
	})
}

// Fund makes the actor the lender and generates the payment schedule.
func (u *Usecase) Fund(ctx context.Context, actor membership.Actor, loanID string) (*LoanDTO, error) {
	return u.transition(ctx, actor, loanID, domain.ActionFund, func(l *domain.Loan, now time.Time) (decimal.Decimal, error) {
		if err := l.Fund(actor.ID, now); err != nil {
			return decimal.Zero, err
		}
		return l.Amount, nil
	})
}

func (u *Usecase) Cancel(ctx context.Context, actor membership.Actor, loanID string) (*LoanDTO, error) {
	return u.transition(ctx, actor, loanID, domain.ActionCancel, func(l *domain.Loan, _ time.Time) (decimal.Decimal, error) {
		return decimal.Zero, l.Cancel()
	})
}

// Complete closes an active loan manually (global admin only).
func (u *Usecase) Complete(ctx context.Context, actor membership.Actor, loanID string) (*LoanDTO, error) {
	return u.transition(ctx, actor, loanID, domain.ActionComplete, func(l *domain.Loan, now time.Time) (decimal.Decimal, error) {
		return decimal.Zero, l.Complete(now)
	})
}

// MarkDefaulted is called by the lateness scheduler once a loan is in default.
func (u *Usecase) MarkDefaulted(ctx context.Context, actor membership.Actor, loanID string) (*LoanDTO, error) {
	return u.transition(ctx, actor, loanID, domain.ActionMarkDefault, func(l *domain.Loan, _ time.Time) (decimal.Decimal, error) {
		return decimal.Zero, l.MarkDefaulted()
	})
}

// Process dispatches one of approve, reject, fund, cancel, complete by name.
func (u *Usecase) Process(ctx context.Context, actor membership.Actor, loanID, action string) (*LoanDTO, error) {
	a, err := domain.ParseProcessAction(action)
	if err != nil {
		return nil, err
	}
	switch a {
	case domain.ActionApprove:
		return u.Approve(ctx, actor, loanID)
	case domain.ActionReject:
		return u.Reject(ctx, actor, loanID)
	case domain.ActionFund:
		return u.Fund(ctx, actor, loanID)
	case domain.ActionCancel:
		return u.Cancel(ctx, actor, loanID)
	default:
		return u.Complete(ctx, actor, loanID)
	}
}

// RecordPayment applies a repayment and reports how it was split.
func (u *Usecase) RecordPayment(ctx context.Context, actor membership.Actor, loanID string, in RecordPaymentInput) (*PaymentResultDTO, error) {
	if !in.Amount.IsPositive() {
		err := domain.NewValidation("invalid_payment_amount", "please provide a valid payment amount")
		u.observe(domain.ActionRecordPayment, loanID, actor, "", "", err, time.Now())
		return nil, err
	}

	var (
		alloc     domain.Allocation
		paymentID = id.NewUUID()
	)
	dto, err := u.transition(ctx, actor, loanID, domain.ActionRecordPayment, func(l *domain.Loan, now time.Time) (decimal.Decimal, error) {
		var err error
		alloc, err = l.ApplyPayment(domain.PaymentInput{
			Amount:        in.Amount,
			Method:        domain.PaymentMethod(in.PaymentMethod),
			TransactionID: in.TransactionID,
		}, paymentID, now)
		return in.Amount, err
	})
	if err != nil {
		return nil, err
	}
	u.metrics.AddPayment(in.Amount.InexactFloat64())
	return &PaymentResultDTO{
		Loan:        dto,
		PaymentID:   paymentID,
		InterestDue: money(alloc.InterestDue),
		Interest:    money(alloc.Interest),
		Principal:   money(alloc.Principal),
		Completed:   alloc.Completed,
	}, nil
}

// ListByCommunity pages through a community's loans, newest request first.
func (u *Usecase) ListByCommunity(ctx context.Context, actor membership.Actor, communityID string, p domain.Page) (*LoanListDTO, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		role, err := u.roleOf(ctx, communityID, actor.ID)
		if err != nil {
			return nil, err
		}
		req := access.Request{Action: access.ActionListCommunity, Actor: actor, CommunityRole: role}
		if err := access.Check(req).Err(); err != nil {
			return nil, err
		}
	}
	p = p.Normalize()
	loans, total, err := u.repo.ListByCommunity(ctx, communityID, p)
	if err != nil {
		return nil, domain.Wrap(err, "list community loans")
	}
	return toListDTO(loans, total, p), nil
}

// ListByUser pages through loans where userID is borrower or lender. Users may
// only list their own loans unless they are global admins.
func (u *Usecase) ListByUser(ctx context.Context, actor membership.Actor, userID string, p domain.Page) (*LoanListDTO, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.ID != userID && !actor.IsAdmin() {
		return nil, domain.NewAuthorization(access.ReasonNotParticipant, "user not authorized to view these loans")
	}
	p = p.Normalize()
	loans, total, err := u.repo.ListByParticipant(ctx, userID, p)
	if err != nil {
		return nil, domain.Wrap(err, "list user loans")
	}
	return toListDTO(loans, total, p), nil
}

// List pages through loans matching f. Admins see every loan; everyone else is
// narrowed to loans they borrow or lend.
func (u *Usecase) List(ctx context.Context, actor membership.Actor, f domain.Filter, p domain.Page) (*LoanListDTO, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		f.ParticipantID = actor.ID
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	p = p.Normalize()
	loans, total, err := u.repo.List(ctx, f, p)
	if err != nil {
		return nil, domain.Wrap(err, "list loans")
	}
	return toListDTO(loans, total, p), nil
}

// transition runs apply on the locked loan after the guard passes. apply must
// validate fully before mutating; the returned amount goes to the audit event.
func (u *Usecase) transition(
	ctx context.Context,
	actor membership.Actor,
	loanID string,
	action domain.Action,
	apply func(l *domain.Loan, now time.Time) (decimal.Decimal, error),
) (*LoanDTO, error) {
	start := time.Now()
	var (
		dto      *LoanDTO
		from, to domain.Status
	)
	err := requireActor(actor)
	if err == nil {
		err = u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domain.Loan) error {
			if err := u.authorize(ctx, action, actor, l); err != nil {
				return err
			}
			from = l.Status
			now := u.clock.Now()
			amount, err := apply(l, now)
			if err != nil {
				return err
			}
			to = l.Status
			if err := r.Loans.Save(ctx, l); err != nil {
				return err
			}
			if err := r.Transitions.Append(ctx, newEvent(l.ID, action, from, to, actor.ID, amount, now)); err != nil {
				return err
			}
			dto = toDTO(l)
			return nil
		})
		err = wrapLoanErr(err, loanID, string(action))
	}
	u.observe(action, loanID, actor, string(from), string(to), err, start)
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// load fetches a loan for reading and applies the view rule.
func (u *Usecase) load(ctx context.Context, actor membership.Actor, loanID string) (*domain.Loan, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	l, err := u.repo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, wrapLoanErr(err, loanID, "get loan")
	}
	if err := u.authorize(ctx, access.ActionView, actor, l); err != nil {
		return nil, err
	}
	return l, nil
}

// authorize asks the membership collaborator for the actor's community role
// only when the rule depends on it. Roles are never cached here.
func (u *Usecase) authorize(ctx context.Context, action domain.Action, actor membership.Actor, l *domain.Loan) error {
	req := access.Request{
		Action:        action,
		Actor:         actor,
		CommunityRole: membership.RoleNone,
		BorrowerID:    l.BorrowerID,
		LenderID:      l.LenderID,
	}
	if access.NeedsCommunityRole(action) && !(action == access.ActionView && (actor.IsAdmin() || l.IsParticipant(actor.ID))) {
		role, err := u.roleOf(ctx, l.CommunityID, actor.ID)
		if err != nil {
			return err
		}
		req.CommunityRole = role
	}
	return access.Check(req).Err()
}

func (u *Usecase) roleOf(ctx context.Context, communityID, userID string) (membership.Role, error) {
	role, err := u.authz.RoleOf(ctx, communityID, userID)
	if err != nil {
		return membership.RoleNone, domain.Wrap(err, "lookup community role")
	}
	if role == "" {
		role = membership.RoleNone
	}
	return role, nil
}

func (u *Usecase) observe(action domain.Action, loanID string, actor membership.Actor, from, to string, err error, start time.Time) {
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	u.metrics.ObserveTransition(string(action), outcome, time.Since(start))

	fields := []zap.Field{
		zap.String("loan_id", loanID),
		zap.String("action", string(action)),
		zap.String("actor_id", actor.ID),
		zap.String("outcome", outcome),
	}
	switch {
	case err == nil:
		u.log.Info("loan transition applied", append(fields, zap.String("from", from), zap.String("to", to))...)
	case domain.KindOf(err) == domain.KindInternal:
		u.log.Error("loan transition failed", append(fields, zap.Error(err))...)
	default:
		u.log.Warn("loan transition rejected", append(fields, zap.String("reason", domain.ReasonOf(err)), zap.Error(err))...)
	}
}

func requireActor(a membership.Actor) error {
	if a.ID == "" {
		return domain.NewAuthorization("unauthenticated", "missing actor identity")
	}
	return nil
}

func wrapLoanErr(err error, loanID, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		var e *domain.Error
		if !errors.As(err, &e) {
			return domain.NewNotFound(loanID)
		}
	}
	return domain.Wrap(err, op)
}

func newEvent(loanNumericID uint64, action domain.Action, from, to domain.Status, actorID string, amount decimal.Decimal, at time.Time) *transition.Event {
	return &transition.Event{
		EventID:    id.NewUUID(),
		LoanID:     loanNumericID,
		Action:     string(action),
		FromStatus: string(from),
		ToStatus:   string(to),
		ActorID:    actorID,
		Amount:     amount,
		OccurredAt: at,
	}
}

func toListDTO(loans []domain.Loan, total int64, p domain.Page) *LoanListDTO {
	out := &LoanListDTO{Loans: make([]*LoanDTO, 0, len(loans)), Total: total, Page: p.Page, Limit: p.Limit}
	for i := range loans {
		out.Loans = append(out.Loans, toDTO(&loans[i]))
	}
	return out
}
