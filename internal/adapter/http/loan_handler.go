package http

import (
	"net/http"
	"strings"

	"peerlend/internal/adapter/middleware"
	domain "peerlend/internal/domain/loan"
	"peerlend/internal/domain/membership"
	"peerlend/internal/usecase/loan"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type LoanHandler struct {
	uc  *loan.Usecase
	log *zap.Logger
}

func NewLoanHandler(uc *loan.Usecase, log *zap.Logger) *LoanHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoanHandler{uc: uc, log: log}
}

type createLoanReq struct {
	CommunityID      string           `param:"community_id" json:"-" validate:"required,max=32"`
	Amount           decimal.Decimal  `json:"amount" validate:"dec2,decpos"`
	InterestRate     *decimal.Decimal `json:"interest_rate" validate:"omitempty,dec2"`
	Term             *int             `json:"term"`
	Purpose          string           `json:"purpose" validate:"required"`
	PurposeDetails   string           `json:"purpose_details" validate:"required"`
	PaymentFrequency string           `json:"payment_frequency"`
}

type updateLoanReq struct {
	LoanID           string           `param:"loan_id" json:"-" validate:"hex32"`
	Amount           *decimal.Decimal `json:"amount" validate:"omitempty,dec2,decpos"`
	InterestRate     *decimal.Decimal `json:"interest_rate" validate:"omitempty,dec2"`
	Term             *int             `json:"term"`
	Purpose          *string          `json:"purpose"`
	PurposeDetails   *string          `json:"purpose_details"`
	PaymentFrequency *string          `json:"payment_frequency"`
}

type loanIDReq struct {
	LoanID string `param:"loan_id" validate:"hex32"`
}

type processLoanReq struct {
	LoanID string `param:"loan_id" json:"-" validate:"hex32"`
	Action string `json:"action" validate:"required"`
}

type recordPaymentReq struct {
	LoanID        string          `param:"loan_id" json:"-" validate:"hex32"`
	Amount        decimal.Decimal `json:"amount" validate:"dec2,decpos"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id" validate:"max=64"`
}

type listReq struct {
	CommunityID string `param:"community_id" validate:"omitempty,max=32"`
	UserID      string `param:"user_id" validate:"omitempty,hex32"`
	Page        int    `query:"page" validate:"gte=0"`
	Limit       int    `query:"limit" validate:"gte=0,lte=100"`
}

type listAllReq struct {
	Status string `query:"status" validate:"max=200"`
	Search string `query:"search" validate:"max=100"`
	Sort   string `query:"sort" validate:"max=32"`
	Page   int    `query:"page" validate:"gte=0"`
	Limit  int    `query:"limit" validate:"gte=0,lte=100"`
}

// filter turns the comma separated status list into a domain filter.
func (r listAllReq) filter() domain.Filter {
	f := domain.Filter{Search: strings.TrimSpace(r.Search), Sort: r.Sort}
	for _, s := range strings.Split(r.Status, ",") {
		if s = strings.TrimSpace(s); s != "" {
			f.Statuses = append(f.Statuses, domain.Status(strings.ToLower(s)))
		}
	}
	return f
}

// bind decodes path, query and body into req and validates it. It writes the
// 400 response itself and reports whether the handler may continue.
func bind(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, badRequest(c, "invalid body", nil)
	}
	if err := c.Validate(req); err != nil {
		return false, badRequest(c, "validation failed", ToFieldErrors(err))
	}
	return true, nil
}

func (h *LoanHandler) actor(c echo.Context) membership.Actor {
	a, _ := middleware.ActorFrom(c)
	return a
}

func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req createLoanReq
	if cont, err := bind(c, &req); !cont {
		return err
	}
	dto, err := h.uc.Create(c.Request().Context(), h.actor(c), loan.CreateLoanInput{
		CommunityID:      req.CommunityID,
		Amount:           req.Amount,
		InterestRate:     req.InterestRate,
		Term:             req.Term,
		Purpose:          req.Purpose,
		PurposeDetails:   req.PurposeDetails,
		PaymentFrequency: req.PaymentFrequency,
	})
	if err != nil {
		return fail(c, h.log, err)
	}
	return ok(c, http.StatusCreated, dto)
}

// ListLoans lists every loan the caller may see, filtered and sorted by query.
func (h *LoanHandler) ListLoans(c echo.Context) error {
	var req listAllReq
	if cont, err := bind(c, &req); !cont {
		return err
	}
	out, err := h.uc.List(c.Request().Context(), h.actor(c), req.filter(), domain.Page{Page: req.Page, Limit: req.Limit})
	if err != nil {
		return fail(c, h.log, err)
	}
	return ok(c, http.StatusOK, out)
}

func (h *LoanHandler) ListCommunityLoans(c echo.Context) error {
	var req listReq
	if cont, err := bind(c, &req); !cont {
		return err
	}
	out, err := h.uc.ListByCommunity(c.Request().Context(), h.actor(c), req.CommunityID, domain.Page{Page: req.Page, Limit: req.Limit})
	if err != nil {
		return fail(c, h.log, err)
	}
	return ok(c, http.StatusOK, out)
}

func (h *LoanHandler) ListUserLoans(c echo.Context) error {
	var req listReq
	if cont, err := bind(c, &req); !cont {
		return err
	}
	out, err := h.uc.ListByUser(c.Request().Context(), h.actor(c), req.UserID, domain.Page{Page: req.Page, Limit: req.Limit})
	if err != nil {
		return fail(c, h.log, err)
	}
	return ok(c, http.StatusOK, out)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	var req loanIDReq
	if cont, err := bind(c, &req); !cont {
		return err
	}
	dto, err := h.uc.Get(c.Request().Context(), h.actor(c), req.LoanID)
	if err != nil {
		return fail(c, h.log, err)
	}
	return ok(c, http.StatusOK, dto)
}

func (h *LoanHandler) UpdateLoan(c echo.Context) error {
	var req updateLoanReq
	if cont, err := bind(c, &req); !cont {
		return err
	}
	dto, err := h.uc.Update(c.Request().Context(), h.actor(c), req.LoanID, loan.UpdateLoanInput{
		Amount:           req.Amount,
		InterestRate:     req.InterestRate,
		Term:             req.Term,
		Purpose:          req.Purpose,
		PurposeDetails:   req.PurposeDetails,
		PaymentFrequency: req.PaymentFrequency,
	})
	if err != nil {
		return fail(c, h.log, err)
	}
	return ok(c, http.StatusOK, dto)
}

// ProcessLoan applies approve, reject, fund, cancel or complete.
func (h *LoanHandler) ProcessLoan(c echo.Context) error {
	var req processLoanReq
	if cont, err := bind(c, &req); !cont {
		return err
	}
	dto, err := h.uc.Process(c.Request().Context(), h.actor(c), req.LoanID, req.Action)
	if err != nil {
		return fail(c, h.log, err)
	}
	return ok(c, http.StatusOK, dto)
}

func (h *LoanHandler) RecordPayment(c echo.Context) error {
	var req recordPaymentReq
	if cont, err := bind(c, &req); !cont {
		return err
	}
	out, err := h.uc.RecordPayment(c.Request().Context(), h.actor(c), req.LoanID, loan.RecordPaymentInput{
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		return fail(c, h.log, err)
	}
	return ok(c, http.StatusCreated, out)
}

func (h *LoanHandler) MarkDefault(c echo.Context) error {
	var req loanIDReq
	if cont, err := bind(c, &req); !cont {
		return err
	}
	dto, err := h.uc.MarkDefaulted(c.Request().Context(), h.actor(c), req.LoanID)
	if err != nil {
		return fail(c, h.log, err)
	}
	return ok(c, http.StatusOK, dto)
}

func (h *LoanHandler) Transitions(c echo.Context) error {
	var req loanIDReq
	if cont, err := bind(c, &req); !cont {
		return err
	}
	out, err := h.uc.Transitions(c.Request().Context(), h.actor(c), req.LoanID)
	if err != nil {
		return fail(c, h.log, err)
	}
	return ok(c, http.StatusOK, out)
}
