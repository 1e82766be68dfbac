package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"peerlend/internal/adapter/middleware"
	domain "peerlend/internal/domain/loan"
	"peerlend/internal/domain/membership"
	"peerlend/internal/testutil/membershipmock"
	"peerlend/internal/testutil/memstore"
	uc "peerlend/internal/usecase/loan"
	"peerlend/pkg/clock"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	communityID = strings.Repeat("c", 32)
	borrowerID  = strings.Repeat("b", 32)
	lenderID    = strings.Repeat("1", 32)
	moderatorID = strings.Repeat("d", 32)
	outsiderID  = strings.Repeat("e", 32)
)

// -------- helpers --------

type api struct {
	e     *echo.Echo
	authz *membershipmock.Authorizer
	logs  *observer.ObservedLogs
}

func newAPI(t *testing.T) *api {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	store := memstore.New()
	authz := membershipmock.New().
		With(communityID, borrowerID, membership.RoleMember).
		With(communityID, lenderID, membership.RoleMember).
		With(communityID, moderatorID, membership.RoleModerator)
	usecase := uc.NewUsecase(store, store, authz,
		uc.WithClock(clock.NewFixed(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))))

	e := echo.New()
	e.Validator = NewValidator()
	RegisterRoutes(e, Routes{Health: NewHandler(), Loans: NewLoanHandler(usecase, log)})
	return &api{e: e, authz: authz, logs: logs}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Reason  string          `json:"reason"`
	Details []FieldError    `json:"details"`
}

func (a *api) do(t *testing.T, method, path, userID string, body any) (int, envelope) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != "" {
		req.Header.Set(middleware.HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "raw=%s", rec.Body.String())
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func createBody(amount any) map[string]any {
	return map[string]any{
		"amount":          amount,
		"interest_rate":   10,
		"term":            12,
		"purpose":         "business",
		"purpose_details": "restock the market stall",
	}
}

func (a *api) createLoan(t *testing.T, amount any) uc.LoanDTO {
	t.Helper()
	code, env := a.do(t, stdhttp.MethodPost, "/communities/"+communityID+"/loans", borrowerID, createBody(amount))
	require.Equal(t, stdhttp.StatusCreated, code, "error=%s", env.Error)
	return decode[uc.LoanDTO](t, env.Data)
}

func (a *api) process(t *testing.T, loanID, userID, action string) (int, envelope) {
	t.Helper()
	return a.do(t, stdhttp.MethodPut, "/loans/"+loanID+"/process", userID, map[string]string{"action": action})
}

// -------- tests --------

func TestCreateLoan_Success(t *testing.T) {
	a := newAPI(t)

	code, env := a.do(t, stdhttp.MethodPost, "/communities/"+communityID+"/loans", borrowerID, map[string]any{
		"amount":          "12000",
		"purpose":         "education",
		"purpose_details": "school fees for next term",
	})
	require.Equal(t, stdhttp.StatusCreated, code)
	assert.True(t, env.Success)

	dto := decode[uc.LoanDTO](t, env.Data)
	assert.Len(t, dto.LoanID, 32)
	assert.Equal(t, "pending", dto.Status)
	assert.Equal(t, "12000.00", dto.Amount)
	assert.Equal(t, "10", dto.InterestRate)
	assert.Equal(t, uc.DefaultTerm, dto.Term)
	assert.Equal(t, "monthly", dto.PaymentFrequency)
	assert.Empty(t, dto.PaymentSchedule)
}

func TestCreateLoan_MissingUser(t *testing.T) {
	a := newAPI(t)
	code, env := a.do(t, stdhttp.MethodPost, "/communities/"+communityID+"/loans", "", createBody(5000))
	assert.Equal(t, stdhttp.StatusUnauthorized, code)
	assert.False(t, env.Success)
	assert.Equal(t, "unauthenticated", env.Code)
}

func TestCreateLoan_ValidationDetails(t *testing.T) {
	a := newAPI(t)
	code, env := a.do(t, stdhttp.MethodPost, "/communities/"+communityID+"/loans", borrowerID, createBody("10.999"))
	require.Equal(t, stdhttp.StatusBadRequest, code)
	assert.Equal(t, "validation", env.Code)
	assert.True(t, containsFieldMsg(env.Details, "amount", "2 decimal places"), "%+v", env.Details)
}

func TestCreateLoan_InvalidBody(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(stdhttp.MethodPost, "/communities/"+communityID+"/loans", strings.NewReader("{bad json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(middleware.HeaderUserID, borrowerID)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid body")
}

func TestCreateLoan_DomainValidation(t *testing.T) {
	a := newAPI(t)
	body := createBody(5000)
	body["purpose"] = "holiday"
	code, env := a.do(t, stdhttp.MethodPost, "/communities/"+communityID+"/loans", borrowerID, body)
	assert.Equal(t, stdhttp.StatusBadRequest, code)
	assert.Equal(t, "validation", env.Code)
	assert.Equal(t, "invalid_purpose", env.Reason)
}

func TestCreateLoan_NotMember(t *testing.T) {
	a := newAPI(t)
	code, env := a.do(t, stdhttp.MethodPost, "/communities/"+communityID+"/loans", outsiderID, createBody(5000))
	assert.Equal(t, stdhttp.StatusForbidden, code)
	assert.Equal(t, "authorization", env.Code)
	assert.Equal(t, "not_community_member", env.Reason)
}

func TestLoanLifecycle_OverHTTP(t *testing.T) {
	a := newAPI(t)
	created := a.createLoan(t, 50000)

	code, env := a.process(t, created.LoanID, moderatorID, "approve")
	require.Equal(t, stdhttp.StatusOK, code, env.Error)
	assert.Equal(t, "approved", decode[uc.LoanDTO](t, env.Data).Status)

	code, env = a.process(t, created.LoanID, lenderID, "fund")
	require.Equal(t, stdhttp.StatusOK, code, env.Error)
	funded := decode[uc.LoanDTO](t, env.Data)
	assert.Equal(t, "funded", funded.Status)
	assert.Equal(t, lenderID, funded.LenderID)
	assert.Len(t, funded.PaymentSchedule, 12)

	code, env = a.do(t, stdhttp.MethodPost, "/loans/"+created.LoanID+"/payments", borrowerID, map[string]any{
		"amount":         "50000",
		"payment_method": "bank_transfer",
		"transaction_id": "TX-1",
	})
	require.Equal(t, stdhttp.StatusCreated, code, env.Error)
	paid := decode[uc.PaymentResultDTO](t, env.Data)
	assert.Equal(t, "416.67", paid.Interest)
	assert.Equal(t, "49583.33", paid.Principal)
	assert.Equal(t, "active", paid.Loan.Status)
	assert.False(t, paid.Completed)

	code, env = a.do(t, stdhttp.MethodGet, "/loans/"+created.LoanID+"/transitions", lenderID, nil)
	require.Equal(t, stdhttp.StatusOK, code, env.Error)
	events := decode[[]uc.TransitionDTO](t, env.Data)
	require.Len(t, events, 4)
	assert.Equal(t, []string{"create", "approve", "fund", "record_payment"},
		[]string{events[0].Action, events[1].Action, events[2].Action, events[3].Action})
	assert.Equal(t, "50000.00", events[3].Amount)
}

func TestProcessLoan_FundPendingIsConflict(t *testing.T) {
	a := newAPI(t)
	created := a.createLoan(t, 5000)

	code, env := a.process(t, created.LoanID, lenderID, "fund")
	assert.Equal(t, stdhttp.StatusConflict, code)
	assert.Equal(t, "state_conflict", env.Code)
	assert.Equal(t, "status_pending", env.Reason)
}

func TestProcessLoan_InvalidAction(t *testing.T) {
	a := newAPI(t)
	created := a.createLoan(t, 5000)

	code, env := a.process(t, created.LoanID, moderatorID, "teleport")
	assert.Equal(t, stdhttp.StatusBadRequest, code)
	assert.Equal(t, "invalid_action", env.Reason)
}

func TestUpdateLoan_PartialTerms(t *testing.T) {
	a := newAPI(t)
	created := a.createLoan(t, 5000)

	code, env := a.do(t, stdhttp.MethodPut, "/loans/"+created.LoanID, borrowerID, map[string]any{"term": 6})
	require.Equal(t, stdhttp.StatusOK, code, env.Error)
	dto := decode[uc.LoanDTO](t, env.Data)
	assert.Equal(t, 6, dto.Term)
	assert.Equal(t, "5000.00", dto.Amount)

	code, env = a.do(t, stdhttp.MethodPut, "/loans/"+created.LoanID, lenderID, map[string]any{"term": 3})
	assert.Equal(t, stdhttp.StatusForbidden, code)
	assert.Equal(t, "not_borrower", env.Reason)
}

func TestGetLoan_NotFoundAndBadID(t *testing.T) {
	a := newAPI(t)

	code, env := a.do(t, stdhttp.MethodGet, "/loans/"+strings.Repeat("f", 32), borrowerID, nil)
	assert.Equal(t, stdhttp.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Code)

	code, env = a.do(t, stdhttp.MethodGet, "/loans/not-a-loan-id", borrowerID, nil)
	assert.Equal(t, stdhttp.StatusBadRequest, code)
	assert.True(t, containsFieldMsg(env.Details, "loan_id", "32-char lowercase hex"), "%+v", env.Details)
}

func TestGetLoan_ViewRule(t *testing.T) {
	a := newAPI(t)
	created := a.createLoan(t, 5000)

	code, _ := a.do(t, stdhttp.MethodGet, "/loans/"+created.LoanID, moderatorID, nil)
	assert.Equal(t, stdhttp.StatusOK, code)

	code, env := a.do(t, stdhttp.MethodGet, "/loans/"+created.LoanID, outsiderID, nil)
	assert.Equal(t, stdhttp.StatusForbidden, code)
	assert.Equal(t, "not_participant", env.Reason)
}

func TestListLoans(t *testing.T) {
	a := newAPI(t)
	a.createLoan(t, 5000)
	a.createLoan(t, 6000)
	a.createLoan(t, 7000)

	code, env := a.do(t, stdhttp.MethodGet, "/communities/"+communityID+"/loans?page=1&limit=2", lenderID, nil)
	require.Equal(t, stdhttp.StatusOK, code, env.Error)
	page := decode[uc.LoanListDTO](t, env.Data)
	assert.EqualValues(t, 3, page.Total)
	assert.Len(t, page.Loans, 2)
	assert.Equal(t, 2, page.Limit)

	code, env = a.do(t, stdhttp.MethodGet, "/users/"+borrowerID+"/loans", borrowerID, nil)
	require.Equal(t, stdhttp.StatusOK, code, env.Error)
	assert.EqualValues(t, 3, decode[uc.LoanListDTO](t, env.Data).Total)

	code, _ = a.do(t, stdhttp.MethodGet, "/users/"+borrowerID+"/loans", lenderID, nil)
	assert.Equal(t, stdhttp.StatusForbidden, code)

	code, _ = a.do(t, stdhttp.MethodGet, "/communities/"+communityID+"/loans", outsiderID, nil)
	assert.Equal(t, stdhttp.StatusForbidden, code)

	code, env = a.do(t, stdhttp.MethodGet, "/users/"+borrowerID+"/loans?limit=500", borrowerID, nil)
	assert.Equal(t, stdhttp.StatusBadRequest, code)
	assert.True(t, containsFieldMsg(env.Details, "limit", "less than or equal to 100"), "%+v", env.Details)
}

func TestListAllLoans_FilterSortAndScope(t *testing.T) {
	a := newAPI(t)
	a.createLoan(t, 5000)
	funded := a.createLoan(t, 6000)
	a.createLoan(t, 7000)
	code, env := a.process(t, funded.LoanID, moderatorID, "approve")
	require.Equal(t, stdhttp.StatusOK, code, env.Error)
	code, env = a.process(t, funded.LoanID, lenderID, "fund")
	require.Equal(t, stdhttp.StatusOK, code, env.Error)

	code, env = a.do(t, stdhttp.MethodGet, "/loans", lenderID, nil)
	require.Equal(t, stdhttp.StatusOK, code, env.Error)
	page := decode[uc.LoanListDTO](t, env.Data)
	require.EqualValues(t, 1, page.Total, "non-admins only see their own loans")
	assert.Equal(t, funded.LoanID, page.Loans[0].LoanID)

	code, env = a.do(t, stdhttp.MethodGet, "/loans?status=pending&sort=-amount", borrowerID, nil)
	require.Equal(t, stdhttp.StatusOK, code, env.Error)
	page = decode[uc.LoanListDTO](t, env.Data)
	require.EqualValues(t, 2, page.Total)
	assert.Equal(t, "7000.00", page.Loans[0].Amount)
	assert.Equal(t, "5000.00", page.Loans[1].Amount)

	req := httptest.NewRequest(stdhttp.MethodGet, "/loans?sort=amount&limit=1&search=MARKET", nil)
	req.Header.Set(middleware.HeaderUserID, outsiderID)
	req.Header.Set(middleware.HeaderUserRole, "admin")
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	var adminEnv envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &adminEnv))
	page = decode[uc.LoanListDTO](t, adminEnv.Data)
	assert.EqualValues(t, 3, page.Total)
	require.Len(t, page.Loans, 1)
	assert.Equal(t, "5000.00", page.Loans[0].Amount)

	code, env = a.do(t, stdhttp.MethodGet, "/loans?sort=borrower_id", borrowerID, nil)
	assert.Equal(t, stdhttp.StatusBadRequest, code)
	assert.Equal(t, "invalid_sort", env.Reason)

	code, env = a.do(t, stdhttp.MethodGet, "/loans?status=pending,lost", borrowerID, nil)
	assert.Equal(t, stdhttp.StatusBadRequest, code)
	assert.Equal(t, "invalid_status", env.Reason)

	code, _ = a.do(t, stdhttp.MethodGet, "/loans", "", nil)
	assert.Equal(t, stdhttp.StatusUnauthorized, code)
}

func TestMarkDefault_AdminOnly(t *testing.T) {
	a := newAPI(t)
	created := a.createLoan(t, 5000)

	code, env := a.do(t, stdhttp.MethodPost, "/loans/"+created.LoanID+"/default", borrowerID, nil)
	assert.Equal(t, stdhttp.StatusForbidden, code)
	assert.Equal(t, "not_admin", env.Reason)
}

func TestRecordPayment_RejectsZeroAmount(t *testing.T) {
	a := newAPI(t)
	created := a.createLoan(t, 5000)

	code, env := a.do(t, stdhttp.MethodPost, "/loans/"+created.LoanID+"/payments", borrowerID, map[string]any{"amount": 0})
	assert.Equal(t, stdhttp.StatusBadRequest, code)
	assert.True(t, containsFieldMsg(env.Details, "amount", "greater than zero"), "%+v", env.Details)
}

func TestInternalError_IsLoggedAndMasked(t *testing.T) {
	a := newAPI(t)
	a.authz.RoleOfFn = func(context.Context, string, string) (membership.Role, error) {
		return membership.RoleNone, errors.New("membership db down")
	}

	code, env := a.do(t, stdhttp.MethodPost, "/communities/"+communityID+"/loans", borrowerID, createBody(5000))
	assert.Equal(t, stdhttp.StatusInternalServerError, code)
	assert.Equal(t, "internal", env.Code)
	assert.NotContains(t, env.Error, "membership db down")

	entries := a.logs.FilterMessage("request failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/communities/:community_id/loans", entries[0].ContextMap()["path"])
}

func TestStatusOf(t *testing.T) {
	for kind, want := range map[string]int{
		"validation":     stdhttp.StatusBadRequest,
		"authorization":  stdhttp.StatusForbidden,
		"not_found":      stdhttp.StatusNotFound,
		"state_conflict": stdhttp.StatusConflict,
		"internal":       stdhttp.StatusInternalServerError,
		"something_else": stdhttp.StatusInternalServerError,
	} {
		assert.Equal(t, want, StatusOf(domain.Kind(kind)), kind)
	}
}
