package http

import (
	"net/http"

	"peerlend/internal/adapter/middleware"

	"github.com/labstack/echo/v4"
)

// Routes collects what RegisterRoutes mounts. Idempotency and Metrics are optional.
type Routes struct {
	Health      *Handler
	Loans       *LoanHandler
	Idempotency echo.MiddlewareFunc
	Metrics     http.Handler
}

func RegisterRoutes(e *echo.Echo, r Routes) {
	e.GET("/health", r.Health.Health)
	if r.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(r.Metrics))
	}

	read := []echo.MiddlewareFunc{middleware.ActorMiddleware()}
	write := read
	if r.Idempotency != nil {
		write = []echo.MiddlewareFunc{read[0], r.Idempotency}
	}

	e.GET("/communities/:community_id/loans", r.Loans.ListCommunityLoans, read...)
	e.POST("/communities/:community_id/loans", r.Loans.CreateLoan, write...)
	e.GET("/users/:user_id/loans", r.Loans.ListUserLoans, read...)

	e.GET("/loans", r.Loans.ListLoans, read...)
	e.GET("/loans/:loan_id", r.Loans.GetLoan, read...)
	e.PUT("/loans/:loan_id", r.Loans.UpdateLoan, write...)
	e.PUT("/loans/:loan_id/process", r.Loans.ProcessLoan, write...)
	e.POST("/loans/:loan_id/payments", r.Loans.RecordPayment, write...)
	e.POST("/loans/:loan_id/default", r.Loans.MarkDefault, write...)
	e.GET("/loans/:loan_id/transitions", r.Loans.Transitions, read...)
}
