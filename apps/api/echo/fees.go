package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/auth"
	"github.com/chuodev/chuo/core/fees"
)

type feesApi struct {
	opts *Options
}

func registerFeesAPI(g *echo.Group, jwt, identified echo.MiddlewareFunc, opts *Options) {
	api := feesApi{opts: opts}

	fg := g.Group("/fees", jwt, identified)
	fg.POST("/payments", api.applyPayment)
	fg.GET("/payments/student/:id", api.queryByStudent)
	fg.GET("/payments/cycle", api.queryByCycle)
	fg.GET("/next-due/:id", api.nextDue)
	fg.GET("/total-due", api.totalDue, adminMiddleware())
}

// Handlers

func (api *feesApi) applyPayment(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionApplyPayment)
	if err != nil {
		return err
	}

	var data fees.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}

	rcpt, err := api.opts.FeeSvc.Apply(ctx.Request().Context(), scope, data)
	if err != nil {
		return errors.Wrap(err, "applying payment")
	}
	return ctx.JSON(http.StatusCreated, rcpt)
}

func (api *feesApi) queryByStudent(ctx echo.Context) error {
	scope, err := getScopeForSubject(ctx, auth.ActionReadFees, ctx.Param("id"))
	if err != nil {
		return err
	}

	pmts, err := api.opts.FeeSvc.QueryByStudent(ctx.Request().Context(), scope, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying payments by student")
	}
	if pmts == nil {
		pmts = []fees.Payment{}
	}
	return ctx.JSON(http.StatusOK, pmts)
}

func (api *feesApi) queryByCycle(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionReadFees)
	if err != nil {
		return err
	}

	month, year, err := parseCycle(ctx)
	if err != nil {
		return err
	}

	pmts, err := api.opts.FeeSvc.QueryByCycle(ctx.Request().Context(), scope, month, year)
	if err != nil {
		return errors.Wrap(err, "querying payments by cycle")
	}
	if pmts == nil {
		pmts = []fees.Payment{}
	}
	return ctx.JSON(http.StatusOK, pmts)
}

func (api *feesApi) nextDue(ctx echo.Context) error {
	scope, err := getScopeForSubject(ctx, auth.ActionReadFees, ctx.Param("id"))
	if err != nil {
		return err
	}

	date, amount, err := api.opts.FeeSvc.NextDue(ctx.Request().Context(), scope, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing next due date")
	}
	return ctx.JSON(http.StatusOK, NextDueResponse{
		StudentID: ctx.Param("id"),
		DueDate:   date.Format(dateLayout),
		DueAmount: amount,
	})
}

func (api *feesApi) totalDue(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionReadDashboard)
	if err != nil {
		return err
	}

	total, err := api.opts.FeeSvc.TotalDue(ctx.Request().Context(), scope, api.opts.Conf.Alerts.IncludeInactiveDues)
	if err != nil {
		return errors.Wrap(err, "computing total dues")
	}
	return ctx.JSON(http.StatusOK, TotalDueResponse{TotalDue: total})
}

type (
	NextDueResponse struct {
		StudentID string  `json:"student_id"`
		DueDate   string  `json:"due_date"`
		DueAmount float64 `json:"due_amount"`
	}

	TotalDueResponse struct {
		TotalDue float64 `json:"total_due"`
	}
)

func parseCycle(ctx echo.Context) (time.Month, int, error) {
	m, err := strconv.Atoi(ctx.QueryParam("month"))
	if err != nil || m < 1 || m > 12 {
		return 0, 0, core.NewValidationError(nil, core.FieldError{Field: "month", Error: "expected 1-12"})
	}
	y, err := strconv.Atoi(ctx.QueryParam("year"))
	if err != nil || y <= 0 {
		return 0, 0, core.NewValidationError(nil, core.FieldError{Field: "year", Error: "expected a valid year"})
	}
	return time.Month(m), y, nil
}
