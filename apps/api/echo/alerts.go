package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/alerts"
	"github.com/chuodev/chuo/core/auth"
	"github.com/chuodev/chuo/core/principal"
)

type alertsApi struct {
	opts *Options
}

func registerAlertsAPI(g *echo.Group, jwt, identified echo.MiddlewareFunc, opts *Options) {
	api := alertsApi{opts: opts}

	dg := g.Group("/dashboard", jwt, identified, adminMiddleware())
	dg.GET("", api.dashboard)

	ag := g.Group("/alerts", jwt, identified)
	ag.GET("/students/:id", api.studentAlerts)

	eg := g.Group("/exams", jwt, identified)
	eg.POST("/results", api.recordResult, adminMiddleware())
	eg.GET("/results/:id", api.queryResults)
}

// Handlers

func (api *alertsApi) dashboard(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionReadDashboard)
	if err != nil {
		return err
	}

	d, err := api.opts.AlertSvc.Dashboard(ctx.Request().Context(), scope)
	if err != nil {
		return errors.Wrap(err, "computing dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *alertsApi) studentAlerts(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionReadAttendance)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if scope.Role == principal.RoleStudent && id != scope.SubjectID {
		return errHTTPForbidden
	}

	std, err := api.opts.PrincipalSvc.GetStudent(ctx.Request().Context(), scope.TenantID, id)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	sa, err := api.opts.AlertSvc.StudentAlerts(ctx.Request().Context(), scope, std)
	if err != nil {
		return errors.Wrap(err, "computing student alerts")
	}
	return ctx.JSON(http.StatusOK, sa)
}

func (api *alertsApi) recordResult(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionManagePrincipal)
	if err != nil {
		return err
	}

	var data ExamResultRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ExamResultRequest")
	}
	if err := core.Validate.Struct(&data); err != nil {
		return err
	}

	res, err := api.opts.AlertSvc.RecordExamResult(
		ctx.Request().Context(), scope, data.StudentID, data.Exam, alerts.ExamOutcome(data.Outcome))
	if err != nil {
		return errors.Wrap(err, "recording exam result")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *alertsApi) queryResults(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionReadAttendance)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if scope.Role == principal.RoleStudent && id != scope.SubjectID {
		return errHTTPForbidden
	}

	results, err := api.opts.AlertSvc.QueryExamResults(ctx.Request().Context(), scope, id)
	if err != nil {
		return errors.Wrap(err, "querying exam results")
	}
	if results == nil {
		results = []alerts.ExamResult{}
	}
	return ctx.JSON(http.StatusOK, results)
}

type ExamResultRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Exam      string `json:"exam" validate:"required"`
	Outcome   string `json:"outcome" validate:"required,oneof=pass fail"`
}
