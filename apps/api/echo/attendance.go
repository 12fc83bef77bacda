package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/attendance"
	"github.com/chuodev/chuo/core/auth"
)

type attendanceApi struct {
	opts *Options
}

func registerAttendanceAPI(g *echo.Group, jwt, identified echo.MiddlewareFunc, opts *Options) {
	api := attendanceApi{opts: opts}

	ag := g.Group("/attendance", jwt, identified)
	ag.POST("", api.mark)
	ag.POST("/scan", api.scanSelf)
	ag.GET("/subject/:id", api.queryBySubject)
	ag.GET("/date/:date", api.queryByDate)
	ag.GET("/subject/:id/percentage", api.percentage)

	fg := g.Group("/followups", jwt, identified)
	fg.POST("", api.createFollowUp)
	fg.PUT("/:id", api.updateFollowUp)
	fg.GET("", api.queryFollowUps)
}

// Handlers

func (api *attendanceApi) mark(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionMarkAttendance)
	if err != nil {
		return err
	}

	var data attendance.MarkAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkAttendance")
	}

	rec, err := api.opts.AttendanceSvc.Mark(ctx.Request().Context(), scope, data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *attendanceApi) scanSelf(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionScanSelf)
	if err != nil {
		return err
	}

	var data ScanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScanRequest")
	}
	if err := core.Validate.Struct(&data); err != nil {
		return err
	}

	rec, phase, err := api.opts.AttendanceSvc.ScanSelf(ctx.Request().Context(), scope, data.QRPayload)
	if err != nil {
		return errors.Wrap(err, "scanning self attendance")
	}
	return ctx.JSON(http.StatusOK, ScanResponse{Record: rec, Phase: phase})
}

func (api *attendanceApi) queryBySubject(ctx echo.Context) error {
	scope, err := getScopeForSubject(ctx, auth.ActionReadAttendance, ctx.Param("id"))
	if err != nil {
		return err
	}

	from, to, err := parseDateRange(ctx)
	if err != nil {
		return err
	}

	recs, err := api.opts.AttendanceSvc.QueryBySubject(ctx.Request().Context(), scope, ctx.Param("id"), from, to)
	if err != nil {
		return errors.Wrap(err, "querying attendance by subject")
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *attendanceApi) queryByDate(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionReadAttendance)
	if err != nil {
		return err
	}

	date, err := parseDate(ctx.Param("date"))
	if err != nil {
		return err
	}
	kind := attendance.SubjectKind(ctx.QueryParam("kind"))

	recs, err := api.opts.AttendanceSvc.QueryByDate(ctx.Request().Context(), scope, date, kind)
	if err != nil {
		return errors.Wrap(err, "querying attendance by date")
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *attendanceApi) percentage(ctx echo.Context) error {
	scope, err := getScopeForSubject(ctx, auth.ActionReadAttendance, ctx.Param("id"))
	if err != nil {
		return err
	}

	from, to, err := parseDateRange(ctx)
	if err != nil {
		return err
	}

	pct, err := api.opts.AttendanceSvc.Percentage(ctx.Request().Context(), scope, ctx.Param("id"), from, to)
	if err != nil {
		return errors.Wrap(err, "computing attendance percentage")
	}
	return ctx.JSON(http.StatusOK, PercentageResponse{SubjectID: ctx.Param("id"), Percentage: pct})
}

func (api *attendanceApi) createFollowUp(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionManageFollowUps)
	if err != nil {
		return err
	}

	var data attendance.NewFollowUp
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFollowUp")
	}

	fu, err := api.opts.AttendanceSvc.CreateFollowUp(ctx.Request().Context(), scope, data)
	if err != nil {
		return errors.Wrap(err, "creating follow-up")
	}
	return ctx.JSON(http.StatusCreated, fu)
}

func (api *attendanceApi) updateFollowUp(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionManageFollowUps)
	if err != nil {
		return err
	}

	var data attendance.UpdateFollowUp
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFollowUp")
	}

	fu, err := api.opts.AttendanceSvc.UpdateFollowUp(ctx.Request().Context(), scope, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating follow-up")
	}
	return ctx.JSON(http.StatusOK, fu)
}

func (api *attendanceApi) queryFollowUps(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionManageFollowUps)
	if err != nil {
		return err
	}

	status := attendance.FollowUpStatus(ctx.QueryParam("status"))
	fus, err := api.opts.AttendanceSvc.QueryFollowUps(ctx.Request().Context(), scope, status)
	if err != nil {
		return errors.Wrap(err, "querying follow-ups")
	}
	if fus == nil {
		fus = []attendance.FollowUp{}
	}
	return ctx.JSON(http.StatusOK, fus)
}

type (
	ScanRequest struct {
		QRPayload string `json:"qr_payload" validate:"required"`
	}

	ScanResponse struct {
		Record attendance.Record    `json:"record"`
		Phase  attendance.ScanPhase `json:"phase"`
	}

	PercentageResponse struct {
		SubjectID  string `json:"subject_id"`
		Percentage int    `json:"percentage"`
	}
)

const dateLayout = "2006-01-02"

func parseDate(val string) (time.Time, error) {
	date, err := time.Parse(dateLayout, val)
	if err != nil {
		return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: "date", Error: "expected format " + dateLayout})
	}
	return date, nil
}

func parseDateRange(ctx echo.Context) (from, to time.Time, err error) {
	if val := ctx.QueryParam("from"); val != "" {
		if from, err = parseDate(val); err != nil {
			return
		}
	}
	if val := ctx.QueryParam("to"); val != "" {
		if to, err = parseDate(val); err != nil {
			return
		}
	} else {
		to = time.Now().UTC()
	}
	return
}
