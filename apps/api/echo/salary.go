package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/chuodev/chuo/core/auth"
	"github.com/chuodev/chuo/core/salary"
)

type salaryApi struct {
	opts *Options
}

func registerSalaryAPI(g *echo.Group, jwt, identified echo.MiddlewareFunc, opts *Options) {
	api := salaryApi{opts: opts}

	sg := g.Group("/salary", jwt, identified, adminMiddleware())
	sg.GET("/staff/:id", api.computeForStaff)
	sg.GET("", api.computeAll)
}

// Handlers

func (api *salaryApi) computeForStaff(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionComputeSalary)
	if err != nil {
		return err
	}

	month, year, err := parseCycle(ctx)
	if err != nil {
		return err
	}

	slip, err := api.opts.SalarySvc.ComputeForStaff(ctx.Request().Context(), scope, ctx.Param("id"), month, year)
	if err != nil {
		return errors.Wrap(err, "computing staff salary")
	}
	return ctx.JSON(http.StatusOK, slip)
}

func (api *salaryApi) computeAll(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionComputeSalary)
	if err != nil {
		return err
	}

	month, year, err := parseCycle(ctx)
	if err != nil {
		return err
	}

	slips, err := api.opts.SalarySvc.ComputeAll(ctx.Request().Context(), scope, month, year)
	if err != nil {
		return errors.Wrap(err, "computing salaries")
	}
	if slips == nil {
		slips = []salary.Slip{}
	}
	return ctx.JSON(http.StatusOK, slips)
}
