package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/auth"
	"github.com/chuodev/chuo/core/principal"
)

type principalApi struct {
	opts *Options
}

func registerPrincipalAPI(g *echo.Group, jwt, identified echo.MiddlewareFunc, opts *Options) {
	api := principalApi{opts: opts}

	pg := g.Group("/principals")

	// un-authed endpoints
	pg.POST("/login", api.login)

	// authed endpoints
	ag := pg.Group("", jwt, identified)
	ag.POST("/token-refresh", api.refreshToken)
	ag.POST("/staff", api.createStaff, adminMiddleware())
	ag.POST("/students", api.createStudent, adminMiddleware())
	ag.GET("/staff", api.queryStaff, adminMiddleware())
	ag.GET("/students", api.queryStudents)
	ag.GET("/students/:id", api.retrieveStudent)
	ag.PUT("/password", api.changePassword)
	ag.DELETE("/:id", api.deactivate, adminMiddleware())
}

// Handlers

func (api *principalApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := authenticate(ctx, principal.Role(data.Role), data.Username, data.Password, api.opts)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.opts.Tokens.Generate(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *principalApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.opts)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *principalApi) createStaff(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionManagePrincipal)
	if err != nil {
		return err
	}

	var data principal.NewStaff
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStaff")
	}
	data.TenantID = scope.TenantID
	if err := data.Validate(api.opts.PrincipalSvc); err != nil {
		return err
	}

	actor, err := api.opts.PrincipalSvc.GetByID(ctx.Request().Context(), scope.PrincipalID)
	if err != nil {
		return errors.Wrap(err, "getting acting principal")
	}
	stf, err := api.opts.PrincipalSvc.CreateStaff(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating staff")
	}
	return ctx.JSON(http.StatusCreated, stf)
}

func (api *principalApi) createStudent(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionManagePrincipal)
	if err != nil {
		return err
	}

	var data principal.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	data.TenantID = scope.TenantID
	if err := data.Validate(api.opts.PrincipalSvc); err != nil {
		return err
	}

	actor, err := api.opts.PrincipalSvc.GetByID(ctx.Request().Context(), scope.PrincipalID)
	if err != nil {
		return errors.Wrap(err, "getting acting principal")
	}
	std, err := api.opts.PrincipalSvc.CreateStudent(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *principalApi) queryStaff(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionManagePrincipal)
	if err != nil {
		return err
	}
	staff, err := api.opts.PrincipalSvc.QueryStaff(ctx.Request().Context(), scope.TenantID)
	if err != nil {
		return errors.Wrap(err, "querying staff")
	}
	if staff == nil {
		staff = []principal.Staff{}
	}
	return ctx.JSON(http.StatusOK, staff)
}

func (api *principalApi) queryStudents(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionReadAttendance)
	if err != nil {
		return err
	}
	if scope.Role == principal.RoleStudent {
		// students only ever see themselves
		std, err := api.opts.PrincipalSvc.GetStudent(ctx.Request().Context(), scope.TenantID, scope.SubjectID)
		if err != nil {
			return errors.Wrap(err, "getting student")
		}
		return ctx.JSON(http.StatusOK, []principal.Student{std})
	}

	students, err := api.opts.PrincipalSvc.QueryStudents(ctx.Request().Context(), scope.TenantID)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []principal.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *principalApi) retrieveStudent(ctx echo.Context) error {
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
	return ctx.JSON(http.StatusOK, std)
}

func (api *principalApi) changePassword(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	var data principal.ChangePassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	prin, err := api.opts.PrincipalSvc.GetByID(ctx.Request().Context(), id.PrincipalID)
	if err != nil {
		return errors.Wrap(err, "getting principal")
	}
	if err := api.opts.PrincipalSvc.RotateCredential(ctx.Request().Context(), prin, data.Password); err != nil {
		return errors.Wrap(err, "rotating credential")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been changed."})
}

func (api *principalApi) deactivate(ctx echo.Context) error {
	scope, err := getScope(ctx, auth.ActionManagePrincipal)
	if err != nil {
		return err
	}
	// no self-deactivation
	if ctx.Param("id") == scope.PrincipalID {
		return errHTTPForbidden
	}

	actor, err := api.opts.PrincipalSvc.GetByID(ctx.Request().Context(), scope.PrincipalID)
	if err != nil {
		return errors.Wrap(err, "getting acting principal")
	}
	if err := api.opts.PrincipalSvc.Deactivate(ctx.Request().Context(), actor, scope.TenantID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deactivating principal")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	LoginRequest struct {
		Role     string `json:"role" validate:"required,oneof=admin staff student"`
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return core.Validate.Struct(lr)
}
