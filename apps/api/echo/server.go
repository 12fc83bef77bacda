package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/alerts"
	"github.com/chuodev/chuo/core/attendance"
	"github.com/chuodev/chuo/core/auth"
	"github.com/chuodev/chuo/core/fees"
	"github.com/chuodev/chuo/core/principal"
	"github.com/chuodev/chuo/core/salary"
)

type (
	Options struct {
		Addr           string
		DisableReqLogs bool

		Conf   *core.Config
		Logger core.Logger
		Audit  core.AuditRecorder

		Tokens   *auth.TokenManager
		Verifier *auth.Verifier

		PrincipalSvc  *principal.Service
		AttendanceSvc *attendance.Service
		FeeSvc        *fees.Service
		SalarySvc     *salary.Service
		AlertSvc      *alerts.Service
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo

		shutdown chan struct{}
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		shutdown: make(chan struct{}, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))
	identified := identityMiddleware(s.opts.Verifier, s.opts.Audit)

	registerPrincipalAPI(v1, jwt, identified, s.opts)
	registerAttendanceAPI(v1, jwt, identified, s.opts)
	registerFeesAPI(v1, jwt, identified, s.opts)
	registerSalaryAPI(v1, jwt, identified, s.opts)
	registerAlertsAPI(v1, jwt, identified, s.opts)
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- struct{}{}:
	default:
	}
}

// ShutdownSignal fires when a fatal error asks for a graceful stop.
func (s *server) ShutdownSignal() <-chan struct{} { return s.shutdown }

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Addr))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Chuo API!")
}
