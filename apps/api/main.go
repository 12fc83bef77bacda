package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	echoapi "github.com/chuodev/chuo/apps/api/echo"
	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/alerts"
	"github.com/chuodev/chuo/core/attendance"
	"github.com/chuodev/chuo/core/auth"
	"github.com/chuodev/chuo/core/fees"
	"github.com/chuodev/chuo/core/principal"
	"github.com/chuodev/chuo/core/salary"
	emailsvc "github.com/chuodev/chuo/services/email"
	logsvc "github.com/chuodev/chuo/services/logger"
	"github.com/chuodev/chuo/storage/cache"
	"github.com/chuodev/chuo/storage/database/postgres"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.LoadConfig()
	errAndDie(std, err)

	var logger core.Logger
	if conf.RollbarToken != "" {
		logger = logsvc.NewRollbarLogger(std, conf)
	} else {
		logger = logsvc.NewStdLogger(std)
	}

	// set up DB
	db, err := postgres.Open(conf.Database)
	errAndDie(std, err)
	defer db.Close()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	audit := postgres.NewAuditRecorder(db, logger)

	var snapshots alerts.SnapshotCache
	if c, err := cache.Open(conf.Redis); err != nil {
		logger.Warn("dashboard cache unavailable, recomputing on every read", err)
	} else {
		defer c.Close()
		snapshots = cache.NewDashboardCache(c)
	}

	principalRepo := postgres.NewPrincipalRepository(db)
	attendanceRepo := postgres.NewAttendanceRepository(db)
	feesRepo := postgres.NewFeesRepository(db)
	examRepo := postgres.NewExamRepository(db)

	principalSvc := principal.NewService(principalRepo, audit)
	attendanceSvc := attendance.NewService(attendanceRepo, principalSvc, audit, logger, mailSvc, conf)
	feeSvc := fees.NewService(feesRepo, principalSvc, nil, audit, logger, mailSvc)
	salarySvc := salary.NewService(attendanceRepo, principalSvc)
	alertSvc := alerts.NewService(attendanceRepo, feesRepo, principalSvc, examRepo, snapshots, conf)

	tokens := auth.NewTokenManager(conf)
	verifier := auth.NewVerifier(tokens, principalSvc)

	// start API server
	app := echoapi.NewServer(&echoapi.Options{
		Addr:          conf.Server.Addr,
		Conf:          conf,
		Logger:        logger,
		Audit:         audit,
		Tokens:        tokens,
		Verifier:      verifier,
		PrincipalSvc:  principalSvc,
		AttendanceSvc: attendanceSvc,
		FeeSvc:        feeSvc,
		SalarySvc:     salarySvc,
		AlertSvc:      alertSvc,
	})

	go app.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		logger.Error("stopping server", err)
	}
}

func errAndDie(std *log.Logger, err error) {
	if err != nil {
		std.Fatal(err)
	}
}
