package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

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
	dummydb "github.com/chuodev/chuo/storage/database/dummy"
)

type testApp struct {
	server   echoapi.Server
	tokens   *auth.TokenManager
	prinRepo principal.Repository

	admin   principal.Principal
	staff   principal.Staff
	student principal.Student
}

func setup(t *testing.T) *testApp {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatal(err)
	}
	conf := &core.Config{
		TestMode:   true,
		AppName:    "Chuo",
		SecretKey:  []byte("test-secret"),
		AdminEmail: "admin@test.test",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Alerts: core.AlertsConfig{
			HighDueThreshold:      5000,
			ExamEligibilityMinPct: 75,
			CertificateMinPct:     75,
			AbsenceStreakWindow:   3,
			HighRiskStreakWindow:  5,
		},
	}
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	audit := core.NewLogAuditRecorder(logger)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	prinRepo := dummydb.NewPrincipalRepository(db)
	attRepo := dummydb.NewAttendanceRepository(db)
	feesRepo := dummydb.NewFeesRepository(db)
	examRepo := dummydb.NewExamRepository(db)

	principalSvc := principal.NewService(prinRepo, audit)
	attendanceSvc := attendance.NewService(attRepo, principalSvc, audit, logger, mailSvc, conf)
	feeSvc := fees.NewService(feesRepo, principalSvc, nil, audit, logger, mailSvc)
	salarySvc := salary.NewService(attRepo, principalSvc)
	alertSvc := alerts.NewService(attRepo, feesRepo, principalSvc, examRepo, nil, conf)

	tokens := auth.NewTokenManager(conf)
	verifier := auth.NewVerifier(tokens, principalSvc)

	app := &testApp{
		tokens:   tokens,
		prinRepo: prinRepo,
	}
	app.server = echoapi.NewServer(&echoapi.Options{
		DisableReqLogs: true,
		Conf:           conf,
		Logger:         logger,
		Audit:          audit,
		Tokens:         tokens,
		Verifier:       verifier,
		PrincipalSvc:   principalSvc,
		AttendanceSvc:  attendanceSvc,
		FeeSvc:         feeSvc,
		SalarySvc:      salarySvc,
		AlertSvc:       alertSvc,
	})

	ctx := context.Background()
	now := time.Now().UTC()

	admin := principal.Principal{
		ID: "adm1", TenantID: "t1", Role: principal.RoleAdmin,
		Name: "Amina", Username: "amina", IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := admin.SetPassword("Adm1n&pwd"); err != nil {
		t.Fatal(err)
	}
	if app.admin, err = prinRepo.CreateAdmin(ctx, admin); err != nil {
		t.Fatal(err)
	}

	staff := principal.Staff{
		Principal: principal.Principal{
			ID: "stf1", TenantID: "t1", Role: principal.RoleStaff,
			Name: "Asha", Username: "asha", IsActive: true,
			CreatedAt: now, UpdatedAt: now,
		},
		Salary: principal.SalaryPolicy{Type: principal.SalaryPerSession, Rate: 500},
	}
	if err := staff.SetPassword("St4ff&pwd"); err != nil {
		t.Fatal(err)
	}
	if app.staff, err = prinRepo.CreateStaff(ctx, staff); err != nil {
		t.Fatal(err)
	}

	student := principal.Student{
		Principal: principal.Principal{
			ID: "std1", TenantID: "t1", Role: principal.RoleStudent,
			Name: "Juma", Username: "juma", IsActive: true,
			CreatedAt: now, UpdatedAt: now,
		},
		AdmissionDate: core.DateOf(now.AddDate(0, -2, 0)),
		TotalFees:     10000,
		DueAmount:     10000,
		Status:        principal.StudentActive,
	}
	if err := student.SetPassword("Stud3nt&pwd"); err != nil {
		t.Fatal(err)
	}
	if app.student, err = prinRepo.CreateStudent(ctx, student); err != nil {
		t.Fatal(err)
	}

	return app
}

func (app *testApp) getToken(t *testing.T, prin principal.Principal) string {
	t.Helper()
	token, err := app.tokens.Generate(app.tokens.Claims(prin))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

type httpErr struct {
	Error string `json:"error"`
}

func checkError(t *testing.T, rec *httptest.ResponseRecorder, wantCode int, wantError string) {
	t.Helper()
	if rec.Code != wantCode {
		t.Errorf("code = %v; wantCode %v; body %s", rec.Code, wantCode, rec.Body.String())
	}
	var herr httpErr
	if err := json.Unmarshal(rec.Body.Bytes(), &herr); err != nil {
		t.Fatalf("unmarshalling error body failed: %v; body %s", err, rec.Body.String())
	}
	if herr.Error != wantError {
		t.Errorf("error = %q; want %q", herr.Error, wantError)
	}
}

func Test_home(t *testing.T) {
	app := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	app.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("code = %v; wantCode %v", rec.Code, http.StatusOK)
	}
	if body := rec.Body.String(); body != "Welcome to Chuo API!" {
		t.Errorf("body = %q", body)
	}
}

func Test_principalApi_login(t *testing.T) {
	app := setup(t)

	login := func(role, uname, pwd string) *httptest.ResponseRecorder {
		body := marshallObj(t, echoapi.LoginRequest{Role: role, Username: uname, Password: pwd})
		req, rec := newRequest(http.MethodPost, "/v1/principals/login", body)
		app.server.ServeHTTP(rec, req)
		return rec
	}

	t.Run("success", func(t *testing.T) {
		rec := login("staff", "asha", "St4ff&pwd")
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp echoapi.LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		claims, err := app.tokens.Parse(resp.Token)
		if err != nil {
			t.Fatalf("Parse() error = %v, wantErr false", err)
		}
		if claims.Subject != app.staff.ID {
			t.Errorf("claims.Subject = %q, want %q", claims.Subject, app.staff.ID)
		}
		if claims.TenantID != "t1" {
			t.Errorf("claims.TenantID = %q, want %q", claims.TenantID, "t1")
		}
	})

	t.Run("username is case-insensitive", func(t *testing.T) {
		if rec := login("staff", " ASHA ", "St4ff&pwd"); rec.Code != http.StatusOK {
			t.Errorf("code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		checkError(t, login("staff", "asha", "nope"), http.StatusBadRequest, "authentication failed")
	})

	t.Run("unknown username", func(t *testing.T) {
		checkError(t, login("staff", "ghost", "St4ff&pwd"), http.StatusBadRequest, "authentication failed")
	})

	t.Run("wrong credential space", func(t *testing.T) {
		// a staff password does not open a student session
		checkError(t, login("student", "asha", "St4ff&pwd"), http.StatusBadRequest, "authentication failed")
	})

	t.Run("invalid role", func(t *testing.T) {
		if rec := login("superuser", "asha", "St4ff&pwd"); rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; wantCode %v", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("deactivated account", func(t *testing.T) {
		ctx := context.Background()
		if err := app.prinRepo.SetPrincipalActive(ctx, "t1", app.staff.ID, false); err != nil {
			t.Fatal(err)
		}
		defer func() {
			if err := app.prinRepo.SetPrincipalActive(ctx, "t1", app.staff.ID, true); err != nil {
				t.Fatal(err)
			}
		}()
		checkError(t, login("staff", "asha", "St4ff&pwd"), http.StatusForbidden, "account deactivated")
	})
}

func Test_principalApi_authorization(t *testing.T) {
	app := setup(t)

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/principals/students")
		app.server.ServeHTTP(rec, req)
		checkError(t, rec, http.StatusUnauthorized, "missing or malformed jwt")
	})

	t.Run("garbage token", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/principals/students", "no.such.token")
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("code = %v; wantCode %v", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("stale token is rejected once the principal is deactivated", func(t *testing.T) {
		token := app.getToken(t, app.staff.Principal)
		ctx := context.Background()
		if err := app.prinRepo.SetPrincipalActive(ctx, "t1", app.staff.ID, false); err != nil {
			t.Fatal(err)
		}
		defer func() {
			if err := app.prinRepo.SetPrincipalActive(ctx, "t1", app.staff.ID, true); err != nil {
				t.Fatal(err)
			}
		}()
		req, rec := newAuthRequest(http.MethodGet, "/v1/principals/students", token)
		app.server.ServeHTTP(rec, req)
		checkError(t, rec, http.StatusUnauthorized, "not authenticated")
	})

	t.Run("admin required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/principals/staff", app.getToken(t, app.student.Principal))
		app.server.ServeHTTP(rec, req)
		checkError(t, rec, http.StatusForbidden, "permission denied")
	})

	t.Run("tenant override is confined", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/principals/students?tenant_id=t2", app.getToken(t, app.admin))
		app.server.ServeHTTP(rec, req)
		checkError(t, rec, http.StatusForbidden, "permission denied")
	})

	t.Run("student sees only self", func(t *testing.T) {
		token := app.getToken(t, app.student.Principal)

		req, rec := newAuthRequest(http.MethodGet, "/v1/principals/students", token)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var students []principal.Student
		if err := json.Unmarshal(rec.Body.Bytes(), &students); err != nil {
			t.Fatal(err)
		}
		if assert.Len(t, students, 1) {
			assert.Equal(t, app.student.ID, students[0].ID)
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/principals/students/other", token)
		app.server.ServeHTTP(rec, req)
		checkError(t, rec, http.StatusForbidden, "permission denied")
	})

	t.Run("no self-deactivation", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/principals/"+app.admin.ID, app.getToken(t, app.admin))
		app.server.ServeHTTP(rec, req)
		checkError(t, rec, http.StatusForbidden, "permission denied")
	})
}

func Test_principalApi_createStaff(t *testing.T) {
	app := setup(t)

	body := marshallObj(t, principal.NewStaff{
		TenantID:        "ignored", // pinned to the caller's tenant
		Name:            "Neema",
		Username:        "neema",
		Password:        "Str0ng&pwd",
		PasswordConfirm: "Str0ng&pwd",
		Salary:          principal.SalaryPolicy{Type: principal.SalaryHourly, Rate: 100},
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/principals/staff", app.getToken(t, app.admin), body)
	app.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var stf principal.Staff
	if err := json.Unmarshal(rec.Body.Bytes(), &stf); err != nil {
		t.Fatal(err)
	}
	if stf.TenantID != "t1" {
		t.Errorf("TenantID = %q, want %q", stf.TenantID, "t1")
	}
	if !stf.IsActive {
		t.Error("created staff not active")
	}

	// duplicate username surfaces as a field error
	req, rec = newAuthRequest(http.MethodPost, "/v1/principals/staff", app.getToken(t, app.admin), body)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("code = %v; wantCode %v; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
	var fldErrs map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &fldErrs); err != nil {
		t.Fatal(err)
	}
	if _, ok := fldErrs["username"]; !ok {
		t.Errorf("field errors = %v; want username entry", fldErrs)
	}
}

func Test_attendanceApi_mark(t *testing.T) {
	app := setup(t)
	token := app.getToken(t, app.staff.Principal)
	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	body := marshallObj(t, attendance.MarkAttendance{
		SubjectID:   app.student.ID,
		SubjectKind: attendance.KindStudent,
		Date:        date,
		Status:      attendance.StatusPresent,
		Method:      attendance.MethodManual,
	})

	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", token, body)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var created attendance.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.MarkedBy != app.staff.ID {
		t.Errorf("MarkedBy = %q, want %q", created.MarkedBy, app.staff.ID)
	}

	t.Run("duplicate returns the existing record", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", token, body)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusConflict {
			t.Fatalf("code = %v; wantCode %v; body %s", rec.Code, http.StatusConflict, rec.Body.String())
		}
		var conflict struct {
			Error    string            `json:"error"`
			Existing attendance.Record `json:"existing"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &conflict); err != nil {
			t.Fatal(err)
		}
		if conflict.Error != "attendance already marked" {
			t.Errorf("error = %q", conflict.Error)
		}
		if conflict.Existing.ID != created.ID {
			t.Errorf("existing.ID = %q, want %q", conflict.Existing.ID, created.ID)
		}
	})

	t.Run("students cannot mark", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", app.getToken(t, app.student.Principal), body)
		app.server.ServeHTTP(rec, req)
		checkError(t, rec, http.StatusForbidden, "permission denied")
	})

	t.Run("unknown subject", func(t *testing.T) {
		body := marshallObj(t, attendance.MarkAttendance{
			SubjectID:   "ghost",
			SubjectKind: attendance.KindStudent,
			Date:        date,
			Status:      attendance.StatusPresent,
			Method:      attendance.MethodManual,
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", token, body)
		app.server.ServeHTTP(rec, req)
		checkError(t, rec, http.StatusNotFound, "not found")
	})
}

func Test_attendanceApi_scan(t *testing.T) {
	app := setup(t)
	token := app.getToken(t, app.staff.Principal)

	scan := func(payload string) *httptest.ResponseRecorder {
		body := marshallObj(t, echoapi.ScanRequest{QRPayload: payload})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/scan", token, body)
		app.server.ServeHTTP(rec, req)
		return rec
	}

	rec := scan(app.staff.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp echoapi.ScanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Phase != attendance.PhaseCheckedIn {
		t.Errorf("phase = %q, want %q", resp.Phase, attendance.PhaseCheckedIn)
	}

	if rec := scan(app.staff.ID); rec.Code != http.StatusOK {
		t.Fatalf("second scan code = %v; body %s", rec.Code, rec.Body.String())
	}

	// third scan of the day conflicts
	if rec := scan(app.staff.ID); rec.Code != http.StatusConflict {
		t.Errorf("third scan code = %v; wantCode %v", rec.Code, http.StatusConflict)
	}

	// scanning someone else's code never works
	checkError(t, scan(app.student.ID), http.StatusForbidden, "scanned identity does not match subject")
}

func Test_principalApi_tokenRefresh(t *testing.T) {
	app := setup(t)

	req, rec := newAuthRequest(http.MethodPost, "/v1/principals/token-refresh", app.getToken(t, app.staff.Principal))
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp echoapi.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if _, err := app.tokens.Parse(resp.Token); err != nil {
		t.Errorf("Parse() error = %v, wantErr false", err)
	}
}

func Test_studentCrossRead(t *testing.T) {
	app := setup(t)
	token := app.getToken(t, app.student.Principal)

	// a student naming any other subject in the path is refused outright
	for _, path := range []string{
		"/v1/attendance/subject/" + app.staff.ID,
		"/v1/attendance/subject/" + app.staff.ID + "/percentage",
		"/v1/fees/payments/student/other",
		"/v1/fees/next-due/other",
	} {
		req, rec := newAuthRequest(http.MethodGet, path, token)
		app.server.ServeHTTP(rec, req)
		checkError(t, rec, http.StatusForbidden, "permission denied")
	}

	// reading their own ledger still works
	req, rec := newAuthRequest(http.MethodGet, "/v1/fees/payments/student/"+app.student.ID, token)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("self read code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}
