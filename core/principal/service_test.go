package principal_test

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/principal"
	logsvc "github.com/chuodev/chuo/services/logger"
	dummydb "github.com/chuodev/chuo/storage/database/dummy"
)

func setup(t *testing.T) (*principal.Service, principal.Repository) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatal(err)
	}
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	audit := core.NewLogAuditRecorder(logger)
	repo := dummydb.NewPrincipalRepository(db)
	return principal.NewService(repo, audit), repo
}

func admin() principal.Principal {
	return principal.Principal{ID: "adm1", TenantID: "t1", Role: principal.RoleAdmin}
}

func TestCreateStaff(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	ns := principal.NewStaff{
		TenantID:        "t1",
		Name:            "Asha Mwinyi",
		Username:        "Asha ", // cleaned and lowercased by Validate
		Email:           "ASHA@test.test",
		Password:        "Str0ng&pwd",
		PasswordConfirm: "Str0ng&pwd",
		Salary:          principal.SalaryPolicy{Type: principal.SalaryPerSession, Rate: 500},
	}
	if err := ns.Validate(svc); err != nil {
		t.Fatalf("Validate() error = %v, wantErr false", err)
	}
	if ns.Username != "asha" {
		t.Errorf("Validate() username = %q, want %q", ns.Username, "asha")
	}
	if ns.Email != "asha@test.test" {
		t.Errorf("Validate() email = %q, want %q", ns.Email, "asha@test.test")
	}

	stf, err := svc.CreateStaff(ctx, admin(), ns)
	if err != nil {
		t.Fatalf("CreateStaff() error = %v, wantErr false", err)
	}
	if stf.ID == "" {
		t.Error("CreateStaff() did not assign an ID")
	}
	if !stf.IsActive {
		t.Error("CreateStaff() staff not active")
	}
	if stf.Role != principal.RoleStaff {
		t.Errorf("CreateStaff() role = %v, want %v", stf.Role, principal.RoleStaff)
	}
	if err := stf.CheckPassword("Str0ng&pwd"); err != nil {
		t.Errorf("CheckPassword() error = %v, wantErr false", err)
	}

	// same username in the same role's credential space
	dup := ns
	dup.Username = "asha"
	err = dup.Validate(svc)
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("Validate() error = %v, want *core.ValidationError", err)
	}
}

func TestCreateStudent(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	ns := principal.NewStudent{
		TenantID:        "t1",
		Name:            "Juma Bakari",
		Username:        "juma",
		Password:        "Str0ng&pwd",
		PasswordConfirm: "Str0ng&pwd",
		AdmissionDate:   time.Date(2026, time.January, 15, 10, 30, 0, 0, time.UTC),
		TotalFees:       10000,
	}
	if err := ns.Validate(svc); err != nil {
		t.Fatalf("Validate() error = %v, wantErr false", err)
	}
	std, err := svc.CreateStudent(ctx, admin(), ns)
	if err != nil {
		t.Fatalf("CreateStudent() error = %v, wantErr false", err)
	}
	if std.Status != principal.StudentActive {
		t.Errorf("CreateStudent() status = %v, want %v", std.Status, principal.StudentActive)
	}
	if std.DueAmount != std.TotalFees {
		t.Errorf("CreateStudent() due = %v, want %v", std.DueAmount, std.TotalFees)
	}
	if std.PaidAmount != 0 {
		t.Errorf("CreateStudent() paid = %v, want 0", std.PaidAmount)
	}
	if h := std.AdmissionDate.Hour(); h != 0 {
		t.Errorf("CreateStudent() admission date not truncated to midnight, hour = %d", h)
	}

	// a staff member may reuse a student's username; credential spaces are per role
	if err := repo.CheckUsernameUniqueness(ctx, principal.RoleStaff, "juma"); err != nil {
		t.Errorf("CheckUsernameUniqueness(staff) error = %v, wantErr false", err)
	}
	if err := repo.CheckUsernameUniqueness(ctx, principal.RoleStudent, "juma"); err != principal.ErrUsernameExists {
		t.Errorf("CheckUsernameUniqueness(student) error = %v, want %v", err, principal.ErrUsernameExists)
	}
}

func TestGetByUsername(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	ns := principal.NewStaff{
		TenantID: "t1", Name: "Neema", Username: "neema",
		Password: "Str0ng&pwd", PasswordConfirm: "Str0ng&pwd",
		Salary: principal.SalaryPolicy{Type: principal.SalaryHourly, Rate: 100},
	}
	if err := ns.Validate(svc); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateStaff(ctx, admin(), ns); err != nil {
		t.Fatal(err)
	}

	// lookup cleans and lowercases the input
	p, err := svc.GetByUsername(ctx, principal.RoleStaff, "  NEEMA ")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v, wantErr false", err)
	}
	if p.Username != "neema" {
		t.Errorf("GetByUsername() username = %q, want %q", p.Username, "neema")
	}

	if _, err := svc.GetByUsername(ctx, principal.RoleStudent, "neema"); err != principal.ErrNotFound {
		t.Errorf("GetByUsername() error = %v, want %v", err, principal.ErrNotFound)
	}
}

func TestDeactivate(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	ns := principal.NewStaff{
		TenantID: "t1", Name: "Asha", Username: "asha",
		Password: "Str0ng&pwd", PasswordConfirm: "Str0ng&pwd",
		Salary: principal.SalaryPolicy{Type: principal.SalaryMonthlyFixed, Rate: 40000},
	}
	if err := ns.Validate(svc); err != nil {
		t.Fatal(err)
	}
	stf, err := svc.CreateStaff(ctx, admin(), ns)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Deactivate(ctx, admin(), "t1", stf.ID); err != nil {
		t.Fatalf("Deactivate() error = %v, wantErr false", err)
	}
	got, err := repo.GetStaff(ctx, "t1", stf.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsActive {
		t.Error("Deactivate() staff still active")
	}

	// tenant mismatch must not touch the record
	if err := svc.Deactivate(ctx, admin(), "t2", stf.ID); err != principal.ErrNotFound {
		t.Errorf("Deactivate() error = %v, want %v", err, principal.ErrNotFound)
	}
}

func TestRotateCredential(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	ns := principal.NewStaff{
		TenantID: "t1", Name: "Asha", Username: "asha",
		Password: "Str0ng&pwd", PasswordConfirm: "Str0ng&pwd",
		Salary: principal.SalaryPolicy{Type: principal.SalaryPerSession, Rate: 500},
	}
	if err := ns.Validate(svc); err != nil {
		t.Fatal(err)
	}
	stf, err := svc.CreateStaff(ctx, admin(), ns)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.RotateCredential(ctx, stf.Principal, "N3w&secret"); err != nil {
		t.Fatalf("RotateCredential() error = %v, wantErr false", err)
	}
	got, err := repo.GetPrincipal(ctx, stf.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := got.CheckPassword("N3w&secret"); err != nil {
		t.Errorf("CheckPassword(new) error = %v, wantErr false", err)
	}
	if err := got.CheckPassword("Str0ng&pwd"); err == nil {
		t.Error("CheckPassword(old) still succeeds after rotation")
	}
}

func TestSetLastLogin(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	ns := principal.NewStaff{
		TenantID: "t1", Name: "Asha", Username: "asha",
		Password: "Str0ng&pwd", PasswordConfirm: "Str0ng&pwd",
		Salary: principal.SalaryPolicy{Type: principal.SalaryPerSession, Rate: 500},
	}
	if err := ns.Validate(svc); err != nil {
		t.Fatal(err)
	}
	stf, err := svc.CreateStaff(ctx, admin(), ns)
	if err != nil {
		t.Fatal(err)
	}

	p, err := svc.SetLastLogin(ctx, stf.Principal)
	if err != nil {
		t.Fatalf("SetLastLogin() error = %v, wantErr false", err)
	}
	if p.LastLogin.IsZero() {
		t.Error("SetLastLogin() did not stamp the login time")
	}
	got, err := repo.GetPrincipal(ctx, stf.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.LastLogin.Equal(p.LastLogin) {
		t.Errorf("SetLastLogin() persisted = %v, want %v", got.LastLogin, p.LastLogin)
	}
}
