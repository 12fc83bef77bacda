package salary_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/attendance"
	"github.com/chuodev/chuo/core/auth"
	"github.com/chuodev/chuo/core/principal"
	"github.com/chuodev/chuo/core/salary"
	logsvc "github.com/chuodev/chuo/services/logger"
	dummydb "github.com/chuodev/chuo/storage/database/dummy"
)

func TestComputeAll(t *testing.T) {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatal(err)
	}
	audit := core.NewLogAuditRecorder(logsvc.NewStdLogger(log.New(io.Discard, "", 0)))
	prinRepo := dummydb.NewPrincipalRepository(db)
	principals := principal.NewService(prinRepo, audit)
	attRepo := dummydb.NewAttendanceRepository(db)
	svc := salary.NewService(attRepo, principals)

	ctx := context.Background()
	now := time.Now().UTC()
	newStaff := func(id, name string, policy principal.SalaryPolicy) principal.Staff {
		stf, err := prinRepo.CreateStaff(ctx, principal.Staff{
			Principal: principal.Principal{
				ID: id, TenantID: "t1", Role: principal.RoleStaff,
				Name: name, Username: name, IsActive: true,
				CreatedAt: now, UpdatedAt: now,
			},
			Salary: policy,
		})
		if err != nil {
			t.Fatal(err)
		}
		return stf
	}

	perSession := newStaff("stf1", "asha", principal.SalaryPolicy{Type: principal.SalaryPerSession, Rate: 500})
	hourly := newStaff("stf2", "neema", principal.SalaryPolicy{Type: principal.SalaryHourly, Rate: 100})
	fixed := newStaff("stf3", "baraka", principal.SalaryPolicy{Type: principal.SalaryMonthlyFixed, Rate: 40000})

	record := func(staffID string, d int, in, out *time.Time) {
		rec := attendance.Record{
			ID:          staffID + "-mar-" + string(rune('0'+d)),
			TenantID:    "t1",
			SubjectID:   staffID,
			SubjectKind: attendance.KindStaff,
			Date:        time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC),
			Status:      attendance.StatusPresent,
			Method:      attendance.MethodQR,
			CheckIn:     in,
			CheckOut:    out,
			MarkedBy:    staffID,
			CreatedAt:   now,
		}
		if _, ok, err := attRepo.CreateIfAbsent(ctx, rec); err != nil || !ok {
			t.Fatalf("seeding record: ok=%v err=%v", ok, err)
		}
	}

	record(perSession.ID, 2, nil, nil)
	record(perSession.ID, 3, nil, nil)

	in := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	out := time.Date(2026, time.March, 2, 13, 30, 0, 0, time.UTC)
	record(hourly.ID, 2, &in, &out)

	scope := auth.EffectiveScope{TenantID: "t1", PrincipalID: "adm1", Role: principal.RoleAdmin}
	slips, err := svc.ComputeAll(ctx, scope, time.March, 2026)
	if err != nil {
		t.Fatalf("ComputeAll() error = %v", err)
	}
	if len(slips) != 3 {
		t.Fatalf("ComputeAll() len = %d, want 3", len(slips))
	}

	want := map[string]float64{
		perSession.ID: 1000, // 2 sessions x 500
		hourly.ID:     450,  // 4.5h x 100
		fixed.ID:      40000,
	}
	for _, slip := range slips {
		if slip.Amount != want[slip.StaffID] {
			t.Errorf("ComputeAll() %s amount = %v, want %v", slip.StaffID, slip.Amount, want[slip.StaffID])
		}
	}

	slip, err := svc.ComputeForStaff(ctx, scope, perSession.ID, time.March, 2026)
	if err != nil {
		t.Fatalf("ComputeForStaff() error = %v", err)
	}
	if slip.Sessions != 2 {
		t.Errorf("ComputeForStaff() sessions = %d, want 2", slip.Sessions)
	}

	if _, err := svc.ComputeForStaff(ctx, scope, "nope", time.March, 2026); err != principal.ErrNotFound {
		t.Errorf("ComputeForStaff() unknown staff error = %v, want ErrNotFound", err)
	}
}
