package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/attendance"
	"github.com/chuodev/chuo/core/auth"
	"github.com/chuodev/chuo/core/fees"
	"github.com/chuodev/chuo/core/principal"
)

var nowFunc = time.Now // mockable

type Service struct {
	attendance attendance.Repository
	fees       fees.Repository
	principals *principal.Service
	exams      ExamResultSource
	cache      SnapshotCache // may be nil
	conf       *core.Config
}

func NewService(
	attRepo attendance.Repository,
	feesRepo fees.Repository,
	principals *principal.Service,
	exams ExamResultSource,
	cache SnapshotCache,
	conf *core.Config,
) *Service {
	return &Service{
		attendance: attRepo,
		fees:       feesRepo,
		principals: principals,
		exams:      exams,
		cache:      cache,
		conf:       conf,
	}
}

// ExamEligible applies the attendance-percentage threshold.
func ExamEligible(pct float64, minPct float64) bool {
	return pct >= minPct
}

// CertificateEligible requires the attendance threshold plus a recorded
// all-pass exam history; a student with no recorded results is not eligible.
func CertificateEligible(pct float64, minPct float64, results []ExamResult) bool {
	if pct < minPct || len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Outcome != ExamPass {
			return false
		}
	}
	return true
}

// RecordExamResult stores an exam outcome for later eligibility derivation.
// The student must exist in the caller's tenant.
func (svc *Service) RecordExamResult(ctx context.Context, scope auth.EffectiveScope, studentID, exam string, outcome ExamOutcome) (ExamResult, error) {
	if _, err := svc.principals.GetStudent(ctx, scope.TenantID, studentID); err != nil {
		return ExamResult{}, err
	}
	res := ExamResult{
		ID:         uuid.New().String(),
		TenantID:   scope.TenantID,
		StudentID:  studentID,
		Exam:       exam,
		Outcome:    outcome,
		RecordedAt: nowFunc().UTC(),
	}
	return svc.exams.CreateExamResult(ctx, res)
}

// QueryExamResults lists a student's recorded exam outcomes.
func (svc *Service) QueryExamResults(ctx context.Context, scope auth.EffectiveScope, studentID string) ([]ExamResult, error) {
	return svc.exams.QueryExamResults(ctx, scope.TenantID, studentID)
}

// StudentAlerts derives one student's alert/eligibility state.
func (svc *Service) StudentAlerts(ctx context.Context, scope auth.EffectiveScope, std principal.Student) (StudentAlerts, error) {
	now := nowFunc().UTC()
	records, err := svc.attendance.QueryBySubject(ctx, scope.TenantID, std.ID, std.AdmissionDate, core.DateOf(now))
	if err != nil {
		return StudentAlerts{}, err
	}
	results, err := svc.exams.QueryExamResults(ctx, scope.TenantID, std.ID)
	if err != nil {
		return StudentAlerts{}, err
	}

	thresholds := svc.conf.Alerts
	pct := attendance.PercentagePrecise(attendance.PresentCount(records), len(records))
	return StudentAlerts{
		StudentID:           std.ID,
		Name:                std.Name,
		DueAmount:           std.DueAmount,
		HighDue:             std.DueAmount > thresholds.HighDueThreshold,
		AttendancePct:       attendance.Percentage(attendance.PresentCount(records), len(records)),
		ExamEligible:        ExamEligible(pct, thresholds.ExamEligibilityMinPct),
		CertificateEligible: CertificateEligible(pct, thresholds.CertificateMinPct, results),
		AbsenceStreak:       attendance.HasAbsenceStreak(records, now, thresholds.AbsenceStreakWindow),
		HighRiskAbsence:     attendance.HasAbsenceStreak(records, now, thresholds.HighRiskStreakWindow),
	}, nil
}

// Dashboard derives the tenant-wide snapshot. A cached copy within its TTL is
// served as-is; everything else is recomputed from the ledgers.
func (svc *Service) Dashboard(ctx context.Context, scope auth.EffectiveScope) (Dashboard, error) {
	if svc.cache != nil {
		if d, ok := svc.cache.GetDashboard(ctx, scope.TenantID); ok {
			return d, nil
		}
	}

	students, err := svc.principals.QueryStudents(ctx, scope.TenantID)
	if err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{
		TenantID:    scope.TenantID,
		GeneratedAt: nowFunc().UTC(),
		Students:    make([]StudentAlerts, 0, len(students)),
	}

	for _, std := range students {
		sa, err := svc.StudentAlerts(ctx, scope, std)
		if err != nil {
			return Dashboard{}, err
		}
		if sa.HighDue {
			d.HighDueCount++
		}
		d.Students = append(d.Students, sa)
	}

	d.TotalDue, err = svc.fees.TotalDue(ctx, scope.TenantID, svc.conf.Alerts.IncludeInactiveDues)
	if err != nil {
		return Dashboard{}, err
	}
	d.DroppedCount, err = svc.attendance.CountFollowUpsByStatus(ctx, scope.TenantID, attendance.FollowUpDropped)
	if err != nil {
		return Dashboard{}, err
	}
	d.PendingApprovalCount, err = svc.principals.CountStudentsByStatus(ctx, scope.TenantID, principal.StudentPending)
	if err != nil {
		return Dashboard{}, err
	}

	if svc.cache != nil {
		svc.cache.SetDashboard(ctx, d)
	}
	return d, nil
}
