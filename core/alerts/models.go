package alerts

import (
	"context"
	"time"
)

type ExamOutcome string

const (
	ExamPass ExamOutcome = "pass"
	ExamFail ExamOutcome = "fail"
)

// ExamResult is a recorded exam outcome consumed by certificate eligibility.
type ExamResult struct {
	ID         string      `json:"id"`
	TenantID   string      `json:"tenant_id"`
	StudentID  string      `json:"student_id"`
	Exam       string      `json:"exam"`
	Outcome    ExamOutcome `json:"outcome"`
	RecordedAt time.Time   `json:"recorded_at"` // UTC
}

// ExamResultSource provides recorded exam outcomes.
type ExamResultSource interface {
	QueryExamResults(ctx context.Context, tenantID, studentID string) ([]ExamResult, error)
	CreateExamResult(ctx context.Context, res ExamResult) (ExamResult, error)
}

// StudentAlerts is the per-student derived state shown on dashboards. It is
// recomputed from the ledgers on demand; nothing here is persisted.
type StudentAlerts struct {
	StudentID           string  `json:"student_id"`
	Name                string  `json:"name"`
	DueAmount           float64 `json:"due_amount"`
	HighDue             bool    `json:"high_due"`
	AttendancePct       int     `json:"attendance_pct"`
	ExamEligible        bool    `json:"exam_eligible"`
	CertificateEligible bool    `json:"certificate_eligible"`
	AbsenceStreak       bool    `json:"absence_streak"`
	HighRiskAbsence     bool    `json:"high_risk_absence"`
}

// Dashboard is a tenant-wide derived snapshot.
type Dashboard struct {
	TenantID             string          `json:"tenant_id"`
	GeneratedAt          time.Time       `json:"generated_at"` // UTC
	TotalDue             float64         `json:"total_due"`
	HighDueCount         int             `json:"high_due_count"`
	DroppedCount         int             `json:"dropped_count"`
	PendingApprovalCount int             `json:"pending_approval_count"`
	Students             []StudentAlerts `json:"students"`
}

// SnapshotCache holds short-lived dashboard snapshots. Purely an
// optimization: a miss or failure always falls back to recomputation.
type SnapshotCache interface {
	GetDashboard(ctx context.Context, tenantID string) (Dashboard, bool)
	SetDashboard(ctx context.Context, d Dashboard)
}
