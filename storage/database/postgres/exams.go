package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/chuodev/chuo/core/alerts"
)

type examRepository struct {
	db *sqlx.DB
}

var _ alerts.ExamResultSource = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *sqlx.DB) alerts.ExamResultSource {
	return &examRepository{db: db}
}

type examResultRow struct {
	ID         string    `db:"id"`
	TenantID   string    `db:"tenant_id"`
	StudentID  string    `db:"student_id"`
	Exam       string    `db:"exam"`
	Outcome    string    `db:"outcome"`
	RecordedAt time.Time `db:"recorded_at"`
}

func (repo *examRepository) CreateExamResult(ctx context.Context, res alerts.ExamResult) (alerts.ExamResult, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO exam_results (id, tenant_id, student_id, exam, outcome, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		res.ID, res.TenantID, res.StudentID, res.Exam, string(res.Outcome), res.RecordedAt,
	)
	if err != nil {
		return alerts.ExamResult{}, err
	}
	return res, nil
}

func (repo *examRepository) QueryExamResults(ctx context.Context, tenantID, studentID string) ([]alerts.ExamResult, error) {
	var rows []examResultRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM exam_results
		WHERE tenant_id = $1 AND student_id = $2
		ORDER BY recorded_at`,
		tenantID, studentID,
	)
	if err != nil {
		return nil, err
	}
	results := make([]alerts.ExamResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, alerts.ExamResult{
			ID:         r.ID,
			TenantID:   r.TenantID,
			StudentID:  r.StudentID,
			Exam:       r.Exam,
			Outcome:    alerts.ExamOutcome(r.Outcome),
			RecordedAt: r.RecordedAt.UTC(),
		})
	}
	return results, nil
}
