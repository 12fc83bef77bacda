package dummydb

import (
	"context"

	"github.com/chuodev/chuo/core/alerts"
)

type examRepository struct {
	db *examTable
}

var _ alerts.ExamResultSource = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) alerts.ExamResultSource {
	return &examRepository{db: db.exams}
}

func (repo *examRepository) CreateExamResult(_ context.Context, res alerts.ExamResult) (alerts.ExamResult, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.results = append(repo.db.results, res)
	return res, nil
}

func (repo *examRepository) QueryExamResults(_ context.Context, tenantID, studentID string) ([]alerts.ExamResult, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var results []alerts.ExamResult
	for _, r := range repo.db.results {
		if r.TenantID == tenantID && r.StudentID == studentID {
			results = append(results, r)
		}
	}
	return results, nil
}
