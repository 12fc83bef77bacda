package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/chuodev/chuo/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

// CreateIfAbsent inserts the record unless one already exists for its
// (tenant, subject, date, slot) key; the existing record wins the race.
func (repo *attendanceRepository) CreateIfAbsent(_ context.Context, rec attendance.Record) (attendance.Record, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := rec.Key()
	if existing, ok := repo.db.records[key]; ok {
		return *existing, false, nil
	}
	repo.db.records[key] = &rec
	repo.db.recordIDs[rec.ID] = key
	return rec, true, nil
}

func (repo *attendanceRepository) Get(_ context.Context, tenantID, subjectID string, date time.Time, timeSlot string) (attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	key := attendance.Record{TenantID: tenantID, SubjectID: subjectID, Date: date, TimeSlot: timeSlot}.Key()
	if rec, ok := repo.db.records[key]; ok {
		return *rec, nil
	}
	return attendance.Record{}, attendance.ErrRecordNotFound
}

func (repo *attendanceRepository) SetCheckOut(_ context.Context, tenantID, recordID string, t time.Time) (attendance.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key, ok := repo.db.recordIDs[recordID]
	if !ok {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	rec := repo.db.records[key]
	if rec.TenantID != tenantID {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	rec.CheckOut = &t
	return *rec, nil
}

func (repo *attendanceRepository) QueryBySubject(_ context.Context, tenantID, subjectID string, from, to time.Time) ([]attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var records []attendance.Record
	for _, rec := range repo.db.records {
		if rec.TenantID != tenantID || rec.SubjectID != subjectID {
			continue
		}
		if rec.Date.Before(from) || rec.Date.After(to) {
			continue
		}
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

func (repo *attendanceRepository) QueryByDate(_ context.Context, tenantID string, date time.Time, kind attendance.SubjectKind) ([]attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var records []attendance.Record
	for _, rec := range repo.db.records {
		if rec.TenantID == tenantID && rec.SubjectKind == kind && rec.Date.Equal(date) {
			records = append(records, *rec)
		}
	}
	return records, nil
}

func (repo *attendanceRepository) CreateFollowUp(_ context.Context, fu attendance.FollowUp) (attendance.FollowUp, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.followups[fu.ID] = &fu
	return fu, nil
}

func (repo *attendanceRepository) GetFollowUp(_ context.Context, tenantID, id string) (attendance.FollowUp, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if fu, ok := repo.db.followups[id]; ok && fu.TenantID == tenantID {
		return *fu, nil
	}
	return attendance.FollowUp{}, attendance.ErrFollowUpNotFound
}

func (repo *attendanceRepository) UpdateFollowUp(_ context.Context, fu attendance.FollowUp) (attendance.FollowUp, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.followups[fu.ID]
	if !ok || orig.TenantID != fu.TenantID {
		return attendance.FollowUp{}, attendance.ErrFollowUpNotFound
	}
	repo.db.followups[fu.ID] = &fu
	return fu, nil
}

func (repo *attendanceRepository) QueryFollowUps(_ context.Context, tenantID string, status attendance.FollowUpStatus) ([]attendance.FollowUp, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var fus []attendance.FollowUp
	for _, fu := range repo.db.followups {
		if fu.TenantID != tenantID {
			continue
		}
		if status != "" && fu.Status != status {
			continue
		}
		fus = append(fus, *fu)
	}
	sort.Slice(fus, func(i, j int) bool { return fus[i].CreatedAt.Before(fus[j].CreatedAt) })
	return fus, nil
}

func (repo *attendanceRepository) CountFollowUpsByStatus(_ context.Context, tenantID string, status attendance.FollowUpStatus) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, fu := range repo.db.followups {
		if fu.TenantID == tenantID && fu.Status == status {
			n++
		}
	}
	return n, nil
}
