package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/chuodev/chuo/core/attendance"
)

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

type attendanceRow struct {
	ID          string       `db:"id"`
	TenantID    string       `db:"tenant_id"`
	SubjectID   string       `db:"subject_id"`
	SubjectKind string       `db:"subject_kind"`
	Date        time.Time    `db:"date"`
	TimeSlot    string       `db:"time_slot"`
	Status      string       `db:"status"`
	Method      string       `db:"method"`
	CheckIn     sql.NullTime `db:"check_in"`
	CheckOut    sql.NullTime `db:"check_out"`
	MarkedBy    string       `db:"marked_by"`
	CreatedAt   time.Time    `db:"created_at"`
}

func (r attendanceRow) toDomain() attendance.Record {
	rec := attendance.Record{
		ID:          r.ID,
		TenantID:    r.TenantID,
		SubjectID:   r.SubjectID,
		SubjectKind: attendance.SubjectKind(r.SubjectKind),
		Date:        r.Date.UTC(),
		TimeSlot:    r.TimeSlot,
		Status:      attendance.Status(r.Status),
		Method:      attendance.Method(r.Method),
		MarkedBy:    r.MarkedBy,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.CheckIn.Valid {
		t := r.CheckIn.Time.UTC()
		rec.CheckIn = &t
	}
	if r.CheckOut.Valid {
		t := r.CheckOut.Time.UTC()
		rec.CheckOut = &t
	}
	return rec
}

// CreateIfAbsent leans on the unique attendance key: ON CONFLICT DO NOTHING
// tells us whether we won the race; the loser reads the winner's record.
func (repo *attendanceRepository) CreateIfAbsent(ctx context.Context, rec attendance.Record) (attendance.Record, bool, error) {
	res, err := repo.db.ExecContext(ctx, `
		INSERT INTO attendance_records
			(id, tenant_id, subject_id, subject_kind, date, time_slot, status, method, check_in, check_out, marked_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT ON CONSTRAINT uniq_attendance_key DO NOTHING`,
		rec.ID, rec.TenantID, rec.SubjectID, string(rec.SubjectKind), rec.Date, rec.TimeSlot,
		string(rec.Status), string(rec.Method), rec.CheckIn, rec.CheckOut, rec.MarkedBy, rec.CreatedAt,
	)
	if err != nil {
		return attendance.Record{}, false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return attendance.Record{}, false, err
	} else if n == 1 {
		return rec, true, nil
	}

	existing, err := repo.Get(ctx, rec.TenantID, rec.SubjectID, rec.Date, rec.TimeSlot)
	if err != nil {
		return attendance.Record{}, false, err
	}
	return existing, false, nil
}

func (repo *attendanceRepository) Get(ctx context.Context, tenantID, subjectID string, date time.Time, timeSlot string) (attendance.Record, error) {
	var row attendanceRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT * FROM attendance_records
		WHERE tenant_id = $1 AND subject_id = $2 AND date = $3 AND time_slot = $4`,
		tenantID, subjectID, date, timeSlot,
	)
	if err == sql.ErrNoRows {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	if err != nil {
		return attendance.Record{}, err
	}
	return row.toDomain(), nil
}

func (repo *attendanceRepository) SetCheckOut(ctx context.Context, tenantID, recordID string, t time.Time) (attendance.Record, error) {
	var row attendanceRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE attendance_records SET check_out = $1
		WHERE tenant_id = $2 AND id = $3
		RETURNING *`,
		t, tenantID, recordID,
	)
	if err == sql.ErrNoRows {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	if err != nil {
		return attendance.Record{}, err
	}
	return row.toDomain(), nil
}

func (repo *attendanceRepository) QueryBySubject(ctx context.Context, tenantID, subjectID string, from, to time.Time) ([]attendance.Record, error) {
	var rows []attendanceRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM attendance_records
		WHERE tenant_id = $1 AND subject_id = $2 AND date BETWEEN $3 AND $4
		ORDER BY date`,
		tenantID, subjectID, from, to,
	)
	if err != nil {
		return nil, err
	}
	return rowsToDomain(rows), nil
}

func (repo *attendanceRepository) QueryByDate(ctx context.Context, tenantID string, date time.Time, kind attendance.SubjectKind) ([]attendance.Record, error) {
	var rows []attendanceRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM attendance_records
		WHERE tenant_id = $1 AND date = $2 AND subject_kind = $3`,
		tenantID, date, string(kind),
	)
	if err != nil {
		return nil, err
	}
	return rowsToDomain(rows), nil
}

func rowsToDomain(rows []attendanceRow) []attendance.Record {
	records := make([]attendance.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toDomain())
	}
	return records
}

type followUpRow struct {
	ID               string       `db:"id"`
	TenantID         string       `db:"tenant_id"`
	StudentID        string       `db:"student_id"`
	StaffID          string       `db:"staff_id"`
	AbsentDate       time.Time    `db:"absent_date"`
	CallStatus       string       `db:"call_status"`
	Reason           string       `db:"reason"`
	Status           string       `db:"status"`
	NextFollowUpDate sql.NullTime `db:"next_follow_up_date"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
}

func (r followUpRow) toDomain() attendance.FollowUp {
	fu := attendance.FollowUp{
		ID:         r.ID,
		TenantID:   r.TenantID,
		StudentID:  r.StudentID,
		StaffID:    r.StaffID,
		AbsentDate: r.AbsentDate.UTC(),
		CallStatus: r.CallStatus,
		Reason:     r.Reason,
		Status:     attendance.FollowUpStatus(r.Status),
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.NextFollowUpDate.Valid {
		t := r.NextFollowUpDate.Time.UTC()
		fu.NextFollowUpDate = &t
	}
	return fu
}

func (repo *attendanceRepository) CreateFollowUp(ctx context.Context, fu attendance.FollowUp) (attendance.FollowUp, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO follow_ups
			(id, tenant_id, student_id, staff_id, absent_date, call_status, reason, status, next_follow_up_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		fu.ID, fu.TenantID, fu.StudentID, fu.StaffID, fu.AbsentDate, fu.CallStatus, fu.Reason,
		string(fu.Status), fu.NextFollowUpDate, fu.CreatedAt, fu.UpdatedAt,
	)
	if err != nil {
		return attendance.FollowUp{}, err
	}
	return fu, nil
}

func (repo *attendanceRepository) GetFollowUp(ctx context.Context, tenantID, id string) (attendance.FollowUp, error) {
	var row followUpRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM follow_ups WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err == sql.ErrNoRows {
		return attendance.FollowUp{}, attendance.ErrFollowUpNotFound
	}
	if err != nil {
		return attendance.FollowUp{}, err
	}
	return row.toDomain(), nil
}

func (repo *attendanceRepository) UpdateFollowUp(ctx context.Context, fu attendance.FollowUp) (attendance.FollowUp, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE follow_ups
		SET call_status = $1, reason = $2, status = $3, next_follow_up_date = $4, updated_at = $5
		WHERE tenant_id = $6 AND id = $7`,
		fu.CallStatus, fu.Reason, string(fu.Status), fu.NextFollowUpDate, fu.UpdatedAt, fu.TenantID, fu.ID,
	)
	if err != nil {
		return attendance.FollowUp{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return attendance.FollowUp{}, err
	} else if n == 0 {
		return attendance.FollowUp{}, attendance.ErrFollowUpNotFound
	}
	return fu, nil
}

func (repo *attendanceRepository) QueryFollowUps(ctx context.Context, tenantID string, status attendance.FollowUpStatus) ([]attendance.FollowUp, error) {
	query := `SELECT * FROM follow_ups WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at`

	var rows []followUpRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	fus := make([]attendance.FollowUp, 0, len(rows))
	for _, r := range rows {
		fus = append(fus, r.toDomain())
	}
	return fus, nil
}

func (repo *attendanceRepository) CountFollowUpsByStatus(ctx context.Context, tenantID string, status attendance.FollowUpStatus) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM follow_ups WHERE tenant_id = $1 AND status = $2`,
		tenantID, string(status))
	return n, err
}
