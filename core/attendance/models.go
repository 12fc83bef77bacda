package attendance

import (
	"fmt"
	"time"

	"github.com/chuodev/chuo/core"
)

type SubjectKind string

const (
	KindStudent SubjectKind = "student"
	KindStaff   SubjectKind = "staff"
)

func (k SubjectKind) Valid() bool {
	return k == KindStudent || k == KindStaff
}

type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	}
	return false
}

type Method string

const (
	MethodQR     Method = "qr"
	MethodManual Method = "manual"
	MethodFace   Method = "face"
)

func (m Method) Valid() bool {
	switch m {
	case MethodQR, MethodManual, MethodFace:
		return true
	}
	return false
}

// Record is one presence event. At most one record exists per
// (tenant, subject, date[, timeSlot]); the store enforces this atomically.
type Record struct {
	ID          string      `json:"id"`
	TenantID    string      `json:"tenant_id"`
	SubjectID   string      `json:"subject_id"`
	SubjectKind SubjectKind `json:"subject_kind"`
	Date        time.Time   `json:"date"` // day granularity, UTC
	TimeSlot    string      `json:"time_slot,omitempty"`
	Status      Status      `json:"status"`
	Method      Method      `json:"method"`
	CheckIn     *time.Time  `json:"check_in,omitempty"`
	CheckOut    *time.Time  `json:"check_out,omitempty"`
	MarkedBy    string      `json:"marked_by"`
	CreatedAt   time.Time   `json:"created_at"` // UTC
}

// Key returns the uniqueness key of the record within its tenant.
func (r Record) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", r.TenantID, r.SubjectID, r.Date.Format("2006-01-02"), r.TimeSlot)
}

// DuplicateError is the non-fatal "already marked" condition. It carries the
// existing record so callers can reconcile instead of failing blind.
type DuplicateError struct {
	Existing Record
}

func (e *DuplicateError) Error() string { return "attendance already marked" }

// CheckedOutError signals a third same-day self-attendance scan. Like
// DuplicateError it carries the conflicting record.
type CheckedOutError struct {
	Existing Record
}

func (e *CheckedOutError) Error() string { return "already checked out" }

// ScanPhase is the state reached by a staff self-attendance scan.
type ScanPhase string

const (
	PhaseCheckedIn  ScanPhase = "checked_in"
	PhaseCheckedOut ScanPhase = "checked_out"
)

type FollowUpStatus string

const (
	FollowUpPending  FollowUpStatus = "pending"
	FollowUpResolved FollowUpStatus = "resolved"
	FollowUpDropped  FollowUpStatus = "dropped"
)

func (s FollowUpStatus) Valid() bool {
	switch s {
	case FollowUpPending, FollowUpResolved, FollowUpDropped:
		return true
	}
	return false
}

// FollowUp is a staff call-back for a student absence. It only exists in
// response to a prior Absent record and is mutated only by the staff member
// who created it.
type FollowUp struct {
	ID               string         `json:"id"`
	TenantID         string         `json:"tenant_id"`
	StudentID        string         `json:"student_id"`
	StaffID          string         `json:"staff_id"`
	AbsentDate       time.Time      `json:"absent_date"`
	CallStatus       string         `json:"call_status,omitempty"`
	Reason           string         `json:"reason,omitempty"`
	Status           FollowUpStatus `json:"status"`
	NextFollowUpDate *time.Time     `json:"next_follow_up_date,omitempty"`
	CreatedAt        time.Time      `json:"created_at"` // UTC
	UpdatedAt        time.Time      `json:"updated_at"` // UTC
}

// MarkAttendance is the input to mark a subject's attendance.
type MarkAttendance struct {
	SubjectID   string      `json:"subject_id" validate:"required"`
	SubjectKind SubjectKind `json:"subject_kind" validate:"required"`
	Date        time.Time   `json:"date" validate:"required"`
	TimeSlot    string      `json:"time_slot"`
	Status      Status      `json:"status" validate:"required"`
	Method      Method      `json:"method"`
	QRPayload   string      `json:"qr_payload"`
}

func (ma *MarkAttendance) Validate() error {
	ma.SubjectID = core.CleanString(ma.SubjectID)
	ma.TimeSlot = core.CleanString(ma.TimeSlot)
	if ma.Method == "" {
		ma.Method = MethodManual
	}

	if err := core.Validate.Struct(ma); err != nil {
		return err
	}
	var flds []core.FieldError
	if !ma.SubjectKind.Valid() {
		flds = append(flds, core.FieldError{Field: "subject_kind", Error: "invalid subject kind"})
	}
	if !ma.Status.Valid() {
		flds = append(flds, core.FieldError{Field: "status", Error: "invalid status"})
	}
	if !ma.Method.Valid() {
		flds = append(flds, core.FieldError{Field: "method", Error: "invalid method"})
	}
	if ma.Method == MethodQR && ma.QRPayload == "" {
		flds = append(flds, core.FieldError{Field: "qr_payload", Error: "this field is required"})
	}
	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// NewFollowUp is the input to open a follow-up on an absence.
type NewFollowUp struct {
	StudentID        string     `json:"student_id" validate:"required"`
	AbsentDate       time.Time  `json:"absent_date" validate:"required"`
	CallStatus       string     `json:"call_status"`
	Reason           string     `json:"reason"`
	NextFollowUpDate *time.Time `json:"next_follow_up_date"`
}

func (nf *NewFollowUp) Validate() error {
	nf.StudentID = core.CleanString(nf.StudentID)
	nf.Reason = core.CleanString(nf.Reason)
	return core.Validate.Struct(nf)
}

// UpdateFollowUp mutates an existing follow-up.
type UpdateFollowUp struct {
	CallStatus       string         `json:"call_status"`
	Reason           string         `json:"reason"`
	Status           FollowUpStatus `json:"status" validate:"required"`
	NextFollowUpDate *time.Time     `json:"next_follow_up_date"`
}

func (uf *UpdateFollowUp) Validate() error {
	uf.Reason = core.CleanString(uf.Reason)
	if err := core.Validate.Struct(uf); err != nil {
		return err
	}
	if !uf.Status.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "invalid status"})
	}
	return nil
}
