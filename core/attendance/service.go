package attendance

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/chuodev/chuo/core"
	"github.com/chuodev/chuo/core/auth"
	"github.com/chuodev/chuo/core/principal"
)

var (
	// errors
	ErrSubjectNotFound    = errors.New("subject not found")
	ErrIdentityMismatch   = errors.New("scanned identity does not match subject")
	ErrRecordNotFound     = errors.New("attendance record not found")
	ErrFollowUpNotFound   = errors.New("follow-up not found")
	ErrNoAbsenceRecorded  = errors.New("no absence recorded for this date")
	ErrNotFollowUpCreator = errors.New("follow-up can only be changed by its creator")

	nowFunc = time.Now // mockable
)

type (
	// Repository is the persistence collaborator for the attendance ledger.
	// CreateIfAbsent must be atomic: under concurrent duplicate marking
	// exactly one record is created and the others observe it.
	Repository interface {
		CreateIfAbsent(ctx context.Context, rec Record) (Record, bool, error)
		Get(ctx context.Context, tenantID, subjectID string, date time.Time, timeSlot string) (Record, error)
		SetCheckOut(ctx context.Context, tenantID, recordID string, t time.Time) (Record, error)
		QueryBySubject(ctx context.Context, tenantID, subjectID string, from, to time.Time) ([]Record, error)
		QueryByDate(ctx context.Context, tenantID string, date time.Time, kind SubjectKind) ([]Record, error)

		CreateFollowUp(ctx context.Context, fu FollowUp) (FollowUp, error)
		GetFollowUp(ctx context.Context, tenantID, id string) (FollowUp, error)
		UpdateFollowUp(ctx context.Context, fu FollowUp) (FollowUp, error)
		QueryFollowUps(ctx context.Context, tenantID string, status FollowUpStatus) ([]FollowUp, error)
		CountFollowUpsByStatus(ctx context.Context, tenantID string, status FollowUpStatus) (int, error)
	}

	Service struct {
		repo       Repository
		principals *principal.Service
		audit      core.AuditRecorder
		logger     core.Logger
		mail       core.EmailService
		conf       *core.Config
	}
)

func NewService(
	repo Repository,
	principals *principal.Service,
	audit core.AuditRecorder,
	logger core.Logger,
	mailSvc core.EmailService,
	conf *core.Config,
) *Service {
	return &Service{
		repo:       repo,
		principals: principals,
		audit:      audit,
		logger:     logger,
		mail:       mailSvc,
		conf:       conf,
	}
}

// Mark records a subject's attendance for a day (and optional time slot).
// Duplicate marking returns *DuplicateError with the existing record; callers
// treat it as a non-fatal conflict.
func (svc *Service) Mark(ctx context.Context, scope auth.EffectiveScope, in MarkAttendance) (Record, error) {
	if err := in.Validate(); err != nil {
		return Record{}, err
	}

	if err := svc.resolveSubject(ctx, scope.TenantID, in.SubjectKind, in.SubjectID); err != nil {
		return Record{}, err
	}
	if in.Method == MethodQR && in.QRPayload != in.SubjectID {
		return Record{}, ErrIdentityMismatch
	}

	now := nowFunc().UTC()
	rec := Record{
		ID:          uuid.New().String(),
		TenantID:    scope.TenantID,
		SubjectID:   in.SubjectID,
		SubjectKind: in.SubjectKind,
		Date:        core.DateOf(in.Date),
		TimeSlot:    in.TimeSlot,
		Status:      in.Status,
		Method:      in.Method,
		MarkedBy:    scope.PrincipalID,
		CreatedAt:   now,
	}

	created, ok, err := svc.repo.CreateIfAbsent(ctx, rec)
	if err != nil {
		return Record{}, pkgerrors.Wrap(err, "creating attendance record")
	}
	if !ok {
		return created, &DuplicateError{Existing: created}
	}

	svc.audit.Record(ctx, core.AuditEntry{
		TenantID:    scope.TenantID,
		PrincipalID: scope.PrincipalID,
		Role:        scope.Role.String(),
		Action:      "mark",
		Module:      "attendance",
		EntityID:    created.ID,
		NewData:     created,
		CreatedAt:   now,
	})

	if created.Status == StatusAbsent && created.SubjectKind == KindStudent {
		svc.maybeAlertAbsenceStreak(ctx, scope.TenantID, created)
	}
	return created, nil
}

// ScanSelf is the two-phase staff self-attendance scan. First scan of the day
// checks in, second checks out on the same record, a third fails with
// *CheckedOutError. A payload naming another staff member fails
// ErrIdentityMismatch regardless of what it encodes.
func (svc *Service) ScanSelf(ctx context.Context, scope auth.EffectiveScope, payload string) (Record, ScanPhase, error) {
	if payload != scope.PrincipalID {
		return Record{}, "", ErrIdentityMismatch
	}
	if err := svc.resolveSubject(ctx, scope.TenantID, KindStaff, scope.PrincipalID); err != nil {
		return Record{}, "", err
	}

	now := nowFunc().UTC()
	today := core.DateOf(now)
	rec := Record{
		ID:          uuid.New().String(),
		TenantID:    scope.TenantID,
		SubjectID:   scope.PrincipalID,
		SubjectKind: KindStaff,
		Date:        today,
		Status:      StatusPresent,
		Method:      MethodQR,
		CheckIn:     &now,
		MarkedBy:    scope.PrincipalID,
		CreatedAt:   now,
	}

	// CreateIfAbsent serializes concurrent first scans: the loser of the
	// race observes the winner's record and proceeds to the check-out phase.
	created, ok, err := svc.repo.CreateIfAbsent(ctx, rec)
	if err != nil {
		return Record{}, "", pkgerrors.Wrap(err, "creating check-in record")
	}
	if ok {
		svc.auditScan(ctx, scope, created, "check_in", now)
		return created, PhaseCheckedIn, nil
	}

	if created.CheckOut != nil {
		return created, "", &CheckedOutError{Existing: created}
	}
	updated, err := svc.repo.SetCheckOut(ctx, scope.TenantID, created.ID, now)
	if err != nil {
		return Record{}, "", pkgerrors.Wrap(err, "setting check-out")
	}
	svc.auditScan(ctx, scope, updated, "check_out", now)
	return updated, PhaseCheckedOut, nil
}

func (svc *Service) auditScan(ctx context.Context, scope auth.EffectiveScope, rec Record, action string, now time.Time) {
	svc.audit.Record(ctx, core.AuditEntry{
		TenantID:    scope.TenantID,
		PrincipalID: scope.PrincipalID,
		Role:        scope.Role.String(),
		Action:      action,
		Module:      "attendance",
		EntityID:    rec.ID,
		NewData:     rec,
		CreatedAt:   now,
	})
}

// Get returns a subject's record for a day/slot.
func (svc *Service) Get(ctx context.Context, scope auth.EffectiveScope, subjectID string, date time.Time, timeSlot string) (Record, error) {
	return svc.repo.Get(ctx, scope.TenantID, subjectID, core.DateOf(date), timeSlot)
}

// QueryBySubject returns a subject's records within [from, to].
func (svc *Service) QueryBySubject(ctx context.Context, scope auth.EffectiveScope, subjectID string, from, to time.Time) ([]Record, error) {
	if scope.Role == principal.RoleStudent && subjectID != scope.SubjectID {
		return nil, auth.ErrScopeViolation
	}
	return svc.repo.QueryBySubject(ctx, scope.TenantID, subjectID, core.DateOf(from), core.DateOf(to))
}

// QueryByDate returns all records of a kind for one day. Students only ever
// see their own.
func (svc *Service) QueryByDate(ctx context.Context, scope auth.EffectiveScope, date time.Time, kind SubjectKind) ([]Record, error) {
	recs, err := svc.repo.QueryByDate(ctx, scope.TenantID, core.DateOf(date), kind)
	if err != nil {
		return nil, err
	}
	if scope.Role == principal.RoleStudent {
		own := recs[:0]
		for _, r := range recs {
			if r.SubjectID == scope.SubjectID {
				own = append(own, r)
			}
		}
		recs = own
	}
	return recs, nil
}

// CreateFollowUp opens a follow-up for a recorded absence. The creating staff
// member becomes its owner.
func (svc *Service) CreateFollowUp(ctx context.Context, scope auth.EffectiveScope, in NewFollowUp) (FollowUp, error) {
	if err := in.Validate(); err != nil {
		return FollowUp{}, err
	}

	absent, err := svc.repo.Get(ctx, scope.TenantID, in.StudentID, core.DateOf(in.AbsentDate), "")
	if err != nil {
		if err == ErrRecordNotFound {
			return FollowUp{}, ErrNoAbsenceRecorded
		}
		return FollowUp{}, err
	}
	if absent.Status != StatusAbsent {
		return FollowUp{}, ErrNoAbsenceRecorded
	}

	now := nowFunc().UTC()
	fu := FollowUp{
		ID:               uuid.New().String(),
		TenantID:         scope.TenantID,
		StudentID:        in.StudentID,
		StaffID:          scope.PrincipalID,
		AbsentDate:       core.DateOf(in.AbsentDate),
		CallStatus:       in.CallStatus,
		Reason:           in.Reason,
		Status:           FollowUpPending,
		NextFollowUpDate: in.NextFollowUpDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	fu, err = svc.repo.CreateFollowUp(ctx, fu)
	if err != nil {
		return FollowUp{}, err
	}

	svc.audit.Record(ctx, core.AuditEntry{
		TenantID:    scope.TenantID,
		PrincipalID: scope.PrincipalID,
		Role:        scope.Role.String(),
		Action:      "create",
		Module:      "followup",
		EntityID:    fu.ID,
		NewData:     fu,
		CreatedAt:   now,
	})
	return fu, nil
}

// UpdateFollowUp mutates a follow-up; only the creating staff member may.
func (svc *Service) UpdateFollowUp(ctx context.Context, scope auth.EffectiveScope, id string, in UpdateFollowUp) (FollowUp, error) {
	if err := in.Validate(); err != nil {
		return FollowUp{}, err
	}

	fu, err := svc.repo.GetFollowUp(ctx, scope.TenantID, id)
	if err != nil {
		return FollowUp{}, err
	}
	if fu.StaffID != scope.PrincipalID {
		return FollowUp{}, ErrNotFollowUpCreator
	}

	old := fu
	if in.CallStatus != "" {
		fu.CallStatus = in.CallStatus
	}
	if in.Reason != "" {
		fu.Reason = in.Reason
	}
	fu.Status = in.Status
	fu.NextFollowUpDate = in.NextFollowUpDate
	fu.UpdatedAt = nowFunc().UTC()

	fu, err = svc.repo.UpdateFollowUp(ctx, fu)
	if err != nil {
		return FollowUp{}, err
	}

	svc.audit.Record(ctx, core.AuditEntry{
		TenantID:    scope.TenantID,
		PrincipalID: scope.PrincipalID,
		Role:        scope.Role.String(),
		Action:      "update",
		Module:      "followup",
		EntityID:    fu.ID,
		OldData:     old,
		NewData:     fu,
		CreatedAt:   fu.UpdatedAt,
	})
	return fu, nil
}

// QueryFollowUps lists follow-ups, optionally by status.
func (svc *Service) QueryFollowUps(ctx context.Context, scope auth.EffectiveScope, status FollowUpStatus) ([]FollowUp, error) {
	return svc.repo.QueryFollowUps(ctx, scope.TenantID, status)
}

// Percentage reports a subject's attendance percentage over [from, to].
func (svc *Service) Percentage(ctx context.Context, scope auth.EffectiveScope, subjectID string, from, to time.Time) (int, error) {
	records, err := svc.QueryBySubject(ctx, scope, subjectID, from, to)
	if err != nil {
		return 0, err
	}
	return Percentage(PresentCount(records), len(records)), nil
}

// AbsenceStreak reports whether the subject has been absent for each of the
// `window` days ending at ref.
func (svc *Service) AbsenceStreak(ctx context.Context, scope auth.EffectiveScope, subjectID string, ref time.Time, window int) (bool, error) {
	from := core.DateOf(ref).AddDate(0, 0, -(window - 1))
	records, err := svc.repo.QueryBySubject(ctx, scope.TenantID, subjectID, from, core.DateOf(ref))
	if err != nil {
		return false, err
	}
	return HasAbsenceStreak(records, ref, window), nil
}

func (svc *Service) resolveSubject(ctx context.Context, tenantID string, kind SubjectKind, subjectID string) error {
	var err error
	switch kind {
	case KindStudent:
		_, err = svc.principals.GetStudent(ctx, tenantID, subjectID)
	case KindStaff:
		_, err = svc.principals.GetStaff(ctx, tenantID, subjectID)
	default:
		return ErrSubjectNotFound
	}
	if err != nil {
		if err == principal.ErrNotFound {
			return ErrSubjectNotFound
		}
		return err
	}
	return nil
}

// maybeAlertAbsenceStreak emails the admin address when a student reaches the
// high-risk streak window. Best effort: failures are logged, never surfaced.
func (svc *Service) maybeAlertAbsenceStreak(ctx context.Context, tenantID string, rec Record) {
	window := svc.conf.Alerts.HighRiskStreakWindow
	from := rec.Date.AddDate(0, 0, -(window - 1))
	records, err := svc.repo.QueryBySubject(ctx, tenantID, rec.SubjectID, from, rec.Date)
	if err != nil {
		svc.logger.Warn("absence streak check failed", err)
		return
	}
	if !HasAbsenceStreak(records, rec.Date, window) {
		return
	}
	svc.mail.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: svc.conf.AdminEmail}},
		Subject: "High-risk absence streak",
		Body: fmt.Sprintf(
			"Student %s has been absent %d consecutive days as of %s.",
			rec.SubjectID, window, rec.Date.Format("2006-01-02"),
		),
	})
}
