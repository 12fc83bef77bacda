package postgres

import (
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Migrations are applied in order by the admin CLI. Each statement batch is
// idempotent (IF NOT EXISTS) so re-running is safe.
var migrations = []string{
	// principals and subtypes
	`
CREATE TABLE IF NOT EXISTS principals (
    id UUID PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    role TEXT NOT NULL CHECK (role IN ('admin', 'staff', 'student')),
    name TEXT NOT NULL,
    username TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    credential_hash BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_login TIMESTAMPTZ,

    CONSTRAINT uniq_username_per_role UNIQUE (role, username)
);

CREATE INDEX IF NOT EXISTS idx_principals_tenant ON principals(tenant_id);

CREATE TABLE IF NOT EXISTS staff (
    principal_id UUID PRIMARY KEY REFERENCES principals(id),
    salary_type TEXT NOT NULL CHECK (salary_type IN ('per_session', 'monthly_fixed', 'hourly')),
    salary_rate DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (salary_rate >= 0)
);

CREATE TABLE IF NOT EXISTS students (
    principal_id UUID PRIMARY KEY REFERENCES principals(id),
    admission_date DATE NOT NULL,
    total_fees DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (total_fees >= 0),
    paid_amount DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (paid_amount >= 0),
    due_amount DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (due_amount >= 0),
    last_payment_date TIMESTAMPTZ,
    status TEXT NOT NULL DEFAULT 'active'
        CHECK (status IN ('pending', 'active', 'inactive', 'dropped'))
);
`,
	// attendance ledger
	`
CREATE TABLE IF NOT EXISTS attendance_records (
    id UUID PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    subject_id UUID NOT NULL,
    subject_kind TEXT NOT NULL CHECK (subject_kind IN ('student', 'staff')),
    date DATE NOT NULL,
    time_slot TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL CHECK (status IN ('present', 'absent', 'late')),
    method TEXT NOT NULL CHECK (method IN ('qr', 'manual', 'face')),
    check_in TIMESTAMPTZ,
    check_out TIMESTAMPTZ,
    marked_by UUID NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    -- the duplicate-prevention invariant: one record per key
    CONSTRAINT uniq_attendance_key UNIQUE (tenant_id, subject_id, date, time_slot)
);

CREATE INDEX IF NOT EXISTS idx_attendance_subject ON attendance_records(tenant_id, subject_id, date);
CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance_records(tenant_id, date);

CREATE TABLE IF NOT EXISTS follow_ups (
    id UUID PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    student_id UUID NOT NULL,
    staff_id UUID NOT NULL,
    absent_date DATE NOT NULL,
    call_status TEXT NOT NULL DEFAULT '',
    reason TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK (status IN ('pending', 'resolved', 'dropped')),
    next_follow_up_date DATE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_follow_ups_tenant_status ON follow_ups(tenant_id, status);
`,
	// fee ledger
	`
CREATE TABLE IF NOT EXISTS payments (
    id UUID PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    student_id UUID NOT NULL,
    amount DOUBLE PRECISION NOT NULL CHECK (amount >= 0),
    discount DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (discount >= 0),
    mode TEXT NOT NULL,
    receipt_number TEXT NOT NULL,
    month SMALLINT NOT NULL CHECK (month BETWEEN 1 AND 12),
    month_name TEXT NOT NULL,
    year INT NOT NULL,
    tx_ref TEXT NOT NULL DEFAULT '',
    collected_by UUID NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT uniq_receipt_per_tenant UNIQUE (tenant_id, receipt_number)
);

CREATE INDEX IF NOT EXISTS idx_payments_student ON payments(tenant_id, student_id);
CREATE INDEX IF NOT EXISTS idx_payments_cycle ON payments(tenant_id, year, month);
`,
	// exam results + audit log
	`
CREATE TABLE IF NOT EXISTS exam_results (
    id UUID PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    student_id UUID NOT NULL,
    exam TEXT NOT NULL,
    outcome TEXT NOT NULL CHECK (outcome IN ('pass', 'fail')),
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_exam_results_student ON exam_results(tenant_id, student_id);

CREATE TABLE IF NOT EXISTS audit_log (
    id UUID PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    principal_id TEXT NOT NULL,
    role TEXT NOT NULL,
    action TEXT NOT NULL,
    module TEXT NOT NULL,
    entity_id TEXT NOT NULL DEFAULT '',
    old_data JSONB,
    new_data JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_audit_log_tenant ON audit_log(tenant_id, created_at);
`,
}

// Migrate applies the schema.
func Migrate(db *sqlx.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "applying migration %d", i+1)
		}
	}
	return nil
}
