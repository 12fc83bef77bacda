package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/chuodev/chuo/core"
)

// auditRecorder appends entries to the audit_log table. Failures are
// logged and swallowed so the primary mutation is never affected.
type auditRecorder struct {
	db     *sqlx.DB
	logger core.Logger
}

var _ core.AuditRecorder = (*auditRecorder)(nil) // interface compliance check

func NewAuditRecorder(db *sqlx.DB, logger core.Logger) core.AuditRecorder {
	return &auditRecorder{db: db, logger: logger}
}

func (rec *auditRecorder) Record(ctx context.Context, entry core.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	oldData, err := marshalData(entry.OldData)
	if err != nil {
		rec.logger.Error("audit: marshal old data", err)
		return
	}
	newData, err := marshalData(entry.NewData)
	if err != nil {
		rec.logger.Error("audit: marshal new data", err)
		return
	}

	_, err = rec.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, tenant_id, principal_id, role, action, module, entity_id, old_data, new_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.TenantID, entry.PrincipalID, entry.Role, entry.Action,
		entry.Module, entry.EntityID, oldData, newData, entry.CreatedAt,
	)
	if err != nil {
		rec.logger.Error("audit: insert entry", err)
	}
}

func marshalData(data interface{}) (interface{}, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
