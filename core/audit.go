package core

import (
	"context"
	"time"
)

type (
	// AuditEntry is an append-only record of a state-changing action.
	AuditEntry struct {
		ID          string      `json:"id"`
		TenantID    string      `json:"tenant_id"`
		PrincipalID string      `json:"principal_id"`
		Role        string      `json:"role"`
		Action      string      `json:"action"`
		Module      string      `json:"module"`
		EntityID    string      `json:"entity_id"`
		OldData     interface{} `json:"old_data,omitempty"`
		NewData     interface{} `json:"new_data,omitempty"`
		CreatedAt   time.Time   `json:"created_at"` // UTC
	}

	// AuditRecorder persists audit entries. Recording is fire-and-forget:
	// a failure must never roll back or fail the primary mutation.
	AuditRecorder interface {
		Record(ctx context.Context, entry AuditEntry)
	}
)

// LogAuditRecorder writes audit entries through the Logger. It is the
// default recorder and the fallback when no audit store is configured.
type LogAuditRecorder struct {
	logger Logger
}

var _ AuditRecorder = (*LogAuditRecorder)(nil)

func NewLogAuditRecorder(logger Logger) *LogAuditRecorder {
	return &LogAuditRecorder{logger: logger}
}

func (rec *LogAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	rec.logger.Info(
		"audit: "+entry.Module+"."+entry.Action,
		map[string]interface{}{
			"tenant_id":    entry.TenantID,
			"principal_id": entry.PrincipalID,
			"role":         entry.Role,
			"entity_id":    entry.EntityID,
		},
	)
}
