package services

import "context"

// recordAudit writes the entry if an audit service is configured. Audit
// failures never propagate to the caller.
func recordAudit(ctx context.Context, audit *AuditService, entry AuditEntry) {
	if audit == nil {
		return
	}
	_ = audit.Log(ctx, entry)
}
