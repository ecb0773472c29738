package engine

import (
	"context"

	"site-procurement-api-server/internal/models"
)

// History returns the full ordered audit trail for a subject (request or
// purchase order). Entries are appended only inside the store mutations, so
// every returned entry corresponds to a committed state transition.
func (e *Engine) History(ctx context.Context, subjectID string) ([]models.AuditEntry, error) {
	entries, err := e.store.History(ctx, subjectID)
	if err != nil {
		return nil, newError(KindInternal, "audit", subjectID, "", "history", err.Error())
	}
	return entries, nil
}
