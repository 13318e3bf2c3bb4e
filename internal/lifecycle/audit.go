package lifecycle

import (
	"strconv"
	"time"

	"bwitty-orders/internal/model"
)

// AppendAudit returns a new log with one entry appended. The input slice is
// never written to, even when it has spare capacity.
func AppendAudit(log []model.AuditEntry, action, details string, actor *model.Actor, at time.Time) []model.AuditEntry {
	out := make([]model.AuditEntry, len(log), len(log)+1)
	copy(out, log)

	entry := model.AuditEntry{
		ID:        strconv.Itoa(len(log) + 1),
		Action:    action,
		Details:   details,
		Timestamp: at.UTC(),
	}
	if actor != nil {
		id, name := actor.ID, actor.Name
		entry.UserID = &id
		entry.UserName = &name
	}

	return append(out, entry)
}
