// Package engine owns the procurement domain: request lifecycle, per-item
// review, purchase order assembly and delivery reconciliation. All state
// lives behind the store port; the engine itself is stateless between calls
// and every mutation is a single CAS-guarded store operation carrying its
// audit entry.
package engine

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"site-procurement-api-server/internal/models"
	"site-procurement-api-server/internal/store"
)

// Notifier pushes JSON events to connected clients. The websocket hub
// satisfies this; a nil notifier disables notifications.
type Notifier interface {
	Send(userID string, message []byte) error
	Broadcast(message []byte)
}

type Engine struct {
	store        store.Store
	notifier     Notifier
	log          zerolog.Logger
	allOrNothing bool
}

type Option func(*Engine)

// WithNotifier wires the websocket hub (or any Notifier).
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithAllOrNothingDeliveries makes RecordDelivery reject the whole submission
// when any line fails, instead of the default per-line partial success.
func WithAllOrNothingDeliveries() Option {
	return func(e *Engine) { e.allOrNothing = true }
}

func New(st store.Store, opts ...Option) *Engine {
	e := &Engine{store: st, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// requireRole fails closed: superadmin passes everything, otherwise the
// actor's role must be in the allowed set.
func (e *Engine) requireRole(actor models.Actor, action string, allowed ...string) error {
	if actor.Role == models.RoleSuperadmin {
		return nil
	}
	for _, role := range allowed {
		if actor.Role == role {
			return nil
		}
	}
	return newError(KindUnauthorized, "actor", actor.UserID, actor.Role, action, "role is not permitted to perform this operation")
}

func (e *Engine) notifyUser(userID, event string, payload interface{}) {
	if e.notifier == nil {
		return
	}
	message, err := json.Marshal(map[string]interface{}{"event": event, "data": payload})
	if err != nil {
		return
	}
	if err := e.notifier.Send(userID, message); err != nil {
		e.log.Warn().Err(err).Str("userID", userID).Str("event", event).Msg("failed to notify user")
	}
}

func (e *Engine) notifyAll(event string, payload interface{}) {
	if e.notifier == nil {
		return
	}
	message, err := json.Marshal(map[string]interface{}{"event": event, "data": payload})
	if err != nil {
		return
	}
	e.notifier.Broadcast(message)
}

func newAuditEntry(subjectType, subjectID, itemID string, action models.AuditAction, actor models.Actor, comment, snapshot string) *models.AuditEntry {
	return &models.AuditEntry{
		SubjectType:    subjectType,
		SubjectID:      subjectID,
		ItemID:         itemID,
		Action:         action,
		ActorID:        actor.UserID,
		ActorRole:      actor.Role,
		Timestamp:      time.Now().UTC(),
		Comment:        comment,
		StatusSnapshot: snapshot,
	}
}
