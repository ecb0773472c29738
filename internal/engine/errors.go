package engine

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures so the API layer can map them to HTTP
// statuses and callers can decide whether to retry.
type Kind string

const (
	KindValidation         Kind = "VALIDATION"
	KindInvalidTransition  Kind = "INVALID_TRANSITION"
	KindItemAlreadyDecided Kind = "ITEM_ALREADY_DECIDED"
	KindConflict           Kind = "CONCURRENCY_CONFLICT"
	KindOverOrder          Kind = "OVER_ORDER"
	KindOverDelivery       Kind = "OVER_DELIVERY"
	KindNotFound           Kind = "NOT_FOUND"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindInternal           Kind = "INTERNAL"
)

// Error carries the entity id, its current status and the attempted action,
// so a failure is always actionable for the caller.
type Error struct {
	Kind   Kind   `json:"kind"`
	Entity string `json:"entity,omitempty"`
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
	Action string `json:"action,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	if e.ID != "" {
		msg += fmt.Sprintf(" (%s %s", e.Entity, e.ID)
		if e.Status != "" {
			msg += fmt.Sprintf(", status %s", e.Status)
		}
		if e.Action != "" {
			msg += fmt.Sprintf(", action %s", e.Action)
		}
		msg += ")"
	}
	return msg
}

func newError(kind Kind, entity, id, status, action, detail string) *Error {
	return &Error{Kind: kind, Entity: entity, ID: id, Status: status, Action: action, Detail: detail}
}

// IsKind reports whether err is an engine Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
