// Package store defines the storage port for the procurement engine. Every
// mutation is a compare-and-swap keyed by the mutated document's current
// value, and carries the audit entry recording it, so a state change and its
// audit entry commit or fail together.
package store

import (
	"context"
	"errors"

	"site-procurement-api-server/internal/models"
)

// ErrConflict means the CAS guard no longer matched: another actor changed
// the document between the caller's read and this write. Callers refresh and
// retry or report it.
var ErrConflict = errors.New("store: document changed by another operation")

// ErrNotFound means the referenced document does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate means a unique key (email, id) is already taken.
var ErrDuplicate = errors.New("store: duplicate key")

// RequestFilter narrows ListRequests.
type RequestFilter struct {
	ProjectID string
	Status    models.RequestStatus
	CreatedBy string
}

// POFilter narrows ListPurchaseOrders.
type POFilter struct {
	ProjectID string
	Status    models.POStatus
}

// ItemClaim marks one approved, unclaimed request item as claimed by a PO.
type ItemClaim struct {
	RequestID string
	ItemID    string
	POID      string
}

// DeliveryLine is one CAS line application: add Qty to the line's accumulator
// iff it still equals Expect.
type DeliveryLine struct {
	POItemID string
	Expect   float64
	Qty      float64
	SetFull  bool
}

// Store is implemented by the MongoDB store and by the in-memory store used
// in tests. Both honour the same CAS contract.
type Store interface {
	// Requests. UpdateRequest replaces the request document iff the stored
	// Version still equals req.Version, so no concurrent commit, a sibling
	// item's decision or an assembly claim included, can be overwritten by a
	// stale snapshot. On success the version is bumped (on req too);
	// ErrConflict means reload and redo the mutation.
	InsertRequest(ctx context.Context, req *models.Request, entry *models.AuditEntry) error
	GetRequest(ctx context.Context, requestID string) (*models.Request, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]models.Request, error)
	UpdateRequest(ctx context.Context, req *models.Request, entry *models.AuditEntry) error

	// Purchase orders. CreatePurchaseOrder applies every claim exactly once
	// and bumps each touched request's version; if any target item is no
	// longer approved-and-unclaimed the whole creation fails with ErrConflict
	// and nothing is written.
	CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder, claims []ItemClaim, entry *models.AuditEntry) error
	GetPurchaseOrder(ctx context.Context, poID string) (*models.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, f POFilter) ([]models.PurchaseOrder, error)

	// ApplyDelivery CAS-applies all lines, inserts the delivery record and
	// the audit entry in one atomic unit. Any line whose accumulator moved
	// since Expect was read fails the whole call with ErrConflict. When the
	// applied lines leave every line fully delivered the PO closes in the
	// same atomic unit; closure is one-way.
	ApplyDelivery(ctx context.Context, poID string, lines []DeliveryLine, d *models.Delivery, entry *models.AuditEntry) error
	ListDeliveries(ctx context.Context, poID string) ([]models.Delivery, error)

	// Audit. Appends happen only inside the mutations above; reads return
	// the full history for a subject ordered by (timestamp, seq).
	History(ctx context.Context, subjectID string) ([]models.AuditEntry, error)

	// Users.
	InsertUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}
