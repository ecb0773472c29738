// server/internal/models/common.go
package models

// Roles known to the system. JWT claims carry one of these and every engine
// operation checks the acting role before touching state.
const (
	RoleSuperadmin  = "superadmin"
	RoleRequester   = "requester"
	RoleReviewer    = "reviewer"
	RoleProcurement = "procurement"
	RoleStorekeeper = "storekeeper"
)

// Actor identifies who is performing an operation. It is built from the JWT
// claims by the middleware and passed down into the engine.
type Actor struct {
	UserID string `json:"userID"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}
