package actor

import "errors"

var ErrForbidden = errors.New("actor is not allowed to perform this action")

// Role is the coarse authorization role carried in the auth token.
type Role string

const (
	RoleUser   Role = "user"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

// Actor identifies who is performing an operation.
type Actor struct {
	ID   int64
	Role Role
}

// CanManageOrders reports whether the actor may drive vendor/admin
// status transitions.
func (a Actor) CanManageOrders() bool {
	return a.Role == RoleVendor || a.Role == RoleAdmin
}

// CanActOn reports whether the actor may touch an order owned by userID.
func (a Actor) CanActOn(userID int64) bool {
	return a.ID == userID || a.Role == RoleAdmin
}
