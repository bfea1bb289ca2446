package model

import "fmt"

// Actor is the authenticated user on whose behalf an operation runs.
type Actor struct {
	UserID   int64
	Username string
	Role     string
}

// Capability names a permission that one or more roles hold.
type Capability string

// Capabilities.
const (
	CapCheckout        Capability = "checkout"
	CapReturn          Capability = "return"
	CapManageInventory Capability = "manage_inventory"
	CapViewReports     Capability = "view_reports"
	CapViewAnyLoans    Capability = "view_any_loans"
	CapManageUsers     Capability = "manage_users"
	CapBrowse          Capability = "browse"
)

var capabilityRoles = map[Capability][]string{
	CapCheckout:        {RoleAdmin, RoleLibrarian},
	CapReturn:          {RoleAdmin, RoleLibrarian},
	CapManageInventory: {RoleAdmin, RoleLibrarian},
	CapViewReports:     {RoleAdmin, RoleLibrarian},
	CapViewAnyLoans:    {RoleAdmin, RoleLibrarian},
	CapManageUsers:     {RoleAdmin},
	CapBrowse:          {RoleAdmin, RoleLibrarian, RolePatron},
}

// Can reports whether role holds capability c. Unknown roles and
// capabilities hold nothing.
func Can(role string, c Capability) bool {
	for _, r := range capabilityRoles[c] {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize returns an error wrapping ErrPermissionDenied unless role holds c.
func Authorize(role string, c Capability) error {
	if !Can(role, c) {
		return fmt.Errorf("%w: role %q cannot %s", ErrPermissionDenied, role, c)
	}
	return nil
}

// AuthorizeSelf allows an actor to act on their own record, or on anyone's
// when they hold c.
func AuthorizeSelf(actor Actor, userID int64, c Capability) error {
	if actor.UserID == userID && Can(actor.Role, CapBrowse) {
		return nil
	}
	return Authorize(actor.Role, c)
}
