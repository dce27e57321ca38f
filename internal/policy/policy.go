// Package policy decides who may do what. Every role check in the API goes
// through Authorize; no other package compares role names.
package policy

import (
	"slices"

	"github.com/indicadores/apiserver/internal/apperr"
	"github.com/indicadores/apiserver/types"
)

// Caller is the identity asserted by a verified token.
type Caller struct {
	UserID int
	Email  string
	Role   types.Role
}

// Valid reports whether c carries a usable identity.
func (c Caller) Valid() bool {
	return c.UserID > 0 && c.Role.Valid()
}

// IsAdministrator reports whether c holds the privileged role.
func (c Caller) IsAdministrator() bool {
	return c.Valid() && c.Role == types.RoleAdministrator
}

// Action is an operation with a role requirement.
type Action int

const (
	ViewCatalog Action = iota + 1
	ManageCatalog
	ViewCalculations
	ViewAllCalculations
	RecordCalculation
	EditCalculation
	ReviewCalculation
	DeleteCalculation
	ManageUsers
	ExportReports
	ViewProfile
)

var (
	anyRole   = []types.Role{types.RoleAdministrator, types.RoleUser}
	adminOnly = []types.Role{types.RoleAdministrator}
)

var requirements = map[Action][]types.Role{
	ViewCatalog:         anyRole,
	ManageCatalog:       adminOnly,
	ViewCalculations:    anyRole,
	ViewAllCalculations: adminOnly,
	RecordCalculation:   anyRole,
	EditCalculation:     anyRole,
	ReviewCalculation:   adminOnly,
	DeleteCalculation:   adminOnly,
	ManageUsers:         adminOnly,
	ExportReports:       adminOnly,
	ViewProfile:         anyRole,
}

func (a Action) String() string {
	switch a {
	case ViewCatalog:
		return "view_catalog"
	case ManageCatalog:
		return "manage_catalog"
	case ViewCalculations:
		return "view_calculations"
	case ViewAllCalculations:
		return "view_all_calculations"
	case RecordCalculation:
		return "record_calculation"
	case EditCalculation:
		return "edit_calculation"
	case ReviewCalculation:
		return "review_calculation"
	case DeleteCalculation:
		return "delete_calculation"
	case ManageUsers:
		return "manage_users"
	case ExportReports:
		return "export_reports"
	case ViewProfile:
		return "view_profile"
	default:
		return "unknown"
	}
}

// Allows reports whether caller may perform action. Unknown actions are denied.
func Allows(caller Caller, action Action) bool {
	if !caller.Valid() {
		return false
	}
	return slices.Contains(requirements[action], caller.Role)
}

// Authorize returns nil when caller may perform action, Unauthorized when the
// caller has no valid identity, and Forbidden otherwise.
func Authorize(caller Caller, action Action) error {
	if !caller.Valid() {
		return apperr.Unauthorized("unauthorized")
	}
	if !Allows(caller, action) {
		return apperr.Forbidden("forbidden")
	}
	return nil
}
