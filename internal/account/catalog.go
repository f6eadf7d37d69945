package account

import (
	"fmt"
	"time"

	"accountsvc/internal/ids"
)

// Permission codes. Codes are stable wire-level integers grouped by
// resource; gaps leave room for growth without renumbering.
const (
	PermReadUser       = 1
	PermCreateUser     = 2
	PermUpdateUser     = 3
	PermSoftDeleteUser = 4
	PermRestoreUser    = 5
	PermActivateUser   = 6
	PermDeactivateUser = 7
	PermLockUser       = 8
	PermUnlockUser     = 9

	PermReadRole           = 20
	PermCreateRole         = 21
	PermUpdateRole         = 22
	PermDeleteRole         = 23
	PermAssignRoleToUser   = 24
	PermRemoveRoleFromUser = 25

	PermReadPermission            = 40
	PermAssignPermissionsToRole   = 41
	PermRemovePermissionsFromRole = 42

	PermReadAuditLog       = 60
	PermReadUserAuditTrail = 61

	PermReadOwnProfile   = 80
	PermUpdateOwnProfile = 81
	PermReadAnyProfile   = 82
	PermUpdateAnyProfile = 83
)

// CatalogEntry ties a permission code to its Resource.Action name.
type CatalogEntry struct {
	Code     int
	Resource string
	Action   string
}

// Name returns the human-readable "Resource.Action" form.
func (e CatalogEntry) Name() string {
	return fmt.Sprintf("%s.%s", e.Resource, e.Action)
}

// Catalog is the fixed permission catalog. It is the source of truth for
// what the evaluator may check and for the seed path.
var Catalog = []CatalogEntry{
	{PermReadUser, "User", "Read"},
	{PermCreateUser, "User", "Create"},
	{PermUpdateUser, "User", "Update"},
	{PermSoftDeleteUser, "User", "SoftDelete"},
	{PermRestoreUser, "User", "Restore"},
	{PermActivateUser, "User", "Activate"},
	{PermDeactivateUser, "User", "Deactivate"},
	{PermLockUser, "User", "Lock"},
	{PermUnlockUser, "User", "Unlock"},

	{PermReadRole, "Role", "Read"},
	{PermCreateRole, "Role", "Create"},
	{PermUpdateRole, "Role", "Update"},
	{PermDeleteRole, "Role", "Delete"},
	{PermAssignRoleToUser, "Role", "Assign"},
	{PermRemoveRoleFromUser, "Role", "Remove"},

	{PermReadPermission, "Permission", "Read"},
	{PermAssignPermissionsToRole, "Permission", "Assign"},
	{PermRemovePermissionsFromRole, "Permission", "Remove"},

	{PermReadAuditLog, "AuditLog", "Read"},
	{PermReadUserAuditTrail, "AuditLog", "ReadUserTrail"},

	{PermReadOwnProfile, "Profile", "ReadOwn"},
	{PermUpdateOwnProfile, "Profile", "UpdateOwn"},
	{PermReadAnyProfile, "Profile", "ReadAny"},
	{PermUpdateAnyProfile, "Profile", "UpdateAny"},
}

var catalogByCode = func() map[int]CatalogEntry {
	m := make(map[int]CatalogEntry, len(Catalog))
	for _, e := range Catalog {
		m[e.Code] = e
	}
	return m
}()

// LookupPermission returns the catalog entry for code.
func LookupPermission(code int) (CatalogEntry, bool) {
	e, ok := catalogByCode[code]
	return e, ok
}

// CatalogPermissions renders the catalog as storable permission rows.
// The seed path upserts these by code, so the stored catalog cannot
// drift from this package.
func CatalogPermissions(now time.Time) []Permission {
	perms := make([]Permission, 0, len(Catalog))
	for _, e := range Catalog {
		perms = append(perms, Permission{
			ID:        ids.New(),
			Code:      e.Code,
			Name:      e.Name(),
			Resource:  e.Resource,
			Action:    e.Action,
			Active:    true,
			CreatedAt: now,
		})
	}
	return perms
}
