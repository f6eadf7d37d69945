package account

import (
	"context"
	"time"
)

// UnitOfWork bounds one logical transaction and exposes the repositories
// that participate in it. All repositories share one underlying
// connection; while a transaction is open every repository call runs
// inside it.
//
// State machine: Idle -> TransactionOpen -> Idle. Begin while open fails
// with ErrTransactionStarted; Commit while idle fails with
// ErrNoTransaction; Rollback while idle is a no-op. Close with an open
// transaction rolls it back. Instances are per-request and never shared
// across concurrent operations.
type UnitOfWork interface {
	Users() UserStore
	Roles() RoleStore
	Permissions() PermissionStore
	AuditLogs() AuditStore
	RefreshTokens() RefreshTokenStore

	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close() error
}

// UnitOfWorkFactory creates a fresh unit of work per logical operation.
type UnitOfWorkFactory interface {
	NewUnitOfWork() UnitOfWork
}

// UserStore persists the user aggregate. Reads exclude soft-deleted rows
// unless includeDeleted is set; the bypass exists for the restore and
// audit-review paths only.
type UserStore interface {
	// Create inserts the user together with its profile and role
	// assignments. Unique-index violations on normalized email or
	// username surface as ErrEmailExists / ErrUsernameExists.
	Create(ctx context.Context, u *User) error

	// GetByID loads the full aggregate (profile and roles included).
	GetByID(ctx context.Context, id string, includeDeleted bool) (*User, error)

	// Update persists the core user fields including soft-delete state.
	Update(ctx context.Context, u *User) error

	// SaveProfile upserts the 1:1 profile row.
	SaveProfile(ctx context.Context, p *Profile) error

	AddRoleAssignment(ctx context.Context, a RoleAssignment) error
	RemoveRoleAssignment(ctx context.Context, userID, roleID string) error

	// EmailExists and UsernameExists check normalized values among
	// non-deleted users. They are the cheap pre-check; the unique index
	// is the authoritative guard.
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)

	List(ctx context.Context, page, pageSize int, includeDeleted bool) ([]User, int, error)
}

// RoleStore persists the role catalog.
type RoleStore interface {
	Create(ctx context.Context, r *Role) error
	GetByID(ctx context.Context, id string) (*Role, error)
	FindByIDs(ctx context.Context, ids []string) ([]Role, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, r *Role) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Role, error)
}

// PermissionStore manages the immutable permission catalog and the
// role-permission join table.
type PermissionStore interface {
	// Ensure makes the stored catalog match the given entries; existing
	// codes are refreshed, never renumbered.
	Ensure(ctx context.Context, perms []Permission) error
	List(ctx context.Context) ([]Permission, error)
	FindByCodes(ctx context.Context, codes []int) ([]Permission, error)
	SetForRole(ctx context.Context, roleID string, permissionIDs []string, assignedBy string, at time.Time) error
	PermissionsForRole(ctx context.Context, roleID string) ([]Permission, error)
	// CodesForUser aggregates active permission codes across the user's
	// roles.
	CodesForUser(ctx context.Context, userID string) ([]int, error)
}

// AuditStore appends immutable entries and serves paginated reads.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditLog) error
	ListByTarget(ctx context.Context, targetUserID string, page, pageSize int) ([]AuditLog, int, error)
	ListByActor(ctx context.Context, actorUserID string, page, pageSize int) ([]AuditLog, int, error)
}

// RefreshTokenStore manages persisted refresh tokens. Issuance is not this
// service's concern; soft delete revokes.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error
}

// PermissionCache caches resolved permission-code sets per user. A miss is
// (nil, false, nil). Implementations are best-effort; the store remains
// the source of truth.
type PermissionCache interface {
	Get(ctx context.Context, userID string) ([]int, bool, error)
	Set(ctx context.Context, userID string, codes []int) error
	Invalidate(ctx context.Context, userID string) error
}
