package account

import "time"

// UserStatus is the lifecycle status of a user account.
type UserStatus string

const (
	StatusPending   UserStatus = "pending"
	StatusActive    UserStatus = "active"
	StatusInactive  UserStatus = "inactive"
	StatusSuspended UserStatus = "suspended"
	StatusLocked    UserStatus = "locked"
	StatusBanned    UserStatus = "banned"
)

// ValidStatus reports whether s is one of the known user statuses.
func ValidStatus(s UserStatus) bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive, StatusSuspended, StatusLocked, StatusBanned:
		return true
	}
	return false
}

// User is the aggregate root: account identity, credential, status,
// soft-delete state, audit metadata, plus the owned profile and role
// assignments.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Status       UserStatus `json:"status"`

	IsDeleted     bool       `json:"is_deleted"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	DeletedBy     string     `json:"deleted_by,omitempty"`
	DeletedReason string     `json:"deleted_reason,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	CreatedBy      string    `json:"created_by,omitempty"`
	LastModifiedAt time.Time `json:"last_modified_at"`
	LastModifiedBy string    `json:"last_modified_by,omitempty"`

	Profile     *Profile         `json:"profile,omitempty"`
	Roles       []Role           `json:"roles,omitempty"`
	Assignments []RoleAssignment `json:"-"`
}

// MarkDeleted transitions the user into the soft-deleted state. Rows are
// never physically removed once created in an auditable path; callers
// persist this as an update.
func (u *User) MarkDeleted(actorID, reason string, now time.Time) {
	u.IsDeleted = true
	u.DeletedAt = &now
	u.DeletedBy = actorID
	u.DeletedReason = reason
	u.Status = StatusInactive
}

// ClearDeleted reverses a soft delete and reactivates the account.
func (u *User) ClearDeleted() {
	u.IsDeleted = false
	u.DeletedAt = nil
	u.DeletedBy = ""
	u.DeletedReason = ""
	u.Status = StatusActive
}

// RoleIDs returns the ids of the user's current role assignments.
func (u *User) RoleIDs() []string {
	out := make([]string, 0, len(u.Assignments))
	for _, a := range u.Assignments {
		out = append(out, a.RoleID)
	}
	return out
}

// Profile is the optional 1:1 extension of a user. It is created lazily on
// first write and only ever mutated alongside its owning user.
type Profile struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	Bio         string     `json:"bio,omitempty"`
	City        string     `json:"city,omitempty"`
	Country     string     `json:"country,omitempty"`
	Timezone    string     `json:"timezone,omitempty"`
	Language    string     `json:"language,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	CreatedBy      string    `json:"created_by,omitempty"`
	LastModifiedAt time.Time `json:"last_modified_at"`
	LastModifiedBy string    `json:"last_modified_by,omitempty"`
}

// Role is a named, uniquely coded bundle of permissions.
type Role struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	CreatedBy      string    `json:"created_by,omitempty"`
	LastModifiedAt time.Time `json:"last_modified_at"`
	LastModifiedBy string    `json:"last_modified_by,omitempty"`
}

// Permission is an immutable catalog entry identified by a stable integer
// code.
type Permission struct {
	ID        string    `json:"id"`
	Code      int       `json:"code"`
	Name      string    `json:"name"`
	Resource  string    `json:"resource"`
	Action    string    `json:"action"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleAssignment links a user to a role. Composite identity
// (user_id, role_id); created and removed as a set difference when the
// user's desired role set changes.
type RoleAssignment struct {
	UserID     string    `json:"user_id"`
	RoleID     string    `json:"role_id"`
	AssignedAt time.Time `json:"assigned_at"`
	AssignedBy string    `json:"assigned_by,omitempty"`
}

// RolePermission links a role to a catalog permission.
type RolePermission struct {
	RoleID       string    `json:"role_id"`
	PermissionID string    `json:"permission_id"`
	AssignedAt   time.Time `json:"assigned_at"`
	AssignedBy   string    `json:"assigned_by,omitempty"`
}

// AuditAction enumerates audited operations.
type AuditAction string

const (
	ActionCreate         AuditAction = "create"
	ActionUpdate         AuditAction = "update"
	ActionSoftDelete     AuditAction = "soft_delete"
	ActionRestore        AuditAction = "restore"
	ActionLogin          AuditAction = "login"
	ActionLogout         AuditAction = "logout"
	ActionPasswordChange AuditAction = "password_change"
)

// AuditLog is an append-only record of who did what to whom and when.
// Once written it is never updated or deleted.
type AuditLog struct {
	ID            string            `json:"id"`
	ActorUserID   string            `json:"actor_user_id"`
	TargetUserID  string            `json:"target_user_id,omitempty"`
	Action        AuditAction       `json:"action"`
	Reason        string            `json:"reason,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	CorrelationID string            `json:"correlation_id"`
}

// RefreshToken is a persisted refresh token. Issuance lives outside this
// service; the lifecycle manager only revokes.
type RefreshToken struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	TokenHash     string     `json:"-"`
	ExpiresAt     time.Time  `json:"expires_at"`
	CreatedAt     time.Time  `json:"created_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason string     `json:"revoked_reason,omitempty"`
}

// Page is a single page of results with the total row count.
type Page[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
	PageNumber int `json:"page_number"`
	PageSize   int `json:"page_size"`
}
