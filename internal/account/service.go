package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"accountsvc/internal/ids"
	"accountsvc/internal/obs"
)

const (
	minPasswordLength = 8
	maxReasonLength   = 500

	defaultPageSize = 20
	maxPageSize     = 100
)

// Service orchestrates the user lifecycle: create, update, soft delete,
// restore and audit-trail reads. Every mutating operation evaluates its
// required permission code before any transactional work, runs the state
// change and its audit record inside one unit-of-work transaction, and
// commits or rolls back as a whole.
type Service struct {
	uow    UnitOfWorkFactory
	hasher Hasher
	clock  Clock
	cache  PermissionCache
	logger *log.Logger
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(c Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// WithHasher overrides the password hasher.
func WithHasher(h Hasher) ServiceOption {
	return func(s *Service) { s.hasher = h }
}

// WithPermissionCache enables caching of resolved permission sets. The
// service invalidates a user's entry whenever its role set or deletion
// state changes; stale entries for other flows age out via the cache TTL.
func WithPermissionCache(c PermissionCache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// WithLogger overrides the structured logger.
func WithLogger(l *log.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService constructs the lifecycle manager.
func NewService(factory UnitOfWorkFactory, opts ...ServiceOption) (*Service, error) {
	if factory == nil {
		return nil, errors.New("unit of work factory is required")
	}
	s := &Service{
		uow:    factory,
		hasher: BcryptHasher{},
		clock:  SystemClock(),
		logger: obs.Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ProfileInput carries the optional profile payload. When supplied on
// update, fields overwrite the stored profile wholesale.
type ProfileInput struct {
	FirstName   string
	LastName    string
	DisplayName string
	DateOfBirth *time.Time
	AvatarURL   string
	Bio         string
	City        string
	Country     string
	Timezone    string
	Language    string
}

// CreateUserInput is the request to create a user aggregate.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Status   UserStatus // defaults to pending
	Profile  *ProfileInput
	RoleIDs  []string
}

// UpdateUserInput is the request to update a user aggregate. RoleIDs is
// the full desired role set; a nil or empty slice removes all
// assignments. An empty Status keeps the current one.
type UpdateUserInput struct {
	Username string
	Email    string
	Status   UserStatus
	Profile  *ProfileInput
	RoleIDs  []string
}

// Create registers a new user with hashed credentials, optional profile
// and resolved role assignments. Uniqueness of the normalized email and
// username is pre-checked cheaply; the unique indexes remain the
// authoritative guard against races.
func (s *Service) Create(ctx context.Context, in CreateUserInput) (*User, error) {
	actor, err := requirePermission(ctx, PermCreateUser)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	status := in.Status
	if status == "" {
		status = StatusPending
	}
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, status)
	}

	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()

	if exists, err := uow.Users().EmailExists(ctx, email); err != nil {
		return nil, s.fail(ctx, uow, "user.create", "", actor, err)
	} else if exists {
		return nil, ErrEmailExists
	}
	if exists, err := uow.Users().UsernameExists(ctx, username); err != nil {
		return nil, s.fail(ctx, uow, "user.create", "", actor, err)
	} else if exists {
		return nil, ErrUsernameExists
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.fail(ctx, uow, "user.create", "", actor, err)
	}

	now := s.clock.Now()
	user := &User{
		ID:             ids.New(),
		Username:       username,
		Email:          email,
		PasswordHash:   hash,
		Status:         status,
		CreatedAt:      now,
		CreatedBy:      actor.Username,
		LastModifiedAt: now,
		LastModifiedBy: actor.Username,
	}
	if in.Profile != nil {
		user.Profile = newProfile(user.ID, in.Profile, actor.Username, now)
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, s.fail(ctx, uow, "user.create", user.ID, actor, err)
	}

	// Role resolution happens inside the transaction: the first missing
	// id aborts the whole operation with no partial assignment.
	assignments, err := s.resolveAssignments(ctx, uow, user.ID, in.RoleIDs, actor, now)
	if err != nil {
		return nil, s.fail(ctx, uow, "user.create", user.ID, actor, err)
	}
	user.Assignments = assignments

	if err := uow.Users().Create(ctx, user); err != nil {
		return nil, s.fail(ctx, uow, "user.create", user.ID, actor, err)
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, s.fail(ctx, uow, "user.create", user.ID, actor, err)
	}

	created, err := uow.Users().GetByID(ctx, user.ID, false)
	if err != nil {
		created = user
	}
	s.logInfo("user.create", user.ID, actor)
	return created, nil
}

// Update mutates an existing aggregate. Uniqueness is re-validated only
// when the normalized value actually changed; role assignments are
// reconciled as a set difference so untouched roles keep their original
// assignment time.
func (s *Service) Update(ctx context.Context, userID string, in UpdateUserInput) (*User, error) {
	actor, err := requirePermission(ctx, PermUpdateUser)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if in.Status != "" && !ValidStatus(in.Status) {
		return nil, fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, in.Status)
	}

	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()

	user, err := uow.Users().GetByID(ctx, userID, false)
	if err != nil {
		return nil, s.fail(ctx, uow, "user.update", userID, actor, err)
	}

	if !strings.EqualFold(user.Email, email) {
		if exists, err := uow.Users().EmailExists(ctx, email); err != nil {
			return nil, s.fail(ctx, uow, "user.update", userID, actor, err)
		} else if exists {
			return nil, ErrEmailExists
		}
	}
	if !strings.EqualFold(user.Username, username) {
		if exists, err := uow.Users().UsernameExists(ctx, username); err != nil {
			return nil, s.fail(ctx, uow, "user.update", userID, actor, err)
		} else if exists {
			return nil, ErrUsernameExists
		}
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, s.fail(ctx, uow, "user.update", userID, actor, err)
	}

	now := s.clock.Now()
	user.Username = username
	user.Email = email
	if in.Status != "" {
		user.Status = in.Status
	}
	user.LastModifiedAt = now
	user.LastModifiedBy = actor.Username

	if in.Profile != nil {
		if user.Profile == nil {
			user.Profile = &Profile{
				ID:        ids.New(),
				UserID:    user.ID,
				CreatedAt: now,
				CreatedBy: actor.Username,
			}
		}
		applyProfile(user.Profile, in.Profile, actor.Username, now)
		if err := uow.Users().SaveProfile(ctx, user.Profile); err != nil {
			return nil, s.fail(ctx, uow, "user.update", userID, actor, err)
		}
	}

	requested := dedupeStrings(in.RoleIDs)
	current := user.RoleIDs()
	toAdd := diffStrings(requested, current)
	toRemove := diffStrings(current, requested)

	if len(toAdd) > 0 {
		adds, err := s.resolveAssignments(ctx, uow, user.ID, toAdd, actor, now)
		if err != nil {
			return nil, s.fail(ctx, uow, "user.update", userID, actor, err)
		}
		for _, a := range adds {
			if err := uow.Users().AddRoleAssignment(ctx, a); err != nil {
				return nil, s.fail(ctx, uow, "user.update", userID, actor, err)
			}
		}
	}
	for _, roleID := range toRemove {
		if err := uow.Users().RemoveRoleAssignment(ctx, user.ID, roleID); err != nil {
			return nil, s.fail(ctx, uow, "user.update", userID, actor, err)
		}
	}

	if err := uow.Users().Update(ctx, user); err != nil {
		return nil, s.fail(ctx, uow, "user.update", userID, actor, err)
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, s.fail(ctx, uow, "user.update", userID, actor, err)
	}

	if s.cache != nil && len(toAdd)+len(toRemove) > 0 {
		_ = s.cache.Invalidate(ctx, user.ID)
	}

	updated, err := uow.Users().GetByID(ctx, user.ID, false)
	if err != nil {
		updated = user
	}
	s.logInfo("user.update", user.ID, actor)
	return updated, nil
}

// SoftDelete marks the user deleted, forces its status to inactive,
// revokes all refresh tokens and appends the audit record — atomically.
func (s *Service) SoftDelete(ctx context.Context, userID, reason string) error {
	actor, err := requirePermission(ctx, PermSoftDeleteUser)
	if err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}
	if len(reason) > maxReasonLength {
		return fmt.Errorf("%w: reason exceeds %d characters", ErrInvalidInput, maxReasonLength)
	}

	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()

	user, err := uow.Users().GetByID(ctx, userID, true)
	if err != nil {
		return s.fail(ctx, uow, "user.soft_delete", userID, actor, err)
	}
	if user.IsDeleted {
		return ErrAlreadyDeleted
	}

	if err := uow.Begin(ctx); err != nil {
		return s.fail(ctx, uow, "user.soft_delete", userID, actor, err)
	}

	now := s.clock.Now()
	user.MarkDeleted(actor.UserID, reason, now)
	user.LastModifiedAt = now
	user.LastModifiedBy = actor.Username

	if err := uow.Users().Update(ctx, user); err != nil {
		return s.fail(ctx, uow, "user.soft_delete", userID, actor, err)
	}
	if err := uow.RefreshTokens().RevokeAllForUser(ctx, user.ID, now); err != nil {
		return s.fail(ctx, uow, "user.soft_delete", userID, actor, err)
	}
	entry := &AuditLog{
		ID:            ids.New(),
		ActorUserID:   actor.UserID,
		TargetUserID:  user.ID,
		Action:        ActionSoftDelete,
		Reason:        reason,
		CreatedAt:     now,
		CorrelationID: uuid.NewString(),
	}
	if err := uow.AuditLogs().Append(ctx, entry); err != nil {
		return s.fail(ctx, uow, "user.soft_delete", userID, actor, err)
	}
	if err := uow.Commit(ctx); err != nil {
		return s.fail(ctx, uow, "user.soft_delete", userID, actor, err)
	}

	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, user.ID)
	}
	s.logInfo("user.soft_delete", user.ID, actor)
	return nil
}

// Restore reverses a soft delete, reactivating the account and appending
// the audit record atomically.
func (s *Service) Restore(ctx context.Context, userID string) error {
	actor, err := requirePermission(ctx, PermRestoreUser)
	if err != nil {
		return err
	}

	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()

	user, err := uow.Users().GetByID(ctx, userID, true)
	if err != nil {
		return s.fail(ctx, uow, "user.restore", userID, actor, err)
	}
	if !user.IsDeleted {
		return ErrNotDeleted
	}

	if err := uow.Begin(ctx); err != nil {
		return s.fail(ctx, uow, "user.restore", userID, actor, err)
	}

	now := s.clock.Now()
	user.ClearDeleted()
	user.LastModifiedAt = now
	user.LastModifiedBy = actor.Username

	if err := uow.Users().Update(ctx, user); err != nil {
		return s.fail(ctx, uow, "user.restore", userID, actor, err)
	}
	entry := &AuditLog{
		ID:            ids.New(),
		ActorUserID:   actor.UserID,
		TargetUserID:  user.ID,
		Action:        ActionRestore,
		CreatedAt:     now,
		CorrelationID: uuid.NewString(),
	}
	if err := uow.AuditLogs().Append(ctx, entry); err != nil {
		return s.fail(ctx, uow, "user.restore", userID, actor, err)
	}
	if err := uow.Commit(ctx); err != nil {
		return s.fail(ctx, uow, "user.restore", userID, actor, err)
	}

	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, user.ID)
	}
	s.logInfo("user.restore", user.ID, actor)
	return nil
}

// GetByID loads the full aggregate; soft-deleted users read as absent.
func (s *Service) GetByID(ctx context.Context, userID string) (*User, error) {
	if _, err := requirePermission(ctx, PermReadUser); err != nil {
		return nil, err
	}
	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()
	return uow.Users().GetByID(ctx, userID, false)
}

// List returns a page of non-deleted users, newest first.
func (s *Service) List(ctx context.Context, page, pageSize int) (Page[User], error) {
	if _, err := requirePermission(ctx, PermReadUser); err != nil {
		return Page[User]{}, err
	}
	page, pageSize = clampPage(page, pageSize)

	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()

	items, total, err := uow.Users().List(ctx, page, pageSize, false)
	if err != nil {
		return Page[User]{}, err
	}
	return Page[User]{Items: items, TotalCount: total, PageNumber: page, PageSize: pageSize}, nil
}

// GetAuditTrail returns a page of audit entries targeting the user,
// newest first. The user lookup bypasses the soft-delete filter so the
// trail of a deleted account stays reviewable.
func (s *Service) GetAuditTrail(ctx context.Context, userID string, page, pageSize int) (Page[AuditLog], error) {
	if _, err := requirePermission(ctx, PermReadUserAuditTrail); err != nil {
		return Page[AuditLog]{}, err
	}
	page, pageSize = clampPage(page, pageSize)

	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()

	if _, err := uow.Users().GetByID(ctx, userID, true); err != nil {
		return Page[AuditLog]{}, err
	}
	items, total, err := uow.AuditLogs().ListByTarget(ctx, userID, page, pageSize)
	if err != nil {
		return Page[AuditLog]{}, err
	}
	return Page[AuditLog]{Items: items, TotalCount: total, PageNumber: page, PageSize: pageSize}, nil
}

// GetAuditTrailByActor returns a page of audit entries authored by the
// user, newest first. This is the reviewer-side view of the trail and is
// gated on the broader audit-log read permission, not the per-target one.
func (s *Service) GetAuditTrailByActor(ctx context.Context, actorUserID string, page, pageSize int) (Page[AuditLog], error) {
	if _, err := requirePermission(ctx, PermReadAuditLog); err != nil {
		return Page[AuditLog]{}, err
	}
	page, pageSize = clampPage(page, pageSize)

	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()

	if _, err := uow.Users().GetByID(ctx, actorUserID, true); err != nil {
		return Page[AuditLog]{}, err
	}
	items, total, err := uow.AuditLogs().ListByActor(ctx, actorUserID, page, pageSize)
	if err != nil {
		return Page[AuditLog]{}, err
	}
	return Page[AuditLog]{Items: items, TotalCount: total, PageNumber: page, PageSize: pageSize}, nil
}

// UserPermissionCodes resolves the user's aggregated permission codes.
// This is the identity-resolution path used when a token carries no
// permission claim; it consults the cache first.
func (s *Service) UserPermissionCodes(ctx context.Context, userID string) ([]int, error) {
	if s.cache != nil {
		if codes, ok, err := s.cache.Get(ctx, userID); err == nil && ok {
			return codes, nil
		}
	}

	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()

	codes, err := uow.Permissions().CodesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, userID, codes)
	}
	return codes, nil
}

// --- internals ---

func requirePermission(ctx context.Context, code int) (Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || !p.HasPermission(code) {
		return Principal{}, ErrPermissionDenied
	}
	return p, nil
}

// fail rolls back the unit of work and applies the propagation policy:
// typed domain failures and cancellation pass through, everything else is
// logged with full context and converted to ErrOperationFailed.
func (s *Service) fail(ctx context.Context, uow UnitOfWork, op, target string, actor Principal, err error) error {
	_ = uow.Rollback(ctx)
	if isDomainError(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logError(op, target, actor.UserID, err)
	return ErrOperationFailed
}

func (s *Service) resolveAssignments(ctx context.Context, uow UnitOfWork, userID string, roleIDs []string, actor Principal, now time.Time) ([]RoleAssignment, error) {
	wanted := dedupeStrings(roleIDs)
	if len(wanted) == 0 {
		return nil, nil
	}
	roles, err := uow.Roles().FindByIDs(ctx, wanted)
	if err != nil {
		return nil, err
	}
	found := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		found[r.ID] = struct{}{}
	}
	for _, id := range wanted {
		if _, ok := found[id]; !ok {
			return nil, fmt.Errorf("role %s: %w", id, ErrNotFound)
		}
	}
	out := make([]RoleAssignment, 0, len(roles))
	for _, r := range roles {
		out = append(out, RoleAssignment{
			UserID:     userID,
			RoleID:     r.ID,
			AssignedAt: now,
			AssignedBy: actor.UserID,
		})
	}
	return out, nil
}

func newProfile(userID string, in *ProfileInput, actor string, now time.Time) *Profile {
	p := &Profile{
		ID:        ids.New(),
		UserID:    userID,
		CreatedAt: now,
		CreatedBy: actor,
	}
	applyProfile(p, in, actor, now)
	return p
}

// applyProfile overwrites the stored profile wholesale; fields are not
// merged one by one.
func applyProfile(p *Profile, in *ProfileInput, actor string, now time.Time) {
	p.FirstName = in.FirstName
	p.LastName = in.LastName
	p.DisplayName = in.DisplayName
	p.DateOfBirth = in.DateOfBirth
	p.AvatarURL = in.AvatarURL
	p.Bio = in.Bio
	p.City = in.City
	p.Country = in.Country
	p.Timezone = in.Timezone
	p.Language = in.Language
	p.LastModifiedAt = now
	p.LastModifiedBy = actor
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// diffStrings returns the elements of a that are not in b.
func diffStrings(a, b []string) []string {
	if len(a) == 0 {
		return nil
	}
	inB := make(map[string]struct{}, len(b))
	for _, v := range b {
		inB[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := inB[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

func (s *Service) logInfo(op, target string, actor Principal) {
	s.logLine(map[string]any{
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		"level":  "info",
		"op":     op,
		"target": target,
		"actor":  actor.UserID,
	})
}

func (s *Service) logError(op, target, actor string, err error) {
	s.logLine(map[string]any{
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		"level":  "error",
		"op":     op,
		"target": target,
		"actor":  actor,
		"error":  err.Error(),
	})
}

func (s *Service) logLine(entry map[string]any) {
	if s.logger == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	s.logger.Println(string(data))
}
