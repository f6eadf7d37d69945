package account

import (
	"context"
	"fmt"
	"strings"

	"accountsvc/internal/ids"
)

const (
	maxRoleCodeLength = 64
	maxRoleNameLength = 128
)

// CreateRoleInput is the request to add a role to the catalog.
type CreateRoleInput struct {
	Code        string
	Name        string
	Description string
}

// UpdateRoleInput renames or re-describes a role; the code is immutable.
type UpdateRoleInput struct {
	Name        string
	Description string
}

// CreateRole adds a role with a unique machine code.
func (s *Service) CreateRole(ctx context.Context, in CreateRoleInput) (*Role, error) {
	actor, err := requirePermission(ctx, PermCreateRole)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.Name)
	if code == "" || len(code) > maxRoleCodeLength {
		return nil, fmt.Errorf("%w: role code is required and at most %d characters", ErrInvalidInput, maxRoleCodeLength)
	}
	if name == "" || len(name) > maxRoleNameLength {
		return nil, fmt.Errorf("%w: role name is required and at most %d characters", ErrInvalidInput, maxRoleNameLength)
	}

	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()

	if exists, err := uow.Roles().CodeExists(ctx, code); err != nil {
		return nil, s.fail(ctx, uow, "role.create", "", actor, err)
	} else if exists {
		return nil, ErrRoleCodeExists
	}

	now := s.clock.Now()
	role := &Role{
		ID:          ids.New(),
		Code:        code,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		CreatedBy:   actor.Username,
	}
	if err := uow.Roles().Create(ctx, role); err != nil {
		return nil, s.fail(ctx, uow, "role.create", role.ID, actor, err)
	}
	s.logInfo("role.create", role.ID, actor)
	return role, nil
}

// UpdateRole renames or re-describes an existing role.
func (s *Service) UpdateRole(ctx context.Context, roleID string, in UpdateRoleInput) (*Role, error) {
	actor, err := requirePermission(ctx, PermUpdateRole)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxRoleNameLength {
		return nil, fmt.Errorf("%w: role name is required and at most %d characters", ErrInvalidInput, maxRoleNameLength)
	}

	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()

	role, err := uow.Roles().GetByID(ctx, roleID)
	if err != nil {
		return nil, s.fail(ctx, uow, "role.update", roleID, actor, err)
	}
	role.Name = name
	role.Description = strings.TrimSpace(in.Description)
	if err := uow.Roles().Update(ctx, role); err != nil {
		return nil, s.fail(ctx, uow, "role.update", roleID, actor, err)
	}
	s.logInfo("role.update", role.ID, actor)
	return role, nil
}

// DeleteRole removes a role from the catalog. A role still assigned to
// users fails with ErrRoleAssigned via the foreign-key constraint.
func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	actor, err := requirePermission(ctx, PermDeleteRole)
	if err != nil {
		return err
	}

	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()

	if _, err := uow.Roles().GetByID(ctx, roleID); err != nil {
		return s.fail(ctx, uow, "role.delete", roleID, actor, err)
	}
	if err := uow.Roles().Delete(ctx, roleID); err != nil {
		return s.fail(ctx, uow, "role.delete", roleID, actor, err)
	}
	s.logInfo("role.delete", roleID, actor)
	return nil
}

// GetRole loads one role.
func (s *Service) GetRole(ctx context.Context, roleID string) (*Role, error) {
	if _, err := requirePermission(ctx, PermReadRole); err != nil {
		return nil, err
	}
	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()
	return uow.Roles().GetByID(ctx, roleID)
}

// ListRoles returns the whole role catalog ordered by code.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	if _, err := requirePermission(ctx, PermReadRole); err != nil {
		return nil, err
	}
	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()
	return uow.Roles().List(ctx)
}

// SetRolePermissions replaces the role's permission set with the given
// codes, transactionally. An unknown code aborts the whole change.
func (s *Service) SetRolePermissions(ctx context.Context, roleID string, codes []int) error {
	actor, err := requirePermission(ctx, PermAssignPermissionsToRole)
	if err != nil {
		return err
	}

	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()

	if _, err := uow.Roles().GetByID(ctx, roleID); err != nil {
		return s.fail(ctx, uow, "role.set_permissions", roleID, actor, err)
	}

	wanted := dedupeInts(codes)
	perms, err := uow.Permissions().FindByCodes(ctx, wanted)
	if err != nil {
		return s.fail(ctx, uow, "role.set_permissions", roleID, actor, err)
	}
	byCode := make(map[int]Permission, len(perms))
	for _, p := range perms {
		byCode[p.Code] = p
	}
	permIDs := make([]string, 0, len(wanted))
	for _, code := range wanted {
		p, ok := byCode[code]
		if !ok {
			return s.fail(ctx, uow, "role.set_permissions", roleID, actor,
				fmt.Errorf("permission code %d: %w", code, ErrNotFound))
		}
		permIDs = append(permIDs, p.ID)
	}

	if err := uow.Begin(ctx); err != nil {
		return s.fail(ctx, uow, "role.set_permissions", roleID, actor, err)
	}
	if err := uow.Permissions().SetForRole(ctx, roleID, permIDs, actor.UserID, s.clock.Now()); err != nil {
		return s.fail(ctx, uow, "role.set_permissions", roleID, actor, err)
	}
	if err := uow.Commit(ctx); err != nil {
		return s.fail(ctx, uow, "role.set_permissions", roleID, actor, err)
	}
	s.logInfo("role.set_permissions", roleID, actor)
	return nil
}

// RolePermissions lists the permissions granted to a role.
func (s *Service) RolePermissions(ctx context.Context, roleID string) ([]Permission, error) {
	if _, err := requirePermission(ctx, PermReadPermission); err != nil {
		return nil, err
	}
	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()

	if _, err := uow.Roles().GetByID(ctx, roleID); err != nil {
		return nil, err
	}
	return uow.Permissions().PermissionsForRole(ctx, roleID)
}

// ListPermissions returns the full permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	if _, err := requirePermission(ctx, PermReadPermission); err != nil {
		return nil, err
	}
	uow := s.uow.NewUnitOfWork()
	defer func() { _ = uow.Close() }()
	return uow.Permissions().List(ctx)
}

func dedupeInts(values []int) []int {
	if len(values) == 0 {
		return nil
	}
	set := make(map[int]struct{}, len(values))
	out := make([]int, 0, len(values))
	for _, v := range values {
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
