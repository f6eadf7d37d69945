package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"accountsvc/internal/account"
)

// stubService implements AccountService with overridable funcs so each
// test wires only the calls it expects.
type stubService struct {
	createFn       func(ctx context.Context, in account.CreateUserInput) (*account.User, error)
	updateFn       func(ctx context.Context, userID string, in account.UpdateUserInput) (*account.User, error)
	softDeleteFn   func(ctx context.Context, userID, reason string) error
	restoreFn      func(ctx context.Context, userID string) error
	getByIDFn      func(ctx context.Context, userID string) (*account.User, error)
	listFn         func(ctx context.Context, page, pageSize int) (account.Page[account.User], error)
	auditTrailFn   func(ctx context.Context, userID string, page, pageSize int) (account.Page[account.AuditLog], error)
	auditByActorFn func(ctx context.Context, actorUserID string, page, pageSize int) (account.Page[account.AuditLog], error)
	permCodesFn    func(ctx context.Context, userID string) ([]int, error)
	createRoleFn   func(ctx context.Context, in account.CreateRoleInput) (*account.Role, error)
	updateRoleFn   func(ctx context.Context, roleID string, in account.UpdateRoleInput) (*account.Role, error)
	deleteRoleFn   func(ctx context.Context, roleID string) error
	getRoleFn      func(ctx context.Context, roleID string) (*account.Role, error)
	listRolesFn    func(ctx context.Context) ([]account.Role, error)
	setRolePermsFn func(ctx context.Context, roleID string, codes []int) error
	rolePermsFn    func(ctx context.Context, roleID string) ([]account.Permission, error)
	listPermsFn    func(ctx context.Context) ([]account.Permission, error)
}

func (s *stubService) Create(ctx context.Context, in account.CreateUserInput) (*account.User, error) {
	if s.createFn == nil {
		panic("unexpected Create call")
	}
	return s.createFn(ctx, in)
}

func (s *stubService) Update(ctx context.Context, userID string, in account.UpdateUserInput) (*account.User, error) {
	if s.updateFn == nil {
		panic("unexpected Update call")
	}
	return s.updateFn(ctx, userID, in)
}

func (s *stubService) SoftDelete(ctx context.Context, userID, reason string) error {
	if s.softDeleteFn == nil {
		panic("unexpected SoftDelete call")
	}
	return s.softDeleteFn(ctx, userID, reason)
}

func (s *stubService) Restore(ctx context.Context, userID string) error {
	if s.restoreFn == nil {
		panic("unexpected Restore call")
	}
	return s.restoreFn(ctx, userID)
}

func (s *stubService) GetByID(ctx context.Context, userID string) (*account.User, error) {
	if s.getByIDFn == nil {
		panic("unexpected GetByID call")
	}
	return s.getByIDFn(ctx, userID)
}

func (s *stubService) List(ctx context.Context, page, pageSize int) (account.Page[account.User], error) {
	if s.listFn == nil {
		panic("unexpected List call")
	}
	return s.listFn(ctx, page, pageSize)
}

func (s *stubService) GetAuditTrail(ctx context.Context, userID string, page, pageSize int) (account.Page[account.AuditLog], error) {
	if s.auditTrailFn == nil {
		panic("unexpected GetAuditTrail call")
	}
	return s.auditTrailFn(ctx, userID, page, pageSize)
}

func (s *stubService) GetAuditTrailByActor(ctx context.Context, actorUserID string, page, pageSize int) (account.Page[account.AuditLog], error) {
	if s.auditByActorFn == nil {
		panic("unexpected GetAuditTrailByActor call")
	}
	return s.auditByActorFn(ctx, actorUserID, page, pageSize)
}

func (s *stubService) UserPermissionCodes(ctx context.Context, userID string) ([]int, error) {
	if s.permCodesFn == nil {
		panic("unexpected UserPermissionCodes call")
	}
	return s.permCodesFn(ctx, userID)
}

func (s *stubService) CreateRole(ctx context.Context, in account.CreateRoleInput) (*account.Role, error) {
	if s.createRoleFn == nil {
		panic("unexpected CreateRole call")
	}
	return s.createRoleFn(ctx, in)
}

func (s *stubService) UpdateRole(ctx context.Context, roleID string, in account.UpdateRoleInput) (*account.Role, error) {
	if s.updateRoleFn == nil {
		panic("unexpected UpdateRole call")
	}
	return s.updateRoleFn(ctx, roleID, in)
}

func (s *stubService) DeleteRole(ctx context.Context, roleID string) error {
	if s.deleteRoleFn == nil {
		panic("unexpected DeleteRole call")
	}
	return s.deleteRoleFn(ctx, roleID)
}

func (s *stubService) GetRole(ctx context.Context, roleID string) (*account.Role, error) {
	if s.getRoleFn == nil {
		panic("unexpected GetRole call")
	}
	return s.getRoleFn(ctx, roleID)
}

func (s *stubService) ListRoles(ctx context.Context) ([]account.Role, error) {
	if s.listRolesFn == nil {
		panic("unexpected ListRoles call")
	}
	return s.listRolesFn(ctx)
}

func (s *stubService) SetRolePermissions(ctx context.Context, roleID string, codes []int) error {
	if s.setRolePermsFn == nil {
		panic("unexpected SetRolePermissions call")
	}
	return s.setRolePermsFn(ctx, roleID, codes)
}

func (s *stubService) RolePermissions(ctx context.Context, roleID string) ([]account.Permission, error) {
	if s.rolePermsFn == nil {
		panic("unexpected RolePermissions call")
	}
	return s.rolePermsFn(ctx, roleID)
}

func (s *stubService) ListPermissions(ctx context.Context) ([]account.Permission, error) {
	if s.listPermsFn == nil {
		panic("unexpected ListPermissions call")
	}
	return s.listPermsFn(ctx)
}

// serveMux routes a request through the bare mux, skipping auth and the
// outer middleware, so handler tests exercise routing and mapping only.
func serveMux(t *testing.T, svc AccountService, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	api := New(svc, ReadyProbe{}, "test")
	rec := httptest.NewRecorder()
	api.mux.ServeHTTP(rec, req)
	return rec
}
