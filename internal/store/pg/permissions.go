package pg

import (
	"context"
	"time"

	"accountsvc/internal/account"
)

type permissionStore struct {
	u *unitOfWork
}

var _ account.PermissionStore = (*permissionStore)(nil)

const permColumns = `id, code, name, resource, action, is_active, created_at`

func (r *permissionStore) Ensure(ctx context.Context, perms []account.Permission) error {
	for _, p := range perms {
		if _, err := r.u.q().ExecContext(ctx, `
			insert into permissions (id, code, name, resource, action, is_active, created_at)
			values ($1, $2, $3, $4, $5, $6, $7)
			on conflict (code) do update set
				name = excluded.name,
				resource = excluded.resource,
				action = excluded.action,
				is_active = excluded.is_active
		`, p.ID, p.Code, p.Name, p.Resource, p.Action, p.Active, p.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *permissionStore) List(ctx context.Context) ([]account.Permission, error) {
	rows, err := r.u.q().QueryContext(ctx, `
		select `+permColumns+` from permissions order by code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []account.Permission
	for rows.Next() {
		var p account.Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Resource, &p.Action, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *permissionStore) FindByCodes(ctx context.Context, codes []int) ([]account.Permission, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	args := make([]any, len(codes))
	for i, c := range codes {
		args[i] = c
	}
	rows, err := r.u.q().QueryContext(ctx, `
		select `+permColumns+` from permissions where code in (`+placeholders(1, len(codes))+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []account.Permission
	for rows.Next() {
		var p account.Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Resource, &p.Action, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// SetForRole replaces the role's permission set. Callers run this inside
// an open transaction so the delete and inserts land atomically.
func (r *permissionStore) SetForRole(ctx context.Context, roleID string, permissionIDs []string, assignedBy string, at time.Time) error {
	if _, err := r.u.q().ExecContext(ctx, `
		delete from role_permissions where role_id = $1
	`, roleID); err != nil {
		return err
	}
	for _, permID := range permissionIDs {
		if _, err := r.u.q().ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id, assigned_at, assigned_by)
			values ($1, $2, $3, $4)
		`, roleID, permID, at, nullIfEmpty(assignedBy)); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return account.ErrNotFound
			}
			return err
		}
	}
	return nil
}

func (r *permissionStore) PermissionsForRole(ctx context.Context, roleID string) ([]account.Permission, error) {
	rows, err := r.u.q().QueryContext(ctx, `
		select p.id, p.code, p.name, p.resource, p.action, p.is_active, p.created_at
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role_id = $1
		order by p.code
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []account.Permission
	for rows.Next() {
		var p account.Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Resource, &p.Action, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *permissionStore) CodesForUser(ctx context.Context, userID string) ([]int, error) {
	rows, err := r.u.q().QueryContext(ctx, `
		select distinct p.code
		from user_roles ur
		join role_permissions rp on rp.role_id = ur.role_id
		join permissions p on p.id = rp.permission_id
		where ur.user_id = $1 and p.is_active
		order by p.code
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []int
	for rows.Next() {
		var code int
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}
