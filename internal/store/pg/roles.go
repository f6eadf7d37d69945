package pg

import (
	"context"
	"database/sql"
	"errors"

	"accountsvc/internal/account"
)

type roleStore struct {
	u *unitOfWork
}

var _ account.RoleStore = (*roleStore)(nil)

const roleColumns = `id, code, name, coalesce(description, ''),
	created_at, coalesce(created_by, ''), last_modified_at, coalesce(last_modified_by, '')`

func (r *roleStore) Create(ctx context.Context, role *account.Role) error {
	_, err := r.u.q().ExecContext(ctx, `
		insert into roles (id, code, name, description, created_at, created_by, last_modified_at, last_modified_by)
		values ($1, $2, $3, $4, $5, $6, $5, $6)
	`, role.ID, role.Code, role.Name, nullIfEmpty(role.Description), role.CreatedAt, nullIfEmpty(role.CreatedBy))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return account.ErrRoleCodeExists
		}
		return err
	}
	return nil
}

func (r *roleStore) GetByID(ctx context.Context, id string) (*account.Role, error) {
	role, err := scanRole(r.u.q().QueryRowContext(ctx, `
		select `+roleColumns+` from roles where id = $1
	`, id))
	if err != nil {
		return nil, err
	}
	return role, nil
}

func (r *roleStore) FindByIDs(ctx context.Context, ids []string) ([]account.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.u.q().QueryContext(ctx, `
		select `+roleColumns+` from roles where id in (`+placeholders(1, len(ids))+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []account.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

func (r *roleStore) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.u.q().QueryRowContext(ctx, `
		select exists(select 1 from roles where code = $1)
	`, code).Scan(&exists)
	return exists, err
}

func (r *roleStore) Update(ctx context.Context, role *account.Role) error {
	res, err := r.u.q().ExecContext(ctx, `
		update roles
		set name = $2, description = $3, last_modified_at = now()
		where id = $1
	`, role.ID, role.Name, nullIfEmpty(role.Description))
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (r *roleStore) Delete(ctx context.Context, id string) error {
	res, err := r.u.q().ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return account.ErrRoleAssigned
		}
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (r *roleStore) List(ctx context.Context) ([]account.Role, error) {
	rows, err := r.u.q().QueryContext(ctx, `
		select `+roleColumns+` from roles order by code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []account.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

func scanRole(row rowScanner) (*account.Role, error) {
	var role account.Role
	err := row.Scan(&role.ID, &role.Code, &role.Name, &role.Description,
		&role.CreatedAt, &role.CreatedBy, &role.LastModifiedAt, &role.LastModifiedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}
