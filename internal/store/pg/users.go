package pg

import (
	"context"
	"database/sql"
	"errors"

	"accountsvc/internal/account"
)

type userStore struct {
	u *unitOfWork
}

var _ account.UserStore = (*userStore)(nil)

const userColumns = `id, username, email, password_hash, status,
	is_deleted, deleted_at, deleted_by, deleted_reason,
	created_at, created_by, last_modified_at, last_modified_by`

func (r *userStore) Create(ctx context.Context, u *account.User) error {
	if _, err := r.u.q().ExecContext(ctx, `
		insert into users (id, username, email, password_hash, status,
			is_deleted, deleted_at, deleted_by, deleted_reason,
			created_at, created_by, last_modified_at, last_modified_by)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, u.ID, u.Username, u.Email, u.PasswordHash, string(u.Status),
		u.IsDeleted, nullTimePtr(u.DeletedAt), nullIfEmpty(u.DeletedBy), nullIfEmpty(u.DeletedReason),
		u.CreatedAt, nullIfEmpty(u.CreatedBy), u.LastModifiedAt, nullIfEmpty(u.LastModifiedBy),
	); err != nil {
		return mapUserWriteError(err)
	}

	if u.Profile != nil {
		if err := r.SaveProfile(ctx, u.Profile); err != nil {
			return err
		}
	}
	for _, a := range u.Assignments {
		if err := r.AddRoleAssignment(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *userStore) GetByID(ctx context.Context, id string, includeDeleted bool) (*account.User, error) {
	query := `select ` + userColumns + ` from users where id = $1`
	if !includeDeleted {
		query += ` and not is_deleted`
	}
	u, err := scanUser(r.u.q().QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	profile, err := r.profileFor(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Profile = profile

	if err := r.loadRoles(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userStore) Update(ctx context.Context, u *account.User) error {
	res, err := r.u.q().ExecContext(ctx, `
		update users
		set username = $2, email = $3, password_hash = $4, status = $5,
			is_deleted = $6, deleted_at = $7, deleted_by = $8, deleted_reason = $9,
			last_modified_at = $10, last_modified_by = $11
		where id = $1
	`, u.ID, u.Username, u.Email, u.PasswordHash, string(u.Status),
		u.IsDeleted, nullTimePtr(u.DeletedAt), nullIfEmpty(u.DeletedBy), nullIfEmpty(u.DeletedReason),
		u.LastModifiedAt, nullIfEmpty(u.LastModifiedBy),
	)
	if err != nil {
		return mapUserWriteError(err)
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

func (r *userStore) SaveProfile(ctx context.Context, p *account.Profile) error {
	_, err := r.u.q().ExecContext(ctx, `
		insert into user_profiles (id, user_id, first_name, last_name, display_name,
			date_of_birth, avatar_url, bio, city, country, timezone, language,
			created_at, created_by, last_modified_at, last_modified_by)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		on conflict (user_id) do update set
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			display_name = excluded.display_name,
			date_of_birth = excluded.date_of_birth,
			avatar_url = excluded.avatar_url,
			bio = excluded.bio,
			city = excluded.city,
			country = excluded.country,
			timezone = excluded.timezone,
			language = excluded.language,
			last_modified_at = excluded.last_modified_at,
			last_modified_by = excluded.last_modified_by
	`, p.ID, p.UserID, nullIfEmpty(p.FirstName), nullIfEmpty(p.LastName), nullIfEmpty(p.DisplayName),
		nullTimePtr(p.DateOfBirth), nullIfEmpty(p.AvatarURL), nullIfEmpty(p.Bio), nullIfEmpty(p.City),
		nullIfEmpty(p.Country), nullIfEmpty(p.Timezone), nullIfEmpty(p.Language),
		p.CreatedAt, nullIfEmpty(p.CreatedBy), p.LastModifiedAt, nullIfEmpty(p.LastModifiedBy),
	)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return account.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *userStore) AddRoleAssignment(ctx context.Context, a account.RoleAssignment) error {
	_, err := r.u.q().ExecContext(ctx, `
		insert into user_roles (user_id, role_id, assigned_at, assigned_by)
		values ($1, $2, $3, $4)
	`, a.UserID, a.RoleID, a.AssignedAt, nullIfEmpty(a.AssignedBy))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return account.ErrConflict
			case pgErrForeignKeyViolation:
				return account.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (r *userStore) RemoveRoleAssignment(ctx context.Context, userID, roleID string) error {
	res, err := r.u.q().ExecContext(ctx, `
		delete from user_roles where user_id = $1 and role_id = $2
	`, userID, roleID)
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

func (r *userStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.u.q().QueryRowContext(ctx, `
		select exists(select 1 from users where email = $1 and not is_deleted)
	`, email).Scan(&exists)
	return exists, err
}

func (r *userStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.u.q().QueryRowContext(ctx, `
		select exists(select 1 from users where username = $1 and not is_deleted)
	`, username).Scan(&exists)
	return exists, err
}

func (r *userStore) List(ctx context.Context, page, pageSize int, includeDeleted bool) ([]account.User, int, error) {
	where := ``
	if !includeDeleted {
		where = ` where not is_deleted`
	}

	var total int
	if err := r.u.q().QueryRowContext(ctx, `select count(*) from users`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	rows, err := r.u.q().QueryContext(ctx, `
		select `+userColumns+`
		from users`+where+`
		order by created_at desc, id desc
		limit $1 offset $2
	`, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []account.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// --- internals ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*account.User, error) {
	var (
		u             account.User
		status        string
		deletedAt     sql.NullTime
		deletedBy     sql.NullString
		deletedReason sql.NullString
		createdBy     sql.NullString
		modifiedBy    sql.NullString
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &status,
		&u.IsDeleted, &deletedAt, &deletedBy, &deletedReason,
		&u.CreatedAt, &createdBy, &u.LastModifiedAt, &modifiedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Status = account.UserStatus(status)
	if deletedAt.Valid {
		t := deletedAt.Time
		u.DeletedAt = &t
	}
	u.DeletedBy = deletedBy.String
	u.DeletedReason = deletedReason.String
	u.CreatedBy = createdBy.String
	u.LastModifiedBy = modifiedBy.String
	return &u, nil
}

func (r *userStore) profileFor(ctx context.Context, userID string) (*account.Profile, error) {
	var (
		p          account.Profile
		first      sql.NullString
		last       sql.NullString
		display    sql.NullString
		dob        sql.NullTime
		avatar     sql.NullString
		bio        sql.NullString
		city       sql.NullString
		country    sql.NullString
		tz         sql.NullString
		lang       sql.NullString
		createdBy  sql.NullString
		modifiedBy sql.NullString
	)
	err := r.u.q().QueryRowContext(ctx, `
		select id, user_id, first_name, last_name, display_name,
			date_of_birth, avatar_url, bio, city, country, timezone, language,
			created_at, created_by, last_modified_at, last_modified_by
		from user_profiles
		where user_id = $1
	`, userID).Scan(&p.ID, &p.UserID, &first, &last, &display,
		&dob, &avatar, &bio, &city, &country, &tz, &lang,
		&p.CreatedAt, &createdBy, &p.LastModifiedAt, &modifiedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.FirstName = first.String
	p.LastName = last.String
	p.DisplayName = display.String
	if dob.Valid {
		t := dob.Time
		p.DateOfBirth = &t
	}
	p.AvatarURL = avatar.String
	p.Bio = bio.String
	p.City = city.String
	p.Country = country.String
	p.Timezone = tz.String
	p.Language = lang.String
	p.CreatedBy = createdBy.String
	p.LastModifiedBy = modifiedBy.String
	return &p, nil
}

func (r *userStore) loadRoles(ctx context.Context, u *account.User) error {
	rows, err := r.u.q().QueryContext(ctx, `
		select r.id, r.code, r.name, coalesce(r.description, ''),
			r.created_at, coalesce(r.created_by, ''),
			ur.assigned_at, coalesce(ur.assigned_by, '')
		from user_roles ur
		join roles r on r.id = ur.role_id
		where ur.user_id = $1
		order by r.code
	`, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			role account.Role
			a    account.RoleAssignment
		)
		if err := rows.Scan(&role.ID, &role.Code, &role.Name, &role.Description,
			&role.CreatedAt, &role.CreatedBy, &a.AssignedAt, &a.AssignedBy); err != nil {
			return err
		}
		a.UserID = u.ID
		a.RoleID = role.ID
		u.Roles = append(u.Roles, role)
		u.Assignments = append(u.Assignments, a)
	}
	return rows.Err()
}

// mapUserWriteError translates unique-index violations on the normalized
// email and username into their typed conflicts.
func mapUserWriteError(err error) error {
	pgErr, ok := maybePgError(err)
	if !ok {
		return err
	}
	switch pgErr.Code {
	case pgErrUniqueViolation:
		switch pgErr.ConstraintName {
		case "users_email_key":
			return account.ErrEmailExists
		case "users_username_key":
			return account.ErrUsernameExists
		}
		return account.ErrConflict
	case pgErrForeignKeyViolation:
		return account.ErrNotFound
	}
	return err
}
