package pg

import (
	"context"
	"database/sql"
	"errors"

	"accountsvc/internal/account"
)

// dbtx is the common query surface of *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// unitOfWork runs repository calls against the pool while idle and
// against one shared *sql.Tx while a transaction is open. Not safe for
// concurrent use; create one per request.
type unitOfWork struct {
	db *sql.DB
	tx *sql.Tx
}

var _ account.UnitOfWork = (*unitOfWork)(nil)

// NewUnitOfWork returns a fresh idle unit of work.
func (s *Store) NewUnitOfWork() account.UnitOfWork {
	return &unitOfWork{db: s.db}
}

// q routes repository queries to the open transaction when there is one.
func (u *unitOfWork) q() dbtx {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return account.ErrTransactionStarted
	}
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	u.tx = tx
	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return account.ErrNoTransaction
	}
	tx := u.tx
	u.tx = nil
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return err
	}
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	tx := u.tx
	u.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// Close releases the unit of work, rolling back anything left open.
func (u *unitOfWork) Close() error {
	return u.Rollback(context.Background())
}

func (u *unitOfWork) Users() account.UserStore                 { return &userStore{u} }
func (u *unitOfWork) Roles() account.RoleStore                 { return &roleStore{u} }
func (u *unitOfWork) Permissions() account.PermissionStore     { return &permissionStore{u} }
func (u *unitOfWork) AuditLogs() account.AuditStore            { return &auditStore{u} }
func (u *unitOfWork) RefreshTokens() account.RefreshTokenStore { return &tokenStore{u} }
