package pg

import (
	"context"
	"time"

	"accountsvc/internal/account"
)

type tokenStore struct {
	u *unitOfWork
}

var _ account.RefreshTokenStore = (*tokenStore)(nil)

func (r *tokenStore) Create(ctx context.Context, tok *account.RefreshToken) error {
	_, err := r.u.q().ExecContext(ctx, `
		insert into refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		values ($1, $2, $3, $4, $5)
	`, tok.ID, tok.UserID, tok.TokenHash, tok.ExpiresAt, tok.CreatedAt)
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

// RevokeAllForUser stamps every live token for the user. Already revoked
// or expired tokens are left untouched so revocation stays idempotent.
func (r *tokenStore) RevokeAllForUser(ctx context.Context, userID string, at time.Time) error {
	_, err := r.u.q().ExecContext(ctx, `
		update refresh_tokens
		set revoked_at = $2, revoked_reason = 'user soft deleted'
		where user_id = $1 and revoked_at is null
	`, userID, at)
	return err
}
