package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"accountsvc/internal/account"
)

func TestTokenCreate(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	expires := now.Add(24 * time.Hour)

	mock.ExpectExec("insert into refresh_tokens").
		WithArgs("t1", "u1", "hash-1", expires, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	uow := store.NewUnitOfWork()
	defer uow.Close()

	err := uow.RefreshTokens().Create(context.Background(), &account.RefreshToken{
		ID: "t1", UserID: "u1", TokenHash: "hash-1", ExpiresAt: expires, CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenCreateMapsViolations(t *testing.T) {
	cases := []struct {
		name string
		code string
		want error
	}{
		{"duplicate hash", pgErrUniqueViolation, account.ErrConflict},
		{"dangling user", pgErrForeignKeyViolation, account.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			mock.ExpectExec("insert into refresh_tokens").
				WillReturnError(&pgconn.PgError{Code: tc.code})

			uow := store.NewUnitOfWork()
			defer uow.Close()

			err := uow.RefreshTokens().Create(context.Background(), &account.RefreshToken{
				ID: "t1", UserID: "u1", TokenHash: "hash-1",
				ExpiresAt: time.Now().UTC(), CreatedAt: time.Now().UTC(),
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestTokenRevokeAllForUser(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	// Only live tokens are stamped; rerunning is a no-op.
	mock.ExpectExec("update refresh_tokens").
		WithArgs("u1", now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("update refresh_tokens").
		WithArgs("u1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	uow := store.NewUnitOfWork()
	defer uow.Close()

	if err := uow.RefreshTokens().RevokeAllForUser(context.Background(), "u1", now); err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}
	if err := uow.RefreshTokens().RevokeAllForUser(context.Background(), "u1", now); err != nil {
		t.Fatalf("second revoke must be a no-op, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
