package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"accountsvc/internal/account"
)

func TestCreateUserReturnsCreatedWithLocation(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	svc := &stubService{
		createFn: func(ctx context.Context, in account.CreateUserInput) (*account.User, error) {
			if in.Username != "alice" || in.Email != "alice@example.com" {
				t.Fatalf("input not forwarded: %+v", in)
			}
			if in.Profile == nil || in.Profile.FirstName != "Alice" {
				t.Fatalf("profile not forwarded: %+v", in.Profile)
			}
			return &account.User{
				ID: "u1", Username: in.Username, Email: in.Email,
				Status: account.StatusPending, CreatedAt: now, LastModifiedAt: now,
			}, nil
		},
	}

	body := `{"username":"alice","email":"alice@example.com","password":"secret-pass",
		"profile":{"first_name":"Alice","last_name":"Doe","display_name":"","date_of_birth":null,
		"avatar_url":"","bio":"","city":"","country":"","timezone":"","language":""}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/users", strings.NewReader(body))
	rec := serveMux(t, svc, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/users/u1" {
		t.Fatalf("unexpected Location: %q", loc)
	}
	var got account.User
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != "u1" || got.Status != account.StatusPending {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestCreateUserPermissionDenied(t *testing.T) {
	svc := &stubService{
		createFn: func(ctx context.Context, in account.CreateUserInput) (*account.User, error) {
			return nil, account.ErrPermissionDenied
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/users",
		strings.NewReader(`{"username":"alice","email":"a@b.c","password":"secret-pass"}`))
	rec := serveMux(t, svc, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["error"] != "permission denied" {
		t.Fatalf("unexpected error body: %v", payload)
	}
}

func TestCreateUserRejectsUnknownField(t *testing.T) {
	svc := &stubService{}
	req := httptest.NewRequest(http.MethodPost, "/v1/users",
		strings.NewReader(`{"username":"alice","is_admin":true}`))
	rec := serveMux(t, svc, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestCreateUserConflictMapsTo409(t *testing.T) {
	svc := &stubService{
		createFn: func(ctx context.Context, in account.CreateUserInput) (*account.User, error) {
			return nil, account.ErrEmailExists
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/users",
		strings.NewReader(`{"username":"alice","email":"a@b.c","password":"secret-pass"}`))
	rec := serveMux(t, svc, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestGetUserNotFound(t *testing.T) {
	svc := &stubService{
		getByIDFn: func(ctx context.Context, userID string) (*account.User, error) {
			return nil, account.ErrNotFound
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/users/u-missing", nil)
	rec := serveMux(t, svc, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListUsersRejectsBadPaging(t *testing.T) {
	svc := &stubService{}
	for _, q := range []string{"page=abc", "page_size=0", "page_size=101"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/users?"+q, nil)
		rec := serveMux(t, svc, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("query %q: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestListUsersForwardsPaging(t *testing.T) {
	svc := &stubService{
		listFn: func(ctx context.Context, page, pageSize int) (account.Page[account.User], error) {
			if page != 3 || pageSize != 50 {
				t.Fatalf("paging not forwarded: page=%d size=%d", page, pageSize)
			}
			return account.Page[account.User]{Items: []account.User{}, TotalCount: 0, PageNumber: page, PageSize: pageSize}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/users?page=3&page_size=50", nil)
	rec := serveMux(t, svc, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSoftDeleteUser(t *testing.T) {
	var gotID, gotReason string
	svc := &stubService{
		softDeleteFn: func(ctx context.Context, userID, reason string) error {
			gotID, gotReason = userID, reason
			return nil
		},
	}
	req := httptest.NewRequest(http.MethodDelete, "/v1/users/u1",
		strings.NewReader(`{"reason":"policy violation"}`))
	rec := serveMux(t, svc, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotID != "u1" || gotReason != "policy violation" {
		t.Fatalf("call not forwarded: id=%q reason=%q", gotID, gotReason)
	}
}

func TestSoftDeleteUserRequiresBody(t *testing.T) {
	svc := &stubService{}
	req := httptest.NewRequest(http.MethodDelete, "/v1/users/u1", nil)
	rec := serveMux(t, svc, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing body, got %d", rec.Code)
	}
}

func TestRestoreUser(t *testing.T) {
	var gotID string
	svc := &stubService{
		restoreFn: func(ctx context.Context, userID string) error {
			gotID = userID
			return nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/users/u1/restore", nil)
	rec := serveMux(t, svc, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if gotID != "u1" {
		t.Fatalf("restore not forwarded: %q", gotID)
	}
}

func TestRestoreUserNotDeleted(t *testing.T) {
	svc := &stubService{
		restoreFn: func(ctx context.Context, userID string) error {
			return account.ErrNotDeleted
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/users/u1/restore", nil)
	rec := serveMux(t, svc, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUserAuditTrail(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	svc := &stubService{
		auditTrailFn: func(ctx context.Context, userID string, page, pageSize int) (account.Page[account.AuditLog], error) {
			if userID != "u1" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return account.Page[account.AuditLog]{
				Items: []account.AuditLog{{
					ID: "a1", ActorUserID: "admin-1", TargetUserID: "u1",
					Action: account.ActionSoftDelete, Reason: "policy violation",
					CreatedAt: now, CorrelationID: "corr-1",
				}},
				TotalCount: 1, PageNumber: 1, PageSize: 20,
			}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/users/u1/audit", nil)
	rec := serveMux(t, svc, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page account.Page[account.AuditLog]
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if page.TotalCount != 1 || len(page.Items) != 1 || page.Items[0].Action != account.ActionSoftDelete {
		t.Fatalf("unexpected trail: %+v", page)
	}
}

func TestUserAuditTrailByActor(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	svc := &stubService{
		auditByActorFn: func(ctx context.Context, actorUserID string, page, pageSize int) (account.Page[account.AuditLog], error) {
			if actorUserID != "admin-1" {
				t.Fatalf("unexpected actor id %q", actorUserID)
			}
			return account.Page[account.AuditLog]{
				Items: []account.AuditLog{{
					ID: "a1", ActorUserID: "admin-1", TargetUserID: "u1",
					Action: account.ActionSoftDelete, CreatedAt: now, CorrelationID: "corr-1",
				}},
				TotalCount: 1, PageNumber: 1, PageSize: 20,
			}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/users/admin-1/audit?by=actor", nil)
	rec := serveMux(t, svc, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var page account.Page[account.AuditLog]
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if page.TotalCount != 1 || page.Items[0].ActorUserID != "admin-1" {
		t.Fatalf("unexpected trail: %+v", page)
	}
}

func TestUserAuditTrailRejectsUnknownView(t *testing.T) {
	svc := &stubService{}
	req := httptest.NewRequest(http.MethodGet, "/v1/users/u1/audit?by=everyone", nil)
	rec := serveMux(t, svc, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown by value, got %d", rec.Code)
	}
}

func TestUserMethodNotAllowed(t *testing.T) {
	svc := &stubService{}
	req := httptest.NewRequest(http.MethodPatch, "/v1/users/u1", nil)
	rec := serveMux(t, svc, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodPut) {
		t.Fatalf("Allow header missing PUT: %q", allow)
	}
}

func TestUnknownUserSubresource(t *testing.T) {
	svc := &stubService{}
	req := httptest.NewRequest(http.MethodGet, "/v1/users/u1/unknown", nil)
	rec := serveMux(t, svc, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
