package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"accountsvc/internal/account"
	"accountsvc/internal/obs"
)

// AccountService is the surface of the lifecycle manager the HTTP layer
// depends on. Defined here so handler tests can stub it.
type AccountService interface {
	Create(ctx context.Context, in account.CreateUserInput) (*account.User, error)
	Update(ctx context.Context, userID string, in account.UpdateUserInput) (*account.User, error)
	SoftDelete(ctx context.Context, userID, reason string) error
	Restore(ctx context.Context, userID string) error
	GetByID(ctx context.Context, userID string) (*account.User, error)
	List(ctx context.Context, page, pageSize int) (account.Page[account.User], error)
	GetAuditTrail(ctx context.Context, userID string, page, pageSize int) (account.Page[account.AuditLog], error)
	GetAuditTrailByActor(ctx context.Context, actorUserID string, page, pageSize int) (account.Page[account.AuditLog], error)
	UserPermissionCodes(ctx context.Context, userID string) ([]int, error)

	CreateRole(ctx context.Context, in account.CreateRoleInput) (*account.Role, error)
	UpdateRole(ctx context.Context, roleID string, in account.UpdateRoleInput) (*account.Role, error)
	DeleteRole(ctx context.Context, roleID string) error
	GetRole(ctx context.Context, roleID string) (*account.Role, error)
	ListRoles(ctx context.Context) ([]account.Role, error)
	SetRolePermissions(ctx context.Context, roleID string, codes []int) error
	RolePermissions(ctx context.Context, roleID string) ([]account.Permission, error)
	ListPermissions(ctx context.Context) ([]account.Permission, error)
}

// ReadyProbe is a simple readiness check (e.g. a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	svc        AccountService
	readyProbe ReadyProbe
	version    string
}

func New(svc AccountService, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		readyProbe: rp,
		version:    version,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// users
	a.mux.HandleFunc("/v1/users", a.handleUsersCollection)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	// roles and permission catalog
	a.mux.HandleFunc("/v1/roles", a.handleRolesCollection)
	a.mux.HandleFunc("/v1/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/v1/permissions", a.handlePermissions)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 20, 10)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "accountsvc",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "accountsvc",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
