package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"accountsvc/internal/account"
	"accountsvc/internal/audit"
	"accountsvc/internal/obs"
)

type profilePayload struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DisplayName string     `json:"display_name"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	AvatarURL   string     `json:"avatar_url"`
	Bio         string     `json:"bio"`
	City        string     `json:"city"`
	Country     string     `json:"country"`
	Timezone    string     `json:"timezone"`
	Language    string     `json:"language"`
}

func (p *profilePayload) toInput() *account.ProfileInput {
	if p == nil {
		return nil
	}
	return &account.ProfileInput{
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DisplayName: p.DisplayName,
		DateOfBirth: p.DateOfBirth,
		AvatarURL:   p.AvatarURL,
		Bio:         p.Bio,
		City:        p.City,
		Country:     p.Country,
		Timezone:    p.Timezone,
		Language:    p.Language,
	}
}

type createUserRequest struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Status   string          `json:"status"`
	Profile  *profilePayload `json:"profile"`
	RoleIDs  []string        `json:"role_ids"`
}

type updateUserRequest struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Status   string          `json:"status"`
	Profile  *profilePayload `json:"profile"`
	RoleIDs  []string        `json:"role_ids"`
}

type softDeleteRequest struct {
	Reason string `json:"reason"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createUser(w, r)
	case http.MethodGet:
		a.listUsers(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID := parts[0]

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			a.getUser(w, r, userID)
		case http.MethodPut:
			a.updateUser(w, r, userID)
		case http.MethodDelete:
			a.softDeleteUser(w, r, userID)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "restore":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.restoreUser(w, r, userID)
	case len(parts) == 2 && parts[1] == "audit":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.userAuditTrail(w, r, userID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.svc.Create(r.Context(), account.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Status:   account.UserStatus(req.Status),
		Profile:  req.Profile.toInput(),
		RoleIDs:  req.RoleIDs,
	})
	obs.ObserveAccountOp("user.create", outcomeFor(err))
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "account.user.create", map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	page, err := parsePositiveInt(r.URL.Query().Get("page"), 1, 1, 1<<30)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	pageSize, err := parsePositiveInt(r.URL.Query().Get("page_size"), 20, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "page_size must be between 1 and 100")
		return
	}
	result, err := a.svc.List(r.Context(), page, pageSize)
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, userID string) {
	user, err := a.svc.GetByID(r.Context(), userID)
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, userID string) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.svc.Update(r.Context(), userID, account.UpdateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Status:   account.UserStatus(req.Status),
		Profile:  req.Profile.toInput(),
		RoleIDs:  req.RoleIDs,
	})
	obs.ObserveAccountOp("user.update", outcomeFor(err))
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "account.user.update", map[string]any{
		"user_id": user.ID,
	})
	writeJSON(w, http.StatusOK, user)
}

func (a *API) softDeleteUser(w http.ResponseWriter, r *http.Request, userID string) {
	var req softDeleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	err := a.svc.SoftDelete(r.Context(), userID, req.Reason)
	obs.ObserveAccountOp("user.soft_delete", outcomeFor(err))
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "account.user.soft_delete", map[string]any{
		"user_id": userID,
		"reason":  strings.TrimSpace(req.Reason),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) restoreUser(w http.ResponseWriter, r *http.Request, userID string) {
	err := a.svc.Restore(r.Context(), userID)
	obs.ObserveAccountOp("user.restore", outcomeFor(err))
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "account.user.restore", map[string]any{
		"user_id": userID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) userAuditTrail(w http.ResponseWriter, r *http.Request, userID string) {
	page, err := parsePositiveInt(r.URL.Query().Get("page"), 1, 1, 1<<30)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	pageSize, err := parsePositiveInt(r.URL.Query().Get("page_size"), 20, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "page_size must be between 1 and 100")
		return
	}
	var trail account.Page[account.AuditLog]
	switch r.URL.Query().Get("by") {
	case "", "target":
		trail, err = a.svc.GetAuditTrail(r.Context(), userID, page, pageSize)
	case "actor":
		trail, err = a.svc.GetAuditTrailByActor(r.Context(), userID, page, pageSize)
	default:
		writeError(w, r, http.StatusBadRequest, "by must be target or actor")
		return
	}
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trail)
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, account.ErrPermissionDenied):
		return "denied"
	case errors.Is(err, account.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, account.ErrConflict):
		return "conflict"
	case errors.Is(err, account.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
