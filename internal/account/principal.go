package account

import (
	"context"
	"strconv"
	"strings"
)

// Principal is the resolved caller identity: an optional user id and name
// plus the set of permission codes decoded once at request entry. The core
// never parses tokens; the transport layer constructs the principal.
type Principal struct {
	UserID      string
	Username    string
	permissions map[int]struct{}
}

// NewPrincipal constructs a principal with a preloaded permission set.
func NewPrincipal(userID, username string, codes []int) Principal {
	set := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return Principal{UserID: userID, Username: username, permissions: set}
}

// HasPermission reports whether the principal holds the required code.
// A nil or empty permission set always denies.
func (p Principal) HasPermission(code int) bool {
	_, ok := p.permissions[code]
	return ok
}

// PermissionCodes returns the principal's codes in unspecified order.
func (p Principal) PermissionCodes() []int {
	out := make([]int, 0, len(p.permissions))
	for c := range p.permissions {
		out = append(out, c)
	}
	return out
}

// ParsePermissionCodes decodes a comma-separated permission claim.
// Malformed entries are discarded rather than failing the whole set.
func ParsePermissionCodes(raw string) []int {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	seen := make(map[int]struct{}, len(parts))
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		code, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

type principalContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}
