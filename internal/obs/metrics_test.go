package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"", "/"},
		{"/healthz", "/healthz"},
		{"/v1/users", "/v1/users"},
		{"/v1/users/0195e9a2-ulid", "/v1/users/:id"},
		{"/v1/users/0195e9a2-ulid/audit", "/v1/users/:id/audit"},
		{"/v1/users/0195e9a2-ulid/restore", "/v1/users/:id/restore"},
		{"/v1/roles/role-42", "/v1/roles/:id"},
		{"/v1/roles/role-42/permissions", "/v1/roles/:id/permissions"},
		{"/v1/permissions", "/v1/permissions"},
		{"/v1/users/abc?page=2", "/v1/users/:id"},
	}
	for _, tc := range cases {
		if got := CanonicalPath(tc.in); got != tc.want {
			t.Fatalf("CanonicalPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
