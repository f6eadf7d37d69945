package account

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// fakeData is the shared in-memory backing for fake units of work. It
// counts transaction lifecycle calls so tests can assert when work ran
// inside (or never reached) a transaction.
type fakeData struct {
	users       map[string]*User
	profiles    map[string]*Profile
	assignments map[string][]RoleAssignment
	roles       map[string]*Role
	perms       map[int]Permission
	rolePerms   map[string][]string
	audits      []AuditLog
	revoked     map[string]int

	begins    int
	commits   int
	rollbacks int

	// failOn triggers an injected error when the named operation runs.
	failOn string
}

func newFakeData() *fakeData {
	return &fakeData{
		users:       map[string]*User{},
		profiles:    map[string]*Profile{},
		assignments: map[string][]RoleAssignment{},
		roles:       map[string]*Role{},
		perms:       map[int]Permission{},
		rolePerms:   map[string][]string{},
		revoked:     map[string]int{},
	}
}

func (d *fakeData) fail(op string) error {
	if d.failOn == op {
		return fmt.Errorf("injected failure: %s", op)
	}
	return nil
}

type fakeFactory struct {
	data *fakeData
}

func (f *fakeFactory) NewUnitOfWork() UnitOfWork {
	return &fakeUoW{data: f.data}
}

type fakeUoW struct {
	data *fakeData
	open bool
}

func (u *fakeUoW) Users() UserStore                 { return &fakeUserStore{u.data} }
func (u *fakeUoW) Roles() RoleStore                 { return &fakeRoleStore{u.data} }
func (u *fakeUoW) Permissions() PermissionStore     { return &fakePermStore{u.data} }
func (u *fakeUoW) AuditLogs() AuditStore            { return &fakeAuditStore{u.data} }
func (u *fakeUoW) RefreshTokens() RefreshTokenStore { return &fakeTokenStore{u.data} }

func (u *fakeUoW) Begin(ctx context.Context) error {
	if u.open {
		return ErrTransactionStarted
	}
	u.open = true
	u.data.begins++
	return nil
}

func (u *fakeUoW) Commit(ctx context.Context) error {
	if !u.open {
		return ErrNoTransaction
	}
	u.open = false
	u.data.commits++
	return nil
}

func (u *fakeUoW) Rollback(ctx context.Context) error {
	if !u.open {
		return nil
	}
	u.open = false
	u.data.rollbacks++
	return nil
}

func (u *fakeUoW) Close() error { return u.Rollback(context.Background()) }

// --- user store ---

type fakeUserStore struct{ d *fakeData }

func (s *fakeUserStore) Create(ctx context.Context, u *User) error {
	if err := s.d.fail("users.create"); err != nil {
		return err
	}
	cp := *u
	s.d.users[u.ID] = &cp
	if u.Profile != nil {
		p := *u.Profile
		s.d.profiles[u.ID] = &p
	}
	s.d.assignments[u.ID] = append([]RoleAssignment(nil), u.Assignments...)
	return nil
}

func (s *fakeUserStore) GetByID(ctx context.Context, id string, includeDeleted bool) (*User, error) {
	if err := s.d.fail("users.get"); err != nil {
		return nil, err
	}
	stored, ok := s.d.users[id]
	if !ok || (stored.IsDeleted && !includeDeleted) {
		return nil, ErrNotFound
	}
	cp := *stored
	if p, ok := s.d.profiles[id]; ok {
		pcp := *p
		cp.Profile = &pcp
	}
	cp.Assignments = append([]RoleAssignment(nil), s.d.assignments[id]...)
	for _, a := range cp.Assignments {
		if role, ok := s.d.roles[a.RoleID]; ok {
			cp.Roles = append(cp.Roles, *role)
		}
	}
	return &cp, nil
}

func (s *fakeUserStore) Update(ctx context.Context, u *User) error {
	if err := s.d.fail("users.update"); err != nil {
		return err
	}
	if _, ok := s.d.users[u.ID]; !ok {
		return ErrNotFound
	}
	cp := *u
	cp.Profile = nil
	cp.Roles = nil
	cp.Assignments = nil
	s.d.users[u.ID] = &cp
	return nil
}

func (s *fakeUserStore) SaveProfile(ctx context.Context, p *Profile) error {
	if err := s.d.fail("users.save_profile"); err != nil {
		return err
	}
	cp := *p
	s.d.profiles[p.UserID] = &cp
	return nil
}

func (s *fakeUserStore) AddRoleAssignment(ctx context.Context, a RoleAssignment) error {
	if err := s.d.fail("users.add_assignment"); err != nil {
		return err
	}
	for _, existing := range s.d.assignments[a.UserID] {
		if existing.RoleID == a.RoleID {
			return ErrConflict
		}
	}
	s.d.assignments[a.UserID] = append(s.d.assignments[a.UserID], a)
	return nil
}

func (s *fakeUserStore) RemoveRoleAssignment(ctx context.Context, userID, roleID string) error {
	list := s.d.assignments[userID]
	for i, a := range list {
		if a.RoleID == roleID {
			s.d.assignments[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *fakeUserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	if err := s.d.fail("users.email_exists"); err != nil {
		return false, err
	}
	for _, u := range s.d.users {
		if !u.IsDeleted && u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeUserStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	for _, u := range s.d.users {
		if !u.IsDeleted && u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeUserStore) List(ctx context.Context, page, pageSize int, includeDeleted bool) ([]User, int, error) {
	var all []User
	for _, u := range s.d.users {
		if u.IsDeleted && !includeDeleted {
			continue
		}
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

// --- role store ---

type fakeRoleStore struct{ d *fakeData }

func (s *fakeRoleStore) Create(ctx context.Context, r *Role) error {
	for _, existing := range s.d.roles {
		if existing.Code == r.Code {
			return ErrRoleCodeExists
		}
	}
	cp := *r
	s.d.roles[r.ID] = &cp
	return nil
}

func (s *fakeRoleStore) GetByID(ctx context.Context, id string) (*Role, error) {
	r, ok := s.d.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeRoleStore) FindByIDs(ctx context.Context, ids []string) ([]Role, error) {
	if err := s.d.fail("roles.find"); err != nil {
		return nil, err
	}
	var out []Role
	for _, id := range ids {
		if r, ok := s.d.roles[id]; ok {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeRoleStore) CodeExists(ctx context.Context, code string) (bool, error) {
	for _, r := range s.d.roles {
		if r.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeRoleStore) Update(ctx context.Context, r *Role) error {
	if _, ok := s.d.roles[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	s.d.roles[r.ID] = &cp
	return nil
}

func (s *fakeRoleStore) Delete(ctx context.Context, id string) error {
	if _, ok := s.d.roles[id]; !ok {
		return ErrNotFound
	}
	for _, list := range s.d.assignments {
		for _, a := range list {
			if a.RoleID == id {
				return ErrRoleAssigned
			}
		}
	}
	delete(s.d.roles, id)
	return nil
}

func (s *fakeRoleStore) List(ctx context.Context) ([]Role, error) {
	var out []Role
	for _, r := range s.d.roles {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// --- permission store ---

type fakePermStore struct{ d *fakeData }

func (s *fakePermStore) Ensure(ctx context.Context, perms []Permission) error {
	for _, p := range perms {
		s.d.perms[p.Code] = p
	}
	return nil
}

func (s *fakePermStore) List(ctx context.Context) ([]Permission, error) {
	var out []Permission
	for _, p := range s.d.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *fakePermStore) FindByCodes(ctx context.Context, codes []int) ([]Permission, error) {
	var out []Permission
	for _, c := range codes {
		if p, ok := s.d.perms[c]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakePermStore) SetForRole(ctx context.Context, roleID string, permissionIDs []string, assignedBy string, at time.Time) error {
	if err := s.d.fail("perms.set_for_role"); err != nil {
		return err
	}
	s.d.rolePerms[roleID] = append([]string(nil), permissionIDs...)
	return nil
}

func (s *fakePermStore) PermissionsForRole(ctx context.Context, roleID string) ([]Permission, error) {
	var out []Permission
	for _, id := range s.d.rolePerms[roleID] {
		for _, p := range s.d.perms {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (s *fakePermStore) CodesForUser(ctx context.Context, userID string) ([]int, error) {
	if err := s.d.fail("perms.codes_for_user"); err != nil {
		return nil, err
	}
	seen := map[int]struct{}{}
	var codes []int
	for _, a := range s.d.assignments[userID] {
		for _, permID := range s.d.rolePerms[a.RoleID] {
			for _, p := range s.d.perms {
				if p.ID == permID && p.Active {
					if _, dup := seen[p.Code]; !dup {
						seen[p.Code] = struct{}{}
						codes = append(codes, p.Code)
					}
				}
			}
		}
	}
	sort.Ints(codes)
	return codes, nil
}

// --- audit store ---

type fakeAuditStore struct{ d *fakeData }

func (s *fakeAuditStore) Append(ctx context.Context, entry *AuditLog) error {
	if err := s.d.fail("audit.append"); err != nil {
		return err
	}
	s.d.audits = append(s.d.audits, *entry)
	return nil
}

func (s *fakeAuditStore) ListByTarget(ctx context.Context, targetUserID string, page, pageSize int) ([]AuditLog, int, error) {
	var matched []AuditLog
	for i := len(s.d.audits) - 1; i >= 0; i-- {
		if s.d.audits[i].TargetUserID == targetUserID {
			matched = append(matched, s.d.audits[i])
		}
	}
	total := len(matched)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *fakeAuditStore) ListByActor(ctx context.Context, actorUserID string, page, pageSize int) ([]AuditLog, int, error) {
	var matched []AuditLog
	for i := len(s.d.audits) - 1; i >= 0; i-- {
		if s.d.audits[i].ActorUserID == actorUserID {
			matched = append(matched, s.d.audits[i])
		}
	}
	total := len(matched)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// --- token store ---

type fakeTokenStore struct{ d *fakeData }

func (s *fakeTokenStore) Create(ctx context.Context, tok *RefreshToken) error { return nil }

func (s *fakeTokenStore) RevokeAllForUser(ctx context.Context, userID string, at time.Time) error {
	if err := s.d.fail("tokens.revoke"); err != nil {
		return err
	}
	s.d.revoked[userID]++
	return nil
}

// --- shared helpers ---

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type countingCache struct {
	store       map[string][]int
	gets        int
	sets        int
	invalidates int
}

func newCountingCache() *countingCache {
	return &countingCache{store: map[string][]int{}}
}

func (c *countingCache) Get(ctx context.Context, userID string) ([]int, bool, error) {
	c.gets++
	codes, ok := c.store[userID]
	return codes, ok, nil
}

func (c *countingCache) Set(ctx context.Context, userID string, codes []int) error {
	c.sets++
	c.store[userID] = codes
	return nil
}

func (c *countingCache) Invalidate(ctx context.Context, userID string) error {
	c.invalidates++
	delete(c.store, userID)
	return nil
}
