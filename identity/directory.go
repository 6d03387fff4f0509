package identity

import "sync"

// Directory answers role and membership questions. Identity management
// itself lives outside the engine; this is the surface the engine consumes.
type Directory interface {
	HasRole(user string, role string) bool
	RolesOf(user string) []string
	UsersWithRole(role string) []string
	UserExists(user string) bool
	RoleExists(role string) bool
	IsEnabled(user string) bool
}

type userRecord struct {
	roles   map[string]struct{}
	enabled bool
}

// StaticDirectory is an in-memory Directory, loaded at startup or by tests.
type StaticDirectory struct {
	mu    sync.RWMutex
	users map[string]*userRecord
	roles map[string]struct{}
}

var _ Directory = new(StaticDirectory)

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		users: make(map[string]*userRecord),
		roles: make(map[string]struct{}),
	}
}

func (d *StaticDirectory) AddRole(role string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roles[role] = struct{}{}
}

func (d *StaticDirectory) AddUser(user string, roles ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := &userRecord{roles: make(map[string]struct{}), enabled: true}
	for _, r := range roles {
		rec.roles[r] = struct{}{}
		d.roles[r] = struct{}{}
	}
	d.users[user] = rec
}

func (d *StaticDirectory) Disable(user string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rec, ok := d.users[user]; ok {
		rec.enabled = false
	}
}

func (d *StaticDirectory) HasRole(user string, role string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.users[user]
	if !ok {
		return false
	}
	_, ok = rec.roles[role]
	return ok
}

func (d *StaticDirectory) RolesOf(user string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.users[user]
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(rec.roles))
	for r := range rec.roles {
		roles = append(roles, r)
	}
	return roles
}

func (d *StaticDirectory) UsersWithRole(role string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var users []string
	for name, rec := range d.users {
		if !rec.enabled {
			continue
		}
		if _, ok := rec.roles[role]; ok {
			users = append(users, name)
		}
	}
	return users
}

func (d *StaticDirectory) UserExists(user string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[user]
	return ok
}

func (d *StaticDirectory) RoleExists(role string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.roles[role]
	return ok
}

func (d *StaticDirectory) IsEnabled(user string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.users[user]
	return ok && rec.enabled
}
