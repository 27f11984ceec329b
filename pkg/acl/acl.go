// Package acl implements the ACL user table spec.md §4.12 describes:
// named users carrying password hashes, key-pattern grants, and
// command-family allow/deny rules, resolved the way Redis's ACL SETUSER
// mini-language does — rules applied left to right, later rules
// overriding earlier ones for the same predicate.
package acl

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spineldb/spineldb/pkg/clusterstore"
	"github.com/spineldb/spineldb/pkg/pubsub"
)

// User is one ACL identity: a password set (SHA-256 hex digests, never
// plaintext, matching Redis's ACL storage format), a key-access grant,
// and a command-family grant.
type User struct {
	Name            string   `json:"name"`
	Enabled         bool     `json:"enabled"`
	NoPass          bool     `json:"nopass"`
	PasswordHashes  []string `json:"password_hashes,omitempty"`
	AllKeys         bool     `json:"all_keys"`
	KeyPatterns     []string `json:"key_patterns,omitempty"`
	AllCommands     bool     `json:"all_commands"`
	AllowedCommands []string `json:"allowed_commands,omitempty"`
	DeniedCommands  []string `json:"denied_commands,omitempty"`
}

func hashPassword(pw string) string {
	sum := sha256.Sum256([]byte(pw))
	return hex.EncodeToString(sum[:])
}

// defaultUser is the out-of-the-box "default" identity: nopass, full key
// and command access, matching a fresh Redis instance with no ACL
// configuration applied yet.
func defaultUser() *User {
	return &User{
		Name:        "default",
		Enabled:     true,
		NoPass:      true,
		AllKeys:     true,
		AllCommands: true,
	}
}

// Describe renders u the way ACL LIST/ACL GETUSER report a user, e.g.
// "user default on nopass ~* +@all".
func (u *User) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "user %s", u.Name)
	if u.Enabled {
		b.WriteString(" on")
	} else {
		b.WriteString(" off")
	}
	if u.NoPass {
		b.WriteString(" nopass")
	} else {
		for _, h := range u.PasswordHashes {
			fmt.Fprintf(&b, " #%s", h)
		}
	}
	if u.AllKeys {
		b.WriteString(" ~*")
	} else {
		for _, p := range u.KeyPatterns {
			fmt.Fprintf(&b, " ~%s", p)
		}
	}
	if u.AllCommands {
		b.WriteString(" +@all")
	} else {
		b.WriteString(" -@all")
		for _, c := range u.AllowedCommands {
			fmt.Fprintf(&b, " +%s", c)
		}
		for _, c := range u.DeniedCommands {
			fmt.Fprintf(&b, " -%s", c)
		}
	}
	return b.String()
}

// Table is the live, in-memory ACL user table, persisted through
// pkg/clusterstore the way CLUSTER's slot table is.
type Table struct {
	mu    sync.RWMutex
	users map[string]*User
	store *clusterstore.Store
}

// NewTable builds a table seeded with the default user, then loads any
// persisted users over it (so a saved "default" user's rules win).
func NewTable(store *clusterstore.Store) *Table {
	t := &Table{users: map[string]*User{"default": defaultUser()}, store: store}
	_ = t.Load()
	return t
}

// SetUser creates or updates name, applying rules in order the way ACL
// SETUSER does. Recognized rule tokens: on, off, nopass, resetpass,
// >password, <password (removes a password), ~pattern, allkeys,
// resetkeys, allcommands, nocommands, +command, -command, reset.
func (t *Table) SetUser(name string, rules []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.users[name]
	if !ok {
		u = &User{Name: name}
		t.users[name] = u
	}
	for _, rule := range rules {
		if err := applyRule(u, rule); err != nil {
			return err
		}
	}
	return nil
}

func applyRule(u *User, rule string) error {
	switch {
	case rule == "reset":
		*u = User{Name: u.Name}
	case rule == "on":
		u.Enabled = true
	case rule == "off":
		u.Enabled = false
	case rule == "nopass":
		u.NoPass = true
		u.PasswordHashes = nil
	case rule == "resetpass":
		u.NoPass = false
		u.PasswordHashes = nil
	case strings.HasPrefix(rule, ">"):
		u.NoPass = false
		u.PasswordHashes = append(u.PasswordHashes, hashPassword(rule[1:]))
	case strings.HasPrefix(rule, "<"):
		removeHash(u, hashPassword(rule[1:]))
	case strings.HasPrefix(rule, "#"):
		u.NoPass = false
		u.PasswordHashes = append(u.PasswordHashes, strings.ToLower(rule[1:]))
	case rule == "allkeys" || rule == "~*":
		u.AllKeys = true
		u.KeyPatterns = nil
	case rule == "resetkeys":
		u.AllKeys = false
		u.KeyPatterns = nil
	case strings.HasPrefix(rule, "~"):
		u.AllKeys = false
		u.KeyPatterns = append(u.KeyPatterns, rule[1:])
	case rule == "allcommands" || rule == "+@all":
		u.AllCommands = true
		u.AllowedCommands = nil
		u.DeniedCommands = nil
	case rule == "nocommands" || rule == "-@all":
		u.AllCommands = false
		u.AllowedCommands = nil
		u.DeniedCommands = nil
	case strings.HasPrefix(rule, "+"):
		cmd := strings.ToUpper(rule[1:])
		removeFrom(&u.DeniedCommands, cmd)
		u.AllowedCommands = appendUnique(u.AllowedCommands, cmd)
	case strings.HasPrefix(rule, "-"):
		cmd := strings.ToUpper(rule[1:])
		removeFrom(&u.AllowedCommands, cmd)
		u.DeniedCommands = appendUnique(u.DeniedCommands, cmd)
	default:
		return fmt.Errorf("ERR Error in ACL SETUSER modifier '%s'", rule)
	}
	return nil
}

func removeHash(u *User, hash string) {
	out := u.PasswordHashes[:0]
	for _, h := range u.PasswordHashes {
		if h != hash {
			out = append(out, h)
		}
	}
	u.PasswordHashes = out
}

func removeFrom(list *[]string, v string) {
	out := (*list)[:0]
	for _, x := range *list {
		if x != v {
			out = append(out, x)
		}
	}
	*list = out
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// GetUser returns the named user.
func (t *Table) GetUser(name string) (*User, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.users[name]
	return u, ok
}

// DeleteUser removes name, refusing to delete "default" the way Redis
// does.
func (t *Table) DeleteUser(name string) bool {
	if name == "default" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.users[name]; !ok {
		return false
	}
	delete(t.users, name)
	return true
}

// List returns every user's ACL LIST descriptor line, sorted by name.
func (t *Table) List() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.users))
	for n := range t.users {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = t.users[n].Describe()
	}
	return out
}

// Authenticate reports whether password matches name's credentials.
func (t *Table) Authenticate(name, password string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.users[name]
	if !ok || !u.Enabled {
		return false
	}
	if u.NoPass {
		return true
	}
	hash := hashPassword(password)
	for _, h := range u.PasswordHashes {
		if h == hash {
			return true
		}
	}
	return false
}

// CanRunCommand reports whether name's user may run cmd.
func (t *Table) CanRunCommand(name, cmd string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.users[name]
	if !ok {
		return false
	}
	cmd = strings.ToUpper(cmd)
	for _, d := range u.DeniedCommands {
		if d == cmd {
			return false
		}
	}
	if u.AllCommands {
		return true
	}
	for _, a := range u.AllowedCommands {
		if a == cmd {
			return true
		}
	}
	return false
}

// CanAccessKey reports whether name's user may touch key.
func (t *Table) CanAccessKey(name, key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.users[name]
	if !ok {
		return false
	}
	if u.AllKeys {
		return true
	}
	for _, p := range u.KeyPatterns {
		if pubsub.Match(p, key) {
			return true
		}
	}
	return false
}

// Save persists the full user table via pkg/clusterstore.
func (t *Table) Save() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.store == nil {
		return nil
	}
	users := make([]*User, 0, len(t.users))
	for _, u := range t.users {
		users = append(users, u)
	}
	return t.store.SaveACL(users)
}

// Load replaces the table's contents with whatever was last persisted,
// leaving the seeded default user in place if nothing has been saved.
func (t *Table) Load() error {
	if t.store == nil {
		return nil
	}
	var users []*User
	if err := t.store.LoadACL(&users); err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users = make(map[string]*User, len(users))
	for _, u := range users {
		t.users[u.Name] = u
	}
	if _, ok := t.users["default"]; !ok {
		t.users["default"] = defaultUser()
	}
	return nil
}
