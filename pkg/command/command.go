// Package command implements the command executor described in
// spec.md §4.2: a closed command variant (Spec) carrying parsed
// arguments, plus a dispatch table mapping name → (lock-keys function,
// handler, flags), per the Design Notes in spec.md §9 ("enumerate
// commands as a tagged variant... a table mapping variant → (lock-keys
// function, handler function, flags)").
package command

import (
	"strings"

	"github.com/spineldb/spineldb/pkg/acl"
	"github.com/spineldb/spineldb/pkg/blocking"
	"github.com/spineldb/spineldb/pkg/cluster"
	"github.com/spineldb/spineldb/pkg/keyspace"
	"github.com/spineldb/spineldb/pkg/notify"
	"github.com/spineldb/spineldb/pkg/pubsub"
	"github.com/spineldb/spineldb/pkg/rerror"
	"github.com/spineldb/spineldb/pkg/resp"
	"github.com/spineldb/spineldb/pkg/scripting"
	"github.com/spineldb/spineldb/pkg/session"
	"github.com/spineldb/spineldb/pkg/storage"
	"github.com/spineldb/spineldb/pkg/txn"
)

// Class classifies a command for replication/log eligibility and
// subscribed-session restriction (spec.md §4.2, §4.7).
type Class int

const (
	ClassReadOnly Class = iota
	ClassWrite
	ClassAdmin
	ClassBlocking
	ClassTxControl
	ClassPubSub
	ClassReplControl
)

// Flags carries the executor's dispatch metadata for one command.
type Flags struct {
	Class      Class
	AllowInSub bool // permitted while the session is subscribed (spec.md §4.7)
}

// LockKeysFunc computes the keys a command's handler will touch, given
// its arguments. Most commands have a fixed key position; MSET/EVAL/
// SORT...STORE compute it from argument shape (spec.md §4.2).
type LockKeysFunc func(args []string) []string

// HandlerFunc executes a command's effect against ctx and returns the
// RESP reply plus the write outcome the executor funnels into
// persistence/replication/notifications/watch invalidation.
type HandlerFunc func(ctx *Context, args []string) (resp.Value, WriteResult, error)

// WriteResult is what a handler reports back, keyed by the keys it
// actually modified (as opposed to the lock set, which may be broader).
type WriteResult struct {
	Wrote   bool
	Keys    []string // keys actually modified, for notify/watch/AOF
	Event   string   // keyspace-notification event name, e.g. "set"
	Class   notify.Class
	AOFArgs []string // canonical command to append to the AOF; defaults to the original args when nil and Wrote is true
}

// Spec is one closed command variant: name, arity (negative = minimum
// argument count, Redis convention), lock-key computation, handler, and
// classification flags.
type Spec struct {
	Name     string
	Arity    int
	LockKeys LockKeysFunc
	Handler  HandlerFunc
	Flags    Flags
}

// FixedKeyAt returns a LockKeysFunc that takes the single key at
// argument index i (0-based, after the command name).
func FixedKeyAt(i int) LockKeysFunc {
	return func(args []string) []string {
		if i >= len(args) {
			return nil
		}
		return []string{args[i]}
	}
}

// AllArgsAsKeys treats every argument as a key (MGET, DEL, EXISTS, ...).
func AllArgsAsKeys(args []string) []string { return args }

// EveryOtherStartingAt0 returns keys at positions 0, 2, 4, ... (MSET).
func EveryOtherStartingAt0(args []string) []string {
	var keys []string
	for i := 0; i < len(args); i += 2 {
		keys = append(keys, args[i])
	}
	return keys
}

// NoKeys is for commands that touch no keyspace entries (PING, admin
// commands operating on server-wide state, etc.).
func NoKeys(args []string) []string { return nil }

// Context is the execution context passed to every handler: explicit
// state instead of the ambient-global pattern spec.md §9 flags for
// re-architecture ("pass an execution context struct... so state is
// explicit and testable").
type Context struct {
	DB      *keyspace.Database
	DBIndex int
	Session *session.Session
	Bus     *pubsub.Bus
	Watch   *txn.Registry
	Block   *blocking.Coordinator
	Notify  *notify.Publisher

	// Databases is every database this server holds, indexed like
	// Session.DB(); admin commands that act server-wide (FLUSHALL,
	// DBSIZE across SELECTs, SHUTDOWN SAVE) need the whole set, not just
	// the one DB is currently pointed at.
	Databases []*keyspace.Database
	// Exec lets a handler re-enter the dispatch table (EVAL's redis.call
	// bridge); it is the same Executor driving the call already in
	// progress.
	Exec *Executor
	// Sessions is the server's connection registry, backing CLIENT
	// LIST/KILL. Nil in tests that don't need it.
	Sessions *session.Registry
	// ACL is the user table backing the ACL command family and
	// AUTH/HELLO credential checks. Nil means ACL is not configured and
	// every connection runs as the default user.
	ACL *acl.Table
	// Cluster is non-nil only when the server is running in cluster
	// mode; CLUSTER command handlers and the executor's MOVED/ASK check
	// use it.
	Cluster *cluster.Manager
	// Scripting backs EVAL/EVALSHA/SCRIPT.
	Scripting *scripting.Runtime
	// Shutdown is invoked by the SHUTDOWN command to begin server
	// teardown; nil in contexts where shutdown isn't wired (tests).
	Shutdown func()
	// Config is the mutable view of runtime-tunable settings CONFIG
	// GET/SET reads and writes.
	Config *RuntimeConfig
	// Store is the durable backing store SAVE/BGSAVE dump snapshots
	// into. Nil disables persistence commands.
	Store storage.Store
}

// Registry is the full command dispatch table, keyed by uppercased name.
type Registry struct {
	specs map[string]*Spec
}

func NewRegistry() *Registry { return &Registry{specs: make(map[string]*Spec)} }

func (r *Registry) Register(spec *Spec) { r.specs[strings.ToUpper(spec.Name)] = spec }

func (r *Registry) Lookup(name string) (*Spec, bool) {
	s, ok := r.specs[strings.ToUpper(name)]
	return s, ok
}

func (r *Registry) CheckArity(spec *Spec, args []string) error {
	n := len(args) + 1 // args excludes the command name; arity counts it
	if spec.Arity >= 0 && n != spec.Arity {
		return rerror.WrongArity(spec.Name)
	}
	if spec.Arity < 0 && n < -spec.Arity {
		return rerror.WrongArity(spec.Name)
	}
	return nil
}

// LockKeysFor returns the keys name's handler would lock for args, for
// callers (pkg/server's would-block retry loop) that need to park a
// blocking.Waiter on the same keys Execute would have locked.
func (r *Registry) LockKeysFor(name string, args []string) []string {
	spec, ok := r.Lookup(name)
	if !ok {
		return nil
	}
	return spec.LockKeys(args)
}
