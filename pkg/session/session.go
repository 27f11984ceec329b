// Package session holds per-connection client state: the selected
// database, transaction queue, watched keys, subscriptions, and
// authenticated identity named in spec.md §3 ("Session" entity). It
// backs CLIENT LIST/SETNAME/GETNAME/KILL (SPEC_FULL.md §4.13).
package session

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spineldb/spineldb/pkg/pubsub"
	"github.com/spineldb/spineldb/pkg/resp"
)

// TxState is the tagged enum spec.md §4.3 describes for per-session
// transaction state.
type TxState int

const (
	TxNormal TxState = iota
	TxQueuing
	TxDirty
)

// QueuedCommand is one command buffered between MULTI and EXEC.
type QueuedCommand struct {
	Name string
	Args []string
}

// Session is the mutable state a connection's goroutine owns. Fields
// touched by other goroutines (dirty-watch flag, kill signal) are
// behind the mutex; everything else is only ever read/written by the
// owning connection goroutine.
type Session struct {
	ID        string
	Conn      net.Conn
	CreatedAt time.Time

	mu          sync.Mutex
	name        string
	db          int
	proto       resp.Protocol
	authUser    string
	authed      bool
	lastCommand string
	lastSeen    time.Time
	killed      bool

	// Transaction state (owned by the connection goroutine; the dirty
	// flag is also set by other sessions' writes via MarkWatchDirty).
	TxState TxState
	Queue   []QueuedCommand
	Watched map[watchKey]struct{}
	dirty   bool

	// Pub/Sub
	Sub *pubsub.Subscriber
}

type watchKey struct {
	db  int
	key string
}

func New(conn net.Conn) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Conn:      conn,
		CreatedAt: time.Now(),
		proto:     resp.Proto2,
		Watched:   make(map[watchKey]struct{}),
	}
}

func (s *Session) DB() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

func (s *Session) SetDB(db int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db = db
}

func (s *Session) Protocol() resp.Protocol {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proto
}

func (s *Session) SetProtocol(p resp.Protocol) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proto = p
}

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Session) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *Session) Authenticate(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authUser = user
	s.authed = true
}

func (s *Session) AuthUser() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authUser, s.authed
}

func (s *Session) TouchCommand(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCommand = name
	s.lastSeen = time.Now()
}

func (s *Session) Info() (lastCommand string, lastSeen time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCommand, s.lastSeen
}

// Kill marks the session for disconnection; the connection goroutine
// observes this on its next read/write attempt.
func (s *Session) Kill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killed = true
	_ = s.Conn.Close()
}

func (s *Session) Killed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.killed
}

// --- Transaction / WATCH state (owned by the connection goroutine) ---

func (s *Session) BeginMulti() { s.TxState = TxQueuing }

func (s *Session) Enqueue(cmd QueuedCommand) { s.Queue = append(s.Queue, cmd) }

func (s *Session) MarkDirtyParse() { s.TxState = TxDirty }

func (s *Session) ResetTx() {
	s.TxState = TxNormal
	s.Queue = nil
	s.clearWatchesLocked()
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
}

func (s *Session) Watch(db int, key string) {
	s.Watched[watchKey{db, key}] = struct{}{}
}

func (s *Session) Unwatch() {
	s.clearWatchesLocked()
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
}

func (s *Session) clearWatchesLocked() {
	s.Watched = make(map[watchKey]struct{})
}

// Watches returns the set of (db, key) pairs this session currently
// watches, used by the executor to register dirty-watch listeners.
func (s *Session) Watches() []struct {
	DB  int
	Key string
} {
	out := make([]struct {
		DB  int
		Key string
	}, 0, len(s.Watched))
	for wk := range s.Watched {
		out = append(out, struct {
			DB  int
			Key string
		}{wk.db, wk.key})
	}
	return out
}

// MarkWatchDirty is called by pkg/txn's watch registry (from any
// goroutine) when a write touches a key this session watches. The
// registry only invokes this for sessions it has on file for that key,
// so Session itself needs no cross-goroutine access to Watched.
func (s *Session) MarkWatchDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// IsDirty reports whether a watched key has been written since WATCH.
func (s *Session) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}
