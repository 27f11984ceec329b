// Package txn implements the cross-session WATCH registry behind the
// MULTI/EXEC/DISCARD/WATCH/UNWATCH commands described in spec.md §4.3: it
// marks a watching session dirty when any session commits a write to a
// watched key. Per-session command queuing lives in pkg/session.
package txn

import (
	"sync"

	"github.com/spineldb/spineldb/pkg/session"
)

type watchKey struct {
	db  int
	key string
}

// Registry tracks, for each (db, key), the set of sessions watching it.
// It is the cross-session half of WATCH: each session additionally
// tracks its own watch set locally (session.Session.Watched) so UNWATCH
// and connection-close cleanup don't need to scan the whole registry.
type Registry struct {
	mu       sync.Mutex
	watchers map[watchKey]map[*session.Session]struct{}
}

func NewRegistry() *Registry {
	return &Registry{watchers: make(map[watchKey]map[*session.Session]struct{})}
}

// Watch registers sess as watching (db, key). Call this in lockstep with
// session.Session.Watch.
func (r *Registry) Watch(sess *session.Session, db int, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wk := watchKey{db, key}
	set, ok := r.watchers[wk]
	if !ok {
		set = make(map[*session.Session]struct{})
		r.watchers[wk] = set
	}
	set[sess] = struct{}{}
}

// Unwatch removes sess from every (db, key) it was registered for. Call
// in lockstep with session.Session.Unwatch/ResetTx.
func (r *Registry) Unwatch(sess *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for wk, set := range r.watchers {
		if _, ok := set[sess]; ok {
			delete(set, sess)
			if len(set) == 0 {
				delete(r.watchers, wk)
			}
		}
	}
}

// NotifyWrite marks every session watching (db, key) dirty. The executor
// calls this for each key a committed write touches (spec.md §4.2: "the
// executor funnels every successful write into... watcher invalidation
// for transactions").
func (r *Registry) NotifyWrite(db int, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.watchers[watchKey{db, key}]
	if !ok {
		return
	}
	for sess := range set {
		sess.MarkWatchDirty()
	}
}
