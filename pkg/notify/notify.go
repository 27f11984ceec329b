// Package notify adapts the teacher's event-broker pattern
// (pkg/events/events.go) into the keyspace-notification publisher named
// in spec.md §4.2/§4.7: every successful write the executor commits is
// synthesized into a pair of pub/sub messages, routed through the same
// pkg/pubsub.Bus that serves ordinary PUBLISH traffic.
package notify

import (
	"fmt"

	"github.com/spineldb/spineldb/pkg/pubsub"
)

// Class enumerates the keyspace-notification event classes the executor
// may publish. Mirrors the pkg/command WriteResult.Class values set by
// command handlers.
type Class string

const (
	ClassGeneric   Class = "g"
	ClassString    Class = "$"
	ClassList      Class = "l"
	ClassSet       Class = "s"
	ClassHash      Class = "h"
	ClassZSet      Class = "z"
	ClassStream    Class = "t"
	ClassJSON      Class = "j"
	ClassExpired   Class = "g" // "expired" is a generic-class event name
	ClassEvicted   Class = "g"
	ClassKeyMiss   Class = "m"
)

// Publisher funnels write outcomes into keyspace-notification channels.
// The active classes and channel kinds are set through Configure; until
// then nothing is published.
type Publisher struct {
	bus     *pubsub.Bus
	enabled map[Class]bool
	keyspace bool // "K" flag: publish __keyspace@<db>__:<key>
	keyevent bool // "E" flag: publish __keyevent@<db>__:<event>
}

func NewPublisher(bus *pubsub.Bus) *Publisher {
	return &Publisher{bus: bus, enabled: make(map[Class]bool)}
}

// Configure sets which classes are active and whether the keyspace and
// keyevent channel kinds are published.
func (p *Publisher) Configure(classes map[Class]bool, keyspace, keyevent bool) {
	p.enabled = classes
	p.keyspace = keyspace
	p.keyevent = keyevent
}

// Publish emits the notification pair for one (db, key, event) touched
// by a committed write, e.g. (0, "foo", "set") after a SET.
func (p *Publisher) Publish(class Class, db int, key, event string) {
	if p.bus == nil || !p.enabled[class] {
		return
	}
	if p.keyspace {
		p.bus.Publish(fmt.Sprintf("__keyspace@%d__:%s", db, key), event)
	}
	if p.keyevent {
		p.bus.Publish(fmt.Sprintf("__keyevent@%d__:%s", db, event), key)
	}
}
