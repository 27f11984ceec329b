package events

import (
	"sync"
	"time"
)

// EventType represents the kind of server lifecycle event.
//
// This is distinct from pkg/notify's keyspace notifications: those are
// client-facing (a SUBSCRIBE'd client watching a key pattern), while these
// are internal events consumed by admin tooling and the replication/cluster
// subsystems (a replica reconnecting, a failover starting, a node joining
// the cluster).
type EventType string

const (
	EventReplicaConnected    EventType = "replica.connected"
	EventReplicaDisconnected EventType = "replica.disconnected"
	EventFailoverStarted     EventType = "failover.started"
	EventFailoverCompleted   EventType = "failover.completed"
	EventNodeJoined          EventType = "cluster.node_joined"
	EventNodeLeft            EventType = "cluster.node_left"
	EventSlotMigrated        EventType = "cluster.slot_migrated"
	EventAOFRewriteStarted   EventType = "aof.rewrite_started"
	EventAOFRewriteFinished  EventType = "aof.rewrite_finished"
	EventSnapshotSaved       EventType = "snapshot.saved"
)

// Event represents a single server lifecycle event.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Broker manages event subscriptions and distribution.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
