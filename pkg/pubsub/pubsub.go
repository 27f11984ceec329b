// Package pubsub implements the channel/pattern subscriber registries
// behind PUBLISH/SUBSCRIBE/PSUBSCRIBE (spec.md §4.7) and doubles as the
// transport for keyspace notifications (pkg/notify publishes onto the
// same bus). Adapted from the teacher's event Broker
// (pkg/events/events.go): a buffered per-subscriber channel plus a
// registry guarded by one RWMutex, but split into exact-channel and
// glob-pattern registries and made synchronous on Publish (the caller
// needs the delivery count back, matching Redis's PUBLISH return value).
package pubsub

import "sync"

// Message is one delivered publication: Pattern is empty for an
// exact-channel subscription, set to the matching pattern for PSUBSCRIBE
// deliveries.
type Message struct {
	Channel string
	Pattern string
	Payload string
}

// Subscriber is a per-connection delivery channel. channels/patterns
// track this subscriber's own subscriptions so Subscribe/Unsubscribe can
// report the total-subscription count SUBSCRIBE/UNSUBSCRIBE replies
// carry (spec.md §4.7); both fields are only ever mutated under the
// owning Bus's lock.
type Subscriber struct {
	ID       int64
	Ch       chan Message
	channels map[string]struct{}
	patterns map[string]struct{}
}

func (s *Subscriber) subscriptionCount() int { return len(s.channels) + len(s.patterns) }

// Bus holds the exact-channel and pattern subscriber registries.
type Bus struct {
	mu       sync.RWMutex
	channels map[string]map[*Subscriber]struct{}
	patterns map[string]map[*Subscriber]struct{}
	nextID   int64
}

func NewBus() *Bus {
	return &Bus{
		channels: make(map[string]map[*Subscriber]struct{}),
		patterns: make(map[string]map[*Subscriber]struct{}),
	}
}

// NewSubscriber allocates a subscriber with a buffered delivery channel;
// the buffer absorbs bursts without blocking PUBLISH callers, matching
// spec.md §4.7's requirement that subscribers see messages in commit
// order.
func (b *Bus) NewSubscriber() *Subscriber {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.mu.Unlock()
	return &Subscriber{ID: id, Ch: make(chan Message, 256), channels: make(map[string]struct{}), patterns: make(map[string]struct{})}
}

// Subscribe adds sub to channel's subscriber set and returns sub's new
// total subscription count (channels + patterns), the third element of
// a SUBSCRIBE reply.
func (b *Bus) Subscribe(sub *Subscriber, channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.channels[channel]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.channels[channel] = set
	}
	set[sub] = struct{}{}
	sub.channels[channel] = struct{}{}
	return sub.subscriptionCount()
}

func (b *Bus) Unsubscribe(sub *Subscriber, channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.channels[channel]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.channels, channel)
		}
	}
	delete(sub.channels, channel)
	return sub.subscriptionCount()
}

func (b *Bus) PSubscribe(sub *Subscriber, pattern string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.patterns[pattern]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.patterns[pattern] = set
	}
	set[sub] = struct{}{}
	sub.patterns[pattern] = struct{}{}
	return sub.subscriptionCount()
}

func (b *Bus) PUnsubscribe(sub *Subscriber, pattern string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.patterns[pattern]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.patterns, pattern)
		}
	}
	delete(sub.patterns, pattern)
	return sub.subscriptionCount()
}

// UnsubscribeAll removes sub from every channel and pattern, used on
// connection close.
func (b *Bus) UnsubscribeAll(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch, set := range b.channels {
		if _, ok := set[sub]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.channels, ch)
			}
		}
	}
	for p, set := range b.patterns {
		if _, ok := set[sub]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.patterns, p)
			}
		}
	}
	sub.channels = make(map[string]struct{})
	sub.patterns = make(map[string]struct{})
}

// Publish delivers payload to every exact subscriber of channel and every
// pattern subscriber whose pattern glob-matches it, returning the total
// delivery count. A subscriber whose buffer is full is skipped rather
// than blocking the publisher.
func (b *Bus) Publish(channel, payload string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for sub := range b.channels[channel] {
		if trySend(sub.Ch, Message{Channel: channel, Payload: payload}) {
			delivered++
		}
	}
	for pattern, set := range b.patterns {
		if !Match(pattern, channel) {
			continue
		}
		for sub := range set {
			if trySend(sub.Ch, Message{Channel: channel, Pattern: pattern, Payload: payload}) {
				delivered++
			}
		}
	}
	return delivered
}

func trySend(ch chan Message, m Message) bool {
	select {
	case ch <- m:
		return true
	default:
		return false
	}
}

// ChannelSubscriberCount reports how many exact subscribers a channel has
// (PUBSUB NUMSUB).
func (b *Bus) ChannelSubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[channel])
}

// PatternSubscriberCount reports the total number of pattern
// subscriptions across all patterns (PUBSUB NUMPAT).
func (b *Bus) PatternSubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, set := range b.patterns {
		n += len(set)
	}
	return n
}

// ActiveChannels returns every channel with at least one exact
// subscriber, optionally filtered by a glob pattern (PUBSUB CHANNELS).
func (b *Bus) ActiveChannels(pattern string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []string
	for ch := range b.channels {
		if pattern == "" || Match(pattern, ch) {
			out = append(out, ch)
		}
	}
	return out
}
