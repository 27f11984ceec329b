package encoding

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spineldb/spineldb/pkg/types"
)

// StreamID is a (ms, seq) pair compared lexicographically, strictly
// increasing per stream (spec.md §4.4).
type StreamID struct {
	MS  uint64
	Seq uint64
}

func (id StreamID) String() string { return fmt.Sprintf("%d-%d", id.MS, id.Seq) }

func (id StreamID) Less(o StreamID) bool {
	if id.MS != o.MS {
		return id.MS < o.MS
	}
	return id.Seq < o.Seq
}

func (id StreamID) Equal(o StreamID) bool { return id.MS == o.MS && id.Seq == o.Seq }

// ParseStreamID parses "ms-seq", "ms" (seq defaults to 0), or "ms-*".
func ParseStreamID(s string, defaultSeq uint64) (StreamID, error) {
	parts := strings.SplitN(s, "-", 2)
	ms, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return StreamID{}, fmt.Errorf("invalid stream ID %q", s)
	}
	if len(parts) == 1 {
		return StreamID{MS: ms, Seq: defaultSeq}, nil
	}
	if parts[1] == "*" {
		return StreamID{MS: ms, Seq: defaultSeq}, nil
	}
	seq, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return StreamID{}, fmt.Errorf("invalid stream ID %q", s)
	}
	return StreamID{MS: ms, Seq: seq}, nil
}

// StreamEntry is one appended record.
type StreamEntry struct {
	ID     StreamID
	Fields []string // alternating field, value
}

// PendingEntry is one PEL record: the stream-entry ID it covers (a value
// type, never a pointer per spec.md §9), the owning consumer, delivery
// count, and last-delivery time.
type PendingEntry struct {
	ID            StreamID
	Consumer      string
	DeliveryCount int64
	DeliveryTime  time.Time
}

// ConsumerGroup tracks a group's cursor and pending-entries list.
type ConsumerGroup struct {
	LastDelivered StreamID
	PEL           map[StreamID]*PendingEntry
	Consumers     map[string]time.Time // consumer -> last-seen
}

func newConsumerGroup(start StreamID) *ConsumerGroup {
	return &ConsumerGroup{
		LastDelivered: start,
		PEL:           make(map[StreamID]*PendingEntry),
		Consumers:     make(map[string]time.Time),
	}
}

// StreamValue is an ordered list of entries plus named consumer groups.
type StreamValue struct {
	entries []StreamEntry
	lastID  StreamID
	maxID   StreamID // highest ID ever assigned, survives trimming
	groups  map[string]*ConsumerGroup
}

func NewStream() *StreamValue {
	return &StreamValue{groups: make(map[string]*ConsumerGroup)}
}

func (s *StreamValue) Type() types.ValueType { return types.TypeStream }

func (s *StreamValue) SizeEstimate() int64 {
	var sz int64 = 32
	for _, e := range s.entries {
		for _, f := range e.Fields {
			sz += int64(len(f))
		}
		sz += 24
	}
	for _, g := range s.groups {
		sz += int64(len(g.PEL)) * 48
	}
	return sz
}

func (s *StreamValue) Len() int { return len(s.entries) }

// NextID computes the auto-generated ID for an XADD "*": nowMS-0 when that
// is greater than every existing id, otherwise the current maximum id with
// its sequence number incremented.
func (s *StreamValue) NextID(nowMS uint64) StreamID {
	base := StreamID{MS: nowMS, Seq: 0}
	if s.maxID.Less(base) {
		return StreamID{MS: nowMS, Seq: 0}
	}
	return StreamID{MS: s.maxID.MS, Seq: s.maxID.Seq + 1}
}

// Append validates id is strictly greater than the current maximum and
// appends the entry. "0-0" is always rejected.
func (s *StreamValue) Append(id StreamID, fields []string) error {
	if id.MS == 0 && id.Seq == 0 {
		return fmt.Errorf("ERR The ID specified in XADD must be greater than 0-0")
	}
	if !s.maxID.Less(id) && !(s.maxID == StreamID{}) {
		return fmt.Errorf("ERR The ID specified in XADD is equal or smaller than the target stream top item")
	}
	s.entries = append(s.entries, StreamEntry{ID: id, Fields: append([]string(nil), fields...)})
	s.lastID = id
	s.maxID = id
	return nil
}

// LastID returns the most recently appended ID (even if later trimmed).
func (s *StreamValue) LastID() StreamID { return s.lastID }
func (s *StreamValue) MaxID() StreamID  { return s.maxID }

// Range returns entries with ID in [start, end] inclusive, oldest first.
func (s *StreamValue) Range(start, end StreamID, count int) []StreamEntry {
	var out []StreamEntry
	for _, e := range s.entries {
		if e.ID.Less(start) {
			continue
		}
		if end.Less(e.ID) {
			break
		}
		out = append(out, e)
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out
}

// RevRange returns entries in [start, end] inclusive, newest first.
func (s *StreamValue) RevRange(end, start StreamID, count int) []StreamEntry {
	fwd := s.Range(start, end, 0)
	out := make([]StreamEntry, len(fwd))
	for i, e := range fwd {
		out[len(fwd)-1-i] = e
	}
	if count > 0 && len(out) > count {
		out = out[:count]
	}
	return out
}

// After returns entries strictly greater than id, oldest first, capped at
// count (0 = unlimited). Used by XREAD/XREADGROUP.
func (s *StreamValue) After(id StreamID, count int) []StreamEntry {
	var out []StreamEntry
	for _, e := range s.entries {
		if !id.Less(e.ID) {
			continue
		}
		out = append(out, e)
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out
}

// TrimMaxLen keeps only the newest maxLen entries, returning the number
// removed.
func (s *StreamValue) TrimMaxLen(maxLen int) int {
	if len(s.entries) <= maxLen {
		return 0
	}
	removed := len(s.entries) - maxLen
	s.entries = s.entries[removed:]
	return removed
}

// TrimMinID removes every entry with ID < minID, returning the count
// removed.
func (s *StreamValue) TrimMinID(minID StreamID) int {
	i := 0
	for i < len(s.entries) && s.entries[i].ID.Less(minID) {
		i++
	}
	removed := i
	s.entries = s.entries[i:]
	return removed
}

// Delete removes the entries matching ids, returning the count actually
// removed (XDEL leaves a gap rather than shifting surrounding IDs).
func (s *StreamValue) Delete(ids ...StreamID) int {
	want := make(map[StreamID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if _, match := want[e.ID]; match {
			removed++
			continue
		}
		out = append(out, e)
	}
	s.entries = out
	return removed
}

// Group returns (creating if absent is caller's job via CreateGroup) the
// named consumer group.
func (s *StreamValue) Group(name string) (*ConsumerGroup, bool) {
	g, ok := s.groups[name]
	return g, ok
}

func (s *StreamValue) CreateGroup(name string, start StreamID) error {
	if _, ok := s.groups[name]; ok {
		return fmt.Errorf("BUSYGROUP Consumer Group name already exists")
	}
	s.groups[name] = newConsumerGroup(start)
	return nil
}

func (s *StreamValue) DeleteGroup(name string) bool {
	if _, ok := s.groups[name]; !ok {
		return false
	}
	delete(s.groups, name)
	return true
}

func (s *StreamValue) GroupNames() []string {
	out := make([]string, 0, len(s.groups))
	for n := range s.groups {
		out = append(out, n)
	}
	return out
}

// ReadGroup delivers up to count new entries (after the group's
// last-delivered cursor) to consumer, recording each in the PEL with
// delivery-count=1 (spec.md §4.4).
func (g *ConsumerGroup) ReadGroup(s *StreamValue, consumer string, count int, now time.Time) []StreamEntry {
	entries := s.After(g.LastDelivered, count)
	for _, e := range entries {
		g.PEL[e.ID] = &PendingEntry{ID: e.ID, Consumer: consumer, DeliveryCount: 1, DeliveryTime: now}
		g.LastDelivered = e.ID
	}
	g.Consumers[consumer] = now
	return entries
}

// Ack removes ids from the PEL, returning how many were actually pending.
func (g *ConsumerGroup) Ack(ids ...StreamID) int {
	n := 0
	for _, id := range ids {
		if _, ok := g.PEL[id]; ok {
			delete(g.PEL, id)
			n++
		}
	}
	return n
}

// Claim transfers ownership of pending ids whose idle time (now -
// DeliveryTime) is at least minIdle, to consumer, bumping delivery count.
// Ids not present in the PEL are silently skipped.
func (g *ConsumerGroup) Claim(consumer string, minIdle time.Duration, now time.Time, ids ...StreamID) []StreamID {
	var claimed []StreamID
	for _, id := range ids {
		pe, ok := g.PEL[id]
		if !ok || now.Sub(pe.DeliveryTime) < minIdle {
			continue
		}
		pe.Consumer = consumer
		pe.DeliveryCount++
		pe.DeliveryTime = now
		claimed = append(claimed, id)
	}
	g.Consumers[consumer] = now
	return claimed
}

// AutoClaim scans the PEL in id order starting at start, and transfers a
// batch of up to count eligible (idle >= minIdle) entries to consumer. It
// returns the claimed ids and the cursor to resume from on the next call
// (the zero StreamID once the whole PEL has been scanned).
func (g *ConsumerGroup) AutoClaim(consumer string, minIdle time.Duration, start StreamID, count int, now time.Time) (claimed []StreamID, next StreamID) {
	ids := make([]StreamID, 0, len(g.PEL))
	for id := range g.PEL {
		if start.Less(id) || start.Equal(id) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	for _, id := range ids {
		if len(claimed) >= count {
			return claimed, id
		}
		pe := g.PEL[id]
		if now.Sub(pe.DeliveryTime) < minIdle {
			continue
		}
		pe.Consumer = consumer
		pe.DeliveryCount++
		pe.DeliveryTime = now
		claimed = append(claimed, id)
	}
	return claimed, StreamID{}
}
