package encoding

import (
	"testing"
	"time"
)

func TestParseStreamID(t *testing.T) {
	id, err := ParseStreamID("5-3", 0)
	if err != nil {
		t.Fatalf("ParseStreamID: %v", err)
	}
	if id.MS != 5 || id.Seq != 3 {
		t.Errorf("got %v, want 5-3", id)
	}

	id2, err := ParseStreamID("5", 0)
	if err != nil || id2.Seq != 0 {
		t.Errorf("MS-only parse failed: %v err=%v", id2, err)
	}
}

func TestStreamAppendRejectsNonIncreasing(t *testing.T) {
	s := NewStream()
	if err := s.Append(StreamID{MS: 1, Seq: 0}, []string{"a", "1"}); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := s.Append(StreamID{MS: 1, Seq: 0}, []string{"a", "2"}); err == nil {
		t.Error("expected rejection of non-increasing ID")
	}
	if err := s.Append(StreamID{MS: 0, Seq: 0}, []string{"a", "3"}); err == nil {
		t.Error("expected rejection of 0-0")
	}
}

func TestStreamNextID(t *testing.T) {
	s := NewStream()
	id := s.NextID(100)
	if id.MS != 100 || id.Seq != 0 {
		t.Errorf("NextID on empty stream = %v, want 100-0", id)
	}
	s.Append(id, []string{"x", "1"})
	id2 := s.NextID(100)
	if id2.MS != 100 || id2.Seq != 1 {
		t.Errorf("NextID after append = %v, want 100-1", id2)
	}
}

func TestStreamRangeAndAfter(t *testing.T) {
	s := NewStream()
	for i := uint64(1); i <= 5; i++ {
		s.Append(StreamID{MS: i}, []string{"n", "v"})
	}
	r := s.Range(StreamID{MS: 2}, StreamID{MS: 4}, 0)
	if len(r) != 3 {
		t.Fatalf("Range len = %d, want 3", len(r))
	}
	after := s.After(StreamID{MS: 3}, 0)
	if len(after) != 2 {
		t.Fatalf("After len = %d, want 2", len(after))
	}
}

func TestStreamTrim(t *testing.T) {
	s := NewStream()
	for i := uint64(1); i <= 10; i++ {
		s.Append(StreamID{MS: i}, []string{"n", "v"})
	}
	removed := s.TrimMaxLen(4)
	if removed != 6 || s.Len() != 4 {
		t.Fatalf("TrimMaxLen removed=%d len=%d, want 6/4", removed, s.Len())
	}
}

func TestConsumerGroupReadAckClaim(t *testing.T) {
	s := NewStream()
	for i := uint64(1); i <= 3; i++ {
		s.Append(StreamID{MS: i}, []string{"n", "v"})
	}
	if err := s.CreateGroup("g1", StreamID{}); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	g, _ := s.Group("g1")
	now := time.Unix(1000, 0)
	entries := g.ReadGroup(s, "c1", 10, now)
	if len(entries) != 3 {
		t.Fatalf("ReadGroup len = %d, want 3", len(entries))
	}
	if len(g.PEL) != 3 {
		t.Fatalf("PEL size = %d, want 3", len(g.PEL))
	}
	acked := g.Ack(StreamID{MS: 1})
	if acked != 1 || len(g.PEL) != 2 {
		t.Fatalf("Ack acked=%d PEL=%d, want 1/2", acked, len(g.PEL))
	}
	later := now.Add(time.Hour)
	claimed := g.Claim("c2", time.Minute, later, StreamID{MS: 2}, StreamID{MS: 3})
	if len(claimed) != 2 {
		t.Fatalf("Claim claimed %d, want 2", len(claimed))
	}
	for _, id := range claimed {
		if g.PEL[id].Consumer != "c2" {
			t.Errorf("entry %v not reassigned to c2", id)
		}
	}
}

func TestConsumerGroupAutoClaim(t *testing.T) {
	s := NewStream()
	for i := uint64(1); i <= 5; i++ {
		s.Append(StreamID{MS: i}, []string{"n", "v"})
	}
	s.CreateGroup("g1", StreamID{})
	g, _ := s.Group("g1")
	now := time.Unix(2000, 0)
	g.ReadGroup(s, "c1", 10, now)

	claimed, next := g.AutoClaim("c2", time.Second, StreamID{}, 2, now.Add(time.Hour))
	if len(claimed) != 2 {
		t.Fatalf("AutoClaim first batch = %d, want 2", len(claimed))
	}
	if next == (StreamID{}) {
		t.Error("expected non-zero cursor when more entries remain")
	}
}
