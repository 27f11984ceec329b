package encoding

import "github.com/spineldb/spineldb/pkg/types"

// SetValue is an open-addressed (Go map) hash set of raw byte-string
// members.
type SetValue struct {
	members map[string]struct{}
}

func NewSet() *SetValue { return &SetValue{members: make(map[string]struct{})} }

func (s *SetValue) Type() types.ValueType { return types.TypeSet }

func (s *SetValue) SizeEstimate() int64 {
	var sz int64 = 32
	for m := range s.members {
		sz += int64(len(m)) + 16
	}
	return sz
}

func (s *SetValue) Len() int { return len(s.members) }

// Add inserts members, returning how many were newly added.
func (s *SetValue) Add(members ...string) int {
	added := 0
	for _, m := range members {
		if _, ok := s.members[m]; !ok {
			s.members[m] = struct{}{}
			added++
		}
	}
	return added
}

func (s *SetValue) Rem(members ...string) int {
	removed := 0
	for _, m := range members {
		if _, ok := s.members[m]; ok {
			delete(s.members, m)
			removed++
		}
	}
	return removed
}

func (s *SetValue) Contains(m string) bool {
	_, ok := s.members[m]
	return ok
}

func (s *SetValue) Members() []string {
	out := make([]string, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	return out
}

// Union, Inter, and Diff implement SUNION/SINTER/SDIFF semantics.
func Union(sets ...*SetValue) *SetValue {
	out := NewSet()
	for _, s := range sets {
		for m := range s.members {
			out.members[m] = struct{}{}
		}
	}
	return out
}

func Inter(sets ...*SetValue) *SetValue {
	out := NewSet()
	if len(sets) == 0 {
		return out
	}
	for m := range sets[0].members {
		inAll := true
		for _, s := range sets[1:] {
			if !s.Contains(m) {
				inAll = false
				break
			}
		}
		if inAll {
			out.members[m] = struct{}{}
		}
	}
	return out
}

func Diff(sets ...*SetValue) *SetValue {
	out := NewSet()
	if len(sets) == 0 {
		return out
	}
	for m := range sets[0].members {
		excluded := false
		for _, s := range sets[1:] {
			if s.Contains(m) {
				excluded = true
				break
			}
		}
		if !excluded {
			out.members[m] = struct{}{}
		}
	}
	return out
}
