package encoding

import (
	"sort"

	"github.com/spineldb/spineldb/pkg/types"
)

// zentry is one (score, member) pair in a sorted set's ordered index.
type zentry struct {
	score  float64
	member string
}

func less(a, b zentry) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.member < b.member
}

// ZSetValue is the dual structure spec.md §4.4 requires: a hash from
// member to score for O(1) lookup, and an ordered slice kept sorted by
// (score, member) for range queries. The two sides are kept in lockstep
// by every mutating method; Add removes the stale ordered-index position
// before reinserting when a member's score changes.
type ZSetValue struct {
	byMember map[string]float64
	ordered  []zentry // sorted ascending by (score, member)
}

func NewZSet() *ZSetValue {
	return &ZSetValue{byMember: make(map[string]float64)}
}

func (z *ZSetValue) Type() types.ValueType { return types.TypeZSet }

func (z *ZSetValue) SizeEstimate() int64 {
	var sz int64 = 32
	for m := range z.byMember {
		sz += int64(len(m)) + 32
	}
	return sz
}

func (z *ZSetValue) Len() int { return len(z.byMember) }

func (z *ZSetValue) Score(member string) (float64, bool) {
	s, ok := z.byMember[member]
	return s, ok
}

func (z *ZSetValue) findOrdered(e zentry) int {
	return sort.Search(len(z.ordered), func(i int) bool { return !less(z.ordered[i], e) })
}

// Add inserts or updates member with score. Returns true if member was
// newly added (ZADD's return-count contract), false if merely updated.
func (z *ZSetValue) Add(score float64, member string) bool {
	old, existed := z.byMember[member]
	if existed {
		if old == score {
			return false
		}
		z.removeOrdered(zentry{old, member})
	}
	z.byMember[member] = score
	z.insertOrdered(zentry{score, member})
	return !existed
}

func (z *ZSetValue) insertOrdered(e zentry) {
	i := z.findOrdered(e)
	z.ordered = append(z.ordered, zentry{})
	copy(z.ordered[i+1:], z.ordered[i:])
	z.ordered[i] = e
}

func (z *ZSetValue) removeOrdered(e zentry) {
	i := z.findOrdered(e)
	if i < len(z.ordered) && z.ordered[i] == e {
		z.ordered = append(z.ordered[:i], z.ordered[i+1:]...)
	}
}

// Rem removes member, returning whether it existed.
func (z *ZSetValue) Rem(member string) bool {
	score, ok := z.byMember[member]
	if !ok {
		return false
	}
	delete(z.byMember, member)
	z.removeOrdered(zentry{score, member})
	return true
}

// IncrBy adds delta to member's score (creating it at 0 first if absent)
// and returns the new score.
func (z *ZSetValue) IncrBy(member string, delta float64) float64 {
	old, _ := z.byMember[member]
	newScore := old + delta
	z.Add(newScore, member)
	return newScore
}

// Rank returns member's 0-based rank in ascending score order, or
// (-1, false) if absent. Computed by binary search of the ordered index
// (O(log n)).
func (z *ZSetValue) Rank(member string) (int, bool) {
	score, ok := z.byMember[member]
	if !ok {
		return -1, false
	}
	i := z.findOrdered(zentry{score, member})
	if i < len(z.ordered) && z.ordered[i].member == member {
		return i, true
	}
	return -1, false
}

// RangeByRank returns (score, member) pairs for the 0-based rank window
// [start, stop] inclusive; negative indices count from the tail.
func (z *ZSetValue) RangeByRank(start, stop int, reverse bool) []ScoredMember {
	n := len(z.ordered)
	start, stop = clampRange(start, stop, n)
	if start > stop || n == 0 {
		return nil
	}
	out := make([]ScoredMember, 0, stop-start+1)
	if !reverse {
		for i := start; i <= stop; i++ {
			out = append(out, ScoredMember{z.ordered[i].member, z.ordered[i].score})
		}
	} else {
		for i := n - 1 - start; i >= n-1-stop; i-- {
			out = append(out, ScoredMember{z.ordered[i].member, z.ordered[i].score})
		}
	}
	return out
}

// ScoredMember is a (member, score) pair returned from range queries.
type ScoredMember struct {
	Member string
	Score  float64
}

// ScoreBound is one endpoint of a by-score range query: {inclusive x,
// exclusive x, -inf, +inf} per spec.md §4.4.
type ScoreBound struct {
	Value     float64
	Exclusive bool
	Inf       int // -1 = -inf, 0 = finite, +1 = +inf
}

// RangeByScore returns members whose score falls within [min, max].
func (z *ZSetValue) RangeByScore(min, max ScoreBound, reverse bool) []ScoredMember {
	var out []ScoredMember
	inRange := func(s float64) bool {
		if min.Inf < 0 {
			// no lower bound
		} else if min.Exclusive && s <= min.Value {
			return false
		} else if !min.Exclusive && s < min.Value {
			return false
		}
		if max.Inf > 0 {
			// no upper bound
		} else if max.Exclusive && s >= max.Value {
			return false
		} else if !max.Exclusive && s > max.Value {
			return false
		}
		return true
	}
	for _, e := range z.ordered {
		if inRange(e.score) {
			out = append(out, ScoredMember{e.member, e.score})
		}
	}
	if reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// LexBound is one endpoint of a by-lex range query; requires all members
// share a score (undefined otherwise, per spec.md §4.4).
type LexBound struct {
	Value     string
	Exclusive bool
	Inf       int // -1 = -inf, 0 = finite, +1 = +inf
}

// RangeByLex returns members in lexicographic order within [min, max].
// Callers are responsible for ensuring every member shares a score; with
// mixed scores the result is merely the ordered-index order, which is
// explicitly undefined behavior per spec.md.
func (z *ZSetValue) RangeByLex(min, max LexBound) []string {
	inRange := func(m string) bool {
		if min.Inf == 0 {
			if min.Exclusive && m <= min.Value {
				return false
			}
			if !min.Exclusive && m < min.Value {
				return false
			}
		}
		if max.Inf == 0 {
			if max.Exclusive && m >= max.Value {
				return false
			}
			if !max.Exclusive && m > max.Value {
				return false
			}
		}
		return true
	}
	var out []string
	for _, e := range z.ordered {
		if inRange(e.member) {
			out = append(out, e.member)
		}
	}
	return out
}

// All returns every (member, score) pair in ascending score order, used
// by AOF rewrite and snapshotting.
func (z *ZSetValue) All() []ScoredMember {
	out := make([]ScoredMember, len(z.ordered))
	for i, e := range z.ordered {
		out[i] = ScoredMember{e.member, e.score}
	}
	return out
}
