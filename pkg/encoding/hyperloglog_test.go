package encoding

import (
	"fmt"
	"math"
	"testing"
)

func TestHLLCountApproximatesCardinality(t *testing.T) {
	h := NewHLL()
	const n = 10000
	for i := 0; i < n; i++ {
		h.Add([]byte(fmt.Sprintf("element-%d", i)))
	}
	got := h.Count()
	errRate := math.Abs(float64(got)-n) / n
	if errRate > 0.05 {
		t.Errorf("Count() = %d, want within 5%% of %d (error %.4f)", got, n, errRate)
	}
}

func TestHLLEmptyIsZero(t *testing.T) {
	h := NewHLL()
	if got := h.Count(); got != 0 {
		t.Errorf("empty HLL Count() = %d, want 0", got)
	}
}

func TestHLLAddIdempotent(t *testing.T) {
	h := NewHLL()
	h.Add([]byte("x"))
	c1 := h.Count()
	h.Add([]byte("x"))
	c2 := h.Count()
	if c1 != c2 {
		t.Errorf("re-adding same element changed count: %d -> %d", c1, c2)
	}
}

func TestHLLMergeNeverDecreasesEstimate(t *testing.T) {
	a := NewHLL()
	b := NewHLL()
	for i := 0; i < 1000; i++ {
		a.Add([]byte(fmt.Sprintf("a-%d", i)))
	}
	for i := 0; i < 1000; i++ {
		b.Add([]byte(fmt.Sprintf("b-%d", i)))
	}
	before := a.Count()
	a.Merge(b)
	after := a.Count()
	if after < before {
		t.Errorf("merge decreased estimate: %d -> %d", before, after)
	}
	// merged set covers ~2000 distinct elements
	errRate := math.Abs(float64(after)-2000) / 2000
	if errRate > 0.1 {
		t.Errorf("merged Count() = %d, want near 2000 (error %.4f)", after, errRate)
	}
}

func TestHLLMarshalRoundTrip(t *testing.T) {
	h := NewHLL()
	for i := 0; i < 500; i++ {
		h.Add([]byte(fmt.Sprintf("v-%d", i)))
	}
	data := h.Marshal()
	h2, err := UnmarshalHLL(data)
	if err != nil {
		t.Fatalf("UnmarshalHLL: %v", err)
	}
	if h.Count() != h2.Count() {
		t.Errorf("round-trip changed estimate: %d -> %d", h.Count(), h2.Count())
	}
}

func TestUnmarshalHLLRejectsBadMagic(t *testing.T) {
	if _, err := UnmarshalHLL([]byte("not an hll")); err == nil {
		t.Error("expected error for bad magic")
	}
}
