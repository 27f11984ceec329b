package encoding

import (
	"fmt"
	"testing"
)

func TestBloomNoFalseNegatives(t *testing.T) {
	b := NewBloom(1000, 0.01)
	inserted := make([][]byte, 0, 1000)
	for i := 0; i < 1000; i++ {
		e := []byte(fmt.Sprintf("member-%d", i))
		b.Add(e)
		inserted = append(inserted, e)
	}
	for _, e := range inserted {
		if !b.Test(e) {
			t.Fatalf("false negative for %q", e)
		}
	}
}

func TestBloomFalsePositiveRateWithinBudget(t *testing.T) {
	b := NewBloom(1000, 0.01)
	for i := 0; i < 1000; i++ {
		b.Add([]byte(fmt.Sprintf("member-%d", i)))
	}
	falsePositives := 0
	const trials = 5000
	for i := 0; i < trials; i++ {
		e := []byte(fmt.Sprintf("absent-%d", i))
		if b.Test(e) {
			falsePositives++
		}
	}
	rate := float64(falsePositives) / trials
	// allow generous slack over the configured 1% target
	if rate > 0.05 {
		t.Errorf("false positive rate = %.4f, want <= 0.05", rate)
	}
}

func TestBloomAddReturnsFalseOnRepeat(t *testing.T) {
	b := NewBloom(100, 0.01)
	if !b.Add([]byte("x")) {
		t.Error("first Add should report newly-set bits")
	}
	if b.Add([]byte("x")) {
		t.Error("re-adding same element should report no newly-set bits")
	}
}

func TestBloomMarshalRoundTrip(t *testing.T) {
	b := NewBloom(500, 0.02)
	for i := 0; i < 200; i++ {
		b.Add([]byte(fmt.Sprintf("v-%d", i)))
	}
	data := b.Marshal()
	b2, err := UnmarshalBloom(data)
	if err != nil {
		t.Fatalf("UnmarshalBloom: %v", err)
	}
	for i := 0; i < 200; i++ {
		e := []byte(fmt.Sprintf("v-%d", i))
		if !b2.Test(e) {
			t.Errorf("round-tripped filter lost member %q", e)
		}
	}
	if b2.NumBits() != b.NumBits() || b2.NumHash() != b.NumHash() {
		t.Error("round-trip changed sizing parameters")
	}
}

func TestUnmarshalBloomRejectsBadMagic(t *testing.T) {
	if _, err := UnmarshalBloom([]byte("nope")); err == nil {
		t.Error("expected error for bad magic")
	}
}
