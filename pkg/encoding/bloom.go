package encoding

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spineldb/spineldb/pkg/types"
)

const bloomMagic = "SPINELBF"

// BloomValue is a classic bit-array Bloom filter sized from a requested
// capacity and false-positive error rate, using double hashing (two
// independent 64-bit hashes combined as h1 + i*h2) to derive k probe
// positions per spec.md §4.4/§6.
type BloomValue struct {
	bits     []byte
	numBits  uint64
	numHash  int
	capacity uint64
	inserted uint64
}

// NewBloom derives bit-array size m and hash count k from the classic
// optimal-Bloom-filter formulas:
//
//	m = -(n * ln(p)) / (ln 2)^2
//	k = (m / n) * ln 2
func NewBloom(capacity uint64, errorRate float64) *BloomValue {
	if capacity == 0 {
		capacity = 1
	}
	if errorRate <= 0 || errorRate >= 1 {
		errorRate = 0.01
	}
	m := -float64(capacity) * math.Log(errorRate) / (math.Ln2 * math.Ln2)
	k := (m / float64(capacity)) * math.Ln2
	numBits := uint64(math.Ceil(m))
	if numBits < 8 {
		numBits = 8
	}
	numHash := int(math.Round(k))
	if numHash < 1 {
		numHash = 1
	}
	if numHash > 32 {
		numHash = 32
	}
	return &BloomValue{
		bits:     make([]byte, (numBits+7)/8),
		numBits:  numBits,
		numHash:  numHash,
		capacity: capacity,
	}
}

func (b *BloomValue) Type() types.ValueType { return types.TypeBloom }

func (b *BloomValue) SizeEstimate() int64 { return int64(len(b.bits)) + 32 }

func (b *BloomValue) Capacity() uint64 { return b.capacity }
func (b *BloomValue) NumHash() int     { return b.numHash }
func (b *BloomValue) NumBits() uint64  { return b.numBits }
func (b *BloomValue) Inserted() uint64 { return b.inserted }

func (b *BloomValue) getBit(i uint64) bool {
	return b.bits[i/8]&(1<<(i%8)) != 0
}

func (b *BloomValue) setBit(i uint64) bool {
	byteIdx := i / 8
	mask := byte(1 << (i % 8))
	already := b.bits[byteIdx]&mask != 0
	b.bits[byteIdx] |= mask
	return !already
}

// positions computes the k probe indices for element using double
// hashing: pos_i = (h1 + i*h2) mod numBits.
func (b *BloomValue) positions(element []byte) []uint64 {
	h1, h2 := fnv128(element)
	out := make([]uint64, b.numHash)
	for i := 0; i < b.numHash; i++ {
		out[i] = (h1 + uint64(i)*h2) % b.numBits
	}
	return out
}

// Add sets every probe position for element, returning true if element
// was probably not already present (i.e. at least one bit was newly
// set).
func (b *BloomValue) Add(element []byte) bool {
	newlySet := false
	for _, p := range b.positions(element) {
		if b.setBit(p) {
			newlySet = true
		}
	}
	if newlySet {
		b.inserted++
	}
	return newlySet
}

// Test reports whether element is possibly present. False positives are
// possible; false negatives are not, provided the filter was never
// deserialized/resized incompatibly (spec.md §8 invariant #5).
func (b *BloomValue) Test(element []byte) bool {
	for _, p := range b.positions(element) {
		if !b.getBit(p) {
			return false
		}
	}
	return true
}

// Marshal serializes the filter with a magic prefix plus its sizing
// parameters, so BF.RESERVE-compatible scaling and snapshot round-trips
// can reconstruct an identical filter.
func (b *BloomValue) Marshal() []byte {
	buf := make([]byte, 0, len(bloomMagic)+8*3+8+len(b.bits))
	buf = append(buf, bloomMagic...)
	u64 := make([]byte, 8)
	appendU64 := func(v uint64) {
		binary.BigEndian.PutUint64(u64, v)
		buf = append(buf, u64...)
	}
	appendU64(b.numBits)
	appendU64(uint64(b.numHash))
	appendU64(b.capacity)
	appendU64(b.inserted)
	buf = append(buf, b.bits...)
	return buf
}

// UnmarshalBloom parses the Marshal format back into a BloomValue.
func UnmarshalBloom(data []byte) (*BloomValue, error) {
	if len(data) < len(bloomMagic)+32 || string(data[:len(bloomMagic)]) != bloomMagic {
		return nil, fmt.Errorf("invalid Bloom encoding: bad magic")
	}
	rest := data[len(bloomMagic):]
	numBits := binary.BigEndian.Uint64(rest[0:8])
	numHash := binary.BigEndian.Uint64(rest[8:16])
	capacity := binary.BigEndian.Uint64(rest[16:24])
	inserted := binary.BigEndian.Uint64(rest[24:32])
	body := rest[32:]
	expectedLen := (numBits + 7) / 8
	if uint64(len(body)) != expectedLen {
		return nil, fmt.Errorf("invalid Bloom encoding: length mismatch")
	}
	return &BloomValue{
		bits:     append([]byte(nil), body...),
		numBits:  numBits,
		numHash:  int(numHash),
		capacity: capacity,
		inserted: inserted,
	}, nil
}
