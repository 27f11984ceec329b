package encoding

import "github.com/spineldb/spineldb/pkg/types"

// HashValue is an open-addressed (Go map) field→value store.
type HashValue struct {
	fields map[string]string
}

func NewHash() *HashValue { return &HashValue{fields: make(map[string]string)} }

func (h *HashValue) Type() types.ValueType { return types.TypeHash }

func (h *HashValue) SizeEstimate() int64 {
	var sz int64 = 32
	for k, v := range h.fields {
		sz += int64(len(k)+len(v)) + 32
	}
	return sz
}

func (h *HashValue) Len() int { return len(h.fields) }

// Set installs field=value, returning true if the field was newly created.
func (h *HashValue) Set(field, value string) bool {
	_, existed := h.fields[field]
	h.fields[field] = value
	return !existed
}

func (h *HashValue) Get(field string) (string, bool) {
	v, ok := h.fields[field]
	return v, ok
}

func (h *HashValue) Del(fields ...string) int {
	n := 0
	for _, f := range fields {
		if _, ok := h.fields[f]; ok {
			delete(h.fields, f)
			n++
		}
	}
	return n
}

func (h *HashValue) All() map[string]string {
	out := make(map[string]string, len(h.fields))
	for k, v := range h.fields {
		out[k] = v
	}
	return out
}

func (h *HashValue) Exists(field string) bool {
	_, ok := h.fields[field]
	return ok
}
