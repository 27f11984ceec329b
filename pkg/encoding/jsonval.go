package encoding

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spineldb/spineldb/pkg/types"
)

// JSONValue wraps an in-memory tagged JSON tree (the decoded form of
// encoding/json's map[string]any / []any / scalar union), supporting the
// restricted dotted/bracket JSONPath subset spec.md §4.4 calls for: root
// ("$"), field access (".field"), and array index ("[n]").
type JSONValue struct {
	root any
}

func NewJSON(root any) *JSONValue { return &JSONValue{root: root} }

// ParseJSON decodes raw JSON text into a JSONValue.
func ParseJSON(data []byte) (*JSONValue, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("ERR invalid JSON: %w", err)
	}
	return &JSONValue{root: v}, nil
}

func (j *JSONValue) Type() types.ValueType { return types.TypeJSON }

func (j *JSONValue) SizeEstimate() int64 {
	b, err := json.Marshal(j.root)
	if err != nil {
		return 64
	}
	return int64(len(b))
}

func (j *JSONValue) Root() any { return j.root }

func (j *JSONValue) Marshal() ([]byte, error) { return json.Marshal(j.root) }

// pathToken is one step of a parsed path: either a map-field name or an
// array index.
type pathToken struct {
	field string
	index int
	isIdx bool
}

// parsePath parses the restricted JSONPath subset: "$", "$.a.b",
// "$.a[0].b", "$[2]". A bare "." with no leading "$" is also accepted as
// shorthand for root, matching common RedisJSON usage.
func parsePath(path string) ([]pathToken, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "$" || path == "." {
		return nil, nil
	}
	path = strings.TrimPrefix(path, "$")
	var tokens []pathToken
	i := 0
	for i < len(path) {
		switch path[i] {
		case '.':
			i++
			j := i
			for j < len(path) && path[j] != '.' && path[j] != '[' {
				j++
			}
			if j == i {
				return nil, fmt.Errorf("ERR invalid path %q", path)
			}
			tokens = append(tokens, pathToken{field: path[i:j]})
			i = j
		case '[':
			j := strings.IndexByte(path[i:], ']')
			if j < 0 {
				return nil, fmt.Errorf("ERR invalid path %q", path)
			}
			idxStr := path[i+1 : i+j]
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, fmt.Errorf("ERR invalid array index %q", idxStr)
			}
			tokens = append(tokens, pathToken{index: idx, isIdx: true})
			i += j + 1
		default:
			return nil, fmt.Errorf("ERR invalid path %q", path)
		}
	}
	return tokens, nil
}

// Get resolves path against the tree, returning the located value.
func (j *JSONValue) Get(path string) (any, bool, error) {
	tokens, err := parsePath(path)
	if err != nil {
		return nil, false, err
	}
	cur := j.root
	for _, t := range tokens {
		if t.isIdx {
			arr, ok := cur.([]any)
			if !ok || t.index < 0 || t.index >= len(arr) {
				return nil, false, nil
			}
			cur = arr[t.index]
		} else {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false, nil
			}
			v, ok := obj[t.field]
			if !ok {
				return nil, false, nil
			}
			cur = v
		}
	}
	return cur, true, nil
}

// Set writes value at path, creating intermediate map levels as needed
// (array levels must already exist — JSON.SET does not grow arrays).
// nx/xx mirror SET's conditional semantics: nx requires the path be
// absent, xx requires it be present.
func (j *JSONValue) Set(path string, value any, nx, xx bool) error {
	tokens, err := parsePath(path)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		if nx {
			return fmt.Errorf("ERR NX path already exists at root")
		}
		j.root = value
		return nil
	}
	_, existed, _ := j.Get(path)
	if nx && existed {
		return fmt.Errorf("ERR NX: path %q already exists", path)
	}
	if xx && !existed {
		return fmt.Errorf("ERR XX: path %q does not exist", path)
	}

	parent := &j.root
	for i, t := range tokens {
		last := i == len(tokens)-1
		if t.isIdx {
			arr, ok := (*parent).([]any)
			if !ok || t.index < 0 || t.index >= len(arr) {
				return fmt.Errorf("ERR path %q: array index out of range", path)
			}
			if last {
				arr[t.index] = value
				return nil
			}
			parent = &arr[t.index]
		} else {
			obj, ok := (*parent).(map[string]any)
			if !ok {
				if *parent == nil {
					obj = make(map[string]any)
					*parent = obj
				} else {
					return fmt.Errorf("ERR path %q: not an object", path)
				}
			}
			if last {
				obj[t.field] = value
				return nil
			}
			if _, ok := obj[t.field]; !ok {
				obj[t.field] = make(map[string]any)
			}
			v := obj[t.field]
			parent = &v
			obj[t.field] = v
		}
	}
	return nil
}

// Del removes the value at path, returning whether it existed. A path
// whose last step is an array index removes nothing and returns false.
func (j *JSONValue) Del(path string) bool {
	tokens, err := parsePath(path)
	if err != nil || len(tokens) == 0 {
		return false
	}
	cur := j.root
	for i := 0; i < len(tokens)-1; i++ {
		t := tokens[i]
		if t.isIdx {
			arr, ok := cur.([]any)
			if !ok || t.index < 0 || t.index >= len(arr) {
				return false
			}
			cur = arr[t.index]
		} else {
			obj, ok := cur.(map[string]any)
			if !ok {
				return false
			}
			v, ok := obj[t.field]
			if !ok {
				return false
			}
			cur = v
		}
	}
	last := tokens[len(tokens)-1]
	if last.isIdx {
		arr, ok := cur.([]any)
		if !ok || last.index < 0 || last.index >= len(arr) {
			return false
		}
		return false // deleting array elements by index is not supported; array stays fixed-shape
	}
	obj, ok := cur.(map[string]any)
	if !ok {
		return false
	}
	if _, ok := obj[last.field]; !ok {
		return false
	}
	delete(obj, last.field)
	return true
}

// Merge implements JSON.MERGE (RFC 7396 style): recursively merges patch
// into the value at path; null leaves in patch delete the corresponding
// key.
func (j *JSONValue) Merge(path string, patch any) error {
	cur, existed, err := j.Get(path)
	if err != nil {
		return err
	}
	if !existed {
		return j.Set(path, patch, false, false)
	}
	merged := mergePatch(cur, patch)
	return j.Set(path, merged, false, false)
}

func mergePatch(dst, patch any) any {
	patchObj, ok := patch.(map[string]any)
	if !ok {
		return patch
	}
	dstObj, ok := dst.(map[string]any)
	if !ok {
		dstObj = make(map[string]any)
	}
	out := make(map[string]any, len(dstObj))
	for k, v := range dstObj {
		out[k] = v
	}
	for k, v := range patchObj {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = mergePatch(out[k], v)
	}
	return out
}
