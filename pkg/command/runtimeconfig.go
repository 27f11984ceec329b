package command

import (
	"strconv"
	"sync"

	"github.com/spineldb/spineldb/pkg/pubsub"
)

// RuntimeConfig is the mutable view of server parameters CONFIG GET/SET
// exposes, the command-level counterpart to config.Config's file-loaded
// settings (SPEC_FULL.md's ambient CONFIG surface). It is seeded from the
// startup configuration; Set accepts any parameter name and stores the
// string, and the stored values are read back only by CONFIG GET.
type RuntimeConfig struct {
	mu     sync.Mutex
	params map[string]string
}

// NewRuntimeConfig seeds a RuntimeConfig from the values config.Load
// resolved at startup.
func NewRuntimeConfig(initial map[string]string) *RuntimeConfig {
	params := make(map[string]string, len(initial))
	for k, v := range initial {
		params[k] = v
	}
	return &RuntimeConfig{params: params}
}

// Get returns every parameter whose name matches the glob pattern, in
// the flat name/value pairing CONFIG GET's reply uses.
func (c *RuntimeConfig) Get(pattern string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for k, v := range c.params {
		if pubsub.Match(pattern, k) {
			out = append(out, k, v)
		}
	}
	return out
}

// Set assigns value to name, creating the parameter if it is unknown
// (CONFIG SET on an unrecognized name is accepted, matching the
// teacher's permissive apply-time validation rather than real Redis's
// strict parameter whitelist).
func (c *RuntimeConfig) Set(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params[name] = value
}

func (c *RuntimeConfig) IntOr(name string, def int64) int64 {
	c.mu.Lock()
	v, ok := c.params[name]
	c.mu.Unlock()
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
