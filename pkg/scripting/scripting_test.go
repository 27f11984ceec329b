package scripting

import (
	"fmt"
	"testing"

	"github.com/spineldb/spineldb/pkg/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheLoadGetExistsFlush(t *testing.T) {
	c := NewCache()
	sha := c.Load("return 1")
	assert.Equal(t, SHA1Hex("return 1"), sha)

	body, ok := c.Get(sha)
	require.True(t, ok)
	assert.Equal(t, "return 1", body)

	exists := c.Exists([]string{sha, "deadbeef"})
	assert.Equal(t, []bool{true, false}, exists)

	c.Flush()
	_, ok = c.Get(sha)
	assert.False(t, ok)
}

func TestEvalReturnsLiteral(t *testing.T) {
	rt := NewRuntime(NewCache())
	noCall := func(name string, args []string) (resp.Value, error) {
		return resp.Value{}, fmt.Errorf("unexpected call to %s", name)
	}
	reply, err := rt.Eval("return 'hello'", nil, nil, noCall)
	require.NoError(t, err)
	assert.Equal(t, resp.KindBulkString, reply.Kind)
	assert.Equal(t, "hello", reply.Str)
}

func TestEvalBridgesRedisCall(t *testing.T) {
	rt := NewRuntime(NewCache())
	called := false
	call := func(name string, args []string) (resp.Value, error) {
		called = true
		assert.Equal(t, "SET", name)
		assert.Equal(t, []string{"foo", "bar"}, args)
		return resp.OK(), nil
	}
	reply, err := rt.Eval(`return redis.call('SET', KEYS[1], ARGV[1])`, []string{"foo"}, []string{"bar"}, call)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "OK", reply.Str)
}

func TestEvalConvertsTableToArray(t *testing.T) {
	rt := NewRuntime(NewCache())
	noCall := func(name string, args []string) (resp.Value, error) { return resp.Value{}, nil }
	reply, err := rt.Eval("return {1, 2, 'three'}", nil, nil, noCall)
	require.NoError(t, err)
	require.Equal(t, resp.KindArray, reply.Kind)
	require.Len(t, reply.Elems, 3)
	assert.Equal(t, int64(1), reply.Elems[0].Int)
	assert.Equal(t, "three", reply.Elems[2].Str)
}
