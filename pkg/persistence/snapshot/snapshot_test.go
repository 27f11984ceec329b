package snapshot

import (
	"testing"
	"time"

	"github.com/spineldb/spineldb/pkg/encoding"
	"github.com/spineldb/spineldb/pkg/keyspace"
	"github.com/spineldb/spineldb/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpRestoreRoundTrip(t *testing.T) {
	db := keyspace.NewDatabase(0, 4)
	db.ShardFor("str").Set("str", &types.Entry{Value: encoding.NewString([]byte("hello"))})

	l := encoding.NewList()
	l.PushRight("a", "b", "c")
	db.ShardFor("list").Set("list", &types.Entry{Value: l})

	h := encoding.NewHash()
	h.Set("f1", "v1")
	db.ShardFor("hash").Set("hash", &types.Entry{Value: h})

	z := encoding.NewZSet()
	z.Add(1, "one")
	z.Add(2, "two")
	db.ShardFor("zset").Set("zset", &types.Entry{Value: z})

	expireAt := time.Now().Add(time.Hour)
	db.ShardFor("withttl").Set("withttl", &types.Entry{Value: encoding.NewString([]byte("ttl")), ExpireAt: expireAt})

	expired := time.Now().Add(-time.Hour)
	db.ShardFor("expired").Set("expired", &types.Entry{Value: encoding.NewString([]byte("gone")), ExpireAt: expired})

	dumped := Dump([]*keyspace.Database{db})
	require.Len(t, dumped, 1)
	assert.Equal(t, 5, len(dumped[0].Entries)) // expired key excluded from dump

	restored := keyspace.NewDatabase(0, 4)
	require.NoError(t, Restore([]*keyspace.Database{restored}, dumped))

	e, ok := restored.Get("str")
	require.True(t, ok)
	assert.Equal(t, "hello", string(e.Value.(*encoding.StringValue).Data))

	e, ok = restored.Get("list")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, e.Value.(*encoding.ListValue).All())

	e, ok = restored.Get("zset")
	require.True(t, ok)
	score, ok := e.Value.(*encoding.ZSetValue).Score("two")
	require.True(t, ok)
	assert.Equal(t, float64(2), score)

	e, ok = restored.Get("withttl")
	require.True(t, ok)
	assert.True(t, e.HasTTL())

	_, ok = restored.Get("expired")
	assert.False(t, ok)
}
