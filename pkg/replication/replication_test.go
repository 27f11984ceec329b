package replication

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBacklogFeedAndOffset(t *testing.T) {
	b := NewBacklog(1024)
	data := b.Feed([]string{"SET", "foo", "bar"})
	assert.NotEmpty(t, data)
	assert.Equal(t, int64(len(data)), b.Offset())
	assert.True(t, b.CanContinue(0))
	assert.False(t, b.CanContinue(-1))
}

func TestBacklogEvictsBeyondSize(t *testing.T) {
	b := NewBacklog(8)
	b.Feed([]string{"SET", "a", "1"})
	b.Feed([]string{"SET", "b", "2"})
	assert.LessOrEqual(t, len(b.buf), 8)
}

func TestMasterPropagateFansOut(t *testing.T) {
	m := NewMaster(1024)
	var w1, w2 bytes.Buffer
	id1 := m.AddReplica(&w1)
	m.AddReplica(&w2)
	assert.Equal(t, 2, m.ReplicaCount())

	m.Propagate([]string{"SET", "x", "1"})
	assert.NotEmpty(t, w1.Bytes())
	assert.Equal(t, w1.Bytes(), w2.Bytes())

	m.RemoveReplica(id1)
	assert.Equal(t, 1, m.ReplicaCount())
}

func TestHandlePSYNCFullResyncForNewReplica(t *testing.T) {
	m := NewMaster(1024)
	reply := m.HandlePSYNC("unknown-replid", -1)
	assert.Contains(t, reply, "FULLRESYNC")
	assert.Contains(t, reply, m.ReplID)
}

func TestHandlePSYNCContinueWhenInWindow(t *testing.T) {
	m := NewMaster(1024)
	m.Propagate([]string{"SET", "a", "1"})
	reply := m.HandlePSYNC(m.ReplID, 0)
	assert.Equal(t, "+CONTINUE\r\n", reply)
}

func TestParsePSYNCOffset(t *testing.T) {
	v, err := ParsePSYNCOffset("-1")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)
}
