package cluster

import (
	"encoding/json"
	"testing"

	"github.com/hashicorp/raft"
	"github.com/spineldb/spineldb/pkg/rerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeySlotHashTag(t *testing.T) {
	a := KeySlot("{user1000}.following")
	b := KeySlot("{user1000}.followers")
	assert.Equal(t, a, b)
}

func TestKeySlotInRange(t *testing.T) {
	for _, k := range []string{"foo", "bar", "{tag}rest", ""} {
		s := KeySlot(k)
		assert.GreaterOrEqual(t, s, 0)
		assert.Less(t, s, SlotCount)
	}
}

func TestTableAddSlotsAndOwner(t *testing.T) {
	tbl := NewTable()
	tbl.AddNode(NodeState{ID: "node-a", Addr: "127.0.0.1:6380"})
	require.NoError(t, tbl.AddSlots("node-a", []int{0, 1, 2}))
	assert.Equal(t, "node-a", tbl.Owner(0))
	assert.Equal(t, "", tbl.Owner(3))

	require.Error(t, tbl.AddSlots("missing-node", []int{5}))
}

func TestTableRedirect(t *testing.T) {
	tbl := NewTable()
	tbl.AddNode(NodeState{ID: "self", Addr: "127.0.0.1:6380"})
	tbl.AddNode(NodeState{ID: "other", Addr: "127.0.0.1:6381"})

	slot := KeySlot("mykey")
	require.NoError(t, tbl.AddSlots("self", []int{slot}))
	assert.Nil(t, tbl.Redirect("self", "mykey"))

	require.NoError(t, tbl.AddSlots("other", []int{slot}))
	err := tbl.Redirect("self", "mykey")
	require.NotNil(t, err)
	assert.Equal(t, rerror.KindMoved, err.Kind)
	assert.Contains(t, err.Error(), "127.0.0.1:6381")
}

func TestTableRedirectAsk(t *testing.T) {
	tbl := NewTable()
	tbl.AddNode(NodeState{ID: "self", Addr: "127.0.0.1:6380"})
	tbl.AddNode(NodeState{ID: "other", Addr: "127.0.0.1:6381"})

	slot := KeySlot("movingkey")
	require.NoError(t, tbl.AddSlots("self", []int{slot}))
	require.NoError(t, tbl.SetSlot(slot, "", "other", ""))

	err := tbl.Redirect("self", "movingkey")
	require.NotNil(t, err)
	assert.Equal(t, rerror.KindAsk, err.Kind)
}

func TestKeysInSlot(t *testing.T) {
	keys := []string{"a", "b", "c", "{tag}x", "{tag}y"}
	slot := KeySlot("{tag}x")
	got := KeysInSlot(keys, slot, 0)
	assert.ElementsMatch(t, []string{"{tag}x", "{tag}y"}, got)
}

func TestFSMApplyAddSlots(t *testing.T) {
	tbl := NewTable()
	tbl.AddNode(NodeState{ID: "node-a"})
	fsm := NewFSM(tbl)

	data, err := json.Marshal(addSlotsArgs{NodeID: "node-a", Slots: []int{10, 11}})
	require.NoError(t, err)
	buf, err := json.Marshal(Command{Op: opAddSlots, Data: data})
	require.NoError(t, err)

	result := fsm.Apply(&raft.Log{Data: buf})
	assert.Nil(t, result)
	assert.Equal(t, "node-a", tbl.Owner(10))
}
