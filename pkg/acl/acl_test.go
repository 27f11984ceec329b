package acl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultUserAllowsEverything(t *testing.T) {
	tbl := NewTable(nil)
	assert.True(t, tbl.Authenticate("default", "anything"))
	assert.True(t, tbl.CanRunCommand("default", "SET"))
	assert.True(t, tbl.CanAccessKey("default", "anykey"))
}

func TestSetUserRestrictsAccess(t *testing.T) {
	tbl := NewTable(nil)
	err := tbl.SetUser("alice", []string{"on", ">secret", "~cache:*", "nocommands", "+GET", "+SET"})
	require.NoError(t, err)

	assert.True(t, tbl.Authenticate("alice", "secret"))
	assert.False(t, tbl.Authenticate("alice", "wrong"))
	assert.True(t, tbl.CanRunCommand("alice", "get"))
	assert.False(t, tbl.CanRunCommand("alice", "DEL"))
	assert.True(t, tbl.CanAccessKey("alice", "cache:1"))
	assert.False(t, tbl.CanAccessKey("alice", "other:1"))
}

func TestDeleteUserRefusesDefault(t *testing.T) {
	tbl := NewTable(nil)
	assert.False(t, tbl.DeleteUser("default"))
	require.NoError(t, tbl.SetUser("bob", []string{"on"}))
	assert.True(t, tbl.DeleteUser("bob"))
	_, ok := tbl.GetUser("bob")
	assert.False(t, ok)
}

func TestSetUserRejectsUnknownRule(t *testing.T) {
	tbl := NewTable(nil)
	err := tbl.SetUser("eve", []string{"%bogus"})
	assert.Error(t, err)
}
