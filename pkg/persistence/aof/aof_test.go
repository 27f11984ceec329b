package aof

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.aof")

	w, err := Open(path, FsyncAlways)
	require.NoError(t, err)
	require.NoError(t, w.Append([]string{"SET", "foo", "bar"}))
	require.NoError(t, w.Append([]string{"DEL", "foo"}))
	require.NoError(t, w.Close())

	var replayed [][]string
	err = Replay(path, func(args []string) error {
		replayed = append(replayed, args)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, replayed, 2)
	assert.Equal(t, []string{"SET", "foo", "bar"}, replayed[0])
	assert.Equal(t, []string{"DEL", "foo"}, replayed[1])
}

func TestReplayMissingFileIsNotError(t *testing.T) {
	err := Replay(filepath.Join(t.TempDir(), "missing.aof"), func(args []string) error {
		t.Fatal("apply should not be called")
		return nil
	})
	require.NoError(t, err)
}

func TestParseFsyncPolicy(t *testing.T) {
	assert.Equal(t, FsyncAlways, ParseFsyncPolicy("always"))
	assert.Equal(t, FsyncNo, ParseFsyncPolicy("no"))
	assert.Equal(t, FsyncEverySec, ParseFsyncPolicy("everysec"))
	assert.Equal(t, FsyncEverySec, ParseFsyncPolicy("garbage"))
}
