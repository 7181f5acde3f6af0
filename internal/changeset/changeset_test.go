package changeset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_WriteAndDelete(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "old.txt"), []byte("stale"), 0o644))

	cs := &ChangeSet{Ops: []Op{
		{Kind: OpWrite, Path: "models/tank.mo", Content: "model Tank end Tank;"},
		{Kind: OpDelete, Path: "old.txt"},
	}}

	result, err := Apply(cs, root)
	require.NoError(t, err)
	assert.Equal(t, 2, result.AppliedChangesCount)
	assert.NotEmpty(t, result.Hash)

	data, err := os.ReadFile(filepath.Join(root, "models", "tank.mo"))
	require.NoError(t, err)
	assert.Equal(t, "model Tank end Tank;", string(data))

	_, err = os.Stat(filepath.Join(root, "old.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestApply_DeleteMissingFileIsNotAnError(t *testing.T) {
	root := t.TempDir()
	cs := &ChangeSet{Ops: []Op{{Kind: OpDelete, Path: "never-existed.txt"}}}

	_, err := Apply(cs, root)
	assert.NoError(t, err)
}

func TestPreflight_RejectsPathEscape(t *testing.T) {
	root := t.TempDir()
	cs := &ChangeSet{Ops: []Op{{Kind: OpWrite, Path: "../outside.txt", Content: "x"}}}

	err := Preflight(cs, root)
	assert.Error(t, err)
}

func TestPreflight_RejectsUnknownKind(t *testing.T) {
	root := t.TempDir()
	cs := &ChangeSet{Ops: []Op{{Kind: "rename", Path: "a.txt"}}}

	err := Preflight(cs, root)
	assert.Error(t, err)
}

func TestHash_IsDeterministicAndOrderSensitive(t *testing.T) {
	a := &ChangeSet{Ops: []Op{{Kind: OpWrite, Path: "a.mo", Content: "x"}, {Kind: OpWrite, Path: "b.mo", Content: "y"}}}
	b := &ChangeSet{Ops: []Op{{Kind: OpWrite, Path: "b.mo", Content: "y"}, {Kind: OpWrite, Path: "a.mo", Content: "x"}}}

	assert.Equal(t, Hash(a), Hash(a))
	assert.NotEqual(t, Hash(a), Hash(b))
}

func TestLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changeset.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ops":[{"kind":"write","path":"x.mo","content":"body"}]}`), 0o644))

	cs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cs.Ops, 1)
	assert.Equal(t, OpWrite, cs.Ops[0].Kind)
	assert.Equal(t, "x.mo", cs.Ops[0].Path)
}
