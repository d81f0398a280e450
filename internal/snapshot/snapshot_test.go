package snapshot

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompress_RoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte(`{"exploration_id":"e1"},`), 200)
	blob, err := Compress(compressible)
	require.NoError(t, err)
	require.Equal(t, blobLZ4, blob[0])
	require.Less(t, len(blob), len(compressible))

	out, err := Decompress(blob)
	require.NoError(t, err)
	require.Equal(t, compressible, out)
}

func TestCompress_IncompressibleStoredRaw(t *testing.T) {
	in := []byte("xyz")
	blob, err := Compress(in)
	require.NoError(t, err)
	require.Equal(t, blobRaw, blob[0])

	out, err := Decompress(blob)
	require.NoError(t, err)
	require.Equal(t, in, out)

	empty, err := Compress(nil)
	require.NoError(t, err)
	out, err = Decompress(empty)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestDecompress_Corrupt(t *testing.T) {
	_, err := Decompress([]byte{1, 2})
	require.ErrorIs(t, err, ErrCorruptBlob)
	_, err = Decompress([]byte{9, 0, 0, 0, 0})
	require.ErrorIs(t, err, ErrCorruptBlob)
	_, err = Decompress([]byte{blobRaw, 0, 0, 0, 3, 'a'})
	require.ErrorIs(t, err, ErrCorruptBlob)
}

func TestMemoryStore_RecordAndQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	cmds := []map[string]interface{}{{"cmd": "create_new", "title": "t", "category": "c"}}
	require.NoError(t, s.Record(ctx, Commit{Kind: KindSkill, EntityID: "s1", Version: 2, CommitterID: "u1", CommitType: CommitTypeEdit, Message: "second", Content: []byte("v2")}))
	require.NoError(t, s.Record(ctx, Commit{Kind: KindSkill, EntityID: "s1", Version: 1, CommitterID: "u1", CommitType: CommitTypeCreate, Message: "first", Cmds: cmds, Content: []byte("v1")}))
	require.NoError(t, s.Record(ctx, Commit{Kind: KindCollection, EntityID: "c1", Version: 1, Content: []byte("c")}))

	content, err := s.Content(ctx, KindSkill, "s1", 1)
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), content)
	_, err = s.Content(ctx, KindSkill, "s1", 3)
	require.ErrorIs(t, err, ErrNotFound)

	meta, err := s.MetadataFor(ctx, KindSkill)
	require.NoError(t, err)
	require.Len(t, meta, 2)
	require.Equal(t, "s1-1", meta[0].ID)
	require.Equal(t, cmds, meta[0].CommitCmds)

	logs, err := s.CommitLogFor(ctx, KindSkill)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, "skill-s1-2", logs[1].ID)
	require.Equal(t, "u1", logs[1].UserID)
}

func TestMemoryStore_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return old }
	require.NoError(t, s.Record(ctx, Commit{Kind: KindExploration, EntityID: "e1", Version: 1, Content: []byte("old")}))
	s.now = time.Now
	require.NoError(t, s.Record(ctx, Commit{Kind: KindExploration, EntityID: "e1", Version: 2, Content: []byte("new")}))

	n, err := s.DeleteOlderThan(ctx, old.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = s.Content(ctx, KindExploration, "e1", 1)
	require.ErrorIs(t, err, ErrNotFound)
	got, err := s.Content(ctx, KindExploration, "e1", 2)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), got)

	meta, err := s.MetadataFor(ctx, KindExploration)
	require.NoError(t, err)
	require.Len(t, meta, 2)
}
