package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAppendAndQuery(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	require.NoError(t, store.Append(ctx, Record{BuildID: "b1", Kind: KindBuild, Outcome: "success", Duration: 1500 * time.Millisecond, Metadata: map[string]string{"modules": "3"}}))
	require.NoError(t, store.Append(ctx, Record{BuildID: "b1", Kind: KindRecompile, Path: "/pages/index.js", Outcome: "success", Duration: 20 * time.Millisecond}))
	require.NoError(t, store.Append(ctx, Record{BuildID: "b2", Kind: KindBuild, Outcome: "failed"}))

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "b2", recent[0].BuildID)
	require.Equal(t, KindRecompile, recent[1].Kind)
	require.Equal(t, "/pages/index.js", recent[1].Path)
	require.Equal(t, 20*time.Millisecond, recent[1].Duration)
	require.False(t, recent[0].Timestamp.IsZero())

	b1, err := store.ByBuild(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, b1, 2)
	require.Equal(t, map[string]string{"modules": "3"}, b1[0].Metadata)
	require.Nil(t, b1[1].Metadata)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), Record{BuildID: "b1", Kind: KindBuild, Outcome: "success"}))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	recent, err := store.Recent(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}

func TestNopStore(t *testing.T) {
	var s Store = NopStore{}
	require.NoError(t, s.Append(t.Context(), Record{}))
	recs, err := s.Recent(t.Context(), 1)
	require.NoError(t, err)
	require.Empty(t, recs)
}
