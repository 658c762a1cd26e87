package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ggit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tails/internal/foundation/errors"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".tails", "manifest.json")
	m := Manifest{
		"/pages/index.js": {Path: "/p/.tails/pages/index.js", Module: "export default 1;", HTML: "<p>hi</p>"},
		"/lib/util.js":    {Path: "/p/.tails/lib/util.js", Module: "export const x = 1;"},
	}
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, m, loaded)
}

func TestMarshalIsDeterministic(t *testing.T) {
	a := Manifest{"/b.js": {Path: "b"}, "/a.js": {Path: "a"}, "/c.js": {Path: "c"}}
	b := Manifest{"/c.js": {Path: "c"}, "/a.js": {Path: "a"}, "/b.js": {Path: "b"}}

	da, err := a.Marshal()
	require.NoError(t, err)
	db, err := b.Marshal()
	require.NoError(t, err)
	require.Equal(t, da, db)
	require.Less(t, strings.Index(string(da), "/a.js"), strings.Index(string(da), "/b.js"))

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	require.Equal(t, ha, hb)
}

func TestHTMLOmittedWhenEmpty(t *testing.T) {
	data, err := Manifest{"/a.js": {Path: "a", Module: "m"}}.Marshal()
	require.NoError(t, err)
	require.NotContains(t, string(data), "html")
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "manifest.json"))
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, errors.CategoryManifest, errors.GetCategory(err))
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Equal(t, errors.CategoryManifest, errors.GetCategory(err))
}

func TestBuildInfoSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.json")
	b := NewBuildInfo("production", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	b.Plugins = []string{"css", "json"}
	b.Modules = 3
	b.Duration = 1500
	require.NotEmpty(t, b.ID)
	require.NoError(t, b.Save(path))

	loaded, err := LoadBuildInfo(path)
	require.NoError(t, err)
	require.Equal(t, b, loaded)
}

func TestDetectRevision(t *testing.T) {
	dir := t.TempDir()
	rev, err := DetectRevision(dir)
	require.NoError(t, err)
	require.Empty(t, rev)

	repo, err := ggit.PlainInit(dir, false)
	require.NoError(t, err)
	rev, err = DetectRevision(dir)
	require.NoError(t, err)
	require.Empty(t, rev)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi"), 0o600))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	hash, err := wt.Commit("init", &ggit.CommitOptions{
		Author: &object.Signature{Name: "t", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	sub := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	rev, err = DetectRevision(sub)
	require.NoError(t, err)
	require.Equal(t, hash.String(), rev)
}
