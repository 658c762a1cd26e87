package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/tails/internal/config"
	"git.home.luguber.info/inful/tails/internal/foundation/errors"
	"git.home.luguber.info/inful/tails/internal/metrics"
	"git.home.luguber.info/inful/tails/internal/retry"
	"git.home.luguber.info/inful/tails/internal/storage"
)

type fetchCounter struct {
	metrics.NoopRecorder
	mu     sync.Mutex
	counts map[metrics.FetchSource]int
}

func (c *fetchCounter) IncRemoteFetch(s metrics.FetchSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[metrics.FetchSource]int{}
	}
	c.counts[s]++
}

func (c *fetchCounter) get(s metrics.FetchSource) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[s]
}

func fastPolicy() retry.Policy {
	return retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2)
}

func TestKeyAndIsRemote(t *testing.T) {
	require.True(t, IsRemote("https://esm.sh/react"))
	require.True(t, IsRemote("http://localhost/x.js"))
	require.False(t, IsRemote("./local.js"))
	require.False(t, IsRemote("/_remote/abc.js"))

	k := Key("https://esm.sh/react")
	require.Regexp(t, `^/_remote/[0-9a-f]{64}\.js$`, k)
	require.Equal(t, k, Key("https://esm.sh/react"))
}

func TestEnsureFetchesAtMostOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("export default 42;"))
	}))
	defer srv.Close()

	buildDir := t.TempDir()
	rec := &fetchCounter{}
	f := New(buildDir, WithPolicy(fastPolicy()), WithRecorder(rec))
	url := srv.URL + "/mod.js"

	g, ctx := errgroup.WithContext(context.Background())
	for range 8 {
		g.Go(func() error {
			key, err := f.Ensure(ctx, url)
			if err == nil && key != Key(url) {
				t.Errorf("unexpected key %s", key)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, hits.Load())
	require.Equal(t, 1, rec.get(metrics.FetchNetwork))

	data, err := os.ReadFile(filepath.Join(buildDir, filepath.FromSlash(Key(url))))
	require.NoError(t, err)
	require.Equal(t, "export default 42;", string(data))

	_, err = f.Ensure(context.Background(), url)
	require.NoError(t, err)
	require.EqualValues(t, 1, hits.Load())
	require.GreaterOrEqual(t, rec.get(metrics.FetchCached), 1)
}

func TestEnsureUsesSharedStore(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("export const a = 1;"))
	}))
	defer srv.Close()

	store := storage.NewMemoryStore()
	url := srv.URL + "/a.js"

	_, err := New(t.TempDir(), WithStore(store), WithPolicy(fastPolicy())).Ensure(context.Background(), url)
	require.NoError(t, err)

	rec := &fetchCounter{}
	other := t.TempDir()
	_, err = New(other, WithStore(store), WithPolicy(fastPolicy()), WithRecorder(rec)).Ensure(context.Background(), url)
	require.NoError(t, err)

	require.EqualValues(t, 1, hits.Load())
	require.Equal(t, 1, rec.get(metrics.FetchStore))
	require.FileExists(t, filepath.Join(other, filepath.FromSlash(Key(url))))
}

func TestEnsureRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, err := New(t.TempDir(), WithPolicy(fastPolicy())).Ensure(context.Background(), srv.URL)
	require.NoError(t, err)
	require.EqualValues(t, 2, hits.Load())
}

func TestEnsureDoesNotRetryMissingModules(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	buildDir := t.TempDir()
	rec := &fetchCounter{}
	url := srv.URL + "/missing.js"
	_, err := New(buildDir, WithPolicy(fastPolicy()), WithRecorder(rec)).Ensure(context.Background(), url)
	require.Error(t, err)
	require.Equal(t, errors.CategoryModule, errors.GetCategory(err))
	require.EqualValues(t, 1, hits.Load())
	require.Equal(t, 1, rec.get(metrics.FetchFailed))
	require.NoFileExists(t, filepath.Join(buildDir, filepath.FromSlash(Key(url))))
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Remote.CacheDir = t.TempDir()
	f, err := NewFromConfig(cfg)
	require.NoError(t, err)
	require.IsType(t, &storage.FSStore{}, f.store)
	require.NoError(t, f.Close())

	cfg.Remote.Cache = config.RemoteCacheNone
	f, err = NewFromConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, storage.NopStore{}, f.store)
}
