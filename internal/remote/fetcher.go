// Package remote downloads http(s) imports into the build directory so compiled modules can
// refer to them by a stable local path.
package remote

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"git.home.luguber.info/inful/tails/internal/config"
	"git.home.luguber.info/inful/tails/internal/foundation/errors"
	"git.home.luguber.info/inful/tails/internal/logfields"
	"git.home.luguber.info/inful/tails/internal/metrics"
	"git.home.luguber.info/inful/tails/internal/retry"
	"git.home.luguber.info/inful/tails/internal/storage"
)

// Dir is the build directory subfolder holding fetched modules.
const Dir = "_remote"

// IsRemote reports whether spec is an absolute http(s) URL.
func IsRemote(spec string) bool {
	return strings.HasPrefix(spec, "http://") || strings.HasPrefix(spec, "https://")
}

// Key returns the rooted build path a remote URL is stored under.
func Key(url string) string {
	return "/" + Dir + "/" + storage.Key(url) + ".js"
}

// Fetcher resolves remote URLs to files under the build directory. Each URL is downloaded at
// most once per build directory; concurrent callers for the same URL share one download.
type Fetcher struct {
	buildDir string
	client   *http.Client
	store    storage.Store
	policy   retry.Policy
	recorder metrics.Recorder
	logger   *slog.Logger
	group    singleflight.Group
}

// Option configures a Fetcher.
type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option { return func(f *Fetcher) { f.client = c } }
func WithStore(s storage.Store) Option { return func(f *Fetcher) { f.store = s } }
func WithPolicy(p retry.Policy) Option { return func(f *Fetcher) { f.policy = p } }
func WithRecorder(r metrics.Recorder) Option { return func(f *Fetcher) { f.recorder = r } }
func WithLogger(l *slog.Logger) Option { return func(f *Fetcher) { f.logger = l } }

// New creates a fetcher writing into buildDir.
func New(buildDir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		buildDir: buildDir,
		client:   &http.Client{Timeout: 30 * time.Second},
		store:    storage.NopStore{},
		policy:   retry.DefaultPolicy(),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewFromConfig builds a fetcher and its cache store from the remote configuration section.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Fetcher, error) {
	var store storage.Store
	switch cfg.Remote.Cache {
	case config.RemoteCacheRedis:
		store = storage.NewRedisStore(&redis.Options{Addr: cfg.Remote.RedisAddr}, "", cfg.Remote.CacheTTL)
	case config.RemoteCacheNone:
		store = storage.NopStore{}
	default:
		fs, err := storage.NewFSStore(cfg.Remote.CacheDir)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to open remote cache").
				WithContext("path", cfg.Remote.CacheDir).
				Build()
		}
		store = fs
	}
	base := []Option{
		WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		WithStore(store),
		WithPolicy(retry.FromConfig(cfg.Remote.Retry)),
	}
	return New(cfg.BuildDir, append(base, opts...)...), nil
}

// Close releases the cache store.
func (f *Fetcher) Close() error {
	return f.store.Close()
}

// Ensure makes sure url is present under the build directory and returns its rooted key.
func (f *Fetcher) Ensure(ctx context.Context, url string) (string, error) {
	key := Key(url)
	target := filepath.Join(f.buildDir, filepath.FromSlash(key))
	if exists(target) {
		f.recorder.IncRemoteFetch(metrics.FetchCached)
		return key, nil
	}

	_, err, _ := f.group.Do(url, func() (any, error) {
		if exists(target) {
			f.recorder.IncRemoteFetch(metrics.FetchCached)
			return nil, nil
		}
		data, source, err := f.load(ctx, url)
		if err != nil {
			f.recorder.IncRemoteFetch(metrics.FetchFailed)
			return nil, err
		}
		if err := writeAtomic(target, data); err != nil {
			f.recorder.IncRemoteFetch(metrics.FetchFailed)
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to write remote module").
				WithContext("url", url).
				WithContext("path", target).
				Build()
		}
		f.recorder.IncRemoteFetch(source)
		f.logger.Debug("Remote module ready", logfields.URL(url), logfields.Output(key), slog.String("source", string(source)))
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (f *Fetcher) load(ctx context.Context, url string) ([]byte, metrics.FetchSource, error) {
	skey := storage.Key(url)
	data, err := f.store.Get(ctx, skey)
	switch {
	case err == nil:
		return data, metrics.FetchStore, nil
	case !stderrors.Is(err, storage.ErrNotFound):
		f.logger.Warn("Remote cache lookup failed", logfields.URL(url), logfields.Error(err))
	}

	data, err = f.download(ctx, url)
	if err != nil {
		return nil, metrics.FetchFailed, err
	}
	if err := f.store.Put(ctx, skey, data); err != nil {
		f.logger.Warn("Remote cache store failed", logfields.URL(url), logfields.Error(err))
	}
	return data, metrics.FetchNetwork, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := f.policy.Do(ctx, func(attempt int) error {
		if attempt > 0 {
			f.logger.Info("Retrying remote fetch", logfields.URL(url), logfields.Attempt(attempt))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errors.WrapError(err, errors.CategoryModule, "invalid remote import").
				WithContext("url", url).
				Build()
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return errors.WrapError(err, errors.CategoryNetwork, "remote fetch failed").
				Retryable().
				WithContext("url", url).
				Build()
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return errors.NetworkError(fmt.Sprintf("remote returned %s", resp.Status)).
				WithContext("url", url).
				WithContext("status", resp.StatusCode).
				Build()
		case resp.StatusCode >= 300:
			return errors.ModuleError(fmt.Sprintf("remote returned %s", resp.Status)).
				WithContext("url", url).
				WithContext("status", resp.StatusCode).
				Build()
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return errors.WrapError(err, errors.CategoryNetwork, "failed reading remote body").
				Retryable().
				WithContext("url", url).
				Build()
		}
		return nil
	})
	return body, err
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fetch-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
