// Package artifact resolves model and cascade references to local files.
//
// A reference is a local path, an http(s) URL or an s3://bucket/key URI.
// Remote references are downloaded once into a cache directory with
// Fibonacci backoff retries; later runs reuse the cached copy.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/teslashibe/go-eyestate/internal/httpc"
	"github.com/teslashibe/go-eyestate/internal/log"
	"github.com/teslashibe/go-eyestate/pkg/eyestate"
	"golang.org/x/sync/errgroup"
)

// Kind classifies a reference.
type Kind string

const (
	KindLocal Kind = "local"
	KindHTTP  Kind = "http"
	KindS3    Kind = "s3"
)

// Classify returns the kind of ref.
func Classify(ref string) Kind {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return KindHTTP
	case strings.HasPrefix(ref, "s3://"):
		return KindS3
	default:
		return KindLocal
	}
}

// Config holds fetcher configuration.
type Config struct {
	CacheDir   string        // Where remote artifacts are stored
	MaxRetries uint64        // Retries after the first attempt (default 5)
	Backoff    time.Duration // Base Fibonacci backoff (default 1s)
	Parallel   int           // Concurrent downloads in ResolveAll (default 4)
	S3         S3Config
}

// DefaultConfig returns 5 retries from a 1s Fibonacci base.
func DefaultConfig(cacheDir string) Config {
	return Config{
		CacheDir:   cacheDir,
		MaxRetries: 5,
		Backoff:    time.Second,
		Parallel:   4,
	}
}

// Fetcher resolves references.
type Fetcher struct {
	config Config
	http   *http.Client
	s3     ObjectGetter
	s3Once sync.Once
	logger *slog.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the shared HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.http = c }
}

// WithS3 replaces the S3 client built from Config.S3.
func WithS3(g ObjectGetter) Option {
	return func(f *Fetcher) { f.s3 = g }
}

// NewFetcher returns a fetcher. The S3 client is created lazily on first
// use unless one is supplied with WithS3.
func NewFetcher(cfg Config, opts ...Option) *Fetcher {
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = 4
	}
	f := &Fetcher{
		config: cfg,
		http:   httpc.Client,
		logger: log.Component("artifact"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Resolve returns a local path for ref. Local paths must exist. Remote
// references are served from the cache or downloaded into it. Failures wrap
// eyestate.ErrModelLoad.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	kind := Classify(ref)
	if kind == KindLocal {
		if _, err := os.Stat(ref); err != nil {
			return "", fmt.Errorf("%w: %v", eyestate.ErrModelLoad, err)
		}
		return ref, nil
	}

	dst := f.CachePath(ref)
	if info, err := os.Stat(dst); err == nil && info.Size() > 0 {
		f.logger.Debug("cache hit", "ref", ref, "path", dst)
		return dst, nil
	}

	if err := os.MkdirAll(f.config.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: cache dir: %v", eyestate.ErrModelLoad, err)
	}

	start := time.Now()
	attempt := 0
	b := retry.WithMaxRetries(f.config.MaxRetries, retry.NewFibonacci(f.config.Backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := f.download(ctx, kind, ref, dst)
		if err != nil && Retryable(err) {
			f.logger.Warn("download failed, retrying", "ref", ref, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: fetch %s: %v", eyestate.ErrModelLoad, ref, err)
	}

	f.logger.Info("artifact fetched", "ref", ref, "path", dst, "attempts", attempt, "elapsed", time.Since(start))
	return dst, nil
}

// ResolveAll resolves refs concurrently. The result is in input order.
func (f *Fetcher) ResolveAll(ctx context.Context, refs ...string) ([]string, error) {
	paths := make([]string, len(refs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.config.Parallel)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			p, err := f.Resolve(ctx, ref)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// CachePath is where ref is stored: a short hash of the reference followed
// by its base name, so different URLs with the same file name do not clash.
func (f *Fetcher) CachePath(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	name := path.Base(ref)
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		name = path.Base(u.Path)
	}
	if name == "." || name == "/" || name == "" {
		name = "artifact"
	}
	return filepath.Join(f.config.CacheDir, hex.EncodeToString(sum[:6])+"-"+name)
}

func (f *Fetcher) download(ctx context.Context, kind Kind, ref, dst string) error {
	var (
		body io.ReadCloser
		err  error
	)
	switch kind {
	case KindHTTP:
		var resp *http.Response
		resp, err = httpc.Get(ctx, f.http, ref)
		if resp != nil {
			body = resp.Body
		}
	case KindS3:
		body, err = f.openS3(ctx, ref)
	default:
		return fmt.Errorf("cannot download %s reference", kind)
	}
	if err != nil {
		return err
	}
	defer body.Close()

	return writeAtomic(dst, body)
}

// writeAtomic streams r into a temp file next to dst and renames it into
// place, so a crashed download never leaves a truncated cache entry.
func writeAtomic(dst string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("empty artifact")
	}
	return os.Rename(tmp.Name(), dst)
}

// Retryable reports whether a failed download may succeed on another try.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *httpc.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	if errors.Is(err, errNotFound) || errors.Is(err, os.ErrPermission) {
		return false
	}
	return true
}
