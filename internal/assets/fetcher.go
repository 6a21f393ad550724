package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPattern is the conventional clip path for a token, relative to the
// asset base.
const DefaultPattern = "kana/%s.wav"

// Clips larger than this are rejected; a kana clip is a few hundred KB.
const maxClipSize = 8 * 1024 * 1024

var (
	// ErrAssetNotFound is returned when no clip exists for a token.
	ErrAssetNotFound = errors.New("static asset not found")

	// ErrNotKana is returned when asked to fetch a token outside the alphabet.
	ErrNotKana = errors.New("token is not in the kana alphabet")
)

// Fetcher retrieves the pre-recorded clip for a kana token.
type Fetcher interface {
	Fetch(ctx context.Context, token string) ([]byte, error)
}

// Options tune a fetcher. Zero values pick defaults.
type Options struct {
	Pattern           string        // fmt pattern with one %s for the token
	RequestsPerSecond float64       // HTTP only; 0 disables pacing
	Timeout           time.Duration // HTTP only; per request
}

func (o Options) pattern() string {
	if o.Pattern == "" {
		return DefaultPattern
	}
	return o.Pattern
}

// NewFetcher picks a fetcher for base: http and https URLs get an
// HTTPFetcher, file URLs and plain paths a DirFetcher.
func NewFetcher(base string, opts Options) (Fetcher, error) {
	if base == "" {
		return nil, errors.New("no asset base configured")
	}

	u, err := url.Parse(base)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			return NewHTTPFetcher(base, opts)
		case "file":
			return NewDirFetcher(u.Path, opts), nil
		}
	}
	return NewDirFetcher(base, opts), nil
}

// DirFetcher reads clips from a local directory tree.
type DirFetcher struct {
	root    string
	pattern string
}

// NewDirFetcher serves clips from root.
func NewDirFetcher(root string, opts Options) *DirFetcher {
	return &DirFetcher{root: root, pattern: opts.pattern()}
}

func (f *DirFetcher) Fetch(ctx context.Context, token string) ([]byte, error) {
	if !IsKana(token) {
		return nil, fmt.Errorf("%w: %q", ErrNotKana, token)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := filepath.Join(f.root, filepath.FromSlash(fmt.Sprintf(f.pattern, token)))
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, p)
		}
		return nil, fmt.Errorf("read clip %s: %w", p, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrAssetNotFound, p)
	}
	return data, nil
}

// HTTPFetcher downloads clips from a base URL, paced by a token bucket so a
// full-alphabet preload does not hammer the asset server.
type HTTPFetcher struct {
	base    *url.URL
	pattern string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPFetcher serves clips from base.
func NewHTTPFetcher(base string, opts Options) (*HTTPFetcher, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid asset base %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s is not a supported protocol", u.Scheme)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &HTTPFetcher{
		base:    u,
		pattern: opts.pattern(),
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}, nil
}

// URL returns the clip location for token.
func (f *HTTPFetcher) URL(token string) string {
	u := *f.base
	u.Path = path.Join(strings.TrimSuffix(u.Path, "/"), fmt.Sprintf(f.pattern, url.PathEscape(token)))
	return u.String()
}

func (f *HTTPFetcher) Fetch(ctx context.Context, token string) ([]byte, error) {
	if !IsKana(token) {
		return nil, fmt.Errorf("%w: %q", ErrNotKana, token)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	clipURL := f.URL(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, clipURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to get url: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, clipURL)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("HTTP status %d for %s", resp.StatusCode, clipURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxClipSize+1))
	if err != nil {
		return nil, fmt.Errorf("read clip body: %w", err)
	}
	if len(data) > maxClipSize {
		return nil, fmt.Errorf("clip %s exceeds %d bytes", clipURL, maxClipSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s returned an empty body", ErrAssetNotFound, clipURL)
	}
	return data, nil
}
