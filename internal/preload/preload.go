// Package preload warms card images before a reveal so the flip never shows
// a blank face.
package preload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome for one URL.
type Result struct {
	URL string
	Err error
}

// OK reports whether the URL loaded.
func (r Result) OK() bool { return r.Err == nil }

// Preloader fetches images with bounded concurrency.
type Preloader struct {
	hc      *http.Client
	workers int
	timeout time.Duration
	surface bool
	log     *zap.Logger
}

// Option configures a Preloader.
type Option func(*Preloader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(p *Preloader) { p.hc = hc } }

// WithWorkers bounds concurrent loads.
func WithWorkers(n int) Option { return func(p *Preloader) { p.workers = n } }

// WithTimeout bounds each individual load.
func WithTimeout(d time.Duration) Option { return func(p *Preloader) { p.timeout = d } }

// SurfaceErrors makes Preload return the joined load errors.
func SurfaceErrors() Option { return func(p *Preloader) { p.surface = true } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(p *Preloader) { p.log = l } }

// New returns a Preloader with 6 workers and a 10s per-image timeout.
func New(opts ...Option) *Preloader {
	p := &Preloader{
		hc:      http.DefaultClient,
		workers: 6,
		timeout: 10 * time.Second,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = 1
	}
	return p
}

// ErrEmptyURL is the result of an empty entry in the input.
var ErrEmptyURL = errors.New("preload: empty url")

// Preload loads every distinct non-empty URL once and returns one Result per
// input URL, in input order. Duplicates share the outcome of the first load;
// empty entries fail with ErrEmptyURL without a request. Failures are logged
// and, unless SurfaceErrors is set, not returned. A load never aborts the
// others.
func (p *Preloader) Preload(ctx context.Context, urls []string) ([]Result, error) {
	first := make(map[string]int, len(urls))
	var distinct []string
	for _, u := range urls {
		if _, ok := first[u]; u == "" || ok {
			continue
		}
		first[u] = len(distinct)
		distinct = append(distinct, u)
	}

	loaded := make([]error, len(distinct))
	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	for i, u := range distinct {
		g.Go(func() error {
			loaded[i] = p.load(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	results := make([]Result, len(urls))
	var errs []error
	for i, u := range urls {
		results[i].URL = u
		if u == "" {
			results[i].Err = ErrEmptyURL
		} else {
			results[i].Err = loaded[first[u]]
		}
	}
	for i, err := range loaded {
		if err != nil {
			p.log.Debug("preload failed", zap.String("url", distinct[i]), zap.Error(err))
			errs = append(errs, err)
		}
	}
	if p.surface && len(errs) > 0 {
		return results, fmt.Errorf("preload: %w", errors.Join(errs...))
	}
	return results, nil
}

func (p *Preloader) load(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", url, err)
	}
	resp, err := p.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: HTTP %d", url, resp.StatusCode)
	}
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("%s: %w", url, err)
	}
	return nil
}
