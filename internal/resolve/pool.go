package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"playresolver/internal/domain"
	"playresolver/internal/musicbrainz"
)

const defaultAttemptTimeout = 30 * time.Second

// Host is one interchangeable metadata-service backend.
type Host interface {
	Name() string
	Info() domain.HostInfo
	TTL() time.Duration
	RequestTimeout() time.Duration
	SearchRecordings(ctx context.Context, query string, limit int) (musicbrainz.SearchResult, error)
}

// QueryFunc performs one request against the given host.
type QueryFunc func(ctx context.Context, host Host) (musicbrainz.SearchResult, error)

type ExecOptions struct {
	// Timeout bounds a single host attempt. Zero uses the host's own timeout.
	Timeout time.Duration
	// TTL overrides the host's cache lifetime when positive.
	TTL      time.Duration
	CacheKey string
}

// Pool spreads queries across hosts and fails over between them.
type Pool struct {
	hosts    []Host
	selector HostSelector
	cache    Cache
	logger   *slog.Logger
	now      func() time.Time

	healthMu sync.Mutex
	health   map[string]*hostHealth
}

type PoolOption func(*Pool)

func WithCache(cache Cache) PoolOption {
	return func(p *Pool) {
		p.cache = cache
	}
}

func WithSelector(selector HostSelector) PoolOption {
	return func(p *Pool) {
		if selector != nil {
			p.selector = selector
		}
	}
}

func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPool(hosts []Host, opts ...PoolOption) *Pool {
	registered := make([]Host, 0, len(hosts))
	for _, host := range hosts {
		if host != nil {
			registered = append(registered, host)
		}
	}
	pool := &Pool{
		hosts:    registered,
		selector: NewRoundRobin(),
		logger:   slog.Default(),
		now:      time.Now,
		health:   make(map[string]*hostHealth, len(registered)),
	}
	for _, opt := range opts {
		opt(pool)
	}
	return pool
}

func (p *Pool) Hosts() []domain.HostInfo {
	infos := make([]domain.HostInfo, 0, len(p.hosts))
	for _, host := range p.hosts {
		infos = append(infos, host.Info())
	}
	return infos
}

// Execute runs query against the pool. A cache hit returns without touching
// any host. Otherwise hosts are tried in round-robin order, each at most once;
// transport failures and timeouts move on to the next host while a malformed
// response is returned immediately.
func (p *Pool) Execute(ctx context.Context, query QueryFunc, opts ExecOptions) (musicbrainz.SearchResult, error) {
	if len(p.hosts) == 0 {
		return musicbrainz.SearchResult{}, domain.ErrNoHosts
	}
	if cached, ok := p.cacheLookup(ctx, opts.CacheKey); ok {
		return cached, nil
	}

	order := p.attemptOrder(p.now())
	var lastErr error
	for i, host := range order {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = host.RequestTimeout()
		}
		if timeout <= 0 {
			timeout = defaultAttemptTimeout
		}

		startedAt := p.now()
		result, err := p.attempt(ctx, host, query, timeout)
		p.recordHostResult(host.Name(), result.Query, err, p.now().Sub(startedAt), p.now())
		if err == nil {
			ttl := opts.TTL
			if ttl <= 0 {
				ttl = host.TTL()
			}
			p.cacheStore(ctx, opts.CacheKey, ttl, result)
			return result, nil
		}

		lastErr = err
		var upstream *domain.UpstreamError
		if errors.As(err, &upstream) && upstream.Malformed {
			return result, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		if remaining := len(order) - i - 1; remaining > 0 {
			p.logger.Warn("host query failed, trying next host",
				slog.String("host", host.Name()),
				slog.Int("remaining", remaining),
				slog.Bool("transient", isTransientError(err)),
				slog.String("error", err.Error()),
			)
		}
	}
	return musicbrainz.SearchResult{}, fmt.Errorf("%w: %w", domain.ErrAllHostsFailed, lastErr)
}

type attemptOutcome struct {
	result musicbrainz.SearchResult
	err    error
}

// attempt races query against timeout. The query keeps running in the
// background if it ignores its context; its late result is dropped.
func (p *Pool) attempt(ctx context.Context, host Host, query QueryFunc, timeout time.Duration) (musicbrainz.SearchResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan attemptOutcome, 1)
	go func() {
		result, err := query(attemptCtx, host)
		done <- attemptOutcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-attemptCtx.Done():
		return musicbrainz.SearchResult{Host: host.Name()}, &domain.UpstreamError{
			Host: host.Name(),
			Err:  fmt.Errorf("request timed out after %s: %w", timeout, attemptCtx.Err()),
		}
	}
}

// attemptOrder rotates the host list from the selector's pick and drops hosts
// that are currently blocked. When every host is blocked the full rotation is
// used instead.
func (p *Pool) attemptOrder(now time.Time) []Host {
	n := len(p.hosts)
	start := p.selector.Next(n)
	rotated := make([]Host, 0, n)
	for i := 0; i < n; i++ {
		rotated = append(rotated, p.hosts[(start+i)%n])
	}

	available := make([]Host, 0, n)
	for _, host := range rotated {
		if blocked, _ := p.isHostBlocked(host.Name(), now); !blocked {
			available = append(available, host)
		}
	}
	if len(available) == 0 {
		return rotated
	}
	return available
}
