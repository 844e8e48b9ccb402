package resolve

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"playresolver/internal/domain"
	"playresolver/internal/metrics"
	"playresolver/internal/musicbrainz"
)

const (
	cacheKeyPrefix   = "recording:"
	cacheQuerySuffix = ":query"
	cacheURLSuffix   = ":url"
	defaultCacheTTL  = time.Hour
	cacheIOTimeout   = 2 * time.Second
)

// Cache is the key/value store search pages are kept in. Implementations may
// be process-local or shared between processes.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
}

type cacheKeyInput struct {
	Artists  []string `json:"a,omitempty"`
	Track    string   `json:"t,omitempty"`
	Album    string   `json:"r,omitempty"`
	ISRC     string   `json:"i,omitempty"`
	Using    []string `json:"u,omitempty"`
	Escape   bool     `json:"e,omitempty"`
	Remove   bool     `json:"x,omitempty"`
	FreeText bool     `json:"f,omitempty"`
	ISRCOnly bool     `json:"io,omitempty"`
	Limit    int      `json:"l,omitempty"`
}

// buildCacheKey hashes the parts of a play that feed a query together with
// the options that shape it. Field order in opts.Using does not matter.
func buildCacheKey(play domain.Play, opts SearchOptions) string {
	using := make([]string, 0, len(opts.Using))
	for _, field := range opts.Using {
		using = append(using, string(field))
	}
	sort.Strings(using)

	input := cacheKeyInput{
		Using:    using,
		Escape:   opts.EscapeCharacters,
		Remove:   opts.RemoveCharacters,
		FreeText: opts.FreeText,
		ISRCOnly: opts.ISRCOnly,
		Limit:    opts.Limit,
	}
	if opts.ISRCOnly {
		input.ISRC = play.ISRC
	} else {
		input.Artists = play.Artists
		input.Track = play.Track
		input.Album = play.Album
	}
	data, _ := json.Marshal(input)
	return cacheKeyPrefix + strconv.FormatUint(xxhash.Sum64(data), 16)
}

func (p *Pool) cacheLookup(ctx context.Context, key string) (musicbrainz.SearchResult, bool) {
	if p.cache == nil || key == "" {
		return musicbrainz.SearchResult{}, false
	}
	lookupCtx, cancel := context.WithTimeout(ctx, cacheIOTimeout)
	defer cancel()

	data, ok, err := p.cache.Get(lookupCtx, key)
	if err != nil {
		p.logger.Warn("cache read failed", slog.String("cacheKey", key), slog.String("error", err.Error()))
		metrics.CacheMissesTotal.Inc()
		return musicbrainz.SearchResult{}, false
	}
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return musicbrainz.SearchResult{}, false
	}
	var result musicbrainz.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		p.logger.Warn("cache entry undecodable", slog.String("cacheKey", key), slog.String("error", err.Error()))
		metrics.CacheMissesTotal.Inc()
		return musicbrainz.SearchResult{}, false
	}
	metrics.CacheHitsTotal.Inc()
	result.Cached = true
	if p.logger.Enabled(ctx, slog.LevelDebug) {
		if remaining, found, err := p.cache.TTL(lookupCtx, key); err == nil && found {
			p.logger.Debug("cache hit", slog.String("cacheKey", key), slog.Duration("expiresIn", remaining))
		}
	}
	return result, true
}

// cacheStore writes the page plus the rendered query and URL under suffixed
// keys. The auxiliary keys are only read by people troubleshooting.
func (p *Pool) cacheStore(ctx context.Context, key string, ttl time.Duration, result musicbrainz.SearchResult) {
	if p.cache == nil || key == "" {
		return
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheIOTimeout)
	defer cancel()

	for _, entry := range []struct {
		key   string
		value []byte
	}{
		{key: key, value: data},
		{key: key + cacheQuerySuffix, value: []byte(result.Query)},
		{key: key + cacheURLSuffix, value: []byte(result.URL)},
	} {
		if err := p.cache.Set(storeCtx, entry.key, entry.value, ttl); err != nil {
			p.logger.Warn("cache write failed", slog.String("cacheKey", entry.key), slog.String("error", err.Error()))
			return
		}
	}
}
