// Package musicbrainz talks to a single MusicBrainz-compatible search host.
package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"playresolver/internal/domain"
)

const (
	DefaultBaseURL        = "https://musicbrainz.org/ws/2"
	DefaultUserAgent      = "playresolver/1.0"
	DefaultTTL            = time.Hour
	DefaultRequestTimeout = 30 * time.Second
	defaultSearchLimit    = 25
	maxResponseBytes      = 4 << 20
)

type Config struct {
	Name           string
	URL            string
	APIKey         string
	Contact        string
	UserAgent      string
	RateLimit      int
	RateInterval   time.Duration
	TTL            time.Duration
	RequestTimeout time.Duration
	Client         *http.Client
}

// SearchResult is one page of recording candidates from a host.
type SearchResult struct {
	Host       string             `json:"host"`
	Query      string             `json:"query"`
	URL        string             `json:"url"`
	Count      int                `json:"count"`
	Recordings []domain.Recording `json:"recordings"`
	Cached     bool               `json:"-"`
}

type Client struct {
	name      string
	baseURL   string
	apiKey    string
	userAgent string
	limit     int
	interval  time.Duration
	ttl       time.Duration
	timeout   time.Duration
	limiter   *rate.Limiter
	http      *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = hostName(baseURL)
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 1
	}
	interval := cfg.RateInterval
	if interval <= 0 {
		interval = time.Second
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Client{
		name:      name,
		baseURL:   baseURL,
		apiKey:    strings.TrimSpace(cfg.APIKey),
		userAgent: buildUserAgent(cfg.UserAgent, cfg.Contact),
		limit:     limit,
		interval:  interval,
		ttl:       ttl,
		timeout:   timeout,
		limiter:   rate.NewLimiter(rate.Every(interval/time.Duration(limit)), limit),
		http:      httpClient,
	}
}

func (c *Client) Name() string                  { return c.name }
func (c *Client) TTL() time.Duration            { return c.ttl }
func (c *Client) RequestTimeout() time.Duration { return c.timeout }

func (c *Client) Info() domain.HostInfo {
	return domain.HostInfo{
		Name:      c.name,
		URL:       c.baseURL,
		RateLimit: c.limit,
		Interval:  c.interval,
		TTL:       c.ttl,
		Timeout:   c.timeout,
		HasAPIKey: c.apiKey != "",
	}
}

// SearchRecordings runs a recording search. The host's rate limit is waited
// on inside ctx, so a caller deadline also bounds time spent queued.
func (c *Client) SearchRecordings(ctx context.Context, query string, limit int) (SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	params := url.Values{
		"query": {query},
		"fmt":   {"json"},
		"limit": {strconv.Itoa(limit)},
	}
	reqURL := c.baseURL + "/recording?" + params.Encode()
	result := SearchResult{Host: c.name, Query: query, URL: reqURL}

	if err := c.limiter.Wait(ctx); err != nil {
		return result, &domain.UpstreamError{Host: c.name, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return result, &domain.UpstreamError{Host: c.name, Broken: true, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Token "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return result, &domain.UpstreamError{Host: c.name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		message := strings.TrimSpace(string(body))
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return result, &domain.UpstreamError{
			Host:       c.name,
			StatusCode: resp.StatusCode,
			Broken:     isBrokenStatus(resp.StatusCode),
			Err:        errors.New(message),
		}
	}

	var payload wireSearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return result, &domain.UpstreamError{Host: c.name, Malformed: true, Err: fmt.Errorf("decode recordings: %w", err)}
	}
	if payload.Recordings == nil && payload.Count == nil {
		return result, &domain.UpstreamError{Host: c.name, Malformed: true, Err: errors.New("response has no recordings array")}
	}

	result.Recordings = make([]domain.Recording, 0, len(payload.Recordings))
	for _, rec := range payload.Recordings {
		result.Recordings = append(result.Recordings, rec.toDomain())
	}
	result.Count = len(result.Recordings)
	if payload.Count != nil {
		result.Count = *payload.Count
	}
	return result, nil
}

func isBrokenStatus(code int) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusMethodNotAllowed:
		return true
	default:
		return false
	}
}

func buildUserAgent(agent, contact string) string {
	value := strings.TrimSpace(agent)
	if value == "" {
		value = DefaultUserAgent
	}
	if contact = strings.TrimSpace(contact); contact != "" {
		value += " ( " + contact + " )"
	}
	return value
}

func hostName(baseURL string) string {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return baseURL
	}
	return parsed.Host
}
