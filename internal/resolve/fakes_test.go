package resolve

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"playresolver/internal/domain"
	"playresolver/internal/musicbrainz"
)

type fakeHost struct {
	name    string
	delay   time.Duration
	err     error
	respond func(query string) []domain.Recording

	calls   atomic.Int32
	mu      sync.Mutex
	queries []string
}

func (h *fakeHost) Name() string                  { return h.name }
func (h *fakeHost) TTL() time.Duration            { return time.Hour }
func (h *fakeHost) RequestTimeout() time.Duration { return time.Second }

func (h *fakeHost) Info() domain.HostInfo {
	return domain.HostInfo{Name: h.name, URL: "http://" + h.name, RateLimit: 1, Interval: time.Second}
}

func (h *fakeHost) SearchRecordings(ctx context.Context, query string, limit int) (musicbrainz.SearchResult, error) {
	h.calls.Add(1)
	h.mu.Lock()
	h.queries = append(h.queries, query)
	h.mu.Unlock()

	result := musicbrainz.SearchResult{Host: h.name, Query: query, URL: "http://" + h.name + "/recording"}
	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}
	if h.err != nil {
		return result, h.err
	}
	if h.respond != nil {
		result.Recordings = h.respond(query)
	}
	result.Count = len(result.Recordings)
	return result, nil
}

func (h *fakeHost) seenQueries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.queries...)
}

type fixedSelector struct{ start int }

func (s fixedSelector) Next(n int) int { return s.start % n }

func always(recordings ...domain.Recording) func(string) []domain.Recording {
	return func(string) []domain.Recording { return domain.CloneRecordings(recordings) }
}

func credit(name, id string) domain.ArtistCredit {
	return domain.ArtistCredit{Name: name, ArtistID: id}
}

func release(id, title, status, primary, country string, secondary ...string) domain.Release {
	return domain.Release{
		ID:      id,
		Title:   title,
		Status:  status,
		Country: country,
		ReleaseGroup: domain.ReleaseGroup{
			ID:             "rg-" + id,
			PrimaryType:    primary,
			SecondaryTypes: secondary,
		},
	}
}

func recording(id string, score int, title string, artists []domain.ArtistCredit, releases ...domain.Release) domain.Recording {
	return domain.Recording{
		ID:           id,
		Score:        score,
		Title:        title,
		ArtistCredit: artists,
		Releases:     releases,
	}
}

func releaseIDs(rec domain.Recording) []string {
	ids := make([]string, 0, len(rec.Releases))
	for _, r := range rec.Releases {
		ids = append(ids, r.ID)
	}
	return ids
}
