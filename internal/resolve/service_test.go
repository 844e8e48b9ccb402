package resolve

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"playresolver/internal/cache"
	"playresolver/internal/domain"
)

func newTestService(hosts ...Host) *Service {
	return NewService(NewPool(hosts, WithSelector(fixedSelector{start: 0})))
}

func daftPunk(score int) domain.Recording {
	rel := release("rel-1", "Discovery", "Official", "Album", "FR")
	rel.ArtistCredit = []domain.ArtistCredit{credit("Daft Punk", "dp")}
	return recording("rec-1", score, "One More Time", []domain.ArtistCredit{credit("Daft Punk", "dp")}, rel)
}

func TestResolveSkipsWithoutNetwork(t *testing.T) {
	host := &fakeHost{name: "a", respond: always(daftPunk(100))}
	svc := newTestService(host)
	play := domain.Play{
		Artists: []string{"Daft Punk"},
		Track:   "One More Time",
		IDs:     domain.ExternalIDs{Recording: "r", Artists: []string{"a"}, Release: "rel"},
	}

	_, err := svc.Resolve(context.Background(), play, StageOverride{})
	if !errors.Is(err, domain.ErrSkipped) {
		t.Fatalf("expected ErrSkipped, got %v", err)
	}
	if host.calls.Load() != 0 {
		t.Fatal("a skipped play must not touch the network")
	}

	// Only the album id is missing, but album is not requested.
	play.IDs.Release = ""
	_, err = svc.Resolve(context.Background(), play, StageOverride{SearchWhenMissing: []string{"title"}})
	if !errors.Is(err, domain.ErrSkipped) || host.calls.Load() != 0 {
		t.Fatalf("expected skip when missing fields are not searched for, got %v", err)
	}

	force := true
	if _, err := svc.Resolve(context.Background(), play, StageOverride{ForceSearch: &force}); err != nil {
		t.Fatalf("forced search: %v", err)
	}
	if host.calls.Load() != 1 {
		t.Fatalf("forceSearch should query once, got %d", host.calls.Load())
	}
}

func TestResolveRoundTrip(t *testing.T) {
	host := &fakeHost{name: "a", respond: always(daftPunk(100))}
	svc := newTestService(host)

	result, err := svc.Resolve(context.Background(), domain.Play{Artists: []string{"daft punk"}, Track: "one more time"}, StageOverride{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Play.Track != "One More Time" || result.Play.Album != "Discovery" || !slices.Equal(result.Play.Artists, []string{"Daft Punk"}) {
		t.Fatalf("unexpected play %+v", result.Play)
	}
	if result.Stage != StageBasic || result.FreeText || result.Host != "a" {
		t.Fatalf("unexpected result metadata %+v", result)
	}
	if result.Original.Track != "one more time" {
		t.Fatalf("original play should be preserved, got %+v", result.Original)
	}
	if result.Similarity <= 0.9 {
		t.Fatalf("expected high similarity, got %v", result.Similarity)
	}
}

func TestResolveISRCFallsThroughToBasic(t *testing.T) {
	host := &fakeHost{name: "a", respond: func(query string) []domain.Recording {
		if strings.HasPrefix(query, "isrc:") {
			return nil
		}
		return []domain.Recording{daftPunk(100)}
	}}
	svc := newTestService(host)

	play := domain.Play{Artists: []string{"Daft Punk"}, Track: "One More Time", ISRC: "GBDUW0000059"}
	result, err := svc.Resolve(context.Background(), play, StageOverride{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := host.calls.Load(); got != 2 {
		t.Fatalf("expected exactly 2 network calls, got %d (%v)", got, host.seenQueries())
	}
	if result.Stage != StageBasic {
		t.Fatalf("expected basic stage, got %s", result.Stage)
	}
}

func TestResolveISRCMatchStopsCascade(t *testing.T) {
	host := &fakeHost{name: "a", respond: always(daftPunk(100))}
	svc := newTestService(host)

	result, err := svc.Resolve(context.Background(), domain.Play{Track: "x", ISRC: "GBDUW0000059"}, StageOverride{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Stage != StageISRC || host.calls.Load() != 1 {
		t.Fatalf("expected a single isrc query, got stage %s calls %d", result.Stage, host.calls.Load())
	}
}

func TestResolveCascadeOrder(t *testing.T) {
	host := &fakeHost{name: "a", respond: always()}
	svc := newTestService(host)
	freeText := true

	play := domain.Play{Artists: []string{"A feat. B"}, Track: "Song", Album: "LP"}
	_, err := svc.Resolve(context.Background(), play, StageOverride{FallbackFreeText: &freeText})
	var noMatch *domain.NoMatchError
	if !errors.As(err, &noMatch) || noMatch.Reason != domain.NoMatchNoCandidates {
		t.Fatalf("expected no_candidates, got %v", err)
	}

	want := []string{
		`recording:"Song" AND artist:"A feat. B" AND release:"LP"`,
		`recording:"Song" AND release:"LP"`,
		`recording:"Song" AND artist:"A"`,
		`Song A feat. B LP`,
	}
	if got := host.seenQueries(); !slices.Equal(got, want) {
		t.Fatalf("unexpected cascade:\n got  %q\n want %q", got, want)
	}
}

func TestResolveNaiveArtistFallback(t *testing.T) {
	host := &fakeHost{name: "a", respond: func(query string) []domain.Recording {
		if query == `recording:"Song" AND artist:"A"` {
			return []domain.Recording{recording("r", 100, "Song", []domain.ArtistCredit{credit("A", "a")})}
		}
		return nil
	}}
	svc := newTestService(host)
	naive := "naive"

	result, err := svc.Resolve(context.Background(), domain.Play{Artists: []string{"A, B"}, Track: "Song"}, StageOverride{FallbackArtistSearch: &naive})
	if err != nil {
		t.Fatalf("Resolve: %v (queries %q)", err, host.seenQueries())
	}
	if result.Stage != StageArtistNaive {
		t.Fatalf("expected naive artist stage, got %s", result.Stage)
	}
}

func TestResolveNativeArtistFallbackDropsCoArtists(t *testing.T) {
	host := &fakeHost{name: "a", respond: func(query string) []domain.Recording {
		if query == `recording:"Song" AND artist:"A"` {
			return []domain.Recording{recording("r", 100, "Song", []domain.ArtistCredit{credit("A", "a")})}
		}
		return nil
	}}
	svc := newTestService(host)

	result, err := svc.Resolve(context.Background(), domain.Play{Artists: []string{"A & B"}, Track: "Song"}, StageOverride{})
	if err != nil {
		t.Fatalf("Resolve: %v (queries %q)", err, host.seenQueries())
	}
	if result.Stage != StageArtistNative {
		t.Fatalf("expected native artist stage, got %s", result.Stage)
	}
	want := []string{
		`recording:"Song" AND artist:"A & B"`,
		`recording:"Song" AND artist:"A"`,
	}
	if got := host.seenQueries(); !slices.Equal(got, want) {
		t.Fatalf("unexpected cascade:\n got  %q\n want %q", got, want)
	}
}

func TestResolveTimeoutAppliesPerStage(t *testing.T) {
	host := &fakeHost{name: "a", delay: 60 * time.Millisecond, respond: func(query string) []domain.Recording {
		if query == `recording:"Song" AND artist:"A"` {
			return []domain.Recording{recording("r", 100, "Song", []domain.ArtistCredit{credit("A", "a")})}
		}
		return nil
	}}
	svc := NewService(NewPool([]Host{host}, WithSelector(fixedSelector{start: 0})), WithResolveTimeout(150*time.Millisecond))

	play := domain.Play{Artists: []string{"A & B"}, Track: "Song", Album: "LP"}
	result, err := svc.Resolve(context.Background(), play, StageOverride{})
	if err != nil {
		t.Fatalf("three stages each under the timeout must succeed: %v (queries %q)", err, host.seenQueries())
	}
	if result.Stage != StageArtistNative || len(host.seenQueries()) != 3 {
		t.Fatalf("expected a match on the third stage, got %s after %q", result.Stage, host.seenQueries())
	}
}

func TestResolveFreeTextFlagged(t *testing.T) {
	host := &fakeHost{name: "a", respond: func(query string) []domain.Recording {
		if !strings.Contains(query, ":") {
			return []domain.Recording{daftPunk(95)}
		}
		return nil
	}}
	svc := newTestService(host)
	freeText := true
	off := ""

	result, err := svc.Resolve(context.Background(), domain.Play{Artists: []string{"Daft Punk"}, Track: "One More Time"},
		StageOverride{FallbackFreeText: &freeText, FallbackArtistSearch: &off})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !result.FreeText || result.Stage != StageFreeText {
		t.Fatalf("expected freetext-derived result, got %+v", result)
	}
}

func TestResolveFilterRejectionStopsCascade(t *testing.T) {
	host := &fakeHost{name: "a", respond: always(daftPunk(89))}
	svc := newTestService(host)

	_, err := svc.Resolve(context.Background(), domain.Play{Artists: []string{"Daft Punk"}, Track: "One More Time", Album: "Discovery"}, StageOverride{})
	var noMatch *domain.NoMatchError
	if !errors.As(err, &noMatch) || noMatch.Reason != domain.NoMatchBelowThreshold {
		t.Fatalf("expected below_threshold, got %v", err)
	}
	if noMatch.Stage != string(StageBasic) || noMatch.BestScore != 89 {
		t.Fatalf("unexpected error details %+v", noMatch)
	}
	if host.calls.Load() != 1 {
		t.Fatalf("later stages must not run after candidates were found, got %d calls", host.calls.Load())
	}
}

func TestResolveClearsVariousArtists(t *testing.T) {
	rel := release("rel", "Hits", "Official", "Album", "US")
	rel.ArtistCredit = []domain.ArtistCredit{credit("Various Artists", "va")}
	host := &fakeHost{name: "a", respond: always(recording("rec", 100, "Song", []domain.ArtistCredit{credit("Artist", "a")}, rel))}
	svc := newTestService(host)

	result, err := svc.Resolve(context.Background(), domain.Play{Artists: []string{"Artist"}, Track: "Song"}, StageOverride{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(result.Play.AlbumArtists) != 0 {
		t.Fatalf("expected album artists to be cleared, got %v", result.Play.AlbumArtists)
	}
}

func TestResolveConfigErrorBeforeNetwork(t *testing.T) {
	host := &fakeHost{name: "a", respond: always(daftPunk(100))}
	svc := newTestService(host)
	bad := 500

	_, err := svc.Resolve(context.Background(), domain.Play{Track: "x"}, StageOverride{Score: &bad})
	if !domain.IsConfigError(err) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if host.calls.Load() != 0 {
		t.Fatal("invalid config must not reach the network")
	}
}

func TestResolveHostExhaustion(t *testing.T) {
	host := &fakeHost{name: "a", err: &domain.UpstreamError{Host: "a", StatusCode: 503}}
	svc := newTestService(host)

	_, err := svc.Resolve(context.Background(), domain.Play{Track: "x"}, StageOverride{})
	if !errors.Is(err, domain.ErrAllHostsFailed) {
		t.Fatalf("expected ErrAllHostsFailed, got %v", err)
	}
	if domain.IsNoMatch(err) {
		t.Fatal("host exhaustion is not a no-match")
	}
}

func TestResolveIdenticalCallsUseCache(t *testing.T) {
	host := &fakeHost{name: "a", respond: always(daftPunk(100))}
	svc := NewService(NewPool([]Host{host}, WithCache(cache.NewMemory())))
	play := domain.Play{Artists: []string{"Daft Punk"}, Track: "One More Time"}

	for i := 0; i < 2; i++ {
		if _, err := svc.Resolve(context.Background(), play, StageOverride{}); err != nil {
			t.Fatalf("Resolve %d: %v", i, err)
		}
	}
	if got := host.calls.Load(); got != 1 {
		t.Fatalf("expected one network request for two identical calls, got %d", got)
	}
}

func TestResolveBatch(t *testing.T) {
	host := &fakeHost{name: "a", respond: func(query string) []domain.Recording {
		if strings.Contains(query, "Unknown") {
			return nil
		}
		return []domain.Recording{daftPunk(100)}
	}}
	svc := NewService(NewPool([]Host{host}), WithBatchConcurrency(2))
	off := ""

	items := []BatchItem{
		{Play: domain.Play{Artists: []string{"Daft Punk"}, Track: "One More Time"}},
		{Play: domain.Play{Track: "Unknown"}, Override: StageOverride{FallbackArtistSearch: &off}},
		{Play: domain.Play{Track: "x", IDs: domain.ExternalIDs{Recording: "r", Artists: []string{"a"}, Release: "rel"}}},
	}
	results := svc.ResolveBatch(context.Background(), items)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Fatalf("result %d has index %d", i, r.Index)
		}
	}
	if results[0].Err != nil || results[0].Result.Play.Album != "Discovery" {
		t.Fatalf("first item should resolve: %+v", results[0])
	}
	if !domain.IsNoMatch(results[1].Err) {
		t.Fatalf("second item should be a no-match: %v", results[1].Err)
	}
	if !errors.Is(results[2].Err, domain.ErrSkipped) {
		t.Fatalf("third item should be skipped: %v", results[2].Err)
	}

	summary := Summarize(results)
	if summary != (BatchSummary{Matched: 1, Skipped: 1, NoMatch: 1}) {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestPlanStagesDropsDuplicates(t *testing.T) {
	// One artist without delimiters: the artist stage would repeat the basic query.
	plans := planStages(domain.Play{Artists: []string{"Solo"}, Track: "Song"}, DefaultStageConfig())
	if len(plans) != 1 || plans[0].stage != StageBasic {
		t.Fatalf("expected only the basic stage, got %+v", plans)
	}
}
