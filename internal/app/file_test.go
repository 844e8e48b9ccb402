package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"playresolver/internal/domain"
	"playresolver/internal/musicbrainz"
	"playresolver/internal/resolve"
)

const sampleResolverFile = `
[[apis]]
name = "primary"
url = "https://mb.example.org/ws/2"
apiKey = "k1"
contact = "ops@example.com"
rateLimit = 5
rateIntervalSeconds = 2
ttlSeconds = 600
requestTimeoutSeconds = 10

[[apis]]
url = "http://mirror.local:5000/ws/2"

[resolve]
score = 80
fallbackArtistSearch = "naive"
fallbackFreeText = true
searchWhenMissing = ["title", "album"]
releaseStatusAllow = ["Official"]
releaseCountryPriority = ["GB", "XW"]
timeoutSeconds = 20
`

func TestParseResolverFile(t *testing.T) {
	resolver, err := ParseResolverFile(strings.NewReader(sampleResolverFile), "agent/1")
	if err != nil {
		t.Fatalf("ParseResolverFile: %v", err)
	}
	if len(resolver.Hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(resolver.Hosts))
	}
	primary := resolver.Hosts[0]
	if primary.Name != "primary" || primary.APIKey != "k1" || primary.Contact != "ops@example.com" {
		t.Fatalf("unexpected primary %+v", primary)
	}
	if primary.RateLimit != 5 || primary.RateInterval != 2*time.Second || primary.TTL != 10*time.Minute || primary.RequestTimeout != 10*time.Second {
		t.Fatalf("unexpected primary limits %+v", primary)
	}
	if primary.UserAgent != "agent/1" {
		t.Fatalf("user agent not propagated: %q", primary.UserAgent)
	}
	if resolver.Hosts[1].URL != "http://mirror.local:5000/ws/2" {
		t.Fatalf("unexpected mirror %+v", resolver.Hosts[1])
	}

	d := resolver.Defaults
	if d.Score != 80 || d.FallbackArtistSearch != resolve.ArtistFallbackNaive || !d.FallbackFreeText {
		t.Fatalf("unexpected defaults %+v", d)
	}
	if len(d.SearchWhenMissing) != 2 || d.SearchWhenMissing[1] != domain.FieldAlbum {
		t.Fatalf("unexpected searchWhenMissing %v", d.SearchWhenMissing)
	}
	if len(d.ReleaseStatus.Allow) != 1 || d.ReleaseStatus.Allow[0] != "official" {
		t.Fatalf("unexpected status allow %v", d.ReleaseStatus.Allow)
	}
	if len(d.ReleaseCountry.Priority) != 2 || d.ReleaseCountry.Priority[0] != "gb" {
		t.Fatalf("unexpected country priority %v", d.ReleaseCountry.Priority)
	}
	if d.Timeout != 20*time.Second {
		t.Fatalf("unexpected timeout %s", d.Timeout)
	}
	if !d.FallbackAlbumSearch || !d.IgnoreVA || d.SearchLimit != 25 {
		t.Fatalf("untouched settings should keep defaults: %+v", d)
	}
}

func TestParseResolverFileWithoutAPIsUsesDefaultHost(t *testing.T) {
	resolver, err := ParseResolverFile(strings.NewReader("[resolve]\nscore = 95\n"), "")
	if err != nil {
		t.Fatalf("ParseResolverFile: %v", err)
	}
	if len(resolver.Hosts) != 1 || resolver.Hosts[0].URL != musicbrainz.DefaultBaseURL {
		t.Fatalf("expected default host, got %+v", resolver.Hosts)
	}
	if resolver.Defaults.Score != 95 {
		t.Fatalf("unexpected score %d", resolver.Defaults.Score)
	}
}

func TestParseResolverFileErrors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{name: "unknown key", doc: "[resolve]\nscroe = 80\n", field: "resolver"},
		{name: "syntax", doc: "[resolve\nscore = 80\n", field: "resolver"},
		{name: "score out of range", doc: "[resolve]\nscore = 101\n", field: "score"},
		{name: "bad fallback", doc: "[resolve]\nfallbackArtistSearch = \"fuzzy\"\n", field: "fallbackArtistSearch"},
		{name: "negative rate", doc: "[[apis]]\nurl = \"https://a.example\"\nrateLimit = -1\n", field: "apis[0].rateLimit"},
		{name: "bad scheme", doc: "[[apis]]\nurl = \"ftp://a.example\"\n", field: "apis[0].url"},
		{name: "duplicate", doc: "[[apis]]\nurl = \"https://a.example\"\n[[apis]]\nurl = \"https://a.example\"\n", field: "apis[1]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseResolverFile(strings.NewReader(tc.doc), "")
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tc.field {
				t.Fatalf("expected field %q, got %q (%v)", tc.field, cfgErr.Field, err)
			}
		})
	}
}

func TestLoadResolverFile(t *testing.T) {
	resolver, err := LoadResolverFile("", "agent/1")
	if err != nil {
		t.Fatalf("empty path: %v", err)
	}
	if len(resolver.Hosts) != 1 || resolver.Defaults.Score != resolve.DefaultScoreThreshold {
		t.Fatalf("expected default resolver, got %+v", resolver)
	}

	path := filepath.Join(t.TempDir(), "resolver.toml")
	if err := os.WriteFile(path, []byte(sampleResolverFile), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	resolver, err = LoadResolverFile(path, "agent/1")
	if err != nil {
		t.Fatalf("LoadResolverFile: %v", err)
	}
	if len(resolver.Hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(resolver.Hosts))
	}

	if _, err := LoadResolverFile(filepath.Join(t.TempDir(), "missing.toml"), ""); err == nil {
		t.Fatal("expected error for missing file")
	}
}
