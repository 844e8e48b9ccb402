package resolve

import (
	"slices"
	"strings"

	"github.com/adrg/strutil"
	strmetrics "github.com/adrg/strutil/metrics"

	"playresolver/internal/domain"
)

const variousArtists = "Various Artists"

// Result is a successful resolution.
type Result struct {
	Play      domain.Play      `json:"play"`
	Original  domain.Play      `json:"original"`
	Recording domain.Recording `json:"recording"`
	Release   *domain.Release  `json:"release,omitempty"`
	Stage     Stage            `json:"stage"`
	// FreeText marks a match found by the unscoped fallback query.
	FreeText bool `json:"freeText"`
	// Similarity compares the original and resolved "artist title" strings,
	// 0 to 1.
	Similarity float64 `json:"similarity"`
	Query      string  `json:"query"`
	Host       string  `json:"host,omitempty"`
	Cached     bool    `json:"cached"`
}

// MapResult builds the enriched play from the selected recording and
// release. original is never modified.
func MapResult(original domain.Play, rec domain.Recording, release *domain.Release, cfg StageConfig) domain.Play {
	play := original.Clone()

	play.Track = rec.Title
	if names := domain.CreditNames(rec.ArtistCredit); len(names) > 0 {
		play.Artists = names
	}
	play.IDs.Recording = rec.ID
	if ids := domain.CreditIDs(rec.ArtistCredit); len(ids) > 0 {
		play.IDs.Artists = ids
	}
	if rec.Length > 0 {
		play.DurationMS = int64(rec.Length)
	}
	if play.ISRC == "" && len(rec.ISRCs) > 0 {
		play.ISRC = rec.ISRCs[0]
	}

	if release == nil {
		return play
	}
	play.Album = release.Title
	play.IDs.Release = release.ID
	play.IDs.ReleaseGroup = release.ReleaseGroup.ID

	play.AlbumArtists = nil
	play.IDs.AlbumArtists = nil
	if !sameCredits(rec.ArtistCredit, release.ArtistCredit) {
		albumArtists := domain.CreditNames(release.ArtistCredit)
		if cfg.IgnoreVA && len(albumArtists) == 1 && strings.EqualFold(albumArtists[0], variousArtists) {
			albumArtists = nil
		}
		if len(albumArtists) > 0 {
			play.AlbumArtists = albumArtists
			play.IDs.AlbumArtists = domain.CreditIDs(release.ArtistCredit)
		}
	}
	return play
}

// sameCredits compares credits as identity sets: artist ids when both sides
// carry them, lowercased names otherwise. An empty release credit counts as
// the same.
func sameCredits(recording, release []domain.ArtistCredit) bool {
	if len(release) == 0 {
		return true
	}
	left, right := domain.CreditIDs(recording), domain.CreditIDs(release)
	if len(left) == 0 || len(right) == 0 {
		left, right = lowerAll(domain.CreditNames(recording)), lowerAll(domain.CreditNames(release))
	}
	return sameSet(left, right)
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, value := range values {
		out[i] = strings.ToLower(value)
	}
	return out
}

func sameSet(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(slices.Compact(a), slices.Compact(b))
}

func similarity(original, resolved domain.Play) float64 {
	left := strings.ToLower(strings.Join(presentArtists(original.Artists), " ") + " " + original.Track)
	right := strings.ToLower(strings.Join(presentArtists(resolved.Artists), " ") + " " + resolved.Track)
	left, right = strings.TrimSpace(left), strings.TrimSpace(right)
	if left == "" || right == "" {
		return 0
	}
	return strutil.Similarity(left, right, strmetrics.NewJaroWinkler())
}
