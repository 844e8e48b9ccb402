package resolve

import (
	"regexp"
	"strings"

	"playresolver/internal/domain"
)

var artistDelimiters = []string{",", "&", "/", `\`, ";", "|"}

// splitArtistNaive returns the text before the earliest delimiter.
func splitArtistNaive(artist string) string {
	cut := len(artist)
	for _, delim := range artistDelimiters {
		if idx := strings.Index(artist, delim); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return strings.TrimSpace(artist[:cut])
}

func splitArtists(artist string) []string {
	parts := strings.FieldsFunc(artist, func(r rune) bool {
		return strings.ContainsRune(`,&/\;|`, r)
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var (
	// "A feat. B", "A ft B", "A featuring B", "A vs. B", "A with B", optionally bracketed
	artistFeatClause = regexp.MustCompile(`(?i)\s*[\(\[]?\s*\b(?:feat\.?|ft\.?|featuring|vs\.?|with)\s+([^\)\]]+)[\)\]]?\s*$`)
	// titles only lose bracketed clauses so "Dancing with Myself" survives
	titleFeatClause = regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:feat\.?|ft\.?|featuring|with)\s+([^\)\]]+)[\)\]]`)
	titleBareFeat   = regexp.MustCompile(`(?i)\s+\b(?:feat\.?|ft\.?|featuring)\s+(.+)$`)
)

// ParsedCredits is the outcome of the aggressive artist/title parser.
type ParsedCredits struct {
	Title    string
	Primary  []string
	Featured []string
}

// ParseCredits strips featured-artist clauses from artist and title and
// splits delimiter-joined artists.
func ParseCredits(artist, title string) ParsedCredits {
	var parsed ParsedCredits

	if m := artistFeatClause.FindStringSubmatchIndex(artist); m != nil {
		parsed.Featured = append(parsed.Featured, splitArtists(artist[m[2]:m[3]])...)
		artist = artist[:m[0]]
	}
	parsed.Primary = splitArtists(artist)

	if m := titleFeatClause.FindStringSubmatchIndex(title); m != nil {
		parsed.Featured = append(parsed.Featured, splitArtists(title[m[2]:m[3]])...)
		title = title[:m[0]] + title[m[1]:]
	} else if m := titleBareFeat.FindStringSubmatchIndex(title); m != nil {
		parsed.Featured = append(parsed.Featured, splitArtists(title[m[2]:m[3]])...)
		title = title[:m[0]]
	}
	parsed.Title = strings.TrimSpace(collapseSpaces.ReplaceAllString(title, " "))
	return parsed
}

// nativeArtistPlay returns a cleaned copy of play for the native artist
// fallback: featured clauses and co-artists are dropped, leaving the first
// primary artist. ok is false when parsing changed nothing worth a new query.
func nativeArtistPlay(play domain.Play) (domain.Play, bool) {
	artists := presentArtists(play.Artists)
	if len(artists) != 1 {
		return domain.Play{}, false
	}
	parsed := ParseCredits(artists[0], play.Track)
	if len(parsed.Primary) == 0 {
		return domain.Play{}, false
	}
	cleaned := play.Clone()
	cleaned.Artists = parsed.Primary[:1]
	if parsed.Title != "" {
		cleaned.Track = parsed.Title
	}
	if cleaned.Track == play.Track && cleaned.Artists[0] == artists[0] {
		return domain.Play{}, false
	}
	return cleaned, true
}

func naiveArtistPlay(play domain.Play) (domain.Play, bool) {
	artists := presentArtists(play.Artists)
	if len(artists) != 1 {
		return domain.Play{}, false
	}
	first := splitArtistNaive(artists[0])
	if first == "" || first == artists[0] {
		return domain.Play{}, false
	}
	cleaned := play.Clone()
	cleaned.Artists = []string{first}
	return cleaned, true
}
