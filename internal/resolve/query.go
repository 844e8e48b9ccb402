package resolve

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"playresolver/internal/domain"
)

// SearchOptions shape a single query.
type SearchOptions struct {
	// Using limits which play fields feed the query. Empty means all of
	// title, artists and album.
	Using            []domain.Field
	EscapeCharacters bool
	RemoveCharacters bool
	FreeText         bool
	// ISRCOnly searches by the play's ISRC and ignores every other field.
	ISRCOnly bool
	// Limit caps the candidates requested per query. Zero uses the
	// client default.
	Limit int
}

func (o SearchOptions) uses(field domain.Field) bool {
	if len(o.Using) == 0 {
		return true
	}
	for _, used := range o.Using {
		if used == field {
			return true
		}
	}
	return false
}

var luceneEscaper = strings.NewReplacer(
	`\`, `\\`,
	`&&`, `\&&`,
	`||`, `\||`,
	`+`, `\+`,
	`-`, `\-`,
	`!`, `\!`,
	`(`, `\(`,
	`)`, `\)`,
	`{`, `\{`,
	`}`, `\}`,
	`[`, `\[`,
	`]`, `\]`,
	`^`, `\^`,
	`"`, `\"`,
	`~`, `\~`,
	`*`, `\*`,
	`?`, `\?`,
	`:`, `\:`,
	`/`, `\/`,
)

// punctuation touching a letter or digit on either side
var attachedPunctuation = regexp.MustCompile(`([\p{L}\p{N}])[\p{P}\p{S}]+|[\p{P}\p{S}]+([\p{L}\p{N}])`)

var collapseSpaces = regexp.MustCompile(`\s+`)

func escapeLucene(value string) string {
	return luceneEscaper.Replace(value)
}

func removePunctuation(value string) string {
	// A single pass can leave punctuation that sat between two stripped runs.
	for i := 0; i < 3; i++ {
		next := attachedPunctuation.ReplaceAllString(value, "$1$2")
		if next == value {
			break
		}
		value = next
	}
	return value
}

func cleanValue(value string, opts SearchOptions) string {
	value = strings.TrimSpace(norm.NFC.String(value))
	if opts.RemoveCharacters {
		value = removePunctuation(value)
	}
	if opts.EscapeCharacters {
		value = escapeLucene(value)
	}
	return collapseSpaces.ReplaceAllString(value, " ")
}

func presentArtists(artists []string) []string {
	out := make([]string, 0, len(artists))
	for _, artist := range artists {
		if trimmed := strings.TrimSpace(artist); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// BuildQuery renders play into a search query string. It returns "" when
// none of the selected fields carry a value.
func BuildQuery(play domain.Play, opts SearchOptions) string {
	if opts.ISRCOnly {
		isrc := strings.ToUpper(strings.TrimSpace(play.ISRC))
		if isrc == "" {
			return ""
		}
		return "isrc:" + escapeLucene(isrc)
	}
	if opts.FreeText {
		return buildFreeText(play, opts)
	}

	clauses := make([]string, 0, 3)
	if opts.uses(domain.FieldTitle) {
		if title := cleanValue(play.Track, opts); title != "" {
			clauses = append(clauses, `recording:"`+title+`"`)
		}
	}
	if opts.uses(domain.FieldArtists) {
		if clause := artistClause(presentArtists(play.Artists), opts); clause != "" {
			clauses = append(clauses, clause)
		}
	}
	if opts.uses(domain.FieldAlbum) {
		if album := cleanValue(play.Album, opts); album != "" {
			clauses = append(clauses, `release:"`+album+`"`)
		}
	}
	return strings.Join(clauses, " AND ")
}

// artistClause matches either every credited artist or any one of them, so a
// play listing "A, B" still finds a recording credited only to A or to "B & A".
func artistClause(artists []string, opts SearchOptions) string {
	terms := make([]string, 0, len(artists))
	for _, artist := range artists {
		if cleaned := cleanValue(artist, opts); cleaned != "" {
			terms = append(terms, `artist:"`+cleaned+`"`)
		}
	}
	switch len(terms) {
	case 0:
		return ""
	case 1:
		return terms[0]
	default:
		all := "(" + strings.Join(terms, " AND ") + ")"
		either := "(" + strings.Join(terms, " OR ") + ")"
		return "(" + all + " OR " + either + ")"
	}
}

func buildFreeText(play domain.Play, opts SearchOptions) string {
	parts := make([]string, 0, len(play.Artists)+2)
	if opts.uses(domain.FieldTitle) {
		parts = append(parts, cleanValue(play.Track, opts))
	}
	if opts.uses(domain.FieldArtists) {
		for _, artist := range presentArtists(play.Artists) {
			parts = append(parts, cleanValue(artist, opts))
		}
	}
	if opts.uses(domain.FieldAlbum) {
		parts = append(parts, cleanValue(play.Album, opts))
	}
	kept := parts[:0]
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " ")
}
