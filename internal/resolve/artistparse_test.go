package resolve

import (
	"slices"
	"testing"

	"playresolver/internal/domain"
)

func TestSplitArtistNaive(t *testing.T) {
	cases := map[string]string{
		"Simon & Garfunkel":    "Simon",
		"A, B & C":             "A",
		"Artist / Other":       "Artist",
		"Solo":                 "Solo",
		"First; Second | Last": "First",
	}
	for input, want := range cases {
		if got := splitArtistNaive(input); got != want {
			t.Fatalf("splitArtistNaive(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestParseCredits(t *testing.T) {
	cases := []struct {
		name     string
		artist   string
		title    string
		primary  []string
		featured []string
		outTitle string
	}{
		{
			name:     "feat in artist",
			artist:   "Calvin Harris feat. Rihanna",
			title:    "This Is What You Came For",
			primary:  []string{"Calvin Harris"},
			featured: []string{"Rihanna"},
			outTitle: "This Is What You Came For",
		},
		{
			name:     "bracketed feat in title",
			artist:   "Mark Ronson",
			title:    "Uptown Funk (feat. Bruno Mars)",
			primary:  []string{"Mark Ronson"},
			featured: []string{"Bruno Mars"},
			outTitle: "Uptown Funk",
		},
		{
			name:     "co-artists and bare ft",
			artist:   "A & B",
			title:    "Song ft. C, D",
			primary:  []string{"A", "B"},
			featured: []string{"C", "D"},
			outTitle: "Song",
		},
		{
			name:     "with inside title is kept",
			artist:   "Billy Idol",
			title:    "Dancing with Myself",
			primary:  []string{"Billy Idol"},
			outTitle: "Dancing with Myself",
		},
		{
			name:     "vs in artist",
			artist:   "Artist One vs. Artist Two",
			title:    "Clash",
			primary:  []string{"Artist One"},
			featured: []string{"Artist Two"},
			outTitle: "Clash",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseCredits(tc.artist, tc.title)
			if !slices.Equal(got.Primary, tc.primary) {
				t.Fatalf("primary: got %q want %q", got.Primary, tc.primary)
			}
			if !slices.Equal(got.Featured, tc.featured) {
				t.Fatalf("featured: got %q want %q", got.Featured, tc.featured)
			}
			if got.Title != tc.outTitle {
				t.Fatalf("title: got %q want %q", got.Title, tc.outTitle)
			}
		})
	}
}

func TestNativeArtistPlay(t *testing.T) {
	play := domain.Play{Artists: []string{"A feat. B"}, Track: "Song (with C)", Album: "LP"}
	cleaned, ok := nativeArtistPlay(play)
	if !ok {
		t.Fatal("expected a cleaned play")
	}
	if !slices.Equal(cleaned.Artists, []string{"A"}) || cleaned.Track != "Song" || cleaned.Album != "LP" {
		t.Fatalf("unexpected cleaned play %+v", cleaned)
	}
	if play.Artists[0] != "A feat. B" || play.Track != "Song (with C)" {
		t.Fatal("input play must not be modified")
	}

	cleaned, ok = nativeArtistPlay(domain.Play{Artists: []string{"Simon & Garfunkel feat. X"}, Track: "Song"})
	if !ok || !slices.Equal(cleaned.Artists, []string{"Simon"}) || cleaned.Track != "Song" {
		t.Fatalf("co-artists should be dropped, got %+v ok=%v", cleaned, ok)
	}

	if _, ok := nativeArtistPlay(domain.Play{Artists: []string{"Plain"}, Track: "Song"}); ok {
		t.Fatal("nothing to clean should report ok=false")
	}
	if _, ok := nativeArtistPlay(domain.Play{Artists: []string{"A", "B"}, Track: "Song"}); ok {
		t.Fatal("multiple artist strings are not parsed")
	}
}

func TestNaiveArtistPlay(t *testing.T) {
	cleaned, ok := naiveArtistPlay(domain.Play{Artists: []string{"A, B"}, Track: "Song"})
	if !ok || !slices.Equal(cleaned.Artists, []string{"A"}) {
		t.Fatalf("unexpected naive split: %+v ok=%v", cleaned, ok)
	}
	if _, ok := naiveArtistPlay(domain.Play{Artists: []string{"Solo"}}); ok {
		t.Fatal("no delimiter should report ok=false")
	}
}
