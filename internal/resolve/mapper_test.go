package resolve

import (
	"slices"
	"testing"

	"playresolver/internal/domain"
)

func TestMapResultRoundTrip(t *testing.T) {
	rel := release("rel-1", "Discovery", "Official", "Album", "FR")
	rel.ArtistCredit = []domain.ArtistCredit{credit("Daft Punk", "dp")}
	rec := recording("rec-1", 100, "One More Time", []domain.ArtistCredit{credit("Daft Punk", "dp")}, rel)
	rec.Length = 320000
	rec.ISRCs = []string{"GBDUW0000059"}

	original := domain.Play{Artists: []string{"daft punk"}, Track: "one more time"}
	play := MapResult(original, rec, &rec.Releases[0], DefaultStageConfig())

	if play.Track != rec.Title || play.Album != rel.Title || !slices.Equal(play.Artists, []string{"Daft Punk"}) {
		t.Fatalf("mapped fields differ from source: %+v", play)
	}
	if len(play.AlbumArtists) != 0 {
		t.Fatalf("album artists equal to track artists must stay empty, got %v", play.AlbumArtists)
	}
	if play.IDs.Recording != "rec-1" || play.IDs.Release != "rel-1" || play.IDs.ReleaseGroup != "rg-rel-1" || !slices.Equal(play.IDs.Artists, []string{"dp"}) {
		t.Fatalf("identifiers not propagated: %+v", play.IDs)
	}
	if play.DurationMS != 320000 || play.ISRC != "GBDUW0000059" {
		t.Fatalf("duration/isrc not propagated: %d %s", play.DurationMS, play.ISRC)
	}
	if original.Track != "one more time" || original.IDs.Recording != "" {
		t.Fatal("original play must not be modified")
	}
}

func TestMapResultAlbumArtists(t *testing.T) {
	rel := release("rel", "Compilation", "Official", "Album", "US")
	rel.ArtistCredit = []domain.ArtistCredit{credit("Various Artists", "va")}
	rec := recording("rec", 100, "Song", []domain.ArtistCredit{credit("Artist", "a")}, rel)

	play := MapResult(domain.Play{}, rec, &rec.Releases[0], DefaultStageConfig())
	if len(play.AlbumArtists) != 0 || len(play.IDs.AlbumArtists) != 0 {
		t.Fatalf("Various Artists must be cleared with ignoreVA, got %v", play.AlbumArtists)
	}

	keep := DefaultStageConfig()
	keep.IgnoreVA = false
	play = MapResult(domain.Play{}, rec, &rec.Releases[0], keep)
	if !slices.Equal(play.AlbumArtists, []string{"Various Artists"}) {
		t.Fatalf("expected Various Artists to be kept, got %v", play.AlbumArtists)
	}

	rel.ArtistCredit = []domain.ArtistCredit{credit("Band", "b")}
	rec.Releases = []domain.Release{rel}
	play = MapResult(domain.Play{}, rec, &rec.Releases[0], DefaultStageConfig())
	if !slices.Equal(play.AlbumArtists, []string{"Band"}) || !slices.Equal(play.IDs.AlbumArtists, []string{"b"}) {
		t.Fatalf("diverging release credit should set album artists, got %v %v", play.AlbumArtists, play.IDs.AlbumArtists)
	}
}

func TestMapResultWithoutRelease(t *testing.T) {
	rec := recording("rec", 100, "Song", []domain.ArtistCredit{credit("Artist", "a")})
	play := MapResult(domain.Play{Album: "Kept"}, rec, nil, DefaultStageConfig())
	if play.Album != "Kept" || play.IDs.Release != "" {
		t.Fatalf("album must be left alone without a release: %+v", play)
	}
}

func TestSameCreditsFallsBackToNames(t *testing.T) {
	recCredits := []domain.ArtistCredit{{Name: "A"}, {Name: "B"}}
	relCredits := []domain.ArtistCredit{{Name: "b"}, {Name: "a"}}
	if !sameCredits(recCredits, relCredits) {
		t.Fatal("same names in a different order and case should match")
	}
	if sameCredits(recCredits, []domain.ArtistCredit{{Name: "A"}}) {
		t.Fatal("a subset is not the same credit")
	}
}

func TestSimilarity(t *testing.T) {
	a := domain.Play{Artists: []string{"Daft Punk"}, Track: "One More Time"}
	if got := similarity(a, a); got != 1 {
		t.Fatalf("identical plays should score 1, got %v", got)
	}
	b := domain.Play{Artists: []string{"Someone Else"}, Track: "Different"}
	if got := similarity(a, b); got >= 0.9 {
		t.Fatalf("unrelated plays scored too high: %v", got)
	}
	if got := similarity(domain.Play{}, a); got != 0 {
		t.Fatalf("empty play should score 0, got %v", got)
	}
}
