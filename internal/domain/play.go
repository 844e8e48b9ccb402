package domain

// Field names a piece of play metadata that can be resolved.
type Field string

const (
	FieldTitle   Field = "title"
	FieldArtists Field = "artists"
	FieldAlbum   Field = "album"
)

// Fields lists every resolvable field in canonical order.
var Fields = []Field{FieldTitle, FieldArtists, FieldAlbum}

// ParseField validates a raw field name. "track" and "artist" are accepted
// as aliases.
func ParseField(raw string) (Field, bool) {
	switch raw {
	case "title", "track":
		return FieldTitle, true
	case "artists", "artist":
		return FieldArtists, true
	case "album":
		return FieldAlbum, true
	default:
		return "", false
	}
}

// ExternalIDs holds metadata-service identifiers already known for a play.
type ExternalIDs struct {
	Recording    string   `json:"recording,omitempty"`
	Artists      []string `json:"artists,omitempty"`
	Release      string   `json:"release,omitempty"`
	ReleaseGroup string   `json:"releaseGroup,omitempty"`
	AlbumArtists []string `json:"albumArtists,omitempty"`
}

// Play is a single observed listen reported by a media source.
type Play struct {
	Artists      []string    `json:"artists,omitempty"`
	Track        string      `json:"track,omitempty"`
	Album        string      `json:"album,omitempty"`
	AlbumArtists []string    `json:"albumArtists,omitempty"`
	DurationMS   int64       `json:"durationMs,omitempty"`
	ISRC         string      `json:"isrc,omitempty"`
	IDs          ExternalIDs `json:"ids"`
}

// Clone returns a deep copy so derived plays never share slices with the input.
func (p Play) Clone() Play {
	cloned := p
	cloned.Artists = append([]string(nil), p.Artists...)
	cloned.AlbumArtists = append([]string(nil), p.AlbumArtists...)
	cloned.IDs.Artists = append([]string(nil), p.IDs.Artists...)
	cloned.IDs.AlbumArtists = append([]string(nil), p.IDs.AlbumArtists...)
	return cloned
}

// MissingFields reports which fields have no external identifier yet.
func (p Play) MissingFields() []Field {
	missing := make([]Field, 0, len(Fields))
	if p.IDs.Recording == "" {
		missing = append(missing, FieldTitle)
	}
	if len(p.IDs.Artists) == 0 {
		missing = append(missing, FieldArtists)
	}
	if p.IDs.Release == "" {
		missing = append(missing, FieldAlbum)
	}
	return missing
}

// Has reports whether the play carries a non-empty value for field.
func (p Play) Has(field Field) bool {
	switch field {
	case FieldTitle:
		return p.Track != ""
	case FieldAlbum:
		return p.Album != ""
	case FieldArtists:
		for _, artist := range p.Artists {
			if artist != "" {
				return true
			}
		}
	}
	return false
}
