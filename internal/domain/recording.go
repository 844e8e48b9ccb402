package domain

// ArtistCredit is one entry of an ordered artist attribution.
type ArtistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinPhrase,omitempty"`
	ArtistID   string `json:"artistId,omitempty"`
	ArtistName string `json:"artistName,omitempty"`
}

type ReleaseGroup struct {
	ID             string   `json:"id,omitempty"`
	PrimaryType    string   `json:"primaryType,omitempty"`
	SecondaryTypes []string `json:"secondaryTypes,omitempty"`
}

type Release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Status       string         `json:"status,omitempty"`
	Country      string         `json:"country,omitempty"`
	Date         string         `json:"date,omitempty"`
	ReleaseGroup ReleaseGroup   `json:"releaseGroup"`
	ArtistCredit []ArtistCredit `json:"artistCredit,omitempty"`
}

// Recording is a search candidate returned by the metadata service.
type Recording struct {
	ID           string         `json:"id"`
	Score        int            `json:"score"`
	Title        string         `json:"title"`
	Length       int            `json:"length,omitempty"` // milliseconds
	ISRCs        []string       `json:"isrcs,omitempty"`
	ArtistCredit []ArtistCredit `json:"artistCredit,omitempty"`
	Releases     []Release      `json:"releases"`
}

// CreditNames returns the credited names in order.
func CreditNames(credits []ArtistCredit) []string {
	names := make([]string, 0, len(credits))
	for _, credit := range credits {
		name := credit.Name
		if name == "" {
			name = credit.ArtistName
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// CreditIDs returns the artist identifiers in credit order.
func CreditIDs(credits []ArtistCredit) []string {
	ids := make([]string, 0, len(credits))
	for _, credit := range credits {
		if credit.ArtistID != "" {
			ids = append(ids, credit.ArtistID)
		}
	}
	return ids
}

// CloneRecordings deep-copies a candidate list.
func CloneRecordings(recordings []Recording) []Recording {
	if recordings == nil {
		return nil
	}
	cloned := make([]Recording, len(recordings))
	for i, rec := range recordings {
		copied := rec
		copied.ISRCs = append([]string(nil), rec.ISRCs...)
		copied.ArtistCredit = append([]ArtistCredit(nil), rec.ArtistCredit...)
		copied.Releases = cloneReleases(rec.Releases)
		cloned[i] = copied
	}
	return cloned
}

func cloneReleases(releases []Release) []Release {
	if releases == nil {
		return nil
	}
	cloned := make([]Release, len(releases))
	for i, rel := range releases {
		copied := rel
		copied.ArtistCredit = append([]ArtistCredit(nil), rel.ArtistCredit...)
		copied.ReleaseGroup.SecondaryTypes = append([]string(nil), rel.ReleaseGroup.SecondaryTypes...)
		cloned[i] = copied
	}
	return cloned
}
