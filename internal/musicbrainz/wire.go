package musicbrainz

import "playresolver/internal/domain"

type wireArtistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
	Artist     struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

type wireRelease struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Status       string             `json:"status"`
	Country      string             `json:"country"`
	Date         string             `json:"date"`
	ArtistCredit []wireArtistCredit `json:"artist-credit"`
	ReleaseGroup struct {
		ID             string   `json:"id"`
		PrimaryType    string   `json:"primary-type"`
		SecondaryTypes []string `json:"secondary-types"`
	} `json:"release-group"`
}

type wireRecording struct {
	ID           string             `json:"id"`
	Score        int                `json:"score"`
	Title        string             `json:"title"`
	Length       int                `json:"length"`
	ISRCs        []string           `json:"isrcs"`
	ArtistCredit []wireArtistCredit `json:"artist-credit"`
	Releases     []wireRelease      `json:"releases"`
}

type wireSearchResponse struct {
	Count      *int            `json:"count"`
	Recordings []wireRecording `json:"recordings"`
}

func (w wireRecording) toDomain() domain.Recording {
	rec := domain.Recording{
		ID:           w.ID,
		Score:        w.Score,
		Title:        w.Title,
		Length:       w.Length,
		ISRCs:        append([]string(nil), w.ISRCs...),
		ArtistCredit: toCredits(w.ArtistCredit),
		Releases:     make([]domain.Release, 0, len(w.Releases)),
	}
	for _, rel := range w.Releases {
		rec.Releases = append(rec.Releases, domain.Release{
			ID:           rel.ID,
			Title:        rel.Title,
			Status:       rel.Status,
			Country:      rel.Country,
			Date:         rel.Date,
			ArtistCredit: toCredits(rel.ArtistCredit),
			ReleaseGroup: domain.ReleaseGroup{
				ID:             rel.ReleaseGroup.ID,
				PrimaryType:    rel.ReleaseGroup.PrimaryType,
				SecondaryTypes: append([]string(nil), rel.ReleaseGroup.SecondaryTypes...),
			},
		})
	}
	return rec
}

func toCredits(items []wireArtistCredit) []domain.ArtistCredit {
	if len(items) == 0 {
		return nil
	}
	credits := make([]domain.ArtistCredit, 0, len(items))
	for _, item := range items {
		credits = append(credits, domain.ArtistCredit{
			Name:       item.Name,
			JoinPhrase: item.JoinPhrase,
			ArtistID:   item.Artist.ID,
			ArtistName: item.Artist.Name,
		})
	}
	return credits
}
