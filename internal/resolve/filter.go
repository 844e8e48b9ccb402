package resolve

import (
	"slices"
	"strings"

	"playresolver/internal/domain"
)

// releaseAxis is one filterable release attribute. Every axis is treated as
// multi-valued so secondary types use the same code path as the rest.
type releaseAxis struct {
	name   string
	rules  func(StageConfig) AxisRules
	values func(domain.Release) []string
}

var releaseAxes = []releaseAxis{
	{
		name:   "releaseStatus",
		rules:  func(c StageConfig) AxisRules { return c.ReleaseStatus },
		values: func(r domain.Release) []string { return singleValue(r.Status) },
	},
	{
		name:   "releaseGroupPrimaryType",
		rules:  func(c StageConfig) AxisRules { return c.ReleaseGroupPrimaryType },
		values: func(r domain.Release) []string { return singleValue(r.ReleaseGroup.PrimaryType) },
	},
	{
		name:  "releaseGroupSecondaryType",
		rules: func(c StageConfig) AxisRules { return c.ReleaseGroupSecondaryType },
		values: func(r domain.Release) []string {
			out := make([]string, 0, len(r.ReleaseGroup.SecondaryTypes))
			for _, value := range r.ReleaseGroup.SecondaryTypes {
				out = append(out, singleValue(value)...)
			}
			return out
		},
	},
	{
		name:   "releaseCountry",
		rules:  func(c StageConfig) AxisRules { return c.ReleaseCountry },
		values: func(r domain.Release) []string { return singleValue(r.Country) },
	},
}

func singleValue(raw string) []string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return nil
	}
	return []string{value}
}

func intersects(values, list []string) bool {
	for _, value := range values {
		if slices.Contains(list, value) {
			return true
		}
	}
	return false
}

// filterReleases keeps releases matching the allow list, or, when no allow
// list is set, drops releases matching the deny list. The input is not
// modified.
func filterReleases(releases []domain.Release, values func(domain.Release) []string, allow, deny []string) []domain.Release {
	out := make([]domain.Release, 0, len(releases))
	for _, release := range releases {
		matched := values(release)
		switch {
		case len(allow) > 0:
			if intersects(matched, allow) {
				out = append(out, release)
			}
		case len(deny) > 0:
			if !intersects(matched, deny) {
				out = append(out, release)
			}
		default:
			out = append(out, release)
		}
	}
	return out
}

// releaseWeight sums, over every value, the value's weight in the priority
// list. The first entry weighs the most; values not listed weigh nothing.
func releaseWeight(values, priority []string) int {
	weight := 0
	for _, value := range values {
		if idx := slices.Index(priority, value); idx >= 0 {
			weight += len(priority) - idx
		}
	}
	return weight
}

// ApplyScoreGate drops recordings scoring below cfg.Score.
func ApplyScoreGate(recordings []domain.Recording, cfg StageConfig) ([]domain.Recording, error) {
	if len(recordings) == 0 {
		return nil, &domain.NoMatchError{Reason: domain.NoMatchNoCandidates, Threshold: cfg.Score}
	}
	best := 0
	kept := make([]domain.Recording, 0, len(recordings))
	for _, rec := range recordings {
		best = max(best, rec.Score)
		if rec.Score >= cfg.Score {
			kept = append(kept, rec)
		}
	}
	if len(kept) == 0 {
		return nil, &domain.NoMatchError{Reason: domain.NoMatchBelowThreshold, BestScore: best, Threshold: cfg.Score}
	}
	return kept, nil
}

// FilterReleases applies every configured axis in order. After each axis a
// recording whose releases were all removed is dropped; a recording that had
// no releases to begin with survives only when ReleaseAllowEmpty is set.
func FilterReleases(recordings []domain.Recording, cfg StageConfig) ([]domain.Recording, error) {
	current := recordings
	for _, axis := range releaseAxes {
		rules := axis.rules(cfg)
		if !rules.filters() {
			continue
		}
		next := make([]domain.Recording, 0, len(current))
		for _, rec := range current {
			if len(rec.Releases) == 0 {
				if cfg.ReleaseAllowEmpty {
					next = append(next, rec)
				}
				continue
			}
			releases := filterReleases(rec.Releases, axis.values, rules.Allow, rules.Deny)
			if len(releases) == 0 {
				continue
			}
			rec.Releases = releases
			next = append(next, rec)
		}
		if len(next) == 0 {
			return nil, &domain.NoMatchError{Reason: domain.NoMatchFiltered, Axis: axis.name, Threshold: cfg.Score}
		}
		current = next
	}
	return current, nil
}

// RankReleases reorders each recording's releases by priority weight,
// keeping the service order for ties. Recordings keep their relative order.
func RankReleases(recordings []domain.Recording, cfg StageConfig) []domain.Recording {
	ranked := false
	for _, axis := range releaseAxes {
		if len(axis.rules(cfg).Priority) > 0 {
			ranked = true
			break
		}
	}
	if !ranked {
		return recordings
	}

	out := make([]domain.Recording, len(recordings))
	for i, rec := range recordings {
		type weighted struct {
			release domain.Release
			weight  int
		}
		items := make([]weighted, len(rec.Releases))
		for j, release := range rec.Releases {
			total := 0
			for _, axis := range releaseAxes {
				total += releaseWeight(axis.values(release), axis.rules(cfg).Priority)
			}
			items[j] = weighted{release: release, weight: total}
		}
		slices.SortStableFunc(items, func(a, b weighted) int {
			return b.weight - a.weight
		})
		releases := make([]domain.Release, len(items))
		for j, item := range items {
			releases[j] = item.release
		}
		rec.Releases = releases
		out[i] = rec
	}
	return out
}

// SelectCandidate picks the highest scoring recording, first one on ties,
// and its top release. The release is nil when the recording has none.
func SelectCandidate(recordings []domain.Recording) (domain.Recording, *domain.Release, bool) {
	if len(recordings) == 0 {
		return domain.Recording{}, nil, false
	}
	best := 0
	for i := 1; i < len(recordings); i++ {
		if recordings[i].Score > recordings[best].Score {
			best = i
		}
	}
	rec := recordings[best]
	if len(rec.Releases) == 0 {
		return rec, nil, true
	}
	release := rec.Releases[0]
	return rec, &release, true
}

// FilterAndSelect runs the score gate, release filters, ranking and
// selection over one stage's candidates.
func FilterAndSelect(recordings []domain.Recording, cfg StageConfig) (domain.Recording, *domain.Release, error) {
	gated, err := ApplyScoreGate(recordings, cfg)
	if err != nil {
		return domain.Recording{}, nil, err
	}
	filtered, err := FilterReleases(gated, cfg)
	if err != nil {
		return domain.Recording{}, nil, err
	}
	rec, release, ok := SelectCandidate(RankReleases(filtered, cfg))
	if !ok {
		return domain.Recording{}, nil, &domain.NoMatchError{Reason: domain.NoMatchFiltered, Threshold: cfg.Score}
	}
	return rec, release, nil
}
