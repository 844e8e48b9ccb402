package resolve

import (
	"strconv"
	"strings"
	"time"

	"playresolver/internal/domain"
)

type ArtistFallback string

const (
	ArtistFallbackOff    ArtistFallback = ""
	ArtistFallbackNaive  ArtistFallback = "naive"
	ArtistFallbackNative ArtistFallback = "native"
)

const (
	DefaultScoreThreshold = 90
	defaultSearchLimit    = 25
	maxSearchLimit        = 100
)

// AxisRules configures one release attribute. Values are compared
// case-insensitively and are stored lowercased.
type AxisRules struct {
	Allow    []string `json:"allow,omitempty"`
	Deny     []string `json:"deny,omitempty"`
	Priority []string `json:"priority,omitempty"`
}

func (a AxisRules) filters() bool { return len(a.Allow) > 0 || len(a.Deny) > 0 }

// StageConfig is the fully-resolved configuration for one resolution call.
// Build it with DefaultStageConfig and Merge; nothing in it is optional.
type StageConfig struct {
	SearchWhenMissing    []domain.Field `json:"searchWhenMissing"`
	ForceSearch          bool           `json:"forceSearch"`
	Score                int            `json:"score"`
	FallbackArtistSearch ArtistFallback `json:"fallbackArtistSearch"`
	FallbackFreeText     bool           `json:"fallbackFreeText"`
	FallbackAlbumSearch  bool           `json:"fallbackAlbumSearch"`
	IgnoreVA             bool           `json:"ignoreVA"`
	ReleaseAllowEmpty    bool           `json:"releaseAllowEmpty"`
	EscapeCharacters     bool           `json:"escapeCharacters"`
	RemoveCharacters     bool           `json:"removeCharacters"`
	SearchLimit          int            `json:"searchLimit"`
	Timeout              time.Duration  `json:"timeout"`
	TTL                  time.Duration  `json:"ttl"`

	ReleaseStatus             AxisRules `json:"releaseStatus"`
	ReleaseGroupPrimaryType   AxisRules `json:"releaseGroupPrimaryType"`
	ReleaseGroupSecondaryType AxisRules `json:"releaseGroupSecondaryType"`
	ReleaseCountry            AxisRules `json:"releaseCountry"`
}

func DefaultStageConfig() StageConfig {
	return StageConfig{
		SearchWhenMissing:    []domain.Field{domain.FieldTitle, domain.FieldArtists, domain.FieldAlbum},
		Score:                DefaultScoreThreshold,
		FallbackArtistSearch: ArtistFallbackNative,
		FallbackAlbumSearch:  true,
		IgnoreVA:             true,
		EscapeCharacters:     true,
		SearchLimit:          defaultSearchLimit,
	}
}

// StageOverride carries optional settings layered over a StageConfig. A nil
// pointer or nil slice leaves the base value untouched; an empty, non-nil
// slice clears it.
type StageOverride struct {
	SearchWhenMissing    []string `json:"searchWhenMissing,omitempty" toml:"searchWhenMissing"`
	ForceSearch          *bool    `json:"forceSearch,omitempty" toml:"forceSearch"`
	Score                *int     `json:"score,omitempty" toml:"score"`
	FallbackArtistSearch *string  `json:"fallbackArtistSearch,omitempty" toml:"fallbackArtistSearch"`
	FallbackFreeText     *bool    `json:"fallbackFreeText,omitempty" toml:"fallbackFreeText"`
	FallbackAlbumSearch  *bool    `json:"fallbackAlbumSearch,omitempty" toml:"fallbackAlbumSearch"`
	IgnoreVA             *bool    `json:"ignoreVA,omitempty" toml:"ignoreVA"`
	ReleaseAllowEmpty    *bool    `json:"releaseAllowEmpty,omitempty" toml:"releaseAllowEmpty"`
	EscapeCharacters     *bool    `json:"escapeCharacters,omitempty" toml:"escapeCharacters"`
	RemoveCharacters     *bool    `json:"removeCharacters,omitempty" toml:"removeCharacters"`
	SearchLimit          *int     `json:"searchLimit,omitempty" toml:"searchLimit"`
	TimeoutSeconds       *int     `json:"timeoutSeconds,omitempty" toml:"timeoutSeconds"`
	TTLSeconds           *int     `json:"ttlSeconds,omitempty" toml:"ttlSeconds"`

	ReleaseStatusAllow    []string `json:"releaseStatusAllow,omitempty" toml:"releaseStatusAllow"`
	ReleaseStatusDeny     []string `json:"releaseStatusDeny,omitempty" toml:"releaseStatusDeny"`
	ReleaseStatusPriority []string `json:"releaseStatusPriority,omitempty" toml:"releaseStatusPriority"`

	ReleaseGroupPrimaryTypeAllow    []string `json:"releaseGroupPrimaryTypeAllow,omitempty" toml:"releaseGroupPrimaryTypeAllow"`
	ReleaseGroupPrimaryTypeDeny     []string `json:"releaseGroupPrimaryTypeDeny,omitempty" toml:"releaseGroupPrimaryTypeDeny"`
	ReleaseGroupPrimaryTypePriority []string `json:"releaseGroupPrimaryTypePriority,omitempty" toml:"releaseGroupPrimaryTypePriority"`

	ReleaseGroupSecondaryTypeAllow    []string `json:"releaseGroupSecondaryTypeAllow,omitempty" toml:"releaseGroupSecondaryTypeAllow"`
	ReleaseGroupSecondaryTypeDeny     []string `json:"releaseGroupSecondaryTypeDeny,omitempty" toml:"releaseGroupSecondaryTypeDeny"`
	ReleaseGroupSecondaryTypePriority []string `json:"releaseGroupSecondaryTypePriority,omitempty" toml:"releaseGroupSecondaryTypePriority"`

	ReleaseCountryAllow    []string `json:"releaseCountryAllow,omitempty" toml:"releaseCountryAllow"`
	ReleaseCountryDeny     []string `json:"releaseCountryDeny,omitempty" toml:"releaseCountryDeny"`
	ReleaseCountryPriority []string `json:"releaseCountryPriority,omitempty" toml:"releaseCountryPriority"`
}

// Merge layers overrides onto base in order and validates the result.
func Merge(base StageConfig, overrides ...StageOverride) (StageConfig, error) {
	cfg := base.clone()
	for _, o := range overrides {
		if o.SearchWhenMissing != nil {
			fields := make([]domain.Field, 0, len(o.SearchWhenMissing))
			for _, raw := range o.SearchWhenMissing {
				field, ok := domain.ParseField(strings.TrimSpace(raw))
				if !ok {
					return StageConfig{}, &domain.ConfigError{Field: "searchWhenMissing", Value: raw, Reason: "expected one of title, artists, album"}
				}
				fields = append(fields, field)
			}
			cfg.SearchWhenMissing = fields
		}
		setBool(&cfg.ForceSearch, o.ForceSearch)
		setBool(&cfg.FallbackFreeText, o.FallbackFreeText)
		setBool(&cfg.FallbackAlbumSearch, o.FallbackAlbumSearch)
		setBool(&cfg.IgnoreVA, o.IgnoreVA)
		setBool(&cfg.ReleaseAllowEmpty, o.ReleaseAllowEmpty)
		setBool(&cfg.EscapeCharacters, o.EscapeCharacters)
		setBool(&cfg.RemoveCharacters, o.RemoveCharacters)
		if o.Score != nil {
			cfg.Score = *o.Score
		}
		if o.SearchLimit != nil {
			cfg.SearchLimit = *o.SearchLimit
		}
		if o.TimeoutSeconds != nil {
			if *o.TimeoutSeconds < 0 {
				return StageConfig{}, &domain.ConfigError{Field: "timeoutSeconds", Value: strconv.Itoa(*o.TimeoutSeconds), Reason: "must not be negative"}
			}
			cfg.Timeout = time.Duration(*o.TimeoutSeconds) * time.Second
		}
		if o.TTLSeconds != nil {
			if *o.TTLSeconds < 0 {
				return StageConfig{}, &domain.ConfigError{Field: "ttlSeconds", Value: strconv.Itoa(*o.TTLSeconds), Reason: "must not be negative"}
			}
			cfg.TTL = time.Duration(*o.TTLSeconds) * time.Second
		}
		if o.FallbackArtistSearch != nil {
			mode, err := ParseArtistFallback(*o.FallbackArtistSearch)
			if err != nil {
				return StageConfig{}, err
			}
			cfg.FallbackArtistSearch = mode
		}
		setAxis(&cfg.ReleaseStatus, o.ReleaseStatusAllow, o.ReleaseStatusDeny, o.ReleaseStatusPriority)
		setAxis(&cfg.ReleaseGroupPrimaryType, o.ReleaseGroupPrimaryTypeAllow, o.ReleaseGroupPrimaryTypeDeny, o.ReleaseGroupPrimaryTypePriority)
		setAxis(&cfg.ReleaseGroupSecondaryType, o.ReleaseGroupSecondaryTypeAllow, o.ReleaseGroupSecondaryTypeDeny, o.ReleaseGroupSecondaryTypePriority)
		setAxis(&cfg.ReleaseCountry, o.ReleaseCountryAllow, o.ReleaseCountryDeny, o.ReleaseCountryPriority)
	}
	if err := cfg.Validate(); err != nil {
		return StageConfig{}, err
	}
	return cfg, nil
}

func (c StageConfig) Validate() error {
	if c.Score < 0 || c.Score > 100 {
		return &domain.ConfigError{Field: "score", Value: strconv.Itoa(c.Score), Reason: "must be between 0 and 100"}
	}
	if c.SearchLimit < 1 || c.SearchLimit > maxSearchLimit {
		return &domain.ConfigError{Field: "searchLimit", Value: strconv.Itoa(c.SearchLimit), Reason: "must be between 1 and 100"}
	}
	if _, err := ParseArtistFallback(string(c.FallbackArtistSearch)); err != nil {
		return err
	}
	for _, field := range c.SearchWhenMissing {
		if _, ok := domain.ParseField(string(field)); !ok {
			return &domain.ConfigError{Field: "searchWhenMissing", Value: string(field), Reason: "expected one of title, artists, album"}
		}
	}
	return nil
}

func ParseArtistFallback(raw string) (ArtistFallback, error) {
	switch mode := ArtistFallback(strings.ToLower(strings.TrimSpace(raw))); mode {
	case ArtistFallbackOff, ArtistFallbackNaive, ArtistFallbackNative:
		return mode, nil
	default:
		return "", &domain.ConfigError{Field: "fallbackArtistSearch", Value: raw, Reason: "expected naive or native"}
	}
}

func (c StageConfig) clone() StageConfig {
	cloned := c
	cloned.SearchWhenMissing = append([]domain.Field(nil), c.SearchWhenMissing...)
	for _, axis := range []*AxisRules{&cloned.ReleaseStatus, &cloned.ReleaseGroupPrimaryType, &cloned.ReleaseGroupSecondaryType, &cloned.ReleaseCountry} {
		axis.Allow = append([]string(nil), axis.Allow...)
		axis.Deny = append([]string(nil), axis.Deny...)
		axis.Priority = append([]string(nil), axis.Priority...)
	}
	return cloned
}

func setBool(dst *bool, value *bool) {
	if value != nil {
		*dst = *value
	}
}

func setAxis(axis *AxisRules, allow, deny, priority []string) {
	if allow != nil {
		axis.Allow = normalizeValues(allow)
	}
	if deny != nil {
		axis.Deny = normalizeValues(deny)
	}
	if priority != nil {
		axis.Priority = normalizeValues(priority)
	}
}

func normalizeValues(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, raw := range values {
		value := strings.ToLower(strings.TrimSpace(raw))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
