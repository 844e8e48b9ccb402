package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"playresolver/internal/domain"
	"playresolver/internal/musicbrainz"
	"playresolver/internal/resolve"
)

// HostConfig is one [[apis]] entry.
type HostConfig struct {
	Name                  string `toml:"name"`
	URL                   string `toml:"url"`
	APIKey                string `toml:"apiKey"`
	Contact               string `toml:"contact"`
	RateLimit             int    `toml:"rateLimit"`
	RateIntervalSeconds   int    `toml:"rateIntervalSeconds"`
	TTLSeconds            int    `toml:"ttlSeconds"`
	RequestTimeoutSeconds int    `toml:"requestTimeoutSeconds"`
}

// ResolverFile is the TOML document named by RESOLVER_CONFIG.
type ResolverFile struct {
	APIs    []HostConfig          `toml:"apis"`
	Resolve resolve.StageOverride `toml:"resolve"`
}

// Resolver is the validated result of loading a ResolverFile.
type Resolver struct {
	Hosts    []musicbrainz.Config
	Defaults resolve.StageConfig
}

// DefaultResolver is used when no file is configured: the public
// MusicBrainz host with default stage settings.
func DefaultResolver(userAgent string) Resolver {
	return Resolver{
		Hosts:    []musicbrainz.Config{{URL: musicbrainz.DefaultBaseURL, UserAgent: userAgent}},
		Defaults: resolve.DefaultStageConfig(),
	}
}

// LoadResolverFile reads and validates the resolver file at path. An empty
// path yields DefaultResolver.
func LoadResolverFile(path, userAgent string) (Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultResolver(userAgent), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Resolver{}, fmt.Errorf("read resolver config: %w", err)
	}
	return ParseResolverFile(bytes.NewReader(data), userAgent)
}

// ParseResolverFile decodes a resolver document. Unknown keys are rejected.
func ParseResolverFile(r io.Reader, userAgent string) (Resolver, error) {
	var file ResolverFile
	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&file); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Resolver{}, &domain.ConfigError{Field: "resolver", Reason: strings.TrimSpace(strict.String())}
		}
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return Resolver{}, &domain.ConfigError{Field: "resolver", Value: strconv.Itoa(row) + ":" + strconv.Itoa(col), Reason: decodeErr.Error()}
		}
		return Resolver{}, fmt.Errorf("parse resolver config: %w", err)
	}

	defaults, err := resolve.Merge(resolve.DefaultStageConfig(), file.Resolve)
	if err != nil {
		return Resolver{}, err
	}

	resolver := Resolver{Defaults: defaults}
	if len(file.APIs) == 0 {
		resolver.Hosts = DefaultResolver(userAgent).Hosts
		return resolver, nil
	}
	seen := make(map[string]struct{}, len(file.APIs))
	for i, api := range file.APIs {
		host, err := api.toClientConfig(i, userAgent)
		if err != nil {
			return Resolver{}, err
		}
		key := strings.ToLower(host.Name + "|" + host.URL)
		if _, dup := seen[key]; dup {
			return Resolver{}, &domain.ConfigError{Field: fmt.Sprintf("apis[%d]", i), Value: host.URL, Reason: "duplicate host"}
		}
		seen[key] = struct{}{}
		resolver.Hosts = append(resolver.Hosts, host)
	}
	return resolver, nil
}

func (h HostConfig) toClientConfig(index int, userAgent string) (musicbrainz.Config, error) {
	field := func(name string) string { return fmt.Sprintf("apis[%d].%s", index, name) }
	for name, value := range map[string]int{
		"rateLimit":             h.RateLimit,
		"rateIntervalSeconds":   h.RateIntervalSeconds,
		"ttlSeconds":            h.TTLSeconds,
		"requestTimeoutSeconds": h.RequestTimeoutSeconds,
	} {
		if value < 0 {
			return musicbrainz.Config{}, &domain.ConfigError{Field: field(name), Value: strconv.Itoa(value), Reason: "must not be negative"}
		}
	}
	rawURL := strings.TrimSpace(h.URL)
	if rawURL != "" && !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return musicbrainz.Config{}, &domain.ConfigError{Field: field("url"), Value: rawURL, Reason: "must be an http(s) URL"}
	}
	return musicbrainz.Config{
		Name:           strings.TrimSpace(h.Name),
		URL:            rawURL,
		APIKey:         strings.TrimSpace(h.APIKey),
		Contact:        strings.TrimSpace(h.Contact),
		UserAgent:      userAgent,
		RateLimit:      h.RateLimit,
		RateInterval:   time.Duration(h.RateIntervalSeconds) * time.Second,
		TTL:            time.Duration(h.TTLSeconds) * time.Second,
		RequestTimeout: time.Duration(h.RequestTimeoutSeconds) * time.Second,
	}, nil
}
