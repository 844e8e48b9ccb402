package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"playresolver/internal/domain"
	"playresolver/internal/metrics"
	"playresolver/internal/musicbrainz"
)

// Stage names one step of the resolution cascade.
type Stage string

const (
	StageISRC         Stage = "isrc"
	StageBasic        Stage = "basic"
	StageAlbum        Stage = "album"
	StageArtistNaive  Stage = "artist-naive"
	StageArtistNative Stage = "artist-native"
	StageFreeText     Stage = "freetext"
)

const defaultBatchConcurrency = 4

// Service resolves plays against the host pool.
type Service struct {
	pool             *Pool
	defaults         StageConfig
	timeout          time.Duration
	batchConcurrency int
	logger           *slog.Logger
	tracer           trace.Tracer
}

type ServiceOption func(*Service)

// WithDefaults sets the configuration every call's overrides are merged onto.
func WithDefaults(cfg StageConfig) ServiceOption {
	return func(s *Service) {
		s.defaults = cfg.clone()
	}
}

// WithResolveTimeout bounds each cascade stage, failover included, when the
// caller's context has no deadline of its own.
func WithResolveTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithBatchConcurrency(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(pool *Pool, opts ...ServiceOption) *Service {
	s := &Service{
		pool:             pool,
		defaults:         DefaultStageConfig(),
		batchConcurrency: defaultBatchConcurrency,
		logger:           slog.Default(),
		tracer:           otel.Tracer("playresolver/resolve"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Defaults() StageConfig { return s.defaults.clone() }

func (s *Service) Hosts() []domain.HostDiagnostics { return s.pool.HostDiagnostics() }

// Resolve merges override onto the service defaults and runs the cascade.
// It returns domain.ErrSkipped when the play needs no lookup, a
// *domain.NoMatchError when nothing acceptable was found, and a
// *domain.ConfigError when override is invalid.
func (s *Service) Resolve(ctx context.Context, play domain.Play, override StageOverride) (Result, error) {
	cfg, err := Merge(s.defaults, override)
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues("config_error").Inc()
		return Result{}, err
	}
	return s.ResolveWithConfig(ctx, play, cfg)
}

func (s *Service) ResolveWithConfig(ctx context.Context, play domain.Play, cfg StageConfig) (Result, error) {
	startedAt := time.Now()
	ctx, span := s.tracer.Start(ctx, "resolve.Resolve")
	defer span.End()

	result, err := s.resolve(ctx, play, cfg)
	outcome := resolutionOutcome(err)
	metrics.ResolutionsTotal.WithLabelValues(outcome).Inc()
	metrics.ResolveDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
	span.SetAttributes(attribute.String("resolve.outcome", outcome))
	if err != nil && outcome == "error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if err == nil {
		span.SetAttributes(
			attribute.String("resolve.stage", string(result.Stage)),
			attribute.String("resolve.recording", result.Recording.ID),
		)
	}
	return result, err
}

func resolutionOutcome(err error) string {
	switch {
	case err == nil:
		return "matched"
	case errors.Is(err, domain.ErrSkipped):
		return "skipped"
	case domain.IsNoMatch(err):
		return "no_match"
	case domain.IsConfigError(err):
		return "config_error"
	default:
		return "error"
	}
}

func (s *Service) resolve(ctx context.Context, play domain.Play, cfg StageConfig) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if !needsSearch(play, cfg) {
		return Result{}, domain.ErrSkipped
	}
	plans := planStages(play, cfg)
	if len(plans) == 0 {
		return Result{}, &domain.NoMatchError{Reason: domain.NoMatchNoSearchFields, Threshold: cfg.Score}
	}

	for _, plan := range plans {
		page, err := s.runStage(ctx, plan, cfg)
		if err != nil {
			return Result{}, fmt.Errorf("stage %s: %w", plan.stage, err)
		}
		if len(page.Recordings) == 0 {
			continue
		}

		rec, release, err := FilterAndSelect(page.Recordings, cfg)
		if err != nil {
			var noMatch *domain.NoMatchError
			if errors.As(err, &noMatch) {
				noMatch.Stage = string(plan.stage)
			}
			s.logger.Debug("candidates rejected",
				slog.String("stage", string(plan.stage)),
				slog.String("query", plan.query),
				slog.String("reason", err.Error()),
			)
			return Result{}, err
		}

		resolved := MapResult(play, rec, release, cfg)
		return Result{
			Play:       resolved,
			Original:   play.Clone(),
			Recording:  rec,
			Release:    release,
			Stage:      plan.stage,
			FreeText:   plan.opts.FreeText,
			Similarity: similarity(play, resolved),
			Query:      plan.query,
			Host:       page.Host,
			Cached:     page.Cached,
		}, nil
	}
	return Result{}, &domain.NoMatchError{Reason: domain.NoMatchNoCandidates, Threshold: cfg.Score}
}

func (s *Service) runStage(ctx context.Context, plan stagePlan, cfg StageConfig) (musicbrainz.SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "resolve.stage",
		trace.WithAttributes(
			attribute.String("resolve.stage", string(plan.stage)),
			attribute.String("resolve.query", plan.query),
		),
	)
	defer span.End()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	query := plan.query
	limit := plan.opts.Limit
	page, err := s.pool.Execute(ctx, func(ctx context.Context, host Host) (musicbrainz.SearchResult, error) {
		return host.SearchRecordings(ctx, query, limit)
	}, ExecOptions{
		Timeout:  cfg.Timeout,
		TTL:      cfg.TTL,
		CacheKey: buildCacheKey(plan.play, plan.opts),
	})
	if err != nil {
		metrics.StageResultsTotal.WithLabelValues(string(plan.stage), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return musicbrainz.SearchResult{}, err
	}

	result := "candidates"
	if len(page.Recordings) == 0 {
		result = "empty"
	}
	metrics.StageResultsTotal.WithLabelValues(string(plan.stage), result).Inc()
	span.SetAttributes(
		attribute.Int("resolve.candidates", len(page.Recordings)),
		attribute.Bool("resolve.cached", page.Cached),
		attribute.String("resolve.host", page.Host),
	)
	s.logger.Debug("stage finished",
		slog.String("stage", string(plan.stage)),
		slog.String("query", query),
		slog.String("host", page.Host),
		slog.Int("candidates", len(page.Recordings)),
		slog.Bool("cached", page.Cached),
	)
	return page, nil
}

// needsSearch reports whether any field the play lacks an identifier for is
// one the caller wants resolved.
func needsSearch(play domain.Play, cfg StageConfig) bool {
	if cfg.ForceSearch {
		return true
	}
	for _, field := range play.MissingFields() {
		if slices.Contains(cfg.SearchWhenMissing, field) {
			return true
		}
	}
	return false
}

type stagePlan struct {
	stage Stage
	play  domain.Play
	opts  SearchOptions
	query string
}

// planStages lists the cascade in execution order. Stages that would send an
// empty query, or repeat the previous query verbatim, are left out.
func planStages(play domain.Play, cfg StageConfig) []stagePlan {
	base := SearchOptions{
		EscapeCharacters: cfg.EscapeCharacters,
		RemoveCharacters: cfg.RemoveCharacters,
		Limit:            cfg.SearchLimit,
	}
	var plans []stagePlan
	add := func(stage Stage, p domain.Play, opts SearchOptions) {
		query := BuildQuery(p, opts)
		if query == "" {
			return
		}
		for _, existing := range plans {
			if existing.query == query {
				return
			}
		}
		plans = append(plans, stagePlan{stage: stage, play: p, opts: opts, query: query})
	}

	if play.ISRC != "" {
		opts := base
		opts.ISRCOnly = true
		add(StageISRC, play, opts)
	}

	present := presentFields(play)
	if len(present) > 0 {
		opts := base
		opts.Using = present
		add(StageBasic, play, opts)
	}

	if cfg.FallbackAlbumSearch && play.Has(domain.FieldAlbum) && play.Has(domain.FieldArtists) {
		opts := base
		opts.Using = []domain.Field{domain.FieldTitle, domain.FieldAlbum}
		add(StageAlbum, play, opts)
	}

	artistOpts := base
	artistOpts.Using = []domain.Field{domain.FieldTitle, domain.FieldArtists}
	switch cfg.FallbackArtistSearch {
	case ArtistFallbackNaive:
		if cleaned, ok := naiveArtistPlay(play); ok {
			add(StageArtistNaive, cleaned, artistOpts)
		}
	case ArtistFallbackNative:
		if cleaned, ok := nativeArtistPlay(play); ok {
			add(StageArtistNative, cleaned, artistOpts)
		}
	}

	if cfg.FallbackFreeText && len(present) > 0 {
		opts := base
		opts.FreeText = true
		opts.Using = present
		add(StageFreeText, play, opts)
	}
	return plans
}

func presentFields(play domain.Play) []domain.Field {
	fields := make([]domain.Field, 0, len(domain.Fields))
	for _, field := range domain.Fields {
		if play.Has(field) {
			fields = append(fields, field)
		}
	}
	return fields
}
