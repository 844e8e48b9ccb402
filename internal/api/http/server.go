package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"playresolver/internal/domain"
	"playresolver/internal/resolve"
)

type ResolveService interface {
	Resolve(ctx context.Context, play domain.Play, override resolve.StageOverride) (resolve.Result, error)
	ResolveBatch(ctx context.Context, items []resolve.BatchItem) []resolve.BatchResult
	Hosts() []domain.HostDiagnostics
}

type Server struct {
	resolver  ResolveService
	logger    *slog.Logger
	rateRPS   float64
	rateBurst int
}

const (
	maxBatchSize = 100
	maxBodyBytes = 1 << 20
)

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRateLimit sets the global request budget. Non-positive values keep
// the defaults.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 {
			s.rateRPS = rps
		}
		if burst > 0 {
			s.rateBurst = burst
		}
	}
}

func NewServer(resolver ResolveService, options ...ServerOption) *Server {
	server := &Server{
		resolver:  resolver,
		logger:    slog.Default(),
		rateRPS:   50,
		rateBurst: 100,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/resolve", s.handleResolve)
	mux.HandleFunc("/resolve/batch", s.handleResolveBatch)
	mux.HandleFunc("/hosts", s.handleHosts)
	traced := otelhttp.NewHandler(mux, "playresolver",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	limiter := rate.NewLimiter(rate.Limit(s.rateRPS), s.rateBurst)
	return accessMiddleware(s.logger, routeLabel(mux),
		recoveryMiddleware(s.logger, rateLimitMiddleware(limiter, traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

type resolveRequest struct {
	Play   domain.Play           `json:"play"`
	Config resolve.StageOverride `json:"config"`
}

type batchRequest struct {
	Plays  []domain.Play         `json:"plays"`
	Config resolve.StageOverride `json:"config"`
}

// resolveResponse is the body for one play's outcome.
type resolveResponse struct {
	Outcome string          `json:"outcome"`
	Result  *resolve.Result `json:"result,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Stage   string          `json:"stage,omitempty"`
	Best    *int            `json:"bestScore,omitempty"`
	Error   *errorBody      `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolver is not configured")
		return
	}
	var body resolveRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.resolver.Resolve(r.Context(), body.Play, body.Config)
	response, status := toResolveResponse(result, err)
	recordOutcome(r.Context(), outcomeLabel(response))
	if status >= http.StatusInternalServerError {
		s.logger.Warn("resolve failed",
			slog.String("requestId", requestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
	}
	if response.Error != nil {
		writeError(w, status, response.Error.Code, response.Error.Message)
		return
	}
	writeJSON(w, status, response)
}

func (s *Server) handleResolveBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolver is not configured")
		return
	}
	var body batchRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(body.Plays) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "plays is required")
		return
	}
	if len(body.Plays) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("too many plays (max %d)", maxBatchSize))
		return
	}

	items := make([]resolve.BatchItem, len(body.Plays))
	for i, play := range body.Plays {
		items[i] = resolve.BatchItem{Play: play, Override: body.Config}
	}
	results := s.resolver.ResolveBatch(r.Context(), items)

	responses := make([]resolveResponse, len(results))
	for _, item := range results {
		response, status := toResolveResponse(item.Result, item.Err)
		// A config error is the same for every play; fail the request.
		if status == http.StatusBadRequest {
			recordOutcome(r.Context(), outcomeLabel(response))
			writeError(w, status, response.Error.Code, response.Error.Message)
			return
		}
		responses[item.Index] = response
	}
	for _, response := range responses {
		recordOutcome(r.Context(), outcomeLabel(response))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":   responses,
		"summary": resolve.Summarize(results),
	})
}

func (s *Server) handleHosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolver is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.resolver.Hosts()})
}

// toResolveResponse maps an outcome to its body and status. Skips and
// no-matches are successful calls; only config errors and upstream
// failures are errors.
func toResolveResponse(result resolve.Result, err error) (resolveResponse, int) {
	if err == nil {
		return resolveResponse{Outcome: "resolved", Result: &result}, http.StatusOK
	}
	if errors.Is(err, domain.ErrSkipped) {
		return resolveResponse{Outcome: "skipped", Reason: err.Error()}, http.StatusOK
	}
	var noMatch *domain.NoMatchError
	if errors.As(err, &noMatch) {
		response := resolveResponse{Outcome: "no_match", Reason: string(noMatch.Reason), Stage: noMatch.Stage}
		if noMatch.Reason == domain.NoMatchBelowThreshold {
			best := noMatch.BestScore
			response.Best = &best
		}
		return response, http.StatusOK
	}
	if domain.IsConfigError(err) {
		return resolveResponse{Outcome: "error", Error: &errorBody{Code: "invalid_config", Message: err.Error()}}, http.StatusBadRequest
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resolveResponse{Outcome: "error", Error: &errorBody{Code: "timeout", Message: err.Error()}}, http.StatusGatewayTimeout
	}
	if errors.Is(err, domain.ErrAllHostsFailed) || errors.Is(err, domain.ErrNoHosts) {
		return resolveResponse{Outcome: "error", Error: &errorBody{Code: "upstream_unavailable", Message: err.Error()}}, http.StatusBadGateway
	}
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		return resolveResponse{Outcome: "error", Error: &errorBody{Code: "upstream_error", Message: err.Error()}}, http.StatusBadGateway
	}
	return resolveResponse{Outcome: "error", Error: &errorBody{Code: "internal_error", Message: err.Error()}}, http.StatusInternalServerError
}

// outcomeLabel names a response for metrics and access logs; errors are
// labelled by their code.
func outcomeLabel(response resolveResponse) string {
	if response.Error != nil {
		return response.Error.Code
	}
	return response.Outcome
}

func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
