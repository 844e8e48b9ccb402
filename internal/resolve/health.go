package resolve

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"playresolver/internal/domain"
	"playresolver/internal/metrics"
)

const (
	hostFailureThreshold = 3
	hostBlockBase        = 2 * time.Minute
	hostBlockMax         = 15 * time.Minute
)

type hostHealth struct {
	consecutiveFailures int
	broken              bool
	blockedUntil        time.Time
	lastError           string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastTimeout         bool
	lastQuery           string
	totalRequests       int64
	totalFailures       int64
	timeoutCount        int64
}

func (p *Pool) isHostBlocked(name string, now time.Time) (bool, time.Time) {
	p.healthMu.Lock()
	defer p.healthMu.Unlock()

	state := p.health[name]
	if state == nil || state.blockedUntil.IsZero() || now.After(state.blockedUntil) {
		return false, time.Time{}
	}
	return true, state.blockedUntil
}

func (p *Pool) recordHostResult(name, query string, err error, latency time.Duration, now time.Time) {
	p.healthMu.Lock()
	defer p.healthMu.Unlock()

	state := p.health[name]
	if state == nil {
		state = &hostHealth{}
		p.health[name] = state
	}
	state.totalRequests++
	state.lastQuery = strings.TrimSpace(query)
	if latency > 0 {
		state.lastLatency = latency
		metrics.HostRequestDuration.WithLabelValues(name).Observe(latency.Seconds())
	}
	state.lastTimeout = isTimeoutLikeError(err)
	if state.lastTimeout {
		state.timeoutCount++
	}

	if err == nil {
		state.consecutiveFailures = 0
		state.broken = false
		state.blockedUntil = time.Time{}
		state.lastError = ""
		state.lastSuccessAt = now
		metrics.HostRequestsTotal.WithLabelValues(name, "ok").Inc()
		metrics.HostAvailable.WithLabelValues(name).Set(1)
		return
	}

	state.consecutiveFailures++
	state.totalFailures++
	state.lastFailureAt = now
	state.lastError = err.Error()

	status := "error"
	var upstream *domain.UpstreamError
	switch {
	case state.lastTimeout:
		status = "timeout"
	case errors.As(err, &upstream) && upstream.Malformed:
		status = "malformed"
	case errors.As(err, &upstream) && upstream.Broken:
		status = "broken"
		state.broken = true
	}
	metrics.HostRequestsTotal.WithLabelValues(name, status).Inc()

	switch {
	case state.broken:
		state.blockedUntil = now.Add(hostBlockMax)
		metrics.HostAvailable.WithLabelValues(name).Set(0)
	case state.consecutiveFailures >= hostFailureThreshold:
		state.blockedUntil = now.Add(exponentialBlockDuration(state.consecutiveFailures))
		metrics.HostAvailable.WithLabelValues(name).Set(0)
	}
}

// exponentialBlockDuration is hostBlockBase × 2^(failures - threshold),
// capped at hostBlockMax.
func exponentialBlockDuration(consecutiveFailures int) time.Duration {
	exponent := consecutiveFailures - hostFailureThreshold
	if exponent < 0 {
		exponent = 0
	}
	d := hostBlockBase
	for i := 0; i < exponent; i++ {
		d *= 2
		if d > hostBlockMax {
			return hostBlockMax
		}
	}
	return d
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "timeout") ||
		strings.Contains(value, "timed out") ||
		strings.Contains(value, "deadline exceeded")
}

// isTransientError reports failures that another attempt may not hit:
// timeouts, connection resets, EOF, TLS handshake failures, 429 and 5xx.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		if upstream.Malformed || upstream.Broken {
			return false
		}
		if upstream.StatusCode == 429 || upstream.StatusCode >= 500 {
			return true
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "tls") ||
		strings.Contains(lower, "eof")
}

func (p *Pool) HostDiagnostics() []domain.HostDiagnostics {
	p.healthMu.Lock()
	defer p.healthMu.Unlock()

	items := make([]domain.HostDiagnostics, 0, len(p.hosts))
	for _, host := range p.hosts {
		item := domain.HostDiagnostics{HostInfo: host.Info()}
		state := p.health[host.Name()]
		if state != nil {
			item.ConsecutiveFailures = state.consecutiveFailures
			item.Broken = state.broken
			if !state.blockedUntil.IsZero() {
				blockedUntil := state.blockedUntil
				item.BlockedUntil = &blockedUntil
			}
			item.LastError = state.lastError
			if !state.lastSuccessAt.IsZero() {
				lastSuccessAt := state.lastSuccessAt
				item.LastSuccessAt = &lastSuccessAt
			}
			if !state.lastFailureAt.IsZero() {
				lastFailureAt := state.lastFailureAt
				item.LastFailureAt = &lastFailureAt
			}
			item.LastLatencyMS = state.lastLatency.Milliseconds()
			item.LastTimeout = state.lastTimeout
			item.LastQuery = state.lastQuery
			item.TotalRequests = state.totalRequests
			item.TotalFailures = state.totalFailures
			item.TimeoutCount = state.timeoutCount
		}
		items = append(items, item)
	}
	return items
}
