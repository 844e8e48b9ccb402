package domain

import "time"

type HostInfo struct {
	Name      string        `json:"name"`
	URL       string        `json:"url"`
	RateLimit int           `json:"rateLimit"`
	Interval  time.Duration `json:"interval"`
	TTL       time.Duration `json:"ttl"`
	Timeout   time.Duration `json:"timeout"`
	HasAPIKey bool          `json:"hasApiKey"`
}

type HostDiagnostics struct {
	HostInfo
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	Broken              bool       `json:"broken,omitempty"`
	BlockedUntil        *time.Time `json:"blockedUntil,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool       `json:"lastTimeout,omitempty"`
	LastQuery           string     `json:"lastQuery,omitempty"`
	TotalRequests       int64      `json:"totalRequests,omitempty"`
	TotalFailures       int64      `json:"totalFailures,omitempty"`
	TimeoutCount        int64      `json:"timeoutCount,omitempty"`
}
