package domain

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrSkipped means the play already carries every identifier the caller
	// asked for. It is an outcome, not a failure.
	ErrSkipped = errors.New("nothing to resolve")

	ErrAllHostsFailed = errors.New("all hosts failed")
	ErrNoHosts        = errors.New("no metadata hosts configured")
)

type NoMatchReason string

const (
	NoMatchNoCandidates   NoMatchReason = "no_candidates"
	NoMatchBelowThreshold NoMatchReason = "below_threshold"
	NoMatchFiltered       NoMatchReason = "filtered_to_empty"
	NoMatchNoSearchFields NoMatchReason = "no_search_fields"
)

// NoMatchError reports that a resolution finished without an acceptable
// candidate.
type NoMatchError struct {
	Reason    NoMatchReason
	Stage     string
	BestScore int
	Threshold int
	Axis      string
}

func (e *NoMatchError) Error() string {
	switch e.Reason {
	case NoMatchBelowThreshold:
		return "no match: best score " + strconv.Itoa(e.BestScore) + " below threshold " + strconv.Itoa(e.Threshold)
	case NoMatchFiltered:
		if e.Axis != "" {
			return "no match: candidates filtered to empty by " + e.Axis
		}
		return "no match: candidates filtered to empty"
	case NoMatchNoSearchFields:
		return "no match: play has no searchable fields"
	default:
		return "no match: no candidates returned"
	}
}

// UpstreamError wraps a failure talking to one metadata host.
type UpstreamError struct {
	Host       string
	StatusCode int
	// Broken marks a host whose configuration is unusable (auth, bad URL).
	Broken bool
	// Malformed marks a response body that could not be decoded.
	Malformed bool
	Err       error
}

func (e *UpstreamError) Error() string {
	prefix := "host " + e.Host
	if e.StatusCode > 0 {
		prefix += ": HTTP " + strconv.Itoa(e.StatusCode)
	}
	if e.Malformed {
		prefix += ": malformed response"
	}
	if e.Err == nil {
		return prefix
	}
	return prefix + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ConfigError is raised while assembling configuration, before any request.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid config %s=%q: %s", e.Field, e.Value, e.Reason)
}

// IsNoMatch reports whether err carries a NoMatchError.
func IsNoMatch(err error) bool {
	var target *NoMatchError
	return errors.As(err, &target)
}

// IsConfigError reports whether err carries a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}
