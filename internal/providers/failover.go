package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Candidate is a (provider, model) pair considered during failover.
type Candidate struct {
	Provider string
	Model    string
	// IsCLI marks a candidate backed by an out-of-process CLI executor,
	// subject to the cool-down filter.
	IsCLI bool
}

// FailoverReason classifies why a candidate attempt failed in a way that
// permits rotating to the next candidate.
type FailoverReason string

const (
	ReasonRateLimit   FailoverReason = "rate_limit"
	ReasonBilling     FailoverReason = "billing"
	ReasonTimeout     FailoverReason = "timeout"
	ReasonServerError FailoverReason = "server_error"
	ReasonAuth        FailoverReason = "auth"
	ReasonOther       FailoverReason = "other"
)

// FailoverError carries a classified, recoverable failure for one candidate
// attempt. Errors that do not coerce to a FailoverError are not
// failover-worthy and propagate immediately.
type FailoverError struct {
	Reason  FailoverReason
	Status  int
	Code    string
	Message string
	cause   error
}

func (e *FailoverError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.cause != nil {
		return e.cause.Error()
	}
	return string(e.Reason)
}

func (e *FailoverError) Unwrap() error { return e.cause }

// AbortError marks a caller-initiated cancellation. It is never rotated
// past — the failover loop rethrows it immediately.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string {
	if e.Reason == "" {
		return "aborted"
	}
	return "aborted: " + e.Reason
}

// CoerceFailoverError classifies err into a *FailoverError. context
// cancellation and *AbortError are never coerced (ok=false signals
// "rethrow as-is"). HTTPError status codes classify by family.
func CoerceFailoverError(err error) (*FailoverError, bool) {
	if err == nil {
		return nil, false
	}
	var abortErr *AbortError
	if errors.As(err, &abortErr) {
		return nil, false
	}
	if errors.Is(err, context.Canceled) {
		return nil, false
	}
	var fe *FailoverError
	if errors.As(err, &fe) {
		return fe, true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		reason := ReasonOther
		switch {
		case httpErr.Status == 429:
			reason = ReasonRateLimit
		case httpErr.Status == 401 || httpErr.Status == 403:
			reason = ReasonAuth
		case httpErr.Status == 402:
			reason = ReasonBilling
		case httpErr.Status >= 500:
			reason = ReasonServerError
		case httpErr.Status == 408:
			reason = ReasonTimeout
		}
		return &FailoverError{Reason: reason, Status: httpErr.Status, Message: httpErr.Body, cause: err}, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &FailoverError{Reason: ReasonTimeout, Message: err.Error(), cause: err}, true
	}
	// Unrecognized errors are not failover-worthy: rethrow immediately.
	return nil, false
}

// BuildCandidates produces the ordered, deduplicated candidate list per
// spec.md §4.2: seed with the requested pair (or default), append
// fallbacks filtered by the allow-list, append the primary last unless an
// explicit override was given, then apply the cool-down filter.
func BuildCandidates(requested Candidate, defaultCandidate Candidate, fallbacks []Candidate, allowList []string, explicitOverride bool, cooldowns *CooldownTracker) []Candidate {
	seed := requested
	if seed.Provider == "" && seed.Model == "" {
		seed = defaultCandidate
	}

	var allowSet map[string]bool
	if len(allowList) > 0 {
		allowSet = make(map[string]bool, len(allowList))
		for _, a := range allowList {
			allowSet[a] = true
		}
	}

	seen := map[string]bool{}
	var ordered []Candidate
	add := func(c Candidate) {
		key := cooldownKey(c.Provider, c.Model)
		if seen[key] {
			return
		}
		seen[key] = true
		ordered = append(ordered, c)
	}

	add(seed)

	for _, fb := range fallbacks {
		if allowSet != nil && !allowSet[cooldownKey(fb.Provider, fb.Model)] && !allowSet[fb.Provider] {
			continue
		}
		add(fb)
	}

	if !explicitOverride {
		add(defaultCandidate)
	}

	if cooldowns == nil {
		return ordered
	}

	var filtered []Candidate
	for _, c := range ordered {
		if c.IsCLI && cooldowns.Active(c.Provider, c.Model) {
			continue
		}
		filtered = append(filtered, c)
	}
	if len(filtered) == 0 {
		// Cool-down is advisory, not a hard block when nothing else is available.
		return ordered
	}
	return filtered
}

// Attempt records one candidate execution for the summary error.
type Attempt struct {
	Candidate Candidate
	Err       error
	Reason    FailoverReason
}

// FailoverResult is the successful outcome of RunWithFailover.
type FailoverResult[T any] struct {
	Value    T
	Provider string
	Model    string
	Attempts int
}

// RunWithFailover executes run against each candidate in order until one
// succeeds, classifying failures and rotating per spec.md §4.2. onError,
// if non-nil, is invoked with each classified attempt.
func RunWithFailover[T any](ctx context.Context, candidates []Candidate, cooldowns *CooldownTracker, run func(ctx context.Context, c Candidate) (T, error), onError func(Attempt)) (FailoverResult[T], error) {
	var zero FailoverResult[T]
	var attempts []Attempt

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		value, err := run(ctx, c)
		if err == nil {
			return FailoverResult[T]{Value: value, Provider: c.Provider, Model: c.Model, Attempts: len(attempts) + 1}, nil
		}

		fe, ok := CoerceFailoverError(err)
		if !ok {
			return zero, err
		}

		a := Attempt{Candidate: c, Err: fe, Reason: fe.Reason}
		attempts = append(attempts, a)
		if onError != nil {
			onError(a)
		}
		if c.IsCLI && cooldowns != nil {
			reason := mapCooldownReason(fe.Reason)
			if reason != "" {
				cooldowns.MarkCliCooldown(c.Provider, c.Model, reason, fe.Message)
			}
		}
	}

	if len(attempts) == 1 {
		return zero, attempts[0].Err
	}
	return zero, summarizeAttempts(attempts)
}

func mapCooldownReason(r FailoverReason) CooldownReason {
	switch r {
	case ReasonRateLimit:
		return CooldownRateLimit
	case ReasonBilling:
		return CooldownBilling
	case ReasonTimeout:
		return CooldownTimeout
	default:
		return ""
	}
}

func summarizeAttempts(attempts []Attempt) error {
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		parts = append(parts, fmt.Sprintf("%s/%s: %s (%s)", a.Candidate.Provider, a.Candidate.Model, a.Err.Error(), a.Reason))
	}
	return fmt.Errorf("All models failed (%d): %s", len(attempts), strings.Join(parts, " | "))
}
