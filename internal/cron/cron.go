// Package cron implements spec.md §4.7's schedule list: a set of
// {id, name, cronExpr, payload} entries matched against the wall clock via
// github.com/adhocore/gronx, each trigger synthesizing a cron session key
// and routing through the scheduler's cron lane.
//
// Retry on job-handler failure follows an exponential backoff grounded on
// the teacher's provider-retry shape (internal/providers' retry/backoff
// conventions), generalized here to cron job attempts instead of HTTP
// calls.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

// RetryConfig controls how many times a failed cron job handler is retried
// and the backoff between attempts.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig matches the teacher's default provider-retry posture:
// 3 attempts, 2s base, 30s ceiling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}
}

// backoff returns the delay before retry attempt n (1-indexed), full jitter
// between 0 and the exponential ceiling.
func (c RetryConfig) backoff(attempt int) time.Duration {
	d := c.BaseDelay << uint(attempt-1)
	if d <= 0 || d > c.MaxDelay {
		d = c.MaxDelay
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}

// JobPayload is the spec's payload:{kind:"agentTurn", ...} shape.
type JobPayload struct {
	Kind              string `json:"kind"` // always "agentTurn" today
	Model             string `json:"model,omitempty"`
	Thinking          string `json:"thinking,omitempty"`
	TimeoutSeconds    int    `json:"timeoutSeconds,omitempty"`
	Deliver           bool   `json:"deliver,omitempty"`
	BestEffortDeliver bool   `json:"bestEffortDeliver,omitempty"`
	Channel           string `json:"channel,omitempty"`
	To                string `json:"to,omitempty"`
	Message           string `json:"message"`
}

// Job is one schedule-list entry.
type Job struct {
	ID        string
	Name      string
	CronExpr  string
	AgentID   string
	JobType   string
	Payload   JobPayload
	UserID    string
}

// Result is the outcome of running one job's handler once.
type Result struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Handler executes one triggered job and returns its result.
type Handler func(ctx context.Context, job Job) (*Result, error)

// Outcome is emitted to observers after a scheduled trigger completes
// (after retries are exhausted or a bestEffort delivery swallows the
// error).
type Outcome struct {
	Job    Job
	Result *Result
	Err    error
	Status string // "ok" | "error"
}

// Runner polls the schedule list once per tick (default 30s, matching
// gronx's minute-granularity crontab semantics) and fires due jobs.
type Runner struct {
	mu      sync.RWMutex
	jobs    map[string]Job
	gron    gronx.Gronx
	retry   RetryConfig
	handler Handler
	onEvent func(Outcome)

	lastRun map[string]time.Time
}

func NewRunner(retry RetryConfig, handler Handler, onEvent func(Outcome)) *Runner {
	return &Runner{
		jobs:    make(map[string]Job),
		gron:    gronx.New(),
		retry:   retry,
		handler: handler,
		onEvent: onEvent,
		lastRun: make(map[string]time.Time),
	}
}

// SetJobs replaces the schedule list wholesale (config reload).
func (r *Runner) SetJobs(jobs []Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = make(map[string]Job, len(jobs))
	for _, j := range jobs {
		r.jobs[j.ID] = j
	}
}

// Jobs returns a snapshot of the current schedule list.
func (r *Runner) Jobs() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	return out
}

// Run polls every tick until ctx is cancelled, firing due jobs in their own
// goroutine so a slow job never delays the next poll.
func (r *Runner) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = 30 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.pollOnce(ctx, now.UTC())
		}
	}
}

func (r *Runner) pollOnce(ctx context.Context, now time.Time) {
	r.mu.RLock()
	due := make([]Job, 0)
	for _, j := range r.jobs {
		if !isValidExpr(r.gron, j.CronExpr) {
			continue
		}
		ok, err := r.gron.IsDue(j.CronExpr, now)
		if err != nil || !ok {
			continue
		}
		// gronx matches at minute granularity; avoid re-firing within the
		// same minute on overlapping ticks.
		if last, seen := r.lastRun[j.ID]; seen && now.Sub(last) < time.Minute {
			continue
		}
		due = append(due, j)
	}
	r.mu.RUnlock()

	for _, j := range due {
		r.mu.Lock()
		r.lastRun[j.ID] = now
		r.mu.Unlock()
		go r.fire(ctx, j)
	}
}

func isValidExpr(g gronx.Gronx, expr string) bool {
	return expr != "" && g.IsValid(expr)
}

func (r *Runner) fire(ctx context.Context, job Job) {
	cfg := r.retry
	var lastErr error
	var result *Result
	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := r.handler(ctx, job)
		if err == nil {
			result = res
			lastErr = nil
			break
		}
		lastErr = err
		slog.Warn("cron job attempt failed", "job", job.ID, "attempt", attempt, "error", err)
		if attempt < attempts {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				break
			case <-time.After(cfg.backoff(attempt)):
			}
		}
	}

	status := "ok"
	if lastErr != nil {
		if job.Payload.BestEffortDeliver {
			slog.Warn("cron job failed, best-effort swallowing", "job", job.ID, "error", lastErr)
		} else {
			status = "error"
		}
	}

	if r.onEvent != nil {
		r.onEvent(Outcome{Job: job, Result: result, Err: lastErr, Status: status})
	}
}

// ComposePrompt builds the spec's `[cron:<id> <name>] <message>` prompt.
func ComposePrompt(job Job) string {
	return fmt.Sprintf("[cron:%s %s] %s", job.ID, job.Name, job.Payload.Message)
}
