// Package scheduler implements spec.md §5's concurrency model: independent
// runs (distinct session keys) proceed in parallel, while runs sharing a
// session key are serialized so at most one is ever mid-flight for that
// key. Lanes group runs by stimulus (interactive, cron, heartbeat, system)
// so the heartbeat gate can ask "is the main lane idle" without caring
// about unrelated cron traffic.
//
// Grounded on the teacher's absent Postgres-backed scheduler: this
// implementation fills that gap with a plain in-process queue keyed by
// session key, the same per-key-serialization idea the teacher expresses
// via its inbound command queue (internal/bus.MessageBus.inbound).
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nextlevelbuilder/surprisebot/internal/agent"
	"github.com/nextlevelbuilder/surprisebot/internal/sessions"
)

// Lane groups runs by the stimulus that queued them.
type Lane string

const (
	LaneInteractive Lane = "main"
	LaneCron        Lane = "cron"
	LaneHeartbeat   Lane = "heartbeat"
	LaneSystem      Lane = "system"
)

// Outcome is delivered on the channel Schedule returns once the run
// completes (or the context is cancelled while queued).
type Outcome struct {
	Result *agent.RunResult
	Err    error
}

// Scheduler serializes runs per session key across lanes and resolves the
// target agent via a Router.
type Scheduler struct {
	router *agent.Router

	mu        sync.Mutex
	keyLocks  map[string]*sync.Mutex
	lanePending map[Lane]*atomic.Int64
}

func New(router *agent.Router) *Scheduler {
	return &Scheduler{
		router:   router,
		keyLocks: make(map[string]*sync.Mutex),
		lanePending: map[Lane]*atomic.Int64{
			LaneInteractive: {},
			LaneCron:        {},
			LaneHeartbeat:   {},
			LaneSystem:      {},
		},
	}
}

func (s *Scheduler) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.keyLocks[key]
	if !ok {
		m = &sync.Mutex{}
		s.keyLocks[key] = m
	}
	return m
}

// QueueSize returns the number of in-flight-or-queued runs for lane,
// matching spec.md §4.6's getQueueSize("main") heartbeat gate.
func (s *Scheduler) QueueSize(lane Lane) int {
	s.mu.Lock()
	counter, ok := s.lanePending[lane]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return int(counter.Load())
}

// Schedule enqueues req on lane, serialized against any other run sharing
// req.SessionKey, and returns a channel that receives exactly one Outcome.
func (s *Scheduler) Schedule(ctx context.Context, lane Lane, req agent.RunRequest) <-chan Outcome {
	ch := make(chan Outcome, 1)

	s.mu.Lock()
	counter, ok := s.lanePending[lane]
	if !ok {
		counter = &atomic.Int64{}
		s.lanePending[lane] = counter
	}
	s.mu.Unlock()
	counter.Add(1)

	go func() {
		defer counter.Add(-1)

		lock := s.keyLock(req.SessionKey)
		lock.Lock()
		defer lock.Unlock()

		if err := ctx.Err(); err != nil {
			ch <- Outcome{Err: err}
			return
		}

		agentKey, _ := sessions.ParseSessionKey(req.SessionKey)
		if agentKey == "" {
			agentKey = "default"
		}
		target, err := s.router.Resolve(agentKey)
		if err != nil {
			ch <- Outcome{Err: err}
			return
		}

		result, err := target.Run(ctx, req)
		ch <- Outcome{Result: result, Err: err}
	}()

	return ch
}
