package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spamdetect/apperr"
)

const DefaultSettle = 300 * time.Millisecond

// Job is one execution: the steps of Source, an optional Settle pause once
// the counter reaches the maximum, then Finalize, whose message becomes the
// completed status.
type Job struct {
	Source   Source
	Settle   time.Duration
	Finalize func(ctx context.Context) (string, error)
}

// Scheduler runs at most one Job at a time. A second Run while one is in
// flight fails with ExecutionInProgress and leaves the state untouched.
type Scheduler struct {
	busy atomic.Bool

	mu        sync.RWMutex
	state     State
	observers map[int]Observer
	nextObs   int

	tiers  []Tier
	settle time.Duration
	yield  time.Duration
	sleep  SleepFunc
	log    *zap.Logger
}

type Option func(*Scheduler)

func WithSleep(sleep SleepFunc) Option {
	return func(s *Scheduler) { s.sleep = sleep }
}

func WithTiers(tiers []Tier) Option {
	return func(s *Scheduler) { s.tiers = tiers }
}

func WithSettle(d time.Duration) Option {
	return func(s *Scheduler) { s.settle = d }
}

func WithRowYield(d time.Duration) Option {
	return func(s *Scheduler) { s.yield = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) { s.log = logger }
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		state:     Idle(),
		observers: make(map[int]Observer),
		tiers:     DefaultTiers,
		settle:    DefaultSettle,
		yield:     2 * time.Millisecond,
		sleep:     Sleep,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Scheduler) Busy() bool {
	return s.busy.Load()
}

// Subscribe registers o for every event until the returned func is called.
func (s *Scheduler) Subscribe(o Observer) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Reset returns the state to idle. It is refused while an execution runs.
func (s *Scheduler) Reset() error {
	if !s.busy.CompareAndSwap(false, true) {
		return apperr.New(apperr.ExecutionInProgress, "progress.Reset", "an execution is running")
	}
	defer s.busy.Store(false)
	s.mu.Lock()
	s.state = Idle()
	s.mu.Unlock()
	return nil
}

// RunSingle runs work behind simulated progress sized by textLength.
func (s *Scheduler) RunSingle(ctx context.Context, textLength int, work func(ctx context.Context) (string, error)) error {
	return s.Run(ctx, Job{
		Source:   NewSimulated(textLength, s.tiers, s.sleep),
		Settle:   s.settle,
		Finalize: work,
	})
}

// RunRows calls process once per row in order, then finalize.
func (s *Scheduler) RunRows(ctx context.Context, n int, process func(ctx context.Context, row int) error, finalize func(ctx context.Context) (string, error)) error {
	return s.Run(ctx, Job{
		Source:   &Rows{N: n, Yield: s.yield, Sleep: s.sleep, Process: process},
		Finalize: finalize,
	})
}

func (s *Scheduler) Run(ctx context.Context, job Job) error {
	if !s.busy.CompareAndSwap(false, true) {
		return apperr.New(apperr.ExecutionInProgress, "progress.Run", "an execution is already running")
	}
	defer s.busy.Store(false)

	id := uuid.NewString()
	ctx = context.WithValue(ctx, executionKey{}, id)
	maximum := job.Source.Maximum()
	log := s.log.With(zap.String("execution_id", id), zap.Int("maximum", maximum))
	started := time.Now()

	fail := func(err error) error {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if apperr.KindOf(err) == apperr.Unknown {
				err = apperr.Wrap(apperr.Cancelled, "progress.Run", err)
			}
		}
		state := State{Current: 0, Maximum: maximum, Status: apperr.Message(err)}
		s.publish(Event{Type: EventFailed, ExecutionID: id, State: state, Message: state.Status, Err: err})
		if apperr.IsUserCancel(err) {
			log.Info("execution cancelled", zap.Duration("elapsed", time.Since(started)))
		} else {
			log.Warn("execution failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		}
		return err
	}

	if maximum < 0 {
		return fail(fmt.Errorf("negative progress maximum %d", maximum))
	}

	current := 0
	s.publish(Event{Type: EventProgress, ExecutionID: id, State: State{Maximum: maximum, Status: job.Source.Begin()}})

	for current < maximum {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		next, status, err := job.Source.Step(ctx, current)
		if err != nil {
			return fail(err)
		}
		if next <= current {
			return fail(fmt.Errorf("progress source stalled at %d/%d", current, maximum))
		}
		if next > maximum {
			next = maximum
		}
		current = next
		s.publish(Event{Type: EventProgress, ExecutionID: id, State: State{Current: current, Maximum: maximum, Status: status}})
	}

	if job.Settle > 0 {
		if err := s.sleep(ctx, job.Settle); err != nil {
			return fail(err)
		}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	message := StatusComplete
	if job.Finalize != nil {
		msg, err := job.Finalize(ctx)
		if err != nil {
			return fail(err)
		}
		if msg != "" {
			message = msg
		}
	}

	final := State{Current: maximum, Maximum: maximum, Status: message, Done: true}
	s.publish(Event{Type: EventCompleted, ExecutionID: id, State: final, Message: message})
	log.Debug("execution completed", zap.Duration("elapsed", time.Since(started)))
	return nil
}

type executionKey struct{}

// ExecutionID returns the id of the execution ctx belongs to. Steps and
// Finalize receive such a context.
func ExecutionID(ctx context.Context) string {
	id, _ := ctx.Value(executionKey{}).(string)
	return id
}

func (s *Scheduler) publish(e Event) {
	s.mu.Lock()
	s.state = e.State
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o.Observe(e)
	}
}
