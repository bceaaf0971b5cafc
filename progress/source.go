package progress

import (
	"context"
	"fmt"
	"time"
)

// Source produces the steps of one execution. Step performs the unit of
// work that starts at current and returns the new counter value.
type Source interface {
	Maximum() int
	Begin() string
	Step(ctx context.Context, current int) (next int, status string, err error)
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const (
	simulatedMaximum   = 100
	simulatedIncrement = 5
)

// Tier maps texts shorter than MaxLen characters to a per-step delay.
type Tier struct {
	MaxLen int
	Delay  time.Duration
}

// DefaultTiers: shorter text, shorter delay. The last tier catches
// everything longer.
var DefaultTiers = []Tier{
	{MaxLen: 100, Delay: 5 * time.Millisecond},
	{MaxLen: 500, Delay: 10 * time.Millisecond},
	{MaxLen: 1000, Delay: 15 * time.Millisecond},
	{MaxLen: -1, Delay: 25 * time.Millisecond},
}

func DelayFor(tiers []Tier, textLength int) time.Duration {
	for _, tier := range tiers {
		if tier.MaxLen < 0 || textLength < tier.MaxLen {
			return tier.Delay
		}
	}
	if len(tiers) == 0 {
		return 0
	}
	return tiers[len(tiers)-1].Delay
}

// Simulated is cosmetic progress for a single text: 0 to 100 in steps of 5
// with a delay picked from the tier table. It does not measure inference,
// which is fast; the delay only makes the analysis perceptible.
type Simulated struct {
	Delay time.Duration
	Sleep SleepFunc
}

func NewSimulated(textLength int, tiers []Tier, sleep SleepFunc) *Simulated {
	if sleep == nil {
		sleep = Sleep
	}
	return &Simulated{Delay: DelayFor(tiers, textLength), Sleep: sleep}
}

func (s *Simulated) Maximum() int  { return simulatedMaximum }
func (s *Simulated) Begin() string { return StatusAnalyze }

func (s *Simulated) Step(ctx context.Context, current int) (int, string, error) {
	if err := s.Sleep(ctx, s.Delay); err != nil {
		return current, "", err
	}
	next := current + simulatedIncrement
	if next > simulatedMaximum {
		next = simulatedMaximum
	}
	return next, StatusAnalyze, nil
}

// Rows is real progress: one step per row, advancing by exactly one.
// Yield is a short pause after each row so observers can redraw; it is not
// a throughput guarantee.
type Rows struct {
	N       int
	Yield   time.Duration
	Sleep   SleepFunc
	Process func(ctx context.Context, row int) error
}

func (r *Rows) Maximum() int  { return r.N }
func (r *Rows) Begin() string { return StatusBatch }

func (r *Rows) Step(ctx context.Context, current int) (int, string, error) {
	if err := r.Process(ctx, current); err != nil {
		return current, "", err
	}
	if r.Yield > 0 {
		sleep := r.Sleep
		if sleep == nil {
			sleep = Sleep
		}
		if err := sleep(ctx, r.Yield); err != nil {
			return current, "", err
		}
	}
	next := current + 1
	return next, fmt.Sprintf("Processing: %d/%d", next, r.N), nil
}
