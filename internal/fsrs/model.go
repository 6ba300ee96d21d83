package fsrs

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Memory is the scheduling-relevant slice of a card that the model reads and rewrites.
type Memory struct {
	Difficulty    float64
	Stability     float64
	ElapsedDays   int
	ScheduledDays int
	Reps          int
	Lapses        int
	State         State
	Due           time.Time
	LastReview    *time.Time
}

// MemoryModel turns a pre-review memory and a rating into the post-review memory.
// Implementations must be pure and safe for concurrent use.
type MemoryModel interface {
	ApplyReview(mem Memory, rating Rating, now time.Time) (Memory, error)
}

const (
	newAgainStep      = time.Minute
	newHardStep       = 5 * time.Minute
	newGoodStep       = 10 * time.Minute
	learningAgainStep = 5 * time.Minute
	relearningStep    = 10 * time.Minute
)

type Option func(*Model)

// WithRandom replaces the fuzz source. fn must be safe for concurrent use.
func WithRandom(fn func() float64) Option {
	return func(m *Model) { m.rnd = fn }
}

func WithoutFuzz() Option {
	return func(m *Model) { m.cfg.EnableFuzz = false }
}

// Model is the FSRS-4.5 memory model bound to one parameter set.
type Model struct {
	cfg Config
	w   Weights
	rnd func() float64
}

var _ MemoryModel = (*Model)(nil)

func New(cfg Config, opts ...Option) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Model{cfg: cfg, w: cfg.Weights, rnd: rand.Float64}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Model) Config() Config { return m.cfg }

func (m *Model) ApplyReview(mem Memory, rating Rating, now time.Time) (Memory, error) {
	if !rating.Valid() {
		return mem, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	if !mem.State.Valid() {
		return mem, fmt.Errorf("%w: %q", ErrInvalidState, mem.State)
	}
	now = now.UTC()

	out := mem
	out.ElapsedDays = 0
	if mem.LastReview != nil && mem.State != StateNew {
		out.ElapsedDays = ElapsedDays(*mem.LastReview, now)
	}
	out.Reps = mem.Reps + 1
	if rating == Again {
		out.Lapses = mem.Lapses + 1
	}
	reviewedAt := now
	out.LastReview = &reviewedAt

	state := mem.State
	if mem.Stability <= 0 {
		state = StateNew
	}
	switch state {
	case StateNew:
		m.reviewNew(&out, rating, now)
	case StateLearning, StateRelearning:
		m.reviewLearning(&out, mem, rating, now)
	case StateReview:
		m.reviewReview(&out, mem, rating, now)
	}
	return out, nil
}

// Preview returns the outcome of every rating without committing to one.
func (m *Model) Preview(mem Memory, now time.Time) (map[Rating]Memory, error) {
	out := make(map[Rating]Memory, len(AllRatings))
	for _, r := range AllRatings {
		next, err := m.ApplyReview(mem, r, now)
		if err != nil {
			return nil, err
		}
		out[r] = next
	}
	return out, nil
}

func (m *Model) reviewNew(out *Memory, g Rating, now time.Time) {
	out.Difficulty = m.initDifficulty(g)
	out.Stability = m.initStability(g)
	switch g {
	case Again:
		stepTo(out, StateLearning, now, newAgainStep)
	case Hard:
		stepTo(out, StateLearning, now, newHardStep)
	case Good:
		stepTo(out, StateLearning, now, newGoodStep)
	case Easy:
		scheduleDays(out, now, m.fuzz(m.nextInterval(out.Stability)))
	}
}

func (m *Model) reviewLearning(out *Memory, prev Memory, g Rating, now time.Time) {
	elapsed := out.ElapsedDays
	stabilityFor := func(r Rating) float64 {
		if elapsed >= 1 {
			ret := ForgettingCurve(float64(elapsed), prev.Stability)
			if r == Again {
				return m.forgetStability(prev.Difficulty, prev.Stability, ret)
			}
			return m.recallStability(prev.Difficulty, prev.Stability, ret, r)
		}
		return m.shortTermStability(prev.Stability, r)
	}

	out.Difficulty = m.nextDifficulty(prev.Difficulty, g)
	out.Stability = stabilityFor(g)
	if g == Again {
		step := learningAgainStep
		if prev.State == StateRelearning {
			step = relearningStep
		}
		stepTo(out, prev.State, now, step)
		return
	}
	hard, good, easy := m.orderedIntervals(stabilityFor(Hard), stabilityFor(Good), stabilityFor(Easy))
	scheduleDays(out, now, pick(g, hard, good, easy))
}

func (m *Model) reviewReview(out *Memory, prev Memory, g Rating, now time.Time) {
	ret := ForgettingCurve(float64(out.ElapsedDays), prev.Stability)
	out.Difficulty = m.nextDifficulty(prev.Difficulty, g)
	if g == Again {
		out.Stability = m.forgetStability(prev.Difficulty, prev.Stability, ret)
		stepTo(out, StateRelearning, now, relearningStep)
		return
	}
	sHard := m.recallStability(prev.Difficulty, prev.Stability, ret, Hard)
	sGood := m.recallStability(prev.Difficulty, prev.Stability, ret, Good)
	sEasy := m.recallStability(prev.Difficulty, prev.Stability, ret, Easy)
	out.Stability = pickF(g, sHard, sGood, sEasy)
	hard, good, easy := m.orderedIntervals(sHard, sGood, sEasy)
	scheduleDays(out, now, pick(g, hard, good, easy))
}

// orderedIntervals keeps hard <= good < easy after fuzzing.
func (m *Model) orderedIntervals(sHard, sGood, sEasy float64) (int, int, int) {
	hard := m.fuzz(m.nextInterval(sHard))
	good := m.fuzz(m.nextInterval(sGood))
	easy := m.fuzz(m.nextInterval(sEasy))
	hard = min(hard, good)
	good = max(good, hard+1)
	easy = max(easy, good+1)
	limit := m.cfg.MaximumInterval
	return min(hard, limit), min(good, limit), min(easy, limit)
}

func (m *Model) fuzz(ivl int) int {
	if !m.cfg.EnableFuzz {
		return ivl
	}
	return fuzzInterval(ivl, m.cfg.MaximumInterval, m.rnd)
}

func stepTo(out *Memory, state State, now time.Time, step time.Duration) {
	out.State = state
	out.ScheduledDays = 0
	out.Due = now.Add(step)
}

func scheduleDays(out *Memory, now time.Time, days int) {
	out.State = StateReview
	out.ScheduledDays = days
	out.Due = now.Add(time.Duration(days) * 24 * time.Hour)
}

func pick(g Rating, hard, good, easy int) int {
	switch g {
	case Hard:
		return hard
	case Easy:
		return easy
	default:
		return good
	}
}

func pickF(g Rating, hard, good, easy float64) float64 {
	switch g {
	case Hard:
		return hard
	case Easy:
		return easy
	default:
		return good
	}
}
