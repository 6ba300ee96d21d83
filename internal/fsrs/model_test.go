package fsrs

import (
	"errors"
	"math"
	"testing"
	"time"
)

var baseNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	cfg := DefaultConfig()
	cfg.EnableFuzz = false
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func newMemory(now time.Time) Memory {
	return Memory{Difficulty: 5, State: StateNew, Due: now}
}

func TestApplyReviewNewCardGood(t *testing.T) {
	m := newTestModel(t)
	got, err := m.ApplyReview(newMemory(baseNow), Good, baseNow)
	if err != nil {
		t.Fatalf("ApplyReview: %v", err)
	}
	if got.State != StateLearning {
		t.Fatalf("state: want=%s got=%s", StateLearning, got.State)
	}
	if got.Reps != 1 || got.Lapses != 0 {
		t.Fatalf("counters: reps=%d lapses=%d", got.Reps, got.Lapses)
	}
	if math.Abs(got.Stability-DefaultWeights[2]) > 1e-9 {
		t.Fatalf("stability: want=%v got=%v", DefaultWeights[2], got.Stability)
	}
	wantD := DefaultWeights[4] - math.Exp(DefaultWeights[5]*2) + 1
	if math.Abs(got.Difficulty-wantD) > 1e-9 {
		t.Fatalf("difficulty: want=%v got=%v", wantD, got.Difficulty)
	}
	if !got.Due.Equal(baseNow.Add(10 * time.Minute)) {
		t.Fatalf("due: want=%v got=%v", baseNow.Add(10*time.Minute), got.Due)
	}
	if got.ScheduledDays != 0 || got.ElapsedDays != 0 {
		t.Fatalf("days: scheduled=%d elapsed=%d", got.ScheduledDays, got.ElapsedDays)
	}
	if got.LastReview == nil || !got.LastReview.Equal(baseNow) {
		t.Fatalf("last review: %v", got.LastReview)
	}
}

func TestApplyReviewNewCardEasyGraduates(t *testing.T) {
	m := newTestModel(t)
	got, err := m.ApplyReview(newMemory(baseNow), Easy, baseNow)
	if err != nil {
		t.Fatalf("ApplyReview: %v", err)
	}
	if got.State != StateReview {
		t.Fatalf("state: want=%s got=%s", StateReview, got.State)
	}
	// at 0.9 target retention the interval equals the stability
	want := int(math.Round(DefaultWeights[3]))
	if got.ScheduledDays != want {
		t.Fatalf("scheduled days: want=%d got=%d", want, got.ScheduledDays)
	}
}

func TestApplyReviewRepeatedAgain(t *testing.T) {
	m := newTestModel(t)
	mem := newMemory(baseNow)
	now := baseNow
	for i := 0; i < 3; i++ {
		var err error
		mem, err = m.ApplyReview(mem, Again, now)
		if err != nil {
			t.Fatalf("ApplyReview #%d: %v", i, err)
		}
		now = now.Add(2 * time.Minute)
	}
	if mem.Lapses != 3 {
		t.Fatalf("lapses: want=3 got=%d", mem.Lapses)
	}
	if mem.Reps != 3 {
		t.Fatalf("reps: want=3 got=%d", mem.Reps)
	}
	if mem.State != StateLearning {
		t.Fatalf("state: want=%s got=%s", StateLearning, mem.State)
	}
	if mem.ScheduledDays != 0 {
		t.Fatalf("scheduled days: want=0 got=%d", mem.ScheduledDays)
	}
}

func TestApplyReviewLapseFromReview(t *testing.T) {
	m := newTestModel(t)
	last := baseNow.Add(-20 * 24 * time.Hour)
	mem := Memory{Difficulty: 5, Stability: 20, State: StateReview, Reps: 4, LastReview: &last, ScheduledDays: 20}

	got, err := m.ApplyReview(mem, Again, baseNow)
	if err != nil {
		t.Fatalf("ApplyReview: %v", err)
	}
	if got.State != StateRelearning {
		t.Fatalf("state: want=%s got=%s", StateRelearning, got.State)
	}
	if got.Lapses != 1 {
		t.Fatalf("lapses: want=1 got=%d", got.Lapses)
	}
	if got.Stability > mem.Stability {
		t.Fatalf("stability grew after a lapse: %v > %v", got.Stability, mem.Stability)
	}
	if got.ElapsedDays != 20 {
		t.Fatalf("elapsed days: want=20 got=%d", got.ElapsedDays)
	}

	relearned, err := m.ApplyReview(got, Good, baseNow.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("ApplyReview relearning: %v", err)
	}
	if relearned.State != StateReview {
		t.Fatalf("state after relearning: want=%s got=%s", StateReview, relearned.State)
	}
}

func TestApplyReviewIntervalsOrdered(t *testing.T) {
	m := newTestModel(t)
	last := baseNow.Add(-10 * 24 * time.Hour)
	mem := Memory{Difficulty: 6, Stability: 10, State: StateReview, Reps: 3, LastReview: &last}

	preview, err := m.Preview(mem, baseNow)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	hard, good, easy := preview[Hard].ScheduledDays, preview[Good].ScheduledDays, preview[Easy].ScheduledDays
	if !(hard <= good && good < easy) {
		t.Fatalf("interval ordering: hard=%d good=%d easy=%d", hard, good, easy)
	}
	if preview[Good].Stability <= mem.Stability {
		t.Fatalf("successful recall should grow stability: %v", preview[Good].Stability)
	}
}

func TestApplyReviewMaximumInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableFuzz = false
	cfg.MaximumInterval = 30
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	last := baseNow.Add(-200 * 24 * time.Hour)
	mem := Memory{Difficulty: 2, Stability: 200, State: StateReview, Reps: 10, LastReview: &last}
	got, err := m.ApplyReview(mem, Easy, baseNow)
	if err != nil {
		t.Fatalf("ApplyReview: %v", err)
	}
	if got.ScheduledDays != 30 {
		t.Fatalf("scheduled days: want=30 got=%d", got.ScheduledDays)
	}
}

func TestApplyReviewInvariantsHold(t *testing.T) {
	m := newTestModel(t)
	mem := newMemory(baseNow)
	now := baseNow
	seq := []Rating{Good, Good, Hard, Again, Good, Easy, Again, Again, Hard, Good, Easy, Easy, Again, Good}
	for i, r := range seq {
		prevReps := mem.Reps
		prevLapses := mem.Lapses
		next, err := m.ApplyReview(mem, r, now)
		if err != nil {
			t.Fatalf("ApplyReview #%d: %v", i, err)
		}
		if next.Reps != prevReps+1 {
			t.Fatalf("#%d reps: want=%d got=%d", i, prevReps+1, next.Reps)
		}
		wantLapses := prevLapses
		if r == Again {
			wantLapses++
		}
		if next.Lapses != wantLapses {
			t.Fatalf("#%d lapses: want=%d got=%d", i, wantLapses, next.Lapses)
		}
		if next.Difficulty < 0 || next.Difficulty > 10 {
			t.Fatalf("#%d difficulty out of range: %v", i, next.Difficulty)
		}
		if next.Stability <= 0 {
			t.Fatalf("#%d stability not positive: %v", i, next.Stability)
		}
		if !next.Due.After(now) {
			t.Fatalf("#%d due not in the future: due=%v now=%v", i, next.Due, now)
		}
		if next.State == StateNew {
			t.Fatalf("#%d card returned to new", i)
		}
		mem = next
		now = next.Due
	}
}

func TestApplyReviewRejectsInvalidInput(t *testing.T) {
	m := newTestModel(t)
	if _, err := m.ApplyReview(newMemory(baseNow), Rating(5), baseNow); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("rating 5: want ErrInvalidRating got=%v", err)
	}
	if _, err := m.ApplyReview(newMemory(baseNow), Rating(0), baseNow); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("rating 0: want ErrInvalidRating got=%v", err)
	}
	bad := newMemory(baseNow)
	bad.State = State("graduated")
	if _, err := m.ApplyReview(bad, Good, baseNow); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("state: want ErrInvalidState got=%v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"retention zero":  func(c *Config) { c.TargetRetention = 0 },
		"retention one":   func(c *Config) { c.TargetRetention = 1 },
		"max interval":    func(c *Config) { c.MaximumInterval = 0 },
		"weight too big":  func(c *Config) { c.Weights[4] = 11 },
		"weight not real": func(c *Config) { c.Weights[0] = math.NaN() },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestFuzzIntervalStaysInBand(t *testing.T) {
	for _, ivl := range []int{1, 2, 3, 10, 45, 400} {
		for _, r := range []float64{0, 0.5, 0.999999} {
			got := fuzzInterval(ivl, 36500, func() float64 { return r })
			if ivl < 3 {
				if got != ivl {
					t.Fatalf("ivl=%d: short intervals are not fuzzed, got=%d", ivl, got)
				}
				continue
			}
			delta := fuzzDelta(float64(ivl))
			if float64(got) < float64(ivl)-delta-1 || float64(got) > float64(ivl)+delta+1 {
				t.Fatalf("ivl=%d r=%v: fuzzed=%d outside +/-%v", ivl, r, got, delta)
			}
		}
	}
	if got := fuzzInterval(100, 90, func() float64 { return 0.999 }); got > 90 {
		t.Fatalf("fuzz ignored maximum interval: %d", got)
	}
}

func TestRetrievability(t *testing.T) {
	last := baseNow.Add(-10 * 24 * time.Hour)
	cases := []struct {
		name      string
		stability float64
		last      *time.Time
		want      float64
	}{
		{name: "never reviewed", stability: 5, last: nil, want: 1},
		{name: "zero stability", stability: 0, last: &last, want: 1},
		{name: "one stability period", stability: 10, last: &last, want: 0.9},
		{name: "two stability periods", stability: 5, last: &last, want: 0.81},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Retrievability(tc.stability, tc.last, baseNow)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("want=%v got=%v", tc.want, got)
			}
		})
	}
}

func TestRatingJSON(t *testing.T) {
	var r Rating
	if err := r.UnmarshalJSON([]byte(`3`)); err != nil || r != Good {
		t.Fatalf("numeric: r=%v err=%v", r, err)
	}
	if err := r.UnmarshalJSON([]byte(`"easy"`)); err != nil || r != Easy {
		t.Fatalf("named: r=%v err=%v", r, err)
	}
	if err := r.UnmarshalJSON([]byte(`7`)); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("out of range: want ErrInvalidRating got=%v", err)
	}
	raw, err := Hard.MarshalJSON()
	if err != nil || string(raw) != "2" {
		t.Fatalf("marshal: raw=%s err=%v", raw, err)
	}
}
