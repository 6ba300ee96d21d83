package scheduler

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-srs/internal/data/aggregates"
	aggtest "github.com/yungbote/neurobridge-srs/internal/data/aggregates/testutil"
	repos "github.com/yungbote/neurobridge-srs/internal/data/repos/learning"
	repotest "github.com/yungbote/neurobridge-srs/internal/data/repos/testutil"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
	"github.com/yungbote/neurobridge-srs/internal/observability"
	"github.com/yungbote/neurobridge-srs/internal/services/mastery"
)

var baseNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db      *gorm.DB
	svc     Service
	cache   *ModelCache
	clock   *fakeClock
	hooks   *aggtest.HooksRecorder
	metrics *observability.Metrics
	cards   repos.CardRepo
	logs    repos.ReviewLogRepo
	params  repos.FSRSParametersRepo
}

// newFixture wires the real stack on a fresh database. Pass a db to share one
// between fixtures.
func newFixture(t *testing.T, db *gorm.DB, opts ...Option) *fixture {
	t.Helper()
	if db == nil {
		db = repotest.DB(t)
	}
	log := repotest.Logger(t)
	f := &fixture{
		db:      db,
		clock:   &fakeClock{now: baseNow},
		hooks:   &aggtest.HooksRecorder{},
		metrics: observability.NewMetrics(),
		cards:   repos.NewCardRepo(db, log),
		logs:    repos.NewReviewLogRepo(db, log),
		params:  repos.NewFSRSParametersRepo(db, log),
	}
	masteryRepo := repos.NewTopicMasteryRepo(db, log)
	masterySvc, err := mastery.NewService(db, log, f.cards, f.logs, masteryRepo, mastery.DefaultPolicy())
	if err != nil {
		t.Fatalf("mastery.NewService: %v", err)
	}
	f.cache = NewModelCache(f.params, log, WithModelOptions(fsrs.WithoutFuzz()), WithCacheMetrics(f.metrics))

	base := aggregates.BaseDeps{DB: db, Log: log, Hooks: f.hooks}
	deps := Deps{
		Cards:      f.cards,
		Logs:       f.logs,
		Parameters: f.params,
		CardAgg: aggregates.NewCardAggregate(base, aggregates.CardAggregateDeps{
			Cards:      f.cards,
			Logs:       f.logs,
			Parameters: f.params,
			Mastery:    masteryRepo,
		}),
		ReviewAgg: aggregates.NewReviewAggregate(base, aggregates.ReviewAggregateDeps{
			Cards:   f.cards,
			Logs:    f.logs,
			Models:  f.cache,
			Mastery: masterySvc,
		}),
		Mastery: masterySvc,
		Models:  f.cache,
	}
	all := append([]Option{
		WithClock(f.clock.Now),
		WithMetrics(f.metrics),
		WithOptimizeConfig(OptimizeConfig{MinReviews: 100, Timeout: time.Minute, Epochs: 2}),
	}, opts...)
	f.svc, err = NewService(db, log, deps, all...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return f
}

func (f *fixture) prometheus(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := f.metrics.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	return buf.String()
}

func requireMetric(t *testing.T, out, line string) {
	t.Helper()
	if !strings.Contains(out, line) {
		t.Fatalf("metric %q missing in:\n%s", line, out)
	}
}
