package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	repos "github.com/yungbote/neurobridge-srs/internal/data/repos/learning"
	repotest "github.com/yungbote/neurobridge-srs/internal/data/repos/testutil"
	types "github.com/yungbote/neurobridge-srs/internal/domain"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
	"github.com/yungbote/neurobridge-srs/internal/observability"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
)

func seedParams(t *testing.T, params repos.FSRSParametersRepo, userID, topicID *uuid.UUID, retention float64) {
	t.Helper()
	cfg := fsrs.DefaultConfig()
	cfg.TargetRetention = retention
	row, err := types.NewFSRSParameters(userID, topicID, cfg)
	if err != nil {
		t.Fatalf("NewFSRSParameters: %v", err)
	}
	if err := params.Upsert(dbctx.Context{Ctx: context.Background()}, row); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func TestModelCacheResolvesMostSpecificScope(t *testing.T) {
	db := repotest.DB(t)
	log := repotest.Logger(t)
	params := repos.NewFSRSParametersRepo(db, log)
	metrics := observability.NewMetrics()
	cache := NewModelCache(params, log, WithCacheMetrics(metrics))
	dbc := dbctx.Context{Ctx: context.Background()}

	userID, topicID, otherTopic := uuid.New(), uuid.New(), uuid.New()
	seedParams(t, params, nil, nil, 0.9)
	seedParams(t, params, &userID, nil, 0.85)
	seedParams(t, params, nil, &topicID, 0.8)

	cases := []struct {
		name      string
		topic     *uuid.UUID
		scope     string
		retention float64
	}{
		{"no topic uses user row", nil, types.ScopeKey(&userID, nil), 0.85},
		{"topic row beats user row", &topicID, types.ScopeKey(nil, &topicID), 0.8},
		{"unknown topic falls back to user row", &otherTopic, types.ScopeKey(&userID, nil), 0.85},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, scope, err := cache.Resolve(dbc, userID, tc.topic)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if scope != tc.scope || m.Config().TargetRetention != tc.retention {
				t.Fatalf("scope: want=%s/%v got=%s/%v", tc.scope, tc.retention, scope, m.Config().TargetRetention)
			}
		})
	}

	// Cached until invalidated.
	seedParams(t, params, &userID, &topicID, 0.95)
	if _, scope, _ := cache.Resolve(dbc, userID, &topicID); scope != types.ScopeKey(nil, &topicID) {
		t.Fatalf("cached scope: got=%s", scope)
	}
	if n := cache.Invalidate(userID, &topicID); n != 1 {
		t.Fatalf("Invalidate: want=1 got=%d", n)
	}
	if _, scope, _ := cache.Resolve(dbc, userID, &topicID); scope != types.ScopeKey(&userID, &topicID) {
		t.Fatalf("after invalidate: got=%s", scope)
	}
	if n := cache.Invalidate(userID, nil); n != 3 {
		t.Fatalf("Invalidate(user): want=3 got=%d", n)
	}

	out := metricsText(t, metrics)
	requireMetric(t, out, `srs_model_cache_events_total{event="hit"} 1`)
	requireMetric(t, out, `srs_model_cache_events_total{event="miss"} 4`)
	requireMetric(t, out, `srs_model_cache_entries 0`)
}

func TestModelCacheFallsBackToDefaults(t *testing.T) {
	db := repotest.DB(t)
	log := repotest.Logger(t)
	params := repos.NewFSRSParametersRepo(db, log)
	cache := NewModelCache(params, log)
	dbc := dbctx.Context{Ctx: context.Background()}
	userID := uuid.New()

	m, scope, err := cache.Resolve(dbc, userID, nil)
	if err != nil || scope != "" || m.Config().Weights != fsrs.DefaultWeights {
		t.Fatalf("no rows: scope=%q err=%v", scope, err)
	}

	bad, err := types.NewFSRSParameters(&userID, nil, fsrs.DefaultConfig())
	if err != nil {
		t.Fatalf("NewFSRSParameters: %v", err)
	}
	bad.Weights = []byte(`[1,2,3]`)
	if err := params.Upsert(dbc, bad); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	cache.Invalidate(userID, nil)
	m, scope, err = cache.Resolve(dbc, userID, nil)
	if err != nil || scope != "" || m.Config().Weights != fsrs.DefaultWeights {
		t.Fatalf("corrupt row: scope=%q err=%v", scope, err)
	}
}

func TestModelCacheConcurrentResolve(t *testing.T) {
	db := repotest.DB(t)
	log := repotest.Logger(t)
	cache := NewModelCache(repos.NewFSRSParametersRepo(db, log), log)
	userID := uuid.New()

	var wg sync.WaitGroup
	models := make([]fsrs.MemoryModel, 16)
	for i := range models {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := cache.ModelFor(dbctx.Context{Ctx: context.Background()}, userID, nil)
			if err != nil {
				t.Errorf("ModelFor: %v", err)
				return
			}
			models[i] = m
		}(i)
	}
	wg.Wait()
	if cache.Len() != 1 {
		t.Fatalf("entries: want=1 got=%d", cache.Len())
	}
	if models[0] == nil {
		t.Fatalf("no model resolved")
	}
}

func metricsText(t *testing.T, m *observability.Metrics) string {
	t.Helper()
	f := &fixture{metrics: m}
	return f.prometheus(t)
}
