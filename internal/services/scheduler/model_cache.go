package scheduler

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	repos "github.com/yungbote/neurobridge-srs/internal/data/repos/learning"
	types "github.com/yungbote/neurobridge-srs/internal/domain"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
	"github.com/yungbote/neurobridge-srs/internal/observability"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
)

type cacheKey struct {
	user  uuid.UUID
	topic uuid.UUID
}

func (k cacheKey) String() string { return k.user.String() + "/" + k.topic.String() }

type cachedModel struct {
	model    *fsrs.Model
	scopeKey string
}

// ModelCache holds the resolved memory model per (user, topic). Entries are
// immutable; optimisation replaces them by invalidating the key.
type ModelCache struct {
	params    repos.FSRSParametersRepo
	log       *logger.Logger
	metrics   *observability.Metrics
	modelOpts []fsrs.Option

	mu      sync.RWMutex
	entries map[cacheKey]*cachedModel
	// gen is bumped on every invalidation so loads that raced with one are not stored.
	gen   uint64
	group singleflight.Group
}

type CacheOption func(*ModelCache)

// WithModelOptions is applied to every model the cache builds.
func WithModelOptions(opts ...fsrs.Option) CacheOption {
	return func(c *ModelCache) { c.modelOpts = append(c.modelOpts, opts...) }
}

func WithCacheMetrics(m *observability.Metrics) CacheOption {
	return func(c *ModelCache) { c.metrics = m }
}

func NewModelCache(params repos.FSRSParametersRepo, baseLog *logger.Logger, opts ...CacheOption) *ModelCache {
	c := &ModelCache{
		params:  params,
		log:     baseLog.With("service", "ModelCache"),
		entries: map[cacheKey]*cachedModel{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ModelFor implements the review aggregate's model source.
func (c *ModelCache) ModelFor(dbc dbctx.Context, userID uuid.UUID, topicID *uuid.UUID) (fsrs.MemoryModel, error) {
	m, _, err := c.Resolve(dbc, userID, topicID)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Resolve returns the model for the most specific parameter row of the scope,
// and that row's scope key ("" when no row exists and defaults were used).
func (c *ModelCache) Resolve(dbc dbctx.Context, userID uuid.UUID, topicID *uuid.UUID) (*fsrs.Model, string, error) {
	key := cacheKey{user: userID}
	if topicID != nil {
		key.topic = *topicID
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	gen := c.gen
	c.mu.RUnlock()
	if ok {
		c.metrics.IncModelCache("hit")
		return entry.model, entry.scopeKey, nil
	}
	c.metrics.IncModelCache("miss")

	// Transactional and plain loads never share a flight: a plain load may be
	// waiting for the connection a transaction holds.
	flight := key.String()
	if dbc.Tx != nil {
		flight += "|tx"
	}
	v, err, _ := c.group.Do(flight, func() (any, error) {
		return c.load(dbc, userID, topicID)
	})
	if err != nil {
		return nil, "", err
	}
	entry = v.(*cachedModel)

	c.mu.Lock()
	if c.gen == gen {
		c.entries[key] = entry
	}
	size := len(c.entries)
	c.mu.Unlock()
	c.metrics.SetModelCacheSize(size)
	return entry.model, entry.scopeKey, nil
}

func (c *ModelCache) load(dbc dbctx.Context, userID uuid.UUID, topicID *uuid.UUID) (*cachedModel, error) {
	row, err := c.params.Resolve(dbc, userID, topicID)
	if err != nil {
		return nil, err
	}
	cfg := fsrs.DefaultConfig()
	scopeKey := ""
	if row != nil {
		rowCfg, err := row.Config()
		if err != nil {
			c.log.Warn("invalid parameter row, using defaults", "scope_key", row.ScopeKey, "error", err)
			c.metrics.IncModelCache("fallback")
		} else {
			cfg = rowCfg
			scopeKey = row.ScopeKey
		}
	}
	m, err := fsrs.New(cfg, c.modelOpts...)
	if err != nil {
		return nil, fmt.Errorf("build model for %s: %w", types.ScopeKey(&userID, topicID), err)
	}
	return &cachedModel{model: m, scopeKey: scopeKey}, nil
}

// Invalidate drops the (user, topic) entry, or every entry of the user when
// topicID is nil. It returns how many entries were removed.
func (c *ModelCache) Invalidate(userID uuid.UUID, topicID *uuid.UUID) int {
	c.mu.Lock()
	c.gen++
	removed := 0
	for k := range c.entries {
		if k.user != userID {
			continue
		}
		if topicID != nil && k.topic != *topicID {
			continue
		}
		delete(c.entries, k)
		removed++
	}
	size := len(c.entries)
	c.mu.Unlock()
	c.metrics.SetModelCacheSize(size)
	return removed
}

func (c *ModelCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
