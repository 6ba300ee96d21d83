package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/neurobridge-srs/internal/data/aggregates"
	types "github.com/yungbote/neurobridge-srs/internal/domain"
	domainagg "github.com/yungbote/neurobridge-srs/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-srs/internal/fsrs/optimizer"
	"github.com/yungbote/neurobridge-srs/internal/observability"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-srs/internal/realtime/bus"
)

const (
	OptimizeStatusOptimized = "optimized"
	OptimizeStatusSkipped   = "skipped"

	ReasonInsufficientData = "insufficient_data"
)

type OptimizeInput struct {
	UserID  uuid.UUID
	TopicID *uuid.UUID
	// MinReviews <= 0 uses the configured minimum.
	MinReviews int
}

// OptimizeResult is either a fitted parameter row or a skip with a reason.
// Too little history is a skip, not an error.
type OptimizeResult struct {
	Status      string                `json:"status"`
	Reason      string                `json:"reason,omitempty"`
	ReviewCount int64                 `json:"review_count"`
	MinReviews  int                   `json:"min_reviews"`
	InitialLoss float64               `json:"initial_loss,omitempty"`
	Loss        float64               `json:"loss,omitempty"`
	Parameters  *types.FSRSParameters `json:"parameters,omitempty"`
}

func (s *service) OptimizeParameters(ctx context.Context, in OptimizeInput) (OptimizeResult, error) {
	const op = "scheduler.optimize_parameters"
	start := time.Now()
	if in.UserID == uuid.Nil {
		return OptimizeResult{}, domainagg.Validation(op, "user_id is required")
	}
	if in.TopicID != nil && *in.TopicID == uuid.Nil {
		in.TopicID = nil
	}
	minReviews := in.MinReviews
	if minReviews <= 0 {
		minReviews = s.optimize.MinReviews
	}

	ctx, span := observability.StartSpan(ctx, "scheduler.OptimizeParameters",
		attribute.String("scope_key", types.ScopeKey(&in.UserID, in.TopicID)),
		attribute.Int("min_reviews", minReviews),
	)
	res, err := s.optimizeParameters(ctx, op, in, minReviews)
	status := res.Status
	if err != nil {
		status = "error"
	} else {
		span.SetAttributes(attribute.String("status", res.Status), attribute.Int64("review_count", res.ReviewCount))
	}
	observability.EndSpan(span, err)
	s.metrics.ObserveOptimizer(status, time.Since(start))
	return res, err
}

func (s *service) optimizeParameters(ctx context.Context, op string, in OptimizeInput, minReviews int) (OptimizeResult, error) {
	out := OptimizeResult{MinReviews: minReviews}
	dbc := dbctx.Context{Ctx: ctx}

	count, err := s.deps.Logs.CountForScope(dbc, in.UserID, in.TopicID)
	if err != nil {
		return OptimizeResult{}, aggregates.MapError(op, err)
	}
	out.ReviewCount = count
	if count < int64(minReviews) {
		out.Status = OptimizeStatusSkipped
		out.Reason = ReasonInsufficientData
		s.log.Info("optimization skipped", "user_id", in.UserID, "reviews", count, "min_reviews", minReviews)
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.optimize.Timeout)
	defer cancel()
	dbc = dbctx.Context{Ctx: ctx}

	logs, err := s.deps.Logs.ListForScope(dbc, in.UserID, in.TopicID)
	if err != nil {
		return OptimizeResult{}, aggregates.MapError(op, err)
	}
	reviews := make([]optimizer.Review, 0, len(logs))
	for _, l := range logs {
		reviews = append(reviews, optimizer.Review{
			CardKey:    l.CardID.String(),
			Rating:     l.Rating,
			ReviewedAt: l.ReviewedAt,
		})
	}

	current, _, err := s.deps.Models.Resolve(dbc, in.UserID, in.TopicID)
	if err != nil {
		return OptimizeResult{}, aggregates.MapError(op, err)
	}
	startCfg := current.Config()

	fit, err := optimizer.Optimize(ctx, reviews, startCfg, optimizer.Options{Epochs: s.optimize.Epochs})
	if err != nil {
		if errors.Is(err, optimizer.ErrNoReviews) {
			out.Status = OptimizeStatusSkipped
			out.Reason = ReasonInsufficientData
			return out, nil
		}
		return OptimizeResult{}, aggregates.MapError(op, err)
	}

	cfg := startCfg
	cfg.Weights = fit.Weights
	row, err := types.NewFSRSParameters(&in.UserID, in.TopicID, cfg)
	if err != nil {
		return OptimizeResult{}, aggregates.MapError(op, err)
	}
	loss := fit.Loss
	row.Optimized = true
	row.SampleSize = len(reviews)
	row.Loss = &loss
	if err := s.deps.Parameters.Upsert(dbc, row); err != nil {
		return OptimizeResult{}, aggregates.MapError(op, err)
	}
	stored, err := s.deps.Parameters.GetByScope(dbc, row.ScopeKey)
	if err != nil {
		return OptimizeResult{}, aggregates.MapError(op, err)
	}
	if stored == nil {
		stored = row
	}

	s.invalidate(ctx, in.UserID, in.TopicID)

	s.log.Info("parameters optimized",
		"user_id", in.UserID,
		"scope_key", row.ScopeKey,
		"reviews", len(reviews),
		"initial_loss", fit.InitialLoss,
		"loss", fit.Loss,
		"steps", fit.Steps,
	)
	out.Status = OptimizeStatusOptimized
	out.InitialLoss = fit.InitialLoss
	out.Loss = fit.Loss
	out.Parameters = stored
	return out, nil
}

// invalidate drops local cache entries for the scope and tells other instances to do the same.
func (s *service) invalidate(ctx context.Context, userID uuid.UUID, topicID *uuid.UUID) {
	n := s.deps.Models.Invalidate(userID, topicID)
	s.metrics.IncModelCache("invalidate")
	s.log.Debug("model cache invalidated", "user_id", userID, "entries", n)
	if s.bus == nil {
		return
	}
	msg := bus.Invalidation{UserID: userID, TopicID: topicID, Origin: s.origin}
	if err := s.bus.Publish(context.WithoutCancel(ctx), msg); err != nil {
		s.log.Warn("publish model invalidation failed", "user_id", userID, "error", err)
	}
}

func (s *service) StartInvalidationListener(ctx context.Context) error {
	if s.bus == nil {
		return nil
	}
	return s.bus.StartForwarder(ctx, func(m bus.Invalidation) {
		if m.Origin == s.origin {
			return
		}
		n := s.deps.Models.Invalidate(m.UserID, m.TopicID)
		s.metrics.IncModelCache("remote_invalidate")
		s.log.Debug("remote model invalidation", "user_id", m.UserID, "origin", m.Origin, "entries", n)
	})
}
