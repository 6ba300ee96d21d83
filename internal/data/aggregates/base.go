package aggregates

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/neurobridge-srs/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
)

const defaultMaxAttempts = 3

type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard
	// MaxAttempts bounds re-running a transaction that failed with a retryable code.
	MaxAttempts int
	// RetryBackoff is the pause before the second attempt; it doubles after each failure.
	RetryBackoff time.Duration
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = defaultMaxAttempts
	}
	if d.RetryBackoff <= 0 {
		d.RetryBackoff = 20 * time.Millisecond
	}
	return d
}

// executeWrite runs fn in one transaction, retrying lock and serialization
// failures. fn must not have effects outside the transaction.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}

	var mapped error
	backoff := deps.RetryBackoff
	for attempt := 1; ; attempt++ {
		mapped = MapError(op, deps.Runner.InTx(ctx, fn))
		if mapped == nil || !domainagg.IsCode(mapped, domainagg.CodeRetryable) || ctx.Err() != nil {
			break
		}
		deps.Hooks.IncRetry(op)
		if attempt >= deps.MaxAttempts {
			break
		}
		if deps.Log != nil {
			deps.Log.Warn("Retrying aggregate write", "op", op, "attempt", attempt, "error", mapped)
		}
		select {
		case <-ctx.Done():
			mapped = MapError(op, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
			continue
		}
		break
	}

	status := "success"
	if mapped != nil {
		status = aggregateErrorStatus(mapped)
		if domainagg.IsCode(mapped, domainagg.CodeConflict) {
			deps.Hooks.IncConflict(op)
		}
	}
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("aggregate.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}
