package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/neurobridge-srs/internal/data/aggregates"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
)

// InjectedTxRunner wraps an optional real runner and injects failures around it.
// Without Inner the body runs with a Tx-less dbctx.Context.
type InjectedTxRunner struct {
	mu sync.Mutex

	Inner aggregates.TxRunner

	FailBegin error
	// FailBeginTimes limits FailBegin to the first n attempts; zero means every attempt.
	FailBeginTimes int
	FailCommit     error

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	failBegin := r.FailBegin
	if r.FailBeginTimes > 0 && r.BeginCalls > r.FailBeginTimes {
		failBegin = nil
	}
	failCommit := r.FailCommit
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}

	body := func(dbc dbctx.Context) error {
		if fn == nil {
			return nil
		}
		if err := fn(dbc); err != nil {
			return err
		}
		return failCommit
	}

	var err error
	if r.Inner != nil {
		err = r.Inner.InTx(ctx, body)
	} else {
		err = body(dbctx.Context{Ctx: ctx})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.RollbackCalls++
		return err
	}
	r.CommitCalls++
	return nil
}
