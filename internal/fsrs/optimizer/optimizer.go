// Package optimizer fits FSRS weights to a learner's review history.
package optimizer

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"github.com/yungbote/neurobridge-srs/internal/fsrs"
)

var ErrNoReviews = errors.New("optimizer: no reviews provided")

// Options tunes the training loop. Zero values take defaults.
type Options struct {
	Epochs       int
	BatchSize    int // cross-day reviews per gradient step
	LearningRate float64
	MaxSeqLen    int
	Seed         int64
}

func (o Options) withDefaults() Options {
	if o.Epochs <= 0 {
		o.Epochs = 5
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 512
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 0.04
	}
	if o.MaxSeqLen <= 0 {
		o.MaxSeqLen = 64
	}
	if o.Seed == 0 {
		o.Seed = 42
	}
	return o
}

// Result is the best weight vector seen, never worse than the starting point.
type Result struct {
	Weights         fsrs.Weights
	Loss            float64
	InitialLoss     float64
	ReviewCount     int
	CrossDayReviews int
	Steps           int
}

// Optimize runs mini-batch Adam over numerical gradients starting from start.Weights.
// It checks ctx between gradient steps and returns ctx.Err() when cancelled.
func Optimize(ctx context.Context, reviews []Review, start fsrs.Config, opts Options) (Result, error) {
	if len(reviews) == 0 {
		return Result{}, ErrNoReviews
	}
	if err := start.Validate(); err != nil {
		return Result{}, err
	}
	opts = opts.withDefaults()

	seqs := buildSequences(reviews, opts.MaxSeqLen)
	res := Result{
		Weights:         start.Weights,
		ReviewCount:     len(reviews),
		CrossDayReviews: crossDayCount(seqs),
	}
	res.InitialLoss = batchLoss(start, start.Weights, seqs)
	res.Loss = res.InitialLoss
	if res.CrossDayReviews == 0 {
		return res, nil
	}

	stepsPerEpoch := int(math.Ceil(float64(res.CrossDayReviews) / float64(opts.BatchSize)))
	sched := &cosineAnnealing{lrMax: opts.LearningRate, tMax: stepsPerEpoch * opts.Epochs}
	opt := newAdam(opts.LearningRate)
	rng := rand.New(rand.NewSource(opts.Seed))

	w := start.Weights
	order := make([]int, len(seqs))
	for i := range order {
		order[i] = i
	}

	gradStep := func(batch []sequence) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		grad := numericalGradient(start, w, batch)
		opt.lr = sched.lr()
		w = opt.update(w, grad).Clamp()
		sched.step()
		res.Steps++
		return nil
	}

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		batch := make([]sequence, 0, 16)
		inBatch := 0
		for _, idx := range order {
			seq := seqs[idx]
			batch = append(batch, seq)
			inBatch += crossDayCount([]sequence{seq})
			if inBatch >= opts.BatchSize {
				if err := gradStep(batch); err != nil {
					return Result{}, err
				}
				batch = batch[:0:0]
				inBatch = 0
			}
		}
		if inBatch > 0 {
			if err := gradStep(batch); err != nil {
				return Result{}, err
			}
		}

		if loss := batchLoss(start, w, seqs); loss < res.Loss {
			res.Loss = loss
			res.Weights = w
		}
	}
	return res, nil
}

// Loss evaluates the replay loss of a config against reviews without fitting.
func Loss(reviews []Review, cfg fsrs.Config) float64 {
	return batchLoss(cfg, cfg.Weights, buildSequences(reviews, 0))
}
