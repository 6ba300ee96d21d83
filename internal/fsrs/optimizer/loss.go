package optimizer

import (
	"math"

	"github.com/yungbote/neurobridge-srs/internal/fsrs"
)

const (
	bceClamp = 1e-7
	gradEps  = 1e-5
)

func bceLoss(pred, label float64) float64 {
	p := math.Max(bceClamp, math.Min(pred, 1-bceClamp))
	return -(label*math.Log(p) + (1-label)*math.Log(1-p))
}

// batchLoss replays every sequence through a model built from w and averages
// the cross-entropy of the predicted recall on cross-day reviews.
func batchLoss(base fsrs.Config, w fsrs.Weights, seqs []sequence) float64 {
	cfg := base
	cfg.Weights = w.Clamp()
	cfg.EnableFuzz = false
	model, err := fsrs.New(cfg)
	if err != nil {
		return math.Inf(1)
	}

	var total float64
	var count int
	for _, seq := range seqs {
		mem := fsrs.Memory{Difficulty: 5, State: fsrs.StateNew}
		for i, st := range seq.steps {
			if i > 0 && st.elapsedDays >= 1 && mem.Stability > 0 {
				total += bceLoss(fsrs.ForgettingCurve(st.elapsedDays, mem.Stability), st.label)
				count++
			}
			next, err := model.ApplyReview(mem, st.rating, st.at)
			if err != nil {
				break
			}
			mem = next
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// numericalGradient estimates dL/dw with central differences.
func numericalGradient(base fsrs.Config, w fsrs.Weights, seqs []sequence) fsrs.Weights {
	var grad fsrs.Weights
	for i := range w {
		plus, minus := w, w
		plus[i] += gradEps
		minus[i] -= gradEps
		plus, minus = plus.Clamp(), minus.Clamp()
		span := plus[i] - minus[i]
		if span == 0 {
			continue
		}
		grad[i] = (batchLoss(base, plus, seqs) - batchLoss(base, minus, seqs)) / span
	}
	return grad
}
