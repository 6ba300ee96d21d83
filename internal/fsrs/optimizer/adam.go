package optimizer

import (
	"math"

	"github.com/yungbote/neurobridge-srs/internal/fsrs"
)

// adam is Adam with bias correction (beta1 0.9, beta2 0.999, eps 1e-8).
type adam struct {
	lr           float64
	beta1, beta2 float64
	eps          float64
	m, v         fsrs.Weights
	t            int
}

func newAdam(lr float64) *adam {
	return &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8}
}

func (a *adam) update(w, grad fsrs.Weights) fsrs.Weights {
	a.t++
	for i, g := range grad {
		if g == 0 {
			continue
		}
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g
		mHat := a.m[i] / (1 - math.Pow(a.beta1, float64(a.t)))
		vHat := a.v[i] / (1 - math.Pow(a.beta2, float64(a.t)))
		w[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
	}
	return w
}

// cosineAnnealing: lr_t = 0.5 * lr_max * (1 + cos(pi * t / T)).
type cosineAnnealing struct {
	lrMax float64
	tMax  int
	t     int
}

func (c *cosineAnnealing) lr() float64 {
	if c.tMax <= 0 {
		return c.lrMax
	}
	return 0.5 * c.lrMax * (1 + math.Cos(math.Pi*float64(c.t)/float64(c.tMax)))
}

func (c *cosineAnnealing) step() { c.t++ }
