package fsrs

import "math"

const (
	decay  = -0.5
	factor = 19.0 / 81.0

	minStability  = 0.01
	minDifficulty = 1.0
	maxDifficulty = 10.0
)

// ForgettingCurve is the FSRS power-law recall probability after t days at stability s.
// It drives interval and stability math; it is not the retrievability reported to callers.
func ForgettingCurve(t, s float64) float64 {
	if s <= 0 {
		return 1
	}
	if t < 0 {
		t = 0
	}
	return math.Pow(1+factor*t/s, decay)
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, minDifficulty), maxDifficulty)
}

func clampStability(s float64) float64 {
	return math.Max(s, minStability)
}

func (m *Model) initStability(g Rating) float64 {
	return math.Max(m.w[int(g)-1], 0.1)
}

func (m *Model) rawInitDifficulty(g Rating) float64 {
	return m.w[4] - math.Exp(m.w[5]*float64(g-1)) + 1
}

func (m *Model) initDifficulty(g Rating) float64 {
	return clampDifficulty(m.rawInitDifficulty(g))
}

// nextDifficulty applies linear damping then reverts toward D0(Easy).
func (m *Model) nextDifficulty(d float64, g Rating) float64 {
	delta := -m.w[6] * float64(g-3)
	damped := d + delta*(10-d)/9
	reverted := m.w[7]*m.rawInitDifficulty(Easy) + (1-m.w[7])*damped
	return clampDifficulty(reverted)
}

func (m *Model) recallStability(d, s, r float64, g Rating) float64 {
	hardPenalty := 1.0
	if g == Hard {
		hardPenalty = m.w[15]
	}
	easyBonus := 1.0
	if g == Easy {
		easyBonus = m.w[16]
	}
	growth := math.Exp(m.w[8]) *
		(11 - d) *
		math.Pow(s, -m.w[9]) *
		(math.Exp((1-r)*m.w[10]) - 1) *
		hardPenalty *
		easyBonus
	return clampStability(s * (1 + growth))
}

func (m *Model) forgetStability(d, s, r float64) float64 {
	sf := m.w[11] *
		math.Pow(d, -m.w[12]) *
		(math.Pow(s+1, m.w[13]) - 1) *
		math.Exp((1-r)*m.w[14])
	return clampStability(math.Min(sf, s))
}

func (m *Model) shortTermStability(s float64, g Rating) float64 {
	return clampStability(s * math.Exp(m.w[17]*(float64(g)-3+m.w[18])))
}

// nextInterval converts stability into whole days at the configured retention.
func (m *Model) nextInterval(s float64) int {
	raw := s / factor * (math.Pow(m.cfg.TargetRetention, 1/decay) - 1)
	ivl := int(math.Round(raw))
	return min(max(ivl, 1), m.cfg.MaximumInterval)
}
