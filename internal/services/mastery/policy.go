package mastery

import (
	"fmt"
	"math"
	"time"

	types "github.com/yungbote/neurobridge-srs/internal/domain"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
)

// Policy combines four per-topic inputs into one mastery score.
type Policy struct {
	WeightMature         float64 `json:"weight_mature" yaml:"weight_mature"`
	WeightStability      float64 `json:"weight_stability" yaml:"weight_stability"`
	WeightRetrievability float64 `json:"weight_retrievability" yaml:"weight_retrievability"`
	WeightRetention      float64 `json:"weight_retention" yaml:"weight_retention"`

	// MatureStabilityDays is the stability a review-state card needs to count as mature.
	MatureStabilityDays float64 `json:"mature_stability_days" yaml:"mature_stability_days"`
	// StabilityCapDays maps mean stability onto [0,1].
	StabilityCapDays float64       `json:"stability_cap_days" yaml:"stability_cap_days"`
	RetentionWindow  time.Duration `json:"retention_window" yaml:"retention_window"`
}

func DefaultPolicy() Policy {
	return Policy{
		WeightMature:         0.3,
		WeightStability:      0.3,
		WeightRetrievability: 0.2,
		WeightRetention:      0.2,
		MatureStabilityDays:  21,
		StabilityCapDays:     30,
		RetentionWindow:      30 * 24 * time.Hour,
	}
}

func (p Policy) Validate() error {
	ws := []float64{p.WeightMature, p.WeightStability, p.WeightRetrievability, p.WeightRetention}
	sum := 0.0
	for _, w := range ws {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("mastery weights must be finite and non-negative, got %v", ws)
		}
		sum += w
	}
	if sum <= 0 {
		return fmt.Errorf("mastery weights must have a positive sum")
	}
	if p.MatureStabilityDays <= 0 || p.StabilityCapDays <= 0 {
		return fmt.Errorf("mastery thresholds must be positive")
	}
	if p.RetentionWindow <= 0 {
		return fmt.Errorf("mastery retention window must be positive")
	}
	return nil
}

// Normalized rescales the weights to sum to 1.
func (p Policy) Normalized() Policy {
	sum := p.WeightMature + p.WeightStability + p.WeightRetrievability + p.WeightRetention
	if sum <= 0 {
		return p
	}
	p.WeightMature /= sum
	p.WeightStability /= sum
	p.WeightRetrievability /= sum
	p.WeightRetention /= sum
	return p
}

// Breakdown is the score and the inputs it was computed from.
type Breakdown struct {
	Score              float64
	MatureFraction     float64
	StabilityScore     float64
	MeanRetrievability float64
	RecentRetention    float64
	CardCount          int
	RecentReviewCount  int
}

// Compute scores a topic from its cards and the pass/total review counts inside
// the retention window. A topic without cards scores 0.
func (p Policy) Compute(cards []*types.Card, reviewsTotal, reviewsPassed int64, now time.Time) Breakdown {
	p = p.Normalized()
	out := Breakdown{CardCount: len(cards), RecentReviewCount: int(reviewsTotal)}
	if reviewsTotal > 0 {
		out.RecentRetention = clamp01(float64(reviewsPassed) / float64(reviewsTotal))
	}
	if len(cards) == 0 {
		return out
	}

	mature := 0
	sumStability := 0.0
	sumR := 0.0
	for _, c := range cards {
		if c.State == fsrs.StateReview && c.Stability >= p.MatureStabilityDays {
			mature++
		}
		sumStability += c.Stability
		sumR += fsrs.Retrievability(c.Stability, c.LastReviewedAt, now)
	}
	n := float64(len(cards))
	out.MatureFraction = float64(mature) / n
	out.StabilityScore = math.Min(sumStability/n/p.StabilityCapDays, 1)
	out.MeanRetrievability = clamp01(sumR / n)

	out.Score = clamp01(p.WeightMature*out.MatureFraction +
		p.WeightStability*out.StabilityScore +
		p.WeightRetrievability*out.MeanRetrievability +
		p.WeightRetention*out.RecentRetention)
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
