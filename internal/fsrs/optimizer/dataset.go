package optimizer

import (
	"sort"
	"time"

	"github.com/yungbote/neurobridge-srs/internal/fsrs"
)

// Review is one historical review event used for fitting.
type Review struct {
	CardKey    string
	Rating     fsrs.Rating
	ReviewedAt time.Time
}

type step struct {
	rating      fsrs.Rating
	elapsedDays float64
	label       float64
	at          time.Time
}

type sequence struct {
	key   string
	steps []step
}

// buildSequences groups reviews per card in time order, truncated to maxLen.
// Sequences come back sorted by card key so every pass is deterministic.
func buildSequences(reviews []Review, maxLen int) []sequence {
	groups := make(map[string][]Review)
	for _, r := range reviews {
		if !r.Rating.Valid() {
			continue
		}
		groups[r.CardKey] = append(groups[r.CardKey], r)
	}

	out := make([]sequence, 0, len(groups))
	for key, rows := range groups {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].ReviewedAt.Before(rows[j].ReviewedAt) })
		if maxLen > 0 && len(rows) > maxLen {
			rows = rows[:maxLen]
		}
		steps := make([]step, len(rows))
		for i, r := range rows {
			var elapsed float64
			if i > 0 {
				elapsed = r.ReviewedAt.Sub(rows[i-1].ReviewedAt).Hours() / 24
			}
			label := 1.0
			if r.Rating == fsrs.Again {
				label = 0
			}
			steps[i] = step{rating: r.Rating, elapsedDays: elapsed, label: label, at: r.ReviewedAt}
		}
		out = append(out, sequence{key: key, steps: steps})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func crossDayCount(seqs []sequence) int {
	n := 0
	for _, s := range seqs {
		for _, st := range s.steps {
			if st.elapsedDays >= 1 {
				n++
			}
		}
	}
	return n
}
