package fsrs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Rating is the learner's self-reported recall outcome.
type Rating int8

const (
	Again Rating = iota + 1
	Hard
	Good
	Easy
)

var ratingNames = [...]string{Again: "again", Hard: "hard", Good: "good", Easy: "easy"}

// AllRatings lists every valid rating in ascending order.
var AllRatings = [...]Rating{Again, Hard, Good, Easy}

func (r Rating) Valid() bool { return r >= Again && r <= Easy }

func (r Rating) String() string {
	if r.Valid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("rating(%d)", int(r))
}

// Passed reports whether the review counts as a successful recall (Good or Easy).
func (r Rating) Passed() bool { return r >= Good }

// ParseRating accepts the numeric form 1..4.
func ParseRating(v int) (Rating, error) {
	r := Rating(v)
	if !r.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRating, v)
	}
	return r, nil
}

// ParseRatingName accepts "again", "hard", "good" or "easy" (case-insensitive).
func ParseRatingName(s string) (Rating, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, r := range AllRatings {
		if ratingNames[r] == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
}

// MarshalJSON keeps the numeric wire form used by clients (1..4).
func (r Rating) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return json.Marshal(int(r))
}

func (r *Rating) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		var name string
		if err2 := json.Unmarshal(data, &name); err2 != nil {
			return fmt.Errorf("%w: %s", ErrInvalidRating, data)
		}
		parsed, err := ParseRatingName(name)
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	}
	parsed, err := ParseRating(n)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
