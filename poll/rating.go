package poll

import (
	"strconv"

	"bookclubbot/gateway"
)

// RatingScale is the fixed ordered set of rating values a voter can pick.
var RatingScale = []float64{0, 1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5}

// ValidRating reports whether v is one of the scale values. Values arrive
// from selectable options, so anything else means a corrupt identifier and is
// rejected, never coerced.
func ValidRating(v float64) bool {
	for _, r := range RatingScale {
		if r == v {
			return true
		}
	}
	return false
}

// FormatRating renders a scale value the way it appears on the prompt.
func FormatRating(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseRating converts an interaction's selected value back into a scale
// rating. Returns ErrInvalidRating for anything outside the scale.
func ParseRating(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !ValidRating(v) {
		return 0, ErrInvalidRating
	}
	return v, nil
}

// PromptOptions returns the selectable options for a rating prompt, in scale
// order.
func PromptOptions() []gateway.PromptOption {
	opts := make([]gateway.PromptOption, 0, len(RatingScale))
	for _, r := range RatingScale {
		label := FormatRating(r)
		opts = append(opts, gateway.PromptOption{Label: label, Value: label})
	}
	return opts
}
