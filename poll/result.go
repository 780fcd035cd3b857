package poll

import (
	"fmt"

	"bookclubbot/gateway"
	"bookclubbot/store"
)

// OptionCount is the number of votes one scale option received.
type OptionCount struct {
	Rating float64
	Count  int
}

// Result is the aggregate outcome of a resolved poll.
type Result struct {
	PollID    string
	ChannelID string
	Title     string
	Total     int
	Average   float64
	HasVotes  bool
	Counts    []OptionCount
}

// Aggregate computes the result from a poll's stored votes. A poll with no
// votes yields HasVotes=false and a zero Average, never a division fault.
func Aggregate(p *store.Poll) *Result {
	res := &Result{
		PollID:    p.ID,
		ChannelID: p.ChannelID,
		Title:     p.Title,
		Total:     len(p.Votes),
	}

	byRating := make(map[float64]int, len(RatingScale))
	var sum float64
	for _, v := range p.Votes {
		byRating[v]++
		sum += v
	}
	for _, r := range RatingScale {
		if n := byRating[r]; n > 0 {
			res.Counts = append(res.Counts, OptionCount{Rating: r, Count: n})
		}
	}
	if res.Total > 0 {
		res.HasVotes = true
		res.Average = sum / float64(res.Total)
	}
	return res
}

// Summary renders the result as a rich reply for the poll's channel.
func (r *Result) Summary() gateway.Message {
	msg := gateway.Message{
		Title: fmt.Sprintf("Poll results: %s", r.Title),
	}
	if !r.HasVotes {
		msg.Body = "Nobody voted. Average rating: N/A"
		return msg
	}

	msg.Body = fmt.Sprintf("%d vote(s), average rating %.2f", r.Total, r.Average)
	for _, c := range r.Counts {
		msg.Fields = append(msg.Fields, gateway.Field{
			Name:  FormatRating(c.Rating),
			Value: fmt.Sprintf("%d vote(s)", c.Count),
		})
	}
	return msg
}
