package store

import "time"

// VoteMap maps a voter id to the rating they selected. A voter has at most
// one entry; setting an existing key replaces the prior rating.
type VoteMap map[string]float64

// Set records value for voterID and reports the prior rating, if any.
func (v VoteMap) Set(voterID string, value float64) (prior float64, existed bool) {
	prior, existed = v[voterID]
	v[voterID] = value
	return prior, existed
}

// Poll is a rating poll anchored to the chat message that presents it.
// The anchor message id is the primary key.
type Poll struct {
	ID        string
	ChannelID string
	Title     string
	ExpiresAt time.Time
	IsActive  bool
	Votes     VoteMap
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers can mutate votes without aliasing
// whatever backing copy the store holds.
func (p *Poll) Clone() *Poll {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Votes = make(VoteMap, len(p.Votes))
	for k, v := range p.Votes {
		cp.Votes[k] = v
	}
	return &cp
}

// Settings is the single global settings document: the club's reading point
// and the currently scheduled meeting.
type Settings struct {
	ReadingPoint string
	MeetingDate  string
	MeetingTime  string
	MeetingAt    *time.Time
	EventID      string
	UpdatedAt    time.Time
}

// HasMeeting reports whether a meeting is currently stored.
func (s *Settings) HasMeeting() bool {
	return s != nil && s.MeetingAt != nil
}
