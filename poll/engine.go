package poll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log15 "github.com/inconshreveable/log15/v3"

	"bookclubbot/gateway"
	"bookclubbot/store"
)

// Duration is how long a poll accepts votes after creation.
const Duration = 72 * time.Hour

var (
	ErrEmptyTitle    = errors.New("poll: title must not be empty")
	ErrPollNotFound  = errors.New("poll: not found")
	ErrPollExpired   = errors.New("poll: no longer accepting votes")
	ErrInvalidRating = errors.New("poll: rating is not on the scale")
)

// Outcome describes what casting a vote did.
type Outcome int

const (
	VoteRecorded Outcome = iota
	VoteChanged
)

// Messenger is the slice of the gateway the engine needs.
type Messenger interface {
	PostMessage(ctx context.Context, channelID string, msg gateway.Message) (string, error)
	PostPrompt(ctx context.Context, channelID string, msg gateway.Message, options []gateway.PromptOption) (string, error)
	DisableOptions(ctx context.Context, channelID, messageID string) error
	GetMessage(ctx context.Context, channelID, messageID string) error
}

// Engine runs rating polls. The store's expires_at plus is_active flag is the
// source of truth for expiry; in-process countdowns only make resolution
// prompt. Recover rebuilds countdowns after a restart, and the reconcile
// sweep catches any deadline both paths missed.
type Engine struct {
	store store.Store
	msgr  Messenger
	log   log15.Logger
	now   func() time.Time
	ttl   time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	locks  map[string]*sync.Mutex
}

func NewEngine(st store.Store, msgr Messenger, logger log15.Logger) *Engine {
	return &Engine{
		store:  st,
		msgr:   msgr,
		log:    logger.New("module", "poll"),
		now:    time.Now,
		ttl:    Duration,
		timers: make(map[string]*time.Timer),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Create opens a rating poll in channelID. The prompt message's id becomes
// the poll id. Delivery failure propagates and nothing is persisted.
func (e *Engine) Create(ctx context.Context, channelID, title string) (*store.Poll, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	now := e.now()
	expiresAt := now.Add(e.ttl)
	prompt := gateway.Message{
		Title: fmt.Sprintf("Rate %q", title),
		Body:  fmt.Sprintf("Pick a rating below. Voting closes %s.", expiresAt.UTC().Format("Mon, 2 Jan 15:04 MST")),
	}

	msgID, err := e.msgr.PostPrompt(ctx, channelID, prompt, PromptOptions())
	if err != nil {
		return nil, fmt.Errorf("poll: post prompt: %w", err)
	}

	p := &store.Poll{
		ID:        msgID,
		ChannelID: channelID,
		Title:     title,
		ExpiresAt: expiresAt,
		IsActive:  true,
		Votes:     store.VoteMap{},
		CreatedAt: now,
	}
	if err := e.store.UpsertPoll(ctx, p); err != nil {
		return nil, err
	}

	e.armTimer(p.ID, e.ttl)
	e.log.Info("poll created", "poll", p.ID, "channel", channelID, "title", title, "expires_at", expiresAt)
	return p, nil
}

// CastVote records one vote for voterID on an active poll. A repeat of the
// same value is an idempotent no-op reported as VoteRecorded; a different
// value replaces the prior one and reports VoteChanged. The vote is persisted
// before the call returns.
func (e *Engine) CastVote(ctx context.Context, pollID, voterID string, value float64) (Outcome, error) {
	if !ValidRating(value) {
		return 0, ErrInvalidRating
	}

	// Votes read the whole record, patch the map and write it back, so
	// concurrent casts on the same poll must not interleave, and a cast must
	// not straddle the resolution flip. Resolve takes the same lock.
	lock := e.pollLock(pollID)
	lock.Lock()
	defer lock.Unlock()

	p, err := e.store.FindPoll(ctx, pollID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, ErrPollNotFound
	}
	if err != nil {
		return 0, err
	}
	if !p.IsActive || !e.now().Before(p.ExpiresAt) {
		return 0, ErrPollExpired
	}

	prior, existed := p.Votes.Set(voterID, value)
	if existed && prior == value {
		return VoteRecorded, nil
	}
	if err := e.store.UpsertPoll(ctx, p); err != nil {
		return 0, err
	}

	if existed {
		e.log.Debug("vote changed", "poll", pollID, "voter", voterID)
		return VoteChanged, nil
	}
	e.log.Debug("vote recorded", "poll", pollID, "voter", voterID)
	return VoteRecorded, nil
}

// Resolve flips a poll inactive and announces its aggregate. It is reachable
// from the countdown, the endpoll command, the reconcile sweep and recovery;
// the store's conditional update guarantees exactly one caller performs the
// transition. Losers return (nil, nil). Announcement and disabling the prompt
// options are best-effort after the persisted flip.
func (e *Engine) Resolve(ctx context.Context, pollID string) (*Result, error) {
	lock := e.pollLock(pollID)
	lock.Lock()
	claimed, err := e.store.MarkPollResolved(ctx, pollID)
	lock.Unlock()
	if err != nil {
		return nil, err
	}
	if !claimed {
		if _, err := e.store.FindPoll(ctx, pollID); errors.Is(err, store.ErrNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, nil
	}

	e.cancelTimer(pollID)
	e.dropLock(pollID)

	p, err := e.store.FindPoll(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("poll: read resolved poll %s: %w", pollID, err)
	}
	res := Aggregate(p)
	e.log.Info("poll resolved", "poll", pollID, "votes", res.Total)

	if _, err := e.msgr.PostMessage(ctx, p.ChannelID, res.Summary()); err != nil {
		e.log.Error("failed to announce poll results", "poll", pollID, "err", err)
	}
	if err := e.msgr.DisableOptions(ctx, p.ChannelID, p.ID); err != nil {
		e.log.Warn("failed to disable poll options", "poll", pollID, "err", err)
	}
	return res, nil
}

// Recover reconciles active polls after a restart: already-expired polls are
// resolved immediately, the rest get their countdowns re-armed for the
// remaining duration. A poll whose prompt message is gone stays resolvable
// from stored votes but cannot take new interactive votes; that degraded
// state is logged.
func (e *Engine) Recover(ctx context.Context) error {
	polls, err := e.store.FindActivePolls(ctx)
	if err != nil {
		return err
	}

	for _, p := range polls {
		remaining := p.ExpiresAt.Sub(e.now())
		if remaining <= 0 {
			e.log.Info("resolving poll missed while down", "poll", p.ID, "expired_at", p.ExpiresAt)
			if _, err := e.Resolve(ctx, p.ID); err != nil {
				e.log.Error("recovery resolve failed", "poll", p.ID, "err", err)
			}
			continue
		}

		e.armTimer(p.ID, remaining)
		if err := e.msgr.GetMessage(ctx, p.ChannelID, p.ID); err != nil {
			e.log.Warn("poll prompt message unreachable, interactive voting degraded",
				"poll", p.ID, "channel", p.ChannelID, "err", err)
		}
	}
	e.log.Info("poll recovery complete", "active", len(polls))
	return nil
}

// Reconcile resolves any active poll already past its deadline. Run
// periodically as a safety net behind the per-poll countdowns.
func (e *Engine) Reconcile(ctx context.Context) {
	polls, err := e.store.FindActivePolls(ctx)
	if err != nil {
		e.log.Error("reconcile scan failed", "err", err)
		return
	}
	for _, p := range polls {
		if e.now().Before(p.ExpiresAt) {
			continue
		}
		if _, err := e.Resolve(ctx, p.ID); err != nil {
			e.log.Error("reconcile resolve failed", "poll", p.ID, "err", err)
		}
	}
}

// Shutdown stops every armed countdown. Deadlines stay durable in the store.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

func (e *Engine) armTimer(pollID string, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.timers[pollID]; ok {
		return
	}
	e.timers[pollID] = time.AfterFunc(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := e.Resolve(ctx, pollID); err != nil {
			e.log.Error("countdown resolve failed", "poll", pollID, "err", err)
		}
	})
}

// pollLock returns the mutex serializing mutations of one poll record.
func (e *Engine) pollLock(pollID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[pollID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[pollID] = l
	}
	return l
}

// dropLock forgets a resolved poll's mutex. A straggler still holding the old
// pointer re-reads the record and finds it inactive, so nothing is lost.
func (e *Engine) dropLock(pollID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.locks, pollID)
}

func (e *Engine) cancelTimer(pollID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[pollID]; ok {
		t.Stop()
		delete(e.timers, pollID)
	}
}
