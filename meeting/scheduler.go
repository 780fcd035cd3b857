package meeting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log15 "github.com/inconshreveable/log15/v3"

	"bookclubbot/gateway"
	"bookclubbot/store"
)

// ErrNoVoiceChannel means the platform has no voice channel to attach the
// meeting event to. This is a hard failure for event creation, reported to
// the caller rather than silently skipped.
var ErrNoVoiceChannel = errors.New("meeting: no voice channel available")

// EventDuration is the fixed length of a scheduled meeting event.
const EventDuration = 2 * time.Hour

// channelKeywords picks a voice channel by name when none is configured.
var channelKeywords = []string{"book", "club", "meeting"}

// Calendar is the slice of the gateway the scheduler needs.
type Calendar interface {
	ListChannels(ctx context.Context) ([]gateway.Channel, error)
	CreateScheduledEvent(ctx context.Context, channelID string, start, end time.Time, title, description string) (*gateway.ScheduledEvent, error)
	DeleteScheduledEvent(ctx context.Context, eventID string) error
}

// ScheduleResult reports a scheduling attempt. EventErr is non-nil on
// partial success: the meeting is saved locally but the calendar event could
// not be created.
type ScheduleResult struct {
	When     time.Time
	Event    *gateway.ScheduledEvent
	EventErr error
}

// Scheduler persists meeting settings and mirrors them to the platform's
// scheduled events.
type Scheduler struct {
	store          store.Store
	cal            Calendar
	Parser         *Parser
	log            log15.Logger
	voiceChannelID string
}

func NewScheduler(st store.Store, cal Calendar, parser *Parser, voiceChannelID string, logger log15.Logger) *Scheduler {
	return &Scheduler{
		store:          st,
		cal:            cal,
		Parser:         parser,
		log:            logger.New("module", "meeting"),
		voiceChannelID: voiceChannelID,
	}
}

// Schedule stores the meeting time and creates the calendar event. The local
// record is written first; calendar failure is reported in the result, never
// by the error return, and never rolls the record back.
func (s *Scheduler) Schedule(ctx context.Context, when time.Time, title string) (*ScheduleResult, error) {
	settings, err := s.store.GetSettings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		settings = &store.Settings{}
	} else if err != nil {
		return nil, err
	}

	// Replacing an existing meeting drops its old event first, best-effort.
	if settings.EventID != "" {
		if err := s.cal.DeleteScheduledEvent(ctx, settings.EventID); err != nil {
			s.log.Warn("failed to delete superseded event", "event", settings.EventID, "err", err)
		}
		settings.EventID = ""
	}

	local := when.In(s.Parser.Loc)
	settings.MeetingDate = local.Format("Monday, 2 January 2006")
	settings.MeetingTime = local.Format("15:04")
	settings.MeetingAt = &when
	if err := s.store.PutSettings(ctx, settings); err != nil {
		return nil, err
	}

	res := &ScheduleResult{When: when}
	ev, err := s.createEvent(ctx, when, title)
	if err != nil {
		s.log.Error("calendar event creation failed", "err", err)
		res.EventErr = err
		return res, nil
	}
	res.Event = ev

	settings.EventID = ev.ID
	if err := s.store.PutSettings(ctx, settings); err != nil {
		return nil, err
	}
	s.log.Info("meeting scheduled", "when", when, "event", ev.ID)
	return res, nil
}

// Cancel deletes the calendar event (best-effort) and clears the stored
// meeting.
func (s *Scheduler) Cancel(ctx context.Context) error {
	settings, err := s.store.GetSettings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !settings.HasMeeting() {
		return nil
	}

	if settings.EventID != "" {
		if err := s.cal.DeleteScheduledEvent(ctx, settings.EventID); err != nil {
			s.log.Warn("failed to delete event", "event", settings.EventID, "err", err)
		}
	}

	settings.MeetingDate = ""
	settings.MeetingTime = ""
	settings.MeetingAt = nil
	settings.EventID = ""
	if err := s.store.PutSettings(ctx, settings); err != nil {
		return err
	}
	s.log.Info("meeting cancelled")
	return nil
}

func (s *Scheduler) createEvent(ctx context.Context, when time.Time, title string) (*gateway.ScheduledEvent, error) {
	channels, err := s.cal.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("meeting: list channels: %w", err)
	}
	channelID, err := resolveVoiceChannel(channels, s.voiceChannelID)
	if err != nil {
		return nil, err
	}
	return s.cal.CreateScheduledEvent(ctx, channelID, when, when.Add(EventDuration), title,
		"Book club meeting. See you there!")
}

// resolveVoiceChannel picks the event channel: explicit id first, then a
// name-keyword match, then the first voice channel.
func resolveVoiceChannel(channels []gateway.Channel, explicitID string) (string, error) {
	var voice []gateway.Channel
	for _, ch := range channels {
		if ch.Kind != gateway.ChannelKindVoice {
			continue
		}
		if explicitID != "" && ch.ID == explicitID {
			return ch.ID, nil
		}
		voice = append(voice, ch)
	}
	for _, ch := range voice {
		name := strings.ToLower(ch.Name)
		for _, kw := range channelKeywords {
			if strings.Contains(name, kw) {
				return ch.ID, nil
			}
		}
	}
	if len(voice) > 0 {
		return voice[0].ID, nil
	}
	return "", ErrNoVoiceChannel
}
