package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	log15 "github.com/inconshreveable/log15/v3"
	"github.com/redis/go-redis/v9"

	"bookclubbot/cache"
	"bookclubbot/gateway"
	"bookclubbot/meeting"
	"bookclubbot/poll"
	"bookclubbot/sheets"
	"bookclubbot/store"
)

// fakeGateway stands in for the whole platform client: messenger for the
// poll engine, calendar for the scheduler and reply channel for the bot.
type fakeGateway struct {
	mu         sync.Mutex
	nextID     int
	messages   []gateway.Message
	prompts    []string
	ephemerals []string
	channels   []gateway.Channel
}

func (f *fakeGateway) PostMessage(ctx context.Context, channelID string, msg gateway.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	f.nextID++
	return fmt.Sprintf("msg-%d", f.nextID), nil
}

func (f *fakeGateway) PostPrompt(ctx context.Context, channelID string, msg gateway.Message, options []gateway.PromptOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("prompt-%d", f.nextID)
	f.prompts = append(f.prompts, id)
	return id, nil
}

func (f *fakeGateway) PostEphemeral(ctx context.Context, channelID, userID, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemerals = append(f.ephemerals, body)
	return nil
}

func (f *fakeGateway) DisableOptions(ctx context.Context, channelID, messageID string) error {
	return nil
}

func (f *fakeGateway) GetMessage(ctx context.Context, channelID, messageID string) error {
	return nil
}

func (f *fakeGateway) ListChannels(ctx context.Context) ([]gateway.Channel, error) {
	return f.channels, nil
}

func (f *fakeGateway) CreateScheduledEvent(ctx context.Context, channelID string, start, end time.Time, title, description string) (*gateway.ScheduledEvent, error) {
	return &gateway.ScheduledEvent{ID: "ev-1", URL: "https://example.test/ev-1"}, nil
}

func (f *fakeGateway) DeleteScheduledEvent(ctx context.Context, eventID string) error {
	return nil
}

func (f *fakeGateway) replies() []gateway.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]gateway.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

func newTestBot(t *testing.T, category string) (*Bot, *fakeGateway, *store.MemoryStore) {
	t.Helper()
	logger := log15.New()
	logger.SetHandler(log15.DiscardHandler())

	st := store.NewMemoryStore()
	gw := &fakeGateway{channels: []gateway.Channel{
		{ID: "text-1", Name: "general", Kind: gateway.ChannelKindText, Category: "club"},
		{ID: "voice-1", Name: "club hall", Kind: gateway.ChannelKindVoice},
	}}
	engine := poll.NewEngine(st, gw, logger)
	t.Cleanup(engine.Shutdown)

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	scheduler := meeting.NewScheduler(st, gw, meeting.NewParser(loc), "", logger)

	// Unreachable sheet host: book commands exercise the fallback dataset.
	source := sheets.NewSource("http://127.0.0.1:1", logger)

	mr := miniredis.RunT(t)
	c := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), logger)

	return New(st, gw, engine, scheduler, source, c, "!", category, logger), gw, st
}

func event(text string) gateway.InboundEvent {
	return gateway.InboundEvent{
		Type:      "message",
		ChannelID: "text-1",
		UserID:    "alice",
		Text:      text,
	}
}

func TestUnknownVerbIsSilentlyIgnored(t *testing.T) {
	b, gw, _ := newTestBot(t, "")
	b.HandleEvent(context.Background(), event("!frobnicate now"))
	if n := len(gw.replies()); n != 0 {
		t.Fatalf("expected silence, got %d replies", n)
	}
}

func TestNonCommandTextIsIgnored(t *testing.T) {
	b, gw, _ := newTestBot(t, "")
	b.HandleEvent(context.Background(), event("has anyone finished chapter 3?"))
	if n := len(gw.replies()); n != 0 {
		t.Fatalf("expected silence, got %d replies", n)
	}
}

func TestVerbIsCaseInsensitive(t *testing.T) {
	b, gw, _ := newTestBot(t, "")
	b.HandleEvent(context.Background(), event("!HELP"))
	replies := gw.replies()
	if len(replies) != 1 || replies[0].Title != "Book club commands" {
		t.Fatalf("expected help reply, got %+v", replies)
	}
}

func TestSetPointThenPoint(t *testing.T) {
	b, gw, _ := newTestBot(t, "")
	b.HandleEvent(context.Background(), event("!setpoint chapter 12"))
	b.HandleEvent(context.Background(), event("!point"))

	replies := gw.replies()
	if len(replies) != 2 {
		t.Fatalf("expected two replies, got %d", len(replies))
	}
	if !strings.Contains(replies[1].Body, "chapter 12") {
		t.Fatalf("point reply %q missing the stored point", replies[1].Body)
	}
}

func TestSetPointRequiresArgument(t *testing.T) {
	b, gw, st := newTestBot(t, "")
	b.HandleEvent(context.Background(), event("!setpoint"))

	replies := gw.replies()
	if len(replies) != 1 || !strings.Contains(replies[0].Body, "setpoint") {
		t.Fatalf("expected corrective reply, got %+v", replies)
	}
	if _, err := st.GetSettings(context.Background()); err == nil {
		t.Fatal("no settings should be written on invalid input")
	}
}

func TestBooksListsFallbackData(t *testing.T) {
	b, gw, _ := newTestBot(t, "")
	b.HandleEvent(context.Background(), event("!books"))

	replies := gw.replies()
	if len(replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(replies))
	}
	var found bool
	for _, f := range replies[0].Fields {
		if strings.Contains(f.Name, "Piranesi") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected fallback book in reply, got %+v", replies[0].Fields)
	}
}

func TestFinishedListsRatings(t *testing.T) {
	b, gw, _ := newTestBot(t, "")
	b.HandleEvent(context.Background(), event("!finished"))

	replies := gw.replies()
	if len(replies) != 1 || len(replies[0].Fields) == 0 {
		t.Fatalf("expected finished list, got %+v", replies)
	}
	if !strings.Contains(replies[0].Fields[0].Value, "4.5") {
		t.Fatalf("expected a rating in %+v", replies[0].Fields[0])
	}
}

func TestCategoryRestrictionBlocksOtherChannels(t *testing.T) {
	b, gw, _ := newTestBot(t, "club")
	ev := event("!help")
	ev.ChannelCategory = "off-topic"
	b.HandleEvent(context.Background(), ev)
	if n := len(gw.replies()); n != 0 {
		t.Fatalf("command outside the category must be ignored, got %d replies", n)
	}

	ev.ChannelCategory = "club"
	b.HandleEvent(context.Background(), ev)
	if n := len(gw.replies()); n != 1 {
		t.Fatalf("command inside the category must run, got %d replies", n)
	}
}

func TestCategoryRestrictionFailsOpenWhenMissing(t *testing.T) {
	// The configured category does not exist on this server, so the
	// restriction is not applicable.
	b, gw, _ := newTestBot(t, "reading-club")
	ev := event("!help")
	ev.ChannelCategory = "off-topic"
	b.HandleEvent(context.Background(), ev)
	if n := len(gw.replies()); n != 1 {
		t.Fatalf("expected fail-open dispatch, got %d replies", n)
	}
}

func TestEventDedup(t *testing.T) {
	b, gw, _ := newTestBot(t, "")
	ev := event("!help")
	ev.DeliveryID = "dup-1"
	b.HandleEvent(context.Background(), ev)
	b.HandleEvent(context.Background(), ev)
	if n := len(gw.replies()); n != 1 {
		t.Fatalf("redelivered event must run once, got %d replies", n)
	}
}

func TestPollCommandCreatesPoll(t *testing.T) {
	b, gw, st := newTestBot(t, "")
	b.HandleEvent(context.Background(), event("!poll Piranesi"))

	if len(gw.prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(gw.prompts))
	}
	polls, _ := st.FindActivePolls(context.Background())
	if len(polls) != 1 || polls[0].Title != "Piranesi" {
		t.Fatalf("expected active poll, got %+v", polls)
	}
}

func TestEndPollAnnouncesOnceThenReportsResolved(t *testing.T) {
	b, gw, st := newTestBot(t, "")
	b.HandleEvent(context.Background(), event("!poll Piranesi"))
	polls, _ := st.FindActivePolls(context.Background())
	if len(polls) != 1 {
		t.Fatalf("expected one poll, got %d", len(polls))
	}
	id := polls[0].ID

	b.HandleEvent(context.Background(), event("!endpoll "+id))
	replies := gw.replies()
	if len(replies) != 1 || !strings.HasPrefix(replies[0].Title, "Poll results") {
		t.Fatalf("expected results announcement, got %+v", replies)
	}

	b.HandleEvent(context.Background(), event("!endpoll "+id))
	replies = gw.replies()
	if len(replies) != 2 || !strings.Contains(replies[1].Body, "already resolved") {
		t.Fatalf("expected already-resolved reply, got %+v", replies)
	}
}

func TestEndPollUnknownID(t *testing.T) {
	b, gw, _ := newTestBot(t, "")
	b.HandleEvent(context.Background(), event("!endpoll nope"))
	replies := gw.replies()
	if len(replies) != 1 || !strings.Contains(replies[0].Body, "don't know that poll") {
		t.Fatalf("expected not-found reply, got %+v", replies)
	}
}

func TestMeetingCommandSchedulesAndReplies(t *testing.T) {
	b, gw, st := newTestBot(t, "")
	b.HandleEvent(context.Background(), event("!meeting December 15 19:00"))

	replies := gw.replies()
	if len(replies) != 1 || !strings.Contains(replies[0].Body, "Meeting scheduled") {
		t.Fatalf("expected schedule confirmation, got %+v", replies)
	}
	settings, err := st.GetSettings(context.Background())
	if err != nil || !settings.HasMeeting() {
		t.Fatalf("meeting not stored: %+v, %v", settings, err)
	}
}

func TestMeetingCommandRejectsGibberish(t *testing.T) {
	b, gw, st := newTestBot(t, "")
	b.HandleEvent(context.Background(), event("!meeting whenever feels right"))

	replies := gw.replies()
	if len(replies) != 1 || !strings.Contains(replies[0].Body, "couldn't make sense") {
		t.Fatalf("expected corrective reply, got %+v", replies)
	}
	if _, err := st.GetSettings(context.Background()); err == nil {
		t.Fatal("invalid input must not change state")
	}
}

func TestInteractionRecordsVoteAndAcksPrivately(t *testing.T) {
	b, gw, st := newTestBot(t, "")
	b.HandleEvent(context.Background(), event("!poll Piranesi"))
	polls, _ := st.FindActivePolls(context.Background())
	id := polls[0].ID

	b.HandleInteraction(context.Background(), gateway.Interaction{
		DeliveryID: "i-1",
		Type:       "option_selected",
		MessageID:  id,
		ChannelID:  "text-1",
		UserID:     "bob",
		Value:      "4.5",
	})

	stored, _ := st.FindPoll(context.Background(), id)
	if stored.Votes["bob"] != 4.5 {
		t.Fatalf("vote not stored: %+v", stored.Votes)
	}
	if len(gw.ephemerals) != 1 || !strings.Contains(gw.ephemerals[0], "4.5") {
		t.Fatalf("expected private ack, got %v", gw.ephemerals)
	}
	if n := len(gw.replies()); n != 0 {
		t.Fatalf("votes must never be broadcast, got %d channel messages", n)
	}
}

func TestInteractionRedeliveryAppliesOnce(t *testing.T) {
	b, gw, st := newTestBot(t, "")
	b.HandleEvent(context.Background(), event("!poll Piranesi"))
	polls, _ := st.FindActivePolls(context.Background())
	id := polls[0].ID

	in := gateway.Interaction{
		DeliveryID: "i-dup",
		Type:       "option_selected",
		MessageID:  id,
		ChannelID:  "text-1",
		UserID:     "bob",
		Value:      "3",
	}
	b.HandleInteraction(context.Background(), in)
	b.HandleInteraction(context.Background(), in)

	if len(gw.ephemerals) != 1 {
		t.Fatalf("redelivered interaction must ack once, got %v", gw.ephemerals)
	}
}

func TestInteractionRejectsCorruptValue(t *testing.T) {
	b, gw, st := newTestBot(t, "")
	b.HandleEvent(context.Background(), event("!poll Piranesi"))
	polls, _ := st.FindActivePolls(context.Background())
	id := polls[0].ID

	b.HandleInteraction(context.Background(), gateway.Interaction{
		DeliveryID: "i-bad",
		Type:       "option_selected",
		MessageID:  id,
		ChannelID:  "text-1",
		UserID:     "bob",
		Value:      "7.3",
	})

	stored, _ := st.FindPoll(context.Background(), id)
	if len(stored.Votes) != 0 {
		t.Fatalf("off-scale value must not be stored: %+v", stored.Votes)
	}
	if len(gw.ephemerals) != 1 || !strings.Contains(gw.ephemerals[0], "isn't valid") {
		t.Fatalf("expected rejection ack, got %v", gw.ephemerals)
	}
}
