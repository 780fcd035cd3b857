// Package bot routes inbound chat events to command handlers.
package bot

import (
	"context"
	"strings"

	log15 "github.com/inconshreveable/log15/v3"

	"bookclubbot/cache"
	"bookclubbot/gateway"
	"bookclubbot/meeting"
	"bookclubbot/poll"
	"bookclubbot/sheets"
	"bookclubbot/store"
)

// Gateway is the slice of the platform client the handlers need.
type Gateway interface {
	PostMessage(ctx context.Context, channelID string, msg gateway.Message) (string, error)
	PostEphemeral(ctx context.Context, channelID, userID, body string) error
	ListChannels(ctx context.Context) ([]gateway.Channel, error)
}

type handlerFunc func(ctx context.Context, ev gateway.InboundEvent, args string)

// Bot dispatches commands by their first token after the prefix,
// case-insensitive. Unknown verbs are silently ignored.
type Bot struct {
	store     store.Store
	gw        Gateway
	engine    *poll.Engine
	scheduler *meeting.Scheduler
	source    *sheets.Source
	cache     *cache.Cache
	prefix    string
	category  string
	log       log15.Logger
	handlers  map[string]handlerFunc
}

func New(st store.Store, gw Gateway, engine *poll.Engine, scheduler *meeting.Scheduler, source *sheets.Source, c *cache.Cache, prefix, category string, logger log15.Logger) *Bot {
	b := &Bot{
		store:     st,
		gw:        gw,
		engine:    engine,
		scheduler: scheduler,
		source:    source,
		cache:     c,
		prefix:    prefix,
		category:  category,
		log:       logger.New("module", "bot"),
	}
	b.handlers = map[string]handlerFunc{
		"help":          b.handleHelp,
		"books":         b.handleBooks,
		"finished":      b.handleFinished,
		"point":         b.handlePoint,
		"setpoint":      b.handleSetPoint,
		"meeting":       b.handleMeeting,
		"cancelmeeting": b.handleCancelMeeting,
		"poll":          b.handlePoll,
		"endpoll":       b.handleEndPoll,
	}
	return b
}

// HandleEvent processes one inbound text message. Non-commands and unknown
// verbs fall through without a reply.
func (b *Bot) HandleEvent(ctx context.Context, ev gateway.InboundEvent) {
	if ev.Type != "message" {
		return
	}
	text := strings.TrimSpace(ev.Text)
	if !strings.HasPrefix(text, b.prefix) {
		return
	}

	if ev.DeliveryID != "" {
		first, err := b.cache.MarkDelivery(ctx, ev.DeliveryID)
		if err != nil {
			b.log.Error("delivery dedup failed", "delivery", ev.DeliveryID, "err", err)
		} else if !first {
			return
		}
	}

	allowed, err := b.channelAllowed(ctx, ev)
	if err != nil {
		b.log.Error("category check failed", "channel", ev.ChannelID, "err", err)
		return
	}
	if !allowed {
		return
	}

	rest := strings.TrimSpace(strings.TrimPrefix(text, b.prefix))
	verb, args, _ := strings.Cut(rest, " ")
	verb = strings.ToLower(verb)
	args = strings.TrimSpace(args)

	handler, ok := b.handlers[verb]
	if !ok {
		return
	}
	b.log.Info("command", "verb", verb, "channel", ev.ChannelID, "user", ev.UserID)
	handler(ctx, ev, args)
}

// channelAllowed applies the optional category allow-list. When the
// configured category does not exist on the server at all, the restriction
// is treated as not applicable and commands are allowed everywhere.
func (b *Bot) channelAllowed(ctx context.Context, ev gateway.InboundEvent) (bool, error) {
	if b.category == "" {
		return true, nil
	}
	if strings.EqualFold(ev.ChannelCategory, b.category) {
		return true, nil
	}
	channels, err := b.gw.ListChannels(ctx)
	if err != nil {
		return false, err
	}
	for _, ch := range channels {
		if strings.EqualFold(ch.Category, b.category) {
			return false, nil
		}
	}
	return true, nil
}

func (b *Bot) reply(ctx context.Context, channelID string, msg gateway.Message) {
	if _, err := b.gw.PostMessage(ctx, channelID, msg); err != nil {
		b.log.Error("failed to send reply", "channel", channelID, "err", err)
	}
}

func (b *Bot) replyText(ctx context.Context, channelID, body string) {
	b.reply(ctx, channelID, gateway.Message{Body: body})
}
