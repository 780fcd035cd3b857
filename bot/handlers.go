package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookclubbot/gateway"
	"bookclubbot/meeting"
	"bookclubbot/poll"
	"bookclubbot/sheets"
	"bookclubbot/store"
)

const booksSheet = "books"

func (b *Bot) handleHelp(ctx context.Context, ev gateway.InboundEvent, args string) {
	p := b.prefix
	b.reply(ctx, ev.ChannelID, gateway.Message{
		Title: "Book club commands",
		Fields: []gateway.Field{
			{Name: p + "books", Value: "current book and the backlog"},
			{Name: p + "finished", Value: "finished books with their ratings"},
			{Name: p + "point", Value: "where we are supposed to have read up to"},
			{Name: p + "setpoint <text>", Value: "update the reading point"},
			{Name: p + "meeting <date> [time]", Value: "schedule the next meeting, e.g. `" + p + "meeting December 15 19:00`"},
			{Name: p + "cancelmeeting", Value: "cancel the scheduled meeting"},
			{Name: p + "poll <title>", Value: "start a 3-day rating poll"},
			{Name: p + "endpoll <id>", Value: "end a poll early and publish results"},
		},
	})
}

func (b *Bot) handleBooks(ctx context.Context, ev gateway.InboundEvent, args string) {
	rows := b.source.FetchRows(ctx, booksSheet)
	msg := gateway.Message{Title: "Reading list"}
	for _, row := range rows[1:] {
		if len(row) <= sheets.ColStatus {
			continue
		}
		status := strings.ToLower(row[sheets.ColStatus])
		if status != sheets.StatusReading && status != sheets.StatusBacklog {
			continue
		}
		name := row[sheets.ColTitle]
		if status == sheets.StatusReading {
			name = "📖 " + name
		}
		msg.Fields = append(msg.Fields, gateway.Field{
			Name:  name,
			Value: fmt.Sprintf("%s (%s)", row[sheets.ColAuthor], status),
		})
	}
	if len(msg.Fields) == 0 {
		msg.Body = "The reading list is empty."
	}
	b.reply(ctx, ev.ChannelID, msg)
}

func (b *Bot) handleFinished(ctx context.Context, ev gateway.InboundEvent, args string) {
	rows := b.source.FetchRows(ctx, booksSheet)
	msg := gateway.Message{Title: "Finished books"}
	for _, row := range rows[1:] {
		if len(row) <= sheets.ColRating {
			continue
		}
		if !strings.EqualFold(row[sheets.ColStatus], sheets.StatusFinished) {
			continue
		}
		rating := row[sheets.ColRating]
		if rating == "" {
			rating = "unrated"
		}
		msg.Fields = append(msg.Fields, gateway.Field{
			Name:  row[sheets.ColTitle],
			Value: fmt.Sprintf("%s — %s", row[sheets.ColAuthor], rating),
		})
	}
	if len(msg.Fields) == 0 {
		msg.Body = "No finished books yet."
	}
	b.reply(ctx, ev.ChannelID, msg)
}

func (b *Bot) handlePoint(ctx context.Context, ev gateway.InboundEvent, args string) {
	settings, err := b.store.GetSettings(ctx)
	if errors.Is(err, store.ErrNotFound) || (err == nil && settings.ReadingPoint == "") {
		b.replyText(ctx, ev.ChannelID, "No reading point set. Use "+b.prefix+"setpoint to set one.")
		return
	}
	if err != nil {
		b.log.Error("failed to load settings", "err", err)
		b.replyText(ctx, ev.ChannelID, "Something went wrong, try again later.")
		return
	}
	b.replyText(ctx, ev.ChannelID, "Read up to: "+settings.ReadingPoint)
}

func (b *Bot) handleSetPoint(ctx context.Context, ev gateway.InboundEvent, args string) {
	if args == "" {
		b.replyText(ctx, ev.ChannelID, "Tell me where to set the point, e.g. `"+b.prefix+"setpoint chapter 12`.")
		return
	}
	settings, err := b.store.GetSettings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		settings = &store.Settings{}
	} else if err != nil {
		b.log.Error("failed to load settings", "err", err)
		b.replyText(ctx, ev.ChannelID, "Something went wrong, try again later.")
		return
	}
	settings.ReadingPoint = args
	if err := b.store.PutSettings(ctx, settings); err != nil {
		b.log.Error("failed to save reading point", "err", err)
		b.replyText(ctx, ev.ChannelID, "Couldn't save the reading point, try again later.")
		return
	}
	b.replyText(ctx, ev.ChannelID, "Reading point set to: "+args)
}

func (b *Bot) handleMeeting(ctx context.Context, ev gateway.InboundEvent, args string) {
	if args == "" {
		b.showMeeting(ctx, ev)
		return
	}

	when, err := b.scheduler.Parser.Parse(args, "")
	if errors.Is(err, meeting.ErrUnparseableDate) {
		b.replyText(ctx, ev.ChannelID, "I couldn't make sense of that date. Try `"+b.prefix+"meeting December 15 19:00`.")
		return
	}
	if err != nil {
		b.log.Error("date parse failed", "input", args, "err", err)
		b.replyText(ctx, ev.ChannelID, "Something went wrong, try again later.")
		return
	}
	if !when.After(b.scheduler.Parser.Now()) {
		b.replyText(ctx, ev.ChannelID, "That date is in the past. Pick a future one.")
		return
	}

	res, err := b.scheduler.Schedule(ctx, when, "Book club meeting")
	if err != nil {
		b.log.Error("failed to schedule meeting", "err", err)
		b.replyText(ctx, ev.ChannelID, "Couldn't save the meeting, try again later.")
		return
	}

	whenText := when.In(b.scheduler.Parser.Loc).Format("Monday, 2 January at 15:04")
	if res.EventErr != nil {
		b.replyText(ctx, ev.ChannelID, "Meeting time saved for "+whenText+", but I failed to create the calendar event.")
		return
	}
	body := "Meeting scheduled for " + whenText + "."
	if res.Event != nil && res.Event.URL != "" {
		body += " Event: " + res.Event.URL
	}
	b.replyText(ctx, ev.ChannelID, body)
}

func (b *Bot) showMeeting(ctx context.Context, ev gateway.InboundEvent) {
	settings, err := b.store.GetSettings(ctx)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !settings.HasMeeting()) {
		b.replyText(ctx, ev.ChannelID, "No meeting scheduled.")
		return
	}
	if err != nil {
		b.log.Error("failed to load settings", "err", err)
		b.replyText(ctx, ev.ChannelID, "Something went wrong, try again later.")
		return
	}
	b.replyText(ctx, ev.ChannelID, fmt.Sprintf("Next meeting: %s at %s", settings.MeetingDate, settings.MeetingTime))
}

func (b *Bot) handleCancelMeeting(ctx context.Context, ev gateway.InboundEvent, args string) {
	settings, err := b.store.GetSettings(ctx)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !settings.HasMeeting()) {
		b.replyText(ctx, ev.ChannelID, "There is no meeting to cancel.")
		return
	}
	if err != nil {
		b.log.Error("failed to load settings", "err", err)
		b.replyText(ctx, ev.ChannelID, "Something went wrong, try again later.")
		return
	}
	if err := b.scheduler.Cancel(ctx); err != nil {
		b.log.Error("failed to cancel meeting", "err", err)
		b.replyText(ctx, ev.ChannelID, "Couldn't cancel the meeting, try again later.")
		return
	}
	b.replyText(ctx, ev.ChannelID, "Meeting cancelled.")
}

func (b *Bot) handlePoll(ctx context.Context, ev gateway.InboundEvent, args string) {
	if args == "" {
		b.replyText(ctx, ev.ChannelID, "Give the poll a title, e.g. `"+b.prefix+"poll Piranesi`.")
		return
	}
	if _, err := b.engine.Create(ctx, ev.ChannelID, args); err != nil {
		b.log.Error("failed to create poll", "err", err)
		b.replyText(ctx, ev.ChannelID, "Couldn't start the poll, try again later.")
	}
}

func (b *Bot) handleEndPoll(ctx context.Context, ev gateway.InboundEvent, args string) {
	if args == "" {
		b.replyText(ctx, ev.ChannelID, "Which poll? Use `"+b.prefix+"endpoll <poll id>`.")
		return
	}
	res, err := b.engine.Resolve(ctx, args)
	switch {
	case errors.Is(err, poll.ErrPollNotFound):
		b.replyText(ctx, ev.ChannelID, "I don't know that poll.")
	case err != nil:
		b.log.Error("failed to end poll", "poll", args, "err", err)
		b.replyText(ctx, ev.ChannelID, "Couldn't end the poll, try again later.")
	case res == nil:
		b.replyText(ctx, ev.ChannelID, "That poll is already resolved.")
	}
	// On success the engine announces the results itself.
}
