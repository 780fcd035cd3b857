package bot

import (
	"context"
	"errors"
	"fmt"

	"bookclubbot/gateway"
	"bookclubbot/poll"
)

// HandleInteraction processes one vote selection. The acknowledgment goes to
// the voter alone; individual votes stay invisible until resolution.
func (b *Bot) HandleInteraction(ctx context.Context, in gateway.Interaction) {
	if in.Type != "option_selected" {
		return
	}
	if in.DeliveryID != "" {
		first, err := b.cache.MarkDelivery(ctx, in.DeliveryID)
		if err != nil {
			b.log.Error("interaction dedup failed", "delivery", in.DeliveryID, "err", err)
		} else if !first {
			return
		}
	}

	value, err := poll.ParseRating(in.Value)
	if err != nil {
		b.log.Warn("interaction carried an off-scale value", "poll", in.MessageID, "value", in.Value)
		b.ack(ctx, in, "That rating isn't valid.")
		return
	}

	outcome, err := b.engine.CastVote(ctx, in.MessageID, in.UserID, value)
	switch {
	case errors.Is(err, poll.ErrPollNotFound):
		b.ack(ctx, in, "That poll no longer exists.")
	case errors.Is(err, poll.ErrPollExpired):
		b.ack(ctx, in, "This poll has already closed.")
	case err != nil:
		b.log.Error("failed to record vote", "poll", in.MessageID, "voter", in.UserID, "err", err)
		b.ack(ctx, in, "Couldn't record your vote, try again.")
	case outcome == poll.VoteChanged:
		b.ack(ctx, in, fmt.Sprintf("Changed your rating to %s.", poll.FormatRating(value)))
	default:
		b.ack(ctx, in, fmt.Sprintf("Got it, you rated %s.", poll.FormatRating(value)))
	}
}

func (b *Bot) ack(ctx context.Context, in gateway.Interaction, body string) {
	if err := b.gw.PostEphemeral(ctx, in.ChannelID, in.UserID, body); err != nil {
		b.log.Error("failed to ack vote", "voter", in.UserID, "err", err)
	}
}
