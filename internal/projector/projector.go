// Package projector replays message_sent events into the conversation feed.
// Feed updates are idempotent, so replays repair feeds left stale by a send
// that failed after its message row was written.
package projector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/events"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/log"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/pubsub"
)

// FeedUpdater applies one sent message to both participants' feeds.
type FeedUpdater interface {
	UpdateOnSend(ctx context.Context, m domain.Message, receiverID uuid.UUID) error
}

type Projector struct {
	sub  pubsub.Subscriber
	feed FeedUpdater
}

func New(sub pubsub.Subscriber, feed FeedUpdater) *Projector {
	return &Projector{sub: sub, feed: feed}
}

// Run consumes events until ctx is cancelled or the subscription closes.
func (p *Projector) Run(ctx context.Context) error {
	ch, err := p.sub.SubscribePattern(ctx, pubsub.ChannelMessageSentPattern)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", pubsub.ChannelMessageSentPattern, err)
	}

	l := log.Ctx(ctx)
	l.Info().Str("pattern", pubsub.ChannelMessageSentPattern).Msg("feed projector started")

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("feed projector stopping")
			if err := p.sub.Unsubscribe(context.Background(), pubsub.ChannelMessageSentPattern); err != nil {
				l.Warn().Err(err).Msg("failed to unsubscribe feed projector")
			}
			return nil
		case event, ok := <-ch:
			if !ok {
				l.Info().Msg("feed projector subscription closed")
				return nil
			}
			if err := p.handle(ctx, event); err != nil {
				l.Error().Err(err).Str("event_key", event.Key).Msg("failed to project message_sent event")
			}
		}
	}
}

func (p *Projector) handle(ctx context.Context, event *pubsub.Event) error {
	m, receiver, err := events.Decode(event)
	if err != nil {
		return err
	}

	if err := p.feed.UpdateOnSend(ctx, m, receiver); err != nil {
		return fmt.Errorf("failed to update feed: %w", err)
	}

	l := log.Ctx(ctx)
	l.Debug().
		Str(log.FieldConversationID, m.ConversationID.String()).
		Str(log.FieldMessageID, m.ID.String()).
		Msg("projected message into feed")
	return nil
}
