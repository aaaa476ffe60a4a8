package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/idcodec"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/repository"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/log"
)

const maxSummaryMoves = 8

type feedServiceImpl struct {
	store *repository.Store
	opts  options
}

func NewFeedService(store *repository.Store, opts ...Option) FeedService {
	return &feedServiceImpl{
		store: store,
		opts:  newOptions(opts),
	}
}

func (s *feedServiceImpl) ListForUser(ctx context.Context, userID int64, req domain.PageRequest) (*domain.ConversationPage, error) {
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}
	user, err := idcodec.UserWideID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUserID, err)
	}

	win, err := s.opts.pagination.normalize(req)
	if err != nil {
		return nil, err
	}
	l := log.Ctx(ctx)

	total, err := s.store.Feed.Count(ctx, user)
	if err != nil {
		l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("failed to count conversations")
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}

	rows, err := seek(ctx, win, func(ctx context.Context, q repository.ListQuery) (repository.Page[domain.FeedEntry], error) {
		return s.store.Feed.List(ctx, user, q)
	})
	if err != nil {
		l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("failed to list conversations")
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	// A send racing another send on the same conversation can leave a
	// stale row behind; the newest one comes first.
	seen := make(map[uuid.UUID]struct{}, len(rows.Items))
	data := make([]domain.ConversationResponse, 0, len(rows.Items))
	for _, e := range rows.Items {
		if _, dup := seen[e.ConversationID]; dup {
			continue
		}
		seen[e.ConversationID] = struct{}{}
		data = append(data, toFeedResponse(userID, e))
	}

	return &domain.ConversationPage{
		Total:      total,
		Page:       win.page,
		Limit:      win.limit,
		Data:       data,
		NextCursor: encodeCursor(rows.NextPageState),
		HasMore:    len(rows.NextPageState) > 0,
	}, nil
}

// UpdateOnSend points both participants' feed rows at m. It is idempotent
// and ignores messages older than the conversation's current last message,
// so events may be replayed in any order and concurrently. The summary is
// moved with a compare-and-set first; only the update that moved it writes
// the feed rows.
func (s *feedServiceImpl) UpdateOnSend(ctx context.Context, m domain.Message, receiverID uuid.UUID) error {
	l := log.Ctx(ctx)

	previous, err := s.lastMessageAt(ctx, m.ConversationID)
	if err != nil {
		l.Error().Err(err).Str(log.FieldConversationID, m.ConversationID.String()).Msg("failed to read conversation summary")
		return fmt.Errorf("failed to read conversation summary: %w", err)
	}

	for attempt := 0; attempt < maxSummaryMoves; attempt++ {
		if previous.After(m.CreatedAt) {
			return nil
		}

		// Equal means m already owns the summary; rewriting its rows is a replay.
		if !previous.Equal(m.CreatedAt) {
			moved, current, err := s.store.Conversations.MoveLastMessage(ctx, m.ConversationID, previous, m.CreatedAt, m.Content)
			if err != nil {
				l.Error().Err(err).Str(log.FieldConversationID, m.ConversationID.String()).Msg("failed to move last message")
				return fmt.Errorf("failed to move last message: %w", err)
			}
			if !moved {
				previous = current
				continue
			}
		}

		err := s.store.Feed.Apply(ctx, repository.FeedUpdate{
			ConversationID:     m.ConversationID,
			User1ID:            m.SenderID,
			User2ID:            receiverID,
			PreviousAt:         previous,
			LastMessageAt:      m.CreatedAt,
			LastMessageContent: m.Content,
		})
		if err != nil {
			l.Error().Err(err).Str(log.FieldConversationID, m.ConversationID.String()).Msg("failed to update feed")
			return fmt.Errorf("failed to update feed: %w", err)
		}
		return nil
	}

	l.Warn().Str(log.FieldConversationID, m.ConversationID.String()).Int(log.FieldAttempt, maxSummaryMoves).
		Msg("conversation summary kept changing, giving up on feed update")
	return ErrFeedContention
}

func (s *feedServiceImpl) lastMessageAt(ctx context.Context, conversationID uuid.UUID) (time.Time, error) {
	summary, err := s.store.Conversations.GetSummary(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return summary.LastMessageAt, nil
}
