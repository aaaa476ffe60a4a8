package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/audit"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/cache"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/idcodec"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/repository"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/log"
	"golang.org/x/sync/singleflight"
)

type messageServiceImpl struct {
	store     *repository.Store
	resolver  *idcodec.Resolver
	directory DirectoryService
	feed      FeedService
	opts      options
	sf        singleflight.Group
}

func NewMessageService(
	store *repository.Store,
	resolver *idcodec.Resolver,
	directory DirectoryService,
	feed FeedService,
	opts ...Option,
) MessageService {
	return &messageServiceImpl{
		store:     store,
		resolver:  resolver,
		directory: directory,
		feed:      feed,
		opts:      newOptions(opts),
	}
}

// SendMessage appends to the pair's conversation, creating it on the first
// message, then moves the conversation to the top of both feeds.
func (s *messageServiceImpl) SendMessage(ctx context.Context, req domain.SendMessageRequest) (*domain.MessageResponse, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, ErrEmptyContent
	}

	conv, err := s.directory.ResolveOrCreate(ctx, req.SenderID, req.ReceiverID)
	if err != nil {
		return nil, err
	}
	// Both ids passed ResolveOrCreate's validation.
	sender, _ := idcodec.UserWideID(req.SenderID)
	receiver, _ := idcodec.UserWideID(req.ReceiverID)

	m := domain.Message{
		ID:             idcodec.NewWideID(),
		ConversationID: conv.ID,
		SenderID:       sender,
		Content:        req.Content,
		CreatedAt:      s.opts.timestamp(),
	}
	compact := idcodec.Compact(conv.ID)
	auditCtx := ctx

	ctx = log.With(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Int64(log.FieldConversationID, compact).Str(log.FieldMessageID, m.ID.String())
	})
	l := log.Ctx(ctx)

	if err := s.store.Messages.Insert(ctx, m); err != nil {
		l.Error().Err(err).Msg("failed to insert message")
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	if s.opts.publisher != nil {
		if err := s.opts.publisher.MessageSent(ctx, m, receiver); err != nil {
			l.Warn().Err(err).Msg("failed to publish message_sent event")
		}
	}

	if err := s.feed.UpdateOnSend(ctx, m, receiver); err != nil {
		return nil, err
	}

	// The audit line carries its own conversation_id.
	audit.LogWithDetail(auditCtx, audit.ActionSendMessage, req.SenderID, compact,
		"receiver="+strconv.FormatInt(req.ReceiverID, 10), "message sent")

	resp := toMessageResponse(m, compact, []uuid.UUID{sender, receiver})
	return &resp, nil
}

func (s *messageServiceImpl) ListMessages(ctx context.Context, conversationID int64, req domain.PageRequest) (*domain.MessagePage, error) {
	win, err := s.opts.pagination.normalize(req)
	if err != nil {
		return nil, err
	}
	return s.listPage(ctx, conversationID, nil, win)
}

// ListMessagesBefore lists messages created strictly before before, newest
// first. Pages entirely in the past are served from the history cache.
func (s *messageServiceImpl) ListMessagesBefore(ctx context.Context, conversationID int64, before time.Time, req domain.PageRequest) (*domain.MessagePage, error) {
	win, err := s.opts.pagination.normalize(req)
	if err != nil {
		return nil, err
	}

	// A page ending in the future can still grow.
	if !before.Before(s.opts.now()) {
		return s.listPage(ctx, conversationID, &before, win)
	}

	cacheKey := s.opts.cache.BuildKey(conversationID, before, req.Cursor, win.page, win.limit)

	// Use singleflight to prevent duplicate requests for the same key
	result, err, _ := s.sf.Do(cacheKey, func() (interface{}, error) {
		return s.fetchWithCache(ctx, conversationID, before, win, cacheKey)
	})
	if err != nil {
		return nil, err
	}

	page, ok := result.(*domain.MessagePage)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	return page, nil
}

func (s *messageServiceImpl) fetchWithCache(
	ctx context.Context,
	conversationID int64,
	before time.Time,
	win pageWindow,
	cacheKey string,
) (*domain.MessagePage, error) {
	cached, err := s.opts.cache.Get(ctx, cacheKey)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		// Log error but continue to fetch from DB
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache get error")
	}

	page, err := s.listPage(ctx, conversationID, &before, win)
	if err != nil {
		return nil, err
	}

	// Store in cache (async to avoid blocking response)
	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.opts.cache.Set(cacheCtx, cacheKey, page, s.opts.cacheTTL); err != nil {
			l := log.L()
			l.Warn().Err(err).Msg("cache set error")
		}
	}()

	return page, nil
}

func (s *messageServiceImpl) listPage(ctx context.Context, conversationID int64, before *time.Time, win pageWindow) (*domain.MessagePage, error) {
	resp := &domain.MessagePage{
		Page:  win.page,
		Limit: win.limit,
		Data:  []domain.MessageResponse{},
	}

	id, ok, err := resolveConversation(ctx, s.resolver, conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return resp, nil
	}
	l := log.Ctx(ctx)

	total, err := s.store.Messages.Count(ctx, id, before)
	if err != nil {
		l.Error().Err(err).Int64(log.FieldConversationID, conversationID).Msg("failed to count messages")
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	resp.Total = total

	rows, err := seek(ctx, win, func(ctx context.Context, q repository.ListQuery) (repository.Page[domain.Message], error) {
		q.Before = before
		return s.store.Messages.List(ctx, id, q)
	})
	if err != nil {
		l.Error().Err(err).Int64(log.FieldConversationID, conversationID).Msg("failed to list messages")
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	participants, err := s.store.Participants.ListParticipants(ctx, id)
	if err != nil {
		l.Error().Err(err).Int64(log.FieldConversationID, conversationID).Msg("failed to list participants")
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	for _, m := range rows.Items {
		resp.Data = append(resp.Data, toMessageResponse(m, conversationID, participants))
	}
	resp.NextCursor = encodeCursor(rows.NextPageState)
	resp.HasMore = len(rows.NextPageState) > 0
	return resp, nil
}
