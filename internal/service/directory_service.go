package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/audit"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/idcodec"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/repository"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/log"
)

type directoryServiceImpl struct {
	store    *repository.Store
	resolver *idcodec.Resolver
	opts     options
}

func NewDirectoryService(store *repository.Store, resolver *idcodec.Resolver, opts ...Option) DirectoryService {
	return &directoryServiceImpl{
		store:    store,
		resolver: resolver,
		opts:     newOptions(opts),
	}
}

func (s *directoryServiceImpl) ResolveOrCreate(ctx context.Context, userA, userB int64) (*domain.Conversation, error) {
	low, high, err := participantPair(userA, userB)
	if err != nil {
		return nil, err
	}
	l := log.Ctx(ctx)

	existing, found, err := s.store.Conversations.LookupPair(ctx, low, high)
	if err != nil {
		l.Error().Err(err).Int64("user_a", userA).Int64("user_b", userB).Msg("failed to look up conversation pair")
		return nil, fmt.Errorf("failed to look up conversation pair: %w", err)
	}
	if found {
		return s.ensureConversation(ctx, existing, low, high)
	}

	id, compact, err := s.resolver.Allocate(ctx, idcodec.KindConversation)
	if err != nil {
		l.Error().Err(err).Msg("failed to allocate conversation id")
		return nil, fmt.Errorf("failed to allocate conversation id: %w", err)
	}

	owner, err := s.store.Conversations.ClaimPair(ctx, low, high, id)
	if err != nil {
		l.Error().Err(err).Msg("failed to claim conversation pair")
		return nil, fmt.Errorf("failed to claim conversation pair: %w", err)
	}
	if owner != id {
		// A concurrent call created the conversation first.
		if err := s.resolver.Release(ctx, idcodec.KindConversation, id); err != nil {
			l.Warn().Err(err).Int64(log.FieldConversationID, compact).Msg("failed to release unused conversation id")
		}
		return s.ensureConversation(ctx, owner, low, high)
	}

	conv := domain.Conversation{
		ID:        id,
		User1ID:   low,
		User2ID:   high,
		CreatedAt: s.opts.timestamp(),
	}
	if err := s.writeConversation(ctx, conv); err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.ActionCreateConversation, userA, compact, "conversation created")
	return &conv, nil
}

// ensureConversation returns the summary of an existing conversation,
// rewriting the participant rows and summary when a previous create did
// not finish.
func (s *directoryServiceImpl) ensureConversation(ctx context.Context, id, low, high uuid.UUID) (*domain.Conversation, error) {
	summary, err := s.store.Conversations.GetSummary(ctx, id)
	switch {
	case err == nil && summary.User1ID != uuid.Nil:
		return summary, nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldConversationID, id.String()).Msg("failed to read conversation summary")
		return nil, fmt.Errorf("failed to read conversation summary: %w", err)
	}

	conv := domain.Conversation{ID: id, User1ID: low, User2ID: high, CreatedAt: s.opts.timestamp()}
	if summary != nil {
		conv.LastMessageAt = summary.LastMessageAt
		conv.LastMessageContent = summary.LastMessageContent
	}
	if err := s.writeConversation(ctx, conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *directoryServiceImpl) writeConversation(ctx context.Context, conv domain.Conversation) error {
	l := log.Ctx(ctx)
	if err := s.store.Participants.AddParticipants(ctx, conv.ID, conv.User1ID, conv.User2ID); err != nil {
		l.Error().Err(err).Str(log.FieldConversationID, conv.ID.String()).Msg("failed to write participants")
		return fmt.Errorf("failed to write participants: %w", err)
	}
	if err := s.store.Conversations.SaveSummary(ctx, conv); err != nil {
		l.Error().Err(err).Str(log.FieldConversationID, conv.ID.String()).Msg("failed to write conversation summary")
		return fmt.Errorf("failed to write conversation summary: %w", err)
	}
	return nil
}

func (s *directoryServiceImpl) CreateConversation(ctx context.Context, userA, userB int64) (*domain.ConversationResponse, error) {
	conv, err := s.ResolveOrCreate(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	resp := toConversationResponse(*conv)
	return &resp, nil
}

func (s *directoryServiceImpl) GetConversation(ctx context.Context, conversationID int64) (*domain.ConversationResponse, error) {
	id, ok, err := resolveConversation(ctx, s.resolver, conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConversationNotFound
	}

	participants, err := s.store.Participants.ListParticipants(ctx, id)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Int64(log.FieldConversationID, conversationID).Msg("failed to list participants")
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	if len(participants) < 2 {
		return nil, ErrConversationNotFound
	}

	conv := domain.Conversation{ID: id}
	summary, err := s.store.Conversations.GetSummary(ctx, id)
	switch {
	case err == nil:
		conv = *summary
	case !errors.Is(err, repository.ErrNotFound):
		l := log.Ctx(ctx)
		l.Error().Err(err).Int64(log.FieldConversationID, conversationID).Msg("failed to read conversation summary")
		return nil, fmt.Errorf("failed to read conversation summary: %w", err)
	}
	conv.ID = id
	conv.User1ID, conv.User2ID = participants[0], participants[1]

	resp := toConversationResponse(conv)
	return &resp, nil
}

// participantPair validates two user ids and returns their wide ids in
// canonical order.
func participantPair(userA, userB int64) (uuid.UUID, uuid.UUID, error) {
	if userA <= 0 || userB <= 0 || userA == userB {
		return uuid.Nil, uuid.Nil, ErrInvalidParticipants
	}
	a, err := idcodec.UserWideID(userA)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidParticipants, err)
	}
	b, err := idcodec.UserWideID(userB)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidParticipants, err)
	}
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return a, b, nil
}

// resolveConversation maps a compact id to its wide id. Unknown ids are
// reported with ok == false rather than an error.
func resolveConversation(ctx context.Context, resolver *idcodec.Resolver, compact int64) (uuid.UUID, bool, error) {
	id, err := resolver.ToWide(ctx, idcodec.KindConversation, compact)
	if errors.Is(err, idcodec.ErrUnresolvable) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Int64(log.FieldConversationID, compact).Msg("failed to resolve conversation id")
		return uuid.Nil, false, fmt.Errorf("failed to resolve conversation id: %w", err)
	}
	return id, true, nil
}
