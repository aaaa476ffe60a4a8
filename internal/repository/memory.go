package repository

import (
	"bytes"
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
)

// MemoryStore keeps every table in process memory with the same key and
// ordering rules as the Cassandra schema. It backs tests and the "memory"
// storage driver.
type MemoryStore struct {
	mu sync.RWMutex

	registry      map[registryKey]uuid.UUID
	participants  map[uuid.UUID]map[uuid.UUID]struct{}
	conversations []uuid.UUID // participant index partitions, in insertion order
	pairs         map[[2]uuid.UUID]uuid.UUID
	summaries     map[uuid.UUID]domain.Conversation
	messages      map[uuid.UUID][]domain.Message
	feed          map[uuid.UUID][]domain.FeedEntry
}

type registryKey struct {
	kind    string
	compact int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		registry:     make(map[registryKey]uuid.UUID),
		participants: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		pairs:        make(map[[2]uuid.UUID]uuid.UUID),
		summaries:    make(map[uuid.UUID]domain.Conversation),
		messages:     make(map[uuid.UUID][]domain.Message),
		feed:         make(map[uuid.UUID][]domain.FeedEntry),
	}
}

// Store exposes m through the repository interfaces.
func (m *MemoryStore) Store() *Store {
	return &Store{
		Participants:  memoryParticipants{m},
		Conversations: memoryConversations{m},
		Messages:      memoryMessages{m},
		Feed:          memoryFeed{m},
		Registry:      memoryRegistry{m},
	}
}

type memoryRegistry struct{ m *MemoryStore }

func (r memoryRegistry) Lookup(_ context.Context, kind string, compact int64) (uuid.UUID, bool, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	wide, ok := r.m.registry[registryKey{kind, compact}]
	return wide, ok, nil
}

func (r memoryRegistry) Register(_ context.Context, kind string, compact int64, wide uuid.UUID) (uuid.UUID, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := registryKey{kind, compact}
	if owner, ok := r.m.registry[key]; ok {
		return owner, nil
	}
	r.m.registry[key] = wide
	return wide, nil
}

func (r memoryRegistry) Release(_ context.Context, kind string, compact int64, wide uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := registryKey{kind, compact}
	if r.m.registry[key] == wide {
		delete(r.m.registry, key)
	}
	return nil
}

type memoryParticipants struct{ m *MemoryStore }

func (r memoryParticipants) AddParticipants(_ context.Context, conversationID uuid.UUID, userIDs ...uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	users, ok := r.m.participants[conversationID]
	if !ok {
		users = make(map[uuid.UUID]struct{})
		r.m.participants[conversationID] = users
		r.m.conversations = append(r.m.conversations, conversationID)
	}
	for _, u := range userIDs {
		users[u] = struct{}{}
	}
	return nil
}

func (r memoryParticipants) ListParticipants(_ context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var users []uuid.UUID
	for u := range r.m.participants[conversationID] {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return bytes.Compare(users[i][:], users[j][:]) < 0 })
	return users, nil
}

func (r memoryParticipants) ScanConversationIDs(_ context.Context, fn func(uuid.UUID) bool) error {
	r.m.mu.RLock()
	ids := append([]uuid.UUID(nil), r.m.conversations...)
	r.m.mu.RUnlock()

	for _, id := range ids {
		if !fn(id) {
			break
		}
	}
	return nil
}

type memoryConversations struct{ m *MemoryStore }

func (r memoryConversations) LookupPair(_ context.Context, low, high uuid.UUID) (uuid.UUID, bool, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	id, ok := r.m.pairs[[2]uuid.UUID{low, high}]
	return id, ok, nil
}

func (r memoryConversations) ClaimPair(_ context.Context, low, high, conversationID uuid.UUID) (uuid.UUID, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := [2]uuid.UUID{low, high}
	if owner, ok := r.m.pairs[key]; ok {
		return owner, nil
	}
	r.m.pairs[key] = conversationID
	return conversationID, nil
}

func (r memoryConversations) SaveSummary(_ context.Context, c domain.Conversation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s := r.m.summaries[c.ID]
	s.ID, s.User1ID, s.User2ID, s.CreatedAt = c.ID, c.User1ID, c.User2ID, c.CreatedAt
	r.m.summaries[c.ID] = s
	return nil
}

func (r memoryConversations) GetSummary(_ context.Context, conversationID uuid.UUID) (*domain.Conversation, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	s, ok := r.m.summaries[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r memoryConversations) MoveLastMessage(_ context.Context, conversationID uuid.UUID, expected, at time.Time, content string) (bool, time.Time, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s := r.m.summaries[conversationID]
	if !s.LastMessageAt.Equal(expected) {
		return false, s.LastMessageAt, nil
	}
	s.ID = conversationID
	s.LastMessageAt = at
	s.LastMessageContent = content
	r.m.summaries[conversationID] = s
	return true, at, nil
}

type memoryMessages struct{ m *MemoryStore }

// messageLess is the messages clustering order: created_at DESC, message_id ASC.
func messageLess(a, b domain.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

func (r memoryMessages) Insert(_ context.Context, msg domain.Message) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	msgs := r.m.messages[msg.ConversationID]
	i := sort.Search(len(msgs), func(i int) bool { return !messageLess(msgs[i], msg) })
	if i < len(msgs) && msgs[i].ID == msg.ID && msgs[i].CreatedAt.Equal(msg.CreatedAt) {
		msgs[i] = msg
		return nil
	}
	msgs = append(msgs, domain.Message{})
	copy(msgs[i+1:], msgs[i:])
	msgs[i] = msg
	r.m.messages[msg.ConversationID] = msgs
	return nil
}

func (r memoryMessages) Count(_ context.Context, conversationID uuid.UUID, before *time.Time) (int64, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return int64(len(filterBefore(r.m.messages[conversationID], before))), nil
}

func (r memoryMessages) List(_ context.Context, conversationID uuid.UUID, q ListQuery) (Page[domain.Message], error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return slicePage(filterBefore(r.m.messages[conversationID], q.Before), q), nil
}

func filterBefore(msgs []domain.Message, before *time.Time) []domain.Message {
	if before == nil {
		return msgs
	}
	// Newest first, so the matching rows form a suffix.
	i := sort.Search(len(msgs), func(i int) bool { return msgs[i].CreatedAt.Before(*before) })
	return msgs[i:]
}

type memoryFeed struct{ m *MemoryStore }

// feedLess is the conversations clustering order: last_message_at DESC,
// conversation_id ASC.
func feedLess(a, b domain.FeedEntry) bool {
	if !a.LastMessageAt.Equal(b.LastMessageAt) {
		return a.LastMessageAt.After(b.LastMessageAt)
	}
	return bytes.Compare(a.ConversationID[:], b.ConversationID[:]) < 0
}

func (r memoryFeed) Count(_ context.Context, userID uuid.UUID) (int64, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return int64(len(r.m.feed[userID])), nil
}

func (r memoryFeed) List(_ context.Context, userID uuid.UUID, q ListQuery) (Page[domain.FeedEntry], error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return slicePage(r.m.feed[userID], q), nil
}

// Apply follows the write timestamps of the Cassandra driver: a row
// replaces every older row of its conversation and loses to a newer one.
func (r memoryFeed) Apply(_ context.Context, u FeedUpdate) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	rows := [][2]uuid.UUID{{u.User1ID, u.User2ID}, {u.User2ID, u.User1ID}}
	for _, row := range rows {
		entries, shadowed := dropOlderFeedRows(r.m.feed[row[0]], u.ConversationID, u.LastMessageAt)
		if !shadowed {
			entry := domain.FeedEntry{
				UserID:             row[0],
				ConversationID:     u.ConversationID,
				PeerID:             row[1],
				LastMessageAt:      u.LastMessageAt,
				LastMessageContent: u.LastMessageContent,
			}
			i := sort.Search(len(entries), func(i int) bool { return !feedLess(entries[i], entry) })
			entries = append(entries, domain.FeedEntry{})
			copy(entries[i+1:], entries[i:])
			entries[i] = entry
		}
		r.m.feed[row[0]] = entries
	}
	return nil
}

// dropOlderFeedRows removes the rows of conversationID not newer than at and
// reports whether a newer row remains.
func dropOlderFeedRows(entries []domain.FeedEntry, conversationID uuid.UUID, at time.Time) ([]domain.FeedEntry, bool) {
	out := entries[:0]
	shadowed := false
	for _, e := range entries {
		if e.ConversationID == conversationID {
			if !e.LastMessageAt.After(at) {
				continue
			}
			shadowed = true
		}
		out = append(out, e)
	}
	return out, shadowed
}

// slicePage pages over rows using the row offset as page state.
func slicePage[T any](rows []T, q ListQuery) Page[T] {
	start := 0
	if len(q.PageState) > 0 {
		if n, err := strconv.Atoi(string(q.PageState)); err == nil && n > 0 {
			start = n
		}
	}
	if start > len(rows) {
		start = len(rows)
	}

	end := len(rows)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}

	page := Page[T]{Items: append([]T(nil), rows[start:end]...)}
	if end < len(rows) {
		page.NextPageState = []byte(strconv.Itoa(end))
	}
	return page
}
