package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/idcodec"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/repository"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/service"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

func newRouter(directory service.DirectoryService, messages service.MessageService, feed service.FeedService) *gin.Engine {
	r := gin.New()
	NewHandler(directory, messages, feed).RegisterRoutes(r)
	return r
}

func newTestRouter() *gin.Engine {
	store := repository.NewMemoryStore().Store()
	resolver := idcodec.NewResolver(store.Registry, store.Participants)
	directory := service.NewDirectoryService(store, resolver)
	feed := service.NewFeedService(store)
	messages := service.NewMessageService(store, resolver, directory, feed)
	return newRouter(directory, messages, feed)
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestSendAndReadBack(t *testing.T) {
	r := newTestRouter()

	code, env := do(t, r, http.MethodPost, "/api/v1/messages", map[string]interface{}{
		"content": "hello", "sender_id": 1, "receiver_id": 2,
	})
	require.Equal(t, http.StatusCreated, code)
	require.True(t, env.Success)

	var msg domain.MessageResponse
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, int64(1), msg.SenderID)
	assert.Equal(t, int64(2), msg.ReceiverID)

	code, env = do(t, r, http.MethodGet, "/api/v1/conversations/user/1?page=1&limit=20", nil)
	require.Equal(t, http.StatusOK, code)
	var feed domain.ConversationPage
	require.NoError(t, json.Unmarshal(env.Data, &feed))
	assert.Equal(t, int64(1), feed.Total)
	require.Len(t, feed.Data, 1)
	assert.Equal(t, int64(2), feed.Data[0].User2ID)

	code, env = do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/conversations/%d", msg.ConversationID), nil)
	require.Equal(t, http.StatusOK, code)
	var conv domain.ConversationResponse
	require.NoError(t, json.Unmarshal(env.Data, &conv))
	assert.ElementsMatch(t, []int64{1, 2}, []int64{conv.User1ID, conv.User2ID})

	code, env = do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/messages/conversation/%d", msg.ConversationID), nil)
	require.Equal(t, http.StatusOK, code)
	var page domain.MessagePage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 20, page.Limit)

	future := strconv.FormatInt(time.Now().Add(time.Hour).UnixMilli(), 10)
	code, env = do(t, r, http.MethodGet,
		fmt.Sprintf("/api/v1/messages/conversation/%d/before?before_timestamp=%s", msg.ConversationID, future), nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Data, 1)

	code, env = do(t, r, http.MethodPost, "/api/v1/conversations", map[string]interface{}{"user1_id": 2, "user2_id": 1})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &conv))
	assert.Equal(t, msg.ConversationID, conv.ID)
}

func TestValidationErrors(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"malformed body", http.MethodPost, "/api/v1/messages", "{"},
		{"missing content", http.MethodPost, "/api/v1/messages", map[string]interface{}{"sender_id": 1, "receiver_id": 2}},
		{"blank content", http.MethodPost, "/api/v1/messages", map[string]interface{}{"content": " ", "sender_id": 1, "receiver_id": 2}},
		{"self conversation", http.MethodPost, "/api/v1/messages", map[string]interface{}{"content": "x", "sender_id": 3, "receiver_id": 3}},
		{"non numeric id", http.MethodGet, "/api/v1/messages/conversation/abc", nil},
		{"bad limit", http.MethodGet, "/api/v1/messages/conversation/1?limit=0", nil},
		{"bad page", http.MethodGet, "/api/v1/conversations/user/1?page=-1", nil},
		{"page too far", http.MethodGet, "/api/v1/conversations/user/1?page=1000", nil},
		{"bad cursor", http.MethodGet, "/api/v1/conversations/user/1?cursor=%25%25", nil},
		{"bad timestamp", http.MethodGet, "/api/v1/messages/conversation/1/before?before_timestamp=yesterday", nil},
		{"missing timestamp", http.MethodGet, "/api/v1/messages/conversation/1/before", nil},
		{"invalid user", http.MethodGet, "/api/v1/conversations/user/0", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, response.CodeBadRequest, env.Error.Code)
		})
	}
}

func TestUnknownConversation(t *testing.T) {
	r := newTestRouter()

	code, env := do(t, r, http.MethodGet, "/api/v1/conversations/987654", nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.CodeNotFound, env.Error.Code)

	// Listing an unknown conversation is an empty page, not an error.
	code, env = do(t, r, http.MethodGet, "/api/v1/messages/conversation/987654", nil)
	assert.Equal(t, http.StatusOK, code)
	var page domain.MessagePage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(0), page.Total)
}

type failingFeed struct{}

func (failingFeed) ListForUser(context.Context, int64, domain.PageRequest) (*domain.ConversationPage, error) {
	return nil, fmt.Errorf("failed to count conversations: %w", repository.ErrStorageUnavailable)
}

func (failingFeed) UpdateOnSend(context.Context, domain.Message, uuid.UUID) error {
	return errors.New("unused")
}

func TestStorageFailureIsInternalError(t *testing.T) {
	r := newRouter(nil, nil, failingFeed{})

	code, env := do(t, r, http.MethodGet, "/api/v1/conversations/user/1", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.CodeInternal, env.Error.Code)
	assert.NotContains(t, env.Error.Message, "storage unavailable")
}

func TestParseTimestamp(t *testing.T) {
	ts, err := parseTimestamp("1700000000123")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000123), ts.UnixMilli())

	ts, err = parseTimestamp("2024-01-01T12:00:00.5Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 500000000, time.UTC), ts)

	_, err = parseTimestamp("")
	assert.Error(t, err)
}
