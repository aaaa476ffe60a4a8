package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/repository"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/service"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/log"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/response"
)

// Handler handles HTTP requests for messenger service.
type Handler struct {
	directory service.DirectoryService
	messages  service.MessageService
	feed      service.FeedService
}

// NewHandler creates a new HTTP handler.
func NewHandler(directory service.DirectoryService, messages service.MessageService, feed service.FeedService) *Handler {
	return &Handler{
		directory: directory,
		messages:  messages,
		feed:      feed,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		messages := api.Group("/messages")
		{
			messages.POST("", h.SendMessage)
			messages.GET("/conversation/:conversation_id", h.ListMessages)
			messages.GET("/conversation/:conversation_id/before", h.ListMessagesBefore)
		}

		conversations := api.Group("/conversations")
		{
			conversations.POST("", h.CreateConversation)
			conversations.GET("/user/:user_id", h.ListConversations)
			conversations.GET("/:conversation_id", h.GetConversation)
		}
	}

	r.GET("/health", h.HealthCheck)
}

// SendMessage stores a message and returns it with compact ids.
func (h *Handler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind send message request")
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.messages.SendMessage(ctx, req)
	if err != nil {
		h.fail(c, err, "failed to send message")
		return
	}

	response.Created(c, msg)
}

func (h *Handler) ListMessages(c *gin.Context) {
	conversationID, ok := int64Param(c, "conversation_id")
	if !ok {
		return
	}
	page, ok := pageQuery(c)
	if !ok {
		return
	}

	result, err := h.messages.ListMessages(c.Request.Context(), conversationID, page)
	if err != nil {
		h.fail(c, err, "failed to list messages")
		return
	}

	response.Success(c, result)
}

// ListMessagesBefore accepts before_timestamp as RFC 3339 or unix
// milliseconds.
func (h *Handler) ListMessagesBefore(c *gin.Context) {
	conversationID, ok := int64Param(c, "conversation_id")
	if !ok {
		return
	}
	before, err := parseTimestamp(c.Query("before_timestamp"))
	if err != nil {
		response.BadRequest(c, "before_timestamp must be an RFC 3339 time or unix milliseconds")
		return
	}
	page, ok := pageQuery(c)
	if !ok {
		return
	}

	result, err := h.messages.ListMessagesBefore(c.Request.Context(), conversationID, before, page)
	if err != nil {
		h.fail(c, err, "failed to list messages")
		return
	}

	response.Success(c, result)
}

func (h *Handler) CreateConversation(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to bind create conversation request")
		response.BadRequest(c, err.Error())
		return
	}

	conv, err := h.directory.CreateConversation(ctx, req.User1ID, req.User2ID)
	if err != nil {
		h.fail(c, err, "failed to create conversation")
		return
	}

	response.Success(c, conv)
}

func (h *Handler) ListConversations(c *gin.Context) {
	userID, ok := int64Param(c, "user_id")
	if !ok {
		return
	}
	page, ok := pageQuery(c)
	if !ok {
		return
	}

	result, err := h.feed.ListForUser(c.Request.Context(), userID, page)
	if err != nil {
		h.fail(c, err, "failed to list conversations")
		return
	}

	response.Success(c, result)
}

func (h *Handler) GetConversation(c *gin.Context) {
	conversationID, ok := int64Param(c, "conversation_id")
	if !ok {
		return
	}

	conv, err := h.directory.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		h.fail(c, err, "failed to get conversation")
		return
	}

	response.Success(c, conv)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// fail maps service errors onto responses: validation errors are 400,
// missing conversations 404, everything else 500.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrInvalidParticipants),
		errors.Is(err, service.ErrInvalidUserID),
		errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrPageOutOfRange),
		errors.Is(err, service.ErrInvalidCursor):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, repository.ErrNotFound):
		response.NotFound(c, "conversation not found")
	default:
		_ = c.Error(err)
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(msg)
		response.InternalError(c, msg)
	}
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		response.BadRequest(c, name+" must be an integer")
		return 0, false
	}
	return v, true
}

func pageQuery(c *gin.Context) (domain.PageRequest, bool) {
	req := domain.PageRequest{Page: 1, Cursor: c.Query("cursor")}

	if s := c.Query("page"); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil || page < 1 {
			response.BadRequest(c, "page must be a positive integer")
			return req, false
		}
		req.Page = page
	}

	if s := c.Query("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return req, false
		}
		req.Limit = limit
	}

	return req, true
}

func parseTimestamp(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
