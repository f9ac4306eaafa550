// Package handler provides HTTP handlers for API endpoints.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"housing-chat/internal/domain/party"
	"housing-chat/internal/identity"
	"housing-chat/internal/services"
	"housing-chat/internal/transport/httpdto"
	chat_errors "housing-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ChatHandler handles conversation and sidebar HTTP endpoints.
type ChatHandler struct {
	chat    *services.ChatService
	sidebar *services.SidebarService
}

// NewChatHandler creates a chat handler.
func NewChatHandler(chat *services.ChatService, sidebar *services.SidebarService) *ChatHandler {
	return &ChatHandler{chat: chat, sidebar: sidebar}
}

// Sidebar returns the viewer's conversations and contact suggestions.
func (h *ChatHandler) Sidebar(c *gin.Context) {
	principal, ok := identity.PrincipalFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	view, err := h.sidebar.Sidebar(c.Request.Context(), principal.Party)
	if err != nil {
		writeChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

// OpenConversation returns the existing conversation with the requested
// party, creating one if needed.
func (h *ChatHandler) OpenConversation(c *gin.Context) {
	principal, ok := identity.PrincipalFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.OpenConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	targetID, err := uuid.Parse(req.PartyID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	target := party.Ref{ID: targetID, Type: party.Type(req.PartyType)}

	conv, err := h.chat.GetOrCreate(c.Request.Context(), principal.Party, target)
	if err != nil {
		writeChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ConversationResponse{
		ConversationID: conv.ID.String(),
	}))
}

// Conversation returns a single conversation row as the viewer sees it.
func (h *ChatHandler) Conversation(c *gin.Context) {
	principal, ok := identity.PrincipalFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	row, err := h.chat.ConversationInfo(c.Request.Context(), convID, principal.Party)
	if err != nil {
		writeChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(row))
}

// Messages returns the conversation history, oldest first.
func (h *ChatHandler) Messages(c *gin.Context) {
	principal, ok := identity.PrincipalFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid limit", "INVALID_REQUEST"))
			return
		}
	}

	messages, err := h.chat.MessagesPage(c.Request.Context(), convID, limit, principal.Party)
	if err != nil {
		writeChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(messages))
}

// SendMessage posts a message into a conversation.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	principal, ok := identity.PrincipalFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	view, err := h.chat.SendMessage(c.Request.Context(), convID, req.Content, principal.Party)
	if err != nil {
		writeChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

func writeChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat_errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
	case errors.Is(err, chat_errors.ErrForbidden):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse(err.Error(), "FORBIDDEN"))
	case errors.Is(err, chat_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("not found", "NOT_FOUND"))
	case errors.Is(err, chat_errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
	case errors.Is(err, chat_errors.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", "RATE_LIMITED"))
	case errors.Is(err, chat_errors.ErrConflict), errors.Is(err, chat_errors.ErrAlreadyExists):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse("conflict", "CONFLICT"))
	default:
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", "INTERNAL_ERROR"))
	}
}
