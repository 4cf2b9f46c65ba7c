package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docqa/internal/app"
	"docqa/internal/model"
	"docqa/internal/transport/http/response"
)

type Conversations interface {
	Send(ctx context.Context, in app.SendInput) (*app.SendResult, error)
	History(ctx context.Context, conversationID string) ([]model.ChatMessage, error)
	Reset(ctx context.Context, conversationID string) error
}

type ChatHandler struct {
	conversations Conversations
	timeout       time.Duration
}

type SendMessageRequest struct {
	ConversationID string `json:"conversation_id" binding:"max=128"`
	Content        string `json:"content" binding:"required"`
	DevMode        bool   `json:"dev_mode"`
}

func NewChatHandler(conversations Conversations, timeout time.Duration) *ChatHandler {
	return &ChatHandler{conversations: conversations, timeout: timeout}
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	result, err := h.conversations.Send(ctx, app.SendInput{
		ConversationID: req.ConversationID,
		Content:        req.Content,
		DevMode:        req.DevMode,
	})
	if err != nil {
		writeError(c, err, "send message failed")
		return
	}

	response.OK(c, result)
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	id := strings.TrimSpace(c.Query("conversation_id"))
	if id == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid conversation_id")
		return
	}

	history, err := h.conversations.History(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "get history failed")
		return
	}

	response.OK(c, gin.H{"conversation_id": id, "messages": history})
}

func (h *ChatHandler) ResetHistory(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.conversations.Reset(c.Request.Context(), id); err != nil {
		writeError(c, err, "reset history failed")
		return
	}

	response.OK(c, gin.H{"deleted_conversation_id": id})
}
