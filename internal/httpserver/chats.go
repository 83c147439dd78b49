package httpserver

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

const (
	streamBuffer    = 32
	streamKeepAlive = 25 * time.Second
)

type messageRequest struct {
	Content string `json:"content" binding:"required"`
}

type chatStartedResponse struct {
	Chat    *domain.Chat        `json:"chat"`
	Message *domain.ChatMessage `json:"message"`
}

func (h *handlers) startChat(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "content is required")
		return
	}
	chat, msg, err := h.Chats.Start(c.Request.Context(), principal(c).CustomerID, req.Content)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, chatStartedResponse{Chat: chat, Message: msg})
}

func (h *handlers) listMyChats(c *gin.Context) {
	list, err := h.Chats.ListForCustomer(c.Request.Context(), principal(c).CustomerID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": orEmpty(list)})
}

func (h *handlers) chatMessages(c *gin.Context) {
	msgs, err := h.Chats.Messages(c.Request.Context(), c.Param("id"), principal(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": orEmpty(msgs)})
}

func (h *handlers) sendChatMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "content is required")
		return
	}
	msg, err := h.Chats.Send(c.Request.Context(), c.Param("id"), principal(c), req.Content)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *handlers) closeChat(c *gin.Context) {
	chat, err := h.Chats.Close(c.Request.Context(), c.Param("id"), principal(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// streamChat pushes new messages as server-sent events until the client
// disconnects. A viewer that falls behind loses pushes and should reload.
func (h *handlers) streamChat(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("id")
	updates := make(chan domain.ChatMessage, streamBuffer)
	unsubscribe, err := h.Chats.Subscribe(ctx, chatID, principal(c), func(m domain.ChatMessage) {
		select {
		case updates <- m:
		default:
			h.logger.Warn().Str("chat_id", chatID).Str("message_id", m.ID).Msg("stream viewer too slow, push dropped")
		}
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case m := <-updates:
			c.SSEvent("message", m)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}

func (h *handlers) listOpenChats(c *gin.Context) {
	list, err := h.Chats.ListOpen(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": orEmpty(list)})
}

func (h *handlers) listAssignedChats(c *gin.Context) {
	list, err := h.Chats.ListForRep(c.Request.Context(), principal(c).CustomerID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": orEmpty(list)})
}

func (h *handlers) claimChat(c *gin.Context) {
	chat, err := h.Chats.Claim(c.Request.Context(), c.Param("id"), principal(c).CustomerID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}
