package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
)

// webhookPayload is the subset of an Evolution API event the bridge reads
type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Key struct {
			RemoteJID string `json:"remoteJid"`
			FromMe    bool   `json:"fromMe"`
			ID        string `json:"id"`
		} `json:"key"`
		PushName string         `json:"pushName"`
		Message  webhookMessage `json:"message"`
	} `json:"data"`
}

type webhookMessage struct {
	Conversation        string `json:"conversation"`
	ExtendedTextMessage *struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
	ImageMessage *struct {
		Caption string `json:"caption"`
	} `json:"imageMessage"`
}

// text returns the first non-empty of conversation, extended text and image caption
func (m webhookMessage) text() string {
	if m.Conversation != "" {
		return m.Conversation
	}
	if m.ExtendedTextMessage != nil && m.ExtendedTextMessage.Text != "" {
		return m.ExtendedTextMessage.Text
	}
	if m.ImageMessage != nil {
		return m.ImageMessage.Caption
	}
	return ""
}

func (p *webhookPayload) inbound(receivedAt time.Time) *domain.InboundMessage {
	return &domain.InboundMessage{
		ID:         p.Data.Key.ID,
		ChatID:     p.Data.Key.RemoteJID,
		Text:       p.Data.Message.text(),
		FromMe:     p.Data.Key.FromMe,
		PushName:   p.Data.PushName,
		ReceivedAt: receivedAt,
	}
}

// HandleWebhook accepts gateway events. It always answers 200 so the gateway
// does not redeliver; failures are reported in the body.
func (s *Server) HandleWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.logger.WarnContext(ctx, "invalid webhook payload", "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": err.Error()})
		return
	}

	msg := payload.inbound(s.now())
	if !msg.Bufferable() {
		s.logger.DebugContext(ctx, "webhook event ignored",
			"event", payload.Event,
			"chat_id", msg.ChatID,
			"from_me", msg.FromMe,
			"group", msg.IsGroup(),
		)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	if msg.ID != "" && s.markSeen(msg.ID) {
		s.logger.InfoContext(ctx, "duplicate message ignored", "msg_id", msg.ID, "chat_id", msg.ChatID)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	s.logger.InfoContext(ctx, "message received",
		"chat_id", msg.ChatID,
		"msg_id", msg.ID,
		"push_name", msg.PushName,
		"length", len(msg.Text),
	)

	if err := s.coordinator.Enqueue(ctx, msg.ChatID, msg.Text); err != nil {
		s.logger.ErrorContext(ctx, "enqueue failed", "chat_id", msg.ChatID, "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
