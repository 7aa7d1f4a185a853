package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
)

// FlushResponse is the JSON view of a flush run
type FlushResponse struct {
	FlushID      string `json:"flush_id"`
	ChatID       string `json:"chat_id"`
	MessageCount int    `json:"message_count"`
	Skipped      bool   `json:"skipped"`
	Delivered    bool   `json:"delivered"`
	Apologized   bool   `json:"apologized"`
	Input        string `json:"input,omitempty"`
	Answer       string `json:"answer,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
}

func newFlushResponse(r *domain.FlushResult) FlushResponse {
	resp := FlushResponse{
		FlushID:      r.FlushID,
		ChatID:       r.ChatID,
		MessageCount: r.MessageCount,
		Skipped:      r.Skipped(),
		Delivered:    r.Delivered(),
		Apologized:   r.Apologized,
		Input:        r.Input,
		Answer:       r.Answer,
		DurationMS:   r.Duration.Milliseconds(),
	}
	if err := r.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// StatusResponse is the JSON view of the coordinator state
type StatusResponse struct {
	Mode            string `json:"mode"`
	ArmedChats      int    `json:"armed_chats"`
	InflightFlushes int    `json:"inflight_flushes"`
}

// BufferStatus GET /api/buffer/status
func (s *Server) BufferStatus(c *gin.Context) {
	st := s.coordinator.Status()
	c.JSON(http.StatusOK, StatusResponse{
		Mode:            st.Mode.String(),
		ArmedChats:      st.ArmedChats,
		InflightFlushes: st.InflightFlushes,
	})
}

// BufferPending GET /api/buffer/:chat_id
func (s *Server) BufferPending(c *gin.Context) {
	chatID := c.Param("chat_id")
	messages, err := s.coordinator.Pending(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if messages == nil {
		messages = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"chat_id":  chatID,
		"count":    len(messages),
		"messages": messages,
	})
}

// BufferFlush POST /api/buffer/:chat_id/flush
func (s *Server) BufferFlush(c *gin.Context) {
	result := s.coordinator.FlushNow(c.Request.Context(), c.Param("chat_id"))
	c.JSON(http.StatusOK, newFlushResponse(result))
}

// BufferClear DELETE /api/buffer/:chat_id
func (s *Server) BufferClear(c *gin.Context) {
	chatID := c.Param("chat_id")
	if err := s.coordinator.Clear(c.Request.Context(), chatID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "chat_id": chatID})
}

// HistoryClear DELETE /api/history/:chat_id
func (s *Server) HistoryClear(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history not configured"})
		return
	}
	chatID := c.Param("chat_id")
	if err := s.history.ClearHistory(c.Request.Context(), chatID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "chat_id": chatID})
}
