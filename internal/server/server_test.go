package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
)

type enqueued struct {
	chatID string
	text   string
}

type fakeCoordinator struct {
	mu         sync.Mutex
	enqueued   []enqueued
	enqueueErr error
	pending    map[string][]string
	cleared    []string
	flushed    []string
	result     *domain.FlushResult
	status     domain.BufferStatus
}

func (f *fakeCoordinator) Enqueue(_ context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.enqueued = append(f.enqueued, enqueued{chatID, text})
	return nil
}

func (f *fakeCoordinator) FlushNow(_ context.Context, chatID string) *domain.FlushResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed = append(f.flushed, chatID)
	if f.result != nil {
		return f.result
	}
	return &domain.FlushResult{ChatID: chatID}
}

func (f *fakeCoordinator) Clear(_ context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, chatID)
	return nil
}

func (f *fakeCoordinator) Pending(_ context.Context, chatID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending[chatID], nil
}

func (f *fakeCoordinator) Status() domain.BufferStatus {
	return f.status
}

type fakeHistory struct {
	cleared []string
}

func (f *fakeHistory) ClearHistory(_ context.Context, sessionID string) error {
	f.cleared = append(f.cleared, sessionID)
	return nil
}

func newTestServer(t *testing.T, apiKey string) (*Server, *fakeCoordinator, *fakeHistory) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	coord := &fakeCoordinator{pending: map[string][]string{}}
	hist := &fakeHistory{}
	s := New(Config{Addr: ":0", AdminAPIKey: apiKey}, coord, hist, nil)
	return s, coord, hist
}

func do(t *testing.T, s *Server, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func webhookBody(id, jid, text string, fromMe bool) string {
	payload := map[string]any{
		"event": "messages.upsert",
		"data": map[string]any{
			"key":      map[string]any{"remoteJid": jid, "fromMe": fromMe, "id": id},
			"pushName": "Ana",
			"message":  map[string]any{"conversation": text},
		},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func TestWebhook_EnqueuesConversation(t *testing.T) {
	s, coord, _ := newTestServer(t, "")

	w, out := do(t, s, http.MethodPost, "/webhook", webhookBody("m1", "5511999999999@s.whatsapp.net", "Oi", false), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", out["status"])
	require.Len(t, coord.enqueued, 1)
	assert.Equal(t, enqueued{"5511999999999@s.whatsapp.net", "Oi"}, coord.enqueued[0])
}

func TestWebhook_TextSources(t *testing.T) {
	cases := map[string]string{
		"extended": `{"data":{"key":{"remoteJid":"1@s.whatsapp.net","id":"a"},"message":{"extendedTextMessage":{"text":"from extended"}}}}`,
		"caption":  `{"data":{"key":{"remoteJid":"1@s.whatsapp.net","id":"b"},"message":{"imageMessage":{"caption":"from caption"}}}}`,
	}
	want := map[string]string{"extended": "from extended", "caption": "from caption"}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			s, coord, _ := newTestServer(t, "")
			w, _ := do(t, s, http.MethodPost, "/webhook", body, nil)
			assert.Equal(t, http.StatusOK, w.Code)
			require.Len(t, coord.enqueued, 1)
			assert.Equal(t, want[name], coord.enqueued[0].text)
		})
	}
}

func TestWebhook_IgnoresUnbufferable(t *testing.T) {
	s, coord, _ := newTestServer(t, "")

	bodies := []string{
		webhookBody("m1", "5511@s.whatsapp.net", "mine", true),
		webhookBody("m2", "120363@g.us", "group", false),
		webhookBody("m3", "5511@s.whatsapp.net", "", false),
		webhookBody("m4", "", "no chat", false),
		`{"event":"connection.update","data":{}}`,
	}
	for _, body := range bodies {
		w, out := do(t, s, http.MethodPost, "/webhook", body, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", out["status"])
	}
	assert.Empty(t, coord.enqueued)
}

func TestWebhook_InvalidJSON(t *testing.T) {
	s, coord, _ := newTestServer(t, "")

	w, out := do(t, s, http.MethodPost, "/webhook", "{not json", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "error", out["status"])
	assert.NotEmpty(t, out["message"])
	assert.Empty(t, coord.enqueued)
}

func TestWebhook_EnqueueError(t *testing.T) {
	s, coord, _ := newTestServer(t, "")
	coord.enqueueErr = errors.New("store down")

	w, out := do(t, s, http.MethodPost, "/webhook", webhookBody("m1", "1@s.whatsapp.net", "Oi", false), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "store down", out["message"])
}

func TestWebhook_Dedup(t *testing.T) {
	s, coord, _ := newTestServer(t, "")
	now := time.Now()
	s.now = func() time.Time { return now }

	body := webhookBody("dup", "1@s.whatsapp.net", "Oi", false)
	do(t, s, http.MethodPost, "/webhook", body, nil)
	do(t, s, http.MethodPost, "/webhook", body, nil)
	require.Len(t, coord.enqueued, 1)

	// redelivery after the dedup window counts again
	now = now.Add(seenTTL + time.Second)
	do(t, s, http.MethodPost, "/webhook", body, nil)
	assert.Len(t, coord.enqueued, 2)
}

func TestAdmin_RequiresKey(t *testing.T) {
	s, _, _ := newTestServer(t, "secret")

	w, _ := do(t, s, http.MethodGet, "/api/buffer/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, s, http.MethodGet, "/api/buffer/status", "", map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, s, http.MethodGet, "/api/buffer/status", "", map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, s, http.MethodGet, "/api/buffer/status", "", map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	// health and webhook stay public
	w, _ = do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, s, http.MethodPost, "/webhook", "{}", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdmin_Status(t *testing.T) {
	s, coord, _ := newTestServer(t, "")
	coord.status = domain.BufferStatus{Mode: domain.BufferModeDurable, ArmedChats: 2, InflightFlushes: 1}

	w, out := do(t, s, http.MethodGet, "/api/buffer/status", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "durable", out["mode"])
	assert.EqualValues(t, 2, out["armed_chats"])
	assert.EqualValues(t, 1, out["inflight_flushes"])
}

func TestAdmin_Pending(t *testing.T) {
	s, coord, _ := newTestServer(t, "")
	coord.pending["chat-1"] = []string{"a", "b"}

	w, out := do(t, s, http.MethodGet, "/api/buffer/chat-1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, out["count"])
	assert.Equal(t, []any{"a", "b"}, out["messages"])

	_, out = do(t, s, http.MethodGet, "/api/buffer/other", "", nil)
	assert.EqualValues(t, 0, out["count"])
	assert.Equal(t, []any{}, out["messages"])
}

func TestAdmin_Flush(t *testing.T) {
	s, coord, _ := newTestServer(t, "")
	coord.result = &domain.FlushResult{
		FlushID:      "f1",
		ChatID:       "chat-1",
		MessageCount: 2,
		Input:        "a\nb",
		Answer:       "resposta",
		SendErr:      domain.ErrSendFailed,
		Duration:     1500 * time.Millisecond,
	}

	w, out := do(t, s, http.MethodPost, "/api/buffer/chat-1/flush", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"chat-1"}, coord.flushed)
	assert.Equal(t, "f1", out["flush_id"])
	assert.EqualValues(t, 2, out["message_count"])
	assert.Equal(t, false, out["skipped"])
	assert.Equal(t, false, out["delivered"])
	assert.Equal(t, "resposta", out["answer"])
	assert.EqualValues(t, 1500, out["duration_ms"])
	assert.Contains(t, out["error"], domain.ErrSendFailed.Error())
}

func TestAdmin_ClearBufferAndHistory(t *testing.T) {
	s, coord, hist := newTestServer(t, "")

	w, _ := do(t, s, http.MethodDelete, "/api/buffer/chat-1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"chat-1"}, coord.cleared)

	w, _ = do(t, s, http.MethodDelete, "/api/history/chat-1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"chat-1"}, hist.cleared)
}

func TestAdmin_HistoryNotConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(Config{}, &fakeCoordinator{}, nil, nil)

	w, _ := do(t, s, http.MethodDelete, "/api/history/chat-1", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
