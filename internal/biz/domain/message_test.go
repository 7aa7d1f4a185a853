package domain

import (
	"testing"
	"time"
)

func TestPhoneNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"5511999999999@s.whatsapp.net", "5511999999999"},
		{"120363025@g.us", "120363025"},
		{"5511999999999", "5511999999999"},
	}
	for _, c := range cases {
		if got := PhoneNumber(c.in); got != c.want {
			t.Errorf("PhoneNumber(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestUserJID(t *testing.T) {
	if got := UserJID("5511999999999@s.whatsapp.net"); got != "5511999999999@s.whatsapp.net" {
		t.Errorf("Unexpected JID %q", got)
	}
	if got := UserJID("5511999999999"); got != "5511999999999@s.whatsapp.net" {
		t.Errorf("Unexpected JID %q", got)
	}
}

func TestInboundMessage_Bufferable(t *testing.T) {
	base := InboundMessage{ID: "1", ChatID: "5511@s.whatsapp.net", Text: "Oi", ReceivedAt: time.Now()}

	if !base.Bufferable() {
		t.Error("Expected direct message to be bufferable")
	}

	fromMe := base
	fromMe.FromMe = true
	if fromMe.Bufferable() {
		t.Error("Expected own message to be ignored")
	}

	group := base
	group.ChatID = "120363025@g.us"
	if group.Bufferable() {
		t.Error("Expected group message to be ignored")
	}

	empty := base
	empty.Text = ""
	if empty.Bufferable() {
		t.Error("Expected empty message to be ignored")
	}
}

func TestHistoryConfig_Since(t *testing.T) {
	now := time.Now()
	if got := (HistoryConfig{}).Since(now); !got.IsZero() {
		t.Errorf("Expected zero time without TTL, got %v", got)
	}
	cfg := HistoryConfig{TTL: 2 * time.Hour}
	if got := cfg.Since(now); !got.Equal(now.Add(-2 * time.Hour)) {
		t.Errorf("Unexpected window start %v", got)
	}
}
