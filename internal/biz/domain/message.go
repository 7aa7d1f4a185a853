package domain

import (
	"strings"
	"time"
)

const (
	whatsappUserSuffix  = "@s.whatsapp.net"
	whatsappGroupSuffix = "@g.us"
)

// InboundMessage is a chat message delivered by the gateway webhook
type InboundMessage struct {
	ID         string
	ChatID     string
	Text       string
	FromMe     bool
	PushName   string
	ReceivedAt time.Time
}

// IsGroup reports whether the message belongs to a group chat
func (m *InboundMessage) IsGroup() bool {
	return IsGroupChat(m.ChatID)
}

// Bufferable reports whether the message should be fed to the debouncer
func (m *InboundMessage) Bufferable() bool {
	return !m.FromMe && m.ChatID != "" && m.Text != "" && !m.IsGroup()
}

// IsGroupChat reports whether a chat id addresses a group
func IsGroupChat(chatID string) bool {
	return strings.HasSuffix(chatID, whatsappGroupSuffix)
}

// PhoneNumber strips WhatsApp address suffixes from a chat id
func PhoneNumber(chatID string) string {
	n := strings.TrimSuffix(chatID, whatsappUserSuffix)
	return strings.TrimSuffix(n, whatsappGroupSuffix)
}

// UserJID returns the WhatsApp user address for a phone number
func UserJID(number string) string {
	return PhoneNumber(number) + whatsappUserSuffix
}
