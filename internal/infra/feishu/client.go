package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

// Client sends bot replies through the Feishu open platform
type Client struct {
	larkCli *lark.Client
	logger  *slog.Logger
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		larkCli: lark.NewClient(appID, appSecret),
		logger:  logger.With("component", "feishu"),
	}
}

// SendText sends a text message. Receivers starting with "ou_" are treated
// as user open ids, anything else as a chat id.
func (c *Client) SendText(ctx context.Context, receiveID, text string) error {
	content := map[string]string{"text": text}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType(receiveID)).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}

	c.logger.Info("message sent", "receive_id", receiveID)
	return nil
}

func receiveIDType(id string) string {
	if strings.HasPrefix(id, "ou_") {
		return larkim.ReceiveIdTypeOpenId
	}
	return larkim.ReceiveIdTypeChatId
}
