package mcp

import (
	"context"
	"errors"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/evobot/wa-rag-bridge/internal/server"
)

// Server exposes the bridge admin API as MCP tools
type Server struct {
	server *mcpsdk.Server
	client *Client
}

// NewServer creates the MCP server and registers its tools
func NewServer(client *Client, version string) *Server {
	s := &Server{
		server: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    "wa-rag-bridge",
			Version: version,
		}, nil),
		client: client,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "buffer_status",
		Description: "Show the message buffer mode (durable or fallback), how many chats are waiting for their quiet interval and how many flushes are running.",
	}, s.handleStatus)

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "buffer_pending",
		Description: "List the messages of a chat that are buffered and not yet answered.",
	}, s.handlePending)

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "buffer_flush",
		Description: "Answer a chat now instead of waiting for its quiet interval. Returns the aggregated input and the reply that was sent.",
	}, s.handleFlush)

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "buffer_clear",
		Description: "Drop the buffered messages of a chat without answering them.",
	}, s.handleClearBuffer)

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "history_clear",
		Description: "Forget the conversation history the assistant keeps for a chat.",
	}, s.handleClearHistory)
}

// Run serves MCP over stdio until ctx is done
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// MCPServer returns the underlying SDK server
func (s *Server) MCPServer() *mcpsdk.Server {
	return s.server
}

// StatusInput is the input for buffer_status
type StatusInput struct{}

// ChatInput names the chat a tool acts on
type ChatInput struct {
	ChatID string `json:"chat_id" jsonschema:"the chat id, for WhatsApp the remoteJid such as 5511999999999@s.whatsapp.net"`
}

// ClearOutput is the output of the clear tools
type ClearOutput struct {
	Success bool   `json:"success"`
	ChatID  string `json:"chat_id"`
}

var errChatIDRequired = errors.New("chat_id is required")

func (s *Server) handleStatus(ctx context.Context, _ *mcpsdk.CallToolRequest, _ StatusInput) (*mcpsdk.CallToolResult, server.StatusResponse, error) {
	status, err := s.client.Status(ctx)
	if err != nil {
		return nil, server.StatusResponse{}, err
	}
	return nil, *status, nil
}

func (s *Server) handlePending(ctx context.Context, _ *mcpsdk.CallToolRequest, input ChatInput) (*mcpsdk.CallToolResult, PendingMessages, error) {
	if input.ChatID == "" {
		return nil, PendingMessages{}, errChatIDRequired
	}
	pending, err := s.client.Pending(ctx, input.ChatID)
	if err != nil {
		return nil, PendingMessages{}, err
	}
	return nil, *pending, nil
}

func (s *Server) handleFlush(ctx context.Context, _ *mcpsdk.CallToolRequest, input ChatInput) (*mcpsdk.CallToolResult, server.FlushResponse, error) {
	if input.ChatID == "" {
		return nil, server.FlushResponse{}, errChatIDRequired
	}
	result, err := s.client.Flush(ctx, input.ChatID)
	if err != nil {
		return nil, server.FlushResponse{}, err
	}
	return nil, *result, nil
}

func (s *Server) handleClearBuffer(ctx context.Context, _ *mcpsdk.CallToolRequest, input ChatInput) (*mcpsdk.CallToolResult, ClearOutput, error) {
	if input.ChatID == "" {
		return nil, ClearOutput{}, errChatIDRequired
	}
	if err := s.client.ClearBuffer(ctx, input.ChatID); err != nil {
		return nil, ClearOutput{}, err
	}
	return nil, ClearOutput{Success: true, ChatID: input.ChatID}, nil
}

func (s *Server) handleClearHistory(ctx context.Context, _ *mcpsdk.CallToolRequest, input ChatInput) (*mcpsdk.CallToolResult, ClearOutput, error) {
	if input.ChatID == "" {
		return nil, ClearOutput{}, errChatIDRequired
	}
	if err := s.client.ClearHistory(ctx, input.ChatID); err != nil {
		return nil, ClearOutput{}, err
	}
	return nil, ClearOutput{Success: true, ChatID: input.ChatID}, nil
}
