package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Handler implements the tools on top of the admin API client
type Handler struct {
	client *Client
}

// NewHandler creates a new MCP handler
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// ListMeetingsInput is empty
type ListMeetingsInput struct{}

// ListMeetingsOutput contains the live meetings
type ListMeetingsOutput struct {
	Meetings []Meeting `json:"meetings"`
}

// MeetingInput selects a meeting
type MeetingInput struct {
	MeetingID string `json:"meeting_id" jsonschema:"the meeting ID as returned by meet_list_meetings"`
}

// MeetingOutput is a single meeting
type MeetingOutput struct {
	Meeting Meeting `json:"meeting"`
}

// ActionOutput reports the result of a meeting action
type ActionOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) ListMeetings(ctx context.Context, req *mcp.CallToolRequest, input ListMeetingsInput) (*mcp.CallToolResult, ListMeetingsOutput, error) {
	meetings, err := h.client.ListMeetings(ctx)
	if err != nil {
		return nil, ListMeetingsOutput{}, err
	}
	if meetings == nil {
		meetings = []Meeting{}
	}
	return nil, ListMeetingsOutput{Meetings: meetings}, nil
}

func (h *Handler) GetMeeting(ctx context.Context, req *mcp.CallToolRequest, input MeetingInput) (*mcp.CallToolResult, MeetingOutput, error) {
	if input.MeetingID == "" {
		return nil, MeetingOutput{}, fmt.Errorf("meeting_id is required")
	}
	m, err := h.client.GetMeeting(ctx, input.MeetingID)
	if err != nil {
		return nil, MeetingOutput{}, err
	}
	return nil, MeetingOutput{Meeting: *m}, nil
}

func (h *Handler) NextTopic(ctx context.Context, req *mcp.CallToolRequest, input MeetingInput) (*mcp.CallToolResult, ActionOutput, error) {
	return h.action(ctx, input, h.client.NextTopic)
}

func (h *Handler) CancelMeeting(ctx context.Context, req *mcp.CallToolRequest, input MeetingInput) (*mcp.CallToolResult, ActionOutput, error) {
	return h.action(ctx, input, h.client.CancelMeeting)
}

// action runs a meeting action; API refusals (not running, gone) are
// reported in the output rather than as tool failures
func (h *Handler) action(ctx context.Context, input MeetingInput, fn func(context.Context, string) error) (*mcp.CallToolResult, ActionOutput, error) {
	if input.MeetingID == "" {
		return nil, ActionOutput{Success: false, Error: "meeting_id is required"}, nil
	}
	if err := fn(ctx, input.MeetingID); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, ActionOutput{Success: false, Error: apiErr.Message}, nil
		}
		return nil, ActionOutput{}, err
	}
	return nil, ActionOutput{Success: true}, nil
}
