package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names
const (
	ToolListMeetings  = "meet_list_meetings"
	ToolGetMeeting    = "meet_get_meeting"
	ToolNextTopic     = "meet_next_topic"
	ToolCancelMeeting = "meet_cancel_meeting"
)

// Server exposes meeting operations as MCP tools
type Server struct {
	server  *mcp.Server
	handler *Handler
}

// NewServer creates the MCP server and registers its tools
func NewServer(client *Client, version string) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "meetbot-tools",
			Version: version,
		}, nil),
		handler: NewHandler(client),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolListMeetings,
		Description: "List the meetings that are currently staged or in progress, with their state and voice join code.",
	}, s.handler.ListMeetings)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolGetMeeting,
		Description: "Get one meeting with its topics, the current topic and the seconds left on it.",
	}, s.handler.GetMeeting)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolNextTopic,
		Description: "End the current topic of a running meeting and move on to the next one.",
	}, s.handler.NextTopic)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolCancelMeeting,
		Description: "Cancel a meeting. Phone participants are dropped and the meeting is deleted.",
	}, s.handler.CancelMeeting)
}

// Run serves MCP over stdio until ctx is done or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying SDK server
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
