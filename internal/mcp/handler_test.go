package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type actionLog struct {
	mu      sync.Mutex
	actions []string
}

func (l *actionLog) add(action string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actions = append(l.actions, action)
}

func (l *actionLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.actions...)
}

// newAdminAPI fakes the bot's admin endpoints for one meeting "m1"
func newAdminAPI(t *testing.T, state string) (*httptest.Server, *actionLog) {
	t.Helper()
	actions := &actionLog{}
	meeting := Meeting{
		ID:        "m1",
		Name:      "Weekly",
		State:     state,
		VoiceCode: "4321",
		Topics:    []Topic{{ID: "t1", Seq: 0, Name: "Budget", TimeLeft: 120, Current: true}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/meetings", func(w http.ResponseWriter, r *http.Request) {
		list := meeting
		list.Topics = nil
		json.NewEncoder(w).Encode(map[string]interface{}{"meetings": []Meeting{list}})
	})
	mux.HandleFunc("GET /api/meetings/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != meeting.ID {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "meeting not found"})
			return
		}
		json.NewEncoder(w).Encode(meeting)
	})
	mux.HandleFunc("POST /api/meetings/{id}/next", func(w http.ResponseWriter, r *http.Request) {
		if meeting.State != "In Progress" {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "meeting is " + meeting.State})
			return
		}
		actions.add("next:" + r.PathValue("id"))
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})
	mux.HandleFunc("POST /api/meetings/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		actions.add("cancel:" + r.PathValue("id"))
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, actions
}

func TestClient(t *testing.T) {
	api, actions := newAdminAPI(t, "In Progress")
	client := NewClient(api.URL + "/")
	ctx := context.Background()

	meetings, err := client.ListMeetings(ctx)
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, "4321", meetings[0].VoiceCode)

	m, err := client.GetMeeting(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, m.Topics, 1)
	assert.Equal(t, "Budget", m.Topics[0].Name)

	_, err = client.GetMeeting(ctx, "nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "meeting not found", apiErr.Message)

	require.NoError(t, client.NextTopic(ctx, "m1"))
	require.NoError(t, client.CancelMeeting(ctx, "m1"))
	assert.Equal(t, []string{"next:m1", "cancel:m1"}, actions.list())
}

func TestHandlerActions(t *testing.T) {
	ctx := context.Background()

	t.Run("next on staged meeting is refused", func(t *testing.T) {
		api, actions := newAdminAPI(t, "Staged")
		h := NewHandler(NewClient(api.URL))

		_, out, err := h.NextTopic(ctx, nil, MeetingInput{MeetingID: "m1"})
		require.NoError(t, err)
		assert.False(t, out.Success)
		assert.Equal(t, "meeting is Staged", out.Error)
		assert.Empty(t, actions.list())
	})

	t.Run("missing meeting id", func(t *testing.T) {
		api, _ := newAdminAPI(t, "In Progress")
		h := NewHandler(NewClient(api.URL))

		_, out, err := h.CancelMeeting(ctx, nil, MeetingInput{})
		require.NoError(t, err)
		assert.False(t, out.Success)

		_, _, err = h.GetMeeting(ctx, nil, MeetingInput{})
		assert.Error(t, err)
	})

	t.Run("cancel", func(t *testing.T) {
		api, actions := newAdminAPI(t, "In Progress")
		h := NewHandler(NewClient(api.URL))

		_, out, err := h.CancelMeeting(ctx, nil, MeetingInput{MeetingID: "m1"})
		require.NoError(t, err)
		assert.True(t, out.Success)
		assert.Equal(t, []string{"cancel:m1"}, actions.list())
	})

	t.Run("unreachable api is a tool error", func(t *testing.T) {
		h := NewHandler(NewClient("http://127.0.0.1:1"))
		_, _, err := h.ListMeetings(ctx, nil, ListMeetingsInput{})
		assert.Error(t, err)
	})
}

func TestServerOverInMemoryTransport(t *testing.T) {
	api, _ := newAdminAPI(t, "In Progress")
	ctx := context.Background()

	server := NewServer(NewClient(api.URL), "test")
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{ToolListMeetings, ToolGetMeeting, ToolNextTopic, ToolCancelMeeting}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      ToolGetMeeting,
		Arguments: map[string]any{"meeting_id": "m1"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "Budget")
}
