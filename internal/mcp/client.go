package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the bot's admin HTTP API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new admin API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Meeting mirrors the admin API meeting view
type Meeting struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	ChatID         string  `json:"chat_id"`
	State          string  `json:"state"`
	VoiceCode      string  `json:"voice_code"`
	AudioBridge    bool    `json:"audio_bridge"`
	VoiceUsed      bool    `json:"voice_used"`
	LengthMinutes  int     `json:"length_minutes"`
	TopicTimeLimit int     `json:"topic_time_limit"`
	CurrentTopic   string  `json:"current_topic,omitempty"`
	Topics         []Topic `json:"topics,omitempty"`
}

// Topic mirrors the admin API topic view
type Topic struct {
	ID               string `json:"id"`
	Seq              int    `json:"seq"`
	Name             string `json:"name"`
	TimeLeft         int    `json:"time_left"`
	Current          bool   `json:"current"`
	Recording        bool   `json:"recording"`
	HasTranscription bool   `json:"has_transcription"`
}

// ListMeetings returns every live meeting, without topics
func (c *Client) ListMeetings(ctx context.Context) ([]Meeting, error) {
	var result struct {
		Meetings []Meeting `json:"meetings"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/meetings", &result); err != nil {
		return nil, err
	}
	return result.Meetings, nil
}

// GetMeeting returns one meeting with its topics
func (c *Client) GetMeeting(ctx context.Context, id string) (*Meeting, error) {
	var m Meeting
	if err := c.do(ctx, http.MethodGet, "/api/meetings/"+url.PathEscape(id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// NextTopic ends the current topic of a running meeting early
func (c *Client) NextTopic(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/meetings/"+url.PathEscape(id)+"/next", nil)
}

// CancelMeeting cancels and deletes a meeting
func (c *Client) CancelMeeting(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/meetings/"+url.PathEscape(id)+"/cancel", nil)
}

// APIError is a non-2xx admin API response
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var parsed struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
			apiErr.Message = parsed.Error
		}
		return apiErr
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
