// Package tropo talks to the Tropo telephony platform: the REST session
// API for outbound calls and signals, and the WebAPI JSON used to answer
// IVR callbacks.
package tropo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAPIURL is the public Tropo REST endpoint
const DefaultAPIURL = "https://api.tropo.com/1.0"

// Client is the Tropo REST client
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Tropo client authenticated with the application token
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateSession launches the voice application, dialing sipAddress and
// passing msg as a session parameter
func (c *Client) CreateSession(ctx context.Context, sipAddress, msg string) error {
	body := map[string]string{
		"token":      c.token,
		"sipAddress": "sip:" + sipAddress + ";transport=tcp",
		"msg":        msg,
	}
	return c.post(ctx, "/sessions", body)
}

// Signal interrupts the session; the running script jumps to its "on" handler
// for the signal value
func (c *Client) Signal(ctx context.Context, sessionID, value string) error {
	path := fmt.Sprintf("/sessions/%s/signals?action=signal&value=%s",
		url.PathEscape(sessionID), url.QueryEscape(value))
	return c.post(ctx, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("tropo error %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
