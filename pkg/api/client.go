package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is the HTTP client for the agent gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new gateway client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateSession starts a new chat session.
func (c *Client) CreateSession(req CreateSessionRequest) (*Session, error) {
	var s Session
	if err := c.postJSON("/api/sessions", req, http.StatusCreated, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSession fetches a session by id.
func (c *Client) GetSession(sessionID string) (*Session, error) {
	var s Session
	if err := c.getJSON("/api/sessions/"+url.PathEscape(sessionID), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSessions returns the user's sessions, most recently updated first.
func (c *Client) ListSessions(userID string, limit int) ([]Session, error) {
	path := "/api/sessions?userId=" + url.QueryEscape(userID)
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}
	var sessions []Session
	if err := c.getJSON(path, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// PostMessage appends a user message; generation results arrive on the
// stream identified in the response.
func (c *Client) PostMessage(sessionID string, req PostMessageRequest) (*PostMessageResponse, error) {
	var resp PostMessageResponse
	path := fmt.Sprintf("/api/sessions/%s/messages", url.PathEscape(sessionID))
	if err := c.postJSON(path, req, http.StatusAccepted, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RestoreSession recreates a historical session with back-filled messages.
func (c *Client) RestoreSession(req RestoreSessionRequest) (*RestoreSessionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpResp, err := c.httpClient.Post(c.baseURL+"/api/sessions/restore", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer httpResp.Body.Close()

	// 200 means the session already existed, 201 means it was restored.
	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return nil, decodeError(httpResp)
	}

	var resp RestoreSessionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &resp, nil
}

// CancelStream asks any open stream for the session to close.
func (c *Client) CancelStream(sessionID, reason string) error {
	path := fmt.Sprintf("/api/sessions/%s/cancel", url.PathEscape(sessionID))
	return c.postJSON(path, CancelStreamRequest{Reason: reason}, http.StatusNoContent, nil)
}

// DeleteSession removes a session. Deleting an absent session succeeds.
func (c *Client) DeleteSession(sessionID string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/api/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return decodeError(resp)
	}
	return nil
}

// ExtendSession refreshes the session's expiry window.
func (c *Client) ExtendSession(sessionID string) error {
	path := fmt.Sprintf("/api/sessions/%s/extend", url.PathEscape(sessionID))
	return c.postJSON(path, nil, http.StatusNoContent, nil)
}

// GetHealth checks the health of the gateway.
func (c *Client) GetHealth() (*HealthStatus, error) {
	var health HealthStatus
	if err := c.getJSON("/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// StreamEvents opens the session's SSE stream and invokes fn once per event
// until a terminal event arrives, fn returns false, or ctx is cancelled.
func (c *Client) StreamEvents(ctx context.Context, sessionID string, fn func(StreamEvent) bool) error {
	path := fmt.Sprintf("%s/api/sessions/%s/stream", c.baseURL, url.PathEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// Streams outlive the default request timeout.
	streamClient := &http.Client{}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			return fmt.Errorf("failed to unmarshal stream event: %w", err)
		}

		if !fn(event) {
			return nil
		}
		if event.Type == "end" || event.Type == "error" {
			return nil
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

func (c *Client) getJSON(path string, out any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(path string, payload any, wantStatus int, out any) error {
	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", body)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

func decodeError(resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)

	var apiErr ErrorResponse
	if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(respBody))
}
