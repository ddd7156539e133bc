// Package backend is the REST client for the streaming platform's backend
// service. Every call forwards the operator's identity token as a bearer.
package backend

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

	"github.com/rs/zerolog"
)

// Recorder counts backend calls by operation and status (0 for transport errors).
type Recorder interface {
	BackendRequest(op string, status int)
}

type Options struct {
	BaseURL    string
	HTTP       *http.Client
	Logger     zerolog.Logger
	Metrics    Recorder
	HealthPath string
}

type Client struct {
	baseURL    string
	http       *http.Client
	log        zerolog.Logger
	metrics    Recorder
	healthPath string
}

func New(opts Options) *Client {
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.HealthPath == "" {
		opts.HealthPath = "/health"
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		http:       opts.HTTP,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		healthPath: opts.HealthPath,
	}
}

// Validate exchanges an identity token for a role-annotated profile. A decoded
// {"success":false} reply is returned without error whatever the status.
func (c *Client) Validate(ctx context.Context, idToken string) (*ValidateResponse, error) {
	payload, err := json.Marshal(map[string]string{"id_token": idToken})
	if err != nil {
		return nil, err
	}
	status, body, err := c.do(ctx, "validate", http.MethodPost, "/auth/validate", "", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	var out ValidateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if status >= 400 {
			return nil, &HTTPError{Status: status, Body: string(body)}
		}
		return nil, &TransportError{Op: "validate", Err: fmt.Errorf("decode: %w", err)}
	}
	if status >= 400 && out.Success {
		return nil, &HTTPError{Status: status, Body: string(body)}
	}
	return &out, nil
}

func (c *Client) Session(ctx context.Context, token, id string) (*SessionResponse, error) {
	raw, err := c.getJSON(ctx, "session", token, "/sessions/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	var out SessionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &TransportError{Op: "session", Err: fmt.Errorf("decode: %w", err)}
	}
	return &out, nil
}

func (c *Client) SessionFrames(ctx context.Context, token, id string) (json.RawMessage, error) {
	return c.getJSON(ctx, "session_frames", token, "/sessions/"+url.PathEscape(id)+"/frames")
}

func (c *Client) SessionVideos(ctx context.Context, token, id string) (json.RawMessage, error) {
	return c.getJSON(ctx, "session_videos", token, "/api/sessions/"+url.PathEscape(id)+"/videos")
}

func (c *Client) SessionLogs(ctx context.Context, token, id string) (json.RawMessage, error) {
	return c.getJSON(ctx, "session_logs", token, "/api/sessions/"+url.PathEscape(id)+"/logs")
}

func (c *Client) Sessions(ctx context.Context, token string) (json.RawMessage, error) {
	return c.getJSON(ctx, "sessions", token, "/api/sessions")
}

func (c *Client) SessionsLastHourCount(ctx context.Context, token string) (int, error) {
	return c.getCount(ctx, "sessions_last_hour", token, "/api/sessions/last-hour/count")
}

func (c *Client) Channels(ctx context.Context, token string) (json.RawMessage, error) {
	return c.getJSON(ctx, "channels", token, "/api/channels")
}

func (c *Client) OnlineChannelsCount(ctx context.Context, token string) (int, error) {
	return c.getCount(ctx, "channels_online", token, "/api/channels/online/count")
}

func (c *Client) ViewerChannels(ctx context.Context, token string) (*ChannelList, error) {
	raw, err := c.getJSON(ctx, "viewer_channels", token, "/viewer/channels")
	if err != nil {
		return nil, err
	}
	var out ChannelList
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &TransportError{Op: "viewer_channels", Err: fmt.Errorf("decode: %w", err)}
	}
	if out.Total == 0 {
		out.Total = len(out.Channels)
	}
	return &out, nil
}

func (c *Client) ViewerChannel(ctx context.Context, token, id string) (*Channel, error) {
	raw, err := c.getJSON(ctx, "viewer_channel", token, "/viewer/channels/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	var out Channel
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &TransportError{Op: "viewer_channel", Err: fmt.Errorf("decode: %w", err)}
	}
	if out.ChannelID == "" {
		out.ChannelID = id
	}
	return &out, nil
}

// RedisKey looks up a debug key. The key is path escaped.
func (c *Client) RedisKey(ctx context.Context, token, key string) (json.RawMessage, error) {
	return c.getJSON(ctx, "redis", token, "/api/redis/"+url.PathEscape(key))
}

// Ping reports whether the backend health endpoint answers 2xx, and how fast.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	status, _, err := c.do(ctx, "ping", http.MethodGet, c.healthPath, "", nil)
	latency := time.Since(start)
	if err != nil {
		return latency, err
	}
	if status < 200 || status > 299 {
		return latency, &HTTPError{Status: status}
	}
	return latency, nil
}

func (c *Client) getCount(ctx context.Context, op, token, path string) (int, error) {
	raw, err := c.getJSON(ctx, op, token, path)
	if err != nil {
		return 0, err
	}
	n, err := decodeCount(raw)
	if err != nil {
		return 0, &TransportError{Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return n, nil
}

func (c *Client) getJSON(ctx context.Context, op, token, path string) (json.RawMessage, error) {
	status, body, err := c.do(ctx, op, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case status == http.StatusNoContent:
		return nil, ErrNoContent
	case status >= 400:
		return nil, &HTTPError{Status: status, Body: string(body)}
	}
	if !json.Valid(body) {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("invalid JSON from %s", path)}
	}
	return json.RawMessage(body), nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.record(op, 0)
		c.log.Error().Err(err).Str("op", op).Str("path", path).Msg("backend request failed")
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.record(op, 0)
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	c.record(op, resp.StatusCode)
	ev := c.log.Debug()
	if resp.StatusCode >= 400 {
		ev = c.log.Warn()
	}
	ev.Str("op", op).Str("path", path).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("backend response")
	return resp.StatusCode, data, nil
}

func (c *Client) record(op string, status int) {
	if c.metrics != nil {
		c.metrics.BackendRequest(op, status)
	}
}
