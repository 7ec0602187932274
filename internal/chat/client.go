package chat

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

	"resto-ops-services/internal/apperror"

	"go.uber.org/zap"
)

// Client talks to the conversational backend, which owns the authoritative
// level. Input failing the local table is rejected before any request is made.
type Client struct {
	baseURL string
	http    *http.Client
	machine *Machine
	logger  *zap.Logger
	now     func() time.Time
}

func NewClient(baseURL string, timeout time.Duration, machine *Machine, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if machine == nil {
		machine = Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
		machine: machine,
		logger:  logger,
		now:     time.Now,
	}
}

type Reply struct {
	SessionID string `json:"sessionId"`
	Reply     string `json:"reply"`
	Level     int    `json:"level"`
}

type RemoteSession struct {
	SessionID           string    `json:"sessionId"`
	CurrentLevel        int       `json:"currentLevel"`
	Phone               *string   `json:"phone"`
	ConversationHistory []Message `json:"conversationHistory"`
}

type messageRequest struct {
	SessionID string  `json:"sessionId"`
	Message   string  `json:"message"`
	Level     int     `json:"level"`
	Phone     *string `json:"phone,omitempty"`
}

// Send validates message locally, posts it, and returns the session advanced to
// the level the backend replied with.
func (c *Client) Send(ctx context.Context, s Session, message string) (Session, Reply, error) {
	if err := c.machine.CanSubmit(s, message, c.now()); err != nil {
		return s, Reply{}, err
	}

	var reply Reply
	body := messageRequest{SessionID: s.ID, Message: strings.TrimSpace(message), Level: s.CurrentLevel, Phone: s.Phone}
	if err := c.do(ctx, http.MethodPost, "/chat/message", body, &reply); err != nil {
		return s, Reply{}, err
	}

	at := c.now()
	next, err := c.machine.Advance(s, message, reply.Level, at)
	if err != nil {
		return s, Reply{}, err
	}
	if reply.SessionID != "" {
		next.ID = reply.SessionID
	}
	return AppendReply(next, reply.Reply, at), reply, nil
}

func (c *Client) Reset(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/chat/reset", map[string]string{"sessionId": sessionID}, nil)
}

func (c *Client) Session(ctx context.Context, sessionID string) (RemoteSession, error) {
	var remote RemoteSession
	err := c.do(ctx, http.MethodGet, "/chat/session/"+url.PathEscape(sessionID), nil, &remote)
	return remote, err
}

// Sync overwrites the local level and phone with the backend's view.
func (c *Client) Sync(ctx context.Context, s Session) (Session, error) {
	remote, err := c.Session(ctx, s.ID)
	if err != nil {
		return s, err
	}
	out := s
	out.CurrentLevel = remote.CurrentLevel
	if remote.Phone != nil {
		phone := *remote.Phone
		out.Phone = &phone
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	if c.baseURL == "" {
		return apperror.UpstreamFailed("Chat backend is not configured", nil)
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("chat backend request failed", zap.String("path", path), zap.Error(err))
		return apperror.UpstreamFailed("Chat backend is unreachable", map[string]any{"path": path})
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Warn("chat backend rejected request", zap.String("path", path), zap.Int("status", res.StatusCode))
		return apperror.UpstreamFailed(fmt.Sprintf("Chat backend answered %d", res.StatusCode), map[string]any{"path": path, "status": res.StatusCode})
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return apperror.UpstreamFailed("Chat backend sent an invalid response", map[string]any{"path": path})
	}
	return nil
}
