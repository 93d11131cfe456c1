// Package chatclient is a Go client for the chat server: it logs in over
// HTTP, then speaks the JSON event protocol over a WebSocket.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Placeboguy/anonymous-chat2/internal/chat"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// DefaultTypingInterval is the minimum gap between two typing signals.
const DefaultTypingInterval = 2 * time.Second

// ErrWrongPassword is returned by Login when the username exists and the
// password does not match.
var ErrWrongPassword = errors.New("wrong password")

// Config describes how to reach the server.
type Config struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL string
	// Origin is sent on the WebSocket handshake. Defaults to BaseURL.
	Origin         string
	HTTPClient     *http.Client
	TypingInterval time.Duration
	WriteTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Origin == "" {
		c.Origin = c.BaseURL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.TypingInterval <= 0 {
		c.TypingInterval = DefaultTypingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

// Account is the user a login resolved to.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Token   string  `json:"token"`
	User    Account `json:"user"`
	Message string  `json:"message"`
	Created bool    `json:"-"`
}

type loginError struct {
	Message         string `json:"message"`
	IsWrongPassword bool   `json:"isWrongPassword"`
}

// Login signs in, registering the username if the server has not seen it.
func Login(ctx context.Context, cfg Config, username, password string) (LoginResponse, error) {
	cfg = cfg.withDefaults()

	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return LoginResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return LoginResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cfg.HTTPClient.Do(req)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("read login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var apiErr loginError
		if err := json.Unmarshal(data, &apiErr); err != nil || apiErr.Message == "" {
			return LoginResponse{}, fmt.Errorf("login failed: HTTP %d", resp.StatusCode)
		}
		if apiErr.IsWrongPassword {
			return LoginResponse{}, fmt.Errorf("%w: %s", ErrWrongPassword, apiErr.Message)
		}
		return LoginResponse{}, fmt.Errorf("login failed: %s", apiErr.Message)
	}

	var out LoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return LoginResponse{}, fmt.Errorf("decode login response: %w", err)
	}
	out.Created = resp.StatusCode == http.StatusCreated
	return out, nil
}

// Event is one server-to-client frame. Decode Data with the payload type
// matching Type.
type Event struct {
	Type chat.EventType  `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// Client is one WebSocket connection to the chat.
type Client struct {
	cfg  Config
	conn *websocket.Conn
	now  func() time.Time

	mu         sync.Mutex
	lastTyping time.Time
}

// Dial opens the WebSocket. The connection starts unauthenticated.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	wsURL, err := websocketURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{cfg.Origin}},
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	return &Client{cfg: cfg, conn: conn, now: time.Now}, nil
}

func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (c *Client) write(ctx context.Context, typ chat.EventType, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.conn, chat.Inbound{Type: typ, Data: raw})
}

// Authenticate presents token. The outcome arrives as an authenticated or
// auth-failed event.
func (c *Client) Authenticate(ctx context.Context, token string) error {
	return c.write(ctx, chat.EventAuthenticate, token)
}

// Send posts a chat message.
func (c *Client) Send(ctx context.Context, text string) error {
	return c.write(ctx, chat.EventSendMessage, chat.SendMessagePayload{Text: text})
}

// Typing signals that the user is typing, at most once per TypingInterval.
// It reports whether a signal was sent.
func (c *Client) Typing(ctx context.Context) (bool, error) {
	c.mu.Lock()
	now := c.now()
	if !c.lastTyping.IsZero() && now.Sub(c.lastTyping) < c.cfg.TypingInterval {
		c.mu.Unlock()
		return false, nil
	}
	c.lastTyping = now
	c.mu.Unlock()

	if err := c.write(ctx, chat.EventTyping, nil); err != nil {
		return false, err
	}
	return true, nil
}

// Next blocks until the server sends an event.
func (c *Client) Next(ctx context.Context) (Event, error) {
	var e Event
	if err := wsjson.Read(ctx, c.conn, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Close ends the connection with a normal closure.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
