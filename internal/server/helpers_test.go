package server_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Placeboguy/anonymous-chat2/internal/auth"
	"github.com/Placeboguy/anonymous-chat2/internal/chat"
	"github.com/Placeboguy/anonymous-chat2/internal/server"
	"github.com/Placeboguy/anonymous-chat2/internal/storage/badgerstore"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:8080"

type testServer struct {
	*httptest.Server
	hub *server.Hub
}

// newTestServer runs the full stack over an in-memory Badger store.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.DiscardHandler)

	store, err := badgerstore.OpenInMemory(log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := auth.NewService(store, auth.NewTokens("test-secret-0123456789", time.Hour), log)
	room := chat.NewRoom(log, store, svc)
	hub := server.NewHub(room, log, server.HubConfig{MaxMessageSize: 16 << 10, SendBufferSize: 64})
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(2 * time.Second) })

	origins := server.NewOriginPolicy([]string{testOrigin}, log)
	srv := httptest.NewServer(server.SetupRoutes(server.NewHandlers(hub, svc, origins, log)))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, hub: hub}
}

func (s *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

func postLogin(t *testing.T, url, username, password string) *http.Response {
	t.Helper()
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	require.NoError(t, err)

	resp, err := http.Post(url+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type loginBody struct {
	Token string `json:"token"`
	User  struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Message         string `json:"message"`
	IsWrongPassword bool   `json:"isWrongPassword"`
}

func (s *testServer) token(t *testing.T, username string) string {
	t.Helper()
	resp := postLogin(t, s.URL, username, "password-"+username)
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, resp.StatusCode)
	return decodeBody[loginBody](t, resp).Token
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", testOrigin)

	conn, resp, err := dialer.Dial(s.wsURL(), headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// join logs username in, connects and authenticates, and consumes the
// admission events up to and including history.
func (s *testServer) join(t *testing.T, username string) *websocket.Conn {
	t.Helper()
	conn := s.dial(t)
	send(t, conn, chat.EventAuthenticate, s.token(t, username))

	got := next(t, conn)
	require.Equal(t, chat.EventAuthenticated, got.Type)
	expect(t, conn, chat.EventHistory, nil)
	return conn
}

type event struct {
	Type chat.EventType  `json:"type"`
	Data json.RawMessage `json:"data"`
}

func send(t *testing.T, conn *websocket.Conn, typ chat.EventType, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(chat.Inbound{Type: typ, Data: raw}))
}

func next(t *testing.T, conn *websocket.Conn) event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var e event
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

// expect reads until an event of typ satisfying match arrives and returns
// it together with everything skipped on the way.
func expect(t *testing.T, conn *websocket.Conn, typ chat.EventType, match func(json.RawMessage) bool) (event, []event) {
	t.Helper()
	var skipped []event
	for {
		e := next(t, conn)
		if e.Type == typ && (match == nil || match(e.Data)) {
			return e, skipped
		}
		skipped = append(skipped, e)
	}
}

func countIs(n int) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var count int
		return json.Unmarshal(raw, &count) == nil && count == n
	}
}

func payload[T any](t *testing.T, e event) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(e.Data, &v))
	return v
}
