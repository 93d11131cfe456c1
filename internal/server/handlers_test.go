package server_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body := decodeBody[struct {
		Status      string `json:"status"`
		Timestamp   string `json:"timestamp"`
		Connections int    `json:"connections"`
		Online      int    `json:"online"`
	}](t, resp)
	require.Equal(t, "ok", body.Status)
	require.Zero(t, body.Online)
	_, err = time.Parse(time.RFC3339, body.Timestamp)
	require.NoError(t, err)
}

func TestUnknownPathIsNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)

	t.Run("unknown username registers", func(t *testing.T) {
		resp := postLogin(t, srv.URL, "alice", "secret-1")
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		body := decodeBody[loginBody](t, resp)
		require.Equal(t, "Account created successfully!", body.Message)
		require.NotEmpty(t, body.Token)
		require.Equal(t, "alice", body.User.Username)
		require.NotEmpty(t, body.User.ID)
	})

	t.Run("known username signs in", func(t *testing.T) {
		resp := postLogin(t, srv.URL, "alice", "secret-1")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "Welcome back!", decodeBody[loginBody](t, resp).Message)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := postLogin(t, srv.URL, "alice", "not-the-password")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		body := decodeBody[loginBody](t, resp)
		require.Equal(t, "Invalid password", body.Message)
		require.True(t, body.IsWrongPassword)
		require.Empty(t, body.Token)
	})

	t.Run("invalid input", func(t *testing.T) {
		resp := postLogin(t, srv.URL, "a", "x")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeBody[loginBody](t, resp)
		require.False(t, body.IsWrongPassword)
		require.NotEmpty(t, body.Message)
	})

	t.Run("wrong method", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/auth/login")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestLoginPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/auth/login", http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestTestPage(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/test")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestWebSocketRejectsNonGet(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/ws", "text/plain", http.NoBody)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
