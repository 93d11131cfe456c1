package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Placeboguy/anonymous-chat2/internal/auth"
	"github.com/gorilla/websocket"
)

const maxLoginBodyBytes = 4 << 10

// LoginService is the credential store behind POST /api/auth/login.
type LoginService interface {
	Login(ctx context.Context, creds auth.Credentials) (auth.LoginResult, error)
}

// Handlers holds the HTTP endpoints of the chat server.
type Handlers struct {
	hub      *Hub
	login    LoginService
	origins  *OriginPolicy
	log      *slog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewHandlers builds the endpoint set. WebSocket upgrades are checked
// against origins.
func NewHandlers(hub *Hub, login LoginService, origins *OriginPolicy, log *slog.Logger) *Handlers {
	return &Handlers{
		hub:     hub,
		login:   login,
		origins: origins,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.CheckOrigin,
		},
		now: time.Now,
	}
}

type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type loginResponse struct {
	Token   string   `json:"token"`
	User    userView `json:"user"`
	Message string   `json:"message"`
}

type errorResponse struct {
	Message         string `json:"message"`
	IsWrongPassword bool   `json:"isWrongPassword,omitempty"`
}

type healthResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
	Connections int    `json:"connections"`
	Online      int    `json:"online"`
}

// WebSocket upgrades the request and hands the connection to the hub,
// which starts its pumps.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, h.hub, r.RemoteAddr)
	if err := h.hub.Register(client); err != nil {
		h.log.Info("Rejecting connection", "remote", r.RemoteAddr, "error", err)
		client.session.Close()
		client.disconnect()
	}
}

// Health reports liveness with connection and presence counts.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.log, http.StatusOK, healthResponse{
		Status:      "ok",
		Message:     "Chat server is running",
		Timestamp:   h.now().UTC().Format(time.RFC3339),
		Connections: h.hub.ConnectionCount(),
		Online:      h.hub.Room().Online(),
	})
}

// Login signs a user in, registering unknown usernames on first use.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, h.log, http.StatusMethodNotAllowed, errorResponse{Message: "Method not allowed"})
		return
	}

	var creds auth.Credentials
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, h.log, http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
		return
	}

	result, err := h.login.Login(r.Context(), creds)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, h.log, http.StatusBadRequest, errorResponse{Message: "Invalid password", IsWrongPassword: true})
		return
	case errors.Is(err, auth.ErrInvalidInput):
		writeJSON(w, h.log, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	case err != nil:
		h.log.Error("Login failed", "username", creds.Username, "error", err)
		writeJSON(w, h.log, http.StatusInternalServerError, errorResponse{Message: "Server error"})
		return
	}

	status, message := http.StatusOK, "Welcome back!"
	if result.Created {
		status, message = http.StatusCreated, "Account created successfully!"
	}
	writeJSON(w, h.log, status, loginResponse{
		Token:   result.Token,
		User:    userView{ID: result.User.ID, Username: result.User.Username},
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn("Error writing JSON response", "error", err)
	}
}

// TestPage serves a small browser client for manual testing.
func (h *Handlers) TestPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		h.log.Warn("Error writing HTML response", "error", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Chat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"], input[type="password"] { padding: 5px; margin-right: 10px; }
        #messageInput { width: 300px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
        #typing { color: #888; font-style: italic; height: 1.2em; }
    </style>
</head>
<body>
    <h1>Chat Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>
    <div id="online">Online: 0</div>

    <div>
        <input type="text" id="username" placeholder="Username">
        <input type="password" id="password" placeholder="Password">
        <button id="connectButton" onclick="toggleConnection()">Log in</button>
    </div>

    <div id="messages"></div>
    <div id="typing"></div>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <script>
        let ws = null;
        let typingSentAt = 0;
        const typingTimers = {};
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');
        const onlineDiv = document.getElementById('online');
        const typingDiv = document.getElementById('typing');

        function addLine(text, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || 'gray';
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function showMessage(m) {
            const at = new Date(m.createdAt).toLocaleTimeString();
            addLine('[' + at + '] ' + m.username + ': ' + m.text, 'black');
        }

        function renderTyping() {
            const names = Object.keys(typingTimers);
            typingDiv.textContent = names.length ? names.join(', ') + ' typing...' : '';
        }

        function showTyping(username) {
            if (typingTimers[username]) {
                clearTimeout(typingTimers[username]);
            }
            typingTimers[username] = setTimeout(function() {
                delete typingTimers[username];
                renderTyping();
            }, 2000);
            renderTyping();
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Log in';
        }

        function send(type, data) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({ type: type, data: data }));
            }
        }

        async function connect() {
            const res = await fetch('/api/auth/login', {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify({
                    username: document.getElementById('username').value,
                    password: document.getElementById('password').value
                })
            });
            const body = await res.json();
            if (!res.ok) {
                addLine('Login failed: ' + body.message, 'red');
                return;
            }
            addLine(body.message);

            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() { send('authenticate', body.token); };
            ws.onmessage = function(event) {
                const evt = JSON.parse(event.data);
                switch (evt.type) {
                case 'authenticated':
                    updateStatus(true);
                    addLine('Signed in as ' + evt.data.user.username);
                    break;
                case 'auth-failed':
                    addLine('Authentication failed: ' + evt.data.message, 'red');
                    break;
                case 'history':
                    evt.data.forEach(showMessage);
                    break;
                case 'message':
                    showMessage(evt.data);
                    break;
                case 'user-typing':
                    showTyping(evt.data.username);
                    break;
                case 'online-count':
                    onlineDiv.textContent = 'Online: ' + evt.data;
                    break;
                case 'error':
                    addLine('Error ' + evt.data.code + ': ' + evt.data.message, 'red');
                    break;
                }
            };
            ws.onclose = function() {
                addLine('Connection closed');
                updateStatus(false);
                ws = null;
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function sendMessage() {
            const text = messageInput.value.trim();
            if (text) {
                send('send-message', { text: text });
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
                return;
            }
            const now = Date.now();
            if (now - typingSentAt > 2000) {
                typingSentAt = now;
                send('typing', {});
            }
        });
    </script>
</body>
</html>`
