// Package server is the network edge of the chat service. It upgrades
// WebSocket connections, runs a read and a write pump per connection, and
// feeds inbound frames to the chat Session bound to that connection. It also
// serves the login API, the health endpoint and a browser test page.
package server
