// Package chat implements the real-time session and broadcast core of the
// chat service.
//
// A Room owns the shared state: the Registry of authenticated sessions, the
// Bus that fans events out to them, the Presence counter and the TypingRelay.
// Every connection is represented by a Session, a small state machine that
// moves from Pending to Authenticated to Closed and is driven one inbound
// event at a time by its transport.
package chat
