// Package session keeps backend analysis ids across client restarts.
//
// A Connection already resumes its analysis across reconnects. A Store
// extends that to a new process: Resume seeds the connection config with
// the last id seen for the endpoint and Saver records every acknowledged
// id. Stores are keyed by WebSocket endpoint.
package session
