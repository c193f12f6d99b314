// Package connection is the client side of the databench protocol.
//
// A Connection keeps one WebSocket to the backend:
//   - Sends a handshake on every open, resuming the backend analysis
//   - Reconnects with jittered exponential backoff, up to a ceiling
//   - Queues emits while disconnected and flushes them after the handshake
//   - Routes inbound signals to handlers (plain, filtered, regex matched)
//   - Correlates backend processes with the actions that started them
//   - Mirrors log, warn and error signals into a LogSink
package connection
