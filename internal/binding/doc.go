// Package binding provides headless consumers of a databench connection:
// action buttons that track the backend process they start, values kept in
// sync with a backend signal, a bounded log that mirrors log traffic, and a
// status log that aggregates connection errors.
//
// Element names come from an attribute map, resolved the way databench
// frontends resolve them:
//
//	attrs := binding.Attributes{"data-action": "run"}
//	b, err := binding.BindButton(conn, attrs)
//	id, err := b.Click()
//
// A Log is a connection.LogSink; pass it with connection.WithLogSink. A
// StatusLog's Add method is an error handler; pass it to SetErrorHandler.
package binding
