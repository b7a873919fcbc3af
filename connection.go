package realtime

import "encoding/json"

// EventHandler receives the raw argument list of one server-pushed event.
type EventHandler func(args []json.RawMessage)

// Transport specify interface methods a HubConnection needs from the underlying
// streaming primitive.  Implementations own framing, handshake and reconnect
// timing; the hub only observes open/close edges and pushes invocations.
type Transport interface {
	// Connect dials the given URL and keeps the connection alive until Close,
	// redialing on unexpected drops per the configured reconnect policy.
	Connect(url string) error

	// Close tears the connection down and disables further reconnects.
	Close() error

	// Invoke sends a fire-and-forget hub invocation.  Fails with TransportError
	// when the write fails or no connection is up.
	Invoke(method string, args ...interface{}) error

	// OnEvent registers the handler for one named server event.  One handler
	// per name; a second registration replaces the first.
	OnEvent(name string, handler EventHandler)

	// OnOpen registers a handler fired after every successful dial, the initial
	// connect included.
	OnOpen(handler func())

	// OnClose registers a handler fired when the connection drops unexpectedly.
	// A close wrapping ErrReconnectExhausted is terminal: the transport will not
	// redial again until the next Connect.
	OnClose(handler func(err error))
}
