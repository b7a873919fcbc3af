package realtime

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
)

// ConnectionState int representing current state of one hub connection
type ConnectionState int

// Hub connection state values
const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
	Stopped
)

// String implement Stringer interface
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	case Stopped:
		return "Stopped"
	}
	return fmt.Sprintf("ConnectionState(%d)", int(s))
}

// StateHandler observes hub connection state transitions.
type StateHandler func(state ConnectionState)

// HubConnection owns one Transport scoped to one gateway hub and is the only
// writer of its ConnectionState.  It embeds a fresh token into the connection
// URL on Start and replays its registry's subscriptions after every transition
// into Connected.
type HubConnection struct {
	name      HubName
	baseURL   string
	transport Transport
	tokens    TokenProvider
	logger    *log.Logger

	// mu guards state
	mu    sync.Mutex
	state ConnectionState

	// notifyMu serializes transitions so state handlers fire in the order
	// transitions occur and never concurrently with each other.
	notifyMu sync.Mutex

	handlersMu    sync.Mutex
	stateHandlers []StateHandler
	lostHandlers  []func(err error)

	registry *SubscriptionRegistry
}

// newHubConnection wires a hub to its transport.  The registry is bound
// afterwards via bindRegistry since the two reference each other.
func newHubConnection(name HubName, baseURL string, transport Transport, tokens TokenProvider, logger *log.Logger) *HubConnection {
	if logger == nil {
		logger = log.Default()
	}

	h := &HubConnection{
		name:      name,
		baseURL:   baseURL,
		transport: transport,
		tokens:    tokens,
		logger:    logger,
		state:     Disconnected,
	}

	transport.OnOpen(h.handleOpen)
	transport.OnClose(h.handleClose)

	return h
}

func (h *HubConnection) bindRegistry(r *SubscriptionRegistry) {
	h.registry = r
}

// Name returns the hub this connection is scoped to.
func (h *HubConnection) Name() HubName {
	return h.name
}

// State returns the current connection state.
func (h *HubConnection) State() ConnectionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// OnStateChange registers a state observer.  Handlers run in registration
// order on every transition.
func (h *HubConnection) OnStateChange(handler StateHandler) {
	h.handlersMu.Lock()
	h.stateHandlers = append(h.stateHandlers, handler)
	h.handlersMu.Unlock()
}

// OnConnectionLost registers a handler for the terminal notification fired
// when the transport exhausts its reconnect attempts.  Recorded subscriptions
// survive for a later Start.
func (h *HubConnection) OnConnectionLost(handler func(err error)) {
	h.handlersMu.Lock()
	h.lostHandlers = append(h.lostHandlers, handler)
	h.handlersMu.Unlock()
}

// Start connects the hub.  Idempotent: a hub that is already Connecting,
// Connected or Reconnecting is left alone.  A 401 handshake rejection triggers
// exactly one token refresh and one retried connect before failing.
func (h *HubConnection) Start() error {
	h.mu.Lock()
	switch h.state {
	case Connecting, Connected, Reconnecting:
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	h.setState(Connecting)

	token, err := h.tokens.Token()
	if err != nil {
		h.setState(Disconnected)
		return AuthError(fmt.Sprintf("hub %s: token unavailable: %s", h.name, err.Error()))
	}

	err = h.transport.Connect(h.urlWithToken(token))

	var authErr AuthError
	if errors.As(err, &authErr) {
		h.logger.Printf("hub %s: handshake rejected (%v), refreshing token and retrying once", h.name, err)

		token, refreshErr := h.tokens.Refresh()
		if refreshErr != nil {
			h.setState(Disconnected)
			return AuthError(fmt.Sprintf("hub %s: token refresh failed: %s", h.name, refreshErr.Error()))
		}

		err = h.transport.Connect(h.urlWithToken(token))
	}

	if err != nil {
		h.setState(Disconnected)
		var connErr ConnectionError
		if errors.As(err, &authErr) || errors.As(err, &connErr) {
			return err
		}
		return ConnectionError(fmt.Sprintf("hub %s: %s", h.name, err.Error()))
	}

	return nil
}

// Stop disconnects the hub and disables reconnects until the next Start.
// Idempotent; the registry's recorded topics are left intact.
func (h *HubConnection) Stop() error {
	h.mu.Lock()
	if h.state == Stopped {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	h.setState(Stopped)
	return h.transport.Close()
}

// Invoke forwards a remote call to the transport.  Only legal while Connected;
// callers deciding to queue-and-retry must do so themselves.
func (h *HubConnection) Invoke(method string, args ...interface{}) error {
	if h.State() != Connected {
		return NotConnectedError(fmt.Sprintf("hub %s: cannot invoke %s", h.name, method))
	}
	return h.transport.Invoke(method, args...)
}

// handleOpen runs on every successful dial, initial connect and reconnect both.
func (h *HubConnection) handleOpen() {
	h.setState(Connected)
	if h.registry != nil {
		h.registry.OnReconnected()
	}
}

// handleClose runs on unexpected transport drops.  Closes observed after an
// explicit Stop are ignored so Stopped stays terminal.
func (h *HubConnection) handleClose(err error) {
	h.mu.Lock()
	stopped := h.state == Stopped
	h.mu.Unlock()
	if stopped {
		return
	}

	if errors.Is(err, ErrReconnectExhausted) {
		h.logger.Printf("hub %s: connection lost: %v", h.name, err)
		h.setState(Disconnected)

		h.handlersMu.Lock()
		handlers := append(([]func(error))(nil), h.lostHandlers...)
		h.handlersMu.Unlock()
		for _, fn := range handlers {
			fn(err)
		}
		return
	}

	h.logger.Printf("hub %s: transport dropped (%v), reconnecting", h.name, err)
	h.setState(Reconnecting)
}

func (h *HubConnection) setState(next ConnectionState) {
	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	h.mu.Lock()
	if h.state == next {
		h.mu.Unlock()
		return
	}
	h.state = next
	h.mu.Unlock()

	h.handlersMu.Lock()
	handlers := append([]StateHandler(nil), h.stateHandlers...)
	h.handlersMu.Unlock()

	for _, fn := range handlers {
		fn(next)
	}
}

func (h *HubConnection) urlWithToken(token string) string {
	return h.baseURL + "?access_token=" + url.QueryEscape(token)
}
