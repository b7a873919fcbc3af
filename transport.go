package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub protocol message types.  Only the subset the gateway actually uses.
const (
	messageInvocation = 1
	messagePing       = 6
	messageClose      = 7
)

// recordSeparator terminates every hub protocol record.
const recordSeparator byte = 0x1e

type hubMessage struct {
	Type      int               `json:"type"`
	Target    string            `json:"target,omitempty"`
	Arguments []json.RawMessage `json:"arguments,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type hubInvocation struct {
	Type      int           `json:"type"`
	Target    string        `json:"target"`
	Arguments []interface{} `json:"arguments"`
}

type handshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

type handshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// wsTransport implementation of the Transport interface over a websocket.
// Framing and the upgrade handshake belong to gorilla/websocket; this type
// only speaks the JSON hub protocol on top and owns reconnect timing.
type wsTransport struct {
	cfg    Config
	logger *log.Logger

	// mu guards conn, connURL, closed and generation.
	mu      sync.Mutex
	conn    *websocket.Conn
	connURL string
	closed  bool
	// generation increments on every (re)dial so stale read loops exit cleanly.
	generation int

	// writeMu serializes socket writes
	writeMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   map[string]EventHandler

	onOpen  func()
	onClose func(err error)
}

// NewWebSocketTransport builds the production websocket transport.  The
// reconnect options of cfg are honored unchanged.
func NewWebSocketTransport(cfg Config, logger *log.Logger) Transport {
	if logger == nil {
		logger = log.Default()
	}
	return &wsTransport{
		cfg:      cfg.withDefaults(),
		logger:   logger,
		handlers: make(map[string]EventHandler),
	}
}

// OnEvent implement Transport
func (t *wsTransport) OnEvent(name string, handler EventHandler) {
	t.handlersMu.Lock()
	t.handlers[name] = handler
	t.handlersMu.Unlock()
}

// OnOpen implement Transport
func (t *wsTransport) OnOpen(handler func()) {
	t.onOpen = handler
}

// OnClose implement Transport
func (t *wsTransport) OnClose(handler func(err error)) {
	t.onClose = handler
}

// Connect implement Transport
func (t *wsTransport) Connect(rawURL string) error {
	t.mu.Lock()
	t.closed = false
	t.connURL = rawURL
	t.mu.Unlock()

	conn, err := t.dial(rawURL)
	if err != nil {
		return err
	}

	t.adopt(conn)
	return nil
}

// Close implement Transport
func (t *wsTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Invoke implement Transport
func (t *wsTransport) Invoke(method string, args ...interface{}) error {
	if args == nil {
		args = []interface{}{}
	}

	data, err := json.Marshal(hubInvocation{
		Type:      messageInvocation,
		Target:    method,
		Arguments: args,
	})
	if err != nil {
		return TransportError(fmt.Sprintf("marshal invocation %s: %s", method, err.Error()))
	}

	return t.writeRecord(data)
}

// dial opens one websocket connection and completes the hub handshake.
// A 401 on the upgrade surfaces as AuthError so the hub can refresh its token.
func (t *wsTransport) dial(rawURL string) (*websocket.Conn, error) {
	socketURL, err := toSocketURL(rawURL)
	if err != nil {
		return nil, ConnectionError(err.Error())
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
	}

	conn, resp, err := dialer.Dial(socketURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, AuthError("gateway rejected handshake with 401")
		}
		return nil, ConnectionError(err.Error())
	}

	if err := t.handshake(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

// handshake negotiates the JSON hub protocol on a fresh connection.
func (t *wsTransport) handshake(conn *websocket.Conn) error {
	request, _ := json.Marshal(handshakeRequest{Protocol: "json", Version: 1})

	if err := conn.WriteMessage(websocket.TextMessage, append(request, recordSeparator)); err != nil {
		return ConnectionError(fmt.Sprintf("handshake write: %s", err.Error()))
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return ConnectionError(fmt.Sprintf("handshake read: %s", err.Error()))
	}

	var response handshakeResponse
	record := bytes.SplitN(raw, []byte{recordSeparator}, 2)[0]
	if err := json.Unmarshal(record, &response); err != nil {
		return ConnectionError(fmt.Sprintf("handshake parse '%s': %s", string(raw), err.Error()))
	}
	if response.Error != "" {
		return ConnectionError(fmt.Sprintf("handshake rejected: %s", response.Error))
	}

	return nil
}

// adopt installs a freshly-handshaken connection, starts its background loops
// and notifies the open handler.
func (t *wsTransport) adopt(conn *websocket.Conn) {
	t.mu.Lock()
	t.conn = conn
	t.generation++
	generation := t.generation
	t.mu.Unlock()

	go t.readLoop(conn, generation)
	go t.keepAliveLoop(conn, generation)

	if t.onOpen != nil {
		t.onOpen()
	}
}

// current reports whether conn is still the active connection.
func (t *wsTransport) current(generation int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && generation == t.generation
}

func (t *wsTransport) readLoop(conn *websocket.Conn, generation int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if t.current(generation) {
				t.lost(conn, err)
			}
			return
		}

		for _, record := range bytes.Split(raw, []byte{recordSeparator}) {
			if len(record) == 0 {
				continue
			}
			t.handleRecord(conn, generation, record)
		}
	}
}

func (t *wsTransport) handleRecord(conn *websocket.Conn, generation int, record []byte) {
	var msg hubMessage
	if err := json.Unmarshal(record, &msg); err != nil {
		t.logger.Printf("transport: dropping unparseable record: %v", err)
		return
	}

	switch msg.Type {
	case messageInvocation:
		t.handlersMu.RLock()
		handler := t.handlers[msg.Target]
		t.handlersMu.RUnlock()

		if handler == nil {
			t.logger.Printf("transport: no handler for event %q, ignoring", msg.Target)
			return
		}
		handler(msg.Arguments)

	case messagePing:
		// server keep-alive, nothing to do

	case messageClose:
		reason := msg.Error
		if reason == "" {
			reason = "server requested close"
		}
		if t.current(generation) {
			t.lost(conn, TransportError(reason))
		}
	}
}

func (t *wsTransport) keepAliveLoop(conn *websocket.Conn, generation int) {
	ticker := time.NewTicker(t.cfg.keepAliveInterval())
	defer ticker.Stop()

	ping, _ := json.Marshal(hubMessage{Type: messagePing})

	for range ticker.C {
		if !t.current(generation) {
			return
		}
		if err := t.writeRecord(ping); err != nil {
			// the read loop will observe the dead socket and reconnect
			t.logger.Printf("transport: keep-alive write failed: %v", err)
			return
		}
	}
}

// lost handles an unexpected drop: notifies the close handler once, then runs
// the bounded exponential reconnect loop.
func (t *wsTransport) lost(conn *websocket.Conn, cause error) {
	conn.Close()

	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	rawURL := t.connURL
	t.mu.Unlock()

	if t.onClose != nil {
		t.onClose(cause)
	}

	for attempt := 0; attempt < t.cfg.MaxAttempts; attempt++ {
		backoff := time.Duration(math.Pow(2, float64(attempt))) * t.cfg.reconnectInterval()
		time.Sleep(backoff)

		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return
		}

		next, err := t.dial(rawURL)
		if err != nil {
			t.logger.Printf("transport: reconnect attempt %d/%d failed: %v", attempt+1, t.cfg.MaxAttempts, err)
			continue
		}

		t.adopt(next)
		return
	}

	if t.onClose != nil {
		t.onClose(fmt.Errorf("transport: %w after %d attempts (last error: %v)", ErrReconnectExhausted, t.cfg.MaxAttempts, cause))
	}
}

func (t *wsTransport) writeRecord(data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return TransportError("no active connection")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := conn.WriteMessage(websocket.TextMessage, append(data, recordSeparator)); err != nil {
		return TransportError(err.Error())
	}
	return nil
}

// toSocketURL rewrites an http(s) hub URL into its websocket equivalent.
func toSocketURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("bad hub url '%s': %w", rawURL, err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "https", "wss":
		parsed.Scheme = "wss"
	case "http", "ws":
		parsed.Scheme = "ws"
	default:
		return "", fmt.Errorf("bad hub url scheme '%s'", parsed.Scheme)
	}

	return parsed.String(), nil
}
