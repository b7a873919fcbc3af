package realtime

import (
	"encoding/json"
	"sync"
)

// fakeTransport is an in-memory Transport for tests.  It records every
// Connect and Invoke, lets tests queue per-call connect errors and per-method
// invoke errors, and exposes trigger helpers to simulate server activity.
type fakeTransport struct {
	mu sync.Mutex

	connectURLs []string
	connectErrs []error // popped one per Connect call
	closed      bool

	invocations []fakeInvocation
	invokeErrs  map[string]error

	handlers map[string]EventHandler
	onOpen   func()
	onClose  func(err error)

	// suppressOpen disables the automatic open notification on Connect
	suppressOpen bool
}

type fakeInvocation struct {
	method string
	args   []interface{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		invokeErrs: make(map[string]error),
		handlers:   make(map[string]EventHandler),
	}
}

func (f *fakeTransport) Connect(url string) error {
	f.mu.Lock()
	f.connectURLs = append(f.connectURLs, url)
	var err error
	if len(f.connectErrs) > 0 {
		err = f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
	}
	f.closed = false
	suppress := f.suppressOpen
	open := f.onOpen
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if !suppress && open != nil {
		open()
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Invoke(method string, args ...interface{}) error {
	f.mu.Lock()
	f.invocations = append(f.invocations, fakeInvocation{method: method, args: args})
	err := f.invokeErrs[method]
	f.mu.Unlock()
	return err
}

func (f *fakeTransport) OnEvent(name string, handler EventHandler) {
	f.mu.Lock()
	f.handlers[name] = handler
	f.mu.Unlock()
}

func (f *fakeTransport) OnOpen(handler func()) {
	f.mu.Lock()
	f.onOpen = handler
	f.mu.Unlock()
}

func (f *fakeTransport) OnClose(handler func(err error)) {
	f.mu.Lock()
	f.onClose = handler
	f.mu.Unlock()
}

// fireOpen simulates a successful (re)dial.
func (f *fakeTransport) fireOpen() {
	f.mu.Lock()
	open := f.onOpen
	f.mu.Unlock()
	if open != nil {
		open()
	}
}

// fireClose simulates an unexpected drop.
func (f *fakeTransport) fireClose(err error) {
	f.mu.Lock()
	closeHandler := f.onClose
	f.mu.Unlock()
	if closeHandler != nil {
		closeHandler(err)
	}
}

// emit simulates one server-pushed event with raw JSON arguments.
func (f *fakeTransport) emit(name string, rawArgs ...string) {
	f.mu.Lock()
	handler := f.handlers[name]
	f.mu.Unlock()
	if handler == nil {
		return
	}

	args := make([]json.RawMessage, len(rawArgs))
	for i, raw := range rawArgs {
		args[i] = json.RawMessage(raw)
	}
	handler(args)
}

func (f *fakeTransport) invokedMethods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	methods := make([]string, len(f.invocations))
	for i, inv := range f.invocations {
		methods[i] = inv.method
	}
	return methods
}

func (f *fakeTransport) invocationsOf(method string) []fakeInvocation {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []fakeInvocation
	for _, inv := range f.invocations {
		if inv.method == method {
			matched = append(matched, inv)
		}
	}
	return matched
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeTokenProvider hands out a queue of tokens and counts refreshes.
type fakeTokenProvider struct {
	mu           sync.Mutex
	token        string
	tokenErr     error
	refreshToken string
	refreshErr   error
	refreshCalls int
}

func (f *fakeTokenProvider) Token() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.tokenErr
}

func (f *fakeTokenProvider) Refresh() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.token = f.refreshToken
	return f.refreshToken, nil
}

func (f *fakeTokenProvider) refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}
