package realtime

import (
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Callback receives the decoded payload of one event for a subscribed topic.
type Callback func(payload interface{})

// Handle identifies exactly one registered callback for unsubscription.
type Handle struct {
	id    uuid.UUID
	topic Topic
}

// Topic returns the topic the handle's callback was registered under.
func (h Handle) Topic() Topic {
	return h.topic
}

type callbackEntry struct {
	id uuid.UUID
	fn Callback
}

type subscription struct {
	topic   Topic
	entries []callbackEntry
}

// SubscriptionRegistry is the authoritative record of what should currently be
// subscribed on one hub.  Topics are kept in insertion order of their first
// subscription; a topic with zero callbacks is removed, never tombstoned.
type SubscriptionRegistry struct {
	hub    *HubConnection
	logger *log.Logger

	mu    sync.Mutex
	order []Topic
	subs  map[Topic]*subscription
}

func newSubscriptionRegistry(hub *HubConnection, logger *log.Logger) *SubscriptionRegistry {
	if logger == nil {
		logger = log.Default()
	}

	r := &SubscriptionRegistry{
		hub:    hub,
		logger: logger,
		subs:   make(map[Topic]*subscription),
	}
	hub.bindRegistry(r)

	return r
}

// Subscribe records callback under topic.  The first callback of a topic on a
// connected hub issues the remote subscribe immediately; on a disconnected hub
// it is deferred to the next reconnect replay.  Additional callbacks only grow
// the list, they never issue a second remote call.
func (r *SubscriptionRegistry) Subscribe(topic Topic, callback Callback) (Handle, error) {
	r.mu.Lock()
	sub, exists := r.subs[topic]
	if !exists {
		sub = &subscription{topic: topic}
		r.subs[topic] = sub
		r.order = append(r.order, topic)
	}
	entry := callbackEntry{id: uuid.New(), fn: callback}
	sub.entries = append(sub.entries, entry)
	r.mu.Unlock()

	handle := Handle{id: entry.id, topic: topic}

	if exists {
		return handle, nil
	}

	if err := r.remoteSubscribe(topic); err != nil {
		var notConnected NotConnectedError
		if errors.As(err, &notConnected) {
			// deferred: the replay after the next connect covers it
			return handle, nil
		}
		// topic stays recorded, the next replay retries it
		return handle, err
	}

	return handle, nil
}

// Unsubscribe removes the one callback the handle identifies.  When the topic's
// callback list empties, the topic is dropped and the remote retraction is
// issued best-effort: a failure is logged and returned but never blocks the
// local removal.
func (r *SubscriptionRegistry) Unsubscribe(handle Handle) error {
	r.mu.Lock()
	sub := r.subs[handle.topic]
	if sub == nil {
		r.mu.Unlock()
		return nil
	}

	removed := false
	for i, entry := range sub.entries {
		if entry.id == handle.id {
			sub.entries = append(sub.entries[:i], sub.entries[i+1:]...)
			removed = true
			break
		}
	}

	emptied := removed && len(sub.entries) == 0
	if emptied {
		delete(r.subs, handle.topic)
		for i, topic := range r.order {
			if topic == handle.topic {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if !emptied {
		return nil
	}

	if err := r.remoteUnsubscribe(handle.topic); err != nil {
		var notConnected NotConnectedError
		if errors.As(err, &notConnected) {
			// nothing to retract: the server forgets us on disconnect anyway
			return nil
		}
		r.logger.Printf("registry %s: remote unsubscribe for %s failed: %v", r.hub.Name(), handle.topic, err)
		return err
	}

	return nil
}

// OnReconnected re-issues the remote subscribe for every recorded topic, in
// insertion order of first subscription.  Called by the hub after every
// transition into Connected.  A failed topic is logged and skipped; one bad
// replay never aborts the rest.
func (r *SubscriptionRegistry) OnReconnected() {
	r.mu.Lock()
	topics := append([]Topic(nil), r.order...)
	r.mu.Unlock()

	for _, topic := range topics {
		if err := r.remoteSubscribe(topic); err != nil {
			r.logger.Printf("registry %s: replay of %s failed: %v", r.hub.Name(), topic, err)
		}
	}
}

// Topics returns the recorded topics in insertion order.
func (r *SubscriptionRegistry) Topics() []Topic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Topic(nil), r.order...)
}

// entriesFor snapshots the callbacks of a topic so dispatch can run them
// without holding the registry lock.
func (r *SubscriptionRegistry) entriesFor(topic Topic) []callbackEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := r.subs[topic]
	if sub == nil {
		return nil
	}
	return append([]callbackEntry(nil), sub.entries...)
}

func (r *SubscriptionRegistry) remoteSubscribe(topic Topic) error {
	args, err := topic.invokeArgs()
	if err != nil {
		return TransportError(err.Error())
	}
	return r.hub.Invoke(topic.Kind.subscribeMethod(), args...)
}

func (r *SubscriptionRegistry) remoteUnsubscribe(topic Topic) error {
	args, err := topic.invokeArgs()
	if err != nil {
		return TransportError(err.Error())
	}
	return r.hub.Invoke(topic.Kind.unsubscribeMethod(), args...)
}
