package realtime

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
)

// EventDispatcher decodes server-pushed events of one hub into typed payloads
// and routes them to the callbacks recorded for the matching topic.  Exactly
// one transport handler is registered per wire event name; unknown names never
// reach the dispatcher (the transport ignores and logs them).
type EventDispatcher struct {
	hub      HubName
	registry *SubscriptionRegistry
	logger   *log.Logger
}

func newEventDispatcher(hub HubName, registry *SubscriptionRegistry, transport Transport, logger *log.Logger) *EventDispatcher {
	if logger == nil {
		logger = log.Default()
	}

	d := &EventDispatcher{
		hub:      hub,
		registry: registry,
		logger:   logger,
	}

	switch hub {
	case HubMarket:
		transport.OnEvent(eventQuote, d.handlerFor(KindQuote))
		transport.OnEvent(eventTrade, d.handlerFor(KindTrade))
		transport.OnEvent(eventDepth, d.handlerFor(KindDepth))
	case HubUser:
		transport.OnEvent(eventAccount, d.handlerFor(KindAccount))
		transport.OnEvent(eventOrder, d.handlerFor(KindOrder))
		transport.OnEvent(eventPosition, d.handlerFor(KindPosition))
		transport.OnEvent(eventUserTrade, d.handlerFor(KindUserTrade))
	}

	return d
}

// handlerFor adapts one event kind into a transport handler.  Decode failures
// are logged and the event dropped; they never escape as a crash.
func (d *EventDispatcher) handlerFor(kind EventKind) EventHandler {
	return func(args []json.RawMessage) {
		topic, payload, err := d.decode(kind, args)
		if err != nil {
			d.logger.Printf("dispatch %s: dropping %s event: %v", d.hub, kind.eventName(), err)
			return
		}
		d.dispatch(topic, payload)
	}
}

// decode maps one raw event onto its topic and typed payload.  Market events
// arrive as [contractID, payload]; user events carry a single payload with the
// account id inside it.
func (d *EventDispatcher) decode(kind EventKind, args []json.RawMessage) (Topic, interface{}, error) {
	switch kind {
	case KindQuote, KindTrade, KindDepth:
		return d.decodeMarket(kind, args)
	case KindAccount, KindOrder, KindPosition, KindUserTrade:
		return d.decodeUser(kind, args)
	}
	return Topic{}, nil, DecodeError(fmt.Sprintf("unknown event kind %s", kind))
}

func (d *EventDispatcher) decodeMarket(kind EventKind, args []json.RawMessage) (Topic, interface{}, error) {
	if len(args) < 2 {
		return Topic{}, nil, DecodeError(fmt.Sprintf("%s: want [contractId, data], got %d arguments", kind.eventName(), len(args)))
	}

	var contractID string
	if err := json.Unmarshal(args[0], &contractID); err != nil {
		return Topic{}, nil, DecodeError(fmt.Sprintf("%s: bad contract id: %s", kind.eventName(), err.Error()))
	}

	topic := Topic{Hub: HubMarket, Kind: kind, Subject: contractID}

	switch kind {
	case KindQuote:
		var quote Quote
		if err := json.Unmarshal(args[1], &quote); err != nil {
			return Topic{}, nil, DecodeError(fmt.Sprintf("%s[%s]: %s", kind.eventName(), contractID, err.Error()))
		}
		return topic, quote, nil

	case KindTrade:
		// the gateway sends either one trade or a batch
		var trades []Trade
		if err := json.Unmarshal(args[1], &trades); err != nil {
			var single Trade
			if err := json.Unmarshal(args[1], &single); err != nil {
				return Topic{}, nil, DecodeError(fmt.Sprintf("%s[%s]: %s", kind.eventName(), contractID, err.Error()))
			}
			trades = []Trade{single}
		}
		return topic, trades, nil

	case KindDepth:
		var levels []DepthLevel
		if err := json.Unmarshal(args[1], &levels); err != nil {
			return Topic{}, nil, DecodeError(fmt.Sprintf("%s[%s]: %s", kind.eventName(), contractID, err.Error()))
		}
		return topic, levels, nil
	}

	return Topic{}, nil, DecodeError(fmt.Sprintf("%s: not a market event", kind.eventName()))
}

func (d *EventDispatcher) decodeUser(kind EventKind, args []json.RawMessage) (Topic, interface{}, error) {
	if len(args) < 1 {
		return Topic{}, nil, DecodeError(fmt.Sprintf("%s: missing payload", kind.eventName()))
	}

	switch kind {
	case KindAccount:
		var account Account
		if err := json.Unmarshal(args[0], &account); err != nil {
			return Topic{}, nil, DecodeError(fmt.Sprintf("%s: %s", kind.eventName(), err.Error()))
		}
		// account stream is account-wide, one topic for all accounts
		return Topic{Hub: HubUser, Kind: kind}, account, nil

	case KindOrder:
		var order Order
		if err := json.Unmarshal(args[0], &order); err != nil {
			return Topic{}, nil, DecodeError(fmt.Sprintf("%s: %s", kind.eventName(), err.Error()))
		}
		return Topic{Hub: HubUser, Kind: kind, Subject: strconv.Itoa(order.AccountID)}, order, nil

	case KindPosition:
		var position Position
		if err := json.Unmarshal(args[0], &position); err != nil {
			return Topic{}, nil, DecodeError(fmt.Sprintf("%s: %s", kind.eventName(), err.Error()))
		}
		return Topic{Hub: HubUser, Kind: kind, Subject: strconv.Itoa(position.AccountID)}, position, nil

	case KindUserTrade:
		var trade UserTrade
		if err := json.Unmarshal(args[0], &trade); err != nil {
			return Topic{}, nil, DecodeError(fmt.Sprintf("%s: %s", kind.eventName(), err.Error()))
		}
		return Topic{Hub: HubUser, Kind: kind, Subject: strconv.Itoa(trade.AccountID)}, trade, nil
	}

	return Topic{}, nil, DecodeError(fmt.Sprintf("%s: not a user event", kind.eventName()))
}

// dispatch fans the payload out to every callback recorded for the topic.
// Callbacks run outside the registry lock and in registration order; a
// panicking callback is logged and isolated from the rest.
func (d *EventDispatcher) dispatch(topic Topic, payload interface{}) {
	for _, entry := range d.registry.entriesFor(topic) {
		d.invokeCallback(topic, entry, payload)
	}
}

func (d *EventDispatcher) invokeCallback(topic Topic, entry callbackEntry, payload interface{}) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Printf("dispatch %s: callback %s for %s panicked: %v", d.hub, entry.id, topic, rec)
		}
	}()

	entry.fn(payload)
}
