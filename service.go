package realtime

import (
	"log"
	"strconv"
)

// Service is the composition root of the realtime layer: one hub connection
// per gateway hub, each with its own subscription registry and event
// dispatcher sharing the hub's transport.  A single TokenProvider instance is
// shared across hubs so token refreshes are not duplicated.
type Service struct {
	cfg    Config
	logger *log.Logger

	market *HubConnection
	user   *HubConnection

	marketRegistry *SubscriptionRegistry
	userRegistry   *SubscriptionRegistry

	marketDispatcher *EventDispatcher
	userDispatcher   *EventDispatcher
}

// NewService builds a Service on the production websocket transports.
func NewService(cfg Config, tokens TokenProvider, logger *log.Logger) *Service {
	cfg = cfg.withDefaults()
	return NewServiceWithTransports(cfg, tokens,
		NewWebSocketTransport(cfg, logger),
		NewWebSocketTransport(cfg, logger),
		logger)
}

// NewServiceWithTransports builds a Service on caller-supplied transports.
// The seam tests and custom deployments use.
func NewServiceWithTransports(cfg Config, tokens TokenProvider, market, user Transport, logger *log.Logger) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Default()
	}

	s := &Service{cfg: cfg, logger: logger}

	s.market = newHubConnection(HubMarket, cfg.MarketHubURL, market, tokens, logger)
	s.marketRegistry = newSubscriptionRegistry(s.market, logger)
	s.marketDispatcher = newEventDispatcher(HubMarket, s.marketRegistry, market, logger)

	s.user = newHubConnection(HubUser, cfg.UserHubURL, user, tokens, logger)
	s.userRegistry = newSubscriptionRegistry(s.user, logger)
	s.userDispatcher = newEventDispatcher(HubUser, s.userRegistry, user, logger)

	return s
}

// Start connects every hub.  All hubs are attempted even when an earlier one
// fails; the first error is returned.
func (s *Service) Start() error {
	var first error
	for _, hub := range []*HubConnection{s.market, s.user} {
		if err := hub.Start(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Stop disconnects every hub.  Recorded subscriptions stay in place for a
// later Start.
func (s *Service) Stop() error {
	var first error
	for _, hub := range []*HubConnection{s.market, s.user} {
		if err := hub.Stop(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Market exposes the market hub connection, mainly for state observation.
func (s *Service) Market() *HubConnection {
	return s.market
}

// User exposes the user hub connection, mainly for state observation.
func (s *Service) User() *HubConnection {
	return s.user
}

// SubscribeQuotes streams quote updates for one contract.
func (s *Service) SubscribeQuotes(contractID string, callback func(contractID string, quote Quote)) (Handle, error) {
	topic := Topic{Hub: HubMarket, Kind: KindQuote, Subject: contractID}
	return s.marketRegistry.Subscribe(topic, func(payload interface{}) {
		if quote, ok := payload.(Quote); ok {
			callback(contractID, quote)
		}
	})
}

// SubscribeTrades streams executed trades for one contract.  The gateway may
// batch trades, so callbacks receive a slice.
func (s *Service) SubscribeTrades(contractID string, callback func(contractID string, trades []Trade)) (Handle, error) {
	topic := Topic{Hub: HubMarket, Kind: KindTrade, Subject: contractID}
	return s.marketRegistry.Subscribe(topic, func(payload interface{}) {
		if trades, ok := payload.([]Trade); ok {
			callback(contractID, trades)
		}
	})
}

// SubscribeMarketDepth streams order book updates for one contract.
func (s *Service) SubscribeMarketDepth(contractID string, callback func(contractID string, levels []DepthLevel)) (Handle, error) {
	topic := Topic{Hub: HubMarket, Kind: KindDepth, Subject: contractID}
	return s.marketRegistry.Subscribe(topic, func(payload interface{}) {
		if levels, ok := payload.([]DepthLevel); ok {
			callback(contractID, levels)
		}
	})
}

// SubscribeAccounts streams account snapshots for every visible account.
func (s *Service) SubscribeAccounts(callback func(account Account)) (Handle, error) {
	topic := Topic{Hub: HubUser, Kind: KindAccount}
	return s.userRegistry.Subscribe(topic, func(payload interface{}) {
		if account, ok := payload.(Account); ok {
			callback(account)
		}
	})
}

// SubscribeOrders streams order updates for one account.
func (s *Service) SubscribeOrders(accountID int, callback func(order Order)) (Handle, error) {
	topic := Topic{Hub: HubUser, Kind: KindOrder, Subject: strconv.Itoa(accountID)}
	return s.userRegistry.Subscribe(topic, func(payload interface{}) {
		if order, ok := payload.(Order); ok {
			callback(order)
		}
	})
}

// SubscribePositions streams position updates for one account.
func (s *Service) SubscribePositions(accountID int, callback func(position Position)) (Handle, error) {
	topic := Topic{Hub: HubUser, Kind: KindPosition, Subject: strconv.Itoa(accountID)}
	return s.userRegistry.Subscribe(topic, func(payload interface{}) {
		if position, ok := payload.(Position); ok {
			callback(position)
		}
	})
}

// SubscribeUserTrades streams fills for one account.
func (s *Service) SubscribeUserTrades(accountID int, callback func(trade UserTrade)) (Handle, error) {
	topic := Topic{Hub: HubUser, Kind: KindUserTrade, Subject: strconv.Itoa(accountID)}
	return s.userRegistry.Subscribe(topic, func(payload interface{}) {
		if trade, ok := payload.(UserTrade); ok {
			callback(trade)
		}
	})
}

// Unsubscribe removes the one callback the handle identifies, routing to the
// registry of the hub the topic lives on.
func (s *Service) Unsubscribe(handle Handle) error {
	if handle.topic.Hub == HubUser {
		return s.userRegistry.Unsubscribe(handle)
	}
	return s.marketRegistry.Unsubscribe(handle)
}
