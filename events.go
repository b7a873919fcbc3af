package realtime

import (
	"fmt"
	"strconv"
	"time"
)

// HubName identifies one of the gateway's push endpoints.
type HubName string

// Gateway hub names.
const (
	HubMarket HubName = "market"
	HubUser   HubName = "user"
)

// EventKind is the closed set of push event variants the gateway emits.
type EventKind int

// Event kinds, market hub first.
const (
	KindQuote EventKind = iota
	KindTrade
	KindDepth
	KindAccount
	KindOrder
	KindPosition
	KindUserTrade
)

// String implement Stringer interface
func (k EventKind) String() string {
	switch k {
	case KindQuote:
		return "quote"
	case KindTrade:
		return "trade"
	case KindDepth:
		return "depth"
	case KindAccount:
		return "account"
	case KindOrder:
		return "order"
	case KindPosition:
		return "position"
	case KindUserTrade:
		return "user-trade"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Wire event names.  These are part of the gateway contract and must match
// exactly; they are not configurable.
const (
	eventQuote     = "GatewayQuote"
	eventTrade     = "GatewayTrade"
	eventDepth     = "GatewayDepth"
	eventAccount   = "GatewayUserAccount"
	eventOrder     = "GatewayUserOrder"
	eventPosition  = "GatewayUserPosition"
	eventUserTrade = "GatewayUserTrade"
)

// eventName returns the wire event name carrying payloads of this kind.
func (k EventKind) eventName() string {
	switch k {
	case KindQuote:
		return eventQuote
	case KindTrade:
		return eventTrade
	case KindDepth:
		return eventDepth
	case KindAccount:
		return eventAccount
	case KindOrder:
		return eventOrder
	case KindPosition:
		return eventPosition
	case KindUserTrade:
		return eventUserTrade
	}
	return ""
}

// subscribeMethod returns the remote method that starts this kind of stream.
func (k EventKind) subscribeMethod() string {
	switch k {
	case KindQuote:
		return "SubscribeContractQuotes"
	case KindTrade:
		return "SubscribeContractTrades"
	case KindDepth:
		return "SubscribeContractMarketDepth"
	case KindAccount:
		return "SubscribeAccounts"
	case KindOrder:
		return "SubscribeOrders"
	case KindPosition:
		return "SubscribePositions"
	case KindUserTrade:
		return "SubscribeTrades"
	}
	return ""
}

// unsubscribeMethod returns the remote method that retracts this kind of stream.
func (k EventKind) unsubscribeMethod() string {
	switch k {
	case KindQuote:
		return "UnsubscribeContractQuotes"
	case KindTrade:
		return "UnsubscribeContractTrades"
	case KindDepth:
		return "UnsubscribeContractMarketDepth"
	case KindAccount:
		return "UnsubscribeAccounts"
	case KindOrder:
		return "UnsubscribeOrders"
	case KindPosition:
		return "UnsubscribePositions"
	case KindUserTrade:
		return "UnsubscribeTrades"
	}
	return ""
}

// Topic identifies one logical subscription: hub, event kind, and the subject
// being watched (contract id on the market hub, account id on the user hub,
// empty for the account-wide stream).  Equal topics compare equal.
type Topic struct {
	Hub     HubName
	Kind    EventKind
	Subject string
}

// String implement Stringer interface
func (t Topic) String() string {
	if t.Subject == "" {
		return fmt.Sprintf("%s/%s", t.Hub, t.Kind)
	}
	return fmt.Sprintf("%s/%s/%s", t.Hub, t.Kind, t.Subject)
}

// invokeArgs derives the remote (un)subscribe arguments from the topic.
// Market streams key on the contract id string, user streams on the numeric
// account id, and the account-wide stream takes no arguments.
func (t Topic) invokeArgs() ([]interface{}, error) {
	switch t.Kind {
	case KindQuote, KindTrade, KindDepth:
		return []interface{}{t.Subject}, nil
	case KindAccount:
		return nil, nil
	case KindOrder, KindPosition, KindUserTrade:
		accountID, err := strconv.Atoi(t.Subject)
		if err != nil {
			return nil, fmt.Errorf("topic %s: bad account id %q: %w", t, t.Subject, err)
		}
		return []interface{}{accountID}, nil
	}
	return nil, fmt.Errorf("topic %s: unknown event kind", t)
}

// Quote is one market quote update.
type Quote struct {
	Symbol     string    `json:"symbol"`
	BestBid    float64   `json:"bestBid"`
	BestAsk    float64   `json:"bestAsk"`
	LastPrice  float64   `json:"lastPrice"`
	Change     float64   `json:"change"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Volume     float64   `json:"volume"`
	Timestamp  time.Time `json:"timestamp"`
	LastUpdate time.Time `json:"lastUpdated"`
}

// Trade is one executed market trade.  GatewayTrade may deliver a single
// object or a batch; the decoder normalizes both to a []Trade.
type Trade struct {
	SymbolID  string    `json:"symbolId"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Side      int       `json:"side"`
	Timestamp time.Time `json:"timestamp"`
}

// DepthLevel is one entry of a market depth update.
type DepthLevel struct {
	Price         float64   `json:"price"`
	Volume        float64   `json:"volume"`
	CurrentVolume float64   `json:"currentVolume"`
	Type          int       `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
}

// Account is one account snapshot pushed on the user hub.
type Account struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Balance   float64 `json:"balance"`
	CanTrade  bool    `json:"canTrade"`
	IsVisible bool    `json:"isVisible"`
}

// Order is one order update pushed on the user hub.
type Order struct {
	ID                int        `json:"id"`
	AccountID         int        `json:"accountId"`
	ContractID        string     `json:"contractId"`
	CreationTimestamp time.Time  `json:"creationTimestamp"`
	UpdateTimestamp   *time.Time `json:"updateTimestamp"`
	Status            int        `json:"status"`
	Type              int        `json:"type"`
	Side              int        `json:"side"`
	Size              float64    `json:"size"`
	LimitPrice        *float64   `json:"limitPrice"`
	StopPrice         *float64   `json:"stopPrice"`
	TrailPrice        *float64   `json:"trailPrice"`
	CustomTag         string     `json:"customTag"`
	LinkedOrderID     *int       `json:"linkedOrderId"`
}

// Position is one position update pushed on the user hub.
type Position struct {
	ID                int       `json:"id"`
	AccountID         int       `json:"accountId"`
	ContractID        string    `json:"contractId"`
	CreationTimestamp time.Time `json:"creationTimestamp"`
	Type              int       `json:"type"`
	Size              float64   `json:"size"`
	AveragePrice      float64   `json:"averagePrice"`
}

// UserTrade is one fill pushed on the user hub.
type UserTrade struct {
	ID                int       `json:"id"`
	AccountID         int       `json:"accountId"`
	OrderID           int       `json:"orderId"`
	ContractID        string    `json:"contractId"`
	CreationTimestamp time.Time `json:"creationTimestamp"`
	Price             float64   `json:"price"`
	ProfitAndLoss     *float64  `json:"profitAndLoss"`
	Fees              float64   `json:"fees"`
	Side              int       `json:"side"`
	Size              float64   `json:"size"`
	Voided            bool      `json:"voided"`
}
