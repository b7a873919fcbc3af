package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *fakeTransport, *fakeTransport) {
	t.Helper()
	market := newFakeTransport()
	user := newFakeTransport()
	service := NewServiceWithTransports(Config{}, StaticTokenProvider("tok"), market, user, nil)
	return service, market, user
}

func TestDispatchRoutesQuoteToSubscribedContract(t *testing.T) {
	//Assemble
	service, market, _ := newTestService(t)
	require.NoError(t, service.Start())

	var got []Quote
	_, err := service.SubscribeQuotes("CON.F.US.ENQ.H25", func(contractID string, quote Quote) {
		assert.Equal(t, "CON.F.US.ENQ.H25", contractID)
		got = append(got, quote)
	})
	require.NoError(t, err)

	//Act
	market.emit(eventQuote, `"CON.F.US.ENQ.H25"`, `{"bestBid":20100.25,"bestAsk":20100.75,"lastPrice":20100.5,"volume":1500}`)
	market.emit(eventQuote, `"CON.F.US.MNQ.H25"`, `{"lastPrice":1}`)

	//Assert: only the subscribed contract's quote lands
	require.Len(t, got, 1)
	assert.Equal(t, 20100.25, got[0].BestBid)
	assert.Equal(t, 20100.75, got[0].BestAsk)
	assert.Equal(t, 20100.5, got[0].LastPrice)
	assert.Equal(t, 1500.0, got[0].Volume)
}

func TestDispatchDropsMalformedPayload(t *testing.T) {
	service, market, _ := newTestService(t)
	require.NoError(t, service.Start())

	invoked := false
	_, err := service.SubscribeQuotes("CON.F.US.ENQ.H25", func(string, Quote) { invoked = true })
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		market.emit(eventQuote, `"CON.F.US.ENQ.H25"`, `{"lastPrice":"not-a-number"}`)
		market.emit(eventQuote, `"CON.F.US.ENQ.H25"`)
		market.emit(eventQuote, `42`, `{}`)
	})
	assert.False(t, invoked)
}

func TestDispatchIsolatesPanickingCallback(t *testing.T) {
	//Assemble
	service, market, _ := newTestService(t)
	require.NoError(t, service.Start())

	_, err := service.SubscribeQuotes("CON.F.US.ENQ.H25", func(string, Quote) {
		panic("application bug")
	})
	require.NoError(t, err)

	survived := false
	_, err = service.SubscribeQuotes("CON.F.US.ENQ.H25", func(string, Quote) { survived = true })
	require.NoError(t, err)

	//Act
	assert.NotPanics(t, func() {
		market.emit(eventQuote, `"CON.F.US.ENQ.H25"`, `{"lastPrice":20100.5}`)
	})

	//Assert: the second callback on the same topic still ran
	assert.True(t, survived)
}

func TestDispatchNormalizesTradeBatches(t *testing.T) {
	service, market, _ := newTestService(t)
	require.NoError(t, service.Start())

	var batches [][]Trade
	_, err := service.SubscribeTrades("CON.F.US.ENQ.H25", func(_ string, trades []Trade) {
		batches = append(batches, trades)
	})
	require.NoError(t, err)

	// the gateway sends either a single object or a batch
	market.emit(eventTrade, `"CON.F.US.ENQ.H25"`, `{"price":20100.5,"size":2,"side":0}`)
	market.emit(eventTrade, `"CON.F.US.ENQ.H25"`, `[{"price":20100.5,"size":2,"side":0},{"price":20100.75,"size":1,"side":1}]`)

	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 1)
	assert.Len(t, batches[1], 2)
	assert.Equal(t, 20100.75, batches[1][1].Price)
}

func TestDispatchRoutesUserEventsByAccount(t *testing.T) {
	service, _, user := newTestService(t)
	require.NoError(t, service.Start())

	var orders []Order
	_, err := service.SubscribeOrders(1, func(order Order) { orders = append(orders, order) })
	require.NoError(t, err)

	user.emit(eventOrder, `{"id":1001,"accountId":1,"contractId":"CON.F.US.ENQ.H25","status":1,"side":0,"size":1}`)
	user.emit(eventOrder, `{"id":2001,"accountId":2,"contractId":"CON.F.US.ENQ.H25","status":1,"side":0,"size":1}`)

	require.Len(t, orders, 1)
	assert.Equal(t, 1001, orders[0].ID)
	assert.Equal(t, "CON.F.US.ENQ.H25", orders[0].ContractID)
}

func TestDispatchAccountStreamIsAccountWide(t *testing.T) {
	service, _, user := newTestService(t)
	require.NoError(t, service.Start())

	var accounts []Account
	_, err := service.SubscribeAccounts(func(account Account) { accounts = append(accounts, account) })
	require.NoError(t, err)

	user.emit(eventAccount, `{"id":1,"name":"TEST_ACCOUNT_1","balance":50000,"canTrade":true,"isVisible":true}`)
	user.emit(eventAccount, `{"id":2,"name":"TEST_ACCOUNT_2","balance":25000,"canTrade":false,"isVisible":true}`)

	require.Len(t, accounts, 2)
	assert.Equal(t, "TEST_ACCOUNT_1", accounts[0].Name)
	assert.Equal(t, 25000.0, accounts[1].Balance)
}

func TestDispatchDepthLevels(t *testing.T) {
	service, market, _ := newTestService(t)
	require.NoError(t, service.Start())

	var got [][]DepthLevel
	_, err := service.SubscribeMarketDepth("CON.F.US.ENQ.H25", func(_ string, levels []DepthLevel) {
		got = append(got, levels)
	})
	require.NoError(t, err)

	market.emit(eventDepth, `"CON.F.US.ENQ.H25"`, `[{"price":20100.25,"volume":12,"type":0},{"price":20100.5,"volume":7,"type":1}]`)

	require.Len(t, got, 1)
	require.Len(t, got[0], 2)
	assert.Equal(t, 20100.25, got[0][0].Price)
	assert.Equal(t, 1, got[0][1].Type)
}
