// Package tests holds end-to-end scenarios exercising the matching core,
// account bookkeeping, and event queue together, in the style of the
// teacher's own orderbook_test.go: a handful of focused scenarios rather
// than an exhaustive combinatorial grid.
package tests

import (
	"testing"

	"clobcore/internal/clob"
	"clobcore/internal/eventqueue"
	"clobcore/internal/fixedpoint"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMarket(t *testing.T) *clob.Market {
	t.Helper()
	m, err := clob.NewMarket(100, 1, fixedpoint.NewRateFromFloat(0.0004), fixedpoint.NewRateFromFloat(0.0002), nil)
	require.NoError(t, err)
	return m
}

func fundedAccount() *clob.OpenOrdersAccount {
	acc := clob.NewOpenOrdersAccount(clob.NewAccountKey(), 1, 8)
	acc.Fixed.Position.BaseFreeNative = 10_000_000
	acc.Fixed.Position.QuoteFreeNative = 10_000_000
	return acc
}

// Scenario: post a fixed bid, then cancel it outright; the book and the
// owner's escrow should both return to empty.
func TestScenario_PostAndCancelFixedBid(t *testing.T) {
	market := newMarket(t)
	book := clob.NewOrderbook()
	account := fundedAccount()
	quoteBefore := account.Fixed.Position.QuoteFreeNative

	result, err := book.NewOrder(market, account, &clob.Order{
		Owner:       account.Fixed.Owner,
		Side:        clob.Bid,
		Params:      clob.OrderParams{Kind: clob.ParamsFixed, PriceLots: 50},
		OrderType:   clob.Limit,
		MaxBaseLots: 20,
	}, 1, 0, 1)
	require.NoError(t, err)
	require.NotNil(t, result.OrderID)

	require.NoError(t, book.CancelOrder(market, account, *result.OrderID))
	assert.Equal(t, quoteBefore, account.Fixed.Position.QuoteFreeNative, "canceling a fixed bid with no fills returns escrow exactly")
}

// Scenario: a pegged bid rests at oracle+offset; a crossing market ask
// takes it at that effective price.
func TestScenario_PeggedBidCrossedByMarketAsk(t *testing.T) {
	market := newMarket(t)
	book := clob.NewOrderbook()
	maker := fundedAccount()
	taker := fundedAccount()

	oraclePriceLots := int64(1000)
	_, err := book.NewOrder(market, maker, &clob.Order{
		Owner: maker.Fixed.Owner,
		Side:  clob.Bid,
		Params: clob.OrderParams{
			Kind:          clob.ParamsOraclePegged,
			PegOffsetLots: -2,
			PegLimitLots:  2000,
		},
		OrderType:   clob.Limit,
		MaxBaseLots: 10,
	}, 1, oraclePriceLots, 1)
	require.NoError(t, err)

	result, err := book.NewOrder(market, taker, &clob.Order{
		Owner:       taker.Fixed.Owner,
		Side:        clob.Ask,
		OrderType:   clob.Market,
		MaxBaseLots: 4,
	}, 2, oraclePriceLots, 2)
	require.NoError(t, err)

	require.Len(t, result.Fills, 1)
	assert.Equal(t, oraclePriceLots-2, result.Fills[0].Price, "fill price should be the pegged leaf's effective price")
}

// Scenario: oracle drift pushes a pegged bid's effective price past its
// own peg limit; it must be culled rather than matched even though its
// raw effective price would otherwise cross the incoming ask.
func TestScenario_OracleDriftPastPegLimitCullsLeaf(t *testing.T) {
	market := newMarket(t)
	book := clob.NewOrderbook()
	maker := fundedAccount()
	taker := fundedAccount()

	_, err := book.NewOrder(market, maker, &clob.Order{
		Owner: maker.Fixed.Owner,
		Side:  clob.Bid,
		Params: clob.OrderParams{
			Kind:          clob.ParamsOraclePegged,
			PegOffsetLots: -1,
			PegLimitLots:  1002,
		},
		OrderType:   clob.Limit,
		MaxBaseLots: 5,
	}, 1, 1000, 1)
	require.NoError(t, err)

	result, err := book.NewOrder(market, taker, &clob.Order{
		Owner:       taker.Fixed.Owner,
		Side:        clob.Ask,
		Params:      clob.OrderParams{Kind: clob.ParamsFixed, PriceLots: 1003},
		OrderType:   clob.Limit,
		MaxBaseLots: 5,
	}, 2, 1004, 2) // oracle has drifted to 1004: raw effective = 1004-1 = 1003 > peg limit 1002
	require.NoError(t, err)

	assert.Empty(t, result.Fills, "the pegged leaf must not match once it has drifted past its own peg limit")
	require.NotNil(t, result.OrderID, "the incoming ask should post instead of matching")
}

// Scenario: a resting order's time-in-force elapses; it must be evicted
// with an Out event the next time the book is walked, instead of
// matching against a later crossing order.
func TestScenario_ExpiryEvictionDuringWalk(t *testing.T) {
	market := newMarket(t)
	book := clob.NewOrderbook()
	maker := fundedAccount()
	taker := fundedAccount()

	_, err := book.NewOrder(market, maker, &clob.Order{
		Owner:       maker.Fixed.Owner,
		Side:        clob.Bid,
		Params:      clob.OrderParams{Kind: clob.ParamsFixed, PriceLots: 100},
		OrderType:   clob.Limit,
		MaxBaseLots: 5,
		TimeInForce: 10,
	}, 1, 0, 1)
	require.NoError(t, err)

	result, err := book.NewOrder(market, taker, &clob.Order{
		Owner:       taker.Fixed.Owner,
		Side:        clob.Ask,
		Params:      clob.OrderParams{Kind: clob.ParamsFixed, PriceLots: 100},
		OrderType:   clob.Limit,
		MaxBaseLots: 5,
	}, 100, 0, 2) // now = 100, far past the maker's time_in_force of 10
	require.NoError(t, err)

	assert.Empty(t, result.Fills, "the expired bid must not fill")
	require.Len(t, result.Outs, 1)
	require.NotNil(t, result.OrderID, "the taker's ask posts since nothing matched")
}

// Scenario: a self-trade under AbortTransaction rejects the whole order
// rather than partially matching around the conflicting leaf.
func TestScenario_SelfTradeAbort(t *testing.T) {
	market := newMarket(t)
	book := clob.NewOrderbook()
	account := fundedAccount()

	_, err := book.NewOrder(market, account, &clob.Order{
		Owner:       account.Fixed.Owner,
		Side:        clob.Bid,
		Params:      clob.OrderParams{Kind: clob.ParamsFixed, PriceLots: 100},
		OrderType:   clob.Limit,
		MaxBaseLots: 5,
	}, 1, 0, 1)
	require.NoError(t, err)

	_, err = book.NewOrder(market, account, &clob.Order{
		Owner:       account.Fixed.Owner,
		Side:        clob.Ask,
		Params:      clob.OrderParams{Kind: clob.ParamsFixed, PriceLots: 100},
		OrderType:   clob.Limit,
		SelfTrade:   clob.AbortTransaction,
		MaxBaseLots: 5,
	}, 2, 0, 2)
	assert.ErrorIs(t, err, clob.ErrWouldSelfTrade)
}

// Scenario: a fill the matcher could not settle synchronously (the maker
// wasn't in hand) flows through the event queue and is applied once the
// maker account becomes available.
func TestScenario_DeferredMakerSettlementViaEventQueue(t *testing.T) {
	market := newMarket(t)
	book := clob.NewOrderbook()
	maker := fundedAccount()
	taker := fundedAccount()
	queue := eventqueue.New(eventqueue.DefaultCapacity)

	_, err := book.NewOrder(market, maker, &clob.Order{
		Owner:       maker.Fixed.Owner,
		Side:        clob.Bid,
		Params:      clob.OrderParams{Kind: clob.ParamsFixed, PriceLots: 100},
		OrderType:   clob.Limit,
		MaxBaseLots: 5,
	}, 1, 0, 1)
	require.NoError(t, err)

	result, err := book.NewOrder(market, taker, &clob.Order{
		Owner:       taker.Fixed.Owner,
		Side:        clob.Ask,
		Params:      clob.OrderParams{Kind: clob.ParamsFixed, PriceLots: 100},
		OrderType:   clob.Limit,
		MaxBaseLots: 5,
	}, 2, 0, 2)
	require.NoError(t, err)
	require.Len(t, result.Fills, 1)

	for _, fill := range result.Fills {
		require.NoError(t, queue.PushFill(fill))
	}

	bidsBefore := maker.Fixed.Position.BidsBaseLots
	accounts := map[clob.AccountKey]*clob.OpenOrdersAccount{maker.Fixed.Owner: maker}
	consumed, err := eventqueue.Consume(market, accounts, queue, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)
	assert.Less(t, maker.Fixed.Position.BidsBaseLots, bidsBefore, "maker's resting bid lots should be released once the deferred fill is consumed")
}
