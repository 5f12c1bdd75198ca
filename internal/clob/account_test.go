package clob

import (
	"testing"

	"clobcore/internal/fixedpoint"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMarketWithMakerFee(rate float64) *Market {
	m, err := NewMarket(100, 1, fixedpoint.NewRateFromFloat(0.0004), fixedpoint.NewRateFromFloat(rate), nil)
	if err != nil {
		panic(err)
	}
	return m
}

func TestOpenOrdersAccount_ExpandSlotsGrowsWithoutDisturbingExisting(t *testing.T) {
	acc := NewOpenOrdersAccount(NewAccountKey(), 1, 2)
	acc.Slots[0] = OpenOrder{State: SlotResting, ClientOrderID: 42}

	require.NoError(t, acc.ExpandSlots(4))
	assert.Len(t, acc.Slots, 4)
	assert.Equal(t, uint64(42), acc.Slots[0].ClientOrderID, "existing slot must survive expansion")
	assert.True(t, acc.Slots[2].isFree())
}

func TestOpenOrdersAccount_ExpandSlotsRejectsShrinking(t *testing.T) {
	acc := NewOpenOrdersAccount(NewAccountKey(), 1, 4)
	err := acc.ExpandSlots(2)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestOpenOrdersAccount_IsOwnerOrDelegate(t *testing.T) {
	owner := NewAccountKey()
	delegate := NewAccountKey()
	stranger := NewAccountKey()

	acc := NewOpenOrdersAccount(owner, 1, 1)
	acc.Fixed.Delegate = delegate

	assert.True(t, acc.IsOwnerOrDelegate(owner))
	assert.True(t, acc.IsOwnerOrDelegate(delegate))
	assert.False(t, acc.IsOwnerOrDelegate(stranger))
}

func TestOpenOrdersAccount_AddOrderLocksMakerFeeWhenPositive(t *testing.T) {
	market := testMarketWithMakerFee(0.0005)
	acc := NewOpenOrdersAccount(NewAccountKey(), 1, 2)
	acc.Fixed.Position.QuoteFreeNative = 1_000_000

	slot, err := acc.AddOrder(market, Bid, TreeFixed, OrderID{PriceLots: 100, Seq: 1}, 7, 0, 10)
	require.NoError(t, err)
	assert.Greater(t, acc.Slots[slot].QuoteLocked, uint64(0))
	assert.Less(t, acc.Fixed.Position.QuoteFreeNative, uint64(1_000_000))
	assert.Equal(t, int64(10), acc.Fixed.Position.BidsBaseLots)
}

func TestOpenOrdersAccount_AddOrderLocksNothingWhenMakerFeeIsRebate(t *testing.T) {
	market := testMarketWithMakerFee(-0.0001)
	acc := NewOpenOrdersAccount(NewAccountKey(), 1, 2)
	acc.Fixed.Position.QuoteFreeNative = 1_000_000
	acc.Fixed.Position.BaseFreeNative = 1_000_000

	slot, err := acc.AddOrder(market, Ask, TreeFixed, OrderID{PriceLots: 100, Seq: 1}, 7, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), acc.Slots[slot].QuoteLocked)
	assert.Equal(t, uint64(1_000_000), acc.Fixed.Position.QuoteFreeNative, "no fee escrow is locked on the rebate branch")
	assert.Less(t, acc.Fixed.Position.BaseFreeNative, uint64(1_000_000), "the order's own base notional is still locked regardless of fee sign")
}

func TestOpenOrdersAccount_CancelOrderRefundsLockedFeeAndNotional(t *testing.T) {
	market := testMarketWithMakerFee(0.0005)
	acc := NewOpenOrdersAccount(NewAccountKey(), 1, 2)
	acc.Fixed.Position.QuoteFreeNative = 1_000_000
	quoteAtStart := acc.Fixed.Position.QuoteFreeNative

	slot, err := acc.AddOrder(market, Bid, TreeFixed, OrderID{PriceLots: 100, Seq: 1}, 7, 0, 10)
	require.NoError(t, err)
	assert.Less(t, acc.Fixed.Position.QuoteFreeNative, quoteAtStart, "placing a bid locks its quote notional up front")

	require.NoError(t, acc.CancelOrder(market, slot, 10))
	assert.True(t, acc.Slots[slot].isFree())
	assert.Equal(t, quoteAtStart, acc.Fixed.Position.QuoteFreeNative, "canceling a bid with no fills refunds the locked notional and fee exactly")
	assert.Equal(t, int64(0), acc.Fixed.Position.BidsBaseLots)
	assert.Equal(t, uint64(0), acc.Fixed.Position.BaseFreeNative, "a bid cancel must never credit base_free_native")
}

func TestOpenOrdersAccount_RolloverBuybackFeesRotatesWindow(t *testing.T) {
	acc := NewOpenOrdersAccount(NewAccountKey(), 1, 1)
	acc.Fixed.BuybackFeesAccruedCurrent = 500

	acc.RolloverBuybackFees(1000, 3600)
	assert.Equal(t, uint64(500), acc.Fixed.BuybackFeesAccruedPrevious)
	assert.Equal(t, uint64(0), acc.Fixed.BuybackFeesAccruedCurrent)
	assert.Equal(t, uint64(1000+3600), acc.Fixed.BuybackFeesExpiryTimestamp)

	acc.Fixed.BuybackFeesAccruedCurrent = 20
	acc.RolloverBuybackFees(2000, 3600) // still inside the window
	assert.Equal(t, uint64(20), acc.Fixed.BuybackFeesAccruedCurrent, "rollover should not fire before expiry")
}

func TestOpenOrdersAccount_MarshalUnmarshalRoundTrip(t *testing.T) {
	acc := NewOpenOrdersAccount(NewAccountKey(), 9, 3)
	acc.Fixed.Position.BaseFreeNative = 777
	acc.Fixed.Position.QuoteFreeNative = 888
	acc.Slots[0] = OpenOrder{
		State:         SlotResting,
		SideAndTree:   BidFixed,
		ID:            OrderID{PriceLots: 55, Seq: 3},
		ClientOrderID: 123,
	}

	encoded, err := acc.MarshalBinary()
	require.NoError(t, err)

	var decoded OpenOrdersAccount
	require.NoError(t, decoded.UnmarshalBinary(encoded))

	assert.Equal(t, acc.Fixed.Owner, decoded.Fixed.Owner)
	assert.Equal(t, acc.Fixed.AccountNum, decoded.Fixed.AccountNum)
	assert.Equal(t, acc.Fixed.Position.BaseFreeNative, decoded.Fixed.Position.BaseFreeNative)
	assert.Equal(t, acc.Fixed.Position.QuoteFreeNative, decoded.Fixed.Position.QuoteFreeNative)
	require.Len(t, decoded.Slots, 3)
	assert.Equal(t, acc.Slots[0].ClientOrderID, decoded.Slots[0].ClientOrderID)
	assert.Equal(t, acc.Slots[0].ID, decoded.Slots[0].ID)
	assert.Equal(t, acc.Slots[0].SideAndTree, decoded.Slots[0].SideAndTree)
}
