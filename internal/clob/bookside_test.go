package clob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookSide_FixedBeatsWorsePeggedPrice(t *testing.T) {
	bs := newBookSide(Bid)
	_, err := bs.Insert(TreeFixed, &LeafNode{Key: OrderID{PriceLots: 100, Seq: 1}, Quantity: 1})
	require.NoError(t, err)
	_, err = bs.Insert(TreeOraclePegged, &LeafNode{
		Key: OrderID{PriceLots: 0, Seq: 2}, Quantity: 1,
		PegOffsetLots: -5, PegLimit: 1000,
	})
	require.NoError(t, err)

	best, kind, evicted := bs.PeekBest(100, 0) // oracle at 100, pegged effective = 95
	assert.Empty(t, evicted)
	assert.Equal(t, TreeFixed, kind)
	assert.Equal(t, int64(100), best.Key.PriceLots)
}

func TestBookSide_PeggedBeatsFixedWhenOracleDrifts(t *testing.T) {
	bs := newBookSide(Bid)
	_, err := bs.Insert(TreeFixed, &LeafNode{Key: OrderID{PriceLots: 100, Seq: 1}, Quantity: 1})
	require.NoError(t, err)
	_, err = bs.Insert(TreeOraclePegged, &LeafNode{
		Key: OrderID{PriceLots: 0, Seq: 2}, Quantity: 1,
		PegOffsetLots: 10, PegLimit: 1000,
	})
	require.NoError(t, err)

	best, kind, evicted := bs.PeekBest(100, 0) // pegged effective = 110, beats fixed 100
	assert.Empty(t, evicted)
	assert.Equal(t, TreeOraclePegged, kind)
	assert.Equal(t, int64(2), best.Key.Seq)
}

func TestBookSide_PegLimitCullsUnmatchableLeafWithoutFill(t *testing.T) {
	bs := newBookSide(Bid)
	_, err := bs.Insert(TreeOraclePegged, &LeafNode{
		Key: OrderID{PriceLots: 0, Seq: 1}, Quantity: 1,
		PegOffsetLots: -1, PegLimit: 1002,
	})
	require.NoError(t, err)

	// Oracle drifts so raw effective price (1004 - 1 = 1003) exceeds the
	// leaf's own peg limit of 1002: it can no longer match, even though
	// 1003 would otherwise cross a resting ask at that price.
	best, _, evicted := bs.PeekBest(1004, 0)
	assert.Nil(t, best)
	require.Len(t, evicted, 1)
	assert.Equal(t, "peg_limit", evicted[0].Reason)
	assert.Equal(t, 0, bs.pegged.Len())
}

func TestBookSide_ExpiredLeafIsEvictedOnEncounter(t *testing.T) {
	bs := newBookSide(Bid)
	_, err := bs.Insert(TreeFixed, &LeafNode{
		Key: OrderID{PriceLots: 100, Seq: 1}, Quantity: 1,
		TimeInForce: 10, Timestamp: 0,
	})
	require.NoError(t, err)

	best, _, evicted := bs.PeekBest(0, 100) // now = 100, elapsed 100 > tif 10
	assert.Nil(t, best)
	require.Len(t, evicted, 1)
	assert.Equal(t, "expired", evicted[0].Reason)
}
