package clob

// LeafNode is one resting order inside an OrderTree.
type LeafNode struct {
	Key           OrderID
	Owner         AccountKey
	OwnerSlot     uint8
	Quantity      int64 // remaining quantity, base lots
	TimeInForce   uint16 // seconds; 0 = good-till-cancel
	Timestamp     uint64
	PegLimit      int64 // only meaningful for OraclePegged leaves
	PegOffsetLots int64 // only meaningful for OraclePegged leaves
	ClientOrderID uint64
}

// Expired reports whether this leaf should be evicted on encounter during
// a book walk at time now.
func (l *LeafNode) Expired(now uint64) bool {
	return l.TimeInForce > 0 && now > l.Timestamp && now-l.Timestamp > uint64(l.TimeInForce)
}

// effectivePrice computes the price an oracle-pegged leaf would trade at
// given the current oracle price (in lots), and whether that price still
// satisfies the leaf's own peg limit. A leaf whose raw (oracle + offset)
// price has drifted past its peg limit is not matchable at all — it isn't
// clamped to the limit, it is culled the next time the merged iterator
// encounters it.
func (l *LeafNode) effectivePrice(side Side, oraclePriceLots int64) (price int64, matchable bool) {
	raw := oraclePriceLots + l.PegOffsetLots
	if side == Bid {
		return raw, raw <= l.PegLimit
	}
	return raw, raw >= l.PegLimit
}
