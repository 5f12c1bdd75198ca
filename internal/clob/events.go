package clob

// EventType tags the two record kinds that flow through the event queue.
type EventType uint8

const (
	EventTypeFill EventType = iota
	EventTypeOut
)

// FillEvent is produced by the matcher for the maker side of every trade;
// NewOrder never settles a maker account itself, so each fill reaches the
// maker only through the event queue. Its layout
// mirrors the wire/on-disk shape in §6 (80 bytes): a one-byte event type
// and taker side, a maker_out flag, the maker's slot, timestamps, the two
// account keys, client order ids, and the trade's price/quantity in lots.
type FillEvent struct {
	EventType          EventType
	TakerSide          Side
	MakerOutFlag       bool
	MakerSlot          uint8
	Timestamp          uint64
	SeqNum             uint64
	Maker              AccountKey
	MakerClientOrderID uint64
	MakerTimestamp     uint64
	Taker              AccountKey
	TakerClientOrderID uint64
	Price              int64
	Quantity           int64
}

func (f *FillEvent) MakerOut() bool { return f.MakerOutFlag }

// BaseQuoteChange returns the signed base/quote lot change for the given
// side of this fill: positive base/negative quote for a bid fill,
// negative base/positive quote for an ask fill.
func (f *FillEvent) BaseQuoteChange(side Side) (baseChange, quoteChange int64) {
	if side == Bid {
		return f.Quantity, -f.Price * f.Quantity
	}
	return -f.Quantity, f.Price * f.Quantity
}

// OutEvent is produced when a resting leaf leaves the book without a
// fill: time-in-force expiry or a peg-limit cull encountered during a
// walk, a CancelProvide self-trade, or capacity eviction when a tree is
// full and a new leaf must be inserted.
type OutEvent struct {
	EventType EventType
	Side      Side
	Owner     AccountKey
	OwnerSlot uint8
	Quantity  int64
	Timestamp uint64
	SeqNum    uint64
}

// newOutEvent builds an OutEvent from an evicted leaf.
func newOutEvent(leaf *LeafNode, side Side, seqNum uint64) OutEvent {
	return OutEvent{
		EventType: EventTypeOut,
		Side:      side,
		Owner:     leaf.Owner,
		OwnerSlot: leaf.OwnerSlot,
		Quantity:  leaf.Quantity,
		Timestamp: leaf.Timestamp,
		SeqNum:    seqNum,
	}
}
