package clob

import (
	"encoding/binary"

	"clobcore/internal/fixedpoint"
)

// MaxOpenOrderSlots bounds the dynamic slot array an OpenOrdersAccount can
// grow to via ExpandSlots. The upstream program allows a delegate to pay
// for more space as needed; we keep the same "grow, never shrink" shape
// but cap it rather than letting it grow unbounded.
const MaxOpenOrderSlots = 64

// OpenOrderState tags what a slot currently holds.
type OpenOrderState uint8

const (
	SlotFree OpenOrderState = iota
	SlotResting
)

// OpenOrder is one dynamic-tail slot: either free, or tracking a single
// resting leaf's location (which tree/side it lives in and its id) plus
// the per-order fields needed to settle or cancel it without walking the
// book.
type OpenOrder struct {
	State         OpenOrderState
	SideAndTree   SideAndOrderTree
	ID            OrderID
	ClientOrderID uint64
	PegLimit      int64
	QuoteLocked   uint64 // pre-paid maker fee, refunded pro-rata on cancel/fill
}

func (o *OpenOrder) isFree() bool { return o.State == SlotFree }

// openOrdersAccountFixedSize is the 488-byte bit-exact budget for the
// fixed header: 32(owner) + 32(name) + 32(delegate) + 4(account_num) +
// 1(bump) + 3(padding) + 8*3(buyback fee bookkeeping) + 152(Position) +
// 208(reserved) = 488.
const openOrdersAccountFixedSize = 32 + 32 + 32 + 4 + 1 + 3 + 8*3 + positionEncodedSize + 208

// OpenOrdersAccountFixed is the fixed-size portion of a participant
// account record: identity, delegation, buyback-fee rollover
// bookkeeping, and the embedded Position. Its encoded size is pinned at
// 488 bytes by openOrdersAccountFixedSize so that growing the dynamic
// slot tail never perturbs the fixed header's offsets.
type OpenOrdersAccountFixed struct {
	Owner      AccountKey
	Name       [32]byte
	Delegate   AccountKey
	AccountNum uint32
	Bump       uint8

	BuybackFeesAccruedCurrent  uint64
	BuybackFeesAccruedPrevious uint64
	BuybackFeesExpiryTimestamp uint64

	Position Position
}

// OpenOrdersAccount is the full account record: the fixed header plus the
// dynamic array of order slots. Unlike the upstream program's zero-copy
// memory-mapped account, this is an ordinary Go value; MarshalBinary /
// UnmarshalBinary below encode it as the 488-byte fixed header followed by
// one 32-byte record per slot. The encoding has no discriminator tag and
// no dynamic-part header, and a slot record carries neither PegLimit nor
// QuoteLocked, so those two fields decode as zero.
type OpenOrdersAccount struct {
	Fixed OpenOrdersAccountFixed
	Slots []OpenOrder
}

// NewOpenOrdersAccount constructs an account with an initial slot count,
// owned by owner.
func NewOpenOrdersAccount(owner AccountKey, accountNum uint32, initialSlots int) *OpenOrdersAccount {
	acc := &OpenOrdersAccount{
		Fixed: OpenOrdersAccountFixed{
			Owner:      owner,
			AccountNum: accountNum,
		},
	}
	acc.Slots = make([]OpenOrder, initialSlots)
	return acc
}

// IsOwnerOrDelegate reports whether key is authorized to act on this
// account: either the owner itself, or the currently-set delegate. A zero
// delegate means no delegate is set.
func (a *OpenOrdersAccount) IsOwnerOrDelegate(key AccountKey) bool {
	if key == a.Fixed.Owner {
		return true
	}
	if !a.Fixed.Delegate.IsZero() && key == a.Fixed.Delegate {
		return true
	}
	return false
}

// ExpandSlots grows the dynamic slot tail to newCount, defaulting the new
// slots to free. Mirrors expand_dynamic_content's realloc-then-zero-init
// behavior, except here there is no underlying buffer to memmove: copying
// the old slots into the front of a larger slice keeps their positions.
func (a *OpenOrdersAccount) ExpandSlots(newCount int) error {
	if newCount <= len(a.Slots) {
		return ErrInvalidArgument
	}
	if newCount > MaxOpenOrderSlots {
		return ErrInvalidArgument
	}
	grown := make([]OpenOrder, newCount)
	copy(grown, a.Slots)
	a.Slots = grown
	return nil
}

// NextFreeSlot returns the index of the first free slot, or
// ErrOpenOrdersFull if none remain.
func (a *OpenOrdersAccount) NextFreeSlot() (int, error) {
	for i := range a.Slots {
		if a.Slots[i].isFree() {
			return i, nil
		}
	}
	return 0, ErrOpenOrdersFull
}

// FindOrderByClientID returns the slot index holding an order with the
// given client-assigned id, if any resting order has one.
func (a *OpenOrdersAccount) FindOrderByClientID(clientOrderID uint64) (int, bool) {
	for i := range a.Slots {
		if a.Slots[i].State == SlotResting && a.Slots[i].ClientOrderID == clientOrderID {
			return i, true
		}
	}
	return 0, false
}

// FindOrderByOrderID returns the slot index holding the given order id.
func (a *OpenOrdersAccount) FindOrderByOrderID(id OrderID) (int, bool) {
	for i := range a.Slots {
		if a.Slots[i].State == SlotResting && a.Slots[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// AddOrder records a freshly posted resting leaf in a free slot. It locks
// the order's own notional against the account's free balance — quote for
// a Bid (baseLots * price, converted to native via QuoteLotSize), base for
// an Ask (baseLots converted via BaseLotSize) — and, on top of that, locks
// the maker-fee escrow up front when the market's maker fee is positive
// (§ fee model: pre-pay branch). When the maker fee is zero or negative
// (a rebate), no extra quote is locked for fees at post time — the rebate
// is credited only once the order actually fills.
func (a *OpenOrdersAccount) AddOrder(market *Market, side Side, tree OrderTreeKind, id OrderID, clientOrderID uint64, pegLimit int64, baseLots int64) (slot int, err error) {
	slot, err = a.NextFreeSlot()
	if err != nil {
		return 0, err
	}

	if side == Bid {
		notional := uint64(baseLots*id.PriceLots) * uint64(market.QuoteLotSize)
		if a.Fixed.Position.QuoteFreeNative < notional {
			return 0, ErrInsufficientFunds
		}
		a.Fixed.Position.QuoteFreeNative -= notional
	} else {
		notional := uint64(baseLots) * uint64(market.BaseLotSize)
		if a.Fixed.Position.BaseFreeNative < notional {
			return 0, ErrInsufficientFunds
		}
		a.Fixed.Position.BaseFreeNative -= notional
	}

	var quoteLocked uint64
	if market.MakerFee.IsPositive() {
		notional := baseLots * id.PriceLots * market.QuoteLotSize
		quoteLocked = fixedpoint.CeilQuoteFee(notional, market.MakerFee)
		if a.Fixed.Position.QuoteFreeNative < quoteLocked {
			return 0, ErrInsufficientFunds
		}
		a.Fixed.Position.QuoteFreeNative -= quoteLocked
	}

	a.Slots[slot] = OpenOrder{
		State:         SlotResting,
		SideAndTree:   NewSideAndOrderTree(side, tree),
		ID:            id,
		ClientOrderID: clientOrderID,
		PegLimit:      pegLimit,
		QuoteLocked:   quoteLocked,
	}
	if side == Bid {
		a.Fixed.Position.BidsBaseLots += baseLots
	} else {
		a.Fixed.Position.AsksBaseLots += baseLots
	}
	return slot, nil
}

// RemoveOrder frees a slot and reduces the side's lot counter by
// baseLots. It releases no locked notional and no fee escrow; CancelOrder
// is the path that refunds those.
func (a *OpenOrdersAccount) RemoveOrder(slot int, side Side, baseLots int64) error {
	if slot < 0 || slot >= len(a.Slots) || a.Slots[slot].State != SlotResting {
		return ErrInvalidArgument
	}
	if side == Bid {
		a.Fixed.Position.BidsBaseLots -= baseLots
	} else {
		a.Fixed.Position.AsksBaseLots -= baseLots
	}
	a.Slots[slot] = OpenOrder{}
	return nil
}

// DecrementRestingOrder reduces a still-resting slot's tracked quantity by
// baseLots without freeing it, used when a DecrementTake self-trade only
// partially consumes the resting leaf.
func (a *OpenOrdersAccount) DecrementRestingOrder(slot int, side Side, baseLots int64) error {
	if slot < 0 || slot >= len(a.Slots) || a.Slots[slot].State != SlotResting {
		return ErrInvalidArgument
	}
	if side == Bid {
		a.Fixed.Position.BidsBaseLots -= baseLots
	} else {
		a.Fixed.Position.AsksBaseLots -= baseLots
	}
	return nil
}

// CancelOrder frees a resting slot, refunds its pro-rata locked maker-fee
// escrow, and releases the order's own locked notional back to the side it
// was locked from: quote for a Bid, base for an Ask.
func (a *OpenOrdersAccount) CancelOrder(market *Market, slot int, remainingBaseLots int64) error {
	if slot < 0 || slot >= len(a.Slots) || a.Slots[slot].State != SlotResting {
		return ErrInvalidArgument
	}
	order := &a.Slots[slot]
	side := order.SideAndTree.Side()

	if order.QuoteLocked > 0 {
		a.Fixed.Position.QuoteFreeNative += order.QuoteLocked
	}

	if side == Bid {
		notional := uint64(remainingBaseLots*order.ID.PriceLots) * uint64(market.QuoteLotSize)
		a.Fixed.Position.QuoteFreeNative += notional
	} else {
		notional := uint64(remainingBaseLots) * uint64(market.BaseLotSize)
		a.Fixed.Position.BaseFreeNative += notional
	}

	return a.RemoveOrder(slot, side, remainingBaseLots)
}

// ExecuteMaker settles the maker side of a fill against this account: it
// credits base or quote depending on which side the maker rested on,
// charges the pro-rata maker fee (or credits the pro-rata rebate when
// MakerFee is negative), and frees the slot entirely if the fill exhausted
// it (fill.MakerOut()).
func (a *OpenOrdersAccount) ExecuteMaker(market *Market, fill *FillEvent) error {
	slot := int(fill.MakerSlot)
	makerSide := fill.TakerSide.Invert()

	baseChange, quoteChange := fill.BaseQuoteChange(makerSide)
	baseChange *= market.BaseLotSize
	quoteChange *= market.QuoteLotSize
	notional := fill.Price * fill.Quantity * market.QuoteLotSize

	if market.MakerFee.IsPositive() {
		fee := fixedpoint.CeilQuoteFee(notional, market.MakerFee)
		if slot >= 0 && slot < len(a.Slots) && a.Slots[slot].State == SlotResting {
			refund := a.Slots[slot].QuoteLocked
			if refund > fee {
				a.Fixed.Position.QuoteFreeNative += refund - fee
			}
			a.Slots[slot].QuoteLocked = 0
		}
		market.FeesAccrued += int64(fee)
	} else if market.MakerFee.IsNegative() {
		rebate := fixedpoint.FloorQuoteRebate(notional, market.MakerFee)
		a.Fixed.Position.ReferrerRebatesAccrued += rebate
		a.Fixed.Position.QuoteFreeNative += rebate
		market.ReferrerRebatesAccrued += rebate
	}

	// The side the maker gives up was locked by AddOrder; only the side it
	// receives is credited here.
	if baseChange > 0 {
		a.Fixed.Position.BaseFreeNative += uint64(baseChange)
	}
	if quoteChange > 0 {
		a.Fixed.Position.QuoteFreeNative += uint64(quoteChange)
	}

	a.Fixed.Position.MakerVolume += uint64(fill.Quantity)

	if fill.MakerOut() {
		if makerSide == Bid {
			a.Fixed.Position.BidsBaseLots -= fill.Quantity
		} else {
			a.Fixed.Position.AsksBaseLots -= fill.Quantity
		}
		if slot >= 0 && slot < len(a.Slots) {
			a.Slots[slot] = OpenOrder{}
		}
	}
	return a.Fixed.Position.Invariants()
}

// ExecuteTaker settles the taker side of a fill: it is always a direct
// credit/debit since a taker never rests, and always pays the taker fee
// (takers never receive a rebate). Unlike the upstream execute_taker,
// this has no separate "unused locals" bookkeeping branch to mirror —
// taker settlement here is the whole of the operation, not a partial
// step deferred to a later consume_events pass.
func (a *OpenOrdersAccount) ExecuteTaker(market *Market, takerSide Side, fill *FillEvent) error {
	baseChange, quoteChange := fill.BaseQuoteChange(takerSide)
	baseChange *= market.BaseLotSize
	quoteChange *= market.QuoteLotSize
	notional := fill.Price * fill.Quantity * market.QuoteLotSize
	fee := fixedpoint.CeilQuoteFee(notional, market.TakerFee)

	if baseChange > 0 {
		a.Fixed.Position.BaseFreeNative += uint64(baseChange)
	} else {
		adjust, err := checkedSubU64(a.Fixed.Position.BaseFreeNative, uint64(-baseChange))
		if err != nil {
			return err
		}
		a.Fixed.Position.BaseFreeNative = adjust
	}

	netQuote := quoteChange
	if quoteChange > 0 {
		adjusted := int64(fee)
		if adjusted > netQuote {
			netQuote = 0
		} else {
			netQuote -= adjusted
		}
		a.Fixed.Position.QuoteFreeNative += uint64(netQuote)
	} else {
		adjust, err := checkedSubU64(a.Fixed.Position.QuoteFreeNative, uint64(-netQuote)+fee)
		if err != nil {
			return err
		}
		a.Fixed.Position.QuoteFreeNative = adjust
	}

	market.FeesAccrued += int64(fee)
	a.Fixed.Position.TakerVolume += uint64(fill.Quantity)
	return a.Fixed.Position.Invariants()
}

// RolloverBuybackFees advances the buyback-fee rollover window: once
// intervalSecs have elapsed since the last rollover, the current window's
// accrued fees become the previous window's, and a fresh current window
// starts at zero.
func (a *OpenOrdersAccount) RolloverBuybackFees(now uint64, intervalSecs uint64) {
	if a.Fixed.BuybackFeesExpiryTimestamp != 0 && now < a.Fixed.BuybackFeesExpiryTimestamp {
		return
	}
	a.Fixed.BuybackFeesAccruedPrevious = a.Fixed.BuybackFeesAccruedCurrent
	a.Fixed.BuybackFeesAccruedCurrent = 0
	a.Fixed.BuybackFeesExpiryTimestamp = now + intervalSecs
}

// MarshalBinary encodes the account to its bit-exact little-endian wire
// format: the 488-byte fixed header followed by one 32-byte record per
// slot, in the same manual encoding/binary style the teacher uses for its
// message framing rather than any reflection-based codec.
func (a *OpenOrdersAccount) MarshalBinary() ([]byte, error) {
	out := make([]byte, openOrdersAccountFixedSize+len(a.Slots)*openOrderEncodedSize)
	off := 0

	copy(out[off:off+32], a.Fixed.Owner[:])
	off += 32
	copy(out[off:off+32], a.Fixed.Name[:])
	off += 32
	copy(out[off:off+32], a.Fixed.Delegate[:])
	off += 32
	binary.LittleEndian.PutUint32(out[off:], a.Fixed.AccountNum)
	off += 4
	out[off] = a.Fixed.Bump
	off += 1
	off += 3 // padding
	binary.LittleEndian.PutUint64(out[off:], a.Fixed.BuybackFeesAccruedCurrent)
	off += 8
	binary.LittleEndian.PutUint64(out[off:], a.Fixed.BuybackFeesAccruedPrevious)
	off += 8
	binary.LittleEndian.PutUint64(out[off:], a.Fixed.BuybackFeesExpiryTimestamp)
	off += 8

	binary.LittleEndian.PutUint64(out[off:], uint64(a.Fixed.Position.BidsBaseLots))
	off += 8
	binary.LittleEndian.PutUint64(out[off:], uint64(a.Fixed.Position.AsksBaseLots))
	off += 8
	binary.LittleEndian.PutUint64(out[off:], a.Fixed.Position.BaseFreeNative)
	off += 8
	binary.LittleEndian.PutUint64(out[off:], a.Fixed.Position.QuoteFreeNative)
	off += 8
	binary.LittleEndian.PutUint64(out[off:], a.Fixed.Position.TakerVolume)
	off += 8
	binary.LittleEndian.PutUint64(out[off:], a.Fixed.Position.MakerVolume)
	off += 8
	binary.LittleEndian.PutUint64(out[off:], a.Fixed.Position.ReferrerRebatesAccrued)
	off += 8
	off += positionReservedBytes

	off += 208 // reserved tail of the fixed header

	for i := range a.Slots {
		s := &a.Slots[i]
		out[off] = byte(s.State)
		off += 1
		out[off] = byte(s.SideAndTree)
		off += 1
		off += 6 // padding out to the 8-byte-aligned id field
		binary.LittleEndian.PutUint64(out[off:], uint64(s.ID.PriceLots))
		off += 8
		binary.LittleEndian.PutUint64(out[off:], s.ID.Seq)
		off += 8
		binary.LittleEndian.PutUint64(out[off:], s.ClientOrderID)
		off += 8
	}
	return out, nil
}

const openOrderEncodedSize = 1 + 1 + 6 + 8 + 8 + 8

// UnmarshalBinary decodes an account from the layout MarshalBinary
// produces. The slot count is inferred from the remaining buffer length.
func (a *OpenOrdersAccount) UnmarshalBinary(data []byte) error {
	if len(data) < openOrdersAccountFixedSize {
		return ErrInvalidArgument
	}
	off := 0
	copy(a.Fixed.Owner[:], data[off:off+32])
	off += 32
	copy(a.Fixed.Name[:], data[off:off+32])
	off += 32
	copy(a.Fixed.Delegate[:], data[off:off+32])
	off += 32
	a.Fixed.AccountNum = binary.LittleEndian.Uint32(data[off:])
	off += 4
	a.Fixed.Bump = data[off]
	off += 1
	off += 3
	a.Fixed.BuybackFeesAccruedCurrent = binary.LittleEndian.Uint64(data[off:])
	off += 8
	a.Fixed.BuybackFeesAccruedPrevious = binary.LittleEndian.Uint64(data[off:])
	off += 8
	a.Fixed.BuybackFeesExpiryTimestamp = binary.LittleEndian.Uint64(data[off:])
	off += 8

	a.Fixed.Position.BidsBaseLots = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	a.Fixed.Position.AsksBaseLots = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	a.Fixed.Position.BaseFreeNative = binary.LittleEndian.Uint64(data[off:])
	off += 8
	a.Fixed.Position.QuoteFreeNative = binary.LittleEndian.Uint64(data[off:])
	off += 8
	a.Fixed.Position.TakerVolume = binary.LittleEndian.Uint64(data[off:])
	off += 8
	a.Fixed.Position.MakerVolume = binary.LittleEndian.Uint64(data[off:])
	off += 8
	a.Fixed.Position.ReferrerRebatesAccrued = binary.LittleEndian.Uint64(data[off:])
	off += 8
	off += positionReservedBytes

	off += 208

	rest := data[off:]
	if len(rest)%openOrderEncodedSize != 0 {
		return ErrInvalidArgument
	}
	count := len(rest) / openOrderEncodedSize
	a.Slots = make([]OpenOrder, count)
	for i := 0; i < count; i++ {
		b := rest[i*openOrderEncodedSize:]
		s := &a.Slots[i]
		s.State = OpenOrderState(b[0])
		s.SideAndTree = SideAndOrderTree(b[1])
		p := 8
		s.ID.PriceLots = int64(binary.LittleEndian.Uint64(b[p:]))
		p += 8
		s.ID.Seq = binary.LittleEndian.Uint64(b[p:])
		p += 8
		s.ClientOrderID = binary.LittleEndian.Uint64(b[p:])
	}
	return nil
}
