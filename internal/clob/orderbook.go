package clob

import (
	"clobcore/internal/fixedpoint"
	"clobcore/internal/logging"
)

// Orderbook is the matching engine for a single market: the bid and ask
// BookSides, matched against each other by NewOrder, and maintained by
// CancelOrder/CancelAllOrders.
type Orderbook struct {
	bids *BookSide
	asks *BookSide
}

// NewOrderbook constructs an empty book.
func NewOrderbook() *Orderbook {
	return &Orderbook{
		bids: newBookSide(Bid),
		asks: newBookSide(Ask),
	}
}

func (ob *Orderbook) sideFor(s Side) *BookSide {
	if s == Bid {
		return ob.bids
	}
	return ob.asks
}

// BestPrice returns the best resting price on the given side, if any,
// accounting for oracle-pegged reconciliation at the given oracle price.
func (ob *Orderbook) BestPrice(s Side, oraclePriceLots int64, now uint64) (int64, bool) {
	leaf, kind, _ := ob.sideFor(s).PeekBest(oraclePriceLots, now)
	if leaf == nil {
		return 0, false
	}
	if kind == TreeOraclePegged {
		price, _ := leaf.effectivePrice(s, oraclePriceLots)
		return price, true
	}
	return leaf.Key.PriceLots, true
}

// limitPrice resolves the price NewOrder must respect when walking the
// opposite side, or reports unlimited for a pure Market order.
func limitPrice(order *Order) (price int64, unlimited bool) {
	switch order.OrderType {
	case Market:
		return 0, true
	}
	switch order.Params.Kind {
	case ParamsFixed, ParamsImmediateOrCancel:
		return order.Params.PriceLots, false
	case ParamsOraclePegged:
		return order.Params.PegLimitLots, false
	}
	return 0, true
}

// crosses reports whether a resting leaf at restingPrice is matchable by
// a taker on side takerSide bounded by limit (ignored when unlimited).
func crosses(takerSide Side, restingPrice, limit int64, unlimited bool) bool {
	if unlimited {
		return true
	}
	if takerSide == Bid {
		return restingPrice <= limit
	}
	return restingPrice >= limit
}

// NewOrder runs the full matching algorithm for an incoming order: walks
// the opposite side's merged best-price iterator, settling fills against
// taker (the only account this core has direct access to — maker
// settlement is always deferred to the event queue, so FillEvents are
// always returned for the caller to push rather than applied in place),
// applies the order's self-trade policy when a resting leaf belongs to
// the same owner, and finally posts any residual quantity as a new
// resting leaf (subject to OrderType and PostOnlySlide clamping).
func (ob *Orderbook) NewOrder(market *Market, taker *OpenOrdersAccount, order *Order, now uint64, oraclePriceLots int64, seqBase uint64) (*OrderWithAmounts, error) {
	market.Lock()
	defer market.Unlock()

	if order.MaxBaseLots <= 0 && order.OrderType != ImmediateOrCancel {
		return nil, ErrInvalidArgument
	}

	takerSide := order.Side
	opposite := ob.sideFor(takerSide.Invert())
	limit, unlimited := limitPrice(order)

	result := &OrderWithAmounts{}
	remainingBase := order.MaxBaseLots
	remainingQuoteLots := order.MaxQuoteLotsIncludingFees

	postOnly := order.OrderType == PostOnly || order.OrderType == PostOnlySlide
	for !postOnly && remainingBase > 0 {
		best, kind, evicted := opposite.PeekBest(oraclePriceLots, now)
		for _, ev := range evicted {
			result.Outs = append(result.Outs, newOutEvent(ev.Leaf, takerSide.Invert(), seqBase))
			logOut(ev.Leaf, takerSide.Invert(), now, seqBase)
		}
		if best == nil {
			break
		}

		restingPrice := best.Key.PriceLots
		if kind == TreeOraclePegged {
			restingPrice, _ = best.effectivePrice(takerSide.Invert(), oraclePriceLots)
		}
		if !crosses(takerSide, restingPrice, limit, unlimited) {
			break
		}

		if best.Owner == order.Owner {
			switch order.SelfTrade {
			case AbortTransaction:
				return nil, ErrWouldSelfTrade
			case CancelProvide:
				opposite.Remove(kind, best.Key)
				result.Outs = append(result.Outs, newOutEvent(best, takerSide.Invert(), seqBase))
				logOut(best, takerSide.Invert(), now, seqBase)
				continue
			case DecrementTake:
				restingSide := takerSide.Invert()
				overlap := remainingBase
				if best.Quantity < overlap {
					overlap = best.Quantity
				}
				if overlap >= best.Quantity {
					opposite.Remove(kind, best.Key)
					if err := taker.RemoveOrder(int(best.OwnerSlot), restingSide, best.Quantity); err != nil {
						return nil, err
					}
				} else {
					best.Quantity -= overlap
					if err := taker.DecrementRestingOrder(int(best.OwnerSlot), restingSide, overlap); err != nil {
						return nil, err
					}
				}
				remainingBase -= overlap
				continue
			}
		}

		matchBase := remainingBase
		if best.Quantity < matchBase {
			matchBase = best.Quantity
		}
		if !unlimited && remainingQuoteLots > 0 {
			maxByQuote := remainingQuoteLots / restingPrice
			if maxByQuote < matchBase {
				matchBase = maxByQuote
			}
			if matchBase <= 0 {
				break
			}
		}

		makerOut := matchBase == best.Quantity
		fill := FillEvent{
			EventType:          EventTypeFill,
			TakerSide:          takerSide,
			MakerOutFlag:       makerOut,
			MakerSlot:          best.OwnerSlot,
			Timestamp:          now,
			SeqNum:             seqBase,
			Maker:              best.Owner,
			MakerClientOrderID: best.ClientOrderID,
			MakerTimestamp:     best.Timestamp,
			Taker:              taker.Fixed.Owner,
			TakerClientOrderID: order.ClientOrderID,
			Price:              restingPrice,
			Quantity:           matchBase,
		}
		result.Fills = append(result.Fills, fill)
		logFill(fill)

		if err := taker.ExecuteTaker(market, takerSide, &fill); err != nil {
			return nil, err
		}

		if makerOut {
			opposite.Remove(kind, best.Key)
		} else {
			best.Quantity -= matchBase
		}

		remainingBase -= matchBase
		if !unlimited {
			remainingQuoteLots -= matchBase * restingPrice
		}
		result.TotalBaseLotsTaken += matchBase
		result.TotalQuoteLotsTaken += matchBase * restingPrice
	}

	if market.TakerFee.IsPositive() && result.TotalQuoteLotsTaken > 0 {
		notional := result.TotalQuoteLotsTaken * market.QuoteLotSize
		result.TakerFeesNative = fixedpoint.CeilQuoteFee(notional, market.TakerFee)
	}

	if remainingBase > 0 && canPost(order.OrderType) {
		postPrice, ok := ob.postingPrice(order, takerSide, oraclePriceLots, limit)
		if ok {
			slot, err := taker.AddOrder(market, takerSide, treeKindFor(order.Params.Kind), OrderID{PriceLots: postPrice, Seq: seqBase}, order.ClientOrderID, order.Params.PegLimitLots, remainingBase)
			if err != nil {
				return result, err
			}
			result.MakerFeesNative = taker.Slots[slot].QuoteLocked
			leaf := &LeafNode{
				Key:           OrderID{PriceLots: postPrice, Seq: seqBase},
				Owner:         taker.Fixed.Owner,
				OwnerSlot:     uint8(slot),
				Quantity:      remainingBase,
				TimeInForce:   order.TimeInForce,
				Timestamp:     now,
				PegLimit:      order.Params.PegLimitLots,
				PegOffsetLots: order.Params.PegOffsetLots,
				ClientOrderID: order.ClientOrderID,
			}
			mySide := ob.sideFor(takerSide)
			evicted, err := mySide.Insert(treeKindFor(order.Params.Kind), leaf)
			if err != nil {
				taker.RemoveOrder(slot, takerSide, remainingBase)
				return result, err
			}
			if evicted != nil {
				result.Outs = append(result.Outs, newOutEvent(evicted, takerSide, seqBase))
				logOut(evicted, takerSide, now, seqBase)
			}
			result.OrderID = &leaf.Key
			result.PostedBaseLots = remainingBase
		}
	}

	return result, nil
}

func logFill(f FillEvent) {
	logging.EmitFill(logging.FillLog{
		TakerSide:          uint8(f.TakerSide),
		MakerSlot:          f.MakerSlot,
		MakerOut:           f.MakerOutFlag,
		Timestamp:          f.Timestamp,
		SeqNum:             f.SeqNum,
		Maker:              accountKeyHex(f.Maker),
		MakerClientOrderID: f.MakerClientOrderID,
		MakerTimestamp:     f.MakerTimestamp,
		Taker:              accountKeyHex(f.Taker),
		TakerClientOrderID: f.TakerClientOrderID,
		Price:              f.Price,
		Quantity:           f.Quantity,
	})
}

func logOut(leaf *LeafNode, side Side, now uint64, seqNum uint64) {
	logging.EmitOut(logging.OutLog{
		Side:      uint8(side),
		Owner:     accountKeyHex(leaf.Owner),
		OwnerSlot: leaf.OwnerSlot,
		Quantity:  leaf.Quantity,
		Timestamp: now,
		SeqNum:    seqNum,
		Reason:    "expired_or_evicted",
	})
}

func accountKeyHex(k AccountKey) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 0, len(k)*2)
	for _, b := range k {
		out = append(out, hexDigits[b>>4], hexDigits[b&0xf])
	}
	return string(out)
}

func canPost(t OrderType) bool {
	switch t {
	case Limit, PostOnly, PostOnlySlide:
		return true
	default:
		return false
	}
}

func treeKindFor(k OrderParamsKind) OrderTreeKind {
	if k == ParamsOraclePegged {
		return TreeOraclePegged
	}
	return TreeFixed
}

// postingPrice resolves the price a residual quantity posts at, applying
// the PostOnlySlide clamp when the order's nominal price would cross the
// opposite side's current best.
func (ob *Orderbook) postingPrice(order *Order, side Side, oraclePriceLots, limit int64) (int64, bool) {
	price := limit
	if order.Params.Kind == ParamsOraclePegged {
		price = oraclePriceLots + order.Params.PegOffsetLots
	}

	oppBest, hasOpp := ob.BestPrice(side.Invert(), oraclePriceLots, 0)
	crossesOpp := false
	if hasOpp {
		if side == Bid {
			crossesOpp = price >= oppBest
		} else {
			crossesOpp = price <= oppBest
		}
	}

	switch order.OrderType {
	case PostOnly:
		if crossesOpp {
			return 0, false
		}
	case PostOnlySlide:
		if crossesOpp {
			if side == Bid {
				price = oppBest - 1
			} else {
				price = oppBest + 1
			}
		}
	}
	return price, true
}

// CancelOrder removes a resting order by its composite id from the
// account's book-side, refunding escrow via OpenOrdersAccount.CancelOrder.
func (ob *Orderbook) CancelOrder(market *Market, account *OpenOrdersAccount, id OrderID) error {
	market.Lock()
	defer market.Unlock()
	return ob.cancelOrderLocked(market, account, id)
}

func (ob *Orderbook) cancelOrderLocked(market *Market, account *OpenOrdersAccount, id OrderID) error {
	slot, ok := account.FindOrderByOrderID(id)
	if !ok {
		return ErrOrderIDNotFound
	}
	order := &account.Slots[slot]
	side := order.SideAndTree.Side()
	tree := order.SideAndTree.Tree()

	leaf, ok := ob.sideFor(side).Remove(tree, id)
	if !ok {
		return ErrOrderIDNotFound
	}
	return account.CancelOrder(market, slot, leaf.Quantity)
}

// CancelOrderByClientOrderID cancels a resting order looked up by the
// caller-assigned client id rather than the book's composite id.
func (ob *Orderbook) CancelOrderByClientOrderID(market *Market, account *OpenOrdersAccount, clientOrderID uint64) error {
	market.Lock()
	defer market.Unlock()
	slot, ok := account.FindOrderByClientID(clientOrderID)
	if !ok {
		return ErrOrderIDNotFound
	}
	return ob.cancelOrderLocked(market, account, account.Slots[slot].ID)
}

// CancelAllOrders cancels every resting order belonging to account,
// stopping at the first error (e.g. a slot whose leaf vanished from the
// book through some other path) and returning it along with how many
// orders were successfully canceled before that point.
func (ob *Orderbook) CancelAllOrders(market *Market, account *OpenOrdersAccount) (canceled int, err error) {
	market.Lock()
	defer market.Unlock()
	for i := range account.Slots {
		if account.Slots[i].State != SlotResting {
			continue
		}
		id := account.Slots[i].ID
		if cancelErr := ob.cancelOrderLocked(market, account, id); cancelErr != nil {
			return canceled, cancelErr
		}
		canceled++
	}
	return canceled, nil
}
