package clob

// OrderParamsKind discriminates the pricing variants an incoming order
// can carry.
type OrderParamsKind uint8

const (
	ParamsFixed OrderParamsKind = iota
	ParamsOraclePegged
	ParamsMarket
	ParamsImmediateOrCancel
)

// OrderParams is the pricing portion of an incoming order: exactly one of
// the four variants below is populated, selected by Kind.
type OrderParams struct {
	Kind OrderParamsKind

	// Fixed
	PriceLots int64

	// OraclePegged
	PegOffsetLots int64
	PegLimitLots  int64

	// ImmediateOrCancel also carries a limit price
	// (reuses PriceLots above)
}

// Order is the caller's request to place a new order: pricing, sizing
// caps, and the behavioral flags that govern how it interacts with the
// book.
type Order struct {
	Owner         AccountKey
	OwnerSlotHint int
	Side          Side
	Params        OrderParams
	OrderType     OrderType
	SelfTrade     SelfTradeBehavior
	TimeInForce   uint16
	ClientOrderID uint64

	MaxBaseLots               int64
	MaxQuoteLotsIncludingFees int64
}

// OrderWithAmounts is the result of placing an order: how much matched
// immediately, any fees charged, and the id of the residual if one was
// posted to the book (nil if nothing was posted — fully filled, or
// canceled/rejected before posting).
type OrderWithAmounts struct {
	OrderID *OrderID

	TotalBaseLotsTaken  int64
	TotalQuoteLotsTaken int64
	PostedBaseLots      int64

	TakerFeesNative uint64
	MakerFeesNative uint64

	Fills []FillEvent
	Outs  []OutEvent
}
