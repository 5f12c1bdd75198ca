package clob

import (
	"sync"

	"clobcore/internal/fixedpoint"
)

// OraclePriceSource is the external collaborator that resolves the current
// oracle price; acquisition itself (reading a price feed account, staleness
// checks against a slot) is out of scope and represented as a pure
// function the caller supplies.
type OraclePriceSource interface {
	// PriceAt returns the oracle price (quote native per base native) at
	// the given slot, or an error (ErrOracleUnavailable / ErrOracleStale)
	// if it cannot be resolved.
	PriceAt(slot uint64) (fixedpoint.Rate, error)
}

// Market holds the immutable-per-pair configuration and the mutable
// aggregate counters every operation on this pair reads and updates. It is
// the configuration object for the whole core, constructed with a plain
// New function the way the teacher builds Engine/Server, with no
// configuration-framework indirection.
type Market struct {
	BaseLotSize  int64
	QuoteLotSize int64

	TakerFee fixedpoint.Rate
	MakerFee fixedpoint.Rate

	Oracle OraclePriceSource

	// Aggregate counters, mutated by matching and settlement operations.
	BaseDepositTotal       uint64
	QuoteDepositTotal      uint64
	FeesAccrued            int64
	ReferrerRebatesAccrued uint64

	seq uint64 // per-market monotonic order-id sequence counter

	// mu enforces the single-threaded-per-operation rule: every matching
	// or cancellation op against this market holds it for the op's full
	// duration, the way the teacher guards its connection registry.
	mu sync.Mutex
}

// Lock acquires the market's per-operation mutex. Orderbook's NewOrder,
// CancelOrder, CancelOrderByClientOrderID and CancelAllOrders take it
// themselves, so a caller must not already hold it when calling them.
func (m *Market) Lock() { m.mu.Lock() }

// Unlock releases the market's per-operation mutex.
func (m *Market) Unlock() { m.mu.Unlock() }

// NewMarket constructs a Market with the given lot sizes and fee rates.
func NewMarket(baseLotSize, quoteLotSize int64, takerFee, makerFee fixedpoint.Rate, oracle OraclePriceSource) (*Market, error) {
	if baseLotSize <= 0 || quoteLotSize <= 0 {
		return nil, ErrInvalidArgument
	}
	return &Market{
		BaseLotSize:  baseLotSize,
		QuoteLotSize: quoteLotSize,
		TakerFee:     takerFee,
		MakerFee:     makerFee,
		Oracle:       oracle,
	}, nil
}

// NextSeq returns the next strictly-increasing order sequence number for
// this market. Every newly posted order gets a sequence higher than every
// order posted before it, which is what gives the composite OrderID its
// price-time-priority tie-break.
func (m *Market) NextSeq() uint64 {
	m.seq++
	return m.seq
}

// OraclePriceLots converts a native oracle price into quote-lots-per-
// base-lot, the unit the book's peg arithmetic runs in. price_lots =
// native_price * base_lot_size / quote_lot_size, truncated only once the
// full-precision ratio is known.
func (m *Market) OraclePriceLots(nativePrice fixedpoint.Rate) int64 {
	ratio := nativePrice.
		Mul(fixedpoint.RateFromInt64(m.BaseLotSize)).
		Div(fixedpoint.RateFromInt64(m.QuoteLotSize))
	return ratio.TruncateToInt64()
}
