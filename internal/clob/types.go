// Package clob implements the core matching engine and account-position
// bookkeeping for a single trading pair: the order book data structure and
// its matching algorithm, the taker/maker fill lifecycle, and the
// participant account model described across the component design.
package clob

import (
	"errors"

	"github.com/google/uuid"
)

// Side is which side of the book an order or resting leaf belongs to.
type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) Invert() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// OrderTreeKind tags which homogeneous tree a resting order lives in.
type OrderTreeKind uint8

const (
	TreeFixed OrderTreeKind = iota
	TreeOraclePegged
)

// SideAndOrderTree packs Side and OrderTreeKind into the single byte stored
// in an OpenOrder slot, matching the four-valued enum in the data model.
type SideAndOrderTree uint8

const (
	BidFixed SideAndOrderTree = iota
	AskFixed
	BidOraclePegged
	AskOraclePegged
)

func NewSideAndOrderTree(side Side, tree OrderTreeKind) SideAndOrderTree {
	switch {
	case side == Bid && tree == TreeFixed:
		return BidFixed
	case side == Ask && tree == TreeFixed:
		return AskFixed
	case side == Bid && tree == TreeOraclePegged:
		return BidOraclePegged
	default:
		return AskOraclePegged
	}
}

func (st SideAndOrderTree) Side() Side {
	if st == BidFixed || st == BidOraclePegged {
		return Bid
	}
	return Ask
}

func (st SideAndOrderTree) Tree() OrderTreeKind {
	if st == BidFixed || st == AskFixed {
		return TreeFixed
	}
	return TreeOraclePegged
}

// OrderType selects how an incoming order interacts with the book.
type OrderType uint8

const (
	// Limit orders match what they can and post the residual.
	Limit OrderType = iota
	// PostOnly orders never cross; the caller is expected to have priced
	// them so they don't, but the residual-posting step still applies.
	PostOnly
	// PostOnlySlide clamps a crossing residual to one tick inside the
	// opposite best instead of failing.
	PostOnlySlide
	// Market orders are aggressive-only and never post a residual.
	Market
	// ImmediateOrCancel is aggressive and cancels any residual instead of
	// posting it.
	ImmediateOrCancel
)

// SelfTradeBehavior governs what happens when a taker would match against
// its own resting order.
type SelfTradeBehavior uint8

const (
	DecrementTake SelfTradeBehavior = iota
	CancelProvide
	AbortTransaction
)

// Errors mirror the error kinds in the error-handling design: one sentinel
// per kind, declared at package scope, following the teacher's style of
// plain errors.New/fmt.Errorf sentinels rather than a custom error type
// hierarchy.
var (
	ErrInvalidArgument     = errors.New("clob: invalid argument")
	ErrOrderIDNotFound     = errors.New("clob: order id not found")
	ErrOpenOrdersFull      = errors.New("clob: open orders account has no free slot")
	ErrBookFull            = errors.New("clob: order tree at capacity")
	ErrOrderWouldSelfEvict = errors.New("clob: new order would be the worst-priced leaf on an already-full tree")
	ErrEventQueueFull      = errors.New("clob: event queue at capacity")
	ErrWouldSelfTrade      = errors.New("clob: order would self-trade")
	ErrPegLimitViolated    = errors.New("clob: pegged order effective price crosses its own peg limit at placement")
	ErrInsufficientFunds   = errors.New("clob: insufficient free balance to place order")
	ErrOracleUnavailable   = errors.New("clob: oracle price unavailable")
	ErrOracleStale         = errors.New("clob: oracle price stale")
	ErrArithmetic          = errors.New("clob: arithmetic overflow or invalid conversion")
)

// AccountKey is the 32-byte identifier of an OpenOrdersAccount's owner, the
// Go stand-in for the Pubkey referenced throughout the data model. It is
// minted the same way the teacher mints order UUIDs: via google/uuid, here
// two uuids concatenated to fill 32 bytes since account keys are twice the
// width of a uuid.
type AccountKey [32]byte

// NewAccountKey mints a fresh AccountKey from two concatenated uuids, so
// that two accounts created back-to-back can never collide.
func NewAccountKey() AccountKey {
	var k AccountKey
	a := uuid.New()
	b := uuid.New()
	copy(k[0:16], a[:])
	copy(k[16:32], b[:])
	return k
}

func (k AccountKey) IsZero() bool {
	return k == AccountKey{}
}
