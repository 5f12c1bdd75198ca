// Package eventqueue implements the bounded, at-least-once event queue
// that carries deferred maker-side settlement out of the matching core:
// FillEvents and OutEvents the core couldn't settle synchronously because
// it only had the taker's account in hand, queued for a later consumer
// that does have the maker account loaded.
package eventqueue

import (
	"sync"

	"clobcore/internal/clob"

	"github.com/rs/zerolog/log"
)

// DefaultCapacity mirrors the teacher's TASK_CHAN_SIZE-style sizing
// choice: generous enough that a healthy consumer never backs it up,
// small enough that a stalled consumer fails fast instead of growing
// without bound.
const DefaultCapacity = 512

// Kind tags which variant a Queued entry carries.
type Kind uint8

const (
	KindFill Kind = iota
	KindOut
)

// Queued is one entry in the ring buffer: exactly one of Fill or Out is
// populated, selected by Kind.
type Queued struct {
	Kind Kind
	Fill clob.FillEvent
	Out  clob.OutEvent
}

// Queue is a fixed-capacity ring buffer of Queued events, safe for
// concurrent Push from the matching core and Consume from a background
// pump.
type Queue struct {
	mu     sync.Mutex
	buf    []Queued
	head   int
	count  int
	seqNum uint64
}

// New constructs a Queue with the given capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{buf: make([]Queued, capacity)}
}

// Len reports how many events are currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// PushFill enqueues a maker fill settlement. Returns ErrEventQueueFull if
// the ring buffer has no free slot — the matching core must surface this
// to its caller rather than silently drop a settlement obligation.
func (q *Queue) PushFill(f clob.FillEvent) error {
	return q.push(Queued{Kind: KindFill, Fill: f})
}

// PushOut enqueues an order eviction notice.
func (q *Queue) PushOut(o clob.OutEvent) error {
	return q.push(Queued{Kind: KindOut, Out: o})
}

func (q *Queue) push(item Queued) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.buf) {
		return clob.ErrEventQueueFull
	}
	tail := (q.head + q.count) % len(q.buf)
	q.seqNum++
	q.buf[tail] = item
	q.count++
	return nil
}

// ownerOf returns the account key an entry needs present to be consumed.
func ownerOf(item Queued) clob.AccountKey {
	if item.Kind == KindFill {
		return item.Fill.Maker
	}
	return item.Out.Owner
}

// Consume applies up to limit queued events against the supplied
// accounts map, in FIFO order, stopping at the first event whose owner
// is not present in accounts — per the at-least-once pull-consumer
// contract, the caller is expected to load that account and call Consume
// again rather than have events silently skipped out of order. Returns
// how many entries were applied and removed from the queue.
func Consume(market *clob.Market, accounts map[clob.AccountKey]*clob.OpenOrdersAccount, q *Queue, limit int) (consumed int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for consumed < limit && q.count > 0 {
		idx := q.head
		item := q.buf[idx]
		owner := ownerOf(item)
		acc, ok := accounts[owner]
		if !ok {
			break
		}

		switch item.Kind {
		case KindFill:
			if err := acc.ExecuteMaker(market, &item.Fill); err != nil {
				return consumed, err
			}
		case KindOut:
			if int(item.Out.OwnerSlot) < len(acc.Slots) && acc.Slots[item.Out.OwnerSlot].State == clob.SlotResting {
				if err := acc.RemoveOrder(int(item.Out.OwnerSlot), item.Out.Side, item.Out.Quantity); err != nil {
					return consumed, err
				}
			}
		}

		q.buf[q.head] = Queued{}
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		consumed++
	}

	if consumed > 0 {
		log.Debug().Int("consumed", consumed).Int("remaining", q.count).Msg("consumed events")
	}
	return consumed, nil
}
