package clob

import (
	"github.com/tidwall/btree"
)

// OrderTreeCapacity bounds a single OrderTree the way a compile-time array
// capacity would on a fixed-memory program; insertion past this bound
// triggers queue-tail eviction of the worst-priced resting leaf (§5).
const OrderTreeCapacity = 4096

// OrderTree is a price-ordered container of resting leaves, keyed by the
// 128-bit order id so that price-time priority falls out of key
// comparison alone. It is backed by github.com/tidwall/btree, the
// self-balancing container the teacher already reaches for to keep price
// levels ordered; here it is keyed by the full order id rather than by a
// float64 price so ties resolve by sequence number without a second pass.
//
// Both Bid and Ask trees use the same underlying type; only the
// comparator differs, supplied at construction. "Best" is always the
// btree's Min() under that comparator — for bids the comparator sorts
// descending by price so Min() is the highest bid; for asks it sorts
// ascending so Min() is the lowest ask.
type OrderTree struct {
	side OrderTreeKind // Fixed or OraclePegged, for diagnostics only
	less func(a, b *LeafNode) bool
	tr   *btree.BTreeG[*LeafNode]
}

func newOrderTree(side Side, kind OrderTreeKind) *OrderTree {
	var less func(a, b *LeafNode) bool
	if side == Bid {
		less = func(a, b *LeafNode) bool { return bidLess(a.Key, b.Key) }
	} else {
		less = func(a, b *LeafNode) bool { return askLess(a.Key, b.Key) }
	}
	return &OrderTree{
		side: kind,
		less: less,
		tr:   btree.NewBTreeG(less),
	}
}

// Len reports how many leaves currently rest in this tree. This doubles
// as the "second root" diagnostic called out in the component design
// (e.g. the oracle-pegged leaf count for a side) since Fixed and
// OraclePegged are tracked as entirely separate OrderTree instances
// rather than partitions of one tree.
func (t *OrderTree) Len() int { return t.tr.Len() }

// Insert adds a leaf, evicting the worst-priced leaf first if the tree is
// at capacity. Returns ErrOrderWouldSelfEvict if the incoming leaf is
// itself the worst-priced entry once the tree is full (inserting it would
// just evict itself).
func (t *OrderTree) Insert(leaf *LeafNode) (evicted *LeafNode, err error) {
	if t.tr.Len() >= OrderTreeCapacity {
		worst, ok := t.tr.Max()
		if ok {
			// The incoming leaf would itself be the worst entry: reject
			// rather than silently evicting it right back out.
			if t.less(worst, leaf) && !t.less(leaf, worst) {
				return nil, ErrOrderWouldSelfEvict
			}
			t.tr.Delete(worst)
			evicted = worst
		}
	}
	t.tr.Set(leaf)
	return evicted, nil
}

// Remove deletes the leaf with the given id, if present.
func (t *OrderTree) Remove(id OrderID) (*LeafNode, bool) {
	return t.tr.Delete(&LeafNode{Key: id})
}

// PeekBest returns the best (highest-priority) leaf without removing it.
// Mutating the returned pointer's Quantity is safe in place since
// Quantity does not participate in ordering.
func (t *OrderTree) PeekBest() (*LeafNode, bool) {
	return t.tr.Min()
}

// Find looks up a leaf by id without removing it.
func (t *OrderTree) Find(id OrderID) (*LeafNode, bool) {
	return t.tr.Get(&LeafNode{Key: id})
}

// Items returns all leaves in best-first order. Intended for diagnostics
// and tests, not the matching hot path.
func (t *OrderTree) Items() []*LeafNode {
	out := make([]*LeafNode, 0, t.tr.Len())
	t.tr.Scan(func(item *LeafNode) bool {
		out = append(out, item)
		return true
	})
	return out
}
