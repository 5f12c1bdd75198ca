package clob

// BookSide aggregates the two co-resident order trees for one side of the
// book (Fixed and OraclePegged) and exposes a merged best-price iterator
// that reconciles them under the current oracle price. Keeping fixed and
// pegged orders in separate homogeneous trees means the oracle-reprice
// logic — and the peg-limit culling it requires — only has to be handled
// in one place: here, in PeekBest. Neither OrderTree needs to branch on
// whether a leaf is pegged during balancing.
type BookSide struct {
	side   Side
	fixed  *OrderTree
	pegged *OrderTree
}

func newBookSide(side Side) *BookSide {
	return &BookSide{
		side:   side,
		fixed:  newOrderTree(side, TreeFixed),
		pegged: newOrderTree(side, TreeOraclePegged),
	}
}

// Side returns which side of the book this is.
func (bs *BookSide) Side() Side { return bs.side }

// Tree returns the underlying OrderTree for the requested kind.
func (bs *BookSide) Tree(kind OrderTreeKind) *OrderTree {
	if kind == TreeFixed {
		return bs.fixed
	}
	return bs.pegged
}

// Evicted describes a leaf that left the book without a fill, during a
// PeekBest walk: either it expired, or its pegged price drifted past its
// own peg limit.
type Evicted struct {
	Leaf   *LeafNode
	Kind   OrderTreeKind
	Reason string // "expired" or "peg_limit"
}

// PeekBest returns the best (highest-priority) matchable leaf across both
// trees without removing it, culling any leaves along the way that can
// never match again: expired leaves (time_in_force elapsed) and
// oracle-pegged leaves whose drifted price has crossed their own peg
// limit. Evicted entries are returned, each with its reason, so the
// caller can emit an OutEvent for every leaf that left the book.
func (bs *BookSide) PeekBest(oraclePriceLots int64, now uint64) (best *LeafNode, kind OrderTreeKind, evicted []Evicted) {
	for {
		fixedLeaf, hasFixed := bs.fixed.PeekBest()
		if hasFixed && fixedLeaf.Expired(now) {
			bs.fixed.Remove(fixedLeaf.Key)
			evicted = append(evicted, Evicted{Leaf: fixedLeaf, Kind: TreeFixed, Reason: "expired"})
			continue
		}

		peggedLeaf, hasPegged := bs.pegged.PeekBest()
		if hasPegged {
			if peggedLeaf.Expired(now) {
				bs.pegged.Remove(peggedLeaf.Key)
				evicted = append(evicted, Evicted{Leaf: peggedLeaf, Kind: TreeOraclePegged, Reason: "expired"})
				continue
			}
			if _, matchable := peggedLeaf.effectivePrice(bs.side, oraclePriceLots); !matchable {
				bs.pegged.Remove(peggedLeaf.Key)
				evicted = append(evicted, Evicted{Leaf: peggedLeaf, Kind: TreeOraclePegged, Reason: "peg_limit"})
				continue
			}
		}

		switch {
		case hasFixed && hasPegged:
			peggedEff, _ := peggedLeaf.effectivePrice(bs.side, oraclePriceLots)
			if bs.fixedBeatsEffective(fixedLeaf.Key.PriceLots, fixedLeaf.Key.Seq, peggedEff, peggedLeaf.Key.Seq) {
				return fixedLeaf, TreeFixed, evicted
			}
			return peggedLeaf, TreeOraclePegged, evicted
		case hasFixed:
			return fixedLeaf, TreeFixed, evicted
		case hasPegged:
			return peggedLeaf, TreeOraclePegged, evicted
		default:
			return nil, 0, evicted
		}
	}
}

// fixedBeatsEffective decides precedence between a fixed leaf and a
// pegged leaf's effective price, on this side of the book: better price
// first, tie broken by sequence number (earlier arrival wins).
func (bs *BookSide) fixedBeatsEffective(fixedPrice int64, fixedSeq uint64, peggedEff int64, peggedSeq uint64) bool {
	if fixedPrice != peggedEff {
		if bs.side == Bid {
			return fixedPrice > peggedEff
		}
		return fixedPrice < peggedEff
	}
	return fixedSeq < peggedSeq
}

// Remove deletes a leaf from the given tree by id.
func (bs *BookSide) Remove(kind OrderTreeKind, id OrderID) (*LeafNode, bool) {
	return bs.Tree(kind).Remove(id)
}

// Insert adds a leaf to the given tree, evicting the worst-priced leaf on
// that tree first if it is at capacity.
func (bs *BookSide) Insert(kind OrderTreeKind, leaf *LeafNode) (evicted *LeafNode, err error) {
	return bs.Tree(kind).Insert(leaf)
}

// Len returns the combined resting-leaf count across both trees.
func (bs *BookSide) Len() int {
	return bs.fixed.Len() + bs.pegged.Len()
}
