package depth

import "hftbacktest/internal/schema"

// l3Node is one order's slot in the per-level FIFO, intrusive via arena
// indices rather than pointers (§9 "cyclic references" design note: depth
// levels carry ids, not pointers).
type l3Node struct {
	orderID    uint64
	side       schema.Side
	tick       int64
	qty        float64
	prev, next int
}

const l3Nil = -1

// L3Book adds per-order FIFO tracking on top of an L2 MarketDepth, for
// Market-By-Order reconstruction and the exact L3QueueModel.
type L3Book struct {
	*MarketDepth

	nodes    []l3Node
	free     []int
	byOrder  map[uint64]int
	headTick map[int64]int
	tailTick map[int64]int
}

// NewL3 constructs an L3 book over a freshly created L2 depth.
func NewL3(tickSize, lotSize float64, roiLow, roiHigh int64) *L3Book {
	return &L3Book{
		MarketDepth: New(tickSize, lotSize, roiLow, roiHigh),
		byOrder:     make(map[uint64]int),
		headTick:    make(map[int64]int),
		tailTick:    make(map[int64]int),
	}
}

func (b *L3Book) alloc(node l3Node) int {
	if len(b.free) > 0 {
		idx := b.free[len(b.free)-1]
		b.free = b.free[:len(b.free)-1]
		b.nodes[idx] = node
		return idx
	}
	b.nodes = append(b.nodes, node)
	return len(b.nodes) - 1
}

func (b *L3Book) release(idx int) {
	b.free = append(b.free, idx)
}

// AddOrder appends a new resting order to the tail of its price level.
func (b *L3Book) AddOrder(orderID uint64, side schema.Side, tick int64, qty float64) {
	idx := b.alloc(l3Node{orderID: orderID, side: side, tick: tick, qty: qty, prev: l3Nil, next: l3Nil})
	b.byOrder[orderID] = idx
	b.linkToTail(side, tick, idx)
	b.ApplyDepth(side, tick, b.QtyAtTick(side, tick)+qty)
}

func (b *L3Book) linkToTail(side schema.Side, tick int64, idx int) {
	key := l3Key(side, tick)
	if tail, ok := b.tailTick[key]; ok {
		b.nodes[tail].next = idx
		b.nodes[idx].prev = tail
	} else {
		b.headTick[key] = idx
	}
	b.tailTick[key] = idx
}

func (b *L3Book) unlink(idx int) {
	n := b.nodes[idx]
	key := l3Key(n.side, n.tick)
	if n.prev != l3Nil {
		b.nodes[n.prev].next = n.next
	} else {
		if n.next != l3Nil {
			b.headTick[key] = n.next
		} else {
			delete(b.headTick, key)
		}
	}
	if n.next != l3Nil {
		b.nodes[n.next].prev = n.prev
	} else {
		if n.prev != l3Nil {
			b.tailTick[key] = n.prev
		} else {
			delete(b.tailTick, key)
		}
	}
}

// ModifyOrder updates a resting order's price and/or quantity. A price
// change, or a quantity increase at the same price, loses queue priority
// and re-links to the tail of the (new) level; a quantity decrease at the
// same price preserves position (§4.B).
func (b *L3Book) ModifyOrder(orderID uint64, newTick int64, newQty float64) bool {
	idx, ok := b.byOrder[orderID]
	if !ok {
		return false
	}
	n := b.nodes[idx]
	prevQty := b.QtyAtTick(n.side, n.tick)
	b.ApplyDepth(n.side, n.tick, prevQty-n.qty)

	lostPriority := newTick != n.tick || newQty > n.qty
	if lostPriority {
		b.unlink(idx)
		b.nodes[idx].tick = newTick
		b.nodes[idx].qty = newQty
		b.nodes[idx].prev = l3Nil
		b.nodes[idx].next = l3Nil
		b.linkToTail(n.side, newTick, idx)
	} else {
		b.nodes[idx].qty = newQty
	}

	newLevelQty := b.QtyAtTick(n.side, newTick)
	b.ApplyDepth(n.side, newTick, newLevelQty+newQty)
	return true
}

// CancelOrder unlinks a resting order and removes its quantity from the
// aggregated level.
func (b *L3Book) CancelOrder(orderID uint64) bool {
	idx, ok := b.byOrder[orderID]
	if !ok {
		return false
	}
	n := b.nodes[idx]
	b.unlink(idx)
	delete(b.byOrder, orderID)
	b.release(idx)
	b.ApplyDepth(n.side, n.tick, b.QtyAtTick(n.side, n.tick)-n.qty)
	return true
}

// FillOrder consumes qty from the head of the level's FIFO, spilling into
// subsequent orders if the head's quantity is smaller than qty. Returns
// the per-order (orderID, filledQty) pairs consumed, head first.
func (b *L3Book) FillOrder(side schema.Side, tick int64, qty float64) []FilledSlice {
	var fills []FilledSlice
	key := l3Key(side, tick)
	for qty > 0 {
		idx, ok := b.headTick[key]
		if !ok {
			break
		}
		n := &b.nodes[idx]
		orderID := n.orderID
		take := n.qty
		if take > qty {
			take = qty
		}
		fills = append(fills, FilledSlice{OrderID: orderID, Qty: take})
		qty -= take
		n.qty -= take
		b.ApplyDepth(side, tick, b.QtyAtTick(side, tick)-take)
		if n.qty <= 0 {
			// Exhausted: remove directly rather than via CancelOrder, which
			// would re-subtract the node's (now zeroed) qty from the level.
			b.unlink(idx)
			delete(b.byOrder, orderID)
			b.release(idx)
		}
	}
	return fills
}

// FilledSlice is one order's consumed quantity from a FillOrder call.
type FilledSlice struct {
	OrderID uint64
	Qty     float64
}

// QueuePosition returns the summed quantity of orders strictly ahead of
// orderID at its level — the exact L3 queue position.
func (b *L3Book) QueuePosition(orderID uint64) (float64, bool) {
	idx, ok := b.byOrder[orderID]
	if !ok {
		return 0, false
	}
	n := b.nodes[idx]
	var ahead float64
	cur := n.prev
	for cur != l3Nil {
		ahead += b.nodes[cur].qty
		cur = b.nodes[cur].prev
	}
	return ahead, true
}

func l3Key(side schema.Side, tick int64) int64 {
	if side == schema.Buy {
		return tick<<1 | 1
	}
	return tick << 1
}
