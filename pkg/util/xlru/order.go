package xlru

import "sync"

// nilIndex 表示链表空指针
const nilIndex int32 = -1

type node[K comparable] struct {
	key  K
	prev int32
	next int32
}

// Order 访问顺序表。头部为最久未使用（LRU），尾部为最近使用（MRU）。
// 零值不可用，必须通过 [NewOrder] 创建。
type Order[K comparable] struct {
	mu    sync.Mutex
	nodes []node[K]
	index map[K]int32
	free  []int32
	head  int32
	tail  int32
}

// NewOrder 创建访问顺序表，capacityHint 仅用于预分配。
func NewOrder[K comparable](capacityHint int) *Order[K] {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &Order[K]{
		nodes: make([]node[K], 0, capacityHint),
		index: make(map[K]int32, capacityHint),
		head:  nilIndex,
		tail:  nilIndex,
	}
}

// Touch 记录一次访问：已存在则移动到尾部，否则追加到尾部。
func (o *Order[K]) Touch(key K) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if idx, ok := o.index[key]; ok {
		if idx != o.tail {
			o.unlink(idx)
			o.linkTail(idx)
		}
		return
	}
	idx := o.alloc(key)
	o.index[key] = idx
	o.linkTail(idx)
}

// Remove 移除键，返回键是否存在。不存在时为空操作。
func (o *Order[K]) Remove(key K) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	idx, ok := o.index[key]
	if !ok {
		return false
	}
	o.unlink(idx)
	delete(o.index, key)
	var zero K
	o.nodes[idx].key = zero
	o.free = append(o.free, idx)
	return true
}

// Oldest 返回最久未使用的键，顺序表为空时返回 false。
func (o *Order[K]) Oldest() (K, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.head == nilIndex {
		var zero K
		return zero, false
	}
	return o.nodes[o.head].key, true
}

// Contains 判断键是否被跟踪，不影响顺序。
func (o *Order[K]) Contains(key K) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.index[key]
	return ok
}

// Len 返回被跟踪的键数量。
func (o *Order[K]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.index)
}

// Keys 按从旧到新的顺序返回全部键的快照。
func (o *Order[K]) Keys() []K {
	o.mu.Lock()
	defer o.mu.Unlock()

	keys := make([]K, 0, len(o.index))
	for i := o.head; i != nilIndex; i = o.nodes[i].next {
		keys = append(keys, o.nodes[i].key)
	}
	return keys
}

// Reset 清空顺序表并释放 arena。
func (o *Order[K]) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nodes = o.nodes[:0]
	clear(o.index)
	o.free = o.free[:0]
	o.head = nilIndex
	o.tail = nilIndex
}

// alloc 优先复用空闲槽位
func (o *Order[K]) alloc(key K) int32 {
	if n := len(o.free); n > 0 {
		idx := o.free[n-1]
		o.free = o.free[:n-1]
		o.nodes[idx] = node[K]{key: key, prev: nilIndex, next: nilIndex}
		return idx
	}
	o.nodes = append(o.nodes, node[K]{key: key, prev: nilIndex, next: nilIndex})
	return int32(len(o.nodes) - 1)
}

func (o *Order[K]) unlink(idx int32) {
	n := &o.nodes[idx]
	if n.prev != nilIndex {
		o.nodes[n.prev].next = n.next
	} else {
		o.head = n.next
	}
	if n.next != nilIndex {
		o.nodes[n.next].prev = n.prev
	} else {
		o.tail = n.prev
	}
	n.prev, n.next = nilIndex, nilIndex
}

func (o *Order[K]) linkTail(idx int32) {
	n := &o.nodes[idx]
	n.prev = o.tail
	n.next = nilIndex
	if o.tail != nilIndex {
		o.nodes[o.tail].next = idx
	} else {
		o.head = idx
	}
	o.tail = idx
}
