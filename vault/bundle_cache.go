package vault

import "container/list"

// BundleCache keeps recently opened bundles in memory during restore,
// bounded by the total decompressed payload bytes held. Backup streams
// tend to reference the same few bundles in long runs, so even a small
// budget avoids most re-opens. Not safe for concurrent use.
type BundleCache struct {
	capacity uint64
	used     uint64
	ll       *list.List
	items    map[uint64]*list.Element
}

func NewBundleCache(capacity uint64) *BundleCache {
	return &BundleCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[uint64]*list.Element),
	}
}

func (c *BundleCache) Get(id uint64) (*BundleReader, bool) {
	el, ok := c.items[id]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*BundleReader), true
}

// Put admits r, evicting least-recently-used bundles until the budget
// holds. The newest bundle always stays, even when it alone exceeds the
// budget, so restore can make progress with any configuration.
func (c *BundleCache) Put(r *BundleReader) {
	if el, ok := c.items[r.ID()]; ok {
		c.ll.MoveToFront(el)
		return
	}
	c.items[r.ID()] = c.ll.PushFront(r)
	c.used += r.Size()
	for c.used > c.capacity && c.ll.Len() > 1 {
		el := c.ll.Back()
		victim := el.Value.(*BundleReader)
		c.ll.Remove(el)
		delete(c.items, victim.ID())
		c.used -= victim.Size()
	}
}

func (c *BundleCache) Len() int {
	return c.ll.Len()
}

func (c *BundleCache) Used() uint64 {
	return c.used
}
