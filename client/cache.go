package client

import "container/list"

// cacheRange is an inclusive byte range, used as a cache block's key.
type cacheRange struct {
	start uint64
	end   uint64
}

func (r cacheRange) overlaps(other cacheRange) bool {
	return r.start <= other.end && other.start <= r.end
}

type blockKey struct {
	filename string
	cacheRange
}

// dataCache is the bounded, file-aware, byte-range LRU cache of §4.4: a
// global LRU across every (filename, range) block, with partial-range
// invalidation on revoke so that a client never serves bytes it no
// longer holds a token for. MRU ordering via container/list plus a map
// for O(1) touch/evict, in place of the std::list+std::map pairing
// this cache's byte-range semantics were modeled on.
type dataCache struct {
	cap int

	blocks map[blockKey][]byte
	// lru orders blocks from most- to least-recently used; each element
	// stores a blockKey so the tail can be evicted in O(1).
	lru      *list.List
	elements map[blockKey]*list.Element

	// onEvict, when set, is called once per LRU eviction (not per close
	// or invalidation), so execstat can count it separately.
	onEvict func(filename string)
}

func newDataCache(capBlocks int) *dataCache {
	return &dataCache{
		cap:      capBlocks,
		blocks:   make(map[blockKey][]byte),
		lru:      list.New(),
		elements: make(map[blockKey]*list.Element),
	}
}

// Read walks this file's blocks in ascending start order, copying every
// overlap with [start,end] into the returned payload and advancing a
// cursor. It returns ok=false (a cache miss) unless the cursor reaches
// past end, i.e. the whole range was covered.
func (c *dataCache) Read(filename string, start, end uint64) (data []byte, ok bool) {
	keys := c.sortedKeys(filename)

	cursor := start
	for _, k := range keys {
		if cursor > end {
			break
		}
		if k.end < cursor {
			// this block ends before the cursor; it can't help.
			continue
		}
		if k.start > cursor {
			// gap between the cursor and the next block: a miss.
			break
		}
		block := c.blocks[blockKey{filename, k}]
		copyEnd := min64(end, k.end)
		data = append(data, block[cursor-k.start:copyEnd-k.start+1]...)
		c.touch(blockKey{filename, k})
		cursor = copyEnd + 1
	}
	return data, cursor > end
}

// Update inserts [start,end] as a single new block holding data, evicting
// global LRU victims first until there is room under the cap. Per §4.4
// blocks in one file never overlap, so any pre-existing block that
// overlaps [start,end] is split/dropped first: the fetch that produced
// data is authoritative for every byte in [start,end], but a block
// extending past either edge still holds valid, token-covered bytes
// outside the new range and is kept as a trimmed remainder rather than
// discarded outright.
func (c *dataCache) Update(filename string, start, end uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	c.splitOverlap(filename, cacheRange{start, end})

	key := blockKey{filename, cacheRange{start, end}}
	if _, exists := c.blocks[key]; !exists {
		for len(c.blocks) >= c.cap && c.evictOne() {
		}
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	c.blocks[key] = stored
	c.touch(key)
}

// Invalidate drops every block of filename overlapping revokedRange,
// re-inserting up to two split blocks for the parts disjoint from it.
// Split blocks inherit the MRU position of the block they were split
// from, matching the original's "the new entries take over the old
// list position" behavior.
func (c *dataCache) Invalidate(filename string, revokedRange cacheRange) {
	c.splitOverlap(filename, revokedRange)
	// a block split in two can push the total past the cap.
	for len(c.blocks) > c.cap && c.evictOne() {
	}
}

// splitOverlap removes every block of filename overlapping victim,
// re-inserting up to two split blocks for the parts disjoint from it.
// Used both by Invalidate (the victim is the revoked range) and by
// Update (the victim is the range about to be replaced by a fresh
// fetch), so neither path can leave two blocks of the same file
// covering the same byte.
func (c *dataCache) splitOverlap(filename string, victim cacheRange) {
	for _, r := range c.sortedKeys(filename) {
		if !r.overlaps(victim) {
			continue
		}
		key := blockKey{filename, r}
		block := c.blocks[key]
		elem := c.elements[key]

		if r.start < victim.start {
			newEnd := victim.start - 1
			left := blockKey{filename, cacheRange{r.start, newEnd}}
			c.blocks[left] = block[:newEnd-r.start+1]
			c.elements[left] = c.lru.InsertBefore(left, elem)
		}
		if r.end > victim.end {
			newStart := victim.end + 1
			right := blockKey{filename, cacheRange{newStart, r.end}}
			c.blocks[right] = block[newStart-r.start:]
			c.elements[right] = c.lru.InsertBefore(right, elem)
		}
		c.remove(key)
	}
}

// Close drops every cached block for filename.
func (c *dataCache) Close(filename string) (evicted int) {
	for _, r := range c.sortedKeys(filename) {
		c.remove(blockKey{filename, r})
		evicted++
	}
	return evicted
}

// Len returns the total number of cached blocks across all files.
func (c *dataCache) Len() int {
	return len(c.blocks)
}

func (c *dataCache) touch(key blockKey) {
	if elem, ok := c.elements[key]; ok {
		c.lru.MoveToFront(elem)
		return
	}
	c.elements[key] = c.lru.PushFront(key)
}

func (c *dataCache) remove(key blockKey) {
	if elem, ok := c.elements[key]; ok {
		c.lru.Remove(elem)
		delete(c.elements, key)
	}
	delete(c.blocks, key)
}

// evictOne drops the globally least-recently-used block and reports
// whether one was found. The onEvict hook (if set) is invoked
// so execstat can count it.
func (c *dataCache) evictOne() bool {
	elem := c.lru.Back()
	if elem == nil {
		return false
	}
	key := elem.Value.(blockKey)
	c.remove(key)
	if c.onEvict != nil {
		c.onEvict(key.filename)
	}
	return true
}

func (c *dataCache) sortedKeys(filename string) []cacheRange {
	var ranges []cacheRange
	for k := range c.blocks {
		if k.filename == filename {
			ranges = append(ranges, k.cacheRange)
		}
	}
	insertionSortRanges(ranges)
	return ranges
}

func insertionSortRanges(ranges []cacheRange) {
	for i := 1; i < len(ranges); i++ {
		for j := i; j > 0 && ranges[j-1].start > ranges[j].start; j-- {
			ranges[j-1], ranges[j] = ranges[j], ranges[j-1]
		}
	}
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
