// Package linkedchunk implements a segmented, positionally stable container
// of items interleaved with gap markers, plus a differential-update log of
// every structural mutation applied to it.
//
// Chunks are held in an arena (a map keyed by ChunkIdentifier) with
// prev/next identifier links, rather than as graph nodes with raw pointers
// to one another: this keeps ChunkIdentifier trivially copyable and avoids
// lifetime entanglement between chunks (see the package's design notes).
package linkedchunk

import "golang.org/x/exp/slices"

// DefaultChunkCapacity is a reasonable default for the number of items held
// per items-chunk, mirroring the upstream protocol client's own default.
const DefaultChunkCapacity = 128

// LinkedChunk is a segmented ordered container of items, grouped into
// fixed-capacity chunks, separated where needed by gap chunks.
//
// LinkedChunk is generic over the item and gap payload types; it has no
// knowledge of any particular protocol. See the roomevents package for a
// domain-specific instantiation.
type LinkedChunk[Item, Gap any] struct {
	capacity int
	arena    map[ChunkIdentifier]*chunk[Item, Gap]

	firstID, lastID  ChunkIdentifier
	hasFirst, hasLast bool

	nextID ChunkIdentifier

	trackUpdates bool
	updates      []Update[Item, Gap]
}

// New constructs an empty LinkedChunk with the given per-chunk capacity and
// no update history: TakeUpdates returns nil and AsVector fails.
func New[Item, Gap any](capacity int) *LinkedChunk[Item, Gap] {
	return newLinkedChunk[Item, Gap](capacity, false)
}

// NewWithUpdateHistory constructs an empty LinkedChunk that records every
// structural mutation to a raw update log, consumable via TakeUpdates or
// projected through AsVector.
func NewWithUpdateHistory[Item, Gap any](capacity int) *LinkedChunk[Item, Gap] {
	return newLinkedChunk[Item, Gap](capacity, true)
}

func newLinkedChunk[Item, Gap any](capacity int, trackUpdates bool) *LinkedChunk[Item, Gap] {
	lc := &LinkedChunk[Item, Gap]{
		capacity:     capacity,
		arena:        make(map[ChunkIdentifier]*chunk[Item, Gap]),
		trackUpdates: trackUpdates,
	}
	id := lc.allocateID()
	c := newItemsChunk[Item, Gap](id, capacity)
	lc.arena[id] = c
	lc.firstID, lc.hasFirst = id, true
	lc.lastID, lc.hasLast = id, true
	return lc
}

// Capacity returns the configured per-chunk item capacity.
func (lc *LinkedChunk[Item, Gap]) Capacity() int { return lc.capacity }

// HasUpdateHistory reports whether this container was built with
// NewWithUpdateHistory.
func (lc *LinkedChunk[Item, Gap]) HasUpdateHistory() bool { return lc.trackUpdates }

// NumItems returns the total number of items across all items-chunks.
func (lc *LinkedChunk[Item, Gap]) NumItems() int {
	n := 0
	for _, c := range lc.arena {
		if !c.isGap {
			n += len(c.items)
		}
	}
	return n
}

// NumChunks returns the total number of chunks (items and gap alike).
func (lc *LinkedChunk[Item, Gap]) NumChunks() int { return len(lc.arena) }

// Stats summarizes the structural shape of a LinkedChunk for diagnostics:
// total chunk count, item count, and gap count.
type Stats struct {
	ChunkCount int
	ItemCount  int
	GapCount   int
}

// Stats computes chunk/item/gap counts in a single pass over the arena.
func (lc *LinkedChunk[Item, Gap]) Stats() Stats {
	var s Stats
	for _, c := range lc.arena {
		s.ChunkCount++
		if c.isGap {
			s.GapCount++
		} else {
			s.ItemCount += len(c.items)
		}
	}
	return s
}

func (lc *LinkedChunk[Item, Gap]) allocateID() ChunkIdentifier {
	id := lc.nextID
	lc.nextID++
	return id
}

func (lc *LinkedChunk[Item, Gap]) emit(u Update[Item, Gap]) {
	if lc.trackUpdates {
		lc.updates = append(lc.updates, u)
	}
}

// TakeUpdates drains and returns every raw Update recorded since the last
// call, in issue order. It returns nil if update history is disabled.
func (lc *LinkedChunk[Item, Gap]) TakeUpdates() []Update[Item, Gap] {
	if !lc.trackUpdates {
		return nil
	}
	out := lc.updates
	lc.updates = nil
	return out
}

// linkAfter inserts c into the chain immediately after the chunk identified
// by (afterID, hasAfter); hasAfter == false means c becomes the new first
// chunk.
func (lc *LinkedChunk[Item, Gap]) linkAfter(c *chunk[Item, Gap], afterID ChunkIdentifier, hasAfter bool) {
	lc.arena[c.id] = c

	if !hasAfter {
		if lc.hasFirst {
			old := lc.arena[lc.firstID]
			old.hasPrev, old.prev = true, c.id
			c.hasNext, c.next = true, lc.firstID
		}
		lc.firstID, lc.hasFirst = c.id, true
		if !lc.hasLast {
			lc.lastID, lc.hasLast = c.id, true
		}
		return
	}

	after := lc.arena[afterID]
	c.hasPrev, c.prev = true, afterID
	if after.hasNext {
		nextID := after.next
		next := lc.arena[nextID]
		c.hasNext, c.next = true, nextID
		next.hasPrev, next.prev = true, c.id
	} else {
		lc.lastID, lc.hasLast = c.id, true
	}
	after.hasNext, after.next = true, c.id
}

// unlink removes id from the chain and the arena. It does not validate
// structural invariants; callers must do so before calling unlink.
func (lc *LinkedChunk[Item, Gap]) unlink(id ChunkIdentifier) {
	c := lc.arena[id]
	hasPrev, prevID := c.hasPrev, c.prev
	hasNext, nextID := c.hasNext, c.next

	if hasPrev {
		prev := lc.arena[prevID]
		prev.hasNext, prev.next = hasNext, nextID
	} else {
		lc.hasFirst, lc.firstID = hasNext, nextID
	}

	if hasNext {
		next := lc.arena[nextID]
		next.hasPrev, next.prev = hasPrev, prevID
	} else {
		lc.hasLast, lc.lastID = hasPrev, prevID
	}

	delete(lc.arena, id)
}

// PushItemsBack appends items after the last chunk. If the last chunk is an
// items-chunk with free capacity, it is filled first; overflow spills into
// newly created items-chunks chained after it. If the last chunk is a gap,
// a new items-chunk is created after it. An empty items is a no-op.
func (lc *LinkedChunk[Item, Gap]) PushItemsBack(items []Item) {
	if len(items) == 0 {
		return
	}

	remaining := items
	last := lc.arena[lc.lastID]
	if !last.isGap {
		free := lc.capacity - len(last.items)
		if free > 0 {
			n := free
			if n > len(remaining) {
				n = len(remaining)
			}
			at := Position{Chunk: last.id, Index: len(last.items)}
			chunkItems := remaining[:n]
			last.items = append(last.items, chunkItems...)
			lc.emit(Update[Item, Gap]{Kind: KindPushItems, At: at, Items: cloneSlice(chunkItems)})
			remaining = remaining[n:]
		}
	}

	afterID, hasAfter := lc.lastID, lc.hasLast
	for len(remaining) > 0 {
		newID := lc.allocateID()
		nc := newItemsChunk[Item, Gap](newID, lc.capacity)
		lc.linkAfter(nc, afterID, hasAfter)
		lc.emit(Update[Item, Gap]{Kind: KindNewItemsChunk, ID: newID, After: afterID, HasAfter: hasAfter})

		n := lc.capacity
		if n <= 0 || n > len(remaining) {
			n = len(remaining)
		}
		chunkItems := remaining[:n]
		nc.items = append(nc.items, chunkItems...)
		lc.emit(Update[Item, Gap]{Kind: KindPushItems, At: Position{Chunk: newID, Index: 0}, Items: cloneSlice(chunkItems)})

		remaining = remaining[n:]
		afterID, hasAfter = newID, true
	}
}

// PushGapBack appends a gap chunk at the end. It fails with
// ErrInvalidOperation if the last chunk is already a gap.
func (lc *LinkedChunk[Item, Gap]) PushGapBack(gap Gap) error {
	last := lc.arena[lc.lastID]
	if last.isGap {
		return invalidOperationf("cannot push a gap after another gap")
	}

	newID := lc.allocateID()
	nc := newGapChunk[Item, Gap](newID, gap)
	afterID, hasAfter := lc.lastID, lc.hasLast
	lc.linkAfter(nc, afterID, hasAfter)
	lc.emit(Update[Item, Gap]{Kind: KindNewGapChunk, ID: newID, After: afterID, HasAfter: hasAfter, GapMarker: gap})
	return nil
}

// InsertItemsAt inserts items immediately before position. If
// position.Index equals the length of the addressed chunk, this appends
// within that chunk. Overflow past capacity splits the chunk, carrying the
// original trailing items into a new chunk chained after it.
func (lc *LinkedChunk[Item, Gap]) InsertItemsAt(items []Item, position Position) error {
	c, ok := lc.arena[position.Chunk]
	if !ok {
		return chunkNotFoundf(position.Chunk)
	}
	if c.isGap {
		return notAnItemsChunkf(position.Chunk)
	}
	if position.Index < 0 || position.Index > len(c.items) {
		return invalidPositionf(position, "index out of range")
	}
	if len(items) == 0 {
		return nil
	}

	prefixLen := position.Index
	tail := cloneSlice(c.items[prefixLen:])

	if prefixLen+len(items)+len(tail) <= lc.capacity {
		// Fits entirely within the same chunk: no structural split.
		c.items = slices.Insert(c.items, position.Index, items...)
		lc.emit(Update[Item, Gap]{Kind: KindPushItems, At: position, Items: cloneSlice(items)})
		return nil
	}

	// Overflow: keep as many new items as fit after the prefix, then carry
	// the whole original tail (plus any new items that didn't fit) into
	// new chunk(s) chained after c.
	freeForNew := lc.capacity - prefixLen
	if freeForNew < 0 {
		freeForNew = 0
	}
	keepNew, overflowNew := items, []Item(nil)
	if len(items) > freeForNew {
		keepNew, overflowNew = items[:freeForNew], items[freeForNew:]
	}

	if len(tail) > 0 {
		lc.emit(Update[Item, Gap]{Kind: KindStartReattachItems})
		lc.emit(Update[Item, Gap]{Kind: KindDetachLastItems, At: position})
	}

	c.items = append(c.items[:prefixLen:prefixLen], keepNew...)
	if len(keepNew) > 0 {
		lc.emit(Update[Item, Gap]{Kind: KindPushItems, At: position, Items: cloneSlice(keepNew)})
	}

	overflow := append(cloneSlice(overflowNew), tail...)
	afterID := c.id
	for len(overflow) > 0 {
		newID := lc.allocateID()
		nc := newItemsChunk[Item, Gap](newID, lc.capacity)
		lc.linkAfter(nc, afterID, true)
		lc.emit(Update[Item, Gap]{Kind: KindNewItemsChunk, ID: newID, After: afterID, HasAfter: true})

		n := lc.capacity
		if n <= 0 || n > len(overflow) {
			n = len(overflow)
		}
		chunkItems := overflow[:n]
		nc.items = append(nc.items, chunkItems...)
		lc.emit(Update[Item, Gap]{Kind: KindPushItems, At: Position{Chunk: newID, Index: 0}, Items: cloneSlice(chunkItems)})

		overflow = overflow[n:]
		afterID = newID
	}

	if len(tail) > 0 {
		lc.emit(Update[Item, Gap]{Kind: KindEndReattachItems})
	}
	return nil
}

// InsertGapAt splits the containing items-chunk at position and places a
// new gap chunk between the two halves. It fails with ErrInvalidOperation
// if position.Index == 0 and the previous chunk is already a gap, or if
// position.Index is the end of the chunk and the next chunk is already a
// gap.
func (lc *LinkedChunk[Item, Gap]) InsertGapAt(gap Gap, position Position) error {
	c, ok := lc.arena[position.Chunk]
	if !ok {
		return chunkNotFoundf(position.Chunk)
	}
	if c.isGap {
		return notAnItemsChunkf(position.Chunk)
	}
	if position.Index < 0 || position.Index > len(c.items) {
		return invalidPositionf(position, "index out of range")
	}
	if position.Index == 0 && c.hasPrev && lc.arena[c.prev].isGap {
		return invalidOperationf("cannot insert a gap adjacent to another gap")
	}
	if position.Index == len(c.items) && c.hasNext && lc.arena[c.next].isGap {
		return invalidOperationf("cannot insert a gap adjacent to another gap")
	}

	tail := cloneSlice(c.items[position.Index:])
	c.items = c.items[:position.Index:position.Index]

	if len(tail) > 0 {
		lc.emit(Update[Item, Gap]{Kind: KindStartReattachItems})
		lc.emit(Update[Item, Gap]{Kind: KindDetachLastItems, At: position})
	}

	gapID := lc.allocateID()
	gc := newGapChunk[Item, Gap](gapID, gap)
	lc.linkAfter(gc, c.id, true)
	lc.emit(Update[Item, Gap]{Kind: KindNewGapChunk, ID: gapID, After: c.id, HasAfter: true, GapMarker: gap})

	if len(tail) > 0 {
		afterID := gapID
		overflow := tail
		for len(overflow) > 0 {
			newID := lc.allocateID()
			nc := newItemsChunk[Item, Gap](newID, lc.capacity)
			lc.linkAfter(nc, afterID, true)
			lc.emit(Update[Item, Gap]{Kind: KindNewItemsChunk, ID: newID, After: afterID, HasAfter: true})

			n := lc.capacity
			if n <= 0 || n > len(overflow) {
				n = len(overflow)
			}
			chunkItems := overflow[:n]
			nc.items = append(nc.items, chunkItems...)
			lc.emit(Update[Item, Gap]{Kind: KindPushItems, At: Position{Chunk: newID, Index: 0}, Items: cloneSlice(chunkItems)})

			overflow = overflow[n:]
			afterID = newID
		}
		lc.emit(Update[Item, Gap]{Kind: KindEndReattachItems})
	}
	return nil
}

// RemoveGapAt deletes the named gap chunk, returning the position of the
// first item in the next chunk, or nil if the gap was last.
func (lc *LinkedChunk[Item, Gap]) RemoveGapAt(id ChunkIdentifier) (*Position, error) {
	c, ok := lc.arena[id]
	if !ok {
		return nil, chunkNotFoundf(id)
	}
	if !c.isGap {
		return nil, notAGapf(id)
	}

	hasNext, nextID := c.hasNext, c.next
	lc.unlink(id)
	lc.emit(Update[Item, Gap]{Kind: KindRemoveChunk, ID: id})

	if !hasNext {
		return nil, nil
	}
	pos := Position{Chunk: nextID, Index: 0}
	return &pos, nil
}

// ReplaceGapAt substitutes the gap chunk identified by gapID with one or
// more new items-chunks containing items. If items is empty, this behaves
// as RemoveGapAt. Returns the position of the first inserted item.
func (lc *LinkedChunk[Item, Gap]) ReplaceGapAt(items []Item, gapID ChunkIdentifier) (*Position, error) {
	if len(items) == 0 {
		return lc.RemoveGapAt(gapID)
	}

	c, ok := lc.arena[gapID]
	if !ok {
		return nil, chunkNotFoundf(gapID)
	}
	if !c.isGap {
		return nil, notAGapf(gapID)
	}

	afterID, hasAfter := c.prev, c.hasPrev
	lc.unlink(gapID)
	lc.emit(Update[Item, Gap]{Kind: KindRemoveChunk, ID: gapID})

	var firstNewID ChunkIdentifier
	first := true
	remaining := items
	for len(remaining) > 0 {
		newID := lc.allocateID()
		nc := newItemsChunk[Item, Gap](newID, lc.capacity)
		lc.linkAfter(nc, afterID, hasAfter)
		lc.emit(Update[Item, Gap]{Kind: KindNewItemsChunk, ID: newID, After: afterID, HasAfter: hasAfter})

		n := lc.capacity
		if n <= 0 || n > len(remaining) {
			n = len(remaining)
		}
		chunkItems := remaining[:n]
		nc.items = append(nc.items, chunkItems...)
		lc.emit(Update[Item, Gap]{Kind: KindPushItems, At: Position{Chunk: newID, Index: 0}, Items: cloneSlice(chunkItems)})

		remaining = remaining[n:]
		if first {
			firstNewID, first = newID, false
		}
		afterID, hasAfter = newID, true
	}

	pos := Position{Chunk: firstNewID, Index: 0}
	return &pos, nil
}

// ReplaceItemAt overwrites the item at position in place.
func (lc *LinkedChunk[Item, Gap]) ReplaceItemAt(position Position, newItem Item) error {
	c, ok := lc.arena[position.Chunk]
	if !ok {
		return chunkNotFoundf(position.Chunk)
	}
	if c.isGap {
		return notAnItemsChunkf(position.Chunk)
	}
	if position.Index < 0 || position.Index >= len(c.items) {
		return invalidPositionf(position, "index out of range")
	}
	c.items[position.Index] = newItem
	lc.emit(Update[Item, Gap]{Kind: KindReplaceItem, At: position, Item: newItem})
	return nil
}

// RemoveItemAt deletes the item at position, left-shifting items to its
// right within the same chunk. If the chunk becomes empty, policy controls
// whether it is retained or dropped. Adjacent chunks are never merged.
// Removing an items-chunk that would leave two gaps adjacent fails with
// ErrInvalidOperation; the caller must pass KeepEmptyChunk in that case.
func (lc *LinkedChunk[Item, Gap]) RemoveItemAt(position Position, policy EmptyChunkPolicy) error {
	c, ok := lc.arena[position.Chunk]
	if !ok {
		return chunkNotFoundf(position.Chunk)
	}
	if c.isGap {
		return notAnItemsChunkf(position.Chunk)
	}
	if position.Index < 0 || position.Index >= len(c.items) {
		return invalidPositionf(position, "index out of range")
	}

	if policy == RemoveEmptyChunk && len(c.items) == 1 {
		prevIsGap := c.hasPrev && lc.arena[c.prev].isGap
		nextIsGap := c.hasNext && lc.arena[c.next].isGap
		if prevIsGap && nextIsGap {
			return invalidOperationf("removing the last item of this chunk would make two gaps adjacent")
		}
	}

	c.items = slices.Delete(c.items, position.Index, position.Index+1)
	lc.emit(Update[Item, Gap]{Kind: KindRemoveItem, At: position})

	if len(c.items) == 0 && policy == RemoveEmptyChunk {
		lc.unlink(c.id)
		lc.emit(Update[Item, Gap]{Kind: KindRemoveChunk, ID: c.id})
	}
	return nil
}

// Clear drops every chunk and resets to a single fresh, empty items-chunk
// with a new identifier; retired identifiers are never reused.
func (lc *LinkedChunk[Item, Gap]) Clear() {
	lc.emit(Update[Item, Gap]{Kind: KindClear})

	lc.arena = make(map[ChunkIdentifier]*chunk[Item, Gap])
	lc.hasFirst, lc.hasLast = false, false

	id := lc.allocateID()
	c := newItemsChunk[Item, Gap](id, lc.capacity)
	lc.arena[id] = c
	lc.firstID, lc.hasFirst = id, true
	lc.lastID, lc.hasLast = id, true

	lc.emit(Update[Item, Gap]{Kind: KindNewItemsChunk, ID: id})
}

// ItemAt returns the item at position without mutating the container.
func (lc *LinkedChunk[Item, Gap]) ItemAt(position Position) (Item, error) {
	c, ok := lc.arena[position.Chunk]
	if !ok {
		var zero Item
		return zero, chunkNotFoundf(position.Chunk)
	}
	if c.isGap {
		var zero Item
		return zero, notAnItemsChunkf(position.Chunk)
	}
	if position.Index < 0 || position.Index >= len(c.items) {
		var zero Item
		return zero, invalidPositionf(position, "index out of range")
	}
	return c.items[position.Index], nil
}

// ChunkIdentifierWhere returns the identifier of the first chunk (in
// forward/chain order) for which predicate returns true.
func (lc *LinkedChunk[Item, Gap]) ChunkIdentifierWhere(predicate func(Chunk[Item, Gap]) bool) (ChunkIdentifier, bool) {
	cur, ok := lc.firstID, lc.hasFirst
	for ok {
		c := lc.arena[cur]
		if predicate(c.view()) {
			return c.id, true
		}
		cur, ok = c.next, c.hasNext
	}
	return 0, false
}

// Chunks returns every chunk, oldest first.
func (lc *LinkedChunk[Item, Gap]) Chunks() []Chunk[Item, Gap] {
	out := make([]Chunk[Item, Gap], 0, len(lc.arena))
	cur, ok := lc.firstID, lc.hasFirst
	for ok {
		c := lc.arena[cur]
		out = append(out, c.view())
		cur, ok = c.next, c.hasNext
	}
	return out
}

// RChunks returns every chunk, most recent first.
func (lc *LinkedChunk[Item, Gap]) RChunks() []Chunk[Item, Gap] {
	out := make([]Chunk[Item, Gap], 0, len(lc.arena))
	cur, ok := lc.lastID, lc.hasLast
	for ok {
		c := lc.arena[cur]
		out = append(out, c.view())
		cur, ok = c.prev, c.hasPrev
	}
	return out
}

// ItemEntry pairs an item with its current Position.
type ItemEntry[Item any] struct {
	Position Position
	Item     Item
}

// Items returns every item with its Position, oldest first.
func (lc *LinkedChunk[Item, Gap]) Items() []ItemEntry[Item] {
	var out []ItemEntry[Item]
	for _, c := range lc.Chunks() {
		if c.IsGap() {
			continue
		}
		for i, it := range c.Items() {
			out = append(out, ItemEntry[Item]{Position: Position{Chunk: c.Identifier(), Index: i}, Item: it})
		}
	}
	return out
}

// RItems returns every item with its Position, most recent first.
func (lc *LinkedChunk[Item, Gap]) RItems() []ItemEntry[Item] {
	var out []ItemEntry[Item]
	for _, c := range lc.RChunks() {
		if c.IsGap() {
			continue
		}
		items := c.Items()
		for i := len(items) - 1; i >= 0; i-- {
			out = append(out, ItemEntry[Item]{Position: Position{Chunk: c.Identifier(), Index: i}, Item: items[i]})
		}
	}
	return out
}

func cloneSlice[T any](s []T) []T {
	return slices.Clone(s)
}
