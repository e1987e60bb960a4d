package linkedchunk

import "github.com/joeycumines/go-eventcache/linkedchunk/vectordiff"

// AsVector projects the raw structural Update log of a LinkedChunk onto a
// flat, ordered sequence of items, expressed as a stream of
// vectordiff.Diff values. It maintains its own mirror of the flat sequence
// plus a shadow chunk arena (order/itemCount/isGap), so it can compute
// flat offsets without touching the owning LinkedChunk's internal state.
//
// A run of structural mutations bracketed by
// KindStartReattachItems/KindEndReattachItems (chunk splits caused by
// mid-chunk insertion) is buffered and replaced by a minimal diff between
// the pre- and post-envelope mirror snapshots, so that a chunk split is
// never observed by a consumer as a transient removal.
type AsVector[Item, Gap any] struct {
	lc    *LinkedChunk[Item, Gap]
	equal func(a, b Item) bool

	mirror    []Item
	order     []ChunkIdentifier
	itemCount map[ChunkIdentifier]int
	isGap     map[ChunkIdentifier]bool

	envelopeDepth int
	preSnapshot   []Item

	diffs []vectordiff.Diff[Item]
}

// AsVector builds a projector over lc's update log. lc must have been
// constructed with NewWithUpdateHistory. equal is used to pair up items
// across a reattachment envelope's before/after snapshots; for pointer or
// interface Item types, a simple identity comparison is appropriate.
//
// The projection starts from lc's chunks as they are at the time of the
// call: items already present are in Items() but produce no diffs, and
// updates recorded before the call are discarded.
func (lc *LinkedChunk[Item, Gap]) AsVector(equal func(a, b Item) bool) (*AsVector[Item, Gap], error) {
	if !lc.trackUpdates {
		return nil, invalidOperationf("AsVector requires a LinkedChunk built with NewWithUpdateHistory")
	}
	av := &AsVector[Item, Gap]{
		lc:        lc,
		equal:     equal,
		itemCount: make(map[ChunkIdentifier]int),
		isGap:     make(map[ChunkIdentifier]bool),
	}
	lc.TakeUpdates()
	for _, c := range lc.Chunks() {
		id := c.Identifier()
		av.order = append(av.order, id)
		av.isGap[id] = c.IsGap()
		av.itemCount[id] = c.Len()
		av.mirror = append(av.mirror, c.Items()...)
	}
	return av, nil
}

// Items returns a snapshot of the projector's current flat mirror.
func (av *AsVector[Item, Gap]) Items() []Item { return cloneSlice(av.mirror) }

// Drain pulls every raw Update recorded by the owning LinkedChunk since the
// last call, folds them into the mirror, and returns the resulting
// vectordiff.Diff stream.
func (av *AsVector[Item, Gap]) Drain() []vectordiff.Diff[Item] {
	for _, u := range av.lc.TakeUpdates() {
		av.processUpdate(u)
	}
	out := av.diffs
	av.diffs = nil
	return out
}

func (av *AsVector[Item, Gap]) indexOf(id ChunkIdentifier) int {
	for i, x := range av.order {
		if x == id {
			return i
		}
	}
	return -1
}

func (av *AsVector[Item, Gap]) insertChunkOrder(id, after ChunkIdentifier, hasAfter bool) {
	if !hasAfter {
		av.order = append(av.order, 0)
		copy(av.order[1:], av.order)
		av.order[0] = id
		return
	}
	i := av.indexOf(after)
	av.order = append(av.order, 0)
	copy(av.order[i+2:], av.order[i+1:])
	av.order[i+1] = id
}

func (av *AsVector[Item, Gap]) removeChunkOrder(id ChunkIdentifier) {
	i := av.indexOf(id)
	if i < 0 {
		return
	}
	av.order = append(av.order[:i], av.order[i+1:]...)
}

func (av *AsVector[Item, Gap]) flatOffset(id ChunkIdentifier) int {
	off := 0
	for _, x := range av.order {
		if x == id {
			break
		}
		off += av.itemCount[x]
	}
	return off
}

func (av *AsVector[Item, Gap]) processUpdate(u Update[Item, Gap]) {
	switch u.Kind {
	case KindNewItemsChunk:
		av.isGap[u.ID] = false
		av.itemCount[u.ID] = 0
		av.insertChunkOrder(u.ID, u.After, u.HasAfter)

	case KindNewGapChunk:
		av.isGap[u.ID] = true
		av.itemCount[u.ID] = 0
		av.insertChunkOrder(u.ID, u.After, u.HasAfter)

	case KindRemoveChunk:
		delete(av.itemCount, u.ID)
		delete(av.isGap, u.ID)
		av.removeChunkOrder(u.ID)

	case KindPushItems:
		flatIdx := av.flatOffset(u.At.Chunk) + u.At.Index
		n := len(u.Items)
		oldLen := len(av.mirror)
		av.mirror = append(av.mirror, make([]Item, n)...)
		copy(av.mirror[flatIdx+n:], av.mirror[flatIdx:oldLen])
		copy(av.mirror[flatIdx:flatIdx+n], u.Items)
		av.itemCount[u.At.Chunk] += n
		if av.envelopeDepth == 0 {
			if flatIdx == oldLen {
				av.diffs = append(av.diffs, vectordiff.Append(cloneSlice(u.Items)))
			} else {
				for i, it := range u.Items {
					av.diffs = append(av.diffs, vectordiff.Insert(flatIdx+i, it))
				}
			}
		}

	case KindRemoveItem:
		flatIdx := av.flatOffset(u.At.Chunk) + u.At.Index
		av.mirror = append(av.mirror[:flatIdx], av.mirror[flatIdx+1:]...)
		av.itemCount[u.At.Chunk]--
		if av.envelopeDepth == 0 {
			av.diffs = append(av.diffs, vectordiff.Remove[Item](flatIdx))
		}

	case KindDetachLastItems:
		flatIdx := av.flatOffset(u.At.Chunk) + u.At.Index
		cnt := av.itemCount[u.At.Chunk] - u.At.Index
		av.mirror = append(av.mirror[:flatIdx], av.mirror[flatIdx+cnt:]...)
		av.itemCount[u.At.Chunk] = u.At.Index

	case KindStartReattachItems:
		if av.envelopeDepth == 0 {
			av.preSnapshot = cloneSlice(av.mirror)
		}
		av.envelopeDepth++

	case KindEndReattachItems:
		av.envelopeDepth--
		if av.envelopeDepth == 0 {
			av.diffs = append(av.diffs, diffSnapshots(av.equal, av.preSnapshot, av.mirror)...)
			av.preSnapshot = nil
		}

	case KindReplaceItem:
		flatIdx := av.flatOffset(u.At.Chunk) + u.At.Index
		av.mirror[flatIdx] = u.Item
		if av.envelopeDepth == 0 {
			av.diffs = append(av.diffs, vectordiff.Set(flatIdx, u.Item))
		}

	case KindClear:
		av.mirror = nil
		av.itemCount = make(map[ChunkIdentifier]int)
		av.isGap = make(map[ChunkIdentifier]bool)
		av.order = nil
		if av.envelopeDepth == 0 {
			av.diffs = append(av.diffs, vectordiff.Clear[Item]())
		}
	}
}

// diffSnapshots computes a minimal vectordiff stream taking before to
// after, by trimming the common prefix and (non-overlapping) common
// suffix and emitting Set for the overlap of the remaining range, then
// Remove or Insert for whatever is left over on either side.
func diffSnapshots[T any](equal func(a, b T) bool, before, after []T) []vectordiff.Diff[T] {
	p := 0
	for p < len(before) && p < len(after) && equal(before[p], after[p]) {
		p++
	}

	sBefore, sAfter := len(before), len(after)
	for sBefore > p && sAfter > p && equal(before[sBefore-1], after[sAfter-1]) {
		sBefore--
		sAfter--
	}

	removedCount := sBefore - p
	insertedCount := sAfter - p

	var diffs []vectordiff.Diff[T]

	common := removedCount
	if insertedCount < common {
		common = insertedCount
	}
	for i := 0; i < common; i++ {
		diffs = append(diffs, vectordiff.Set(p+i, after[p+i]))
	}

	switch {
	case removedCount > insertedCount:
		for i := removedCount - 1; i >= insertedCount; i-- {
			diffs = append(diffs, vectordiff.Remove[T](p+i))
		}
	case insertedCount > removedCount:
		for i := removedCount; i < insertedCount; i++ {
			diffs = append(diffs, vectordiff.Insert(p+i, after[p+i]))
		}
	}

	return diffs
}
