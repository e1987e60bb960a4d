package linkedchunk

import "testing"

func TestNewIsEmpty(t *testing.T) {
	lc := New[string, string](4)
	if n := lc.NumItems(); n != 0 {
		t.Fatalf("NumItems() = %d, want 0", n)
	}
	if n := lc.NumChunks(); n != 1 {
		t.Fatalf("NumChunks() = %d, want 1", n)
	}
}

func TestPushItemsBack(t *testing.T) {
	t.Run("fills_then_overflows", func(t *testing.T) {
		lc := New[string, string](2)
		lc.PushItemsBack([]string{"a", "b"})
		lc.PushItemsBack([]string{"c"})

		items := lc.Items()
		if len(items) != 3 {
			t.Fatalf("len(Items()) = %d, want 3", len(items))
		}
		if items[2].Position.Chunk == items[0].Position.Chunk {
			t.Fatalf("expected overflow item %q to land in a new chunk, got same chunk as %q", items[2].Item, items[0].Item)
		}
		if items[2].Position.Index != 0 {
			t.Fatalf("overflow item index = %d, want 0", items[2].Position.Index)
		}
		if n := lc.NumChunks(); n != 2 {
			t.Fatalf("NumChunks() = %d, want 2", n)
		}
	})

	t.Run("empty_is_no_op", func(t *testing.T) {
		lc := NewWithUpdateHistory[string, string](4)
		lc.PushItemsBack(nil)
		if got := lc.TakeUpdates(); len(got) != 0 {
			t.Fatalf("TakeUpdates() = %v, want empty", got)
		}
	})
}

func TestPushGapBack(t *testing.T) {
	t.Run("rejects_adjacent_gap", func(t *testing.T) {
		lc := New[string, string](4)
		if err := lc.PushGapBack("g1"); err != nil {
			t.Fatalf("first PushGapBack: %v", err)
		}
		if err := lc.PushGapBack("g2"); err == nil {
			t.Fatal("second PushGapBack: want error, got nil")
		}
	})

	t.Run("after_items", func(t *testing.T) {
		lc := New[string, string](4)
		lc.PushItemsBack([]string{"a"})
		if err := lc.PushGapBack("g"); err != nil {
			t.Fatalf("PushGapBack: %v", err)
		}
		lc.PushItemsBack([]string{"b"})

		chunks := lc.Chunks()
		if len(chunks) != 3 {
			t.Fatalf("len(Chunks()) = %d, want 3", len(chunks))
		}
		if chunks[0].IsGap() || !chunks[1].IsGap() || chunks[2].IsGap() {
			t.Fatalf("chunk kinds = %v,%v,%v, want items,gap,items", chunks[0].IsGap(), chunks[1].IsGap(), chunks[2].IsGap())
		}
	})
}

func TestInsertItemsAt(t *testing.T) {
	t.Run("within_capacity_no_split", func(t *testing.T) {
		lc := New[string, string](128)
		lc.PushItemsBack([]string{"e0", "e1"})

		if err := lc.InsertItemsAt([]string{"e2"}, Position{Chunk: 0, Index: 1}); err != nil {
			t.Fatalf("InsertItemsAt: %v", err)
		}

		items := lc.Items()
		want := []string{"e0", "e2", "e1"}
		if len(items) != len(want) {
			t.Fatalf("len(Items()) = %d, want %d", len(items), len(want))
		}
		for i, it := range items {
			if it.Item != want[i] {
				t.Fatalf("Items()[%d] = %q, want %q", i, it.Item, want[i])
			}
			if it.Position.Chunk != 0 {
				t.Fatalf("Items()[%d].Position.Chunk = %v, want same chunk (no split)", i, it.Position.Chunk)
			}
		}
	})

	t.Run("overflow_splits", func(t *testing.T) {
		lc := New[string, string](2)
		lc.PushItemsBack([]string{"a", "b"})

		if err := lc.InsertItemsAt([]string{"x"}, Position{Chunk: 0, Index: 1}); err != nil {
			t.Fatalf("InsertItemsAt: %v", err)
		}

		items := lc.Items()
		want := []string{"a", "x", "b"}
		for i, it := range items {
			if it.Item != want[i] {
				t.Fatalf("Items()[%d] = %q, want %q", i, it.Item, want[i])
			}
		}
		if items[2].Position.Chunk == items[0].Position.Chunk {
			t.Fatal("expected trailing item to have been carried into a new chunk")
		}
		if n := lc.NumChunks(); n != 2 {
			t.Fatalf("NumChunks() = %d, want 2", n)
		}
	})
}

func TestInsertGapAt(t *testing.T) {
	t.Run("splits_chunk", func(t *testing.T) {
		lc := New[string, string](128)
		lc.PushItemsBack([]string{"e0", "e1"})

		if err := lc.InsertGapAt("hole", Position{Chunk: 0, Index: 1}); err != nil {
			t.Fatalf("InsertGapAt: %v", err)
		}

		chunks := lc.Chunks()
		if len(chunks) != 3 {
			t.Fatalf("len(Chunks()) = %d, want 3", len(chunks))
		}
		if chunks[0].IsGap() || !chunks[1].IsGap() || chunks[2].IsGap() {
			t.Fatal("want items,gap,items chunk sequence")
		}
		if chunks[0].Len() != 1 || chunks[2].Len() != 1 {
			t.Fatalf("chunk lengths = %d,%d, want 1,1", chunks[0].Len(), chunks[2].Len())
		}
	})

	t.Run("rejects_adjacent_gap", func(t *testing.T) {
		lc := New[string, string](128)
		lc.PushItemsBack([]string{"e0"})
		if err := lc.PushGapBack("g1"); err != nil {
			t.Fatalf("PushGapBack: %v", err)
		}
		lc.PushItemsBack([]string{"e1"})

		chunks := lc.Chunks()
		itemsChunkID := chunks[2].Identifier()
		if err := lc.InsertGapAt("g2", Position{Chunk: itemsChunkID, Index: 0}); err == nil {
			t.Fatal("want InvalidOperation for adjacent gap, got nil")
		}
	})
}

func TestRemoveGapAt(t *testing.T) {
	t.Run("returns_next_position", func(t *testing.T) {
		lc := New[string, string](128)
		lc.PushItemsBack([]string{"e0"})
		if err := lc.PushGapBack("middle"); err != nil {
			t.Fatalf("PushGapBack: %v", err)
		}
		lc.PushItemsBack([]string{"e1"})

		gapID := lc.Chunks()[1].Identifier()
		pos, err := lc.RemoveGapAt(gapID)
		if err != nil {
			t.Fatalf("RemoveGapAt: %v", err)
		}
		if pos == nil {
			t.Fatal("want non-nil position, got nil")
		}
		if pos.Index != 0 {
			t.Fatalf("pos.Index = %d, want 0", pos.Index)
		}
	})

	t.Run("last_returns_nil", func(t *testing.T) {
		lc := New[string, string](128)
		lc.PushItemsBack([]string{"e0"})
		if err := lc.PushGapBack("end"); err != nil {
			t.Fatalf("PushGapBack: %v", err)
		}

		gapID := lc.Chunks()[1].Identifier()
		pos, err := lc.RemoveGapAt(gapID)
		if err != nil {
			t.Fatalf("RemoveGapAt: %v", err)
		}
		if pos != nil {
			t.Fatalf("pos = %v, want nil", pos)
		}
	})
}

func TestReplaceGapAt(t *testing.T) {
	t.Run("with_empty_behaves_as_remove", func(t *testing.T) {
		lc := New[string, string](128)
		lc.PushItemsBack([]string{"e0"})
		if err := lc.PushGapBack("g"); err != nil {
			t.Fatalf("PushGapBack: %v", err)
		}

		gapID := lc.Chunks()[1].Identifier()
		pos, err := lc.ReplaceGapAt(nil, gapID)
		if err != nil {
			t.Fatalf("ReplaceGapAt: %v", err)
		}
		if pos != nil {
			t.Fatalf("pos = %v, want nil", pos)
		}
		if n := lc.NumChunks(); n != 1 {
			t.Fatalf("NumChunks() = %d, want 1", n)
		}
	})

	t.Run("with_items", func(t *testing.T) {
		lc := New[string, string](128)
		lc.PushItemsBack([]string{"e0"})
		if err := lc.PushGapBack("g"); err != nil {
			t.Fatalf("PushGapBack: %v", err)
		}

		gapID := lc.Chunks()[1].Identifier()
		pos, err := lc.ReplaceGapAt([]string{"e1", "e2"}, gapID)
		if err != nil {
			t.Fatalf("ReplaceGapAt: %v", err)
		}
		if pos == nil {
			t.Fatal("want non-nil position")
		}
		if pos.Index != 0 {
			t.Fatalf("pos.Index = %d, want 0", pos.Index)
		}

		items := lc.Items()
		want := []string{"e0", "e1", "e2"}
		for i, it := range items {
			if it.Item != want[i] {
				t.Fatalf("Items()[%d] = %q, want %q", i, it.Item, want[i])
			}
		}

		// The retired gap identifier must never reappear.
		if _, err := lc.RemoveGapAt(gapID); err == nil {
			t.Fatal("want error removing a retired gap identifier")
		}
	})
}

func TestReplaceItemAt(t *testing.T) {
	t.Run("replaces_in_place", func(t *testing.T) {
		lc := New[string, string](4)
		lc.PushItemsBack([]string{"a", "b"})
		if err := lc.ReplaceItemAt(Position{Chunk: 0, Index: 1}, "b2"); err != nil {
			t.Fatalf("ReplaceItemAt: %v", err)
		}
		items := lc.Items()
		if items[1].Item != "b2" {
			t.Fatalf("Items()[1] = %q, want b2", items[1].Item)
		}
	})

	t.Run("invalid_position", func(t *testing.T) {
		lc := New[string, string](4)
		lc.PushItemsBack([]string{"a"})
		if err := lc.ReplaceItemAt(Position{Chunk: 99, Index: 0}, "x"); err == nil {
			t.Fatal("want ChunkNotFound error, got nil")
		}
	})
}

func TestRemoveItemAt(t *testing.T) {
	t.Run("keep_empty_chunk", func(t *testing.T) {
		lc := New[string, string](4)
		lc.PushItemsBack([]string{"a"})
		firstID := lc.Chunks()[0].Identifier()

		if err := lc.RemoveItemAt(Position{Chunk: firstID, Index: 0}, KeepEmptyChunk); err != nil {
			t.Fatalf("RemoveItemAt: %v", err)
		}
		if n := lc.NumChunks(); n != 1 {
			t.Fatalf("NumChunks() = %d, want 1 (kept)", n)
		}
	})

	t.Run("remove_empty_chunk", func(t *testing.T) {
		lc := New[string, string](2)
		lc.PushItemsBack([]string{"a", "b"})
		lc.PushItemsBack([]string{"c"}) // overflow: second chunk holds "c"

		secondID := lc.Chunks()[1].Identifier()
		if err := lc.RemoveItemAt(Position{Chunk: secondID, Index: 0}, RemoveEmptyChunk); err != nil {
			t.Fatalf("RemoveItemAt: %v", err)
		}
		if n := lc.NumChunks(); n != 1 {
			t.Fatalf("NumChunks() = %d, want 1", n)
		}
	})

	t.Run("rejects_creating_adjacent_gaps", func(t *testing.T) {
		lc := New[string, string](4)
		if err := lc.PushGapBack("g1"); err != nil {
			t.Fatalf("PushGapBack: %v", err)
		}
		lc.PushItemsBack([]string{"a"})
		if err := lc.PushGapBack("g2"); err != nil {
			t.Fatalf("PushGapBack: %v", err)
		}

		itemsID := lc.Chunks()[2].Identifier()
		if err := lc.RemoveItemAt(Position{Chunk: itemsID, Index: 0}, RemoveEmptyChunk); err == nil {
			t.Fatal("want InvalidOperation, got nil")
		}
		// Keep must still succeed.
		if err := lc.RemoveItemAt(Position{Chunk: itemsID, Index: 0}, KeepEmptyChunk); err != nil {
			t.Fatalf("RemoveItemAt(Keep): %v", err)
		}
	})
}

func TestClearRetiresIdentifiers(t *testing.T) {
	lc := NewWithUpdateHistory[string, string](4)
	lc.PushItemsBack([]string{"a"})
	firstID := lc.Chunks()[0].Identifier()
	lc.TakeUpdates()

	lc.Clear()
	updates := lc.TakeUpdates()
	if len(updates) != 2 || updates[0].Kind != KindClear || updates[1].Kind != KindNewItemsChunk {
		t.Fatalf("Clear() updates = %+v, want [Clear, NewItemsChunk]", updates)
	}
	newID := lc.Chunks()[0].Identifier()
	if newID == firstID {
		t.Fatalf("Clear() reused identifier %v", firstID)
	}
	if n := lc.NumItems(); n != 0 {
		t.Fatalf("NumItems() = %d, want 0", n)
	}
}

func TestOverflowCreatesExactChunkCount(t *testing.T) {
	tests := []struct {
		name       string
		capacity   int
		numItems   int
		wantChunks int
	}{
		{name: "exact_fit", capacity: 4, numItems: 4, wantChunks: 1},
		{name: "one_overflow_item", capacity: 4, numItems: 5, wantChunks: 2},
		{name: "ceil_division", capacity: 4, numItems: 10, wantChunks: 3},
		{name: "single_capacity", capacity: 1, numItems: 3, wantChunks: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := New[int, string](tt.capacity)
			items := make([]int, tt.numItems)
			for i := range items {
				items[i] = i
			}
			lc.PushItemsBack(items)
			if n := lc.NumChunks(); n != tt.wantChunks {
				t.Fatalf("NumChunks() = %d, want %d", n, tt.wantChunks)
			}
		})
	}
}

func TestStats(t *testing.T) {
	tests := []struct {
		name      string
		build     func() *LinkedChunk[string, string]
		wantStats Stats
	}{
		{
			name:      "empty",
			build:     func() *LinkedChunk[string, string] { return New[string, string](4) },
			wantStats: Stats{ChunkCount: 1, ItemCount: 0, GapCount: 0},
		},
		{
			name: "items_and_gap",
			build: func() *LinkedChunk[string, string] {
				lc := New[string, string](4)
				lc.PushItemsBack([]string{"a", "b"})
				if err := lc.PushGapBack("g"); err != nil {
					t.Fatalf("PushGapBack: %v", err)
				}
				lc.PushItemsBack([]string{"c"})
				return lc
			},
			wantStats: Stats{ChunkCount: 3, ItemCount: 3, GapCount: 1},
		},
		{
			name: "overflowed_items",
			build: func() *LinkedChunk[string, string] {
				lc := New[string, string](2)
				lc.PushItemsBack([]string{"a", "b", "c"})
				return lc
			},
			wantStats: Stats{ChunkCount: 2, ItemCount: 3, GapCount: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := tt.build()
			if got := lc.Stats(); got != tt.wantStats {
				t.Fatalf("Stats() = %+v, want %+v", got, tt.wantStats)
			}
		})
	}
}
