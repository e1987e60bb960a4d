// Package roomevents is the per-room domain wrapper around linkedchunk: it
// adds event ingest, gap handling, batch removal with position tracking,
// and redaction application on top of a generic LinkedChunk[Event, Gap].
package roomevents

import (
	"encoding/json"

	"github.com/joeycumines/logiface"

	"github.com/joeycumines/go-eventcache/linkedchunk"
	"github.com/joeycumines/go-eventcache/linkedchunk/vectordiff"
	"github.com/joeycumines/go-eventcache/roomevents/redact"
)

const redactionEventType = "m.room.redaction"

// RoomEvents is the per-room event cache: a LinkedChunk[Event, Gap] plus
// the redaction-application pass and position-aware batch removal that
// make it usable directly by a sync ingest path.
type RoomEvents struct {
	chunks *linkedchunk.LinkedChunk[Event, Gap]
	vector *linkedchunk.AsVector[Event, Gap]

	logger           *logiface.Logger[logiface.Event]
	redact           redact.Applier
	redactsInContent func(roomVersion string) bool
}

// RoomEventsConfig collects the options applied to a new RoomEvents.
type RoomEventsConfig struct {
	logger           *logiface.Logger[logiface.Event]
	redact           redact.Applier
	redactsInContent func(roomVersion string) bool
}

// Option configures a RoomEventsConfig at construction time.
type Option interface{ apply(c *RoomEventsConfig) }

type optionFunc func(c *RoomEventsConfig)

func (f optionFunc) apply(c *RoomEventsConfig) { f(c) }

// WithLogger attaches a structured logger. Nil-safe: every call site on a
// nil *logiface.Logger is itself nil-safe, per logiface's own contract.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return optionFunc(func(c *RoomEventsConfig) { c.logger = logger })
}

// WithRedactApplier overrides the default redact.Applier.
func WithRedactApplier(applier redact.Applier) Option {
	return optionFunc(func(c *RoomEventsConfig) { c.redact = applier })
}

// WithRedactsInContent overrides the room-version predicate used to decide
// whether a redaction's target id lives in "redacts" or "content.redacts".
func WithRedactsInContent(fn func(roomVersion string) bool) Option {
	return optionFunc(func(c *RoomEventsConfig) { c.redactsInContent = fn })
}

// NewRoomEvents constructs an empty RoomEvents: a single empty items-chunk
// at the default capacity, with update history enabled.
func NewRoomEvents(opts ...Option) *RoomEvents {
	return newRoomEvents(linkedchunk.NewWithUpdateHistory[Event, Gap](linkedchunk.DefaultChunkCapacity), opts...)
}

// NewRoomEventsWithChunks wraps a caller-supplied LinkedChunk, which must
// itself have been built with NewWithUpdateHistory.
func NewRoomEventsWithChunks(chunks *linkedchunk.LinkedChunk[Event, Gap], opts ...Option) *RoomEvents {
	return newRoomEvents(chunks, opts...)
}

func newRoomEvents(chunks *linkedchunk.LinkedChunk[Event, Gap], opts ...Option) *RoomEvents {
	cfg := RoomEventsConfig{
		redact:           redact.Default(),
		redactsInContent: defaultRedactsInContent,
	}
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	vec, err := chunks.AsVector(eventsEqual)
	if err != nil {
		// The only failure mode is update history being disabled on the
		// supplied chunks, which is a construction-time programmer error.
		panic(err)
	}

	return &RoomEvents{
		chunks:           chunks,
		vector:           vec,
		logger:           cfg.logger,
		redact:           cfg.redact,
		redactsInContent: cfg.redactsInContent,
	}
}

func eventsEqual(a, b Event) bool {
	idA, okA := a.EventID()
	idB, okB := b.EventID()
	if okA && okB {
		return idA == idB
	}
	return any(a) == any(b)
}

// PushEvents appends events after the last chunk.
func (r *RoomEvents) PushEvents(events []Event) {
	r.chunks.PushItemsBack(events)
}

// PushGap appends a gap chunk at the end.
func (r *RoomEvents) PushGap(gap Gap) error {
	return r.chunks.PushGapBack(gap)
}

// InsertEventsAt inserts events immediately before position.
func (r *RoomEvents) InsertEventsAt(events []Event, position linkedchunk.Position) error {
	return r.chunks.InsertItemsAt(events, position)
}

// InsertGapAt splits the chunk addressed by position and places a new gap
// chunk between the two halves.
func (r *RoomEvents) InsertGapAt(gap Gap, position linkedchunk.Position) error {
	return r.chunks.InsertGapAt(gap, position)
}

// RemoveGapAt deletes the named gap chunk.
func (r *RoomEvents) RemoveGapAt(id linkedchunk.ChunkIdentifier) (*linkedchunk.Position, error) {
	return r.chunks.RemoveGapAt(id)
}

// ReplaceGapAt substitutes the named gap chunk with one or more new
// items-chunks containing events.
func (r *RoomEvents) ReplaceGapAt(events []Event, gapID linkedchunk.ChunkIdentifier) (*linkedchunk.Position, error) {
	return r.chunks.ReplaceGapAt(events, gapID)
}

// RemoveEventsByID removes each identified event, scanning from newest to
// oldest, collapsing any items-chunk left empty by the removal. Unknown
// ids are logged and skipped; this never fails.
func (r *RoomEvents) RemoveEventsByID(ids []string) {
	for _, id := range ids {
		position, found := r.findByID(id)
		if !found {
			if l := r.logger; l != nil {
				l.Debug().Str("event_id", id).Log("event not found for removal")
			}
			continue
		}
		if err := r.chunks.RemoveItemAt(position, linkedchunk.RemoveEmptyChunk); err != nil {
			if l := r.logger; l != nil {
				l.Warning().Str("event_id", id).Str("error", err.Error()).Log("failed to remove event")
			}
		}
	}
}

// RemoveEventsAndUpdateInsertPosition removes each identified event (same
// scan as RemoveEventsByID), keeping any items-chunk left empty by the
// removal, and adjusts position so it continues to address the same item
// (or the same "immediately before" point) it did before the batch.
func (r *RoomEvents) RemoveEventsAndUpdateInsertPosition(ids []string, position *linkedchunk.Position) {
	for _, id := range ids {
		removed, found := r.findByID(id)
		if !found {
			if l := r.logger; l != nil {
				l.Debug().Str("event_id", id).Log("event not found for removal")
			}
			continue
		}
		if err := r.chunks.RemoveItemAt(removed, linkedchunk.KeepEmptyChunk); err != nil {
			if l := r.logger; l != nil {
				l.Warning().Str("event_id", id).Str("error", err.Error()).Log("failed to remove event")
			}
			continue
		}
		if removed.Chunk == position.Chunk && removed.Index < position.Index {
			position.DecrementIndex()
		}
	}
}

// findByID scans items newest-to-oldest for the event with the given id.
func (r *RoomEvents) findByID(id string) (linkedchunk.Position, bool) {
	for _, entry := range r.chunks.RItems() {
		if eid, ok := entry.Item.EventID(); ok && eid == id {
			return entry.Position, true
		}
	}
	return linkedchunk.Position{}, false
}

type redactionTypeSniff struct {
	Type string `json:"type"`
}

// OnNewEvents applies the redaction protocol to every incoming event that
// is itself a redaction, per roomVersion's target-id resolution rule.
func (r *RoomEvents) OnNewEvents(roomVersion string, events []Event) {
	for _, ev := range events {
		r.maybeApplyRedaction(roomVersion, ev)
	}
}

func (r *RoomEvents) maybeApplyRedaction(roomVersion string, redaction Event) {
	var sniff redactionTypeSniff
	if err := json.Unmarshal(redaction.Raw(), &sniff); err != nil || sniff.Type != redactionEventType {
		return
	}

	targetID, ok := RedactsTargetID(redaction.Raw(), roomVersion, r.redactsInContent)
	if !ok {
		if l := r.logger; l != nil {
			l.Trace().Log("redaction carries no resolvable target id")
		}
		return
	}

	position, found := r.findByID(targetID)
	if !found {
		if l := r.logger; l != nil {
			l.Trace().Str("target_id", targetID).Log("redaction target not found")
		}
		return
	}

	target, err := r.chunks.ItemAt(position)
	if err != nil {
		if l := r.logger; l != nil {
			l.Warning().Str("target_id", targetID).Str("error", err.Error()).Log("failed to read redaction target")
		}
		return
	}

	if isRedacted(target.Raw()) {
		return
	}

	redactedRaw, ok := r.redact.Apply(target.Raw(), redaction.Raw(), roomVersion)
	if !ok {
		if l := r.logger; l != nil {
			l.Debug().Str("target_id", targetID).Log("redaction application failed")
		}
		return
	}

	replacement := target.Clone().ReplaceRaw(redactedRaw)
	if err := r.chunks.ReplaceItemAt(position, replacement); err != nil {
		if l := r.logger; l != nil {
			l.Warning().Str("target_id", targetID).Str("error", err.Error()).Log("failed to apply redaction")
		}
	}
}

func isRedacted(raw json.RawMessage) bool {
	var obj struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	if len(obj.Content) == 0 {
		return true
	}
	var content map[string]json.RawMessage
	if err := json.Unmarshal(obj.Content, &content); err != nil {
		return false
	}
	return len(content) == 0
}

// RedactsTargetID extracts the target event id from a redaction event's
// raw payload, resolving between top-level "redacts" and
// "content.redacts" according to redactsInContent(roomVersion) (falling
// back to defaultRedactsInContent if nil).
func RedactsTargetID(raw json.RawMessage, roomVersion string, redactsInContent func(string) bool) (string, bool) {
	if redactsInContent == nil {
		redactsInContent = defaultRedactsInContent
	}

	if redactsInContent(roomVersion) {
		var obj struct {
			Content struct {
				Redacts string `json:"redacts"`
			} `json:"content"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil || obj.Content.Redacts == "" {
			return "", false
		}
		return obj.Content.Redacts, true
	}

	var obj struct {
		Redacts string `json:"redacts"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.Redacts == "" {
		return "", false
	}
	return obj.Redacts, true
}

// defaultRedactsInContent: room versions 1-10 carry the target id in the
// top-level "redacts" field; 11+ carry it in "content.redacts".
func defaultRedactsInContent(roomVersion string) bool {
	switch roomVersion {
	case "1", "2", "3", "4", "5", "6", "7", "8", "9", "10":
		return false
	default:
		return true
	}
}

// Reset drops every chunk and starts over with a single fresh items-chunk.
func (r *RoomEvents) Reset() {
	r.chunks.Clear()
}

// UpdatesAsVectorDiffs drains every VectorDiff produced since the last
// call, in order.
func (r *RoomEvents) UpdatesAsVectorDiffs() []vectordiff.Diff[Event] {
	return r.vector.Drain()
}

// ChunkIdentifier returns the identifier of the first chunk matching
// predicate, in forward order.
func (r *RoomEvents) ChunkIdentifier(predicate func(linkedchunk.Chunk[Event, Gap]) bool) (linkedchunk.ChunkIdentifier, bool) {
	return r.chunks.ChunkIdentifierWhere(predicate)
}

// Chunks returns every chunk, oldest first.
func (r *RoomEvents) Chunks() []linkedchunk.Chunk[Event, Gap] { return r.chunks.Chunks() }

// RChunks returns every chunk, most recent first.
func (r *RoomEvents) RChunks() []linkedchunk.Chunk[Event, Gap] { return r.chunks.RChunks() }

// Events returns every event with its Position, oldest first.
func (r *RoomEvents) Events() []linkedchunk.ItemEntry[Event] { return r.chunks.Items() }

// REvents returns every event with its Position, most recent first.
func (r *RoomEvents) REvents() []linkedchunk.ItemEntry[Event] { return r.chunks.RItems() }

// NumEvents returns the total number of events currently held.
func (r *RoomEvents) NumEvents() int { return r.chunks.NumItems() }

// Stats returns chunk/event/gap counts for diagnostics and metrics export.
func (r *RoomEvents) Stats() linkedchunk.Stats { return r.chunks.Stats() }
