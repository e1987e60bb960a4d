package linkedchunk

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Wrap with fmt.Errorf("...: %w", ...) so that
// errors.Is(err, ErrChunkNotFound) (etc.) keeps working regardless of how
// much context the concrete error carries.
var (
	// ErrChunkNotFound means the supplied ChunkIdentifier is not present in
	// the container.
	ErrChunkNotFound = errors.New("linkedchunk: chunk not found")

	// ErrNotAGap means an operation that requires a gap chunk was given the
	// identifier of an items-chunk.
	ErrNotAGap = errors.New("linkedchunk: chunk is not a gap")

	// ErrNotAnItemsChunk means an operation that requires an items-chunk was
	// given the identifier of a gap chunk.
	ErrNotAnItemsChunk = errors.New("linkedchunk: chunk is not an items chunk")

	// ErrInvalidPosition means a Position refers to a non-existent item, or
	// to an out-of-range index.
	ErrInvalidPosition = errors.New("linkedchunk: invalid position")

	// ErrInvalidOperation means the requested mutation would violate a
	// structural invariant of the container (e.g. adjacent gap chunks).
	ErrInvalidOperation = errors.New("linkedchunk: invalid operation")
)

func chunkNotFoundf(id ChunkIdentifier) error {
	return fmt.Errorf("%w: %s", ErrChunkNotFound, id)
}

func notAGapf(id ChunkIdentifier) error {
	return fmt.Errorf("%w: %s", ErrNotAGap, id)
}

func notAnItemsChunkf(id ChunkIdentifier) error {
	return fmt.Errorf("%w: %s", ErrNotAnItemsChunk, id)
}

func invalidPositionf(pos Position, reason string) error {
	return fmt.Errorf("%w: %s (chunk %s, index %d)", ErrInvalidPosition, reason, pos.Chunk, pos.Index)
}

func invalidOperationf(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, reason)
}
