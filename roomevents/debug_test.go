package roomevents

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDebugStrings(t *testing.T) {
	r := NewRoomEvents()
	r.PushEvents([]Event{NewEvent("$ev0", json.RawMessage(`{}`))})
	require.NoError(t, r.PushGap(Gap{PrevToken: "hello"}))

	lines := r.DebugStrings()
	require.Len(t, lines, 2)
	require.Equal(t, "chunk #0: $ev0", lines[0])
	require.Equal(t, `chunk #1: gap('hello')`, lines[1])
}

func TestDebugStringsNoID(t *testing.T) {
	r := NewRoomEvents()
	r.PushEvents([]Event{NewEventWithoutID(json.RawMessage(`{}`))})

	lines := r.DebugStrings()
	require.Equal(t, "chunk #0: <no-id>", lines[0])
}
