package roomevents

import (
	"fmt"
	"strings"

	"github.com/joeycumines/go-eventcache/linkedchunk"
)

// DebugStrings renders one line per chunk: "chunk #<index>: <content>",
// where <content> is either a comma-separated list of event ids (or
// "<no-id>" markers) or "gap('<prev_token>')".
func (r *RoomEvents) DebugStrings() []string {
	chunks := r.chunks.Chunks()
	lines := make([]string, 0, len(chunks))
	for i, c := range chunks {
		lines = append(lines, fmt.Sprintf("chunk #%d: %s", i, chunkDebugContent(c)))
	}
	return lines
}

func chunkDebugContent(c linkedchunk.Chunk[Event, Gap]) string {
	if gap, ok := c.Gap(); ok {
		return fmt.Sprintf("gap('%s')", gap.PrevToken)
	}
	items := c.Items()
	ids := make([]string, 0, len(items))
	for _, ev := range items {
		if id, ok := ev.EventID(); ok {
			ids = append(ids, id)
		} else {
			ids = append(ids, "<no-id>")
		}
	}
	return strings.Join(ids, ", ")
}
