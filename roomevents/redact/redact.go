// Package redact implements the room-version-dependent payload reduction
// applied when a redaction event targets another event already held in the
// cache. It is a pure, injectable apply_redaction(target, redaction,
// room_version) function: it never touches the cache itself.
package redact

import "encoding/json"

// Applier computes the redacted form of targetRaw given the redaction
// event's own raw payload and the room version the event belongs to. It
// returns ok == false if the redaction cannot be applied (malformed
// payload); this is treated by callers as "not a redaction we can
// process", logged and skipped rather than surfaced as an error.
type Applier interface {
	Apply(targetRaw, redactionRaw json.RawMessage, roomVersion string) (redactedRaw json.RawMessage, ok bool)
}

// preservedTopLevelKeys survive redaction regardless of event type or room
// version.
var preservedTopLevelKeys = []string{
	"event_id",
	"type",
	"room_id",
	"sender",
	"state_key",
	"content",
	"origin_server_ts",
	"unsigned",
	"depth",
	"prev_events",
	"auth_events",
}

// The content sub-keys preserved across redaction. Room versions 1-10 use
// preV11ContentAllowList; every other room version string (11 and later,
// and any unrecognised version) uses postV11ContentAllowList.
var (
	preV11ContentAllowList = []string{"membership", "join_rule", "history_visibility", "creator"}
	postV11ContentAllowList = []string{"membership", "join_rule", "history_visibility"}
)

func contentAllowListFor(roomVersion string) []string {
	if redactsInContentDefault(roomVersion) {
		return postV11ContentAllowList
	}
	return preV11ContentAllowList
}

// redactsInContentDefault mirrors roomevents.defaultRedactsInContent
// without importing it, to keep this package dependency-free of the cache
// itself: room versions 1-10 use the pre-v11 allow-list, all others the
// post-v11 one.
func redactsInContentDefault(roomVersion string) bool {
	switch roomVersion {
	case "1", "2", "3", "4", "5", "6", "7", "8", "9", "10":
		return false
	default:
		return true
	}
}

type defaultApplier struct{}

// Default returns the built-in Applier: it strips every top-level key from
// targetRaw except preservedTopLevelKeys, and further prunes "content" to
// its room-version-specific allow-list.
func Default() Applier { return defaultApplier{} }

func (defaultApplier) Apply(targetRaw, _ json.RawMessage, roomVersion string) (json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(targetRaw, &obj); err != nil {
		return nil, false
	}

	out := make(map[string]json.RawMessage, len(preservedTopLevelKeys))
	for _, k := range preservedTopLevelKeys {
		if v, ok := obj[k]; ok {
			out[k] = v
		}
	}

	if rawContent, ok := out["content"]; ok {
		var content map[string]json.RawMessage
		if err := json.Unmarshal(rawContent, &content); err == nil {
			allowed := contentAllowListFor(roomVersion)
			pruned := make(map[string]json.RawMessage, len(allowed))
			for _, k := range allowed {
				if v, ok := content[k]; ok {
					pruned[k] = v
				}
			}
			if b, err := json.Marshal(pruned); err == nil {
				out["content"] = b
			}
		}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, false
	}
	return b, true
}
