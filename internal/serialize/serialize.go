// Package serialize converts document-store native values into
// JSON-safe values. The conversion never fails: anything it cannot
// handle directly degrades to a generic object walk, because a
// partially serialized snapshot is strictly preferable to a dropped
// event.
package serialize

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// timestamper is the accessor pattern some native wrapper types expose
// for their underlying instant (protobuf timestamps and the like).
type timestamper interface {
	AsTime() time.Time
}

// Map serializes every value of m. A nil map stays nil so that a
// missing document serializes as JSON null.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Value(v)
	}
	return out
}

// Value returns the JSON-safe form of v.
func Value(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case map[string]any:
		return Map(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Value(e)
		}
		return out
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return t
	}

	if ts, ok := v.(timestamper); ok {
		if s, ok := asTime(ts); ok {
			return s
		}
	}
	return walk(v)
}

// asTime converts via the accessor, recovering if the wrapper panics on
// a malformed underlying value.
func asTime(ts timestamper) (s string, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return ts.AsTime().UTC().Format(time.RFC3339Nano), true
}

// walk is the fallback for arbitrary objects: round-trip through JSON
// into plain maps and slices, then serialize those. Values that cannot
// round-trip become an empty object.
func walk(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return Value(out)
}
