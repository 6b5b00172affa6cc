package logger

import (
	"encoding/json"
)

// Entry is a parsed log line kept for the status API.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Recent is an io.Writer that keeps the last N zerolog JSON entries.
type Recent struct {
	buffer *RingBuffer[Entry]
}

// NewRecent creates a buffer holding up to size entries.
func NewRecent(size int) *Recent {
	return &Recent{buffer: NewRingBuffer[Entry](size)}
}

// Write implements io.Writer. Lines that are not JSON objects are dropped.
func (r *Recent) Write(p []byte) (int, error) {
	if entry, ok := parseEntry(p); ok {
		r.buffer.Push(entry)
	}
	return len(p), nil
}

// Entries returns buffered entries oldest first, optionally filtered by
// minimum level name.
func (r *Recent) Entries(minLevel string) []Entry {
	all := r.buffer.GetAll()
	if minLevel == "" {
		return all
	}
	threshold := ParseLevel(minLevel)
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if ParseLevel(e.Level) >= threshold {
			out = append(out, e)
		}
	}
	return out
}

func parseEntry(data []byte) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Entry{}, false
	}

	var entry Entry
	take := func(key string) string {
		s, _ := raw[key].(string)
		delete(raw, key)
		return s
	}
	entry.Timestamp = take("time")
	entry.Level = take("level")
	entry.Component = take("component")
	entry.Message = take("message")
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry, true
}
