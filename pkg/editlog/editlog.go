// Package editlog records field-level stage edits for linear undo and
// redo. Entries address fields by stable path rather than byte offset,
// since offsets are recomputed on every encode.
package editlog

import (
	"github.com/asaskevich/EventBus"
)

// Event topics published when a bus is attached.
const (
	TopicEdit = "editlog:edit"
	TopicUndo = "editlog:undo"
	TopicRedo = "editlog:redo"
)

// Entry is one recorded mutation. Old and New hold the field's value
// before and after the edit.
type Entry struct {
	Path string
	Old  any
	New  any
}

// Option configures a Log.
type Option func(*Log)

// WithBus publishes edit, undo and redo events on the given bus.
func WithBus(bus EventBus.Bus) Option {
	return func(l *Log) { l.bus = bus }
}

// Log is an append-only edit list with a cursor for linear undo/redo.
// Recording an edit while undone entries exist discards the redo tail.
// Log is not safe for concurrent use; edits are applied synchronously on
// the owning goroutine.
type Log struct {
	entries []Entry
	cursor  int // entries[:cursor] are applied
	bus     EventBus.Bus
}

// New returns an empty log.
func New(opts ...Option) *Log {
	l := &Log{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends an edit that has already been applied to the stage.
func (l *Log) Record(path string, old, new any) {
	l.entries = append(l.entries[:l.cursor], Entry{Path: path, Old: old, New: new})
	l.cursor = len(l.entries)
	l.publish(TopicEdit, l.entries[l.cursor-1])
}

// Undo steps the cursor back and returns the entry to revert. The caller
// applies Entry.Old to Entry.Path.
func (l *Log) Undo() (Entry, bool) {
	if l.cursor == 0 {
		return Entry{}, false
	}
	l.cursor--
	e := l.entries[l.cursor]
	l.publish(TopicUndo, e)
	return e, true
}

// Redo re-applies the next undone entry, if any. The caller applies
// Entry.New to Entry.Path.
func (l *Log) Redo() (Entry, bool) {
	if l.cursor == len(l.entries) {
		return Entry{}, false
	}
	e := l.entries[l.cursor]
	l.cursor++
	l.publish(TopicRedo, e)
	return e, true
}

// Clear drops all entries and resets the cursor.
func (l *Log) Clear() {
	l.entries = l.entries[:0]
	l.cursor = 0
}

// Len returns the number of applied entries.
func (l *Log) Len() int { return l.cursor }

// CanUndo reports whether Undo would succeed.
func (l *Log) CanUndo() bool { return l.cursor > 0 }

// CanRedo reports whether Redo would succeed.
func (l *Log) CanRedo() bool { return l.cursor < len(l.entries) }

// Entries returns the applied entries, oldest first.
func (l *Log) Entries() []Entry {
	return l.entries[:l.cursor]
}

func (l *Log) publish(topic string, e Entry) {
	if l.bus != nil {
		l.bus.Publish(topic, e)
	}
}
