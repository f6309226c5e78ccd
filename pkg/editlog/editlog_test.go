package editlog

import (
	"testing"

	"github.com/asaskevich/EventBus"
)

func TestUndoRedo(t *testing.T) {
	l := New()

	if _, ok := l.Undo(); ok {
		t.Fatal("Undo on empty log succeeded")
	}
	if _, ok := l.Redo(); ok {
		t.Fatal("Redo on empty log succeeded")
	}

	l.Record("goals[0].position.x", float32(1), float32(2))
	l.Record("goals[0].position.x", float32(2), float32(3))
	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}

	e, ok := l.Undo()
	if !ok || e.Old != float32(2) || e.New != float32(3) {
		t.Fatalf("Undo = %+v, %v", e, ok)
	}
	if l.Len() != 1 || !l.CanRedo() {
		t.Fatalf("after undo: len %d canRedo %v", l.Len(), l.CanRedo())
	}

	e, ok = l.Redo()
	if !ok || e.New != float32(3) {
		t.Fatalf("Redo = %+v, %v", e, ok)
	}
	if l.CanRedo() {
		t.Fatal("CanRedo after full redo")
	}
}

func TestRecordDiscardsRedoTail(t *testing.T) {
	l := New()
	l.Record("falloutLevel", float32(-20), float32(-30))
	l.Record("falloutLevel", float32(-30), float32(-40))
	l.Undo()

	l.Record("falloutLevel", float32(-30), float32(-50))
	if l.CanRedo() {
		t.Fatal("redo tail survived a new record")
	}
	if got := l.Entries(); len(got) != 2 || got[1].New != float32(-50) {
		t.Fatalf("entries = %+v", got)
	}
}

func TestClear(t *testing.T) {
	l := New()
	l.Record("a", 1, 2)
	l.Clear()
	if l.Len() != 0 || l.CanUndo() || l.CanRedo() {
		t.Fatal("Clear left state behind")
	}
}

func TestBusEvents(t *testing.T) {
	bus := EventBus.New()
	l := New(WithBus(bus))

	var got []string
	record := func(topic string) func(Entry) {
		return func(Entry) { got = append(got, topic) }
	}
	for _, topic := range []string{TopicEdit, TopicUndo, TopicRedo} {
		if err := bus.Subscribe(topic, record(topic)); err != nil {
			t.Fatalf("subscribe %s: %v", topic, err)
		}
	}

	l.Record("a", 1, 2)
	l.Undo()
	l.Redo()

	want := []string{TopicEdit, TopicUndo, TopicRedo}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}
