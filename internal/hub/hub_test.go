package hub

import (
	"errors"
	"testing"
)

type recordingWriter struct {
	messages [][]byte
	fail     bool
	closed   bool
}

func (w *recordingWriter) Write(message []byte) error {
	if w.fail {
		return errors.New("write failed")
	}
	w.messages = append(w.messages, message)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestHub_BroadcastByTopic(t *testing.T) {
	h := New()
	loc := &recordingWriter{}
	pic := &recordingWriter{}
	h.Register(&Connection{Topic: "locations", Writer: loc})
	h.Register(&Connection{Topic: "pictures", Writer: pic})

	h.Broadcast("locations", []byte("update"))

	if len(loc.messages) != 1 {
		t.Fatalf("expected 1 message on locations, got %d", len(loc.messages))
	}
	if len(pic.messages) != 0 {
		t.Fatalf("pictures must not receive locations broadcasts")
	}
}

func TestHub_EvictsFailedWriters(t *testing.T) {
	h := New()
	bad := &recordingWriter{fail: true}
	good := &recordingWriter{}
	h.Register(&Connection{Topic: "locations", Writer: bad})
	h.Register(&Connection{Topic: "locations", Writer: good})

	h.Broadcast("locations", []byte("one"))
	if !bad.closed {
		t.Fatalf("failed writer must be closed")
	}

	h.Broadcast("locations", []byte("two"))
	if len(good.messages) != 2 {
		t.Fatalf("healthy writer must keep receiving, got %d", len(good.messages))
	}
}

func TestHub_Unregister(t *testing.T) {
	h := New()
	w := &recordingWriter{}
	conn := &Connection{Topic: "pictures", Writer: w}
	h.Register(conn)
	h.Unregister(conn)
	h.Unregister(conn) // idempotent

	h.Broadcast("pictures", []byte("update"))
	if len(w.messages) != 0 {
		t.Fatalf("unregistered connection must not receive broadcasts")
	}
}
