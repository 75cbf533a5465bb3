package memory

import "testing"

func TestRoomRegistryLifecycle(t *testing.T) {
	registry := NewRoomRegistry()

	room := registry.GetOrCreate("abc", DefaultQuestions())
	if room == nil {
		t.Fatalf("expected room")
	}
	if again := registry.GetOrCreate("abc", nil); again != room {
		t.Fatalf("expected the same room on second lookup")
	}
	if _, ok := registry.Get("abc"); !ok {
		t.Fatalf("expected room present")
	}
	if registry.Count() != 1 {
		t.Fatalf("expected 1 room, got %d", registry.Count())
	}

	registry.Remove("abc")
	registry.Remove("abc")
	if _, ok := registry.Get("abc"); ok {
		t.Fatalf("expected room removed")
	}
}

func TestRoomRegistryGetDoesNotCreate(t *testing.T) {
	registry := NewRoomRegistry()
	if _, ok := registry.Get("never-joined"); ok {
		t.Fatalf("expected lookup without creation")
	}
	if registry.Count() != 0 {
		t.Fatalf("expected no rooms, got %d", registry.Count())
	}
}

func TestRoomRegistryConnectionIndex(t *testing.T) {
	registry := NewRoomRegistry()

	registry.Bind("c1", "abc")
	if roomID, ok := registry.RoomOf("c1"); !ok || roomID != "abc" {
		t.Fatalf("expected c1 in abc, got %q %v", roomID, ok)
	}

	registry.Bind("c1", "xyz")
	if roomID, _ := registry.RoomOf("c1"); roomID != "xyz" {
		t.Fatalf("expected rebinding to replace room, got %q", roomID)
	}

	registry.Unbind("c1")
	if _, ok := registry.RoomOf("c1"); ok {
		t.Fatalf("expected c1 unbound")
	}
}
