package memory

import "testing"

func TestSymbolicWriteAndQuery(t *testing.T) {
	store := NewSymbolicStore()

	store.Write("notes", "n1", "remember the milk", WriteOptions{
		Metadata: map[string]any{"topic": "errands"},
	})
	store.Write("notes", "n2", "kernel design sketch", WriteOptions{
		Metadata: map[string]any{"topic": "work"},
	})
	store.Write("logs", "l1", "unrelated channel", WriteOptions{})

	all := store.Query("notes", Query{})
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	if all[0].ID != "n1" || all[1].ID != "n2" {
		t.Fatalf("records out of write order: %+v", all)
	}
	if all[0].Classification != "internal" {
		t.Fatalf("expected default classification, got %q", all[0].Classification)
	}

	byMeta := store.Query("notes", Query{Metadata: map[string]any{"topic": "work"}})
	if len(byMeta) != 1 || byMeta[0].ID != "n2" {
		t.Fatalf("metadata filter failed: %+v", byMeta)
	}

	byText := store.Query("notes", Query{TextContains: "MILK"})
	if len(byText) != 1 || byText[0].ID != "n1" {
		t.Fatalf("case-insensitive text filter failed: %+v", byText)
	}

	none := store.Query("notes", Query{
		Metadata:     map[string]any{"topic": "work"},
		TextContains: "milk",
	})
	if len(none) != 0 {
		t.Fatalf("filters should conjoin, got %+v", none)
	}

	empty := store.Query("missing", Query{})
	if len(empty) != 0 {
		t.Fatalf("unknown channel should be empty, got %+v", empty)
	}
}

func TestSymbolicChannels(t *testing.T) {
	store := NewSymbolicStore()
	store.Write("a", "1", "x", WriteOptions{})
	store.Write("b", "2", "y", WriteOptions{})

	channels := store.Channels()
	if len(channels) != 2 {
		t.Fatalf("expected 2 channels, got %v", channels)
	}
}
