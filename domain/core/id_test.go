package core

import (
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	emptyID := ID("")
	if !emptyID.IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}

	nonEmptyID := ID("not-empty")
	if nonEmptyID.IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}

// TestNewRequestID tests that request IDs are distinct and non-empty
func TestNewRequestID(t *testing.T) {
	first := NewRequestID()
	second := NewRequestID()

	if ID(first).IsEmpty() || ID(second).IsEmpty() {
		t.Fatal("Expected non-empty request IDs")
	}
	if first == second {
		t.Errorf("Expected distinct request IDs, got %s twice", first)
	}
	if first.String() != string(first) {
		t.Errorf("Expected String() to return %s, got %s", string(first), first.String())
	}
}
