package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEvents creates n events with ids prefix-0..prefix-(n-1).
func createTestEvents(prefix string, n int) []NewEvent {
	events := make([]NewEvent, n)
	for i := range events {
		events[i] = NewEvent{
			ID:      fmt.Sprintf("%s-%d", prefix, i),
			Type:    "TestEventHappened",
			Payload: json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)),
		}
	}
	return events
}
