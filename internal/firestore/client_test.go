package firestore

import (
	"testing"

	"cloud.google.com/go/firestore"
)

func TestEventType(t *testing.T) {
	tests := []struct {
		kind firestore.DocumentChangeKind
		want string
	}{
		{firestore.DocumentAdded, EventCreate},
		{firestore.DocumentModified, EventUpdate},
		{firestore.DocumentRemoved, EventDelete},
	}
	for _, tt := range tests {
		if got := eventType(tt.kind); got != tt.want {
			t.Errorf("eventType(%v) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestWithID(t *testing.T) {
	data := withID("abc", map[string]any{"name": "Desk Lamp"})
	if data["id"] != "abc" {
		t.Errorf("expected id abc, got %v", data["id"])
	}

	kept := withID("abc", map[string]any{"id": 42})
	if kept["id"] != 42 {
		t.Errorf("existing id should be kept, got %v", kept["id"])
	}

	empty := withID("x", nil)
	if empty["id"] != "x" {
		t.Errorf("expected id on nil data, got %v", empty)
	}
}
