package store

import (
	"context"
	"testing"

	"tasklist/cmd/internal/model"
)

func TestMemoryStore_Contract(t *testing.T) {
	t.Parallel()
	runContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStore_EventDataIsCopied(t *testing.T) {
	t.Parallel()

	st := NewMemoryStore()
	ctx := context.Background()
	data := map[string]any{"fields": "title"}
	if _, err := st.AppendEvent(ctx, model.Event{ID: "e1", ListID: "l1", Type: model.EventTaskUpdated, At: 1, Data: data}); err != nil {
		t.Fatalf("append: %v", err)
	}
	data["fields"] = "mutated"

	items, _, err := st.PageEvents(ctx, "l1", 0, 1)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if items[0].Data["fields"] != "title" {
		t.Fatalf("stored event data changed: %v", items[0].Data)
	}
}
