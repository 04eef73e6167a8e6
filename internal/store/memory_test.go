package store_test

import (
	"testing"
	"time"

	"harbor-go/internal/store"
)

func TestMemoryActivePostOrdering(t *testing.T) {
	t.Parallel()
	m := store.NewMemory()

	for _, p := range []struct {
		id string
		at time.Time
	}{
		{"a", testNow.Add(-2 * time.Hour)},
		{"c", testNow},
		{"b", testNow.Add(-time.Hour)},
	} {
		if err := m.InsertPost(newPost(p.id, p.at)); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := m.ActivePostIDs(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"c", "b", "a"}
	for i := range want {
		if i >= len(ids) || ids[i] != want[i] {
			t.Fatalf("ids = %v, want newest first %v", ids, want)
		}
	}

	if page, _ := m.ActivePostIDs(1, 1); len(page) != 1 || page[0] != "b" {
		t.Errorf("page = %v, want [b]", page)
	}
}
