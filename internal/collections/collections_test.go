package collections

import "testing"

func TestLookup(t *testing.T) {
	t.Parallel()

	subs, err := Lookup("mental-health")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(subs) == 0 {
		t.Fatal("empty collection")
	}
	found := false
	for _, s := range subs {
		if s == "mentalhealth" {
			found = true
		}
	}
	if !found {
		t.Errorf("mentalhealth missing from %v", subs)
	}

	if _, err := Lookup("does-not-exist"); err == nil {
		t.Error("expected error for unknown collection")
	}
}

func TestNamesSortedAndResolvable(t *testing.T) {
	t.Parallel()

	names := Names()
	if len(names) == 0 {
		t.Fatal("no collections")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("names not sorted: %q before %q", names[i-1], names[i])
		}
	}
	for _, name := range names {
		if _, err := Lookup(name); err != nil {
			t.Errorf("listed collection %q does not resolve: %v", name, err)
		}
	}
}
