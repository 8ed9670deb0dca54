package kv

import "testing"

func TestOrderedKV_PreservesInsertionOrder(t *testing.T) {
	sections := NewOrderedKV[string, []string]()
	sections.Put("people", []string{"Albert Einstein"})
	sections.Put("events", []string{"Moon landing"})
	sections.Put("new", []string{"Marie Curie"})

	want := []string{"people", "events", "new"}
	got := sections.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i, k := range want {
		if got[i] != k {
			t.Errorf("Keys()[%d] = %q, want %q", i, got[i], k)
		}
	}
}

func TestOrderedKV_PutIfAbsentKeepsFirstPosition(t *testing.T) {
	sections := NewOrderedKV[string, int]()
	sections.Put("people", 1)
	sections.PutIfAbsent("events", 2)
	sections.PutIfAbsent("people", 99) // should not move or overwrite

	if got := sections.Value("people"); got != 1 {
		t.Errorf("Value(\"people\") = %d, want 1 (PutIfAbsent must not overwrite)", got)
	}
	if got := sections.Keys(); len(got) != 2 || got[0] != "people" || got[1] != "events" {
		t.Errorf("Keys() = %v, want [people events]", got)
	}
}

func TestOrderedKV_ValueMissingKeyReturnsZero(t *testing.T) {
	sections := NewOrderedKV[string, []string]()
	if got := sections.Value("missing"); got != nil {
		t.Errorf("Value(missing) = %v, want nil", got)
	}
}

func TestOrderedKV_PutUpdatesWithoutDuplicatingKey(t *testing.T) {
	sections := NewOrderedKV[string, []string]()
	sections.Put("new", []string{"Marie Curie"})
	sections.Put("new", []string{"Marie Curie", "Albert Einstein"})

	if got := sections.Size(); got != 1 {
		t.Errorf("Size() = %d, want 1", got)
	}
	if got := sections.Value("new"); len(got) != 2 {
		t.Errorf("Value(\"new\") = %v, want 2 entries", got)
	}
}

func TestOrderedKV_ForEachVisitsInOrder(t *testing.T) {
	sections := NewOrderedKV[string, int]()
	sections.Put("a", 1)
	sections.Put("b", 2)
	sections.Put("c", 3)

	var visited []string
	sections.ForEach(func(k string, _ int) {
		visited = append(visited, k)
	})

	want := []string{"a", "b", "c"}
	for i, k := range want {
		if visited[i] != k {
			t.Errorf("ForEach order[%d] = %q, want %q", i, visited[i], k)
		}
	}
}

func TestOrderedKV_KeysIsASnapshot(t *testing.T) {
	sections := NewOrderedKV[string, int]()
	sections.Put("a", 1)

	snapshot := sections.Keys()
	sections.Put("b", 2)

	if len(snapshot) != 1 {
		t.Errorf("earlier Keys() snapshot was mutated by a later Put: %v", snapshot)
	}
}
