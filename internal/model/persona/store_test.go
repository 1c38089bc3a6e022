package persona

import "testing"

func TestSeedContainsNova(t *testing.T) {
	store := NewMemoryStore(Seed())

	nova, ok := store.FindByID(DefaultID)
	if !ok {
		t.Fatalf("expected %q persona in seed", DefaultID)
	}
	if nova.Name != "Nova" {
		t.Fatalf("unexpected persona name %q", nova.Name)
	}
	if len(nova.FewShots) != 3 {
		t.Fatalf("expected 3 few-shot turns, got %d", len(nova.FewShots))
	}
}

func TestResolveFallsBack(t *testing.T) {
	store := NewMemoryStore(Seed())

	p, ok := Resolve(store, "missing")
	if !ok || p.ID != DefaultID {
		t.Fatalf("expected fallback to %q, got %q (ok=%v)", DefaultID, p.ID, ok)
	}

	custom := NewMemoryStore([]Persona{{ID: "echo", Name: "Echo"}})
	p, ok = Resolve(custom, "missing")
	if !ok || p.ID != "echo" {
		t.Fatalf("expected first persona, got %q (ok=%v)", p.ID, ok)
	}

	if _, ok := Resolve(NewMemoryStore(nil), "nova"); ok {
		t.Fatal("expected empty store to resolve nothing")
	}
}

func TestListReturnsCopy(t *testing.T) {
	store := NewMemoryStore(Seed())
	items := store.List()
	items[0].Name = "mutated"

	if p, _ := store.FindByID(DefaultID); p.Name != "Nova" {
		t.Fatalf("store was mutated through List: %q", p.Name)
	}
}
