package vocab

import "testing"

func TestNullReserved(t *testing.T) {
	v := New()

	if v.Size() != 1 {
		t.Fatalf("fresh vocab should hold only NULL, got size %d", v.Size())
	}
	if id := v.Intern(NullSurface); id != Null {
		t.Errorf("NULL surface should intern to id 0, got %d", id)
	}
	if w := v.Word(Null); w != NullSurface {
		t.Errorf("Word(Null) = %q, want %q", w, NullSurface)
	}
}

func TestInternStable(t *testing.T) {
	v := New()

	a := v.Intern("maison")
	b := v.Intern("house")
	if a == b {
		t.Fatal("distinct tokens got the same id")
	}
	if again := v.Intern("maison"); again != a {
		t.Errorf("re-interning returned %d, want %d", again, a)
	}
	if v.Word(a) != "maison" || v.Word(b) != "house" {
		t.Error("Word did not round-trip interned tokens")
	}
}

func TestLookup(t *testing.T) {
	v := New()
	id := v.Intern("chat")

	got, ok := v.Lookup("chat")
	if !ok || got != id {
		t.Errorf("Lookup(chat) = (%d, %v), want (%d, true)", got, ok, id)
	}
	if _, ok := v.Lookup("chien"); ok {
		t.Error("Lookup of unseen token should report false")
	}
}

func TestInternAll(t *testing.T) {
	v := New()
	ids := v.InternAll([]string{"le", "chat", "le"})

	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}
	if ids[0] != ids[2] {
		t.Error("repeated token should get the same id")
	}
	if ids[0] == ids[1] {
		t.Error("distinct tokens should get distinct ids")
	}
}

func TestWordOutOfRange(t *testing.T) {
	v := New()
	if w := v.Word(99); w != "" {
		t.Errorf("Word(99) = %q, want empty", w)
	}
}
