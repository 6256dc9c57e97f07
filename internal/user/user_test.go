package user

import "testing"

func TestGetOrCreateIsIdempotent(t *testing.T) {
	s := NewMemoryStore(nil)

	a := s.GetOrCreate("Viewer1", 2)
	b := s.GetOrCreate("viewer1", 9)

	if a != b {
		t.Fatalf("expected GetOrCreate to return the same record regardless of case, got distinct pointers")
	}
	if a.Port != 2 {
		t.Fatalf("expected port from first creation (2) to stick, got %d", a.Port)
	}
}

func TestGetOrCreateFiresOnDirtyOnceOnCreation(t *testing.T) {
	var dirtyCalls int
	s := NewMemoryStore(func(u *User) { dirtyCalls++ })

	s.GetOrCreate("mod1", 0)
	s.GetOrCreate("mod1", 0)

	if dirtyCalls != 1 {
		t.Fatalf("expected exactly 1 onDirty call for a single new user, got %d", dirtyCalls)
	}
}

func TestGetUnknownReturnsNil(t *testing.T) {
	s := NewMemoryStore(nil)
	if s.Get("nobody") != nil {
		t.Fatal("expected nil for an unobserved user")
	}
}
