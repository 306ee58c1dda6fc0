package entitystate

import "testing"

func TestGetSeedsOnFirstObservation(t *testing.T) {
	s := New()
	state := s.Get("/noderegistries/npmjs.org")

	if state.Epoch != 1 {
		t.Errorf("Epoch = %d, want 1", state.Epoch)
	}
	if state.CreatedAt.After(state.ModifiedAt) {
		t.Error("CreatedAt must not be after ModifiedAt")
	}
}

func TestObserveDoesNotBumpEpochOnFirstPayload(t *testing.T) {
	s := New()
	path := "/noderegistries/npmjs.org/packages/express"

	first := s.Observe(path, []byte(`{"name":"express"}`))
	if first.Epoch != 1 {
		t.Errorf("first observation Epoch = %d, want 1", first.Epoch)
	}
}

func TestObserveBumpsEpochOnlyWhenPayloadChanges(t *testing.T) {
	s := New()
	path := "/noderegistries/npmjs.org/packages/express"

	s.Observe(path, []byte(`{"name":"express","version":"4.0.0"}`))
	same := s.Observe(path, []byte(`{"name":"express","version":"4.0.0"}`))
	if same.Epoch != 1 {
		t.Errorf("unchanged payload bumped epoch to %d", same.Epoch)
	}

	changed := s.Observe(path, []byte(`{"name":"express","version":"4.0.1"}`))
	if changed.Epoch != 2 {
		t.Errorf("changed payload Epoch = %d, want 2", changed.Epoch)
	}
	if changed.ModifiedAt.Before(changed.CreatedAt) {
		t.Error("ModifiedAt must not be before CreatedAt")
	}
}

func TestTouchAlwaysBumpsEpoch(t *testing.T) {
	s := New()
	path := "/noderegistries/npmjs.org"

	s.Get(path)
	after := s.Touch(path)
	if after.Epoch != 2 {
		t.Errorf("Epoch after Touch = %d, want 2", after.Epoch)
	}
}

func TestHashHexIsStableForIdenticalPayloads(t *testing.T) {
	a := hashHex([]byte("same"))
	b := hashHex([]byte("same"))
	if a != b {
		t.Errorf("hashHex not stable: %q != %q", a, b)
	}
	if a == hashHex([]byte("different")) {
		t.Error("hashHex collided for different payloads")
	}
}
