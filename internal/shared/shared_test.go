package shared

import "testing"

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	if a == "" || b == "" {
		t.Fatal("expected non-empty ids")
	}
	if a == b {
		t.Error("expected distinct ids")
	}
}

func TestRandomState(t *testing.T) {
	state := RandomState()

	if len(state) < 16 {
		t.Errorf("expected at least 16 characters, got %d", len(state))
	}
	for _, r := range state {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Errorf("expected hex characters only, got %q", state)
			break
		}
	}
	if RandomState() == state {
		t.Error("expected distinct states")
	}
}
