package activation

import (
	"errors"
	"testing"
)

func TestRegisterAndKnown(t *testing.T) {
	resetForTests()
	t.Cleanup(resetForTests)

	if Known("swish") {
		t.Fatal("swish should not be known before registration")
	}
	if err := Register("swish"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !Known("swish") {
		t.Fatal("expected swish to be known")
	}
	if err := Check("swish"); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	resetForTests()
	t.Cleanup(resetForTests)

	if err := Register(""); err == nil {
		t.Fatal("expected empty name error")
	}
	if err := Register("relu"); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got: %v", err)
	}
}

func TestCheckUnknown(t *testing.T) {
	if err := Check("foobar"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestListSorted(t *testing.T) {
	resetForTests()
	t.Cleanup(resetForTests)

	if err := Register("a-first"); err != nil {
		t.Fatalf("register: %v", err)
	}
	names := List()
	if len(names) != 7 {
		t.Fatalf("expected built-ins plus one, got: %+v", names)
	}
	if names[0] != "a-first" {
		t.Fatalf("unexpected order: %+v", names)
	}
}

func TestBuiltinsAvailable(t *testing.T) {
	for _, name := range []string{"identity", "relu", "tanh", "sigmoid", "softmax", "linear", Default} {
		if !Known(name) {
			t.Fatalf("builtin %s missing", name)
		}
	}
}
