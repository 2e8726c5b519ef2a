// Package activation keeps the set of activation function names that tooling
// recognizes. Documents may carry any non-empty name; the registry only
// decides which names are reported as unknown.
package activation

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Default is the function assigned to new layers when none is given.
const Default = "sigmoid"

var (
	ErrExists   = errors.New("activation already registered")
	ErrNotFound = errors.New("activation not found")
)

var registry = struct {
	mu sync.RWMutex
	m  map[string]struct{}
}{
	m: make(map[string]struct{}),
}

func init() {
	registerBuiltins()
}

func registerBuiltins() {
	for _, name := range []string{"identity", "linear", "relu", "sigmoid", "softmax", "tanh"} {
		MustRegister(name)
	}
}

func Register(name string) error {
	if name == "" {
		return errors.New("activation name is required")
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrExists, name)
	}
	registry.m[name] = struct{}{}
	return nil
}

func MustRegister(name string) {
	if err := Register(name); err != nil {
		panic(err)
	}
}

func Known(name string) bool {
	registry.mu.RLock()
	_, ok := registry.m[name]
	registry.mu.RUnlock()
	return ok
}

// Check returns ErrNotFound for names outside the registry.
func Check(name string) error {
	if !Known(name) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}

func List() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetForTests() {
	registry.mu.Lock()
	registry.m = make(map[string]struct{})
	registry.mu.Unlock()
	registerBuiltins()
}
