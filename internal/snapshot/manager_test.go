package snapshot

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mlpx/internal/model"
	"mlpx/internal/values"
)

func intp(v int) *int { return &v }

// newTestManager builds one snapshot "0" with layers input(2) -> hidden0(2)
// -> output(2) and alpha 0.1.
func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager()
	_, s, err := m.NewSnapshot("0")
	if err != nil {
		t.Fatalf("new snapshot: %v", err)
	}
	if _, err := s.AddLayer("input", 2, nil, nil); err != nil {
		t.Fatalf("add input: %v", err)
	}
	if _, err := s.AddLayer("hidden0", 2, intp(0), nil); err != nil {
		t.Fatalf("add hidden0: %v", err)
	}
	if _, err := s.AddLayer("output", 2, intp(1), nil); err != nil {
		t.Fatalf("add output: %v", err)
	}
	if err := s.SetAlpha(0.1); err != nil {
		t.Fatalf("set alpha: %v", err)
	}
	return m
}

func mustGet(t *testing.T, m *Manager, index int) *Snapshot {
	t.Helper()
	s, err := m.Get(index)
	if err != nil {
		t.Fatalf("get snapshot %d: %v", index, err)
	}
	return s
}

func TestCloneIndependence(t *testing.T) {
	m := newTestManager(t)
	s0 := mustGet(t, m, 0)
	if err := s0.SetWeightAt(1, 3, 2.7); err != nil {
		t.Fatalf("set weight: %v", err)
	}

	index, err := m.MakeIsomorphic(0, "1")
	if err != nil {
		t.Fatalf("make isomorphic: %v", err)
	}
	if index != 1 {
		t.Fatalf("expected new index 1, got %d", index)
	}
	s1 := mustGet(t, m, 1)
	if err := s1.SetWeightAt(1, 3, 3.7); err != nil {
		t.Fatalf("set clone weight: %v", err)
	}

	if w, _ := s1.WeightAt(1, 3); w != 3.7 {
		t.Fatalf("clone weight: got %f want 3.7", w)
	}
	if w, _ := s0.WeightAt(1, 3); w != 2.7 {
		t.Fatalf("source weight: got %f want 2.7", w)
	}
	if m.Initializer() != 0 {
		t.Fatalf("initializer changed to %d", m.Initializer())
	}

	// and the other direction
	if err := s0.SetBias(2, 0, 1); err != nil {
		t.Fatalf("set source bias: %v", err)
	}
	if err := s1.SetBias(2, 0, -1); err != nil {
		t.Fatalf("set clone bias: %v", err)
	}
	if b, _ := s0.Bias(2, 0); b != 1 {
		t.Fatalf("clone write leaked into source: %f", b)
	}
	if _, err := s0.AddLayer("late", 1, intp(2), nil); !errors.Is(err, model.ErrInvalidChain) {
		t.Fatalf("extend source after clone: expected ErrInvalidChain, got %v", err)
	}
	if s0.Topology().Len() != 3 || s1.Topology().Len() != 3 {
		t.Fatalf("shapes diverged: %d vs %d layers", s0.Topology().Len(), s1.Topology().Len())
	}
}

func TestShapeFixedOnceValuesAreSet(t *testing.T) {
	m := newTestManager(t)
	s0 := mustGet(t, m, 0)
	if err := s0.SetWeight(1, 0, 0, 0.5); err != nil {
		t.Fatalf("set weight: %v", err)
	}
	if _, err := s0.AddLayer("pre", 5, nil, intp(0)); !errors.Is(err, model.ErrInvalidChain) {
		t.Fatalf("prepend after set: expected ErrInvalidChain, got %v", err)
	}
	if n, _ := s0.Topology().SynapseCount(0); n != 0 {
		t.Fatalf("input layer gained %d synapses", n)
	}
	if _, err := s0.Topology().AddLayer("late", 1, intp(2), nil); !errors.Is(err, model.ErrInvalidChain) {
		t.Fatalf("append through topology: expected ErrInvalidChain, got %v", err)
	}
}

func TestMakeIsomorphicFreezesBothShapes(t *testing.T) {
	m := NewManager()
	_, src, _ := m.NewSnapshot("0")
	_, _ = src.AddLayer("input", 2, nil, nil)
	_, _ = src.AddLayer("hidden0", 2, intp(0), nil)
	_, _ = src.AddLayer("output", 2, intp(1), nil)
	if src.Topology().Frozen() {
		t.Fatal("snapshot without values must still accept layers")
	}

	index, err := m.MakeIsomorphic(0, "1")
	if err != nil {
		t.Fatalf("make isomorphic: %v", err)
	}
	s0 := mustGet(t, m, 0)
	s1 := mustGet(t, m, index)
	if _, err := s1.AddLayer("extra", 3, intp(1), nil); !errors.Is(err, model.ErrInvalidChain) {
		t.Fatalf("extend clone: expected ErrInvalidChain, got %v", err)
	}
	if _, err := s0.AddLayer("extra", 3, intp(2), nil); !errors.Is(err, model.ErrInvalidChain) {
		t.Fatalf("extend source: expected ErrInvalidChain, got %v", err)
	}
	if err := s0.Topology().Isomorphic(s1.Topology()); err != nil {
		t.Fatalf("shapes diverged: %v", err)
	}

	// a rejected clone leaves the source open for building
	_, fresh, _ := m.NewSnapshot("fresh")
	if _, err := fresh.AddLayer("input", 1, nil, nil); err != nil {
		t.Fatalf("add input: %v", err)
	}
	if _, err := m.MakeIsomorphic(2, "1"); !errors.Is(err, model.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if _, err := fresh.AddLayer("output", 1, intp(0), nil); err != nil {
		t.Fatalf("source frozen by failed clone: %v", err)
	}
}

func TestFallbackToInitializer(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.MakeIsomorphic(0, "1"); err != nil {
		t.Fatalf("make isomorphic: %v", err)
	}
	s0 := mustGet(t, m, 0)
	s1 := mustGet(t, m, 1)

	// set on the initializer after cloning: the clone still sees it
	if err := s0.SetOutput(2, 1, 0.5); err != nil {
		t.Fatalf("set output: %v", err)
	}
	got, err := s1.Output(2, 1)
	if err != nil {
		t.Fatalf("fallback output: %v", err)
	}
	if got != 0.5 {
		t.Fatalf("fallback output: got %f want 0.5", got)
	}
	if s1.IsSet(values.NeuronKey(values.Output, 2, 1)) {
		t.Fatal("reads must not write inherited values into the dependent snapshot")
	}

	if _, err := s1.Delta(2, 1); !errors.Is(err, model.ErrNotSet) {
		t.Fatalf("expected ErrNotSet, got %v", err)
	}
	if _, err := s0.Delta(2, 1); !errors.Is(err, model.ErrNotSet) {
		t.Fatalf("expected ErrNotSet on initializer, got %v", err)
	}
}

func TestSetInitializerRepointsFallback(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.MakeIsomorphic(0, "1"); err != nil {
		t.Fatalf("make isomorphic: %v", err)
	}
	if _, err := m.MakeIsomorphic(0, "2"); err != nil {
		t.Fatalf("make isomorphic: %v", err)
	}
	s0 := mustGet(t, m, 0)
	s1 := mustGet(t, m, 1)
	s2 := mustGet(t, m, 2)

	_ = s1.SetDelta(1, 0, 4.5)
	if _, err := s2.Delta(1, 0); !errors.Is(err, model.ErrNotSet) {
		t.Fatalf("expected ErrNotSet before repointing, got %v", err)
	}
	if err := m.SetInitializer(1); err != nil {
		t.Fatalf("set initializer: %v", err)
	}
	if d, err := s2.Delta(1, 0); err != nil || d != 4.5 {
		t.Fatalf("delta after repointing: d=%f err=%v", d, err)
	}
	if d, err := s0.Delta(1, 0); err != nil || d != 4.5 {
		t.Fatalf("old initializer should now fall back too: d=%f err=%v", d, err)
	}
	if err := m.SetInitializer(3); !errors.Is(err, model.ErrUnknownSnapshot) {
		t.Fatalf("expected ErrUnknownSnapshot, got %v", err)
	}
	if m.Initializer() != 1 {
		t.Fatalf("failed set must keep initializer, got %d", m.Initializer())
	}
}

func TestMakeIsomorphicBakesInheritedValues(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.MakeIsomorphic(0, "1"); err != nil {
		t.Fatalf("make isomorphic: %v", err)
	}
	s0 := mustGet(t, m, 0)
	s1 := mustGet(t, m, 1)
	_ = s0.SetBias(1, 1, 0.75)
	_ = s1.SetOutput(1, 0, 0.2)

	// clone snapshot 1, which inherits bias from 0 and owns output
	if _, err := m.MakeIsomorphic(1, "2"); err != nil {
		t.Fatalf("make isomorphic: %v", err)
	}
	s2 := mustGet(t, m, 2)
	if !s2.IsSet(values.NeuronKey(values.Bias, 1, 1)) {
		t.Fatal("inherited bias must be baked into the clone")
	}
	if !s2.IsSet(values.NeuronKey(values.Output, 1, 0)) {
		t.Fatal("own output must be copied into the clone")
	}
	if !s2.IsSet(values.AlphaKey()) {
		t.Fatal("inherited alpha must be baked into the clone")
	}

	// the clone no longer follows the initializer for baked values
	_ = s0.SetBias(1, 1, 9)
	if b, _ := s2.Bias(1, 1); b != 0.75 {
		t.Fatalf("baked bias changed with initializer: %f", b)
	}
}

func TestMakeIsomorphicErrors(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.MakeIsomorphic(5, "x"); !errors.Is(err, model.ErrUnknownSnapshot) {
		t.Fatalf("expected ErrUnknownSnapshot, got %v", err)
	}
	if _, err := m.MakeIsomorphic(0, "0"); !errors.Is(err, model.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if m.Count() != 1 {
		t.Fatalf("failed clones must not append, have %d", m.Count())
	}
}

func TestLookupByName(t *testing.T) {
	m := newTestManager(t)
	_, _ = m.MakeIsomorphic(0, "")
	_, _ = m.MakeIsomorphic(0, "best")

	index, err := m.IndexOf("best")
	if err != nil || index != 2 {
		t.Fatalf("index of best: %d %v", index, err)
	}
	if _, err := m.ByName("missing"); !errors.Is(err, model.ErrUnknownName) {
		t.Fatalf("expected ErrUnknownName, got %v", err)
	}
	if _, err := m.ByName(""); !errors.Is(err, model.ErrUnknownName) {
		t.Fatalf("unnamed snapshots are not addressable by name, got %v", err)
	}
	if diff := cmp.Diff([]string{"0", "", "best"}, m.Names()); diff != "" {
		t.Fatalf("unexpected names (-want +got):\n%s", diff)
	}
	latest, _ := m.Latest()
	if latest.Name() != "best" {
		t.Fatalf("unexpected latest snapshot %q", latest.Name())
	}
}

func TestAccessorBoundsAndValidation(t *testing.T) {
	m := newTestManager(t)
	s := mustGet(t, m, 0)

	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "input weight", err: s.SetWeight(0, 0, 0, 1), want: model.ErrOutOfRange},
		{name: "synapse past predecessor", err: s.SetWeight(1, 0, 2, 1), want: model.ErrOutOfRange},
		{name: "neuron past layer", err: s.SetBias(1, 2, 1), want: model.ErrOutOfRange},
		{name: "layer past chain", err: s.SetOutput(3, 0, 1), want: model.ErrOutOfRange},
		{name: "layer past chain is unknown", err: s.SetOutput(3, 0, 1), want: model.ErrUnknownLayer},
		{name: "flat weight past end", err: s.SetWeightAt(2, 4, 1), want: model.ErrOutOfRange},
		{name: "empty activation function", err: s.SetActivationFunction(1, ""), want: model.ErrInvalidValue},
		{name: "activation function layer", err: s.SetActivationFunction(9, "tanh"), want: model.ErrOutOfRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, tc.err)
			}
		})
	}
	if _, err := s.Weight(1, 0, 5); !errors.Is(err, model.ErrOutOfRange) {
		t.Fatalf("reads check bounds too, got %v", err)
	}
}

func TestNextName(t *testing.T) {
	m := newTestManager(t)
	if got := m.NextName(); got != "1" {
		t.Fatalf("next name: got %q want 1", got)
	}
	_, _ = m.MakeIsomorphic(0, "7")
	_, _ = m.MakeIsomorphic(0, "initializer")
	if got := m.NextName(); got != "8" {
		t.Fatalf("next name: got %q want 8", got)
	}
	if got := NewManager().NextName(); got != "0" {
		t.Fatalf("next name for empty manager: got %q want 0", got)
	}
}

func TestSortNames(t *testing.T) {
	names := []string{"1", "initializer", "02", "foo", "10", "aaa", "0"}
	SortNames(names)
	want := []string{"initializer", "0", "1", "02", "10", "aaa", "foo"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestActivationFunctionFallback(t *testing.T) {
	m := newTestManager(t)
	s0 := mustGet(t, m, 0)
	_, _ = m.MakeIsomorphic(0, "1")
	s1 := mustGet(t, m, 1)

	_ = s0.SetActivationFunction(1, "foobar")
	if af, err := s1.ActivationFunction(1); err != nil || af != "foobar" {
		t.Fatalf("fallback activation function: %q %v", af, err)
	}
	_ = s1.SetActivationFunction(1, "baz")
	if af, _ := s0.ActivationFunction(1); af != "foobar" {
		t.Fatalf("clone write leaked into initializer: %q", af)
	}
	if err := s1.Unset(values.LayerKey(values.ActivationFunction, 1)); err != nil {
		t.Fatalf("unset: %v", err)
	}
	if af, _ := s1.ActivationFunction(1); af != "foobar" {
		t.Fatalf("unset should restore fallback, got %q", af)
	}
}
