package topology

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mlpx/internal/model"
)

func intp(v int) *int { return &v }

func threeLayerChain(t *testing.T) *Topology {
	t.Helper()
	topo := New()
	if _, err := topo.AddLayer("input", 2, nil, nil); err != nil {
		t.Fatalf("add input: %v", err)
	}
	if _, err := topo.AddLayer("hidden0", 2, intp(0), nil); err != nil {
		t.Fatalf("add hidden0: %v", err)
	}
	if _, err := topo.AddLayer("output", 3, intp(1), nil); err != nil {
		t.Fatalf("add output: %v", err)
	}
	return topo
}

func TestThreeLayerChainLinks(t *testing.T) {
	topo := threeLayerChain(t)

	p, ok, err := topo.Predecessor(1)
	if err != nil || !ok || p != 0 {
		t.Fatalf("predecessor(hidden): p=%d ok=%t err=%v", p, ok, err)
	}
	s, ok, err := topo.Successor(1)
	if err != nil || !ok || s != 2 {
		t.Fatalf("successor(hidden): s=%d ok=%t err=%v", s, ok, err)
	}
	if _, ok, _ := topo.Predecessor(0); ok {
		t.Fatal("input layer must not have a predecessor")
	}
	if _, ok, _ := topo.Successor(2); ok {
		t.Fatal("output layer must not have a successor")
	}
	if err := topo.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestAddLayerErrors(t *testing.T) {
	cases := []struct {
		name    string
		id      string
		neurons int
		pred    *int
		succ    *int
		want    error
	}{
		{name: "duplicate id", id: "hidden0", neurons: 1, want: model.ErrDuplicateID},
		{name: "missing predecessor", id: "x", neurons: 1, pred: intp(7), want: model.ErrInvalidChain},
		{name: "negative successor", id: "x", neurons: 1, succ: intp(-1), want: model.ErrInvalidChain},
		{name: "predecessor taken", id: "x", neurons: 1, pred: intp(0), want: model.ErrInvalidChain},
		{name: "successor taken", id: "x", neurons: 1, succ: intp(2), want: model.ErrInvalidChain},
		{name: "zero neurons", id: "x", neurons: 0, want: model.ErrInvalidValue},
		{name: "empty id", id: "", neurons: 1, want: model.ErrInvalidValue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			topo := threeLayerChain(t)
			if _, err := topo.AddLayer(tc.id, tc.neurons, tc.pred, tc.succ); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if topo.Len() != 3 {
				t.Fatalf("failed add must not change the topology, have %d layers", topo.Len())
			}
		})
	}
}

func TestAddLayerRejectsCycle(t *testing.T) {
	topo := New()
	_, _ = topo.AddLayer("a", 1, nil, nil)
	_, _ = topo.AddLayer("b", 1, intp(0), nil)
	// b's successor is free and a's predecessor is free, but b -> c -> a
	// would close the loop a -> b -> c -> a.
	if _, err := topo.AddLayer("c", 1, intp(1), intp(0)); !errors.Is(err, model.ErrInvalidChain) {
		t.Fatalf("expected cycle rejection, got %v", err)
	}
	if err := topo.Link(1, 0); !errors.Is(err, model.ErrInvalidChain) {
		t.Fatalf("expected cycle rejection from Link, got %v", err)
	}
}

func TestAddLayerBetweenRuns(t *testing.T) {
	topo := New()
	_, _ = topo.AddLayer("input", 2, nil, nil)
	_, _ = topo.AddLayer("output", 1, nil, nil)
	if _, err := topo.AddLayer("hidden", 4, intp(0), intp(1)); err != nil {
		t.Fatalf("add bridging layer: %v", err)
	}
	if diff := cmp.Diff([]int{0, 2, 1}, topo.Order()); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	if err := topo.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateDetectsSplitChain(t *testing.T) {
	topo := New()
	_, _ = topo.AddLayer("input", 2, nil, nil)
	_, _ = topo.AddLayer("orphan", 2, nil, nil)
	if err := topo.Validate(); !errors.Is(err, model.ErrInvalidChain) {
		t.Fatalf("expected ErrInvalidChain, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	topo := threeLayerChain(t)
	index, err := topo.Resolve("output")
	if err != nil || index != 2 {
		t.Fatalf("resolve output: index=%d err=%v", index, err)
	}
	id, err := topo.ID(1)
	if err != nil || id != "hidden0" {
		t.Fatalf("id(1): id=%q err=%v", id, err)
	}
	if _, err := topo.Resolve("missing"); !errors.Is(err, model.ErrUnknownLayer) {
		t.Fatalf("expected ErrUnknownLayer, got %v", err)
	}
	if _, err := topo.ID(3); !errors.Is(err, model.ErrUnknownLayer) {
		t.Fatalf("expected ErrUnknownLayer, got %v", err)
	}
}

func TestWeightIndexing(t *testing.T) {
	topo := threeLayerChain(t)

	if n, _ := topo.WeightCount(0); n != 0 {
		t.Fatalf("input layer must have no weights, got %d", n)
	}
	if n, _ := topo.WeightCount(2); n != 6 {
		t.Fatalf("output layer weights: got %d want 6", n)
	}
	neuron, synapse, err := topo.SplitWeightIndex(1, 3)
	if err != nil || neuron != 1 || synapse != 1 {
		t.Fatalf("split 3: neuron=%d synapse=%d err=%v", neuron, synapse, err)
	}
	flat, err := topo.JoinWeightIndex(2, 2, 1)
	if err != nil || flat != 5 {
		t.Fatalf("join: flat=%d err=%v", flat, err)
	}
	if _, _, err := topo.SplitWeightIndex(1, 4); !errors.Is(err, model.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if err := topo.CheckSynapse(0, 0, 0); !errors.Is(err, model.ErrOutOfRange) {
		t.Fatalf("input synapse must be out of range, got %v", err)
	}
	if err := topo.CheckNeuron(1, 2); !errors.Is(err, model.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestCloneIsStructuralCopy(t *testing.T) {
	topo := threeLayerChain(t)
	clone := topo.Clone()
	if err := topo.Isomorphic(clone); err != nil {
		t.Fatalf("clone must be isomorphic: %v", err)
	}

	if _, err := clone.AddLayer("extra", 1, intp(2), nil); err != nil {
		t.Fatalf("extend clone: %v", err)
	}
	if topo.Len() != 3 {
		t.Fatalf("source grew with clone: %d layers", topo.Len())
	}
	if _, ok, _ := topo.Successor(2); ok {
		t.Fatal("clone link leaked into source")
	}
	if _, err := topo.Resolve("extra"); err == nil {
		t.Fatal("clone id leaked into source")
	}
	if err := topo.Isomorphic(clone); err == nil {
		t.Fatal("expected isomorphism failure after extending clone")
	}
}

func TestFrozenTopologyRejectsChanges(t *testing.T) {
	topo := threeLayerChain(t)
	topo.Freeze()
	if !topo.Frozen() {
		t.Fatal("expected frozen topology")
	}

	if _, err := topo.AddLayer("extra", 3, intp(2), nil); !errors.Is(err, model.ErrInvalidChain) {
		t.Fatalf("append: expected ErrInvalidChain, got %v", err)
	}
	if _, err := topo.AddLayer("pre", 5, nil, intp(0)); !errors.Is(err, model.ErrInvalidChain) {
		t.Fatalf("prepend: expected ErrInvalidChain, got %v", err)
	}
	if topo.Len() != 3 {
		t.Fatalf("frozen topology changed to %d layers", topo.Len())
	}
	if n, _ := topo.SynapseCount(0); n != 0 {
		t.Fatalf("input layer gained %d synapses", n)
	}

	clone := topo.Clone()
	if !clone.Frozen() {
		t.Fatal("clone of a frozen topology must be frozen")
	}
	if _, err := clone.AddLayer("extra", 1, intp(2), nil); !errors.Is(err, model.ErrInvalidChain) {
		t.Fatalf("clone: expected ErrInvalidChain, got %v", err)
	}
}

func TestFrozenTopologyRejectsLink(t *testing.T) {
	topo := New()
	_, _ = topo.AddLayer("input", 2, nil, nil)
	_, _ = topo.AddLayer("output", 1, nil, nil)
	topo.Freeze()
	if err := topo.Link(0, 1); !errors.Is(err, model.ErrInvalidChain) {
		t.Fatalf("expected ErrInvalidChain, got %v", err)
	}
}

func TestWeightCountOverflowRejected(t *testing.T) {
	huge := math.MaxInt/2 + 1

	topo := New()
	if _, err := topo.AddLayer("input", huge, nil, nil); err != nil {
		t.Fatalf("add input: %v", err)
	}
	if _, err := topo.AddLayer("output", 2, intp(0), nil); !errors.Is(err, model.ErrInvalidValue) {
		t.Fatalf("append: expected ErrInvalidValue, got %v", err)
	}
	if _, err := topo.AddLayer("pre", 2, nil, intp(0)); !errors.Is(err, model.ErrInvalidValue) {
		t.Fatalf("prepend: expected ErrInvalidValue, got %v", err)
	}
	if _, err := topo.AddLayer("bias", 1, nil, intp(0)); err != nil {
		t.Fatalf("prepend single neuron layer: %v", err)
	}

	wide := New()
	_, _ = wide.AddLayer("input", huge, nil, nil)
	_, _ = wide.AddLayer("output", 3, nil, nil)
	if err := wide.Link(0, 1); !errors.Is(err, model.ErrInvalidValue) {
		t.Fatalf("link: expected ErrInvalidValue, got %v", err)
	}
	if _, ok, _ := wide.Successor(0); ok {
		t.Fatal("rejected link must leave layers unlinked")
	}
}
