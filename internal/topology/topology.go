// Package topology models one snapshot's layer chain.
//
// Layers live in an arena indexed by creation order. Chain links are stored
// as indices, so a clone is a flat copy of the arena.
package topology

import (
	"fmt"
	"math"

	"mlpx/internal/model"
)

type Layer struct {
	ID          string
	Neurons     int
	predecessor int
	successor   int
}

const none = -1

// A frozen Topology rejects every change to its layers or links.
type Topology struct {
	layers []Layer
	byID   map[string]int
	frozen bool
}

func New() *Topology {
	return &Topology{byID: make(map[string]int)}
}

func (t *Topology) Len() int {
	return len(t.layers)
}

// Freeze fixes the current shape. It cannot be undone.
func (t *Topology) Freeze() {
	t.frozen = true
}

func (t *Topology) Frozen() bool {
	return t.frozen
}

func (t *Topology) checkMutable(what string) error {
	if t.frozen {
		return fmt.Errorf("%w: %s: layer shape is fixed", model.ErrInvalidChain, what)
	}
	return nil
}

// checkWeights rejects a link whose flattened weight count would not fit in
// an int.
func checkWeights(neurons, synapses int) error {
	if synapses > 0 && neurons > math.MaxInt/synapses {
		return fmt.Errorf("%w: %d neurons with %d synapses each overflows the weight index",
			model.ErrInvalidValue, neurons, synapses)
	}
	return nil
}

// AddLayer appends a layer and links it to the given existing neighbours.
// Linking is reciprocal: pred's successor and succ's predecessor become the
// new layer, so both must be free.
func (t *Topology) AddLayer(id string, neurons int, pred, succ *int) (int, error) {
	if err := t.checkMutable(fmt.Sprintf("add layer %q", id)); err != nil {
		return 0, err
	}
	if id == "" {
		return 0, fmt.Errorf("%w: layer id is required", model.ErrInvalidValue)
	}
	if _, exists := t.byID[id]; exists {
		return 0, fmt.Errorf("%w: layer %q", model.ErrDuplicateID, id)
	}
	if neurons < 1 {
		return 0, fmt.Errorf("%w: layer %q needs at least one neuron, got %d", model.ErrInvalidValue, id, neurons)
	}
	if pred != nil {
		if !t.inRange(*pred) {
			return 0, fmt.Errorf("%w: predecessor %d of layer %q does not exist", model.ErrInvalidChain, *pred, id)
		}
		if t.layers[*pred].successor != none {
			return 0, fmt.Errorf("%w: predecessor %d of layer %q already has successor %d",
				model.ErrInvalidChain, *pred, id, t.layers[*pred].successor)
		}
		if err := checkWeights(neurons, t.layers[*pred].Neurons); err != nil {
			return 0, fmt.Errorf("layer %q: %w", id, err)
		}
	}
	if succ != nil {
		if !t.inRange(*succ) {
			return 0, fmt.Errorf("%w: successor %d of layer %q does not exist", model.ErrInvalidChain, *succ, id)
		}
		if t.layers[*succ].predecessor != none {
			return 0, fmt.Errorf("%w: successor %d of layer %q already has predecessor %d",
				model.ErrInvalidChain, *succ, id, t.layers[*succ].predecessor)
		}
		if err := checkWeights(t.layers[*succ].Neurons, neurons); err != nil {
			return 0, fmt.Errorf("layer %q: %w", id, err)
		}
	}
	if pred != nil && succ != nil {
		// succ is the head of its run; reaching it from pred means the new
		// layer would close a loop.
		if *pred == *succ || t.head(*pred) == *succ {
			return 0, fmt.Errorf("%w: linking layer %q between %d and %d creates a cycle",
				model.ErrInvalidChain, id, *pred, *succ)
		}
	}

	index := len(t.layers)
	layer := Layer{ID: id, Neurons: neurons, predecessor: none, successor: none}
	if pred != nil {
		layer.predecessor = *pred
		t.layers[*pred].successor = index
	}
	if succ != nil {
		layer.successor = *succ
		t.layers[*succ].predecessor = index
	}
	t.layers = append(t.layers, layer)
	t.byID[id] = index
	return index, nil
}

// Link connects two existing, unlinked layers as pred -> succ. The codec uses
// it to rebuild chains whose links point forward in the arena.
func (t *Topology) Link(pred, succ int) error {
	if err := t.checkMutable(fmt.Sprintf("link %d -> %d", pred, succ)); err != nil {
		return err
	}
	if !t.inRange(pred) || !t.inRange(succ) {
		return fmt.Errorf("%w: link %d -> %d out of range", model.ErrInvalidChain, pred, succ)
	}
	if t.layers[pred].successor == succ && t.layers[succ].predecessor == pred {
		return nil
	}
	if t.layers[pred].successor != none {
		return fmt.Errorf("%w: layer %d already has successor %d", model.ErrInvalidChain, pred, t.layers[pred].successor)
	}
	if t.layers[succ].predecessor != none {
		return fmt.Errorf("%w: layer %d already has predecessor %d", model.ErrInvalidChain, succ, t.layers[succ].predecessor)
	}
	if pred == succ || t.head(pred) == succ {
		return fmt.Errorf("%w: link %d -> %d creates a cycle", model.ErrInvalidChain, pred, succ)
	}
	if err := checkWeights(t.layers[succ].Neurons, t.layers[pred].Neurons); err != nil {
		return fmt.Errorf("link %d -> %d: %w", pred, succ, err)
	}
	t.layers[pred].successor = succ
	t.layers[succ].predecessor = pred
	return nil
}

func (t *Topology) head(index int) int {
	for t.layers[index].predecessor != none {
		index = t.layers[index].predecessor
	}
	return index
}

func (t *Topology) inRange(index int) bool {
	return index >= 0 && index < len(t.layers)
}

// CheckLayer returns ErrUnknownLayer when index does not name a layer.
func (t *Topology) CheckLayer(index int) error {
	if !t.inRange(index) {
		return fmt.Errorf("%w: index %d (have %d layers)", model.ErrUnknownLayer, index, len(t.layers))
	}
	return nil
}

func (t *Topology) Resolve(id string) (int, error) {
	index, ok := t.byID[id]
	if !ok {
		return 0, fmt.Errorf("%w: id %q", model.ErrUnknownLayer, id)
	}
	return index, nil
}

func (t *Topology) ID(index int) (string, error) {
	if err := t.CheckLayer(index); err != nil {
		return "", err
	}
	return t.layers[index].ID, nil
}

func (t *Topology) Layer(index int) (Layer, error) {
	if err := t.CheckLayer(index); err != nil {
		return Layer{}, err
	}
	return t.layers[index], nil
}

func (t *Topology) NeuronCount(index int) (int, error) {
	if err := t.CheckLayer(index); err != nil {
		return 0, err
	}
	return t.layers[index].Neurons, nil
}

func (t *Topology) Predecessor(index int) (int, bool, error) {
	if err := t.CheckLayer(index); err != nil {
		return 0, false, err
	}
	p := t.layers[index].predecessor
	return p, p != none, nil
}

func (t *Topology) Successor(index int) (int, bool, error) {
	if err := t.CheckLayer(index); err != nil {
		return 0, false, err
	}
	s := t.layers[index].successor
	return s, s != none, nil
}

// SynapseCount is the number of inbound connections per neuron of the layer,
// which is the predecessor's neuron count. Layers without a predecessor have
// no weights.
func (t *Topology) SynapseCount(index int) (int, error) {
	if err := t.CheckLayer(index); err != nil {
		return 0, err
	}
	p := t.layers[index].predecessor
	if p == none {
		return 0, nil
	}
	return t.layers[p].Neurons, nil
}

// CheckNeuron validates a (layer, neuron) position.
func (t *Topology) CheckNeuron(index, neuron int) error {
	n, err := t.NeuronCount(index)
	if err != nil {
		return err
	}
	if neuron < 0 || neuron >= n {
		return fmt.Errorf("%w: neuron %d of layer %d (have %d)", model.ErrOutOfRange, neuron, index, n)
	}
	return nil
}

// CheckSynapse validates a (layer, neuron, synapse) position.
func (t *Topology) CheckSynapse(index, neuron, synapse int) error {
	if err := t.CheckNeuron(index, neuron); err != nil {
		return err
	}
	n, _ := t.SynapseCount(index)
	if synapse < 0 || synapse >= n {
		return fmt.Errorf("%w: synapse %d of layer %d neuron %d (have %d)", model.ErrOutOfRange, synapse, index, neuron, n)
	}
	return nil
}

// WeightCount is the length of the layer's flattened weight array.
func (t *Topology) WeightCount(index int) (int, error) {
	n, err := t.NeuronCount(index)
	if err != nil {
		return 0, err
	}
	s, _ := t.SynapseCount(index)
	return n * s, nil
}

// SplitWeightIndex maps a flat weight index to its (neuron, synapse) pair.
func (t *Topology) SplitWeightIndex(index, flat int) (int, int, error) {
	count, err := t.WeightCount(index)
	if err != nil {
		return 0, 0, err
	}
	if flat < 0 || flat >= count {
		return 0, 0, fmt.Errorf("%w: weight %d of layer %d (have %d)", model.ErrOutOfRange, flat, index, count)
	}
	s, _ := t.SynapseCount(index)
	return flat / s, flat % s, nil
}

// JoinWeightIndex is the inverse of SplitWeightIndex.
func (t *Topology) JoinWeightIndex(index, neuron, synapse int) (int, error) {
	if err := t.CheckSynapse(index, neuron, synapse); err != nil {
		return 0, err
	}
	s, _ := t.SynapseCount(index)
	return neuron*s + synapse, nil
}

// Order walks the chain from its head. Layers not reachable from the head of
// layer 0's run are appended afterwards in index order.
func (t *Topology) Order() []int {
	if len(t.layers) == 0 {
		return nil
	}
	seen := make([]bool, len(t.layers))
	order := make([]int, 0, len(t.layers))
	for start := range t.layers {
		if seen[start] {
			continue
		}
		for i := t.head(start); i != none && !seen[i]; i = t.layers[i].successor {
			seen[i] = true
			order = append(order, i)
		}
	}
	return order
}

// Validate reports whether the layers form exactly one chain covering them
// all.
func (t *Topology) Validate() error {
	if len(t.layers) == 0 {
		return nil
	}
	heads := 0
	for i := range t.layers {
		if t.layers[i].predecessor == none {
			heads++
		}
	}
	if heads != 1 {
		return fmt.Errorf("%w: expected one input layer, found %d", model.ErrInvalidChain, heads)
	}
	return nil
}

// Clone returns a structurally identical topology with its own storage. The
// clone is frozen when t is.
func (t *Topology) Clone() *Topology {
	out := &Topology{
		layers: append([]Layer(nil), t.layers...),
		byID:   make(map[string]int, len(t.byID)),
		frozen: t.frozen,
	}
	for k, v := range t.byID {
		out.byID[k] = v
	}
	return out
}

// Isomorphic reports whether other has the same layers, in the same order,
// with the same neuron counts and links.
func (t *Topology) Isomorphic(other *Topology) error {
	if len(t.layers) != len(other.layers) {
		return fmt.Errorf("layer count %d vs %d", len(t.layers), len(other.layers))
	}
	for i, a := range t.layers {
		b := other.layers[i]
		switch {
		case a.ID != b.ID:
			return fmt.Errorf("layer %d id %q vs %q", i, a.ID, b.ID)
		case a.Neurons != b.Neurons:
			return fmt.Errorf("layer %q neurons %d vs %d", a.ID, a.Neurons, b.Neurons)
		case a.predecessor != b.predecessor || a.successor != b.successor:
			return fmt.Errorf("layer %q links differ", a.ID)
		}
	}
	return nil
}
