package snapshot

import (
	"fmt"

	"mlpx/internal/model"
	"mlpx/internal/topology"
	"mlpx/internal/values"
)

// Snapshot is one versioned instance of the network: a layer chain plus the
// values set locally on it. Reads that miss locally fall back to the owning
// manager's initializer snapshot.
type Snapshot struct {
	name     string
	topology *topology.Topology
	store    *values.Store
	owner    *Manager
}

func (s *Snapshot) Name() string {
	return s.name
}

// Topology exposes the layer chain. Layers may be added while building a
// snapshot from scratch; the chain freezes on the first value set and when
// the snapshot is cloned or decoded.
func (s *Snapshot) Topology() *topology.Topology {
	return s.topology
}

// Store exposes the snapshot's own values, without fallback.
func (s *Snapshot) Store() *values.Store {
	return s.store
}

func (s *Snapshot) AddLayer(id string, neurons int, pred, succ *int) (int, error) {
	return s.topology.AddLayer(id, neurons, pred, succ)
}

// CheckKey validates every index component of key against the topology. A
// layer index past the chain matches both ErrOutOfRange and ErrUnknownLayer.
func (s *Snapshot) CheckKey(key values.Key) error {
	if key.Field == values.Alpha {
		return nil
	}
	if err := s.topology.CheckLayer(key.Layer); err != nil {
		return fmt.Errorf("%w: %w", model.ErrOutOfRange, err)
	}
	switch key.Field {
	case values.ActivationFunction:
		return nil
	case values.Weight:
		return s.topology.CheckSynapse(key.Layer, key.Neuron, key.Synapse)
	case values.Output, values.Activation, values.Delta, values.Bias:
		return s.topology.CheckNeuron(key.Layer, key.Neuron)
	default:
		return fmt.Errorf("%w: unknown field %s", model.ErrInvalidValue, key.Field)
	}
}

// Get resolves key locally, then against the initializer snapshot.
func (s *Snapshot) Get(key values.Key) (values.Value, error) {
	if err := s.CheckKey(key); err != nil {
		return values.Value{}, err
	}
	if v, ok := s.store.Lookup(key); ok {
		return v, nil
	}
	if init := s.initializer(); init != nil && init != s {
		if v, ok := init.store.Lookup(key); ok {
			return v, nil
		}
	}
	return values.Value{}, fmt.Errorf("%w: %s in snapshot %s", model.ErrNotSet, key, s.label())
}

// Resolvable reports whether Get would succeed for an in-range key.
func (s *Snapshot) Resolvable(key values.Key) bool {
	_, err := s.Get(key)
	return err == nil
}

// IsSet reports whether key is stored on this snapshot itself.
func (s *Snapshot) IsSet(key values.Key) bool {
	return s.store.Has(key)
}

func (s *Snapshot) Set(key values.Key, v values.Value) error {
	if err := s.CheckKey(key); err != nil {
		return err
	}
	if err := s.store.Set(key, v); err != nil {
		return err
	}
	s.topology.Freeze()
	return nil
}

// Freeze fixes the layer chain without setting a value.
func (s *Snapshot) Freeze() {
	s.topology.Freeze()
}

// Unset removes a local value so reads fall back again.
func (s *Snapshot) Unset(key values.Key) error {
	if err := s.CheckKey(key); err != nil {
		return err
	}
	s.store.Delete(key)
	return nil
}

func (s *Snapshot) number(key values.Key) (float64, error) {
	v, err := s.Get(key)
	return v.Number, err
}

func (s *Snapshot) setNumber(key values.Key, v float64) error {
	return s.Set(key, values.Value{Number: v})
}

func (s *Snapshot) Weight(layer, neuron, synapse int) (float64, error) {
	return s.number(values.WeightKey(layer, neuron, synapse))
}

func (s *Snapshot) SetWeight(layer, neuron, synapse int, v float64) error {
	return s.setNumber(values.WeightKey(layer, neuron, synapse), v)
}

// WeightAt reads a weight by its position in the layer's flattened weight
// array (neuron-major).
func (s *Snapshot) WeightAt(layer, flat int) (float64, error) {
	neuron, synapse, err := s.topology.SplitWeightIndex(layer, flat)
	if err != nil {
		return 0, err
	}
	return s.Weight(layer, neuron, synapse)
}

func (s *Snapshot) SetWeightAt(layer, flat int, v float64) error {
	neuron, synapse, err := s.topology.SplitWeightIndex(layer, flat)
	if err != nil {
		return err
	}
	return s.SetWeight(layer, neuron, synapse, v)
}

func (s *Snapshot) Output(layer, neuron int) (float64, error) {
	return s.number(values.NeuronKey(values.Output, layer, neuron))
}

func (s *Snapshot) SetOutput(layer, neuron int, v float64) error {
	return s.setNumber(values.NeuronKey(values.Output, layer, neuron), v)
}

func (s *Snapshot) Activation(layer, neuron int) (float64, error) {
	return s.number(values.NeuronKey(values.Activation, layer, neuron))
}

func (s *Snapshot) SetActivation(layer, neuron int, v float64) error {
	return s.setNumber(values.NeuronKey(values.Activation, layer, neuron), v)
}

func (s *Snapshot) Delta(layer, neuron int) (float64, error) {
	return s.number(values.NeuronKey(values.Delta, layer, neuron))
}

func (s *Snapshot) SetDelta(layer, neuron int, v float64) error {
	return s.setNumber(values.NeuronKey(values.Delta, layer, neuron), v)
}

func (s *Snapshot) Bias(layer, neuron int) (float64, error) {
	return s.number(values.NeuronKey(values.Bias, layer, neuron))
}

func (s *Snapshot) SetBias(layer, neuron int, v float64) error {
	return s.setNumber(values.NeuronKey(values.Bias, layer, neuron), v)
}

func (s *Snapshot) ActivationFunction(layer int) (string, error) {
	v, err := s.Get(values.LayerKey(values.ActivationFunction, layer))
	return v.Text, err
}

func (s *Snapshot) SetActivationFunction(layer int, name string) error {
	return s.Set(values.LayerKey(values.ActivationFunction, layer), values.Value{Text: name})
}

func (s *Snapshot) Alpha() (float64, error) {
	return s.number(values.AlphaKey())
}

func (s *Snapshot) SetAlpha(v float64) error {
	return s.setNumber(values.AlphaKey(), v)
}

// Keys enumerates every in-range key of the snapshot's shape, in canonical
// order, whether or not it currently resolves.
func (s *Snapshot) Keys() []values.Key {
	var keys []values.Key
	n := s.topology.Len()
	for layer := 0; layer < n; layer++ {
		neurons, _ := s.topology.NeuronCount(layer)
		synapses, _ := s.topology.SynapseCount(layer)
		for neuron := 0; neuron < neurons; neuron++ {
			for synapse := 0; synapse < synapses; synapse++ {
				keys = append(keys, values.WeightKey(layer, neuron, synapse))
			}
		}
	}
	for _, field := range values.NeuronFields {
		for layer := 0; layer < n; layer++ {
			neurons, _ := s.topology.NeuronCount(layer)
			for neuron := 0; neuron < neurons; neuron++ {
				keys = append(keys, values.NeuronKey(field, layer, neuron))
			}
		}
	}
	for layer := 0; layer < n; layer++ {
		keys = append(keys, values.LayerKey(values.ActivationFunction, layer))
	}
	return append(keys, values.AlphaKey())
}

func (s *Snapshot) initializer() *Snapshot {
	if s.owner == nil {
		return nil
	}
	init, err := s.owner.Get(s.owner.initializer)
	if err != nil {
		return nil
	}
	return init
}

func (s *Snapshot) label() string {
	if s.name != "" {
		return fmt.Sprintf("%q", s.name)
	}
	if s.owner != nil {
		if i := s.owner.indexOfSnapshot(s); i >= 0 {
			return fmt.Sprintf("#%d", i)
		}
	}
	return "(detached)"
}
