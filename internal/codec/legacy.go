package codec

import (
	"fmt"
	"sort"

	"mlpx/internal/model"
	"mlpx/internal/snapshot"
	"mlpx/internal/values"
)

// legacyInitializerID names the snapshot that version 0 files treat as the
// initializer.
const legacyInitializerID = "initializer"

func buildLegacy(doc model.LegacyDocument) (*snapshot.Manager, error) {
	if doc.Snapshots == nil {
		return nil, location{}.fail("snapshots", "missing snapshot table")
	}
	ids := make([]string, 0, len(doc.Snapshots))
	for id := range doc.Snapshots {
		ids = append(ids, id)
	}
	snapshot.SortNames(ids)

	m := snapshot.NewManager()
	initializer := 0
	for i, id := range ids {
		loc := location{snapshot: snapshotLabel(i, id)}
		_, s, err := m.NewSnapshot(id)
		if err != nil {
			return nil, loc.wrap("id", err)
		}
		if err := buildLegacySnapshot(s, doc.Snapshots[id], loc); err != nil {
			return nil, err
		}
		if id == legacyInitializerID {
			initializer = i
		}
	}
	if err := setInitializer(m, initializer); err != nil {
		return nil, err
	}
	return m, nil
}

// legacyOrder walks each chain from its head. Heads are visited in id order
// so the result is deterministic for files holding several runs.
func legacyOrder(layers map[string]model.LegacyLayer, loc location) ([]string, error) {
	ids := make([]string, 0, len(layers))
	for id, layer := range layers {
		l := loc.inLayer(quoted(id))
		if layer.Neurons == nil {
			return nil, l.fail("neurons", "missing neuron count")
		}
		if layer.Predecessor != "" {
			if _, ok := layers[layer.Predecessor]; !ok {
				return nil, l.fail("predecessor", "references nonexistent layer %q", layer.Predecessor)
			}
			if layers[layer.Predecessor].Successor != id {
				return nil, l.fail("predecessor", "predecessor %q has a different successor %q",
					layer.Predecessor, layers[layer.Predecessor].Successor)
			}
		}
		if layer.Successor != "" {
			if _, ok := layers[layer.Successor]; !ok {
				return nil, l.fail("successor", "references nonexistent layer %q", layer.Successor)
			}
			if layers[layer.Successor].Predecessor != id {
				return nil, l.fail("successor", "successor %q has a different predecessor %q",
					layer.Successor, layers[layer.Successor].Predecessor)
			}
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	order := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if layers[id].Predecessor != "" {
			continue
		}
		for cur := id; cur != "" && !seen[cur]; cur = layers[cur].Successor {
			seen[cur] = true
			order = append(order, cur)
		}
	}
	if len(order) != len(ids) {
		for _, id := range ids {
			if !seen[id] {
				return nil, loc.inLayer(quoted(id)).fail("predecessor", "layer is part of a cycle")
			}
		}
	}
	return order, nil
}

func buildLegacySnapshot(s *snapshot.Snapshot, rec model.LegacySnapshot, loc location) error {
	if rec.Layers == nil {
		return loc.fail("layers", "missing layer table")
	}
	order, err := legacyOrder(rec.Layers, loc)
	if err != nil {
		return err
	}

	index := make(map[string]int, len(order))
	for _, id := range order {
		layer := rec.Layers[id]
		lloc := loc.inLayer(layerLabel(len(index), id))
		var pred *int
		if layer.Predecessor != "" {
			p := index[layer.Predecessor]
			pred = &p
		}
		i, err := s.AddLayer(id, *layer.Neurons, pred, nil)
		if err != nil {
			return lloc.wrap("neurons", err)
		}
		index[id] = i
	}

	topo := s.Topology()
	for _, id := range order {
		layer := rec.Layers[id]
		i := index[id]
		lloc := loc.inLayer(layerLabel(i, id))
		if layer.ActivationFunction != "" {
			if err := s.SetActivationFunction(i, layer.ActivationFunction); err != nil {
				return lloc.wrap("activation_function", err)
			}
		}

		// Version 0 never checked weights on input layers and some writers
		// padded them, so they carry nothing addressable and are dropped.
		weights, _ := topo.WeightCount(i)
		synapses, _ := topo.SynapseCount(i)
		if synapses > 0 {
			if err := fillDense(layer.Weights, weights, lloc, values.Weight.String(), func(j int, v float64) error {
				return s.SetWeight(i, j/synapses, j%synapses, v)
			}); err != nil {
				return err
			}
		}
		fields := []struct {
			field values.Field
			data  []float64
		}{
			{values.Output, layer.Outputs},
			{values.Activation, layer.Activations},
			{values.Delta, layer.Deltas},
			{values.Bias, layer.Biases},
		}
		for _, f := range fields {
			field := f.field
			if err := fillDense(f.data, *layer.Neurons, lloc, field.String(), func(j int, v float64) error {
				return s.Set(values.NeuronKey(field, i, j), values.Value{Number: v})
			}); err != nil {
				return err
			}
		}
	}

	if rec.Alpha != nil {
		if err := s.SetAlpha(*rec.Alpha); err != nil {
			return loc.wrap("alpha", err)
		}
	}
	return nil
}

func fillDense(data []float64, want int, loc location, field string, set func(int, float64) error) error {
	if data == nil {
		return nil
	}
	if len(data) != want {
		return loc.fail(field, "array of length %d, should be %d", len(data), want)
	}
	for j, v := range data {
		if err := set(j, v); err != nil {
			return loc.wrap(field, err)
		}
	}
	return nil
}

func quoted(id string) string {
	return fmt.Sprintf("%q", id)
}
