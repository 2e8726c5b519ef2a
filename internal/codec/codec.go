// Package codec translates between a snapshot.Manager and its JSON file
// representation.
//
// Encode always writes schema version 2, which lists each set value once.
// Decode also reads the dense version 1 and the legacy version 0 layouts.
// Only locally set values are persisted, so a value that resolves through the
// initializer re-decodes as inherited, not set. Decoded snapshots are frozen.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"mlpx/internal/model"
	"mlpx/internal/snapshot"
	"mlpx/internal/values"
)

// Encode renders m in canonical form: snapshots by index, layers by index,
// fields in fixed order, entries by neuron then synapse. Its cost follows the
// number of set values, not the declared layer sizes.
func Encode(m *snapshot.Manager) ([]byte, error) {
	snapshots := make([]model.Snapshot, 0, m.Count())
	initializer := m.Initializer()
	doc := model.Document{
		Schema:      []any{model.SchemaName, model.CurrentSchemaVersion},
		Initializer: &initializer,
		Snapshots:   &snapshots,
	}

	for i := 0; i < m.Count(); i++ {
		s, err := m.Get(i)
		if err != nil {
			return nil, err
		}
		rec, err := encodeSnapshot(s)
		if err != nil {
			return nil, fmt.Errorf("encode snapshot %s: %w", snapshotLabel(i, s.Name()), err)
		}
		snapshots = append(snapshots, rec)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "\t")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeSnapshot(s *snapshot.Snapshot) (model.Snapshot, error) {
	topo := s.Topology()
	layers := make([]model.Layer, 0, topo.Len())
	rec := model.Snapshot{ID: s.Name(), Layers: &layers}

	for i := 0; i < topo.Len(); i++ {
		layer, err := topo.Layer(i)
		if err != nil {
			return model.Snapshot{}, err
		}
		neurons := layer.Neurons
		lr := model.Layer{LayerHeader: model.LayerHeader{ID: layer.ID, Neurons: &neurons}}
		if p, ok, _ := topo.Predecessor(i); ok {
			lr.Predecessor = &p
		}
		if n, ok, _ := topo.Successor(i); ok {
			lr.Successor = &n
		}
		layers = append(layers, lr)
	}

	store := s.Store()
	for _, key := range store.Keys() {
		if key.Field == values.Alpha {
			v, _ := store.Number(key)
			rec.Alpha = &v
			continue
		}
		if key.Layer < 0 || key.Layer >= len(layers) {
			return model.Snapshot{}, fmt.Errorf("%w: %s outside the layer chain", model.ErrOutOfRange, key)
		}
		lr := &layers[key.Layer]
		if key.Field == values.ActivationFunction {
			v, _ := store.Text(key)
			lr.ActivationFunction = &v
			continue
		}
		v, _ := store.Number(key)
		neuron := key.Neuron
		if key.Field == values.Weight {
			synapse := key.Synapse
			lr.Weights = append(lr.Weights, model.WeightEntry{Neuron: &neuron, Synapse: &synapse, Value: &v})
			continue
		}
		entries := neuronEntries(lr, key.Field)
		if entries == nil {
			return model.Snapshot{}, fmt.Errorf("%w: unknown field %s", model.ErrInvalidValue, key.Field)
		}
		*entries = append(*entries, model.NeuronEntry{Neuron: &neuron, Value: &v})
	}
	return rec, nil
}

// neuronEntries returns the slot for a per-neuron field, nil for others.
func neuronEntries(lr *model.Layer, field values.Field) *[]model.NeuronEntry {
	switch field {
	case values.Output:
		return &lr.Outputs
	case values.Activation:
		return &lr.Activations
	case values.Delta:
		return &lr.Deltas
	case values.Bias:
		return &lr.Biases
	}
	return nil
}

// Decode parses a document of any supported version. It never returns a
// partially populated manager.
func Decode(data []byte) (*snapshot.Manager, error) {
	version, err := probeVersion(data)
	if err != nil {
		return nil, err
	}
	var m *snapshot.Manager
	switch version {
	case model.CurrentSchemaVersion:
		var doc model.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, syntaxError(err)
		}
		m, err = build(doc)
	case model.DenseSchemaVersion:
		var doc model.DenseDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, syntaxError(err)
		}
		m, err = buildDense(doc)
	case model.LegacySchemaVersion:
		var doc model.LegacyDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, syntaxError(err)
		}
		m, err = buildLegacy(doc)
	default:
		return nil, fmt.Errorf("%w: %s version %d", model.ErrUnsupportedVersion, model.SchemaName, version)
	}
	if err != nil {
		return nil, err
	}
	for i := 0; i < m.Count(); i++ {
		s, _ := m.Get(i)
		s.Freeze()
	}
	return m, nil
}

// DecodeReader reads r to the end and decodes it.
func DecodeReader(r io.Reader) (*snapshot.Manager, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrIO, err)
	}
	return Decode(data)
}

func syntaxError(err error) error {
	return &DecodeError{Err: fmt.Errorf("%w: %w", model.ErrMalformedDocument, err)}
}

// Version reports the schema version declared by data without decoding the
// rest of the document.
func Version(data []byte) (int, error) {
	return probeVersion(data)
}

func probeVersion(data []byte) (int, error) {
	var probe model.SchemaProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, syntaxError(err)
	}
	loc := location{}
	if probe.Schema == nil {
		return 0, loc.fail("schema", "missing schema marker")
	}
	if len(probe.Schema) != 2 {
		return 0, loc.fail("schema", "schema has %d components, expected 2", len(probe.Schema))
	}
	name, ok := probe.Schema[0].(string)
	if !ok {
		return 0, loc.fail("schema", "schema component 0 is not a string: %v", probe.Schema[0])
	}
	if name != model.SchemaName {
		return 0, fmt.Errorf("%w: schema %q, expected %q", model.ErrUnsupportedVersion, name, model.SchemaName)
	}
	version, ok := probe.Schema[1].(float64)
	if !ok || version != math.Trunc(version) {
		return 0, loc.fail("schema", "schema version is not an integer: %v", probe.Schema[1])
	}
	return int(version), nil
}

func build(doc model.Document) (*snapshot.Manager, error) {
	if doc.Snapshots == nil {
		return nil, location{}.fail("snapshots", "missing snapshot list")
	}
	m := snapshot.NewManager()
	for i, rec := range *doc.Snapshots {
		loc := location{snapshot: snapshotLabel(i, rec.ID)}
		_, s, err := m.NewSnapshot(rec.ID)
		if err != nil {
			return nil, loc.wrap("id", err)
		}
		if err := buildSnapshot(s, rec, loc); err != nil {
			return nil, err
		}
	}
	if err := setInitializer(m, initializerOrZero(doc.Initializer)); err != nil {
		return nil, err
	}
	return m, nil
}

func buildDense(doc model.DenseDocument) (*snapshot.Manager, error) {
	if doc.Snapshots == nil {
		return nil, location{}.fail("snapshots", "missing snapshot list")
	}
	m := snapshot.NewManager()
	for i, rec := range *doc.Snapshots {
		loc := location{snapshot: snapshotLabel(i, rec.ID)}
		_, s, err := m.NewSnapshot(rec.ID)
		if err != nil {
			return nil, loc.wrap("id", err)
		}
		if err := buildDenseSnapshot(s, rec, loc); err != nil {
			return nil, err
		}
	}
	if err := setInitializer(m, initializerOrZero(doc.Initializer)); err != nil {
		return nil, err
	}
	return m, nil
}

func initializerOrZero(index *int) int {
	if index == nil {
		return 0
	}
	return *index
}

func setInitializer(m *snapshot.Manager, index int) error {
	if m.Count() == 0 {
		if index != 0 {
			return location{}.fail("initializer", "initializer %d set on a document without snapshots", index)
		}
		return nil
	}
	if err := m.SetInitializer(index); err != nil {
		return location{}.wrap("initializer", err)
	}
	return nil
}

// buildChain adds every layer, then links them, then sets activation
// functions. Links may point forward because every layer exists before any
// link is checked.
func buildChain(s *snapshot.Snapshot, headers []model.LayerHeader, loc location) error {
	topo := s.Topology()
	for i, h := range headers {
		lloc := loc.inLayer(layerLabel(i, h.ID))
		if h.ID == "" {
			return lloc.fail("id", "missing layer id")
		}
		if h.Neurons == nil {
			return lloc.fail("neurons", "missing neuron count")
		}
		if _, err := topo.AddLayer(h.ID, *h.Neurons, nil, nil); err != nil {
			return lloc.wrap("neurons", err)
		}
	}

	n := len(headers)
	for i, h := range headers {
		lloc := loc.inLayer(layerLabel(i, h.ID))
		if h.Successor != nil {
			if *h.Successor < 0 || *h.Successor >= n {
				return lloc.fail("successor", "successor index %d out of range (have %d layers)", *h.Successor, n)
			}
			if err := topo.Link(i, *h.Successor); err != nil {
				return lloc.wrap("successor", err)
			}
		}
		if h.Predecessor != nil {
			if *h.Predecessor < 0 || *h.Predecessor >= n {
				return lloc.fail("predecessor", "predecessor index %d out of range (have %d layers)", *h.Predecessor, n)
			}
			if err := topo.Link(*h.Predecessor, i); err != nil {
				return lloc.wrap("predecessor", err)
			}
		}
	}
	for i, h := range headers {
		lloc := loc.inLayer(layerLabel(i, h.ID))
		p, hasPred, _ := topo.Predecessor(i)
		if hasPred != (h.Predecessor != nil) || (hasPred && p != *h.Predecessor) {
			return lloc.fail("predecessor", "predecessor does not match the layer that links to it")
		}
		sc, hasSucc, _ := topo.Successor(i)
		if hasSucc != (h.Successor != nil) || (hasSucc && sc != *h.Successor) {
			return lloc.fail("successor", "successor does not match the layer that links to it")
		}
	}

	for i, h := range headers {
		if h.ActivationFunction == nil {
			continue
		}
		if err := s.SetActivationFunction(i, *h.ActivationFunction); err != nil {
			return loc.inLayer(layerLabel(i, h.ID)).wrap("activation_function", err)
		}
	}
	return nil
}

func setAlpha(s *snapshot.Snapshot, alpha *float64, loc location) error {
	if alpha == nil {
		return nil
	}
	if err := s.SetAlpha(*alpha); err != nil {
		return loc.wrap("alpha", err)
	}
	return nil
}

func buildSnapshot(s *snapshot.Snapshot, rec model.Snapshot, loc location) error {
	if rec.Layers == nil {
		return loc.fail("layers", "missing layer list")
	}
	layers := *rec.Layers
	headers := make([]model.LayerHeader, len(layers))
	for i, lr := range layers {
		headers[i] = lr.LayerHeader
	}
	if err := buildChain(s, headers, loc); err != nil {
		return err
	}

	for i, lr := range layers {
		lloc := loc.inLayer(layerLabel(i, lr.ID))
		for j, e := range lr.Weights {
			if e.Neuron == nil || e.Synapse == nil || e.Value == nil {
				return lloc.fail(values.Weight.String(), "entry %d needs neuron, synapse and value", j)
			}
			if err := setOnce(s, values.WeightKey(i, *e.Neuron, *e.Synapse), *e.Value, lloc, j); err != nil {
				return err
			}
		}
		for _, field := range values.NeuronFields {
			for j, e := range *neuronEntries(&lr, field) {
				if e.Neuron == nil || e.Value == nil {
					return lloc.fail(field.String(), "entry %d needs neuron and value", j)
				}
				if err := setOnce(s, values.NeuronKey(field, i, *e.Neuron), *e.Value, lloc, j); err != nil {
					return err
				}
			}
		}
	}
	return setAlpha(s, rec.Alpha, loc)
}

// setOnce stores one listed entry, rejecting a position listed twice.
func setOnce(s *snapshot.Snapshot, key values.Key, v float64, loc location, entry int) error {
	field := key.Field.String()
	if s.IsSet(key) {
		return loc.fail(field, "entry %d repeats %s", entry, key)
	}
	if err := s.Set(key, values.Value{Number: v}); err != nil {
		return loc.wrap(field, fmt.Errorf("entry %d: %w", entry, err))
	}
	return nil
}

func buildDenseSnapshot(s *snapshot.Snapshot, rec model.DenseSnapshot, loc location) error {
	if rec.Layers == nil {
		return loc.fail("layers", "missing layer list")
	}
	layers := *rec.Layers
	headers := make([]model.LayerHeader, len(layers))
	for i, lr := range layers {
		headers[i] = lr.LayerHeader
	}
	if err := buildChain(s, headers, loc); err != nil {
		return err
	}

	topo := s.Topology()
	for i, lr := range layers {
		lloc := loc.inLayer(layerLabel(i, lr.ID))
		weights, _ := topo.WeightCount(i)
		synapses, _ := topo.SynapseCount(i)
		if err := fillSlots(lr.Weights, weights, lloc, values.Weight.String(), func(j int, v float64) error {
			return s.SetWeight(i, j/synapses, j%synapses, v)
		}); err != nil {
			return err
		}
		neurons := *lr.Neurons
		fields := []struct {
			field values.Field
			data  []*float64
		}{
			{values.Output, lr.Outputs},
			{values.Activation, lr.Activations},
			{values.Delta, lr.Deltas},
			{values.Bias, lr.Biases},
		}
		for _, f := range fields {
			field := f.field
			if err := fillSlots(f.data, neurons, lloc, field.String(), func(j int, v float64) error {
				return s.Set(values.NeuronKey(field, i, j), values.Value{Number: v})
			}); err != nil {
				return err
			}
		}
	}
	return setAlpha(s, rec.Alpha, loc)
}

func fillSlots(data []*float64, want int, loc location, field string, set func(int, float64) error) error {
	if data == nil {
		return nil
	}
	if len(data) != want {
		return loc.fail(field, "array of length %d, should be %d", len(data), want)
	}
	for j, v := range data {
		if v == nil {
			continue
		}
		if err := set(j, *v); err != nil {
			return loc.wrap(field, err)
		}
	}
	return nil
}
