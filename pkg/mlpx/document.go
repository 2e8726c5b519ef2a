// Package mlpx is the entry point for reading, editing and writing MLPX
// documents: ordered snapshots of a multilayer perceptron's layer chain and
// training values.
//
// A Document is not safe for concurrent mutation. Embedders that share one
// across goroutines serialize access themselves, for example through
// Registry.With.
package mlpx

import (
	"fmt"
	"log/slog"
	"os"

	"mlpx/internal/codec"
	"mlpx/internal/model"
	"mlpx/internal/snapshot"
	"mlpx/internal/values"
)

type options struct {
	logger *slog.Logger
}

type Option func(*options)

// WithLogger routes lifecycle events (open, save, close) to logger at debug
// level. Documents are silent by default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type Document struct {
	manager *snapshot.Manager
	path    string
	logger  *slog.Logger
	closed  bool
}

// New returns an empty document with no snapshots and initializer index 0.
func New(opts ...Option) *Document {
	o := buildOptions(opts)
	return &Document{manager: snapshot.NewManager(), logger: o.logger}
}

// FromManager wraps snapshots built elsewhere in the module, such as a
// generated network.
func FromManager(m *snapshot.Manager, opts ...Option) *Document {
	o := buildOptions(opts)
	return &Document{manager: m, logger: o.logger}
}

// Open reads and decodes the document stored at path.
func Open(path string, opts ...Option) (*Document, error) {
	o := buildOptions(opts)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", model.ErrIO, path, err)
	}
	m, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	o.logger.Debug("document opened", "path", path, "snapshots", m.Count(), "bytes", len(data))
	return &Document{manager: m, path: path, logger: o.logger}, nil
}

// Decode builds a document from encoded bytes.
func Decode(data []byte, opts ...Option) (*Document, error) {
	o := buildOptions(opts)
	m, err := codec.Decode(data)
	if err != nil {
		return nil, err
	}
	return &Document{manager: m, logger: o.logger}, nil
}

// Path is the file the document was opened from or last saved to.
func (d *Document) Path() string {
	return d.path
}

func (d *Document) live() (*snapshot.Manager, error) {
	if d == nil || d.closed || d.manager == nil {
		return nil, model.ErrInvalidHandle
	}
	return d.manager, nil
}

// Manager exposes the underlying snapshot manager for in-module tooling.
func (d *Document) Manager() (*snapshot.Manager, error) {
	return d.live()
}

func (d *Document) Encode() ([]byte, error) {
	m, err := d.live()
	if err != nil {
		return nil, err
	}
	return codec.Encode(m)
}

// Save encodes the document and atomically replaces path with it. On failure
// the previous contents of path are left untouched.
func (d *Document) Save(path string) error {
	data, err := d.Encode()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: save %s: %w", model.ErrIO, path, err)
	}
	d.path = path
	d.logger.Debug("document saved", "path", path, "snapshots", d.manager.Count(), "bytes", len(data))
	return nil
}

// Close releases the document. Every later call, including another Close,
// fails with ErrInvalidHandle.
func (d *Document) Close() error {
	if _, err := d.live(); err != nil {
		return err
	}
	d.logger.Debug("document closed", "path", d.path)
	d.manager = nil
	d.closed = true
	return nil
}

// Validate runs the strict checks: single chain per snapshot and isomorphic
// snapshots.
func (d *Document) Validate() error {
	m, err := d.live()
	if err != nil {
		return err
	}
	return codec.Validate(m)
}

func (d *Document) SnapshotCount() (int, error) {
	m, err := d.live()
	if err != nil {
		return 0, err
	}
	return m.Count(), nil
}

func (d *Document) SnapshotName(index int) (string, error) {
	s, err := d.snapshot(index)
	if err != nil {
		return "", err
	}
	return s.Name(), nil
}

func (d *Document) SnapshotIndex(name string) (int, error) {
	m, err := d.live()
	if err != nil {
		return 0, err
	}
	return m.IndexOf(name)
}

// NextSnapshotName suggests a fresh integer snapshot name.
func (d *Document) NextSnapshotName() (string, error) {
	m, err := d.live()
	if err != nil {
		return "", err
	}
	return m.NextName(), nil
}

// NewSnapshot appends an empty snapshot to be populated with AddLayer.
func (d *Document) NewSnapshot(name string) (int, error) {
	m, err := d.live()
	if err != nil {
		return 0, err
	}
	index, _, err := m.NewSnapshot(name)
	return index, err
}

func (d *Document) MakeIsomorphic(source int, name string) (int, error) {
	m, err := d.live()
	if err != nil {
		return 0, err
	}
	return m.MakeIsomorphic(source, name)
}

func (d *Document) InitializerIndex() (int, error) {
	m, err := d.live()
	if err != nil {
		return 0, err
	}
	return m.Initializer(), nil
}

func (d *Document) SetInitializerIndex(index int) error {
	m, err := d.live()
	if err != nil {
		return err
	}
	return m.SetInitializer(index)
}

func (d *Document) snapshot(index int) (*snapshot.Snapshot, error) {
	m, err := d.live()
	if err != nil {
		return nil, err
	}
	return m.Get(index)
}

// LayerRef addresses a layer by index or by id.
type LayerRef struct {
	index int
	id    string
	byID  bool
}

func LayerAt(index int) LayerRef {
	return LayerRef{index: index}
}

func LayerNamed(id string) LayerRef {
	return LayerRef{id: id, byID: true}
}

func (r LayerRef) String() string {
	if r.byID {
		return fmt.Sprintf("%q", r.id)
	}
	return fmt.Sprintf("%d", r.index)
}

func (d *Document) layer(snap int, ref LayerRef) (*snapshot.Snapshot, int, error) {
	s, err := d.snapshot(snap)
	if err != nil {
		return nil, 0, err
	}
	if !ref.byID {
		return s, ref.index, nil
	}
	index, err := s.Topology().Resolve(ref.id)
	if err != nil {
		return nil, 0, err
	}
	return s, index, nil
}

// AddLayer appends a layer to a snapshot built from scratch. pred and succ
// name existing layers of that snapshot, or nil. Once the snapshot holds a
// value, has been cloned, or was read from a file, its shape is fixed and
// AddLayer fails with ErrInvalidChain.
func (d *Document) AddLayer(snap int, id string, neurons int, pred, succ *int) (int, error) {
	s, err := d.snapshot(snap)
	if err != nil {
		return 0, err
	}
	return s.AddLayer(id, neurons, pred, succ)
}

func (d *Document) LayerCount(snap int) (int, error) {
	s, err := d.snapshot(snap)
	if err != nil {
		return 0, err
	}
	return s.Topology().Len(), nil
}

func (d *Document) LayerIndex(snap int, id string) (int, error) {
	_, index, err := d.layer(snap, LayerNamed(id))
	return index, err
}

func (d *Document) LayerID(snap, layer int) (string, error) {
	s, err := d.snapshot(snap)
	if err != nil {
		return "", err
	}
	return s.Topology().ID(layer)
}

func (d *Document) NeuronCount(snap int, layer LayerRef) (int, error) {
	s, index, err := d.layer(snap, layer)
	if err != nil {
		return 0, err
	}
	return s.Topology().NeuronCount(index)
}

// Predecessor returns the preceding layer's index; ok is false for the input
// layer.
func (d *Document) Predecessor(snap int, layer LayerRef) (index int, ok bool, err error) {
	s, i, err := d.layer(snap, layer)
	if err != nil {
		return 0, false, err
	}
	return s.Topology().Predecessor(i)
}

// Successor returns the following layer's index; ok is false for the output
// layer.
func (d *Document) Successor(snap int, layer LayerRef) (index int, ok bool, err error) {
	s, i, err := d.layer(snap, layer)
	if err != nil {
		return 0, false, err
	}
	return s.Topology().Successor(i)
}

func (d *Document) get(snap int, layer LayerRef, key func(int) values.Key) (values.Value, error) {
	s, i, err := d.layer(snap, layer)
	if err != nil {
		return values.Value{}, err
	}
	return s.Get(key(i))
}

func (d *Document) set(snap int, layer LayerRef, key func(int) values.Key, v values.Value) error {
	s, i, err := d.layer(snap, layer)
	if err != nil {
		return err
	}
	return s.Set(key(i), v)
}

func (d *Document) neuronNumber(field values.Field, snap int, layer LayerRef, neuron int) (float64, error) {
	v, err := d.get(snap, layer, func(i int) values.Key { return values.NeuronKey(field, i, neuron) })
	return v.Number, err
}

func (d *Document) setNeuronNumber(field values.Field, snap int, layer LayerRef, neuron int, v float64) error {
	return d.set(snap, layer, func(i int) values.Key { return values.NeuronKey(field, i, neuron) }, values.Value{Number: v})
}

// Weight reads the weight of the connection from neuron synapse of the
// predecessor layer into neuron of layer.
func (d *Document) Weight(snap int, layer LayerRef, neuron, synapse int) (float64, error) {
	v, err := d.get(snap, layer, func(i int) values.Key { return values.WeightKey(i, neuron, synapse) })
	return v.Number, err
}

func (d *Document) SetWeight(snap int, layer LayerRef, neuron, synapse int, v float64) error {
	return d.set(snap, layer, func(i int) values.Key { return values.WeightKey(i, neuron, synapse) }, values.Value{Number: v})
}

// WeightAt reads a weight by its flat, neuron-major position in the layer.
func (d *Document) WeightAt(snap int, layer LayerRef, flat int) (float64, error) {
	s, i, err := d.layer(snap, layer)
	if err != nil {
		return 0, err
	}
	return s.WeightAt(i, flat)
}

func (d *Document) SetWeightAt(snap int, layer LayerRef, flat int, v float64) error {
	s, i, err := d.layer(snap, layer)
	if err != nil {
		return err
	}
	return s.SetWeightAt(i, flat, v)
}

func (d *Document) Output(snap int, layer LayerRef, neuron int) (float64, error) {
	return d.neuronNumber(values.Output, snap, layer, neuron)
}

func (d *Document) SetOutput(snap int, layer LayerRef, neuron int, v float64) error {
	return d.setNeuronNumber(values.Output, snap, layer, neuron, v)
}

func (d *Document) Activation(snap int, layer LayerRef, neuron int) (float64, error) {
	return d.neuronNumber(values.Activation, snap, layer, neuron)
}

func (d *Document) SetActivation(snap int, layer LayerRef, neuron int, v float64) error {
	return d.setNeuronNumber(values.Activation, snap, layer, neuron, v)
}

func (d *Document) Delta(snap int, layer LayerRef, neuron int) (float64, error) {
	return d.neuronNumber(values.Delta, snap, layer, neuron)
}

func (d *Document) SetDelta(snap int, layer LayerRef, neuron int, v float64) error {
	return d.setNeuronNumber(values.Delta, snap, layer, neuron, v)
}

func (d *Document) Bias(snap int, layer LayerRef, neuron int) (float64, error) {
	return d.neuronNumber(values.Bias, snap, layer, neuron)
}

func (d *Document) SetBias(snap int, layer LayerRef, neuron int, v float64) error {
	return d.setNeuronNumber(values.Bias, snap, layer, neuron, v)
}

func (d *Document) ActivationFunction(snap int, layer LayerRef) (string, error) {
	v, err := d.get(snap, layer, func(i int) values.Key { return values.LayerKey(values.ActivationFunction, i) })
	return v.Text, err
}

func (d *Document) SetActivationFunction(snap int, layer LayerRef, name string) error {
	return d.set(snap, layer, func(i int) values.Key { return values.LayerKey(values.ActivationFunction, i) }, values.Value{Text: name})
}

func (d *Document) Alpha(snap int) (float64, error) {
	s, err := d.snapshot(snap)
	if err != nil {
		return 0, err
	}
	return s.Alpha()
}

func (d *Document) SetAlpha(snap int, v float64) error {
	s, err := d.snapshot(snap)
	if err != nil {
		return err
	}
	return s.SetAlpha(v)
}
