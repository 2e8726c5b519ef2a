package model

// SchemaName is the first component of every document's schema marker.
const SchemaName = "mlpx"

const (
	// LegacySchemaVersion is the map-keyed layout written by the first
	// generation of mlpx tools. It is read but never written.
	LegacySchemaVersion = 0
	// DenseSchemaVersion orders snapshots and layers but stores every numeric
	// field as an array with one slot per position. It is read but never
	// written.
	DenseSchemaVersion = 1
	// CurrentSchemaVersion lists only the values that are set. It is the
	// layout written by Encode.
	CurrentSchemaVersion = 2
)

// SchemaProbe decodes only the schema marker so the codec can pick a layout.
type SchemaProbe struct {
	Schema []any `json:"schema"`
}

// Document is the persisted form of a whole document. Snapshots is required;
// a nil pointer means the key was missing.
type Document struct {
	Schema      []any       `json:"schema"`
	Initializer *int        `json:"initializer,omitempty"`
	Snapshots   *[]Snapshot `json:"snapshots"`
}

// Snapshot is the persisted form of one snapshot. Alpha is nil when the
// snapshot does not set it locally.
type Snapshot struct {
	ID     string   `json:"id,omitempty"`
	Alpha  *float64 `json:"alpha,omitempty"`
	Layers *[]Layer `json:"layers"`
}

// LayerHeader describes a layer's place in the chain. It is shared by the
// dense and sparse layouts.
type LayerHeader struct {
	ID                 string  `json:"id"`
	Neurons            *int    `json:"neurons"`
	Predecessor        *int    `json:"predecessor,omitempty"`
	Successor          *int    `json:"successor,omitempty"`
	ActivationFunction *string `json:"activation_function,omitempty"`
}

// Layer lists each set value once. Entries are ordered by neuron, then
// synapse.
type Layer struct {
	LayerHeader
	Weights     []WeightEntry `json:"weights,omitempty"`
	Outputs     []NeuronEntry `json:"outputs,omitempty"`
	Activations []NeuronEntry `json:"activations,omitempty"`
	Deltas      []NeuronEntry `json:"deltas,omitempty"`
	Biases      []NeuronEntry `json:"biases,omitempty"`
}

// WeightEntry is one set weight. All three fields are required.
type WeightEntry struct {
	Neuron  *int     `json:"neuron"`
	Synapse *int     `json:"synapse"`
	Value   *float64 `json:"value"`
}

// NeuronEntry is one set per-neuron value. Both fields are required.
type NeuronEntry struct {
	Neuron *int     `json:"neuron"`
	Value  *float64 `json:"value"`
}

// DenseDocument is the version 1 layout.
type DenseDocument struct {
	Schema      []any            `json:"schema"`
	Initializer *int             `json:"initializer,omitempty"`
	Snapshots   *[]DenseSnapshot `json:"snapshots"`
}

type DenseSnapshot struct {
	ID     string        `json:"id,omitempty"`
	Alpha  *float64      `json:"alpha,omitempty"`
	Layers *[]DenseLayer `json:"layers"`
}

// DenseLayer stores numeric fields as arrays with one slot per neuron
// (weights: one per neuron and synapse); a nil slot is a value that is not
// set locally.
type DenseLayer struct {
	LayerHeader
	Weights     []*float64 `json:"weights,omitempty"`
	Outputs     []*float64 `json:"outputs,omitempty"`
	Activations []*float64 `json:"activations,omitempty"`
	Deltas      []*float64 `json:"deltas,omitempty"`
	Biases      []*float64 `json:"biases,omitempty"`
}

// LegacyDocument is the version 0 layout: snapshots and layers are tables
// keyed by id and layers reference each other by id.
type LegacyDocument struct {
	Schema    []any                     `json:"schema"`
	Snapshots map[string]LegacySnapshot `json:"snapshots"`
}

type LegacySnapshot struct {
	Alpha  *float64               `json:"alpha"`
	Layers map[string]LegacyLayer `json:"layers"`
}

type LegacyLayer struct {
	Predecessor        string    `json:"predecessor"`
	Successor          string    `json:"successor"`
	Neurons            *int      `json:"neurons"`
	Weights            []float64 `json:"weights"`
	Outputs            []float64 `json:"outputs"`
	Activations        []float64 `json:"activations"`
	Deltas             []float64 `json:"deltas"`
	Biases             []float64 `json:"biases"`
	ActivationFunction string    `json:"activation_function"`
}
