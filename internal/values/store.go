// Package values holds the sparse per-snapshot attribute store.
//
// A Store only answers for its own entries. Fallback to the initializer
// snapshot and bounds checks against the layer chain are the caller's job,
// since only the caller knows the topology and the initializer.
package values

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"mlpx/internal/model"
)

type Field int

const (
	Weight Field = iota
	Output
	Activation
	Delta
	Bias
	ActivationFunction
	Alpha
)

var fieldNames = [...]string{
	Weight:             "weights",
	Output:             "outputs",
	Activation:         "activations",
	Delta:              "deltas",
	Bias:               "biases",
	ActivationFunction: "activation_function",
	Alpha:              "alpha",
}

// NeuronFields are the per-neuron numeric fields in wire order.
var NeuronFields = []Field{Output, Activation, Delta, Bias}

func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// ParseField accepts a wire name, or the singular of a per-neuron or weight
// field ("weight", "bias"). Dashes may stand in for underscores.
func ParseField(name string) (Field, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for f, n := range fieldNames {
		if norm == n || (Field(f) <= Bias && norm+"s" == n) {
			return Field(f), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown field %q", model.ErrInvalidValue, name)
}

// IsString reports whether the field holds text rather than a number.
func (f Field) IsString() bool {
	return f == ActivationFunction
}

// Key addresses one attribute. Components the field does not use are zero:
// Alpha uses none, ActivationFunction uses Layer, per-neuron fields use Layer
// and Neuron, Weight uses all three.
type Key struct {
	Field   Field
	Layer   int
	Neuron  int
	Synapse int
}

func WeightKey(layer, neuron, synapse int) Key {
	return Key{Field: Weight, Layer: layer, Neuron: neuron, Synapse: synapse}
}

func NeuronKey(field Field, layer, neuron int) Key {
	return Key{Field: field, Layer: layer, Neuron: neuron}
}

func LayerKey(field Field, layer int) Key {
	return Key{Field: field, Layer: layer}
}

func AlphaKey() Key {
	return Key{Field: Alpha}
}

func (k Key) String() string {
	switch k.Field {
	case Alpha:
		return k.Field.String()
	case ActivationFunction:
		return fmt.Sprintf("%s[layer=%d]", k.Field, k.Layer)
	case Weight:
		return fmt.Sprintf("%s[layer=%d neuron=%d synapse=%d]", k.Field, k.Layer, k.Neuron, k.Synapse)
	default:
		return fmt.Sprintf("%s[layer=%d neuron=%d]", k.Field, k.Layer, k.Neuron)
	}
}

func (k Key) less(o Key) bool {
	if k.Field != o.Field {
		return k.Field < o.Field
	}
	if k.Layer != o.Layer {
		return k.Layer < o.Layer
	}
	if k.Neuron != o.Neuron {
		return k.Neuron < o.Neuron
	}
	return k.Synapse < o.Synapse
}

// Value is either a number or a string, depending on the key's field.
type Value struct {
	Number float64
	Text   string
}

type Store struct {
	numbers map[Key]float64
	strings map[Key]string
}

func NewStore() *Store {
	return &Store{
		numbers: make(map[Key]float64),
		strings: make(map[Key]string),
	}
}

// Number returns the locally stored number for key.
func (s *Store) Number(key Key) (float64, bool) {
	v, ok := s.numbers[key]
	return v, ok
}

// Text returns the locally stored string for key.
func (s *Store) Text(key Key) (string, bool) {
	v, ok := s.strings[key]
	return v, ok
}

// Lookup returns the local value for key regardless of its kind.
func (s *Store) Lookup(key Key) (Value, bool) {
	if key.Field.IsString() {
		v, ok := s.strings[key]
		return Value{Text: v}, ok
	}
	v, ok := s.numbers[key]
	return Value{Number: v}, ok
}

func (s *Store) Has(key Key) bool {
	_, ok := s.Lookup(key)
	return ok
}

func (s *Store) SetNumber(key Key, v float64) error {
	if key.Field.IsString() {
		return fmt.Errorf("%w: %s holds text", model.ErrInvalidValue, key.Field)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be finite, got %v", model.ErrInvalidValue, key, v)
	}
	s.numbers[key] = v
	return nil
}

func (s *Store) SetText(key Key, v string) error {
	if !key.Field.IsString() {
		return fmt.Errorf("%w: %s holds numbers", model.ErrInvalidValue, key.Field)
	}
	if v == "" {
		return fmt.Errorf("%w: %s must not be empty", model.ErrInvalidValue, key)
	}
	s.strings[key] = v
	return nil
}

// Set stores v under key using the representation the field expects.
func (s *Store) Set(key Key, v Value) error {
	if key.Field.IsString() {
		return s.SetText(key, v.Text)
	}
	return s.SetNumber(key, v.Number)
}

func (s *Store) Delete(key Key) {
	delete(s.numbers, key)
	delete(s.strings, key)
}

func (s *Store) Len() int {
	return len(s.numbers) + len(s.strings)
}

// Keys lists every locally set key ordered by field, layer, neuron, synapse.
func (s *Store) Keys() []Key {
	keys := make([]Key, 0, s.Len())
	for k := range s.numbers {
		keys = append(keys, k)
	}
	for k := range s.strings {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

func (s *Store) Clone() *Store {
	out := &Store{
		numbers: make(map[Key]float64, len(s.numbers)),
		strings: make(map[Key]string, len(s.strings)),
	}
	for k, v := range s.numbers {
		out.numbers[k] = v
	}
	for k, v := range s.strings {
		out.strings[k] = v
	}
	return out
}

// Merge copies every entry of other accepted by keep into s, overwriting.
// A nil keep accepts everything.
func (s *Store) Merge(other *Store, keep func(Key) bool) {
	for k, v := range other.numbers {
		if keep == nil || keep(k) {
			s.numbers[k] = v
		}
	}
	for k, v := range other.strings {
		if keep == nil || keep(k) {
			s.strings[k] = v
		}
	}
}
