// Package construct generates new documents with randomly initialized
// weights and biases.
package construct

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"mlpx/internal/activation"
	"mlpx/internal/model"
	"mlpx/internal/snapshot"
)

const (
	InputLayerID  = "input"
	OutputLayerID = "output"
)

type Options struct {
	// Sizes holds the neuron count of each layer, input first.
	Sizes []int
	// Activations names one function per layer. When empty every layer gets
	// DefaultActivation.
	Activations       []string
	DefaultActivation string
	// WeightRange and BiasRange are two bounds in either order.
	WeightRange []float64
	BiasRange   []float64
	Alpha       float64
	Rand        *rand.Rand
}

// DefaultOptions mirrors the defaults of the new command.
func DefaultOptions(sizes ...int) Options {
	return Options{
		Sizes:             sizes,
		DefaultActivation: activation.Default,
		WeightRange:       []float64{0, 1},
		BiasRange:         []float64{0, 1},
		Alpha:             0.1,
	}
}

// LayerID is the id Random gives layer index of a count-layer chain.
func LayerID(index, count int) string {
	switch index {
	case 0:
		return InputLayerID
	case count - 1:
		return OutputLayerID
	default:
		return strconv.Itoa(index)
	}
}

// Random builds a document holding a single snapshot whose layers form one
// chain with ids input, 1, ..., N-2, output. Every weight and bias is drawn
// uniformly from its range.
func Random(opts Options) (*snapshot.Manager, error) {
	if len(opts.Sizes) < 2 {
		return nil, fmt.Errorf("%w: at least two layers are required, got %d", model.ErrInvalidValue, len(opts.Sizes))
	}
	activations := opts.Activations
	if len(activations) == 0 {
		name := strings.TrimSpace(opts.DefaultActivation)
		if name == "" {
			name = activation.Default
		}
		activations = make([]string, len(opts.Sizes))
		for i := range activations {
			activations[i] = name
		}
	}
	if len(activations) != len(opts.Sizes) {
		return nil, fmt.Errorf("%w: %d activation functions for %d layers", model.ErrInvalidValue, len(activations), len(opts.Sizes))
	}
	if len(opts.WeightRange) != 2 {
		return nil, fmt.Errorf("%w: weight range needs a lower and an upper bound", model.ErrInvalidValue)
	}
	if len(opts.BiasRange) != 2 {
		return nil, fmt.Errorf("%w: bias range needs a lower and an upper bound", model.ErrInvalidValue)
	}
	rng := ensureRNG(opts.Rand)

	m := snapshot.NewManager()
	_, snap, err := m.NewSnapshot(m.NextName())
	if err != nil {
		return nil, err
	}
	for index, neurons := range opts.Sizes {
		if neurons < 1 {
			return nil, fmt.Errorf("%w: layer %d must have at least one neuron, requested %d", model.ErrInvalidValue, index, neurons)
		}
		var pred *int
		if index > 0 {
			p := index - 1
			pred = &p
		}
		if _, err := snap.AddLayer(LayerID(index, len(opts.Sizes)), neurons, pred, nil); err != nil {
			return nil, err
		}
	}

	// The chain is complete; setting values freezes it.
	if err := snap.SetAlpha(opts.Alpha); err != nil {
		return nil, fmt.Errorf("alpha: %w", err)
	}
	for layer, neurons := range opts.Sizes {
		weights, _ := snap.Topology().WeightCount(layer)
		for flat := 0; flat < weights; flat++ {
			if err := snap.SetWeightAt(layer, flat, randRange(rng, opts.WeightRange)); err != nil {
				return nil, err
			}
		}
		for neuron := 0; neuron < neurons; neuron++ {
			if err := snap.SetBias(layer, neuron, randRange(rng, opts.BiasRange)); err != nil {
				return nil, err
			}
		}
		if err := snap.SetActivationFunction(layer, activations[layer]); err != nil {
			return nil, fmt.Errorf("layer %d activation function: %w", layer, err)
		}
	}
	return m, nil
}

func ensureRNG(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func randRange(rng *rand.Rand, bounds []float64) float64 {
	lo, hi := bounds[0], bounds[1]
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + rng.Float64()*(hi-lo)
}
