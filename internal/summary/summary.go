// Package summary computes per-snapshot statistics over resolved values.
package summary

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"mlpx/internal/snapshot"
	"mlpx/internal/values"
)

// BiasPoint is the mean output-layer bias of one snapshot.
type BiasPoint struct {
	Snapshot int
	Name     string
	Mean     float64
	Count    int
}

// AverageBias returns, for each document, the mean resolved bias of the
// output layer of every snapshot. Snapshots whose output layer resolves no
// bias are skipped.
func AverageBias(docs ...*snapshot.Manager) [][]BiasPoint {
	out := make([][]BiasPoint, len(docs))
	for d, m := range docs {
		for i := 0; i < m.Count(); i++ {
			s, err := m.Get(i)
			if err != nil {
				continue
			}
			order := s.Topology().Order()
			if len(order) == 0 {
				continue
			}
			layer := order[len(order)-1]
			neurons, _ := s.Topology().NeuronCount(layer)
			var biases []float64
			for n := 0; n < neurons; n++ {
				if v, err := s.Bias(layer, n); err == nil {
					biases = append(biases, v)
				}
			}
			if len(biases) == 0 {
				continue
			}
			out[d] = append(out[d], BiasPoint{
				Snapshot: i,
				Name:     s.Name(),
				Mean:     stat.Mean(biases, nil),
				Count:    len(biases),
			})
		}
	}
	return out
}

// WeightStats describes the resolved weights of one layer.
type WeightStats struct {
	Layer  int
	ID     string
	Count  int
	Total  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// LayerStats summarizes the resolved weights of every layer of s, in layer
// index order. Total is the number of weight positions; Count is how many of
// them resolve. The moments are zero when Count is zero.
func LayerStats(s *snapshot.Snapshot) []WeightStats {
	topo := s.Topology()
	out := make([]WeightStats, 0, topo.Len())
	for layer := 0; layer < topo.Len(); layer++ {
		id, _ := topo.ID(layer)
		total, _ := topo.WeightCount(layer)
		ws := WeightStats{Layer: layer, ID: id, Total: total}
		weights := make([]float64, 0, total)
		for flat := 0; flat < total; flat++ {
			neuron, synapse, _ := topo.SplitWeightIndex(layer, flat)
			if v, err := s.Get(values.WeightKey(layer, neuron, synapse)); err == nil {
				weights = append(weights, v.Number)
			}
		}
		ws.Count = len(weights)
		if ws.Count > 0 {
			ws.Min = floats.Min(weights)
			ws.Max = floats.Max(weights)
			if ws.Count == 1 {
				ws.Mean = weights[0]
			} else {
				ws.Mean, ws.StdDev = stat.MeanStdDev(weights, nil)
			}
		}
		out = append(out, ws)
	}
	return out
}
