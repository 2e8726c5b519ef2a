package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mlpx/internal/activation"
	"mlpx/internal/construct"
	"mlpx/internal/diff"
	"mlpx/internal/snapshot"
	"mlpx/internal/summary"
	"mlpx/internal/values"
	"mlpx/pkg/mlpx"
)

const maxExitDiffs = 125

func newNewCommand(a *app) *cobra.Command {
	var (
		sizes             []int
		activations       []string
		defaultActivation string
		biasRange         []float64
		weightRange       []float64
		alpha             float64
		output            string
	)
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a new MLPX with random weights and biases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rng, err := a.rng()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("default-activation") {
				defaultActivation = a.cfg.DefaultActivation
			}
			m, err := construct.Random(construct.Options{
				Sizes:             sizes,
				Activations:       activations,
				DefaultActivation: defaultActivation,
				WeightRange:       weightRange,
				BiasRange:         biasRange,
				Alpha:             alpha,
				Rand:              rng,
			})
			if err != nil {
				return err
			}
			a.logger.Debug("generated network", "layers", len(sizes), "seed", a.seed)
			return a.write(mlpx.FromManager(m, mlpx.WithLogger(a.logger)), output)
		},
	}
	flags := cmd.Flags()
	flags.IntSliceVarP(&sizes, "sizes", "s", nil, "neuron count of each layer, input first")
	flags.StringSliceVarP(&activations, "activations", "a", nil, "activation function of each layer; takes precedence over --default-activation")
	flags.StringVarP(&defaultActivation, "default-activation", "A", activation.Default, "activation function for every layer")
	flags.Float64SliceVarP(&biasRange, "bias-range", "b", []float64{0, 1}, "lower and upper bound of the random biases")
	flags.Float64SliceVarP(&weightRange, "weight-range", "w", []float64{0, 1}, "lower and upper bound of the random weights")
	flags.Float64VarP(&alpha, "alpha", "p", 0.1, "learning rate")
	flags.StringVarP(&output, "output", "o", "-", "output file, or '-' for stdout")
	_ = cmd.MarkFlagRequired("sizes")
	return cmd
}

func newValidateCommand(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate an MLPX document",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			doc, err := a.open(args[0])
			if err == nil {
				defer doc.Close()
				err = doc.Validate()
			}
			if err != nil {
				if errors.Is(err, mlpx.ErrIO) {
					return err
				}
				fmt.Fprintf(a.stderr, "%s: invalid: %v\n", args[0], err)
				return &exitError{code: 2}
			}
			if strict {
				for _, w := range unknownActivations(doc) {
					a.logger.Warn("unknown activation function", "detail", w)
					fmt.Fprintf(a.stderr, "warning: %s\n", w)
				}
			}
			fmt.Fprintf(a.stdout, "%s: ok\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "also warn about activation functions outside the known set")
	return cmd
}

func unknownActivations(doc *mlpx.Document) []string {
	m, err := doc.Manager()
	if err != nil {
		return nil
	}
	var out []string
	for i := 0; i < m.Count(); i++ {
		s, _ := m.Get(i)
		for layer := 0; layer < s.Topology().Len(); layer++ {
			if !s.IsSet(values.LayerKey(values.ActivationFunction, layer)) {
				continue
			}
			name, _ := s.ActivationFunction(layer)
			if !activation.Known(name) {
				id, _ := s.Topology().ID(layer)
				out = append(out, fmt.Sprintf("snapshot %d, layer %q: unknown activation function %q", i, id, name))
			}
		}
	}
	return out
}

func newDiffCommand(a *app) *cobra.Command {
	var (
		indent  string
		epsilon float64
	)
	cmd := &cobra.Command{
		Use:   "diff <a> <b>",
		Short: "Compare two MLPX documents; exits with the number of differences",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("epsilon") {
				epsilon = a.cfg.Epsilon
			}
			ma, err := a.manager(args[0])
			if err != nil {
				return err
			}
			mb, err := a.manager(args[1])
			if err != nil {
				return err
			}
			lines := diff.Diff(ma, mb, indent, epsilon)
			for _, line := range lines {
				fmt.Fprintln(a.stdout, line)
			}
			if len(lines) == 0 {
				return nil
			}
			return &exitError{code: min(len(lines), maxExitDiffs)}
		},
	}
	cmd.Flags().StringVarP(&indent, "indent", "i", "", "prefix for every reported line")
	cmd.Flags().Float64VarP(&epsilon, "epsilon", "e", 1e-4, "numbers closer than this compare equal")
	return cmd
}

func (a *app) manager(path string) (*snapshot.Manager, error) {
	doc, err := a.open(path)
	if err != nil {
		return nil, err
	}
	return doc.Manager()
}

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Summarize the snapshots and layer chain of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			m, err := a.manager(args[0])
			if err != nil {
				return err
			}
			if args[0] != "-" {
				if st, err := os.Stat(args[0]); err == nil {
					fmt.Fprintf(a.stdout, "file: %s (%s)\n", args[0], humanize.Bytes(uint64(st.Size())))
				}
			}
			fmt.Fprintf(a.stdout, "snapshots: %d, initializer: %d\n", m.Count(), m.Initializer())
			for i := 0; i < m.Count(); i++ {
				s, _ := m.Get(i)
				fmt.Fprintf(a.stdout, "snapshot %d %q: %s; %s values set\n",
					i, s.Name(), chain(s), humanize.Comma(int64(s.Store().Len())))
			}
			return nil
		},
	}
}

func chain(s *snapshot.Snapshot) string {
	topo := s.Topology()
	parts := make([]string, 0, topo.Len())
	for _, layer := range topo.Order() {
		l, _ := topo.Layer(layer)
		parts = append(parts, fmt.Sprintf("%s(%d)", l.ID, l.Neurons))
	}
	if len(parts) == 0 {
		return "no layers"
	}
	return strings.Join(parts, " -> ")
}

func newCloneCommand(a *app) *cobra.Command {
	var from, name, output string
	cmd := &cobra.Command{
		Use:   "clone <file>",
		Short: "Append a snapshot isomorphic to an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			doc, err := a.open(args[0])
			if err != nil {
				return err
			}
			source, err := snapshotIndex(doc, from)
			if err != nil {
				return err
			}
			if name == "" {
				if name, err = doc.NextSnapshotName(); err != nil {
					return err
				}
			}
			index, err := doc.MakeIsomorphic(source, name)
			if err != nil {
				return err
			}
			a.logger.Info("cloned snapshot", "source", source, "index", index, "name", name)
			return a.write(doc, outputPath(output, args[0]))
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "source snapshot id or index; defaults to the latest")
	cmd.Flags().StringVar(&name, "name", "", "id of the new snapshot; defaults to the next integer id")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file; defaults to rewriting the input")
	return cmd
}

func newInitializerCommand(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "initializer <file> [snapshot]",
		Short: "Show or change the initializer snapshot",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			doc, err := a.open(args[0])
			if err != nil {
				return err
			}
			if len(args) == 1 {
				index, err := doc.InitializerIndex()
				if err != nil {
					return err
				}
				name, _ := doc.SnapshotName(index)
				fmt.Fprintf(a.stdout, "%d %q\n", index, name)
				return nil
			}
			index, err := snapshotIndex(doc, args[1])
			if err != nil {
				return err
			}
			if err := doc.SetInitializerIndex(index); err != nil {
				return err
			}
			return a.write(doc, outputPath(output, args[0]))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file; defaults to rewriting the input")
	return cmd
}

type valueFlags struct {
	snapshot string
	layer    string
	field    string
	neuron   int
	synapse  int
	index    int
}

func (v *valueFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&v.snapshot, "snapshot", "", "snapshot id or index; defaults to the latest")
	flags.StringVar(&v.layer, "layer", "", "layer id or index")
	flags.StringVar(&v.field, "field", "", "weights, outputs, activations, deltas, biases, activation_function or alpha")
	flags.IntVar(&v.neuron, "neuron", 0, "neuron index")
	flags.IntVar(&v.synapse, "synapse", 0, "synapse index, for weights")
	flags.IntVar(&v.index, "index", -1, "flat weight index; overrides --neuron and --synapse")
	_ = cmd.MarkFlagRequired("field")
}

// resolve turns the flags into a snapshot and a key checked against it.
func (v *valueFlags) resolve(doc *mlpx.Document) (*snapshot.Snapshot, values.Key, error) {
	field, err := values.ParseField(v.field)
	if err != nil {
		return nil, values.Key{}, err
	}
	index, err := snapshotIndex(doc, v.snapshot)
	if err != nil {
		return nil, values.Key{}, err
	}
	m, err := doc.Manager()
	if err != nil {
		return nil, values.Key{}, err
	}
	s, err := m.Get(index)
	if err != nil {
		return nil, values.Key{}, err
	}
	if field == values.Alpha {
		return s, values.AlphaKey(), nil
	}
	if v.layer == "" {
		return nil, values.Key{}, fmt.Errorf("--layer is required for %s", field)
	}
	layer, err := layerIndex(s, v.layer)
	if err != nil {
		return nil, values.Key{}, err
	}

	var key values.Key
	switch {
	case field == values.ActivationFunction:
		key = values.LayerKey(field, layer)
	case field == values.Weight && v.index >= 0:
		neuron, synapse, err := s.Topology().SplitWeightIndex(layer, v.index)
		if err != nil {
			return nil, values.Key{}, err
		}
		key = values.WeightKey(layer, neuron, synapse)
	case field == values.Weight:
		key = values.WeightKey(layer, v.neuron, v.synapse)
	default:
		key = values.NeuronKey(field, layer, v.neuron)
	}
	if err := s.CheckKey(key); err != nil {
		return nil, values.Key{}, err
	}
	return s, key, nil
}

func newGetCommand(a *app) *cobra.Command {
	var vf valueFlags
	cmd := &cobra.Command{
		Use:   "get <file>",
		Short: "Print one resolved value",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			doc, err := a.open(args[0])
			if err != nil {
				return err
			}
			s, key, err := vf.resolve(doc)
			if err != nil {
				return err
			}
			v, err := s.Get(key)
			if err != nil {
				return err
			}
			if key.Field.IsString() {
				fmt.Fprintln(a.stdout, v.Text)
			} else {
				fmt.Fprintln(a.stdout, strconv.FormatFloat(v.Number, 'g', -1, 64))
			}
			return nil
		},
	}
	vf.register(cmd)
	return cmd
}

func newSetCommand(a *app) *cobra.Command {
	var (
		vf     valueFlags
		unset  bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "set <file> [value]",
		Short: "Store one value on a snapshot, or remove it with --unset",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			if unset == (len(args) == 2) {
				return usageError("set takes either a value or --unset")
			}
			doc, err := a.open(args[0])
			if err != nil {
				return err
			}
			s, key, err := vf.resolve(doc)
			if err != nil {
				return err
			}
			if unset {
				err = s.Unset(key)
			} else {
				var v values.Value
				if v, err = parseValue(key, args[1]); err == nil {
					err = s.Set(key, v)
				}
			}
			if err != nil {
				return err
			}
			return a.write(doc, outputPath(output, args[0]))
		},
	}
	vf.register(cmd)
	cmd.Flags().BoolVar(&unset, "unset", false, "remove the snapshot's own value so reads fall back to the initializer")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file; defaults to rewriting the input")
	return cmd
}

func parseValue(key values.Key, raw string) (values.Value, error) {
	if key.Field.IsString() {
		return values.Value{Text: raw}, nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return values.Value{}, fmt.Errorf("%w: %q is not a number", mlpx.ErrInvalidValue, raw)
	}
	return values.Value{Number: n}, nil
}

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file>...",
		Short: "Print average output bias and per-layer weight statistics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			docs := make([]*snapshot.Manager, 0, len(args))
			for _, path := range args {
				m, err := a.manager(path)
				if err != nil {
					return err
				}
				docs = append(docs, m)
			}
			for d, points := range summary.AverageBias(docs...) {
				fmt.Fprintf(a.stdout, "%s\n", args[d])
				for _, p := range points {
					fmt.Fprintf(a.stdout, "  snapshot %d %q: average output bias %g over %d neurons\n", p.Snapshot, p.Name, p.Mean, p.Count)
				}
				m := docs[d]
				for i := 0; i < m.Count(); i++ {
					s, _ := m.Get(i)
					for _, ws := range summary.LayerStats(s) {
						if ws.Total == 0 {
							continue
						}
						fmt.Fprintf(a.stdout, "  snapshot %d layer %q: %d/%d weights mean=%g stddev=%g min=%g max=%g\n",
							i, ws.ID, ws.Count, ws.Total, ws.Mean, ws.StdDev, ws.Min, ws.Max)
					}
				}
			}
			return nil
		},
	}
}

// snapshotIndex resolves a snapshot id, then an integer index. Empty selects
// the latest snapshot.
func snapshotIndex(doc *mlpx.Document, sel string) (int, error) {
	count, err := doc.SnapshotCount()
	if err != nil {
		return 0, err
	}
	if sel == "" {
		if count == 0 {
			return 0, fmt.Errorf("%w: document has no snapshots", mlpx.ErrUnknownSnapshot)
		}
		return count - 1, nil
	}
	index, err := doc.SnapshotIndex(sel)
	if err == nil {
		return index, nil
	}
	if n, perr := strconv.Atoi(sel); perr == nil {
		if n < 0 || n >= count {
			return 0, fmt.Errorf("%w: index %d (have %d snapshots)", mlpx.ErrUnknownSnapshot, n, count)
		}
		return n, nil
	}
	return 0, err
}

// layerIndex resolves a layer id, then an integer index.
func layerIndex(s *snapshot.Snapshot, sel string) (int, error) {
	topo := s.Topology()
	index, err := topo.Resolve(sel)
	if err == nil {
		return index, nil
	}
	if n, perr := strconv.Atoi(sel); perr == nil {
		if err := topo.CheckLayer(n); err != nil {
			return 0, err
		}
		return n, nil
	}
	return 0, err
}

func outputPath(output, input string) string {
	if output != "" {
		return output
	}
	return input
}
