// Package diff reports the differences between two documents: snapshot
// layout, layer chains and every resolved value.
package diff

import (
	"fmt"
	"math"

	"mlpx/internal/snapshot"
	"mlpx/internal/values"
)

// Diff returns one line per difference between a and b, each prefixed with
// indent. Numbers closer than epsilon compare equal. Values are compared as
// resolved, so an inherited value equals the same value stored locally. A
// value present on one side only is a difference.
func Diff(a, b *snapshot.Manager, indent string, epsilon float64) []string {
	d := differ{indent: indent, epsilon: epsilon}
	if a.Count() != b.Count() {
		d.add("snapshot count differs: %d vs %d", a.Count(), b.Count())
	}
	if a.Initializer() != b.Initializer() {
		d.add("initializer differs: %d vs %d", a.Initializer(), b.Initializer())
	}
	n := min(a.Count(), b.Count())
	for i := 0; i < n; i++ {
		sa, _ := a.Get(i)
		sb, _ := b.Get(i)
		d.snapshot(i, sa, sb)
	}
	return d.lines
}

type differ struct {
	indent  string
	epsilon float64
	lines   []string
}

func (d *differ) add(format string, args ...any) {
	d.lines = append(d.lines, d.indent+fmt.Sprintf(format, args...))
}

func (d *differ) snapshot(i int, a, b *snapshot.Snapshot) {
	if a.Name() != b.Name() {
		d.add("snapshot %d: id differs: %q vs %q", i, a.Name(), b.Name())
	}
	ta, tb := a.Topology(), b.Topology()
	if ta.Len() != tb.Len() {
		d.add("snapshot %d: layer count differs: %d vs %d", i, ta.Len(), tb.Len())
	}
	sameShape := true
	for l := 0; l < min(ta.Len(), tb.Len()); l++ {
		la, _ := ta.Layer(l)
		lb, _ := tb.Layer(l)
		if la.ID != lb.ID {
			d.add("snapshot %d, layer %d: id differs: %q vs %q", i, l, la.ID, lb.ID)
		}
		if la.Neurons != lb.Neurons {
			d.add("snapshot %d, layer %d (%q): neuron count differs: %d vs %d", i, l, la.ID, la.Neurons, lb.Neurons)
			sameShape = false
		}
		pa, oka, _ := ta.Predecessor(l)
		pb, okb, _ := tb.Predecessor(l)
		if oka != okb || pa != pb {
			d.add("snapshot %d, layer %d (%q): predecessor differs: %s vs %s", i, l, la.ID, link(pa, oka), link(pb, okb))
			sameShape = false
		}
		sa, oka, _ := ta.Successor(l)
		sb, okb, _ := tb.Successor(l)
		if oka != okb || sa != sb {
			d.add("snapshot %d, layer %d (%q): successor differs: %s vs %s", i, l, la.ID, link(sa, oka), link(sb, okb))
		}
	}
	if !sameShape || ta.Len() != tb.Len() {
		// Value positions only line up between identical shapes.
		return
	}

	for _, key := range a.Keys() {
		d.value(i, key, a, b)
	}
}

func (d *differ) value(i int, key values.Key, a, b *snapshot.Snapshot) {
	va, erra := a.Get(key)
	vb, errb := b.Get(key)
	switch {
	case erra != nil && errb != nil:
	case erra != nil:
		d.add("snapshot %d: %s: unset vs %s", i, key, format(key, vb))
	case errb != nil:
		d.add("snapshot %d: %s: %s vs unset", i, key, format(key, va))
	case key.Field.IsString():
		if va.Text != vb.Text {
			d.add("snapshot %d: %s: %s vs %s", i, key, format(key, va), format(key, vb))
		}
	default:
		if math.Abs(va.Number-vb.Number) > d.epsilon {
			d.add("snapshot %d: %s: %s vs %s", i, key, format(key, va), format(key, vb))
		}
	}
}

func format(key values.Key, v values.Value) string {
	if key.Field.IsString() {
		return fmt.Sprintf("%q", v.Text)
	}
	return fmt.Sprintf("%g", v.Number)
}

func link(index int, ok bool) string {
	if !ok {
		return "none"
	}
	return fmt.Sprintf("%d", index)
}
