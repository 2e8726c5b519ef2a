// Package snapshot owns the ordered snapshot sequence of a document, the
// initializer designation, and isomorphic cloning.
//
// Fallback is flat: every snapshot falls back to the one initializer, never
// to the snapshot it was cloned from. Cloning bakes inherited values into the
// clone so this holds without transitive resolution.
//
// A Manager performs no locking. Callers serialize mutation; concurrent reads
// are safe only while nothing appends or writes.
package snapshot

import (
	"fmt"
	"sort"
	"strconv"

	"mlpx/internal/model"
	"mlpx/internal/topology"
	"mlpx/internal/values"
)

type Manager struct {
	snapshots   []*Snapshot
	byName      map[string]int
	initializer int
}

func NewManager() *Manager {
	return &Manager{byName: make(map[string]int)}
}

func (m *Manager) Count() int {
	return len(m.snapshots)
}

func (m *Manager) Get(index int) (*Snapshot, error) {
	if index < 0 || index >= len(m.snapshots) {
		return nil, fmt.Errorf("%w: index %d (have %d)", model.ErrUnknownSnapshot, index, len(m.snapshots))
	}
	return m.snapshots[index], nil
}

func (m *Manager) ByName(name string) (*Snapshot, error) {
	index, err := m.IndexOf(name)
	if err != nil {
		return nil, err
	}
	return m.snapshots[index], nil
}

func (m *Manager) IndexOf(name string) (int, error) {
	index, ok := m.byName[name]
	if !ok || name == "" {
		return 0, fmt.Errorf("%w: %q", model.ErrUnknownName, name)
	}
	return index, nil
}

// Names lists snapshot names by index; unnamed snapshots yield "".
func (m *Manager) Names() []string {
	names := make([]string, len(m.snapshots))
	for i, s := range m.snapshots {
		names[i] = s.name
	}
	return names
}

// NewSnapshot appends an empty snapshot whose topology is built from scratch
// by the caller.
func (m *Manager) NewSnapshot(name string) (int, *Snapshot, error) {
	return m.append(name, topology.New(), values.NewStore())
}

// MakeIsomorphic appends a snapshot with the source's shape and every value
// that currently resolves on the source, its own values taking precedence
// over the initializer's. Source and clone are frozen so their shapes stay
// equal.
func (m *Manager) MakeIsomorphic(source int, name string) (int, error) {
	src, err := m.Get(source)
	if err != nil {
		return 0, err
	}

	store := values.NewStore()
	if init := src.initializer(); init != nil && init != src {
		store.Merge(init.store, func(k values.Key) bool { return src.CheckKey(k) == nil })
	}
	store.Merge(src.store, nil)

	if err := m.checkName(name); err != nil {
		return 0, err
	}
	src.topology.Freeze()
	index, _, err := m.append(name, src.topology.Clone(), store)
	return index, err
}

func (m *Manager) append(name string, topo *topology.Topology, store *values.Store) (int, *Snapshot, error) {
	if err := m.checkName(name); err != nil {
		return 0, nil, err
	}
	s := &Snapshot{name: name, topology: topo, store: store, owner: m}
	index := len(m.snapshots)
	m.snapshots = append(m.snapshots, s)
	if name != "" {
		m.byName[name] = index
	}
	return index, s, nil
}

func (m *Manager) checkName(name string) error {
	if name == "" {
		return nil
	}
	if _, exists := m.byName[name]; exists {
		return fmt.Errorf("%w: snapshot %q", model.ErrDuplicateID, name)
	}
	return nil
}

func (m *Manager) Initializer() int {
	return m.initializer
}

// SetInitializer repoints fallback for every snapshot at once.
func (m *Manager) SetInitializer(index int) error {
	if _, err := m.Get(index); err != nil {
		return err
	}
	m.initializer = index
	return nil
}

// Latest is the most recently appended snapshot.
func (m *Manager) Latest() (*Snapshot, error) {
	if len(m.snapshots) == 0 {
		return nil, fmt.Errorf("%w: document has no snapshots", model.ErrUnknownSnapshot)
	}
	return m.snapshots[len(m.snapshots)-1], nil
}

// NextName returns one more than the largest integer snapshot name, or "0"
// when no snapshot has an integer name.
func (m *Manager) NextName() string {
	next := 0
	for _, s := range m.snapshots {
		n, err := strconv.Atoi(s.name)
		if err != nil {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return strconv.Itoa(next)
}

func (m *Manager) indexOfSnapshot(target *Snapshot) int {
	for i, s := range m.snapshots {
		if s == target {
			return i
		}
	}
	return -1
}

// SortNames orders snapshot ids the way legacy files expect: "initializer"
// first, then integer ids by value, then everything else lexically.
func SortNames(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return nameLess(names[i], names[j])
	})
}

func nameLess(a, b string) bool {
	if a == b {
		return false
	}
	if a == "initializer" {
		return true
	}
	if b == "initializer" {
		return false
	}
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		if an != bn {
			return an < bn
		}
		return a < b
	case aerr == nil:
		return true
	case berr == nil:
		return false
	default:
		return a < b
	}
}
