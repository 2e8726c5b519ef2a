package codec

import (
	"fmt"

	"mlpx/internal/model"
	"mlpx/internal/snapshot"
)

// Validate applies the checks Decode leaves to the caller: every snapshot's
// layers form a single chain, and every snapshot is isomorphic to the first.
func Validate(m *snapshot.Manager) error {
	if m.Count() == 0 {
		return nil
	}
	key, err := m.Get(0)
	if err != nil {
		return err
	}
	for i := 0; i < m.Count(); i++ {
		s, err := m.Get(i)
		if err != nil {
			return err
		}
		label := snapshotLabel(i, s.Name())
		if err := s.Topology().Validate(); err != nil {
			return fmt.Errorf("snapshot %s: %w", label, err)
		}
		if i == 0 {
			continue
		}
		if err := key.Topology().Isomorphic(s.Topology()); err != nil {
			return fmt.Errorf("%w: snapshots %s and %s are not isomorphic: %s",
				model.ErrInvalidChain, snapshotLabel(0, key.Name()), label, err.Error())
		}
	}
	return nil
}
