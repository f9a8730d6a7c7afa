package store

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"go.etcd.io/bbolt"
)

type phaseRecord struct {
	Phase     Phase     `json:"phase"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CurrentPhase returns the global resume cursor. It fails with
// ErrStateCorrupt if the metadata row is missing — an unknown phase must
// never be silently treated as "scanning".
func (s *Store) CurrentPhase() (Phase, error) {
	var rec phaseRecord
	var found bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(metadataBucket).Get(currentPhaseKey)
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return "", fmt.Errorf("%w: decode phase metadata: %v", ErrStateCorrupt, err)
	}
	if !found {
		return "", ErrStateCorrupt
	}
	return rec.Phase, nil
}

// SetCurrentPhase writes the global resume cursor. Phase transitions are
// strictly monotonic at the orchestrator layer; the store itself accepts
// any value so initialization (scanning) and resets can write it freely.
func (s *Store) SetCurrentPhase(phase Phase) error {
	rec := phaseRecord{Phase: phase, UpdatedAt: time.Now().UTC()}

	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode phase metadata: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(metadataBucket).Put(currentPhaseKey, encoded)
	})
}

// InitializePhase writes PhaseScanning iff no phase metadata exists yet.
// Called once when a fresh store is opened for a new migration run.
func (s *Store) InitializePhase() error {
	_, err := s.CurrentPhase()
	if err == nil {
		return nil
	}
	if err != ErrStateCorrupt {
		return err
	}
	return s.SetCurrentPhase(PhaseScanning)
}
