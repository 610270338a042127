package orientation

import (
	"fmt"
	"sync"
)

type slotState struct {
	trackingID uint64
	bound      bool
	face       Quaternion
	hasFace    bool
}

// Slots maps each tracking slot to the person currently bound to it and the
// latest face rotation received for that person. A slot stays bound to the
// same tracking id until Release.
type Slots struct {
	mu    sync.RWMutex
	slots []slotState
}

func NewSlots(n int) *Slots {
	return &Slots{slots: make([]slotState, n)}
}

func (s *Slots) Len() int { return len(s.slots) }

// Bind attaches trackingID to slot. Binding an already bound slot to a
// different id drops the stale face result.
func (s *Slots) Bind(slot int, trackingID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(slot); err != nil {
		return err
	}
	st := &s.slots[slot]
	if st.bound && st.trackingID == trackingID {
		return nil
	}
	*st = slotState{trackingID: trackingID, bound: true}
	return nil
}

// Release frees the slot. Calibration baselines live in Calibrator and are
// not touched.
func (s *Slots) Release(slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot >= 0 && slot < len(s.slots) {
		s.slots[slot] = slotState{}
	}
}

// Valid reports whether the slot is bound, and to which tracking id.
func (s *Slots) Valid(slot int) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if slot < 0 || slot >= len(s.slots) {
		return 0, false
	}
	st := s.slots[slot]
	return st.trackingID, st.bound
}

// SetFace stores the latest rotation for slot. Results for an id other than
// the bound one are ignored and reported as false.
func (s *Slots) SetFace(slot int, trackingID uint64, q Quaternion) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(slot); err != nil {
		return false, err
	}
	st := &s.slots[slot]
	if !st.bound || st.trackingID != trackingID {
		return false, nil
	}
	st.face = q
	st.hasFace = true
	return true, nil
}

// Face returns the latest rotation of a bound slot.
func (s *Slots) Face(slot int) (Quaternion, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if slot < 0 || slot >= len(s.slots) {
		return Quaternion{}, false
	}
	st := s.slots[slot]
	if !st.bound || !st.hasFace {
		return Quaternion{}, false
	}
	return st.face, true
}

func (s *Slots) check(slot int) error {
	if slot < 0 || slot >= len(s.slots) {
		return fmt.Errorf("slot %d of %d: %w", slot, len(s.slots), ErrSlotOutOfRange)
	}
	return nil
}
