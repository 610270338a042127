package orientation

import (
	"errors"
	"fmt"
	"sync"
)

var ErrSlotOutOfRange = errors.New("tracking slot out of range")

// Calibrator holds one baseline per tracking slot. Relative angles are
// reported as current minus baseline; an uncalibrated slot has a zero baseline.
// Baselines are only replaced by Calibrate or cleared by Reset.
type Calibrator struct {
	mu        sync.RWMutex
	baselines []EulerAngles
	set       []bool
}

func NewCalibrator(slots int) *Calibrator {
	return &Calibrator{
		baselines: make([]EulerAngles, slots),
		set:       make([]bool, slots),
	}
}

func (c *Calibrator) Calibrate(slot int, current EulerAngles) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slot < 0 || slot >= len(c.baselines) {
		return fmt.Errorf("calibrate slot %d: %w", slot, ErrSlotOutOfRange)
	}
	c.baselines[slot] = current
	c.set[slot] = true
	return nil
}

func (c *Calibrator) Relative(slot int, current EulerAngles) (EulerAngles, error) {
	base, _, err := c.Baseline(slot)
	if err != nil {
		return EulerAngles{}, err
	}
	return current.Sub(base), nil
}

// Baseline returns the slot's baseline and whether one was captured.
func (c *Calibrator) Baseline(slot int) (EulerAngles, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if slot < 0 || slot >= len(c.baselines) {
		return EulerAngles{}, false, fmt.Errorf("baseline slot %d: %w", slot, ErrSlotOutOfRange)
	}
	return c.baselines[slot], c.set[slot], nil
}

func (c *Calibrator) Reset(slot int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slot < 0 || slot >= len(c.baselines) {
		return fmt.Errorf("reset slot %d: %w", slot, ErrSlotOutOfRange)
	}
	c.baselines[slot] = EulerAngles{}
	c.set[slot] = false
	return nil
}
