package orientation

import (
	"errors"
	"math"
	"testing"
)

func yawQuaternion(deg float64) Quaternion {
	half := deg * math.Pi / 360
	return Quaternion{Y: math.Sin(half), W: math.Cos(half)}
}

func TestCalibrateThenRelativeYaw(t *testing.T) {
	c := NewCalibrator(6)

	base := ToEuler(Quaternion{Y: 0.3827, W: 0.9239})
	if !almostEqual(base.Yaw, 45, 0.01) || !almostEqual(base.Pitch, 0, 1e-9) || !almostEqual(base.Roll, 0, 1e-9) {
		t.Fatalf("baseline: got %+v, want yaw≈45", base)
	}
	if err := c.Calibrate(2, base); err != nil {
		t.Fatal(err)
	}

	rel, err := c.Relative(2, ToEuler(yawQuaternion(50)))
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(rel.Yaw, 5, 0.01) {
		t.Errorf("relative yaw: got %f, want 5", rel.Yaw)
	}
}

func TestRelativeQuantizedCalibration(t *testing.T) {
	conv := Converter{Quantize: true, Increment: DefaultIncrement}
	c := NewCalibrator(1)
	if err := c.Calibrate(0, conv.Euler(yawQuaternion(45))); err != nil {
		t.Fatal(err)
	}
	rel, err := c.Relative(0, conv.Euler(yawQuaternion(50)))
	if err != nil {
		t.Fatal(err)
	}
	if rel.Yaw != 5 {
		t.Errorf("relative yaw: got %f, want 5", rel.Yaw)
	}
}

func TestRelativeUncalibratedIsAbsolute(t *testing.T) {
	c := NewCalibrator(2)
	cur := EulerAngles{Pitch: 10, Yaw: -20, Roll: 3}
	rel, err := c.Relative(1, cur)
	if err != nil {
		t.Fatal(err)
	}
	if rel != cur {
		t.Errorf("got %+v, want %+v", rel, cur)
	}
}

func TestCalibrateOverwritesAndReset(t *testing.T) {
	c := NewCalibrator(1)
	_ = c.Calibrate(0, EulerAngles{Yaw: 10})
	_ = c.Calibrate(0, EulerAngles{Yaw: 30})

	base, ok, _ := c.Baseline(0)
	if !ok || base.Yaw != 30 {
		t.Fatalf("baseline: got %+v (set=%v), want yaw 30", base, ok)
	}
	if err := c.Reset(0); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Baseline(0); ok {
		t.Error("baseline still set after Reset")
	}
}

func TestCalibratorSlotRange(t *testing.T) {
	c := NewCalibrator(6)
	if err := c.Calibrate(6, EulerAngles{}); !errors.Is(err, ErrSlotOutOfRange) {
		t.Errorf("Calibrate(6): got %v, want ErrSlotOutOfRange", err)
	}
	if _, err := c.Relative(-1, EulerAngles{}); !errors.Is(err, ErrSlotOutOfRange) {
		t.Errorf("Relative(-1): got %v, want ErrSlotOutOfRange", err)
	}
}

func TestSlotsBindFaceRelease(t *testing.T) {
	s := NewSlots(6)
	if _, ok := s.Valid(0); ok {
		t.Fatal("fresh slot reported valid")
	}

	if err := s.Bind(0, 72057594037928000); err != nil {
		t.Fatal(err)
	}
	if accepted, _ := s.SetFace(0, 42, Identity); accepted {
		t.Error("face for a foreign tracking id was accepted")
	}
	if _, ok := s.Face(0); ok {
		t.Error("face present before any matching result")
	}
	if accepted, err := s.SetFace(0, 72057594037928000, yawQuaternion(10)); err != nil || !accepted {
		t.Fatalf("SetFace: accepted=%v err=%v", accepted, err)
	}
	if _, ok := s.Face(0); !ok {
		t.Error("face missing after SetFace")
	}

	// rebinding to the same id keeps the face result
	_ = s.Bind(0, 72057594037928000)
	if _, ok := s.Face(0); !ok {
		t.Error("rebinding the same id dropped the face")
	}

	s.Release(0)
	if _, ok := s.Valid(0); ok {
		t.Error("slot valid after Release")
	}
	if _, ok := s.Face(0); ok {
		t.Error("face kept after Release")
	}
}

func TestReleaseKeepsBaseline(t *testing.T) {
	slots := NewSlots(2)
	cal := NewCalibrator(2)
	_ = slots.Bind(1, 7)
	_ = cal.Calibrate(1, EulerAngles{Yaw: 15})

	slots.Release(1)

	if base, ok, _ := cal.Baseline(1); !ok || base.Yaw != 15 {
		t.Errorf("baseline after tracking loss: got %+v (set=%v), want yaw 15", base, ok)
	}
}
