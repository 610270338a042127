// Package orientation converts face rotation quaternions into head angles and
// keeps the per-slot calibration baselines they are reported against.
package orientation

import "math"

// DefaultIncrement is the quantization step in degrees.
const DefaultIncrement = 5.0

type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity is the no-rotation quaternion.
var Identity = Quaternion{W: 1}

// EulerAngles are in degrees.
type EulerAngles struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

func (e EulerAngles) Sub(o EulerAngles) EulerAngles {
	return EulerAngles{Pitch: e.Pitch - o.Pitch, Yaw: e.Yaw - o.Yaw, Roll: e.Roll - o.Roll}
}

// ToEuler decomposes q into pitch (about x), yaw (about y) and roll (about z).
func ToEuler(q Quaternion) EulerAngles {
	x, y, z, w := q.X, q.Y, q.Z, q.W

	pitch := math.Atan2(2*(y*z+w*x), w*w-x*x-y*y+z*z)
	// rounding noise can push the argument just outside asin's domain near ±90°
	yaw := math.Asin(clamp(2*(w*y-x*z), -1, 1))
	roll := math.Atan2(2*(x*y+w*z), w*w+x*x-y*y-z*z)

	return EulerAngles{Pitch: degrees(pitch), Yaw: degrees(yaw), Roll: degrees(roll)}
}

// Quantize rounds angle to the nearest multiple of increment, ties away from
// zero. A non-positive increment returns angle unchanged.
func Quantize(angle, increment float64) float64 {
	if increment <= 0 {
		return angle
	}
	half := increment / 2
	if angle < 0 {
		half = -half
	}
	q := math.Trunc((angle+half)/increment) * increment
	if q == 0 {
		return 0 // no negative zero
	}
	return q
}

// Converter turns quaternions into Euler angles in one of two modes: raw
// continuous degrees, or quantized to Increment.
type Converter struct {
	Quantize  bool
	Increment float64
}

func (c Converter) Euler(q Quaternion) EulerAngles {
	e := ToEuler(q)
	if !c.Quantize {
		return e
	}
	return EulerAngles{
		Pitch: Quantize(e.Pitch, c.Increment),
		Yaw:   Quantize(e.Yaw, c.Increment),
		Roll:  Quantize(e.Roll, c.Increment),
	}
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
