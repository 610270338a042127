// Package vad flags speech from the energy of beamformed audio subframes.
package vad

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

const (
	// DefaultThresholdDb is the energy above which a sample counts as speech.
	DefaultThresholdDb = -70
	// SamplesPerColumn divides the accumulated square sum.
	SamplesPerColumn = 40
	// SubFrameBytes is the sensor's audio subframe length (256 float32 samples).
	SubFrameBytes = 1024
)

// SilenceDb is reported while no sample energy has been measured.
var SilenceDb = float32(math.Inf(-1))

// Frame is the detector output for one sample. BeamAngle < 0 means the
// source is to the sensor's right, > 0 to its left.
type Frame struct {
	EnergyDb   float32 `json:"energyDb"`
	BeamAngle  float32 `json:"beamAngle"`
	IsSpeaking bool    `json:"isSpeaking"`
}

// Direction is the display label for the frame's beam angle.
func (f Frame) Direction() string {
	return Direction(f.BeamAngle)
}

func Direction(beamAngle float32) string {
	if beamAngle < 0 {
		return "right"
	}
	return "left"
}

type Detector struct {
	mu          sync.Mutex
	threshold   float32
	divisor     float32
	accumulator float32
	beamAngle   float32
	last        Frame
}

// New returns a detector using thresholdDb. A zero samplesPerColumn falls
// back to SamplesPerColumn.
func New(thresholdDb float32, samplesPerColumn int) *Detector {
	if samplesPerColumn <= 0 {
		samplesPerColumn = SamplesPerColumn
	}
	return &Detector{
		threshold: thresholdDb,
		divisor:   float32(samplesPerColumn),
		last:      Frame{EnergyDb: SilenceDb},
	}
}

// Process runs one subframe of samples and returns one Frame per sample.
//
// The accumulator is reset after every sample, so each energy value is the
// square of a single sample over the column size. Consumers rely on this
// per-sample cadence.
func (d *Detector) Process(beamAngle float32, samples []float32) []Frame {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.beamAngle = beamAngle
	out := make([]Frame, 0, len(samples))
	for _, s := range samples {
		d.accumulator += s * s
		meanSquare := d.accumulator / d.divisor
		if meanSquare > 1 {
			meanSquare = 1
		}
		energy := SilenceDb
		if meanSquare > 0 {
			energy = float32(10 * math.Log10(float64(meanSquare)))
		}
		d.accumulator = 0

		f := Frame{EnergyDb: energy, BeamAngle: beamAngle, IsSpeaking: energy > d.threshold}
		out = append(out, f)
		d.last = f
	}
	return out
}

// ProcessBytes decodes a little-endian float32 PCM subframe and runs Process.
func (d *Detector) ProcessBytes(beamAngle float32, subFrame []byte) ([]Frame, error) {
	samples, err := DecodeSamples(subFrame)
	if err != nil {
		return nil, err
	}
	return d.Process(beamAngle, samples), nil
}

// Last returns the most recent frame. Its beam angle follows the last
// processed subframe even when that subframe was empty.
func (d *Detector) Last() Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.last
	f.BeamAngle = d.beamAngle
	return f
}

func DecodeSamples(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("audio subframe of %d bytes is not float32 aligned", len(b))
	}
	samples := make([]float32, len(b)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return samples, nil
}

func EncodeSamples(samples []float32) []byte {
	b := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(s))
	}
	return b
}
