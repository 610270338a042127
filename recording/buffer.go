// Package recording buffers per-person head orientation and voice activity
// for one recording session and exports it as CSV and JSON.
package recording

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/geo/r3"

	"github.com/maastricht-university/edmo-sensing/orientation"
)

var (
	ErrNotRecording = errors.New("not recording")
	ErrOutOfOrder   = errors.New("record time goes backwards")
)

// FaceRecord is one tracked person in one processed frame.
type FaceRecord struct {
	Time       Elapsed `json:"time"`
	TrackingID int     `json:"trackingID"`
	Pitch      float64 `json:"pitch"`
	Yaw        float64 `json:"yaw"`
	Roll       float64 `json:"roll"`
	PositionX  float64 `json:"positionX"`
	PositionY  float64 `json:"positionY"`
	PositionZ  float64 `json:"positionZ"`
	BeamAngle  float32 `json:"beamAngle"`
	IsSpeaking bool    `json:"isSpeaking"`
}

func (f FaceRecord) Position() r3.Vector {
	return r3.Vector{X: f.PositionX, Y: f.PositionY, Z: f.PositionZ}
}

func (f FaceRecord) Angles() orientation.EulerAngles {
	return orientation.EulerAngles{Pitch: f.Pitch, Yaw: f.Yaw, Roll: f.Roll}
}

// Snapshot is the frozen content of a stopped session.
type Snapshot struct {
	StartedAt time.Time
	StoppedAt time.Time
	Faces     []FaceRecord
	RawLines  []string
}

// Buffer is an append-only recorder for one session at a time. Records
// must arrive in non-decreasing time order.
type Buffer struct {
	mu        sync.Mutex
	now       func() time.Time
	recording bool
	startedAt time.Time
	faces     []FaceRecord
	rawLines  []string
}

// NewBuffer returns a stopped buffer. A nil clock uses time.Now.
func NewBuffer(clock func() time.Time) *Buffer {
	if clock == nil {
		clock = time.Now
	}
	return &Buffer{now: clock}
}

// Start begins a new session, discarding anything recorded before.
func (b *Buffer) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recording = true
	b.startedAt = b.now()
	b.faces = nil
	b.rawLines = nil
}

func (b *Buffer) Recording() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recording
}

// Elapsed is the time since Start, or zero when not recording.
func (b *Buffer) Elapsed() Elapsed {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.recording {
		return 0
	}
	return NewElapsed(b.now().Sub(b.startedAt))
}

func (b *Buffer) AppendFace(trackingID int, elapsed Elapsed, rel orientation.EulerAngles, pos r3.Vector, beamAngle float32, isSpeaking bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.recording {
		return ErrNotRecording
	}
	if n := len(b.faces); n > 0 && elapsed < b.faces[n-1].Time {
		return fmt.Errorf("append face at %s after %s: %w", elapsed, b.faces[n-1].Time, ErrOutOfOrder)
	}
	b.faces = append(b.faces, FaceRecord{
		Time:       elapsed,
		TrackingID: trackingID,
		Pitch:      rel.Pitch,
		Yaw:        rel.Yaw,
		Roll:       rel.Roll,
		PositionX:  pos.X,
		PositionY:  pos.Y,
		PositionZ:  pos.Z,
		BeamAngle:  beamAngle,
		IsSpeaking: isSpeaking,
	})
	return nil
}

// AppendRawLine adds a comma separated line to the joint-position track.
// The first column must be the record time.
func (b *Buffer) AppendRawLine(line string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.recording {
		return ErrNotRecording
	}
	b.rawLines = append(b.rawLines, line)
	return nil
}

// Stop ends the session and returns its content. Appends fail until the
// next Start.
func (b *Buffer) Stop() (*Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.recording {
		return nil, ErrNotRecording
	}
	b.recording = false
	snap := &Snapshot{
		StartedAt: b.startedAt,
		StoppedAt: b.now(),
		Faces:     b.faces,
		RawLines:  b.rawLines,
	}
	// the snapshot owns the slices from here on
	b.faces = nil
	b.rawLines = nil
	return snap, nil
}
