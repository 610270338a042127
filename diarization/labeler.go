// Package diarization splits a recorded timeline into speaking turns
// attributed to the side of the sensor the voice came from.
package diarization

import (
	"github.com/maastricht-university/edmo-sensing/recording"
)

type LabelType string

const (
	LeftSpeak  LabelType = "LeftSpeak"
	RightSpeak LabelType = "RightSpeak"
)

func typeFor(beamAngle float32) LabelType {
	if beamAngle > 0 {
		return LeftSpeak
	}
	return RightSpeak
}

type Segment struct {
	StartTime recording.Elapsed `json:"StartTime"`
	EndTime   recording.Elapsed `json:"EndTime"`
	LabelType LabelType         `json:"LabelType"`
}

// Labeler is a single pass state machine over time ordered observations.
type Labeler struct {
	prevSpeaking  bool
	prevBeamAngle float32
	start         recording.Elapsed
	current       LabelType
	last          recording.Elapsed
	seen          bool
	segments      []Segment
}

func NewLabeler() *Labeler { return &Labeler{} }

// Observe feeds one observation and returns the segment it closed, if any.
func (l *Labeler) Observe(t recording.Elapsed, beamAngle float32, speaking bool) []Segment {
	before := len(l.segments)
	switch {
	case !l.prevSpeaking && speaking:
		l.start = t
		l.current = typeFor(beamAngle)
	case l.prevSpeaking && !speaking:
		l.emit(t)
	case speaking && beamAngle != 0 && l.prevBeamAngle != 0 &&
		(beamAngle > 0) != (l.prevBeamAngle > 0):
		// turn change without a pause in between
		l.emit(t)
		l.start = t
		l.current = flip(l.current)
	}
	l.prevSpeaking = speaking
	l.prevBeamAngle = beamAngle
	l.last = t
	l.seen = true
	return l.segments[before:]
}

// Open reports whether a speaking interval is still open.
func (l *Labeler) Open() bool { return l.prevSpeaking }

// Close terminates an open interval at the last observed time. It returns
// false when nothing was emitted: no interval was open, or it opened at the
// last observation and would have zero length.
func (l *Labeler) Close() bool {
	if !l.seen || !l.prevSpeaking {
		return false
	}
	l.prevSpeaking = false
	if l.start == l.last {
		return false
	}
	l.emit(l.last)
	return true
}

func (l *Labeler) Segments() []Segment {
	out := make([]Segment, len(l.segments))
	copy(out, l.segments)
	return out
}

func (l *Labeler) emit(end recording.Elapsed) {
	l.segments = append(l.segments, Segment{StartTime: l.start, EndTime: end, LabelType: l.current})
}

func flip(t LabelType) LabelType {
	if t == LeftSpeak {
		return RightSpeak
	}
	return LeftSpeak
}

// Label derives segments from records. When closeOpen is set, an interval
// still open at the end of the timeline is closed at the last record;
// otherwise it is dropped.
func Label(records []recording.FaceRecord, closeOpen bool) []Segment {
	l := NewLabeler()
	for _, r := range records {
		l.Observe(r.Time, r.BeamAngle, r.IsSpeaking)
	}
	if closeOpen {
		l.Close()
	}
	segs := l.Segments()
	if segs == nil {
		segs = []Segment{}
	}
	return segs
}
