package ingest

import (
	"sync/atomic"
	"time"
)

type Metrics struct {
	bodyFrames    atomic.Int64
	faceFrames    atomic.Int64
	audioFrames   atomic.Int64
	commands      atomic.Int64
	errors        atomic.Int64
	lastFrameTime atomic.Int64

	wsConnections atomic.Int64
	wsMessages    atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) observe(t MessageType) {
	m.wsMessages.Add(1)
	switch t {
	case MsgBody:
		m.bodyFrames.Add(1)
	case MsgFace:
		m.faceFrames.Add(1)
	case MsgAudio:
		m.audioFrames.Add(1)
	default:
		m.commands.Add(1)
		return
	}
	m.lastFrameTime.Store(time.Now().Unix())
}

func (m *Metrics) IncrementErrors() {
	m.errors.Add(1)
}

func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"body_frames":     m.bodyFrames.Load(),
		"face_frames":     m.faceFrames.Load(),
		"audio_frames":    m.audioFrames.Load(),
		"commands":        m.commands.Load(),
		"errors":          m.errors.Load(),
		"last_frame_time": m.lastFrameTime.Load(),
		"ws_connections":  m.wsConnections.Load(),
		"ws_messages":     m.wsMessages.Load(),
	}
}
