// Package ingest feeds sensor frames and session commands into the
// pipeline, live over a websocket or from a recorded JSONL capture.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/maastricht-university/edmo-sensing/orchestrator"
)

type MessageType string

const (
	MsgBody      MessageType = "body"
	MsgFace      MessageType = "face"
	MsgAudio     MessageType = "audio"
	MsgStart     MessageType = "start"
	MsgStop      MessageType = "stop"
	MsgCalibrate MessageType = "calibrate"
	MsgPing      MessageType = "ping"
)

// Message is one line of a capture or one websocket message from the
// sensor bridge. Timestamp is the capture time; replays follow it.
type Message struct {
	Type      MessageType                  `json:"type"`
	Timestamp time.Time                    `json:"timestamp"`
	Body      *orchestrator.BodyFrame      `json:"body,omitempty"`
	Face      *orchestrator.FaceFrame      `json:"face,omitempty"`
	Audio     *orchestrator.AudioBeamFrame `json:"audio,omitempty"`
}

// Reply is sent back to websocket clients.
type Reply struct {
	Type      string `json:"type"`
	ClientID  string `json:"client_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Payload   any    `json:"payload,omitempty"`
}

// Pipeline is the part of orchestrator.Pipeline driven by ingest.
type Pipeline interface {
	SubmitBody(ctx context.Context, f *orchestrator.BodyFrame) error
	SubmitFace(ctx context.Context, f *orchestrator.FaceFrame) error
	SubmitAudio(ctx context.Context, f *orchestrator.AudioBeamFrame) error
	Start(ctx context.Context) string
	Stop(ctx context.Context) (*orchestrator.Session, error)
	Calibrate(ctx context.Context) []int
	Recording() bool
	Flush()
}

// Dispatch applies msg to p. Control messages return a payload for the
// reply; frames return nil. A frame message without its frame is skipped.
func Dispatch(ctx context.Context, p Pipeline, msg Message) (any, error) {
	switch msg.Type {
	case MsgBody:
		return nil, p.SubmitBody(ctx, msg.Body)
	case MsgFace:
		return nil, p.SubmitFace(ctx, msg.Face)
	case MsgAudio:
		return nil, p.SubmitAudio(ctx, msg.Audio)
	case MsgStart:
		return map[string]string{"session": p.Start(ctx)}, nil
	case MsgCalibrate:
		// frames already queued carry the orientation the user calibrated on
		p.Flush()
		return map[string][]int{"slots": p.Calibrate(ctx)}, nil
	case MsgStop:
		p.Flush()
		s, err := p.Stop(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	case MsgPing:
		return "pong", nil
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
}
