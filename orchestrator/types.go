package orchestrator

import (
	"time"

	"github.com/golang/geo/r3"

	"github.com/maastricht-university/edmo-sensing/diarization"
	"github.com/maastricht-university/edmo-sensing/orientation"
	"github.com/maastricht-university/edmo-sensing/recording"
)

type JointType string

const (
	JointHead          JointType = "Head"
	JointNeck          JointType = "Neck"
	JointSpineShoulder JointType = "SpineShoulder"
	JointShoulderLeft  JointType = "ShoulderLeft"
	JointShoulderRight JointType = "ShoulderRight"
	JointHandLeft      JointType = "HandLeft"
	JointHandRight     JointType = "HandRight"
)

// rawJoints are written to the raw track after the head angles, in order.
var rawJoints = []JointType{JointHead, JointShoulderLeft, JointShoulderRight, JointHandLeft, JointHandRight}

type TrackingState string

const (
	NotTracked TrackingState = "NotTracked"
	Inferred   TrackingState = "Inferred"
	Tracked    TrackingState = "Tracked"
)

type Joint struct {
	Position    r3.Vector              `json:"position"` // camera space, meters
	Orientation orientation.Quaternion `json:"orientation"`
	State       TrackingState          `json:"state"`
}

// Body is one entry of the sensor's body array; Slot is its index.
type Body struct {
	Slot       int                 `json:"slot"`
	TrackingID uint64              `json:"trackingId"`
	Tracked    bool                `json:"tracked"`
	Joints     map[JointType]Joint `json:"joints"`
}

type BodyFrame struct {
	Bodies []Body `json:"bodies"`
}

// FaceFrame carries the face rotation for the person tracked in Slot.
type FaceFrame struct {
	Slot       int                    `json:"slot"`
	TrackingID uint64                 `json:"trackingId"`
	Rotation   orientation.Quaternion `json:"rotation"`
}

type AudioSubFrame struct {
	BeamAngle float32 `json:"beamAngle"` // radians; < 0 is the sensor's right
	Data      []byte  `json:"data"`      // little-endian float32 PCM
}

// AudioBeamFrame holds the subframes of the single active beam.
type AudioBeamFrame struct {
	SubFrames []AudioSubFrame `json:"subFrames"`
}

// Session is the result of a stopped recording.
type Session struct {
	ID         string                 `json:"id"`
	Dir        string                 `json:"dir"`
	StartedAt  time.Time              `json:"started_at"`
	StoppedAt  time.Time              `json:"stopped_at"`
	Faces      []recording.FaceRecord `json:"-"`
	RawLines   []string               `json:"-"`
	Labels     []diarization.Segment  `json:"-"`
	Summary    Summary                `json:"summary"`
	Files      recording.Files        `json:"files"`
	LabelsJSON string                 `json:"labels_json"`
	LabelsCSV  string                 `json:"labels_csv"`
}

// SlotStats aggregates the relative head angles recorded for one slot.
type SlotStats struct {
	TrackingID int     `json:"tracking_id"`
	Records    int     `json:"records"`
	MeanPitch  float64 `json:"mean_pitch"`
	StdPitch   float64 `json:"std_pitch"`
	MeanYaw    float64 `json:"mean_yaw"`
	StdYaw     float64 `json:"std_yaw"`
	MeanRoll   float64 `json:"mean_roll"`
	StdRoll    float64 `json:"std_roll"`
}

type Summary struct {
	Duration      float64                           `json:"duration_sec"`
	Records       int                               `json:"records"`
	Slots         []SlotStats                       `json:"slots"`
	Turns         int                               `json:"turns"`
	SpeakingTime  map[diarization.LabelType]float64 `json:"speaking_time_sec"`
	SpeakingShare map[diarization.LabelType]float64 `json:"speaking_share"` // of total speaking time
}

type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventSessionStopped EventType = "session_stopped"
	EventCalibrated     EventType = "calibrated"
	EventVoice          EventType = "voice"
)

// Event is a live notification about pipeline state.
type Event struct {
	Type      EventType `json:"type"`
	Time      time.Time `json:"time"`
	Session   string    `json:"session,omitempty"`
	Slots     []int     `json:"slots,omitempty"`
	BeamAngle float32   `json:"beamAngle"`
	Direction string    `json:"direction,omitempty"`
	Speaking  bool      `json:"speaking"`
	Labels    int       `json:"labels,omitempty"`
}
