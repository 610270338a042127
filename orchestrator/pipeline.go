package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/edmo-sensing/clients"
	cfg "github.com/maastricht-university/edmo-sensing/config"
	"github.com/maastricht-university/edmo-sensing/diarization"
	"github.com/maastricht-university/edmo-sensing/orientation"
	"github.com/maastricht-university/edmo-sensing/recording"
	"github.com/maastricht-university/edmo-sensing/vad"
)

// logEvery is the number of body frames between head direction log lines.
const logEvery = 60

// ErrStopped is returned for frames submitted after Run has returned.
var ErrStopped = errors.New("pipeline stopped")

// Store persists finished sessions.
type Store interface {
	SaveSession(ctx context.Context, s *Session) error
}

// Publisher fans live events out to observers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Option func(*Pipeline)

func WithLogger(l logrus.FieldLogger) Option { return func(p *Pipeline) { p.log = l } }

// WithClock replaces time.Now for session timing and file names.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

func WithStore(s Store) Option { return func(p *Pipeline) { p.store = s } }

func WithPublisher(pub Publisher) Option { return func(p *Pipeline) { p.events = pub } }

// Pipeline turns body, face and audio frames into recorded head direction
// and voice activity. Each source is consumed by its own goroutine in Run;
// state shared between them is guarded by the components themselves.
type Pipeline struct {
	cfg    *cfg.Root
	http   *clients.HTTP
	log    logrus.FieldLogger
	now    func() time.Time
	store  Store
	events Publisher

	conv  orientation.Converter
	slots *orientation.Slots
	cal   *orientation.Calibrator
	vad   *vad.Detector
	buf   *recording.Buffer

	bodyCh  chan *BodyFrame
	faceCh  chan *FaceFrame
	audioCh chan *AudioBeamFrame

	mu        sync.Mutex
	idle      *sync.Cond
	inflight  int
	stopped   bool
	sessionID string

	// owned by the body goroutine
	bodyFrames int
	// owned by the audio goroutine
	lastDirection string
	lastSpeaking  bool
}

func NewPipeline(c *cfg.Root, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     c,
		http:    clients.NewHTTP(),
		log:     logrus.StandardLogger(),
		now:     time.Now,
		conv:    orientation.Converter{Quantize: c.Orientation.Quantize, Increment: c.Orientation.Increment},
		slots:   orientation.NewSlots(c.Sensor.MaxBodies),
		cal:     orientation.NewCalibrator(c.Sensor.MaxBodies),
		vad:     vad.New(float32(c.Audio.ThresholdDb), c.Audio.SamplesPerColumn),
		bodyCh:  make(chan *BodyFrame, 32),
		faceCh:  make(chan *FaceFrame, 32),
		audioCh: make(chan *AudioBeamFrame, 64),
	}
	for _, o := range opts {
		o(p)
	}
	p.idle = sync.NewCond(&p.mu)
	p.buf = recording.NewBuffer(p.now)
	return p
}

// Run consumes the three frame sources until ctx is done. Frames still
// queued when it returns are dropped and later submissions fail with
// ErrStopped.
func (p *Pipeline) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); consume(ctx, p.bodyCh, p.handleBody, p.done) }()
	go func() { defer wg.Done(); consume(ctx, p.faceCh, p.handleFace, p.done) }()
	go func() { defer wg.Done(); consume(ctx, p.audioCh, p.handleAudio, p.done) }()
	wg.Wait()

	p.mu.Lock()
	p.stopped = true
	dropped := p.inflight
	p.idle.Broadcast()
	p.mu.Unlock()
	if dropped > 0 {
		p.log.WithField("frames", dropped).Warn("pipeline stopped with frames queued")
	}
	return nil
}

func consume[T any](ctx context.Context, ch <-chan T, handle func(T), done func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-ch:
			handle(f)
			done()
		}
	}
}

func (p *Pipeline) SubmitBody(ctx context.Context, f *BodyFrame) error {
	if f == nil {
		return nil
	}
	return submit(ctx, p, p.bodyCh, f)
}

func (p *Pipeline) SubmitFace(ctx context.Context, f *FaceFrame) error {
	if f == nil {
		return nil
	}
	return submit(ctx, p, p.faceCh, f)
}

func (p *Pipeline) SubmitAudio(ctx context.Context, f *AudioBeamFrame) error {
	if f == nil {
		return nil
	}
	return submit(ctx, p, p.audioCh, f)
}

func submit[T any](ctx context.Context, p *Pipeline, ch chan<- T, f T) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.inflight++
	p.mu.Unlock()
	select {
	case ch <- f:
		return nil
	case <-ctx.Done():
		p.done()
		return ctx.Err()
	}
}

func (p *Pipeline) done() {
	p.mu.Lock()
	p.inflight--
	if p.inflight == 0 {
		p.idle.Broadcast()
	}
	p.mu.Unlock()
}

// Flush blocks until every frame submitted so far has been handled, or
// until Run has returned. Run must have been started.
func (p *Pipeline) Flush() {
	p.mu.Lock()
	for p.inflight > 0 && !p.stopped {
		p.idle.Wait()
	}
	p.mu.Unlock()
}

func (p *Pipeline) handleBody(f *BodyFrame) {
	p.bodyFrames++
	logLine := p.bodyFrames%logEvery == 0
	elapsed := p.buf.Elapsed()

	for i := range f.Bodies {
		b := &f.Bodies[i]
		id, valid := p.slots.Valid(b.Slot)
		switch {
		case valid && (!b.Tracked || b.TrackingID != id):
			// person left; the baseline stays until the next explicit calibration
			p.slots.Release(b.Slot)
			p.log.WithFields(logrus.Fields{"slot": b.Slot, "tracking_id": id}).Info("tracking lost")
		case valid:
			p.headDirection(b, elapsed, logLine)
		case b.Tracked:
			if err := p.slots.Bind(b.Slot, b.TrackingID); err != nil {
				p.log.WithError(err).Warn("bind slot")
				continue
			}
			p.log.WithFields(logrus.Fields{"slot": b.Slot, "tracking_id": b.TrackingID}).Info("tracking acquired")
		}
	}
}

func (p *Pipeline) headDirection(b *Body, elapsed recording.Elapsed, logLine bool) {
	q, ok := p.slots.Face(b.Slot)
	if !ok {
		return
	}
	rel, err := p.cal.Relative(b.Slot, p.conv.Euler(q))
	if err != nil {
		p.log.WithError(err).Warn("relative angle")
		return
	}
	if logLine {
		p.log.WithFields(logrus.Fields{
			"slot": b.Slot, "pitch": rel.Pitch, "yaw": rel.Yaw, "roll": rel.Roll,
		}).Debug("head direction")
	}
	if !p.buf.Recording() {
		return
	}

	audio := p.vad.Last()
	head := b.Joints[JointHead].Position
	err = p.buf.AppendFace(b.Slot, elapsed, rel, head, audio.BeamAngle, audio.IsSpeaking)
	if err == nil {
		err = p.buf.AppendRawLine(rawLine(elapsed, b, rel))
	}
	// ErrNotRecording: stopped between the check and the append
	if err != nil && !errors.Is(err, recording.ErrNotRecording) {
		p.log.WithError(err).WithField("slot", b.Slot).Warn("record face")
	}
}

// rawLine renders "time,[slot],pitch,yaw,roll" followed by x,y,z of each of
// rawJoints; untracked joints leave their columns empty.
func rawLine(elapsed recording.Elapsed, b *Body, rel orientation.EulerAngles) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s,[%d],%s,%s,%s", elapsed, b.Slot, ftoa(rel.Pitch), ftoa(rel.Yaw), ftoa(rel.Roll))
	for _, jt := range rawJoints {
		j, ok := b.Joints[jt]
		if !ok || j.State == NotTracked {
			sb.WriteString(",,,")
			continue
		}
		fmt.Fprintf(&sb, ",%.4f,%.4f,%.4f", j.Position.X, j.Position.Y, j.Position.Z)
	}
	return sb.String()
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func (p *Pipeline) handleFace(f *FaceFrame) {
	accepted, err := p.slots.SetFace(f.Slot, f.TrackingID, f.Rotation)
	if err != nil {
		p.log.WithError(err).Warn("face frame")
		return
	}
	if !accepted {
		p.log.WithField("slot", f.Slot).Debug("face frame for unbound tracking id")
	}
}

func (p *Pipeline) handleAudio(f *AudioBeamFrame) {
	processed := 0
	for _, sub := range f.SubFrames {
		if n := p.cfg.Audio.SubFrameBytes; n > 0 && len(sub.Data) != n {
			p.log.WithFields(logrus.Fields{"bytes": len(sub.Data), "want": n}).Warn("audio subframe length, skipped")
			continue
		}
		if _, err := p.vad.ProcessBytes(sub.BeamAngle, sub.Data); err != nil {
			p.log.WithError(err).Warn("audio subframe")
			continue
		}
		processed++
	}
	if processed == 0 {
		return
	}
	last := p.vad.Last()
	dir := last.Direction()
	if dir == p.lastDirection && last.IsSpeaking == p.lastSpeaking {
		return
	}
	p.lastDirection, p.lastSpeaking = dir, last.IsSpeaking
	p.log.WithFields(logrus.Fields{
		"direction": dir, "beam_angle": last.BeamAngle, "speaking": last.IsSpeaking, "energy_db": last.EnergyDb,
	}).Debug("voice activity")
	p.publish(context.Background(), Event{
		Type: EventVoice, BeamAngle: last.BeamAngle, Direction: dir, Speaking: last.IsSpeaking,
	})
}

// Start begins a new recording session, discarding any session in progress.
func (p *Pipeline) Start(ctx context.Context) string {
	id := uuid.NewString()
	p.mu.Lock()
	p.sessionID = id
	p.mu.Unlock()
	p.buf.Start()
	p.log.WithField("session", id).Info("recording started")
	p.publish(ctx, Event{Type: EventSessionStarted, Session: id})
	return id
}

func (p *Pipeline) Recording() bool { return p.buf.Recording() }

// Calibrate captures the current orientation of every slot that is tracked
// and has a face result as that slot's baseline. It returns the slots
// calibrated.
func (p *Pipeline) Calibrate(ctx context.Context) []int {
	var done []int
	for slot := 0; slot < p.slots.Len(); slot++ {
		if _, ok := p.slots.Valid(slot); !ok {
			continue
		}
		q, ok := p.slots.Face(slot)
		if !ok {
			continue
		}
		e := p.conv.Euler(q)
		if err := p.cal.Calibrate(slot, e); err != nil {
			p.log.WithError(err).Warn("calibrate")
			continue
		}
		p.log.WithFields(logrus.Fields{"slot": slot, "pitch": e.Pitch, "yaw": e.Yaw, "roll": e.Roll}).Info("calibrated")
		done = append(done, slot)
	}
	p.publish(ctx, Event{Type: EventCalibrated, Slots: done})
	return done
}

// Stop ends the session, derives labels and writes the session files.
// Export failures are returned; store, visualization and live sinks are
// best effort and only logged.
func (p *Pipeline) Stop(ctx context.Context) (*Session, error) {
	snap, err := p.buf.Stop()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	id := p.sessionID
	p.mu.Unlock()

	labels := diarization.Label(snap.Faces, p.cfg.Diarization.CloseOpenSegment)
	s := &Session{
		ID:        id,
		StartedAt: snap.StartedAt,
		StoppedAt: snap.StoppedAt,
		Faces:     snap.Faces,
		RawLines:  snap.RawLines,
		Labels:    labels,
		Summary:   summarize(snap, labels),
	}
	log := p.log.WithField("session", id)
	log.WithFields(logrus.Fields{"records": len(s.Faces), "labels": len(labels)}).Info("recording stopped")

	if err := p.persist(s, snap); err != nil {
		return s, fmt.Errorf("persist session: %w", err)
	}
	log.WithField("dir", s.Dir).Info("session exported")

	if p.store != nil {
		if err := p.store.SaveSession(ctx, s); err != nil {
			log.WithError(err).Warn("store session")
		}
	}
	if url := p.cfg.Services.Visualization.URL; url != "" {
		p.visualize(ctx, url, s)
	}
	p.publish(ctx, Event{Type: EventSessionStopped, Session: id, Labels: len(labels)})
	return s, nil
}

func (p *Pipeline) visualize(ctx context.Context, url string, s *Session) {
	req := clients.TimelineReq{OutputDir: s.Dir}
	for _, l := range s.Labels {
		req.Timestamps = append(req.Timestamps, l.StartTime.Seconds())
		req.Durations = append(req.Durations, (l.EndTime - l.StartTime).Seconds())
		req.Speakers = append(req.Speakers, string(l.LabelType))
	}
	if resp, err := p.http.GenerateTimeline(ctx, url, req); err != nil {
		p.log.WithError(err).Warn("visualization timeline")
	} else {
		p.log.WithField("path", resp.Path).Info("timeline generated")
	}
	for _, st := range s.Summary.Slots {
		radar := clients.RadarReq{
			Categories:  []string{"pitch", "yaw", "roll", "pitch_sd", "yaw_sd", "roll_sd"},
			Values:      []float64{st.MeanPitch, st.MeanYaw, st.MeanRoll, st.StdPitch, st.StdYaw, st.StdRoll},
			Participant: fmt.Sprintf("slot %d", st.TrackingID),
			OutputDir:   s.Dir,
		}
		if _, err := p.http.GenerateRadar(ctx, url, radar); err != nil {
			p.log.WithError(err).WithField("slot", st.TrackingID).Warn("visualization radar")
		}
	}
}

func (p *Pipeline) publish(ctx context.Context, ev Event) {
	if p.events == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = p.now()
	}
	if err := p.events.Publish(ctx, ev); err != nil {
		p.log.WithError(err).WithField("event", ev.Type).Warn("publish event")
	}
}
