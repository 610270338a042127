package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/edmo-sensing/orchestrator"
)

// maxLine bounds one capture line; body frames with all joints of six
// people stay well below it.
const maxLine = 4 << 20

// Clock is a settable time source for replaying captures at their
// recorded timestamps.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{t: start} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set moves the clock to t. Earlier times are ignored.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	if t.After(c.t) {
		c.t = t
	}
	c.mu.Unlock()
}

// Replay feeds a JSONL capture through the pipeline, one message per line,
// waiting for each to be handled before moving the clock on.
type Replay struct {
	p     Pipeline
	clock *Clock
	log   logrus.FieldLogger
}

// NewReplay drives p, which must use clock.Now as its clock.
func NewReplay(p Pipeline, clock *Clock, log logrus.FieldLogger) *Replay {
	return &Replay{p: p, clock: clock, log: log}
}

// Run replays r and returns every session stopped during the capture. A
// session still recording at the end of the capture is stopped at the
// last timestamp.
func (rp *Replay) Run(ctx context.Context, r io.Reader) ([]*orchestrator.Session, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	var sessions []*orchestrator.Session
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
			return sessions, fmt.Errorf("capture line %d: %w", line, err)
		}
		if !msg.Timestamp.IsZero() {
			rp.clock.Set(msg.Timestamp)
		}
		out, err := Dispatch(ctx, rp.p, msg)
		if err != nil {
			return sessions, fmt.Errorf("capture line %d (%s): %w", line, msg.Type, err)
		}
		rp.p.Flush()
		if s, ok := out.(*orchestrator.Session); ok {
			sessions = append(sessions, s)
		}
	}
	if err := sc.Err(); err != nil {
		return sessions, fmt.Errorf("read capture: %w", err)
	}

	if rp.p.Recording() {
		rp.log.Info("capture ended while recording, stopping session")
		s, err := rp.p.Stop(ctx)
		if err != nil {
			return sessions, err
		}
		sessions = append(sessions, s)
	}
	rp.log.WithFields(logrus.Fields{"lines": line, "sessions": len(sessions)}).Info("replay finished")
	return sessions, nil
}
