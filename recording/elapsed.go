package recording

import (
	"encoding/json"
	"fmt"
	"time"
)

// Elapsed is a session-relative time at millisecond resolution. It is
// written as "H:M:S:ms" with no padding, e.g. "0:1:5:42".
type Elapsed time.Duration

func NewElapsed(d time.Duration) Elapsed {
	return Elapsed(d.Truncate(time.Millisecond))
}

func (e Elapsed) Duration() time.Duration { return time.Duration(e) }

func (e Elapsed) Seconds() float64 { return time.Duration(e).Seconds() }

func (e Elapsed) String() string {
	d := time.Duration(e)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return fmt.Sprintf("%d:%d:%d:%d", h, m, s, d/time.Millisecond)
}

func ParseElapsed(s string) (Elapsed, error) {
	var h, m, sec, ms int64
	if _, err := fmt.Sscanf(s, "%d:%d:%d:%d", &h, &m, &sec, &ms); err != nil {
		return 0, fmt.Errorf("parse elapsed %q: %w", s, err)
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second + time.Duration(ms)*time.Millisecond
	return Elapsed(d), nil
}

func (e Elapsed) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *Elapsed) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseElapsed(s)
	if err != nil {
		return err
	}
	*e = v
	return nil
}
