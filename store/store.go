// Package store persists finished sessions to Postgres or Cassandra.
package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	cfg "github.com/maastricht-university/edmo-sensing/config"
	"github.com/maastricht-university/edmo-sensing/orchestrator"
)

// SessionStore is a session sink that holds a connection.
type SessionStore interface {
	orchestrator.Store
	Close()
}

// Open connects the store selected by c.Driver. An empty driver returns
// nil and no error.
func Open(ctx context.Context, c cfg.Store, log logrus.FieldLogger) (SessionStore, error) {
	switch c.Driver {
	case "":
		return nil, nil
	case "postgres":
		pg, err := OpenPostgres(ctx, c.DSN, log)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "cassandra":
		cs, err := OpenCassandra(c.Hosts, c.Keyspace, log)
		if err != nil {
			return nil, err
		}
		return cs, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", c.Driver)
	}
}

// faceRows flattens the records of s in faceColumns order.
func faceRows(s *orchestrator.Session) [][]any {
	rows := make([][]any, 0, len(s.Faces))
	for i, f := range s.Faces {
		rows = append(rows, []any{
			s.ID, i, f.Time.Duration().Milliseconds(), f.TrackingID,
			f.Pitch, f.Yaw, f.Roll,
			f.PositionX, f.PositionY, f.PositionZ,
			f.BeamAngle, f.IsSpeaking,
		})
	}
	return rows
}

func labelRows(s *orchestrator.Session) [][]any {
	rows := make([][]any, 0, len(s.Labels))
	for i, l := range s.Labels {
		rows = append(rows, []any{
			s.ID, i, l.StartTime.Duration().Milliseconds(), l.EndTime.Duration().Milliseconds(), string(l.LabelType),
		})
	}
	return rows
}

var (
	faceColumns  = []string{"session_id", "seq", "time_ms", "tracking_id", "pitch", "yaw", "roll", "position_x", "position_y", "position_z", "beam_angle", "is_speaking"}
	labelColumns = []string{"session_id", "seq", "start_ms", "end_ms", "label_type"}
)
