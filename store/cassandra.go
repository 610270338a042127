package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/edmo-sensing/orchestrator"
)

// batchSize bounds the rows per unlogged batch.
const batchSize = 100

var cassandraSchema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id text PRIMARY KEY,
		dir text,
		started_at timestamp,
		stopped_at timestamp,
		records int,
		turns int,
		summary text
	)`,
	`CREATE TABLE IF NOT EXISTS face_records (
		session_id text, seq int, time_ms bigint, tracking_id int,
		pitch double, yaw double, roll double,
		position_x double, position_y double, position_z double,
		beam_angle float, is_speaking boolean,
		PRIMARY KEY (session_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS label_segments (
		session_id text, seq int, start_ms bigint, end_ms bigint, label_type text,
		PRIMARY KEY (session_id, seq)
	)`,
}

type Cassandra struct {
	session *gocql.Session
	log     logrus.FieldLogger
}

// OpenCassandra connects to keyspace on hosts and creates missing tables.
// The keyspace itself must exist.
func OpenCassandra(hosts []string, keyspace string, log logrus.FieldLogger) (*Cassandra, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Cassandra: %w", err)
	}
	for _, stmt := range cassandraSchema {
		if err := session.Query(stmt).Exec(); err != nil {
			session.Close()
			return nil, fmt.Errorf("create cassandra schema: %w", err)
		}
	}
	log.WithFields(logrus.Fields{"hosts": hosts, "keyspace": keyspace}).Info("cassandra store ready")
	return &Cassandra{session: session, log: log}, nil
}

func (c *Cassandra) SaveSession(ctx context.Context, s *orchestrator.Session) error {
	summary, err := json.Marshal(s.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := c.session.Query(
		`INSERT INTO sessions (id, dir, started_at, stopped_at, records, turns, summary) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Dir, s.StartedAt, s.StoppedAt, len(s.Faces), len(s.Labels), string(summary),
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if err := c.insertRows(ctx, "face_records", faceColumns, faceRows(s)); err != nil {
		return err
	}
	if err := c.insertRows(ctx, "label_segments", labelColumns, labelRows(s)); err != nil {
		return err
	}
	c.log.WithFields(logrus.Fields{"session": s.ID, "records": len(s.Faces)}).Debug("session stored")
	return nil
}

func (c *Cassandra) insertRows(ctx context.Context, table string, cols []string, rows [][]any) error {
	stmt := insertStmt(table, cols)
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		b := c.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
		for _, r := range rows[start:end] {
			b.Query(stmt, r...)
		}
		if err := c.session.ExecuteBatch(b); err != nil {
			return fmt.Errorf("insert %s rows %d-%d: %w", table, start, end, err)
		}
	}
	return nil
}

func insertStmt(table string, cols []string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), marks)
}

func (c *Cassandra) Close() { c.session.Close() }
