package store

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/edmo-sensing/orchestrator"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Postgres struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

// OpenPostgres connects to dsn and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string, log logrus.FieldLogger) (*Postgres, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if err := migrate(ctx, pcfg.ConnConfig, log); err != nil {
		return nil, err
	}
	pool, err := pgxpool.ConnectConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.WithField("host", pcfg.ConnConfig.Host).Info("postgres store ready")
	return &Postgres{pool: pool, log: log}, nil
}

func migrate(ctx context.Context, cc *pgx.ConnConfig, log logrus.FieldLogger) error {
	db := stdlib.OpenDB(*cc)
	defer db.Close()

	goose.SetBaseFS(migrations)
	goose.SetLogger(log)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// SaveSession writes the session row, its records and labels in one
// transaction. Saving the same session twice replaces it.
func (p *Postgres) SaveSession(ctx context.Context, s *orchestrator.Session) error {
	summary, err := json.Marshal(s.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return p.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, s.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO sessions (id, dir, started_at, stopped_at, records, turns, summary)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.ID, s.Dir, s.StartedAt, s.StoppedAt, len(s.Faces), len(s.Labels), summary,
		); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"face_records"}, faceColumns, pgx.CopyFromRows(faceRows(s)))
		if err != nil {
			return fmt.Errorf("copy face records: %w", err)
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"label_segments"}, labelColumns, pgx.CopyFromRows(labelRows(s))); err != nil {
			return fmt.Errorf("copy labels: %w", err)
		}
		p.log.WithFields(logrus.Fields{"session": s.ID, "records": n}).Debug("session stored")
		return nil
	})
}

func (p *Postgres) Close() { p.pool.Close() }
