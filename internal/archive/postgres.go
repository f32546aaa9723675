package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/leela-coach/pkg/coachdto"
)

// PostgresStore archives game records with the critique log as jsonb.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("postgres archive requires a database URL")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &PostgresStore{db: db}
	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelSchema()
	if err := s.initSchema(schemaCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS coach_games (
		id         TEXT PRIMARY KEY,
		result     TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		ended_at   TIMESTAMPTZ NOT NULL,
		critiques  JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_coach_games_ended_at ON coach_games (ended_at);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init archive schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveGame(ctx context.Context, rec coachdto.GameRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("game record needs an id")
	}
	critiques, err := json.Marshal(rec.Critiques)
	if err != nil {
		return fmt.Errorf("marshal critiques: %w", err)
	}

	const query = `
		INSERT INTO coach_games (id, result, started_at, ended_at, critiques)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		ON CONFLICT (id) DO NOTHING
		RETURNING id`

	var id sql.NullString
	err = s.db.QueryRowContext(ctx, query,
		rec.ID, rec.Result, rec.StartedAt, rec.EndedAt, critiques).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return ErrDuplicateGame
	}
	if err != nil {
		return fmt.Errorf("insert game record: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGame(ctx context.Context, id string) (*coachdto.GameRecord, error) {
	const query = `
		SELECT id, result, started_at, ended_at, critiques
		FROM coach_games
		WHERE id = $1`

	var (
		rec          coachdto.GameRecord
		critiquesRaw []byte
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.Result, &rec.StartedAt, &rec.EndedAt, &critiquesRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select game record: %w", err)
	}
	if err := json.Unmarshal(critiquesRaw, &rec.Critiques); err != nil {
		return nil, fmt.Errorf("unmarshal critiques: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) RecentGames(ctx context.Context, limit int) ([]coachdto.GameRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT id, result, started_at, ended_at, critiques
		FROM coach_games
		ORDER BY ended_at DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select game records: %w", err)
	}
	defer rows.Close()

	out := make([]coachdto.GameRecord, 0, limit)
	for rows.Next() {
		var (
			rec          coachdto.GameRecord
			critiquesRaw []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Result, &rec.StartedAt, &rec.EndedAt, &critiquesRaw); err != nil {
			return nil, fmt.Errorf("scan game record: %w", err)
		}
		if err := json.Unmarshal(critiquesRaw, &rec.Critiques); err != nil {
			return nil, fmt.Errorf("unmarshal critiques: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
