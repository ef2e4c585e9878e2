package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/PolicyForge/internal/domain/experience"
)

// Store implements the experience store port using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Append inserts one experience row. State, action and metadata travel
// as JSONB; task_type and domain are generated columns for filter pushdown.
func (s *Store) Append(ctx context.Context, e *experience.Experience) error {
	state, err := json.Marshal(orEmpty(e.State))
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	action, err := json.Marshal(orEmpty(e.Action))
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}
	md, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	var nextState []byte
	if e.NextState != nil {
		if nextState, err = json.Marshal(e.NextState); err != nil {
			return fmt.Errorf("encode next_state: %w", err)
		}
	}

	const q = `
		INSERT INTO experiences (id, state, action, reward, next_state, done, metadata, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := s.pool.Exec(ctx, q,
		e.ID, state, action, e.Reward, nextState, e.Done, md, e.Timestamp,
	); err != nil {
		return fmt.Errorf("insert experience: %w", err)
	}
	return nil
}

// Load returns experiences in insertion order with the filter pushed down
// to SQL. A row whose JSONB payload fails to decode is skipped with a
// warning, matching the JSONL store's malformed-line semantics.
func (s *Store) Load(ctx context.Context, f experience.Filter) ([]experience.Experience, error) {
	q := `
		SELECT id, state, action, reward, next_state, done, metadata, recorded_at
		FROM experiences`

	var (
		args  []any
		where []string
	)
	if f.TaskType != "" {
		args = append(args, f.TaskType)
		where = append(where, fmt.Sprintf("task_type = $%d", len(args)))
	}
	if f.Domain != "" {
		args = append(args, f.Domain)
		where = append(where, fmt.Sprintf("domain = $%d", len(args)))
	}
	if f.MinReward != nil {
		args = append(args, *f.MinReward)
		where = append(where, fmt.Sprintf("reward >= $%d", len(args)))
	}
	for i, cond := range where {
		if i == 0 {
			q += " WHERE " + cond
		} else {
			q += " AND " + cond
		}
	}
	q += " ORDER BY seq"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query experiences: %w", err)
	}
	defer rows.Close()

	var out []experience.Experience
	for rows.Next() {
		var (
			e                       experience.Experience
			state, action, md, next []byte
		)
		if err := rows.Scan(&e.ID, &state, &action, &e.Reward, &next, &e.Done, &md, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan experience: %w", err)
		}
		if err := decodeRow(&e, state, action, md, next); err != nil {
			slog.Warn("skipping invalid experience row", "id", e.ID, "error", err)
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read experiences: %w", err)
	}
	return out, nil
}

// Clear removes all rows. Idempotent.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE experiences`); err != nil {
		return fmt.Errorf("clear experiences: %w", err)
	}
	return nil
}

// SizeBytes reports the total relation size of the experiences table.
func (s *Store) SizeBytes(ctx context.Context) (int64, error) {
	var size int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(pg_total_relation_size('experiences'), 0)`,
	).Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("relation size: %w", err)
	}
	return size, nil
}

func decodeRow(e *experience.Experience, state, action, md, next []byte) error {
	if err := json.Unmarshal(state, &e.State); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	if err := json.Unmarshal(action, &e.Action); err != nil {
		return fmt.Errorf("decode action: %w", err)
	}
	if err := json.Unmarshal(md, &e.Metadata); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	if next != nil {
		if err := json.Unmarshal(next, &e.NextState); err != nil {
			return fmt.Errorf("decode next_state: %w", err)
		}
	}
	return nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
