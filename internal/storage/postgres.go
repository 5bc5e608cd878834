package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connString string, maxConns int32) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sensor_data (
		id BIGSERIAL PRIMARY KEY,
		tegangan DOUBLE PRECISION NOT NULL,
		arus DOUBLE PRECISION NOT NULL,
		cahaya DOUBLE PRECISION NOT NULL,
		gerak BOOLEAN NOT NULL DEFAULT false,
		relay_status BOOLEAN NOT NULL DEFAULT false,
		maf_tegangan DOUBLE PRECISION,
		maf_arus DOUBLE PRECISION,
		maf_cahaya DOUBLE PRECISION,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sensor_data_created_at ON sensor_data(created_at DESC, id DESC)`,

	`CREATE TABLE IF NOT EXISTS system_config (
		config_key VARCHAR(64) PRIMARY KEY,
		config_value TEXT NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the schema and inserts seed values for config keys that
// are not present yet. Existing values are never overwritten.
func (p *Postgres) Migrate(ctx context.Context, seed map[string]string) error {
	for _, migration := range migrations {
		if _, err := p.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	for k, v := range seed {
		if _, err := p.pool.Exec(ctx,
			`INSERT INTO system_config (config_key, config_value) VALUES ($1, $2) ON CONFLICT (config_key) DO NOTHING`,
			k, v); err != nil {
			return fmt.Errorf("failed to seed %s: %w", k, err)
		}
	}
	return nil
}

func (p *Postgres) InTx(ctx context.Context, fn func(Tx) error) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{q: tx})
	})
}

// querier is the subset of pgx.Tx used by pgTx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgTx struct {
	q querier
}

const readingColumns = `id, tegangan, arus, cahaya, gerak, relay_status, maf_tegangan, maf_arus, maf_cahaya, created_at`

func scanReading(row pgx.Row) (entities.Reading, error) {
	var r entities.Reading
	err := row.Scan(&r.ID, &r.Voltage, &r.Current, &r.Light, &r.Motion, &r.RelayStatus,
		&r.MAFVoltage, &r.MAFCurrent, &r.MAFLight, &r.CreatedAt)
	return r, err
}

func (t *pgTx) ConfigValues(ctx context.Context) (map[string]string, error) {
	rows, err := t.q.Query(ctx, `SELECT config_key, config_value FROM system_config`)
	if err != nil {
		return nil, fmt.Errorf("select system_config: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan system_config: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate system_config: %w", err)
	}
	return out, nil
}

func (t *pgTx) SetConfigValue(ctx context.Context, key, value string) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO system_config (config_key, config_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (config_key) DO UPDATE SET config_value = EXCLUDED.config_value, updated_at = NOW()`,
		key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (t *pgTx) RecentReadings(ctx context.Context, limit int) ([]entities.Reading, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := t.q.Query(ctx,
		`SELECT `+readingColumns+` FROM sensor_data ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent readings: %w", err)
	}
	defer rows.Close()

	out := make([]entities.Reading, 0, limit)
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}
	return out, nil
}

func (t *pgTx) InsertReading(ctx context.Context, r entities.Reading) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO sensor_data (tegangan, arus, cahaya, gerak, relay_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		r.Voltage, r.Current, r.Light, r.Motion, r.RelayStatus, r.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert reading: %w", err)
	}
	return id, nil
}

func (t *pgTx) SetSmoothed(ctx context.Context, id int64, s entities.Smoothed) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE sensor_data SET maf_tegangan = $1, maf_arus = $2, maf_cahaya = $3 WHERE id = $4`,
		s.Voltage, s.Current, s.Light, id)
	if err != nil {
		return fmt.Errorf("update smoothed values: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update smoothed values of %d: %w", id, ErrNotFound)
	}
	return nil
}

func (t *pgTx) LatestReading(ctx context.Context) (entities.Reading, error) {
	r, err := scanReading(t.q.QueryRow(ctx,
		`SELECT `+readingColumns+` FROM sensor_data ORDER BY created_at DESC, id DESC LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.Reading{}, ErrNotFound
	}
	if err != nil {
		return entities.Reading{}, fmt.Errorf("select latest reading: %w", err)
	}
	return r, nil
}
