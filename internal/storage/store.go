package storage

import (
	"context"
	"errors"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
)

var ErrNotFound = errors.New("storage: not found")

// Store is the persistent side of the service: sensor_data and system_config.
type Store interface {
	// InTx runs fn in a single transaction. A non-nil error from fn rolls
	// everything back.
	InTx(ctx context.Context, fn func(Tx) error) error
	Ping(ctx context.Context) error
	Close()
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	ConfigValues(ctx context.Context) (map[string]string, error)
	SetConfigValue(ctx context.Context, key, value string) error

	// RecentReadings returns at most limit rows, newest first.
	RecentReadings(ctx context.Context, limit int) ([]entities.Reading, error)
	// InsertReading stores r and returns the id assigned to it.
	InsertReading(ctx context.Context, r entities.Reading) (int64, error)
	SetSmoothed(ctx context.Context, id int64, s entities.Smoothed) error
	// LatestReading returns ErrNotFound on an empty table.
	LatestReading(ctx context.Context) (entities.Reading, error)
}
