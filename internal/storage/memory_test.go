package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
)

func insert(t *testing.T, s Store, r entities.Reading) int64 {
	t.Helper()
	var id int64
	require.NoError(t, s.InTx(context.Background(), func(tx Tx) error {
		var err error
		id, err = tx.InsertReading(context.Background(), r)
		return err
	}))
	return id
}

func TestMemory_InsertReturnsIDAndRecentIsNewestFirst(t *testing.T) {
	s := NewMemory(nil)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		id := insert(t, s, entities.Reading{Light: float64(i * 100), CreatedAt: base.Add(time.Duration(i) * time.Second)})
		assert.Equal(t, int64(i+1), id)
	}

	require.NoError(t, s.InTx(context.Background(), func(tx Tx) error {
		rows, err := tx.RecentReadings(context.Background(), 3)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []float64{300, 200, 100}, []float64{rows[0].Light, rows[1].Light, rows[2].Light})

		all, err := tx.RecentReadings(context.Background(), 50)
		require.NoError(t, err)
		assert.Len(t, all, 4)
		return nil
	}))
}

func TestMemory_SameTimestampOrdersByID(t *testing.T) {
	s := NewMemory(nil)
	ts := time.Now()
	insert(t, s, entities.Reading{Voltage: 1, CreatedAt: ts})
	insert(t, s, entities.Reading{Voltage: 2, CreatedAt: ts})

	require.NoError(t, s.InTx(context.Background(), func(tx Tx) error {
		r, err := tx.LatestReading(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2.0, r.Voltage)
		return nil
	}))
}

func TestMemory_RollbackOnError(t *testing.T) {
	s := NewMemory(map[string]string{entities.KeyRelayMode: "auto"})
	boom := errors.New("boom")

	err := s.InTx(context.Background(), func(tx Tx) error {
		_, err := tx.InsertReading(context.Background(), entities.Reading{Voltage: 220})
		require.NoError(t, err)
		require.NoError(t, tx.SetConfigValue(context.Background(), entities.KeyRelayMode, "manual"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.InTx(context.Background(), func(tx Tx) error {
		_, err := tx.LatestReading(context.Background())
		assert.ErrorIs(t, err, ErrNotFound)
		values, err := tx.ConfigValues(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "auto", values[entities.KeyRelayMode])
		return nil
	}))

	// ids are not burned by a rolled back insert
	assert.Equal(t, int64(1), insert(t, s, entities.Reading{Voltage: 221}))
}

func TestMemory_SetSmoothedTargetsID(t *testing.T) {
	s := NewMemory(nil)
	first := insert(t, s, entities.Reading{Voltage: 200})
	insert(t, s, entities.Reading{Voltage: 210})

	require.NoError(t, s.InTx(context.Background(), func(tx Tx) error {
		return tx.SetSmoothed(context.Background(), first, entities.Smoothed{Voltage: 205})
	}))

	require.NoError(t, s.InTx(context.Background(), func(tx Tx) error {
		rows, err := tx.RecentReadings(context.Background(), 2)
		require.NoError(t, err)
		assert.Nil(t, rows[0].MAFVoltage)
		require.NotNil(t, rows[1].MAFVoltage)
		assert.Equal(t, 205.0, *rows[1].MAFVoltage)

		assert.ErrorIs(t, tx.SetSmoothed(context.Background(), 99, entities.Smoothed{}), ErrNotFound)
		return nil
	}))
}

func TestMemory_Closed(t *testing.T) {
	s := NewMemory(nil)
	s.Close()
	assert.Error(t, s.Ping(context.Background()))
	assert.Error(t, s.InTx(context.Background(), func(Tx) error { return nil }))
}
