package timeseries

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"
)

// HistoryPoint is one row of the history endpoint.
type HistoryPoint struct {
	Time        string   `json:"time"`
	Voltage     *float64 `json:"tegangan,omitempty"`
	Current     *float64 `json:"arus,omitempty"`
	Light       *float64 `json:"cahaya,omitempty"`
	MAFVoltage  *float64 `json:"maf_tegangan,omitempty"`
	MAFCurrent  *float64 `json:"maf_arus,omitempty"`
	MAFLight    *float64 `json:"maf_cahaya,omitempty"`
	RelayStatus *bool    `json:"relay_status,omitempty"`
}

type historyParams struct {
	Minutes   int
	Limit     int
	TimeoutMS int
}

func parseHistory(r *http.Request) historyParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return historyParams{
		Minutes:   get("minutes", 60, 1, 7*24*60),
		Limit:     get("limit", 100, 1, 1000),
		TimeoutMS: get("timeout_ms", 2000, 200, 5000),
	}
}

func buildFlux(bucket string, minutes, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)
`, bucket, minutes, measurement, limit)
}

// NewHistoryHandler serves GET /api/sensor/history?minutes=&limit= from the
// time-series mirror, newest first.
func NewHistoryHandler(q api.QueryAPI, bucket string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("history")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := parseHistory(r)
		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")

		res, err := q.Query(ctx, buildFlux(bucket, p.Minutes, p.Limit))
		if err != nil {
			logger.Warn("history query failed", zap.Error(err))
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": "history unavailable"})
			return
		}
		defer res.Close()

		out := make([]HistoryPoint, 0, p.Limit)
		for res.Next() {
			rec := res.Record()
			out = append(out, HistoryPoint{
				Time:        rec.Time().UTC().Format(time.RFC3339),
				Voltage:     floatOf(rec.ValueByKey("tegangan")),
				Current:     floatOf(rec.ValueByKey("arus")),
				Light:       floatOf(rec.ValueByKey("cahaya")),
				MAFVoltage:  floatOf(rec.ValueByKey("maf_tegangan")),
				MAFCurrent:  floatOf(rec.ValueByKey("maf_arus")),
				MAFLight:    floatOf(rec.ValueByKey("maf_cahaya")),
				RelayStatus: boolOf(rec.ValueByKey("relay_status")),
			})
		}
		if err := res.Err(); err != nil {
			logger.Warn("history decode failed", zap.Error(err))
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": out})
	})
}

func floatOf(v interface{}) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case int64:
		f := float64(n)
		return &f
	}
	return nil
}

func boolOf(v interface{}) *bool {
	if b, ok := v.(bool); ok {
		return &b
	}
	return nil
}
