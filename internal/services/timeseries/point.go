package timeseries

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model"
)

const measurement = "pju_reading"

// UpdateToPoint turns one ingestion result into a point. Smoothed fields are
// only written once they exist.
func UpdateToPoint(u model.LiveUpdate, pole string) *write.Point {
	tags := map[string]string{
		"relay": string(model.RelayOff),
	}
	if u.RelayStatus {
		tags["relay"] = string(model.RelayOn)
	}
	if pole != "" {
		tags["pole"] = pole
	}

	fields := map[string]interface{}{
		"tegangan":     u.Voltage,
		"arus":         u.Current,
		"cahaya":       u.Light,
		"gerak":        u.Motion,
		"relay_status": u.RelayStatus,
	}
	for k, v := range map[string]*float64{
		"maf_tegangan": u.MAFVoltage,
		"maf_arus":     u.MAFCurrent,
		"maf_cahaya":   u.MAFLight,
	} {
		if v != nil {
			fields[k] = *v
		}
	}

	return influxdb2.NewPoint(measurement, tags, fields, u.Timestamp)
}
