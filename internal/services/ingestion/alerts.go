package ingestion

import (
	"fmt"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
)

const alertTimeLayout = "02/01/2006 15:04:05"

func faultText(report FaultReport, buzzer time.Duration, at time.Time) string {
	line := func(label string, s entities.Sensor) string {
		reason, ok := report.Faults[s]
		if !ok {
			reason = "OK"
		}
		return fmt.Sprintf("%s: %s\n", label, reason)
	}
	var b strings.Builder
	b.WriteString("⚠️ SENSOR FAULT DETECTED\n\n")
	b.WriteString(line("Voltage sensor", entities.SensorVoltage))
	b.WriteString(line("Current sensor", entities.SensorCurrent))
	b.WriteString(line("Light sensor", entities.SensorLight))
	if buzzer > 0 {
		fmt.Fprintf(&b, "Buzzer: active for %s\n", buzzer)
	}
	fmt.Fprintf(&b, "Time: %s", at.Format(alertTimeLayout))
	return b.String()
}

func relayText(relay entities.RelayState, r entities.Reading, mode entities.RelayMode, at time.Time) string {
	head := "🌙 Lamp OFF"
	if relay.On() {
		head = "🔦 Lamp ON"
	}
	motion := "not detected"
	if r.Motion {
		motion = "detected"
	}
	return fmt.Sprintf("%s\n\nLight: %g lux\nMotion: %s\nMode: %s\nTime: %s",
		head, r.Light, motion, mode.Upper(), at.Format(alertTimeLayout))
}
