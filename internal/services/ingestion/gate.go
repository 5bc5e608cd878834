package ingestion

import "github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"

// Gate holds the two edge-triggered alert latches. It is not safe for
// concurrent use; Session serializes access.
type Gate struct {
	faultNotified bool
	lastRelay     entities.RelayState
}

func NewGate() Gate { return Gate{lastRelay: entities.RelayOff} }

// Decision tells the caller which alerts to send for one ingestion.
type Decision struct {
	FaultAlert    bool
	RelayAlert    bool
	PreviousRelay entities.RelayState
}

// Observe advances both latches. A fault alerts once on the rising edge and
// re-arms on the first clean report. A relay alert fires whenever the output
// differs from the last one seen.
func (g *Gate) Observe(faulty bool, relay entities.RelayState) Decision {
	d := Decision{PreviousRelay: g.lastRelay}

	if faulty {
		if !g.faultNotified {
			d.FaultAlert = true
			g.faultNotified = true
		}
	} else {
		g.faultNotified = false
	}

	if relay != g.lastRelay {
		d.RelayAlert = true
	}
	g.lastRelay = relay
	return d
}
