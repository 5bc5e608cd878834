package model

import (
	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/messages"
)

// Aliases for the types shared by most services.

type (
	Reading       = entities.Reading
	SystemConfig  = entities.SystemConfig
	RelayMode     = entities.RelayMode
	RelayState    = entities.RelayState
	SensorReading = messages.SensorReading
	IngestResult  = messages.IngestResult
	LiveUpdate    = messages.LiveUpdate
)

const (
	RelayOn    = entities.RelayOn
	RelayOff   = entities.RelayOff
	ModeAuto   = entities.ModeAuto
	ModeManual = entities.ModeManual
)
