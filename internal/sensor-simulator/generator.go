package sensor_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
)

// Period is the part of the day, which drives the light profile.
type Period string

const (
	Day     Period = "day"
	Evening Period = "evening"
	Night   Period = "night"
)

// PeriodAt maps local wall-clock time onto a period: 06-17 day, 17-19
// evening, night otherwise.
func PeriodAt(t time.Time) Period {
	switch h := t.Hour(); {
	case h >= 6 && h < 17:
		return Day
	case h >= 17 && h < 19:
		return Evening
	default:
		return Night
	}
}

// Next period in the day/evening/night cycle.
func (p Period) Next() Period {
	switch p {
	case Day:
		return Evening
	case Evening:
		return Night
	default:
		return Day
	}
}

type span struct{ min, max float64 }

// ====== Profiles (12 V solar system, BH1750 light sensor) ======
var (
	voltageNominal = 12.5
	voltageMin     = 11.5
	voltageMax     = 14.8

	currentLampOn  = 1.8
	currentLampOff = 0.3

	lightProfile = map[Period]span{
		Day:     {5000, 65000},
		Evening: {500, 5000},
		Night:   {0, 150},
	}
	motionChance = map[Period]float64{
		Day:     0.1,
		Evening: 0.2,
		Night:   0.3,
	}
)

const errorCheckEvery = time.Minute

// DataGenerator produces pole readings. With probability errorProb, checked
// at most once a minute, one sensor starts reading 0 for 15-30 seconds.
type DataGenerator struct {
	mu        sync.Mutex
	rnd       *rand.Rand
	now       func() time.Time
	errorProb float64

	lastCheck time.Time
	errSensor entities.Sensor
	errUntil  time.Time
}

func NewDataGenerator(seed int64, errorProb float64) *DataGenerator {
	return &DataGenerator{
		rnd:       rand.New(rand.NewSource(seed)),
		now:       time.Now,
		errorProb: math.Max(0, math.Min(1, errorProb)),
		lastCheck: time.Now(),
	}
}

// InjectError forces sensor to read 0 for d.
func (g *DataGenerator) InjectError(sensor entities.Sensor, d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errSensor = sensor
	g.errUntil = g.now().Add(d)
}

// Faulty returns the sensor currently in error, if any.
func (g *DataGenerator) Faulty() (entities.Sensor, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.faultyLocked(g.now())
}

func (g *DataGenerator) faultyLocked(now time.Time) (entities.Sensor, bool) {
	if g.errSensor != "" && now.Before(g.errUntil) {
		return g.errSensor, true
	}
	return "", false
}

// Next builds one reading for the given period and lamp state.
func (g *DataGenerator) Next(p Period, lampOn bool) model.SensorReading {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.maybeFail(now)
	faulty, failing := g.faultyLocked(now)

	voltage := g.voltage(p, lampOn)
	current := g.current(lampOn)
	light := math.Round(g.between(lightProfile[p]))
	switch {
	case !failing:
	case faulty == entities.SensorVoltage:
		voltage = 0
	case faulty == entities.SensorCurrent:
		current = 0
	case faulty == entities.SensorLight:
		light = 0
	}
	motion := g.rnd.Float64() < motionChance[p]

	return model.SensorReading{
		Voltage:     &voltage,
		Current:     &current,
		Light:       &light,
		Motion:      motion,
		RelayStatus: &lampOn,
	}
}

func (g *DataGenerator) maybeFail(now time.Time) {
	if now.Sub(g.lastCheck) < errorCheckEvery {
		return
	}
	g.lastCheck = now
	if g.rnd.Float64() >= g.errorProb {
		return
	}
	sensors := []entities.Sensor{entities.SensorVoltage, entities.SensorCurrent, entities.SensorLight}
	g.errSensor = sensors[g.rnd.Intn(len(sensors))]
	g.errUntil = now.Add(time.Duration(15000+g.rnd.Intn(15001)) * time.Millisecond)
}

func (g *DataGenerator) voltage(p Period, lampOn bool) float64 {
	switch {
	case p == Day: // charging
		return round2(g.between(span{voltageNominal, voltageMax}))
	case p == Night && lampOn: // discharging
		return round2(g.between(span{voltageMin, voltageNominal}))
	default:
		return round2(g.between(span{voltageNominal - 0.5, voltageNominal + 0.5}))
	}
}

func (g *DataGenerator) current(lampOn bool) float64 {
	if lampOn {
		return round2(g.between(span{currentLampOn - 0.3, currentLampOn + 0.3}))
	}
	return round2(g.between(span{currentLampOff - 0.1, currentLampOff + 0.1}))
}

func (g *DataGenerator) between(s span) float64 {
	return s.min + g.rnd.Float64()*(s.max-s.min)
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
