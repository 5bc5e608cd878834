package control

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/metrics"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/messages"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/storage"
)

var (
	ErrModeAuto       = errors.New("relay is under automatic control, switch to manual mode first")
	ErrInvalidMode    = errors.New("mode must be 'auto' or 'manual'")
	ErrInvalidSetting = errors.New("invalid setting")
)

const minWindowSize = 3

// Broadcaster pushes an operator event to live subscribers.
type Broadcaster interface {
	Broadcast(event string, data interface{})
}

// CommandPublisher forwards relay commands to the pole controller.
type CommandPublisher interface {
	PublishCommand(ctx context.Context, ev messages.RelayCommandEvent) error
}

// Service implements the operator side of the system: relay control, mode
// selection and settings. All state lives in system_config.
type Service struct {
	store    storage.Store
	defaults entities.SystemConfig
	live     Broadcaster
	commands CommandPublisher
	now      func() time.Time

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewService builds the control service. live and commands may be nil.
func NewService(store storage.Store, defaults entities.SystemConfig, live Broadcaster, commands CommandPublisher, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		defaults: defaults,
		live:     live,
		commands: commands,
		now:      time.Now,
		logger:   logger.Named("control"),
		metrics:  m,
	}
}

func (s *Service) snapshot(ctx context.Context, tx storage.Tx) (entities.SystemConfig, error) {
	values, err := tx.ConfigValues(ctx)
	if err != nil {
		return entities.SystemConfig{}, fmt.Errorf("load config: %w", err)
	}
	cfg, errs := entities.ParseSystemConfig(values, s.defaults)
	for _, e := range errs {
		s.logger.Warn("malformed config value, using default", zap.Error(e))
	}
	return cfg, nil
}

// Status returns the current mode and stored relay state.
func (s *Service) Status(ctx context.Context) (entities.RelayMode, entities.RelayState, error) {
	var cfg entities.SystemConfig
	err := s.store.InTx(ctx, func(tx storage.Tx) (err error) {
		cfg, err = s.snapshot(ctx, tx)
		return err
	})
	if err != nil {
		return "", "", err
	}
	return cfg.Mode, cfg.RelayStatus, nil
}

// SetRelay switches the lamp by hand. Rejected with ErrModeAuto unless the
// system is in manual mode.
func (s *Service) SetRelay(ctx context.Context, on bool) error {
	state := entities.RelayStateOf(on)
	var mode entities.RelayMode

	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		cfg, err := s.snapshot(ctx, tx)
		if err != nil {
			return err
		}
		if cfg.Mode != entities.ModeManual {
			return ErrModeAuto
		}
		mode = cfg.Mode
		if err := tx.SetConfigValue(ctx, entities.KeyRelayStatus, state.ConfigValue()); err != nil {
			return fmt.Errorf("store relay status: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("relay set manually", zap.String("relay", string(state)))
	s.metrics.SetRelay(on)
	if s.live != nil {
		s.live.Broadcast(messages.EventRelayChanged, messages.RelayChanged{Status: on})
	}
	s.command(ctx, state, mode, "manual")
	return nil
}

// SetMode selects auto or manual relay control.
func (s *Service) SetMode(ctx context.Context, raw string) (entities.RelayMode, error) {
	mode, err := entities.ParseRelayMode(raw)
	if err != nil {
		return "", fmt.Errorf("%w: got %q", ErrInvalidMode, raw)
	}

	var relay entities.RelayState
	err = s.store.InTx(ctx, func(tx storage.Tx) error {
		cfg, err := s.snapshot(ctx, tx)
		if err != nil {
			return err
		}
		relay = cfg.RelayStatus
		if err := tx.SetConfigValue(ctx, entities.KeyRelayMode, string(mode)); err != nil {
			return fmt.Errorf("store relay mode: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("relay mode changed", zap.String("mode", string(mode)))
	if s.live != nil {
		s.live.Broadcast(messages.EventModeChanged, messages.ModeChanged{Mode: string(mode)})
	}
	s.command(ctx, relay, mode, "mode")
	return mode, nil
}

func (s *Service) command(ctx context.Context, state entities.RelayState, mode entities.RelayMode, source string) {
	if s.commands == nil {
		return
	}
	ev := messages.RelayCommandEvent{Command: state, Mode: mode, Source: source, Timestamp: s.now().UTC()}
	if err := s.commands.PublishCommand(ctx, ev); err != nil {
		s.logger.Warn("relay command not delivered", zap.String("source", source), zap.Error(err))
	}
}

// Settings returns every stored configuration key.
func (s *Service) Settings(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	err := s.store.InTx(ctx, func(tx storage.Tx) (err error) {
		out, err = tx.ConfigValues(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return out, nil
}

// UpdateSettings writes the fields present in u and returns the resulting
// settings. The window must be an integer of at least 3 and the threshold
// must not be negative.
func (s *Service) UpdateSettings(ctx context.Context, u messages.SettingsUpdate) (map[string]string, error) {
	if u.LightThreshold == nil && u.WindowSize == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidSetting)
	}

	updates := map[string]string{}
	if u.LightThreshold != nil {
		v := float64(*u.LightThreshold)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("%w: light_threshold must be a number >= 0", ErrInvalidSetting)
		}
		updates[entities.KeyLightThreshold] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if u.WindowSize != nil {
		v := float64(*u.WindowSize)
		if v != math.Trunc(v) || v < minWindowSize || v > math.MaxInt32 {
			return nil, fmt.Errorf("%w: maf_window_size must be an integer >= %d", ErrInvalidSetting, minWindowSize)
		}
		updates[entities.KeyWindowSize] = strconv.Itoa(int(v))
	}

	return s.apply(ctx, updates)
}

// ResetSettings restores the threshold and window to their configured
// defaults.
func (s *Service) ResetSettings(ctx context.Context) (map[string]string, error) {
	return s.apply(ctx, map[string]string{
		entities.KeyLightThreshold: strconv.FormatFloat(s.defaults.LightThreshold, 'f', -1, 64),
		entities.KeyWindowSize:     strconv.Itoa(s.defaults.WindowSize),
	})
}

func (s *Service) apply(ctx context.Context, updates map[string]string) (map[string]string, error) {
	var out map[string]string
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		for k, v := range updates {
			if err := tx.SetConfigValue(ctx, k, v); err != nil {
				return fmt.Errorf("store %s: %w", k, err)
			}
		}
		var err error
		out, err = tx.ConfigValues(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("settings updated", zap.Any("changes", updates))
	return out, nil
}

// LatestReading returns the newest persisted reading or storage.ErrNotFound.
func (s *Service) LatestReading(ctx context.Context) (entities.Reading, error) {
	var r entities.Reading
	err := s.store.InTx(ctx, func(tx storage.Tx) (err error) {
		r, err = tx.LatestReading(ctx)
		return err
	})
	return r, err
}
