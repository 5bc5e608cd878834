package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/messages"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/services/control"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/services/ingestion"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/storage"
)

const maxBody = 1 << 20

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Success: false, Message: msg})
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// fail maps err onto a status code. Input errors are echoed, anything else
// is logged and hidden.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ingestion.ErrIncompleteReading),
		errors.Is(err, control.ErrInvalidMode),
		errors.Is(err, control.ErrInvalidSetting):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, control.ErrModeAuto):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "no sensor data yet")
	default:
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) handleSensorData(w http.ResponseWriter, r *http.Request) {
	var in messages.SensorReading
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.ingester.Ingest(ingestion.WithSource(r.Context(), "http"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	reading, err := s.control.LatestReading(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": reading})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": s.diag.Diagnostics()})
}

func (s *Server) handleRelayControl(w http.ResponseWriter, r *http.Request) {
	var req messages.RelayControlRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Status == nil {
		writeError(w, http.StatusBadRequest, "status must be a boolean")
		return
	}
	if err := s.control.SetRelay(r.Context(), *req.Status); err != nil {
		s.fail(w, r, err)
		return
	}
	state := "OFF"
	if *req.Status {
		state = "ON"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  *req.Status,
		"message": "Relay turned " + state,
	})
}

func (s *Server) handleRelayMode(w http.ResponseWriter, r *http.Request) {
	var req messages.RelayModeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode, err := s.control.SetMode(r.Context(), req.Mode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"mode":    mode,
		"message": "Mode changed to " + mode.Upper(),
	})
}

func (s *Server) handleRelayStatus(w http.ResponseWriter, r *http.Request) {
	mode, relay, err := s.control.Status(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages.RelayStatus{Success: true, Mode: string(mode), Status: relay.On()})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.control.Settings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "settings": settings})
}

func (s *Server) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var u messages.SettingsUpdate
	if err := decode(w, r, &u); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	settings, err := s.control.UpdateSettings(r.Context(), u)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "settings": settings})
}

func (s *Server) handleSettingsReset(w http.ResponseWriter, r *http.Request) {
	settings, err := s.control.ResetSettings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "settings": settings})
}
