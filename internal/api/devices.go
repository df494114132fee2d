package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mccartykim/wonderback/internal/device"
)

// deviceRegisterRequest is the agent's registration payload.
type deviceRegisterRequest struct {
	DeviceName   string `json:"device_name"`
	DeviceSerial string `json:"device_serial"`
}

// handleDeviceRegister creates (or returns, matched by serial) a device
// record in pending state. Always open: registration must remain reachable
// so an operator can never lock themselves out.
func (s *Server) handleDeviceRegister(w http.ResponseWriter, r *http.Request) {
	var req deviceRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid registration payload: "+err.Error())
		return
	}
	if strings.TrimSpace(req.DeviceName) == "" {
		writeValidationError(w, "device_name is required")
		return
	}

	info := s.registry.Register(req.DeviceName, req.DeviceSerial)
	writeJSON(w, http.StatusOK, info)
}

// handleDeviceApprove approves a pending device, minting its token.
func (s *Server) handleDeviceApprove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	info, err := s.registry.Approve(id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "unknown device id")
			return
		}
		writeInternalError(w, err.Error())
		return
	}

	s.logger.Info("device approved", "device_id", id, "device_name", info.Name)
	writeJSON(w, http.StatusOK, info)
}

// handleDeviceReject rejects a device and revokes its token.
func (s *Server) handleDeviceReject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	info, err := s.registry.Reject(id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "unknown device id")
			return
		}
		writeInternalError(w, err.Error())
		return
	}

	s.logger.Info("device rejected", "device_id", id, "device_name", info.Name)
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDevicePending(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": s.registry.Pending(),
	})
}

func (s *Server) handleDeviceAll(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"devices":      s.registry.All(),
		"auth_enabled": s.registry.AuthEnabled(),
	})
}
