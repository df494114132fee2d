package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mccartykim/wonderback/internal/settings"
)

// settingsResponse is the poll response. AuthToken rides along for an
// approved device: approval does not bump the settings revision, so token
// delivery must not depend on the settings having changed.
type settingsResponse struct {
	settings.Settings
	AuthToken string `json:"auth_token,omitempty"`
}

// handleSettingsGet serves the device poll. Query parameters:
//
//	revision   last revision the device has seen (default 0)
//	device_id  optional; an approved device gets its token attached
//
// Responds 304 only when the settings are unchanged AND there is no token
// to deliver.
func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	revision := int64(0)
	if raw := r.URL.Query().Get("revision"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeValidationError(w, "revision must be an integer")
			return
		}
		revision = parsed
	}

	token := ""
	if deviceID := r.URL.Query().Get("device_id"); deviceID != "" {
		token = s.registry.TokenForDevice(deviceID)
	}

	changed := s.settings.GetIfNewer(revision)
	if changed == nil && token == "" {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	current := s.settings.Current()
	writeJSON(w, http.StatusOK, settingsResponse{
		Settings:  current,
		AuthToken: token,
	})
}

// handleSettingsUpdate applies a partial settings update. Unknown and
// derived fields are ignored; the revision bumps once iff anything changed.
func (s *Server) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var changes map[string]any
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		writeValidationError(w, "invalid settings payload: "+err.Error())
		return
	}

	updated := s.settings.Update(changes)
	writeJSON(w, http.StatusOK, updated)
}

// handleSettingsTTS is a convenience toggle for narration suppression,
// driven by a ?suppress=true|false query parameter.
func (s *Server) handleSettingsTTS(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("suppress")
	suppress, err := strconv.ParseBool(raw)
	if err != nil {
		writeValidationError(w, "suppress must be true or false")
		return
	}

	updated := s.settings.Update(map[string]any{"tts_suppressed": suppress})
	writeJSON(w, http.StatusOK, updated)
}
