package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter wires all routes and middleware. Paths are flat (no version
// prefix) because the device agent hardcodes them.
//
// The auth guard covers only state-mutating caller-side routes.
// Registration and approval stay open so a locked-out operator can always
// re-register, and the device-side poll/report endpoints stay open because
// the device may not hold a token yet.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)

	// Device trust lifecycle (dashboard + agent, unconditionally open).
	r.Route("/device", func(r chi.Router) {
		r.Post("/register", s.handleDeviceRegister)
		r.Post("/approve/{id}", s.handleDeviceApprove)
		r.Post("/reject/{id}", s.handleDeviceReject)
		r.Get("/pending", s.handleDevicePending)
		r.Get("/all", s.handleDeviceAll)
	})

	// Device-side poll and report, open for the same reason.
	r.Get("/settings", s.handleSettingsGet)
	r.Get("/skill/pending", s.handleSkillPending)
	r.Post("/skill/result", s.handleSkillResult)
	r.Get("/skill/history", s.handleSkillHistory)

	// Session reads.
	r.Get("/session/summary", s.handleSessionSummary)
	r.Get("/session/history", s.handleSessionHistory)
	r.Get("/session/export", s.handleSessionExport)

	// Mutating routes behind the agent token guard.
	r.Group(func(r chi.Router) {
		r.Use(s.agentAuthMiddleware)

		r.Post("/analyze", s.handleAnalyze)
		r.Get("/stream", s.handleStream)

		r.Patch("/settings", s.handleSettingsUpdate)
		r.Post("/settings/tts", s.handleSettingsTTS)

		r.Post("/skill/execute", s.handleSkillExecute)

		r.Post("/session/start", s.handleSessionStart)
		r.Post("/session/end", s.handleSessionEnd)
		r.Post("/session/note", s.handleSessionNote)
	})

	return r
}
