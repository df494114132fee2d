// Package api implements the Wonderback HTTP surface.
//
// Route groups:
//
//	/health                       liveness, model, uptime
//	/device/*                     registration and approval lifecycle (open)
//	/settings*                    device poll (open) and operator writes (guarded)
//	/skill/*                      caller execute (guarded), device poll/report (open)
//	/session/*                    lifecycle writes (guarded) and reads (open)
//	/analyze, /stream             utterance analysis, batch and live (guarded)
//
// The guard is the device trust boundary: enforcement switches on the
// moment the first device is approved (or a static token is configured)
// and stays on. See internal/device for the latch semantics.
package api
