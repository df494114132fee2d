package api

import (
	"encoding/json"
	"net/http"

	"github.com/mccartykim/wonderback/internal/analysis"
)

// handleAnalyze runs one batch of utterances through the analyzer. The
// batch and its issues are recorded in the current session; issues are
// optionally published to MQTT and the run is recorded as a metric.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid analysis payload: "+err.Error())
		return
	}

	s.logger.Info("analyzing utterances",
		"count", len(req.Utterances),
		"trigger", req.Context.Trigger,
	)

	resp, err := s.analyzer.Analyze(r.Context(), &req)
	if err != nil {
		writeInternalError(w, "analysis failed: "+err.Error())
		return
	}

	s.recordAnalysis(&req, resp)

	s.logger.Info("analysis complete",
		"issues", len(resp.Issues),
		"inference_ms", inferenceMS(resp),
	)

	writeJSON(w, http.StatusOK, resp)
}

// recordAnalysis fans an analysis result out to the session recorder and
// the optional publishers. Shared by /analyze and /stream.
func (s *Server) recordAnalysis(req *analysis.Request, resp *analysis.Response) {
	current := s.sessions.Current()
	current.RecordUtterances(req)
	current.RecordAnalysis(req, resp)

	packageName := lastPackage(req)

	if s.mqtt != nil && len(resp.Issues) > 0 {
		if err := s.mqtt.PublishIssues(packageName, resp.Issues); err != nil {
			s.logger.Warn("publishing issues to mqtt", "error", err)
		}
	}

	if s.metrics != nil {
		s.metrics.WriteAnalysis(s.analyzer.Model(), packageName,
			inferenceMS(resp), len(req.Utterances), len(resp.Issues))
	}
}

// lastPackage returns the app package of the most recent utterance, or "".
func lastPackage(req *analysis.Request) string {
	if len(req.Utterances) == 0 {
		return ""
	}
	return req.Utterances[len(req.Utterances)-1].Screen.PackageName
}

func inferenceMS(resp *analysis.Response) int64 {
	if resp.Metadata == nil {
		return 0
	}
	return resp.Metadata.InferenceTimeMS
}
