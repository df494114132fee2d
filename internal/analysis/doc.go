// Package analysis classifies screen-reader utterance sequences into
// accessibility issues using a local LLM.
//
// The Analyzer interface is the seam between the HTTP layer and the model
// backend; the production implementation talks to Ollama's chat API and is
// deliberately forgiving about model output (fenced JSON, case drift,
// partially malformed issues).
package analysis
