package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mccartykim/wonderback/internal/infrastructure/config"
)

// Analyzer turns a batch of utterances into accessibility issues.
//
// Implementations must not fail the request path on backend trouble: if
// inference is unavailable, return an empty Response, not an error. An
// error is reserved for malformed input.
type Analyzer interface {
	Analyze(ctx context.Context, req *Request) (*Response, error)

	// Model names the backing model, for health reporting and metrics.
	Model() string
}

// Logger is the logging interface used by the Ollama analyzer.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// OllamaAnalyzer runs analysis against a local Ollama server.
type OllamaAnalyzer struct {
	model   string
	host    string
	client  *http.Client
	logger  Logger
	timeout time.Duration
}

// ollama chat API payloads; only the fields we use.
type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Format   string          `json:"format"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
}

// issuesEnvelope is the JSON shape we ask the model to produce.
type issuesEnvelope struct {
	Issues []json.RawMessage `json:"issues"`
}

// fencedJSON extracts a ```json fenced block from markdown-wrapped output.
var fencedJSON = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n```")

// NewOllamaAnalyzer creates an analyzer backed by an Ollama server.
func NewOllamaAnalyzer(cfg config.AnalyzerConfig, logger Logger) *OllamaAnalyzer {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OllamaAnalyzer{
		model:   cfg.Model,
		host:    strings.TrimRight(cfg.Host, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		timeout: timeout,
	}
}

// Model returns the configured model name.
func (a *OllamaAnalyzer) Model() string {
	return a.model
}

// Analyze sends the batch to the model and parses structured issues out of
// its reply. Inference failures degrade to an empty response: the testing
// session keeps going even when the LLM is down.
func (a *OllamaAnalyzer) Analyze(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	issues, err := a.infer(ctx, req)
	if err != nil {
		a.logger.Error("analysis failed", "error", err)
		return a.emptyResponse(req, start), nil
	}

	return &Response{
		Issues: issues,
		Metadata: &ResponseMetadata{
			Model:           a.model,
			InferenceTimeMS: time.Since(start).Milliseconds(),
			TotalUtterances: len(req.Utterances),
			IssuesFound:     len(issues),
		},
	}, nil
}

func (a *OllamaAnalyzer) infer(ctx context.Context, req *Request) ([]Issue, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model: a.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req)},
		},
		Format: "json",
		Stream: false,
		Options: map[string]any{
			"temperature": 0.3,
			"num_predict": 2048,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-side close

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}

	return a.parseIssues(chatResp.Message.Content), nil
}

// parseIssues extracts issues from model output. Models sometimes wrap the
// JSON in a markdown code fence despite the format instruction, so fall
// back to extracting a fenced block before giving up.
func (a *OllamaAnalyzer) parseIssues(content string) []Issue {
	var envelope issuesEnvelope
	if err := json.Unmarshal([]byte(content), &envelope); err == nil {
		return a.issuesFromRaw(envelope.Issues)
	}

	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &envelope); err == nil {
			return a.issuesFromRaw(envelope.Issues)
		}
	}

	preview := content
	if len(preview) > 200 {
		preview = preview[:200]
	}
	a.logger.Warn("failed to parse model output as JSON", "preview", preview)
	return nil
}

// issuesFromRaw decodes raw issue objects, normalizing enum case and
// skipping anything malformed rather than failing the batch.
func (a *OllamaAnalyzer) issuesFromRaw(raw []json.RawMessage) []Issue {
	var issues []Issue
	for _, r := range raw {
		var issue Issue
		if err := json.Unmarshal(r, &issue); err != nil {
			a.logger.Warn("skipping malformed issue", "error", err)
			continue
		}
		issue.Severity = IssueSeverity(strings.ToUpper(string(issue.Severity)))
		issue.Category = IssueCategory(strings.ToUpper(string(issue.Category)))
		if !validSeverity(issue.Severity) || !validCategory(issue.Category) {
			a.logger.Warn("skipping issue with unknown enum",
				"severity", issue.Severity, "category", issue.Category)
			continue
		}
		issues = append(issues, issue)
	}
	return issues
}

func (a *OllamaAnalyzer) emptyResponse(req *Request, start time.Time) *Response {
	return &Response{
		Issues: []Issue{},
		Metadata: &ResponseMetadata{
			Model:           a.model,
			InferenceTimeMS: time.Since(start).Milliseconds(),
			TotalUtterances: len(req.Utterances),
			IssuesFound:     0,
		},
	}
}

func validSeverity(s IssueSeverity) bool {
	switch s {
	case SeverityError, SeverityWarning, SeveritySuggestion:
		return true
	}
	return false
}

func validCategory(c IssueCategory) bool {
	switch c {
	case CategoryLabelQuality, CategoryStructure, CategoryContext, CategoryNavigation:
		return true
	}
	return false
}
