package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/project-registry/internal/lexicon"
	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/normalize"
	"github.com/sells-group/project-registry/internal/resilience"
	"github.com/sells-group/project-registry/pkg/anthropic"
)

// AIConfig controls the model-backed extractor.
type AIConfig struct {
	Model         string
	MaxTokens     int64
	Temperature   float64
	MaxInputChars int
	Timeout       time.Duration
	Retry         resilience.RetryConfig
	Circuit       resilience.CircuitBreakerConfig
}

// DefaultAIConfig returns the settings used when config leaves them unset.
func DefaultAIConfig() AIConfig {
	return AIConfig{
		Model:         "claude-haiku-4-5-20251001",
		MaxTokens:     1000,
		Temperature:   0.3,
		MaxInputChars: 3000,
		Timeout:       30 * time.Second,
		Retry:         resilience.DefaultRetryConfig(),
		Circuit:       resilience.DefaultCircuitBreakerConfig("anthropic"),
	}
}

const aiSystemPrompt = "You are a construction project data extraction expert for Saudi Arabia. You reply with a single JSON object and nothing else."

const aiPromptTemplate = `Extract the following information from the text below. If information is not found, use null.

Fields:
- project_name: the official project name
- project_name_ar: Arabic name if mentioned
- status: one of [%s]
- project_owner: the client or owner
- main_contractor: the main contractor
- consultant: the consultant company
- region: Saudi region, one of [%s]
- city: specific city
- category: one of [%s]
- description: brief project description (max 200 words)
- start_date: project start date if mentioned (YYYY-MM-DD)
- announcement_date: announcement date if mentioned (YYYY-MM-DD)
- project_value: project value or budget if mentioned
- project_size: project size or area if mentioned

Rules:
1. Only extract active, ongoing, under construction, planned or announced projects.
2. Reject if the project is completed, finished, delivered or inaugurated.
3. Reject if the project is cancelled, suspended or halted.
4. Reject if the project is not in Saudi Arabia.

Text:
%s

Return only the JSON object with the extracted data, or {"rejected": true, "reason": "explanation"} if the project should be rejected.`

var liveStatuses = []model.Status{
	model.StatusActive,
	model.StatusOngoing,
	model.StatusUnderConstruction,
	model.StatusPlanning,
	model.StatusAnnounced,
}

// AIExtractor sends a bounded window of text to the Anthropic API and
// validates the structured reply. Service failures and malformed replies
// are returned as errors so that a Fallback can take over.
type AIExtractor struct {
	client  anthropic.Client
	lex     *lexicon.Lexicon
	cfg     AIConfig
	breaker *resilience.CircuitBreaker
}

// NewAIExtractor creates an AIExtractor. Zero-valued config fields take
// their defaults.
func NewAIExtractor(client anthropic.Client, lx *lexicon.Lexicon, cfg AIConfig) *AIExtractor {
	def := DefaultAIConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = def.MaxInputChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	if cfg.Circuit.Name == "" {
		cfg.Circuit.Name = def.Circuit.Name
	}
	return &AIExtractor{
		client:  client,
		lex:     lx,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(cfg.Circuit),
	}
}

// Name implements Extractor.
func (a *AIExtractor) Name() string { return string(model.ExtractionAI) }

// Extract implements Extractor.
func (a *AIExtractor) Extract(ctx context.Context, text, sourceURL string) (Result, error) {
	text = normalize.Text(text)
	if text == "" {
		return reject(model.RejectMissingText, "empty text"), nil
	}

	req := anthropic.MessageRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(aiSystemPrompt, "5m"),
		Messages:    []anthropic.Message{{Role: "user", Content: a.prompt(text)}},
		Temperature: &a.cfg.Temperature,
	}

	resp, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.DoVal(ctx, a.retryConfig(), func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return a.call(ctx, req)
		})
	})
	if err != nil {
		return Result{}, eris.Wrap(err, "extract: ai request")
	}
	resp.Usage.LogCost(a.cfg.Model, "extract")

	payload, err := parsePayload(resp.Text())
	if err != nil {
		return Result{}, eris.Wrap(err, "extract: parse ai reply")
	}
	return a.validate(payload, sourceURL), nil
}

func (a *AIExtractor) retryConfig() resilience.RetryConfig {
	cfg := a.cfg.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("extract", "ai request")
	}
	return cfg
}

func (a *AIExtractor) call(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	resp, err := a.client.CreateMessage(ctx, req)
	if err != nil {
		return nil, resilience.NewUpstreamError("anthropic", anthropic.StatusCode(err), err)
	}
	return resp, nil
}

func (a *AIExtractor) prompt(text string) string {
	statuses := make([]string, len(liveStatuses))
	for i, s := range liveStatuses {
		statuses[i] = string(s)
	}
	return fmt.Sprintf(aiPromptTemplate,
		strings.Join(statuses, ", "),
		strings.Join(a.lex.Regions(), ", "),
		strings.Join(a.lex.Categories(), ", "),
		normalize.Truncate(text, a.cfg.MaxInputChars),
	)
}

// validate turns a parsed reply into a Result. Replies that fail the
// closed-set checks are rejections, never errors.
func (a *AIExtractor) validate(p aiPayload, sourceURL string) Result {
	if p.Rejected {
		zap.L().Info("extract: rejected by model",
			zap.String("source_url", sourceURL),
			zap.String("reason", string(p.Reason)),
		)
		return reject(model.RejectAIRejected, string(p.Reason))
	}

	status, ok := model.ParseStatus(string(p.Status))
	if !ok || !status.IsLive() {
		return reject(model.RejectInvalidStatus, string(p.Status))
	}
	name := cleanMatch(string(p.ProjectName))
	if name == "" {
		return reject(model.RejectMissingName, "model returned no name")
	}
	region, ok := a.lex.CanonicalRegion(string(p.Region))
	if !ok {
		return reject(model.RejectMissingRegion, "unknown region: "+string(p.Region))
	}

	rec := &model.ExtractedRecord{
		ExtractionMethod: model.ExtractionAI,
		SourceURL:        sourceURL,
	}
	rec.ProjectName = name
	rec.ProjectNameLocalized = strings.TrimSpace(string(p.ProjectNameAr))
	rec.Status = status
	rec.Region = region
	rec.City = strings.TrimSpace(string(p.City))
	rec.Category = model.DefaultCategory
	if cat, ok := a.lex.CanonicalCategory(string(p.Category)); ok {
		rec.Category = cat
	}
	rec.Owner = strings.TrimSpace(string(p.Owner))
	rec.MainContractor = strings.TrimSpace(string(p.MainContractor))
	rec.Consultant = strings.TrimSpace(string(p.Consultant))
	rec.Description = strings.TrimSpace(string(p.Description))
	rec.ProjectValue = strings.TrimSpace(string(p.ProjectValue))
	rec.ProjectSize = strings.TrimSpace(string(p.ProjectSize))
	rec.StartDate = parseDate(string(p.StartDate))
	rec.AnnouncementDate = parseDate(string(p.AnnouncementDate))
	return Result{Record: rec}
}

// aiPayload is the JSON object the model is asked to return.
type aiPayload struct {
	ProjectName      flexString `json:"project_name"`
	ProjectNameAr    flexString `json:"project_name_ar"`
	Status           flexString `json:"status"`
	Owner            flexString `json:"project_owner"`
	MainContractor   flexString `json:"main_contractor"`
	Consultant       flexString `json:"consultant"`
	Region           flexString `json:"region"`
	City             flexString `json:"city"`
	Category         flexString `json:"category"`
	Description      flexString `json:"description"`
	StartDate        flexString `json:"start_date"`
	AnnouncementDate flexString `json:"announcement_date"`
	ProjectValue     flexString `json:"project_value"`
	ProjectSize      flexString `json:"project_size"`
	Rejected         bool       `json:"rejected"`
	Reason           flexString `json:"reason"`
}

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*f = ""
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(v)
	default:
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return eris.Errorf("extract: unexpected value %s", s)
		}
		*f = flexString(s)
	}
	return nil
}

func parsePayload(text string) (aiPayload, error) {
	var p aiPayload
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return p, eris.New("extract: empty ai reply")
	}
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return p, eris.Wrap(err, "extract: decode ai reply")
	}
	return p, nil
}

// cleanJSON strips markdown code fences and any prose around the outermost
// JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
