// Package planner turns a goal into an Intent and validates it against a
// fixed set of guardrails before anything downstream is allowed to act on
// it. The Backend interface follows the teacher's internal/llm.Client shape
// (a small contract, one implementation per provider, a deterministic
// fallback that needs no network); guardrail evaluation is a pure function
// so it can run against any backend's output, including a human-authored one.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/wangzizhe/gateforge/internal/gftypes"
	"github.com/wangzizhe/gateforge/internal/logger"
)

// Backend produces an Intent from a goal and optional supporting context.
type Backend interface {
	Name() string
	Plan(ctx context.Context, goal, supportingContext string) (gftypes.Intent, error)
}

// GuardrailConfig bounds what a planner's Intent is allowed to propose.
type GuardrailConfig struct {
	ConfidenceMin   float64
	ConfidenceMax   float64
	AllowedRoots    []string
	AllowedSuffixes []string
	AllowedFiles    []string
}

// DefaultGuardrailConfig mirrors spec's compiled-in defaults: any confidence
// is accepted and no file is allowed until a whitelist is declared.
func DefaultGuardrailConfig() GuardrailConfig {
	return GuardrailConfig{ConfidenceMin: 0, ConfidenceMax: 1}
}

// Validate applies spec.md §4.5's three guardrail rules, in order, collecting
// every violation rather than stopping at the first so a caller sees the
// full rejection reason set in one pass.
func Validate(intent gftypes.Intent, cfg GuardrailConfig) []gftypes.GuardrailViolation {
	var violations []gftypes.GuardrailViolation

	if intent.Confidence < cfg.ConfidenceMin {
		violations = append(violations, gftypes.GuardrailViolation{
			RuleID:  "change_plan_confidence_below_min",
			Message: fmt.Sprintf("confidence %.3g below minimum %.3g", intent.Confidence, cfg.ConfidenceMin),
		})
	}
	if intent.Confidence > cfg.ConfidenceMax {
		violations = append(violations, gftypes.GuardrailViolation{
			RuleID:  "change_plan_confidence_above_max",
			Message: fmt.Sprintf("confidence %.3g above maximum %.3g", intent.Confidence, cfg.ConfidenceMax),
		})
	}

	if intent.ChangeSetDraft != nil {
		for _, op := range intent.ChangeSetDraft.Ops {
			if !pathAllowed(op.Path, cfg) {
				violations = append(violations, gftypes.GuardrailViolation{
					RuleID:  "change_plan_file_not_allowed:" + op.Path,
					Message: fmt.Sprintf("touched file %q is outside the allowed roots/suffixes/whitelist", op.Path),
				})
			}
		}
	}

	return violations
}

func pathAllowed(path string, cfg GuardrailConfig) bool {
	for _, f := range cfg.AllowedFiles {
		if f == path {
			return true
		}
	}
	for _, root := range cfg.AllowedRoots {
		if root != "" && strings.HasPrefix(path, root) {
			return true
		}
	}
	for _, suffix := range cfg.AllowedSuffixes {
		if suffix != "" && strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// ValidateSchema rejects an Intent carrying unknown top-level fields. It
// decodes raw strictly itself (decodeStrict, via
// json.Decoder.DisallowUnknownFields) and reports any decode failure as a
// single planner_output_invalid violation.
func ValidateSchema(raw []byte) (gftypes.Intent, []gftypes.GuardrailViolation) {
	intent, err := decodeStrict(raw)
	if err != nil {
		return gftypes.Intent{}, []gftypes.GuardrailViolation{{
			RuleID:  "planner_output_invalid",
			Message: err.Error(),
		}}
	}
	return intent, nil
}

// RuleBackend derives a deterministic Intent without calling any external
// model, grounded in the teacher's preference for a zero-dependency
// fallback path that always produces a usable result offline.
type RuleBackend struct{}

func NewRuleBackend() *RuleBackend { return &RuleBackend{} }

func (r *RuleBackend) Name() string { return "rule" }

func (r *RuleBackend) Plan(_ context.Context, goal, _ string) (gftypes.Intent, error) {
	log := logger.WithComponent("planner.rule")
	log.Info("deriving rule-based intent", zap.String("goal", goal))

	return gftypes.Intent{
		Intent:     goal,
		ProposalID: uuid.NewString(),
		Confidence: 0.5,
		ChangePlan: &gftypes.ChangePlan{
			Summary:   "rule-based intent derived from goal text, no file changes proposed",
			Rationale: "the rule backend never proposes a change-set; it exists to keep the pipeline usable offline",
		},
	}, nil
}

// GeminiBackend drives Google's GenAI SDK, grounded on the client
// construction and error-wrapping pattern the example pack's GenAI
// embedding engine uses (genai.NewClient with an API-key config, wrapped
// errors, one call per request).
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGeminiBackend constructs a GenAI-backed planner. model defaults to
// "gemini-2.0-flash" when empty.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is required for the gemini planner backend")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create GenAI client: %w", err)
	}

	return &GeminiBackend{client: client, model: model}, nil
}

func (g *GeminiBackend) Name() string { return "gemini" }

func (g *GeminiBackend) Plan(ctx context.Context, goal, supportingContext string) (gftypes.Intent, error) {
	log := logger.WithComponent("planner.gemini")

	prompt := goal
	if supportingContext != "" {
		prompt = goal + "\n\ncontext:\n" + supportingContext
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		log.Error("GenAI GenerateContent failed", zap.Error(err))
		return gftypes.Intent{}, fmt.Errorf("planner_backend_unavailable: gemini call failed: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return gftypes.Intent{}, fmt.Errorf("planner_backend_unavailable: gemini returned no candidates")
	}

	raw := result.Text()
	intent, violations := ValidateSchema([]byte(raw))
	if len(violations) > 0 {
		return gftypes.Intent{}, fmt.Errorf("planner_output_invalid: gemini output did not decode to a valid intent")
	}
	return intent, nil
}

// OpenAIBackend constructs a real go-openai client after the same non-empty
// API key check the Gemini backend makes. It is a placeholder backend: Plan
// makes no model call and always returns a not-implemented error rather
// than silently degrading to a guess.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

func NewOpenAIBackend(apiKey, model string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai planner backend")
	}
	if model == "" {
		model = openai.GPT4TurboPreview
	}
	return &OpenAIBackend{client: openai.NewClient(apiKey), model: model}, nil
}

func (o *OpenAIBackend) Name() string { return "openai" }

func (o *OpenAIBackend) Plan(_ context.Context, _, _ string) (gftypes.Intent, error) {
	return gftypes.Intent{}, fmt.Errorf("planner_backend_unavailable: openai planner backend is not implemented")
}

// New selects a Backend by name. Unknown names fall back to the rule
// backend so a misconfigured --planner-backend degrades to a working,
// offline-capable path instead of failing the whole run.
func New(ctx context.Context, name string, apiKeys map[string]string) (Backend, error) {
	switch name {
	case "gemini":
		return NewGeminiBackend(ctx, apiKeys["GOOGLE_API_KEY"], "")
	case "openai":
		return NewOpenAIBackend(apiKeys["OPENAI_API_KEY"], "")
	default:
		return NewRuleBackend(), nil
	}
}

func decodeStrict(raw []byte) (gftypes.Intent, error) {
	var intent gftypes.Intent
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&intent); err != nil {
		return gftypes.Intent{}, err
	}
	return intent, nil
}
