package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/healthsync/symptom-triage/internal/shared/metrics"
	"go.uber.org/zap"
)

// maxSymptoms bounds the vague-symptom expansion.
const maxSymptoms = 10

// Intent is the coarse routing class of a user message.
type Intent string

const (
	IntentMedical Intent = "medical"
	IntentGeneral Intent = "general"
)

// Duration is a structured reading of a "how long" answer.
type Duration struct {
	Value float64
	Unit  string
}

// FreeTextAnswer is a structured reading of a free-text answer.
type FreeTextAnswer struct {
	Item   string
	Choice string
}

// Assistant exposes the language model as small classifier and parser
// primitives.
type Assistant struct {
	client  Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewAssistant wraps client. A zero timeout leaves deadlines to the caller.
func NewAssistant(client Client, timeout time.Duration, logger *zap.Logger) *Assistant {
	return &Assistant{client: client, timeout: timeout, logger: logger}
}

func (a *Assistant) call(ctx context.Context, primitive string, req Request) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	reply, err := a.client.Complete(ctx, req)
	metrics.RecordLLMCall(primitive, err == nil)
	if err != nil {
		a.logger.Error("llm call failed", zap.String("primitive", primitive), zap.Error(err))
		return "", err
	}
	a.logger.Debug("llm reply", zap.String("primitive", primitive), zap.String("reply", reply))
	return reply, nil
}

// ClassifyIntent labels text as medical or general. Defaults to medical.
func (a *Assistant) ClassifyIntent(ctx context.Context, text string) Intent {
	reply, err := a.call(ctx, "intent", Request{
		System:    systemIntent,
		Prompt:    fmt.Sprintf(promptIntent, text),
		MaxTokens: 10,
	})
	if err != nil {
		return IntentMedical
	}
	if normalizeWord(reply) == string(IntentGeneral) {
		return IntentGeneral
	}
	return IntentMedical
}

// AnswerGeneral answers a non-medical question directly.
func (a *Assistant) AnswerGeneral(ctx context.Context, text string) (string, error) {
	reply, err := a.call(ctx, "general", Request{
		System:    systemGeneral,
		Prompt:    fmt.Sprintf(promptGeneral, text),
		MaxTokens: 100,
	})
	if err != nil {
		return "", fmt.Errorf("general answer: %w", err)
	}
	return reply, nil
}

// InterpretVagueSymptoms proposes symptom names for a vague description.
// Returns nil on any failure.
func (a *Assistant) InterpretVagueSymptoms(ctx context.Context, text string) []string {
	reply, err := a.call(ctx, "vague_symptoms", Request{
		System:    systemJSON,
		Prompt:    fmt.Sprintf(promptVague, text),
		MaxTokens: 100,
	})
	if err != nil {
		return nil
	}

	var parsed struct {
		Symptoms []string `json:"symptoms"`
	}
	if err := decodeJSON(reply, &parsed); err != nil {
		a.logger.Warn("unparseable symptom list", zap.Error(err))
		return nil
	}

	out := make([]string, 0, len(parsed.Symptoms))
	for _, s := range parsed.Symptoms {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == maxSymptoms {
			break
		}
	}
	return out
}

// ParseDuration reads a duration answer. ok is false when the model is
// unsure, replies null or fails.
func (a *Assistant) ParseDuration(ctx context.Context, questionText, text string) (Duration, bool) {
	reply, err := a.call(ctx, "duration", Request{
		System:    systemJSONNull,
		Prompt:    fmt.Sprintf(promptDuration, questionText, text),
		MaxTokens: 50,
	})
	if err != nil {
		return Duration{}, false
	}

	var parsed struct {
		Value *float64 `json:"value"`
		Unit  *string  `json:"unit"`
	}
	if err := decodeJSON(reply, &parsed); err != nil || parsed.Value == nil || parsed.Unit == nil {
		return Duration{}, false
	}
	return Duration{Value: *parsed.Value, Unit: *parsed.Unit}, true
}

// ParseFreeText reads a free-text answer as an item name plus a yes/no/don't
// know choice. ok is false when either field is missing.
func (a *Assistant) ParseFreeText(ctx context.Context, questionText, text string) (FreeTextAnswer, bool) {
	reply, err := a.call(ctx, "free_text", Request{
		System:    systemJSONNull,
		Prompt:    fmt.Sprintf(promptFreeText, questionText, text),
		MaxTokens: 50,
	})
	if err != nil {
		return FreeTextAnswer{}, false
	}

	var parsed struct {
		Item   *string `json:"item"`
		Choice *string `json:"choice"`
	}
	if err := decodeJSON(reply, &parsed); err != nil || parsed.Item == nil || parsed.Choice == nil {
		return FreeTextAnswer{}, false
	}
	return FreeTextAnswer{Item: *parsed.Item, Choice: *parsed.Choice}, true
}

// IsYesNoQuestion reports whether question is answerable with yes or no.
// Defaults to false.
func (a *Assistant) IsYesNoQuestion(ctx context.Context, question string) bool {
	reply, err := a.call(ctx, "yes_no", Request{
		Prompt:    fmt.Sprintf(promptYesNo, question),
		MaxTokens: 5,
	})
	if err != nil {
		return false
	}
	return normalizeWord(reply) == "yes"
}

// VitalsInsights produces short advice for the given wearable readings.
func (a *Assistant) VitalsInsights(ctx context.Context, spo2, heartRate string) (string, error) {
	reply, err := a.call(ctx, "insights", Request{
		System:    systemInsights,
		Prompt:    fmt.Sprintf(promptInsights, spo2, heartRate),
		MaxTokens: 200,
	})
	if err != nil {
		return "", fmt.Errorf("vitals insights: %w", err)
	}
	return reply, nil
}

func normalizeWord(s string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(s)), ".!'\" ")
}
