// Package interpreter turns an answer to the pending follow-up question
// into evidence. Every path returns an empty slice when it cannot make sense
// of the answer; the caller decides what to tell the user.
package interpreter

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/healthsync/symptom-triage/internal/evidence"
	"github.com/healthsync/symptom-triage/internal/llm"
	"go.uber.org/zap"
)

var (
	durationPattern = regexp.MustCompile(`(\d+)\s*(year|years|month|months|day|days|hour|hours|week|weeks)`)
	negationPattern = regexp.MustCompile(`\b(don't have|no|not|haven't|didn't)\b\s*(.+)`)
	leadingArticle  = regexp.MustCompile(`^(a|an|any|the)\s+`)
)

// Parser is the generative fallback used for free-text answers.
type Parser interface {
	ParseDuration(ctx context.Context, questionText, text string) (llm.Duration, bool)
	ParseFreeText(ctx context.Context, questionText, text string) (llm.FreeTextAnswer, bool)
}

// Strategy is one step of a free-text chain. An empty result passes the
// answer to the next strategy.
type Strategy interface {
	Name() string
	Interpret(ctx context.Context, q *evidence.PendingQuestion, text string) []evidence.Item
}

// Interpreter maps answers onto the pending question's items.
type Interpreter struct {
	duration []Strategy
	general  []Strategy
	logger   *zap.Logger
}

// New builds an interpreter with the regex-first duration chain and the
// negation-first general chain, both falling back to parser.
func New(parser Parser, logger *zap.Logger) *Interpreter {
	return &Interpreter{
		duration: []Strategy{DurationPattern{}, &DurationModel{parser: parser}},
		general:  []Strategy{Negation{}, &FreeTextModel{parser: parser}},
		logger:   logger,
	}
}

// InterpretChoice handles a selected option or a typed choice. Literal
// yes / no / don't know answers apply to the first item; anything else is
// fuzzy-matched against the item names and marks the match present.
func (i *Interpreter) InterpretChoice(q *evidence.PendingQuestion, answer string) []evidence.Item {
	first, ok := q.First()
	if !ok {
		return nil
	}
	if presence, ok := evidence.PresenceFromChoice(answer); ok {
		return []evidence.Item{evidence.New(first.SymptomID, presence)}
	}

	idx, ok := BestMatch(evidence.NormalizeText(answer), q.Names(), MatchThreshold)
	if !ok {
		i.logger.Debug("answer matched no option", zap.String("answer", answer))
		return nil
	}
	return []evidence.Item{evidence.New(q.Items[idx].SymptomID, evidence.Present)}
}

// InterpretFreeText handles a described answer. Questions about how long
// something lasted take the duration chain; everything else takes the
// general chain.
func (i *Interpreter) InterpretFreeText(ctx context.Context, q *evidence.PendingQuestion, text string) []evidence.Item {
	if _, ok := q.First(); !ok {
		return nil
	}
	text = evidence.NormalizeText(text)
	if text == "" {
		return nil
	}

	chain := i.general
	if IsDurationQuestion(q) {
		chain = i.duration
	}
	for _, s := range chain {
		if items := s.Interpret(ctx, q, text); len(items) > 0 {
			i.logger.Debug("interpreted free text", zap.String("strategy", s.Name()))
			return items
		}
	}
	return nil
}

// IsDurationQuestion reports whether the question text or any item name
// asks how long something has lasted.
func IsDurationQuestion(q *evidence.PendingQuestion) bool {
	candidates := append([]string{q.Text}, q.Names()...)
	for _, s := range candidates {
		s = strings.ToLower(s)
		if strings.Contains(s, "long") || strings.Contains(s, "duration") {
			return true
		}
	}
	return false
}

// DurationPattern reads "<n> <unit>" answers without calling the model.
type DurationPattern struct{}

func (DurationPattern) Name() string { return "duration_pattern" }

func (DurationPattern) Interpret(_ context.Context, q *evidence.PendingQuestion, text string) []evidence.Item {
	m := durationPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	value, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return []evidence.Item{durationEvidence(q, float64(value))}
}

// DurationModel asks the language model for a structured duration.
type DurationModel struct {
	parser Parser
}

func (*DurationModel) Name() string { return "duration_model" }

func (s *DurationModel) Interpret(ctx context.Context, q *evidence.PendingQuestion, text string) []evidence.Item {
	d, ok := s.parser.ParseDuration(ctx, q.Text, text)
	if !ok {
		return nil
	}
	return []evidence.Item{durationEvidence(q, d.Value)}
}

func durationEvidence(q *evidence.PendingQuestion, value float64) evidence.Item {
	first, _ := q.First()
	presence := evidence.Absent
	if value > 0 {
		presence = evidence.Present
	}
	return evidence.New(first.SymptomID, presence)
}

// Negation marks an item absent when the answer negates its name
// ("i don't have fever").
type Negation struct{}

func (Negation) Name() string { return "negation" }

func (Negation) Interpret(_ context.Context, q *evidence.PendingQuestion, text string) []evidence.Item {
	m := negationPattern.FindStringSubmatch(strings.ReplaceAll(text, "’", "'"))
	if m == nil {
		return nil
	}
	phrase := leadingArticle.ReplaceAllString(strings.TrimSpace(m[2]), "")
	if phrase == "" {
		return nil
	}
	for _, it := range q.Items {
		if strings.Contains(strings.ToLower(it.DisplayName), phrase) {
			return []evidence.Item{evidence.New(it.SymptomID, evidence.Absent)}
		}
	}
	return nil
}

// FreeTextModel asks the language model which item the answer is about.
type FreeTextModel struct {
	parser Parser
}

func (*FreeTextModel) Name() string { return "free_text_model" }

func (s *FreeTextModel) Interpret(ctx context.Context, q *evidence.PendingQuestion, text string) []evidence.Item {
	ans, ok := s.parser.ParseFreeText(ctx, q.Text, text)
	if !ok {
		return nil
	}
	presence, ok := evidence.PresenceFromChoice(ans.Choice)
	if !ok {
		return nil
	}
	name := strings.ToLower(strings.TrimSpace(ans.Item))
	for _, it := range q.Items {
		if strings.ToLower(it.DisplayName) == name {
			return []evidence.Item{evidence.New(it.SymptomID, presence)}
		}
	}
	return nil
}
