package conversation

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/healthsync/symptom-triage/internal/diagnosis"
	"github.com/healthsync/symptom-triage/internal/events"
	"github.com/healthsync/symptom-triage/internal/evidence"
	"github.com/healthsync/symptom-triage/internal/interpreter"
	"github.com/healthsync/symptom-triage/internal/llm"
	"github.com/healthsync/symptom-triage/internal/oracle"
	"github.com/healthsync/symptom-triage/internal/shared/config"
	"go.uber.org/zap"
)

// fakeTranslator maps exact lower-case text to evidence.
type fakeTranslator map[string][]evidence.Item

func (f fakeTranslator) Translate(_ context.Context, text string, _ oracle.Patient) []evidence.Item {
	return f[strings.ToLower(text)]
}

// fakeOracle records the evidence of each call and replays scripted replies.
type fakeOracle struct {
	mu        sync.Mutex
	replies   []*oracle.DiagnosisResponse
	err       error
	triage    string
	diagCalls [][]evidence.Item
	interview []string
	triaged   int
}

func (o *fakeOracle) Diagnosis(_ context.Context, ev []evidence.Item, _ oracle.Patient, interviewID string) (*oracle.DiagnosisResponse, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.diagCalls = append(o.diagCalls, append([]evidence.Item(nil), ev...))
	o.interview = append(o.interview, interviewID)
	if o.err != nil {
		return nil, o.err
	}
	if len(o.replies) == 0 {
		return &oracle.DiagnosisResponse{}, nil
	}
	r := o.replies[0]
	if len(o.replies) > 1 {
		o.replies = o.replies[1:]
	}
	return r, nil
}

func (o *fakeOracle) Triage(context.Context, []evidence.Item, oracle.Patient, string) (*oracle.TriageResponse, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.triaged++
	return &oracle.TriageResponse{TriageLevel: o.triage}, nil
}

func (o *fakeOracle) lastEvidence() []evidence.Item {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.diagCalls) == 0 {
		return nil
	}
	return o.diagCalls[len(o.diagCalls)-1]
}

type fakeClassifier bool

func (f fakeClassifier) IsYesNoQuestion(context.Context, string) bool { return bool(f) }

type fakeParser struct{}

func (fakeParser) ParseDuration(context.Context, string, string) (llm.Duration, bool) {
	return llm.Duration{}, false
}

func (fakeParser) ParseFreeText(context.Context, string, string) (llm.FreeTextAnswer, bool) {
	return llm.FreeTextAnswer{}, false
}

type fakeAssistant struct {
	general map[string]string
}

func (a fakeAssistant) ClassifyIntent(_ context.Context, text string) llm.Intent {
	if _, ok := a.general[text]; ok {
		return llm.IntentGeneral
	}
	return llm.IntentMedical
}

func (a fakeAssistant) AnswerGeneral(_ context.Context, text string) (string, error) {
	return a.general[text], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evs ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evs...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	engine    *Engine
	manager   *Manager
	store     *MemoryStore
	oracle    *fakeOracle
	publisher *recordingPublisher
}

var testInterviewConfig = config.InterviewConfig{
	MinQuestions:             3,
	MaxQuestions:             10,
	ProbabilityThreshold:     0.7,
	ProbabilityDiffThreshold: 0.15,
	MinAge:                   18,
}

func newHarness(t *testing.T, translations fakeTranslator, yesNo bool) *harness {
	t.Helper()
	logger := zap.NewNop()
	store := NewMemoryStore()
	manager := NewManager(store, logger)
	o := &fakeOracle{triage: "self_care"}
	pub := &recordingPublisher{}

	engine := NewEngine(testInterviewConfig, Dependencies{
		Translator:  translations,
		Interpreter: interpreter.New(fakeParser{}, logger),
		Diagnoser:   diagnosis.NewGateway(o, fakeClassifier(yesNo), testInterviewConfig.ProbabilityDiffThreshold, logger),
		Assistant:   fakeAssistant{general: map[string]string{"what is the capital of france?": "Paris."}},
		Publisher:   pub,
	}, manager, logger)

	return &harness{engine: engine, manager: manager, store: store, oracle: o, publisher: pub}
}

func (h *harness) session(t *testing.T, userID string) *Session {
	t.Helper()
	s, err := h.manager.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("Get(%q): %v", userID, err)
	}
	return s
}

func question(qtype, text string, items ...oracle.QuestionItem) *oracle.Question {
	return &oracle.Question{Type: qtype, Text: text, Items: items}
}

func ageOf(n int) *int { return &n }

var (
	fever    = evidence.New("s_98", evidence.Present)
	headache = evidence.New("s_headache", evidence.Present)
	nausea   = oracle.QuestionItem{ID: "s_nausea", Name: "Nausea"}
	vomiting = oracle.QuestionItem{ID: "s_vomiting", Name: "Vomiting"}
)
