package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/healthsync/symptom-triage/internal/adapters/wearable"
	"github.com/healthsync/symptom-triage/internal/biometrics"
	"github.com/healthsync/symptom-triage/internal/diagnosis"
	"github.com/healthsync/symptom-triage/internal/events"
	"github.com/healthsync/symptom-triage/internal/evidence"
	"github.com/healthsync/symptom-triage/internal/llm"
	"github.com/healthsync/symptom-triage/internal/oracle"
	"github.com/healthsync/symptom-triage/internal/shared/config"
	"github.com/healthsync/symptom-triage/internal/shared/metrics"
	"go.uber.org/zap"
)

// User-facing turn messages.
const (
	MsgUnderageFmt           = "This application is for users aged %d and above."
	MsgUnderageDetailFmt     = "This application is for users aged %d and above. Please consult a pediatrician for children."
	MsgEmptyTurn             = "No input, answer, or description provided."
	MsgTranslationEmpty      = "Couldn't identify symptoms. Please describe them differently."
	MsgTranslationEmptyHint  = "Please provide more specific symptoms or check your input."
	MsgNoPendingQuestion     = "No previous question to answer. Please provide symptoms first."
	MsgEmptyAnswer           = "No answer provided. Please select an option."
	MsgUnrecognizedAnswer    = "Couldn't understand your answer. Please select from the options or describe your symptom."
	MsgUnrecognizedFreeText  = "Couldn't understand your description. Please try again or select from the options."
	MsgDiagnosisErrorFmt     = "Diagnosis error: %s. Please try again or contact support."
	MsgDiagnosisErrorDetail  = "Diagnosis failed. Please try again or contact support."
	MsgUnexpected            = "An unexpected error occurred. Please try again."
	MsgUnexpectedDetail      = "The request could not be completed. Please try again later or contact support."
	MsgGeneralAnswerFallback = "Sorry, I can't answer that right now."
)

// Translator turns symptom text into evidence.
type Translator interface {
	Translate(ctx context.Context, text string, p oracle.Patient) []evidence.Item
}

// Interpreter turns an answer to the pending question into evidence.
type Interpreter interface {
	InterpretChoice(q *evidence.PendingQuestion, answer string) []evidence.Item
	InterpretFreeText(ctx context.Context, q *evidence.PendingQuestion, text string) []evidence.Item
}

// Diagnoser is the diagnostic gateway as seen by the engine.
type Diagnoser interface {
	GetDifferential(ctx context.Context, ev []evidence.Item, p oracle.Patient, interviewID string) (*diagnosis.Differential, error)
	GetTriage(ctx context.Context, ev []evidence.Item, p oracle.Patient, interviewID string) diagnosis.Triage
	ClassifyIsYesNo(ctx context.Context, question string) bool
	FormatSummary(conditions []diagnosis.Condition, triage diagnosis.Triage) string
}

// Assistant answers messages that are not about symptoms.
type Assistant interface {
	ClassifyIntent(ctx context.Context, text string) llm.Intent
	AnswerGeneral(ctx context.Context, text string) (string, error)
}

// VitalsSource supplies the wearable readings echoed with each turn.
type VitalsSource interface {
	BasicVitals(ctx context.Context, userID string) wearable.Vitals
}

// Answer is a choice answer: a single string or a list of selections.
type Answer struct {
	Values []string
	List   bool
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var values []string
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		a.Values, a.List = values, true
		return nil
	}

	var v *string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	a.Values, a.List = nil, false
	if v != nil && *v != "" {
		a.Values = []string{*v}
	}
	return nil
}

// Provided reports whether the turn carried an answer at all. An empty
// list counts as provided.
func (a Answer) Provided() bool {
	return a.List || len(a.Values) > 0
}

func (a Answer) String() string {
	return strings.Join(a.Values, ", ")
}

// TurnRequest is one inbound chat message.
type TurnRequest struct {
	UserID   string `json:"user_id"`
	Input    string `json:"input"`
	Answer   Answer `json:"answer"`
	FreeText string `json:"free_text"`
	Age      *int   `json:"age"`
	Sex      string `json:"sex"`
}

// echo is the user text returned with the response.
func (r TurnRequest) echo() string {
	switch {
	case r.Input != "":
		return r.Input
	case r.Answer.Provided():
		return r.Answer.String()
	default:
		return r.FreeText
	}
}

// TurnResponse is the reply to a chat message.
type TurnResponse struct {
	Message        string           `json:"message"`
	FollowUp       FollowUp         `json:"follow_up"`
	SmartwatchData *wearable.Vitals `json:"smartwatch_data,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	UserInput      string           `json:"user_input"`
}

// Dependencies are the collaborators a turn calls out to.
type Dependencies struct {
	Translator  Translator
	Interpreter Interpreter
	Diagnoser   Diagnoser
	Assistant   Assistant
	Vitals      VitalsSource
	Publisher   events.Publisher
}

// Engine runs chat turns.
type Engine struct {
	deps    Dependencies
	manager *Manager
	policy  Policy
	minAge  int
	logger  *zap.Logger
}

// NewEngine creates an engine. Missing vitals or publisher dependencies are
// replaced with no-ops.
func NewEngine(cfg config.InterviewConfig, deps Dependencies, manager *Manager, logger *zap.Logger) *Engine {
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Vitals == nil {
		deps.Vitals = biometrics.NewService(nil, nil, logger)
	}
	return &Engine{
		deps:    deps,
		manager: manager,
		policy:  NewPolicy(cfg),
		minAge:  cfg.MinAge,
		logger:  logger,
	}
}

// turnResult carries what a turn produced inside the session lock.
type turnResult struct {
	resp    TurnResponse
	outcome string
	events  []events.Event
}

// Turn handles one chat message. Recoverable problems are reported in the
// response message with a nil error; a non-nil error means the turn failed
// unexpectedly and the response carries the generic message.
func (e *Engine) Turn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	req.Input = strings.TrimSpace(req.Input)
	req.FreeText = strings.TrimSpace(req.FreeText)
	userInput := req.echo()

	if req.Age != nil && *req.Age < e.minAge {
		metrics.RecordTurn("underage")
		return &TurnResponse{
			Message:      fmt.Sprintf(MsgUnderageFmt, e.minAge),
			ErrorMessage: fmt.Sprintf(MsgUnderageDetailFmt, e.minAge),
			UserInput:    userInput,
		}, nil
	}
	if req.Input == "" && !req.Answer.Provided() && req.FreeText == "" {
		metrics.RecordTurn("empty")
		return &TurnResponse{Message: MsgEmptyTurn, UserInput: userInput}, nil
	}

	// Non-medical questions are answered without touching the session.
	if req.Input != "" && e.deps.Assistant != nil && e.deps.Assistant.ClassifyIntent(ctx, req.Input) == llm.IntentGeneral {
		metrics.RecordTurn("general")
		answer, err := e.deps.Assistant.AnswerGeneral(ctx, req.Input)
		if err != nil {
			e.logger.Warn("general answer failed", zap.Error(err))
			answer = MsgGeneralAnswerFallback
		}
		return &TurnResponse{Message: answer, UserInput: req.Input}, nil
	}

	var result turnResult
	err := e.manager.Update(ctx, req.UserID, func(s *Session) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("turn panicked: %v", r)
			}
		}()
		result, err = e.process(ctx, s, req)
		return err
	})

	if len(result.events) > 0 {
		e.deps.Publisher.Publish(ctx, result.events...)
	}

	if err != nil {
		metrics.RecordTurn("unexpected")
		e.logger.Error("turn failed", zap.String("user_id", req.UserID), zap.Error(err))
		return &TurnResponse{
			Message:      MsgUnexpected,
			ErrorMessage: MsgUnexpectedDetail,
			UserInput:    userInput,
		}, err
	}

	metrics.RecordTurn(result.outcome)
	resp := result.resp
	if resp.UserInput == "" {
		resp.UserInput = userInput
	}
	if result.outcome == outcomeContinue || result.outcome == outcomeFinal {
		v := e.deps.Vitals.BasicVitals(ctx, req.UserID)
		resp.SmartwatchData = &v
	}
	return &resp, nil
}

const (
	outcomeContinue = "continue"
	outcomeFinal    = "final"
)

// process applies one turn to s. Recoverable conditions are turned into a
// response here; only unexpected failures are returned as errors.
func (e *Engine) process(ctx context.Context, s *Session, req TurnRequest) (turnResult, error) {
	s.LastActivity = time.Now().UTC()
	if req.Age != nil {
		s.Age = *req.Age
	}
	if sex := NormalizeSex(req.Sex); sex != "" {
		s.Sex = sex
	}

	var res turnResult
	var err error
	if req.Input != "" {
		res.events, err = e.addSymptoms(ctx, s, req.Input)
	} else {
		err = e.addAnswer(ctx, s, req)
	}
	if err != nil {
		return e.recoverable(err, req)
	}

	s.Evidence = append(s.Evidence, biometrics.Fold(s.ManualVitals)...)

	d, err := e.deps.Diagnoser.GetDifferential(ctx, s.Evidence, s.Patient(), s.InterviewID.String())
	if err != nil {
		out, err := e.recoverable(fmt.Errorf("%w: %w", ErrOracle, err), req)
		out.events = res.events
		return out, err
	}

	stop := e.policy.ShouldStop(s.QuestionCount, d)
	if !stop && d.Question != nil {
		q := *d.Question
		q.IsBinary = e.deps.Diagnoser.ClassifyIsYesNo(ctx, q.Text)
		s.PendingQuestion = &q

		res.outcome = outcomeContinue
		res.resp = TurnResponse{
			Message:  e.deps.Diagnoser.FormatSummary(d.Conditions, diagnosis.UnknownTriage()),
			FollowUp: FollowUp{Question: Present(&q)},
		}
		return res, nil
	}

	// Either the policy stopped or the oracle has nothing left to ask.
	triage := e.deps.Diagnoser.GetTriage(ctx, s.Evidence, s.Patient(), s.InterviewID.String())
	metrics.RecordInterviewCompleted(string(triage.Level))
	res.events = append(res.events, events.New(events.InterviewCompleted, s.InterviewID.String(), s.UserID, map[string]any{
		"triage_level":   string(triage.Level),
		"question_count": s.QuestionCount,
		"evidence_count": len(s.Evidence),
		"top_condition":  d.Top().Name,
		"oracle_stopped": d.ShouldStop,
	}))
	s.Reset()

	res.outcome = outcomeFinal
	res.resp = TurnResponse{
		Message:  e.deps.Diagnoser.FormatSummary(d.Conditions, triage),
		FollowUp: FollowUp{Text: FinalFollowUp},
	}
	return res, nil
}

// addSymptoms translates new symptom text into the session. A reported
// symptom during an interview that has already asked questions starts a
// new interview. The session is left alone when nothing is recognized.
func (e *Engine) addSymptoms(ctx context.Context, s *Session, text string) ([]events.Event, error) {
	items := e.deps.Translator.Translate(ctx, text, s.Patient())
	if len(items) == 0 {
		return nil, ErrTranslationEmpty
	}

	var evs []events.Event
	if s.InProgress() {
		evs = append(evs, events.New(events.InterviewReset, s.InterviewID.String(), s.UserID, map[string]any{
			"reason":         "new_symptoms",
			"question_count": s.QuestionCount,
		}))
		s.Reset()
	}
	if len(s.Evidence) == 0 {
		evs = append(evs, events.New(events.InterviewStarted, s.InterviewID.String(), s.UserID, map[string]any{
			"evidence_count": len(items),
		}))
	}

	s.Evidence = append(s.Evidence, items...)
	s.QuestionCount = 0
	return evs, nil
}

// addAnswer interprets an answer to the pending question. Only the choice
// path counts towards the question budget.
func (e *Engine) addAnswer(ctx context.Context, s *Session, req TurnRequest) error {
	q := s.PendingQuestion
	if q == nil {
		return ErrNoPendingQuestion
	}

	if req.FreeText != "" {
		items := e.deps.Interpreter.InterpretFreeText(ctx, q, req.FreeText)
		if len(items) == 0 {
			return errUnrecognizedDescription
		}
		s.Evidence = append(s.Evidence, items...)
		return nil
	}

	if len(req.Answer.Values) == 0 {
		return ErrEmptyAnswer
	}
	var items []evidence.Item
	for _, v := range req.Answer.Values {
		items = append(items, e.deps.Interpreter.InterpretChoice(q, v)...)
	}
	if len(items) == 0 {
		return ErrUnrecognizedAnswer
	}
	s.Evidence = append(s.Evidence, items...)
	s.QuestionCount++
	return nil
}

// recoverable maps a turn error to the response the user sees. Errors it
// does not recognize are passed through as unexpected.
func (e *Engine) recoverable(err error, req TurnRequest) (turnResult, error) {
	var res turnResult
	switch {
	case errors.Is(err, ErrTranslationEmpty):
		res.outcome = "translation_empty"
		res.resp = TurnResponse{Message: MsgTranslationEmpty, ErrorMessage: MsgTranslationEmptyHint}
	case errors.Is(err, ErrNoPendingQuestion):
		res.outcome = "no_pending_question"
		res.resp = TurnResponse{Message: MsgNoPendingQuestion}
	case errors.Is(err, ErrEmptyAnswer):
		res.outcome = "empty_answer"
		res.resp = TurnResponse{Message: MsgEmptyAnswer}
	case errors.Is(err, errUnrecognizedDescription):
		res.outcome = "unrecognized_answer"
		res.resp = TurnResponse{Message: MsgUnrecognizedFreeText, UserInput: req.FreeText}
	case errors.Is(err, ErrUnrecognizedAnswer):
		res.outcome = "unrecognized_answer"
		res.resp = TurnResponse{Message: MsgUnrecognizedAnswer, UserInput: req.Answer.String()}
	case errors.Is(err, ErrOracle):
		res.outcome = "oracle_error"
		res.resp = TurnResponse{
			Message:      fmt.Sprintf(MsgDiagnosisErrorFmt, oracleReason(err)),
			ErrorMessage: MsgDiagnosisErrorDetail,
		}
		e.logger.Error("diagnosis failed", zap.String("user_id", req.UserID), zap.Error(err))
	default:
		return res, err
	}
	return res, nil
}

func oracleReason(err error) string {
	var de *diagnosis.Error
	if errors.As(err, &de) {
		return de.Reason()
	}
	return strings.TrimPrefix(err.Error(), ErrOracle.Error()+": ")
}
