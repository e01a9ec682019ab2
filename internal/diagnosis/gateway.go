// Package diagnosis wraps the oracle's differential and triage calls and
// renders the user-facing assessment.
package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/healthsync/symptom-triage/internal/evidence"
	"github.com/healthsync/symptom-triage/internal/oracle"
	"go.uber.org/zap"
)

// NoConditionMessage is shown when the differential is empty.
const NoConditionMessage = "I couldn't determine a specific condition yet. Let's continue diagnosing."

const (
	// maxSecondary is how many runner-up conditions a summary may list.
	maxSecondary = 2
	// probabilityEpsilon absorbs float error when comparing against the
	// difference threshold (0.8-0.65 is not exactly 0.15).
	probabilityEpsilon = 1e-9
)

// Oracle is the part of the diagnostic oracle the gateway needs.
type Oracle interface {
	Diagnosis(ctx context.Context, ev []evidence.Item, p oracle.Patient, interviewID string) (*oracle.DiagnosisResponse, error)
	Triage(ctx context.Context, ev []evidence.Item, p oracle.Patient, interviewID string) (*oracle.TriageResponse, error)
}

// YesNoClassifier decides whether a question reads as yes/no.
type YesNoClassifier interface {
	IsYesNoQuestion(ctx context.Context, question string) bool
}

// Error reports a failed differential request. It is not retried within
// the turn.
type Error struct {
	Err error
}

func (e *Error) Error() string { return "diagnosis: " + e.Reason() }

func (e *Error) Unwrap() error { return e.Err }

// Reason is the short cause shown to the user.
func (e *Error) Reason() string {
	var se *oracle.StatusError
	if errors.As(e.Err, &se) {
		return fmt.Sprintf("API error: %d", se.StatusCode)
	}
	return e.Err.Error()
}

// Gateway is the single entry point to diagnostic reasoning.
type Gateway struct {
	oracle        Oracle
	classifier    YesNoClassifier
	diffThreshold float64
	logger        *zap.Logger
}

// NewGateway creates a gateway. diffThreshold bounds how far below the
// primary condition a runner-up may be and still appear in a summary.
func NewGateway(o Oracle, classifier YesNoClassifier, diffThreshold float64, logger *zap.Logger) *Gateway {
	return &Gateway{oracle: o, classifier: classifier, diffThreshold: diffThreshold, logger: logger}
}

// GetDifferential requests the current differential and next question.
func (g *Gateway) GetDifferential(ctx context.Context, ev []evidence.Item, p oracle.Patient, interviewID string) (*Differential, error) {
	resp, err := g.oracle.Diagnosis(ctx, ev, p, interviewID)
	if err != nil {
		g.logger.Error("diagnosis failed",
			zap.String("interview_id", interviewID),
			zap.Int("evidence", len(ev)),
			zap.Error(err),
		)
		return nil, &Error{Err: err}
	}

	d := &Differential{ShouldStop: resp.ShouldStop}
	for _, c := range resp.Conditions {
		name := c.Name
		if name == "" {
			name = c.CommonName
		}
		d.Conditions = append(d.Conditions, Condition{Name: name, Probability: c.Probability})
	}
	if resp.Question != nil && len(resp.Question.Items) > 0 {
		d.Question = resp.Question.Pending()
	}
	return d, nil
}

// GetTriage never fails: empty evidence or any oracle error yields the
// unknown triage.
func (g *Gateway) GetTriage(ctx context.Context, ev []evidence.Item, p oracle.Patient, interviewID string) Triage {
	if len(ev) == 0 {
		return UnknownTriage()
	}
	resp, err := g.oracle.Triage(ctx, ev, p, interviewID)
	if err != nil {
		g.logger.Warn("triage degraded", zap.String("interview_id", interviewID), zap.Error(err))
		return UnknownTriage()
	}
	level := ParseTriageLevel(resp.TriageLevel)
	if level == TriageUnknown {
		return UnknownTriage()
	}
	return Triage{Level: level, Message: level.Recommendation()}
}

// ClassifyIsYesNo reports whether question should be rendered as a
// yes/no/don't know choice. Defaults to false.
func (g *Gateway) ClassifyIsYesNo(ctx context.Context, question string) bool {
	if g.classifier == nil || strings.TrimSpace(question) == "" {
		return false
	}
	return g.classifier.IsYesNoQuestion(ctx, question)
}

// FormatSummary renders the ranked conditions and the triage recommendation.
func (g *Gateway) FormatSummary(conditions []Condition, triage Triage) string {
	return FormatSummary(conditions, triage, g.diffThreshold)
}

// FormatSummary names the most likely condition, up to two close
// runners-up and the recommendation for the triage level.
func FormatSummary(conditions []Condition, triage Triage, diffThreshold float64) string {
	if len(conditions) == 0 {
		return NoConditionMessage
	}

	sorted := make([]Condition, len(conditions))
	copy(sorted, conditions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Probability > sorted[j].Probability
	})

	primary := sorted[0]
	var others []string
	for _, c := range sorted[1:min(len(sorted), 1+maxSecondary)] {
		if primary.Probability-c.Probability <= diffThreshold+probabilityEpsilon {
			others = append(others, fmt.Sprintf("%s (likelihood: %.1f%%)", c.Name, c.Probability*100))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The most likely condition is **%s (likelihood: %.1f%%)**.", primary.Name, primary.Probability*100)
	if len(others) > 0 {
		b.WriteString(" Other possible conditions include: ")
		b.WriteString(strings.Join(others, ", "))
		b.WriteString(".")
	}
	fmt.Fprintf(&b, " **Triage Recommendation:** %s", triage.Level.Recommendation())
	return b.String()
}
