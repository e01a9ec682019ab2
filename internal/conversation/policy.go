package conversation

import (
	"github.com/healthsync/symptom-triage/internal/diagnosis"
	"github.com/healthsync/symptom-triage/internal/shared/config"
)

// Policy decides when the interview has asked enough questions.
type Policy struct {
	MinQuestions         int
	MaxQuestions         int
	ProbabilityThreshold float64
}

// NewPolicy builds the stop policy from configuration.
func NewPolicy(cfg config.InterviewConfig) Policy {
	return Policy{
		MinQuestions:         cfg.MinQuestions,
		MaxQuestions:         cfg.MaxQuestions,
		ProbabilityThreshold: cfg.ProbabilityThreshold,
	}
}

// ShouldStop is true once a confident diagnosis follows enough questions,
// the question budget is spent, or the oracle itself asks to stop.
func (p Policy) ShouldStop(questionCount int, d *diagnosis.Differential) bool {
	confident := questionCount >= p.MinQuestions && d.Top().Probability >= p.ProbabilityThreshold
	return confident || questionCount >= p.MaxQuestions || d.ShouldStop
}
