// Package conversation runs the symptom interview: it owns per-user session
// state and drives each chat turn through translation, interpretation,
// diagnosis and the stop policy.
package conversation

import (
	"strings"
	"time"

	"github.com/healthsync/symptom-triage/internal/biometrics"
	"github.com/healthsync/symptom-triage/internal/evidence"
	"github.com/healthsync/symptom-triage/internal/oracle"
	"github.com/healthsync/symptom-triage/internal/shared/types"
)

// Demographic defaults applied to new sessions.
const (
	DefaultAge = 30
	DefaultSex = "male"
)

// Session is the interview state kept for one user between turns.
type Session struct {
	UserID          string                    `json:"user_id"`
	InterviewID     types.ID                  `json:"interview_id"`
	Evidence        []evidence.Item           `json:"evidence"`
	PendingQuestion *evidence.PendingQuestion `json:"pending_question,omitempty"`
	QuestionCount   int                       `json:"question_count"`
	Age             int                       `json:"age"`
	Sex             string                    `json:"sex"`
	ManualVitals    biometrics.ManualVitals   `json:"manual_vitals"`
	LastActivity    time.Time                 `json:"last_activity"`
}

// NewSession creates the default session for a user seen for the first time.
func NewSession(userID string) *Session {
	return &Session{
		UserID:       userID,
		InterviewID:  types.NewID(),
		Age:          DefaultAge,
		Sex:          DefaultSex,
		LastActivity: time.Now().UTC(),
	}
}

// Reset starts a new interview. Demographics and manual vitals belong to
// the user and are kept.
func (s *Session) Reset() {
	s.InterviewID = types.NewID()
	s.Evidence = nil
	s.PendingQuestion = nil
	s.QuestionCount = 0
}

// InProgress reports whether the user is part-way through an interview.
func (s *Session) InProgress() bool {
	return len(s.Evidence) > 0 && s.QuestionCount > 0
}

// Patient returns the demographics sent with every oracle call.
func (s *Session) Patient() oracle.Patient {
	return oracle.Patient{Age: s.Age, Sex: s.Sex}
}

// Clone returns a deep copy, so stores never share slices with callers.
func (s *Session) Clone() *Session {
	c := *s
	if s.Evidence != nil {
		c.Evidence = append([]evidence.Item(nil), s.Evidence...)
	}
	if s.PendingQuestion != nil {
		q := *s.PendingQuestion
		q.Items = append([]evidence.QuestionItem(nil), s.PendingQuestion.Items...)
		c.PendingQuestion = &q
	}
	c.ManualVitals = biometrics.ManualVitals{}.Merge(s.ManualVitals)
	return &c
}

// NormalizeSex maps user input to the oracle's sex values. It returns ""
// for anything else.
func NormalizeSex(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m":
		return "male"
	case "female", "f":
		return "female"
	}
	return ""
}
