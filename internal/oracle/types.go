package oracle

import "github.com/healthsync/symptom-triage/internal/evidence"

// Patient carries the demographic parameters every oracle call requires.
type Patient struct {
	Age int
	Sex string
}

type ageValue struct {
	Value int `json:"value"`
}

type textRequest struct {
	Text  string   `json:"text"`
	Age   ageValue `json:"age"`
	Sex   string   `json:"sex"`
	Limit int      `json:"limit,omitempty"`
}

type evidenceRequest struct {
	Sex         string          `json:"sex"`
	Age         ageValue        `json:"age"`
	Evidence    []evidence.Item `json:"evidence"`
	InterviewID string          `json:"interview_id,omitempty"`
}

type parseResponse struct {
	Mentions []evidence.Item `json:"mentions"`
}

// Suggestion is one hit from the suggestion endpoint.
type Suggestion struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CommonName string `json:"common_name,omitempty"`
}

// Condition is one entry of a differential.
type Condition struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	CommonName  string  `json:"common_name,omitempty"`
	Probability float64 `json:"probability"`
}

// QuestionItem is a selectable item of an oracle question.
type QuestionItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Question is the follow-up the oracle wants answered next.
type Question struct {
	Type  string         `json:"type"`
	Text  string         `json:"text"`
	Items []QuestionItem `json:"items"`
}

// Pending converts the oracle question into the session's pending question.
// IsBinary is decided later by the gateway.
func (q *Question) Pending() *evidence.PendingQuestion {
	if q == nil {
		return nil
	}
	items := make([]evidence.QuestionItem, 0, len(q.Items))
	for _, it := range q.Items {
		items = append(items, evidence.QuestionItem{SymptomID: it.ID, DisplayName: it.Name})
	}
	return &evidence.PendingQuestion{
		Items: items,
		Type:  evidence.ParseQuestionType(q.Type),
		Text:  q.Text,
	}
}

// DiagnosisResponse is the body of a successful /diagnosis call.
type DiagnosisResponse struct {
	Conditions []Condition `json:"conditions"`
	Question   *Question   `json:"question"`
	ShouldStop bool        `json:"should_stop"`
}

// TriageResponse is the body of a successful /triage call.
type TriageResponse struct {
	TriageLevel string `json:"triage_level"`
}

// Symptom is an entry of the oracle's symptom vocabulary.
type Symptom struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CommonName string `json:"common_name,omitempty"`
}
