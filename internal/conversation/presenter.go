package conversation

import (
	"encoding/json"

	"github.com/healthsync/symptom-triage/internal/evidence"
)

// UI hints for rendering a follow-up question.
const (
	HintDropdown   = "dropdown"
	HintCheckboxes = "checkboxes"
	HintText       = "text"
)

// FinalFollowUp is sent in place of a question when the interview ends.
const FinalFollowUp = "This is my final assessment based on your symptoms."

var binaryOptions = []string{"Yes", "No", "Don't know"}

// QuestionPrompt is a follow-up question shaped for the client.
type QuestionPrompt struct {
	Text     string   `json:"text"`
	Type     string   `json:"type"`
	Options  []string `json:"options"`
	UIHint   string   `json:"ui_hint"`
	IsBinary bool     `json:"is_binary"`
}

// Present shapes q for the client. Binary questions always get the
// yes/no/don't know dropdown whatever the oracle's type.
func Present(q *evidence.PendingQuestion) *QuestionPrompt {
	p := &QuestionPrompt{
		Text:     q.Text,
		Type:     string(q.Type),
		Options:  []string{},
		IsBinary: q.IsBinary,
	}

	switch {
	case q.IsBinary:
		p.Options = append(p.Options, binaryOptions...)
		p.UIHint = HintDropdown
	case q.Type == evidence.QuestionSingle || q.Type == evidence.QuestionGroupSingle:
		p.Options = q.Names()
		p.UIHint = HintDropdown
	case q.Type == evidence.QuestionGroupMultiple:
		p.Options = q.Names()
		p.UIHint = HintCheckboxes
	default:
		p.UIHint = HintText
	}
	return p
}

// FollowUp is either a question or a plain string. It encodes as the
// question object when one is set and as the string otherwise.
type FollowUp struct {
	Text     string
	Question *QuestionPrompt
}

func (f FollowUp) MarshalJSON() ([]byte, error) {
	if f.Question != nil {
		return json.Marshal(f.Question)
	}
	return json.Marshal(f.Text)
}

func (f *FollowUp) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '{' {
		f.Text = ""
		f.Question = &QuestionPrompt{}
		return json.Unmarshal(data, f.Question)
	}
	f.Question = nil
	return json.Unmarshal(data, &f.Text)
}
