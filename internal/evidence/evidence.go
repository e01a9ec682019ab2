// Package evidence holds the structured vocabulary shared by every stage of
// the interview: evidence items sent to the diagnostic oracle and the
// follow-up question the oracle is waiting on.
package evidence

import "strings"

// Presence is the observed state of a symptom.
type Presence string

const (
	Present Presence = "present"
	Absent  Presence = "absent"
	Unknown Presence = "unknown"
)

// Valid reports whether p is one of the oracle's choice identifiers.
func (p Presence) Valid() bool {
	switch p {
	case Present, Absent, Unknown:
		return true
	}
	return false
}

// PresenceFromChoice maps a literal yes / no / don't know answer to a
// Presence. The second return value is false for any other text.
func PresenceFromChoice(answer string) (Presence, bool) {
	a := strings.ToLower(strings.TrimSpace(answer))
	a = strings.ReplaceAll(a, "’", "'")
	switch a {
	case "yes":
		return Present, true
	case "no":
		return Absent, true
	case "don't know", "dont know", "do not know":
		return Unknown, true
	}
	return "", false
}

// Item is a single piece of evidence. The JSON shape matches the oracle's
// evidence entries. Items are values and never mutated once built.
type Item struct {
	SymptomID string   `json:"id"`
	Presence  Presence `json:"choice_id"`
}

// New builds an evidence item.
func New(symptomID string, presence Presence) Item {
	return Item{SymptomID: symptomID, Presence: presence}
}

// QuestionType is the oracle's classification of a follow-up question.
type QuestionType string

const (
	QuestionSingle        QuestionType = "single"
	QuestionGroupSingle   QuestionType = "group_single"
	QuestionGroupMultiple QuestionType = "group_multiple"
	QuestionOther         QuestionType = "other"
)

// ParseQuestionType maps the oracle's type string, folding anything
// unrecognised into QuestionOther.
func ParseQuestionType(s string) QuestionType {
	switch QuestionType(s) {
	case QuestionSingle, QuestionGroupSingle, QuestionGroupMultiple:
		return QuestionType(s)
	}
	return QuestionOther
}

// QuestionItem is one selectable symptom of a follow-up question.
type QuestionItem struct {
	SymptomID   string `json:"id"`
	DisplayName string `json:"name"`
}

// PendingQuestion is the follow-up question a session is waiting on.
type PendingQuestion struct {
	Items    []QuestionItem `json:"items"`
	Type     QuestionType   `json:"type"`
	Text     string         `json:"text"`
	IsBinary bool           `json:"is_binary"`
}

// First returns the leading item, which literal yes/no answers and
// duration answers refer to.
func (q *PendingQuestion) First() (QuestionItem, bool) {
	if q == nil || len(q.Items) == 0 {
		return QuestionItem{}, false
	}
	return q.Items[0], true
}

// Names returns the display names in presentation order.
func (q *PendingQuestion) Names() []string {
	if q == nil {
		return nil
	}
	names := make([]string, 0, len(q.Items))
	for _, it := range q.Items {
		names = append(names, it.DisplayName)
	}
	return names
}
