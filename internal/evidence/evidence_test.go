package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceFromChoice(t *testing.T) {
	tests := []struct {
		in   string
		want Presence
		ok   bool
	}{
		{"yes", Present, true},
		{"Yes", Present, true},
		{" no ", Absent, true},
		{"Don't know", Unknown, true},
		{"don’t know", Unknown, true},
		{"maybe", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := PresenceFromChoice(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQuestionType(t *testing.T) {
	assert.Equal(t, QuestionSingle, ParseQuestionType("single"))
	assert.Equal(t, QuestionGroupSingle, ParseQuestionType("group_single"))
	assert.Equal(t, QuestionGroupMultiple, ParseQuestionType("group_multiple"))
	assert.Equal(t, QuestionOther, ParseQuestionType("duration"))
	assert.Equal(t, QuestionOther, ParseQuestionType(""))
}

func TestPendingQuestionFirst(t *testing.T) {
	var nilQ *PendingQuestion
	_, ok := nilQ.First()
	assert.False(t, ok)

	q := &PendingQuestion{Items: []QuestionItem{{SymptomID: "s_21", DisplayName: "Headache"}, {SymptomID: "s_13", DisplayName: "Abdominal pain"}}}
	first, ok := q.First()
	assert.True(t, ok)
	assert.Equal(t, "s_21", first.SymptomID)
	assert.Equal(t, []string{"Headache", "Abdominal pain"}, q.Names())
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "fever and cough", NormalizeText("  fever and Cough "))
	assert.Equal(t, "sore throat", NormalizeText("soreThroat"))
	assert.Equal(t, "", NormalizeText("   "))
}
