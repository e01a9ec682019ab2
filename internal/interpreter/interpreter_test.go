package interpreter

import (
	"context"
	"testing"

	"github.com/healthsync/symptom-triage/internal/evidence"
	"github.com/healthsync/symptom-triage/internal/llm"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubParser struct {
	duration     llm.Duration
	durationOK   bool
	freeText     llm.FreeTextAnswer
	freeTextOK   bool
	durationHits int
	freeTextHits int
}

func (s *stubParser) ParseDuration(context.Context, string, string) (llm.Duration, bool) {
	s.durationHits++
	return s.duration, s.durationOK
}

func (s *stubParser) ParseFreeText(context.Context, string, string) (llm.FreeTextAnswer, bool) {
	s.freeTextHits++
	return s.freeText, s.freeTextOK
}

func question(text string, items ...evidence.QuestionItem) *evidence.PendingQuestion {
	return &evidence.PendingQuestion{Text: text, Type: evidence.QuestionGroupSingle, Items: items}
}

var (
	headache = evidence.QuestionItem{SymptomID: "s_21", DisplayName: "Headache"}
	cough    = evidence.QuestionItem{SymptomID: "s_102", DisplayName: "Cough"}
	chest    = evidence.QuestionItem{SymptomID: "s_50", DisplayName: "Chest pain"}
)

func TestInterpretChoice(t *testing.T) {
	q := question("Which of these do you have?", headache, cough, chest)
	i := New(&stubParser{}, zap.NewNop())

	tests := []struct {
		answer string
		want   []evidence.Item
	}{
		{"yes", []evidence.Item{evidence.New("s_21", evidence.Present)}},
		{"No", []evidence.Item{evidence.New("s_21", evidence.Absent)}},
		{"Don't know", []evidence.Item{evidence.New("s_21", evidence.Unknown)}},
		{"don’t know", []evidence.Item{evidence.New("s_21", evidence.Unknown)}},
		{"Cough", []evidence.Item{evidence.New("s_102", evidence.Present)}},
		{"coughh", []evidence.Item{evidence.New("s_102", evidence.Present)}},
		{"pain chest", []evidence.Item{evidence.New("s_50", evidence.Present)}},
		{"banana", nil},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			assert.Equal(t, tt.want, i.InterpretChoice(q, tt.answer))
		})
	}
}

func TestInterpretChoiceWithoutItems(t *testing.T) {
	i := New(&stubParser{}, zap.NewNop())
	assert.Nil(t, i.InterpretChoice(question("?"), "yes"))
}

func TestInterpretFreeTextDuration(t *testing.T) {
	q := question("How long have you had a headache?", headache)

	p := &stubParser{}
	i := New(p, zap.NewNop())
	assert.Equal(t, []evidence.Item{evidence.New("s_21", evidence.Present)}, i.InterpretFreeText(context.Background(), q, "About 3 days now"))
	assert.Equal(t, []evidence.Item{evidence.New("s_21", evidence.Absent)}, i.InterpretFreeText(context.Background(), q, "0 hours"))
	assert.Zero(t, p.durationHits, "regex match must not call the model")

	p = &stubParser{duration: llm.Duration{Value: 2, Unit: "week"}, durationOK: true}
	i = New(p, zap.NewNop())
	assert.Equal(t, []evidence.Item{evidence.New("s_21", evidence.Present)}, i.InterpretFreeText(context.Background(), q, "a couple of weeks"))
	assert.Equal(t, 1, p.durationHits)
	assert.Zero(t, p.freeTextHits)

	p = &stubParser{}
	i = New(p, zap.NewNop())
	assert.Empty(t, i.InterpretFreeText(context.Background(), q, "a while"))
}

func TestInterpretFreeTextDurationFromItemName(t *testing.T) {
	q := question("Tell us more", evidence.QuestionItem{SymptomID: "s_9", DisplayName: "Duration of fever"})
	i := New(&stubParser{}, zap.NewNop())
	assert.Equal(t, []evidence.Item{evidence.New("s_9", evidence.Present)}, i.InterpretFreeText(context.Background(), q, "5 days"))
}

func TestInterpretFreeTextNegation(t *testing.T) {
	q := question("Do you have any of these?", headache, cough)
	p := &stubParser{}
	i := New(p, zap.NewNop())

	assert.Equal(t, []evidence.Item{evidence.New("s_102", evidence.Absent)}, i.InterpretFreeText(context.Background(), q, "I don't have a cough"))
	assert.Equal(t, []evidence.Item{evidence.New("s_21", evidence.Absent)}, i.InterpretFreeText(context.Background(), q, "no headache"))
	assert.Zero(t, p.freeTextHits)
}

func TestNegationNeedsWordBoundary(t *testing.T) {
	assert.Nil(t, negationPattern.FindStringSubmatch("my nose is sore"))
	assert.Nil(t, negationPattern.FindStringSubmatch("nothing to report"))

	m := negationPattern.FindStringSubmatch("i haven't noticed fever")
	if assert.NotNil(t, m) {
		assert.Equal(t, "noticed fever", m[2])
	}
}

func TestInterpretFreeTextModel(t *testing.T) {
	q := question("Do you have any of these?", headache, cough)

	p := &stubParser{freeText: llm.FreeTextAnswer{Item: "COUGH", Choice: "yes"}, freeTextOK: true}
	i := New(p, zap.NewNop())
	assert.Equal(t, []evidence.Item{evidence.New("s_102", evidence.Present)}, i.InterpretFreeText(context.Background(), q, "I keep hacking all night"))

	for _, ans := range []llm.FreeTextAnswer{{Item: "Fever", Choice: "yes"}, {Item: "Cough", Choice: "perhaps"}} {
		p := &stubParser{freeText: ans, freeTextOK: true}
		i := New(p, zap.NewNop())
		assert.Empty(t, i.InterpretFreeText(context.Background(), q, "hmm"))
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 100, Similarity("Headache", "headache"))
	assert.Equal(t, 100, Similarity("chest pain", "pain chest"))
	assert.GreaterOrEqual(t, Similarity("headach", "headache"), MatchThreshold)
	assert.Less(t, Similarity("fever", "headache"), MatchThreshold)
	assert.Equal(t, 100, Similarity("", ""))
}

func TestBestMatch(t *testing.T) {
	idx, ok := BestMatch("cogh", []string{"headache", "cough"}, MatchThreshold)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = BestMatch("anything", nil, MatchThreshold)
	assert.False(t, ok)
}
