package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubClient struct {
	reply string
	err   error
	last  Request
}

func (s *stubClient) Complete(_ context.Context, req Request) (string, error) {
	s.last = req
	return s.reply, s.err
}

func newAssistant(reply string, err error) (*Assistant, *stubClient) {
	c := &stubClient{reply: reply, err: err}
	return NewAssistant(c, 0, zap.NewNop()), c
}

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  Intent
	}{
		{"general", "general", nil, IntentGeneral},
		{"general with punctuation", "General.", nil, IntentGeneral},
		{"medical", "medical", nil, IntentMedical},
		{"noise defaults to medical", "hmm", nil, IntentMedical},
		{"error defaults to medical", "", errors.New("boom"), IntentMedical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newAssistant(tt.reply, tt.err)
			assert.Equal(t, tt.want, a.ClassifyIntent(context.Background(), "what's the weather"))
		})
	}
}

func TestInterpretVagueSymptoms(t *testing.T) {
	a, c := newAssistant("```json\n{\"symptoms\": [\"fever\", \" \", \"fatigue\"]}\n```", nil)
	got := a.InterpretVagueSymptoms(context.Background(), "i feel off")
	assert.Equal(t, []string{"fever", "fatigue"}, got)
	assert.Contains(t, c.last.Prompt, "i feel off")

	a, _ = newAssistant("not json", nil)
	assert.Nil(t, a.InterpretVagueSymptoms(context.Background(), "x"))

	a, _ = newAssistant("", errors.New("timeout"))
	assert.Nil(t, a.InterpretVagueSymptoms(context.Background(), "x"))
}

func TestParseDuration(t *testing.T) {
	a, _ := newAssistant(`{"value": 2, "unit": "week"}`, nil)
	d, ok := a.ParseDuration(context.Background(), "How long?", "a couple of weeks")
	assert.True(t, ok)
	assert.Equal(t, Duration{Value: 2, Unit: "week"}, d)

	for _, reply := range []string{"null", `{"value": 3}`, "", "I am not sure"} {
		a, _ := newAssistant(reply, nil)
		_, ok := a.ParseDuration(context.Background(), "How long?", "dunno")
		assert.False(t, ok, reply)
	}
}

func TestParseFreeText(t *testing.T) {
	a, _ := newAssistant(`Sure: {"item": "Cough", "choice": "no"}`, nil)
	ans, ok := a.ParseFreeText(context.Background(), "Do you cough?", "nope no cough")
	assert.True(t, ok)
	assert.Equal(t, FreeTextAnswer{Item: "Cough", Choice: "no"}, ans)

	a, _ = newAssistant(`{"item": "Cough"}`, nil)
	_, ok = a.ParseFreeText(context.Background(), "q", "t")
	assert.False(t, ok)
}

func TestIsYesNoQuestion(t *testing.T) {
	a, _ := newAssistant("Yes.", nil)
	assert.True(t, a.IsYesNoQuestion(context.Background(), "Do you have a headache?"))

	a, _ = newAssistant("no", nil)
	assert.False(t, a.IsYesNoQuestion(context.Background(), "Where does it hurt?"))

	a, _ = newAssistant("", errors.New("down"))
	assert.False(t, a.IsYesNoQuestion(context.Background(), "Do you have a headache?"))
}

func TestAnswerGeneralPropagatesError(t *testing.T) {
	a, _ := newAssistant("", errors.New("down"))
	_, err := a.AnswerGeneral(context.Background(), "hi")
	assert.Error(t, err)

	a, _ = newAssistant("Hello!", nil)
	got, err := a.AnswerGeneral(context.Background(), "hi")
	assert.NoError(t, err)
	assert.Equal(t, "Hello!", got)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`  {"a":1} `))
}
