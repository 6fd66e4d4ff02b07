package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func sampleQuestion() *Question {
	return &Question{
		UID: "11111111-2222-3333-4444-555555555555",
		Content: Content{
			Text:  "What is 2 + 2?",
			Image: nil,
		},
		Options: map[string]Option{
			"A": {Text: "3"},
			"B": {Text: "4", Image: strptr("figures/four.png")},
			"C": {Text: "5"},
			"D": {Text: "22"},
		},
		Answer:      "B",
		Difficulty:  "Easy",
		Tags:        []string{"arithmetic", "algebra"},
		Explanation: Explanation{Text: "Two plus two equals four."},
	}
}

func TestExternalRoundTrip(t *testing.T) {
	q := sampleQuestion()

	data, err := q.ToExternal()
	require.NoError(t, err)

	back, err := FromExternal(data)
	require.NoError(t, err)

	assert.True(t, q.Equal(back), "round-tripped question should be structurally equal")
	assert.Equal(t, q.UID, back.UID)
	assert.Equal(t, q.Options, back.Options)
	assert.Equal(t, q.Tags, back.Tags)
}

func TestExternalShape(t *testing.T) {
	q := sampleQuestion()
	data, err := q.ToExternal()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	for _, key := range []string{"question", "options", "answer", "difficulty", "tags", "explanation", "uid"} {
		assert.Contains(t, m, key)
	}
	content, ok := m["question"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "What is 2 + 2?", content["text"])
	assert.Nil(t, content["image"], "absent image must encode as null")
}

func TestFromExternalDefaults(t *testing.T) {
	raw := []byte(`{
		"question": {"text": "Pick one", "image": null},
		"options": {"A": {"text": "yes", "image": null}, "B": {"text": "no", "image": null}},
		"answer": "A"
	}`)
	q, err := FromExternal(raw)
	require.NoError(t, err)

	assert.Equal(t, "", q.Difficulty)
	assert.Equal(t, []string{}, q.Tags)
	assert.Equal(t, "", q.Explanation.Text)
	assert.NotEmpty(t, q.UID, "a missing uid is assigned at construction")
}

func TestFromExternalAssignsDistinctUIDs(t *testing.T) {
	raw := []byte(`{"question": {"text": "q", "image": null}, "options": {"A": {"text": "a", "image": null}}, "answer": "A"}`)
	a, err := FromExternal(raw)
	require.NoError(t, err)
	b, err := FromExternal(raw)
	require.NoError(t, err)
	assert.NotEqual(t, a.UID, b.UID)
}

func TestFromExternalMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"options not a mapping", `{"question": {"text": "q"}, "options": ["A", "B"], "answer": "A"}`},
		{"option entry not an object", `{"question": {"text": "q"}, "options": {"A": "just text"}, "answer": "A"}`},
		{"question not an object", `{"question": 7, "options": {"A": {"text": "a"}}, "answer": "A"}`},
		{"no options at all", `{"question": {"text": "q"}, "answer": "A"}`},
		{"not an object", `42`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromExternal([]byte(tc.raw))
			require.Error(t, err)
			assert.True(t, IsCode(err, ErrMalformedRecord), "expected MALFORMED_RECORD, got %v", err)
		})
	}
}

func TestValidate(t *testing.T) {
	q := sampleQuestion()
	assert.NoError(t, q.Validate())

	missingAnswer := sampleQuestion()
	missingAnswer.Answer = "E"
	err := missingAnswer.Validate()
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrValidationFailed))

	noOptions := sampleQuestion()
	noOptions.Options = nil
	assert.True(t, IsCode(noOptions.Validate(), ErrValidationFailed))

	emptyAnswer := sampleQuestion()
	emptyAnswer.Answer = ""
	assert.True(t, IsCode(emptyAnswer.Validate(), ErrValidationFailed))
}

func TestEqualDetectsChange(t *testing.T) {
	a := sampleQuestion()
	b := sampleQuestion()
	assert.True(t, a.Equal(b))

	b.Options["B"] = Option{Text: "four"}
	assert.False(t, a.Equal(b))

	// Key order is not semantically meaningful; the bound content is.
	c := sampleQuestion()
	assert.True(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestNewQuestionAssignsUID(t *testing.T) {
	q := NewQuestion(
		Content{Text: "q"},
		map[string]Option{"A": {Text: "a"}, "B": {Text: "b"}},
		"A", "Medium", []string{"geometry"}, Explanation{Text: "because"},
	)
	assert.NotEmpty(t, q.UID)
	assert.False(t, q.CreatedAt.IsZero())
}

func TestOptionKeysSorted(t *testing.T) {
	q := sampleQuestion()
	assert.Equal(t, []string{"A", "B", "C", "D"}, q.OptionKeys())
}

func TestStoreErrorMatching(t *testing.T) {
	err := NewParseError("questions.json", assert.AnError)
	assert.True(t, IsCode(err, ErrParseError))
	assert.False(t, IsCode(err, ErrNotFound))
	assert.ErrorIs(t, err, assert.AnError)
}
