package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"satbank/internal/util"
)

// Content is the question prompt, with an optional image path.
type Content struct {
	Text  string  `json:"text"`
	Image *string `json:"image"`
}

// Option is a single answer choice, keyed by a letter in Question.Options.
type Option struct {
	Text  string  `json:"text"`
	Image *string `json:"image"`
}

// Explanation is the rationale shown only on answer keys.
type Explanation struct {
	Text string `json:"text"`
}

// Question is the normalized record persisted by both store backends.
// The json tags define the canonical on-disk shape of the flat-file encoding;
// CreatedAt/UpdatedAt are tracked by the relational backend only.
type Question struct {
	Content     Content           `json:"question"`
	Options     map[string]Option `json:"options"`
	Answer      string            `json:"answer"`
	Difficulty  string            `json:"difficulty"`
	Tags        []string          `json:"tags"`
	Explanation Explanation       `json:"explanation"`
	UID         string            `json:"uid"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// NewQuestion creates a new Question instance with a freshly assigned UID.
func NewQuestion(content Content, options map[string]Option, answer, difficulty string, tags []string, explanation Explanation) *Question {
	now := time.Now()
	return &Question{
		UID:         util.NewUID(),
		Content:     content,
		Options:     options,
		Answer:      answer,
		Difficulty:  difficulty,
		Tags:        tags,
		Explanation: explanation,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// FromExternal constructs a Question from its on-disk JSON shape.
// Missing explanation/tags/difficulty default to empty; a missing UID is
// assigned on the spot so callers can feed hand-written files through.
func FromExternal(data []byte) (*Question, error) {
	var q Question
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&q); err != nil {
		return nil, NewMalformedRecordError("record does not match the question shape", err)
	}
	if q.Options == nil {
		// A question without an options object is not usable at all,
		// unlike missing tags or explanation.
		return nil, NewMalformedRecordError("record has no options mapping", nil)
	}
	if q.Tags == nil {
		q.Tags = []string{}
	}
	if q.UID == "" {
		q.UID = util.NewUID()
	}
	return &q, nil
}

// FromExternalMap is FromExternal for callers holding an already-decoded map.
func FromExternalMap(m map[string]any) (*Question, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, NewMalformedRecordError("record is not JSON-encodable", err)
	}
	return FromExternal(data)
}

// ToExternal produces the canonical on-disk JSON encoding of the question.
// It is the exact inverse of FromExternal for any record FromExternal accepts.
func (q *Question) ToExternal() ([]byte, error) {
	qc := *q
	if qc.Tags == nil {
		qc.Tags = []string{}
	}
	data, err := json.Marshal(&qc)
	if err != nil {
		return nil, NewInternalError("failed to encode question", err)
	}
	return data, nil
}

// ToExternalMap produces the on-disk shape as a plain map, the payload the
// worksheet exporter consumes.
func (q *Question) ToExternalMap() (map[string]any, error) {
	data, err := q.ToExternal()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, NewInternalError("failed to decode question to map", err)
	}
	return m, nil
}

// Equal reports whether two questions have structurally equal external forms.
// Used to detect whether an edit is actually a change before writing.
func (q *Question) Equal(other *Question) bool {
	if other == nil {
		return false
	}
	a, err := q.ToExternal()
	if err != nil {
		return false
	}
	b, err := other.ToExternal()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Validate checks the record shape before any disk I/O is attempted.
// The answer must reference an existing option key; programmatic callers
// bypass the fixed A-D picker the UI offers, so this is enforced here.
func (q *Question) Validate() error {
	if len(q.Options) == 0 {
		return NewValidationFailedError("question has no options")
	}
	for key := range q.Options {
		if key == "" {
			return NewValidationFailedError("option key must not be empty")
		}
	}
	if q.Answer == "" {
		return NewValidationFailedError("answer is required")
	}
	if _, ok := q.Options[q.Answer]; !ok {
		return NewValidationFailedError(fmt.Sprintf("answer %q does not reference an existing option key", q.Answer))
	}
	return nil
}

// OptionKeys returns the option keys in sorted order, for stable display.
func (q *Question) OptionKeys() []string {
	keys := make([]string, 0, len(q.Options))
	for key := range q.Options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// HasTag reports whether the question carries the given tag.
func (q *Question) HasTag(tag string) bool {
	for _, t := range q.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
