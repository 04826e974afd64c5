package exam

import (
	"encoding/json"
	"math"
)

// QuestionType selects the grading strategy for a question.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "mcq"
	TypeFillInBlank    QuestionType = "fill"
	TypeFreeText       QuestionType = "long"
)

// Marks is a question weight. Anything that is not a non-negative number
// decodes to zero instead of failing the whole definition.
type Marks float64

func (m *Marks) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		*m = 0
		return nil
	}
	f, ok := v.(float64)
	if !ok || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		*m = 0
		return nil
	}
	*m = Marks(f)
	return nil
}

type Question struct {
	Index     int          `json:"index"`
	Type      QuestionType `json:"type"`
	Text      string       `json:"text,omitempty"`
	Options   []string     `json:"options,omitempty"`
	Marks     Marks        `json:"marks"`
	AnswerKey interface{}  `json:"answerKey,omitempty"` // absent for free-text
}

// UnmarshalJSON also accepts the key under "answer", the field name used
// by older definitions. "answerKey" wins when both are present.
func (q *Question) UnmarshalJSON(b []byte) error {
	type plain Question
	var aux struct {
		plain
		Answer interface{} `json:"answer"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*q = Question(aux.plain)
	if q.AnswerKey == nil {
		q.AnswerKey = aux.Answer
	}
	return nil
}

// Weight is the effective number of marks the question is worth.
func (q Question) Weight() float64 {
	f := float64(q.Marks)
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Definition is a stored test. Questions order is the answer alignment and
// is never reordered by a store.
type Definition struct {
	TestID    string     `json:"testId" validate:"required"`
	Title     string     `json:"title" validate:"required"`
	Duration  int        `json:"duration" validate:"required"` // minutes
	Questions []Question `json:"questions" validate:"required"`
}

// Clone returns a deep enough copy that callers cannot mutate stored state
// through shared slices.
func (d Definition) Clone() Definition {
	out := d
	if d.Questions != nil {
		out.Questions = make([]Question, len(d.Questions))
		for i, q := range d.Questions {
			if q.Options != nil {
				q.Options = append([]string(nil), q.Options...)
			}
			out.Questions[i] = q
		}
	}
	return out
}

// Normalized stamps each question with its position.
func (d Definition) Normalized() Definition {
	out := d.Clone()
	for i := range out.Questions {
		out.Questions[i].Index = i
	}
	return out
}
