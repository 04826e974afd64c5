package submission

import (
	"time"

	"github.com/mind-engage/testgrade/internal/exam"
)

// GradedItem is the outcome for one question, in question order.
type GradedItem struct {
	Index    int               `json:"index"`
	Type     exam.QuestionType `json:"type"`
	Marks    float64           `json:"marks"`
	Response interface{}       `json:"response"`
	Correct  *bool             `json:"correct"` // nil: not auto-gradable
	Awarded  float64           `json:"awarded"`
}

// Record is the persisted result of one grading call. It is never updated;
// a resubmission is a second record.
type Record struct {
	StudentID   string        `json:"studentId"`
	StudentName string        `json:"studentName"`
	TestID      string        `json:"testId"`
	Score       float64       `json:"score"`
	MaxAuto     float64       `json:"maxAuto"`
	StartedAt   time.Time     `json:"startedAt"`
	SubmittedAt time.Time     `json:"submittedAt"`
	Answers     []interface{} `json:"answers"`
	Results     []GradedItem  `json:"results"`
}

// Entry is a Record together with the id the log assigned to it.
type Entry struct {
	ID string `json:"id"`
	Record
}

func (r Record) clone() Record {
	out := r
	if r.Answers != nil {
		out.Answers = append([]interface{}(nil), r.Answers...)
	}
	if r.Results != nil {
		out.Results = append([]GradedItem(nil), r.Results...)
	}
	return out
}
