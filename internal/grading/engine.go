package grading

import (
	"github.com/mind-engage/testgrade/internal/exam"
	"github.com/mind-engage/testgrade/internal/submission"
)

// Strategy decides whether a response matches a question's key. A nil
// verdict means the question type is not auto-gradable; such questions earn
// nothing and stay out of the auto-gradable ceiling.
type Strategy interface {
	Grade(response, key interface{}) *bool
}

// StrategyFunc adapts a plain function to Strategy.
type StrategyFunc func(response, key interface{}) *bool

func (f StrategyFunc) Grade(response, key interface{}) *bool { return f(response, key) }

// Result is the pure outcome of grading one answer set.
type Result struct {
	Score   float64
	MaxAuto float64
	Results []submission.GradedItem
}

type Option func(*Engine)

// WithStrategy installs or replaces the strategy for a question type.
func WithStrategy(t exam.QuestionType, s Strategy) Option {
	return func(e *Engine) { e.strategies[t] = s }
}

// Engine routes each question to the Strategy registered for its type.
// Types without a strategy are treated like free-text.
type Engine struct {
	strategies map[exam.QuestionType]Strategy
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		strategies: map[exam.QuestionType]Strategy{
			exam.TypeMultipleChoice: StrategyFunc(exactMatch),
			exam.TypeFillInBlank:    StrategyFunc(normalizedMatch),
			exam.TypeFreeText:       StrategyFunc(manual),
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Grade scores answers against d. It iterates every question of d; answers
// past the end of the slice count as unanswered. The only error is a
// definition without a question sequence.
func (e *Engine) Grade(d exam.Definition, answers []interface{}) (Result, error) {
	if d.Questions == nil {
		return Result{}, &exam.InvalidDefinitionError{TestID: d.TestID, Field: "questions", Reason: "must be a sequence"}
	}

	res := Result{Results: make([]submission.GradedItem, 0, len(d.Questions))}
	for i, q := range d.Questions {
		var ans interface{}
		if i < len(answers) {
			ans = answers[i]
		}
		item := submission.GradedItem{Index: i, Type: q.Type, Marks: q.Weight(), Response: ans}

		s, ok := e.strategies[q.Type]
		if !ok {
			s = StrategyFunc(manual)
		}
		if verdict := s.Grade(ans, q.AnswerKey); verdict != nil {
			res.MaxAuto += item.Marks
			item.Correct = verdict
			if *verdict {
				item.Awarded = item.Marks
			}
		}
		res.Score += item.Awarded
		res.Results = append(res.Results, item)
	}
	return res, nil
}

// --- Strategies ---

// exactMatch compares without any normalization: " A" does not match "A".
// An unanswered question compares as the empty string.
func exactMatch(response, key interface{}) *bool {
	if response == nil {
		response = ""
	}
	return verdict(strictEqual(response, key))
}

// normalizedMatch compares string forms after dropping whitespace and case.
func normalizedMatch(response, key interface{}) *bool {
	return verdict(normalize(stringify(response)) == normalize(stringify(key)))
}

func manual(_, _ interface{}) *bool { return nil }

func verdict(b bool) *bool { return &b }
