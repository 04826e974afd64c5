package grading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/testgrade/internal/exam"
	"github.com/mind-engage/testgrade/internal/submission"
)

// Student identifies who submitted.
type Student struct {
	ID   string
	Name string
}

type SubmitRequest struct {
	TestID  string
	Student Student
	Answers []interface{}
	// Zero values are replaced by the time of grading.
	StartedAt   time.Time
	SubmittedAt time.Time
}

// Outcome is what a caller gets back from Submit.
type Outcome struct {
	EntryID string                  `json:"entryId"`
	Score   float64                 `json:"score"`
	MaxAuto float64                 `json:"maxAuto"`
	Results []submission.GradedItem `json:"results"`
}

// Observer receives one call per Submit. status is one of ok, not_found,
// invalid or unavailable.
type Observer interface {
	ObserveSubmission(status string, score, maxAuto float64)
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption { return func(s *Service) { s.now = now } }
func WithObserver(o Observer) ServiceOption       { return func(s *Service) { s.observer = o } }
func WithEngine(e *Engine) ServiceOption          { return func(s *Service) { s.engine = e } }

// Service loads a definition, grades an answer set against it and appends
// the resulting record. It holds no per-call state.
type Service struct {
	tests    exam.Store
	log      submission.Log
	engine   *Engine
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
}

func NewService(tests exam.Store, log submission.Log, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		tests:  tests,
		log:    log,
		engine: NewEngine(),
		logger: logger,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit grades req and persists it. Nothing is appended unless the
// definition loaded and graded cleanly.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (Outcome, error) {
	log := s.logger.With(zap.String("test_id", req.TestID), zap.String("student_id", req.Student.ID))

	d, ok, err := s.tests.Load(ctx, req.TestID)
	if err != nil {
		s.observe(err, 0, 0)
		log.Error("load test failed", zap.Error(err))
		return Outcome{}, err
	}
	if !ok {
		err := fmt.Errorf("%w: %s", exam.ErrTestNotFound, req.TestID)
		s.observe(err, 0, 0)
		log.Info("submission for unknown test")
		return Outcome{}, err
	}

	res, err := s.engine.Grade(d, req.Answers)
	if err != nil {
		s.observe(err, 0, 0)
		log.Warn("malformed test definition", zap.Error(err))
		return Outcome{}, err
	}

	rec := s.record(req, res)
	id, err := s.log.Append(ctx, req.TestID, rec)
	if err != nil {
		s.observe(err, 0, 0)
		log.Error("append submission failed", zap.Error(err))
		return Outcome{}, err
	}

	s.observe(nil, res.Score, res.MaxAuto)
	log.Info("submission graded",
		zap.String("entry_id", id),
		zap.Float64("score", res.Score),
		zap.Float64("max_auto", res.MaxAuto))

	return Outcome{EntryID: id, Score: res.Score, MaxAuto: res.MaxAuto, Results: res.Results}, nil
}

func (s *Service) record(req SubmitRequest, res Result) submission.Record {
	now := s.now()
	started, submitted := req.StartedAt, req.SubmittedAt
	if started.IsZero() {
		started = now
	}
	if submitted.IsZero() {
		submitted = now
	}
	answers := req.Answers
	if answers == nil {
		answers = []interface{}{}
	}
	return submission.Record{
		StudentID:   req.Student.ID,
		StudentName: req.Student.Name,
		TestID:      req.TestID,
		Score:       res.Score,
		MaxAuto:     res.MaxAuto,
		StartedAt:   started,
		SubmittedAt: submitted,
		Answers:     answers,
		Results:     res.Results,
	}
}

func (s *Service) observe(err error, score, maxAuto float64) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveSubmission(Status(err), score, maxAuto)
}

// Status classifies a Submit error for metrics and transport mapping.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, exam.ErrTestNotFound):
		return "not_found"
	case errors.Is(err, exam.ErrInvalidDefinition):
		return "invalid"
	default:
		return "unavailable"
	}
}
