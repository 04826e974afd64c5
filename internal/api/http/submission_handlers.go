package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/testgrade/internal/grading"
	"github.com/mind-engage/testgrade/internal/identity"
	"github.com/mind-engage/testgrade/internal/report"
	"github.com/mind-engage/testgrade/internal/submission"
)

type submitReq struct {
	StudentID   string        `json:"studentId"`
	StudentName string        `json:"studentName"`
	Answers     []interface{} `json:"answers"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	SubmittedAt *time.Time    `json:"submittedAt,omitempty"`
}

// POST /tests/{testID}/submissions
// A student token decides who is submitting; without one the body must
// name the student.
func SubmitHandler(svc *grading.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		var req submitReq
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		student := grading.Student{ID: req.StudentID, Name: req.StudentName}
		if c, ok := identity.FromContext(r.Context()); ok && c.Role == identity.RoleStudent {
			student = grading.Student{ID: c.Sub, Name: c.Name}
		}
		if student.ID == "" {
			http.Error(w, "studentId required", http.StatusBadRequest)
			return
		}

		sr := grading.SubmitRequest{
			TestID:  chi.URLParam(r, "testID"),
			Student: student,
			Answers: req.Answers,
		}
		if req.StartedAt != nil {
			sr.StartedAt = *req.StartedAt
		}
		if req.SubmittedAt != nil {
			sr.SubmittedAt = *req.SubmittedAt
		}

		out, err := svc.Submit(r.Context(), sr)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

// GET /tests/{testID}/submissions
func ListSubmissionsHandler(log submission.Log) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := log.ListAll(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// POST /tests/{testID}/report
func ExportReportHandler(exp *report.Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := exp.Export(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rep)
	}
}
