// Package report exports the submissions of a test as an XLSX gradebook.
package report

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/mind-engage/testgrade/internal/exam"
	"github.com/mind-engage/testgrade/internal/storage"
	"github.com/mind-engage/testgrade/internal/submission"
)

const (
	SheetName   = "Submissions"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Report describes an uploaded export.
type Report struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Rows int    `json:"rows"`
}

type Exporter struct {
	tests  exam.Store
	log    submission.Log
	blobs  storage.BlobStore
	logger *zap.Logger
	now    func() time.Time
}

func NewExporter(tests exam.Store, log submission.Log, blobs storage.BlobStore, logger *zap.Logger) *Exporter {
	return &Exporter{tests: tests, log: log, blobs: blobs, logger: logger, now: time.Now}
}

// Export builds the gradebook for testID, uploads it and returns where it
// can be downloaded.
func (e *Exporter) Export(ctx context.Context, testID string) (Report, error) {
	d, ok, err := e.tests.Load(ctx, testID)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		return Report{}, fmt.Errorf("%w: %s", exam.ErrTestNotFound, testID)
	}
	entries, err := e.log.ListAll(ctx, testID)
	if err != nil {
		return Report{}, err
	}
	buf, err := Build(d, entries)
	if err != nil {
		return Report{}, err
	}

	key := fmt.Sprintf("reports/%s/%s.xlsx", testID, e.now().UTC().Format("20060102T150405Z"))
	key, err = e.blobs.Put(ctx, key, buf, int64(buf.Len()), ContentType)
	if err != nil {
		return Report{}, fmt.Errorf("upload report: %w", err)
	}
	url, err := e.blobs.URL(ctx, key)
	if err != nil {
		return Report{}, fmt.Errorf("report url: %w", err)
	}
	e.logger.Info("report exported", zap.String("test_id", testID), zap.String("key", key), zap.Int("rows", len(entries)))
	return Report{Key: key, URL: url, Rows: len(entries)}, nil
}

// Build renders one row per entry, oldest submission first, with the
// awarded marks of every question in its own column. Ungraded items are
// left blank.
func Build(d exam.Definition, entries []submission.Entry) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}

	header := []interface{}{"Entry ID", "Student ID", "Student Name", "Score", "Max Auto", "Started At", "Submitted At"}
	for i, q := range d.Questions {
		header = append(header, fmt.Sprintf("Q%d (%s, %g)", i+1, q.Type, q.Weight()))
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, err
	}

	sorted := append([]submission.Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].SubmittedAt.Equal(sorted[j].SubmittedAt) {
			return sorted[i].SubmittedAt.Before(sorted[j].SubmittedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	for r, e := range sorted {
		row := []interface{}{
			e.ID, e.StudentID, e.StudentName, e.Score, e.MaxAuto,
			e.StartedAt.UTC().Format(time.RFC3339), e.SubmittedAt.UTC().Format(time.RFC3339),
		}
		for i := range d.Questions {
			if i < len(e.Results) && e.Results[i].Correct != nil {
				row = append(row, e.Results[i].Awarded)
			} else {
				row = append(row, "")
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, err
		}
	}
	return f.WriteToBuffer()
}
