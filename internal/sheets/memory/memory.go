package memory

import (
	"context"
	"fmt"
	"sync"

	"finctl/internal/export"
	"finctl/internal/sheets"
)

var _ sheets.ReportWriter = (*Store)(nil)

// Store keeps every written report in memory.
type Store struct {
	mu      sync.Mutex
	reports []export.Report
}

func New() *Store {
	return &Store{}
}

// WriteReport stores the report and returns a synthetic reference.
func (s *Store) WriteReport(ctx context.Context, rep export.Report) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, rep)
	return fmt.Sprintf("mem:%d", len(s.reports)), nil
}

// Reports returns the written reports, oldest first.
func (s *Store) Reports() []export.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]export.Report(nil), s.reports...)
}

// Latest returns the most recent report.
func (s *Store) Latest() (export.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reports) == 0 {
		return export.Report{}, false
	}
	return s.reports[len(s.reports)-1], true
}
