package scraper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/navintel/pricewatch/internal/models"
)

// ReportWriter emits one JSON audit artifact per run, including the
// raw markup of successful fetches for later inspection.
type ReportWriter struct {
	dir string
	now func() time.Time
}

func NewReportWriter(dir string) *ReportWriter {
	return &ReportWriter{dir: dir, now: time.Now}
}

type runReport struct {
	RunID           string               `json:"run_id"`
	GeneratedAt     time.Time            `json:"generated_at"`
	Outcome         models.Outcome       `json:"outcome"`
	Attempted       int                  `json:"attempted"`
	Created         int                  `json:"created"`
	FailedRetailers []string             `json:"failed_retailers"`
	Entries         []models.ReportEntry `json:"entries"`
}

// Write stores the report under a timestamped filename, via a temp
// file so readers never see a partial report.
func (w *ReportWriter) Write(summary *models.RunSummary, entries []models.ReportEntry) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}

	report := runReport{
		RunID:           summary.RunID,
		GeneratedAt:     w.now(),
		Outcome:         summary.Classify(),
		Attempted:       summary.Attempted,
		Created:         summary.Created,
		FailedRetailers: summary.FailedRetailers,
		Entries:         entries,
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	name := fmt.Sprintf("price_run_%s_%s.json", w.now().Format("20060102_150405"), summary.RunID)
	path := filepath.Join(w.dir, name)

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return os.Rename(tmpFile, path)
}
