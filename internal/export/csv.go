package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cehupo-sync/internal/domain"
)

var visitsCSVHeader = []string{
	"client_id",
	"visit_date",
	"duration_minutes",
	"reason_tags",
	"notes",
}

// WriteVisitsCSV dumps visits to a CSV file, one row per visit.
func WriteVisitsCSV(visits []domain.Visit, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(visitsCSVHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range visits {
		v := &visits[i]
		duration := ""
		if v.DurationMinutes != nil {
			duration = strconv.Itoa(*v.DurationMinutes)
		}
		row := []string{
			v.ClientID,
			v.Date.Format("2006-01-02"),
			duration,
			strings.Join(v.ReasonTags, ","),
			v.Notes,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write visit row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}
