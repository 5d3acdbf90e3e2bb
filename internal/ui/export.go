package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/neu-lab/meg2bids/internal/models"
)

// retrievalRecord is one CSV row of the retrieval history
type retrievalRecord struct {
	ID          string `csv:"id"`
	Subject     string `csv:"subject"`
	SessionDate int    `csv:"session_date"`
	EntryDate   int    `csv:"emptyroom_date"`
	Locator     string `csv:"archive"`
	Status      string `csv:"status"`
	CreatedAt   string `csv:"created_at"`
}

// exportFilename builds history-<subject>-<date>.<ext>
func exportFilename(subject, ext string) string {
	timestamp := time.Now().Format("2006-01-02")
	if subject == "" {
		subject = "all"
	}
	return fmt.Sprintf("history-%s-%s.%s", subject, timestamp, ext)
}

// ExportRetrievalsCSV writes the retrieval history to a CSV file and returns its name
func ExportRetrievalsCSV(retrievals []models.Retrieval, subject string) (string, error) {
	records := make([]*retrievalRecord, len(retrievals))
	for i, r := range retrievals {
		records[i] = &retrievalRecord{
			ID:          r.ID,
			Subject:     r.Subject,
			SessionDate: r.SessionDate,
			EntryDate:   r.EntryDate,
			Locator:     r.Locator,
			Status:      r.Status,
			CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
		}
	}

	filename := exportFilename(subject, "csv")
	f, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&records, f); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}
	return filename, nil
}

// ExportRetrievalsMarkdown writes the retrieval history as a markdown table
func ExportRetrievalsMarkdown(retrievals []models.Retrieval, subject string) (string, error) {
	var sb strings.Builder

	if subject == "" {
		sb.WriteString("# Empty-room retrievals\n\n")
	} else {
		sb.WriteString(fmt.Sprintf("# Empty-room retrievals for sub-%s\n\n", subject))
	}
	sb.WriteString(fmt.Sprintf("**Records:** %d\n", len(retrievals)))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", time.Now().Format("2006-01-02 15:04:05")))

	sb.WriteString("| When | Subject | Session | Empty-room | Status | Archive |\n")
	sb.WriteString("|------|---------|---------|------------|--------|---------|\n")
	for _, r := range retrievals {
		sb.WriteString(fmt.Sprintf("| %s | %s | %08d | %08d | %s | %s |\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Subject, r.SessionDate, r.EntryDate, r.Status, r.Locator))
	}

	filename := exportFilename(subject, "md")
	if err := os.WriteFile(filename, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write markdown file: %w", err)
	}
	return filename, nil
}
