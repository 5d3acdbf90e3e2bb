package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neu-lab/meg2bids/internal/models"
)

// InsertRetrieval logs a retrieval; ID and CreatedAt are filled in when empty
func (db *DB) InsertRetrieval(r *models.Retrieval) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.Exec(insertRetrieval,
		r.ID,
		r.Subject,
		r.SessionDate,
		r.EntryDate,
		r.Locator,
		r.Status,
		r.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert retrieval for %s: %w", r.Subject, err)
	}
	return nil
}

// GetRetrievals returns the retrieval log for a subject, newest first.
// An empty subject returns every subject.
func (db *DB) GetRetrievals(subject string) ([]models.Retrieval, error) {
	var rows *sql.Rows
	var err error
	if subject == "" {
		rows, err = db.conn.Query(selectAllRetrievals)
	} else {
		rows, err = db.conn.Query(selectRetrievals, subject)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query retrievals: %w", err)
	}
	defer rows.Close()

	var out []models.Retrieval
	for rows.Next() {
		var r models.Retrieval
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Subject, &r.SessionDate, &r.EntryDate, &r.Locator, &r.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan retrieval: %w", err)
		}
		r.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, r)
	}

	return out, rows.Err()
}

// GetLatestRetrieval returns the newest retrieval for a subject, or nil
func (db *DB) GetLatestRetrieval(subject string) (*models.Retrieval, error) {
	all, err := db.GetRetrievals(subject)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil // No retrievals yet
	}
	return &all[0], nil
}
