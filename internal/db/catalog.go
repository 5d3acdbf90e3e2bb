package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/neu-lab/meg2bids/internal/models"
)

// Fixed-width UTC timestamps so text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000Z"

// SaveListing replaces the cached copy of a catalog listing
func (db *DB) SaveListing(listing string, page *models.CatalogPage) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(deleteListingEntries, listing); err != nil {
		return fmt.Errorf("failed to clear cached entries: %w", err)
	}
	if _, err := tx.Exec(deleteListingMonths, listing); err != nil {
		return fmt.Errorf("failed to clear cached months: %w", err)
	}

	entryStmt, err := tx.Prepare(insertListingEntry)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer entryStmt.Close()

	for i, e := range page.Entries {
		if _, err := entryStmt.Exec(listing, i, e.Date, e.Locator); err != nil {
			return fmt.Errorf("failed to cache entry %s: %w", e.Locator, err)
		}
	}

	monthStmt, err := tx.Prepare(insertListingMonth)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer monthStmt.Close()

	for i, m := range page.Months {
		if _, err := monthStmt.Exec(listing, i, m.YearMonth, m.Locator); err != nil {
			return fmt.Errorf("failed to cache month %s: %w", m.Locator, err)
		}
	}

	if _, err := tx.Exec(upsertListing, listing, time.Now().UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("failed to record listing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCachedListing returns a cached listing if it is younger than maxAge.
// maxAge <= 0 accepts any age.
func (db *DB) GetCachedListing(listing string, maxAge time.Duration) (*models.CatalogPage, bool, error) {
	var fetchedAt string
	err := db.conn.QueryRow(selectListingFetchedAt, listing).Scan(&fetchedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil // Not cached yet
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cached listing: %w", err)
	}

	if maxAge > 0 {
		ts, err := time.Parse(timeLayout, fetchedAt)
		if err != nil || time.Since(ts) > maxAge {
			return nil, false, nil
		}
	}

	page := &models.CatalogPage{}

	rows, err := db.conn.Query(selectListingEntries, listing)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cached entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e models.CatalogEntry
		if err := rows.Scan(&e.Date, &e.Locator); err != nil {
			return nil, false, fmt.Errorf("failed to scan entry: %w", err)
		}
		page.Entries = append(page.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read cached entries: %w", err)
	}

	monthRows, err := db.conn.Query(selectListingMonths, listing)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cached months: %w", err)
	}
	defer monthRows.Close()

	for monthRows.Next() {
		var m models.MonthIndex
		if err := monthRows.Scan(&m.YearMonth, &m.Locator); err != nil {
			return nil, false, fmt.Errorf("failed to scan month: %w", err)
		}
		page.Months = append(page.Months, m)
	}
	if err := monthRows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read cached months: %w", err)
	}

	return page, true, nil
}

// ClearListings drops every cached listing
func (db *DB) ClearListings() error {
	if _, err := db.conn.Exec(deleteAllListings); err != nil {
		return fmt.Errorf("failed to clear listing cache: %w", err)
	}
	return nil
}
