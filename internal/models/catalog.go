package models

import "time"

// CatalogEntry is one empty-room archive listed by the calibration catalog
type CatalogEntry struct {
	Date    int    // acquisition date, YYYYMMDD
	Locator string // href relative to the catalog root (e.g. "MEG_EmptyRoom_20230601_01.tgz")
}

// MonthIndex points at a sibling listing holding one month of archives
type MonthIndex struct {
	YearMonth int    // YYYYMM
	Locator   string // href of the listing page (e.g. "202306.html")
}

// CatalogPage is a parsed catalog listing, in listing order
type CatalogPage struct {
	Entries []CatalogEntry
	Months  []MonthIndex
}

// Retrieval records which empty-room archive was matched to a subject session
type Retrieval struct {
	ID          string // UUID
	Subject     string // p-number
	SessionDate int    // YYYYMMDD of the subject MEG session
	EntryDate   int    // YYYYMMDD of the chosen empty-room recording
	Locator     string
	Status      string // see RetrievalStatus* constants
	CreatedAt   time.Time
}

// Retrieval statuses
const (
	RetrievalStatusResolved   = "resolved"
	RetrievalStatusDownloaded = "downloaded"
	RetrievalStatusSkipped    = "skipped"
	RetrievalStatusFailed     = "failed"
)
