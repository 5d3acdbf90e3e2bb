// Package calibration matches a MEG session to the empty-room recording
// acquired closest to it.
//
// The catalog is month-paged: the root listing only holds recent archives and
// links to one listing per month. FindNearest scans the root listing first and
// only descends into month listings when the best match sits at the edge of
// the root listing.
package calibration

import (
	"strconv"
	"time"

	"github.com/neu-lab/meg2bids/internal/models"
)

const (
	dateLayout    = "20060102"
	secondsPerDay = 24 * 60 * 60
)

// FetchPageFunc retrieves a sibling month listing. Errors are returned to the
// caller of FindNearest unchanged.
type FetchPageFunc func(month models.MonthIndex) (*models.CatalogPage, error)

// Policy controls which month listings are searched when the root listing
// cannot rule out a closer archive.
type Policy struct {
	// MonthWindow is the largest calendar-month distance between the target
	// and a month listing for that listing to be searched.
	MonthWindow int
	// SearchLastListing also searches the final month locator of the page,
	// whatever its month.
	SearchLastListing bool
}

// DefaultPolicy searches adjacent months plus the last listed month.
func DefaultPolicy() Policy {
	return Policy{MonthWindow: 1, SearchLastListing: true}
}

// FindNearest returns the catalog entry whose date is closest to target
// (YYYYMMDD). Ties keep the entry seen first.
func FindNearest(target int, page *models.CatalogPage, fetch FetchPageFunc, policy Policy) (models.CatalogEntry, error) {
	targetDay, err := ParseDate(target)
	if err != nil {
		return models.CatalogEntry{}, &MalformedDateError{Date: strconv.Itoa(target), Err: err}
	}

	if page == nil || len(page.Entries) == 0 {
		return models.CatalogEntry{}, ErrEmptyCatalog
	}

	bestIdx, bestDist, err := nearestIn(targetDay, page.Entries)
	if err != nil {
		return models.CatalogEntry{}, err
	}
	best := page.Entries[bestIdx]

	// Listings are chronological, so an interior minimum is final
	if bestIdx != len(page.Entries)-1 || fetch == nil {
		return best, nil
	}

	targetMonth := monthNumber(target / 100)
	for i, month := range page.Months {
		isLast := i == len(page.Months)-1
		if abs(monthNumber(month.YearMonth)-targetMonth) > policy.MonthWindow && !(isLast && policy.SearchLastListing) {
			continue
		}

		sibling, err := fetch(month)
		if err != nil {
			return models.CatalogEntry{}, err
		}
		if sibling == nil || len(sibling.Entries) == 0 {
			continue
		}

		idx, dist, err := nearestIn(targetDay, sibling.Entries)
		if err != nil {
			return models.CatalogEntry{}, err
		}
		if dist >= bestDist {
			break
		}
		best, bestDist = sibling.Entries[idx], dist
	}

	return best, nil
}

// nearestIn returns the index and day distance of the entry closest to target
func nearestIn(target time.Time, entries []models.CatalogEntry) (int, int, error) {
	bestIdx, bestDist := -1, 0
	for i, e := range entries {
		day, err := ParseDate(e.Date)
		if err != nil {
			return 0, 0, &MalformedDateError{Locator: e.Locator, Date: strconv.Itoa(e.Date), Err: err}
		}
		dist := daysBetween(day, target)
		if bestIdx < 0 || dist < bestDist {
			bestIdx, bestDist = i, dist
		}
	}
	return bestIdx, bestDist, nil
}

// ParseDate converts a YYYYMMDD integer to a UTC calendar day
func ParseDate(date int) (time.Time, error) {
	if date < 0 {
		return time.Time{}, strconv.ErrRange
	}
	return time.Parse(dateLayout, pad8(date))
}

// DayDistance is the absolute number of days between two YYYYMMDD dates
func DayDistance(a, b int) (int, error) {
	da, err := ParseDate(a)
	if err != nil {
		return 0, &MalformedDateError{Date: strconv.Itoa(a), Err: err}
	}
	db, err := ParseDate(b)
	if err != nil {
		return 0, &MalformedDateError{Date: strconv.Itoa(b), Err: err}
	}
	return daysBetween(da, db), nil
}

// daysBetween works on Unix seconds since time.Duration saturates past ~292 years
func daysBetween(a, b time.Time) int {
	return abs(int(a.Unix()/secondsPerDay - b.Unix()/secondsPerDay))
}

// monthNumber maps YYYYMM onto a continuous month count so December and
// January of the next year are one month apart
func monthNumber(yearMonth int) int {
	return (yearMonth/100)*12 + yearMonth%100 - 1
}

func pad8(date int) string {
	s := strconv.Itoa(date)
	for len(s) < 8 {
		s = "0" + s
	}
	return s
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
