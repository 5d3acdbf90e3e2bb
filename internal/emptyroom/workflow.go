// Package emptyroom matches a subject's MEG session to the nearest
// empty-room recording in the calibration catalog and stages it in the
// dataset.
package emptyroom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/neu-lab/meg2bids/internal/api"
	"github.com/neu-lab/meg2bids/internal/bids"
	"github.com/neu-lab/meg2bids/internal/calibration"
	"github.com/neu-lab/meg2bids/internal/models"
)

const (
	rootListing     = ""
	recordingPrefix = "MEG_EmptyRoom"
)

var (
	// ErrAlreadyPresent is returned when the dataset already holds the matched session
	ErrAlreadyPresent = errors.New("empty-room session already in dataset")
	// ErrNoEmptyRoomRecording is returned when an archive holds no MEG_EmptyRoom*.ds
	ErrNoEmptyRoomRecording = errors.New("archive has no empty-room recording")
	// ErrCancelled is returned when the operator declines the download
	ErrCancelled = errors.New("cancelled by operator")
)

// Catalog is the remote empty-room catalog
type Catalog interface {
	FetchListingWithRetry(listing string, maxRetries int) (*models.CatalogPage, error)
	Download(ctx context.Context, locator, destDir string) (string, error)
}

// Store caches listings and records retrievals
type Store interface {
	GetCachedListing(listing string, maxAge time.Duration) (*models.CatalogPage, bool, error)
	SaveListing(listing string, page *models.CatalogPage) error
	InsertRetrieval(r *models.Retrieval) error
}

// Confirmer asks the operator before a download starts
type Confirmer interface {
	ConfirmProceed(title, description string) (bool, error)
}

// Workflow resolves and retrieves empty-room sessions
type Workflow struct {
	Layout     bids.Layout
	Catalog    Catalog
	Store      Store // optional
	Policy     calibration.Policy
	CacheTTL   time.Duration
	MaxRetries int
	Refresh    bool // ignore cached listings
	Logger     *log.Logger
	Confirm    Confirmer // optional; nil proceeds without asking

	// Spin wraps long downloads and returns once action has; nil runs the
	// action directly with a background context
	Spin func(title string, action func(ctx context.Context)) error
}

// Match is a resolved empty-room recording for one session
type Match struct {
	Subject     string
	SessionDate int
	Entry       models.CatalogEntry
	DayDistance int
	Root        *models.CatalogPage
	Listings    []string // listings read while resolving, root first
	InDataset   bool     // sub-emptyroom/ses-<date> already exists
}

// Outcome describes a completed retrieval
type Outcome struct {
	Match     *Match
	Archive   string
	Staged    []string
	SessionID string
	Retrieval *models.Retrieval
}

// Override replaces the matched entry with one the operator picked
func (m *Match) Override(entry models.CatalogEntry) error {
	dist, err := calibration.DayDistance(m.SessionDate, entry.Date)
	if err != nil {
		return err
	}
	m.Entry = entry
	m.DayDistance = dist
	return nil
}

// SessionDate finds the subject's MEG acquisition date, looking in the
// subject's staging dir first and then in sourcedata.
func (w *Workflow) SessionDate(pnum string) (int, error) {
	var lastErr error
	for _, dir := range []string{w.Layout.SubjectTempDir(pnum), w.Layout.SourceMEGDir(pnum)} {
		if !bids.Exists(dir) {
			continue
		}
		date, err := bids.FindSessionDate(dir)
		if err == nil {
			return date, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return 0, lastErr
	}
	return 0, fmt.Errorf("%w for sub-%s", bids.ErrNoRecording, pnum)
}

// Resolve finds the empty-room recording closest to sessionDate without
// downloading it. A zero sessionDate is read from the subject's data.
func (w *Workflow) Resolve(pnum string, sessionDate int) (*Match, error) {
	if sessionDate == 0 {
		date, err := w.SessionDate(pnum)
		if err != nil {
			return nil, err
		}
		sessionDate = date
	}

	m := &Match{Subject: pnum, SessionDate: sessionDate}

	root, err := w.listing(rootListing)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	m.Root = root
	m.Listings = append(m.Listings, rootListing)

	fetch := func(month models.MonthIndex) (*models.CatalogPage, error) {
		m.Listings = append(m.Listings, month.Locator)
		return w.listing(month.Locator)
	}

	entry, err := calibration.FindNearest(sessionDate, root, fetch, w.Policy)
	if err != nil {
		return nil, err
	}
	m.Entry = entry

	dist, err := calibration.DayDistance(sessionDate, entry.Date)
	if err != nil {
		return nil, err
	}
	m.DayDistance = dist

	staged, err := w.Layout.EmptyRoomDates()
	if err != nil {
		w.logger().Warn("Failed to list staged empty-room sessions", "error", err)
	}
	i := sort.SearchInts(staged, entry.Date)
	m.InDataset = i < len(staged) && staged[i] == entry.Date

	w.logger().Info("Matched empty-room recording",
		"subject", pnum, "session", sessionDate, "emptyroom", entry.Date,
		"days", dist, "listings", len(m.Listings))
	return m, nil
}

// Retrieve downloads the matched archive, stages its recording under
// sourcedata/sub-emptyroom/ses-<date>/meg and logs the retrieval.
func (w *Workflow) Retrieve(m *Match) (*Outcome, error) {
	out := &Outcome{Match: m, SessionID: fmt.Sprintf("%08d", m.Entry.Date)}

	sessionDir := w.Layout.EmptyRoomSessionDir(m.Entry.Date)
	sourceDir := w.Layout.EmptyRoomSourceDir(m.Entry.Date)
	for _, dir := range []string{sessionDir, sourceDir} {
		if bids.Exists(dir) {
			out.Retrieval = w.record(m, models.RetrievalStatusSkipped)
			return out, fmt.Errorf("%w: %s", ErrAlreadyPresent, dir)
		}
	}

	if w.Confirm != nil {
		ok, err := w.Confirm.ConfirmProceed(
			fmt.Sprintf("Download %s?", m.Entry.Locator),
			fmt.Sprintf("Closest empty-room to %08d is %08d (%d days)", m.SessionDate, m.Entry.Date, m.DayDistance),
		)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, ErrCancelled
		}
	}

	tempDir := w.Layout.EmptyRoomTempDir()
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			w.logger().Warn("Failed to remove temp dir", "path", tempDir, "error", err)
		}
	}()

	var archive string
	var dlErr error
	spinErr := w.spin(fmt.Sprintf("Downloading %s...", m.Entry.Locator), func(ctx context.Context) {
		archive, dlErr = w.Catalog.Download(ctx, m.Entry.Locator, tempDir)
	})
	if spinErr != nil {
		dlErr = spinErr
	}
	if dlErr != nil {
		out.Retrieval = w.record(m, models.RetrievalStatusFailed)
		return out, fmt.Errorf("failed to download %s: %w", m.Entry.Locator, dlErr)
	}
	out.Archive = archive

	if _, err := api.ExtractTarGz(archive, tempDir); err != nil {
		out.Retrieval = w.record(m, models.RetrievalStatusFailed)
		return out, err
	}

	recordings, err := filepath.Glob(filepath.Join(tempDir, recordingPrefix+"*.ds"))
	if err != nil {
		out.Retrieval = w.record(m, models.RetrievalStatusFailed)
		return out, fmt.Errorf("failed to find recordings: %w", err)
	}
	if len(recordings) == 0 {
		out.Retrieval = w.record(m, models.RetrievalStatusFailed)
		return out, fmt.Errorf("%w: %s", ErrNoEmptyRoomRecording, m.Entry.Locator)
	}

	if err := os.MkdirAll(sourceDir, 0755); err != nil {
		out.Retrieval = w.record(m, models.RetrievalStatusFailed)
		return out, fmt.Errorf("failed to create %s: %w", sourceDir, err)
	}
	for _, rec := range recordings {
		dst := filepath.Join(sourceDir, filepath.Base(rec))
		if err := os.Rename(rec, dst); err != nil {
			out.Retrieval = w.record(m, models.RetrievalStatusFailed)
			return out, fmt.Errorf("failed to stage %s: %w", filepath.Base(rec), err)
		}
		out.Staged = append(out.Staged, dst)
	}

	out.Retrieval = w.record(m, models.RetrievalStatusDownloaded)
	w.logger().Info("Staged empty-room session", "session", out.SessionID, "recordings", len(out.Staged), "path", sourceDir)
	return out, nil
}

// Candidate is a catalog entry offered to the operator as an override
type Candidate struct {
	Entry   models.CatalogEntry
	Listing string // "" for the root listing
	Days    int
	Matched bool // the entry Resolve chose
}

// Candidates lists every entry of the listings read while resolving m,
// closest first. Listings come from the cache when possible.
func (w *Workflow) Candidates(m *Match) ([]Candidate, error) {
	var out []Candidate
	seen := make(map[string]bool)
	for _, listing := range m.Listings {
		page := m.Root
		if listing != rootListing {
			p, err := w.listing(listing)
			if err != nil {
				return nil, err
			}
			page = p
		}
		for _, e := range page.Entries {
			if seen[e.Locator] {
				continue
			}
			seen[e.Locator] = true
			days, err := calibration.DayDistance(m.SessionDate, e.Date)
			if err != nil {
				return nil, err
			}
			out = append(out, Candidate{
				Entry:   e,
				Listing: listing,
				Days:    days,
				Matched: e.Locator == m.Entry.Locator,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Days < out[j].Days })
	return out, nil
}

// RecordResolved logs a match that was not downloaded
func (w *Workflow) RecordResolved(m *Match) *models.Retrieval {
	return w.record(m, models.RetrievalStatusResolved)
}

// listing reads a catalog page from the cache, falling back to the catalog
func (w *Workflow) listing(locator string) (*models.CatalogPage, error) {
	if w.Store != nil && !w.Refresh {
		page, ok, err := w.Store.GetCachedListing(locator, w.CacheTTL)
		if err != nil {
			w.logger().Warn("Catalog cache unreadable", "listing", locator, "error", err)
		} else if ok {
			w.logger().Debug("Using cached listing", "listing", locator)
			return page, nil
		}
	}

	page, err := w.Catalog.FetchListingWithRetry(locator, w.MaxRetries)
	if err != nil {
		return nil, err
	}

	if w.Store != nil {
		if err := w.Store.SaveListing(locator, page); err != nil {
			w.logger().Warn("Failed to cache listing", "listing", locator, "error", err)
		}
	}
	return page, nil
}

// record logs a retrieval; failures to record never fail the workflow
func (w *Workflow) record(m *Match, status string) *models.Retrieval {
	r := &models.Retrieval{
		Subject:     m.Subject,
		SessionDate: m.SessionDate,
		EntryDate:   m.Entry.Date,
		Locator:     m.Entry.Locator,
		Status:      status,
	}
	if w.Store == nil {
		return r
	}
	if err := w.Store.InsertRetrieval(r); err != nil {
		w.logger().Warn("Failed to record retrieval", "subject", m.Subject, "error", err)
	}
	return r
}

func (w *Workflow) spin(title string, action func(ctx context.Context)) error {
	if w.Spin == nil {
		action(context.Background())
		return nil
	}
	return w.Spin(title, action)
}

func (w *Workflow) logger() *log.Logger {
	if w.Logger == nil {
		return log.New(io.Discard)
	}
	return w.Logger
}
