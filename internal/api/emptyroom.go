package api

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/neu-lab/meg2bids/internal/calibration"
	"github.com/neu-lab/meg2bids/internal/models"
	"golang.org/x/net/html"
)

const (
	DefaultEmptyRoomURL = "https://kurage.nimh.nih.gov/EmptyRoom/"
	listingTimeout      = 60 * time.Second
	archiveTimeout      = 30 * time.Minute // archives are several GB on a slow share
	userAgent           = "meg2bids/1.0"
)

// EmptyRoomClient reads the empty-room calibration catalog
type EmptyRoomClient struct {
	baseURL        string
	httpClient     *http.Client
	downloadClient *http.Client
	logger         *log.Logger

	// RetryBackoff is the first backoff used by FetchListingWithRetry; it doubles per retry
	RetryBackoff time.Duration
}

// NewEmptyRoomClient creates a catalog client rooted at baseURL
func NewEmptyRoomClient(baseURL string, logger *log.Logger) *EmptyRoomClient {
	if baseURL == "" {
		baseURL = DefaultEmptyRoomURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &EmptyRoomClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: listingTimeout,
		},
		downloadClient: &http.Client{
			Timeout: archiveTimeout,
		},
		logger:       logger,
		RetryBackoff: 10 * time.Second,
	}
}

// BaseURL returns the catalog root
func (c *EmptyRoomClient) BaseURL() string {
	return c.baseURL
}

// URLFor resolves a catalog locator against the catalog root
func (c *EmptyRoomClient) URLFor(locator string) string {
	return c.baseURL + strings.TrimPrefix(locator, "/")
}

// StatusError is returned when the catalog answers with a non-200 status
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog returned status %d for %s", e.StatusCode, e.URL)
}

// Retryable reports whether the status indicates a transient condition
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusServiceUnavailable ||
		e.StatusCode == http.StatusBadGateway ||
		e.StatusCode == http.StatusGatewayTimeout
}

// FetchListing fetches and parses one catalog listing. The root listing is "".
func (c *EmptyRoomClient) FetchListing(listing string) (*models.CatalogPage, error) {
	rawURL := c.URLFor(listing)

	req, err := http.NewRequest("GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html, */*")
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("Listing request failed", "url", rawURL, "error", err)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	var reader io.Reader = resp.Body
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Encoding")), "gzip") {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	page, err := ParseListing(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing %s: %w", rawURL, err)
	}

	if c.logger != nil {
		c.logger.Debug("Listing fetched", "url", rawURL, "entries", len(page.Entries), "months", len(page.Months))
	}

	return page, nil
}

// FetchListingWithRetry retries transient failures (429/5xx, timeouts) with
// exponential backoff. Other errors are returned immediately.
func (c *EmptyRoomClient) FetchListingWithRetry(listing string, maxRetries int) (*models.CatalogPage, error) {
	retry := 0
	for {
		page, err := c.FetchListing(listing)
		if err == nil {
			return page, nil
		}
		if !isTransient(err) || retry >= maxRetries {
			if retry > 0 {
				return nil, fmt.Errorf("request failed after %d retries: %w", retry, err)
			}
			return nil, err
		}

		retry++
		backoff := c.RetryBackoff << (retry - 1)
		if c.logger != nil {
			c.logger.Warn("Catalog unavailable, retrying", "listing", listing, "backoff", backoff, "retry", retry, "maxRetries", maxRetries)
		}
		time.Sleep(backoff)
	}
}

func isTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

// ParseListing extracts archive entries and month listings from a catalog page.
// Anchors ending in .tgz are archives named <prefix>_<kind>_<YYYYMMDD>_<n>.tgz;
// anchors named <YYYYMM>.html are month listings. Everything else is ignored.
func ParseListing(r io.Reader) (*models.CatalogPage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &models.CatalogPage{}
	var walkErr error

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if walkErr != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attr(n, "href")
			switch {
			case strings.HasSuffix(href, ".tgz"):
				entry, err := ParseArchiveName(href)
				if err != nil {
					walkErr = err
					return
				}
				page.Entries = append(page.Entries, entry)
			case strings.HasSuffix(href, ".html"):
				if month, ok := parseMonthListing(href); ok {
					page.Months = append(page.Months, month)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	if walkErr != nil {
		return nil, walkErr
	}
	return page, nil
}

// ParseArchiveName reads the acquisition date out of an archive locator
// Example: "MEG_EmptyRoom_20230601_01.tgz" -> 20230601
func ParseArchiveName(locator string) (models.CatalogEntry, error) {
	name := path.Base(locator)
	parts := strings.Split(strings.TrimSuffix(name, ".tgz"), "_")
	if len(parts) < 3 {
		return models.CatalogEntry{}, &calibration.MalformedDateError{Locator: locator, Date: name}
	}

	field := parts[2]
	date, err := strconv.Atoi(field)
	if err != nil || len(field) != 8 {
		return models.CatalogEntry{}, &calibration.MalformedDateError{Locator: locator, Date: field, Err: err}
	}

	return models.CatalogEntry{Date: date, Locator: locator}, nil
}

// parseMonthListing accepts "<YYYYMM>.html" hrefs
func parseMonthListing(href string) (models.MonthIndex, bool) {
	stem := strings.TrimSuffix(path.Base(href), ".html")
	if len(stem) != 6 {
		return models.MonthIndex{}, false
	}
	ym, err := strconv.Atoi(stem)
	if err != nil {
		return models.MonthIndex{}, false
	}
	return models.MonthIndex{YearMonth: ym, Locator: href}, true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}
