package api

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/neu-lab/meg2bids/internal/calibration"
)

const rootListing = `<html><head><title>Index of /EmptyRoom</title></head><body>
<h1>Index of /EmptyRoom</h1>
<ul>
<li><a href="../">Parent Directory</a></li>
<li><a href="202304.html">202304.html</a></li>
<li><a href="MEG_EmptyRoom_20230601_01.tgz">MEG_EmptyRoom_20230601_01.tgz</a></li>
<li><a href="MEG_EmptyRoom_20230610_01.tgz">MEG_EmptyRoom_20230610_01.tgz</a></li>
<li><a href="notes.txt">notes.txt</a></li>
<li><a href="index.html">index.html</a></li>
<li><a href="202305.html">202305.html</a></li>
</ul></body></html>`

// TestParseListing verifies archives and month listings are picked out in order
func TestParseListing(t *testing.T) {
	page, err := ParseListing(strings.NewReader(rootListing))
	if err != nil {
		t.Fatalf("ParseListing() error = %v", err)
	}

	if len(page.Entries) != 2 {
		t.Fatalf("ParseListing() entries = %d, want 2", len(page.Entries))
	}
	if page.Entries[0].Date != 20230601 || page.Entries[1].Date != 20230610 {
		t.Errorf("ParseListing() dates = %d, %d", page.Entries[0].Date, page.Entries[1].Date)
	}
	if page.Entries[0].Locator != "MEG_EmptyRoom_20230601_01.tgz" {
		t.Errorf("ParseListing() locator = %q", page.Entries[0].Locator)
	}

	// index.html is not a YYYYMM listing
	if len(page.Months) != 2 {
		t.Fatalf("ParseListing() months = %+v, want 2", page.Months)
	}
	if page.Months[0].YearMonth != 202304 || page.Months[1].YearMonth != 202305 {
		t.Errorf("ParseListing() months = %+v", page.Months)
	}
}

// TestParseArchiveName tests date extraction from archive names
func TestParseArchiveName(t *testing.T) {
	tests := []struct {
		locator string
		want    int
		wantErr bool
	}{
		{"MEG_EmptyRoom_20230601_01.tgz", 20230601, false},
		{"sub/MEG_EmptyRoom_20221231_02.tgz", 20221231, false},
		{"MEG_EmptyRoom_2023-06-01_01.tgz", 0, true},
		{"MEG_EmptyRoom.tgz", 0, true},
		{"MEG_EmptyRoom_202306_01.tgz", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			got, err := ParseArchiveName(tt.locator)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseArchiveName(%q) error = %v, wantErr %v", tt.locator, err, tt.wantErr)
			}
			if tt.wantErr {
				var mde *calibration.MalformedDateError
				if !errors.As(err, &mde) {
					t.Errorf("ParseArchiveName(%q) error = %T, want MalformedDateError", tt.locator, err)
				}
				return
			}
			if got.Date != tt.want {
				t.Errorf("ParseArchiveName(%q) = %d, want %d", tt.locator, got.Date, tt.want)
			}
		})
	}
}

func TestFetchListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/EmptyRoom/":
			w.Write([]byte(rootListing))
		case "/EmptyRoom/202305.html":
			// some servers gzip listings regardless of size
			w.Header().Set("Content-Encoding", "gzip")
			gz := gzip.NewWriter(w)
			gz.Write([]byte(`<a href="MEG_EmptyRoom_20230515_01.tgz">x</a>`))
			gz.Close()
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewEmptyRoomClient(srv.URL+"/EmptyRoom", nil)

	root, err := client.FetchListing("")
	if err != nil {
		t.Fatalf("FetchListing(root) error = %v", err)
	}
	if len(root.Entries) != 2 {
		t.Errorf("FetchListing(root) entries = %d, want 2", len(root.Entries))
	}

	month, err := client.FetchListing("202305.html")
	if err != nil {
		t.Fatalf("FetchListing(month) error = %v", err)
	}
	if len(month.Entries) != 1 || month.Entries[0].Date != 20230515 {
		t.Errorf("FetchListing(month) = %+v", month.Entries)
	}

	_, err = client.FetchListing("missing.html")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Errorf("FetchListing(missing) error = %v, want 404 StatusError", err)
	}
}

func TestFetchListingWithRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(rootListing))
	}))
	defer srv.Close()

	client := NewEmptyRoomClient(srv.URL, nil)
	client.RetryBackoff = 0

	page, err := client.FetchListingWithRetry("", 3)
	if err != nil {
		t.Fatalf("FetchListingWithRetry() error = %v", err)
	}
	if len(page.Entries) != 2 {
		t.Errorf("FetchListingWithRetry() entries = %d, want 2", len(page.Entries))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}

	atomic.StoreInt32(&calls, -10)
	_, err = client.FetchListingWithRetry("", 2)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Errorf("FetchListingWithRetry() error = %v, want StatusError after retries", err)
	}
}

func buildTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		body := files[name]
		if strings.HasSuffix(name, "/") {
			if err := tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeDir, Mode: 0755}); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(body))}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	tw.Close()
	gz.Close()
	return buf.Bytes()
}

func TestDownloadAndExtract(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"MEG_EmptyRoom_20230601_01.ds/":                   "",
		"MEG_EmptyRoom_20230601_01.ds/MEG_EmptyRoom.meg4": "meg4",
		"MEG_EmptyRoom_20230601_01.ds/MEG_EmptyRoom.res4": "res4",
		"./MEG_EmptyRoom_20230601_01.ds/hz.ds/hz.meg4":    "hz",
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	client := NewEmptyRoomClient(srv.URL, nil)
	dir := t.TempDir()

	archivePath, err := client.Download(context.Background(), "MEG_EmptyRoom_20230601_01.tgz", dir)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if filepath.Base(archivePath) != "MEG_EmptyRoom_20230601_01.tgz" {
		t.Errorf("Download() path = %s", archivePath)
	}

	top, err := ExtractTarGz(archivePath, dir)
	if err != nil {
		t.Fatalf("ExtractTarGz() error = %v", err)
	}
	if len(top) != 1 || top[0] != "MEG_EmptyRoom_20230601_01.ds" {
		t.Errorf("ExtractTarGz() top-level = %v", top)
	}

	data, err := os.ReadFile(filepath.Join(dir, "MEG_EmptyRoom_20230601_01.ds", "hz.ds", "hz.meg4"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(data) != "hz" {
		t.Errorf("extracted content = %q, want hz", data)
	}
}

func TestDownloadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 4096))
		w.(http.Flusher).Flush()
		cancel()
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewEmptyRoomClient(srv.URL, nil)
	dir := t.TempDir()

	_, err := client.Download(ctx, "MEG_EmptyRoom_20230601_01.tgz", dir)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Download() error = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "MEG_EmptyRoom_20230601_01.tgz")); !os.IsNotExist(err) {
		t.Errorf("partial archive left behind: %v", err)
	}
}

func TestExtractTarGzRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.tgz")
	if err := os.WriteFile(archivePath, buildTarGz(t, map[string]string{"../escape.txt": "x"}), 0644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out")
	if _, err := ExtractTarGz(archivePath, out); err == nil {
		t.Error("ExtractTarGz() accepted an entry outside the output directory")
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
		t.Error("ExtractTarGz() wrote outside the output directory")
	}
}

func TestHumanReadableSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := HumanReadableSize(tt.size); got != tt.want {
			t.Errorf("HumanReadableSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

// TestFetchListingIntegration hits the real catalog
// Run with: go test -v -run TestFetchListingIntegration ./internal/api/
func TestFetchListingIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("MEG2BIDS_INTEGRATION") == "" {
		t.Skip("MEG2BIDS_INTEGRATION not set")
	}

	client := NewEmptyRoomClient(DefaultEmptyRoomURL, nil)
	page, err := client.FetchListing("")
	if err != nil {
		t.Fatalf("FetchListing failed: %v", err)
	}
	t.Logf("root listing: %d archives, %d month listings", len(page.Entries), len(page.Months))
}
