package bids

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrNoRecording is returned when no matching .ds directory exists
var ErrNoRecording = errors.New("no MEG recording found")

// DSName is a parsed CTF dataset name: <megcode>_epilepsy_<YYYYMMDD>_<run>.ds
type DSName struct {
	MEGCode string
	Date    int
	Run     int
}

// String rebuilds the dataset directory name
func (d DSName) String() string {
	return fmt.Sprintf("%s_epilepsy_%08d_%02d.ds", d.MEGCode, d.Date, d.Run)
}

// ParseDSName parses a CTF dataset directory name
func ParseDSName(name string) (DSName, error) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, ".ds") {
		return DSName{}, fmt.Errorf("not a .ds directory: %s", base)
	}

	parts := strings.Split(strings.TrimSuffix(base, ".ds"), "_")
	if len(parts) != 4 || parts[1] != "epilepsy" {
		return DSName{}, fmt.Errorf("unexpected dataset name: %s", base)
	}

	if len(parts[2]) != 8 {
		return DSName{}, fmt.Errorf("bad date %q in dataset name %s", parts[2], base)
	}
	date, err := strconv.Atoi(parts[2])
	if err != nil {
		return DSName{}, fmt.Errorf("bad date %q in dataset name %s: %w", parts[2], base, err)
	}

	// Runs are zero-padded and may carry a "-c" suffix on CTF copies
	runField := strings.TrimSuffix(parts[3], "-c")
	run, err := strconv.Atoi(runField)
	if err != nil {
		return DSName{}, fmt.Errorf("bad run %q in dataset name %s: %w", parts[3], base, err)
	}

	return DSName{MEGCode: parts[0], Date: date, Run: run}, nil
}

// FindRecordings returns the parsed .ds directories in dir, ordered by run
func FindRecordings(dir string) ([]DSName, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var out []DSName
	for _, e := range entries {
		if !e.IsDir() || !strings.Contains(e.Name(), "_epilepsy_") {
			continue
		}
		ds, err := ParseDSName(e.Name())
		if err != nil {
			continue
		}
		out = append(out, ds)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Run < out[j].Run
	})
	return out, nil
}

// FindSessionDate returns the acquisition date of the first recording in dir
func FindSessionDate(dir string) (int, error) {
	recs, err := FindRecordings(dir)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, fmt.Errorf("%w in %s", ErrNoRecording, dir)
	}
	return recs[0].Date, nil
}
