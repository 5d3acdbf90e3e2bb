// Package keys reads the lab's "=" delimited lookup files that tie MEG
// acquisition codes and subject names to p-numbers.
package keys

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
)

// ErrUnknownSubject is returned when a p-number is missing from a key file
var ErrUnknownSubject = errors.New("subject not found in key file")

// megKeyRow is one line of meg_key: <megcode>=<pnum>
type megKeyRow struct {
	MEGCode string
	PNum    string
}

// subjectKeyRow is one line of the subject key: <pnum>=<name>
type subjectKeyRow struct {
	PNum string
	Name string
}

// Key maps p-numbers to a value read from a key file
type Key struct {
	path   string
	values map[string]string
}

// Lookup returns the value for pnum
func (k *Key) Lookup(pnum string) (string, error) {
	v, ok := k.values[pnum]
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", ErrUnknownSubject, pnum, k.path)
	}
	return v, nil
}

// Len returns the number of subjects in the key
func (k *Key) Len() int {
	return len(k.values)
}

// LoadMEGKey reads meg_key and returns a p-number to MEG code lookup
func LoadMEGKey(path string) (*Key, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MEG key: %w", err)
	}
	defer f.Close()

	rows := []*megKeyRow{}
	if err := gocsv.UnmarshalCSVWithoutHeaders(newKeyReader(f), &rows); err != nil {
		return nil, fmt.Errorf("failed to parse MEG key %s: %w", path, err)
	}

	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[strings.TrimSpace(r.PNum)] = strings.TrimSpace(r.MEGCode)
	}
	return &Key{path: path, values: values}, nil
}

// LoadSubjectKey reads the subject key and returns a p-number to name lookup
func LoadSubjectKey(path string) (*Key, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subject key: %w", err)
	}
	defer f.Close()

	rows := []*subjectKeyRow{}
	if err := gocsv.UnmarshalCSVWithoutHeaders(newKeyReader(f), &rows); err != nil {
		return nil, fmt.Errorf("failed to parse subject key %s: %w", path, err)
	}

	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[strings.TrimSpace(r.PNum)] = strings.TrimSpace(r.Name)
	}
	return &Key{path: path, values: values}, nil
}

// newKeyReader reads "a=b" lines; names may contain spaces and quotes
func newKeyReader(in io.Reader) gocsv.CSVReader {
	r := csv.NewReader(in)
	r.Comma = '='
	r.Comment = '#'
	r.FieldsPerRecord = 2
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return r
}
