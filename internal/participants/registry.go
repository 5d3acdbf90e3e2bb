// Package participants maintains the dataset's participants.tsv.
package participants

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

const (
	// NA marks an unknown value
	NA = "n/a"

	ColumnID         = "participant_id"
	ColumnSex        = "sex"
	ColumnHandedness = "handedness"
)

// Row is one participant keyed by column name
type Row map[string]string

// ID returns the participant_id value, e.g. sub-p1234
func (r Row) ID() string {
	return r[ColumnID]
}

// SubjectID returns the participant_id for a p-number
func SubjectID(pnum string) string {
	return "sub-" + pnum
}

// Registry is an in-memory copy of participants.tsv
type Registry struct {
	path   string
	header []string
	rows   []Row
}

// Load reads a participants.tsv. A missing file yields an empty registry
// with the default columns.
func Load(path string) (*Registry, error) {
	reg := &Registry{path: path}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		reg.header = append([]string(nil), DefaultColumns...)
		return reg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open participants file: %w", err)
	}
	defer f.Close()

	if err := reg.read(f); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return reg, nil
}

func (r *Registry) read(in io.Reader) error {
	cr := csv.NewReader(in)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		r.header = append([]string(nil), DefaultColumns...)
		return nil
	}

	r.header = records[0]
	for _, rec := range records[1:] {
		row := make(Row, len(r.header))
		for i, col := range r.header {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		r.rows = append(r.rows, row)
	}
	return nil
}

// Path returns the file the registry was loaded from
func (r *Registry) Path() string {
	return r.path
}

// Header returns the column order
func (r *Registry) Header() []string {
	return r.header
}

// Rows returns all participants in file order
func (r *Registry) Rows() []Row {
	return r.rows
}

// Find returns a copy of the row for pnum
func (r *Registry) Find(pnum string) (Row, bool) {
	id := SubjectID(pnum)
	for _, row := range r.rows {
		if row.ID() == id {
			out := make(Row, len(row))
			for k, v := range row {
				out[k] = v
			}
			return out, true
		}
	}
	return nil, false
}

// Put replaces any row with the same participant_id and keeps rows sorted.
// Columns unknown to the header are appended to it.
func (r *Registry) Put(row Row) {
	id := row.ID()
	kept := r.rows[:0]
	for _, existing := range r.rows {
		if existing.ID() != id {
			kept = append(kept, existing)
		}
	}
	r.rows = append(kept, row)

	known := make(map[string]bool, len(r.header))
	for _, col := range r.header {
		known[col] = true
	}
	for _, col := range orderedColumns(row) {
		if !known[col] {
			r.header = append(r.header, col)
			known[col] = true
		}
	}

	sort.SliceStable(r.rows, func(i, j int) bool {
		return r.rows[i].ID() < r.rows[j].ID()
	})
}

// Save writes the registry back to its path
func (r *Registry) Save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := r.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create participants file: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := w.Write(r.header); err != nil {
		f.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range r.rows {
		rec := make([]string, len(r.header))
		for i, col := range r.header {
			rec[i] = row[col]
		}
		if err := w.Write(rec); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", row.ID(), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush participants file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close participants file: %w", err)
	}

	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace participants file: %w", err)
	}
	return nil
}

// Upsert reloads the file so edits made since Load are kept, replaces the
// participant's row and writes the file.
func Upsert(path string, row Row) (*Registry, error) {
	reg, err := Load(path)
	if err != nil {
		return nil, err
	}
	reg.Put(row)
	if err := reg.Save(); err != nil {
		return nil, err
	}
	return reg, nil
}

// orderedColumns lists a row's columns with the defaults first
func orderedColumns(row Row) []string {
	seen := make(map[string]bool, len(row))
	var cols []string
	for _, col := range DefaultColumns {
		if _, ok := row[col]; ok {
			cols = append(cols, col)
			seen[col] = true
		}
	}
	var extra []string
	for col := range row {
		if !seen[col] {
			extra = append(extra, col)
		}
	}
	sort.Strings(extra)
	return append(cols, extra...)
}
