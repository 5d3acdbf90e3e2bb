package participants

import (
	"fmt"
	"os"
	"path/filepath"
)

// Session column values
const (
	Absent  = "0"
	Present = "1"
)

// DefaultColumns is the column set given to a new participant
var DefaultColumns = []string{
	ColumnID,
	ColumnSex,
	ColumnHandedness,
	"ses-clinical",
	"ses-clinicalpostop",
	"ses-research",
	"ses-research_anat-t2fatsat",
	"ses-research_dwi",
	"ses-research_perf",
	"ses-research_task-resteyesopen",
	"ses-research_task-resteyesopen_physio",
	"ses-research_task-resteyesclosed",
	"ses-research_task-resteyesclosed_physio",
	"ses-researchpostop",
	"ses-researchpostop_anat-t2fatsat",
	"ses-researchpostop_dwi",
	"ses-researchpostop_perf",
	"ses-researchpostop_task-resteyesopen",
	"ses-researchpostop_task-resteyesopen_physio",
	"ses-researchpostop_task-resteyesclosed",
	"ses-researchpostop_task-resteyesclosed_physio",
	"ses-meg",
	"ses-meg_task-resteyesopen",
	"ses-meg_task-resteyesclosed",
	"ses-megpostop",
	"ses-megpostop_task-resteyesopen",
	"ses-megpostop_task-resteyesclosed",
	"ses-altclinical",
	"ses-altclinical_anat-t1",
	"ses-altclinical_anat-t2",
	"ses-altclinical_anat-flair",
	"ses-altclinicalpostop",
	"ses-altclinicalpostop_anat-t1",
	"ses-altclinicalpostop_anat-t2",
	"ses-altclinicalpostop_anat-flair",
}

// FieldOptions lists the accepted values of the operator-entered columns
var FieldOptions = map[string][]string{
	ColumnSex:        {"M", "F", NA},
	ColumnHandedness: {"L", "R", NA},
}

// NewRow returns a participant with unknown demographics and no sessions
func NewRow(pnum string) Row {
	row := make(Row, len(DefaultColumns))
	for _, col := range DefaultColumns {
		row[col] = Absent
	}
	row[ColumnID] = SubjectID(pnum)
	row[ColumnSex] = NA
	row[ColumnHandedness] = NA
	return row
}

// MissingFields returns the operator-entered columns still set to n/a
func MissingFields(row Row) []string {
	var out []string
	for _, col := range []string{ColumnSex, ColumnHandedness} {
		if row[col] == NA {
			out = append(out, col)
		}
	}
	return out
}

// ValidValue reports whether value is accepted for field
func ValidValue(field, value string) bool {
	for _, opt := range FieldOptions[field] {
		if opt == value {
			return true
		}
	}
	return false
}

// SetField stores an operator-entered value
func SetField(row Row, field, value string) error {
	if _, ok := FieldOptions[field]; !ok {
		return fmt.Errorf("%s is not an editable field", field)
	}
	if !ValidValue(field, value) {
		return fmt.Errorf("invalid %s %q: options are %v", field, value, FieldOptions[field])
	}
	row[field] = value
	return nil
}

// derivedCheck marks column <session><suffix> when pattern matches under the session dir
type derivedCheck struct {
	suffix  string
	pattern string // glob relative to the session dir
	dir     bool   // pattern names a directory that must exist
}

var derivedChecks = map[string][]derivedCheck{
	"ses-research": {
		{suffix: "_anat-t2fatsat", pattern: "anat/*fatsat*T2w*"},
		{suffix: "_dwi", pattern: "dwi", dir: true},
		{suffix: "_perf", pattern: "perf", dir: true},
		{suffix: "_task-resteyesopen", pattern: "func/*resteyesopen*"},
		{suffix: "_task-resteyesopen_physio", pattern: "func/*resteyesopen*physio*"},
		{suffix: "_task-resteyesclosed", pattern: "func/*resteyesclosed*"},
		{suffix: "_task-resteyesclosed_physio", pattern: "func/*resteyesclosed*physio*"},
	},
	"ses-meg": {
		{suffix: "_task-resteyesopen", pattern: "meg/*resteyesopen*"},
		{suffix: "_task-resteyesclosed", pattern: "meg/*resteyesclosed*"},
	},
	"ses-altclinical": {
		{suffix: "_anat-t1", pattern: "anat/*T1w*"},
		{suffix: "_anat-t2", pattern: "anat/*T2w*"},
		{suffix: "_anat-flair", pattern: "anat/*FLAIR*"},
	},
}

// ScanSessions sets the session columns of row for every ses-* directory
// under subjectDir, then the per-modality columns of the research, meg and
// altclinical sessions. Columns the row does not carry are left alone.
// It returns the columns that changed from absent to present.
func ScanSessions(row Row, subjectDir string) ([]string, error) {
	var added []string
	mark := func(col string) {
		if v, ok := row[col]; ok && v != Present {
			row[col] = Present
			added = append(added, col)
		}
	}

	sessions, err := filepath.Glob(filepath.Join(subjectDir, "ses-*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	for _, ses := range sessions {
		mark(filepath.Base(ses))
	}

	for _, postop := range []string{"", "postop"} {
		for _, base := range []string{"ses-research", "ses-meg", "ses-altclinical"} {
			session := base + postop
			if row[session] != Present {
				continue
			}
			sesDir := filepath.Join(subjectDir, session)
			for _, check := range derivedChecks[base] {
				found, err := check.match(sesDir)
				if err != nil {
					return nil, err
				}
				if found {
					mark(session + check.suffix)
				}
			}
		}
	}
	return added, nil
}

func (c derivedCheck) match(sesDir string) (bool, error) {
	if c.dir {
		info, err := os.Stat(filepath.Join(sesDir, c.pattern))
		return err == nil && info.IsDir(), nil
	}
	matches, err := filepath.Glob(filepath.Join(sesDir, c.pattern))
	if err != nil {
		return false, fmt.Errorf("failed to match %s: %w", c.pattern, err)
	}
	return len(matches) > 0, nil
}
