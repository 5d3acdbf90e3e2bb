// Package bids builds the lab's BIDS directory layout and reads the naming
// conventions of raw CTF recordings.
package bids

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// EmptyRoomSubject is the BIDS subject label holding noise recordings
const EmptyRoomSubject = "emptyroom"

// Layout resolves paths inside a BIDS root
type Layout struct {
	Root string
}

// SubjectDir returns <root>/sub-<pnum>
func (l Layout) SubjectDir(pnum string) string {
	return filepath.Join(l.Root, "sub-"+pnum)
}

// SessionDir returns <root>/sub-<pnum>/ses-<session>
func (l Layout) SessionDir(pnum, session string) string {
	return filepath.Join(l.SubjectDir(pnum), "ses-"+session)
}

// SubjectTempDir is where a subject's raw MEG is staged before conversion
func (l Layout) SubjectTempDir(pnum string) string {
	return filepath.Join(l.SubjectDir(pnum), "temp")
}

// SourceMEGDir returns <root>/sourcedata/sub-<pnum>/ses-meg/meg
func (l Layout) SourceMEGDir(pnum string) string {
	return filepath.Join(l.Root, "sourcedata", "sub-"+pnum, "ses-meg", "meg")
}

// EmptyRoomDir returns <root>/sub-emptyroom
func (l Layout) EmptyRoomDir() string {
	return l.SubjectDir(EmptyRoomSubject)
}

// EmptyRoomSessionDir returns <root>/sub-emptyroom/ses-<YYYYMMDD>
func (l Layout) EmptyRoomSessionDir(date int) string {
	return filepath.Join(l.EmptyRoomDir(), fmt.Sprintf("ses-%08d", date))
}

// EmptyRoomTempDir is the download area for empty-room archives
func (l Layout) EmptyRoomTempDir() string {
	return filepath.Join(l.EmptyRoomDir(), "temp")
}

// EmptyRoomSourceDir returns <root>/sourcedata/sub-emptyroom/ses-<YYYYMMDD>/meg
func (l Layout) EmptyRoomSourceDir(date int) string {
	return filepath.Join(l.Root, "sourcedata", "sub-"+EmptyRoomSubject, fmt.Sprintf("ses-%08d", date), "meg")
}

// ParticipantsFile returns <root>/participants.tsv
func (l Layout) ParticipantsFile() string {
	return filepath.Join(l.Root, "participants.tsv")
}

// EmptyRoomDates lists the dates of the empty-room sessions already in the dataset, ascending
func (l Layout) EmptyRoomDates() ([]int, error) {
	matches, err := filepath.Glob(filepath.Join(l.EmptyRoomDir(), "ses-*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list empty-room sessions: %w", err)
	}

	var dates []int
	for _, m := range matches {
		label := strings.TrimPrefix(filepath.Base(m), "ses-")
		date, err := strconv.Atoi(label)
		if err != nil {
			continue // ses-temp and friends
		}
		dates = append(dates, date)
	}
	sort.Ints(dates)
	return dates, nil
}

// Exists reports whether a path exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
