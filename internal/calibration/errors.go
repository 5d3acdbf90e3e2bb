package calibration

import (
	"errors"
	"fmt"
)

// ErrEmptyCatalog is returned when the initial listing holds no archives to compare against
var ErrEmptyCatalog = errors.New("calibration catalog has no entries")

// MalformedDateError reports an entry whose date is not a valid YYYYMMDD calendar date
type MalformedDateError struct {
	Locator string // empty when the offending date is the search target
	Date    string
	Err     error
}

func (e *MalformedDateError) Error() string {
	if e.Locator == "" {
		return fmt.Sprintf("malformed target date %q", e.Date)
	}
	return fmt.Sprintf("malformed date %q in catalog entry %s", e.Date, e.Locator)
}

func (e *MalformedDateError) Unwrap() error {
	return e.Err
}
