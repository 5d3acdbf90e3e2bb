package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"

	"github.com/neu-lab/meg2bids/internal/ui"
)

// parseDateFlag accepts any date dateparse understands and returns YYYYMMDD
func parseDateFlag(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}

	t, err := dateparse.ParseAny(value)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", value, err)
	}
	date, err := strconv.Atoi(t.Format("20060102"))
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return date, nil
}

// pnumArg returns the p-number argument, prompting for it when missing
func pnumArg(args []string) (string, error) {
	if len(args) > 0 {
		pnum := strings.TrimSpace(args[0])
		if err := ui.ValidatePNumber(pnum); err != nil {
			return "", err
		}
		return pnum, nil
	}
	if !interactive {
		return "", fmt.Errorf("a subject p-number is required")
	}
	return ui.Prompter{}.PromptForPNumber()
}
