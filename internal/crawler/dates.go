package crawler

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical target date format.
const DateLayout = "2006-01-02"

// ErrInvalidDate reports a target date that is neither a keyword nor YYYY-MM-DD.
var ErrInvalidDate = errors.New("unsupported date format")

// ResolveDate maps "today", "yesterday" or YYYY-MM-DD to midnight of that
// day in now's location. An empty input means today.
func ResolveDate(input string, now time.Time) (time.Time, error) {
	loc := now.Location()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "today":
		return midnight, nil
	case "yesterday":
		return midnight.AddDate(0, 0, -1), nil
	}

	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(input), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q (want today, yesterday or YYYY-MM-DD)", ErrInvalidDate, input)
	}
	return day, nil
}
