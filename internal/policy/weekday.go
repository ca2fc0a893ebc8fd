package policy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPattern marks weekday patterns that cannot be parsed.
// It is fatal at startup; the pattern is never re-parsed mid-run.
var ErrInvalidPattern = errors.New("invalid weekday pattern")

// DaySet is a parsed weekday selection. Index 0 is Sunday.
type DaySet [7]bool

// ParseWeekdays parses a crontab-style day-of-week pattern into a DaySet.
//
// Rules:
//   - "*" (or empty) matches every weekday.
//   - Comma-separated tokens; each token is a single day "d" (0..7) or a
//     range "a-b" (0..7).
//   - 7 is an alias for 0 (Sunday), applied before range expansion.
//   - A range requires a <= b after alias normalization; the only allowed
//     degenerate case is a == b == 0. No wrap-around ranges.
func ParseWeekdays(pattern string) (DaySet, error) {
	var set DaySet

	p := strings.TrimSpace(pattern)
	if p == "" || p == "*" {
		for i := range set {
			set[i] = true
		}
		return set, nil
	}

	for _, tok := range strings.Split(p, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return DaySet{}, fmt.Errorf("%w: empty token in %q", ErrInvalidPattern, pattern)
		}
		lo, hi, found := strings.Cut(tok, "-")
		if !found {
			d, err := parseDay(tok, pattern)
			if err != nil {
				return DaySet{}, err
			}
			set[d] = true
			continue
		}
		a, err := parseDay(lo, pattern)
		if err != nil {
			return DaySet{}, err
		}
		b, err := parseDay(hi, pattern)
		if err != nil {
			return DaySet{}, err
		}
		if a > b {
			return DaySet{}, fmt.Errorf("%w: non-increasing range %q in %q", ErrInvalidPattern, tok, pattern)
		}
		for d := a; d <= b; d++ {
			set[d] = true
		}
	}
	return set, nil
}

// parseDay parses one day token and normalizes the 7 -> 0 (Sunday) alias.
func parseDay(tok, pattern string) (int, error) {
	tok = strings.TrimSpace(tok)
	d, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%w: bad day %q in %q", ErrInvalidPattern, tok, pattern)
	}
	if d < 0 || d > 7 {
		return 0, fmt.Errorf("%w: day %d out of range 0..7 in %q", ErrInvalidPattern, d, pattern)
	}
	if d == 7 {
		d = 0
	}
	return d, nil
}

// Matches reports whether the set includes the given weekday.
func (s DaySet) Matches(wd time.Weekday) bool {
	return s[int(wd)%7]
}

// All reports whether every weekday is selected.
func (s DaySet) All() bool {
	for _, ok := range s {
		if !ok {
			return false
		}
	}
	return true
}

func (s DaySet) String() string {
	if s.All() {
		return "*"
	}
	var b strings.Builder
	for d := 0; d < 7; d++ {
		if !s[d] {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(d))
	}
	if b.Len() == 0 {
		return "none"
	}
	return b.String()
}
