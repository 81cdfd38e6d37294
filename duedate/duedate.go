// Package duedate turns a raw spoken transcript into a task title and an
// optional due date using keyword and date-phrase matching. It is not a
// general date parser: coverage is limited to the phrase forms people
// actually dictate ("due tomorrow", "by friday", "on 6/15/2025").
package duedate

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Keywords that scope a date phrase, in match-priority order. The first
// keyword with a parseable phrase after it wins.
var keywords = []string{"due", "by", "on", "for", "at"}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var months = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
}

var (
	monthDateRe   = regexp.MustCompile(`^([a-z]+)\s+(\d{1,2}),?\s+(\d{4})`)
	numericDateRe = regexp.MustCompile(`^(\d{1,2})([/-])(\d{1,2})([/-])(\d{4})`)
)

type phraseDate struct {
	phrase string
	date   time.Time
}

// relativeTable is rebuilt on every call so "today" stays correct across
// midnight; a cached table would go stale.
func relativeTable(now time.Time) []phraseDate {
	sod := startOfDay(now)
	return []phraseDate{
		{"today", sod},
		{"tomorrow", sod.AddDate(0, 0, 1)},
		{"next week", sod.AddDate(0, 0, 7)},
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextWeekday resolves a weekday name to its next occurrence strictly
// after today: asking for today's weekday yields the date a week out.
func NextWeekday(now time.Time, day time.Weekday) time.Time {
	ahead := (int(day) - int(now.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return startOfDay(now).AddDate(0, 0, ahead)
}

// Extract maps a transcript to (title, due date). The due date is nil
// when no recognizable date phrase is present. Matching follows a fixed
// priority: keyword-scoped phrases first, then standalone phrases, with
// explicit calendar dates only reachable behind a keyword.
func Extract(text string, now time.Time) (string, *time.Time) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", nil
	}
	lower := strings.ToLower(trimmed)

	if title, due, ok := matchKeyword(trimmed, lower, now); ok {
		return finishTitle(title), &due
	}
	if title, due, ok := matchStandalone(trimmed, lower, now); ok {
		return finishTitle(title), &due
	}
	return finishTitle(trimmed), nil
}

// matchKeyword scans each keyword in priority order and, for each
// occurrence, tries a relative phrase, then a weekday, then an explicit
// date immediately after "<keyword> ". The matched span and everything
// following it are dropped from the title.
func matchKeyword(orig, lower string, now time.Time) (string, time.Time, bool) {
	for _, kw := range keywords {
		for _, idx := range wordIndexes(lower, kw) {
			after := idx + len(kw)
			if after >= len(lower) || lower[after] != ' ' {
				continue
			}
			rest := lower[after+1:]
			if due, ok := matchPhraseAt(rest, now); ok {
				return strings.TrimSpace(orig[:idx]), due, true
			}
			if due, ok := parseExplicit(rest, now); ok {
				return strings.TrimSpace(orig[:idx]), due, true
			}
		}
	}
	return "", time.Time{}, false
}

// matchPhraseAt matches a relative phrase or weekday name anchored at the
// start of s, requiring a word boundary after the match.
func matchPhraseAt(s string, now time.Time) (time.Time, bool) {
	for _, pd := range relativeTable(now) {
		if hasWordPrefix(s, pd.phrase) {
			return pd.date, true
		}
	}
	for name, day := range weekdays {
		if hasWordPrefix(s, name) {
			return NextWeekday(now, day), true
		}
	}
	return time.Time{}, false
}

// parseExplicit recognizes "june 15, 2025", "6/15/2025" and "6-15-2025"
// at the start of s. Out-of-range month or day values are not an error;
// the phrase is simply not a date.
func parseExplicit(s string, now time.Time) (time.Time, bool) {
	if m := monthDateRe.FindStringSubmatch(s); m != nil {
		month, ok := months[m[1]]
		if ok {
			day, _ := strconv.Atoi(m[2])
			year, _ := strconv.Atoi(m[3])
			if day >= 1 && day <= 31 {
				return time.Date(year, month, day, 0, 0, 0, 0, now.Location()), true
			}
		}
	}
	if m := numericDateRe.FindStringSubmatch(s); m != nil && m[2] == m[4] {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[3])
		year, _ := strconv.Atoi(m[5])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location()), true
		}
	}
	return time.Time{}, false
}

// matchStandalone is the lower-confidence fallback: a bare relative
// phrase or weekday anywhere in the text. The phrase is stripped from the
// title only when it sits at the very start or very end; interior matches
// keep the title intact but still produce the date.
func matchStandalone(orig, lower string, now time.Time) (string, time.Time, bool) {
	try := func(phrase string, date time.Time) (string, time.Time, bool) {
		idxs := wordIndexes(lower, phrase)
		if len(idxs) == 0 {
			return "", time.Time{}, false
		}
		idx := idxs[0]
		end := idx + len(phrase)
		switch {
		case idx == 0:
			return strings.TrimSpace(orig[end:]), date, true
		case end == len(lower):
			return strings.TrimSpace(orig[:idx]), date, true
		default:
			return orig, date, true
		}
	}
	for _, pd := range relativeTable(now) {
		if title, date, ok := try(pd.phrase, pd.date); ok {
			return title, date, true
		}
	}
	for _, name := range []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"} {
		if title, date, ok := try(name, NextWeekday(now, weekdays[name])); ok {
			return title, date, true
		}
	}
	return "", time.Time{}, false
}

// wordIndexes returns every index where word occurs in s bounded by
// non-letters on both sides, in left-to-right order.
func wordIndexes(s, word string) []int {
	var idxs []int
	for from := 0; ; {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return idxs
		}
		idx := from + i
		if boundaryBefore(s, idx) && boundaryAfter(s, idx+len(word)) {
			idxs = append(idxs, idx)
		}
		from = idx + len(word)
	}
}

func hasWordPrefix(s, word string) bool {
	return strings.HasPrefix(s, word) && boundaryAfter(s, len(word))
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !unicode.IsLetter(r)
}

// finishTitle trims whitespace and capitalizes only the first rune,
// leaving the rest of the dictated casing alone.
func finishTitle(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
