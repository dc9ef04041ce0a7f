// Package schedule converts extracted tokens into absolute due instants.
//
// All timezone handling is fixed-offset (no DST tables): user timezones are
// ±HH:MM strings, defaulting to +03:00 when absent or malformed, matching
// how the assistant has always stored them.
package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sadrozzy/Assistant-AI/internal/taskparse"
)

// DefaultOffset is applied when a user's timezone is missing or malformed.
const DefaultOffset = "+03:00"

var offsetRe = regexp.MustCompile(`^([+-])(\d{2}):(\d{2})$`)

// Location returns the fixed-offset location for a ±HH:MM string,
// falling back to DefaultOffset.
func Location(tz string) *time.Location {
	loc, ok := parseOffset(strings.TrimSpace(tz))
	if !ok {
		loc, _ = parseOffset(DefaultOffset)
	}
	return loc
}

func parseOffset(tz string) (*time.Location, bool) {
	m := offsetRe.FindStringSubmatch(tz)
	if m == nil {
		return nil, false
	}
	h, _ := strconv.Atoi(m[2])
	mm, _ := strconv.Atoi(m[3])
	if h > 14 || mm > 59 {
		return nil, false
	}
	secs := (h*60 + mm) * 60
	if m[1] == "-" {
		secs = -secs
	}
	return time.FixedZone(tz, secs), true
}

// ValidOffset reports whether tz is a well-formed ±HH:MM offset.
func ValidOffset(tz string) bool {
	_, ok := parseOffset(strings.TrimSpace(tz))
	return ok
}

// Resolution is the outcome of resolving tokens against a user's clock.
type Resolution struct {
	// Due is the absolute due instant in UTC, nil when the tokens carry
	// no resolvable point in time.
	Due *time.Time
	// RemindAt is minutes before Due; copied from the tokens only when
	// Due resolved, never derived independently.
	RemindAt *int
}

// Resolve combines tokens with the user's fixed offset and the current
// instant. A bare time token means "today at that time", rolled forward one
// day if already past. A date marker resolves to a calendar day; combined
// with a time token it yields an instant, alone it stays unresolved (the
// task is still recognized as scheduled by the caller).
func Resolve(tok taskparse.Tokens, tz string, now time.Time) Resolution {
	loc := Location(tz)
	nowLocal := now.In(loc)

	h, m, hasTime := parseClock(tok.Time)

	var due time.Time
	switch {
	case tok.Date != "":
		day, ok := markerDay(tok.Date, nowLocal)
		if !ok || !hasTime {
			return Resolution{}
		}
		due = time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, loc)
	case hasTime:
		due = time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(), h, m, 0, 0, loc)
		if due.Before(nowLocal) {
			due = due.AddDate(0, 0, 1)
		}
	default:
		return Resolution{}
	}

	utc := due.UTC()
	return Resolution{Due: &utc, RemindAt: tok.Reminder}
}

// parseClock parses the extractor's H{1,2}[:-]MM marker.
func parseClock(marker string) (h, m int, ok bool) {
	if marker == "" {
		return 0, 0, false
	}
	sep := ":"
	if strings.Contains(marker, "-") {
		sep = "-"
	}
	parts := strings.SplitN(marker, sep, 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h > 23 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

var weekdays = map[string]time.Weekday{
	"понедельник": time.Monday, "пн": time.Monday,
	"вторник": time.Tuesday, "вт": time.Tuesday,
	"среда": time.Wednesday, "ср": time.Wednesday,
	"четверг": time.Thursday, "чт": time.Thursday,
	"пятница": time.Friday, "пт": time.Friday,
	"суббота": time.Saturday, "сб": time.Saturday,
	"воскресенье": time.Sunday, "вс": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,
}

var numericDateRe = regexp.MustCompile(`^(\d{1,2})[./](\d{1,2})$`)

// markerDay maps a date marker to a local calendar day. Relative markers
// count from today; weekdays resolve to the next occurrence, today
// included (roll forward only, never back).
func markerDay(marker string, nowLocal time.Time) (time.Time, bool) {
	marker = strings.ToLower(marker)

	if m := numericDateRe.FindStringSubmatch(marker); m != nil {
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if d < 1 || d > 31 || mo < 1 || mo > 12 {
			return time.Time{}, false
		}
		return time.Date(nowLocal.Year(), time.Month(mo), d, 0, 0, 0, 0, nowLocal.Location()), true
	}

	switch marker {
	case "сегодня", "сёдня", "сёд", "сев", "today":
		return nowLocal, true
	case "завтра", "завтр", "зав", "tomorrow":
		return nowLocal.AddDate(0, 0, 1), true
	case "послезавтра", "посл", "поз", "позав", "aftertomorrow":
		return nowLocal.AddDate(0, 0, 2), true
	}

	if wd, ok := weekdays[marker]; ok {
		delta := (int(wd) - int(nowLocal.Weekday()) + 7) % 7
		return nowLocal.AddDate(0, 0, delta), true
	}
	return time.Time{}, false
}
