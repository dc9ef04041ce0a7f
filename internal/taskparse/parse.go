// Package taskparse extracts scheduling tokens from free-form task text.
//
// A message like "завтра 14:00 встреча 2ч !30м" carries four tokens (date,
// time, duration, reminder) plus the task description. Extraction runs in a
// fixed order and each matched span is stripped before the next stage runs,
// because the reminder and duration patterns overlap syntactically ("!1h"
// vs "1h"). Parsing never fails; an absent pattern simply yields a nil/empty
// field.
package taskparse

import (
	"regexp"
	"strconv"
	"strings"
)

// Tokens is the structured result of Parse. Date and Time hold the raw
// matched markers ("" when absent); Duration and Reminder are minutes.
type Tokens struct {
	Date     string
	Time     string
	Duration *int
	Reminder *int
	Clean    string
}

// HasSchedule reports whether the text carried a recognizable date or time.
func (t Tokens) HasSchedule() bool { return t.Date != "" || t.Time != "" }

// dateVocabulary lists the recognized date markers: numeric D.M / D/M plus
// relative words and weekday names in Russian and English, longest form
// first within each group so abbreviations don't shadow full words.
const dateVocabulary = `\d{1,2}[./]\d{1,2}` +
	`|сегодня|сёдня|сёд|сев` +
	`|завтра|завтр|зав` +
	`|послезавтра|посл|поз|позав` +
	`|понедельник|пн` +
	`|вторник|вт` +
	`|среда|ср` +
	`|четверг|чт` +
	`|пятница|пт` +
	`|суббота|сб` +
	`|воскресенье|вс` +
	`|monday|mon` +
	`|tuesday|tue` +
	`|wednesday|wed` +
	`|thursday|thu` +
	`|friday|fri` +
	`|saturday|sat` +
	`|sunday|sun` +
	`|today` +
	`|tomorrow` +
	`|aftertomorrow`

var (
	reminderRe = regexp.MustCompile(`(?i)!(\d+)\s*(м|ч|д|m|h|d)`)
	durationRe = regexp.MustCompile(`(?i)(\d+)\s*(ч|м|h|m)`)
	timeRe     = regexp.MustCompile(`\b\d{1,2}[:\-]\d{2}\b`)
	// \b is ASCII-only in RE2, so Cyrillic markers get their word boundary
	// from explicit delimiter classes instead.
	dateRe = regexp.MustCompile(`(?i)(?:^|[\s.,;:!?(])(` + dateVocabulary + `)(?:[\s.,;:!?)]|$)`)
)

// Parse extracts tokens in the fixed order reminder, duration, time, date.
// Each stage matches against the text left over by the previous one.
func Parse(text string) Tokens {
	tok := Tokens{}
	rest := text

	if m := reminderRe.FindStringSubmatchIndex(rest); m != nil {
		n, _ := strconv.Atoi(rest[m[2]:m[3]])
		if v, ok := unitMinutes(rest[m[4]:m[5]], true); ok {
			mins := n * v
			tok.Reminder = &mins
		}
		rest = cut(rest, m[0], m[1])
	}

	if m := durationRe.FindStringSubmatchIndex(rest); m != nil {
		n, _ := strconv.Atoi(rest[m[2]:m[3]])
		if v, ok := unitMinutes(rest[m[4]:m[5]], false); ok {
			mins := n * v
			tok.Duration = &mins
		}
		rest = cut(rest, m[0], m[1])
	}

	if m := timeRe.FindStringIndex(rest); m != nil {
		tok.Time = rest[m[0]:m[1]]
		rest = cut(rest, m[0], m[1])
	}

	if m := dateRe.FindStringSubmatchIndex(rest); m != nil {
		tok.Date = strings.ToLower(rest[m[2]:m[3]])
		// Strip the marker only, keeping surrounding delimiters for the
		// whitespace collapse below.
		rest = cut(rest, m[2], m[3])
	}

	tok.Clean = strings.Join(strings.Fields(rest), " ")
	return tok
}

// unitMinutes maps a unit letter to its minute multiplier. Days are only
// meaningful for reminder offsets.
func unitMinutes(unit string, allowDays bool) (int, bool) {
	switch strings.ToLower(unit) {
	case "м", "m":
		return 1, true
	case "ч", "h":
		return 60, true
	case "д", "d":
		if allowDays {
			return 1440, true
		}
	}
	return 0, false
}

func cut(s string, from, to int) string {
	return s[:from] + " " + s[to:]
}
