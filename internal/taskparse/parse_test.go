package taskparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderSensitivity(t *testing.T) {
	// Reminder is scanned (and stripped) before duration, so "!30m" can
	// never be eaten by the duration matcher regardless of token order.
	for _, text := range []string{"call John 2h !30m", "call John !30m 2h"} {
		tok := Parse(text)
		require.NotNil(t, tok.Duration, text)
		require.NotNil(t, tok.Reminder, text)
		assert.Equal(t, 120, *tok.Duration, text)
		assert.Equal(t, 30, *tok.Reminder, text)
		assert.Equal(t, "call John", tok.Clean, text)
	}
}

func TestParseUnits(t *testing.T) {
	cases := []struct {
		text     string
		reminder *int
		duration *int
	}{
		{"встреча !15м", ip(15), nil},
		{"встреча !1ч", ip(60), nil},
		{"встреча !1д", ip(1440), nil},
		{"meeting !2d", ip(2880), nil},
		{"уборка 30м", nil, ip(30)},
		{"deep work 3h", nil, ip(180)},
		{"созвон 1ч !10м", ip(10), ip(60)},
	}
	for _, tc := range cases {
		tok := Parse(tc.text)
		if tc.reminder == nil {
			assert.Nil(t, tok.Reminder, tc.text)
		} else {
			require.NotNil(t, tok.Reminder, tc.text)
			assert.Equal(t, *tc.reminder, *tok.Reminder, tc.text)
		}
		if tc.duration == nil {
			assert.Nil(t, tok.Duration, tc.text)
		} else {
			require.NotNil(t, tok.Duration, tc.text)
			assert.Equal(t, *tc.duration, *tok.Duration, tc.text)
		}
	}
}

func TestParseTimeMarker(t *testing.T) {
	assert.Equal(t, "14:00", Parse("встреча 14:00").Time)
	assert.Equal(t, "9-30", Parse("standup 9-30").Time)
	assert.Equal(t, "", Parse("no time here").Time)
}

func TestParseDateMarkers(t *testing.T) {
	cases := map[string]string{
		"сделать отчёт завтра":  "завтра",
		"сделать послезавтра":   "послезавтра",
		"meeting tomorrow":      "tomorrow",
		"standup monday":        "monday",
		"планёрка пн":           "пн",
		"оплатить счёт 21.04":   "21.04",
		"оплатить счёт 21/04":   "21/04",
		"Сегодня купить хлеб":   "сегодня",
		"созвон в пятницу? нет": "", // declined word form is not a marker
	}
	for text, want := range cases {
		assert.Equal(t, want, Parse(text).Date, text)
	}
}

func TestParseFullMessage(t *testing.T) {
	tok := Parse("завтра 14:00 встреча с командой 2ч !30м")
	require.NotNil(t, tok.Duration)
	require.NotNil(t, tok.Reminder)
	assert.Equal(t, "завтра", tok.Date)
	assert.Equal(t, "14:00", tok.Time)
	assert.Equal(t, 120, *tok.Duration)
	assert.Equal(t, 30, *tok.Reminder)
	assert.Equal(t, "встреча с командой", tok.Clean)
	assert.True(t, tok.HasSchedule())
}

func TestParseIdempotentOnClean(t *testing.T) {
	inputs := []string{
		"завтра 14:00 встреча 2ч !30м",
		"call John 2h !30m",
		"monday 9-30 standup !1h",
		"просто текст без токенов",
	}
	for _, text := range inputs {
		clean := Parse(text).Clean
		again := Parse(clean)
		assert.Equal(t, "", again.Date, text)
		assert.Equal(t, "", again.Time, text)
		assert.Nil(t, again.Duration, text)
		assert.Nil(t, again.Reminder, text)
		assert.Equal(t, clean, again.Clean, text)
	}
}

func TestParseNoTokens(t *testing.T) {
	tok := Parse("купить молоко")
	assert.Equal(t, "", tok.Date)
	assert.Equal(t, "", tok.Time)
	assert.Nil(t, tok.Duration)
	assert.Nil(t, tok.Reminder)
	assert.Equal(t, "купить молоко", tok.Clean)
	assert.False(t, tok.HasSchedule())
}

func ip(v int) *int { return &v }
