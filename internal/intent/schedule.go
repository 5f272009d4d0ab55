package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

var clockExpr = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)

// ParseScheduleTime extracts a publish time from a message. It accepts
// "tomorrow" and relative weekday names, with an optional clock time;
// without a clock the slot defaults to 09:00 local. The zero time means
// no date token was found at all: publish immediately.
func ParseScheduleTime(msg string, now time.Time) time.Time {
	msg = strings.ToLower(msg)

	var target time.Time
	switch {
	case strings.Contains(msg, "tomorrow"):
		target = now.AddDate(0, 0, 1)
	default:
		for i, day := range weekdays {
			if !strings.Contains(msg, day) {
				continue
			}
			ahead := (i - int(now.Weekday()) + 7) % 7
			if ahead == 0 {
				ahead = 7
			}
			target = now.AddDate(0, 0, ahead)
			break
		}
	}
	if target.IsZero() {
		return time.Time{}
	}

	// A bare digit is a post index, not a clock time: only ":mm" or an
	// am/pm suffix counts as an explicit time. Scan every digit run so
	// "approve 2 tomorrow 5pm" skips the index and finds the clock.
	hour, minute := 9, 0
	for _, m := range clockExpr.FindAllStringSubmatch(msg, -1) {
		if m[2] == "" && m[3] == "" {
			continue
		}
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if m[3] == "pm" && hour < 12 {
			hour += 12
		}
		if m[3] == "am" && hour == 12 {
			hour = 0
		}
		break
	}
	return time.Date(target.Year(), target.Month(), target.Day(), hour, minute, 0, 0, target.Location())
}
