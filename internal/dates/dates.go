// Package dates resolves the raw date mentions found by the extraction
// engine into calendar dates relative to a base time.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/rotisserie/eris"
)

// ErrUnresolved is returned when a mention cannot be turned into a date.
var ErrUnresolved = eris.New("dates: unresolved mention")

var parser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

var (
	reOffset   = regexp.MustCompile(`^(?:in\s+)?(\d+)\s+(day|week|month)s?(?:\s+from\s+now)?$`)
	reWeekday  = regexp.MustCompile(`^(?:(this|next)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
	reEndOf    = regexp.MustCompile(`^end\s+of\s+(?:the\s+)?(week|month|quarter|year)$`)
	reOrdinal  = regexp.MustCompile(`(\d)(?:st|nd|rd|th)\b`)
	reSpaceRun = regexp.MustCompile(`\s+`)
)

// Layouts tried in order. The bool reports whether the layout carries a
// year.
var layouts = []struct {
	layout  string
	hasYear bool
}{
	{"2006-01-02", true},
	{"1/2/2006", true},
	{"1/2/06", true},
	{"January 2, 2006", true},
	{"January 2 2006", true},
	{"Jan 2, 2006", true},
	{"Jan 2 2006", true},
	{"1/2", false},
	{"January 2", false},
	{"Jan 2", false},
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Resolve converts a mention such as "next Tuesday", "2 weeks" or
// "March 31st" into a date at midnight in base's location. Months are
// counted as 30 days. Dates without a year that fall before base roll over
// to the next year.
func Resolve(mention string, base time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(mention))
	s = reSpaceRun.ReplaceAllString(s, " ")
	if s == "" {
		return time.Time{}, eris.Wrap(ErrUnresolved, "dates: empty mention")
	}
	today := midnight(base)

	switch s {
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	case "next week":
		return today.AddDate(0, 0, 7), nil
	case "next month":
		return today.AddDate(0, 0, 30), nil
	case "this week":
		return endOf("week", today), nil
	case "this month":
		return endOf("month", today), nil
	}

	if m := reOffset.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, eris.Wrapf(err, "dates: parse offset %q", mention)
		}
		switch m[2] {
		case "day":
			return today.AddDate(0, 0, n), nil
		case "week":
			return today.AddDate(0, 0, 7*n), nil
		default:
			return today.AddDate(0, 0, 30*n), nil
		}
	}

	if m := reWeekday.FindStringSubmatch(s); m != nil {
		wd := weekdays[m[2]]
		if m[1] == "this" && today.Weekday() == wd {
			return today, nil
		}
		return nextWeekday(today, wd), nil
	}

	if m := reEndOf.FindStringSubmatch(s); m != nil {
		return endOf(m[1], today), nil
	}

	if t, ok := parseLayout(s, today); ok {
		return t, nil
	}

	r, err := parser.Parse(s, base)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "dates: parse %q", mention)
	}
	if r == nil {
		return time.Time{}, eris.Wrapf(ErrUnresolved, "dates: %q", mention)
	}
	return midnight(r.Time), nil
}

func parseLayout(s string, today time.Time) (time.Time, bool) {
	s = reOrdinal.ReplaceAllString(s, "$1")
	for _, l := range layouts {
		t, err := time.ParseInLocation(l.layout, s, today.Location())
		if err != nil {
			continue
		}
		if l.hasYear {
			return t, true
		}
		t = time.Date(today.Year(), t.Month(), t.Day(), 0, 0, 0, 0, today.Location())
		if t.Before(today) {
			t = t.AddDate(1, 0, 0)
		}
		return t, true
	}
	return time.Time{}, false
}

// nextWeekday returns the first day strictly after today falling on wd.
func nextWeekday(today time.Time, wd time.Weekday) time.Time {
	delta := int(wd - today.Weekday())
	if delta <= 0 {
		delta += 7
	}
	return today.AddDate(0, 0, delta)
}

// endOf returns the last day of the period containing today. Weeks end on
// Friday; after Friday the following Friday is used.
func endOf(unit string, today time.Time) time.Time {
	loc := today.Location()
	switch unit {
	case "week":
		delta := int(time.Friday - today.Weekday())
		if delta < 0 {
			delta += 7
		}
		return today.AddDate(0, 0, delta)
	case "month":
		return time.Date(today.Year(), today.Month()+1, 0, 0, 0, 0, 0, loc)
	case "quarter":
		q := (int(today.Month()) - 1) / 3
		return time.Date(today.Year(), time.Month(q*3+4), 0, 0, 0, 0, 0, loc)
	default:
		return time.Date(today.Year(), time.December, 31, 0, 0, 0, 0, loc)
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
