package meeting

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ErrUnparseableDate means no explicit pattern and no fallback parse
// succeeded. A result that parsed fine but lies in the past is not this
// error; callers check past-ness themselves.
var ErrUnparseableDate = errors.New("meeting: unrecognized date")

// Meetings default to 19:00 local when no time was given.
const (
	defaultHour   = 19
	defaultMinute = 0
)

// dateLayouts is tried in order; the first layout that matches wins. The
// order is the tie-break policy for ambiguous inputs and must stay fixed.
var dateLayouts = []string{
	"January 2 2006",
	"January 2",
	"2 January 2006",
	"2 January",
	"Jan 2 2006",
	"Jan 2",
	"2 Jan 2006",
	"2 Jan",
	"2006-1-2",
	"2.1.2006",
	"2.1",
	"1/2/2006",
	"1/2",
}

var (
	clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?:\s*(am|pm))?$`)
	ampmRe  = regexp.MustCompile(`^(\d{1,2})(am|pm)$`)
	yearRe  = regexp.MustCompile(`\b\d{4}\b`)
)

// Parser turns free-form date/time text into an absolute instant in a fixed
// target timezone.
type Parser struct {
	Loc *time.Location
	Now func() time.Time
}

func NewParser(loc *time.Location) *Parser {
	return &Parser{Loc: loc, Now: time.Now}
}

// Parse resolves dateText (and optional timeText) to an instant in the
// parser's timezone. When timeText is empty, a trailing clock or am/pm token
// inside dateText is treated as the time component. When a date with no
// explicit 4-digit year lands in the past, the next occurrence a year later
// is assumed.
func (p *Parser) Parse(dateText, timeText string) (time.Time, error) {
	dateText = strings.TrimSpace(dateText)
	timeText = strings.TrimSpace(timeText)
	if dateText == "" {
		return time.Time{}, ErrUnparseableDate
	}

	if timeText == "" {
		dateText, timeText = splitTimeToken(dateText)
	}
	hour, minute, haveTime := parseClock(timeText)
	if !haveTime {
		hour, minute = defaultHour, defaultMinute
	}

	now := p.Now().In(p.Loc)
	explicitYear := yearRe.MatchString(dateText)

	for _, layout := range dateLayouts {
		d, err := time.ParseInLocation(layout, dateText, p.Loc)
		if err != nil {
			continue
		}
		year := d.Year()
		if !strings.Contains(layout, "2006") {
			year = now.Year()
		}
		t := time.Date(year, d.Month(), d.Day(), hour, minute, 0, 0, p.Loc)
		if t.Before(now) && !explicitYear {
			t = t.AddDate(1, 0, 0)
		}
		return t, nil
	}

	// Generic fallback, accepted only when it resolves to the future.
	t, err := dateparse.ParseIn(dateText, p.Loc)
	if err != nil {
		return time.Time{}, ErrUnparseableDate
	}
	if !haveTime && t.Hour() == 0 && t.Minute() == 0 {
		t = time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, p.Loc)
	} else if haveTime {
		t = time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, p.Loc)
	}
	if !t.After(now) {
		return time.Time{}, ErrUnparseableDate
	}
	return t, nil
}

// splitTimeToken peels a trailing time token off free-form date text.
func splitTimeToken(text string) (date, timeToken string) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return text, ""
	}
	last := strings.ToLower(fields[len(fields)-1])
	if clockRe.MatchString(last) || ampmRe.MatchString(last) {
		return strings.Join(fields[:len(fields)-1], " "), last
	}
	// "7 pm" arrives as two tokens.
	if len(fields) >= 3 && (last == "am" || last == "pm") {
		prev := fields[len(fields)-2]
		if _, err := strconv.Atoi(prev); err == nil {
			return strings.Join(fields[:len(fields)-2], " "), prev + last
		}
	}
	return text, ""
}

func parseClock(s string) (hour, minute int, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, 0, false
	}
	if m := clockRe.FindStringSubmatch(s); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		hour = applyMeridiem(hour, m[3])
		if hour > 23 || minute > 59 {
			return 0, 0, false
		}
		return hour, minute, true
	}
	if m := ampmRe.FindStringSubmatch(s); m != nil {
		hour, _ = strconv.Atoi(m[1])
		hour = applyMeridiem(hour, m[2])
		if hour > 23 {
			return 0, 0, false
		}
		return hour, 0, true
	}
	return 0, 0, false
}

func applyMeridiem(hour int, meridiem string) int {
	switch meridiem {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return hour
}
