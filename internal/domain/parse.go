package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyDate        = errors.New("empty date")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrInvalidDeadline  = errors.New("invalid deadline")
	ErrInvalidHours     = errors.New("invalid hours")
)

// ParseUserDate parses DD.MM.YYYY strictly.
func ParseUserDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrEmptyDate
	}
	t, err := time.Parse(userDateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// ParseDateRange parses "DD.MM.YYYY-DD.MM.YYYY". Reversed ranges are swapped.
func ParseDateRange(s string) (from, to Date, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 2)
	if len(parts) != 2 {
		return Date{}, Date{}, fmt.Errorf("%w: expected DD.MM.YYYY-DD.MM.YYYY", ErrInvalidDateRange)
	}
	from, err = ParseUserDate(parts[0])
	if err != nil {
		return Date{}, Date{}, fmt.Errorf("from: %w", err)
	}
	to, err = ParseUserDate(parts[1])
	if err != nil {
		return Date{}, Date{}, fmt.Errorf("to: %w", err)
	}
	if to.Before(from) {
		from, to = to, from
	}
	return from, to, nil
}

// ParseDeadline parses "HH:MM" into an offset from local midnight.
func ParseDeadline(s string) (time.Duration, error) {
	mins, err := parseHHMM(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDeadline, err)
	}
	return time.Duration(mins) * time.Minute, nil
}

// FormatDeadline returns HH:MM for an offset from midnight.
func FormatDeadline(d time.Duration) string {
	return FormatMinutes(int(d / time.Minute))
}

func parseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, errors.New("expected HH:MM")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, errors.New("invalid hour")
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, errors.New("invalid minute")
	}
	return h*60 + m, nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// FormatMinutes returns HH:MM for minutes since midnight (00:00..23:59).
func FormatMinutes(mins int) string {
	if mins < 0 {
		mins = 0
	}
	h := mins / 60
	m := mins % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}

// ValidateTZ checks that tz is a fixed offset or a loadable location and
// returns its canonical name.
func ValidateTZ(tz string) (string, error) {
	z, err := ParseZone(tz)
	if err != nil {
		return "", err
	}
	return z.Name(), nil
}

// Report line headers, in the order they appear in the template.
const (
	FieldName     = "Name:"
	FieldDate     = "Date:"
	FieldHours    = "Hours:"
	FieldDone     = "Done:"
	FieldProblems = "Problems:"
	FieldPlanned  = "Planned:"
)

var requiredFields = []string{FieldName, FieldDate, FieldHours, FieldDone, FieldProblems, FieldPlanned}

var (
	reportDateRe  = regexp.MustCompile(`(?im)^Date:\s*(\d{2}\.\d{2}\.\d{4})`)
	reportHoursRe = regexp.MustCompile(`(?im)^Hours:\s*(\d+)`)
	fieldRes      = func() map[string]*regexp.Regexp {
		res := make(map[string]*regexp.Regexp, len(requiredFields))
		for _, f := range requiredFields {
			res[f] = regexp.MustCompile(`(?im)^` + regexp.QuoteMeta(f))
		}
		return res
	}()
)

// MissingFieldError reports the first template line absent from a report.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("report has no %q line", e.Field)
}

// ParsedReport is what a report text yields before it is stored.
type ParsedReport struct {
	Date  Date
	Hours int
	Text  string
}

// ParseReport checks the report template and extracts its date and hours.
func ParseReport(text string) (ParsedReport, error) {
	text = strings.TrimSpace(text)
	for _, f := range requiredFields {
		if !fieldRes[f].MatchString(text) {
			return ParsedReport{}, &MissingFieldError{Field: f}
		}
	}

	dm := reportDateRe.FindStringSubmatch(text)
	if len(dm) != 2 {
		return ParsedReport{}, fmt.Errorf("%w: expected DD.MM.YYYY", ErrInvalidDate)
	}
	date, err := ParseUserDate(dm[1])
	if err != nil {
		return ParsedReport{}, err
	}

	hm := reportHoursRe.FindStringSubmatch(text)
	if len(hm) != 2 {
		return ParsedReport{}, ErrInvalidHours
	}
	hours, err := strconv.Atoi(hm[1])
	if err != nil {
		return ParsedReport{}, fmt.Errorf("%w: %v", ErrInvalidHours, err)
	}

	return ParsedReport{Date: date, Hours: hours, Text: text}, nil
}
