package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ZoneKind tags a Zone as a fixed UTC offset or a named tz database zone.
type ZoneKind int

const (
	ZoneFixed ZoneKind = iota
	ZoneNamed
)

const (
	maxOffsetHours = 14
	utcPrefix      = "UTC"
)

// DefaultZone is used for blank time zone ids and as the resolver fallback.
var DefaultZone = FixedOffset(4 * time.Hour)

var ErrInvalidOffset = errors.New("invalid utc offset")

// Zone is either a fixed offset or a named zone. Fixed offsets ignore DST.
type Zone struct {
	kind   ZoneKind
	offset time.Duration
	name   string
	loc    *time.Location
}

// FixedOffset builds a zone named like "UTC+04:00".
func FixedOffset(offset time.Duration) Zone {
	name := formatOffset(offset)
	return Zone{
		kind:   ZoneFixed,
		offset: offset,
		name:   name,
		loc:    time.FixedZone(name, int(offset/time.Second)),
	}
}

// NamedZone wraps a loaded location.
func NamedZone(loc *time.Location) Zone {
	return Zone{kind: ZoneNamed, name: loc.String(), loc: loc}
}

func (z Zone) Kind() ZoneKind { return z.kind }

func (z Zone) Name() string { return z.name }

// Offset is meaningful for fixed zones only.
func (z Zone) Offset() time.Duration { return z.offset }

func (z Zone) Location() *time.Location {
	if z.loc == nil {
		return DefaultZone.loc
	}
	return z.loc
}

func (z Zone) String() string { return z.name }

func formatOffset(d time.Duration) string {
	sign := "+"
	if d < 0 {
		sign = "-"
		d = -d
	}
	mins := int(d / time.Minute)
	return fmt.Sprintf("%s%s%02d:%02d", utcPrefix, sign, mins/60, mins%60)
}

// ParseFixedOffset parses "UTC", "UTC+4", "UTC-05:30" or "+03:00".
// The sign is mandatory unless the value is bare "UTC"; hours are 0..14, minutes 0..59.
func ParseFixedOffset(s string) (time.Duration, error) {
	v := strings.TrimSpace(s)
	if strings.EqualFold(v, utcPrefix) {
		return 0, nil
	}
	if len(v) >= len(utcPrefix) && strings.EqualFold(v[:len(utcPrefix)], utcPrefix) {
		v = strings.TrimSpace(v[len(utcPrefix):])
	}
	if v == "" || (v[0] != '+' && v[0] != '-') {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, s)
	}
	neg := v[0] == '-'
	body := v[1:]

	hoursPart, minutesPart := body, "0"
	if i := strings.IndexByte(body, ':'); i >= 0 {
		hoursPart, minutesPart = body[:i], body[i+1:]
	}
	if !isAllDigits(hoursPart) || !isAllDigits(minutesPart) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, s)
	}
	hours, _ := strconv.Atoi(hoursPart)
	minutes, _ := strconv.Atoi(minutesPart)
	if hours > maxOffsetHours || minutes > 59 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidOffset, s)
	}

	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if neg {
		d = -d
	}
	return d, nil
}

// ParseZone resolves id without any fallback except for blank input.
func ParseZone(id string) (Zone, error) {
	if strings.TrimSpace(id) == "" {
		return DefaultZone, nil
	}
	if off, err := ParseFixedOffset(id); err == nil {
		return FixedOffset(off), nil
	}
	loc, err := time.LoadLocation(strings.TrimSpace(id))
	if err != nil {
		return Zone{}, fmt.Errorf("load location %q: %w", id, err)
	}
	return NamedZone(loc), nil
}

// ZoneResolver turns account time zone ids into zones and never fails.
type ZoneResolver struct {
	log      *zap.Logger
	fallback Zone
}

func NewZoneResolver(log *zap.Logger, fallback Zone) *ZoneResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZoneResolver{log: log, fallback: fallback}
}

// Fallback is the zone used for blank and unresolvable ids.
func (r *ZoneResolver) Fallback() Zone { return r.fallback }

func (r *ZoneResolver) Resolve(id string) Zone {
	if strings.TrimSpace(id) == "" {
		return r.fallback
	}
	z, err := ParseZone(id)
	if err != nil {
		r.log.Warn("cannot resolve time zone, using fallback",
			zap.String("tz", id),
			zap.String("fallback", r.fallback.Name()),
			zap.Error(err),
		)
		return r.fallback
	}
	return z
}
