package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is an account's permission level.
type Role int

const (
	RoleAdmin Role = iota
	RoleModerator
	RoleUser
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleModerator:
		return "Moderator"
	case RoleUser:
		return "User"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole accepts role names case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "moderator":
		return RoleModerator, nil
	case "user":
		return RoleUser, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// DefaultReportDeadline is 20:00 user-local.
const DefaultReportDeadline = 20 * time.Hour

// Account is a roster entry. Only RoleUser accounts receive reminders.
type Account struct {
	TelegramUserID int64
	UserName       string
	Role           Role
	TimeZoneID     string        // "UTC+04:00", "UTC" or an IANA name; empty means default
	ReportDeadline time.Duration // offset from local midnight
	CreatedAt      time.Time     // UTC
}

// DailyReport is a stored report. ReportDate comes from the report's Date: line.
type DailyReport struct {
	ID          int64
	UserID      int64
	UserName    string
	ReportDate  Date
	HoursWorked int
	FullText    string
	ReceivedAt  time.Time // UTC
}
