package store

import (
	"time"

	"github.com/NDK-Games/AITaskBot/internal/domain"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const accountColumns = `telegram_user_id, user_name, role, tz, report_deadline_m, created_at`

const reportColumns = `id, user_id, user_name, report_date, hours_worked, full_text, received_at`

func scanAccount(s rowScanner) (domain.Account, error) {
	var (
		a         domain.Account
		role      string
		deadlineM int
		createdAt int64
	)
	if err := s.Scan(&a.TelegramUserID, &a.UserName, &role, &a.TimeZoneID, &deadlineM, &createdAt); err != nil {
		return domain.Account{}, err
	}
	r, err := domain.ParseRole(role)
	if err != nil {
		return domain.Account{}, err
	}
	a.Role = r
	a.ReportDeadline = time.Duration(deadlineM) * time.Minute
	a.CreatedAt = fromUnix(createdAt)
	return a, nil
}

func scanReport(s rowScanner) (domain.DailyReport, error) {
	var (
		r          domain.DailyReport
		date       string
		receivedAt int64
	)
	if err := s.Scan(&r.ID, &r.UserID, &r.UserName, &date, &r.HoursWorked, &r.FullText, &receivedAt); err != nil {
		return domain.DailyReport{}, err
	}
	d, err := domain.ParseISODate(date)
	if err != nil {
		return domain.DailyReport{}, err
	}
	r.ReportDate = d
	r.ReceivedAt = fromUnix(receivedAt)
	return r, nil
}

// deadlineMinutes stores the deadline as given; 0 is midnight.
func deadlineMinutes(d time.Duration) int {
	return int(d / time.Minute)
}

func nowUnix() int64 { return time.Now().UTC().Unix() }

// toUnix stores zero times as now.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return nowUnix()
	}
	return t.UTC().Unix()
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
