package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/NDK-Games/AITaskBot/internal/domain"
)

// ReminderText is sent to users who have not reported by their deadline.
const ReminderText = "Reminder: you have not submitted your daily report for today. Please send it."

// DefaultInterval is the tick period.
const DefaultInterval = time.Minute

// AccountLister supplies the roster, in dispatch order.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]domain.Account, error)
}

// ReportChecker answers whether a user filed a report for a user-local date.
type ReportChecker interface {
	HasReportForUserOnDate(ctx context.Context, userID int64, date domain.Date) (bool, error)
}

// Sender delivers a plain text message to a user.
// telegram.Router implements this (method: SendText).
type Sender interface {
	SendText(ctx context.Context, userID int64, text string) error
}

// Outcome is the result of evaluating one account in one tick.
type Outcome int

const (
	OutcomeDispatched Outcome = iota
	OutcomeVacation
	OutcomeWeekend
	OutcomeBeforeDeadline
	OutcomeAlreadyNotified
	OutcomeReportFiled
	OutcomeDeliveryFailed
	OutcomeFailed
	// OutcomeCanceled is a send cut short by shutdown; it is not counted.
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDispatched:
		return "dispatched"
	case OutcomeVacation:
		return "vacation"
	case OutcomeWeekend:
		return "weekend"
	case OutcomeBeforeDeadline:
		return "before_deadline"
	case OutcomeAlreadyNotified:
		return "already_notified"
	case OutcomeReportFiled:
		return "report_filed"
	case OutcomeDeliveryFailed:
		return "delivery_failed"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "failed"
	}
}

// Options configures a Scheduler. Vacations, Dedup, Zones, Metrics,
// Interval and Now default when zero.
type Options struct {
	Roster    AccountLister
	Reports   ReportChecker
	Sender    Sender
	Vacations *VacationRegistry
	Dedup     *DedupTracker
	Zones     *domain.ZoneResolver
	Metrics   *Metrics
	Log       *zap.Logger
	Interval  time.Duration
	Now       func() time.Time
}

// Scheduler evaluates the roster once per interval and sends report reminders.
type Scheduler struct {
	roster    AccountLister
	reports   ReportChecker
	sender    Sender
	vacations *VacationRegistry
	dedup     *DedupTracker
	zones     *domain.ZoneResolver
	metrics   *Metrics
	log       *zap.Logger
	interval  time.Duration
	now       func() time.Time
}

func New(opts Options) *Scheduler {
	s := &Scheduler{
		roster:    opts.Roster,
		reports:   opts.Reports,
		sender:    opts.Sender,
		vacations: opts.Vacations,
		dedup:     opts.Dedup,
		zones:     opts.Zones,
		metrics:   opts.Metrics,
		log:       opts.Log,
		interval:  opts.Interval,
		now:       opts.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.vacations == nil {
		s.vacations = NewVacationRegistry()
	}
	if s.dedup == nil {
		s.dedup = NewDedupTracker()
	}
	if s.zones == nil {
		s.zones = domain.NewZoneResolver(s.log, domain.DefaultZone)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Scheduler) Vacations() *VacationRegistry { return s.vacations }

func (s *Scheduler) Dedup() *DedupTracker { return s.dedup }

// Run ticks once immediately and then every interval until ctx is canceled.
// Ticks never overlap. Cancellation is a normal stop and returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("reminder scheduler started", zap.Duration("interval", s.interval))
	defer s.log.Info("reminder scheduler stopped")

	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.log.Debug("reminder tick")
			s.Tick(ctx)
		}
	}
}

// Tick performs one pass over the roster. It never panics and never returns
// an error: failures are logged and the next tick starts clean.
func (s *Scheduler) Tick(ctx context.Context) {
	start := time.Now()
	s.metrics.ticks.Inc()
	defer func() {
		if r := recover(); r != nil {
			s.metrics.tickErrors.Inc()
			s.log.Error("reminder tick panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		s.metrics.tickDur.Observe(time.Since(start).Seconds())
	}()

	accounts, err := s.roster.ListAccounts(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.metrics.tickErrors.Inc()
		s.log.Error("list accounts failed", zap.Error(err))
		return
	}

	nowUTC := s.now().UTC()
	for _, acc := range accounts {
		if ctx.Err() != nil {
			s.log.Debug("reminder tick interrupted", zap.Int64("next_user_id", acc.TelegramUserID))
			return
		}
		if acc.Role != domain.RoleUser {
			continue
		}
		outcome := s.processAccount(ctx, acc, nowUTC)
		if outcome == OutcomeCanceled {
			return
		}
		s.metrics.outcomes.WithLabelValues(outcome.String()).Inc()
	}
}

// processAccount isolates one account: a panic here costs only this account.
func (s *Scheduler) processAccount(ctx context.Context, acc domain.Account, nowUTC time.Time) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeFailed
			s.log.Error("reminder evaluation panicked",
				zap.Int64("user_id", acc.TelegramUserID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	return s.evaluate(ctx, acc, nowUTC)
}

// evaluate runs the suppression pipeline for one account. The order matters:
// vacation, weekend, deadline, already notified, report filed, then dispatch.
func (s *Scheduler) evaluate(ctx context.Context, acc domain.Account, nowUTC time.Time) Outcome {
	userID := acc.TelegramUserID
	local := domain.LocalizeIn(nowUTC, s.zones.Resolve(acc.TimeZoneID))

	switch {
	case s.vacations.IsOnVacation(userID, local.Today):
		s.dedup.Clear(userID)
		return OutcomeVacation
	case domain.IsWeekend(local.Today.Weekday()):
		s.dedup.Clear(userID)
		return OutcomeWeekend
	case !domain.DeadlineReached(local.Time, acc.ReportDeadline):
		s.dedup.Clear(userID)
		return OutcomeBeforeDeadline
	case s.dedup.WasNotifiedOn(userID, local.Today):
		// kept: the record is for today and still true
		return OutcomeAlreadyNotified
	case s.hasReport(ctx, userID, local.Today):
		s.dedup.Clear(userID)
		return OutcomeReportFiled
	}

	if err := s.sender.SendText(ctx, userID, ReminderText); err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return OutcomeCanceled
		}
		s.log.Warn("send reminder failed",
			zap.Int64("user_id", userID),
			zap.String("date", local.Today.String()),
			zap.Error(err),
		)
		return OutcomeDeliveryFailed
	}

	s.dedup.MarkNotified(userID, local.Today)
	s.log.Info("reminder sent",
		zap.Int64("user_id", userID),
		zap.String("date", local.Today.String()),
		zap.String("tz", local.Time.Location().String()),
	)
	return OutcomeDispatched
}

// hasReport fails open: a lookup error counts as no report.
func (s *Scheduler) hasReport(ctx context.Context, userID int64, date domain.Date) bool {
	ok, err := s.reports.HasReportForUserOnDate(ctx, userID, date)
	if err != nil {
		s.log.Warn("report lookup failed, assuming none",
			zap.Int64("user_id", userID),
			zap.String("date", date.String()),
			zap.Error(fmt.Errorf("has report: %w", err)),
		)
		return false
	}
	return ok
}
