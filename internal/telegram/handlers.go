package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/NDK-Games/AITaskBot/assets"
	"github.com/NDK-Games/AITaskBot/internal/domain"
	"github.com/NDK-Games/AITaskBot/internal/store"
)

// --- Generic helpers ---

func (r *Router) storeFailed(req *request, op string, err error) {
	r.log.Error(op+" failed",
		zap.String("command", req.command),
		zap.Int64("user_id", req.userID),
		zap.Error(err),
	)
	r.sendText(req.chatID, msgStoreError)
}

func isStaff(acc *domain.Account) bool {
	return acc != nil && (acc.Role == domain.RoleAdmin || acc.Role == domain.RoleModerator)
}

func isAdmin(acc *domain.Account) bool {
	return acc != nil && acc.Role == domain.RoleAdmin
}

// displayName prefers the account name, then the Telegram profile name.
func displayName(acc *domain.Account, from *tgbotapi.User) string {
	if acc != nil && strings.TrimSpace(acc.UserName) != "" {
		return acc.UserName
	}
	if from != nil {
		if n := strings.TrimSpace(from.FirstName + " " + from.LastName); n != "" {
			return n
		}
	}
	return unknownName
}

// accountName looks up a stored name for reports and stats.
func (r *Router) accountName(ctx context.Context, userID int64) (string, error) {
	acc, err := r.repo.GetAccount(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(acc.UserName), nil
}

// --- Core commands ---

func (r *Router) handleStart(_ context.Context, req *request) {
	msg := tgbotapi.NewMessage(req.chatID, assets.StartText())
	if req.account != nil {
		msg.ReplyMarkup = menuKeyboard(req.account.Role)
	}
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("reply failed", zap.Int64("chat_id", req.chatID), zap.Error(err))
	}
}

func (r *Router) handleHelp(_ context.Context, req *request) {
	if req.account == nil {
		r.sendText(req.chatID, msgNoRole)
		return
	}
	r.sendText(req.chatID, assets.HelpText(req.account.Role))
}

// --- Vacation ---

func (r *Router) handleVacation(_ context.Context, req *request) {
	if req.account == nil {
		r.sendText(req.chatID, msgNoAccount)
		return
	}
	if req.arg == "" {
		text := vacationUsage
		if until, ok := r.vacations.TryGetVacationUntil(req.userID); ok {
			text = fmt.Sprintf(vacationNowFmt, until.UserString()) + "\n\n" + vacationUsage
		}
		r.sendText(req.chatID, text)
		return
	}
	until, err := domain.ParseUserDate(req.arg)
	if err != nil {
		r.sendText(req.chatID, vacationBadDate)
		return
	}
	r.vacations.SetVacationUntil(req.userID, until)
	r.log.Info("vacation set", zap.Int64("user_id", req.userID), zap.String("until", until.String()))
	r.sendText(req.chatID, fmt.Sprintf(vacationSetFmt, until.UserString(), until.AddDays(1).UserString()))
}

// --- Stats ---

func (r *Router) handleStats(ctx context.Context, req *request) {
	if !isStaff(req.account) {
		r.sendText(req.chatID, msgForbidden)
		return
	}
	if req.arg == "" {
		r.sendText(req.chatID, statsUsage)
		return
	}

	fields := strings.Fields(req.arg)
	if len(fields) >= 2 {
		if userID, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
			rest := strings.TrimSpace(strings.TrimPrefix(req.arg, fields[0]))
			r.userStats(ctx, req, userID, rest)
			return
		}
	}
	r.totalStats(ctx, req, req.arg)
}

func (r *Router) userStats(ctx context.Context, req *request, userID int64, rangeArg string) {
	from, to, err := domain.ParseDateRange(rangeArg)
	if err != nil {
		r.sendText(req.chatID, statsBadUserRange)
		return
	}
	reports, err := r.repo.ListUserReportsByDateRange(ctx, userID, from, to)
	if err != nil {
		r.storeFailed(req, "list reports", err)
		return
	}
	if len(reports) == 0 {
		r.sendText(req.chatID, fmt.Sprintf(statsNoUserFmt, userID, from.UserString(), to.UserString()))
		return
	}

	name, err := r.accountName(ctx, userID)
	if err != nil {
		r.storeFailed(req, "get account", err)
		return
	}
	if name == "" {
		name = unknownName
	}

	lines := make([]string, 0, len(reports))
	for _, rep := range reports {
		lines = append(lines, fmt.Sprintf("%s %s %d", name, rep.ReportDate.UserString(), rep.HoursWorked))
	}
	r.sendText(req.chatID, strings.Join(lines, "\n"))
}

type userTotal struct {
	userID int64
	name   string
	hours  int
}

func (r *Router) totalStats(ctx context.Context, req *request, rangeArg string) {
	from, to, err := domain.ParseDateRange(rangeArg)
	if err != nil {
		r.sendText(req.chatID, statsBadRange)
		return
	}
	reports, err := r.repo.ListReportsByDateRange(ctx, from, to)
	if err != nil {
		r.storeFailed(req, "list reports", err)
		return
	}
	if len(reports) == 0 {
		r.sendText(req.chatID, fmt.Sprintf(statsNoneFmt, from.UserString(), to.UserString()))
		return
	}

	byUser := make(map[int64]*userTotal)
	for _, rep := range reports {
		t, ok := byUser[rep.UserID]
		if !ok {
			t = &userTotal{userID: rep.UserID, name: rep.UserName}
			byUser[rep.UserID] = t
		}
		t.hours += rep.HoursWorked
	}

	totals := make([]*userTotal, 0, len(byUser))
	for _, t := range byUser {
		name, err := r.accountName(ctx, t.userID)
		if err != nil {
			r.storeFailed(req, "get account", err)
			return
		}
		if name != "" {
			t.name = name
		}
		if strings.TrimSpace(t.name) == "" {
			t.name = unknownName
		}
		totals = append(totals, t)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].name != totals[j].name {
			return totals[i].name < totals[j].name
		}
		return totals[i].userID < totals[j].userID
	})

	var b strings.Builder
	fmt.Fprintf(&b, statsTitleFmt, from.UserString(), to.UserString())
	for _, t := range totals {
		fmt.Fprintf(&b, "%s: %d h\n", t.name, t.hours)
	}
	r.sendText(req.chatID, strings.TrimRight(b.String(), "\n"))
}

// --- Account management ---

func (r *Router) handleList(ctx context.Context, req *request) {
	if !isStaff(req.account) {
		r.sendText(req.chatID, msgForbidden)
		return
	}
	accounts, err := r.repo.ListAccounts(ctx)
	if err != nil {
		r.storeFailed(req, "list accounts", err)
		return
	}
	if len(accounts) == 0 {
		r.sendText(req.chatID, listEmpty)
		return
	}

	var b strings.Builder
	b.WriteString(listTitle)
	for _, a := range accounts {
		tz := a.TimeZoneID
		if tz == "" {
			tz = "default"
		}
		fmt.Fprintf(&b, "Name=%s, ID=%d, Role=%s, TZ=%s, Deadline=%s\n",
			a.UserName, a.TelegramUserID, a.Role, tz, domain.FormatDeadline(a.ReportDeadline))
	}
	r.sendText(req.chatID, strings.TrimRight(b.String(), "\n"))
}

func (r *Router) handleAddRole(role domain.Role) commandFunc {
	return func(ctx context.Context, req *request) {
		if !isAdmin(req.account) {
			r.sendText(req.chatID, msgAdminOnly)
			return
		}
		if req.arg == "" {
			r.sendText(req.chatID, fmt.Sprintf(roleUsageFmt, req.command))
			return
		}
		userID, err := strconv.ParseInt(req.arg, 10, 64)
		if err != nil || userID <= 0 {
			r.sendText(req.chatID, invalidUserID)
			return
		}
		if err := r.repo.SetRole(ctx, userID, role); err != nil {
			r.storeFailed(req, "set role", err)
			return
		}
		r.log.Info("role set", zap.Int64("user_id", userID), zap.Stringer("role", role), zap.Int64("by", req.userID))
		r.sendText(req.chatID, fmt.Sprintf(roleSetFmt, userID, role))
	}
}

func (r *Router) handleRemoveUser(ctx context.Context, req *request) {
	if !isAdmin(req.account) {
		r.sendText(req.chatID, msgAdminOnly)
		return
	}
	if req.arg == "" {
		r.sendText(req.chatID, removeUsage)
		return
	}
	userID, err := strconv.ParseInt(req.arg, 10, 64)
	if err != nil {
		r.sendText(req.chatID, invalidUserID)
		return
	}
	removed, err := r.repo.RemoveAccount(ctx, userID)
	if err != nil {
		r.storeFailed(req, "remove account", err)
		return
	}
	if !removed {
		r.sendText(req.chatID, fmt.Sprintf(removeNoneFmt, userID))
		return
	}
	r.log.Info("account removed", zap.Int64("user_id", userID), zap.Int64("by", req.userID))
	r.sendText(req.chatID, fmt.Sprintf(removedFmt, userID))
}

// --- Report intake ---

func (r *Router) handleReport(ctx context.Context, req *request, text string) {
	if req.account == nil {
		r.sendText(req.chatID, msgNoRole)
		return
	}
	now := r.now().UTC()

	last, err := r.repo.GetLastReportByUser(ctx, req.userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		r.storeFailed(req, "get last report", err)
		return
	default:
		if elapsed := now.Sub(last.ReceivedAt); elapsed < r.cooldown {
			r.sendText(req.chatID, fmt.Sprintf(cooldownFmt, formatWait(r.cooldown-elapsed)))
			return
		}
	}

	parsed, err := domain.ParseReport(text)
	if err != nil {
		r.sendText(req.chatID, reportErrorText(err))
		return
	}

	name := displayName(req.account, req.msg.From)
	rep := &domain.DailyReport{
		UserID:      req.userID,
		UserName:    name,
		ReportDate:  parsed.Date,
		HoursWorked: parsed.Hours,
		FullText:    parsed.Text,
		ReceivedAt:  now,
	}
	if err := r.repo.InsertReport(ctx, rep); err != nil {
		r.storeFailed(req, "insert report", err)
		return
	}
	r.log.Info("report received",
		zap.Int64("user_id", req.userID),
		zap.String("date", rep.ReportDate.String()),
		zap.Int("hours", rep.HoursWorked),
	)
	r.sendText(req.chatID, reportOK)
	r.forwardToAdmins(ctx, name, parsed.Text)
}

func reportErrorText(err error) string {
	var missing *domain.MissingFieldError
	switch {
	case errors.As(err, &missing):
		text := reportBadFmt + fmt.Sprintf(reportMissingFmt, missing.Field)
		if missing.Field == domain.FieldProblems || missing.Field == domain.FieldPlanned {
			text += reportNoneHint
		}
		return text
	case errors.Is(err, domain.ErrInvalidDate):
		return reportBadDate
	case errors.Is(err, domain.ErrInvalidHours):
		return reportBadHours
	default:
		return reportBadFmt
	}
}

// forwardToAdmins sends the HTML-escaped report to every admin. A failed
// delivery to one admin does not stop the others.
func (r *Router) forwardToAdmins(ctx context.Context, name, text string) {
	admins, err := r.repo.ListAccountsByRole(ctx, domain.RoleAdmin)
	if err != nil {
		r.log.Error("list admins failed", zap.Error(err))
		return
	}
	body := fmt.Sprintf(reportForward, html.EscapeString(name), html.EscapeString(text))
	for _, a := range admins {
		if err := r.sendHTML(a.TelegramUserID, body); err != nil {
			r.log.Warn("forward report failed", zap.Int64("admin_id", a.TelegramUserID), zap.Error(err))
		}
	}
}

// formatWait renders a positive duration as "5h 07m" or "12m".
func formatWait(d time.Duration) string {
	mins := int(d.Round(time.Minute) / time.Minute)
	if mins < 1 {
		mins = 1
	}
	if mins < 60 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dh %02dm", mins/60, mins%60)
}
