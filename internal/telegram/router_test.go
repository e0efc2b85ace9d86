package telegram

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/NDK-Games/AITaskBot/assets"
	"github.com/NDK-Games/AITaskBot/internal/domain"
	"github.com/NDK-Games/AITaskBot/internal/scheduler"
	"github.com/NDK-Games/AITaskBot/internal/store"
)

type fakeBot struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "no message sent")
	return f.sent[len(f.sent)-1]
}

func (f *fakeBot) to(chatID int64) []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []tgbotapi.MessageConfig
	for _, m := range f.sent {
		if m.ChatID == chatID {
			res = append(res, m)
		}
	}
	return res
}

const (
	adminID int64 = 117101673
	modID   int64 = 222
	alinaID int64 = 1674848860
	fedorID int64 = 7474260465
	guestID int64 = 999
)

type fixture struct {
	router    *Router
	bot       *fakeBot
	repo      *store.SQLiteRepo
	vacations *scheduler.VacationRegistry
	logs      *observer.ObservedLogs
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "bot.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	for _, a := range []domain.Account{
		{TelegramUserID: adminID, UserName: "Boss", Role: domain.RoleAdmin, ReportDeadline: domain.DefaultReportDeadline},
		{TelegramUserID: modID, UserName: "Mod", Role: domain.RoleModerator, ReportDeadline: domain.DefaultReportDeadline},
		{TelegramUserID: alinaID, UserName: "Alina", Role: domain.RoleUser, TimeZoneID: "UTC+04:00", ReportDeadline: domain.DefaultReportDeadline},
		{TelegramUserID: fedorID, UserName: "", Role: domain.RoleUser, ReportDeadline: domain.DefaultReportDeadline},
	} {
		a := a
		require.NoError(t, repo.UpsertAccount(ctx, &a))
	}

	core, logs := observer.New(zapcore.DebugLevel)
	f := &fixture{
		bot:       &fakeBot{},
		repo:      repo,
		vacations: scheduler.NewVacationRegistry(),
		logs:      logs,
		now:       time.Date(2025, time.September, 24, 16, 0, 0, 0, time.UTC),
	}
	f.router = NewRouter(Options{
		Bot:       f.bot,
		Repo:      repo,
		Vacations: f.vacations,
		Log:       zap.New(core),
		Now:       func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) send(from int64, text string) {
	f.router.HandleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: from, FirstName: "Fedor", LastName: "P."},
			Chat: &tgbotapi.Chat{ID: from},
			Text: text,
		},
	})
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in, cmd, arg string
	}{
		{"/help", "/help", ""},
		{"/HELP@AITaskBot", "/help", ""},
		{"/vacation   25.09.2025 ", "/vacation", "25.09.2025"},
		{"/stats@bot 1 01.02.2025-06.02.2025", "/stats", "1 01.02.2025-06.02.2025"},
		{"/stats\n01.02.2025-06.02.2025", "/stats", "01.02.2025-06.02.2025"},
	}
	for _, tt := range tests {
		cmd, arg := splitCommand(strings.TrimSpace(tt.in))
		assert.Equal(t, tt.cmd, cmd, tt.in)
		assert.Equal(t, tt.arg, arg, tt.in)
	}
}

func TestHandleUpdate_IgnoresNonText(t *testing.T) {
	f := newFixture(t)
	f.router.HandleUpdate(context.Background(), tgbotapi.Update{})
	f.router.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "/help"}})
	f.send(alinaID, "   ")
	assert.Empty(t, f.bot.sent)
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	f.send(guestID, "/dance")
	assert.Equal(t, msgUnknownCommand, f.bot.last(t).Text)
}

func TestStartAndHelp(t *testing.T) {
	f := newFixture(t)

	f.send(guestID, "/start")
	assert.Equal(t, assets.StartText(), f.bot.last(t).Text)
	assert.Nil(t, f.bot.last(t).ReplyMarkup)

	f.send(modID, "/Start")
	kb, ok := f.bot.last(t).ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.Len(t, kb.Keyboard, 2)

	f.send(guestID, "/help")
	assert.Equal(t, msgNoRole, f.bot.last(t).Text)

	f.send(alinaID, "/HELP@AITaskBot")
	assert.Equal(t, assets.HelpText(domain.RoleUser), f.bot.last(t).Text)

	f.send(adminID, "/help")
	assert.Equal(t, assets.HelpText(domain.RoleAdmin), f.bot.last(t).Text)
}

func TestVacationCommand(t *testing.T) {
	f := newFixture(t)

	f.send(guestID, "/vacation 25.09.2025")
	assert.Equal(t, msgNoAccount, f.bot.last(t).Text)

	f.send(alinaID, "/vacation")
	assert.Equal(t, vacationUsage, f.bot.last(t).Text)

	f.send(alinaID, "/vacation 2025-09-25")
	assert.Equal(t, vacationBadDate, f.bot.last(t).Text)
	_, ok := f.vacations.TryGetVacationUntil(alinaID)
	assert.False(t, ok)

	f.send(alinaID, "/vacation 25.09.2025")
	assert.Equal(t, "OK! Reminders are paused until 25.09.2025 inclusive and resume on 26.09.2025.", f.bot.last(t).Text)
	until, ok := f.vacations.TryGetVacationUntil(alinaID)
	require.True(t, ok)
	assert.Equal(t, domain.NewDate(2025, time.September, 25), until)

	f.send(alinaID, "/vacation")
	assert.True(t, strings.HasPrefix(f.bot.last(t).Text, "Reminders are paused until 25.09.2025 inclusive."))
}

const report = `Name: Alina <QA>
Date: 24.09.2025
Hours: 7
Done:
- fixed <b>tags</b>
Problems:
- none
Planned:
- tests`

func TestReportIntake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.send(alinaID, report)
	assert.Equal(t, reportOK, f.bot.to(alinaID)[0].Text)

	ok, err := f.repo.HasReportForUserOnDate(ctx, alinaID, domain.NewDate(2025, time.September, 24))
	require.NoError(t, err)
	assert.True(t, ok)

	last, err := f.repo.GetLastReportByUser(ctx, alinaID)
	require.NoError(t, err)
	assert.Equal(t, "Alina", last.UserName)
	assert.Equal(t, 7, last.HoursWorked)
	assert.Equal(t, f.now, last.ReceivedAt)

	forwarded := f.bot.to(adminID)
	require.Len(t, forwarded, 1, "only admins get the copy")
	assert.Equal(t, tgbotapi.ModeHTML, forwarded[0].ParseMode)
	assert.Contains(t, forwarded[0].Text, "<b>New report from Alina:</b>")
	assert.Contains(t, forwarded[0].Text, "Alina &lt;QA&gt;")
	assert.Contains(t, forwarded[0].Text, "&lt;b&gt;tags&lt;/b&gt;")
	assert.Empty(t, f.bot.to(modID))
}

func TestReportIntake_Cooldown(t *testing.T) {
	f := newFixture(t)

	f.send(alinaID, report)
	f.now = f.now.Add(20 * time.Hour)
	f.send(alinaID, strings.Replace(report, "24.09.2025", "25.09.2025", 1))
	assert.Equal(t, "You can send a report at most once a day. Try again in 3h 00m.", f.bot.last(t).Text)

	f.now = f.now.Add(3 * time.Hour)
	f.send(alinaID, strings.Replace(report, "24.09.2025", "25.09.2025", 1))
	assert.Equal(t, reportOK, f.bot.to(alinaID)[2].Text)
}

func TestReportIntake_Rejections(t *testing.T) {
	tests := []struct {
		name string
		from int64
		text string
		want string
	}{
		{name: "no account", from: guestID, text: report, want: msgNoRole},
		{name: "missing planned", from: alinaID, text: strings.Replace(report, "Planned:", "Later:", 1), want: `"Planned:" is missing`},
		{name: "bad date", from: alinaID, text: strings.Replace(report, "24.09.2025", "24/09/2025", 1), want: reportBadDate},
		{name: "bad hours", from: alinaID, text: strings.Replace(report, "Hours: 7", "Hours: seven", 1), want: reportBadHours},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.send(tt.from, tt.text)
			assert.Contains(t, f.bot.last(t).Text, tt.want)

			_, err := f.repo.GetLastReportByUser(context.Background(), tt.from)
			assert.ErrorIs(t, err, store.ErrNotFound)
			assert.Empty(t, f.bot.to(adminID))
		})
	}
}

func TestReportIntake_ProfileNameFallback(t *testing.T) {
	f := newFixture(t)
	f.send(fedorID, report)

	last, err := f.repo.GetLastReportByUser(context.Background(), fedorID)
	require.NoError(t, err)
	assert.Equal(t, "Fedor P.", last.UserName)
}

func seedReports(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	for _, r := range []domain.DailyReport{
		{UserID: alinaID, UserName: "Alina", ReportDate: domain.NewDate(2025, time.February, 3), HoursWorked: 7, FullText: "x"},
		{UserID: alinaID, UserName: "Alina", ReportDate: domain.NewDate(2025, time.February, 4), HoursWorked: 5, FullText: "x"},
		{UserID: fedorID, UserName: "Fedor P.", ReportDate: domain.NewDate(2025, time.February, 4), HoursWorked: 8, FullText: "x"},
		{UserID: 555, UserName: "", ReportDate: domain.NewDate(2025, time.February, 5), HoursWorked: 1, FullText: "x"},
	} {
		r := r
		require.NoError(t, f.repo.InsertReport(ctx, &r))
	}
}

func TestStatsCommand(t *testing.T) {
	f := newFixture(t)
	seedReports(t, f)

	f.send(alinaID, "/stats 01.02.2025-06.02.2025")
	assert.Equal(t, msgForbidden, f.bot.last(t).Text)

	f.send(modID, "/stats")
	assert.Equal(t, statsUsage, f.bot.last(t).Text)

	f.send(modID, "/stats 06.02.2025-01.02.2025")
	assert.Equal(t, "Stats for 01.02.2025-06.02.2025:\n\n(Unknown): 1 h\nAlina: 12 h\nFedor P.: 8 h", f.bot.last(t).Text)

	f.send(adminID, "/stats 1674848860 01.02.2025-03.02.2025")
	assert.Equal(t, "Alina 03.02.2025 7", f.bot.last(t).Text)

	f.send(adminID, "/stats 1674848860 01.03.2025-03.03.2025")
	assert.Equal(t, "No reports from user 1674848860 for 01.03.2025-03.03.2025.", f.bot.last(t).Text)

	f.send(adminID, "/stats 555 01.02.2025-06.02.2025")
	assert.Equal(t, "(Unknown) 05.02.2025 1", f.bot.last(t).Text)

	f.send(adminID, "/stats 01.03.2025-02.03.2025")
	assert.Equal(t, "No reports for 01.03.2025-02.03.2025.", f.bot.last(t).Text)

	f.send(adminID, "/stats yesterday")
	assert.Equal(t, statsBadRange, f.bot.last(t).Text)

	f.send(adminID, "/stats 1674848860 soon")
	assert.Equal(t, statsBadUserRange, f.bot.last(t).Text)
}

func TestListCommand(t *testing.T) {
	f := newFixture(t)

	f.send(alinaID, "/list")
	assert.Equal(t, msgForbidden, f.bot.last(t).Text)

	f.send(modID, "/list")
	text := f.bot.last(t).Text
	assert.True(t, strings.HasPrefix(text, listTitle))
	assert.Contains(t, text, "Name=Boss, ID=117101673, Role=Admin, TZ=default, Deadline=20:00")
	assert.Contains(t, text, "Name=Alina, ID=1674848860, Role=User, TZ=UTC+04:00, Deadline=20:00")
}

func TestRoleCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.send(modID, "/add_user 42")
	assert.Equal(t, msgAdminOnly, f.bot.last(t).Text)

	f.send(adminID, "/add_moderator")
	assert.Equal(t, "Usage: /add_moderator [TelegramID]", f.bot.last(t).Text)

	f.send(adminID, "/add_user abc")
	assert.Equal(t, invalidUserID, f.bot.last(t).Text)

	f.send(adminID, "/add_user 42")
	assert.Equal(t, "User 42 now has role User.", f.bot.last(t).Text)
	acc, err := f.repo.GetAccount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, acc.Role)

	f.send(adminID, "/ADD_ADMIN 42")
	acc, err = f.repo.GetAccount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, acc.Role)

	f.send(alinaID, "/remove_user 42")
	assert.Equal(t, msgAdminOnly, f.bot.last(t).Text)

	f.send(adminID, "/remove_user 42")
	assert.Equal(t, "User 42 removed.", f.bot.last(t).Text)
	f.send(adminID, "/remove_user 42")
	assert.Equal(t, "User 42 not found.", f.bot.last(t).Text)
	_, err = f.repo.GetAccount(ctx, 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStoreErrorIsLoggedAndReported(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.Close())

	f.send(alinaID, "/help")

	assert.Equal(t, msgStoreError, f.bot.last(t).Text)
	errs := f.logs.FilterMessage("get account failed")
	require.Equal(t, 1, errs.Len())
	assert.Equal(t, zapcore.ErrorLevel, errs.All()[0].Level)
}

func TestSendText(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.router.SendText(context.Background(), alinaID, scheduler.ReminderText))
	assert.Equal(t, scheduler.ReminderText, f.bot.last(t).Text)
	assert.Equal(t, alinaID, f.bot.last(t).ChatID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.router.SendText(ctx, alinaID, "late")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, f.bot.sent, 1)

	f.bot.err = errors.New("Forbidden: bot was blocked by the user")
	err = f.router.SendText(context.Background(), alinaID, "x")
	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, alinaID, de.UserID)
	assert.ErrorIs(t, err, f.bot.err)
}

func TestFormatWait(t *testing.T) {
	assert.Equal(t, "1m", formatWait(10*time.Second))
	assert.Equal(t, "45m", formatWait(45*time.Minute))
	assert.Equal(t, "3h 07m", formatWait(3*time.Hour+7*time.Minute))
}
