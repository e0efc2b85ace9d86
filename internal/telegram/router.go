package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/NDK-Games/AITaskBot/internal/domain"
	"github.com/NDK-Games/AITaskBot/internal/scheduler"
	"github.com/NDK-Games/AITaskBot/internal/store"
)

// DefaultReportCooldown is the minimum gap between two reports from one user.
const DefaultReportCooldown = 23 * time.Hour

// Messenger is the part of *tgbotapi.BotAPI the router needs.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// DeliveryError wraps a failed outbound message.
type DeliveryError struct {
	UserID int64
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %d: %v", e.UserID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Options configures a Router. Cooldown and Now default when zero.
type Options struct {
	Bot       Messenger
	Repo      store.Repo
	Vacations *scheduler.VacationRegistry
	Log       *zap.Logger
	Cooldown  time.Duration
	Now       func() time.Time
}

// Router wires Telegram updates to command handlers and report intake.
type Router struct {
	bot       Messenger
	log       *zap.Logger
	repo      store.Repo
	vacations *scheduler.VacationRegistry
	cooldown  time.Duration
	now       func() time.Time
	commands  map[string]commandFunc
}

// request is one incoming command or report.
type request struct {
	msg     *tgbotapi.Message
	chatID  int64
	userID  int64
	account *domain.Account // nil when the sender has no account
	command string          // lower-cased, without @bot suffix
	arg     string
}

type commandFunc func(ctx context.Context, req *request)

var _ scheduler.Sender = (*Router)(nil)

// NewRouter creates a new Telegram router.
func NewRouter(opts Options) *Router {
	r := &Router{
		bot:       opts.Bot,
		log:       opts.Log,
		repo:      opts.Repo,
		vacations: opts.Vacations,
		cooldown:  opts.Cooldown,
		now:       opts.Now,
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.vacations == nil {
		r.vacations = scheduler.NewVacationRegistry()
	}
	if r.cooldown == 0 {
		r.cooldown = DefaultReportCooldown
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.commands = map[string]commandFunc{
		"/start":         r.handleStart,
		"/help":          r.handleHelp,
		"/vacation":      r.handleVacation,
		"/stats":         r.handleStats,
		"/list":          r.handleList,
		"/add_admin":     r.handleAddRole(domain.RoleAdmin),
		"/add_moderator": r.handleAddRole(domain.RoleModerator),
		"/add_user":      r.handleAddRole(domain.RoleUser),
		"/remove_user":   r.handleRemoveUser,
	}
	return r
}

// HandleUpdate routes a single update. Only text messages with a sender are
// handled: commands go to their handler, any other text is a report.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.From == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}

	req := &request{
		msg:    msg,
		chatID: msg.Chat.ID,
		userID: msg.From.ID,
	}
	acc, err := r.repo.GetAccount(ctx, req.userID)
	switch {
	case err == nil:
		req.account = acc
	case errors.Is(err, store.ErrNotFound):
	default:
		r.log.Error("get account failed", zap.Int64("user_id", req.userID), zap.Error(err))
		r.sendText(req.chatID, msgStoreError)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		r.handleReport(ctx, req, text)
		return
	}

	req.command, req.arg = splitCommand(text)
	h, ok := r.commands[req.command]
	if !ok {
		r.sendText(req.chatID, msgUnknownCommand)
		return
	}
	r.log.Debug("command", zap.String("command", req.command), zap.Int64("user_id", req.userID))
	h(ctx, req)
}

// splitCommand separates "/Cmd@bot  arg text" into "/cmd" and "arg text".
func splitCommand(text string) (command, arg string) {
	command = text
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		command, arg = text[:i], strings.TrimSpace(text[i:])
	}
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}
	return strings.ToLower(command), arg
}

// SendText sends a plain text message to a user's private chat.
// It makes Router satisfy scheduler.Sender.
func (r *Router) SendText(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.bot.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		return &DeliveryError{UserID: userID, Err: err}
	}
	return nil
}

// sendText is fire-and-forget for replies; failures are logged.
func (r *Router) sendText(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) sendHTML(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := r.bot.Send(msg)
	return err
}
