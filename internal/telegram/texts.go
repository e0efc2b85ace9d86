package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/NDK-Games/AITaskBot/internal/domain"
)

// UI texts in English
const (
	msgUnknownCommand = "Unknown command. Use /help."
	msgStoreError     = "Something went wrong. Please try again later."
	msgNoRole         = "You have no role in the system. Contact an administrator."
	msgNoAccount      = "Account not found."
	msgForbidden      = "You do not have permission for this command."
	msgAdminOnly      = "This command is available to administrators only."

	vacationUsage   = "Specify a date as DD.MM.YYYY.\nExample: /vacation 25.09.2025"
	vacationBadDate = "Invalid date format. Use DD.MM.YYYY.\nExample: /vacation 25.09.2025"
	vacationSetFmt  = "OK! Reminders are paused until %s inclusive and resume on %s."
	vacationNowFmt  = "Reminders are paused until %s inclusive."

	statsUsage        = "Usage: /stats [ID] DD.MM.YYYY-DD.MM.YYYY\nor /stats DD.MM.YYYY-DD.MM.YYYY"
	statsBadRange     = "Invalid date range. Example: /stats 01.02.2025-06.02.2025"
	statsBadUserRange = "Invalid date range. Example: /stats 123456789 01.02.2025-06.02.2025"
	statsNoUserFmt    = "No reports from user %d for %s-%s."
	statsNoneFmt      = "No reports for %s-%s."
	statsTitleFmt     = "Stats for %s-%s:\n\n"

	listEmpty = "The account list is empty."
	listTitle = "Accounts:\n"

	roleUsageFmt   = "Usage: %s [TelegramID]"
	roleSetFmt     = "User %d now has role %s."
	removeUsage    = "Usage: /remove_user [TelegramID]"
	removedFmt     = "User %d removed."
	removeNoneFmt  = "User %d not found."
	invalidUserID  = "Invalid Telegram ID."
	unknownName    = "(Unknown)"
	reportOK       = "✅ Report received! Thank you."
	reportForward  = "📌 <b>New report from %s:</b>\n\n%s"
	cooldownFmt    = "You can send a report at most once a day. Try again in %s."
	reportBadDate  = "Invalid date format. Use DD.MM.YYYY (for example, 06.02.2025)."
	reportBadHours = "Cannot read the number of hours (a whole number is required)."
	reportBadFmt   = "Invalid report format.\n\n" +
		"Report format:\n\n" +
		"Name: [your name]\n" +
		"Date: [DD.MM.YYYY]\n" +
		"Hours: [hours worked]\n" +
		"Done:\n- [what you did]\n" +
		"Problems:\n- [if any]\n" +
		"Planned:\n- [plans for tomorrow]\n\n"
	reportMissingFmt = "The line \"%s\" is missing or malformed."
	reportNoneHint   = " If there is nothing to say, write \"None\"."
)

// menuKeyboard builds a reply keyboard with the commands the role may use.
func menuKeyboard(role domain.Role) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/help"),
			tgbotapi.NewKeyboardButton("/vacation"),
		),
	}
	if role == domain.RoleAdmin || role == domain.RoleModerator {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/list"),
			tgbotapi.NewKeyboardButton("/stats"),
		))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}
