package assets

import (
	"embed"
	"strings"

	"github.com/NDK-Games/AITaskBot/internal/domain"
)

//go:embed texts/*.txt
var textFS embed.FS

func mustText(name string) string {
	b, err := textFS.ReadFile("texts/" + name)
	if err != nil {
		panic(err)
	}
	return strings.TrimSpace(string(b))
}

// StartText is the welcome message with the report template.
func StartText() string { return mustText("start.txt") }

// HelpText returns the command list for a role.
func HelpText(role domain.Role) string {
	switch role {
	case domain.RoleAdmin:
		return mustText("help_admin.txt")
	case domain.RoleModerator:
		return mustText("help_moderator.txt")
	default:
		return mustText("help_user.txt")
	}
}
