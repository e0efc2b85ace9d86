package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/NDK-Games/AITaskBot/internal/domain"
)

// RosterEntry is one account in the roster seed file.
type RosterEntry struct {
	TelegramUserID int64  `yaml:"telegram_user_id"`
	UserName       string `yaml:"user_name"`
	Role           string `yaml:"role"`
	TimeZone       string `yaml:"time_zone"`
	ReportDeadline string `yaml:"report_deadline"`
}

type rosterFile struct {
	Accounts []RosterEntry `yaml:"accounts"`
}

// LoadRoster reads the roster seed file. A missing file yields no accounts.
func LoadRoster(path string) ([]domain.Account, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	accounts, err := ParseRoster(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return accounts, nil
}

// ParseRoster decodes and validates a roster. Unknown keys, duplicate ids,
// bad roles, zones and deadlines are errors.
func ParseRoster(r io.Reader) ([]domain.Account, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f rosterFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode roster: %w", err)
	}

	seen := make(map[int64]bool, len(f.Accounts))
	accounts := make([]domain.Account, 0, len(f.Accounts))
	for i, e := range f.Accounts {
		a, err := e.account()
		if err != nil {
			return nil, fmt.Errorf("accounts[%d]: %w", i, err)
		}
		if seen[a.TelegramUserID] {
			return nil, fmt.Errorf("accounts[%d]: duplicate telegram_user_id %d", i, a.TelegramUserID)
		}
		seen[a.TelegramUserID] = true
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (e RosterEntry) account() (domain.Account, error) {
	if e.TelegramUserID <= 0 {
		return domain.Account{}, errors.New("telegram_user_id is required")
	}
	a := domain.Account{
		TelegramUserID: e.TelegramUserID,
		UserName:       strings.TrimSpace(e.UserName),
		Role:           domain.RoleUser,
		ReportDeadline: domain.DefaultReportDeadline,
	}
	if e.Role != "" {
		role, err := domain.ParseRole(e.Role)
		if err != nil {
			return domain.Account{}, err
		}
		a.Role = role
	}
	if strings.TrimSpace(e.TimeZone) != "" {
		name, err := domain.ValidateTZ(e.TimeZone)
		if err != nil {
			return domain.Account{}, fmt.Errorf("time_zone: %w", err)
		}
		a.TimeZoneID = name
	}
	if e.ReportDeadline != "" {
		d, err := domain.ParseDeadline(e.ReportDeadline)
		if err != nil {
			return domain.Account{}, fmt.Errorf("report_deadline: %w", err)
		}
		a.ReportDeadline = d
	}
	return a, nil
}
