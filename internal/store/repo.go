package store

import (
	"context"
	"errors"

	"github.com/NDK-Games/AITaskBot/internal/domain"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// Repo defines storage operations for accounts and daily reports.
type Repo interface {
	UpsertAccount(ctx context.Context, a *domain.Account) error
	SetRole(ctx context.Context, userID int64, role domain.Role) error
	GetAccount(ctx context.Context, userID int64) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	ListAccountsByRole(ctx context.Context, role domain.Role) ([]domain.Account, error)
	RemoveAccount(ctx context.Context, userID int64) (bool, error)

	InsertReport(ctx context.Context, r *domain.DailyReport) error
	GetLastReportByUser(ctx context.Context, userID int64) (*domain.DailyReport, error)
	ListReportsByDateRange(ctx context.Context, from, to domain.Date) ([]domain.DailyReport, error)
	ListUserReportsByDateRange(ctx context.Context, userID int64, from, to domain.Date) ([]domain.DailyReport, error)
	HasReportForUserOnDate(ctx context.Context, userID int64, date domain.Date) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}
