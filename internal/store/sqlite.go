package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/NDK-Games/AITaskBot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

var _ Repo = (*SQLiteRepo)(nil)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies PRAGMAs, runs pending migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string, log *zap.Logger) (*SQLiteRepo, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite is a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	applied, err := RunMigrations(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	for _, name := range applied {
		log.Info("migration applied", zap.String("name", name))
	}

	return &SQLiteRepo{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks that the database answers.
func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// UpsertAccount inserts an account or overwrites name, role, zone and
// deadline of an existing one. created_at is kept on update.
func (r *SQLiteRepo) UpsertAccount(ctx context.Context, a *domain.Account) error {
	if a == nil {
		return errors.New("nil account")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(telegram_user_id) DO UPDATE SET
			user_name         = excluded.user_name,
			role              = excluded.role,
			tz                = excluded.tz,
			report_deadline_m = excluded.report_deadline_m`,
		a.TelegramUserID, a.UserName, a.Role.String(), a.TimeZoneID,
		deadlineMinutes(a.ReportDeadline), toUnix(a.CreatedAt),
	)
	return err
}

// SetRole changes the role of an account, creating it with default zone and
// deadline when it does not exist yet.
func (r *SQLiteRepo) SetRole(ctx context.Context, userID int64, role domain.Role) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (telegram_user_id, role, report_deadline_m, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(telegram_user_id) DO UPDATE SET role = excluded.role`,
		userID, role.String(), deadlineMinutes(domain.DefaultReportDeadline), nowUnix(),
	)
	return err
}

// GetAccount returns ErrNotFound when the user has no account.
func (r *SQLiteRepo) GetAccount(ctx context.Context, userID int64) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE telegram_user_id = ?`,
		userID,
	)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAccounts returns every account in insertion order.
func (r *SQLiteRepo) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return r.queryAccounts(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id ASC`)
}

func (r *SQLiteRepo) ListAccountsByRole(ctx context.Context, role domain.Role) ([]domain.Account, error) {
	return r.queryAccounts(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE role = ?
		ORDER BY id ASC`,
		role.String(),
	)
}

// RemoveAccount reports whether a row was deleted. Reports are kept.
func (r *SQLiteRepo) RemoveAccount(ctx context.Context, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE telegram_user_id = ?`, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteRepo) queryAccounts(ctx context.Context, query string, args ...any) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// InsertReport stores a report and sets its ID.
func (r *SQLiteRepo) InsertReport(ctx context.Context, rep *domain.DailyReport) error {
	if rep == nil {
		return errors.New("nil report")
	}
	if rep.ReportDate.IsZero() {
		return errors.New("report without date")
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO reports (user_id, user_name, report_date, hours_worked, full_text, received_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rep.UserID, rep.UserName, rep.ReportDate.String(), rep.HoursWorked, rep.FullText, toUnix(rep.ReceivedAt),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rep.ID = id
	return nil
}

// GetLastReportByUser returns the most recently received report, or ErrNotFound.
func (r *SQLiteRepo) GetLastReportByUser(ctx context.Context, userID int64) (*domain.DailyReport, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE user_id = ?
		ORDER BY received_at DESC, id DESC
		LIMIT 1`,
		userID,
	)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// ListReportsByDateRange returns reports whose report date lies in [from, to].
func (r *SQLiteRepo) ListReportsByDateRange(ctx context.Context, from, to domain.Date) ([]domain.DailyReport, error) {
	return r.queryReports(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE report_date BETWEEN ? AND ?
		ORDER BY report_date ASC, id ASC`,
		from.String(), to.String(),
	)
}

func (r *SQLiteRepo) ListUserReportsByDateRange(ctx context.Context, userID int64, from, to domain.Date) ([]domain.DailyReport, error) {
	return r.queryReports(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE user_id = ? AND report_date BETWEEN ? AND ?
		ORDER BY report_date ASC, id ASC`,
		userID, from.String(), to.String(),
	)
}

// HasReportForUserOnDate matches on the report's own date, not on received_at.
func (r *SQLiteRepo) HasReportForUserOnDate(ctx context.Context, userID int64, date domain.Date) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reports WHERE user_id = ? AND report_date = ?
		)`,
		userID, date.String(),
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists != 0, nil
}

func (r *SQLiteRepo) queryReports(ctx context.Context, query string, args ...any) ([]domain.DailyReport, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.DailyReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
