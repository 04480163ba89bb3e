package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ledger/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable Store. A single connection serialises all
// writers, which is what the single-user ledger expects.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return storeErr("ping", r.db.PingContext(ctx))
}

// Update runs fn in one SQL transaction. Any error from fn, or from the commit,
// rolls back everything fn wrote.
func (r *SQLiteRepository) Update(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}

	if err := fn(&sqliteTx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

// View runs fn in a transaction that is always rolled back.
func (r *SQLiteRepository) View(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	defer sqlTx.Rollback()

	return fn(&sqliteTx{tx: sqlTx})
}

type sqliteTx struct {
	tx *sql.Tx
}

const dateLayout = time.DateOnly

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDate(d core.Date) sql.NullString {
	if d.IsEmpty() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Format(dateLayout), Valid: true}
}

func parseDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse stored date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return storeErr(op, err)
}

func (t *sqliteTx) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storeErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr(op, err)
	}
	return n, nil
}

func (t *sqliteTx) execOne(ctx context.Context, op, query string, args ...any) error {
	n, err := t.exec(ctx, op, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Accounts

func (t *sqliteTx) InsertAccount(ctx context.Context, a *core.Account) error {
	_, err := t.exec(ctx, "insert account",
		`INSERT INTO accounts (id, name) VALUES (?, ?)`, a.ID, a.Name)
	return err
}

func (t *sqliteTx) GetAccount(ctx context.Context, id string) (*core.Account, error) {
	var a core.Account
	err := t.tx.QueryRowContext(ctx, `SELECT id, name FROM accounts WHERE id = ?`, id).Scan(&a.ID, &a.Name)
	if err != nil {
		return nil, notFoundOr("get account", err)
	}
	return &a, nil
}

func (t *sqliteTx) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, name FROM accounts ORDER BY name, id`)
	if err != nil {
		return nil, storeErr("list accounts", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, storeErr("scan account", err)
		}
		out = append(out, a)
	}
	return out, storeErr("list accounts", rows.Err())
}

func (t *sqliteTx) DeleteAccount(ctx context.Context, id string) error {
	if _, err := t.exec(ctx, "delete account transactions",
		`DELETE FROM transactions WHERE account_id = ? OR destination_account_id = ?`, id, id); err != nil {
		return err
	}
	if _, err := t.exec(ctx, "delete account budgets",
		`DELETE FROM budgets WHERE account_id = ?`, id); err != nil {
		return err
	}
	return t.execOne(ctx, "delete account", `DELETE FROM accounts WHERE id = ?`, id)
}

// Categories

const categoryColumns = `id, name, type, color, icon`

func scanCategory(row interface{ Scan(...any) error }) (*core.Category, error) {
	var c core.Category
	var typ string
	if err := row.Scan(&c.ID, &c.Name, &typ, &c.Color, &c.Icon); err != nil {
		return nil, err
	}
	c.Type = core.CategoryType(typ)
	return &c, nil
}

func (t *sqliteTx) InsertCategory(ctx context.Context, c *core.Category) error {
	_, err := t.exec(ctx, "insert category",
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(c.Type), c.Color, c.Icon)
	return err
}

func (t *sqliteTx) GetCategory(ctx context.Context, id string) (*core.Category, error) {
	c, err := scanCategory(t.tx.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundOr("get category", err)
	}
	return c, nil
}

func (t *sqliteTx) FindCategoryByName(ctx context.Context, name string) (*core.Category, error) {
	c, err := scanCategory(t.tx.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE name = ? ORDER BY rowid LIMIT 1`, name))
	if err != nil {
		return nil, notFoundOr("find category", err)
	}
	return c, nil
}

func (t *sqliteTx) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, storeErr("list categories", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, storeErr("scan category", err)
		}
		out = append(out, *c)
	}
	return out, storeErr("list categories", rows.Err())
}

// Subscriptions

const subscriptionColumns = `id, name, note, amount_cents, currency, start_date, cadence_interval,
	cadence_unit, active, free, trial_end, account_id, generated_through, created_at`

func scanSubscription(row interface{ Scan(...any) error }) (*core.Subscription, error) {
	var (
		s                          core.Subscription
		startDate, unit, created   string
		active, free               int
		trialEnd, generatedThrough sql.NullString
	)
	err := row.Scan(&s.ID, &s.Name, &s.Note, &s.Amount.Cents, &s.Currency, &startDate,
		&s.Cadence.Interval, &unit, &active, &free, &trialEnd, &s.AccountID, &generatedThrough, &created)
	if err != nil {
		return nil, err
	}
	s.Cadence.Unit = core.Unit(unit)
	s.Active = active != 0
	s.Free = free != 0
	if s.StartDate, err = parseDate(startDate); err != nil {
		return nil, err
	}
	if s.TrialEnd, err = parseDate(trialEnd.String); err != nil {
		return nil, err
	}
	if s.GeneratedThrough, err = parseDate(generatedThrough.String); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &s, nil
}

func (t *sqliteTx) InsertSubscription(ctx context.Context, s *core.Subscription) error {
	_, err := t.exec(ctx, "insert subscription",
		`INSERT INTO subscriptions (`+subscriptionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Note, s.Amount.Cents, s.Currency, s.StartDate.Format(dateLayout),
		s.Cadence.Interval, string(s.Cadence.Unit), boolToInt(s.Active), boolToInt(s.Free),
		nullDate(s.TrialEnd), s.AccountID, nullDate(s.GeneratedThrough),
		s.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (t *sqliteTx) UpdateSubscription(ctx context.Context, s *core.Subscription) error {
	return t.execOne(ctx, "update subscription",
		`UPDATE subscriptions SET name = ?, note = ?, amount_cents = ?, currency = ?, start_date = ?,
		 cadence_interval = ?, cadence_unit = ?, active = ?, free = ?, trial_end = ?, account_id = ?,
		 generated_through = ?
		 WHERE id = ?`,
		s.Name, s.Note, s.Amount.Cents, s.Currency, s.StartDate.Format(dateLayout),
		s.Cadence.Interval, string(s.Cadence.Unit), boolToInt(s.Active), boolToInt(s.Free),
		nullDate(s.TrialEnd), s.AccountID, nullDate(s.GeneratedThrough), s.ID)
}

func (t *sqliteTx) GetSubscription(ctx context.Context, id string) (*core.Subscription, error) {
	s, err := scanSubscription(t.tx.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundOr("get subscription", err)
	}
	return s, nil
}

func (t *sqliteTx) ListSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY created_at, id`)
	if err != nil {
		return nil, storeErr("list subscriptions", err)
	}
	defer rows.Close()

	var out []core.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, storeErr("scan subscription", err)
		}
		out = append(out, *s)
	}
	return out, storeErr("list subscriptions", rows.Err())
}

func (t *sqliteTx) DeleteSubscription(ctx context.Context, id string) (int, error) {
	removed, err := t.DeleteTransactionsBySubscription(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := t.execOne(ctx, "delete subscription", `DELETE FROM subscriptions WHERE id = ?`, id); err != nil {
		return 0, err
	}
	return removed, nil
}

// Transactions

const transactionColumns = `id, title, amount_cents, date, type, currency, category_id,
	account_id, destination_account_id, subscription_id`

func scanTransaction(row interface{ Scan(...any) error }) (*core.Transaction, error) {
	var (
		tx                                 core.Transaction
		date, typ                          string
		categoryID, destID, subscriptionID sql.NullString
	)
	err := row.Scan(&tx.ID, &tx.Title, &tx.Amount.Cents, &date, &typ, &tx.Currency, &categoryID,
		&tx.AccountID, &destID, &subscriptionID)
	if err != nil {
		return nil, err
	}
	if tx.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	tx.Type = core.TransactionType(typ)
	tx.CategoryID = categoryID.String
	tx.DestinationAccountID = destID.String
	tx.SubscriptionID = subscriptionID.String
	return &tx, nil
}

func (t *sqliteTx) InsertTransaction(ctx context.Context, tx *core.Transaction) error {
	_, err := t.exec(ctx, "insert transaction",
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Title, tx.Amount.Cents, tx.Date.Format(dateLayout), string(tx.Type), tx.Currency,
		nullString(tx.CategoryID), tx.AccountID, nullString(tx.DestinationAccountID),
		nullString(tx.SubscriptionID))
	return err
}

func (t *sqliteTx) GetTransaction(ctx context.Context, id string) (*core.Transaction, error) {
	tx, err := scanTransaction(t.tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundOr("get transaction", err)
	}
	return tx, nil
}

func (t *sqliteTx) UpdateTransaction(ctx context.Context, tx *core.Transaction) error {
	return t.execOne(ctx, "update transaction",
		`UPDATE transactions SET title = ?, amount_cents = ?, date = ?, type = ?, currency = ?,
		 category_id = ?, account_id = ?, destination_account_id = ?
		 WHERE id = ?`,
		tx.Title, tx.Amount.Cents, tx.Date.Format(dateLayout), string(tx.Type), tx.Currency,
		nullString(tx.CategoryID), tx.AccountID, nullString(tx.DestinationAccountID), tx.ID)
}

func (t *sqliteTx) DeleteTransaction(ctx context.Context, id string) error {
	return t.execOne(ctx, "delete transaction", `DELETE FROM transactions WHERE id = ?`, id)
}

func (t *sqliteTx) DeleteTransactionsBySubscription(ctx context.Context, subscriptionID string) (int, error) {
	n, err := t.exec(ctx, "delete generated transactions",
		`DELETE FROM transactions WHERE subscription_id = ?`, subscriptionID)
	return int(n), err
}

func (t *sqliteTx) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != "" {
		where = append(where, `(account_id = ? OR destination_account_id = ?)`)
		args = append(args, f.AccountID, f.AccountID)
	}
	if f.SubscriptionID != "" {
		where = append(where, `subscription_id = ?`)
		args = append(args, f.SubscriptionID)
	}
	if !f.Since.IsEmpty() {
		where = append(where, `date >= ?`)
		args = append(args, f.Since.Format(dateLayout))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY date, id`

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, storeErr("scan transaction", err)
		}
		out = append(out, *tx)
	}
	return out, storeErr("list transactions", rows.Err())
}

// Budgets

const budgetSelect = `SELECT b.id, b.limit_cents, b.account_id, b.created_at,
	c.id, c.name, c.type, c.color, c.icon
	FROM budgets b LEFT JOIN categories c ON c.id = b.category_id`

func scanBudget(row interface{ Scan(...any) error }) (*core.Budget, error) {
	var (
		b                                          core.Budget
		accountID                                  sql.NullString
		created                                    string
		catID, catName, catType, catColor, catIcon sql.NullString
	)
	err := row.Scan(&b.ID, &b.Limit.Cents, &accountID, &created,
		&catID, &catName, &catType, &catColor, &catIcon)
	if err != nil {
		return nil, err
	}
	b.AccountID = accountID.String
	if catID.Valid {
		b.Category = &core.Category{
			ID:    catID.String,
			Name:  catName.String,
			Type:  core.CategoryType(catType.String),
			Color: catColor.String,
			Icon:  catIcon.String,
		}
	}
	if b.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &b, nil
}

func (t *sqliteTx) InsertBudget(ctx context.Context, b *core.Budget) error {
	var categoryID string
	if b.Category != nil {
		categoryID = b.Category.ID
	}
	_, err := t.exec(ctx, "insert budget",
		`INSERT INTO budgets (id, limit_cents, category_id, account_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.Limit.Cents, nullString(categoryID), nullString(b.AccountID),
		b.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (t *sqliteTx) GetBudget(ctx context.Context, id string) (*core.Budget, error) {
	b, err := scanBudget(t.tx.QueryRowContext(ctx, budgetSelect+` WHERE b.id = ?`, id))
	if err != nil {
		return nil, notFoundOr("get budget", err)
	}
	return b, nil
}

func (t *sqliteTx) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := t.tx.QueryContext(ctx, budgetSelect+` ORDER BY b.created_at, b.id`)
	if err != nil {
		return nil, storeErr("list budgets", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, storeErr("scan budget", err)
		}
		out = append(out, *b)
	}
	return out, storeErr("list budgets", rows.Err())
}

func (t *sqliteTx) DeleteBudget(ctx context.Context, id string) error {
	return t.execOne(ctx, "delete budget", `DELETE FROM budgets WHERE id = ?`, id)
}
