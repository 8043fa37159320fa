package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"hearthledger/internal/models"
)

//go:embed schema.sql
var schema string

const dateLayout = "2006-01-02"

// SQLite is the sqlite-backed ledger store.
type SQLite struct {
	db *sql.DB
}

// Open opens or creates the ledger database at the given path and
// ensures the schema exists.
func Open(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("execute schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a sqlite unique-constraint
// failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

const txColumns = `id, COALESCE(external_id, ''), account_id, date, description, clean_name,
	amount, direction, category_id, provenance, excluded, is_transfer, linked_id, note, created_at`

func scanTransaction(row interface{ Scan(...interface{}) error }) (*models.Transaction, error) {
	var t models.Transaction
	var dateStr, amountStr string
	var categoryID, linkedID sql.NullInt64
	var excluded, isTransfer int
	if err := row.Scan(&t.ID, &t.ExternalID, &t.AccountID, &dateStr, &t.Description, &t.CleanName,
		&amountStr, &t.Direction, &categoryID, &t.Provenance, &excluded, &isTransfer,
		&linkedID, &t.Note, &t.CreatedAt); err != nil {
		return nil, err
	}

	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("parse stored date %q: %w", dateStr, err)
	}
	t.Date = date

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("parse stored amount %q: %w", amountStr, err)
	}
	t.Amount = amount

	if categoryID.Valid {
		t.CategoryID = &categoryID.Int64
	}
	if linkedID.Valid {
		t.LinkedID = &linkedID.Int64
	}
	t.Excluded = excluded != 0
	t.IsTransfer = isTransfer != 0
	return &t, nil
}

// CreateTransaction inserts a new transaction. A natural-key or
// external-id collision returns ErrDuplicate.
func (s *SQLite) CreateTransaction(ctx context.Context, t *models.Transaction) (int64, error) {
	var externalID interface{}
	if t.ExternalID != "" {
		externalID = t.ExternalID
	}
	var categoryID interface{}
	if t.CategoryID != nil {
		categoryID = *t.CategoryID
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			external_id, account_id, date, description, clean_name, amount,
			direction, category_id, provenance, excluded, is_transfer, note
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, externalID, t.AccountID, models.NormalizeDate(t.Date).Format(dateLayout), t.Description,
		t.CleanName, t.Amount.String(), t.Direction, categoryID, t.Provenance,
		boolToInt(t.Excluded), boolToInt(t.IsTransfer), t.Note)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return result.LastInsertId()
}

// GetTransaction returns a single transaction by id.
func (s *SQLite) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	return t, nil
}

// FindTransactionByKey looks up a transaction by its natural dedupe key.
func (s *SQLite) FindTransactionByKey(ctx context.Context, key models.TransactionKey) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE account_id = ? AND date = ? AND description = ? AND amount = ? AND direction = ?`,
		key.AccountID, key.Date.Format(dateLayout), key.Description, key.Amount, key.Direction)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction by key: %w", err)
	}
	return t, nil
}

// FindTransactionByExternalID looks up a transaction by aggregator feed id.
func (s *SQLite) FindTransactionByExternalID(ctx context.Context, externalID string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE external_id = ?`, externalID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction by external id: %w", err)
	}
	return t, nil
}

func buildUpdate(upd TransactionUpdate) (string, []interface{}) {
	var sets []string
	var args []interface{}

	if upd.ClearCategory {
		sets = append(sets, "category_id = NULL")
	} else if upd.CategoryID != nil {
		sets = append(sets, "category_id = ?")
		args = append(args, *upd.CategoryID)
	}
	if upd.Provenance != nil {
		sets = append(sets, "provenance = ?")
		args = append(args, *upd.Provenance)
	}
	if upd.CleanName != nil {
		sets = append(sets, "clean_name = ?")
		args = append(args, *upd.CleanName)
	}
	if upd.IsTransfer != nil {
		sets = append(sets, "is_transfer = ?")
		args = append(args, boolToInt(*upd.IsTransfer))
	}
	if upd.ClearLink {
		sets = append(sets, "linked_id = NULL")
	} else if upd.LinkedID != nil {
		sets = append(sets, "linked_id = ?")
		args = append(args, *upd.LinkedID)
	}
	if upd.Excluded != nil {
		sets = append(sets, "excluded = ?")
		args = append(args, boolToInt(*upd.Excluded))
	}
	if upd.Note != nil {
		sets = append(sets, "note = ?")
		args = append(args, *upd.Note)
	}

	return strings.Join(sets, ", "), args
}

// UpdateTransaction applies a partial field set to one transaction.
func (s *SQLite) UpdateTransaction(ctx context.Context, id int64, upd TransactionUpdate) error {
	setClause, args := buildUpdate(upd)
	if setClause == "" {
		return nil
	}
	args = append(args, id)

	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET `+setClause+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTransactions returns transactions matching the filter, ordered by
// date then id.
func (s *SQLite) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	var where []string
	var args []interface{}

	if filter.AccountID != nil {
		where = append(where, "account_id = ?")
		args = append(args, *filter.AccountID)
	}
	if filter.ExcludeAccountID != nil {
		where = append(where, "account_id != ?")
		args = append(args, *filter.ExcludeAccountID)
	}
	if filter.From != nil {
		where = append(where, "date >= ?")
		args = append(args, models.NormalizeDate(*filter.From).Format(dateLayout))
	}
	if filter.To != nil {
		where = append(where, "date <= ?")
		args = append(args, models.NormalizeDate(*filter.To).Format(dateLayout))
	}
	if filter.Direction != nil {
		where = append(where, "direction = ?")
		args = append(args, *filter.Direction)
	}
	if filter.Amount != nil {
		where = append(where, "amount = ?")
		args = append(args, filter.Amount.String())
	}
	if filter.IsTransfer != nil {
		where = append(where, "is_transfer = ?")
		args = append(args, boolToInt(*filter.IsTransfer))
	}
	if filter.Linked != nil {
		if *filter.Linked {
			where = append(where, "linked_id IS NOT NULL")
		} else {
			where = append(where, "linked_id IS NULL")
		}
	}
	if filter.Uncategorised {
		where = append(where, "category_id IS NULL")
	}
	if filter.CategoryID != nil {
		where = append(where, "category_id = ?")
		args = append(args, *filter.CategoryID)
	}

	query := `SELECT ` + txColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// LinkPair marks two transactions as the halves of one transfer inside a
// single database transaction, so a half-linked pair is never visible.
func (s *SQLite) LinkPair(ctx context.Context, aID, bID int64, aUpd, bUpd TransactionUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin link transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	apply := func(id, linkedID int64, upd TransactionUpdate) error {
		yes := true
		upd.IsTransfer = &yes
		upd.LinkedID = &linkedID
		upd.ClearLink = false
		setClause, args := buildUpdate(upd)
		args = append(args, id)
		result, err := tx.ExecContext(ctx,
			`UPDATE transactions SET `+setClause+` WHERE id = ?`, args...)
		if err != nil {
			return fmt.Errorf("link transaction %d: %w", id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("link transaction %d: %w", id, err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	}

	if err := apply(aID, bID, aUpd); err != nil {
		return err
	}
	if err := apply(bID, aID, bUpd); err != nil {
		return err
	}

	return tx.Commit()
}

// ClearTransferLinks resets every transfer flag and link ahead of a full
// re-scan.
func (s *SQLite) ClearTransferLinks(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET is_transfer = 0, linked_id = NULL
		WHERE is_transfer = 1 OR linked_id IS NOT NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("clear transfer links: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear transfer links: %w", err)
	}
	return int(affected), nil
}

// CreateAccount inserts a new account.
func (s *SQLite) CreateAccount(ctx context.Context, a *models.Account) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (name, type, balance, connection_id) VALUES (?, ?, ?, ?)
	`, a.Name, a.Type, a.Balance.String(), a.ConnectionID)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	return result.LastInsertId()
}

func scanAccount(row interface{ Scan(...interface{}) error }) (*models.Account, error) {
	var a models.Account
	var balanceStr string
	if err := row.Scan(&a.ID, &a.Name, &a.Type, &balanceStr, &a.ConnectionID, &a.CreatedAt); err != nil {
		return nil, err
	}
	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("parse stored balance %q: %w", balanceStr, err)
	}
	a.Balance = balance
	return &a, nil
}

// GetAccount returns a single account by id.
func (s *SQLite) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, balance, connection_id, created_at FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	return a, nil
}

// GetAccountByName returns a single account by name.
func (s *SQLite) GetAccountByName(ctx context.Context, name string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, balance, connection_id, created_at FROM accounts WHERE name = ?`, name)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query account by name: %w", err)
	}
	return a, nil
}

// ListAccounts returns all accounts ordered by id.
func (s *SQLite) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, balance, connection_id, created_at FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// UpdateAccountBalance sets an account's authoritative balance.
func (s *SQLite) UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE id = ?`, balance.String(), id)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateCategory inserts a new category.
func (s *SQLite) CreateCategory(ctx context.Context, c *models.Category) (int64, error) {
	var parentID interface{}
	if c.ParentID != nil {
		parentID = *c.ParentID
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (name, parent_id, system) VALUES (?, ?, ?)
	`, c.Name, parentID, boolToInt(c.System))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return result.LastInsertId()
}

func scanCategory(row interface{ Scan(...interface{}) error }) (*models.Category, error) {
	var c models.Category
	var parentID sql.NullInt64
	var system int
	if err := row.Scan(&c.ID, &c.Name, &parentID, &system); err != nil {
		return nil, err
	}
	if parentID.Valid {
		c.ParentID = &parentID.Int64
	}
	c.System = system != 0
	return &c, nil
}

// GetCategory returns a single category by id.
func (s *SQLite) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, parent_id, system FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query category: %w", err)
	}
	return c, nil
}

// GetCategoryByName returns a single category by exact name.
func (s *SQLite) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, parent_id, system FROM categories WHERE name = ?`, name)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query category by name: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories ordered by id.
func (s *SQLite) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, parent_id, system FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// DeleteCategory removes a user category, reassigning its transactions.
func (s *SQLite) DeleteCategory(ctx context.Context, id int64, reassignTo *int64) error {
	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if category.System {
		return ErrProtected
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var target interface{}
	if reassignTo != nil {
		target = *reassignTo
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions SET category_id = ? WHERE category_id = ?`, target, id); err != nil {
		return fmt.Errorf("reassign transactions: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM category_rules WHERE category_id = ?`, id); err != nil {
		return fmt.Errorf("delete category rules: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	return tx.Commit()
}

// ListRules returns all category rules ordered by descending confidence,
// oldest first among equals.
func (s *SQLite) ListRules(ctx context.Context) ([]models.CategoryRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pattern, category_id, confidence, provenance, created_at
		FROM category_rules ORDER BY confidence DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var rules []models.CategoryRule
	for rows.Next() {
		var r models.CategoryRule
		if err := rows.Scan(&r.ID, &r.Pattern, &r.CategoryID, &r.Confidence, &r.Provenance, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// UpsertRule creates or overwrites the rule for a pattern.
func (s *SQLite) UpsertRule(ctx context.Context, pattern string, categoryID int64, confidence int, provenance models.Provenance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO category_rules (pattern, category_id, confidence, provenance)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(pattern) DO UPDATE SET
			category_id = excluded.category_id,
			confidence = excluded.confidence,
			provenance = excluded.provenance
	`, pattern, categoryID, confidence, provenance)
	if err != nil {
		return fmt.Errorf("upsert rule: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
