package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"YieldSentinel/internal/model"
)

// SQLiteStore persists pools, investments and the audit log to SQLite.
// Amounts are stored as decimal strings to keep them exact; timestamps as unix
// milliseconds.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for concurrent reads while the batch jobs write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pools (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			target_amount      TEXT NOT NULL,
			current_amount     TEXT NOT NULL,
			yield_rate         TEXT NOT NULL,
			maturity_date      INTEGER NOT NULL,
			total_token_supply TEXT NOT NULL,
			status             TEXT NOT NULL,
			created_at         INTEGER NOT NULL,
			updated_at         INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pools_status ON pools(status)`,

		`CREATE TABLE IF NOT EXISTS investments (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			pool_id      TEXT NOT NULL,
			amount       TEXT NOT NULL,
			token_amount TEXT NOT NULL,
			yield_rate   TEXT NOT NULL,
			yield_amount TEXT,
			status       TEXT NOT NULL,
			invested_at  INTEGER NOT NULL,
			redeemed_at  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_investments_pool ON investments(pool_id, status)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			action      TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id   TEXT NOT NULL,
			user_id     TEXT,
			details     TEXT NOT NULL,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreatePool(p *model.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO pools
		(id, name, target_amount, current_amount, yield_rate, maturity_date,
		 total_token_supply, status, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.TargetAmount.String(), p.CurrentAmount.String(),
		p.YieldRate.String(), p.MaturityDate.UnixMilli(),
		p.TotalTokenSupply.String(), string(p.Status),
		p.CreatedAt.UnixMilli(), p.UpdatedAt.UnixMilli(),
	)
	return err
}

const poolColumns = `id, name, target_amount, current_amount, yield_rate,
	maturity_date, total_token_supply, status, created_at, updated_at`

func scanPool(row interface{ Scan(...any) error }) (*model.Pool, error) {
	var p model.Pool
	var target, current, rate, supply, status string
	var maturity, created, updated int64
	if err := row.Scan(&p.ID, &p.Name, &target, &current, &rate,
		&maturity, &supply, &status, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if p.TargetAmount, err = decimal.NewFromString(target); err != nil {
		return nil, fmt.Errorf("parse target_amount: %w", err)
	}
	if p.CurrentAmount, err = decimal.NewFromString(current); err != nil {
		return nil, fmt.Errorf("parse current_amount: %w", err)
	}
	if p.YieldRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("parse yield_rate: %w", err)
	}
	if p.TotalTokenSupply, err = decimal.NewFromString(supply); err != nil {
		return nil, fmt.Errorf("parse total_token_supply: %w", err)
	}
	p.MaturityDate = time.UnixMilli(maturity).UTC()
	p.Status = model.PoolStatus(status)
	p.CreatedAt = time.UnixMilli(created).UTC()
	p.UpdatedAt = time.UnixMilli(updated).UTC()
	return &p, nil
}

func (s *SQLiteStore) GetPool(id string) (*model.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT `+poolColumns+` FROM pools WHERE id = ?`, id)
	p, err := scanPool(row)
	if err == sql.ErrNoRows {
		return nil, model.ErrPoolNotFound
	}
	return p, err
}

func (s *SQLiteStore) ListPoolsByStatus(statuses ...model.PoolStatus) ([]*model.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT ` + poolColumns + ` FROM pools`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (?` + strings.Repeat(",?", len(statuses)-1) + `)`
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []*model.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

func (s *SQLiteStore) UpdatePoolStatus(id string, status model.PoolStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE pools SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrPoolNotFound
	}
	return nil
}

func (s *SQLiteStore) MaturePoolsDue(now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE pools SET status = ?, updated_at = ?
		WHERE maturity_date <= ? AND status NOT IN (?, ?)`,
		string(model.PoolMatured), now.UnixMilli(), now.UnixMilli(),
		string(model.PoolMatured), string(model.PoolSettled))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) CreateInvestment(inv *model.Investment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var yield any
	if inv.YieldAmount != nil {
		yield = inv.YieldAmount.String()
	}
	if _, err := tx.Exec(`INSERT INTO investments
		(id, user_id, pool_id, amount, token_amount, yield_rate, yield_amount,
		 status, invested_at, redeemed_at)
		VALUES (?,?,?,?,?,?,?,?,?,NULL)`,
		inv.ID, inv.UserID, inv.PoolID, inv.Amount.String(),
		inv.TokenAmount.String(), inv.YieldRate.String(), yield,
		string(inv.Status), inv.InvestedAt.UnixMilli(),
	); err != nil {
		return err
	}

	// Increment the pool inside the same transaction; the decimal math stays
	// in Go so the stored string remains exact.
	var current string
	err = tx.QueryRow(`SELECT current_amount FROM pools WHERE id = ?`, inv.PoolID).Scan(&current)
	if err == sql.ErrNoRows {
		return model.ErrPoolNotFound
	}
	if err != nil {
		return err
	}
	cur, err := decimal.NewFromString(current)
	if err != nil {
		return fmt.Errorf("parse current_amount: %w", err)
	}
	if _, err := tx.Exec(`UPDATE pools SET current_amount = ?, updated_at = ? WHERE id = ?`,
		cur.Add(inv.Amount).String(), inv.InvestedAt.UnixMilli(), inv.PoolID); err != nil {
		return err
	}

	return tx.Commit()
}

const investmentColumns = `id, user_id, pool_id, amount, token_amount,
	yield_rate, yield_amount, status, invested_at, redeemed_at`

func scanInvestment(row interface{ Scan(...any) error }) (*model.Investment, error) {
	var inv model.Investment
	var amount, tokens, rate, status string
	var yield sql.NullString
	var investedAt int64
	var redeemedAt sql.NullInt64
	if err := row.Scan(&inv.ID, &inv.UserID, &inv.PoolID, &amount, &tokens,
		&rate, &yield, &status, &investedAt, &redeemedAt); err != nil {
		return nil, err
	}
	var err error
	if inv.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if inv.TokenAmount, err = decimal.NewFromString(tokens); err != nil {
		return nil, fmt.Errorf("parse token_amount: %w", err)
	}
	if inv.YieldRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("parse yield_rate: %w", err)
	}
	if yield.Valid {
		y, err := decimal.NewFromString(yield.String)
		if err != nil {
			return nil, fmt.Errorf("parse yield_amount: %w", err)
		}
		inv.YieldAmount = &y
	}
	inv.Status = model.InvestmentStatus(status)
	inv.InvestedAt = time.UnixMilli(investedAt).UTC()
	if redeemedAt.Valid {
		t := time.UnixMilli(redeemedAt.Int64).UTC()
		inv.RedeemedAt = &t
	}
	return &inv, nil
}

func (s *SQLiteStore) GetInvestment(id string) (*model.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT `+investmentColumns+` FROM investments WHERE id = ?`, id)
	inv, err := scanInvestment(row)
	if err == sql.ErrNoRows {
		return nil, model.ErrInvestmentNotFound
	}
	return inv, err
}

func (s *SQLiteStore) ListActiveInvestments(poolID string) ([]*model.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT `+investmentColumns+` FROM investments
		WHERE pool_id = ? AND status = ? ORDER BY invested_at`,
		poolID, string(model.InvestmentActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvestments(rows)
}

func (s *SQLiteStore) ListActiveInvestmentsDue(now time.Time) ([]*model.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT i.id, i.user_id, i.pool_id, i.amount,
		i.token_amount, i.yield_rate, i.yield_amount, i.status, i.invested_at, i.redeemed_at
		FROM investments i JOIN pools p ON p.id = i.pool_id
		WHERE i.status = ? AND p.maturity_date <= ?
		ORDER BY i.invested_at`,
		string(model.InvestmentActive), now.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvestments(rows)
}

func collectInvestments(rows *sql.Rows) ([]*model.Investment, error) {
	var invs []*model.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

func (s *SQLiteStore) UpdateInvestmentYield(id string, yield decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE investments SET yield_amount = ?
		WHERE id = ? AND status = ?`,
		yield.String(), id, string(model.InvestmentActive))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: investment %s is not active", model.ErrInvalidState, id)
	}
	return nil
}

func (s *SQLiteStore) RedeemInvestment(id string, finalYield decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Conditional write: only an ACTIVE investment can be redeemed, so two
	// concurrent settlement attempts cannot both succeed.
	res, err := s.db.Exec(`UPDATE investments
		SET status = ?, yield_amount = ?, redeemed_at = ?
		WHERE id = ? AND status = ?`,
		string(model.InvestmentRedeemed), finalYield.String(), at.UnixMilli(),
		id, string(model.InvestmentActive))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: investment %s is not active", model.ErrInvalidState, id)
	}
	return nil
}

func (s *SQLiteStore) AppendAuditLog(e *model.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	var userID any
	if e.UserID != "" {
		userID = e.UserID
	}
	res, err := s.db.Exec(`INSERT INTO audit_log
		(action, entity_type, entity_id, user_id, details, created_at)
		VALUES (?,?,?,?,?,?)`,
		string(e.Action), e.EntityType, e.EntityID, userID,
		string(details), e.CreatedAt.UnixMilli())
	if err != nil {
		return err
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) ListAuditLog(limit, offset int) ([]*model.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.Query(`SELECT id, action, entity_type, entity_id, user_id,
		details, created_at FROM audit_log
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*model.AuditLogEntry
	for rows.Next() {
		var e model.AuditLogEntry
		var action, details string
		var userID sql.NullString
		var created int64
		if err := rows.Scan(&e.ID, &action, &e.EntityType, &e.EntityID,
			&userID, &details, &created); err != nil {
			return nil, err
		}
		e.Action = model.AuditAction(action)
		e.UserID = userID.String
		e.CreatedAt = time.UnixMilli(created).UTC()
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, fmt.Errorf("unmarshal details: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.log.Info().Msg("closing sqlite store")
	return s.db.Close()
}
