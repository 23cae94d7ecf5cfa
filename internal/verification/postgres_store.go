package verification

import (
	"context"
	"database/sql"
)

// PostgresStore persists verification challenges in PostgreSQL.
// One row per order id (upsert on initiate), so multiple backend instances
// agree on which code is active.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed challenge store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Put(ctx context.Context, ch *Challenge) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO verification_challenges (
			order_id, phone, code, method, attempts, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) DO UPDATE SET
			phone = EXCLUDED.phone,
			code = EXCLUDED.code,
			method = EXCLUDED.method,
			attempts = EXCLUDED.attempts,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`,
		ch.OrderID, ch.Phone, ch.Code, string(ch.Method),
		ch.Attempts, ch.CreatedAt, ch.ExpiresAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, orderID string) (*Challenge, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT order_id, phone, code, method, attempts, created_at, expires_at
		FROM verification_challenges
		WHERE order_id = $1`, orderID)

	var ch Challenge
	var method string
	err := row.Scan(&ch.OrderID, &ch.Phone, &ch.Code, &method,
		&ch.Attempts, &ch.CreatedAt, &ch.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoChallenge
	}
	if err != nil {
		return nil, err
	}
	ch.Method = Method(method)
	return &ch, nil
}

func (p *PostgresStore) Update(ctx context.Context, ch *Challenge) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE verification_challenges
		SET attempts = $1
		WHERE order_id = $2`,
		ch.Attempts, ch.OrderID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNoChallenge
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, orderID string) error {
	result, err := p.db.ExecContext(ctx, `
		DELETE FROM verification_challenges WHERE order_id = $1`, orderID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNoChallenge
	}
	return nil
}
