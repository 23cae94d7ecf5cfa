package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/Yacineooak/ReatilBot-Factory/internal/fraud"
)

// PostgresStore persists orders in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed order store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orderColumns = `id, order_id, customer_name, phone, email, address, city, postal_code,
		       value, currency, risk_score, risk_level, risk_factors,
		       verification_required, verification_status, verification_attempts,
		       verified_at, fraud_reported, status, notes, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, o *Order) error {
	factorsJSON, _ := json.Marshal(o.RiskFactors)
	if o.RiskFactors == nil {
		factorsJSON = []byte("[]")
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO cod_orders (
			id, order_id, customer_name, phone, email, address, city, postal_code,
			value, currency, risk_score, risk_level, risk_factors,
			verification_required, verification_status, verification_attempts,
			verified_at, fraud_reported, status, notes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9::NUMERIC(14,2), $10, $11, $12, $13,
			$14, $15, $16,
			$17, $18, $19, $20, $21, $22
		)`,
		o.ID, o.OrderID, o.CustomerName, o.Phone, nullString(o.Email),
		o.Address, o.City, nullString(o.PostalCode),
		o.Value, o.Currency, o.RiskScore, string(o.RiskLevel), factorsJSON,
		o.VerificationRequired, string(o.VerificationStatus), o.VerificationAttempts,
		nullTime(o.VerifiedAt), o.FraudReported, string(o.Status), nullString(o.Notes),
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return err
	}
	return nil
}

func (p *PostgresStore) GetByOrderID(ctx context.Context, orderID string) (*Order, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM cod_orders WHERE order_id = $1`, orderID)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	return o, err
}

func (p *PostgresStore) Update(ctx context.Context, o *Order) error {
	factorsJSON, _ := json.Marshal(o.RiskFactors)
	if o.RiskFactors == nil {
		factorsJSON = []byte("[]")
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE cod_orders SET
			risk_score = $1, risk_level = $2, risk_factors = $3,
			verification_required = $4, verification_status = $5,
			verification_attempts = $6, verified_at = $7,
			fraud_reported = $8, status = $9, notes = $10, updated_at = $11
		WHERE order_id = $12`,
		o.RiskScore, string(o.RiskLevel), factorsJSON,
		o.VerificationRequired, string(o.VerificationStatus),
		o.VerificationAttempts, nullTime(o.VerifiedAt),
		o.FraudReported, string(o.Status), nullString(o.Notes), o.UpdatedAt,
		o.OrderID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (p *PostgresStore) FindByPhone(ctx context.Context, phone string) ([]*Order, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM cod_orders
		WHERE phone = $1
		ORDER BY risk_score DESC, created_at DESC`, phone)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanOrders(rows)
}

func (p *PostgresStore) List(ctx context.Context, f Filter) ([]*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM cod_orders WHERE 1=1`
	args := []any{}
	idx := 1

	if f.RiskLevel != "" {
		query += ` AND risk_level = $` + strconv.Itoa(idx)
		args = append(args, string(f.RiskLevel))
		idx++
	}
	if f.Status != "" {
		query += ` AND status = $` + strconv.Itoa(idx)
		args = append(args, string(f.Status))
		idx++
	}
	if f.City != "" {
		query += ` AND city = $` + strconv.Itoa(idx)
		args = append(args, f.City)
		idx++
	}
	if f.VerificationRequired != nil {
		query += ` AND verification_required = $` + strconv.Itoa(idx)
		args = append(args, *f.VerificationRequired)
		idx++
	}

	query += ` ORDER BY risk_score DESC, created_at DESC`
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT $` + strconv.Itoa(idx)
	args = append(args, limit)
	idx++
	if f.Offset > 0 {
		query += ` OFFSET $` + strconv.Itoa(idx)
		args = append(args, f.Offset)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanOrders(rows)
}

func (p *PostgresStore) ListSince(ctx context.Context, since time.Time) ([]*Order, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM cod_orders
		WHERE created_at >= $1
		ORDER BY risk_score DESC, created_at DESC`, since)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanOrders(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*Order, error) {
	var o Order
	var email, postalCode, notes sql.NullString
	var verifiedAt sql.NullTime
	var riskLevel, verificationStatus, status string
	var factorsJSON []byte

	err := s.Scan(
		&o.ID, &o.OrderID, &o.CustomerName, &o.Phone, &email,
		&o.Address, &o.City, &postalCode,
		&o.Value, &o.Currency, &o.RiskScore, &riskLevel, &factorsJSON,
		&o.VerificationRequired, &verificationStatus, &o.VerificationAttempts,
		&verifiedAt, &o.FraudReported, &status, &notes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Email = email.String
	o.PostalCode = postalCode.String
	o.Notes = notes.String
	o.RiskLevel = fraud.RiskLevel(riskLevel)
	o.VerificationStatus = VerificationStatus(verificationStatus)
	o.Status = Status(status)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		o.VerifiedAt = &t
	}
	if len(factorsJSON) > 0 {
		if err := json.Unmarshal(factorsJSON, &o.RiskFactors); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

func scanOrders(rows *sql.Rows) ([]*Order, error) {
	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

