package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// ReceivableRepo implements customers.BalanceSource over accounts_receivable.
type ReceivableRepo struct{ db *sql.DB }

// NewReceivableRepo creates a Postgres-backed balance source.
func NewReceivableRepo(db *sql.DB) *ReceivableRepo { return &ReceivableRepo{db: db} }

func (r *ReceivableRepo) OpenBalance(ctx context.Context, customerID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM accounts_receivable
		WHERE customer_id = $1 AND status = 'open'
	`, customerID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("open balance for %s: %w", customerID, err)
	}
	return total, nil
}
