package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ActivityRepo implements customers.ActivitySource. The latest contact is the
// newest of the interaction log and the sales log.
type ActivityRepo struct{ db *sql.DB }

// NewActivityRepo creates a Postgres-backed activity source.
func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{db: db} }

func (r *ActivityRepo) LatestContactOrSale(ctx context.Context, customerID string) (*time.Time, error) {
	var latest sql.NullTime
	// GREATEST ignores NULLs, so a customer with only one kind of event still
	// resolves.
	err := r.db.QueryRowContext(ctx, `
		SELECT GREATEST(
			(SELECT MAX(created_at) FROM customer_interactions WHERE customer_id = $1),
			(SELECT MAX(created_at) FROM sales WHERE customer_id = $1)
		)
	`, customerID).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("latest contact for %s: %w", customerID, err)
	}
	return nullTime(latest), nil
}
