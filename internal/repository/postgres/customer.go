package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/crm-quality/internal/domain"
)

// QueryStrategy selects how CustomerRepo reads base records.
type QueryStrategy string

const (
	// StrategyTableFunction reads from the get_customer_table_data() function.
	StrategyTableFunction QueryStrategy = "table_function"
	// StrategyDirect reads the customers table, highest lifetime value first.
	StrategyDirect QueryStrategy = "direct"
)

// ParseQueryStrategy validates a configured strategy name.
func ParseQueryStrategy(s string) (QueryStrategy, error) {
	switch QueryStrategy(strings.TrimSpace(s)) {
	case StrategyTableFunction:
		return StrategyTableFunction, nil
	case StrategyDirect:
		return StrategyDirect, nil
	default:
		return "", fmt.Errorf("unknown query strategy %q", s)
	}
}

const customerColumns = `id, name, email, phone, address, birthday,
	first_purchase_date, last_purchase_date, purchase_frequency,
	favorite_category, favorite_product, notes, contact_preference,
	contact_permission, segment, created_at, updated_at`

// CustomerRepo implements customers.CustomerSource against PostgreSQL.
type CustomerRepo struct {
	db       *sql.DB
	strategy QueryStrategy
}

// NewCustomerRepo creates a Postgres-backed customer source.
func NewCustomerRepo(db *sql.DB, strategy QueryStrategy) *CustomerRepo {
	if strategy == "" {
		strategy = StrategyTableFunction
	}
	return &CustomerRepo{db: db, strategy: strategy}
}

// Strategy returns the configured query strategy.
func (r *CustomerRepo) Strategy() QueryStrategy { return r.strategy }

// FetchCustomers loads the records matching f.
func (r *CustomerRepo) FetchCustomers(ctx context.Context, f domain.CustomerFilter) ([]domain.Customer, error) {
	query, args := r.buildQuery(f)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch customers (%s): %w", r.strategy, err)
	}
	defer rows.Close()

	out := []domain.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return out, nil
}

func (r *CustomerRepo) buildQuery(f domain.CustomerFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.IDs) > 0 {
		where = append(where, "id = ANY("+arg(pq.Array(f.IDs))+")")
	}
	if f.Segment != "" {
		where = append(where, "segment = "+arg(f.Segment))
	}
	if f.CreatedAfter != nil {
		where = append(where, "created_at >= "+arg(*f.CreatedAfter))
	}
	if f.CreatedBefore != nil {
		where = append(where, "created_at < "+arg(*f.CreatedBefore))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(customerColumns)
	switch r.strategy {
	case StrategyDirect:
		b.WriteString(" FROM customers")
		where = append([]string{"lifetime_value >= 0"}, where...)
	default:
		b.WriteString(" FROM get_customer_table_data()")
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if r.strategy == StrategyDirect {
		b.WriteString(" ORDER BY lifetime_value DESC, id")
	}
	if f.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(arg(f.Limit))
	}
	return b.String(), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCustomer(s rowScanner) (domain.Customer, error) {
	var (
		c                                     domain.Customer
		name, email, phone, address           sql.NullString
		frequency, category, product, notes   sql.NullString
		preference, segment                   sql.NullString
		birthday, firstPurchase, lastPurchase sql.NullTime
		updatedAt                             sql.NullTime
		permission                            sql.NullBool
	)
	err := s.Scan(&c.ID, &name, &email, &phone, &address, &birthday,
		&firstPurchase, &lastPurchase, &frequency,
		&category, &product, &notes, &preference,
		&permission, &segment, &c.CreatedAt, &updatedAt)
	if err != nil {
		return c, err
	}

	c.Name = name.String
	c.Email = nullString(email)
	c.Phone = nullString(phone)
	c.Address = parseAddress(address)
	c.Birthday = nullTime(birthday)
	c.FirstPurchaseDate = nullTime(firstPurchase)
	c.LastPurchaseDate = nullTime(lastPurchase)
	c.PurchaseFrequency = nullString(frequency)
	c.FavoriteCategory = nullString(category)
	c.FavoriteProduct = nullString(product)
	c.Notes = nullString(notes)
	c.ContactPreference = nullString(preference)
	c.Segment = nullString(segment)
	if permission.Valid {
		c.ContactPermission = &permission.Bool
	}
	if updatedAt.Valid {
		c.UpdatedAt = updatedAt.Time
	}
	return c, nil
}

// parseAddress accepts both the structured JSON form and the legacy
// free-text form.
func parseAddress(v sql.NullString) *domain.Address {
	if !v.Valid {
		return nil
	}
	raw := strings.TrimSpace(v.String)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "{") {
		var a domain.Address
		if err := json.Unmarshal([]byte(raw), &a); err == nil {
			if a.IsEmpty() {
				return nil
			}
			return &a
		}
	}
	return &domain.Address{Raw: raw}
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
