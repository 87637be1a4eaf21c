package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignite/crm-quality/internal/domain"
)

// SeedCustomer is one synthetic customer plus the events seeded for it.
type SeedCustomer struct {
	Customer      domain.Customer
	LifetimeValue decimal.Decimal
	Interactions  []time.Time
	Sales         []time.Time
	OpenBalance   decimal.Decimal
}

var (
	seedFirstNames = []string{"Ana", "Bruna", "Carlos", "Daniela", "Élodie", "Felipe", "Gabriela", "Heitor", "Isabela", "João"}
	seedLastNames  = []string{"Silva", "Souza", "Costa", "Lima", "Pereira", "Almeida", "Ribeiro", "Carvalho"}
	seedCities     = []string{"São Paulo/SP", "Belo Horizonte/MG", "Curitiba/PR", "Recife/PE", "Porto Alegre/RS"}
	seedCategories = []string{"shoes", "bags", "accessories", "apparel"}
	seedFrequency  = []string{"weekly", "monthly", "quarterly", "yearly"}
	seedChannels   = []string{"whatsapp", "email", "phone"}
)

// GenerateSeed builds n sparse customers. Each optional attribute is left
// empty with probability sparsity (0..1), so the population spans every
// quality level.
func GenerateSeed(rng *rand.Rand, n int, now time.Time, sparsity float64) []SeedCustomer {
	maybe := func() bool { return rng.Float64() >= sparsity }
	pick := func(xs []string) string { return xs[rng.Intn(len(xs))] }

	out := make([]SeedCustomer, n)
	for i := range out {
		first, last := pick(seedFirstNames), pick(seedLastNames)
		created := now.AddDate(0, 0, -rng.Intn(720))
		c := domain.Customer{
			ID:        uuid.NewString(),
			Name:      first + " " + last,
			CreatedAt: created,
			UpdatedAt: created,
		}
		if maybe() {
			c.Email = domain.Ptr(fmt.Sprintf("%s.%s%d@example.com", first, last, i))
		}
		if maybe() {
			c.Phone = domain.Ptr(fmt.Sprintf("+55 11 9%04d-%04d", rng.Intn(10000), rng.Intn(10000)))
		}
		if maybe() {
			c.Address = &domain.Address{Raw: fmt.Sprintf("Rua %s, %d - Centro - %s", last, rng.Intn(900)+1, pick(seedCities))}
		}
		if maybe() {
			b := time.Date(1960+rng.Intn(45), time.Month(rng.Intn(12)+1), rng.Intn(28)+1, 0, 0, 0, 0, time.UTC)
			c.Birthday = &b
		}
		if maybe() {
			c.PurchaseFrequency = domain.Ptr(pick(seedFrequency))
		}
		if maybe() {
			c.FavoriteCategory = domain.Ptr(pick(seedCategories))
		}
		if maybe() {
			c.FavoriteProduct = domain.Ptr(c.Name + "'s favorite")
		}
		if maybe() {
			c.ContactPreference = domain.Ptr(pick(seedChannels))
		}
		if maybe() {
			c.ContactPermission = domain.Ptr(rng.Intn(4) > 0)
		}
		if maybe() {
			c.Segment = domain.Ptr(pick(domain.Segments))
		}

		s := SeedCustomer{LifetimeValue: decimal.Zero, OpenBalance: decimal.Zero}
		for j := rng.Intn(4); j > 0; j-- {
			at := now.AddDate(0, 0, -rng.Intn(400))
			s.Sales = append(s.Sales, at)
			s.LifetimeValue = s.LifetimeValue.Add(decimal.New(int64(rng.Intn(50000)+1000), -2))
			if c.LastPurchaseDate == nil || at.After(*c.LastPurchaseDate) {
				c.LastPurchaseDate = &at
			}
			if c.FirstPurchaseDate == nil || at.Before(*c.FirstPurchaseDate) {
				c.FirstPurchaseDate = &at
			}
		}
		for j := rng.Intn(3); j > 0; j-- {
			s.Interactions = append(s.Interactions, now.AddDate(0, 0, -rng.Intn(200)))
		}
		if len(s.Sales) > 0 && rng.Intn(3) == 0 {
			s.OpenBalance = decimal.New(int64(rng.Intn(30000)+500), -2)
		}
		s.Customer = c
		out[i] = s
	}
	return out
}

// SeedWriter inserts synthetic data.
type SeedWriter struct {
	db *sql.DB
}

func NewSeedWriter(db *sql.DB) *SeedWriter { return &SeedWriter{db: db} }

// Write inserts every customer with its events in one transaction.
func (w *SeedWriter) Write(ctx context.Context, seed []SeedCustomer) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, s := range seed {
		c := s.Customer
		var address any
		if c.Address != nil {
			address = c.Address.Raw
			if c.Address.Raw == "" {
				b, _ := json.Marshal(c.Address)
				address = string(b)
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO customers (id, name, email, phone, address, birthday,
				first_purchase_date, last_purchase_date, purchase_frequency,
				favorite_category, favorite_product, notes, contact_preference,
				contact_permission, segment, lifetime_value, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
			c.ID, c.Name, c.Email, c.Phone, address, c.Birthday,
			c.FirstPurchaseDate, c.LastPurchaseDate, c.PurchaseFrequency,
			c.FavoriteCategory, c.FavoriteProduct, c.Notes, c.ContactPreference,
			c.ContactPermission, c.Segment, s.LifetimeValue, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert customer %s: %w", c.ID, err)
		}
		for _, at := range s.Sales {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO sales (customer_id, total, created_at) VALUES ($1, $2, $3)`,
				c.ID, s.LifetimeValue.Div(decimal.NewFromInt(int64(len(s.Sales)))).Round(2), at); err != nil {
				return fmt.Errorf("insert sale for %s: %w", c.ID, err)
			}
		}
		for _, at := range s.Interactions {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO customer_interactions (customer_id, created_at) VALUES ($1, $2)`,
				c.ID, at); err != nil {
				return fmt.Errorf("insert interaction for %s: %w", c.ID, err)
			}
		}
		if s.OpenBalance.IsPositive() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO accounts_receivable (customer_id, amount, status) VALUES ($1, $2, 'open')`,
				c.ID, s.OpenBalance); err != nil {
				return fmt.Errorf("insert receivable for %s: %w", c.ID, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}
