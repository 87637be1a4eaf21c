package customers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignite/crm-quality/internal/domain"
	"github.com/ignite/crm-quality/internal/quality"
)

// Display defaults for absent values.
const (
	UnnamedCustomer           = "N/A"
	UndefinedFavoriteCategory = "Not defined"
)

// Row is the denormalized customer table row. Rows are rebuilt on every
// refresh and never mutated once composed.
//
// NextAnniversary and DaysUntilAnniversary are both nil or both set.
type Row struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Email             *string    `json:"email"`
	Phone             *string    `json:"phone"`
	City              *string    `json:"city"`
	Segment           string     `json:"segment"`
	FavoriteCategory  string     `json:"favorite_category"`
	ContactPreference *string    `json:"contact_preference"`
	ContactPermission bool       `json:"contact_permission"`
	LastPurchaseAt    *time.Time `json:"last_purchase_at"`

	DaysSinceLastPurchase *int `json:"days_since_last_purchase"`

	Status      domain.Status      `json:"status"`
	StatusColor domain.StatusColor `json:"status_color"`
	StatusRule  string             `json:"status_rule"`

	Completeness        quality.CompletenessResult `json:"completeness"`
	ProfileCompleteness int                        `json:"profile_completeness"`

	NextAnniversary      *time.Time `json:"next_anniversary"`
	DaysUntilAnniversary *int       `json:"days_until_anniversary"`

	LastContactAt     *time.Time      `json:"last_contact_at"`
	DaysSinceContact  *int            `json:"days_since_contact"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`

	ContactLookupFailed bool `json:"contact_lookup_failed,omitempty"`
	BalanceLookupFailed bool `json:"balance_lookup_failed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Record domain.Customer `json:"-"`
}

// Degraded reports whether any ancillary fact could not be resolved.
func (r Row) Degraded() bool {
	return r.ContactLookupFailed || r.BalanceLookupFailed
}

// Results extracts the completeness results of rows, in order.
func Results(rows []Row) []quality.CompletenessResult {
	out := make([]quality.CompletenessResult, len(rows))
	for i, r := range rows {
		out[i] = r.Completeness
	}
	return out
}

// Records extracts the raw records behind rows, in order.
func Records(rows []Row) []domain.Customer {
	out := make([]domain.Customer, len(rows))
	for i, r := range rows {
		out[i] = r.Record
	}
	return out
}
