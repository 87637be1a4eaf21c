package domain

import (
	"strings"
	"time"
)

// Customer is a sparse customer record as stored by the persistence layer.
// Optional attributes are pointers; nil means the attribute was never captured.
type Customer struct {
	ID                string     `json:"id" db:"id"`
	Name              string     `json:"name" db:"name"`
	Email             *string    `json:"email" db:"email"`
	Phone             *string    `json:"phone" db:"phone"`
	Address           *Address   `json:"address" db:"address"`
	Birthday          *time.Time `json:"birthday" db:"birthday"`
	FirstPurchaseDate *time.Time `json:"first_purchase_date" db:"first_purchase_date"`
	LastPurchaseDate  *time.Time `json:"last_purchase_date" db:"last_purchase_date"`
	PurchaseFrequency *string    `json:"purchase_frequency" db:"purchase_frequency"`
	FavoriteCategory  *string    `json:"favorite_category" db:"favorite_category"`
	FavoriteProduct   *string    `json:"favorite_product" db:"favorite_product"`
	Notes             *string    `json:"notes" db:"notes"`
	ContactPreference *string    `json:"contact_preference" db:"contact_preference"`
	ContactPermission *bool      `json:"contact_permission" db:"contact_permission"`
	Segment           *string    `json:"segment" db:"segment"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// Address holds either a structured address or the legacy free-text form.
// Older records only carry Raw ("Rua X, 10 - Centro - São Paulo/SP").
type Address struct {
	Raw      string `json:"raw,omitempty"`
	Street   string `json:"street,omitempty"`
	Number   string `json:"number,omitempty"`
	District string `json:"district,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	ZIP      string `json:"zip,omitempty"`
}

// IsEmpty reports whether no address component carries a value.
func (a *Address) IsEmpty() bool {
	if a == nil {
		return true
	}
	for _, v := range []string{a.Raw, a.Street, a.Number, a.District, a.City, a.State, a.ZIP} {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// CustomerFilter narrows a customer fetch. Zero values mean "no constraint".
type CustomerFilter struct {
	IDs           []string   `json:"ids,omitempty"`
	Segment       string     `json:"segment,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	Limit         int        `json:"limit,omitempty"`
}

// Ptr returns a pointer to v. Handy for building sparse records.
func Ptr[T any](v T) *T { return &v }
