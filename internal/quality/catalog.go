package quality

import (
	"fmt"
	"strings"
	"time"

	"github.com/ignite/crm-quality/internal/domain"
)

// Priority ranks how much a field matters for downstream reporting.
type Priority string

const (
	PriorityCritical  Priority = "critical"
	PriorityImportant Priority = "important"
	PriorityOptional  Priority = "optional"
)

// FieldKey names a scoreable customer attribute.
type FieldKey string

const (
	FieldName              FieldKey = "name"
	FieldEmail             FieldKey = "email"
	FieldPhone             FieldKey = "phone"
	FieldAddress           FieldKey = "address"
	FieldBirthday          FieldKey = "birthday"
	FieldFirstPurchaseDate FieldKey = "first_purchase_date"
	FieldLastPurchaseDate  FieldKey = "last_purchase_date"
	FieldPurchaseFrequency FieldKey = "purchase_frequency"
	FieldFavoriteCategory  FieldKey = "favorite_category"
	FieldFavoriteProduct   FieldKey = "favorite_product"
	FieldNotes             FieldKey = "notes"
	FieldContactPreference FieldKey = "contact_preference"
	FieldContactPermission FieldKey = "contact_permission"
)

// accessors is the closed set of presence checks, one per FieldKey.
var accessors = map[FieldKey]func(c *domain.Customer) bool{
	FieldName:              func(c *domain.Customer) bool { return hasText(&c.Name) },
	FieldEmail:             func(c *domain.Customer) bool { return hasText(c.Email) },
	FieldPhone:             func(c *domain.Customer) bool { return hasText(c.Phone) },
	FieldAddress:           func(c *domain.Customer) bool { return !c.Address.IsEmpty() },
	FieldBirthday:          func(c *domain.Customer) bool { return hasTime(c.Birthday) },
	FieldFirstPurchaseDate: func(c *domain.Customer) bool { return hasTime(c.FirstPurchaseDate) },
	FieldLastPurchaseDate:  func(c *domain.Customer) bool { return hasTime(c.LastPurchaseDate) },
	FieldPurchaseFrequency: func(c *domain.Customer) bool { return hasText(c.PurchaseFrequency) },
	FieldFavoriteCategory:  func(c *domain.Customer) bool { return hasText(c.FavoriteCategory) },
	FieldFavoriteProduct:   func(c *domain.Customer) bool { return hasText(c.FavoriteProduct) },
	FieldNotes:             func(c *domain.Customer) bool { return hasText(c.Notes) },
	FieldContactPreference: func(c *domain.Customer) bool { return hasText(c.ContactPreference) },
	FieldContactPermission: func(c *domain.Customer) bool { return c.ContactPermission != nil && *c.ContactPermission },
}

func hasText(s *string) bool { return s != nil && strings.TrimSpace(*s) != "" }

func hasTime(t *time.Time) bool { return t != nil && !t.IsZero() }

// FieldDescriptor declares one scoreable field.
type FieldDescriptor struct {
	Key         FieldKey `json:"key"`
	Label       string   `json:"label"`
	Weight      int      `json:"weight"`
	Priority    Priority `json:"priority"`
	Description string   `json:"description"`
}

// Present reports whether the field carries a value on c.
func (f FieldDescriptor) Present(c *domain.Customer) bool {
	if c == nil {
		return false
	}
	fn, ok := accessors[f.Key]
	return ok && fn(c)
}

// Catalog is an immutable, ordered registry of scoreable fields.
type Catalog struct {
	name     string
	fields   []FieldDescriptor
	maxScore int
}

// NewCatalog validates fields and builds a Catalog. Declaration order is kept
// and used for tie-breaking everywhere.
func NewCatalog(name string, fields ...FieldDescriptor) (*Catalog, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrInvalidCatalog)
	}
	seen := make(map[FieldKey]bool, len(fields))
	total := 0
	for _, f := range fields {
		if _, ok := accessors[f.Key]; !ok {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidCatalog, f.Key)
		}
		if seen[f.Key] {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidCatalog, f.Key)
		}
		if f.Weight <= 0 {
			return nil, fmt.Errorf("%w: field %q weight must be positive", ErrInvalidCatalog, f.Key)
		}
		switch f.Priority {
		case PriorityCritical, PriorityImportant, PriorityOptional:
		default:
			return nil, fmt.Errorf("%w: field %q has unknown priority %q", ErrInvalidCatalog, f.Key, f.Priority)
		}
		seen[f.Key] = true
		total += f.Weight
	}
	out := make([]FieldDescriptor, len(fields))
	copy(out, fields)
	return &Catalog{name: name, fields: out, maxScore: total}, nil
}

// MustCatalog is NewCatalog that panics on error. Only for static registries.
func MustCatalog(name string, fields ...FieldDescriptor) *Catalog {
	c, err := NewCatalog(name, fields...)
	if err != nil {
		panic(err)
	}
	return c
}

// Name identifies the catalog in config and logs.
func (c *Catalog) Name() string { return c.name }

// MaxScore is the sum of all field weights.
func (c *Catalog) MaxScore() int { return c.maxScore }

// Fields returns a copy of the fields in declaration order.
func (c *Catalog) Fields() []FieldDescriptor {
	out := make([]FieldDescriptor, len(c.fields))
	copy(out, c.fields)
	return out
}

// Field looks up a descriptor by key.
func (c *Catalog) Field(key FieldKey) (FieldDescriptor, bool) {
	for _, f := range c.fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Catalog names accepted by config.
const (
	CatalogReporting      = "reporting"
	CatalogContactProfile = "contact_profile"
)

var reportingCatalog = MustCatalog(CatalogReporting,
	FieldDescriptor{Key: FieldEmail, Label: "Email", Weight: 20, Priority: PriorityCritical,
		Description: "Required for marketing campaigns and direct communication"},
	FieldDescriptor{Key: FieldPhone, Label: "Phone", Weight: 20, Priority: PriorityCritical,
		Description: "Required for direct contact and support"},
	FieldDescriptor{Key: FieldBirthday, Label: "Birthday", Weight: 15, Priority: PriorityImportant,
		Description: "Drives seasonal campaigns and personalization"},
	FieldDescriptor{Key: FieldAddress, Label: "Address", Weight: 15, Priority: PriorityImportant,
		Description: "Needed for delivery and geographic analysis"},
	FieldDescriptor{Key: FieldPurchaseFrequency, Label: "Purchase frequency", Weight: 15, Priority: PriorityImportant,
		Description: "Key input for segmentation and sales forecasting"},
	FieldDescriptor{Key: FieldFavoriteCategory, Label: "Favorite category", Weight: 8, Priority: PriorityOptional,
		Description: "Feeds personalized recommendations"},
	FieldDescriptor{Key: FieldFavoriteProduct, Label: "Favorite product", Weight: 7, Priority: PriorityOptional,
		Description: "Feeds cross-selling and upselling"},
)

var contactProfileCatalog = MustCatalog(CatalogContactProfile,
	FieldDescriptor{Key: FieldName, Label: "Name", Weight: 15, Priority: PriorityCritical,
		Description: "How the customer is addressed"},
	FieldDescriptor{Key: FieldPhone, Label: "Phone", Weight: 15, Priority: PriorityCritical,
		Description: "Primary contact channel"},
	FieldDescriptor{Key: FieldContactPermission, Label: "Contact permission", Weight: 15, Priority: PriorityCritical,
		Description: "Consent required before any outreach"},
	FieldDescriptor{Key: FieldEmail, Label: "Email", Weight: 10, Priority: PriorityImportant,
		Description: "Secondary contact channel"},
	FieldDescriptor{Key: FieldAddress, Label: "Address", Weight: 10, Priority: PriorityImportant,
		Description: "Needed for delivery"},
	FieldDescriptor{Key: FieldBirthday, Label: "Birthday", Weight: 10, Priority: PriorityImportant,
		Description: "Enables birthday campaigns"},
	FieldDescriptor{Key: FieldContactPreference, Label: "Contact preference", Weight: 10, Priority: PriorityImportant,
		Description: "Preferred outreach channel"},
	FieldDescriptor{Key: FieldNotes, Label: "Notes", Weight: 5, Priority: PriorityOptional,
		Description: "Free-form context from the sales team"},
)

// DefaultCatalog is the reporting catalog (max score 100).
func DefaultCatalog() *Catalog { return reportingCatalog }

// ContactProfileCatalog scores contactability and consent (max score 90).
func ContactProfileCatalog() *Catalog { return contactProfileCatalog }

// CatalogByName resolves a configured catalog name.
func CatalogByName(name string) (*Catalog, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CatalogReporting:
		return reportingCatalog, nil
	case CatalogContactProfile:
		return contactProfileCatalog, nil
	default:
		return nil, fmt.Errorf("%w: unknown catalog %q", ErrInvalidCatalog, name)
	}
}
