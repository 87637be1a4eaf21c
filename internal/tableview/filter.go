package tableview

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/ignite/crm-quality/internal/customers"
	"github.com/ignite/crm-quality/internal/domain"
)

// PurchaseWindow narrows rows by days since last purchase.
type PurchaseWindow string

const (
	PurchaseAny       PurchaseWindow = ""
	PurchaseWithin7   PurchaseWindow = "7d"
	PurchaseWithin30  PurchaseWindow = "30d"
	PurchaseWithin90  PurchaseWindow = "90d"
	PurchaseWithin180 PurchaseWindow = "180d"
	PurchaseOver180   PurchaseWindow = "over180d"
)

// Valid reports whether w is a known window.
func (w PurchaseWindow) Valid() bool {
	switch w {
	case PurchaseAny, PurchaseWithin7, PurchaseWithin30, PurchaseWithin90, PurchaseWithin180, PurchaseOver180:
		return true
	}
	return false
}

// AnniversaryWindow narrows rows by days until the next anniversary.
type AnniversaryWindow string

const (
	AnniversaryAny     AnniversaryWindow = ""
	AnniversaryToday   AnniversaryWindow = "today"
	AnniversaryWeek    AnniversaryWindow = "week"
	AnniversaryMonth   AnniversaryWindow = "month"
	AnniversaryQuarter AnniversaryWindow = "quarter"
)

// Valid reports whether w is a known window.
func (w AnniversaryWindow) Valid() bool {
	switch w {
	case AnniversaryAny, AnniversaryToday, AnniversaryWeek, AnniversaryMonth, AnniversaryQuarter:
		return true
	}
	return false
}

// Filters are the exact-match and window filters applied on top of search.
// Rows lacking the fact a window filter looks at always pass it.
type Filters struct {
	Segment      string            `json:"segment,omitempty"`
	Status       domain.Status     `json:"status,omitempty"`
	LastPurchase PurchaseWindow    `json:"last_purchase,omitempty"`
	Anniversary  AnniversaryWindow `json:"anniversary,omitempty"`
}

// Filter keeps rows whose name, email, phone, segment or status contains term,
// ignoring case. An empty term keeps every row. The input is not modified.
func Filter(rows []customers.Row, term string) []customers.Row {
	return Apply(rows, term, Filters{})
}

// Apply runs the search term and the extra filters in one pass, keeping
// input order.
func Apply(rows []customers.Row, term string, f Filters) []customers.Row {
	folder := cases.Fold()
	needle := folder.String(strings.TrimSpace(term))

	out := make([]customers.Row, 0, len(rows))
	for _, r := range rows {
		if needle != "" && !matchesTerm(folder, r, needle) {
			continue
		}
		if !f.match(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesTerm(folder cases.Caser, r customers.Row, needle string) bool {
	haystack := []string{r.Name, deref(r.Email), deref(r.Phone), r.Segment, string(r.Status)}
	for _, h := range haystack {
		if h != "" && strings.Contains(folder.String(h), needle) {
			return true
		}
	}
	return false
}

func (f Filters) match(r customers.Row) bool {
	if f.Segment != "" && r.Segment != f.Segment {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if r.DaysSinceLastPurchase != nil {
		d := *r.DaysSinceLastPurchase
		switch f.LastPurchase {
		case PurchaseWithin7:
			if d > 7 {
				return false
			}
		case PurchaseWithin30:
			if d > 30 {
				return false
			}
		case PurchaseWithin90:
			if d > 90 {
				return false
			}
		case PurchaseWithin180:
			if d > 180 {
				return false
			}
		case PurchaseOver180:
			if d <= 180 {
				return false
			}
		}
	}
	if r.DaysUntilAnniversary != nil {
		d := *r.DaysUntilAnniversary
		switch f.Anniversary {
		case AnniversaryToday:
			if d != 0 {
				return false
			}
		case AnniversaryWeek:
			if d > 7 {
				return false
			}
		case AnniversaryMonth:
			if d > 30 {
				return false
			}
		case AnniversaryQuarter:
			if d > 90 {
				return false
			}
		}
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
