package tableview

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/ignite/crm-quality/internal/customers"
)

// SortKey names a sortable row attribute.
type SortKey string

const (
	SortNone                 SortKey = ""
	SortName                 SortKey = "name"
	SortEmail                SortKey = "email"
	SortSegment              SortKey = "segment"
	SortStatus               SortKey = "status"
	SortCity                 SortKey = "city"
	SortFavoriteCategory     SortKey = "favorite_category"
	SortLastPurchase         SortKey = "last_purchase"
	SortDaysUntilAnniversary SortKey = "days_until_anniversary"
	SortDaysSinceContact     SortKey = "days_since_contact"
	SortCompleteness         SortKey = "completeness"
	SortProfileCompleteness  SortKey = "profile_completeness"
	SortOutstanding          SortKey = "outstanding_amount"
	SortCreatedAt            SortKey = "created_at"
)

// Direction is the sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "asc" or "desc" in any case; anything else is Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

// sortValue is a comparable projection of one row attribute. Exactly one
// field is meaningful per key.
type sortValue struct {
	s string
	n int
	d decimal.Decimal
	t time.Time
}

type extractor struct {
	kind  byte // 's', 'n', 'd', 't'
	value func(r *customers.Row, fold cases.Caser) (sortValue, bool)
}

func textKey(get func(r *customers.Row) string) extractor {
	return extractor{kind: 's', value: func(r *customers.Row, fold cases.Caser) (sortValue, bool) {
		v := get(r)
		if v == "" {
			return sortValue{}, false
		}
		return sortValue{s: fold.String(v)}, true
	}}
}

func intKey(get func(r *customers.Row) *int) extractor {
	return extractor{kind: 'n', value: func(r *customers.Row, _ cases.Caser) (sortValue, bool) {
		v := get(r)
		if v == nil {
			return sortValue{}, false
		}
		return sortValue{n: *v}, true
	}}
}

func timeKey(get func(r *customers.Row) *time.Time) extractor {
	return extractor{kind: 't', value: func(r *customers.Row, _ cases.Caser) (sortValue, bool) {
		v := get(r)
		if v == nil || v.IsZero() {
			return sortValue{}, false
		}
		return sortValue{t: *v}, true
	}}
}

var extractors = map[SortKey]extractor{
	SortName:             textKey(func(r *customers.Row) string { return r.Name }),
	SortEmail:            textKey(func(r *customers.Row) string { return deref(r.Email) }),
	SortSegment:          textKey(func(r *customers.Row) string { return r.Segment }),
	SortStatus:           textKey(func(r *customers.Row) string { return string(r.Status) }),
	SortCity:             textKey(func(r *customers.Row) string { return deref(r.City) }),
	SortFavoriteCategory: textKey(func(r *customers.Row) string { return r.FavoriteCategory }),
	SortLastPurchase:     timeKey(func(r *customers.Row) *time.Time { return r.LastPurchaseAt }),
	SortCreatedAt: timeKey(func(r *customers.Row) *time.Time {
		return &r.CreatedAt
	}),
	SortDaysUntilAnniversary: intKey(func(r *customers.Row) *int { return r.DaysUntilAnniversary }),
	SortDaysSinceContact:     intKey(func(r *customers.Row) *int { return r.DaysSinceContact }),
	SortCompleteness: intKey(func(r *customers.Row) *int {
		return &r.Completeness.Percentage
	}),
	SortProfileCompleteness: intKey(func(r *customers.Row) *int {
		return &r.ProfileCompleteness
	}),
	SortOutstanding: {kind: 'd', value: func(r *customers.Row, _ cases.Caser) (sortValue, bool) {
		if r.BalanceLookupFailed {
			return sortValue{}, false
		}
		return sortValue{d: r.OutstandingAmount}, true
	}},
}

// Valid reports whether k is a known sort key. SortNone is valid.
func (k SortKey) Valid() bool {
	if k == SortNone {
		return true
	}
	_, ok := extractors[k]
	return ok
}

// Sort returns a stably sorted copy of rows. Absent values sort last in both
// directions; text compares case-insensitively. An unknown key or SortNone
// returns the rows in input order.
func Sort(rows []customers.Row, key SortKey, dir Direction) []customers.Row {
	out := slices.Clone(rows)
	ex, ok := extractors[key]
	if !ok {
		return out
	}

	fold := cases.Fold()
	type keyed struct {
		v  sortValue
		ok bool
	}
	keys := make([]keyed, len(out))
	idx := make([]int, len(out))
	for i := range out {
		v, present := ex.value(&out[i], fold)
		keys[i] = keyed{v: v, ok: present}
		idx[i] = i
	}

	slices.SortStableFunc(idx, func(a, b int) int {
		ka, kb := keys[a], keys[b]
		switch {
		case !ka.ok && !kb.ok:
			return 0
		case !ka.ok:
			return 1
		case !kb.ok:
			return -1
		}
		c := compare(ex.kind, ka.v, kb.v)
		if dir == Desc {
			c = -c
		}
		return c
	})

	sorted := make([]customers.Row, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

func compare(kind byte, a, b sortValue) int {
	switch kind {
	case 's':
		return strings.Compare(a.s, b.s)
	case 'n':
		return cmp.Compare(a.n, b.n)
	case 'd':
		return a.d.Cmp(b.d)
	case 't':
		return a.t.Compare(b.t)
	}
	return 0
}
