package tableview

import (
	"github.com/ignite/crm-quality/internal/customers"
)

// DefaultPageSize is used when no page size is set.
const DefaultPageSize = 25

// NotAvailable is rendered in cells whose ancillary lookup failed.
const NotAvailable = "N/A"

// Page is one slice of a row set.
type Page struct {
	Rows       []customers.Row `json:"-"`
	Number     int             `json:"page"`
	Size       int             `json:"page_size"`
	TotalRows  int             `json:"total_rows"`
	TotalPages int             `json:"total_pages"`
}

// Paginate returns the 1-based page of rows. A page number below 1 is treated
// as 1; past the last page the result is empty.
func Paginate(rows []customers.Row, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	p := Page{
		Rows:      []customers.Row{},
		Number:    page,
		Size:      size,
		TotalRows: len(rows),
	}
	if len(rows) > 0 {
		p.TotalPages = (len(rows)-1)/size + 1
	}
	if page > p.TotalPages {
		return p
	}
	start := (page - 1) * size
	end := min(start+size, len(rows))
	p.Rows = rows[start:end]
	return p
}

// Cells is one projected row keyed by column. Absent values are nil.
type Cells map[Column]any

// ProjectedRow is a row reduced to its visible columns.
type ProjectedRow struct {
	ID       string `json:"id"`
	Cells    Cells  `json:"cells"`
	Degraded bool   `json:"degraded,omitempty"`
}

// Project reduces rows to the given columns. Cells backed by a failed
// lookup carry NotAvailable instead of a value.
func Project(rows []customers.Row, columns []Column) []ProjectedRow {
	out := make([]ProjectedRow, len(rows))
	for i, r := range rows {
		cells := make(Cells, len(columns))
		for _, c := range columns {
			cells[c] = cell(r, c)
		}
		out[i] = ProjectedRow{ID: r.ID, Cells: cells, Degraded: r.Degraded()}
	}
	return out
}

func cell(r customers.Row, c Column) any {
	switch c {
	case ColumnName:
		return r.Name
	case ColumnFavoriteCategory:
		return r.FavoriteCategory
	case ColumnSegment:
		return r.Segment
	case ColumnLastPurchase:
		if r.LastPurchaseAt == nil {
			return nil
		}
		return *r.LastPurchaseAt
	case ColumnStatus:
		return map[string]string{"status": string(r.Status), "color": string(r.StatusColor)}
	case ColumnCity:
		if r.City == nil {
			return nil
		}
		return *r.City
	case ColumnNextAnniversary:
		if r.NextAnniversary == nil {
			return nil
		}
		return map[string]any{"date": r.NextAnniversary.Format("2006-01-02"), "days_until": *r.DaysUntilAnniversary}
	case ColumnContactPermission:
		return r.ContactPermission
	case ColumnCompleteness:
		return r.ProfileCompleteness
	case ColumnLastContact:
		if r.ContactLookupFailed {
			return NotAvailable
		}
		if r.LastContactAt == nil {
			return nil
		}
		return map[string]any{"at": *r.LastContactAt, "days_since": *r.DaysSinceContact}
	case ColumnOutstanding:
		if r.BalanceLookupFailed {
			return NotAvailable
		}
		return r.OutstandingAmount.StringFixed(2)
	}
	return nil
}
