package tableview

// Column identifies a toggleable table column.
type Column string

const (
	ColumnName              Column = "name"
	ColumnFavoriteCategory  Column = "favorite_category"
	ColumnSegment           Column = "segment"
	ColumnLastPurchase      Column = "last_purchase"
	ColumnStatus            Column = "status"
	ColumnCity              Column = "city"
	ColumnNextAnniversary   Column = "next_anniversary"
	ColumnContactPermission Column = "contact_permission"
	ColumnCompleteness      Column = "completeness"
	ColumnLastContact       Column = "last_contact"
	ColumnOutstanding       Column = "outstanding_amount"
)

// Columns lists every column in display order. All are visible by default.
var Columns = []Column{
	ColumnName,
	ColumnFavoriteCategory,
	ColumnSegment,
	ColumnLastPurchase,
	ColumnStatus,
	ColumnCity,
	ColumnNextAnniversary,
	ColumnContactPermission,
	ColumnCompleteness,
	ColumnLastContact,
	ColumnOutstanding,
}

// Valid reports whether c is a known column.
func (c Column) Valid() bool {
	for _, k := range Columns {
		if k == c {
			return true
		}
	}
	return false
}

// visibleInOrder returns the visible columns in display order.
func visibleInOrder(visible map[Column]bool) []Column {
	out := make([]Column, 0, len(Columns))
	for _, c := range Columns {
		if visible[c] {
			out = append(out, c)
		}
	}
	return out
}
