// Package tableview holds the interactive state of the customer table:
// search term, sort key and direction, column visibility, extra filters and
// pagination over the last composed row set.
//
// The pure functions Filter, Sort, Paginate and Project do the work and never
// fail. State only owns the settings and the loaded rows; it is safe for
// concurrent use.
package tableview
