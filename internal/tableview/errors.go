package tableview

import "errors"

// Sentinel errors for the table view.
var (
	ErrNotLoaded     = errors.New("customer table not loaded")
	ErrUnknownColumn = errors.New("unknown column")
)
