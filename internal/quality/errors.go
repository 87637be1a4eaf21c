package quality

import "errors"

// ErrInvalidCatalog is returned by NewCatalog for an unusable field list.
var ErrInvalidCatalog = errors.New("invalid field catalog")
