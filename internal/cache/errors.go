package cache

import "errors"

// ErrSnapshotMissing is returned when no quality snapshot has been stored yet.
var ErrSnapshotMissing = errors.New("quality snapshot not found")
