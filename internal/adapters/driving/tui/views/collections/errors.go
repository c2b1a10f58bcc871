package collections

import "errors"

// ErrNoCollectionService indicates that no collection service was provided.
var ErrNoCollectionService = errors.New("collection service is required")
