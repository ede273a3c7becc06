package catalog

import "errors"

// Domain errors surfaced to the invoking user. The bot layer maps these to
// ephemeral responses; none of them crash or retry anything.
var (
	// ErrPermissionDenied means the caller is not the configured operator.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrItemNotFound means the named item is not in the catalog.
	ErrItemNotFound = errors.New("item not found")

	// ErrOutOfStock means a finite-stock item is exhausted.
	ErrOutOfStock = errors.New("out of stock")
)
