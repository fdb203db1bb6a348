package storage

import "errors"

var (
	// ErrRunSuperseded is returned when a run no longer owns the sync_run row,
	// typically because it was reclaimed as stale.
	ErrRunSuperseded = errors.New("sync run superseded")

	ErrIntegrityDegraded = errors.New("catalog integrity degraded")

	// ErrCatalogUnreadable means catalog files exist but none of them parse.
	ErrCatalogUnreadable = errors.New("catalog unreadable")
)
