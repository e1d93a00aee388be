package installation

import "errors"

var (
	// ErrNotFound is returned when no installation record matches.
	ErrNotFound = errors.New("installation: not found")

	// ErrAlreadyExists is returned when inserting a duplicate installed app ID.
	ErrAlreadyExists = errors.New("installation: already exists")

	// ErrNoTokens is returned when an installation has no stored tokens yet.
	ErrNoTokens = errors.New("installation: no tokens stored")
)
