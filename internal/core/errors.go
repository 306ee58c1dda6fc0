package core

import "github.com/xregistry/bridge/client"

// Type aliases for backward compatibility with ecosystem implementations.
type (
	HTTPError      = client.HTTPError
	NotFoundError  = client.NotFoundError
	RateLimitError = client.RateLimitError
)

// ErrNotFound is returned when a package or version is not found.
var ErrNotFound = client.ErrNotFound
