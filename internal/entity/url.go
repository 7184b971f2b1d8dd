// Package entity defines the entities and errors used in the application.
// It includes the URL struct, which represents a shortened URL record, the Registry
// that maps short codes to records, and the errors shared across layers.
package entity

import (
	"errors"
	"time"
)

var (
	// ErrInvalidURL is returned when the original URL is malformed or its scheme is not http or https.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidCustomCode is returned when a caller-supplied short code breaks the length or character rules.
	ErrInvalidCustomCode = errors.New("invalid custom code")
	// ErrCodeLength is wrapped together with ErrInvalidCustomCode when the code is shorter than 3 or longer than 20 characters.
	ErrCodeLength = errors.New("short code must be 3-20 characters long")
	// ErrCodeCharacters is wrapped together with ErrInvalidCustomCode when the code has characters outside [A-Za-z0-9_-].
	ErrCodeCharacters = errors.New("short code may only contain letters, numbers, hyphens and underscores")
	// ErrCodeReserved is wrapped together with ErrInvalidCustomCode when the code names a path the server routes itself.
	ErrCodeReserved = errors.New("short code is reserved")
	// ErrShortCodeExists is returned when attempting to create a URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when a URL with the specified short code cannot be found.
	ErrURLNotFound = errors.New("url not found")
	// ErrMaxRetriesExceeded is returned when no free short code was drawn within the retry budget.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")
)

// URL represents a shortened URL.
type URL struct {
	ShortCode   string    // ShortCode is the unique key the original URL is stored under.
	OriginalURL string    // OriginalURL is the full URL that the short code resolves to.
	CreatedAt   time.Time // CreatedAt is the timestamp when the URL was created. It never changes.
	Clicks      int64     // Clicks is the number of redirects served for the short code.
}

// Registry maps short codes to their URL records.
type Registry map[string]URL

// Clone returns a copy of the registry that can be mutated independently.
func (r Registry) Clone() Registry {
	c := make(Registry, len(r))
	for code, url := range r {
		c[code] = url
	}
	return c
}
