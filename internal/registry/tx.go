package registry

import (
	"github.com/samber/lo"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

// Tx gives a View or Update callback access to the registry.
// It must not be used after the callback returns.
type Tx struct {
	urls     entity.Registry
	writable bool
	dirty    bool
}

// Get returns the record stored under code.
func (tx *Tx) Get(code string) (entity.URL, bool) {
	url, ok := tx.urls[code]
	return url, ok
}

// Has reports whether code is taken.
func (tx *Tx) Has(code string) bool {
	_, ok := tx.urls[code]
	return ok
}

// FindByOriginalURL returns a record whose original URL equals originalURL exactly.
func (tx *Tx) FindByOriginalURL(originalURL string) (entity.URL, bool) {
	code, ok := lo.FindKeyBy(tx.urls, func(_ string, url entity.URL) bool {
		return url.OriginalURL == originalURL
	})
	if !ok {
		return entity.URL{}, false
	}
	return tx.urls[code], true
}

// All returns every record in no particular order.
func (tx *Tx) All() []entity.URL {
	return lo.Values(tx.urls)
}

// Len returns the number of records.
func (tx *Tx) Len() int {
	return len(tx.urls)
}

// Insert stores a new record. Existing records are never overwritten.
func (tx *Tx) Insert(url entity.URL) error {
	if !tx.writable {
		return ErrReadOnly
	}
	if tx.Has(url.ShortCode) {
		return entity.ErrShortCodeExists
	}

	tx.urls[url.ShortCode] = url
	tx.dirty = true

	return nil
}

// IncrementClicks adds one click to the record stored under code and returns the updated record.
func (tx *Tx) IncrementClicks(code string) (entity.URL, error) {
	if !tx.writable {
		return entity.URL{}, ErrReadOnly
	}

	url, ok := tx.urls[code]
	if !ok {
		return entity.URL{}, entity.ErrURLNotFound
	}

	url.Clicks++
	tx.urls[code] = url
	tx.dirty = true

	return url, nil
}
