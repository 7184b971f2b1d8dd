// Package file stores the URL registry as a single JSON document on disk.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

// SchemaVersion is written into every document saved by this package.
const SchemaVersion = 1

// ErrUnsupportedVersion is returned by Load for a document written with a newer
// schema than this package understands.
var ErrUnsupportedVersion = errors.New("unsupported registry schema version")

// timeLayout matches the ISO-8601 form the registry has always been written in.
const timeLayout = "2006-01-02T15:04:05.000Z"

type urlJSON struct {
	OriginalURL string `json:"originalUrl"`
	CreatedAt   string `json:"createdAt"`
	Clicks      int64  `json:"clicks"`
}

type documentJSON struct {
	Version int                `json:"version"`
	URLs    map[string]urlJSON `json:"urls"`
}

// toEntity always returns the record. On a bad timestamp CreatedAt is left zero
// and the parse error is returned alongside.
func (u urlJSON) toEntity(code string) (entity.URL, error) {
	url := entity.URL{
		ShortCode:   code,
		OriginalURL: u.OriginalURL,
		Clicks:      u.Clicks,
	}

	createdAt, err := time.Parse(time.RFC3339Nano, u.CreatedAt)
	if err != nil {
		return url, err
	}
	url.CreatedAt = createdAt.UTC()

	return url, nil
}

func fromEntity(url entity.URL) urlJSON {
	return urlJSON{
		OriginalURL: url.OriginalURL,
		CreatedAt:   url.CreatedAt.UTC().Format(timeLayout),
		Clicks:      url.Clicks,
	}
}

// URLRepository keeps the registry in one JSON file. Save replaces the file atomically.
type URLRepository struct {
	path   string
	logger *slog.Logger
}

func NewURLRepository(path string, logger *slog.Logger) *URLRepository {
	return &URLRepository{
		path:   path,
		logger: logger,
	}
}

// Load reads the registry. A missing or unreadable file yields an empty registry.
// A document that is not valid JSON is renamed aside and an empty registry is
// returned. Records that cannot be decoded are skipped and a bad timestamp is
// kept as the zero time, so the remaining records survive the next Save.
// A document with a newer schema version fails with ErrUnsupportedVersion.
func (r *URLRepository) Load(_ context.Context) (entity.Registry, error) {
	const op = "adapter.repository.file.URLRepository.Load"

	data, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("registry file unreadable, starting empty",
				slog.String("op", op), slog.String("path", r.path), slog.Any("err", err))
		}
		return make(entity.Registry), nil
	}

	reg, err := r.decode(data)
	if errors.Is(err, ErrUnsupportedVersion) {
		return nil, fmt.Errorf("%s: %s: %w", op, r.path, err)
	}
	if err != nil {
		backup := fmt.Sprintf("%s.corrupt-%d", r.path, time.Now().UnixNano())
		if renameErr := os.Rename(r.path, backup); renameErr != nil {
			r.logger.Error("failed to move malformed registry file aside",
				slog.String("op", op), slog.String("path", r.path), slog.Any("err", renameErr))
			return nil, fmt.Errorf("%s: failed to move malformed registry file aside: %w", op, renameErr)
		}

		r.logger.Warn("registry file malformed, starting empty",
			slog.String("op", op), slog.String("path", r.path),
			slog.String("backup", backup), slog.Any("err", err))
		return make(entity.Registry), nil
	}

	return reg, nil
}

// Save writes reg to a temporary file next to the target and renames it into place.
func (r *URLRepository) Save(_ context.Context, reg entity.Registry) error {
	const op = "adapter.repository.file.URLRepository.Save"

	data, err := encode(reg)
	if err != nil {
		return fmt.Errorf("%s: failed to encode registry: %w", op, err)
	}

	if err := writeFileAtomic(r.path, data); err != nil {
		return fmt.Errorf("%s: failed to write registry file: %w", op, err)
	}

	return nil
}

func encode(reg entity.Registry) ([]byte, error) {
	doc := documentJSON{
		Version: SchemaVersion,
		URLs:    make(map[string]urlJSON, len(reg)),
	}
	for code, url := range reg {
		doc.URLs[code] = fromEntity(url)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}

	return append(data, '\n'), nil
}

// decode accepts both the versioned document and the legacy bare map of
// short code to record.
func (r *URLRepository) decode(data []byte) (entity.Registry, error) {
	const op = "adapter.repository.file.URLRepository.decode"

	var records map[string]json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	if isVersioned(records) {
		var doc struct {
			Version int                        `json:"version"`
			URLs    map[string]json.RawMessage `json:"urls"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if doc.Version > SchemaVersion {
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
		}
		records = doc.URLs
	}

	reg := make(entity.Registry, len(records))
	for code, raw := range records {
		var u urlJSON
		if err := json.Unmarshal(raw, &u); err != nil {
			r.logger.Warn("skipping undecodable registry record",
				slog.String("op", op), slog.String("code", code), slog.Any("err", err))
			continue
		}

		url, err := u.toEntity(code)
		if err != nil {
			r.logger.Warn("registry record has invalid createdAt, keeping it",
				slog.String("op", op), slog.String("code", code), slog.Any("err", err))
		}
		reg[code] = url
	}

	return reg, nil
}

// isVersioned tells the two layouts apart. In the legacy layout every value is an
// object, so a numeric "version" can only come from the versioned layout.
func isVersioned(top map[string]json.RawMessage) bool {
	raw, ok := top["version"]
	if !ok {
		return false
	}

	var v int
	return json.Unmarshal(bytes.TrimSpace(raw), &v) == nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if err = f.Chmod(0o644); err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}

	return os.Rename(f.Name(), path)
}
