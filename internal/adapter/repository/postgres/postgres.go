// Package postgres stores the URL registry in a PostgreSQL table.
//
// The table is still treated as one document: Load reads every row and Save
// replaces the whole table inside a transaction.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

// Migrations holds the schema for the urls table, to be applied with golang-migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the .sql files.
const MigrationsDir = "migrations"

// insertBatchSize keeps a batch insert under the 65535 bind parameter limit.
const insertBatchSize = 1000

type urlDB struct {
	ShortCode   string    `db:"short_code"`
	OriginalURL string    `db:"original_url"`
	Clicks      int64     `db:"clicks"`
	CreatedAt   time.Time `db:"created_at"`
}

func (u *urlDB) toEntity() entity.URL {
	return entity.URL{
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		Clicks:      u.Clicks,
		CreatedAt:   u.CreatedAt.UTC(),
	}
}

func toDB(url entity.URL) urlDB {
	return urlDB{
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		Clicks:      url.Clicks,
		CreatedAt:   url.CreatedAt,
	}
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

// Load returns every stored record. Unlike the file store it does not fail open:
// an unreachable database must not be mistaken for an empty one, since the next
// Save would then wipe it.
func (r *URLRepository) Load(ctx context.Context) (entity.Registry, error) {
	const op = "adapter.repository.postgres.URLRepository.Load"
	const query = `SELECT short_code, original_url, clicks, created_at FROM urls`

	var rows []urlDB

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("%s: failed to select from urls table: %w", op, err)
	}

	reg := make(entity.Registry, len(rows))
	for _, row := range rows {
		reg[row.ShortCode] = row.toEntity()
	}

	return reg, nil
}

// Save replaces the contents of the urls table with reg.
func (r *URLRepository) Save(ctx context.Context, reg entity.Registry) (err error) {
	const op = "adapter.repository.postgres.URLRepository.Save"
	const deleteQuery = `DELETE FROM urls`
	const insertQuery = `INSERT INTO urls (short_code, original_url, clicks, created_at)
		VALUES (:short_code, :original_url, :clicks, :created_at)`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, deleteQuery); err != nil {
		return fmt.Errorf("%s: failed to clear urls table: %w", op, err)
	}

	if len(reg) > 0 {
		rows := lo.MapToSlice(reg, func(_ string, url entity.URL) urlDB {
			return toDB(url)
		})

		for _, batch := range lo.Chunk(rows, insertBatchSize) {
			if _, err = tx.NamedExecContext(ctx, insertQuery, batch); err != nil {
				return fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}
