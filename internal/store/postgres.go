package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/shortlink/internal/shortener"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const mappingColumns = `id, code, long_url, owner_id, created_at, click_count, expires_at`

// PostgresStore is a PostgreSQL implementation of shortener.Repository and
// shortener.OwnerDirectory.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed canonical store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Insert(ctx context.Context, mapping *shortener.Mapping) error {
	query := `
		INSERT INTO short_urls (code, long_url, owner_id, created_at, click_count, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := p.pool.QueryRow(ctx, query,
		string(mapping.Code),
		mapping.LongURL,
		int64(mapping.OwnerID),
		mapping.CreatedAt,
		mapping.ClickCount,
		mapping.ExpiresAt,
	).Scan(&mapping.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return shortener.ErrConflict
			case pgForeignKeyViolation:
				return shortener.ErrOwnerNotFound
			}
		}

		return err
	}

	return nil
}

func (p *PostgresStore) GetByCode(ctx context.Context, code shortener.Code) (*shortener.Mapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM short_urls WHERE code = $1`

	return scanMapping(p.pool.QueryRow(ctx, query, string(code)))
}

func (p *PostgresStore) GetByOwnerURL(
	ctx context.Context, owner shortener.OwnerID, longURL string,
) (*shortener.Mapping, error) {
	query := `
		SELECT ` + mappingColumns + `
		FROM short_urls
		WHERE owner_id = $1 AND long_url = $2
		ORDER BY id DESC
		LIMIT 1
	`

	return scanMapping(p.pool.QueryRow(ctx, query, int64(owner), longURL))
}

func (p *PostgresStore) IncrementClicks(
	ctx context.Context, code shortener.Code, now time.Time,
) (*shortener.Mapping, error) {
	query := `
		UPDATE short_urls
		SET click_count = click_count + 1
		WHERE code = $1 AND (expires_at IS NULL OR expires_at > $2)
		RETURNING ` + mappingColumns

	return scanMapping(p.pool.QueryRow(ctx, query, string(code), now))
}

func (p *PostgresStore) UpdateURL(
	ctx context.Context, owner shortener.OwnerID, code shortener.Code, longURL string,
) (*shortener.Mapping, error) {
	query := `
		UPDATE short_urls
		SET long_url = $3
		WHERE code = $1 AND owner_id = $2
		RETURNING ` + mappingColumns

	return scanMapping(p.pool.QueryRow(ctx, query, string(code), int64(owner), longURL))
}

func (p *PostgresStore) Delete(ctx context.Context, owner shortener.OwnerID, code shortener.Code) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM short_urls WHERE code = $1 AND owner_id = $2`,
		string(code), int64(owner))
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return shortener.ErrNotFound
	}

	return nil
}

func (p *PostgresStore) ListByOwner(ctx context.Context, owner shortener.OwnerID) ([]shortener.Mapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM short_urls WHERE owner_id = $1 ORDER BY id DESC`

	rows, err := p.pool.Query(ctx, query, int64(owner))
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (shortener.Mapping, error) {
		m, err := scanMapping(row)
		if err != nil {
			return shortener.Mapping{}, err
		}

		return *m, nil
	})
}

func (p *PostgresStore) GetOwner(ctx context.Context, id shortener.OwnerID) (*shortener.Owner, error) {
	var (
		ownerID int64
		tier    string
	)

	err := p.pool.QueryRow(ctx, `SELECT id, tier FROM owners WHERE id = $1`, int64(id)).
		Scan(&ownerID, &tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrOwnerNotFound
		}

		return nil, err
	}

	return &shortener.Owner{ID: shortener.OwnerID(ownerID), Tier: shortener.Tier(tier)}, nil
}

// UpsertOwner creates or re-tiers an owner.
func (p *PostgresStore) UpsertOwner(ctx context.Context, owner shortener.Owner) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO owners (id, tier) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET tier = EXCLUDED.tier
	`, int64(owner.ID), string(owner.Tier))

	return err
}

func scanMapping(row pgx.Row) (*shortener.Mapping, error) {
	var (
		m     shortener.Mapping
		code  string
		owner int64
	)

	err := row.Scan(&m.ID, &code, &m.LongURL, &owner, &m.CreatedAt, &m.ClickCount, &m.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, err
	}

	m.Code = shortener.Code(code)
	m.OwnerID = shortener.OwnerID(owner)

	return &m, nil
}

var (
	_ shortener.Repository     = (*PostgresStore)(nil)
	_ shortener.OwnerDirectory = (*PostgresStore)(nil)
)
