package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"cascade-lab/internal/domain"
	"cascade-lab/internal/storage"
)

// CascadeEventStore implements storage.CascadeEventStore using PostgreSQL.
// The cascade catalog is small, curated and relational, so it lives beside
// the operational tables rather than in the timeseries database.
type CascadeEventStore struct {
	pool *Pool
}

// NewCascadeEventStore creates a new CascadeEventStore.
func NewCascadeEventStore(pool *Pool) *CascadeEventStore {
	return &CascadeEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CascadeEventStore = (*CascadeEventStore)(nil)

const cascadeColumns = `
	name, start_time, severity, duration_seconds,
	total_liquidations_usd, price_drop_pct, exchanges_affected, notes
`

// Insert adds a cascade. Returns ErrDuplicateKey if the name exists.
func (s *CascadeEventStore) Insert(ctx context.Context, c *domain.CascadeEvent) error {
	if c == nil || c.Name == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO cascade_events (` + cascadeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		c.Name,
		c.Timestamp,
		c.Severity,
		c.DurationSeconds,
		c.TotalLiquidationsUSD,
		c.PriceDropPct,
		c.ExchangesAffected,
		c.Notes,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert cascade event: %w", err)
	}
	return nil
}

// GetByName retrieves a cascade by its unique name. Returns ErrNotFound if
// it does not exist.
func (s *CascadeEventStore) GetByName(ctx context.Context, name string) (*domain.CascadeEvent, error) {
	query := `SELECT ` + cascadeColumns + ` FROM cascade_events WHERE name = $1`

	row := s.pool.QueryRow(ctx, query, name)
	c, err := scanCascade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get cascade by name: %w", err)
	}
	return c, nil
}

// GetAll retrieves every cascade, ordered by start timestamp ASC.
func (s *CascadeEventStore) GetAll(ctx context.Context) ([]*domain.CascadeEvent, error) {
	query := `SELECT ` + cascadeColumns + ` FROM cascade_events ORDER BY start_time ASC, name ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all cascades: %w", err)
	}
	defer rows.Close()

	return scanCascades(rows)
}

// GetOverlapping retrieves cascades whose span intersects [start, end],
// ordered by start ASC.
func (s *CascadeEventStore) GetOverlapping(ctx context.Context, start, end float64) ([]*domain.CascadeEvent, error) {
	query := `
		SELECT ` + cascadeColumns + `
		FROM cascade_events
		WHERE start_time <= $2 AND start_time + duration_seconds >= $1
		ORDER BY start_time ASC, name ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query overlapping cascades: %w", err)
	}
	defer rows.Close()

	return scanCascades(rows)
}

// Seed inserts the curated historical cascades, skipping any already present.
func (s *CascadeEventStore) Seed(ctx context.Context) error {
	for _, c := range domain.KnownCascades() {
		cascade := c
		if err := s.Insert(ctx, &cascade); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("seed cascade %s: %w", c.Name, err)
		}
	}
	return nil
}

type pgRow interface {
	Scan(dest ...any) error
}

func scanCascade(row pgRow) (*domain.CascadeEvent, error) {
	var c domain.CascadeEvent
	err := row.Scan(
		&c.Name,
		&c.Timestamp,
		&c.Severity,
		&c.DurationSeconds,
		&c.TotalLiquidationsUSD,
		&c.PriceDropPct,
		&c.ExchangesAffected,
		&c.Notes,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCascades(rows pgx.Rows) ([]*domain.CascadeEvent, error) {
	var result []*domain.CascadeEvent
	for rows.Next() {
		c, err := scanCascade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cascade row: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cascade rows: %w", err)
	}
	return result, nil
}
