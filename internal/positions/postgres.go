package positions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tradepairs/pairs-backend/internal/assets"
	"github.com/tradepairs/pairs-backend/internal/pairs"
	"github.com/tradepairs/pairs-backend/internal/trade"
)

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// PostgresRepository stores positions in the positions table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectPosition = `
	SELECT id::text, owner, pair, side, collateral,
	       amount::text, leverage::text, entry_price::text, opened_at
	FROM positions`

func (r *PostgresRepository) Create(ctx context.Context, p Position) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO positions (id, owner, pair, side, collateral, amount, leverage, entry_price, opened_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9)
	`,
		p.ID.String(),
		p.Owner,
		string(p.Pair),
		string(p.Side),
		string(p.Collateral),
		p.Amount.String(),
		p.Leverage.String(),
		p.EntryPrice.String(),
		p.OpenedAt,
	)
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Position, error) {
	row := r.pool.QueryRow(ctx, selectPosition+` WHERE id = $1::uuid`, id.String())
	p, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Position{}, ErrNotFound
	}
	if err != nil {
		return Position{}, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, owner string) ([]Position, error) {
	rows, err := r.pool.Query(ctx, selectPosition+` WHERE owner = $1 ORDER BY opened_at, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return out, nil
}

func scanPosition(row pgx.Row) (Position, error) {
	var (
		id, owner, pair, side, collateral string
		amount, leverage, entryPrice      string
		openedAt                          time.Time
	)
	if err := row.Scan(&id, &owner, &pair, &side, &collateral, &amount, &leverage, &entryPrice, &openedAt); err != nil {
		return Position{}, err
	}

	p := Position{
		Owner:      owner,
		Pair:       pairs.Identifier(pair),
		Side:       trade.Side(side),
		Collateral: assets.Asset(collateral),
		OpenedAt:   openedAt.UTC(),
	}

	var err error
	if p.ID, err = uuid.Parse(id); err != nil {
		return Position{}, err
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return Position{}, err
	}
	if p.Leverage, err = decimal.NewFromString(leverage); err != nil {
		return Position{}, err
	}
	if p.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
		return Position{}, err
	}
	return p, nil
}
