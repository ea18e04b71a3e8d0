package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"loyaltyDex/internal/model"
	"loyaltyDex/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	token_a    TEXT NOT NULL,
	token_b    TEXT NOT NULL,
	reserve_a  NUMERIC(78, 0) NOT NULL,
	reserve_b  NUMERIC(78, 0) NOT NULL,
	lp_supply  NUMERIC(78, 0) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (token_a, token_b)
);

CREATE TABLE IF NOT EXISTS lp_positions (
	token_a    TEXT NOT NULL,
	token_b    TEXT NOT NULL,
	provider   TEXT NOT NULL,
	shares     NUMERIC(78, 0) NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (token_a, token_b, provider)
);

CREATE TABLE IF NOT EXISTS pool_window_stats (
	token_a             TEXT NOT NULL,
	token_b             TEXT NOT NULL,
	window_size_seconds BIGINT NOT NULL,
	window_start_ts     TIMESTAMPTZ NOT NULL,
	window_end_ts       TIMESTAMPTZ NOT NULL,
	swap_count          BIGINT NOT NULL,
	volume_a            NUMERIC(78, 0) NOT NULL,
	volume_b            NUMERIC(78, 0) NOT NULL,
	fee_a               NUMERIC(78, 0) NOT NULL,
	fee_b               NUMERIC(78, 0) NOT NULL,
	liquidity_adds      BIGINT NOT NULL,
	liquidity_removals  BIGINT NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (token_a, token_b, window_size_seconds, window_start_ts)
);

CREATE TABLE IF NOT EXISTS stats_state (
	name              TEXT PRIMARY KEY,
	last_processed_ts BIGINT NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for pools, positions and window stats.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Migrate creates the tables used by the store.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// maxSerializationAttempts bounds how often Update reruns a unit of work that
// lost a serialization conflict.
const maxSerializationAttempts = 5

// Update runs fn inside a serializable transaction. A unit of work that fails
// with a serialization failure or deadlock is rolled back and run again, so the
// loser of a race sees the winner's committed state.
func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxSerializationAttempts; attempt++ {
		err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(pgTx pgx.Tx) error {
			return fn(&tx{tx: pgTx})
		})
		if !retryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("serializable update after %d attempts: %w", maxSerializationAttempts, err)
}

// retryable reports serialization_failure (40001) and deadlock_detected (40P01).
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(pgTx pgx.Tx) error {
		return fn(&tx{tx: pgTx, readOnly: true})
	})
}

// ListPools returns every pool ordered by key.
func (s *Store) ListPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT token_a, token_b, reserve_a::text, reserve_b::text, lp_supply::text
		FROM pools
		ORDER BY token_a COLLATE "C", token_b COLLATE "C"
	`)
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	defer rows.Close()

	pools := make([]model.Pool, 0)
	for rows.Next() {
		pool, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pools: %w", err)
	}
	return pools, nil
}

type tx struct {
	tx       pgx.Tx
	readOnly bool
}

func (t *tx) GetPool(ctx context.Context, key model.PoolKey) (model.Pool, bool, error) {
	query := `
		SELECT token_a, token_b, reserve_a::text, reserve_b::text, lp_supply::text
		FROM pools
		WHERE token_a = $1 AND token_b = $2
	`
	if !t.readOnly {
		query += ` FOR UPDATE`
	}
	pool, err := scanPool(t.tx.QueryRow(ctx, query, addressText(key.TokenA), addressText(key.TokenB)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pool{}, false, nil
		}
		return model.Pool{}, false, err
	}
	return pool, true, nil
}

func (t *tx) SetPool(ctx context.Context, pool model.Pool) error {
	if t.readOnly {
		return storage.ErrReadOnly
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO pools (token_a, token_b, reserve_a, reserve_b, lp_supply, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, now(), now())
		ON CONFLICT (token_a, token_b)
		DO UPDATE SET
			reserve_a = EXCLUDED.reserve_a,
			reserve_b = EXCLUDED.reserve_b,
			lp_supply = EXCLUDED.lp_supply,
			updated_at = now()
	`,
		addressText(pool.TokenA),
		addressText(pool.TokenB),
		pool.ReserveA.String(),
		pool.ReserveB.String(),
		pool.LPSupply.String(),
	)
	if err != nil {
		return fmt.Errorf("upsert pool %s: %w", pool.Key(), err)
	}
	return nil
}

func (t *tx) HasPool(ctx context.Context, key model.PoolKey) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pools WHERE token_a = $1 AND token_b = $2)`,
		addressText(key.TokenA), addressText(key.TokenB),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pool %s: %w", key, err)
	}
	return exists, nil
}

func (t *tx) GetPosition(ctx context.Context, key model.PoolKey, provider common.Address) (model.LiquidityPosition, bool, error) {
	var shares string
	err := t.tx.QueryRow(ctx, `
		SELECT shares::text FROM lp_positions
		WHERE token_a = $1 AND token_b = $2 AND provider = $3
	`, addressText(key.TokenA), addressText(key.TokenB), addressText(provider)).Scan(&shares)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.NewPosition(key, provider), false, nil
		}
		return model.LiquidityPosition{}, false, fmt.Errorf("get position %s: %w", key, err)
	}

	value, err := parseAmount(shares)
	if err != nil {
		return model.LiquidityPosition{}, false, err
	}
	return model.LiquidityPosition{Pool: key, Provider: provider, Shares: value}, true, nil
}

func (t *tx) SetPosition(ctx context.Context, position model.LiquidityPosition) error {
	if t.readOnly {
		return storage.ErrReadOnly
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO lp_positions (token_a, token_b, provider, shares, updated_at)
		VALUES ($1, $2, $3, $4::numeric, now())
		ON CONFLICT (token_a, token_b, provider)
		DO UPDATE SET shares = EXCLUDED.shares, updated_at = now()
	`,
		addressText(position.Pool.TokenA),
		addressText(position.Pool.TokenB),
		addressText(position.Provider),
		position.Shares.String(),
	)
	if err != nil {
		return fmt.Errorf("upsert position %s: %w", position.Pool, err)
	}
	return nil
}

// UpsertWindowStats inserts or updates window stats.
func (s *Store) UpsertWindowStats(ctx context.Context, stats []model.PoolWindowStats) error {
	if len(stats) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range stats {
		batch.Queue(`
			INSERT INTO pool_window_stats (
				token_a, token_b, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, volume_a, volume_b, fee_a, fee_b, liquidity_adds, liquidity_removals,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8::numeric,$9::numeric,$10::numeric,$11,$12,now(),now())
			ON CONFLICT (token_a, token_b, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				volume_a = EXCLUDED.volume_a,
				volume_b = EXCLUDED.volume_b,
				fee_a = EXCLUDED.fee_a,
				fee_b = EXCLUDED.fee_b,
				liquidity_adds = EXCLUDED.liquidity_adds,
				liquidity_removals = EXCLUDED.liquidity_removals,
				updated_at = now()
		`,
			strings.ToLower(m.TokenA),
			strings.ToLower(m.TokenB),
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			m.VolumeA,
			m.VolumeB,
			m.FeeA,
			m.FeeB,
			int64(m.LiquidityAdds),
			int64(m.LiquidityRemovals),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range stats {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM stats_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO stats_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}

func scanPool(row pgx.Row) (model.Pool, error) {
	var tokenA, tokenB, reserveA, reserveB, supply string
	if err := row.Scan(&tokenA, &tokenB, &reserveA, &reserveB, &supply); err != nil {
		return model.Pool{}, err
	}

	pool := model.Pool{
		TokenA: common.HexToAddress(tokenA),
		TokenB: common.HexToAddress(tokenB),
	}
	var err error
	if pool.ReserveA, err = parseAmount(reserveA); err != nil {
		return model.Pool{}, err
	}
	if pool.ReserveB, err = parseAmount(reserveB); err != nil {
		return model.Pool{}, err
	}
	if pool.LPSupply, err = parseAmount(supply); err != nil {
		return model.Pool{}, err
	}
	return pool, nil
}

func parseAmount(value string) (math.Int, error) {
	parsed, ok := math.NewIntFromString(value)
	if !ok {
		return math.Int{}, fmt.Errorf("invalid numeric: %s", value)
	}
	return parsed, nil
}

// addressText is the lower-case hex form, whose text order matches byte order.
func addressText(address common.Address) string {
	return strings.ToLower(address.Hex())
}
