package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdock/internal/db"
	"github.com/sells-group/dealdock/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresStore(pool), nil
}

func newPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{
		pool:    pool,
		closeFn: pool.Close,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS deals (
	id         TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_deals_created_at ON deals(created_at);
CREATE INDEX IF NOT EXISTS idx_deals_dock_phase ON deals(((doc->>'dockPhase')::int));
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.Deal, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM deals ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list deals")
	}
	defer rows.Close()

	deals := []model.Deal{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan deal")
		}
		d, err := decodeDeal(doc)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list deals")
		}
		deals = append(deals, *d)
	}
	return deals, eris.Wrap(rows.Err(), "postgres: iterate deals")
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Deal, error) {
	d, err := getDeal(ctx, s.pool, `SELECT doc FROM deals WHERE id = $1`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get deal %s", id)
	}
	return d, nil
}

func (s *PostgresStore) Create(ctx context.Context, deal model.Deal) (*model.Deal, error) {
	d := PrepareNew(deal, s.now())
	doc, err := encodeDeal(d)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO deals (id, doc, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		d.ID, doc, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert deal %s", d.ID)
	}
	return &d, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, patch model.DealPatch) (*model.Deal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin update")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	d, err := getDeal(ctx, tx, `SELECT doc FROM deals WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update deal %s", id)
	}

	patch.Apply(d)
	d.UpdatedAt = s.now()
	doc, err := encodeDeal(*d)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: update")
	}

	tag, err := tx.Exec(ctx,
		`UPDATE deals SET doc = $1, updated_at = $2 WHERE id = $3`,
		doc, d.UpdatedAt, id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update deal %s", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Wrapf(ErrNotFound, "deal %s", id)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit update")
	}
	return d, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM deals WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete deal %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "deal %s", id)
	}
	return nil
}

// Import bulk-upserts deals through a COPY into a temp table.
func (s *PostgresStore) Import(ctx context.Context, deals []model.Deal) (int64, error) {
	now := s.now()
	rows := make([][]any, 0, len(deals))
	for _, deal := range deals {
		d := PrepareNew(deal, now)
		doc, err := encodeDeal(d)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: import")
		}
		rows = append(rows, []any{d.ID, doc, d.CreatedAt, d.UpdatedAt})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "deals",
		Columns:      []string{"id", "doc", "created_at", "updated_at"},
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: import")
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getDeal(ctx context.Context, q rowQuerier, sql, id string) (*model.Deal, error) {
	var doc []byte
	err := q.QueryRow(ctx, sql, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan deal")
	}
	return decodeDeal(doc)
}
