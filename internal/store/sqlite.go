package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dealdock/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// created_at and updated_at hold unix nanoseconds so ordering is numeric.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS deals (
	id         TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deals_created_at ON deals(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.Deal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM deals ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list deals")
	}
	defer rows.Close() //nolint:errcheck

	deals := []model.Deal{}
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, *d)
	}
	return deals, eris.Wrap(rows.Err(), "sqlite: iterate deals")
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Deal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT doc FROM deals WHERE id = ?`, id)
	d, err := scanDeal(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get deal %s", id)
	}
	return d, nil
}

func (s *SQLiteStore) Create(ctx context.Context, deal model.Deal) (*model.Deal, error) {
	d := PrepareNew(deal, s.now())
	doc, err := encodeDeal(d)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deals (id, doc, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		d.ID, doc, d.CreatedAt.UnixNano(), d.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert deal %s", d.ID)
	}
	return &d, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, patch model.DealPatch) (*model.Deal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin update")
	}
	defer func() { _ = tx.Rollback() }()

	d, err := scanDeal(tx.QueryRowContext(ctx, `SELECT doc FROM deals WHERE id = ?`, id))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update deal %s", id)
	}

	patch.Apply(d)
	d.UpdatedAt = s.now()
	doc, err := encodeDeal(*d)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: update")
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE deals SET doc = ?, updated_at = ? WHERE id = ?`,
		doc, d.UpdatedAt.UnixNano(), id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update deal %s", id)
	}
	if err := checkRowsAffected(res, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit update")
	}
	return d, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM deals WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete deal %s", id)
	}
	return checkRowsAffected(res, id)
}

// Import upserts deals in one transaction.
func (s *SQLiteStore) Import(ctx context.Context, deals []model.Deal) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	var n int64
	for _, deal := range deals {
		d := PrepareNew(deal, now)
		doc, err := encodeDeal(d)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: import")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO deals (id, doc, created_at, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, created_at = excluded.created_at, updated_at = excluded.updated_at`,
			d.ID, doc, d.CreatedAt.UnixNano(), d.UpdatedAt.UnixNano(),
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import deal %s", d.ID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import")
	}
	return n, nil
}

// helpers

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "deal %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDeal(row scannable) (*model.Deal, error) {
	var doc string
	err := row.Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan deal")
	}
	return decodeDeal([]byte(doc))
}
