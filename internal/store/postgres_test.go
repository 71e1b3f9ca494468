package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdock/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return newPostgresStore(mock), mock
}

func dealDoc(t *testing.T, d model.Deal) []byte {
	t.Helper()
	data, err := json.Marshal(d)
	require.NoError(t, err)
	return data
}

func TestPostgresStore_Get(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT doc FROM deals WHERE id = \$1`).
		WithArgs("d-1").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).
			AddRow(dealDoc(t, model.Deal{ID: "d-1", Title: "Launch", DockPhase: model.PhasePending})))

	d, err := s.Get(context.Background(), "d-1")
	require.NoError(t, err)
	assert.Equal(t, "Launch", d.Title)
	assert.Equal(t, model.PhasePending, d.DockPhase)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT doc FROM deals WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "get deal missing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT doc FROM deals ORDER BY created_at, id`).
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).
			AddRow(dealDoc(t, model.Deal{ID: "a"})).
			AddRow(dealDoc(t, model.Deal{ID: "b"})))

	deals, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, deals, 2)
	assert.Equal(t, "a", deals[0].ID)
	assert.Equal(t, "b", deals[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO deals \(id, doc, created_at, updated_at\)`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	d, err := s.Create(context.Background(), model.Deal{Title: "New", Source: "crm"})
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, model.PhaseIncoming, d.DockPhase)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT doc FROM deals WHERE id = \$1 FOR UPDATE`).
		WithArgs("d-1").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).
			AddRow(dealDoc(t, model.Deal{ID: "d-1", Title: "Old", DockPhase: model.PhaseIncoming})))
	mock.ExpectExec(`UPDATE deals SET doc = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "d-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	phase := model.PhasePending
	d, err := s.Update(context.Background(), "d-1", model.DealPatch{DockPhase: &phase})
	require.NoError(t, err)
	assert.Equal(t, "Old", d.Title)
	assert.Equal(t, model.PhasePending, d.DockPhase)
	assert.False(t, d.UpdatedAt.IsZero())
}

func TestPostgresStore_Update_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT doc FROM deals WHERE id = \$1 FOR UPDATE`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.Update(context.Background(), "missing", model.DealPatch{Title: model.Ptr("x")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM deals WHERE id = \$1`).
		WithArgs("d-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM deals WHERE id = \$1`).
		WithArgs("d-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.Delete(context.Background(), "d-1"))
	err := s.Delete(context.Background(), "d-1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Import(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_deals"}, []string{"id", "doc", "created_at", "updated_at"}).
		WillReturnResult(2)
	mock.ExpectExec(`ON CONFLICT`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.Import(context.Background(), []model.Deal{{ID: "a"}, {ID: "b"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS deals`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
