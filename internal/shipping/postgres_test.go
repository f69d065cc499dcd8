package shipping

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shipmentColumns = []string{
	"shipping_id", "shipping_type", "order_id", "product_ids",
	"shipping_status", "created_date", "due_date", "updated_at",
}

func newMockRepository(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	repo := NewPostgresRepository(mock)
	repo.now = fixedClock(baseTime)
	return repo, mock
}

func TestPostgresRepository_CreateShipping(t *testing.T) {
	repo, mock := newMockRepository(t)
	due := baseTime.Add(3 * time.Second)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO shipments`)).
		WithArgs(pgxmock.AnyArg(), "Нова Пошта", "order-1", "Widget,Gadget", "created", baseTime, due, baseTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := repo.CreateShipping(context.Background(), NewShipment{
		ShippingType: NovaPoshta,
		ProductIDs:   []string{"Widget", "Gadget"},
		OrderID:      "order-1",
		Status:       StatusCreated,
		DueDate:      due,
	})
	require.NoError(t, err)
	assert.Len(t, id, 36)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateShippingError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO shipments`)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("insert failed"))

	_, err := repo.CreateShipping(context.Background(), NewShipment{ShippingType: UkrPoshta, Status: StatusCreated, DueDate: baseTime})
	require.ErrorContains(t, err, "insert failed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateShippingRejectsUnknownStatus(t *testing.T) {
	repo, mock := newMockRepository(t)

	_, err := repo.CreateShipping(context.Background(), NewShipment{ShippingType: UkrPoshta, Status: "shipped"})
	require.ErrorIs(t, err, ErrInvalidStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetShipping(t *testing.T) {
	repo, mock := newMockRepository(t)
	due := baseTime.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM shipments WHERE shipping_id=$1`)).
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows(shipmentColumns).
			AddRow("s-1", "Meest Express", "order-9", "Laptop,Mouse", "in_progress", baseTime, due, baseTime))

	sh, err := repo.GetShipping(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, Shipment{
		ShippingID:   "s-1",
		ShippingType: MeestExpress,
		OrderID:      "order-9",
		ProductIDs:   []string{"Laptop", "Mouse"},
		Status:       StatusInProgress,
		CreatedAt:    baseTime,
		DueDate:      due,
		UpdatedAt:    baseTime,
	}, sh)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetShippingMissing(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM shipments WHERE shipping_id=$1`)).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetShipping(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpdateShippingStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("advances under row lock", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
			WithArgs("s-1").
			WillReturnRows(pgxmock.NewRows([]string{"shipping_status", "updated_at"}).
				AddRow("in_progress", baseTime.Add(-time.Minute)))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE shipments`)).
			WithArgs("s-1", "completed", baseTime).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		res, err := repo.UpdateShippingStatus(ctx, "s-1", StatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, UpdateResult{
			ShippingID: "s-1",
			Previous:   StatusInProgress,
			Status:     StatusCompleted,
			Applied:    true,
			UpdatedAt:  baseTime,
		}, res)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("terminal record is acknowledged without write", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		stamped := baseTime.Add(-time.Hour)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
			WithArgs("s-2").
			WillReturnRows(pgxmock.NewRows([]string{"shipping_status", "updated_at"}).
				AddRow("failed", stamped))
		mock.ExpectRollback()

		res, err := repo.UpdateShippingStatus(ctx, "s-2", StatusCompleted)
		require.NoError(t, err)
		assert.False(t, res.Applied)
		assert.Equal(t, StatusFailed, res.Status)
		assert.Equal(t, stamped, res.UpdatedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing record", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
			WithArgs("ghost").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.UpdateShippingStatus(ctx, "ghost", StatusFailed)
		require.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin error surfaces", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectBegin().WillReturnError(errors.New("cannot begin"))

		_, err := repo.UpdateShippingStatus(ctx, "s-1", StatusFailed)
		require.ErrorContains(t, err, "cannot begin")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec failure rolls back", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
			WithArgs("s-3").
			WillReturnRows(pgxmock.NewRows([]string{"shipping_status", "updated_at"}).
				AddRow("created", baseTime))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE shipments`)).
			WithArgs("s-3", "in_progress", baseTime).
			WillReturnError(errors.New("update fail"))
		mock.ExpectRollback()

		_, err := repo.UpdateShippingStatus(ctx, "s-3", StatusInProgress)
		require.ErrorContains(t, err, "update fail")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSplitProductIDs(t *testing.T) {
	assert.Equal(t, []string{}, splitProductIDs(""))
	assert.Equal(t, []string{"Widget"}, splitProductIDs("Widget"))
	assert.Equal(t, []string{"A", "B", "C"}, splitProductIDs("A,B,C"))
}
