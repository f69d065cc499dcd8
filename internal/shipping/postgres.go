package shipping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type PostgresRepository struct {
	pool DBPool
	now  func() time.Time
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *PostgresRepository) CreateShipping(ctx context.Context, s NewShipment) (string, error) {
	if !s.Status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s.Status)
	}

	id := uuid.NewString()
	now := r.now()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO shipments (shipping_id, shipping_type, order_id, product_ids, shipping_status, created_date, due_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, string(s.ShippingType), s.OrderID, strings.Join(s.ProductIDs, ","), string(s.Status), now, s.DueDate.UTC(), now)
	if err != nil {
		return "", fmt.Errorf("insert shipment: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) GetShipping(ctx context.Context, shippingID string) (Shipment, error) {
	var (
		s          Shipment
		typ        string
		productIDs string
		status     string
	)
	row := r.pool.QueryRow(ctx, `
		SELECT shipping_id, shipping_type, order_id, product_ids, shipping_status, created_date, due_date, updated_at
		FROM shipments WHERE shipping_id=$1
	`, shippingID)
	err := row.Scan(&s.ShippingID, &typ, &s.OrderID, &productIDs, &status, &s.CreatedAt, &s.DueDate, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shipment{}, ErrNotFound
		}
		return Shipment{}, fmt.Errorf("select shipment: %w", err)
	}

	s.ShippingType = ShippingType(typ)
	s.Status = Status(status)
	s.ProductIDs = splitProductIDs(productIDs)
	s.CreatedAt = s.CreatedAt.UTC()
	s.DueDate = s.DueDate.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

// UpdateShippingStatus locks the row so concurrent writers serialize and the
// last one to commit sees the status left by the one before it.
func (r *PostgresRepository) UpdateShippingStatus(ctx context.Context, shippingID string, status Status) (UpdateResult, error) {
	if !status.Valid() {
		return UpdateResult{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return UpdateResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		current   string
		updatedAt time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT shipping_status, updated_at
		FROM shipments
		WHERE shipping_id=$1
		FOR UPDATE
	`, shippingID).Scan(&current, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UpdateResult{}, ErrNotFound
		}
		return UpdateResult{}, fmt.Errorf("lock shipment: %w", err)
	}

	res := resolveUpdate(shippingID, Status(current), status, r.now())
	if !res.Applied {
		res.UpdatedAt = updatedAt.UTC()
		return res, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE shipments
		SET shipping_status=$2, updated_at=$3
		WHERE shipping_id=$1
	`, shippingID, string(res.Status), res.UpdatedAt)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update shipment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return UpdateResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

func splitProductIDs(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
