package integration

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/shipping"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/testutil"
)

// TestOrderToShipment drives a cart through order placement and batch
// processing against real Postgres and RabbitMQ.
func TestOrderToShipment(t *testing.T) {
	ctx := context.Background()
	repo := shipping.NewPostgresRepository(testutil.StartPostgres(t))

	pub, err := events.NewRabbitPublisher(testutil.StartRabbitMQ(t), "WorkflowQueue", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	svc := shipping.NewService(repo, pub, zap.NewNop(), shipping.WithPollWait(2*time.Second))

	onTime := catalog.MustProduct("Laptop", decimal.NewFromInt(1500), 20)
	c := cart.New()
	require.NoError(t, c.AddProduct(onTime, 2))

	placed, err := order.New(c, svc).PlaceOrder(ctx, shipping.NovaPoshta, time.Now().Add(time.Hour))
	require.NoError(t, err)

	status, err := svc.CheckStatus(ctx, placed)
	require.NoError(t, err)
	assert.Equal(t, shipping.StatusInProgress, status)

	// A pre-expired shipment written straight to the store.
	expired, err := repo.CreateShipping(ctx, shipping.NewShipment{
		ShippingType: shipping.UkrPoshta,
		ProductIDs:   []string{"Mouse"},
		OrderID:      "order-expired",
		Status:       shipping.StatusInProgress,
		DueDate:      time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	_, err = pub.SendNewShipping(ctx, expired)
	require.NoError(t, err)

	processed := map[string]shipping.Status{}
	require.Eventually(t, func() bool {
		results, err := svc.ProcessShippingBatch(ctx)
		if err != nil {
			t.Logf("batch: %v", err)
		}
		for _, r := range results {
			processed[r.ShippingID] = r.Status
		}
		return len(processed) == 2
	}, 20*time.Second, 100*time.Millisecond)

	assert.Equal(t, shipping.StatusCompleted, processed[placed])
	assert.Equal(t, shipping.StatusFailed, processed[expired])
	assert.Equal(t, 18, onTime.Available())
}
