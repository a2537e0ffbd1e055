package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/yaffalhakim1/ecommerce-api/internal/apperr"
	"github.com/yaffalhakim1/ecommerce-api/internal/gateway"
	"github.com/yaffalhakim1/ecommerce-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrdersFixture(t *testing.T) (*OrderService, *fakeStore, *fakeGateway, *models.Order) {
	t.Helper()

	store := newFakeStore()
	store.addUser(1, "ana@example.com")
	store.addProduct(10, "Mechanical Keyboard", "75.50", 5)

	order, _, err := store.CreatePendingOrder(context.Background(), 1, "ORD-1-abc",
		[]models.CartLine{{ProductID: 10, Quantity: 1}})
	require.NoError(t, err)

	gw := &fakeGateway{}
	return NewOrderService(store, gw), store, gw, order
}

func TestGetOrderWithLiveGatewayStatus(t *testing.T) {
	svc, _, gw, order := newOrdersFixture(t)
	gw.status = &gateway.Notification{TransactionStatus: "pending"}

	detail, err := svc.GetOrder(context.Background(), 1, order.ID)
	require.NoError(t, err)

	assert.Equal(t, "pending", detail.GatewayStatus)
	assert.Empty(t, detail.Warning)
	require.Len(t, detail.Items, 1)
}

func TestGetOrderDegradesWhenGatewayUnavailable(t *testing.T) {
	svc, _, gw, order := newOrdersFixture(t)
	gw.statusErr = errors.New("connection refused")

	detail, err := svc.GetOrder(context.Background(), 1, order.ID)
	require.NoError(t, err, "gateway failure must not fail the read")

	assert.Empty(t, detail.GatewayStatus)
	assert.NotEmpty(t, detail.Warning)
	assert.Equal(t, models.OrderStatusPending, detail.Order.Status, "last known local status")
}

func TestGetOrderHidesOtherCustomersOrders(t *testing.T) {
	svc, _, _, order := newOrdersFixture(t)

	_, err := svc.GetOrder(context.Background(), 2, order.ID)
	assert.Equal(t, http.StatusNotFound, apperr.StatusCode(err))
}
