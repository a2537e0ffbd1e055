package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yaffalhakim1/ecommerce-api/internal/apperr"
	"github.com/yaffalhakim1/ecommerce-api/internal/gateway"
	"github.com/yaffalhakim1/ecommerce-api/internal/models"

	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory stand-in for the SQL store. Its transactional
// methods take one lock for the whole operation, mirroring the row-locked
// transactions of the real store.
type fakeStore struct {
	mu       sync.Mutex
	users    map[int64]*models.User
	products map[int64]*models.Product
	stock    map[int64]int
	orders   map[int64]*models.Order
	items    map[int64][]models.OrderItem
	nextID   int64

	lookups int // GetOrderByReference calls, to prove "no state touched"
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int64]*models.User),
		products: make(map[int64]*models.Product),
		stock:    make(map[int64]int),
		orders:   make(map[int64]*models.Order),
		items:    make(map[int64][]models.OrderItem),
	}
}

func (f *fakeStore) addUser(id int64, email string) {
	f.users[id] = &models.User{ID: id, Email: email, Name: fmt.Sprintf("user-%d", id)}
}

func (f *fakeStore) addProduct(id int64, name, price string, stock int) {
	f.products[id] = &models.Product{ID: id, Name: name, Price: decimal.RequireFromString(price)}
	f.stock[id] = stock
}

func (f *fakeStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return user, nil
}

func (f *fakeStore) CreatePendingOrder(ctx context.Context, userID int64, reference string, lines []models.CartLine) (*models.Order, []models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// All-or-nothing: validate every line before mutating stock.
	for _, line := range lines {
		product, ok := f.products[line.ProductID]
		if !ok {
			return nil, nil, apperr.NotFound(fmt.Sprintf("product %d", line.ProductID))
		}
		if f.stock[line.ProductID] < line.Quantity {
			return nil, nil, apperr.InsufficientStock(product.Name)
		}
	}

	f.nextID++
	total := decimal.Zero
	var items []models.OrderItem
	for _, line := range lines {
		product := f.products[line.ProductID]
		f.stock[line.ProductID] -= line.Quantity
		item := models.OrderItem{
			OrderID:     f.nextID,
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Quantity:    line.Quantity,
		}
		total = total.Add(item.Subtotal())
		items = append(items, item)
	}

	order := &models.Order{
		ID:                f.nextID,
		UserID:            userID,
		TotalAmount:       total.Round(2),
		Status:            models.OrderStatusPending,
		ExternalReference: reference,
		CreatedAt:         time.Now(),
	}
	f.orders[order.ID] = order
	f.items[order.ID] = items
	return order, items, nil
}

func (f *fakeStore) CancelPendingOrder(ctx context.Context, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderID]
	if !ok || order.Status != models.OrderStatusPending {
		return nil
	}
	for _, item := range f.items[orderID] {
		f.stock[item.ProductID] += item.Quantity
	}
	delete(f.orders, orderID)
	delete(f.items, orderID)
	return nil
}

func (f *fakeStore) CompleteOrder(ctx context.Context, orderID int64, paymentType, paymentTxID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderID]
	if !ok {
		return false, errors.New("order not found")
	}
	if order.Status != models.OrderStatusPending {
		return false, nil
	}
	order.Status = models.OrderStatusCompleted
	order.PaymentType = paymentType
	order.PaymentTxID = paymentTxID
	now := time.Now()
	order.PaidAt = &now
	return true, nil
}

func (f *fakeStore) FailOrderAndRelease(ctx context.Context, orderID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderID]
	if !ok {
		return false, errors.New("order not found")
	}
	if order.Status != models.OrderStatusPending {
		return false, nil
	}
	for _, item := range f.items[orderID] {
		f.stock[item.ProductID] += item.Quantity
	}
	order.Status = models.OrderStatusFailed
	return true, nil
}

func (f *fakeStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return nil, apperr.NotFound("order")
	}
	return order, nil
}

func (f *fakeStore) GetOrderByReference(ctx context.Context, reference string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	for _, order := range f.orders {
		if order.ExternalReference == reference {
			return order, nil
		}
	}
	return nil, apperr.NotFound("order")
}

func (f *fakeStore) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[orderID], nil
}

func (f *fakeStore) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, order := range f.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (f *fakeStore) stockOf(productID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[productID]
}

func (f *fakeStore) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

// fakeCarts holds carts in memory and records clears.
type fakeCarts struct {
	mu      sync.Mutex
	lines   map[int64][]models.CartLine
	cleared map[int64]int
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{
		lines:   make(map[int64][]models.CartLine),
		cleared: make(map[int64]int),
	}
}

func (f *fakeCarts) set(userID int64, lines ...models.CartLine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines[userID] = lines
}

func (f *fakeCarts) Get(ctx context.Context, userID int64) ([]models.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lines[userID], nil
}

func (f *fakeCarts) Clear(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lines, userID)
	f.cleared[userID]++
	return nil
}

func (f *fakeCarts) clearedCount(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleared[userID]
}

// fakeGateway serves both the session and status sides of the client.
type fakeGateway struct {
	mu         sync.Mutex
	sessionErr error
	statusErr  error
	status     *gateway.Notification
	sessions   int
}

func (f *fakeGateway) CreateSession(ctx context.Context, reference string, amount decimal.Decimal, items []models.OrderItem, customer gateway.Customer) (*gateway.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return &gateway.Session{
		Token:       "tok-" + reference,
		RedirectURL: "https://pay.example/" + reference,
	}, nil
}

func (f *fakeGateway) GetStatus(ctx context.Context, reference string) (*gateway.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status, nil
}

// fakePublisher counts published events.
type fakePublisher struct {
	mu        sync.Mutex
	created   int
	completed int
	failed    int
}

func (f *fakePublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return nil
}

func (f *fakePublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed++
	return nil
}

func (f *fakePublisher) PublishOrderFailed(ctx context.Context, event *models.OrderFailedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed++
	return nil
}
