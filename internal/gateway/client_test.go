package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yaffalhakim1/ecommerce-api/internal/apperr"
	"github.com/yaffalhakim1/ecommerce-api/internal/models"
	"github.com/yaffalhakim1/ecommerce-api/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		serverKey:  "test-key",
		httpClient: &http.Client{Timeout: time.Second},
		policy: Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
		},
		logger: util.GetLogger(),
	}
}

func testItems() []models.OrderItem {
	return []models.OrderItem{
		{ProductID: 1, ProductName: "Mechanical Keyboard", UnitPrice: decimal.RequireFromString("75.50"), Quantity: 2},
	}
}

func TestCreateSessionSuccess(t *testing.T) {
	var gotReq sessionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/sessions", r.URL.Path)

		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "test-key", user)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Session{Token: "tok-1", RedirectURL: "https://pay.example/tok-1"})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	session, err := c.CreateSession(context.Background(), "ORD-1-abc", decimal.RequireFromString("151.00"), testItems(), Customer{ID: 7, Email: "a@b.c", Name: "Ana"})

	require.NoError(t, err)
	assert.Equal(t, "tok-1", session.Token)
	assert.Equal(t, "https://pay.example/tok-1", session.RedirectURL)
	assert.Equal(t, "ORD-1-abc", gotReq.TransactionDetails.OrderID)
	assert.Equal(t, "151.00", gotReq.TransactionDetails.GrossAmount)
	require.Len(t, gotReq.ItemDetails, 1)
	assert.Equal(t, "75.50", gotReq.ItemDetails[0].Price)
}

func TestCreateSessionRetriesServerErrors(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(Session{Token: "tok-2", RedirectURL: "https://pay.example/tok-2"})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	session, err := c.CreateSession(context.Background(), "ORD-2-abc", decimal.NewFromInt(10), testItems(), Customer{})

	require.NoError(t, err)
	assert.Equal(t, "tok-2", session.Token)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCreateSessionDoesNotRetryDefinitiveRejection(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid gross_amount"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.CreateSession(context.Background(), "ORD-3-abc", decimal.NewFromInt(10), testItems(), Customer{})

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadGateway, appErr.Code)
}

func TestCreateSessionFailsAfterExhaustedRetries(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.CreateSession(context.Background(), "ORD-4-abc", decimal.NewFromInt(10), testItems(), Customer{})

	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetStatusSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/sessions/ORD-5-abc/status", r.URL.Path)
		json.NewEncoder(w).Encode(Notification{
			OrderID:           "ORD-5-abc",
			TransactionStatus: "settlement",
			TransactionID:     "TX-99",
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	notif, err := c.GetStatus(context.Background(), "ORD-5-abc")

	require.NoError(t, err)
	assert.Equal(t, ClassSettled, notif.Class())
	assert.Equal(t, "TX-99", notif.TransactionID)
}

func TestGetStatusDoesNotRetry(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.GetStatus(context.Background(), "ORD-6-abc")

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
