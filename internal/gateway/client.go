// Package gateway is the outbound client for the external payment processor.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yaffalhakim1/ecommerce-api/internal/apperr"
	"github.com/yaffalhakim1/ecommerce-api/internal/models"
	"github.com/yaffalhakim1/ecommerce-api/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Client struct {
	baseURL    string
	serverKey  string
	httpClient *http.Client
	policy     Policy
	logger     *zap.Logger
}

// NewClient creates a gateway client with the default retry policy
func NewClient(baseURL, serverKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		serverKey:  serverKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		policy:     DefaultPolicy(),
		logger:     util.GetLogger(),
	}
}

// Session is the processor's handle for one payment attempt: the token the
// frontend embeds and the URL the customer is redirected to.
type Session struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// Customer identifies the paying customer to the processor
type Customer struct {
	ID    int64
	Email string
	Name  string
}

type sessionRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount string `json:"gross_amount"`
	} `json:"transaction_details"`
	ItemDetails     []sessionItem `json:"item_details"`
	CustomerDetails struct {
		FirstName string `json:"first_name"`
		Email     string `json:"email"`
	} `json:"customer_details"`
}

type sessionItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

// statusError distinguishes a gateway-reported status from a transport
// failure so the retry predicate can tell them apart.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.code, e.body)
}

// retryable treats transport failures and 5xx-class responses as transient.
// A 4xx is a definitive rejection and is never retried.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}

// CreateSession asks the processor for a payment session for the given
// reference and amount. Transient failures are retried with backoff; a
// failure after exhausted retries comes back as a GatewayError so the caller
// can run its compensating rollback.
func (c *Client) CreateSession(ctx context.Context, reference string, amount decimal.Decimal, items []models.OrderItem, customer Customer) (*Session, error) {
	ctx, span := util.StartSpan(ctx, "gateway.CreateSession")
	defer span.End()

	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.Observe(time.Since(start).Seconds())
	}()

	req := sessionRequest{}
	req.TransactionDetails.OrderID = reference
	req.TransactionDetails.GrossAmount = amount.StringFixed(2)
	req.CustomerDetails.FirstName = customer.Name
	req.CustomerDetails.Email = customer.Email
	for _, item := range items {
		req.ItemDetails = append(req.ItemDetails, sessionItem{
			ID:       fmt.Sprintf("%d", item.ProductID),
			Name:     item.ProductName,
			Price:    item.UnitPrice.StringFixed(2),
			Quantity: item.Quantity,
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var session Session
	err = Do(ctx, c.policy, func(ctx context.Context) error {
		return c.post(ctx, "/v1/sessions", body, &session)
	}, retryable)
	if err != nil {
		util.GatewayRequestsTotal.WithLabelValues("create_session", "failure").Inc()
		c.logger.Error("Gateway session creation failed",
			zap.String("reference", reference),
			zap.Error(err))
		return nil, apperr.Gateway(err)
	}

	util.GatewayRequestsTotal.WithLabelValues("create_session", "success").Inc()
	return &session, nil
}

// GetStatus queries the processor for the current status of a reference. No
// retries here: callers treat a failure as "status unknown" and fall back to
// the last known local state.
func (c *Client) GetStatus(ctx context.Context, reference string) (*Notification, error) {
	ctx, span := util.StartSpan(ctx, "gateway.GetStatus")
	defer span.End()

	url := fmt.Sprintf("%s/v1/sessions/%s/status", c.baseURL, reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.serverKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		util.GatewayRequestsTotal.WithLabelValues("get_status", "failure").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		util.GatewayRequestsTotal.WithLabelValues("get_status", "failure").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}

	var notif Notification
	if err := json.NewDecoder(resp.Body).Decode(&notif); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	util.GatewayRequestsTotal.WithLabelValues("get_status", "success").Inc()
	return &notif, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.serverKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{code: resp.StatusCode, body: string(respBody)}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
