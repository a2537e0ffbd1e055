package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/yaffalhakim1/ecommerce-api/internal/apperr"
	"github.com/yaffalhakim1/ecommerce-api/internal/cart"
	"github.com/yaffalhakim1/ecommerce-api/internal/gateway"
	"github.com/yaffalhakim1/ecommerce-api/internal/models"
	"github.com/yaffalhakim1/ecommerce-api/internal/service"
	"github.com/yaffalhakim1/ecommerce-api/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProductGetter looks up catalog products for cart validation.
type ProductGetter interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
}

// Handler contains HTTP handlers
type Handler struct {
	checkout   *service.CheckoutService
	orders     *service.OrderService
	reconciler *service.Reconciler
	carts      *cart.Store
	products   ProductGetter
	jwtSecret  string
	env        string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	checkout *service.CheckoutService,
	orders *service.OrderService,
	reconciler *service.Reconciler,
	carts *cart.Store,
	products ProductGetter,
	jwtSecret, env string,
) *Handler {
	return &Handler{
		checkout:   checkout,
		orders:     orders,
		reconciler: reconciler,
		carts:      carts,
		products:   products,
		jwtSecret:  jwtSecret,
		env:        env,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	// Webhook authentication is the payload signature, not a customer token.
	v1.POST("/orders/webhook", h.webhook)

	authed := v1.Group("", authMiddleware(h.jwtSecret))
	{
		authed.POST("/checkout", h.doCheckout)
		authed.GET("/orders", h.listOrders)
		authed.GET("/orders/:id", h.getOrder)
		authed.GET("/cart", h.getCart)
		authed.POST("/cart/items", h.addCartItem)
		authed.DELETE("/cart", h.clearCart)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// doCheckout converts the customer's cart into a pending order and a payment
// session.
func (h *Handler) doCheckout(c *gin.Context) {
	resp, err := h.checkout.Checkout(c.Request.Context(), userIDFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), userIDFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.respondError(c, apperr.Validation("invalid order id"))
		return
	}

	detail, err := h.orders.GetOrder(c.Request.Context(), userIDFrom(c), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// webhook receives payment notifications from the processor. 5xx answers
// make the processor resend; reconciliation is safe to retry.
func (h *Handler) webhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 64<<10)

	var notif gateway.Notification
	if err := c.ShouldBindJSON(&notif); err != nil {
		util.WebhookNotificationsTotal.WithLabelValues("malformed").Inc()
		h.respondError(c, apperr.Validation("malformed notification payload"))
		return
	}
	if notif.OrderID == "" || notif.SignatureKey == "" {
		util.WebhookNotificationsTotal.WithLabelValues("malformed").Inc()
		h.respondError(c, apperr.Validation("notification missing order_id or signature_key"))
		return
	}

	if err := h.reconciler.HandleNotification(c.Request.Context(), &notif); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

type addCartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation("invalid cart item payload"))
		return
	}

	if _, err := h.products.GetProductByID(c.Request.Context(), req.ProductID); err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.carts.AddLine(c.Request.Context(), userIDFrom(c), req.ProductID, req.Quantity); err != nil {
		h.respondError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "added"})
}

func (h *Handler) getCart(c *gin.Context) {
	lines, err := h.carts.Get(c.Request.Context(), userIDFrom(c))
	if err != nil {
		h.respondError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": lines})
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), userIDFrom(c)); err != nil {
		h.respondError(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cleared"})
}

// respondError maps the error taxonomy to HTTP. Internal detail is only
// included outside production.
func (h *Handler) respondError(c *gin.Context, err error) {
	body := gin.H{"message": apperr.PublicMessage(err)}
	if h.env != "production" {
		body["details"] = err.Error()
	}
	c.JSON(apperr.StatusCode(err), body)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
