package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rl1809/crm/internal/core/service"
	"github.com/rl1809/crm/internal/platform/logger"
)

const requestIDHeader = "X-Request-ID"

// Pinger is anything /health can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPHandler struct {
	engine *gin.Engine
	gw     *Gateway
	probes map[string]Pinger
	log    *logger.Logger
}

type HTTPOption func(r *gin.Engine)

// WithCORS allows browser clients from origins. No origins leaves CORS off.
func WithCORS(origins []string) HTTPOption {
	return func(r *gin.Engine) {
		if len(origins) == 0 {
			return
		}
		r.Use(cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Content-Type", requestIDHeader},
			ExposeHeaders: []string{requestIDHeader},
			MaxAge:        12 * time.Hour,
		}))
	}
}

func NewHTTPHandler(gw *Gateway, probes map[string]Pinger, log *logger.Logger, opts ...HTTPOption) *HTTPHandler {
	if log == nil {
		log = logger.Nop()
	}
	r := gin.New()
	h := &HTTPHandler{engine: r, gw: gw, probes: probes, log: log.With("component", "http")}
	r.Use(h.requestID(), h.accessLog(), gin.Recovery())
	for _, opt := range opts {
		opt(r)
	}
	h.registerRoutes()
	return h
}

func (h *HTTPHandler) Engine() *gin.Engine { return h.engine }

func (h *HTTPHandler) registerRoutes() {
	h.engine.GET("/health", h.HealthCheck)

	v1 := h.engine.Group("/api/v1")
	{
		v1.POST("/mutations", h.mutate)

		customers := v1.Group("/customers")
		customers.POST("", h.mutation(service.KindCreateCustomer, http.StatusCreated))
		customers.POST("/bulk", h.mutation(service.KindBulkCreateCustomers, http.StatusOK))
		customers.GET("", h.listCustomers)
		customers.GET("/:id", h.get("customers"))

		products := v1.Group("/products")
		products.POST("", h.mutation(service.KindCreateProduct, http.StatusCreated))
		products.POST("/restock", h.mutation(service.KindRestockLowStock, http.StatusOK))
		products.GET("", h.listProducts)
		products.GET("/:id", h.get("products"))

		orders := v1.Group("/orders")
		orders.POST("", h.mutation(service.KindCreateOrder, http.StatusCreated))
		orders.GET("", h.listOrders)
		orders.GET("/:id", h.get("orders"))
	}
}

func (h *HTTPHandler) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (h *HTTPHandler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.Info("http request",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// mutate serves the tagged envelope: {"kind": "...", "input": {...}}.
func (h *HTTPHandler) mutate(c *gin.Context) {
	var req MutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, badRequest("invalid json"))
		return
	}
	h.run(c, req, http.StatusOK)
}

// mutation serves a convenience route whose body is the bare input.
func (h *HTTPHandler) mutation(kind service.MutationKind, status int) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := json.RawMessage("{}")
		if kind != service.KindRestockLowStock {
			body, err := c.GetRawData()
			if err != nil || !json.Valid(body) {
				h.respondError(c, badRequest("invalid json"))
				return
			}
			raw = body
		}
		h.run(c, MutationRequest{Kind: kind, Input: raw}, status)
	}
}

func (h *HTTPHandler) run(c *gin.Context, req MutationRequest, status int) {
	res, err := h.gw.Mutate(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, ok(res))
}

func (h *HTTPHandler) listCustomers(c *gin.Context) {
	var q CustomerQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondError(c, badRequest("invalid query: %v", err))
		return
	}
	list, err := h.gw.listCustomers(c.Request.Context(), q)
	h.respond(c, list, err)
}

func (h *HTTPHandler) listProducts(c *gin.Context) {
	var q ProductQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondError(c, badRequest("invalid query: %v", err))
		return
	}
	list, err := h.gw.listProducts(c.Request.Context(), q)
	h.respond(c, list, err)
}

func (h *HTTPHandler) listOrders(c *gin.Context) {
	var q OrderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondError(c, badRequest("invalid query: %v", err))
		return
	}
	list, err := h.gw.listOrders(c.Request.Context(), q)
	h.respond(c, list, err)
}

// get answers 200 with a null payload for ids that do not resolve.
func (h *HTTPHandler) get(entity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			h.respondError(c, badRequest("invalid id"))
			return
		}
		v, err := h.gw.Query(c.Request.Context(), QueryRequest{Entity: entity, ID: id})
		h.respond(c, v, err)
	}
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	status := http.StatusOK
	checks := make(map[string]string, len(h.probes))
	for name, p := range h.probes {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

func (h *HTTPHandler) respond(c *gin.Context, data any, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ok(data))
}

func (h *HTTPHandler) respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "request_id", c.GetString("request_id"), "error", err)
	}
	c.JSON(status, fail(err))
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id %q", s)
	}
	return id, nil
}
