// Package sandbox serves an in-memory orders API for local development. It speaks the
// same routes the rest client calls.
package sandbox

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kbsmaine/boilerparts/checkout"
	"github.com/kbsmaine/boilerparts/money"
	"github.com/kbsmaine/boilerparts/provider"
	"github.com/kbsmaine/boilerparts/provider/rest"
)

// Server exposes a provider.Backend over HTTP.
type Server struct {
	backend provider.Backend
	replay  *ReplayCache
	logger  *zap.Logger
	engine  *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

func WithReplayCache(c *ReplayCache) Option {
	return func(s *Server) {
		if c != nil {
			s.replay = c
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewServer(backend provider.Backend, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		replay:  NewReplayCache(DefaultReplayTTL),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.accessLog())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	orders := engine.Group(rest.OrdersPath, s.idempotent())
	orders.POST("", s.createOrder)
	orders.POST("/:id/"+rest.CaptureVerb, s.captureOrder)
	s.engine = engine
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) createOrder(c *gin.Context) {
	var req rest.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if req.Intent != rest.IntentCapture {
		writeError(c, http.StatusUnprocessableEntity, provider.ErrNameUnprocessable, "intent must be CAPTURE")
		return
	}
	if len(req.PurchaseUnits) != 1 {
		writeError(c, http.StatusUnprocessableEntity, provider.ErrNameUnprocessable, "exactly one purchase unit is required")
		return
	}
	unit := req.PurchaseUnits[0]
	amount, err := money.Parse(unit.Amount.Value)
	if err != nil {
		writeError(c, http.StatusUnprocessableEntity, provider.ErrNameInvalidAmount, err.Error())
		return
	}

	order, err := s.backend.CreateOrder(c.Request.Context(), checkout.OrderRequest{
		Amount:      amount,
		Currency:    unit.Amount.CurrencyCode,
		Description: unit.Description,
	})
	if err != nil {
		s.backendError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rest.OrderResponse{
		ID:     order.ID,
		Status: order.Status,
		PurchaseUnits: []rest.PurchaseUnit{{
			Amount:      rest.Money{CurrencyCode: order.Currency, Value: order.Amount.String()},
			Description: order.Description,
		}},
	})
}

func (s *Server) captureOrder(c *gin.Context) {
	capture, err := s.backend.CaptureOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.backendError(c, err)
		return
	}

	amount := rest.Money{CurrencyCode: capture.Currency, Value: capture.Amount.String()}
	resp := rest.OrderResponse{
		ID:     capture.OrderID,
		Status: capture.Status,
		PurchaseUnits: []rest.PurchaseUnit{{
			Amount: amount,
			Payments: &rest.Payments{Captures: []rest.CaptureRecord{{
				ID:     capture.CaptureID,
				Status: capture.Status,
				Amount: amount,
			}}},
		}},
	}
	if capture.PayerName != "" {
		resp.Payer = &rest.Payer{Name: rest.PayerName{GivenName: capture.PayerName}}
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) backendError(c *gin.Context, err error) {
	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) {
		s.logger.Error("orders backend failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", err.Error())
		return
	}
	status := http.StatusUnprocessableEntity
	if apiErr.Name == provider.ErrNameNotFound {
		status = http.StatusNotFound
	}
	writeError(c, status, apiErr.Name, apiErr.Message)
}

func writeError(c *gin.Context, status int, name, message string) {
	c.AbortWithStatusJSON(status, rest.ErrorResponse{Name: name, Message: message})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("request_id", c.GetHeader(rest.RequestIDHeader)))
	}
}

// idempotent replays the first response recorded for a Request-Id. Server errors and
// panics are not recorded so the request can be retried.
func (s *Server) idempotent() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(rest.RequestIDHeader)
		if id == "" {
			c.Next()
			return
		}
		key := c.Request.Method + " " + c.Request.URL.Path + " " + id

		res, ok := s.reserve(c, key, id)
		if !ok {
			return
		}
		defer res.Release()

		writer := &recordingWriter{ResponseWriter: c.Writer, status: http.StatusOK}
		c.Writer = writer
		c.Next()
		c.Writer = writer.ResponseWriter

		if writer.status < http.StatusInternalServerError {
			res.Record(Response{Status: writer.status, Body: []byte(writer.body.String())})
		}
	}
}

// reserve waits out concurrent requests with the same key. It returns false once the
// response has been written from the cache.
func (s *Server) reserve(c *gin.Context, key, id string) (*Reservation, bool) {
	for {
		lookup := s.replay.Begin(key)
		switch lookup.Status {
		case ReplayNotFound:
			return lookup.Reservation, true
		case ReplayCached:
			s.logger.Debug("replaying response", zap.String("request_id", id))
			replay(c, lookup.Response)
			return nil, false
		}

		resp, recorded, err := s.replay.Await(c.Request.Context(), lookup)
		if err != nil {
			writeError(c, http.StatusServiceUnavailable, "REQUEST_CANCELLED", err.Error())
			return nil, false
		}
		if recorded {
			s.logger.Debug("replaying response", zap.String("request_id", id))
			replay(c, resp)
			return nil, false
		}
	}
}

func replay(c *gin.Context, r Response) {
	c.Header("Content-Type", "application/json; charset=utf-8")
	c.Header("Idempotent-Replayed", "true")
	c.Status(r.Status)
	_, _ = c.Writer.Write(r.Body)
	c.Abort()
}

// recordingWriter tees the response into a buffer.
type recordingWriter struct {
	gin.ResponseWriter
	body   strings.Builder
	status int
}

func (w *recordingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
