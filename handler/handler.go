// Package handler provides the HTTP API for collections and records.
package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stevemurr/tinybase/schema"
	"github.com/stevemurr/tinybase/store"
)

// Handler holds the server dependencies and registers routes.
type Handler struct {
	store  store.Store
	l      *zap.Logger
	router *gin.Engine
}

// Options configure optional parts of the Handler.
type Options struct {
	// AllowedOrigins lists CORS origins; "*" allows any. Empty disables CORS headers.
	AllowedOrigins []string

	// Gatherer, if set, is exposed on GET /metrics.
	Gatherer prometheus.Gatherer
}

// New creates a Handler and wires up all routes.
func New(s store.Store, l *zap.Logger, opts Options) *Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(requestID())
	router.Use(ginzap.Ginzap(l, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(l, true))
	if len(opts.AllowedOrigins) > 0 {
		router.Use(cors(opts.AllowedOrigins))
	}

	h := &Handler{store: s, l: l, router: router}
	h.routes(opts)
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes(opts Options) {
	h.router.GET("/health", h.health)
	h.router.GET(openAPIPath, serveOpenAPI(openAPIDocument()))
	if opts.Gatherer != nil {
		h.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := h.router.Group("/api/v1")
	{
		v1.POST("/collections", h.createCollection)
		v1.GET("/collections", h.listCollections)
		v1.GET("/collections/:id", h.getCollection)
		v1.PATCH("/collections/:id", h.updateCollection)
		v1.DELETE("/collections/:id", h.deleteCollection)

		v1.POST("/collections/:id/records", h.createRecord)
		v1.GET("/collections/:id/records", h.listRecords)
		v1.GET("/collections/:id/records/:record_id", h.getRecord)
		v1.PATCH("/collections/:id/records/:record_id", h.updateRecord)
		v1.DELETE("/collections/:id/records/:record_id", h.deleteRecord)
	}
}

// ---------- middleware ----------

const requestIDHeader = "X-Request-ID"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// cors adds CORS headers for the allowed origins.
func cors(allowedOrigins []string) gin.HandlerFunc {
	// Fast path: wildcard allows everything.
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, o := range allowedOrigins {
				if strings.TrimSpace(o) == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					c.Header("Vary", "Origin")
					break
				}
			}
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// ---------- helpers ----------

// problem is the error body returned by every endpoint.
type problem struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details"`
	Status  int    `json:"status"`
}

func writeJSON(c *gin.Context, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeProblem(c, http.StatusInternalServerError, "serialization_error", "Failed to serialize data.",
			map[string]string{"json_error": err.Error()})
		return
	}
	c.Data(status, "application/json", b)
}

func writeProblem(c *gin.Context, status int, code, msg string, details any) {
	b, _ := json.Marshal(problem{Error: code, Message: msg, Details: details, Status: status})
	c.Data(status, "application/json", b)
}

// writeError maps store and validation errors to problem responses.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		verrs  schema.ValidationErrors
		serr   *store.SerializationError
		engine *store.EngineError
	)
	switch {
	case errors.As(err, &verrs):
		writeProblem(c, http.StatusUnprocessableEntity, "validation_error", "Input validation failed.", verrs)
	case errors.Is(err, store.ErrNotFound):
		writeProblem(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.As(err, &serr):
		h.l.Error("Serialization failed.", zap.Error(err))
		writeProblem(c, http.StatusInternalServerError, "serialization_error", "Failed to serialize data.",
			map[string]string{"json_error": serr.Err.Error()})
	case errors.As(err, &engine):
		h.l.Error("Store operation failed.", zap.String("op", engine.Op), zap.Error(engine.Err))
		writeProblem(c, http.StatusInternalServerError, "database_error", "A database error occurred.",
			map[string]string{"db_error": engine.Err.Error()})
	default:
		h.l.Error("Unexpected error.", zap.Error(err))
		writeProblem(c, http.StatusInternalServerError, "unknown_error", "An unknown error occurred.",
			map[string]string{"error": err.Error()})
	}
}

func badRequest(c *gin.Context, msg string) {
	writeProblem(c, http.StatusBadRequest, "bad_request", msg, nil)
}

// readBody decodes the JSON request body into v, keeping numbers as json.Number.
func readBody(c *gin.Context, v any) error {
	raw, err := c.GetRawData()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after the JSON value")
	}
	return nil
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		badRequest(c, fmt.Sprintf("invalid %s: %q", name, c.Param(name)))
		return 0, false
	}
	return id, true
}

// ---------- status endpoints ----------

func (h *Handler) health(c *gin.Context) {
	writeJSON(c, http.StatusOK, map[string]string{"status": "healthy"})
}
