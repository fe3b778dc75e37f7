package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tair/stock-ledger/internal/ledger/domain"
	"github.com/tair/stock-ledger/internal/ledger/usecase/command"
	"github.com/tair/stock-ledger/internal/ledger/usecase/query"
	"github.com/tair/stock-ledger/pkg/logger"
	"github.com/tair/stock-ledger/pkg/validator"
)

// LedgerHandler handles HTTP requests for the stock ledger
type LedgerHandler struct {
	// Command handlers
	applyHandler      *command.ApplyChangeHandler
	createHandler     *command.CreateStockHandler
	deactivateHandler *command.DeactivateStockHandler

	// Query handlers
	getHandler         *query.GetStockHandler
	listStockHandler   *query.ListStockHandler
	lowStockHandler    *query.ListLowStockHandler
	listEntriesHandler *query.ListEntriesHandler

	// Prometheus metrics
	requestCounter *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	changesCounter *prometheus.CounterVec
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(
	applyHandler *command.ApplyChangeHandler,
	createHandler *command.CreateStockHandler,
	deactivateHandler *command.DeactivateStockHandler,
	getHandler *query.GetStockHandler,
	listStockHandler *query.ListStockHandler,
	lowStockHandler *query.ListLowStockHandler,
	listEntriesHandler *query.ListEntriesHandler,
) *LedgerHandler {
	requestCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_service_requests_total",
			Help: "Total number of requests to the ledger service",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_service_request_duration_seconds",
			Help:    "Duration of ledger service requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	changesCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_service_stock_changes_total",
			Help: "Applied stock changes by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	prometheus.MustRegister(requestCounter)
	prometheus.MustRegister(requestLatency)
	prometheus.MustRegister(changesCounter)

	return &LedgerHandler{
		applyHandler:       applyHandler,
		createHandler:      createHandler,
		deactivateHandler:  deactivateHandler,
		getHandler:         getHandler,
		listStockHandler:   listStockHandler,
		lowStockHandler:    lowStockHandler,
		listEntriesHandler: listEntriesHandler,
		requestCounter:     requestCounter,
		requestLatency:     requestLatency,
		changesCounter:     changesCounter,
	}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware wraps handlers with Prometheus metrics
func (h *LedgerHandler) metricsMiddleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		h.requestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(rw.statusCode)).Inc()
		h.requestLatency.WithLabelValues(r.Method, endpoint).Observe(duration)
	}
}

// RegisterRoutes registers all ledger routes
func (h *LedgerHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/stock", h.metricsMiddleware("/api/stock", h.CreateStock)).Methods("POST")
	router.HandleFunc("/api/stock", h.metricsMiddleware("/api/stock", h.ListStock)).Methods("GET")
	router.HandleFunc("/api/stock/low", h.metricsMiddleware("/api/stock/low", h.ListLowStock)).Methods("GET")
	router.HandleFunc("/api/stock/{product_id}", h.metricsMiddleware("/api/stock/{product_id}", h.GetStock)).Methods("GET")
	router.HandleFunc("/api/stock/{product_id}", h.metricsMiddleware("/api/stock/{product_id}", h.DeactivateStock)).Methods("DELETE")
	router.HandleFunc("/api/stock/{product_id}/changes", h.metricsMiddleware("/api/stock/{product_id}/changes", h.ApplyChange)).Methods("POST")
	router.HandleFunc("/api/ledger", h.metricsMiddleware("/api/ledger", h.ListEntries)).Methods("GET")
}

// RegisterHealthCheck registers the health check endpoint
func (h *LedgerHandler) RegisterHealthCheck(router *mux.Router, db *sql.DB) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, Response{
					Success: false,
					Error:   "database unreachable",
				})
				return
			}
		}
		respondJSON(w, http.StatusOK, Response{Success: true, Message: "ok"})
	}).Methods("GET")
}

type createStockRequest struct {
	ProductID         string `json:"product_id" validate:"required"`
	OwnerID           string `json:"owner_id" validate:"required"`
	Quantity          int    `json:"quantity" validate:"gte=0"`
	LowStockThreshold int    `json:"low_stock_threshold" validate:"gte=0"`
}

// CreateStock handles POST /api/stock
func (h *LedgerHandler) CreateStock(w http.ResponseWriter, r *http.Request) {
	var req createStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Validation failed: field " + errs[0].FailedField + " on " + errs[0].Tag,
		})
		return
	}

	stock, err := h.createHandler.Handle(r.Context(), command.CreateStockCommand{
		ProductID:         req.ProductID,
		OwnerID:           req.OwnerID,
		Quantity:          req.Quantity,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Stock record created successfully",
		Data:    stock,
	})
}

type applyChangeRequest struct {
	Operation   string  `json:"operation" validate:"required"`
	Quantity    *int    `json:"quantity" validate:"required"`
	OrderID     *string `json:"order_id"`
	PerformedBy *string `json:"performed_by"`
	Reason      string  `json:"reason"`
}

// ApplyChange handles POST /api/stock/{product_id}/changes
func (h *LedgerHandler) ApplyChange(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	productID := vars["product_id"]

	var req applyChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid request body: quantity must be an integer",
		})
		return
	}

	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Validation failed: field " + errs[0].FailedField + " on " + errs[0].Tag,
		})
		return
	}

	result, err := h.applyHandler.Handle(r.Context(), command.ApplyChangeCommand{
		ProductID:   productID,
		Operation:   req.Operation,
		Quantity:    *req.Quantity,
		OrderID:     req.OrderID,
		PerformedBy: req.PerformedBy,
		Reason:      req.Reason,
	})
	if err != nil {
		h.changesCounter.WithLabelValues(req.Operation, "error").Inc()
		h.respondError(w, r, err)
		return
	}

	h.changesCounter.WithLabelValues(string(result.Operation), "applied").Inc()

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Stock change applied successfully",
		Data:    result,
	})
}

// GetStock handles GET /api/stock/{product_id}
func (h *LedgerHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	stock, err := h.getHandler.Handle(r.Context(), query.GetStockQuery{
		ProductID: vars["product_id"],
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    stock,
	})
}

// ListStock handles GET /api/stock
func (h *LedgerHandler) ListStock(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	stocks, err := h.listStockHandler.Handle(r.Context(), query.ListStockQuery{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    stocks,
	})
}

// ListLowStock handles GET /api/stock/low
func (h *LedgerHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.lowStockHandler.Handle(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    stocks,
	})
}

// ListEntries handles GET /api/ledger
func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.listEntriesHandler.Handle(r.Context(), query.ListEntriesQuery{
		ProductID: r.URL.Query().Get("product_id"),
		OwnerID:   r.URL.Query().Get("owner_id"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    entries,
	})
}

// DeactivateStock handles DELETE /api/stock/{product_id}
func (h *LedgerHandler) DeactivateStock(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	err := h.deactivateHandler.Handle(r.Context(), command.DeactivateStockCommand{
		ProductID: vars["product_id"],
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Stock record deactivated",
	})
}

// respondError maps the domain error taxonomy onto HTTP statuses. Every
// kind keeps its own message; validation failures never collapse into a
// generic server error.
func (h *LedgerHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		nfErr   *domain.StockNotFoundError
		opErr   *domain.InvalidOperationTypeError
		qErr    *domain.InvalidQuantityError
		insErr  *domain.InsufficientStockError
		confErr *domain.ConflictError
	)

	switch {
	case errors.As(err, &nfErr):
		respondJSON(w, http.StatusNotFound, Response{Success: false, Error: err.Error()})
	case errors.As(err, &opErr), errors.As(err, &qErr):
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: err.Error()})
	case errors.As(err, &insErr):
		respondJSON(w, http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errors.As(err, &confErr):
		respondJSON(w, http.StatusConflict, Response{
			Success: false,
			Error:   err.Error(),
			Message: "Concurrent update, please retry",
		})
	default:
		logger.Error(r.Context()).Err(err).Str("path", r.URL.Path).Msg("Request failed")
		respondJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Internal server error",
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to encode response")
	}
}
