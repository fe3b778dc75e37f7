package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpDelivery "github.com/tair/stock-ledger/internal/ledger/delivery/http"
	"github.com/tair/stock-ledger/internal/ledger/domain"
	"github.com/tair/stock-ledger/internal/ledger/repository"
	"github.com/tair/stock-ledger/internal/ledger/usecase/command"
	"github.com/tair/stock-ledger/internal/ledger/usecase/query"
	"github.com/tair/stock-ledger/pkg/logger"
)

// one handler for the whole package: the constructor registers Prometheus
// collectors on the default registry
func newRouter(t *testing.T, store *repository.MemoryStore) *mux.Router {
	t.Helper()
	logger.Init("ledger-service-test", false)

	handler := httpDelivery.NewLedgerHandler(
		command.NewApplyChangeHandler(store, store, nil, nil),
		command.NewCreateStockHandler(store),
		command.NewDeactivateStockHandler(store, nil),
		query.NewGetStockHandler(store, nil),
		query.NewListStockHandler(store),
		query.NewListLowStockHandler(store),
		query.NewListEntriesHandler(store),
	)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	handler.RegisterHealthCheck(router, nil)
	return router
}

func doJSON(t *testing.T, router *mux.Router, method, path, body string) (*httptest.ResponseRecorder, httpDelivery.Response) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp httpDelivery.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestLedgerHandler(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &domain.ProductStock{
		ProductID: "p1", OwnerID: "seller-1", Quantity: 10,
	}))
	require.NoError(t, store.Create(ctx, &domain.ProductStock{
		ProductID: "p2", OwnerID: "seller-2", Quantity: 1,
	}))
	router := newRouter(t, store)

	t.Run("health", func(t *testing.T) {
		rec, resp := doJSON(t, router, "GET", "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
	})

	t.Run("apply sale", func(t *testing.T) {
		rec, resp := doJSON(t, router, "POST", "/api/stock/p1/changes",
			`{"operation":"sale","quantity":3}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)

		data := resp.Data.(map[string]interface{})
		assert.Equal(t, float64(10), data["stock_before"])
		assert.Equal(t, float64(7), data["stock_after"])
	})

	t.Run("insufficient stock is 409 with amounts", func(t *testing.T) {
		rec, resp := doJSON(t, router, "POST", "/api/stock/p1/changes",
			`{"operation":"sale","quantity":10}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, resp.Error, "requested 10")
		assert.Contains(t, resp.Error, "available 7")
	})

	t.Run("operation is canonicalized once", func(t *testing.T) {
		rec, resp := doJSON(t, router, "POST", "/api/stock/p1/changes",
			`{"operation":"SALE ","quantity":1}`)
		require.Equal(t, http.StatusOK, rec.Code)

		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "sale", data["operation"])
		assert.Equal(t, float64(6), data["stock_after"])
	})

	t.Run("unknown operation is 400 naming the value", func(t *testing.T) {
		rec, resp := doJSON(t, router, "POST", "/api/stock/p1/changes",
			`{"operation":"shipped","quantity":1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, resp.Error, "shipped")
	})

	t.Run("missing quantity is 400", func(t *testing.T) {
		rec, _ := doJSON(t, router, "POST", "/api/stock/p1/changes",
			`{"operation":"sale"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-integer quantity is 400", func(t *testing.T) {
		rec, _ := doJSON(t, router, "POST", "/api/stock/p1/changes",
			`{"operation":"sale","quantity":"three"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get stock", func(t *testing.T) {
		rec, resp := doJSON(t, router, "GET", "/api/stock/p1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		data := resp.Data.(map[string]interface{})
		assert.Equal(t, float64(6), data["quantity"])
	})

	t.Run("unknown product is 404", func(t *testing.T) {
		rec, _ := doJSON(t, router, "GET", "/api/stock/missing", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec, _ = doJSON(t, router, "POST", "/api/stock/missing/changes",
			`{"operation":"restock","quantity":1}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("ledger history is owner filtered and newest first", func(t *testing.T) {
		rec, resp := doJSON(t, router, "GET", "/api/ledger?owner_id=seller-1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		entries := resp.Data.([]interface{})
		require.Len(t, entries, 2)

		first := entries[0].(map[string]interface{})
		assert.Equal(t, "p1", first["product_id"])
		assert.Equal(t, float64(-1), first["delta"], "latest change first")

		rec, resp = doJSON(t, router, "GET", "/api/ledger?owner_id=seller-2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, resp.Data, "seller-2 has no entries yet")
	})

	t.Run("create stock", func(t *testing.T) {
		rec, resp := doJSON(t, router, "POST", "/api/stock",
			`{"product_id":"p3","owner_id":"seller-1","quantity":4}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		data := resp.Data.(map[string]interface{})
		assert.Equal(t, float64(10), data["low_stock_threshold"])

		rec, _ = doJSON(t, router, "POST", "/api/stock", `{"product_id":"p4"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("low stock listing", func(t *testing.T) {
		rec, resp := doJSON(t, router, "GET", "/api/stock/low", "")
		require.Equal(t, http.StatusOK, rec.Code)

		stocks := resp.Data.([]interface{})
		ids := make([]string, 0, len(stocks))
		for _, s := range stocks {
			ids = append(ids, s.(map[string]interface{})["product_id"].(string))
		}
		// p1 is at 6 of threshold 10, p2 at 1, p3 at 4
		assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, ids)
	})

	t.Run("deactivate stock", func(t *testing.T) {
		rec, _ := doJSON(t, router, "DELETE", "/api/stock/p2", "")
		require.Equal(t, http.StatusOK, rec.Code)

		rec, _ = doJSON(t, router, "GET", "/api/stock/p2", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
