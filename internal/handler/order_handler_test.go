package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/domain/model"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/handler"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/infra/memory"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/middleware"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "handler-secret"

type apiFixture struct {
	e     *echo.Echo
	store *memory.Store
	pid   int64
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	pid := store.AddProduct(model.Product{
		Name:     "Lamp",
		Slug:     "lamp",
		ImageURL: "/lamp.jpg",
		Price:    decimal.RequireFromString("10.00"),
		Discount: decimal.RequireFromString("1.00"),
		Stock:    5,
	})

	clock := usecase.SystemClock{}
	uc := usecase.NewOrderUsecase(store, usecase.NewULIDOrderNumberGenerator(clock), clock)

	e := echo.New()
	handler.NewOrderHandler(uc).RegisterRoutes(e, middleware.AuthJWT(secret))
	handler.NewHealthHandler(nil).RegisterRoutes(e)
	return &apiFixture{e: e, store: store, pid: pid}
}

func bearer(t *testing.T, userID int64) string {
	t.Helper()
	tok, _, err := middleware.IssueToken(secret, userID, "USER", time.Hour, time.Now())
	require.NoError(t, err)
	return "Bearer " + tok
}

func (f *apiFixture) do(t *testing.T, method, path, body string, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID > 0 {
		req.Header.Set("Authorization", bearer(t, userID))
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) usecase.OrderOutput {
	t.Helper()
	var out usecase.OrderOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var out handler.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestOrders_RequireAuth(t *testing.T) {
	f := newAPI(t)

	for _, r := range []struct{ method, path string }{
		{http.MethodPost, "/orders"},
		{http.MethodGet, "/orders"},
		{http.MethodGet, "/orders/1"},
		{http.MethodGet, "/orders/number/YF1"},
		{http.MethodPut, "/orders/1/status?status=CONFIRMED"},
	} {
		rec := f.do(t, r.method, r.path, "", 0)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", r.method, r.path)
	}
}

func TestOrders_PlaceAndRead(t *testing.T) {
	f := newAPI(t)

	body := fmt.Sprintf(`{"items":[{"product_id":%d,"quantity":2}]}`, f.pid)
	rec := f.do(t, http.MethodPost, "/orders", body, 1)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	placed := decodeOrder(t, rec)
	assert.Equal(t, "PENDING", placed.Status)
	assert.True(t, placed.GrandTotal.Equal(decimal.RequireFromString("18")))
	require.Len(t, placed.Items, 1)
	assert.Equal(t, "Lamp", placed.Items[0].Name)
	assert.Equal(t, "/lamp.jpg", placed.Items[0].ImageURL)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", placed.ID), "", 1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, placed.OrderNumber, decodeOrder(t, rec).OrderNumber)

	rec = f.do(t, http.MethodGet, "/orders/number/"+placed.OrderNumber, "", 1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, placed.ID, decodeOrder(t, rec).ID)

	rec = f.do(t, http.MethodGet, "/orders", "", 1)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []usecase.OrderOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	// 他人からは404
	rec = f.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", placed.ID), "", 2)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order_not_found", decodeError(t, rec).Code)
}

func TestOrders_PlaceValidation(t *testing.T) {
	f := newAPI(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "broken json", body: `{"items":`, code: "invalid_body"},
		{name: "no items", body: `{"items":[]}`, code: "empty_order"},
		{name: "zero quantity", body: fmt.Sprintf(`{"items":[{"product_id":%d,"quantity":0}]}`, f.pid), code: "invalid_quantity"},
		{name: "over stock", body: fmt.Sprintf(`{"items":[{"product_id":%d,"quantity":6}]}`, f.pid), code: "insufficient_stock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/orders", tt.body, 1)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}

	p, _ := f.store.Product(f.pid)
	assert.Equal(t, int64(5), p.Stock)
}

func TestOrders_UnknownProductIsNotFound(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPost, "/orders", `{"items":[{"product_id":999,"quantity":1}]}`, 1)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "product_not_found", decodeError(t, rec).Code)
}

func TestOrders_UpdateStatus(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPost, "/orders", fmt.Sprintf(`{"items":[{"product_id":%d,"quantity":2}]}`, f.pid), 1)
	require.Equal(t, http.StatusOK, rec.Code)
	placed := decodeOrder(t, rec)
	path := fmt.Sprintf("/orders/%d/status", placed.ID)

	rec = f.do(t, http.MethodPut, path+"?status=BOGUS", "", 1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_status", decodeError(t, rec).Code)

	rec = f.do(t, http.MethodPut, path+"?status=SHIPPED", "", 1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "illegal_status_transition", decodeError(t, rec).Code)

	rec = f.do(t, http.MethodPut, path+"?status=CANCELLED", "", 2)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPut, path+"?status=BOGUS", "", 2)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order_not_found", decodeError(t, rec).Code)

	rec = f.do(t, http.MethodPut, "/orders/abc/status?status=CANCELLED", "", 1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_order_id", decodeError(t, rec).Code)

	rec = f.do(t, http.MethodPut, path+"?status=CANCELLED", "", 1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", decodeOrder(t, rec).Status)

	p, _ := f.store.Product(f.pid)
	assert.Equal(t, int64(5), p.Stock)
}

func TestOrders_History(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPost, "/orders", fmt.Sprintf(`{"items":[{"product_id":%d,"quantity":1}]}`, f.pid), 1)
	require.Equal(t, http.StatusOK, rec.Code)
	placed := decodeOrder(t, rec)
	path := fmt.Sprintf("/orders/%d", placed.ID)

	rec = f.do(t, http.MethodPut, path+"/status?status=CONFIRMED", "", 1)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, path+"/history", "", 1)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []usecase.OrderHistoryEntryOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, "UPDATE_ORDER_STATUS", history[0].Action)
	assert.Equal(t, "PLACE_ORDER", history[1].Action)

	rec = f.do(t, http.MethodGet, path+"/history", "", 2)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, path+"/history", "", 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrders_IdempotencyHeader(t *testing.T) {
	f := newAPI(t)
	body := fmt.Sprintf(`{"items":[{"product_id":%d,"quantity":1}]}`, f.pid)

	send := func() usecase.OrderOutput {
		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("Authorization", bearer(t, 1))
		req.Header.Set("X-Idempotency-Key", "abc")
		rec := httptest.NewRecorder()
		f.e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		return decodeOrder(t, rec)
	}

	first := send()
	second := send()
	assert.Equal(t, first.ID, second.ID)

	p, _ := f.store.Product(f.pid)
	assert.Equal(t, int64(4), p.Stock)
}

func TestHealth(t *testing.T) {
	f := newAPI(t)
	rec := f.do(t, http.MethodGet, "/health", "", 0)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
