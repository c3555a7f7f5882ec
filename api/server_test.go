package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fenrir/domain/book"
	"fenrir/engine"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := zaptest.NewLogger(t)

	eng, err := engine.New(engine.Config{Lanes: 2}, log)
	require.NoError(t, err)
	eng.Start()
	go func() {
		for range eng.Events() {
		}
	}()
	t.Cleanup(func() { eng.Close() })

	submit := func(id string, side book.Side, price, qty string) {
		eng.Submit(&book.Op{
			Type:      book.OpCreate,
			OrderID:   id,
			Symbol:    "BTC/USDC",
			Side:      side,
			OrderType: book.Limit,
			Price:     decimal.RequireFromString(price),
			Qty:       decimal.RequireFromString(qty),
		})
	}
	submit("1", book.Buy, "100", "2")
	submit("2", book.Buy, "99", "1")
	submit("3", book.Sell, "105", "3")

	return NewServer(eng, NewHub(log), log)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetBooks(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s, "/api/v1/books")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "BTC/USDC", out[0].Symbol)
	assert.Equal(t, "100", out[0].BestBid)
	assert.Equal(t, "105", out[0].BestAsk)
	assert.Equal(t, "5", out[0].Spread)
	assert.Equal(t, 2, out[0].BidOrders)
}

func TestGetBook(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/v1/books/BTC%2FUSDC")
	require.Equal(t, http.StatusOK, rec.Code)

	var out summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "3", out.BidQty)

	rec = get(t, s, "/api/v1/books/NOPE")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDepth(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/v1/books/BTC%2FUSDC/depth?levels=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var out depthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Bids, 1, "levels param respected")
	assert.Equal(t, "100", out.Bids[0].Price)
	require.Len(t, out.Asks, 1)
	assert.Equal(t, "105", out.Asks[0].Price)

	rec = get(t, s, "/api/v1/books/BTC%2FUSDC/depth?levels=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
