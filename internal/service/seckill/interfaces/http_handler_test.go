// internal/service/seckill/interfaces/http_handler_test.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"flashsale/internal/service/seckill/application"
	"flashsale/internal/service/seckill/domain"
	"flashsale/internal/service/seckill/domain/port"
)

type stubRateLimiter struct{}

func (stubRateLimiter) TryAcquire(context.Context) (bool, error) { return true, nil }

type stubIDGen struct{ next int64 }

func (g *stubIDGen) NextID(context.Context, string) (int64, error) {
	g.next++
	return g.next, nil
}

type stubAdmission struct {
	mu      sync.Mutex
	stock   int
	ordered map[int64]bool
}

func (s *stubAdmission) Admit(_ context.Context, _, userID int64) (port.AdmissionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stock < 1 {
		return port.AdmissionSoldOut, nil
	}
	if s.ordered[userID] {
		return port.AdmissionAlreadyOrdered, nil
	}
	s.stock--
	s.ordered[userID] = true
	return port.AdmissionAdmitted, nil
}

func (s *stubAdmission) Revoke(context.Context, int64, int64) error { return nil }

func (s *stubAdmission) Prepare(_ context.Context, _ int64, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock = stock
	s.ordered = make(map[int64]bool)
	return nil
}

type stubProducer struct{}

func (stubProducer) Produce(context.Context, *domain.OrderPlacementRequested) error { return nil }

type stubOrderRepo struct{}

func (stubOrderRepo) CreateOrder(context.Context, *domain.VoucherOrder) error { return nil }
func (stubOrderRepo) SaveFailedOrder(context.Context, *domain.VoucherOrder, string) error {
	return nil
}

type stubVoucherRepo struct{ saved *domain.SeckillVoucher }

func (r *stubVoucherRepo) FindByID(context.Context, int64) (*domain.SeckillVoucher, error) {
	return nil, domain.ErrVoucherNotFound
}
func (r *stubVoucherRepo) Save(_ context.Context, v *domain.SeckillVoucher) error {
	r.saved = v
	return nil
}

type stubLockFactory struct{}

func (stubLockFactory) NewLock(string) (port.Lock, error) { return stubLock{}, nil }

type stubLock struct{}

func (stubLock) TryLock(context.Context, time.Duration) (bool, error) { return true, nil }
func (stubLock) Unlock(context.Context) error                         { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *stubAdmission) {
	t.Helper()

	admission := &stubAdmission{stock: 1, ordered: make(map[int64]bool)}
	svc := application.NewSeckillApplicationService(
		noop.NewTracerProvider().Tracer("test"),
		stubRateLimiter{},
		&stubIDGen{},
		admission,
		stubProducer{},
		stubOrderRepo{},
		&stubVoucherRepo{},
		stubLockFactory{},
		time.Second,
		nil,
		application.NewStatusTracker(),
		nil,
	)

	mux := http.NewServeMux()
	NewSeckillHandler(svc, nil).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, admission
}

func doSeckill(t *testing.T, server *httptest.Server, voucherID, userID string) (*http.Response, seckillResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, server.URL+"/seckill/"+voucherID, nil)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body seckillResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestHandleSeckill_Admitted(t *testing.T) {
	server, _ := newTestServer(t)

	resp, body := doSeckill(t, server, "10", "1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
	assert.NotZero(t, body.OrderID)
	assert.Equal(t, "pending", body.Status)
}

func TestHandleSeckill_SoldOut(t *testing.T) {
	server, admission := newTestServer(t)
	admission.stock = 0

	resp, body := doSeckill(t, server, "10", "1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, body.Success)
	assert.Equal(t, "限量优惠券已抢完", body.ErrorMsg)
}

func TestHandleSeckill_AlreadyOrdered(t *testing.T) {
	server, admission := newTestServer(t)
	admission.stock = 5

	_, first := doSeckill(t, server, "10", "1")
	require.True(t, first.Success)

	_, second := doSeckill(t, server, "10", "1")
	assert.False(t, second.Success)
	assert.Equal(t, "您已经抢过此限量优惠券了", second.ErrorMsg)
}

func TestHandleSeckill_MissingUser(t *testing.T) {
	server, _ := newTestServer(t)

	resp, body := doSeckill(t, server, "10", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, body.Success)
}

func TestHandleSeckill_InvalidVoucherID(t *testing.T) {
	server, _ := newTestServer(t)

	resp, _ := doSeckill(t, server, "abc", "1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleOrderStatus(t *testing.T) {
	server, _ := newTestServer(t)

	_, placed := doSeckill(t, server, "10", "1")
	require.True(t, placed.Success)

	resp, err := http.Get(server.URL + "/seckill/status/1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body seckillResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "pending", body.Status)

	// 未知订单返回 404
	resp404, err := http.Get(server.URL + "/seckill/status/999999")
	require.NoError(t, err)
	resp404.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp404.StatusCode)
}

func TestHandleCreateVoucher(t *testing.T) {
	server, admission := newTestServer(t)

	payload := `{"voucherId":10,"stock":200,"beginTime":"2026-01-01T00:00:00Z","endTime":"2026-12-31T00:00:00Z"}`
	resp, err := http.Post(server.URL+"/admin/seckill-voucher", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(server.URL+"/admin/seckill-voucher", "application/json",
		strings.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 200, admission.stock)
}
