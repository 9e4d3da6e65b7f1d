// internal/service/seckill/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"flashsale/internal/pkg/logger"
	"flashsale/internal/service/seckill/application"
	"flashsale/internal/service/seckill/domain"
	"flashsale/internal/service/seckill/domain/port"
)

// SeckillHandler 封装了秒杀服务的 HTTP 处理器
type SeckillHandler struct {
	service *application.SeckillApplicationService
	hub     *PushHub
}

func NewSeckillHandler(service *application.SeckillApplicationService, hub *PushHub) *SeckillHandler {
	return &SeckillHandler{service: service, hub: hub}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *SeckillHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /seckill/{id}", h.handleSeckill)
	mux.HandleFunc("POST /seckill/{id}/locked", h.handleSeckillLocked)
	mux.HandleFunc("GET /seckill/status/{orderId}", h.handleOrderStatus)
	mux.HandleFunc("POST /admin/seckill-voucher", h.handleCreateVoucher)
	if h.hub != nil {
		mux.HandleFunc("/ws", h.hub.ServeWS)
	}
}

type seckillResponse struct {
	Success  bool   `json:"success"`
	OrderID  int64  `json:"orderId,omitempty"`
	Status   string `json:"status,omitempty"`
	ErrorMsg string `json:"errorMsg,omitempty"`
}

// handleSeckill 是秒杀下单的主入口（异步路径）。
func (h *SeckillHandler) handleSeckill(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	voucherID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || voucherID <= 0 {
		writeJSON(w, http.StatusBadRequest, seckillResponse{Success: false, ErrorMsg: "invalid voucher id"})
		return
	}
	userID, ok := resolveUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, seckillResponse{Success: false, ErrorMsg: "user not identified"})
		return
	}

	resp, err := h.service.PlaceOrder(ctx, voucherID, userID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seckillResponse{Success: true, OrderID: resp.OrderID, Status: string(resp.Status)})
}

// handleSeckillLocked 是基于分布式锁的同步兜底路径。
func (h *SeckillHandler) handleSeckillLocked(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	voucherID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || voucherID <= 0 {
		writeJSON(w, http.StatusBadRequest, seckillResponse{Success: false, ErrorMsg: "invalid voucher id"})
		return
	}
	userID, ok := resolveUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, seckillResponse{Success: false, ErrorMsg: "user not identified"})
		return
	}

	resp, err := h.service.PlaceOrderWithLock(ctx, voucherID, userID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seckillResponse{Success: true, OrderID: resp.OrderID, Status: string(resp.Status)})
}

// handleOrderStatus 供客户端轮询订单的落库结果。
func (h *SeckillHandler) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(r.PathValue("orderId"), 10, 64)
	if err != nil || orderID <= 0 {
		writeJSON(w, http.StatusBadRequest, seckillResponse{Success: false, ErrorMsg: "invalid order id"})
		return
	}

	status, ok := h.service.GetOrderStatus(orderID)
	if !ok {
		writeJSON(w, http.StatusNotFound, seckillResponse{Success: false, ErrorMsg: "order status unknown"})
		return
	}
	writeJSON(w, http.StatusOK, seckillResponse{Success: true, OrderID: orderID, Status: string(status)})
}

// handleCreateVoucher 创建或重置一张秒杀券，并预热准入库存。
func (h *SeckillHandler) handleCreateVoucher(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	var req application.CreateVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, seckillResponse{Success: false, ErrorMsg: "invalid request body"})
		return
	}
	if req.VoucherID <= 0 || req.Stock < 0 {
		writeJSON(w, http.StatusBadRequest, seckillResponse{Success: false, ErrorMsg: "voucherId and stock are required"})
		return
	}

	begin, err := time.Parse(time.RFC3339, req.BeginTime)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, seckillResponse{Success: false, ErrorMsg: "beginTime must be RFC3339"})
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, seckillResponse{Success: false, ErrorMsg: "endTime must be RFC3339"})
		return
	}

	voucher := &domain.SeckillVoucher{
		VoucherID: req.VoucherID,
		Stock:     req.Stock,
		BeginTime: begin,
		EndTime:   end,
		Rule:      req.Rule,
	}
	if err := h.service.PrepareVoucher(ctx, voucher); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("voucher_id", req.VoucherID).Msg("Failed to prepare voucher")
		writeJSON(w, http.StatusInternalServerError, seckillResponse{Success: false, ErrorMsg: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, seckillResponse{Success: true})
}

// resolveUserID 从请求头或查询参数中解析用户身份。
// 网关完成认证后以 X-User-Id 透传，查询参数仅为本地调试方便。
func resolveUserID(r *http.Request) (int64, bool) {
	raw := r.Header.Get("X-User-Id")
	if raw == "" {
		raw = r.URL.Query().Get("userId")
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, false
	}
	return userID, true
}

// writeBusinessError 将领域错误映射为对用户可读的拒绝原因。
func writeBusinessError(w http.ResponseWriter, err error) {
	var status int
	var msg string
	switch {
	case errors.Is(err, port.ErrSoldOut):
		status, msg = http.StatusOK, "限量优惠券已抢完"
	case errors.Is(err, port.ErrAlreadyOrdered):
		status, msg = http.StatusOK, "您已经抢过此限量优惠券了"
	case errors.Is(err, port.ErrTooFrequent):
		status, msg = http.StatusOK, "您抢得太快啦,请稍事休息再来"
	case errors.Is(err, port.ErrRateLimited):
		status, msg = http.StatusServiceUnavailable, "sorry, service is too hot, plz try again"
	case errors.Is(err, port.ErrIneligible):
		status, msg = http.StatusForbidden, "您不满足本券的参与条件"
	case errors.Is(err, domain.ErrNotStarted):
		status, msg = http.StatusOK, "活动未开始"
	case errors.Is(err, domain.ErrEnded):
		status, msg = http.StatusOK, "活动已结束"
	case errors.Is(err, domain.ErrVoucherNotFound):
		status, msg = http.StatusNotFound, "优惠券不存在"
	default:
		status, msg = http.StatusInternalServerError, err.Error()
	}
	writeJSON(w, status, seckillResponse{Success: false, ErrorMsg: msg})
}

func writeJSON(w http.ResponseWriter, status int, body seckillResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func extractTraceContext(r *http.Request) context.Context {
	propagator := otel.GetTextMapPropagator()
	return propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}
