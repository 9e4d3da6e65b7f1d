// internal/service/seckill/interfaces/push_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"flashsale/internal/pkg/logger"
	"flashsale/internal/service/seckill/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
		return true
	},
}

// PushHub 维护所有活跃的 WebSocket 连接，按用户ID推送订单终态。
// 它实现 port.StatusNotifier；推送是尽力而为的，轮询接口才是权威途径。
type PushHub struct {
	clients    map[int64]*pushClient
	register   chan *pushClient
	unregister chan *pushClient
	lock       sync.RWMutex
}

func NewPushHub() *PushHub {
	return &PushHub{
		clients:    make(map[int64]*pushClient),
		register:   make(chan *pushClient),
		unregister: make(chan *pushClient),
	}
}

// Run 处理连接的注册与注销，应在独立 goroutine 中运行。
func (h *PushHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			// 同一用户重复连接时关闭旧连接
			if old, ok := h.clients[client.userID]; ok {
				old.shutdown()
			}
			h.clients[client.userID] = client
			h.lock.Unlock()
		case client := <-h.unregister:
			h.lock.Lock()
			if cur, ok := h.clients[client.userID]; ok && cur == client {
				delete(h.clients, client.userID)
			}
			h.lock.Unlock()
			client.shutdown()
		}
	}
}

type orderStatusPush struct {
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
}

// Push 实现 port.StatusNotifier。用户不在线时静默丢弃。
func (h *PushHub) Push(userID, orderID int64, status domain.OrderStatus) {
	h.lock.RLock()
	client, ok := h.clients[userID]
	h.lock.RUnlock()
	if !ok {
		return
	}

	payload, err := json.Marshal(orderStatusPush{OrderID: orderID, Status: string(status)})
	if err != nil {
		return
	}
	client.trySend(payload)
}

// ServeWS 将 HTTP 请求升级为 WebSocket 连接并注册到 Hub。
func (h *PushHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &pushClient{hub: h, conn: conn, send: make(chan []byte, 16), userID: userID}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// pushClient 是一个 WebSocket 连接的代表
type pushClient struct {
	hub    *PushHub
	conn   *websocket.Conn
	send   chan []byte
	userID int64

	mu     sync.Mutex
	closed bool
}

// trySend 投递一条消息。连接已被替换或注销时静默丢弃；
// 持锁检查 closed，保证不会向已关闭的 channel 发送。
func (c *pushClient) trySend(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		// 发送缓冲已满，放弃本次推送而不是阻塞持久化路径
	}
}

// shutdown 标记连接关闭并停止 writePump。幂等。
func (c *pushClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *pushClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *pushClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		// 只消费心跳等控制消息，客户端不上行业务数据
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
