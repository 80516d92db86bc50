package portal

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/weitingzhao/bifrost-trader/internal/events"
)

var hubLog = logrus.WithField("component", "portal.hub")

const (
	writeWait      = 10 * time.Second
	clientSendBuf  = 16
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// 门户只监听本机回环地址，不校验 Origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub 实时推送集线器：维护订阅连接，向所有连接广播信封消息
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast 向所有连接广播一条信封消息。
// 发送缓冲已满的慢连接直接断开，不能让一个卡住的客户端拖慢全场。
func (h *Hub) Broadcast(eventType events.EventType, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		hubLog.Errorf("广播消息序列化失败: %v", err)
		return
	}
	envelope, err := json.Marshal(events.Envelope{
		Type:      eventType,
		Data:      payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		hubLog.Errorf("信封序列化失败: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- envelope:
		default:
			hubLog.Warnf("⚠️ 客户端发送缓冲已满，断开连接")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ServeWS 把 HTTP 请求升级为 WebSocket 连接并加入集线器
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hubLog.Warnf("WebSocket 升级失败: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, clientSendBuf),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	hubLog.Infof("📡 客户端已连接，当前 %d 个连接", count)

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) writePump(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	// send 被关闭：发一个关闭帧再退出
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump 处理客户端上行消息。目前只有心跳：ping 回 pong，
// 其余一律忽略（上行不是控制通道）。
func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			pong, _ := json.Marshal(events.Envelope{
				Type:      events.EventPong,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			select {
			case c.send <- pong:
			default:
			}
		}
	}
}

// Close 断开所有连接
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}
