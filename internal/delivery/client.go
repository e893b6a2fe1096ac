package delivery

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// 出站队列长度：队列满视为推送失败，信封保持未投递
	sendQueueSize = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var (
	// ErrChannelClosed 通道已关闭
	ErrChannelClosed = errors.New("channel closed")
	// ErrChannelBusy 出站队列已满
	ErrChannelBusy = errors.New("channel send queue full")
)

// Client 一条已认证的 WebSocket 连接
//
// 实现 session.Channel。Deliver 与 Close 可被任意协程并发调用：
// 推送撞上断开时退化为投递失败，不会写已关闭的队列。
type Client struct {
	userID   string
	username string

	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	log     *zap.Logger

	mu     sync.Mutex
	closed bool
}

// newClient 创建连接对象
func newClient(conn *websocket.Conn, userID, username string, sendRate, sendBurst int, log *zap.Logger) *Client {
	return &Client{
		userID:   userID,
		username: username,
		conn:     conn,
		send:     make(chan []byte, sendQueueSize),
		limiter:  rate.NewLimiter(rate.Limit(sendRate), sendBurst),
		log:      log,
	}
}

// Deliver 把一帧数据放入出站队列
func (c *Client) Deliver(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrChannelBusy
	}
}

// Close 关闭出站队列，可重复调用
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump 把出站队列写到连接，并定期发送协议层 ping
//
// 队列关闭或写失败时关闭底层连接，readPump 随之退出并触发连接清理。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取入站帧并交给引擎处理
func (c *Client) readPump(engine *Engine) {
	defer func() {
		engine.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		engine.touchPresence(c.userID)
		return nil
	})

	for {
		var frame inboundFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error",
					zap.String("user_id", c.userID),
					zap.Error(err))
			}
			return
		}

		engine.handleFrame(c, &frame)
	}
}
