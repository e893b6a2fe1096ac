// Package delivery 实现消息投递引擎。
//
// 每条连接的生命周期：升级 -> 凭证校验 -> 注册会话（替换同身份旧连接）
// -> 按创建顺序回放未投递积压 -> 主循环（持久化、实时推送、回执）
// -> 断开时受保护地注销。信封先落盘后通知，推送失败只会让消息
// 留在积压里等下一次回放，不会丢失或重复落盘。
package delivery

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"sandeshaa/backend/internal/domain"
	"sandeshaa/backend/internal/monitoring"
	"sandeshaa/backend/internal/session"
	"sandeshaa/backend/internal/storage"
)

// presenceTTL 在线状态缓存的过期时间，pong 时续期
const presenceTTL = 2 * pongWait

// CredentialGate 连接准入的凭证校验
type CredentialGate interface {
	Verify(token string) (*domain.User, error)
}

// PresenceCache 在线状态缓存（Redis 实现；未配置时为 nil）
type PresenceCache interface {
	SetPresence(userID string, ttl time.Duration) error
	ClearPresence(userID string) error
}

// Config 引擎配置
type Config struct {
	AllowedOrigins []string
	SendRate       int // 单连接每秒 send_message 上限
	SendBurst      int
}

// Engine 消息投递引擎
type Engine struct {
	registry *session.Registry
	store    storage.Store
	gate     CredentialGate
	presence PresenceCache // 可为 nil
	metrics  *monitoring.Metrics
	log      *zap.Logger
	cfg      Config
}

// NewEngine 创建投递引擎
func NewEngine(
	registry *session.Registry,
	store storage.Store,
	gate CredentialGate,
	presence PresenceCache,
	metrics *monitoring.Metrics,
	log *zap.Logger,
	cfg Config,
) *Engine {
	if cfg.SendRate <= 0 {
		cfg.SendRate = 20
	}
	if cfg.SendBurst < cfg.SendRate {
		cfg.SendBurst = cfg.SendRate * 2
	}
	return &Engine{
		registry: registry,
		store:    store,
		gate:     gate,
		presence: presence,
		metrics:  metrics,
		log:      log,
		cfg:      cfg,
	}
}

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 无 Origin 视为同源请求（非浏览器客户端）
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// HandleWebSocket 处理 WebSocket 连接
//
// 凭证通过 ?token= 查询参数带入。先升级再校验：校验失败时
// 在通道内发送结构化错误帧后关闭，而不是裸挂断 HTTP。
func HandleWebSocket(engine *Engine) gin.HandlerFunc {
	upgrader := upgraderFactory(engine.cfg.AllowedOrigins)

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			engine.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		engine.serve(conn, c.Query("token"), c.ClientIP())
	}
}

// serve 驱动一条连接走完整个生命周期，在连接断开前阻塞
func (e *Engine) serve(conn *websocket.Conn, token, remoteAddr string) {
	user, err := e.gate.Verify(token)
	if err != nil {
		e.metrics.SessionsRejected.Inc()
		e.log.Warn("websocket authentication failed",
			zap.Error(err),
			zap.String("remote_addr", remoteAddr))

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.TextMessage, encodeError("invalid or missing token"))
		conn.Close()
		return
	}

	client := newClient(conn, user.ID, user.Username, e.cfg.SendRate, e.cfg.SendBurst, e.log)
	go client.writePump()

	// 注册会话：同身份的旧连接被原子替换并关闭
	if prev := e.registry.Register(user.ID, client); prev != nil {
		e.metrics.SessionsReplaced.Inc()
		prev.Deliver(encodeError("session replaced by a newer connection"))
		prev.Close()
	}

	e.metrics.SessionsTotal.Inc()
	e.metrics.SessionsActive.Set(float64(e.registry.Len()))
	e.touchPresence(user.ID)

	e.log.Info("session registered",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username))

	// 回放必须先于主循环：未投递积压按创建顺序推完才进入实时收发
	e.replayBacklog(client)

	client.readPump(e)
}

// replayBacklog 按创建顺序推送该身份的全部未投递信封
//
// 每成功推一条就翻转 delivered 再取下一条；推送失败立即停止，
// 剩余积压保持未投递，等该身份下一次连接重试。
func (e *Engine) replayBacklog(client *Client) {
	envelopes, err := e.store.ListUndeliveredEnvelopes(client.userID)
	if err != nil {
		e.log.Error("failed to load backlog",
			zap.String("user_id", client.userID),
			zap.Error(err))
		return
	}
	if len(envelopes) == 0 {
		return
	}

	usernames := make(map[string]string) // fromUserID -> username
	replayed := 0

	for i := range envelopes {
		envelope := &envelopes[i]

		data, err := encodeMessage(envelope, e.usernameFor(envelope.FromUserID, usernames))
		if err != nil {
			e.log.Error("failed to encode envelope", zap.String("envelope_id", envelope.ID), zap.Error(err))
			break
		}

		if err := client.Deliver(data); err != nil {
			e.log.Warn("backlog replay interrupted",
				zap.String("user_id", client.userID),
				zap.Int("replayed", replayed),
				zap.Int("remaining", len(envelopes)-replayed),
				zap.Error(err))
			e.metrics.PushFailures.Inc()
			return
		}

		if err := e.store.MarkEnvelopeDelivered(envelope.ID); err != nil {
			// 标志没落盘就不往下推：宁可下次重复回放也不丢投递记录
			e.log.Error("failed to mark envelope delivered",
				zap.String("envelope_id", envelope.ID),
				zap.Error(err))
			return
		}

		e.metrics.EnvelopesDelivered.WithLabelValues("replay").Inc()
		replayed++
	}

	e.log.Info("backlog replayed",
		zap.String("user_id", client.userID),
		zap.Int("count", replayed))
}

// handleFrame 处理一条入站帧
func (e *Engine) handleFrame(client *Client, frame *inboundFrame) {
	switch frame.Type {
	case TypeSendMessage:
		e.handleSend(client, frame)
	default:
		client.Deliver(encodeError(fmt.Sprintf("unknown message type: %s", frame.Type)))
	}
}

// handleSend 处理一条 send_message 请求
//
// 顺序固定：校验 -> 解析收件人 -> 落盘 -> 尽力实时推送 -> 回执。
// 落盘失败绝不回执成功；实时推送失败吞掉，信封留在积压里。
func (e *Engine) handleSend(client *Client, frame *inboundFrame) {
	if !client.limiter.Allow() {
		client.Deliver(encodeError("rate limit exceeded, slow down"))
		return
	}

	if frame.To == "" || frame.Payload == "" {
		e.metrics.MalformedRequests.Inc()
		client.Deliver(encodeError("missing 'to' or 'payload' in send_message"))
		return
	}

	recipient, err := e.store.GetUserByUsername(domain.NormalizeUsername(frame.To))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			e.metrics.UnknownRecipients.Inc()
			client.Deliver(encodeError(fmt.Sprintf("recipient '%s' not found", frame.To)))
			return
		}
		e.log.Error("failed to resolve recipient", zap.String("to", frame.To), zap.Error(err))
		client.Deliver(encodeError("failed to resolve recipient"))
		return
	}

	envelope := &domain.Envelope{
		FromUserID: client.userID,
		ToUserID:   recipient.ID,
		Payload:    frame.Payload,
	}

	if err := e.store.AppendEnvelope(envelope); err != nil {
		e.log.Error("failed to persist envelope",
			zap.String("from", client.userID),
			zap.String("to", recipient.ID),
			zap.Error(err))
		client.Deliver(encodeError("failed to persist message"))
		return
	}
	e.metrics.EnvelopesPersisted.Inc()

	delivered := e.tryLivePush(client.username, recipient.ID, envelope)

	ack, err := encodeSent(envelope.ID, recipient.Username, delivered)
	if err == nil {
		client.Deliver(ack)
	}
}

// tryLivePush 尽力把信封实时推给收件人的活跃通道
//
// 只有推送入队且 delivered 标志成功落盘才算投递完成；
// 任何一步失败都回退为"留在积压"，不向发送方报错。
func (e *Engine) tryLivePush(fromUsername, toUserID string, envelope *domain.Envelope) bool {
	channel := e.registry.Lookup(toUserID)
	if channel == nil {
		return false
	}

	data, err := encodeMessage(envelope, fromUsername)
	if err != nil {
		e.log.Error("failed to encode envelope", zap.String("envelope_id", envelope.ID), zap.Error(err))
		return false
	}

	if err := channel.Deliver(data); err != nil {
		e.metrics.PushFailures.Inc()
		e.log.Warn("live push failed, envelope stays undelivered",
			zap.String("envelope_id", envelope.ID),
			zap.String("to", toUserID),
			zap.Error(err))
		return false
	}

	if err := e.store.MarkEnvelopeDelivered(envelope.ID); err != nil {
		e.log.Error("failed to mark envelope delivered",
			zap.String("envelope_id", envelope.ID),
			zap.Error(err))
		return false
	}

	e.metrics.EnvelopesDelivered.WithLabelValues("live").Inc()
	return true
}

// disconnect 连接断开时的清理，幂等且可与在途推送并发
func (e *Engine) disconnect(client *Client) {
	// 受保护注销：若该身份已被新连接替换则为空操作
	if e.registry.Unregister(client.userID, client) {
		if e.presence != nil {
			if err := e.presence.ClearPresence(client.userID); err != nil {
				e.log.Debug("failed to clear presence", zap.Error(err))
			}
		}
	}
	client.Close()

	e.metrics.SessionsActive.Set(float64(e.registry.Len()))
	e.log.Info("session closed", zap.String("user_id", client.userID))
}

// touchPresence 刷新在线状态缓存
func (e *Engine) touchPresence(userID string) {
	if e.presence == nil {
		return
	}
	if err := e.presence.SetPresence(userID, presenceTTL); err != nil {
		e.log.Debug("failed to refresh presence", zap.Error(err))
	}
}

// usernameFor 解析用户名，带一次回放内的局部缓存
func (e *Engine) usernameFor(userID string, cache map[string]string) string {
	if name, ok := cache[userID]; ok {
		return name
	}
	name := ""
	if user, err := e.store.GetUserByID(userID); err == nil {
		name = user.Username
	}
	cache[userID] = name
	return name
}
