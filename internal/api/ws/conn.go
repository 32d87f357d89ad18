package ws

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"acdmx.com/pkg/logger"
	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
)

// maxQueue 单个连接最多积压多少条，超过说明客户端读不动，直接断开让它重连后走 REST 补齐
const maxQueue = 4096

// Conn 事件按到达顺序排队，写协程被唤醒后批量发出。不合并、不丢中间事件，
// 积压超过上限时整个连接断开
type Conn struct {
	ws       *websocket.Conn
	hub      *Hub
	mu       sync.Mutex
	queue    [][]byte
	limit    int
	notify   chan struct{} // 缓冲 1：合并唤醒
	closed   atomic.Bool
	overflow atomic.Bool

	lastPongUnix atomic.Int64
}

func NewConn(h *Hub, ws *websocket.Conn) *Conn {
	return &Conn{
		ws:     ws,
		hub:    h,
		queue:  make([][]byte, 0, 16),
		limit:  maxQueue,
		notify: make(chan struct{}, 1),
	}
}

// Offer 入队，连接已关闭或积压满时返回 false；满了会标记 overflow 并唤醒写协程去断开
func (c *Conn) Offer(topic string, payload []byte) bool {
	if c.closed.Load() {
		return false
	}
	c.mu.Lock()
	if len(c.queue) >= c.limit {
		c.mu.Unlock()
		if !c.overflow.Swap(true) {
			logger.Warn(context.Background(), "ws client too slow, closing", zap.String("topic", topic), zap.Int("queued", c.limit))
		}
		c.wake()
		return false
	}
	c.queue = append(c.queue, payload)
	c.mu.Unlock()

	c.wake()
	return true
}

func (c *Conn) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// flush 按顺序取出最多 max 条
func (c *Conn) flush(max int) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return nil
	}
	n := min(len(c.queue), max)
	out := make([][]byte, n)
	copy(out, c.queue[:n])
	rest := copy(c.queue, c.queue[n:])
	clear(c.queue[rest:])
	c.queue = c.queue[:rest]
	if rest > 0 {
		// 剩下的下一轮再发
		c.wake()
	}
	return out
}

type Server struct {
	Hub      *Hub
	Upgrader websocket.Upgrader
	ctx      context.Context

	PongWait   time.Duration
	PingPeriod time.Duration
	PingJitter time.Duration
	WriteWait  time.Duration
	ReadLimit  int64
}

func NewServer(ctx context.Context, h *Hub) *Server {
	return &Server{
		Hub: h,
		ctx: ctx,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // 跨域交给 cors 中间件
		},
		PongWait:   60 * time.Second,
		PingPeriod: 30 * time.Second,
		PingJitter: 100 * time.Millisecond,
		WriteWait:  5 * time.Second,
		ReadLimit:  1 << 10,
	}
}

func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn(r.Context(), "ws upgrade failed", zap.Error(err))
		return
	}
	c := NewConn(s.Hub, wsConn)
	// 可以在 url 上直接带 topics，省一次 sub
	if topics := r.URL.Query()["topic"]; len(topics) > 0 {
		s.Hub.Subscribe(c, topics)
	}
	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) readPump(c *Conn) {
	defer func() {
		c.closed.Store(true)
		c.hub.RemoveConn(c)
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(s.ReadLimit)
	c.lastPongUnix.Store(time.Now().UnixNano())
	_ = c.ws.SetReadDeadline(time.Now().Add(s.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.lastPongUnix.Store(time.Now().UnixNano())
		_ = c.ws.SetReadDeadline(time.Now().Add(s.PongWait))
		return nil
	})
	c.ws.SetCloseHandler(func(code int, text string) error {
		_ = c.ws.SetReadDeadline(time.Now()) // 让 ReadMessage 立刻返回
		return nil
	})

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		_, b, err := c.ws.ReadMessage()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				logger.Debug(s.ctx, "ws read timeout", zap.Error(err))
			} else if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug(s.ctx, "ws read error", zap.Error(err))
			}
			return
		}
		var msg ClientMsg
		if json.Unmarshal(b, &msg) != nil {
			continue
		}
		switch msg.Type {
		case "sub":
			c.hub.Subscribe(c, msg.Topics)
		case "unsub":
			c.hub.Unsubscribe(c, msg.Topics)
		}
	}
}

const maxFlush = 256 // 单次最多写多少条

func (s *Server) writePump(c *Conn) {
	if s.PingJitter > 0 {
		t := time.NewTimer(time.Duration(rand.Int63n(int64(s.PingJitter))))
		select {
		case <-t.C:
		case <-s.ctx.Done():
			t.Stop()
			return
		}
	}

	ticker := time.NewTicker(s.PingPeriod)
	defer func() {
		ticker.Stop()
		c.closed.Store(true)
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.notify:
			if c.overflow.Load() {
				_ = c.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"),
					time.Now().Add(s.WriteWait))
				return
			}
			batch := c.flush(maxFlush)
			if len(batch) == 0 {
				continue
			}
			// 一次 NextWriter 写完本批，多条之间换行分隔
			_ = c.ws.SetWriteDeadline(time.Now().Add(s.WriteWait))
			w, err := c.ws.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			for i, payload := range batch {
				if i > 0 {
					if _, err := w.Write([]byte("\n")); err != nil {
						_ = w.Close()
						return
					}
				}
				if _, err := w.Write(payload); err != nil {
					_ = w.Close()
					return
				}
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(s.WriteWait)); err != nil {
				logger.Debug(s.ctx, "ws ping failed", zap.Error(err))
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}
