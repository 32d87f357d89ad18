package ws

import (
	"strings"
	"sync"
)

// Hub topic -> 连接集合，外加每个 topic 的最后一条消息做快照
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Conn]struct{}
	last map[string][]byte
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*Conn]struct{}, 64),
		last: make(map[string][]byte, 64),
	}
}

func (h *Hub) Subscribe(c *Conn, topics []string) {
	// 记录订阅和取快照在同一把锁里，避免订阅后立刻 publish 却取不到
	h.mu.Lock()
	for _, t := range topics {
		set := h.subs[t]
		if set == nil {
			set = make(map[*Conn]struct{}, 16)
			h.subs[t] = set
		}
		set[c] = struct{}{}
	}
	type snap struct {
		topic string
		data  []byte
	}
	snaps := make([]snap, 0, len(topics))
	for _, t := range topics {
		for topic, b := range h.last {
			if match(t, topic) {
				cp := make([]byte, len(b))
				copy(cp, b)
				snaps = append(snaps, snap{topic, cp})
			}
		}
	}
	h.mu.Unlock()

	for _, s := range snaps {
		_ = c.Offer(s.topic, s.data)
	}
}

func (h *Hub) Unsubscribe(c *Conn, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range topics {
		if set := h.subs[t]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.subs, t)
			}
		}
	}
}

func (h *Hub) RemoveConn(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, m := range h.subs {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, topic)
		}
	}
}

// Publish 广播给订阅了 topic（或匹配它的通配 topic）的连接。
// 每个连接都是非阻塞 Offer，慢客户端不会卡住广播
func (h *Hub) Publish(topic string, payload []byte) {
	cp := make([]byte, len(payload))
	copy(cp, payload)

	h.mu.Lock()
	h.last[topic] = cp
	targets := make([]*Conn, 0, 8)
	for pattern, set := range h.subs {
		if !match(pattern, topic) {
			continue
		}
		for c := range set {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		_ = c.Offer(topic, cp)
	}
}

// Conns 当前订阅中的连接数，去重
func (h *Hub) Conns() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[*Conn]struct{}, 16)
	for _, set := range h.subs {
		for c := range set {
			seen[c] = struct{}{}
		}
	}
	return len(seen)
}

// match 只支持结尾的 *
func match(pattern, topic string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(topic, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == topic
}
