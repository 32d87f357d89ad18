package ws

import (
	"context"

	"acdmx.com/internal/broker"
	"acdmx.com/internal/engine"
)

type ClientMsg struct {
	Type   string   `json:"type"`   // "sub" | "unsub"
	Topics []string `json:"topics"` // acdm:OrderFilled / acdm:*
}

// Bridge engine.Sink：事件按 broker 的 topic 和编码推给 ws 订阅者
type Bridge struct {
	hub *Hub
}

func NewBridge(h *Hub) *Bridge { return &Bridge{hub: h} }

func (b *Bridge) Name() string { return "ws" }

func (b *Bridge) Handle(_ context.Context, ev engine.Event) error {
	topic, payload, err := broker.EncodeEvent(ev)
	if err != nil {
		return err
	}
	b.hub.Publish(topic, payload)
	return nil
}
