package broker

import (
	"context"
	"errors"

	"acdmx.com/internal/engine"
	"acdmx.com/pkg/ratelimit"
	"github.com/segmentio/encoding/json"
)

// EventMsg 总线上的事件格式，数值都是十进制字符串
type EventMsg struct {
	Name string `json:"name"`
	engine.Event
}

func EncodeEvent(ev engine.Event) (topic string, payload []byte, err error) {
	name := ev.Type.String()
	payload, err = json.Marshal(EventMsg{Name: name, Event: ev})
	if err != nil {
		return "", nil, err
	}
	return Topic(name), payload, nil
}

func DecodeEvent(payload []byte) (EventMsg, error) {
	var msg EventMsg
	err := json.Unmarshal(payload, &msg)
	return msg, err
}

const breakerTarget = "broker"

// Relay engine.Sink：事件编码后经熔断器发到 broker
type Relay struct {
	b  Broker
	cb *ratelimit.Manager
}

func NewRelay(b Broker, cb *ratelimit.Manager) *Relay {
	return &Relay{b: b, cb: cb}
}

func (r *Relay) Name() string { return "broker" }

func (r *Relay) Handle(ctx context.Context, ev engine.Event) error {
	topic, payload, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	if r.cb == nil {
		return r.b.Publish(ctx, topic, payload)
	}
	return r.cb.Do(breakerTarget, func() error {
		err := r.b.Publish(ctx, topic, payload)
		if errors.Is(err, context.Canceled) {
			return errors.Join(ratelimit.ErrPermanent, err)
		}
		return err
	})
}
