package engine

import (
	"context"
	"sync/atomic"

	"acdmx.com/pkg/metrics"
)

// ChanBus 引擎对外的事件通道，publisher 写、app 的分发循环读
type ChanBus struct {
	ch      chan Event
	dropped uint64
}

func NewChanBus(size int) *ChanBus {
	if size <= 0 {
		size = 1 << 16
	}
	return &ChanBus{ch: make(chan Event, size)}
}

// TryPublish 非阻塞，满了直接丢
func (b *ChanBus) TryPublish(ev Event) bool {
	select {
	case b.ch <- ev:
		return true
	default:
		atomic.AddUint64(&b.dropped, 1)
		metrics.EventsPublished.WithLabelValues("bus", "dropped").Inc()
		return false
	}
}

func (b *ChanBus) C() <-chan Event { return b.ch }
func (b *ChanBus) Dropped() uint64 { return atomic.LoadUint64(&b.dropped) }

func (b *ChanBus) Publish(ctx context.Context, ev Event) error {
	select {
	case b.ch <- ev:
		metrics.EventsPublished.WithLabelValues("bus", "ok").Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
