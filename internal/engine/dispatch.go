package engine

import (
	"context"
	"time"

	"acdmx.com/pkg/logger"
	"acdmx.com/pkg/metrics"
	"go.uber.org/zap"
)

// Sink 事件的下游消费者：读模型、broker、ws 推送
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

// OrderedSink 不能跳过事件的 sink（读模型）。出错时 Dispatch 退避重试同一个事件，
// 重试用完后 sink 自己负责拒绝后续事件，不能越过缺口往前推
type OrderedSink interface {
	Sink
	Ordered()
}

var (
	retryBase     = 20 * time.Millisecond
	retryMax      = 2 * time.Second
	retryAttempts = 8
)

// Dispatch 按顺序把事件交给每个 sink。普通 sink 出错只记日志；OrderedSink 出错先退避重试
func Dispatch(ctx context.Context, events <-chan Event, sinks ...Sink) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			for _, s := range sinks {
				if err := deliver(ctx, s, ev); err != nil {
					metrics.EventsPublished.WithLabelValues(s.Name(), "error").Inc()
					logger.Warn(ctx, "event sink failed",
						zap.String("sink", s.Name()),
						zap.String("event", ev.Type.String()),
						zap.Uint64("seq", ev.Seq),
						zap.Uint16("idx", ev.Idx),
						zap.Error(err),
					)
					continue
				}
				metrics.EventsPublished.WithLabelValues(s.Name(), "ok").Inc()
			}
		}
	}
}

func deliver(ctx context.Context, s Sink, ev Event) error {
	err := s.Handle(ctx, ev)
	if err == nil {
		return nil
	}
	if _, ok := s.(OrderedSink); !ok {
		return err
	}
	wait := retryBase
	for i := 1; i < retryAttempts; i++ {
		logger.Warn(ctx, "ordered sink retry",
			zap.String("sink", s.Name()),
			zap.Uint64("seq", ev.Seq),
			zap.Uint16("idx", ev.Idx),
			zap.Int("attempt", i),
			zap.Error(err),
		)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		if err = s.Handle(ctx, ev); err == nil {
			return nil
		}
		if wait *= 2; wait > retryMax {
			wait = retryMax
		}
	}
	return err
}
