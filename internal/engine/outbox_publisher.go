package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"acdmx.com/pkg/logger"
	"acdmx.com/pkg/wal"
	"go.uber.org/zap"
)

// OutboxPublisher tail ev.wal，把事件按顺序推到 bus。
// cursor 只在命令边界推进，重启后可能重发最后一个未完成命令的事件，下游按 (Seq, Idx) 去重
type OutboxPublisher struct {
	ctx        context.Context
	bus        *ChanBus
	evPath     string
	cursorPath string
	notify     <-chan struct{}
	evCodec    EvCodec
	poll       time.Duration
}

func NewOutboxPublisher(ctx context.Context, bus *ChanBus, evPath, cursorPath string, notify <-chan struct{}, poll time.Duration, codec EvCodec) *OutboxPublisher {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	return &OutboxPublisher{
		ctx:        ctx,
		bus:        bus,
		evPath:     evPath,
		cursorPath: cursorPath,
		notify:     notify,
		poll:       poll,
		evCodec:    codec,
	}
}

func (p *OutboxPublisher) Run() {
	committed := loadCursor(p.cursorPath)
	// 修复截断后 cursor 可能越界
	if st, err := os.Stat(p.evPath); err == nil && committed > st.Size() {
		committed = st.Size()
		if err := storeCursor(p.cursorPath, committed); err != nil {
			logger.Error(p.ctx, "outbox cursor store failed", zap.Error(err))
			return
		}
	}
	off := committed

	var r *wal.Reader
	defer func() {
		if r != nil {
			_ = r.Close()
		}
	}()
	// reset 关掉 reader，下次从 committed 重新打开
	reset := func() {
		if r != nil {
			_ = r.Close()
			r = nil
		}
		off = committed
	}

	for {
		if p.ctx.Err() != nil {
			return
		}
		if r == nil {
			var err error
			r, err = wal.OpenReader(p.evPath, off, wal.ReaderOptions{AllowTruncatedTail: true})
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					logger.Warn(p.ctx, "outbox open failed", zap.Error(err))
				}
				r = nil
				p.wait()
				continue
			}
		}

		payload, nextOff, err := r.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn(p.ctx, "outbox read failed", zap.Error(err), zap.Int64("offset", off))
			}
			// EOF 后 bufio 不会再读到新数据，必须重新打开；
			// 已发布但没到命令边界的事件会被重发
			reset()
			p.wait()
			continue
		}

		ev, err := p.evCodec.Decode(payload)
		if err != nil {
			logger.Error(p.ctx, "outbox decode failed", zap.Error(err), zap.Int64("offset", off))
			reset()
			p.wait()
			continue
		}

		if ev.Type == EvCmdEnd {
			off = nextOff
			committed = off
			if err := storeCursor(p.cursorPath, committed); err != nil {
				logger.Warn(p.ctx, "outbox cursor store failed", zap.Error(err))
			}
			continue
		}

		if err := p.bus.Publish(p.ctx, ev); err != nil {
			reset()
			p.wait()
			continue
		}
		off = nextOff
	}
}

func (p *OutboxPublisher) wait() {
	t := time.NewTimer(p.poll)
	defer t.Stop()
	select {
	case <-p.ctx.Done():
	case <-p.notify:
	case <-t.C:
	}
}
