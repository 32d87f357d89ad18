package engine

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"acdmx.com/internal/platform"
	"acdmx.com/pkg/logger"
	"acdmx.com/pkg/metrics"
	"go.uber.org/zap"
)

type ActorConfig struct {
	MailboxSize int `mapstructure:"mailbox_size"`
	BatchMax    int `mapstructure:"batch_max"`
}

type walWriter interface {
	Append(payload []byte) error
	Flush() error
	Close() error
}

// Actor 平台唯一的写者：批量取命令，先写 cmd.wal，再逐条执行，
// 事件写 outbox，batch 末尾组提交后再回复调用方
type Actor struct {
	p   *platform.Platform
	in  chan Command
	cfg ActorConfig
	seq uint64

	mailboxFull uint64

	wal       walWriter
	outbox    Outbox
	pubNotify chan struct{}
	cmdCodec  CmdCodec
	done      chan struct{}

	// 没开 outbox 时直接非阻塞推 bus，可能丢
	direct *ChanBus
}

func NewActor(p *platform.Platform, cfg ActorConfig, w walWriter, ob Outbox, pubNotify chan struct{}, cmdCodec CmdCodec) *Actor {
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 4096
	}
	if cfg.BatchMax <= 0 {
		cfg.BatchMax = 256
	}
	if pubNotify == nil {
		pubNotify = make(chan struct{}, 1)
	}
	if cmdCodec == nil {
		cmdCodec = BinaryCmdCodec{}
	}
	return &Actor{
		p:         p,
		in:        make(chan Command, cfg.MailboxSize),
		cfg:       cfg,
		wal:       w,
		outbox:    ob,
		pubNotify: pubNotify,
		cmdCodec:  cmdCodec,
		done:      make(chan struct{}),
	}
}

// TryEnqueue 非阻塞入队，mailbox 满了直接拒绝
func (a *Actor) TryEnqueue(cmd Command) error {
	select {
	case <-a.done:
		return ErrEngineStopped
	default:
	}
	select {
	case a.in <- cmd:
		return nil
	default:
		atomic.AddUint64(&a.mailboxFull, 1)
		metrics.MailboxFull.Inc()
		return ErrEngineBusy
	}
}

func (a *Actor) MailboxFull() uint64 { return atomic.LoadUint64(&a.mailboxFull) }

func (a *Actor) Done() <-chan struct{} { return a.done }

func (a *Actor) Run(ctx context.Context) {
	defer close(a.done)
	if a.wal != nil {
		defer a.wal.Close()
	}
	if a.outbox != nil {
		defer a.outbox.Close()
	}

	batch := make([]Command, 0, a.cfg.BatchMax)
	seqs := make([]uint64, 0, a.cfg.BatchMax)
	results := make([]Result, 0, a.cfg.BatchMax)
	col := &collector{evs: make([]Event, 0, 8)}

	for {
		var first Command
		select {
		case <-ctx.Done():
			return
		case first = <-a.in:
		}
		// 先阻塞拿一条，再非阻塞尽量多拿
		batch = append(batch[:0], first)
		for len(batch) < a.cfg.BatchMax {
			select {
			case cmd := <-a.in:
				batch = append(batch, cmd)
			default:
				goto PROCESS
			}
		}
	PROCESS:
		// ---------- Phase 1: cmd.wal ----------
		seqs = seqs[:0]
		for i := range batch {
			a.seq++
			seqs = append(seqs, a.seq)
			if a.wal == nil {
				continue
			}
			var rec [cmdRecordLen]byte
			payload, err := a.cmdCodec.Encode(rec[:0], a.seq, batch[i])
			if err == nil {
				err = a.wal.Append(payload)
			}
			if err != nil {
				// WAL 写失败不能 apply，直接停
				logger.Error(ctx, "cmd wal append failed", zap.Error(err), zap.Uint64("seq", a.seq))
				a.failBatch(batch, err)
				return
			}
		}
		if a.wal != nil {
			if err := a.wal.Flush(); err != nil {
				logger.Error(ctx, "cmd wal flush failed", zap.Error(err))
				a.failBatch(batch, err)
				return
			}
		}

		// ---------- Phase 2: apply + outbox ----------
		results = results[:0]
		for i, cmd := range batch {
			col.reset(seqs[i], cmd.ReqID)
			res := apply(a.p, cmd, col)
			res.Seq = seqs[i]
			if res.Err == nil && len(col.evs) > 0 {
				res.Events = append([]Event(nil), col.evs...)
			}
			if a.outbox == nil && a.direct != nil {
				for _, ev := range res.Events {
					a.direct.TryPublish(ev)
				}
			}
			if a.outbox != nil {
				if err := a.writeOutbox(res); err != nil {
					// 重启时会从 cmd.wal 补齐 outbox
					logger.Error(ctx, "outbox append failed", zap.Error(err), zap.Uint64("seq", res.Seq))
					a.failBatch(batch[i:], err)
					a.reply(batch[:i], results)
					return
				}
			}
			results = append(results, res)
		}

		if a.outbox != nil {
			if err := a.outbox.Flush(); err != nil {
				logger.Error(ctx, "outbox flush failed", zap.Error(err))
				a.failBatch(batch, err)
				return
			}
			select {
			case a.pubNotify <- struct{}{}:
			default:
			}
		}
		a.reply(batch, results)
	}
}

func (a *Actor) writeOutbox(res Result) error {
	for _, ev := range res.Events {
		if err := a.outbox.Append(ev); err != nil {
			return err
		}
	}
	return a.outbox.AppendCmdEnd(res.Seq)
}

func (a *Actor) reply(batch []Command, results []Result) {
	now := time.Now().UnixNano()
	for i, cmd := range batch {
		res := results[i]
		observe(cmd, res, now)
		if cmd.reply != nil {
			cmd.reply <- res
		}
	}
}

func (a *Actor) failBatch(batch []Command, err error) {
	for _, cmd := range batch {
		if cmd.reply != nil {
			cmd.reply <- Result{Err: err}
		}
	}
}

func observe(cmd Command, res Result, now int64) {
	result := "ok"
	if res.Err != nil {
		result = "rejected"
	}
	metrics.CommandsTotal.WithLabelValues(cmd.Type.String(), result).Inc()
	if cmd.start > 0 {
		metrics.CommandLatency.WithLabelValues(cmd.Type.String()).Observe(float64(now-cmd.start) / 1e9)
	}

	for _, ev := range res.Events {
		switch ev.Type {
		case platform.EvPurchased:
			metrics.UnitsSold.WithLabelValues("sale").Add(ev.Amount.Float64())
		case platform.EvOrderFilled:
			metrics.UnitsSold.WithLabelValues("trade").Add(ev.Amount.Float64())
		case platform.EvReferralPaid:
			metrics.ReferralPaid.WithLabelValues(strconv.Itoa(int(ev.Level))).Inc()
		case platform.EvSaleRoundStarted:
			metrics.RoundNumber.Set(float64(ev.Round))
			metrics.RoundPhase.Set(float64(platform.PhaseSale))
		case platform.EvTradeRoundStarted:
			metrics.RoundPhase.Set(float64(platform.PhaseTrade))
		}
	}
}
