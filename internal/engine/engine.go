package engine

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"acdmx.com/internal/platform"
	"acdmx.com/pkg/logger"
	"acdmx.com/pkg/metrics"
	"acdmx.com/pkg/safe"
	"acdmx.com/pkg/wal"
	"go.uber.org/zap"
)

type Config struct {
	Stream          string        `mapstructure:"stream"` // wal 文件名前缀
	EventBusSize    int           `mapstructure:"event_bus_size"`
	Actor           ActorConfig   `mapstructure:"actor"`
	WALDir          string        `mapstructure:"wal_dir"`
	EnableCmdWAL    bool          `mapstructure:"enable_cmd_wal"`
	WALBufSize      int           `mapstructure:"wal_buf_size"`
	EnableOutbox    bool          `mapstructure:"enable_outbox"`
	OutboxBufSize   int           `mapstructure:"outbox_buf_size"`
	EnablePublisher bool          `mapstructure:"enable_publisher"`
	PublisherPoll   time.Duration `mapstructure:"publisher_poll"`
	Codec           string        `mapstructure:"codec"` // binary / json

	CmdCodec CmdCodec `mapstructure:"-"`
	EvCodec  EvCodec  `mapstructure:"-"`
}

type Engine struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
	p      *platform.Platform
	actor  *Actor
	bus    *ChanBus
	now    func() time.Time
	reqSeq atomic.Uint64
}

func NewEngine(cfg Config, p *platform.Platform) *Engine {
	if cfg.EventBusSize <= 0 {
		cfg.EventBusSize = 1 << 16
	}
	if cfg.Stream == "" {
		cfg.Stream = "acdm"
	}
	if cfg.CmdCodec == nil || cfg.EvCodec == nil {
		switch cfg.Codec {
		case "json":
			cfg.CmdCodec, cfg.EvCodec = JSONCmdCodec{Version: 1}, JSONEvCodec{Version: 1}
		default:
			cfg.CmdCodec, cfg.EvCodec = BinaryCmdCodec{}, BinaryEvCodec{}
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		p:      p,
		bus:    NewChanBus(cfg.EventBusSize),
		now:    time.Now,
	}
}

// SetClock 测试用
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

func (e *Engine) Platform() *platform.Platform { return e.p }

// Events 已提交命令的事件流
func (e *Engine) Events() <-chan Event { return e.bus.C() }

func (e *Engine) DroppedEvents() uint64 { return e.bus.Dropped() }

// Start 从 cmd.wal 重建平台状态、修复并补齐 outbox，然后启动 actor 和 publisher。
// 平台必须是刚 New 出来的空状态
func (e *Engine) Start() error {
	if e.actor != nil {
		return nil
	}
	cfg := e.cfg
	persist := cfg.EnableCmdWAL || cfg.EnableOutbox || cfg.EnablePublisher
	if persist && cfg.WALDir == "" {
		return fmt.Errorf("engine: wal_dir is empty but persistence is enabled")
	}
	if persist {
		if err := os.MkdirAll(cfg.WALDir, 0o755); err != nil {
			return err
		}
	}
	cmdPath := cmdWalPath(cfg.WALDir, cfg.Stream)
	evPath := outboxWalPath(cfg.WALDir, cfg.Stream)
	curPath := outboxCursorPath(cfg.WALDir, cfg.Stream)

	var (
		lastCompleteSeq uint64
		ob              *EventOutbox
		err             error
	)
	if cfg.EnableOutbox {
		lastCompleteSeq, _, err = ScanAndRepairOutbox(evPath, cfg.EvCodec)
		if err != nil {
			return err
		}
		ob, err = OpenEventOutbox(evPath, cfg.OutboxBufSize, cfg.EvCodec)
		if err != nil {
			return err
		}
	}
	var outbox Outbox
	if ob != nil {
		outbox = ob
	}

	var lastSeq uint64
	if cfg.EnableCmdWAL {
		lastSeq, err = replayCmdWAL(cmdPath, e.p, outbox, lastCompleteSeq, cfg.CmdCodec)
		if err != nil {
			_ = closeIfNotNil(outbox)
			return err
		}
		logger.Info(e.ctx, "engine replayed", zap.Uint64("last_seq", lastSeq), zap.Uint64("outbox_seq", lastCompleteSeq))
	}
	if outbox != nil {
		if err := outbox.Flush(); err != nil {
			_ = closeIfNotNil(outbox)
			return err
		}
	}

	var cmdWriter walWriter
	if cfg.EnableCmdWAL {
		w, err := wal.OpenWrite(cmdPath, cfg.WALBufSize)
		if err != nil {
			_ = closeIfNotNil(outbox)
			return err
		}
		cmdWriter = w
	}

	pubNotify := make(chan struct{}, 1)
	a := NewActor(e.p, cfg.Actor, cmdWriter, outbox, pubNotify, cfg.CmdCodec)
	a.seq = lastSeq
	if outbox == nil {
		a.direct = e.bus
	}
	e.actor = a
	r := e.p.Round()
	metrics.RoundNumber.Set(float64(r.Number))
	metrics.RoundPhase.Set(float64(r.Phase))

	safe.GoNamed("engine-actor", func() { a.Run(e.ctx) })
	if cfg.EnablePublisher && outbox != nil {
		pub := NewOutboxPublisher(e.ctx, e.bus, evPath, curPath, pubNotify, cfg.PublisherPoll, cfg.EvCodec)
		safe.GoNamed("engine-publisher", pub.Run)
	}
	return nil
}

// Submit 入队并等待结果。业务拒绝通过 Result.Err 和返回的 error 同时给出
func (e *Engine) Submit(ctx context.Context, cmd Command) (Result, error) {
	if e.actor == nil {
		return Result{}, ErrNotStarted
	}
	if !cmd.Type.Valid() {
		return Result{}, ErrBadCommand
	}
	e.stamp(&cmd)
	cmd.reply = make(chan Result, 1)
	if err := e.actor.TryEnqueue(cmd); err != nil {
		metrics.CommandsTotal.WithLabelValues(cmd.Type.String(), "busy").Inc()
		return Result{}, err
	}
	select {
	case res := <-cmd.reply:
		return res, res.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-e.actor.Done():
		select {
		case res := <-cmd.reply:
			return res, res.Err
		default:
			return Result{}, ErrEngineStopped
		}
	}
}

// TryEnqueue 只入队不等结果，结果只能从事件流里看到
func (e *Engine) TryEnqueue(cmd Command) error {
	if e.actor == nil {
		return ErrNotStarted
	}
	if !cmd.Type.Valid() {
		return ErrBadCommand
	}
	e.stamp(&cmd)
	return e.actor.TryEnqueue(cmd)
}

func (e *Engine) stamp(cmd *Command) {
	if cmd.Ts == 0 {
		cmd.Ts = e.now().UnixNano()
	}
	if cmd.ReqID == 0 {
		cmd.ReqID = e.reqSeq.Add(1)
	}
	cmd.start = time.Now().UnixNano()
}

func (e *Engine) MailboxFull() uint64 {
	if e.actor == nil {
		return 0
	}
	return e.actor.MailboxFull()
}

// Stop 停止 actor 和 publisher，等 actor 把 wal 关干净
func (e *Engine) Stop() {
	e.cancel()
	if e.actor != nil {
		<-e.actor.Done()
	}
}

// replayCmdWAL 重放 cmd.wal 重建状态；seq > lastCompleteSeq 的命令事件补写 outbox
func replayCmdWAL(cmdPath string, p *platform.Platform, outbox Outbox, lastCompleteSeq uint64, codec CmdCodec) (lastSeq uint64, err error) {
	col := &collector{}
	_, err = wal.Replay(cmdPath, wal.ReplayOptions{AllowTruncatedTail: true}, func(payload []byte) error {
		seq, cmd, err := codec.Decode(payload)
		if err != nil {
			return err
		}
		if seq > lastSeq {
			lastSeq = seq
		}
		if outbox == nil || seq <= lastCompleteSeq {
			apply(p, cmd, platform.NopEmitter{})
			return nil
		}

		col.reset(seq, cmd.ReqID)
		res := apply(p, cmd, col)
		if res.Err == nil {
			for _, ev := range col.evs {
				if err := outbox.Append(ev); err != nil {
					return err
				}
			}
		}
		return outbox.AppendCmdEnd(seq)
	})
	if err != nil {
		return 0, err
	}
	return lastSeq, nil
}

func closeIfNotNil(ob Outbox) error {
	if ob == nil {
		return nil
	}
	return ob.Close()
}
