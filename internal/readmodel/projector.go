package readmodel

import (
	"context"
	"fmt"
	"sync"

	"acdmx.com/internal/engine"
	"acdmx.com/internal/platform"
	"acdmx.com/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

const cursorName = "readmodel"

// Projector 事件 -> 表。每个事件一个事务，连同游标一起提交，重复投递直接跳过。
// 游标依赖 seq 跨重启单调递增，只开内存模式时库也应该是临时的。
// 某个事件投影失败或发现缺口后，游标停在原地，只接受那个事件的重投
type Projector struct {
	repo  *Repo
	cache Cache

	mu      sync.Mutex
	cur     Cursor
	loaded  bool
	waiting *Cursor // 非空时只接受这个 (seq, idx)
}

func NewProjector(repo *Repo, cache Cache) *Projector {
	if cache == nil {
		cache = NopCache{}
	}
	return &Projector{repo: repo, cache: cache}
}

func (p *Projector) Name() string { return "readmodel" }

// Ordered 读模型不能跳事件，Dispatch 会对它退避重试
func (p *Projector) Ordered() {}

func (p *Projector) Handle(ctx context.Context, ev engine.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		c, err := p.repo.LoadCursor(ctx, cursorName)
		if err != nil {
			return err
		}
		p.cur, p.loaded = c, true
	}
	if ev.Seq < p.cur.Seq || (ev.Seq == p.cur.Seq && ev.Idx <= p.cur.Idx) {
		logger.Debug(ctx, "readmodel skip duplicate", zap.Uint64("seq", ev.Seq), zap.Uint16("idx", ev.Idx))
		return nil
	}
	if want := p.expect(ev); want != nil {
		return fmt.Errorf("%w: want seq=%d idx=%d, got seq=%d idx=%d",
			ErrProjectionGap, want.Seq, want.Idx, ev.Seq, ev.Idx)
	}

	next := Cursor{Name: cursorName, Seq: ev.Seq, Idx: ev.Idx}
	var roundChanged bool
	err := p.repo.Transaction(ctx, func(txCtx context.Context) error {
		changed, err := p.project(txCtx, ev)
		if err != nil {
			return err
		}
		roundChanged = changed
		return p.repo.SaveCursor(txCtx, &next)
	})
	if err != nil {
		p.waiting = &Cursor{Seq: ev.Seq, Idx: ev.Idx}
		return fmt.Errorf("project %s seq=%d: %w", ev.Type, ev.Seq, err)
	}
	p.cur, p.waiting = next, nil

	if roundChanged {
		// 缓存删失败只会晚一个 ttl 看到新值
		if err := p.cache.DelRound(ctx, 0); err != nil {
			logger.Warn(ctx, "round cache invalidate failed", zap.Error(err))
		}
		_ = p.cache.DelRound(ctx, ev.Round)
	}
	return nil
}

// expect 返回应该先到的事件，nil 表示 ev 可以投影。
// 同一 seq 内 idx 必须连续，新 seq 必须从 idx 0 开始；被拒绝的命令不产生事件，seq 本身可以跳
func (p *Projector) expect(ev engine.Event) *Cursor {
	if p.waiting != nil {
		if ev.Seq == p.waiting.Seq && ev.Idx == p.waiting.Idx {
			return nil
		}
		return p.waiting
	}
	var want Cursor
	switch {
	case ev.Seq == p.cur.Seq && ev.Idx != p.cur.Idx+1:
		want = Cursor{Seq: p.cur.Seq, Idx: p.cur.Idx + 1}
	case ev.Seq > p.cur.Seq && ev.Idx != 0:
		want = Cursor{Seq: ev.Seq, Idx: 0}
	default:
		return nil
	}
	p.waiting = &want
	return p.waiting
}

// project 返回轮次行是否有变化
func (p *Projector) project(ctx context.Context, ev engine.Event) (bool, error) {
	switch ev.Type {
	case platform.EvUserRegistered:
		return false, p.repo.CreateRegistration(ctx, &Registration{
			Account: hexAddr(ev.Account),
			Referer: hexAddr(ev.Peer),
			Seq:     ev.Seq,
		})

	case platform.EvSaleRoundStarted:
		return true, p.repo.SaveRound(ctx, &Round{
			Number:      ev.Round,
			Phase:       platform.PhaseSale.String(),
			Price:       dec(ev.Price),
			Supply:      dec(ev.Amount),
			Sold:        "0",
			Raised:      "0",
			Burned:      "0",
			BaseVolume:  dec(ev.Value),
			TradeVolume: "0",
			SaleEndTime: ev.EndTime,
		})

	case platform.EvPurchased:
		row, err := p.repo.GetRound(ctx, ev.Round)
		if err != nil {
			return false, err
		}
		if row.Sold, err = addDec(row.Sold, ev.Amount); err != nil {
			return false, err
		}
		if row.Raised, err = addDec(row.Raised, ev.Value); err != nil {
			return false, err
		}
		row.Purchases++
		if err := p.repo.SaveRound(ctx, row); err != nil {
			return false, err
		}
		return true, p.repo.CreatePurchase(ctx, &Purchase{
			Seq:     ev.Seq,
			Idx:     ev.Idx,
			Round:   ev.Round,
			Buyer:   hexAddr(ev.Account),
			Units:   dec(ev.Amount),
			Price:   dec(ev.Price),
			Payment: dec(ev.Value),
		})

	case platform.EvTradeRoundStarted:
		row, err := p.repo.GetRound(ctx, ev.Round)
		if err != nil {
			return false, err
		}
		row.Phase = platform.PhaseTrade.String()
		row.Burned = dec(ev.Amount)
		row.TradeEndTime = ev.EndTime
		return true, p.repo.SaveRound(ctx, row)

	case platform.EvOrderAdded:
		return false, p.repo.SaveOrder(ctx, &Order{
			ID:        ev.OrderID,
			Round:     ev.Round,
			Seller:    hexAddr(ev.Account),
			Price:     dec(ev.Price),
			Amount:    dec(ev.Amount),
			Remaining: dec(ev.Amount),
			Active:    true,
		})

	case platform.EvOrderRemoved:
		o, err := p.repo.GetOrder(ctx, ev.OrderID)
		if err != nil {
			return false, err
		}
		o.Active = false
		o.Remaining = "0"
		return false, p.repo.SaveOrder(ctx, o)

	case platform.EvOrderFilled:
		o, err := p.repo.GetOrder(ctx, ev.OrderID)
		if err != nil {
			return false, err
		}
		o.Remaining = dec(ev.Remaining)
		o.Active = ev.Remaining != nil && !ev.Remaining.IsZero()
		if err := p.repo.SaveOrder(ctx, o); err != nil {
			return false, err
		}
		if err := p.repo.CreateFill(ctx, &Fill{
			Seq:       ev.Seq,
			Idx:       ev.Idx,
			OrderID:   ev.OrderID,
			Round:     ev.Round,
			Buyer:     hexAddr(ev.Account),
			Seller:    hexAddr(ev.Peer),
			Units:     dec(ev.Amount),
			Price:     dec(ev.Price),
			Cost:      dec(ev.Value),
			Remaining: dec(ev.Remaining),
		}); err != nil {
			return false, err
		}
		row, err := p.repo.GetRound(ctx, ev.Round)
		if err != nil {
			return false, err
		}
		if row.TradeVolume, err = addDec(row.TradeVolume, ev.Value); err != nil {
			return false, err
		}
		row.Fills++
		return true, p.repo.SaveRound(ctx, row)

	case platform.EvReferralPaid:
		return false, p.repo.CreatePayout(ctx, &ReferralPayout{
			Seq:     ev.Seq,
			Idx:     ev.Idx,
			Round:   ev.Round,
			Referer: hexAddr(ev.Account),
			Payer:   hexAddr(ev.Peer),
			Level:   ev.Level,
			Amount:  dec(ev.Value),
		})
	}
	// 参数变更不进读模型
	return false, nil
}

// hexAddr 零地址存空串
func hexAddr(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return a.Hex()
}

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func addDec(s string, v *uint256.Int) (string, error) {
	if v == nil {
		return s, nil
	}
	cur, err := uint256.FromDecimal(s)
	if err != nil {
		return "", fmt.Errorf("bad stored amount %q: %w", s, err)
	}
	sum, overflow := new(uint256.Int).AddOverflow(cur, v)
	if overflow {
		return "", fmt.Errorf("stored amount overflow")
	}
	return sum.Dec(), nil
}
