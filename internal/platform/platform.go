// Package platform 轮次制发行与二级交易：销售轮按固定价卖新发行的 token，
// 交易轮撮合用户挂单，两级推荐返佣，全部整数运算、除法截断。
//
// 每个写操作都是整体成功或整体失败：先校验并算出所有数值，再在账本快照里
// 执行资金移动，失败即回滚，最后才改内存状态并发出事件。
package platform

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Ledger token 与支付资产的外部账本
type Ledger interface {
	Mint(to common.Address, amount *uint256.Int) error
	Burn(from common.Address, amount *uint256.Int) error
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
	Approve(owner, spender common.Address, amount *uint256.Int) error
	Pay(from, to common.Address, amount *uint256.Int) error
	Deposit(to common.Address, amount *uint256.Int) error
	Withdraw(from common.Address, amount *uint256.Int) error

	BalanceOf(addr common.Address) *uint256.Int
	PaymentBalanceOf(addr common.Address) *uint256.Int
	Allowance(owner, spender common.Address) *uint256.Int

	Snapshot() int
	RevertToSnapshot(id int)
	Commit()
}

type Config struct {
	Self          common.Address // 平台托管账户
	Owner         common.Address
	Editor        common.Address
	RoundDuration time.Duration
	Fractions     Fractions
}

// Platform 写操作要求调用方串行（引擎单写者），读操作可以并发
type Platform struct {
	mu sync.RWMutex

	self          common.Address
	owner         common.Address
	editor        common.Address
	roundDuration time.Duration
	fractions     Fractions

	ledger   Ledger
	round    Round
	registry *Registry
	book     *OrderBook
}

func New(cfg Config, ledger Ledger) *Platform {
	if cfg.RoundDuration <= 0 {
		cfg.RoundDuration = DefaultRoundDuration
	}
	return &Platform{
		self:          cfg.Self,
		owner:         cfg.Owner,
		editor:        cfg.Editor,
		roundDuration: cfg.RoundDuration,
		fractions:     cfg.Fractions,
		ledger:        ledger,
		round:         initialRound(),
		registry:      NewRegistry(),
		book:          NewOrderBook(),
	}
}

func (p *Platform) Self() common.Address { return p.self }

func (p *Platform) Owner() common.Address { return p.owner }

func (p *Platform) RoundDuration() time.Duration { return p.roundDuration }

// ---- 读 ----

func (p *Platform) Round() Round {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.round.Clone()
}

func (p *Platform) Order(id uint64) (Order, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	o, ok := p.book.get(id)
	if !ok {
		return Order{}, false
	}
	return o.Clone(), true
}

// ActiveOrders 按 id 升序
func (p *Platform) ActiveOrders() []Order {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.book.active()
}

func (p *Platform) Referers(user common.Address) (l1, l2 common.Address) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.registry.Referers(user)
}

func (p *Platform) IsRegistered(user common.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.registry.IsRegistered(user)
}

func (p *Platform) Fractions() Fractions {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fractions
}

func (p *Platform) Editor() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.editor
}

func (p *Platform) Balances(addr common.Address) Balances {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Balances{
		Token:     p.ledger.BalanceOf(addr),
		Payment:   p.ledger.PaymentBalanceOf(addr),
		Allowance: p.ledger.Allowance(addr, p.self),
	}
}

// ---- 写辅助 ----

// settle 在账本快照里执行资金移动，任何一步失败整体回滚
func (p *Platform) settle(moves ...func() error) error {
	snap := p.ledger.Snapshot()
	for _, mv := range moves {
		if err := mv(); err != nil {
			p.ledger.RevertToSnapshot(snap)
			return err
		}
	}
	p.ledger.Commit()
	return nil
}

func (p *Platform) pay(from, to common.Address, amount *uint256.Int) func() error {
	return func() error {
		if amount.IsZero() {
			return nil
		}
		return p.ledger.Pay(from, to, amount)
	}
}

func (p *Platform) transfer(from, to common.Address, amount *uint256.Int) func() error {
	return func() error {
		if amount.IsZero() {
			return nil
		}
		return p.ledger.Transfer(from, to, amount)
	}
}

// referralShares 按两级上级计算返佣，缺失的一级返回 0
func (p *Platform) referralShares(user common.Address, amount *uint256.Int, k1, k2 FractionKind) (l1, l2 common.Address, s1, s2 *uint256.Int, err error) {
	l1, l2 = p.registry.Referers(user)
	s1, s2 = new(uint256.Int), new(uint256.Int)
	if l1 != (common.Address{}) {
		if s1, err = Share(amount, p.fractions.Get(k1)); err != nil {
			return
		}
	}
	if l2 != (common.Address{}) {
		if s2, err = Share(amount, p.fractions.Get(k2)); err != nil {
			return
		}
	}
	return
}

func referralEvents(evs *events, round uint64, payer, l1, l2 common.Address, s1, s2 *uint256.Int) {
	if !s1.IsZero() {
		evs.add(Event{Type: EvReferralPaid, Round: round, Account: l1, Peer: payer, Level: 1, Value: s1})
	}
	if !s2.IsZero() {
		evs.add(Event{Type: EvReferralPaid, Round: round, Account: l2, Peer: payer, Level: 2, Value: s2})
	}
}
