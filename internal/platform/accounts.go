package platform

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MaxApproval 无限授权
func MaxApproval() *uint256.Int { return new(uint256.Int).SetAllOne() }

// 账户资金入口：充值/提现支付资产，授权平台托管挂单 token。
// 不产生领域事件，结果由调用方直接拿到

func (p *Platform) Approve(owner common.Address, amount *uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settle(func() error { return p.ledger.Approve(owner, p.self, amount) })
}

func (p *Platform) Deposit(to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settle(func() error { return p.ledger.Deposit(to, amount) })
}

func (p *Platform) Withdraw(from common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}
	if from == p.self {
		return ErrNotOwner
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settle(func() error { return p.ledger.Withdraw(from, amount) })
}
