// Package ledger 进程内账本：ACDM token（余额、授权、铸造/销毁）和支付资产两套余额。
// 所有写操作都记 journal，Snapshot/RevertToSnapshot 用于整笔回滚。
// 不是并发安全的，调用方负责串行化。
package ledger

import (
	"acdmx.com/pkg/xerr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = xerr.New(xerr.InsufficientFunds, "insufficient token balance")
	ErrInsufficientAllowance = xerr.New(xerr.InsufficientFunds, "insufficient allowance")
	ErrInsufficientPayment   = xerr.New(xerr.InsufficientFunds, "insufficient payment balance")
	ErrOverflow              = xerr.New(xerr.Arithmetic, "ledger amount overflow")
	ErrZeroAddress           = xerr.New(xerr.Validation, "zero address")
)

// MaxAllowance 视为无限授权，TransferFrom 不扣减
var MaxAllowance = new(uint256.Int).SetAllOne()

type Ledger struct {
	balances  map[common.Address]*uint256.Int
	allowance map[common.Address]map[common.Address]*uint256.Int
	payments  map[common.Address]*uint256.Int
	supply    *uint256.Int
	journal   []func()
}

func New() *Ledger {
	return &Ledger{
		balances:  make(map[common.Address]*uint256.Int, 1024),
		allowance: make(map[common.Address]map[common.Address]*uint256.Int, 256),
		payments:  make(map[common.Address]*uint256.Int, 1024),
		supply:    new(uint256.Int),
	}
}

// Snapshot 返回当前 journal 位置
func (l *Ledger) Snapshot() int { return len(l.journal) }

// RevertToSnapshot 逆序撤销 id 之后的所有写
func (l *Ledger) RevertToSnapshot(id int) {
	for i := len(l.journal) - 1; i >= id; i-- {
		l.journal[i]()
	}
	l.journal = l.journal[:id]
}

// Commit 丢弃 journal，之前的快照全部失效
func (l *Ledger) Commit() { l.journal = l.journal[:0] }

func (l *Ledger) BalanceOf(addr common.Address) *uint256.Int { return get(l.balances, addr) }

func (l *Ledger) PaymentBalanceOf(addr common.Address) *uint256.Int { return get(l.payments, addr) }

func (l *Ledger) TotalSupply() *uint256.Int { return l.supply.Clone() }

func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	return get(l.allowance[owner], spender)
}

// Mint 增发到 to
func (l *Ledger) Mint(to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	supply, overflow := new(uint256.Int).AddOverflow(l.supply, amount)
	if overflow {
		return ErrOverflow
	}
	bal, overflow := new(uint256.Int).AddOverflow(get(l.balances, to), amount)
	if overflow {
		return ErrOverflow
	}
	l.setSupply(supply)
	l.set(l.balances, to, bal)
	return nil
}

// Burn 从 from 销毁
func (l *Ledger) Burn(from common.Address, amount *uint256.Int) error {
	bal := get(l.balances, from)
	if bal.Lt(amount) {
		return ErrInsufficientBalance
	}
	l.set(l.balances, from, new(uint256.Int).Sub(bal, amount))
	l.setSupply(new(uint256.Int).Sub(l.supply, amount))
	return nil
}

func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	return l.move(l.balances, from, to, amount, ErrInsufficientBalance)
}

func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrZeroAddress
	}
	m := l.allowance[owner]
	if m == nil {
		m = make(map[common.Address]*uint256.Int, 4)
		l.allowance[owner] = m
	}
	l.set(m, spender, amount.Clone())
	return nil
}

// TransferFrom spender 代 from 转账，先扣授权
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	allowed := l.Allowance(from, spender)
	if allowed.Lt(amount) {
		return ErrInsufficientAllowance
	}
	if get(l.balances, from).Lt(amount) {
		return ErrInsufficientBalance
	}
	if !allowed.Eq(MaxAllowance) {
		l.set(l.allowance[from], spender, new(uint256.Int).Sub(allowed, amount))
	}
	return l.move(l.balances, from, to, amount, ErrInsufficientBalance)
}

// Deposit 外部充值支付资产
func (l *Ledger) Deposit(to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	bal, overflow := new(uint256.Int).AddOverflow(get(l.payments, to), amount)
	if overflow {
		return ErrOverflow
	}
	l.set(l.payments, to, bal)
	return nil
}

// Withdraw 支付资产提出
func (l *Ledger) Withdraw(from common.Address, amount *uint256.Int) error {
	bal := get(l.payments, from)
	if bal.Lt(amount) {
		return ErrInsufficientPayment
	}
	l.set(l.payments, from, new(uint256.Int).Sub(bal, amount))
	return nil
}

// Pay 支付资产转账
func (l *Ledger) Pay(from, to common.Address, amount *uint256.Int) error {
	return l.move(l.payments, from, to, amount, ErrInsufficientPayment)
}

func (l *Ledger) move(m map[common.Address]*uint256.Int, from, to common.Address, amount *uint256.Int, short error) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	src := get(m, from)
	if src.Lt(amount) {
		return short
	}
	if from == to || amount.IsZero() {
		return nil
	}
	dst, overflow := new(uint256.Int).AddOverflow(get(m, to), amount)
	if overflow {
		return ErrOverflow
	}
	l.set(m, from, new(uint256.Int).Sub(src, amount))
	l.set(m, to, dst)
	return nil
}

// set 写之前把旧值记进 journal
func (l *Ledger) set(m map[common.Address]*uint256.Int, addr common.Address, v *uint256.Int) {
	prev, existed := m[addr]
	l.journal = append(l.journal, func() {
		if existed {
			m[addr] = prev
		} else {
			delete(m, addr)
		}
	})
	if v.IsZero() {
		delete(m, addr)
		return
	}
	m[addr] = v
}

func (l *Ledger) setSupply(v *uint256.Int) {
	prev := l.supply
	l.journal = append(l.journal, func() { l.supply = prev })
	l.supply = v
}

func get(m map[common.Address]*uint256.Int, addr common.Address) *uint256.Int {
	if v, ok := m[addr]; ok {
		return v.Clone()
	}
	return new(uint256.Int)
}
